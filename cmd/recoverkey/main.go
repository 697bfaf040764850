// Command recoverkey runs the HiTag2 fast correlation attack against a
// file of keystream observations and prints the recovered 48-bit key.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rawblock/hitag2-corrattack/internal/engine"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
	"github.com/rawblock/hitag2-corrattack/internal/progress"
	"github.com/rawblock/hitag2-corrattack/internal/search"
	"github.com/rawblock/hitag2-corrattack/internal/store"
)

const (
	exitInvalid = 2
	exitNoKey   = 3
	exitIOError = 4
)

var (
	uidHex       string
	obsPath      string
	numObs       int
	beamWidth    int
	workers      int
	epsilon      float64
	window       int
	progressAddr string
	databaseURL  string
	maxVerify    int
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(exitInvalid)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recoverkey",
		Short: "Recover a HiTag2 48-bit key from keystream observations via beam-search correlation attack",
		RunE:  runRecover,
	}

	flags := cmd.Flags()
	flags.StringVarP(&uidHex, "uid", "u", "", "tag UID, 8 hex characters (required)")
	flags.StringVarP(&obsPath, "observations", "n", "", "path to observation file (required)")
	flags.IntVarP(&numObs, "count", "N", 0, "number of observations to use (default: all in file)")
	flags.IntVarP(&beamWidth, "beam-width", "t", 800000, "beam width T (recommended 2000000 for full recovery)")
	flags.IntVarP(&workers, "workers", "w", 0, "worker goroutines (default: GOMAXPROCS)")
	flags.Float64Var(&epsilon, "epsilon", 0.3, "assumed per-bit correlation error rate")
	flags.IntVar(&window, "window", 32, "observation window length in bits")
	flags.StringVar(&progressAddr, "progress-addr", "", "if set, serve run progress over HTTP/WS at this address (e.g. :8080)")
	flags.StringVar(&databaseURL, "database-url", "", "if set, persist this run's parameters and outcome to Postgres")
	flags.IntVar(&maxVerify, "max-verify-attempts", 0, "cap how many beam survivors are bit-checked against the keystream (0 = unbounded)")

	cmd.MarkFlagRequired("uid")
	cmd.MarkFlagRequired("observations")

	return cmd
}

func runRecover(cmd *cobra.Command, args []string) error {
	uidVal, err := parseUID(uidHex)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid input:", err)
		os.Exit(exitInvalid)
	}

	f, err := os.Open(obsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "i/o error:", err)
		os.Exit(exitIOError)
	}
	defer f.Close()

	observations, err := loadObservations(f, numObs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid input:", err)
		os.Exit(exitInvalid)
	}

	ctx := context.Background()

	ledger, runID, stopLedger := connectLedger(ctx, databaseURL, runParams(observations))
	defer stopLedger()

	var observe search.Observer
	if progressAddr != "" {
		hub := progress.NewHub()
		shutdown := progress.Serve(progressAddr, hub)
		defer shutdown()
		observe = hub.Report
	}

	key, recErr := engine.RecoverKey(ctx, uidVal, observations, engine.Options{
		T:                 uint32(beamWidth),
		Workers:           uint32(workers),
		Window:            window,
		Epsilon:           epsilon,
		MaxVerifyAttempts: maxVerify,
		Observe:           observe,
	})

	finishLedger(ctx, ledger, runID, key, recErr)

	switch {
	case recErr == nil:
		fmt.Println(key.String())
		return nil
	case isInvalidInput(recErr):
		fmt.Fprintln(os.Stderr, "invalid input:", recErr)
		os.Exit(exitInvalid)
	default:
		fmt.Fprintln(os.Stderr, "no key found:", recErr)
		os.Exit(exitNoKey)
	}
	return nil
}

func runParams(observations []obs.Observation) store.RunParams {
	return store.RunParams{
		UIDHex:       uidHex,
		BeamWidth:    uint32(beamWidth),
		Workers:      uint32(workers),
		Epsilon:      epsilon,
		Window:       window,
		Observations: len(observations),
	}
}

func parseUID(s string) (uint32, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("UID must be exactly 8 hex characters, got %d", len(s))
	}
	var v uint32
	if _, err := fmt.Sscanf(s, "%08x", &v); err != nil {
		return 0, fmt.Errorf("invalid UID hex %q: %w", s, err)
	}
	return v, nil
}

func isInvalidInput(err error) bool {
	var invalid *engine.InvalidInputError
	return errors.As(err, &invalid)
}
