// Package engine orchestrates the full key-recovery pipeline: build an
// observation set, drive the beam search, and verify every full-length
// survivor against the real keystream.
package engine

import (
	"context"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
	"github.com/rawblock/hitag2-corrattack/internal/search"
	"github.com/rawblock/hitag2-corrattack/internal/verify"
)

// Options configures a recovery run. Workers of 0 means GOMAXPROCS, Window
// of 0 means obs.DefaultWindow, MaxVerifyAttempts of 0 means checking the
// entire final beam.
type Options struct {
	T                 uint32
	Workers           uint32
	Window            int
	Epsilon           float64
	MaxVerifyAttempts int
	Observe           search.Observer
}

// RecoverKey runs the beam-search correlation attack against uid's
// observations and returns the recovered key, or an error: an
// InvalidInputError for bad parameters, ErrNoKeyFound if the beam
// exhausted all 48 steps without a verified survivor, or
// ErrResourceExhausted if the beam's buffers could not be allocated.
func RecoverKey(ctx context.Context, uid uint32, observations []obs.Observation, opts Options) (key cipher.Key, err error) {
	if len(observations) < 1 {
		return 0, &InvalidInputError{Reason: "at least one observation is required"}
	}
	if opts.T < 2 {
		return 0, &InvalidInputError{Reason: "beam width T must be at least 2"}
	}

	set, setErr := obs.NewSet(uid, opts.Window, observations)
	if setErr != nil {
		return 0, &InvalidInputError{Reason: setErr.Error()}
	}

	survivors, err := runBeam(ctx, set, opts)
	if err != nil {
		return 0, err
	}

	found, ok := verify.First(survivors, set, opts.MaxVerifyAttempts)
	if !ok {
		return 0, ErrNoKeyFound
	}
	return found, nil
}

// runBeam isolates the beam allocation and run so a failed make (too large
// a T for available memory) is reported as ErrResourceExhausted instead of
// crashing the process.
func runBeam(ctx context.Context, set *obs.Set, opts Options) (survivors []candidate.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			survivors, err = nil, ErrResourceExhausted
		}
	}()

	eng := search.New(int(opts.T), int(opts.Workers), set, opts.Epsilon)
	return eng.Run(ctx, opts.Observe)
}
