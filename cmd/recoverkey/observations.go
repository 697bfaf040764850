package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

// loadObservations reads the observation file format: one line per
// observation, each "<IV_HEX> <AUTH_HEX>" with both fields exactly 8 hex
// characters. AUTH_HEX is the bit-inverse of the first 32 keystream bits,
// so each keystream bit is recovered as the complement of the
// corresponding AUTH_HEX bit. limit caps how many lines are read (0 means
// all of them).
func loadObservations(r io.Reader, limit int) ([]obs.Observation, error) {
	scanner := bufio.NewScanner(r)
	var observations []obs.Observation

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if limit > 0 && len(observations) >= limit {
			break
		}

		line := scanner.Text()
		if line == "" {
			return nil, fmt.Errorf("observation file line %d: blank lines are not supported", lineNo)
		}

		var ivHex, authHex string
		if _, err := fmt.Sscanf(line, "%8s %8s", &ivHex, &authHex); err != nil {
			return nil, fmt.Errorf("observation file line %d: %w", lineNo, err)
		}
		if len(ivHex) != 8 || len(authHex) != 8 {
			return nil, fmt.Errorf("observation file line %d: both fields must be exactly 8 hex characters", lineNo)
		}

		iv, err := strconv.ParseUint(ivHex, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("observation file line %d: bad IV hex %q: %w", lineNo, ivHex, err)
		}
		auth, err := strconv.ParseUint(authHex, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("observation file line %d: bad AUTH hex %q: %w", lineNo, authHex, err)
		}

		ks := make([]byte, 32)
		for j := range ks {
			shift := uint(31 - j)
			authBit := byte((auth >> shift) & 1)
			ks[j] = authBit ^ 1
		}
		observations = append(observations, obs.Observation{IV: uint32(iv), Keystream: ks})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading observation file: %w", err)
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("observation file contained no observations")
	}
	return observations, nil
}
