package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
	"github.com/rawblock/hitag2-corrattack/internal/verify"
)

// keyForState returns a key whose own load (for the given uid and iv)
// reproduces targetState exactly, by inverting the load schedule the same
// way the verifier does when it turns a recovered state back into a key.
// Load always leaves uid's low 16 bits in state bits 32..47, so targetState
// must carry those same bits there.
func keyForState(t *testing.T, targetState uint64, uid, iv uint32) cipher.Key {
	t.Helper()
	keys := verify.CandidateKeys(candidate.Candidate{State: targetState, Len: cipher.KeyBits}, uid, iv)
	if len(keys) == 0 {
		t.Fatalf("CandidateKeys returned no keys for state %#x", targetState)
	}
	return keys[0]
}

func makeObservations(key cipher.Key, uid uint32, n, window int) []obs.Observation {
	observations := make([]obs.Observation, n)
	for i := range observations {
		iv := uint32(i + 1)
		observations[i] = obs.Observation{IV: iv, Keystream: cipher.Keystream(key, uid, iv, window)}
	}
	return observations
}

func TestRecoverKeyRejectsNoObservations(t *testing.T) {
	_, err := RecoverKey(context.Background(), 0xdeadbeef, nil, Options{T: 16, Epsilon: 0.1})
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestRecoverKeyRejectsSmallBeamWidth(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xdeadbeef)
	observations := makeObservations(key, uid, 2, 32)

	_, err := RecoverKey(context.Background(), uid, observations, Options{T: 1, Epsilon: 0.1})
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for T<2, got %v", err)
	}
}

// TestRecoverKeyFindsKeyWithGenerousBeam uses a key whose initial state
// carries all of its information in state-bit 47, the widest tap either the
// filter or the feedback ever reads and so the last bit any candidate fixes.
// Every state bit the scorer can resolve before full length depends only on
// positions 0..46, so a state with those positions all zero is the
// numerically smallest possible candidate at every step but the last,
// guaranteeing it survives a beam of any width until the one step where the
// scorer's gradient actually appears. The uid's low 16 bits are 0x8000, which
// Load places in state bits 32..47, so the loaded state really is 1<<47.
func TestRecoverKeyFindsKeyWithGenerousBeam(t *testing.T) {
	uid := uint32(0xdead8000)
	iv := uint32(1)
	trueState := uint64(1) << 47
	key := keyForState(t, trueState, uid, iv)

	observations := makeObservations(key, uid, 1, 32)

	got, err := RecoverKey(context.Background(), uid, observations, Options{
		T:       128,
		Workers: 4,
		Epsilon: 0.05,
	})
	if err != nil {
		t.Fatalf("RecoverKey: %v", err)
	}
	if got != key {
		t.Fatalf("RecoverKey returned %s, want %s", got, key)
	}
}

func TestRecoverKeyReturnsNoKeyFoundForTooNarrowBeam(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xdeadbeef)
	observations := makeObservations(key, uid, 1, 16)

	_, err := RecoverKey(context.Background(), uid, observations, Options{
		T:       2,
		Workers: 1,
		Epsilon: 0.4,
	})
	if !errors.Is(err, ErrNoKeyFound) {
		t.Fatalf("expected ErrNoKeyFound for a too-narrow beam, got %v", err)
	}
}
