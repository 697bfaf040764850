package verify

import (
	"testing"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

func buildSet(t *testing.T, key cipher.Key, uid uint32) *obs.Set {
	t.Helper()
	window := 20
	observations := []obs.Observation{
		{IV: 10, Keystream: cipher.Keystream(key, uid, 10, window)},
		{IV: 20, Keystream: cipher.Keystream(key, uid, 20, window)},
	}
	set, err := obs.NewSet(uid, window, observations)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestCandidateKeysIncludesTheTrueKey(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xcafef00d)
	iv := uint32(10)

	state := cipher.Load(key, uid, iv)
	c := candidate.Candidate{State: state, Len: cipher.KeyBits}

	found := false
	for _, k := range CandidateKeys(c, uid, iv) {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("CandidateKeys did not include the key whose own load produced this state")
	}
}

func TestMatchesAcceptsTrueKey(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xcafef00d)
	set := buildSet(t, key, uid)
	if !Matches(key, set) {
		t.Fatalf("expected the true key to match its own observations")
	}
}

func TestMatchesRejectsWrongKey(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	wrong := cipher.Key(uint64(0xffffffffffff) &^ uint64(key))
	uid := uint32(0xcafef00d)
	set := buildSet(t, key, uid)
	if Matches(wrong, set) {
		t.Fatalf("did not expect an unrelated key to match")
	}
}

func TestFirstFindsTheTrueKey(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xcafef00d)
	set := buildSet(t, key, uid)

	state := cipher.Load(key, uid, set.At(0).IV)
	wrong := state ^ 1 // differs in exactly one bit, so it won't reproduce any observation

	survivors := []candidate.Candidate{
		{State: wrong, Len: cipher.KeyBits, Score: 10}, // scored higher, but wrong
		{State: state, Len: cipher.KeyBits, Score: 1},
		{State: 0, Len: 10, Score: 100}, // not full length, must be skipped
	}

	got, ok := First(survivors, set, 0)
	if !ok {
		t.Fatalf("expected First to find the true key")
	}
	if got != key {
		t.Fatalf("First returned %s, want %s", got, key)
	}
}

func TestFirstReturnsFalseWhenNoneMatch(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xcafef00d)
	set := buildSet(t, key, uid)

	state := cipher.Load(key, uid, set.At(0).IV)
	wrong := state ^ 1

	survivors := []candidate.Candidate{
		{State: wrong, Len: cipher.KeyBits, Score: 5},
	}

	if _, ok := First(survivors, set, 0); ok {
		t.Fatalf("expected no match among only-wrong candidates")
	}
}
