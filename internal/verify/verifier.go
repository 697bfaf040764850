// Package verify confirms a beam-search survivor against the actual
// keystream: the beam's scoring is a statistical proxy, so every candidate
// that reaches full length must still be checked bit-for-bit before it is
// accepted as the recovered key.
package verify

import (
	"sort"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

// stateMask confines a 48-bit register to its low 48 bits, matching
// cipher's own internal mask.
const stateMask = (uint64(1) << 48) - 1

// CandidateKeys enumerates every 48-bit key whose cipher.Load(key, uid, iv)
// reproduces the low 32 bits of c's recovered state. c must have Len ==
// cipher.KeyBits. Load always leaves uid's low 16 bits in state bits
// 32..47, so those bits of c.State are not read: when they differ from
// uid's, no returned key reproduces c.State exactly.
//
// Given the key's top 16 bits, the recovered state pins its low 32 bits:
// HiTag2's load schedule absorbs each of those bits through the filter one
// round at a time, and each round's resulting bit lands at a fixed, known
// position of the final state, so running the same filter forward against
// the target state's bits (instead of the key's) recovers the round's key
// bit directly. The key's top 16 bits, though, are placed into the register
// directly rather than through the filter and shifted out during the
// rounds, so the state alone can't recover them — every one of their 65536
// combinations is tried, the same guess-then-derive shape as a
// meet-in-the-middle search's two enumerated halves.
func CandidateKeys(c candidate.Candidate, uid, iv uint32) []cipher.Key {
	keys := make([]cipher.Key, 0, 1<<16)
	for top16 := uint64(0); top16 < 1<<16; top16++ {
		x := uint64(uid) | (top16 << 32)
		var low32 uint64
		for round := 0; round < 32; round++ {
			out := cipher.EvalFilter(x)
			newBit := (c.State >> uint(31-round)) & 1
			ivBit := uint64((iv >> uint(31-round)) & 1)
			keyBit := newBit ^ out ^ ivBit
			low32 |= keyBit << uint(31-round)
			x = ((x << 1) | newBit) & stateMask
		}
		keys = append(keys, cipher.Key((top16<<32)|low32))
	}
	return keys
}

// Matches reports whether key reproduces every observation in set exactly.
func Matches(key cipher.Key, set *obs.Set) bool {
	for i := 0; i < set.Len(); i++ {
		o := set.At(i)
		ks := cipher.Keystream(key, set.UID(), o.IV, set.Window())
		for j, bit := range ks {
			if bit != o.Keystream[j] {
				return false
			}
		}
	}
	return true
}

// First checks every full-length (Len == cipher.KeyBits) candidate in
// survivors, highest-score-first, and returns the key of the first one
// that reproduces every observation exactly. ok is false if none do.
// maxAttempts caps how many candidates are checked before giving up; 0
// means unbounded (check the entire beam). Each candidate's recovered state
// is anchored against set's uid and its first observation's iv to derive
// the candidate keys to try (see CandidateKeys); every other observation in
// set still has to match bit-exactly before a key is accepted.
func First(survivors []candidate.Candidate, set *obs.Set, maxAttempts int) (key cipher.Key, ok bool) {
	ordered := make([]candidate.Candidate, 0, len(survivors))
	for _, c := range survivors {
		if c.Len == cipher.KeyBits {
			ordered = append(ordered, c)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return candidate.Less(ordered[i], ordered[j])
	})
	if maxAttempts > 0 && len(ordered) > maxAttempts {
		ordered = ordered[:maxAttempts]
	}

	anchorIV := set.At(0).IV
	for _, c := range ordered {
		for _, k := range CandidateKeys(c, set.UID(), anchorIV) {
			if Matches(k, set) {
				return k, true
			}
		}
	}
	return 0, false
}
