// Package corr implements the correlation attack's scoring engine: for a
// candidate partial cipher state and one observation, it estimates a
// log-likelihood contribution from the keystream bits that are already
// fully determined by the candidate's known state bits.
//
// This is the direct generalization of a log-likelihood-ratio accumulator
// (additive per-evidence scoring, "only count what's actually observable")
// to HiTag2 state-bit prediction instead of Bitcoin-address linkage.
package corr

import (
	"math"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

// negInf stands in for log(0): a finite, very-negative constant so a
// disagreement at epsilon==0 (or an agreement at epsilon==1) never
// propagates an actual -Inf/NaN through score accumulation.
const negInf = -1e12

// logOrFloor returns log(x), floored at negInf instead of -Inf for x<=0.
func logOrFloor(x float64) float64 {
	if x <= 0 {
		return negInf
	}
	return math.Log(x)
}

// register tracks, for each of the cipher's 48 state-bit positions, whether
// its value is fully determined by the candidate's known bits (det) and,
// when it is, what that value is (val). When det[i] is false, val[i] is a
// zero placeholder and must not be read by callers.
type register struct {
	det [48]bool
	val [48]byte
}

// fromCandidate seeds a register directly from a candidate's known bits: a
// candidate of length Len fixes state-bit positions 0..Len-1, leaving the
// rest undetermined. This is the candidate's whole contribution — unlike an
// earlier version of this scorer, nothing here replays HiTag2's nonlinear
// load schedule (which couples every output bit to the *entire* key before
// any of it is determined); the feedback/filter taps below are the only
// thing that ever grows the determined set from here.
func fromCandidate(cand candidate.Candidate) register {
	var r register
	limit := cand.Len
	if limit > 48 {
		limit = 48
	}
	for i := 0; i < limit; i++ {
		r.det[i] = true
		r.val[i] = byte((cand.State >> uint(i)) & 1)
	}
	return r
}

// shiftIn inserts a new (determined, value) pair at position 0, discarding
// position 47 — the determinacy-tracking analogue of cipher's shiftIn.
func (r *register) shiftIn(det bool, val byte) {
	for i := 47; i > 0; i-- {
		r.det[i] = r.det[i-1]
		r.val[i] = r.val[i-1]
	}
	r.det[0] = det
	r.val[0] = val
}

// nibble evaluates whether all 4 tap positions are determined, and if so,
// packs their values into a 4-bit lookup index (taps[0] as the LSB).
func (r *register) nibble(taps [4]int) (det bool, idx byte) {
	det = true
	for j, t := range taps {
		if !r.det[t] {
			det = false
		}
		idx |= r.val[t] << uint(j)
	}
	return det, idx
}

// filterOutput replays cipher.EvalFilter symbolically: the output is
// determined iff every one of the 20 filter-tap positions is determined.
func (r *register) filterOutput() (det bool, val byte) {
	a1det, a1idx := r.nibble(cipher.AGroup1)
	a2det, a2idx := r.nibble(cipher.AGroup2)
	b1det, b1idx := r.nibble(cipher.BGroup1)
	b2det, b2idx := r.nibble(cipher.BGroup2)

	a1 := cipher.FA[a1idx]
	a2 := cipher.FA[a2idx]
	b1 := cipher.FB[b1idx]
	b2 := cipher.FB[b2idx]
	cIdx := a1 | a2<<1 | b1<<2 | b2<<3
	out := cipher.FC[cIdx]

	det = a1det && a2det && b1det && b2det
	for _, t := range cipher.DTaps {
		if !r.det[t] {
			det = false
		}
		out ^= r.val[t]
	}
	return det, out
}

// feedbackOutput replays cipher's linear feedback symbolically: determined
// iff every tap in the (XOR) sum is determined.
func (r *register) feedbackOutput() (det bool, val byte) {
	det = true
	for _, t := range cipher.FeedbackTaps {
		if !r.det[t] {
			det = false
		}
		val ^= r.val[t]
	}
	return det, val
}

// ScoreOne returns the log-likelihood contribution of a single observation
// for the given candidate: agreement at a fully-determined output position
// contributes log(1-epsilon), disagreement contributes log(epsilon), and
// positions that aren't yet fully determined contribute 0. Determinacy
// propagates forward from the candidate's known bits purely through the
// filter and feedback taps — the only two relations that hold regardless of
// which (uid, iv) eventually turns this state into a verified key — so a
// longer candidate can only add determined positions, never remove one.
// Every contribution is a log of a probability (at most 0), so extending by
// one bit can only lower or hold a candidate's score, never raise it.
func ScoreOne(cand candidate.Candidate, observation obs.Observation, window int, epsilon float64) float64 {
	r := fromCandidate(cand)

	logAgree := logOrFloor(1 - epsilon)
	logDisagree := logOrFloor(epsilon)

	var score float64
	for j := 0; j < window; j++ {
		det, predicted := r.filterOutput()
		if det {
			if predicted == observation.Keystream[j] {
				score += logAgree
			} else {
				score += logDisagree
			}
		}

		fbDet, fbVal := r.feedbackOutput()
		r.shiftIn(fbDet, fbVal)
	}
	return score
}

// Score sums ScoreOne across every observation in the set, producing a
// candidate's full correlation score.
func Score(cand candidate.Candidate, set *obs.Set, epsilon float64) float64 {
	var total float64
	window := set.Window()
	for i := 0; i < set.Len(); i++ {
		total += ScoreOne(cand, set.At(i), window, epsilon)
	}
	return total
}
