// Package cipher implements the HiTag2 stream cipher primitives needed by
// the correlation attack: the nonlinear output filter, the linear feedback
// recurrence, and the (key, uid, iv) state-loading schedule. These are pure
// functions with no allocation on the hot path.
package cipher

// AGroup1/AGroup2 are the two disjoint 4-bit slices read by FA.
// BGroup1/BGroup2 are the two disjoint 4-bit slices read by FB.
// DTaps are folded in directly (XOR) after FC, bringing the filter's total
// input count to 20 state-bit positions as required by the cipher contract.
// These are exported so internal/corr can replay the same filter
// structure while tracking per-bit determinacy instead of concrete values.
var (
	AGroup1 = [4]int{0, 3, 7, 12}
	AGroup2 = [4]int{18, 21, 26, 29}
	BGroup1 = [4]int{5, 9, 14, 17}
	BGroup2 = [4]int{23, 27, 33, 36}
	DTaps   = [4]int{39, 41, 44, 46}
)

// FilterTaps lists, in a stable order, all 20 state-bit positions the
// nonlinear filter f depends on. Callers that need to reason about which
// output bits are "fully determined" by a partial state walk this slice.
var FilterTaps = buildFilterTaps()

func buildFilterTaps() []int {
	taps := make([]int, 0, 20)
	taps = append(taps, AGroup1[:]...)
	taps = append(taps, AGroup2[:]...)
	taps = append(taps, BGroup1[:]...)
	taps = append(taps, BGroup2[:]...)
	taps = append(taps, DTaps[:]...)
	return taps
}

// FA and FB are the two disjoint 4-to-1 (16-entry) nonlinear lookup tables
// applied to the a/b slices; FC is the final 4-to-1 lookup combining their
// four outputs. These are cipher-primitive constants: the wire contract
// with the keystream simulator depends on reproducing them exactly.
var (
	FA = [16]byte{0, 0, 1, 1, 0, 1, 1, 0, 1, 0, 0, 1, 1, 1, 0, 0}
	FB = [16]byte{1, 1, 0, 0, 1, 0, 1, 1, 0, 1, 1, 0, 0, 0, 1, 1}
	FC = [16]byte{0, 1, 1, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0}
)

// bitAt returns bit i of x as a 0/1 uint64.
func bitAt(x uint64, i int) uint64 {
	return (x >> uint(i)) & 1
}

// nibble reads the 4 tap positions of taps from x and packs them into a
// 4-bit lookup index, tap[0] as the index's LSB.
func nibble(x uint64, taps [4]int) uint64 {
	var v uint64
	for j, t := range taps {
		v |= bitAt(x, t) << uint(j)
	}
	return v
}

// EvalFilter evaluates the HiTag2 output filter on the 48-bit register x.
// Exported so internal/verify can replay the load schedule concretely when
// inverting a recovered state back into a key.
func EvalFilter(x uint64) uint64 {
	return f(x)
}

// f evaluates the HiTag2 output filter on the 48-bit register x.
func f(x uint64) uint64 {
	a1 := FA[nibble(x, AGroup1)]
	a2 := FA[nibble(x, AGroup2)]
	b1 := FB[nibble(x, BGroup1)]
	b2 := FB[nibble(x, BGroup2)]
	cIdx := uint64(a1) | uint64(a2)<<1 | uint64(b1)<<2 | uint64(b2)<<3
	out := uint64(FC[cIdx])
	for _, t := range DTaps {
		out ^= bitAt(x, t)
	}
	return out
}
