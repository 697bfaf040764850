package cipher

// FeedbackTaps lists the fixed subset of state-bit positions XORed together
// to produce each new feedback bit. Like FilterTaps, this is a stable
// cipher-primitive constant shared with the keystream simulator.
var FeedbackTaps = []int{0, 2, 3, 6, 7, 8, 16, 22, 23, 26, 30, 41, 42, 43, 46, 47}

// stateMask keeps the 48-bit register confined to its low 48 bits.
const stateMask = (uint64(1) << 48) - 1

// feedback computes the new bit fed into the register from the current
// 48-bit content x.
func feedback(x uint64) uint64 {
	var v uint64
	for _, t := range FeedbackTaps {
		v ^= bitAt(x, t)
	}
	return v
}

// shiftIn inserts newBit at the register's newest position (bit 0),
// discarding the oldest bit (bit 47).
func shiftIn(x, newBit uint64) uint64 {
	return ((x << 1) | newBit) & stateMask
}
