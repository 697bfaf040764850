// Package candidate holds the beam-search's unit of work: a partial 48-bit
// initial-state guess plus its accumulated correlation score, and the
// double-buffered arena the beam lives in.
package candidate

// Candidate is a partial initial-state guess: its low Len bits are fixed to
// State, its remaining (48-Len) bits are unknown. Score is the summed
// log-likelihood contribution from every observation's fully-determined
// output positions.
type Candidate struct {
	State uint64
	Len   int
	Score float64
}

// Less implements the beam's deterministic ordering: higher score first,
// ties broken by smaller State. Used both to rank survivors and to make
// pruning/verification order independent of worker count.
func Less(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.State < b.State
}

// Beam is a double-buffered, capacity-bounded arena of candidates all
// sharing the same Len. Extending the beam writes children into the other
// buffer; Swap exchanges which buffer is "current" without copying.
type Beam struct {
	bufs  [2][]Candidate
	cur   int
	limit int // T, the maximum beam width
}

// NewBeam allocates both buffers at capacity 2*limit up front, per the
// core's memory bound: extension never needs to grow a buffer mid-step.
func NewBeam(limit int) *Beam {
	return &Beam{
		bufs: [2][]Candidate{
			make([]Candidate, 0, 2*limit),
			make([]Candidate, 0, 2*limit),
		},
		limit: limit,
	}
}

// Limit returns T, the configured maximum beam width.
func (b *Beam) Limit() int { return b.limit }

// Current returns the current beam's candidates (read-only during scoring).
func (b *Beam) Current() []Candidate { return b.bufs[b.cur] }

// Next returns the other buffer, truncated to zero length and ready to
// receive this step's children.
func (b *Beam) Next() []Candidate { return b.bufs[1-b.cur][:0] }

// SetNext replaces the contents of the "other" buffer (after pruning) and
// advances k by swapping buffers.
func (b *Beam) SetNext(children []Candidate) {
	b.bufs[1-b.cur] = children
	b.cur = 1 - b.cur
}

// Seed resets the beam to the initial state: a single candidate of length
// 0 and score 0.
func (b *Beam) Seed() {
	b.bufs[b.cur] = append(b.bufs[b.cur][:0], Candidate{State: 0, Len: 0, Score: 0})
}
