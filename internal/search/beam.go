// Package search drives the beam over the 48 bit positions of HiTag2's
// post-load register: each step extends every surviving candidate by one bit,
// scores the children, and prunes back down to the configured beam width.
package search

import (
	"context"
	"sort"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/dispatch"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

// Stage names one of the four states a beam step passes through, reported
// to an observer so callers (logging, the progress API) can watch a run
// advance without coupling to the engine's internals.
type Stage int

const (
	Extending Stage = iota
	Scoring
	Pruning
	Advanced
)

func (s Stage) String() string {
	switch s {
	case Extending:
		return "extending"
	case Scoring:
		return "scoring"
	case Pruning:
		return "pruning"
	case Advanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Observer is notified once per (step, stage) transition. beam is the
// current beam contents at that point in the step; implementations must
// not retain or mutate it past the call.
type Observer func(step int, stage Stage, beam []candidate.Candidate)

// noop is used when a caller passes a nil Observer.
func noop(int, Stage, []candidate.Candidate) {}

// Engine runs the beam search for one observation set.
type Engine struct {
	beam    *candidate.Beam
	set     *obs.Set
	epsilon float64
	workers int
}

// New constructs an Engine with a beam of width t, fanning each step's
// extension work across workers goroutines (0 meaning GOMAXPROCS).
func New(t, workers int, set *obs.Set, epsilon float64) *Engine {
	return &Engine{
		beam:    candidate.NewBeam(t),
		set:     set,
		epsilon: epsilon,
		workers: workers,
	}
}

// Run drives the beam through all cipher.KeyBits steps, returning the
// final surviving candidates ordered best-first. observe may be nil.
func (e *Engine) Run(ctx context.Context, observe Observer) ([]candidate.Candidate, error) {
	if observe == nil {
		observe = noop
	}

	e.beam.Seed()
	for step := 1; step <= cipher.KeyBits; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parent := e.beam.Current()
		observe(step, Extending, parent)

		children, err := dispatch.Extend(ctx, parent, e.set, e.epsilon, e.workers, e.beam.Next())
		if err != nil {
			return nil, err
		}
		observe(step, Scoring, children)

		pruned := prune(children, e.beam.Limit())
		observe(step, Pruning, pruned)

		e.beam.SetNext(pruned)
		observe(step, Advanced, e.beam.Current())
	}
	return e.beam.Current(), nil
}

// prune keeps the top-limit candidates by candidate.Less. Every step's
// pre-prune count is already bounded by 2*limit (2T children of at most T
// parents), so a direct sort over that small, fixed-size slice is cheaper
// than maintaining a separate partial-selection structure; this is the
// "already fits in one pass" case and is the only case the beam ever hits.
func prune(children []candidate.Candidate, limit int) []candidate.Candidate {
	sort.Slice(children, func(i, j int) bool {
		return candidate.Less(children[i], children[j])
	})
	if len(children) > limit {
		children = children[:limit]
	}
	return children
}
