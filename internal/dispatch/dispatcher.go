// Package dispatch fans a beam-search step's extend-and-score work out
// across worker goroutines, one contiguous slice of the parent beam per
// worker, each writing into its own disjoint region of the child buffer.
//
// This generalizes a per-index WaitGroup fan-out (one goroutine per
// independent unit of work, joined before continuing) to a configurable
// worker count over a variable-length beam using errgroup.
package dispatch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/corr"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

// Workers returns n if positive, else runtime.GOMAXPROCS(0).
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// partition splits [0, total) into at most workers contiguous, roughly
// equal ranges; empty ranges are omitted for small beams.
func partition(total, workers int) [][2]int {
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}
	ranges := make([][2]int, 0, workers)
	base := total / workers
	rem := total % workers
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		ranges = append(ranges, [2]int{start, start + size})
		start += size
	}
	return ranges
}

// Extend produces every one-bit child of every candidate in parent,
// scoring each against set, and writes the results into out. out must have
// capacity >= 2*len(parent); Extend resets it to length 2*len(parent).
// Work is partitioned across workers goroutines, each owning a disjoint
// slice of out, so no synchronization is needed on the hot path.
func Extend(ctx context.Context, parent []candidate.Candidate, set *obs.Set, epsilon float64, workers int, out []candidate.Candidate) ([]candidate.Candidate, error) {
	n := len(parent)
	out = out[:2*n]

	ranges := partition(n, Workers(workers))
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		lo, hi := r[0], r[1]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				extendOne(parent[i], set, epsilon, out[2*i:2*i+2])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// extendOne writes the two one-bit children of parent (appending a 0 then
// a 1 at state-bit position parent.Len) into dst, which must have length 2.
func extendOne(parent candidate.Candidate, set *obs.Set, epsilon float64, dst []candidate.Candidate) {
	for bit := uint64(0); bit < 2; bit++ {
		child := candidate.Candidate{
			State: parent.State | (bit << uint(parent.Len)),
			Len:   parent.Len + 1,
		}
		child.Score = corr.Score(child, set, epsilon)
		dst[bit] = child
	}
}
