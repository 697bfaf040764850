package dispatch

import (
	"context"
	"testing"

	"github.com/rawblock/hitag2-corrattack/internal/candidate"
	"github.com/rawblock/hitag2-corrattack/internal/cipher"
	"github.com/rawblock/hitag2-corrattack/internal/obs"
)

func buildSet(t *testing.T, key cipher.Key, uid uint32) *obs.Set {
	t.Helper()
	window := 16
	observations := []obs.Observation{
		{IV: 1, Keystream: cipher.Keystream(key, uid, 1, window)},
		{IV: 2, Keystream: cipher.Keystream(key, uid, 2, window)},
	}
	set, err := obs.NewSet(uid, window, observations)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestPartitionCoversAllIndicesExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ total, workers int }{
		{0, 4}, {1, 4}, {5, 1}, {5, 3}, {7, 8}, {100, 7},
	} {
		seen := make([]bool, tc.total)
		for _, r := range partition(tc.total, tc.workers) {
			for i := r[0]; i < r[1]; i++ {
				if seen[i] {
					t.Fatalf("index %d covered twice for total=%d workers=%d", i, tc.total, tc.workers)
				}
				seen[i] = true
			}
		}
		for i, ok := range seen {
			if !ok {
				t.Fatalf("index %d never covered for total=%d workers=%d", i, tc.total, tc.workers)
			}
		}
	}
}

func TestExtendProducesTwoChildrenPerParent(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xdeadbeef)
	set := buildSet(t, key, uid)

	parent := []candidate.Candidate{
		{State: 0, Len: 3},
		{State: 5, Len: 3},
	}
	out := make([]candidate.Candidate, 0, 2*len(parent))
	result, err := Extend(context.Background(), parent, set, 0.3, 2, out[:cap(out)])
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if len(result) != 4 {
		t.Fatalf("expected 4 children, got %d", len(result))
	}
	for i, p := range parent {
		c0, c1 := result[2*i], result[2*i+1]
		if c0.Len != p.Len+1 || c1.Len != p.Len+1 {
			t.Fatalf("children must extend parent length by 1")
		}
		if c0.State != p.State || c1.State != p.State|(1<<uint(p.Len)) {
			t.Fatalf("children must set exactly the new bit: got %x and %x from parent %x", c0.State, c1.State, p.State)
		}
	}
}

func TestExtendMatchesSequentialScoring(t *testing.T) {
	key := cipher.Key(0x0123456789ab)
	uid := uint32(0xdeadbeef)
	set := buildSet(t, key, uid)

	parent := []candidate.Candidate{{State: 0, Len: 0}}
	out := make([]candidate.Candidate, 2)
	oneWorker, err := Extend(context.Background(), parent, set, 0.3, 1, out)
	if err != nil {
		t.Fatalf("Extend(1 worker): %v", err)
	}

	out2 := make([]candidate.Candidate, 2)
	manyWorkers, err := Extend(context.Background(), parent, set, 0.3, 8, out2)
	if err != nil {
		t.Fatalf("Extend(8 workers): %v", err)
	}

	for i := range oneWorker {
		if oneWorker[i] != manyWorkers[i] {
			t.Fatalf("worker count must not affect results: %+v vs %+v", oneWorker[i], manyWorkers[i])
		}
	}
}
