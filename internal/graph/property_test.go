package graph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/diffflow/internal/multiset"
)

// TestRandomEventSequences drives a map+consolidate pipeline with
// randomized batches under the input discipline (frontiers monotone,
// versions covered, fixed dimension) and checks the universal
// invariants against a reference model:
//   - the frontier sequence at the output is non-decreasing
//   - the net output content equals the mapped net input content
//   - the signed multiplicity sum is conserved through map
func TestRandomEventSequences(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))

			g, err := New(0, WithLogger(quietLogger()))
			require.NoError(t, err)
			input := NewInput[int](g)
			out := &capture[int]{}
			Map(&input.Stream, func(x int) int { return x + 5 }).
				Consolidate().
				Output(out.observe)
			require.NoError(t, g.Finalize())

			model := make(map[string]int)
			sentSum := 0
			frontier := 0
			maxVersion := 0
			for i := 0; i < 60; i++ {
				if rng.Intn(3) == 0 {
					frontier += rng.Intn(3)
					require.NoError(t, input.SendFrontier(frontier))
					continue
				}
				at := frontier + rng.Intn(3)
				if at > maxVersion {
					maxVersion = at
				}
				batch := make([]multiset.Entry[int], 1+rng.Intn(4))
				for j := range batch {
					record := rng.Intn(6)
					mult := rng.Intn(5) - 2
					batch[j] = multiset.Entry[int]{Record: record, Mult: mult}
					model[multiset.RecordKey(record+5)] += mult
					sentSum += mult
				}
				require.NoError(t, input.SendData(at, batch))
				if rng.Intn(2) == 0 {
					require.NoError(t, g.Step())
				}
			}
			require.NoError(t, input.SendFrontier(maxVersion+1))
			require.NoError(t, g.Run())

			for k, mult := range model {
				if mult == 0 {
					delete(model, k)
				}
			}
			assert.Equal(t, model, out.recordContent(), "output content must match the reference model")

			gotSum := 0
			for _, msg := range out.msgs {
				if msg.Type != MessageData {
					continue
				}
				for _, e := range msg.Data.Collection.Entries() {
					gotSum += e.Mult
				}
			}
			assert.Equal(t, sentSum, gotSum, "map must conserve the signed multiplicity sum")
			assertFrontiersMonotone(t, out)
		})
	}
}

// TestRandomCountMaintenance drives the count operator with randomized
// keyed insertions and retractions and checks the maintained view
// against a reference model: per key, exactly the final total survives.
func TestRandomCountMaintenance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	g, err := New(0, WithLogger(quietLogger()))
	require.NoError(t, err)
	input := NewInput[multiset.KV[string, string]](g)
	out := &capture[multiset.KV[string, int]]{}
	Count(&input.Stream).Output(out.observe)
	require.NoError(t, g.Finalize())

	keys := []string{"a", "b", "c"}
	totals := make(map[string]int)
	frontier := 0
	maxVersion := 0
	for i := 0; i < 40; i++ {
		if rng.Intn(4) == 0 {
			frontier += rng.Intn(2)
			require.NoError(t, input.SendFrontier(frontier))
			require.NoError(t, g.Run())
			continue
		}
		at := frontier + rng.Intn(2)
		if at > maxVersion {
			maxVersion = at
		}
		key := keys[rng.Intn(len(keys))]
		mult := 1 + rng.Intn(3)
		if rng.Intn(3) == 0 && totals[key] >= mult {
			mult = -mult
		}
		totals[key] += mult
		require.NoError(t, input.SendData(at, []multiset.Entry[multiset.KV[string, string]]{
			{Record: multiset.KV[string, string]{Key: key, Value: key}, Mult: mult},
		}))
	}
	require.NoError(t, input.SendFrontier(maxVersion+1))
	require.NoError(t, g.Run())

	want := make(map[string]int)
	for key, total := range totals {
		want[multiset.RecordKey(multiset.KV[string, int]{Key: key, Value: total})] = 1
	}
	assert.Equal(t, want, out.recordContent())
	assertFrontiersMonotone(t, out)
}

// TestIndependentGraphsInParallel verifies that graphs share no state:
// several graphs built and run concurrently each produce their own
// result. Each graph is driven entirely by its own goroutine, matching
// the single-owner stepping model.
func TestIndependentGraphsInParallel(t *testing.T) {
	var eg errgroup.Group
	for i := 0; i < 4; i++ {
		shift := i + 1
		eg.Go(func() error {
			g, err := New(0, WithLogger(quietLogger()))
			if err != nil {
				return err
			}
			input := NewInput[int](g)
			out := &capture[int]{}
			Map(&input.Stream, func(x int) int { return x + shift }).Output(out.observe)
			if err := g.Finalize(); err != nil {
				return err
			}
			if err := input.SendData(1, []multiset.Entry[int]{{Record: 10, Mult: 1}}); err != nil {
				return err
			}
			if err := input.SendFrontier(2); err != nil {
				return err
			}
			if err := g.Run(); err != nil {
				return err
			}
			want := multiset.RecordKey(10 + shift)
			if out.recordContent()[want] != 1 {
				return fmt.Errorf("graph %d: unexpected content %v", shift, out.recordContent())
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
}
