package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// intNode keys an integer by itself, the shape Distinct needs inside a
// loop body.
type intNode = multiset.KV[int, int]

func nodes(values ...int) []multiset.Entry[intNode] {
	out := make([]multiset.Entry[intNode], len(values))
	for i, v := range values {
		out[i] = multiset.Entry[intNode]{Record: intNode{Key: v, Value: v}, Mult: 1}
	}
	return out
}

// doublingBody doubles every reached value, merges with the loop input,
// and keeps results at or under limit. Distinct stops the circulation
// of rediscovered values, which is what lets the loop terminate.
func doublingBody(limit int) func(*Stream[intNode]) *Stream[intNode] {
	return func(reached *Stream[intNode]) *Stream[intNode] {
		doubled := Map(reached, func(kv intNode) intNode {
			return intNode{Key: kv.Key * 2, Value: kv.Value * 2}
		})
		merged := reached.Concat(doubled).Filter(func(kv intNode) bool {
			return kv.Key <= limit
		})
		return Distinct(merged).Consolidate()
	}
}

// TestIterateToFixpoint is the fixpoint scenario: starting from {1},
// closing under doubling below 50 yields {1,2,4,8,16,32} at the outer
// version once the loop terminates.
func TestIterateToFixpoint(t *testing.T) {
	g, err := New(0, WithLogger(quietLogger()))
	require.NoError(t, err)
	input := NewInput[intNode](g)
	out := &capture[intNode]{}
	Iterate(&input.Stream, doublingBody(50)).Consolidate().Output(out.observe)
	require.NoError(t, g.Finalize())

	require.NoError(t, input.SendData(0, nodes(1)))
	require.NoError(t, input.SendFrontier(1))
	require.NoError(t, g.Run())

	want := map[string]int{}
	for _, v := range []int{1, 2, 4, 8, 16, 32} {
		want[multiset.RecordKey(intNode{Key: v, Value: v})] = 1
	}
	assert.Equal(t, want, out.recordContent())

	// Everything surfaced at the outer version, not at loop versions.
	for _, msg := range out.msgs {
		if msg.Type == MessageData {
			assert.Equal(t, 1, msg.Data.Version.Dim(), "egress must truncate loop versions")
			assert.True(t, msg.Data.Version.Equals(version.MustNew(0)))
		}
	}
	assertFrontiersMonotone(t, out)
}

// TestIterateIncrementalSeed verifies that a second seed arriving at a
// later outer version flows through the already-terminated loop and
// extends the closure incrementally.
func TestIterateIncrementalSeed(t *testing.T) {
	g, _ := New(0, WithLogger(quietLogger()))
	input := NewInput[intNode](g)
	out := &capture[intNode]{}
	Iterate(&input.Stream, doublingBody(50)).Consolidate().Output(out.observe)
	require.NoError(t, g.Finalize())

	require.NoError(t, input.SendData(0, nodes(1)))
	require.NoError(t, input.SendFrontier(1))
	require.NoError(t, g.Run())

	// A new seed at outer version 1: 3 contributes 3,6,12,24,48.
	require.NoError(t, input.SendData(1, nodes(3)))
	require.NoError(t, input.SendFrontier(2))
	require.NoError(t, g.Run())

	want := map[string]int{}
	for _, v := range []int{1, 2, 4, 8, 16, 32, 3, 6, 12, 24, 48} {
		want[multiset.RecordKey(intNode{Key: v, Value: v})] = 1
	}
	assert.Equal(t, want, out.recordContent())
	assertFrontiersMonotone(t, out)
}

// TestIterateEmptySeed verifies that a loop over nothing terminates
// immediately with no output.
func TestIterateEmptySeed(t *testing.T) {
	g, _ := New(0, WithLogger(quietLogger()))
	input := NewInput[intNode](g)
	out := &capture[intNode]{}
	Iterate(&input.Stream, doublingBody(50)).Output(out.observe)
	require.NoError(t, g.Finalize())

	require.NoError(t, input.SendFrontier(1))
	require.NoError(t, g.Run())
	assert.Empty(t, out.recordContent())
	assertFrontiersMonotone(t, out)
}

// TestFeedbackToleranceOption verifies the option plumbs through and a
// larger tolerance still terminates.
func TestFeedbackToleranceOption(t *testing.T) {
	g, err := New(0, WithLogger(quietLogger()), WithFeedbackTolerance(5))
	require.NoError(t, err)
	input := NewInput[intNode](g)
	out := &capture[intNode]{}
	Iterate(&input.Stream, doublingBody(10)).Consolidate().Output(out.observe)
	require.NoError(t, g.Finalize())

	require.NoError(t, input.SendData(0, nodes(1)))
	require.NoError(t, input.SendFrontier(1))
	require.NoError(t, g.Run())

	want := map[string]int{}
	for _, v := range []int{1, 2, 4, 8} {
		want[multiset.RecordKey(intNode{Key: v, Value: v})] = 1
	}
	assert.Equal(t, want, out.recordContent())
}
