// Package index implements the per-key, per-version log of value changes
// that diffflow's stateful operators are built on.
// See doc.go for complete package documentation.
package index

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// JoinType selects which unmatched keys, if any, a join includes.
type JoinType string

const (
	// JoinInner emits only keys present in both indexes.
	JoinInner JoinType = "inner"

	// JoinLeft additionally emits left-side keys with no right match,
	// padded with a nil right side.
	JoinLeft JoinType = "left"

	// JoinRight additionally emits right-side keys with no left match,
	// padded with a nil left side.
	JoinRight JoinType = "right"

	// JoinFull emits unmatched keys of both sides.
	JoinFull JoinType = "full"
)

// VersionedDelta is one version's worth of join output.
type VersionedDelta[T any] struct {
	// Version the delta applies at.
	Version version.Version

	// Delta is the change batch, unconsolidated.
	Delta multiset.MultiSet[T]
}

// Join computes the per-key relational join of two indexes.
//
// For every key present in both sides, every pair of version logs
// contributes entries at the join (pointwise max) of the two versions:
// each left entry (lv, lm) paired with each right entry (rv, rm) yields
// ((key, (lv, rv)), lm·rm). Multiplying multiplicities is what makes the
// join correct under retraction: a retracted left row (lm = -1) retracts
// every pair it previously produced.
//
// The smaller index is iterated to minimize work; join output is
// symmetric up to swapping pair sides.
//
// Outer variants include unmatched keys with the absent side nil; such
// entries are emitted at their own versions, joined with nothing.
//
// The deltas are returned earliest-version-first under the deterministic
// total order and are not consolidated; callers consolidate downstream.
func Join[K comparable, L, R any](
	left *Index[K, L],
	right *Index[K, R],
	typ JoinType,
) []VersionedDelta[multiset.KV[K, multiset.Pair[L, R]]] {
	collector := newDeltaCollector[multiset.KV[K, multiset.Pair[L, R]]]()

	matched := func(key K, leftByVersion map[string]*versionLog[L], rightByVersion map[string]*versionLog[R]) {
		for _, ll := range leftByVersion {
			for _, rl := range rightByVersion {
				at := ll.at.Join(rl.at)
				for _, le := range ll.values {
					for _, re := range rl.values {
						collector.add(at, multiset.Entry[multiset.KV[K, multiset.Pair[L, R]]]{
							Record: multiset.KV[K, multiset.Pair[L, R]]{Key: key, Value: multiset.PairOf(le.Record, re.Record)},
							Mult:   le.Mult * re.Mult,
						})
					}
				}
			}
		}
	}

	// Iterate the smaller side for the matched keys.
	if len(left.logs) <= len(right.logs) {
		for key, lbv := range left.logs {
			if rbv, ok := right.logs[key]; ok {
				matched(key, lbv, rbv)
			}
		}
	} else {
		for key, rbv := range right.logs {
			if lbv, ok := left.logs[key]; ok {
				matched(key, lbv, rbv)
			}
		}
	}

	if typ == JoinLeft || typ == JoinFull {
		for key, lbv := range left.logs {
			if _, ok := right.logs[key]; ok {
				continue
			}
			for _, ll := range lbv {
				for _, le := range ll.values {
					collector.add(ll.at, multiset.Entry[multiset.KV[K, multiset.Pair[L, R]]]{
						Record: multiset.KV[K, multiset.Pair[L, R]]{Key: key, Value: multiset.LeftOnly[L, R](le.Record)},
						Mult:   le.Mult,
					})
				}
			}
		}
	}
	if typ == JoinRight || typ == JoinFull {
		for key, rbv := range right.logs {
			if _, ok := left.logs[key]; ok {
				continue
			}
			for _, rl := range rbv {
				for _, re := range rl.values {
					collector.add(rl.at, multiset.Entry[multiset.KV[K, multiset.Pair[L, R]]]{
						Record: multiset.KV[K, multiset.Pair[L, R]]{Key: key, Value: multiset.RightOnly[L, R](re.Record)},
						Mult:   re.Mult,
					})
				}
			}
		}
	}

	return collector.sorted()
}

// deltaCollector groups join output entries by version.
type deltaCollector[T any] struct {
	byVersion map[string]*versionAccum[T]
}

type versionAccum[T any] struct {
	at      version.Version
	entries []multiset.Entry[T]
}

func newDeltaCollector[T any]() *deltaCollector[T] {
	return &deltaCollector[T]{byVersion: make(map[string]*versionAccum[T])}
}

func (c *deltaCollector[T]) add(at version.Version, entry multiset.Entry[T]) {
	vk := at.Key()
	acc, ok := c.byVersion[vk]
	if !ok {
		acc = &versionAccum[T]{at: at}
		c.byVersion[vk] = acc
	}
	acc.entries = append(acc.entries, entry)
}

// sorted returns the accumulated deltas earliest-version-first.
func (c *deltaCollector[T]) sorted() []VersionedDelta[T] {
	accums := make([]*versionAccum[T], 0, len(c.byVersion))
	for _, acc := range c.byVersion {
		accums = append(accums, acc)
	}
	slices.SortFunc(accums, func(a, b *versionAccum[T]) int {
		return a.at.CompareTotal(b.at)
	})
	out := make([]VersionedDelta[T], len(accums))
	for i, acc := range accums {
		out[i] = VersionedDelta[T]{Version: acc.at, Delta: multiset.New(acc.entries...)}
	}
	return out
}
