// Package multiset implements signed-multiplicity bags of records, the
// change-batch representation carried on every stream edge.
// See doc.go for complete package documentation.
package multiset

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// ErrNegativeMultiplicity is returned by the one-shot aggregations whose
// semantics are undefined over retractions (Min, Max, Distinct) when a
// record's consolidated multiplicity is negative.
//
// Usage pattern:
//
//	out, err := multiset.Distinct(m)
//	if errors.Is(err, multiset.ErrNegativeMultiplicity) {
//	    // The collection contained an unmatched retraction
//	}
var ErrNegativeMultiplicity = errors.New("negative multiplicity")

// Number constrains the value types the Sum aggregation accepts.
type Number interface {
	constraints.Integer | constraints.Float
}

// The functions below are one-shot aggregations over keyed collections,
// for programs that are not built as streaming dataflows. The streaming
// operators in the graph package reimplement the same semantics
// incrementally on top of the index; these compute a single snapshot.

// Reduce applies f to the grouped entries of every key and returns the
// keyed results. It is the general form Count and Sum derive from; Min,
// Max, and Distinct consolidate the input themselves.
//
// Behavior:
//   - Entries are grouped by structural key identity (RecordKey)
//   - f receives the group's (value, multiplicity) entries in input
//     order, including retractions; it returns the aggregated entries
//   - Keys iterate in a deterministic (key identity) order
func Reduce[K comparable, V, R any](
	m MultiSet[KV[K, V]],
	f func(values []Entry[V]) []Entry[R],
) MultiSet[KV[K, R]] {
	groups, order := groupByKey(m)
	var out []Entry[KV[K, R]]
	for _, gk := range order {
		g := groups[gk]
		for _, e := range f(g.values) {
			out = append(out, Entry[KV[K, R]]{
				Record: KV[K, R]{Key: g.key, Value: e.Record},
				Mult:   e.Mult,
			})
		}
	}
	return MultiSet[KV[K, R]]{entries: out}
}

// Count returns, per key, the number of values present: the sum of the
// key's multiplicities. Retractions subtract, so a fully retracted key
// counts zero.
func Count[K comparable, V any](m MultiSet[KV[K, V]]) MultiSet[KV[K, int]] {
	return Reduce(m, func(values []Entry[V]) []Entry[int] {
		total := 0
		for _, e := range values {
			total += e.Mult
		}
		return []Entry[int]{{Record: total, Mult: 1}}
	})
}

// Sum returns, per key, the multiplicity-weighted sum of the values.
func Sum[K comparable, V Number](m MultiSet[KV[K, V]]) MultiSet[KV[K, V]] {
	return Reduce(m, func(values []Entry[V]) []Entry[V] {
		var total V
		for _, e := range values {
			total += e.Record * V(e.Mult)
		}
		return []Entry[V]{{Record: total, Mult: 1}}
	})
}

// Min returns, per key, the smallest value present after consolidation.
//
// Returns ErrNegativeMultiplicity if any consolidated multiplicity is
// negative: the minimum over retractions is undefined.
func Min[K comparable, V constraints.Ordered](m MultiSet[KV[K, V]]) (MultiSet[KV[K, V]], error) {
	return pickPerKey(m, func(best, candidate V) bool { return candidate < best })
}

// Max returns, per key, the largest value present after consolidation.
//
// Returns ErrNegativeMultiplicity if any consolidated multiplicity is
// negative: the maximum over retractions is undefined.
func Max[K comparable, V constraints.Ordered](m MultiSet[KV[K, V]]) (MultiSet[KV[K, V]], error) {
	return pickPerKey(m, func(best, candidate V) bool { return candidate > best })
}

// Distinct returns each (key, value) present after consolidation exactly
// once, with multiplicity 1.
//
// Returns ErrNegativeMultiplicity if any consolidated multiplicity is
// negative: distinctness over retractions is undefined.
func Distinct[K comparable, V any](m MultiSet[KV[K, V]]) (MultiSet[KV[K, V]], error) {
	consolidated := m.Consolidate()
	out := make([]Entry[KV[K, V]], 0, len(consolidated.entries))
	for _, e := range consolidated.entries {
		if e.Mult < 0 {
			return MultiSet[KV[K, V]]{}, errors.Wrapf(ErrNegativeMultiplicity,
				"distinct over record %v with multiplicity %d", e.Record, e.Mult)
		}
		out = append(out, Entry[KV[K, V]]{Record: e.Record, Mult: 1})
	}
	return MultiSet[KV[K, V]]{entries: out}, nil
}

// group accumulates one key's entries during grouping.
type group[K comparable, V any] struct {
	key    K
	values []Entry[V]
}

// groupByKey splits a keyed MultiSet into per-key entry groups, returning
// the groups and a deterministic iteration order over them.
func groupByKey[K comparable, V any](m MultiSet[KV[K, V]]) (map[string]*group[K, V], []string) {
	groups := make(map[string]*group[K, V])
	for _, e := range m.entries {
		gk := RecordKey(e.Record.Key)
		g, ok := groups[gk]
		if !ok {
			g = &group[K, V]{key: e.Record.Key}
			groups[gk] = g
		}
		g.values = append(g.values, Entry[V]{Record: e.Record.Value, Mult: e.Mult})
	}
	order := make([]string, 0, len(groups))
	for gk := range groups {
		order = append(order, gk)
	}
	slices.Sort(order)
	return groups, order
}

// pickPerKey consolidates each key's values and selects one by the given
// preference, rejecting negative consolidated multiplicities.
func pickPerKey[K comparable, V any](
	m MultiSet[KV[K, V]],
	better func(best, candidate V) bool,
) (MultiSet[KV[K, V]], error) {
	consolidated := m.Consolidate()
	groups, order := groupByKey(consolidated)
	var out []Entry[KV[K, V]]
	for _, gk := range order {
		g := groups[gk]
		var best V
		found := false
		for _, e := range g.values {
			if e.Mult < 0 {
				return MultiSet[KV[K, V]]{}, errors.Wrapf(ErrNegativeMultiplicity,
					"aggregate over key %v value %v with multiplicity %d", g.key, e.Record, e.Mult)
			}
			if e.Mult == 0 {
				continue
			}
			if !found || better(best, e.Record) {
				best = e.Record
				found = true
			}
		}
		if found {
			out = append(out, Entry[KV[K, V]]{Record: KV[K, V]{Key: g.key, Value: best}, Mult: 1})
		}
	}
	return MultiSet[KV[K, V]]{entries: out}, nil
}
