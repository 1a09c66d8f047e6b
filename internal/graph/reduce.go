// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/dreamware/diffflow/internal/index"
	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// reducer is the per-key aggregation function of the reduce family. It
// receives the key's accumulated (value, multiplicity) entries at a
// version and returns the aggregated (result, multiplicity) entries.
// Built-in reducers (distinct) may reject collections whose semantics
// are undefined.
type reducer[V, R any] func(values []multiset.Entry[V]) ([]multiset.Entry[R], error)

// todoSet records the keys that might need recomputation at one
// version.
type todoSet[K comparable] struct {
	at   version.Version
	keys map[K]struct{}
}

// reduceOp is the stateful unary aggregation operator. It keeps the
// input changes per key in one index, the output it has already emitted
// in a second, and a (version, key) todo set of aggregations that might
// have changed.
//
// When the input frontier seals a todo version, the operator
// reconstructs the key's input at that version, applies the reducer,
// diffs the result against the output it previously emitted for that
// version, and emits only the difference. Retractions of stale
// aggregates fall out of the diff; nothing special-cases them.
type reduceOp[K comparable, V, R any] struct {
	unaryOp[multiset.KV[K, V], multiset.KV[K, R]]

	index    *index.Index[K, V]
	indexOut *index.Index[K, R]

	// keysTodo maps version keys to the keys whose aggregate might
	// change at that version.
	keysTodo map[string]*todoSet[K]

	f reducer[V, R]
}

// newReduce builds a reduce-family operator with the given reducer.
func newReduce[K comparable, V, R any](
	s *Stream[multiset.KV[K, V]],
	name string,
	f reducer[V, R],
) *Stream[multiset.KV[K, R]] {
	base, out := newUnary[multiset.KV[K, V], multiset.KV[K, R]](s, name, s.initial, s.scope)
	op := &reduceOp[K, V, R]{
		unaryOp:  base,
		index:    index.New[K, V](),
		indexOut: index.New[K, R](),
		keysTodo: make(map[string]*todoSet[K]),
		f:        f,
	}
	s.g.register(op)
	return out
}

// Reduce aggregates the keyed stream per key with f, which maps the
// key's accumulated (value, multiplicity) entries to aggregated
// (result, multiplicity) entries. Output changes are emitted as deltas:
// when an aggregate changes at a version, the old result is retracted
// and the new one inserted.
func Reduce[K comparable, V, R any](
	s *Stream[multiset.KV[K, V]],
	f func(values []multiset.Entry[V]) []multiset.Entry[R],
) *Stream[multiset.KV[K, R]] {
	return newReduce(s, "reduce", func(values []multiset.Entry[V]) ([]multiset.Entry[R], error) {
		return f(values), nil
	})
}

// Count emits, per key, the number of values present: the sum of the
// key's multiplicities. When the count changes, the previous count is
// retracted.
func Count[K comparable, V any](s *Stream[multiset.KV[K, V]]) *Stream[multiset.KV[K, int]] {
	return newReduce(s, "count", func(values []multiset.Entry[V]) ([]multiset.Entry[int], error) {
		total := 0
		for _, e := range values {
			total += e.Mult
		}
		return []multiset.Entry[int]{{Record: total, Mult: 1}}, nil
	})
}

// Distinct emits each of a key's values exactly once with multiplicity
// 1, regardless of how many copies the input carries, and retracts a
// value when its accumulated multiplicity drops to zero.
//
// A value whose accumulated multiplicity goes negative makes the run
// fail with multiset.ErrNegativeMultiplicity: distinctness over an
// over-retracted collection is undefined.
func Distinct[K comparable, V any](s *Stream[multiset.KV[K, V]]) *Stream[multiset.KV[K, V]] {
	return newReduce(s, "distinct", func(values []multiset.Entry[V]) ([]multiset.Entry[V], error) {
		consolidated := multiset.New(values...).Consolidate().Entries()
		out := make([]multiset.Entry[V], 0, len(consolidated))
		for _, e := range consolidated {
			if e.Mult < 0 {
				return nil, errors.Wrapf(multiset.ErrNegativeMultiplicity,
					"distinct over value %v with multiplicity %d", e.Record, e.Mult)
			}
			out = append(out, multiset.Entry[V]{Record: e.Record, Mult: 1})
		}
		return out, nil
	})
}

func (o *reduceOp[K, V, R]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			at := msg.Data.Version
			for _, e := range msg.Data.Collection.Entries() {
				key := e.Record.Key
				// The join of the new version with every version the key
				// already has data at is where the aggregate may change;
				// capture them before the write adds the new version.
				existing := o.index.Versions(key)
				err := o.index.AddValue(key, at, multiset.Entry[V]{Record: e.Record.Value, Mult: e.Mult})
				if err != nil {
					return err
				}
				o.markTodo(at, key)
				for _, prior := range existing {
					o.markTodo(at.Join(prior), key)
				}
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
		}
	}

	// Recompute sealed versions, earliest first under the deterministic
	// total order.
	var sealed []*todoSet[K]
	for _, todo := range o.keysTodo {
		if !o.inputFrontier.LessEqualVersion(todo.at) {
			sealed = append(sealed, todo)
		}
	}
	slices.SortFunc(sealed, func(a, b *todoSet[K]) int {
		return a.at.CompareTotal(b.at)
	})
	for _, todo := range sealed {
		if err := o.recompute(todo); err != nil {
			return err
		}
		delete(o.keysTodo, todo.at.Key())
	}

	if !o.outputFrontier.Equals(o.inputFrontier) {
		if err := o.advanceOutput(o.inputFrontier); err != nil {
			return err
		}
		if err := o.index.Compact(o.outputFrontier); err != nil {
			return err
		}
		if err := o.indexOut.Compact(o.outputFrontier); err != nil {
			return err
		}
	}
	return nil
}

// markTodo records that key's aggregate might change at the version.
func (o *reduceOp[K, V, R]) markTodo(at version.Version, key K) {
	vk := at.Key()
	todo, ok := o.keysTodo[vk]
	if !ok {
		todo = &todoSet[K]{at: at, keys: make(map[K]struct{})}
		o.keysTodo[vk] = todo
	}
	todo.keys[key] = struct{}{}
}

// recompute re-aggregates every todo key at the sealed version and
// emits the difference against the previously emitted output.
func (o *reduceOp[K, V, R]) recompute(todo *todoSet[K]) error {
	keys := make([]K, 0, len(todo.keys))
	for key := range todo.keys {
		keys = append(keys, key)
	}
	// Deterministic emission order within the version.
	slices.SortFunc(keys, func(a, b K) int {
		ka, kb := multiset.RecordKey(a), multiset.RecordKey(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})

	var outEntries []multiset.Entry[multiset.KV[K, R]]
	for _, key := range keys {
		current, err := o.f(o.index.ReconstructAt(key, todo.at))
		if err != nil {
			return err
		}
		previous := o.indexOut.ReconstructAt(key, todo.at)
		delta := multiset.New(current...).
			Concat(multiset.New(previous...).Negate()).
			Consolidate().
			Entries()
		for _, d := range delta {
			outEntries = append(outEntries, multiset.Entry[multiset.KV[K, R]]{
				Record: multiset.KV[K, R]{Key: key, Value: d.Record},
				Mult:   d.Mult,
			})
			if err := o.indexOut.AddValue(key, todo.at, d); err != nil {
				return err
			}
		}
	}
	if len(outEntries) == 0 {
		return nil
	}
	return o.output.sendData(todo.at, multiset.New(outEntries...))
}
