// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/cockroachdb/errors"

	"github.com/dreamware/diffflow/internal/index"
	"github.com/dreamware/diffflow/internal/multiset"
)

// JoinType selects which unmatched keys a join includes; re-exported
// from the index package so applications wire joins without importing
// it.
type JoinType = index.JoinType

// Join type values, re-exported for application code.
const (
	JoinInner = index.JoinInner
	JoinLeft  = index.JoinLeft
	JoinRight = index.JoinRight
	JoinFull  = index.JoinFull
)

// joinOp is the stateful binary join. It holds one index per side and
// emits, at every run, exactly the new pairs: new left rows against all
// stored right rows, then all left rows (stored plus new) against new
// right rows.
//
// Correctness rationale: every matching (a, b) pair is enumerated
// exactly once. Either both rows were already stored (the pair was
// emitted in an earlier run), or a is new (first delta join), or b is
// new and a is in the union of stored and new left rows (second delta
// join, which runs after the left delta was appended).
type joinOp[K comparable, L, R any] struct {
	binaryOp[multiset.KV[K, L], multiset.KV[K, R], multiset.KV[K, multiset.Pair[L, R]]]

	indexA *index.Index[K, L]
	indexB *index.Index[K, R]
	typ    JoinType
}

// Join matches the two keyed streams per key, emitting (key, (left,
// right)) pairs with multiplied multiplicities. The optional join type
// defaults to JoinInner; left/right/full variants pad unmatched rows of
// the delta side with a nil opposite side.
//
// Outer variants are unsupported inside an iteration scope and panic
// with ErrUnsupportedInIteration: their null-padded rows would escape
// the ingress negation protocol.
func Join[K comparable, L, R any](
	left *Stream[multiset.KV[K, L]],
	right *Stream[multiset.KV[K, R]],
	typ ...JoinType,
) *Stream[multiset.KV[K, multiset.Pair[L, R]]] {
	kind := JoinInner
	if len(typ) > 0 {
		kind = typ[0]
	}
	if kind != JoinInner && left.scope > 0 {
		panic(errors.Wrapf(ErrUnsupportedInIteration, "%s join", kind))
	}
	base, out := newBinary[multiset.KV[K, L], multiset.KV[K, R], multiset.KV[K, multiset.Pair[L, R]]](
		left, right, "join", left.initial.Meet(right.initial), left.scope)
	op := &joinOp[K, L, R]{
		binaryOp: base,
		indexA:   index.New[K, L](),
		indexB:   index.New[K, R](),
		typ:      kind,
	}
	left.g.register(op)
	return out
}

func (o *joinOp[K, L, R]) run() error {
	// Drain both inputs into fresh delta indexes.
	deltaA := index.New[K, L]()
	deltaB := index.New[K, R]()
	for _, msg := range o.inputA.drain() {
		switch msg.Type {
		case MessageData:
			for _, e := range msg.Data.Collection.Entries() {
				err := deltaA.AddValue(e.Record.Key, msg.Data.Version,
					multiset.Entry[L]{Record: e.Record.Value, Mult: e.Mult})
				if err != nil {
					return err
				}
			}
		case MessageFrontier:
			if err := o.acceptFrontierA(msg.Frontier); err != nil {
				return err
			}
		}
	}
	for _, msg := range o.inputB.drain() {
		switch msg.Type {
		case MessageData:
			for _, e := range msg.Data.Collection.Entries() {
				err := deltaB.AddValue(e.Record.Key, msg.Data.Version,
					multiset.Entry[R]{Record: e.Record.Value, Mult: e.Mult})
				if err != nil {
					return err
				}
			}
		case MessageFrontier:
			if err := o.acceptFrontierB(msg.Frontier); err != nil {
				return err
			}
		}
	}

	// New left rows against all stored right rows. Outer padding follows
	// the delta side: a new left row unmatched right now is padded here,
	// once.
	if deltaA.Stats().Keys > 0 {
		for _, d := range index.Join(deltaA, o.indexB, restrictLeft(o.typ)) {
			if err := o.output.sendData(d.Version, d.Delta); err != nil {
				return err
			}
		}
	}
	o.indexA.Append(deltaA)

	// All left rows, including the ones just appended, against new right
	// rows.
	if deltaB.Stats().Keys > 0 {
		for _, d := range index.Join(o.indexA, deltaB, restrictRight(o.typ)) {
			if err := o.output.sendData(d.Version, d.Delta); err != nil {
				return err
			}
		}
	}
	o.indexB.Append(deltaB)

	combined := o.combinedFrontier()
	if !o.outputFrontier.Equals(combined) {
		if err := o.advanceOutput(combined); err != nil {
			return err
		}
		if err := o.indexA.Compact(combined); err != nil {
			return err
		}
		if err := o.indexB.Compact(combined); err != nil {
			return err
		}
	}
	return nil
}

// restrictLeft limits a join type to left-side padding, for the
// delta-A-driven join: padding stored right rows here would re-pad them
// on every run.
func restrictLeft(typ JoinType) JoinType {
	switch typ {
	case JoinLeft, JoinFull:
		return JoinLeft
	default:
		return JoinInner
	}
}

// restrictRight limits a join type to right-side padding, for the
// delta-B-driven join.
func restrictRight(typ JoinType) JoinType {
	switch typ {
	case JoinRight, JoinFull:
		return JoinRight
	default:
		return JoinInner
	}
}

// JoinAll matches one keyed stream against several others of the same
// value type, producing per key the slice of matched values: the first
// stream's value followed by one value per joined stream.
//
// The joins chain pairwise with the given type (default JoinInner).
// Values absent under an outer variant are skipped in the slice.
func JoinAll[K comparable, V any](
	first *Stream[multiset.KV[K, V]],
	others []*Stream[multiset.KV[K, V]],
	typ ...JoinType,
) *Stream[multiset.KV[K, []V]] {
	acc := Map(first, func(kv multiset.KV[K, V]) multiset.KV[K, []V] {
		return multiset.KV[K, []V]{Key: kv.Key, Value: []V{kv.Value}}
	})
	for _, other := range others {
		joined := Join(acc, other, typ...)
		acc = Map(joined, func(kv multiset.KV[K, multiset.Pair[[]V, V]]) multiset.KV[K, []V] {
			var values []V
			if kv.Value.Left != nil {
				values = append(values, (*kv.Value.Left)...)
			}
			if kv.Value.Right != nil {
				values = append(values, *kv.Value.Right)
			}
			return multiset.KV[K, []V]{Key: kv.Key, Value: values}
		})
	}
	return acc
}
