// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/sirupsen/logrus"

	"github.com/dreamware/diffflow/internal/multiset"
)

// The stateless linear operators transform each data message in place
// and pass frontier updates straight through. They keep no state beyond
// the base frontiers, so their work per run is proportional to the
// messages drained.
//
// Messages are processed strictly in arrival order: a frontier update
// advances the output frontier before any data behind it is forwarded,
// which preserves the frontier-covers-data invariant on the output edge.

// mapOp applies a function to every record.
type mapOp[I, O any] struct {
	unaryOp[I, O]
	f func(I) O
}

// Map transforms every record of the stream with f, preserving versions
// and multiplicities.
func Map[I, O any](s *Stream[I], f func(I) O) *Stream[O] {
	base, out := newUnary[I, O](s, "map", s.initial, s.scope)
	op := &mapOp[I, O]{unaryOp: base, f: f}
	s.g.register(op)
	return out
}

func (o *mapOp[I, O]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			mapped := multiset.Map(msg.Data.Collection, o.f)
			if err := o.output.sendData(msg.Data.Version, mapped); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier); err != nil {
				return err
			}
		}
	}
	return nil
}

// filterOp keeps records satisfying a predicate.
type filterOp[T any] struct {
	unaryOp[T, T]
	pred func(T) bool
}

// Filter keeps the records of the stream that satisfy pred.
func (s *Stream[T]) Filter(pred func(T) bool) *Stream[T] {
	base, out := newUnary[T, T](s, "filter", s.initial, s.scope)
	op := &filterOp[T]{unaryOp: base, pred: pred}
	s.g.register(op)
	return out
}

func (o *filterOp[T]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			kept := msg.Data.Collection.Filter(o.pred)
			if err := o.output.sendData(msg.Data.Version, kept); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier); err != nil {
				return err
			}
		}
	}
	return nil
}

// negateOp flips every multiplicity.
type negateOp[T any] struct {
	unaryOp[T, T]
}

// Negate flips the sign of every multiplicity, turning the stream of
// insertions into a stream of retractions and vice versa.
func (s *Stream[T]) Negate() *Stream[T] {
	base, out := newUnary[T, T](s, "negate", s.initial, s.scope)
	op := &negateOp[T]{unaryOp: base}
	s.g.register(op)
	return out
}

func (o *negateOp[T]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			if err := o.output.sendData(msg.Data.Version, msg.Data.Collection.Negate()); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier); err != nil {
				return err
			}
		}
	}
	return nil
}

// concatOp interleaves two streams of the same record type.
type concatOp[T any] struct {
	binaryOp[T, T, T]
}

// Concat merges the other stream into this one. Data from either input
// passes through unchanged at its own version; the output frontier is
// the meet of both input frontiers, the most the merged edge can
// promise.
func (s *Stream[T]) Concat(other *Stream[T]) *Stream[T] {
	initial := s.initial.Meet(other.initial)
	base, out := newBinary[T, T, T](s, other, "concat", initial, s.scope)
	op := &concatOp[T]{binaryOp: base}
	s.g.register(op)
	return out
}

func (o *concatOp[T]) run() error {
	for _, msg := range o.inputA.drain() {
		switch msg.Type {
		case MessageData:
			if err := o.output.sendData(msg.Data.Version, msg.Data.Collection); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontierA(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.combinedFrontier()); err != nil {
				return err
			}
		}
	}
	for _, msg := range o.inputB.drain() {
		switch msg.Type {
		case MessageData:
			if err := o.output.sendData(msg.Data.Version, msg.Data.Collection); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontierB(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.combinedFrontier()); err != nil {
				return err
			}
		}
	}
	return nil
}

// debugOp logs every message and passes it through.
type debugOp[T any] struct {
	unaryOp[T, T]
	label string
}

// Debug logs every message through the graph's logger under the given
// label and passes the stream through unchanged.
func (s *Stream[T]) Debug(label string) *Stream[T] {
	base, out := newUnary[T, T](s, "debug", s.initial, s.scope)
	op := &debugOp[T]{unaryOp: base, label: label}
	s.g.register(op)
	return out
}

func (o *debugOp[T]) run() error {
	for _, msg := range o.input.drain() {
		o.log.WithFields(logrus.Fields{
			"debug": o.label,
			"op":    o.id,
			"kind":  msg.Type.String(),
		}).Debug(msg.String())
		switch msg.Type {
		case MessageData:
			if err := o.output.sendData(msg.Data.Version, msg.Data.Collection); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier); err != nil {
				return err
			}
		}
	}
	return nil
}

// outputOp hands every message to a user callback and passes it through.
type outputOp[T any] struct {
	unaryOp[T, T]
	fn func(Message[T])
}

// Output calls fn with every message and passes the stream through.
// This is the only exfiltration mechanism for applications: the callback
// runs synchronously during a step and must not mutate the graph.
func (s *Stream[T]) Output(fn func(Message[T])) *Stream[T] {
	base, out := newUnary[T, T](s, "output", s.initial, s.scope)
	op := &outputOp[T]{unaryOp: base, fn: fn}
	s.g.register(op)
	return out
}

func (o *outputOp[T]) run() error {
	for _, msg := range o.input.drain() {
		o.fn(msg)
		switch msg.Type {
		case MessageData:
			if err := o.output.sendData(msg.Data.Version, msg.Data.Collection); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier); err != nil {
				return err
			}
		}
	}
	return nil
}
