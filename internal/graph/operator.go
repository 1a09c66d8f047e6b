// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/diffflow/internal/version"
)

// operator is the protocol every node in a finalized graph speaks.
//
// Lifecycle: operators are created during graph construction with their
// starting frontiers, registered with the graph, and run repeatedly
// after Finalize. They never allocate new streams after Finalize.
//
// A run drains the operator's input queues, updates its input frontiers,
// emits any ready output, and advances its output frontier. Runs are
// synchronous CPU work; no operator blocks or performs I/O.
type operator interface {
	// opID returns the operator's graph-unique id.
	opID() int

	// opName returns the operator kind, for logging.
	opName() string

	// run drains inputs and produces whatever output is ready.
	run() error

	// pendingWork reports whether any input queue holds undelivered
	// messages.
	pendingWork() bool
}

// unaryOp is the base shape of a single-input operator: one reader, one
// writer, one input frontier, one output frontier. Concrete operators
// embed it and implement run.
type unaryOp[I, O any] struct {
	id   int
	name string
	log  logrus.FieldLogger

	input  *streamReader[I]
	output *streamWriter[O]

	// inputFrontier is the last frontier received on the input edge.
	inputFrontier version.Antichain

	// outputFrontier is the last frontier emitted downstream. Invariant:
	// it never exceeds inputFrontier and never regresses.
	outputFrontier version.Antichain
}

func (o *unaryOp[I, O]) opID() int {
	return o.id
}

func (o *unaryOp[I, O]) opName() string {
	return o.name
}

func (o *unaryOp[I, O]) pendingWork() bool {
	return o.input.pending() > 0
}

// acceptFrontier records a received FRONTIER message.
//
// Returns ErrInvalidFrontierUpdate if the message regresses the input
// frontier.
func (o *unaryOp[I, O]) acceptFrontier(f version.Antichain) error {
	if !o.inputFrontier.LessEqual(f) {
		return errors.Wrapf(ErrInvalidFrontierUpdate,
			"%s(%d): input frontier %s after %s", o.name, o.id, f, o.inputFrontier)
	}
	o.inputFrontier = f
	return nil
}

// advanceOutput moves the output frontier to f and emits it, if it
// changed.
//
// Returns ErrInvalidFrontierState if f is less than the frontier already
// emitted; that can only happen when operator state diverged from the
// frontier algebra.
func (o *unaryOp[I, O]) advanceOutput(f version.Antichain) error {
	if o.outputFrontier.Equals(f) {
		return nil
	}
	if !o.outputFrontier.LessEqual(f) {
		return errors.Wrapf(ErrInvalidFrontierState,
			"%s(%d): output frontier %s after %s", o.name, o.id, f, o.outputFrontier)
	}
	o.outputFrontier = f
	return o.output.sendFrontier(f)
}

// binaryOp is the base shape of a two-input operator: two readers with
// independent input frontiers, one writer, one output frontier.
type binaryOp[A, B, O any] struct {
	id   int
	name string
	log  logrus.FieldLogger

	inputA *streamReader[A]
	inputB *streamReader[B]
	output *streamWriter[O]

	frontierA version.Antichain
	frontierB version.Antichain

	// outputFrontier never exceeds the meet of the two input frontiers
	// and never regresses.
	outputFrontier version.Antichain
}

func (o *binaryOp[A, B, O]) opID() int {
	return o.id
}

func (o *binaryOp[A, B, O]) opName() string {
	return o.name
}

func (o *binaryOp[A, B, O]) pendingWork() bool {
	return o.inputA.pending() > 0 || o.inputB.pending() > 0
}

// acceptFrontierA records a FRONTIER message on the first input.
func (o *binaryOp[A, B, O]) acceptFrontierA(f version.Antichain) error {
	if !o.frontierA.LessEqual(f) {
		return errors.Wrapf(ErrInvalidFrontierUpdate,
			"%s(%d): input A frontier %s after %s", o.name, o.id, f, o.frontierA)
	}
	o.frontierA = f
	return nil
}

// acceptFrontierB records a FRONTIER message on the second input.
func (o *binaryOp[A, B, O]) acceptFrontierB(f version.Antichain) error {
	if !o.frontierB.LessEqual(f) {
		return errors.Wrapf(ErrInvalidFrontierUpdate,
			"%s(%d): input B frontier %s after %s", o.name, o.id, f, o.frontierB)
	}
	o.frontierB = f
	return nil
}

// combinedFrontier returns the meet of the two input frontiers: the most
// the operator may promise downstream.
func (o *binaryOp[A, B, O]) combinedFrontier() version.Antichain {
	return o.frontierA.Meet(o.frontierB)
}

// advanceOutput moves the output frontier to f and emits it, if it
// changed.
func (o *binaryOp[A, B, O]) advanceOutput(f version.Antichain) error {
	if o.outputFrontier.Equals(f) {
		return nil
	}
	if !o.outputFrontier.LessEqual(f) {
		return errors.Wrapf(ErrInvalidFrontierState,
			"%s(%d): output frontier %s after %s", o.name, o.id, f, o.outputFrontier)
	}
	o.outputFrontier = f
	return o.output.sendFrontier(f)
}

// newUnary wires the base of a unary operator onto an input stream:
// attaches a reader, allocates the output edge at outInitial, and
// returns the base together with the output stream at the given scope.
// The caller embeds the base, fills in behavior, and registers the
// operator.
func newUnary[I, O any](s *Stream[I], name string, outInitial version.Antichain, outScope int) (unaryOp[I, O], *Stream[O]) {
	g := s.g
	g.mustBuild()
	out := newStreamWriter[O](outInitial)
	base := unaryOp[I, O]{
		id:             g.takeOpID(),
		name:           name,
		log:            g.log,
		input:          s.w.newReader(),
		output:         out,
		inputFrontier:  s.initial,
		outputFrontier: outInitial,
	}
	return base, &Stream[O]{g: g, w: out, initial: outInitial, scope: outScope}
}

// newBinary wires the base of a binary operator onto two input streams
// of the same graph.
func newBinary[A, B, O any](a *Stream[A], b *Stream[B], name string, outInitial version.Antichain, outScope int) (binaryOp[A, B, O], *Stream[O]) {
	g := a.g
	g.mustBuild()
	if b.g != g {
		panic(errors.Wrapf(ErrCrossGraphComposition, "%s operator", name))
	}
	out := newStreamWriter[O](outInitial)
	base := binaryOp[A, B, O]{
		id:             g.takeOpID(),
		name:           name,
		log:            g.log,
		inputA:         a.w.newReader(),
		inputB:         b.w.newReader(),
		output:         out,
		frontierA:      a.initial,
		frontierB:      b.initial,
		outputFrontier: outInitial,
	}
	return base, &Stream[O]{g: g, w: out, initial: outInitial, scope: outScope}
}
