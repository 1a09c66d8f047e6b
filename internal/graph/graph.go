// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// defaultFeedbackTolerance is the number of distinct empty frontier
// observations a feedback operator tolerates per top-level time before
// rejecting a frontier element. See feedbackOp.
const defaultFeedbackTolerance = 3

// Stream is a handle onto one edge of the dataflow graph during
// construction: operators attach to it and return the stream of their
// output.
//
// Streams are builders, not data: after Finalize they only identify
// edges. All data movement happens through the inputs and Step.
type Stream[T any] struct {
	// g is the owning graph. Streams of different graphs cannot be
	// composed.
	g *Graph

	// w is the edge's writer; operators reading this stream attach
	// readers to it.
	w *streamWriter[T]

	// initial is the frontier the edge starts at, already adjusted for
	// the stream's iteration scope.
	initial version.Antichain

	// scope is the iteration nesting depth: 0 outside any loop, +1 per
	// enclosing Iterate body.
	scope int
}

// Graph owns the operators and stream edges of one dataflow.
//
// Lifecycle:
//  1. Construction: NewInput and the operator builders wire the
//     topology. Each operator registers in creation order, which is a
//     valid topological order because operators are built after the
//     producers of their inputs.
//  2. Finalize freezes the topology; building afterwards panics with
//     ErrGraphAlreadyFinalized.
//  3. Drive: SendData/SendFrontier on inputs, then Step or Run. A
//     single Step runs every operator once; Run steps until no reader
//     holds an undelivered message.
//
// Concurrency Model:
// Single-threaded cooperative. The graph is driven by explicit Step and
// Run calls on the owning goroutine; no operator blocks, suspends, or
// performs I/O. Callers control granularity by batching sends between
// steps. Nothing in the graph is synchronized, and nothing needs to be.
//
// Example:
//
//	g, err := graph.New(0)
//	input := graph.NewInput[int](g)
//	graph.Map(&input.Stream, double).Output(collect)
//	g.Finalize()
//	input.SendData(1, batch)
//	input.SendFrontier(2)
//	g.Run()
type Graph struct {
	// initial is the frontier every input and root edge starts at.
	initial version.Antichain

	// log receives the finalize trace and debug operator output.
	log logrus.FieldLogger

	// feedbackTolerance configures the feedback operators' empty-update
	// tolerance.
	feedbackTolerance int

	// operators holds every registered operator in creation order.
	operators []operator

	// finalized is set once Finalize has frozen the topology.
	finalized bool

	// nextOpID numbers operators as they register.
	nextOpID int
}

// Option configures a Graph at construction.
type Option func(*Graph)

// WithLogger routes the graph's finalize trace and debug operators to
// the given logger instead of the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Graph) {
		g.log = log
	}
}

// WithFeedbackTolerance sets how many distinct empty frontier
// observations a feedback operator tolerates per top-level time before
// rejecting a frontier element. The default of 3 is a heuristic sound
// under single-threaded stepping; see the package documentation.
func WithFeedbackTolerance(n int) Option {
	return func(g *Graph) {
		g.feedbackTolerance = n
	}
}

// New creates a graph with the given initial frontier.
//
// The initial frontier specification accepts the sendData version
// forms: an int, an []int coordinate list, a Version, a []Version, or
// an Antichain.
//
// Returns version.ErrInvalidVersion if the specification is malformed.
func New(initialFrontier any, opts ...Option) (*Graph, error) {
	initial, err := version.FrontierOf(initialFrontier)
	if err != nil {
		return nil, err
	}
	g := &Graph{
		initial:           initial,
		log:               logrus.StandardLogger(),
		feedbackTolerance: defaultFeedbackTolerance,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// mustBuild panics with ErrGraphAlreadyFinalized when topology is being
// wired after Finalize. Building after finalization is a programming
// error of the dataflow author, not a runtime condition.
func (g *Graph) mustBuild() {
	if g.finalized {
		panic(ErrGraphAlreadyFinalized)
	}
}

// takeOpID allocates the next operator id.
func (g *Graph) takeOpID() int {
	id := g.nextOpID
	g.nextOpID++
	return id
}

// register adds an operator to the step order.
func (g *Graph) register(op operator) {
	g.mustBuild()
	g.operators = append(g.operators, op)
}

// Finalize freezes the topology. It must be called exactly once, before
// any Step or Run; calling it again returns ErrGraphAlreadyFinalized.
func (g *Graph) Finalize() error {
	if g.finalized {
		return errors.Wrap(ErrGraphAlreadyFinalized, "finalize")
	}
	g.finalized = true
	g.log.WithField("operators", len(g.operators)).Debug("graph finalized")
	return nil
}

// Step runs every operator once, in registration order. Because
// operators only communicate through stream edges and each was built
// after the producers of its inputs, registration order is a valid
// topological order.
//
// A single step may not drain all work: feedback operators produce new
// messages for operators earlier in the order. Run amortizes that.
//
// Returns ErrGraphNotFinalized before Finalize; operator failures are
// returned as-is and leave the graph unrecovered.
func (g *Graph) Step() error {
	if !g.finalized {
		return errors.Wrap(ErrGraphNotFinalized, "step")
	}
	for _, op := range g.operators {
		if err := op.run(); err != nil {
			return errors.Wrapf(err, "operator %s(%d)", op.opName(), op.opID())
		}
	}
	return nil
}

// PendingWork returns the number of operators with undelivered input
// messages.
func (g *Graph) PendingWork() int {
	pending := 0
	for _, op := range g.operators {
		if op.pendingWork() {
			pending++
		}
	}
	return pending
}

// Run steps the graph until no operator has pending work.
//
// Returns ErrGraphNotFinalized before Finalize; operator failures stop
// the run.
func (g *Graph) Run() error {
	if !g.finalized {
		return errors.Wrap(ErrGraphNotFinalized, "run")
	}
	for {
		if err := g.Step(); err != nil {
			return err
		}
		if g.PendingWork() == 0 {
			return nil
		}
	}
}

// Input is a typed graph input: a stream other operators consume, plus
// the send side the application drives.
type Input[T any] struct {
	Stream Stream[T]
}

// NewInput creates a typed input on the graph. The returned handle is
// both a stream (for wiring operators) and a writer (for SendData and
// SendFrontier).
func NewInput[T any](g *Graph) *Input[T] {
	g.mustBuild()
	w := newStreamWriter[T](g.initial)
	return &Input[T]{
		Stream: Stream[T]{g: g, w: w, initial: g.initial, scope: 0},
	}
}

// SendData submits a change batch at a version.
//
// Flexible forms:
//   - versionSpec: an int, an []int coordinate list, or a Version
//   - data: a multiset.MultiSet[T], a []multiset.Entry[T], or a []T
//     (each record once with multiplicity 1)
//
// Contracts:
//   - The graph must be finalized (ErrGraphNotFinalized)
//   - The version must be covered by the input's current frontier
//     (version.ErrInvalidVersion)
func (in *Input[T]) SendData(versionSpec any, data any) error {
	if !in.Stream.g.finalized {
		return errors.Wrap(ErrGraphNotFinalized, "send data")
	}
	at, err := version.Of(versionSpec)
	if err != nil {
		return err
	}
	var collection multiset.MultiSet[T]
	switch d := data.(type) {
	case multiset.MultiSet[T]:
		collection = d
	case []multiset.Entry[T]:
		collection = multiset.New(d...)
	case []T:
		collection = multiset.FromRecords(d...)
	default:
		return errors.Wrapf(version.ErrInvalidVersion,
			"unsupported data specification %T", data)
	}
	return in.Stream.w.sendData(at, collection)
}

// SendFrontier submits a frontier update: a promise that no more data
// will be sent at versions not at or beyond some element. Frontiers
// must be monotonically non-decreasing per input
// (ErrInvalidFrontierUpdate).
//
// The frontier specification accepts the New forms: an int, an []int, a
// Version, a []Version, or an Antichain.
func (in *Input[T]) SendFrontier(spec any) error {
	if !in.Stream.g.finalized {
		return errors.Wrap(ErrGraphNotFinalized, "send frontier")
	}
	frontier, err := version.FrontierOf(spec)
	if err != nil {
		return err
	}
	return in.Stream.w.sendFrontier(frontier)
}
