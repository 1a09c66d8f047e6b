// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import "github.com/cockroachdb/errors"

// ErrInvalidFrontierUpdate is returned when a FRONTIER message arrives
// that is not at or beyond the current input frontier. Frontiers are
// promises; weakening one would retract information downstream operators
// may already have acted on.
var ErrInvalidFrontierUpdate = errors.New("frontier update regressed")

// ErrInvalidFrontierState is returned when an operator computes an
// output frontier that is less than the output frontier it already
// emitted. This is an internal invariant breach: it means operator state
// and the frontier algebra have diverged.
var ErrInvalidFrontierState = errors.New("output frontier regressed")

// ErrGraphNotFinalized is returned when a graph is stepped, run, or sent
// input before Finalize has frozen its topology.
var ErrGraphNotFinalized = errors.New("graph not finalized")

// ErrGraphAlreadyFinalized is the lifecycle error for topology changes
// after Finalize: creating inputs or operators on a finalized graph
// panics with this error, and calling Finalize twice returns it.
var ErrGraphAlreadyFinalized = errors.New("graph already finalized")

// ErrCrossGraphComposition is carried by the panic raised when streams
// from different graphs are composed. Each graph owns its operators and
// edges; connecting across graphs would break the single-owner stepping
// model.
var ErrCrossGraphComposition = errors.New("streams belong to different graphs")

// ErrUnsupportedInIteration is carried by the panic raised when an
// operator variant that cannot live inside an iteration scope is built
// there. Outer join variants are the current case: their null-padded
// rows would not be cancelled by the ingress negation protocol.
var ErrUnsupportedInIteration = errors.New("operator unsupported inside iteration scope")
