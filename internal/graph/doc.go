// Package graph implements diffflow's dataflow execution layer: stream
// edges, the operator protocol, and the graph lifecycle that drives an
// incrementally maintained computation to quiescence.
//
// # Overview
//
// An application describes a relational computation (maps, filters,
// joins, reductions, distinct, iteration) over collections that change
// over time. The graph maintains the outputs as streams of changes,
// doing work proportional to the size of each change rather than the
// size of the data.
//
// The engine is a library: it owns no I/O, no threads, and no
// persistence. Applications create inputs, wire operators, finalize,
// and then alternate between submitting (version, change) batches plus
// monotone frontier updates and calling Step or Run.
//
// # Architecture
//
//	┌───────────────────────────────────────────────┐
//	│                    Graph                      │
//	│  operators stepped in registration order      │
//	├───────────────────────────────────────────────┤
//	│  Input ─▶ map ─▶ filter ─▶ join ─▶ output     │
//	│              ▲               │                │
//	│   Input ─────┘               ▼                │
//	│                         consolidate           │
//	├───────────────────────────────────────────────┤
//	│  edges: single-writer multi-reader queues of  │
//	│  Data(version, multiset) / Frontier messages  │
//	└───────────────────────────────────────────────┘
//
// Operators never talk to each other directly; everything moves through
// stream edges, and progress is tracked by antichain frontiers. An
// operator's emitted frontier is always at or beyond the meet of its
// input frontiers as last received.
//
// # Operator Set
//
// Stateless: Map, Filter, Negate, Concat, Debug, Output.
//
// Buffering: Consolidate (one clean batch per version once sealed).
//
// Stateful, index-backed: Join (inner/left/right/full), JoinAll,
// Reduce, Count, Distinct.
//
// Iteration: Iterate wires the ingress/feedback/egress protocol around
// a user-supplied loop body; versions inside the loop carry one extra
// coordinate counting iterations, and the feedback operator's tolerance
// heuristic decides when the loop has quiesced.
//
// # Execution Model
//
// Single-threaded cooperative. Step runs every operator once, in
// registration order; registration order is a valid topological order
// because operators are built after the producers of their inputs. Run
// steps until no reader holds an undelivered message, which is how
// feedback cycles drain. The Output callback is the only place user
// code runs during a step; it is called synchronously and must not
// mutate the graph.
//
// Edges are unbounded in-memory queues; a slow consumer grows its
// queues until the next step. Callers bound memory by batching sends
// between steps.
//
// # Error Handling
//
// Runtime contract violations return typed errors, unrecovered:
//
//   - ErrInvalidFrontierUpdate: a frontier message regressed
//   - ErrInvalidFrontierState: an operator's computed output frontier
//     regressed (internal invariant breach)
//   - ErrGraphNotFinalized: step, run, or send before Finalize
//   - version.ErrInvalidVersion: malformed versions, or data not
//     covered by the sender's frontier
//   - index.ErrInvalidVersionForWrite, index.ErrInvalidCompactionFrontier:
//     stateful operator state misuse
//   - multiset.ErrNegativeMultiplicity: distinct over an over-retracted
//     collection
//
// Construction-time lifecycle misuse is a programming error and panics
// with the matching sentinel: ErrGraphAlreadyFinalized,
// ErrCrossGraphComposition, ErrUnsupportedInIteration.
//
// # Testing
//
// Running tests:
//
//	go test ./internal/graph/... -cover
//
// The test suite covers the frontier invariants, the end-to-end
// operator scenarios, and a randomized event-sequence property test
// under the discipline: frontiers monotone, versions covered, fixed
// dimension.
//
// # See Also
//
// Related packages:
//   - internal/version: the timestamp algebra frontiers are built on
//   - internal/multiset: the change batches edges carry
//   - internal/index: the state behind join and the reduce family
package graph
