// Package multiset implements the change-batch representation of
// diffflow's incremental dataflow engine: bags of records with signed
// integer multiplicities.
//
// # Overview
//
// Collections that change over time are represented as streams of
// multisets: each batch says which records appeared (positive
// multiplicity) and which were retracted (negative multiplicity) at a
// version. The engine does work proportional to the size of these
// batches, not the size of the underlying collection, so the whole
// system's correctness leans on multiset arithmetic being exact.
//
// # Core Types
//
// Entry: one (record, multiplicity) pair
//
// MultiSet: an ordered sequence of entries with
//   - Map (free function), Filter, Negate, Concat, Extend
//   - Consolidate: coalesce structurally equal records, drop zeros
//
// KV: a keyed record, the shape stateful operators group by
//
// Pair: a join output value with pointer sides so outer joins can
// represent absence as nil
//
// # Record Identity
//
// Consolidation, distinct, reduce, and the index all need structural
// equality of records. RecordKey provides it: numbers, strings, and
// booleans key by value; all other records key by canonical JSON
// serialization. Only determinism of the encoding is promised; the
// format is private to the engine.
//
// # One-Shot Aggregations
//
// Count, Sum, Min, Max, Distinct, and Reduce compute a single snapshot
// over a keyed multiset for programs not built as streaming dataflows.
// Min, Max, and Distinct return ErrNegativeMultiplicity when a record's
// consolidated multiplicity is negative, because their semantics over
// retractions are undefined. The streaming operators in the graph
// package implement the same semantics incrementally on top of the
// index.
//
// # Concurrency
//
// MultiSet values are conceptually immutable once emitted on a stream
// edge; readers share them by reference. Extend is the one in-place
// operation and is only used on batches still private to an operator.
//
// # Testing
//
// Running tests:
//
//	go test ./internal/multiset/... -cover
//
// # See Also
//
// Related packages:
//   - internal/version: the versions change batches are tagged with
//   - internal/index: per-key per-version logs of these entries
//   - internal/graph: operators transforming multiset streams
package multiset
