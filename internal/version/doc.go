// Package version implements the timestamp algebra for diffflow's
// incremental dataflow engine: partially ordered versions and the minimal
// antichain frontiers over them.
//
// # Overview
//
// Every change flowing through a dataflow graph is tagged with a Version,
// a fixed-dimension tuple of non-negative integers. Outside iteration
// scopes versions are one-dimensional and totally ordered; each enclosing
// iteration scope appends one coordinate that counts loop iterations, and
// multi-dimensional versions compare pointwise, so two versions may be
// incomparable.
//
// An Antichain is a minimal set of incomparable versions used as a
// frontier: a promise that no future data will arrive at any version not
// greater than or equal to some element. Frontiers are what let stateful
// operators know when a version is sealed and its output may be computed
// and its state compacted.
//
// # Architecture
//
// The package sits at the bottom of the engine's dependency order:
//
//	┌─────────────────────────────────────┐
//	│         graph (operators)           │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│        index (compaction)           │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│     version (Version/Antichain)     │
//	└─────────────────────────────────────┘
//
// # Core Types
//
// Version: a point in partially ordered time
//   - LessEqual/LessThan/Equals - product-order comparison
//   - Join/Meet - pointwise max/min
//   - Extend/Truncate/ApplyStep - iteration scope crossing
//   - AdvanceBy - round up to a frontier (compaction primitive)
//
// Antichain: a minimal frontier
//   - Insert - minimality-preserving insertion
//   - Meet - union followed by removal of dominated elements
//   - LessEqual/LessEqualVersion - frontier comparison and coverage
//   - Extend/Truncate/ApplyStep - lifted element-wise
//
// # Value Semantics
//
// Both types are immutable value types. Operations return new values;
// coordinate slices are cloned on the way in and on the way out. Equal
// payloads are interchangeable everywhere, and values may be shared
// across goroutines without synchronization.
//
// # Error Handling
//
// ErrInvalidVersion covers all structural misuse:
//   - Zero-dimensional or negative-coordinate construction (returned)
//   - Dimension mismatch in comparison or combination (panic, as it is
//     a programming error of the dataflow author)
//   - Truncation below one dimension, non-positive steps (panic)
//
// # Testing
//
// Running tests:
//
//	go test ./internal/version/... -cover
//
// # See Also
//
// Related packages:
//   - internal/multiset: change batches tagged with these versions
//   - internal/index: per-version state compacted with AdvanceBy
//   - internal/graph: frontier propagation between operators
package version
