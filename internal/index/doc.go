// Package index implements diffflow's central stateful structure: a
// per-key, per-version log of value changes, with reconstruction, join,
// and compaction.
//
// # Overview
//
// Every stateful operator in the engine (join, reduce, count, distinct)
// keeps its state in an Index: logically a map from key to version to a
// list of (value, multiplicity) changes. The shape is dictated by the
// two questions the operators ask:
//
//   - "What does this key's collection look like at version v?" is
//     answered by ReconstructAt, the primitive the reduce family needs
//   - "Which pairs of changes meet at which versions?" is answered by
//     Join, the primitive the join operator needs
//
// Compaction is what keeps the log bounded: once the frontier has sealed
// a set of versions, they are advanced up to the frontier and their
// equal records coalesced, without changing any reconstruction at or
// beyond it.
//
// # Compaction Contract
//
// The compaction frontier is a floor:
//   - Writes below it fail with ErrInvalidVersionForWrite
//   - It only moves forward; a regressed frontier fails with
//     ErrInvalidCompactionFrontier
//   - Reads do not consult it; any not-yet-compacted version may still
//     be reconstructed at
//   - For any version v with frontier.LessEqualVersion(v),
//     ReconstructAt(k, v) is unchanged by Compact(frontier) up to
//     consolidation of equal records
//
// Only dirty keys (modified since the last compaction) are compacted by
// default, so compaction cost tracks change volume, not state size.
//
// # Join Semantics
//
// Join iterates the smaller index. For each shared key, the cross
// product of version logs contributes entries at the pointwise max of
// the two versions, with multiplied multiplicities; multiplication is
// what makes joins retraction-correct. Left, right, and full variants
// pad unmatched keys with a nil side at their own versions.
//
// # Concurrency
//
// Indexes are private to their owning operator and the graph is stepped
// by one goroutine; the structure is unsynchronized on purpose. All
// returned data is copied.
//
// # Testing
//
// Running tests:
//
//	go test ./internal/index/... -cover
//
// # See Also
//
// Related packages:
//   - internal/version: versions, frontiers, and AdvanceBy
//   - internal/multiset: the entry representation and record identity
//   - internal/graph: the operators that own these indexes
package index
