// Package index implements the per-key, per-version log of value changes
// that diffflow's stateful operators are built on.
// See doc.go for complete package documentation.
package index

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// ErrInvalidVersionForWrite is returned when a value is added at a
// version below the index's compaction frontier. Once a frontier has
// been compacted to, the versions beneath it have been coalesced and can
// no longer distinguish new writes.
//
// Usage pattern:
//
//	err := idx.AddValue(k, v, entry)
//	if errors.Is(err, index.ErrInvalidVersionForWrite) {
//	    // The write raced behind compaction; a dataflow bug
//	}
var ErrInvalidVersionForWrite = errors.New("write below compaction frontier")

// ErrInvalidCompactionFrontier is returned when Compact is called with a
// frontier that is not greater than or equal to the previous compaction
// frontier. Compaction is monotonic; moving the floor backwards would
// invalidate reconstructions already served.
var ErrInvalidCompactionFrontier = errors.New("compaction frontier regressed")

// versionLog holds the value changes recorded for one key at one
// version.
type versionLog[V any] struct {
	// at is the version the values were recorded at. After compaction
	// it is the advanced version.
	at version.Version

	// values are the (value, multiplicity) changes, in arrival order.
	values []multiset.Entry[V]
}

// Index is the central stateful structure of the engine: logically a
// map from key to version to a list of (value, multiplicity) changes.
//
// The three primitives it serves:
//   - ReconstructAt: the accumulated changes at or before a version,
//     which is what the reduce family needs
//   - Join: the per-key cross product of two indexes' version logs,
//     which is what the join operator needs
//   - Compact: advancing sealed versions up to a frontier and coalescing
//     equal records, which is what keeps the log from growing without
//     bound
//
// State tracked alongside the logs:
//   - A compaction frontier (absent until the first Compact): the floor
//     below which no new writes are allowed
//   - A dirty-key set: keys modified since the last compaction, so that
//     compaction touches only what changed
//
// Architecture:
//
//	┌─────────────────────────────────────────────┐
//	│                 Index[K, V]                 │
//	├─────────────────────────────────────────────┤
//	│  logs:  map[K] → map[version] → [(v, m)]    │
//	│  compaction: floor frontier (nullable)      │
//	│  dirty: keys touched since last Compact     │
//	├─────────────────────────────────────────────┤
//	│  Key → Version → Changes                    │
//	│  "k1" → [2]   → [("a",+1), ("b",-1)]        │
//	└─────────────────────────────────────────────┘
//
// Concurrency Model:
// An Index is private to its owning operator and the graph is stepped by
// a single goroutine, so the structure is deliberately unsynchronized.
// Nothing is shared: values returned to callers are copies.
type Index[K comparable, V any] struct {
	// logs maps each key to its per-version change lists.
	logs map[K]map[string]*versionLog[V]

	// compaction is the floor below which writes are rejected. nil
	// until the first Compact call.
	compaction *version.Antichain

	// dirty tracks the keys modified since the last compaction.
	dirty map[K]struct{}
}

// New creates an empty index with no compaction frontier.
func New[K comparable, V any]() *Index[K, V] {
	return &Index[K, V]{
		logs:  make(map[K]map[string]*versionLog[V]),
		dirty: make(map[K]struct{}),
	}
}

// Stats contains a point-in-time snapshot of index size, for monitoring
// and for the join operator's check for an empty delta.
type Stats struct {
	// Keys is the number of keys with at least one version log.
	Keys int

	// Versions is the total number of (key, version) logs.
	Versions int

	// Entries is the total number of (value, multiplicity) entries
	// across all logs.
	Entries int
}

// Stats returns current index statistics. The snapshot may be stale
// immediately; it is meant for trends, not exact accounting.
func (ix *Index[K, V]) Stats() Stats {
	s := Stats{Keys: len(ix.logs)}
	for _, byVersion := range ix.logs {
		s.Versions += len(byVersion)
		for _, log := range byVersion {
			s.Entries += len(log.values)
		}
	}
	return s
}

// AddValue appends a (value, multiplicity) entry under key at the given
// version and marks the key dirty.
//
// Returns ErrInvalidVersionForWrite if the version is not at or beyond
// some element of the compaction frontier.
func (ix *Index[K, V]) AddValue(key K, at version.Version, entry multiset.Entry[V]) error {
	if ix.compaction != nil && !ix.compaction.LessEqualVersion(at) {
		return errors.Wrapf(ErrInvalidVersionForWrite,
			"version %s below compaction frontier %s", at, ix.compaction)
	}
	byVersion, ok := ix.logs[key]
	if !ok {
		byVersion = make(map[string]*versionLog[V])
		ix.logs[key] = byVersion
	}
	vk := at.Key()
	log, ok := byVersion[vk]
	if !ok {
		log = &versionLog[V]{at: at}
		byVersion[vk] = log
	}
	log.values = append(log.values, entry)
	ix.dirty[key] = struct{}{}
	return nil
}

// Versions returns every version with at least one entry for the key,
// sorted earliest-first under the deterministic total order.
//
// Versions that lie below the compaction frontier are presented as if
// advanced by it; physically compacted indexes already store advanced
// versions, so the advancement here only matters between a frontier
// update and the compaction that applies it.
func (ix *Index[K, V]) Versions(key K) []version.Version {
	byVersion, ok := ix.logs[key]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(byVersion))
	out := make([]version.Version, 0, len(byVersion))
	for _, log := range byVersion {
		at := log.at
		if ix.compaction != nil {
			at = at.AdvanceBy(*ix.compaction)
		}
		if _, dup := seen[at.Key()]; dup {
			continue
		}
		seen[at.Key()] = struct{}{}
		out = append(out, at)
	}
	slices.SortFunc(out, version.Version.CompareTotal)
	return out
}

// ReconstructAt returns the accumulated (value, multiplicity) entries
// for the key from every stored version at or before the given version.
//
// Reads do not consult the compaction frontier: any version may be
// reconstructed at, provided the log has not been compacted past it.
// The result is a copy; the caller may consolidate or mutate it freely.
func (ix *Index[K, V]) ReconstructAt(key K, at version.Version) []multiset.Entry[V] {
	byVersion, ok := ix.logs[key]
	if !ok {
		return nil
	}
	logs := make([]*versionLog[V], 0, len(byVersion))
	for _, log := range byVersion {
		if log.at.LessEqual(at) {
			logs = append(logs, log)
		}
	}
	// Deterministic accumulation order, earliest version first.
	slices.SortFunc(logs, func(a, b *versionLog[V]) int {
		return a.at.CompareTotal(b.at)
	})
	var out []multiset.Entry[V]
	for _, log := range logs {
		out = append(out, log.values...)
	}
	return out
}

// Append merges another index's entries into this one, concatenating the
// per-key per-version change lists and marking the merged keys dirty.
//
// The other index is read, not consumed; the join and reduce operators
// build a fresh delta index each run and append it into their long-lived
// state.
func (ix *Index[K, V]) Append(other *Index[K, V]) {
	for key, otherByVersion := range other.logs {
		byVersion, ok := ix.logs[key]
		if !ok {
			byVersion = make(map[string]*versionLog[V], len(otherByVersion))
			ix.logs[key] = byVersion
		}
		for vk, otherLog := range otherByVersion {
			log, ok := byVersion[vk]
			if !ok {
				log = &versionLog[V]{at: otherLog.at}
				byVersion[vk] = log
			}
			log.values = append(log.values, otherLog.values...)
		}
		ix.dirty[key] = struct{}{}
	}
}

// Compact advances every stored version of the given keys (all dirty
// keys when none are given) up to the frontier, then consolidates each
// key's per-version values, summing multiplicities of structurally equal
// records and dropping zeros.
//
// Contracts:
//   - The frontier must be ≥ the previous compaction frontier, or
//     ErrInvalidCompactionFrontier is returned
//   - For any version v with frontier.LessEqualVersion(v), ReconstructAt
//     returns the same multiset before and after compaction, up to
//     consolidation of equal records
//   - The compaction frontier becomes the new write floor
func (ix *Index[K, V]) Compact(frontier version.Antichain, keys ...K) error {
	if ix.compaction != nil && !ix.compaction.LessEqual(frontier) {
		return errors.Wrapf(ErrInvalidCompactionFrontier,
			"frontier %s is not beyond previous %s", frontier, ix.compaction)
	}
	if len(keys) == 0 {
		keys = make([]K, 0, len(ix.dirty))
		for key := range ix.dirty {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		byVersion, ok := ix.logs[key]
		if !ok {
			delete(ix.dirty, key)
			continue
		}
		compacted := make(map[string]*versionLog[V], len(byVersion))
		for _, log := range byVersion {
			advanced := log.at.AdvanceBy(frontier)
			vk := advanced.Key()
			target, ok := compacted[vk]
			if !ok {
				target = &versionLog[V]{at: advanced}
				compacted[vk] = target
			}
			target.values = append(target.values, log.values...)
		}
		for vk, log := range compacted {
			log.values = consolidateEntries(log.values)
			if len(log.values) == 0 {
				delete(compacted, vk)
			}
		}
		if len(compacted) == 0 {
			delete(ix.logs, key)
		} else {
			ix.logs[key] = compacted
		}
		delete(ix.dirty, key)
	}
	ix.compaction = &frontier
	return nil
}

// consolidateEntries sums multiplicities of structurally equal records
// and drops zeros, preserving first-appearance order.
func consolidateEntries[V any](entries []multiset.Entry[V]) []multiset.Entry[V] {
	return multiset.New(entries...).Consolidate().Entries()
}
