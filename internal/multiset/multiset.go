// Package multiset implements signed-multiplicity bags of records, the
// change-batch representation carried on every stream edge.
// See doc.go for complete package documentation.
package multiset

import (
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/exp/slices"
)

// Entry is a single (record, multiplicity) pair.
//
// Multiplicity is a signed integer: positive multiplicities are
// insertions, negative multiplicities are retractions, and zero means
// the record is absent. A multiplicity of 2 is two copies of the record.
type Entry[T any] struct {
	// Record is the payload. Records are compared structurally (see
	// RecordKey); the package never mutates them.
	Record T

	// Mult is the signed multiplicity of the record.
	Mult int
}

// KV is a keyed record. Stateful operators (join, reduce, count,
// distinct) operate on collections of KV entries, grouping by Key.
type KV[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// Pair is a join output value. The sides are pointers so that outer join
// variants can represent an absent side as nil; inner joins always
// populate both sides.
//
// Pairs are compared structurally through RecordKey, which serializes
// through the pointers, so two pairs with equal pointees consolidate
// together even when the pointers differ.
type Pair[L, R any] struct {
	Left  *L `json:"left"`
	Right *R `json:"right"`
}

// PairOf builds an inner-join pair with both sides present.
func PairOf[L, R any](left L, right R) Pair[L, R] {
	return Pair[L, R]{Left: &left, Right: &right}
}

// LeftOnly builds an outer-join pair with an absent right side.
func LeftOnly[L, R any](left L) Pair[L, R] {
	return Pair[L, R]{Left: &left}
}

// RightOnly builds an outer-join pair with an absent left side.
func RightOnly[L, R any](right R) Pair[L, R] {
	return Pair[L, R]{Right: &right}
}

// MultiSet is an ordered sequence of (record, multiplicity) entries.
//
// Semantically a MultiSet is a bag: the order of entries carries no
// meaning, multiplicity zero means absent, and the same record may appear
// in several entries until Consolidate coalesces them. Negative
// multiplicities are allowed and meaningful; they represent retractions.
//
// MultiSet values are conceptually immutable once emitted on a stream
// edge: every transformation except Extend returns a new MultiSet backed
// by a fresh entry slice, and readers share emitted collections by
// reference.
//
// Example:
//
//	m := multiset.New(
//	    multiset.Entry[string]{Record: "a", Mult: 1},
//	    multiset.Entry[string]{Record: "a", Mult: -1},
//	    multiset.Entry[string]{Record: "b", Mult: 2},
//	)
//	m.Consolidate() // [(b, 2)]
type MultiSet[T any] struct {
	// entries holds the (record, multiplicity) pairs in insertion order.
	entries []Entry[T]
}

// New creates a MultiSet from the given entries. The entries are copied;
// the caller keeps ownership of the slice.
func New[T any](entries ...Entry[T]) MultiSet[T] {
	return MultiSet[T]{entries: slices.Clone(entries)}
}

// FromRecords creates a MultiSet containing each record once with
// multiplicity 1.
func FromRecords[T any](records ...T) MultiSet[T] {
	entries := make([]Entry[T], len(records))
	for i, r := range records {
		entries[i] = Entry[T]{Record: r, Mult: 1}
	}
	return MultiSet[T]{entries: entries}
}

// Entries returns a copy of the underlying entries. The returned slice
// is independent of the MultiSet.
func (m MultiSet[T]) Entries() []Entry[T] {
	return slices.Clone(m.entries)
}

// Len returns the number of entries (not the sum of multiplicities).
func (m MultiSet[T]) Len() int {
	return len(m.entries)
}

// IsEmpty reports whether the MultiSet has no entries at all. An empty
// MultiSet is the additive identity for Concat.
func (m MultiSet[T]) IsEmpty() bool {
	return len(m.entries) == 0
}

// Map applies f to every record, preserving multiplicities. It is a free
// function because the result record type may differ from the input.
func Map[T, U any](m MultiSet[T], f func(T) U) MultiSet[U] {
	out := make([]Entry[U], len(m.entries))
	for i, e := range m.entries {
		out[i] = Entry[U]{Record: f(e.Record), Mult: e.Mult}
	}
	return MultiSet[U]{entries: out}
}

// Filter keeps the entries whose record satisfies pred, preserving
// multiplicities.
func (m MultiSet[T]) Filter(pred func(T) bool) MultiSet[T] {
	out := make([]Entry[T], 0, len(m.entries))
	for _, e := range m.entries {
		if pred(e.Record) {
			out = append(out, e)
		}
	}
	return MultiSet[T]{entries: out}
}

// Negate flips the sign of every multiplicity, turning insertions into
// retractions and vice versa. Negate is an involution: negating twice
// yields a semantically identical MultiSet.
func (m MultiSet[T]) Negate() MultiSet[T] {
	out := make([]Entry[T], len(m.entries))
	for i, e := range m.entries {
		out[i] = Entry[T]{Record: e.Record, Mult: -e.Mult}
	}
	return MultiSet[T]{entries: out}
}

// Concat returns a new MultiSet holding the entries of m followed by the
// entries of other. Neither input is modified.
func (m MultiSet[T]) Concat(other MultiSet[T]) MultiSet[T] {
	out := make([]Entry[T], 0, len(m.entries)+len(other.entries))
	out = append(out, m.entries...)
	out = append(out, other.entries...)
	return MultiSet[T]{entries: out}
}

// Extend appends the entries of other in place. It is the one mutating
// operation, used by operators accumulating batches before emission;
// emitted MultiSets must not be extended.
func (m *MultiSet[T]) Extend(other MultiSet[T]) {
	m.entries = append(m.entries, other.entries...)
}

// Consolidate coalesces entries with structurally equal records by
// summing their multiplicities and drops entries whose sum is zero.
//
// Behavior:
//   - Record identity follows RecordKey (value identity for numbers and
//     strings, canonical serialization otherwise)
//   - Output order is the first-appearance order of each surviving
//     record; callers must not rely on any particular order
//   - Consolidate is idempotent: consolidating a consolidated MultiSet
//     returns the same (record, multiplicity) content
func (m MultiSet[T]) Consolidate() MultiSet[T] {
	type acc struct {
		record T
		mult   int
	}
	sums := make(map[string]*acc, len(m.entries))
	order := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		k := RecordKey(e.Record)
		if a, ok := sums[k]; ok {
			a.mult += e.Mult
			continue
		}
		sums[k] = &acc{record: e.Record, mult: e.Mult}
		order = append(order, k)
	}
	out := make([]Entry[T], 0, len(order))
	for _, k := range order {
		a := sums[k]
		if a.mult == 0 {
			continue
		}
		out = append(out, Entry[T]{Record: a.record, Mult: a.mult})
	}
	return MultiSet[T]{entries: out}
}

// String formats the MultiSet as a list of record/multiplicity pairs.
func (m MultiSet[T]) String() string {
	s := "["
	for i, e := range m.entries {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("(%v,%d)", e.Record, e.Mult)
	}
	return s + "]"
}

// RecordKey returns a canonical string identity for a record, used by
// Consolidate, distinct, reduce, and the index to group structurally
// equal records.
//
// Identity rules:
//   - Strings, integers, floats, and booleans key by value
//   - Everything else keys by canonical JSON serialization, which is
//     deterministic for a given value (Go serializes map keys sorted)
//
// The exact encoding is private to the engine; only determinism is
// promised.
func RecordKey(record any) string {
	switch r := record.(type) {
	case string:
		return "s:" + r
	case int:
		return "i:" + strconv.Itoa(r)
	case int8:
		return "i:" + strconv.FormatInt(int64(r), 10)
	case int16:
		return "i:" + strconv.FormatInt(int64(r), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(r), 10)
	case int64:
		return "i:" + strconv.FormatInt(r, 10)
	case uint:
		return "u:" + strconv.FormatUint(uint64(r), 10)
	case uint64:
		return "u:" + strconv.FormatUint(r, 10)
	case float32:
		return "f:" + strconv.FormatFloat(float64(r), 'g', -1, 32)
	case float64:
		return "f:" + strconv.FormatFloat(r, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(r)
	default:
		b, err := json.Marshal(record)
		if err != nil {
			// Unserializable records fall back to the fmt
			// representation, which is deterministic for the value
			// shapes the engine carries.
			return "v:" + fmt.Sprintf("%#v", record)
		}
		return "j:" + string(b)
	}
}
