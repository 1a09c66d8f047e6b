package multiset

import (
	"testing"
)

// sumMults returns the signed sum of all multiplicities.
func sumMults[T any](m MultiSet[T]) int {
	total := 0
	for _, e := range m.Entries() {
		total += e.Mult
	}
	return total
}

// contentByKey reduces a multiset to its consolidated record → net
// multiplicity mapping, the semantic content tests compare.
func contentByKey[T any](m MultiSet[T]) map[string]int {
	out := make(map[string]int)
	for _, e := range m.Entries() {
		out[RecordKey(e.Record)] += e.Mult
	}
	for k, mult := range out {
		if mult == 0 {
			delete(out, k)
		}
	}
	return out
}

// TestMultiSetBasics tests construction and the copy-out discipline.
func TestMultiSetBasics(t *testing.T) {
	t.Run("new multiset copies its entries", func(t *testing.T) {
		entries := []Entry[int]{{Record: 1, Mult: 1}}
		m := New(entries...)
		entries[0].Mult = 99
		if m.Entries()[0].Mult != 1 {
			t.Error("MultiSet shared the caller's entry slice")
		}
	})

	t.Run("entries returns an independent slice", func(t *testing.T) {
		m := New(Entry[int]{Record: 1, Mult: 1})
		out := m.Entries()
		out[0].Mult = 99
		if m.Entries()[0].Mult != 1 {
			t.Error("Entries must return a copy")
		}
	})

	t.Run("from records assigns multiplicity one", func(t *testing.T) {
		m := FromRecords("a", "b")
		if m.Len() != 2 {
			t.Fatalf("Expected 2 entries, got %d", m.Len())
		}
		for _, e := range m.Entries() {
			if e.Mult != 1 {
				t.Errorf("Expected multiplicity 1, got %d", e.Mult)
			}
		}
	})
}

// TestMap verifies transformation and conservation of multiplicities.
func TestMap(t *testing.T) {
	m := New(
		Entry[int]{Record: 1, Mult: 2},
		Entry[int]{Record: 2, Mult: -1},
	)
	mapped := Map(m, func(x int) int { return x + 5 })

	if mapped.Entries()[0].Record != 6 || mapped.Entries()[1].Record != 7 {
		t.Errorf("Unexpected mapped records: %s", mapped)
	}
	// Conservation: map preserves the signed sum of multiplicities.
	if sumMults(mapped) != sumMults(m) {
		t.Errorf("Map changed the multiplicity sum: %d vs %d", sumMults(mapped), sumMults(m))
	}
}

// TestFilter verifies predicate filtering.
func TestFilter(t *testing.T) {
	m := New(
		Entry[int]{Record: 1, Mult: 1},
		Entry[int]{Record: 2, Mult: 3},
		Entry[int]{Record: 3, Mult: -1},
	)
	even := m.Filter(func(x int) bool { return x%2 == 0 })
	if even.Len() != 1 || even.Entries()[0].Record != 2 {
		t.Errorf("Unexpected filter result: %s", even)
	}
}

// TestNegate verifies the involution property.
func TestNegate(t *testing.T) {
	m := New(
		Entry[string]{Record: "a", Mult: 2},
		Entry[string]{Record: "b", Mult: -1},
	)
	neg := m.Negate()
	if neg.Entries()[0].Mult != -2 || neg.Entries()[1].Mult != 1 {
		t.Errorf("Unexpected negation: %s", neg)
	}
	// negate ∘ negate = identity, semantically.
	twice := neg.Negate()
	back := contentByKey(twice)
	orig := contentByKey(m)
	if len(back) != len(orig) {
		t.Fatalf("Double negation changed content: %v vs %v", back, orig)
	}
	for k, mult := range orig {
		if back[k] != mult {
			t.Errorf("Double negation changed %s: %d vs %d", k, back[k], mult)
		}
	}
}

// TestConcatExtend verifies appending, immutably and in place.
func TestConcatExtend(t *testing.T) {
	a := New(Entry[int]{Record: 1, Mult: 1})
	b := New(Entry[int]{Record: 2, Mult: 1})

	c := a.Concat(b)
	if c.Len() != 2 || a.Len() != 1 || b.Len() != 1 {
		t.Error("Concat must not modify its inputs")
	}

	a.Extend(b)
	if a.Len() != 2 {
		t.Error("Extend must append in place")
	}
}

// TestConsolidate verifies coalescing, zero-dropping, and idempotence.
func TestConsolidate(t *testing.T) {
	t.Run("coalesces equal records and drops zeros", func(t *testing.T) {
		m := New(
			Entry[int]{Record: 1, Mult: 1},
			Entry[int]{Record: 2, Mult: 1},
			Entry[int]{Record: 1, Mult: 2},
			Entry[int]{Record: 2, Mult: -1},
		)
		c := m.Consolidate()
		content := contentByKey(c)
		if len(content) != 1 || content[RecordKey(1)] != 3 {
			t.Errorf("Unexpected consolidation: %s", c)
		}
	})

	t.Run("idempotence", func(t *testing.T) {
		m := New(
			Entry[string]{Record: "x", Mult: 2},
			Entry[string]{Record: "y", Mult: -1},
			Entry[string]{Record: "x", Mult: 1},
		)
		once := m.Consolidate()
		twice := once.Consolidate()
		a, b := contentByKey(once), contentByKey(twice)
		if len(a) != len(b) {
			t.Fatalf("Consolidate is not idempotent: %v vs %v", a, b)
		}
		for k, mult := range a {
			if b[k] != mult {
				t.Errorf("Consolidate is not idempotent at %s: %d vs %d", k, b[k], mult)
			}
		}
	})

	t.Run("structural identity for composite records", func(t *testing.T) {
		type point struct {
			X, Y int
		}
		m := New(
			Entry[point]{Record: point{1, 2}, Mult: 1},
			Entry[point]{Record: point{1, 2}, Mult: 1},
			Entry[point]{Record: point{2, 1}, Mult: 1},
		)
		c := m.Consolidate()
		if c.Len() != 2 {
			t.Errorf("Expected 2 distinct records, got %s", c)
		}
	})
}

// TestRecordKey verifies the identity rules the engine's grouping relies
// on.
func TestRecordKey(t *testing.T) {
	t.Run("value identity for scalars", func(t *testing.T) {
		if RecordKey(1) != RecordKey(1) || RecordKey("a") != RecordKey("a") {
			t.Error("Equal scalars must share a key")
		}
		if RecordKey(1) == RecordKey("1") {
			t.Error("Different types must not collide")
		}
	})

	t.Run("deterministic for composite records", func(t *testing.T) {
		type rec struct {
			A string
			B int
		}
		if RecordKey(rec{"x", 1}) != RecordKey(rec{"x", 1}) {
			t.Error("Equal structs must share a key")
		}
		if RecordKey(rec{"x", 1}) == RecordKey(rec{"x", 2}) {
			t.Error("Different structs must not collide")
		}
	})

	t.Run("pairs compare through their pointers", func(t *testing.T) {
		a := PairOf("l", "r")
		b := PairOf("l", "r")
		if RecordKey(a) != RecordKey(b) {
			t.Error("Pairs with equal pointees must share a key")
		}
		if RecordKey(LeftOnly[string, string]("l")) == RecordKey(a) {
			t.Error("A padded pair must not collide with a full pair")
		}
	})
}
