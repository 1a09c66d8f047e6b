package version

import (
	"testing"

	"github.com/cockroachdb/errors"
)

// TestNew verifies version construction and its structural validation.
func TestNew(t *testing.T) {
	t.Run("valid versions", func(t *testing.T) {
		v, err := New(1, 2, 3)
		if err != nil {
			t.Fatalf("Failed to construct version: %v", err)
		}
		if v.Dim() != 3 {
			t.Errorf("Expected dimension 3, got %d", v.Dim())
		}
		coords := v.Coords()
		if coords[0] != 1 || coords[1] != 2 || coords[2] != 3 {
			t.Errorf("Unexpected coordinates %v", coords)
		}
	})

	t.Run("zero-dimensional version is rejected", func(t *testing.T) {
		_, err := New()
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Expected ErrInvalidVersion, got %v", err)
		}
	})

	t.Run("negative coordinate is rejected", func(t *testing.T) {
		_, err := New(1, -2)
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Expected ErrInvalidVersion, got %v", err)
		}
	})

	t.Run("coordinates are copied on construction", func(t *testing.T) {
		coords := []int{1, 2}
		v, err := New(coords...)
		if err != nil {
			t.Fatalf("Failed to construct version: %v", err)
		}
		coords[0] = 99
		if v.Coords()[0] != 1 {
			t.Error("Version shared the caller's coordinate slice")
		}
	})
}

// TestOf verifies the flexible version specification conversion.
func TestOf(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		v, err := Of(4)
		if err != nil {
			t.Fatalf("Failed to convert int: %v", err)
		}
		if !v.Equals(MustNew(4)) {
			t.Errorf("Expected [4], got %s", v)
		}
	})

	t.Run("int slice", func(t *testing.T) {
		v, err := Of([]int{1, 2})
		if err != nil {
			t.Fatalf("Failed to convert slice: %v", err)
		}
		if !v.Equals(MustNew(1, 2)) {
			t.Errorf("Expected [1,2], got %s", v)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := Of("nope")
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Expected ErrInvalidVersion, got %v", err)
		}
	})
}

// TestOrdering verifies the product order over multi-dimensional
// versions, including incomparability.
func TestOrdering(t *testing.T) {
	t.Run("one-dimensional versions are totally ordered", func(t *testing.T) {
		a, b := MustNew(1), MustNew(2)
		if !a.LessThan(b) {
			t.Error("Expected [1] < [2]")
		}
		if b.LessEqual(a) {
			t.Error("Did not expect [2] ≤ [1]")
		}
	})

	t.Run("pointwise comparison", func(t *testing.T) {
		a, b := MustNew(1, 1), MustNew(1, 2)
		if !a.LessEqual(b) {
			t.Error("Expected [1,1] ≤ [1,2]")
		}
		if !a.LessEqual(a) {
			t.Error("Expected reflexivity")
		}
		if a.LessThan(a) {
			t.Error("LessThan must be strict")
		}
	})

	t.Run("incomparable versions", func(t *testing.T) {
		a, b := MustNew(1, 0), MustNew(0, 1)
		if a.LessEqual(b) || b.LessEqual(a) {
			t.Error("Expected [1,0] and [0,1] to be incomparable")
		}
	})

	t.Run("dimension mismatch panics", func(t *testing.T) {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("Expected a panic comparing mismatched dimensions")
			}
			if err, ok := r.(error); !ok || !errors.Is(err, ErrInvalidVersion) {
				t.Errorf("Expected ErrInvalidVersion panic, got %v", r)
			}
		}()
		MustNew(1).LessEqual(MustNew(1, 2))
	})
}

// TestLattice verifies join and meet as pointwise max and min.
func TestLattice(t *testing.T) {
	a, b := MustNew(1, 3), MustNew(2, 1)

	join := a.Join(b)
	if !join.Equals(MustNew(2, 3)) {
		t.Errorf("Expected join [2,3], got %s", join)
	}

	meet := a.Meet(b)
	if !meet.Equals(MustNew(1, 1)) {
		t.Errorf("Expected meet [1,1], got %s", meet)
	}

	// Join and meet bound their arguments.
	if !a.LessEqual(join) || !b.LessEqual(join) {
		t.Error("Join must be an upper bound")
	}
	if !meet.LessEqual(a) || !meet.LessEqual(b) {
		t.Error("Meet must be a lower bound")
	}
}

// TestScopeCrossing verifies extend, truncate, and applyStep.
func TestScopeCrossing(t *testing.T) {
	t.Run("extend appends a zero coordinate", func(t *testing.T) {
		if !MustNew(3).Extend().Equals(MustNew(3, 0)) {
			t.Error("Expected [3].Extend() = [3,0]")
		}
	})

	t.Run("truncate drops the last coordinate", func(t *testing.T) {
		if !MustNew(3, 7).Truncate().Equals(MustNew(3)) {
			t.Error("Expected [3,7].Truncate() = [3]")
		}
	})

	t.Run("truncate below one dimension panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("Expected a panic truncating a one-dimensional version")
			}
		}()
		MustNew(1).Truncate()
	})

	t.Run("applyStep advances the last coordinate", func(t *testing.T) {
		if !MustNew(3, 1).ApplyStep(2).Equals(MustNew(3, 3)) {
			t.Error("Expected [3,1].ApplyStep(2) = [3,3]")
		}
	})

	t.Run("non-positive step panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("Expected a panic for step 0")
			}
		}()
		MustNew(1).ApplyStep(0)
	})
}

// TestAdvanceBy verifies the compaction primitive: rounding a version up
// to a frontier.
func TestAdvanceBy(t *testing.T) {
	t.Run("empty frontier leaves the version unchanged", func(t *testing.T) {
		v := MustNew(1, 2)
		if !v.AdvanceBy(NewAntichain()).Equals(v) {
			t.Error("Expected the empty frontier to be a no-op")
		}
	})

	t.Run("version beyond the frontier is unchanged", func(t *testing.T) {
		f := NewAntichain(MustNew(1, 0), MustNew(0, 2))
		v := MustNew(2, 1)
		if !v.AdvanceBy(f).Equals(v) {
			t.Errorf("Expected [2,1] unchanged, got %s", v.AdvanceBy(f))
		}
	})

	t.Run("version not covered by the frontier advances to the meet of its joins", func(t *testing.T) {
		f := NewAntichain(MustNew(2, 0), MustNew(0, 3))
		got := MustNew(1, 1).AdvanceBy(f)
		// join with [2,0] is [2,1]; join with [0,3] is [1,3]; their
		// pointwise meet is [1,1], so with this two-element frontier the
		// version does not move even though it is ≥ neither element.
		want := MustNew(2, 1).Meet(MustNew(1, 3))
		if !got.Equals(want) {
			t.Errorf("Expected %s, got %s", want, got)
		}
	})

	t.Run("totally ordered frontier rounds up to it", func(t *testing.T) {
		f := NewAntichain(MustNew(5))
		if !MustNew(2).AdvanceBy(f).Equals(MustNew(5)) {
			t.Error("Expected [2] advanced to [5]")
		}
		if !MustNew(7).AdvanceBy(f).Equals(MustNew(7)) {
			t.Error("Expected [7] unchanged")
		}
	})
}

// TestCompareTotal verifies the deterministic linear extension of the
// product order.
func TestCompareTotal(t *testing.T) {
	earlier, later := MustNew(1, 0), MustNew(1, 1)
	if earlier.CompareTotal(later) >= 0 {
		t.Error("Pointwise-smaller version must sort first")
	}
	// Incomparable versions still order deterministically.
	a, b := MustNew(2, 0), MustNew(0, 2)
	if a.CompareTotal(b) == 0 {
		t.Error("Distinct versions must not compare equal")
	}
	if a.CompareTotal(b) != -b.CompareTotal(a) {
		t.Error("CompareTotal must be antisymmetric")
	}
}
