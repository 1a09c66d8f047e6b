// Package version implements the partially ordered timestamps that make
// incremental computation over iteratively produced data consistent.
// See doc.go for complete package documentation.
package version

import (
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// Antichain is a minimal set of pairwise-incomparable Versions, used as a
// frontier: a promise that no future data will arrive at any version less
// than some element.
//
// Invariants maintained by construction:
//   - No element is ≤ any other element (pairwise incomparable)
//   - All elements have the same dimension
//
// The empty antichain is meaningful: it promises that no further progress
// is possible at all, and is how a finished computation reads.
//
// Antichain is a value type. All operations return new values; the
// element slice is never shared mutably. Like Version, Antichain values
// may be copied and compared freely.
//
// Example:
//
//	f := version.NewAntichain(version.MustNew(1, 0), version.MustNew(0, 2))
//	f.LessEqualVersion(version.MustNew(1, 2)) // true: [1,0] ≤ [1,2]
//	f.LessEqualVersion(version.MustNew(0, 1)) // false
type Antichain struct {
	// elements holds the minimal versions. Maintained pairwise
	// incomparable by Insert; never mutated in place after construction.
	elements []Version
}

// NewAntichain constructs an antichain from the given versions,
// discarding any version dominated by another. Order of the arguments
// does not matter.
func NewAntichain(vs ...Version) Antichain {
	a := Antichain{}
	for _, v := range vs {
		a = a.Insert(v)
	}
	return a
}

// FrontierOf converts a flexible frontier specification into an
// Antichain.
//
// Accepted forms:
//   - int: a singleton frontier at a one-dimensional version
//   - []int: a singleton frontier at the given coordinates
//   - Version: a singleton frontier
//   - []Version: the minimal antichain over the versions
//   - Antichain: returned unchanged
//
// Returns:
//   - The converted Antichain
//   - ErrInvalidVersion if the specification is malformed or of an
//     unsupported type
func FrontierOf(spec any) (Antichain, error) {
	switch s := spec.(type) {
	case Antichain:
		return s, nil
	case []Version:
		return NewAntichain(s...), nil
	default:
		v, err := Of(spec)
		if err != nil {
			return Antichain{}, errors.Wrapf(err, "frontier specification %T", spec)
		}
		return NewAntichain(v), nil
	}
}

// IsEmpty reports whether the antichain has no elements, meaning no
// further progress is possible.
func (a Antichain) IsEmpty() bool {
	return len(a.elements) == 0
}

// Len returns the number of minimal elements.
func (a Antichain) Len() int {
	return len(a.elements)
}

// Elements returns a copy of the minimal elements. The returned slice is
// independent of the antichain.
func (a Antichain) Elements() []Version {
	return slices.Clone(a.elements)
}

// Insert returns the antichain with v added, preserving minimality:
//   - If any existing element is ≤ v, the antichain is returned unchanged
//   - Otherwise all existing elements ≥ v are dropped and v is added
func (a Antichain) Insert(v Version) Antichain {
	for _, e := range a.elements {
		if e.LessEqual(v) {
			return a
		}
	}
	out := make([]Version, 0, len(a.elements)+1)
	for _, e := range a.elements {
		if !v.LessEqual(e) {
			out = append(out, e)
		}
	}
	out = append(out, v)
	return Antichain{elements: out}
}

// Meet returns the minimal antichain over the union of both element
// sets: the frontier that promises no more than either input. For
// frontiers this is the lower bound an operator with two inputs may
// promise downstream.
func (a Antichain) Meet(other Antichain) Antichain {
	out := a
	for _, e := range other.elements {
		out = out.Insert(e)
	}
	return out
}

// LessEqual reports whether a ≤ other as frontiers: every element of
// other is ≥ some element of a. A frontier that is ≤ another promises no
// more than it.
//
// Edge cases:
//   - other empty: true (the empty frontier is the maximum)
//   - a empty, other non-empty: false
func (a Antichain) LessEqual(other Antichain) bool {
	for _, o := range other.elements {
		if !a.LessEqualVersion(o) {
			return false
		}
	}
	return true
}

// LessEqualVersion reports whether some element of the antichain is ≤ v,
// i.e. whether data at v is still possible under this frontier.
func (a Antichain) LessEqualVersion(v Version) bool {
	for _, e := range a.elements {
		if e.LessEqual(v) {
			return true
		}
	}
	return false
}

// Equals reports whether both antichains contain the same element set.
func (a Antichain) Equals(other Antichain) bool {
	if len(a.elements) != len(other.elements) {
		return false
	}
	return a.LessEqual(other) && other.LessEqual(a)
}

// Extend lifts every element into an iteration scope by appending a zero
// coordinate. Extension preserves incomparability, so the result is
// already minimal.
func (a Antichain) Extend() Antichain {
	out := make([]Version, len(a.elements))
	for i, e := range a.elements {
		out[i] = e.Extend()
	}
	return Antichain{elements: out}
}

// Truncate drops the last coordinate of every element and re-minimizes:
// truncation can make previously incomparable elements comparable.
func (a Antichain) Truncate() Antichain {
	out := Antichain{}
	for _, e := range a.elements {
		out = out.Insert(e.Truncate())
	}
	return out
}

// ApplyStep advances the last coordinate of every element by step.
// Translation preserves incomparability, so the result is already
// minimal.
func (a Antichain) ApplyStep(step int) Antichain {
	out := make([]Version, len(a.elements))
	for i, e := range a.elements {
		out[i] = e.ApplyStep(step)
	}
	return Antichain{elements: out}
}

// Key returns a canonical string encoding of the antichain, suitable for
// use as a map key. Equal antichains produce equal keys regardless of
// construction order.
func (a Antichain) Key() string {
	keys := make([]string, len(a.elements))
	for i, e := range a.elements {
		keys[i] = e.Key()
	}
	slices.Sort(keys)
	return strings.Join(keys, ";")
}

// String formats the antichain as a brace-wrapped list of versions,
// e.g. {[1,0] [0,2]}.
func (a Antichain) String() string {
	parts := make([]string, len(a.elements))
	for i, e := range a.elements {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
