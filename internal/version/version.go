// Package version implements the partially ordered timestamps that make
// incremental computation over iteratively produced data consistent.
// See doc.go for complete package documentation.
package version

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// ErrInvalidVersion is returned (or carried by a panic, for comparison
// misuse) when a version is structurally invalid.
//
// A version is invalid when:
//   - It has zero coordinates (the zero-dimensional version is disallowed)
//   - Any coordinate is negative
//   - It is compared or combined with a version of a different dimension
//
// Callers should check for this error with errors.Is:
//
//	v, err := version.New(1, -2)
//	if errors.Is(err, version.ErrInvalidVersion) {
//	    // Handle malformed version
//	}
var ErrInvalidVersion = errors.New("invalid version")

// Version is a point in a partially ordered time: a tuple of non-negative
// integers of fixed dimension within a scope.
//
// Ordering semantics:
//   - One-dimensional versions are totally ordered (plain integer order)
//   - Higher-dimensional versions compare pointwise (product order), so
//     two versions may be incomparable: neither [1,0] ≤ [0,1] nor the
//     reverse holds
//
// Versions are value types. Equal payloads are interchangeable; the
// package never exposes shared mutable state, so Version values may be
// copied, stored, and compared freely across goroutines.
//
// The extra trailing coordinates carried by versions inside an iteration
// scope count loop iterations; Extend, Truncate, and ApplyStep are the
// scope-crossing operations (see the graph package).
//
// Example:
//
//	v := version.MustNew(1, 2)
//	w := version.MustNew(2, 1)
//	v.LessEqual(w) // false: incomparable
//	v.Join(w)      // [2,2]
//	v.Meet(w)      // [1,1]
type Version struct {
	// coords holds the version coordinates. It is never mutated after
	// construction and never handed out without copying.
	coords []int
}

// New creates a Version from the given coordinates.
//
// Behavior:
//   - Returns ErrInvalidVersion if no coordinates are given
//   - Returns ErrInvalidVersion if any coordinate is negative
//   - The coordinate slice is copied; the caller keeps ownership
//
// Parameters:
//   - coords: The version coordinates (at least one, all non-negative)
//
// Returns:
//   - The constructed Version
//   - ErrInvalidVersion on structural misuse
func New(coords ...int) (Version, error) {
	if len(coords) == 0 {
		return Version{}, errors.Wrap(ErrInvalidVersion, "version must have at least one coordinate")
	}
	for i, c := range coords {
		if c < 0 {
			return Version{}, errors.Wrapf(ErrInvalidVersion, "coordinate %d is negative (%d)", i, c)
		}
	}
	return Version{coords: slices.Clone(coords)}, nil
}

// MustNew creates a Version from the given coordinates and panics on
// structural misuse. It is intended for literals in tests and examples
// where the coordinates are statically known to be valid.
func MustNew(coords ...int) Version {
	v, err := New(coords...)
	if err != nil {
		panic(err)
	}
	return v
}

// Of converts a flexible version specification into a Version.
//
// Accepted forms:
//   - int: a one-dimensional version
//   - []int: coordinates of a (possibly multi-dimensional) version
//   - Version: returned unchanged
//
// This is the conversion used by input handles so that callers can write
// SendData(1, ...) without constructing Version values by hand.
//
// Returns:
//   - The converted Version
//   - ErrInvalidVersion if the specification is malformed or of an
//     unsupported type
func Of(spec any) (Version, error) {
	switch s := spec.(type) {
	case Version:
		if len(s.coords) == 0 {
			return Version{}, errors.Wrap(ErrInvalidVersion, "zero value Version")
		}
		return s, nil
	case int:
		return New(s)
	case []int:
		return New(s...)
	default:
		return Version{}, errors.Wrapf(ErrInvalidVersion, "unsupported version specification %T", spec)
	}
}

// Dim returns the number of coordinates.
func (v Version) Dim() int {
	return len(v.coords)
}

// Coords returns a copy of the version coordinates.
//
// The returned slice is independent of the Version; mutating it does not
// affect the Version or any other holder of it.
func (v Version) Coords() []int {
	return slices.Clone(v.coords)
}

// mustMatchDim panics with ErrInvalidVersion when two versions of
// different dimensions are compared or combined. Mixing dimensions is a
// programming error of the dataflow author, not a runtime condition.
func (v Version) mustMatchDim(other Version) {
	if len(v.coords) != len(other.coords) {
		panic(errors.Wrapf(ErrInvalidVersion,
			"dimension mismatch: %s vs %s", v.String(), other.String()))
	}
}

// Equals reports whether both versions carry identical coordinates.
func (v Version) Equals(other Version) bool {
	v.mustMatchDim(other)
	return slices.Equal(v.coords, other.coords)
}

// LessEqual reports whether v ≤ other in the product order: every
// coordinate of v is less than or equal to the matching coordinate of
// other.
func (v Version) LessEqual(other Version) bool {
	v.mustMatchDim(other)
	for i := range v.coords {
		if v.coords[i] > other.coords[i] {
			return false
		}
	}
	return true
}

// LessThan reports whether v ≤ other and v ≠ other.
func (v Version) LessThan(other Version) bool {
	return v.LessEqual(other) && !v.Equals(other)
}

// Join returns the pointwise maximum of the two versions: the least
// version that is ≥ both.
func (v Version) Join(other Version) Version {
	v.mustMatchDim(other)
	out := make([]int, len(v.coords))
	for i := range v.coords {
		out[i] = max(v.coords[i], other.coords[i])
	}
	return Version{coords: out}
}

// Meet returns the pointwise minimum of the two versions: the greatest
// version that is ≤ both.
func (v Version) Meet(other Version) Version {
	v.mustMatchDim(other)
	out := make([]int, len(v.coords))
	for i := range v.coords {
		out[i] = min(v.coords[i], other.coords[i])
	}
	return Version{coords: out}
}

// Extend appends a zero coordinate, moving the version into an iteration
// scope. The new coordinate counts loop iterations and starts at zero.
func (v Version) Extend() Version {
	out := make([]int, len(v.coords)+1)
	copy(out, v.coords)
	return Version{coords: out}
}

// Truncate drops the last coordinate, moving the version out of an
// iteration scope.
//
// Truncating a one-dimensional version would produce the disallowed
// zero-dimensional version; that is a programming error and panics with
// ErrInvalidVersion.
func (v Version) Truncate() Version {
	if len(v.coords) <= 1 {
		panic(errors.Wrapf(ErrInvalidVersion, "cannot truncate %s below one dimension", v.String()))
	}
	return Version{coords: slices.Clone(v.coords[:len(v.coords)-1])}
}

// ApplyStep adds step to the last coordinate, advancing the version by
// step iterations within its innermost scope. step must be positive;
// zero or negative steps are a programming error and panic with
// ErrInvalidVersion.
func (v Version) ApplyStep(step int) Version {
	if step <= 0 {
		panic(errors.Wrapf(ErrInvalidVersion, "step must be positive, got %d", step))
	}
	out := slices.Clone(v.coords)
	out[len(out)-1] += step
	return Version{coords: out}
}

// AdvanceBy rounds the version up toward the frontier: the meet, over
// all frontier elements, of the element's join with v. For a
// single-element frontier this is the smallest version that is ≥ v and
// ≥ that element; with several elements the result need not be ≥ any
// single element (e.g. [1,1] by {[2,0] [0,3]} stays [1,1]).
//
// Behavior:
//   - The empty frontier leaves the version unchanged
//   - A version already at or beyond some frontier element is unchanged
//   - Otherwise the result is the meet over all frontier elements of
//     the element-wise join with v
//
// AdvanceBy is the primitive behind index compaction: versions the
// frontier has sealed are advanced to the frontier so that equal records
// can be coalesced without changing any reconstruction at or beyond it.
func (v Version) AdvanceBy(frontier Antichain) Version {
	if frontier.IsEmpty() {
		return v
	}
	var out Version
	for i, e := range frontier.elements {
		j := v.Join(e)
		if i == 0 {
			out = j
			continue
		}
		out = out.Meet(j)
	}
	return out
}

// Key returns a canonical string encoding of the coordinates, suitable
// for use as a map key. Equal versions produce equal keys.
func (v Version) Key() string {
	var b strings.Builder
	for i, c := range v.coords {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c))
	}
	return b.String()
}

// coordSum returns the sum of all coordinates. The (sum, lexicographic)
// order is a linear extension of the product order: if v < w pointwise
// then coordSum(v) < coordSum(w). Stateful operators use it to process
// sealed versions earlier-first.
func (v Version) coordSum() int {
	total := 0
	for _, c := range v.coords {
		total += c
	}
	return total
}

// CompareTotal orders two versions by (coordinate sum, lexicographic
// coordinates). It returns a negative value when v sorts before other,
// zero when equal, and a positive value otherwise.
//
// This is a deterministic linear extension of the partial order, used
// wherever per-version work must run earlier-versions-first.
func (v Version) CompareTotal(other Version) int {
	v.mustMatchDim(other)
	if d := v.coordSum() - other.coordSum(); d != 0 {
		return d
	}
	return slices.Compare(v.coords, other.coords)
}

// String formats the version as a bracketed coordinate list, e.g. [1,2].
func (v Version) String() string {
	return "[" + v.Key() + "]"
}
