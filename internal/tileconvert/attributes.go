package tileconvert

import (
	"github.com/pspoerri/geotiff2h3/internal/h3grid"
	"github.com/pspoerri/geotiff2h3/internal/value"
)

// Attributes is an ordered sequence of classified values, one per input
// band. It is present if at least one element is not no-data.
type Attributes []value.Classified

// IsPresent reports whether at least one element carries a concrete
// value.
func (a Attributes) IsPresent() bool {
	for _, c := range a {
		if c.IsPresent() {
			return true
		}
	}
	return false
}

// Equal reports positional equality.
func (a Attributes) Equal(o Attributes) bool {
	if len(a) != len(o) {
		return false
	}
	for i := range a {
		if !a[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// attrKey is a hashable summary of an Attributes vector, used as the
// actual Go map key backing GroupedResult: a Go slice can't be a map key,
// so attrKey packs a combined hash of the elements plus a byte encoding of
// each element (no-data marker, or kind and value hash) into a comparable
// struct that the map compares with ==.
type attrKey struct {
	hash uint64
	vec  string // opaque fingerprint, see encodeVec
}

// Key computes the map key for a. Two Attributes vectors that are Equal
// always produce the same Key; vectors that are not Equal produce
// different keys with overwhelming probability (collision would require
// an opaque-fingerprint collision, in addition to a hash collision).
func (a Attributes) Key() attrKey {
	h := uint64(1469598103934665603) // FNV offset basis
	enc := make([]byte, 0, len(a)*9)
	for _, c := range a {
		ch := c.Hash()
		h ^= ch
		h *= 1099511628211
		if v, ok := c.Value(); ok {
			enc = append(enc, byte(v.Kind())+1)
			bits := v.Hash()
			for i := 0; i < 8; i++ {
				enc = append(enc, byte(bits>>(8*i)))
			}
		} else {
			enc = append(enc, 0)
		}
	}
	return attrKey{hash: h, vec: string(enc)}
}

// GroupedResult maps an attribute combination to the hex stack covering
// the pixels that carry it. Keys are compared by attribute equality (via
// attrKey, which is collision-safe for Go map use); the Attributes value
// itself is kept alongside so callers can recover the original vector.
type GroupedResult struct {
	entries map[attrKey]*groupedEntry
}

type groupedEntry struct {
	attributes Attributes
	stack      *h3grid.HexStack
}

// NewGroupedResult returns an empty result map.
func NewGroupedResult() *GroupedResult {
	return &GroupedResult{entries: make(map[attrKey]*groupedEntry)}
}

// Len returns the number of distinct attribute combinations present.
func (g *GroupedResult) Len() int { return len(g.entries) }

// Range calls f once per (attributes, stack) pair. Iteration order is
// unspecified, matching Go map semantics.
func (g *GroupedResult) Range(f func(attrs Attributes, stack *h3grid.HexStack)) {
	for _, e := range g.entries {
		f(e.attributes, e.stack)
	}
}

// StackFor returns the stack for attrs, creating an empty one if absent.
func (g *GroupedResult) StackFor(attrs Attributes) *h3grid.HexStack {
	key := attrs.Key()
	e, ok := g.entries[key]
	if !ok {
		e = &groupedEntry{attributes: attrs, stack: h3grid.NewHexStack()}
		g.entries[key] = e
	}
	return e.stack
}
