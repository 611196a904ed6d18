package geometry

import (
	"fmt"
	"math"
)

// ROI is a region-of-interest specification that can be resolved against a
// spatial shape into a concrete bounding box. The supported forms are
// CenterSize, StartEnd, Slices and Scale.
type ROI interface {
	Resolve(spatial []int) (Box, error)
}

// CenterSize selects a region by its center voxel and its extent per axis.
// Size components that are zero or negative select the full axis. A region
// reaching past the image border is clipped, never padded.
type CenterSize struct {
	Center []int
	Size   []int
}

// Resolve computes start = center - size/2 and end = start + size per axis,
// clipped to the image bounds.
func (r CenterSize) Resolve(spatial []int) (Box, error) {
	if len(r.Center) != len(spatial) {
		return Box{}, fmt.Errorf("roi center has %d components, image has %d spatial axes", len(r.Center), len(spatial))
	}
	if len(r.Size) != len(spatial) {
		return Box{}, fmt.Errorf("roi size has %d components, image has %d spatial axes", len(r.Size), len(spatial))
	}
	size := EffectiveSize(r.Size, spatial)
	start := make([]int, len(spatial))
	end := make([]int, len(spatial))
	for i := range spatial {
		start[i] = r.Center[i] - size[i]/2
		end[i] = start[i] + size[i]
	}
	return NewBox(start, end).Clip(spatial), nil
}

// StartEnd selects a region by explicit start and end coordinates per axis.
// Coordinates are clipped to the image; an end before its start collapses to
// a zero extent on that axis.
type StartEnd struct {
	Start []int
	End   []int
}

// Resolve clips the configured coordinates to the image bounds.
func (r StartEnd) Resolve(spatial []int) (Box, error) {
	if len(r.Start) != len(spatial) {
		return Box{}, fmt.Errorf("roi start has %d components, image has %d spatial axes", len(r.Start), len(spatial))
	}
	if len(r.End) != len(spatial) {
		return Box{}, fmt.Errorf("roi end has %d components, image has %d spatial axes", len(r.End), len(spatial))
	}
	return NewBox(r.Start, r.End).Clip(spatial), nil
}

// Range selects the half-open interval [Start, End) on a single axis using
// slice conventions: negative components count back from the axis length and
// an open bound takes the full extent on its side.
type Range struct {
	start    int
	end      int
	hasStart bool
	hasEnd   bool
}

// NewRange creates a range with both bounds set.
func NewRange(start, end int) Range {
	return Range{start: start, end: end, hasStart: true, hasEnd: true}
}

// RangeFrom creates a range open at the upper end.
func RangeFrom(start int) Range {
	return Range{start: start, hasStart: true}
}

// RangeTo creates a range open at the lower end.
func RangeTo(end int) Range {
	return Range{end: end, hasEnd: true}
}

// FullRange creates a range covering a whole axis.
func FullRange() Range {
	return Range{}
}

// Resolve maps the range onto an axis of the given length, returning the
// clipped [lo, hi) interval.
func (r Range) Resolve(dim int) (lo, hi int) {
	lo = 0
	if r.hasStart {
		lo = r.start
		if lo < 0 {
			lo += dim
		}
		if lo < 0 {
			lo = 0
		}
		if lo > dim {
			lo = dim
		}
	}
	hi = dim
	if r.hasEnd {
		hi = r.end
		if hi < 0 {
			hi += dim
		}
		if hi < 0 {
			hi = 0
		}
		if hi > dim {
			hi = dim
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Slices selects a region from one explicit Range per axis.
type Slices struct {
	Ranges []Range
}

// Resolve maps each range onto its axis.
func (r Slices) Resolve(spatial []int) (Box, error) {
	if len(r.Ranges) != len(spatial) {
		return Box{}, fmt.Errorf("roi has %d ranges, image has %d spatial axes", len(r.Ranges), len(spatial))
	}
	start := make([]int, len(spatial))
	end := make([]int, len(spatial))
	for i, rg := range r.Ranges {
		start[i], end[i] = rg.Resolve(spatial[i])
	}
	return Box{Start: start, End: end}, nil
}

// Scale selects a region centered in the image and sized relative to it,
// one factor per axis. Factors that are zero or negative select the full
// axis; factors above one clip to the image.
type Scale struct {
	Factors []float64
}

// Resolve converts the factors to a concrete size and centers the region.
func (r Scale) Resolve(spatial []int) (Box, error) {
	if len(r.Factors) != len(spatial) {
		return Box{}, fmt.Errorf("roi scale has %d factors, image has %d spatial axes", len(r.Factors), len(spatial))
	}
	center := make([]int, len(spatial))
	for i, dim := range spatial {
		center[i] = dim / 2
	}
	return CenterSize{Center: center, Size: ScaledSize(r.Factors, spatial)}.Resolve(spatial)
}

// EffectiveSize replaces non-positive size components with the matching
// image dimension, so that a component of -1 (or 0) means "the whole axis".
func EffectiveSize(size, spatial []int) []int {
	out := make([]int, len(size))
	for i, s := range size {
		if s <= 0 && i < len(spatial) {
			out[i] = spatial[i]
		} else {
			out[i] = s
		}
	}
	return out
}

// ScaledSize converts per-axis scale factors to integer sizes by rounding
// factor*dim up. Non-positive factors select the full axis.
func ScaledSize(factors []float64, spatial []int) []int {
	size := make([]int, len(factors))
	for i, f := range factors {
		size[i] = int(math.Ceil(f * float64(spatial[i])))
	}
	return EffectiveSize(size, spatial)
}
