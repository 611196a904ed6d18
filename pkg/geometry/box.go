// Package geometry resolves region-of-interest specifications into integer
// bounding boxes over the spatial axes of a channel-first volume. It also
// provides the divisibility rounding, crop-center correction and flat-index
// helpers shared by the crop and pad transforms.
package geometry

import (
	"fmt"
	"strings"
)

// Box is an axis-aligned bounding box over the spatial axes of a volume.
// It covers the half-open region [Start[i], End[i]) on each axis, with one
// component per spatial axis and Start[i] <= End[i].
type Box struct {
	// Start holds the inclusive lower coordinate per spatial axis
	Start []int

	// End holds the exclusive upper coordinate per spatial axis
	End []int
}

// NewBox creates a box from start and end coordinates. The slices are
// copied. An end component below its start component collapses to the start,
// producing a zero extent on that axis.
func NewBox(start, end []int) Box {
	b := Box{
		Start: make([]int, len(start)),
		End:   make([]int, len(end)),
	}
	copy(b.Start, start)
	copy(b.End, end)
	for i := range b.End {
		if i < len(b.Start) && b.End[i] < b.Start[i] {
			b.End[i] = b.Start[i]
		}
	}
	return b
}

// ZeroBox returns the degenerate box with all coordinates at the origin.
// It is the result of resolving a region over an image with no foreground.
func ZeroBox(rank int) Box {
	return Box{
		Start: make([]int, rank),
		End:   make([]int, rank),
	}
}

// Rank returns the number of spatial axes the box spans.
func (b Box) Rank() int {
	return len(b.Start)
}

// Size returns the per-axis extent of the box.
func (b Box) Size() []int {
	size := make([]int, len(b.Start))
	for i := range size {
		size[i] = b.End[i] - b.Start[i]
	}
	return size
}

// NumElements returns the number of positions inside the box.
func (b Box) NumElements() int {
	n := 1
	for i := range b.Start {
		n *= b.End[i] - b.Start[i]
	}
	return n
}

// IsEmpty reports whether the box has zero extent on any axis.
func (b Box) IsEmpty() bool {
	if len(b.Start) == 0 {
		return true
	}
	for i := range b.Start {
		if b.End[i] <= b.Start[i] {
			return true
		}
	}
	return false
}

// Clip constrains the box to the given spatial shape. Start components are
// clamped to [0, dim] and end components to [start, dim].
func (b Box) Clip(spatial []int) Box {
	c := NewBox(b.Start, b.End)
	for i := range c.Start {
		dim := spatial[i]
		if c.Start[i] < 0 {
			c.Start[i] = 0
		}
		if c.Start[i] > dim {
			c.Start[i] = dim
		}
		if c.End[i] < c.Start[i] {
			c.End[i] = c.Start[i]
		}
		if c.End[i] > dim {
			c.End[i] = dim
		}
	}
	return c
}

// Equal reports whether two boxes cover the same region.
func (b Box) Equal(other Box) bool {
	if len(b.Start) != len(other.Start) {
		return false
	}
	for i := range b.Start {
		if b.Start[i] != other.Start[i] || b.End[i] != other.End[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the box.
func (b Box) Clone() Box {
	return NewBox(b.Start, b.End)
}

// String formats the box as one start:end pair per axis.
func (b Box) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range b.Start {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:%d", b.Start[i], b.End[i])
	}
	sb.WriteByte(']')
	return sb.String()
}
