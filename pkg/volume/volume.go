// Package volume holds the channel-first array type the crop and pad
// transforms operate on. A volume owns a flat data buffer, its shape, and
// the applied-operation log that makes transforms reversible.
package volume

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
)

// Volume is an N-dimensional array with a leading channel axis and one or
// more trailing spatial axes, stored row-major.
type Volume struct {
	// Data is the array content as a flat buffer in row-major order
	Data []float64

	// Shape is the full shape; Shape[0] is the channel axis
	Shape []int

	// ops is the applied-operation log, most recent entry last
	ops []Operation

	// patchIndex tags which sample of a multi-sample batch this volume is
	patchIndex    int
	hasPatchIndex bool
}

// New creates a volume over the given data buffer. The buffer is used
// directly, not copied. The shape needs a channel axis plus at least one
// spatial axis and its product must match the buffer length.
func New(data []float64, shape []int) (*Volume, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("volume shape %v needs a channel axis and at least one spatial axis", shape)
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("volume shape %v has a negative dimension", shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("volume data size %d does not match shape %v", len(data), shape)
	}
	v := &Volume{
		Data:  data,
		Shape: make([]int, len(shape)),
	}
	copy(v.Shape, shape)
	return v, nil
}

// NewZeros creates a zero-filled volume of the given shape.
func NewZeros(shape []int) (*Volume, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("volume shape %v needs a channel axis and at least one spatial axis", shape)
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("volume shape %v has a negative dimension", shape)
		}
		n *= d
	}
	return New(make([]float64, n), shape)
}

// Channels returns the size of the channel axis.
func (v *Volume) Channels() int {
	return v.Shape[0]
}

// SpatialShape returns a copy of the shape without the channel axis.
func (v *Volume) SpatialShape() []int {
	spatial := make([]int, len(v.Shape)-1)
	copy(spatial, v.Shape[1:])
	return spatial
}

// SpatialRank returns the number of spatial axes.
func (v *Volume) SpatialRank() int {
	return len(v.Shape) - 1
}

// NumElements returns the total number of values in the volume.
func (v *Volume) NumElements() int {
	return len(v.Data)
}

// Strides returns the row-major stride per axis, channel axis first.
func (v *Volume) Strides() []int {
	return geometry.Strides(v.Shape)
}

// At returns the value at a full coordinate, channel component first.
func (v *Volume) At(coords ...int) float64 {
	return v.Data[geometry.RavelIndex(coords, v.Shape)]
}

// Set writes the value at a full coordinate, channel component first.
func (v *Volume) Set(value float64, coords ...int) {
	v.Data[geometry.RavelIndex(coords, v.Shape)] = value
}

// SameSpatialShape reports whether two volumes share their spatial shape.
// Channel counts may differ.
func (v *Volume) SameSpatialShape(other *Volume) bool {
	if v.SpatialRank() != other.SpatialRank() {
		return false
	}
	for i := 1; i < len(v.Shape); i++ {
		if v.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the volume including its operation log and
// patch index.
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data:          make([]float64, len(v.Data)),
		Shape:         make([]int, len(v.Shape)),
		patchIndex:    v.patchIndex,
		hasPatchIndex: v.hasPatchIndex,
	}
	copy(out.Data, v.Data)
	copy(out.Shape, v.Shape)
	if len(v.ops) > 0 {
		out.ops = make([]Operation, len(v.ops))
		for i, op := range v.ops {
			out.ops[i] = op.Clone()
		}
	}
	return out
}

// SetPatchIndex tags the volume as sample i of a multi-sample batch.
func (v *Volume) SetPatchIndex(i int) {
	v.patchIndex = i
	v.hasPatchIndex = true
}

// PatchIndex returns the sample tag and whether one is set.
func (v *Volume) PatchIndex() (int, bool) {
	return v.patchIndex, v.hasPatchIndex
}

// ClearPatchIndex removes the sample tag.
func (v *Volume) ClearPatchIndex() {
	v.patchIndex = 0
	v.hasPatchIndex = false
}

// ExtractBox copies the given spatial region out of the volume into a new
// volume with the same number of channels. The box must lie inside the
// volume. The result carries no operation log.
func (v *Volume) ExtractBox(box geometry.Box) (*Volume, error) {
	if box.Rank() != v.SpatialRank() {
		return nil, fmt.Errorf("region rank %d does not match spatial rank %d", box.Rank(), v.SpatialRank())
	}
	for i := range box.Start {
		if box.Start[i] < 0 || box.End[i] < box.Start[i] || box.End[i] > v.Shape[i+1] {
			return nil, fmt.Errorf("region %v is out of bounds for spatial shape %v", box, v.SpatialShape())
		}
	}
	shape := append([]int{v.Channels()}, box.Size()...)
	out, err := NewZeros(shape)
	if err != nil {
		return nil, err
	}
	copyRegion(out, make([]int, box.Rank()), v, box.Start, box.Size())
	return out, nil
}

// PasteBox writes the source volume into the given spatial region of the
// receiver. The source spatial shape must equal the box size and the channel
// counts must match.
func (v *Volume) PasteBox(src *Volume, box geometry.Box) error {
	if src.Channels() != v.Channels() {
		return fmt.Errorf("cannot paste %d channels into %d channels", src.Channels(), v.Channels())
	}
	if box.Rank() != v.SpatialRank() {
		return fmt.Errorf("region rank %d does not match spatial rank %d", box.Rank(), v.SpatialRank())
	}
	srcSpatial := src.SpatialShape()
	size := box.Size()
	for i := range size {
		if size[i] != srcSpatial[i] {
			return &ShapeMismatchError{Op: "paste region", Got: srcSpatial, Want: size}
		}
		if box.Start[i] < 0 || box.End[i] > v.Shape[i+1] {
			return fmt.Errorf("region %v is out of bounds for spatial shape %v", box, v.SpatialShape())
		}
	}
	copyRegion(v, box.Start, src, make([]int, box.Rank()), size)
	return nil
}

// copyRegion copies a spatial block of the given size between two volumes,
// for every channel, reading at srcOrigin and writing at dstOrigin. Runs
// along the last axis are contiguous and copied as slices.
func copyRegion(dst *Volume, dstOrigin []int, src *Volume, srcOrigin []int, size []int) {
	rank := len(size)
	if rank == 0 {
		return
	}
	for _, s := range size {
		if s <= 0 {
			return
		}
	}
	srcStrides := geometry.Strides(src.Shape)
	dstStrides := geometry.Strides(dst.Shape)
	runLen := size[rank-1]
	idx := make([]int, rank-1)
	for c := 0; c < src.Channels(); c++ {
		for i := range idx {
			idx[i] = 0
		}
		for {
			srcOff := c*srcStrides[0] + srcOrigin[rank-1]
			dstOff := c*dstStrides[0] + dstOrigin[rank-1]
			for i := 0; i < rank-1; i++ {
				srcOff += (srcOrigin[i] + idx[i]) * srcStrides[i+1]
				dstOff += (dstOrigin[i] + idx[i]) * dstStrides[i+1]
			}
			copy(dst.Data[dstOff:dstOff+runLen], src.Data[srcOff:srcOff+runLen])

			axis := rank - 2
			for ; axis >= 0; axis-- {
				idx[axis]++
				if idx[axis] < size[axis] {
					break
				}
				idx[axis] = 0
			}
			if axis < 0 {
				break
			}
		}
	}
}
