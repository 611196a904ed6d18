package croppad

import (
	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// SelectFunc decides whether a voxel value counts as foreground.
type SelectFunc func(float64) bool

// defaultSelect keeps strictly positive voxels.
func defaultSelect(x float64) bool {
	return x > 0
}

// foregroundMask unions the select function over the given channels (all
// channels when nil) into one spatial mask. Channel indices must be valid.
func foregroundMask(v *volume.Volume, sel SelectFunc, channels []int) []bool {
	n := 1
	for _, dim := range v.SpatialShape() {
		n *= dim
	}
	mask := make([]bool, n)
	if channels == nil {
		channels = make([]int, v.Channels())
		for c := range channels {
			channels[c] = c
		}
	}
	for _, c := range channels {
		base := c * n
		for s := 0; s < n; s++ {
			if !mask[s] && sel(v.Data[base+s]) {
				mask[s] = true
			}
		}
	}
	return mask
}

// maskBounds finds the per-axis extent of the set voxels, half-open per
// axis. An empty mask yields the empty extent [0, 0) on every axis.
func maskBounds(mask []bool, spatial []int) (start, end []int) {
	rank := len(spatial)
	start = make([]int, rank)
	end = make([]int, rank)
	min := make([]int, rank)
	max := make([]int, rank)
	found := false
	coords := make([]int, rank)
	for _, set := range mask {
		if set {
			for a := 0; a < rank; a++ {
				if !found || coords[a] < min[a] {
					min[a] = coords[a]
				}
				if !found || coords[a] > max[a] {
					max[a] = coords[a]
				}
			}
			found = true
		}
		for a := rank - 1; a >= 0; a-- {
			coords[a]++
			if coords[a] < spatial[a] {
				break
			}
			coords[a] = 0
		}
	}
	if !found {
		return start, end
	}
	for a := 0; a < rank; a++ {
		start[a] = min[a]
		end[a] = max[a] + 1
	}
	return start, end
}

// CropForegroundOptions configures a CropForeground transform. The zero
// value selects positive voxels over all channels with no margin.
type CropForegroundOptions struct {
	// SelectFn marks foreground voxels. Nil keeps strictly positive values.
	SelectFn SelectFunc
	// Channels restricts which channels feed the foreground mask. Nil uses
	// every channel.
	Channels []int
	// Margin widens the box on both sides of each axis, one value per axis
	// or a single value for all.
	Margin []int
	// AllowSmaller clips the widened box to the image instead of keeping
	// the out-of-image extent for padding.
	AllowSmaller bool
	// KDivisible rounds the box size up to a multiple per axis. Zero or
	// negative divisors leave the axis alone.
	KDivisible []int
	// Mode fills any padded extent. The zero value pads with zeros.
	Mode PadMode
}

// CropForeground crops a volume to the bounding box of its foreground,
// widened by a margin and optionally expanded to divisible sizes. Extent
// that falls outside the image is padded back in, so the result always has
// the computed box size.
type CropForeground struct {
	selectFn     SelectFunc
	channels     []int
	margin       []int
	allowSmaller bool
	kDivisible   []int
	mode         PadMode
}

// NewCropForeground creates the transform from options.
func NewCropForeground(opts CropForegroundOptions) (*CropForeground, error) {
	for _, m := range opts.Margin {
		if m < 0 {
			return nil, configErrorf("CropForeground", "margin", "must not be negative, got %v", opts.Margin)
		}
	}
	sel := opts.SelectFn
	if sel == nil {
		sel = defaultSelect
	}
	return &CropForeground{
		selectFn:     sel,
		channels:     opts.Channels,
		margin:       opts.Margin,
		allowSmaller: opts.AllowSmaller,
		kDivisible:   opts.KDivisible,
		mode:         opts.Mode,
	}, nil
}

// ComputeBoundingBox finds the foreground box of a volume, after margin,
// clipping and divisible expansion. The box may reach outside the image
// when AllowSmaller is false; CropPad then pads the difference. A volume
// with no foreground yields the empty box.
func (t *CropForeground) ComputeBoundingBox(v *volume.Volume) (start, end []int, err error) {
	spatial := v.SpatialShape()
	rank := len(spatial)
	for _, c := range t.channels {
		if c < 0 || c >= v.Channels() {
			return nil, nil, configErrorf("CropForeground", "channels", "index %d out of range for %d channels", c, v.Channels())
		}
	}
	margin := make([]int, rank)
	if len(t.margin) > 0 {
		expanded, ok := expandInts(t.margin, rank)
		if !ok {
			return nil, nil, configErrorf("CropForeground", "margin", "got %d components for %d spatial axes", len(t.margin), rank)
		}
		margin = expanded
	}

	mask := foregroundMask(v, t.selectFn, t.channels)
	start, end = maskBounds(mask, spatial)
	for a := 0; a < rank; a++ {
		if start[a] == end[a] {
			continue
		}
		start[a] -= margin[a]
		end[a] += margin[a]
		if t.allowSmaller {
			if start[a] < 0 {
				start[a] = 0
			}
			if end[a] > spatial[a] {
				end[a] = spatial[a]
			}
		}
	}

	if len(t.kDivisible) > 0 {
		k, ok := expandInts(t.kDivisible, rank)
		if !ok {
			return nil, nil, configErrorf("CropForeground", "kDivisible", "got %d components for %d spatial axes", len(t.kDivisible), rank)
		}
		size := make([]int, rank)
		for a := 0; a < rank; a++ {
			size[a] = end[a] - start[a]
		}
		expanded := geometry.DivisibleSize(size, k)
		for a := 0; a < rank; a++ {
			start[a] -= (expanded[a] - size[a]) / 2
			end[a] = start[a] + expanded[a]
		}
	}
	return start, end, nil
}

// CropPad crops the in-image part of the box and pads back any extent that
// reached outside, so the output size equals the box size. The crop always
// logs one operation; the pad logs a second only when some padding happens.
func (t *CropForeground) CropPad(v *volume.Volume, start, end []int) (*volume.Volume, error) {
	spatial := v.SpatialShape()
	rank := len(spatial)
	if len(start) != rank || len(end) != rank {
		return nil, configErrorf("CropForeground", "box", "got rank %d box for %d spatial axes", len(start), rank)
	}
	cropStart := make([]int, rank)
	cropEnd := make([]int, rank)
	widths := make([]volume.PadWidth, rank)
	needPad := false
	for a := 0; a < rank; a++ {
		cropStart[a] = start[a]
		if cropStart[a] < 0 {
			cropStart[a] = 0
		}
		cropEnd[a] = end[a]
		if cropEnd[a] < cropStart[a] {
			cropEnd[a] = cropStart[a]
		}
		if start[a] < 0 {
			widths[a].Before = -start[a]
		}
		if end[a] > spatial[a] {
			widths[a].After = end[a] - spatial[a]
		}
		if widths[a].Before > 0 || widths[a].After > 0 {
			needPad = true
		}
	}
	box := geometry.NewBox(cropStart, cropEnd).Clip(spatial)
	out, err := Crop(v, box)
	if err != nil {
		return nil, err
	}
	if !needPad {
		return out, nil
	}
	return Pad(out, widths, t.mode)
}

// Apply crops the volume to its foreground box.
func (t *CropForeground) Apply(v *volume.Volume) (*volume.Volume, error) {
	start, end, err := t.ComputeBoundingBox(v)
	if err != nil {
		return nil, err
	}
	return t.CropPad(v, start, end)
}

// Inverse undoes the most recent Apply: the pad entry when one was logged,
// then the crop entry.
func (t *CropForeground) Inverse(v *volume.Volume) (*volume.Volume, error) {
	out := v
	if op, ok := out.PeekOperation(); ok && op.Kind == volume.OpPad {
		var err error
		out, err = Invert(out)
		if err != nil {
			return nil, err
		}
	}
	if err := expectKind(out, volume.OpCrop, "CropForeground"); err != nil {
		return nil, err
	}
	return Invert(out)
}

// BoundingRect measures the foreground extent of each channel without
// cropping anything.
type BoundingRect struct {
	selectFn SelectFunc
}

// NewBoundingRect creates the measurement. A nil select function keeps
// strictly positive voxels.
func NewBoundingRect(sel SelectFunc) *BoundingRect {
	if sel == nil {
		sel = defaultSelect
	}
	return &BoundingRect{selectFn: sel}
}

// Compute returns one row per channel holding the interleaved axis bounds
// [start0, end0, start1, end1, ...]. A channel with no foreground yields an
// all-zero row.
func (t *BoundingRect) Compute(v *volume.Volume) [][]int {
	spatial := v.SpatialShape()
	rank := len(spatial)
	rows := make([][]int, v.Channels())
	for c := range rows {
		mask := foregroundMask(v, t.selectFn, []int{c})
		start, end := maskBounds(mask, spatial)
		row := make([]int, 2*rank)
		for a := 0; a < rank; a++ {
			row[2*a] = start[a]
			row[2*a+1] = end[a]
		}
		rows[c] = row
	}
	return rows
}
