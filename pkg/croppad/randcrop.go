package croppad

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/sampling"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// patchDraw holds one drawn crop geometry, reused unchanged until the next
// Randomize so a group of co-registered volumes crops identically.
type patchDraw struct {
	size  []int
	start []int // nil when the crop stays centered
	valid bool
}

// boxFor turns the held draw into a concrete box for a spatial shape.
func (d *patchDraw) boxFor(spatial []int) (geometry.Box, error) {
	if !d.valid {
		return geometry.Box{}, fmt.Errorf("no crop geometry drawn, call Randomize first")
	}
	if len(d.size) != len(spatial) {
		return geometry.Box{}, fmt.Errorf("geometry drawn for rank %d, volume has spatial rank %d", len(d.size), len(spatial))
	}
	if d.start != nil {
		end := make([]int, len(spatial))
		for i, dim := range spatial {
			size := d.size[i]
			if size > dim {
				size = dim
			}
			end[i] = d.start[i] + size
		}
		return geometry.NewBox(d.start, end).Clip(spatial), nil
	}
	center := make([]int, len(spatial))
	for i, dim := range spatial {
		center[i] = dim / 2
	}
	return geometry.CenterSize{Center: center, Size: d.size}.Resolve(spatial)
}

// drawPatchGeometry draws a patch size and, when wanted, a patch start.
// The size is drawn per axis from [min, max] inclusive, then the start
// uniformly so the patch fits, both in ascending axis order.
func drawPatchGeometry(r *rand.Rand, spatial, minSize, maxSize []int, randomCenter, randomSize bool) (size, start []int, err error) {
	size = geometry.EffectiveSize(minSize, spatial)
	if randomSize {
		max := spatial
		if maxSize != nil {
			max = geometry.EffectiveSize(maxSize, spatial)
		}
		for i := range size {
			if size[i] > max[i] {
				return nil, nil, fmt.Errorf("minimum crop size %v exceeds maximum %v", size, max)
			}
			size[i] = sampling.RandInt(r, size[i], max[i]+1)
		}
	}
	if randomCenter {
		start = sampling.RandomPatchStart(r, spatial, size)
	}
	return size, start, nil
}

// RandSpatialCrop crops a patch of fixed or randomly drawn size at a
// random or centered position. With randomSize, the patch size is drawn
// per axis between the configured size and maxSize (the image size when
// maxSize is nil). Size components of -1 select the whole axis.
type RandSpatialCrop struct {
	sampling.State
	patchDraw
	size         []int
	maxSize      []int
	randomCenter bool
	randomSize   bool
}

// NewRandSpatialCrop creates the transform. Sizes take one component per
// spatial axis, or a single component applied to all axes.
func NewRandSpatialCrop(size, maxSize []int, randomCenter, randomSize bool) (*RandSpatialCrop, error) {
	if len(size) == 0 {
		return nil, configErrorf("RandSpatialCrop", "size", "at least one component is required")
	}
	return &RandSpatialCrop{
		size:         size,
		maxSize:      maxSize,
		randomCenter: randomCenter,
		randomSize:   randomSize,
	}, nil
}

// Randomize draws the crop geometry for the given spatial shape. The draw
// is held and reused by every following Apply.
func (c *RandSpatialCrop) Randomize(spatial []int) error {
	minSize, ok := expandInts(c.size, len(spatial))
	if !ok {
		return configErrorf("RandSpatialCrop", "size", "got %d components for %d spatial axes", len(c.size), len(spatial))
	}
	var maxSize []int
	if c.maxSize != nil {
		maxSize, ok = expandInts(c.maxSize, len(spatial))
		if !ok {
			return configErrorf("RandSpatialCrop", "maxSize", "got %d components for %d spatial axes", len(c.maxSize), len(spatial))
		}
	}
	size, start, err := drawPatchGeometry(c.Rand(), spatial, minSize, maxSize, c.randomCenter, c.randomSize)
	if err != nil {
		return configErrorf("RandSpatialCrop", "size", "%v", err)
	}
	c.patchDraw = patchDraw{size: size, start: start, valid: true}
	return nil
}

// Apply crops with the geometry drawn by the last Randomize.
func (c *RandSpatialCrop) Apply(v *volume.Volume) (*volume.Volume, error) {
	box, err := c.boxFor(v.SpatialShape())
	if err != nil {
		return nil, err
	}
	return Crop(v, box)
}

// Inverse restores the extent removed by the most recent Apply.
func (c *RandSpatialCrop) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpCrop, "RandSpatialCrop"); err != nil {
		return nil, err
	}
	return Invert(v)
}

// RandScaleCrop is RandSpatialCrop with the patch size given relative to
// the image, one scale factor per axis.
type RandScaleCrop struct {
	sampling.State
	patchDraw
	scale        []float64
	maxScale     []float64
	randomCenter bool
	randomSize   bool
}

// NewRandScaleCrop creates the transform. Scales take one factor per
// spatial axis, or a single factor applied to all axes.
func NewRandScaleCrop(scale, maxScale []float64, randomCenter, randomSize bool) (*RandScaleCrop, error) {
	if len(scale) == 0 {
		return nil, configErrorf("RandScaleCrop", "scale", "at least one factor is required")
	}
	return &RandScaleCrop{
		scale:        scale,
		maxScale:     maxScale,
		randomCenter: randomCenter,
		randomSize:   randomSize,
	}, nil
}

// Randomize draws the crop geometry for the given spatial shape.
func (c *RandScaleCrop) Randomize(spatial []int) error {
	factors, ok := expandFloats(c.scale, len(spatial))
	if !ok {
		return configErrorf("RandScaleCrop", "scale", "got %d factors for %d spatial axes", len(c.scale), len(spatial))
	}
	minSize := geometry.ScaledSize(factors, spatial)
	var maxSize []int
	if c.maxScale != nil {
		maxFactors, ok := expandFloats(c.maxScale, len(spatial))
		if !ok {
			return configErrorf("RandScaleCrop", "maxScale", "got %d factors for %d spatial axes", len(c.maxScale), len(spatial))
		}
		maxSize = geometry.ScaledSize(maxFactors, spatial)
	}
	size, start, err := drawPatchGeometry(c.Rand(), spatial, minSize, maxSize, c.randomCenter, c.randomSize)
	if err != nil {
		return configErrorf("RandScaleCrop", "scale", "%v", err)
	}
	c.patchDraw = patchDraw{size: size, start: start, valid: true}
	return nil
}

// Apply crops with the geometry drawn by the last Randomize.
func (c *RandScaleCrop) Apply(v *volume.Volume) (*volume.Volume, error) {
	box, err := c.boxFor(v.SpatialShape())
	if err != nil {
		return nil, err
	}
	return Crop(v, box)
}

// Inverse restores the extent removed by the most recent Apply.
func (c *RandScaleCrop) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpCrop, "RandScaleCrop"); err != nil {
		return nil, err
	}
	return Invert(v)
}

// RandSpatialCropSamples crops several independently drawn patches from one
// input, tagging each output with its patch index. Within one sample the
// draw is shared across a whole group, so co-registered volumes produce
// matching patches.
type RandSpatialCropSamples struct {
	sampling.State
	cropper    *RandSpatialCrop
	numSamples int
}

// NewRandSpatialCropSamples creates the transform.
func NewRandSpatialCropSamples(size, maxSize []int, randomCenter, randomSize bool, numSamples int) (*RandSpatialCropSamples, error) {
	if numSamples < 1 {
		return nil, configErrorf("RandSpatialCropSamples", "numSamples", "must be positive, got %d", numSamples)
	}
	cropper, err := NewRandSpatialCrop(size, maxSize, randomCenter, randomSize)
	if err != nil {
		return nil, err
	}
	return &RandSpatialCropSamples{cropper: cropper, numSamples: numSamples}, nil
}

// NumSamples returns how many patches one call produces.
func (c *RandSpatialCropSamples) NumSamples() int {
	return c.numSamples
}

// ApplySamplesGroup crops the patches from every member of a co-registered
// group. Sample i of every member shares one draw; draws are fresh across
// samples.
func (c *RandSpatialCropSamples) ApplySamplesGroup(vols []*volume.Volume) ([][]*volume.Volume, error) {
	if err := validateGroup(vols); err != nil {
		return nil, err
	}
	c.cropper.SetSource(c.Rand())
	spatial := vols[0].SpatialShape()
	out := make([][]*volume.Volume, c.numSamples)
	for i := 0; i < c.numSamples; i++ {
		if err := c.cropper.Randomize(spatial); err != nil {
			return nil, err
		}
		row := make([]*volume.Volume, len(vols))
		for j, v := range vols {
			patch, err := c.cropper.Apply(v)
			if err != nil {
				return nil, fmt.Errorf("failed to crop sample %d: %v", i, err)
			}
			patch.SetPatchIndex(i)
			row[j] = patch
		}
		out[i] = row
	}
	return out, nil
}

// ApplySamples crops the patches from a single volume.
func (c *RandSpatialCropSamples) ApplySamples(v *volume.Volume) ([]*volume.Volume, error) {
	return singleMemberSamples(c.ApplySamplesGroup([]*volume.Volume{v}))
}
