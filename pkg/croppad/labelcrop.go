package croppad

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/sampling"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// centerCrops holds crop centers drawn against one spatial shape and turns
// them into patches. The draw stays valid until the next Randomize, so a
// group of co-registered volumes crops at identical positions.
type centerCrops struct {
	centers [][]int
	size    []int
	spatial []int
}

// Centers returns a copy of the centers drawn by the last Randomize.
func (d *centerCrops) Centers() [][]int {
	out := make([][]int, len(d.centers))
	for i, c := range d.centers {
		out[i] = make([]int, len(c))
		copy(out[i], c)
	}
	return out
}

// cropGroup crops one patch per held center from every member of a
// co-registered group, tagging each patch with its sample index.
func (d *centerCrops) cropGroup(vols []*volume.Volume, transform string) ([][]*volume.Volume, error) {
	if len(d.centers) == 0 {
		return nil, fmt.Errorf("no crop centers drawn, call Randomize first")
	}
	if err := validateGroup(vols); err != nil {
		return nil, err
	}
	if !sameInts(vols[0].SpatialShape(), d.spatial) {
		return nil, &volume.ShapeMismatchError{
			Op:   "apply " + transform,
			Got:  vols[0].SpatialShape(),
			Want: d.spatial,
		}
	}
	out := make([][]*volume.Volume, len(d.centers))
	for i, center := range d.centers {
		box, err := geometry.CenterSize{Center: center, Size: d.size}.Resolve(d.spatial)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve crop at center %v: %v", center, err)
		}
		row := make([]*volume.Volume, len(vols))
		for j, v := range vols {
			patch, err := Crop(v, box)
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

// singleMemberSamples unwraps a one-member group result into a flat list of
// patches.
func singleMemberSamples(groups [][]*volume.Volume, err error) ([]*volume.Volume, error) {
	if err != nil {
		return nil, err
	}
	out := make([]*volume.Volume, len(groups))
	for i, g := range groups {
		out[i] = g[0]
	}
	return out, nil
}

// RandWeightedCrop samples patch centers from a scalar weight map, where a
// position with twice the weight is drawn twice as often. Patches always
// fit inside the image.
type RandWeightedCrop struct {
	sampling.State
	centerCrops
	size       []int
	numSamples int
}

// NewRandWeightedCrop creates the transform. The size takes one component
// per spatial axis, or a single component for all; non-positive components
// select the whole axis.
func NewRandWeightedCrop(size []int, numSamples int) (*RandWeightedCrop, error) {
	if len(size) == 0 {
		return nil, configErrorf("RandWeightedCrop", "size", "at least one component is required")
	}
	if numSamples < 1 {
		return nil, configErrorf("RandWeightedCrop", "numSamples", "must be positive, got %d", numSamples)
	}
	return &RandWeightedCrop{size: size, numSamples: numSamples}, nil
}

// Randomize draws the crop centers from the first channel of the weight
// map. The weight map must share the spatial shape of the volumes cropped
// afterwards.
func (c *RandWeightedCrop) Randomize(weightMap *volume.Volume) error {
	if weightMap.Channels() < 1 {
		return configErrorf("RandWeightedCrop", "weightMap", "needs at least one channel")
	}
	spatial := weightMap.SpatialShape()
	size, ok := expandInts(c.size, len(spatial))
	if !ok {
		return configErrorf("RandWeightedCrop", "size", "got %d components for %d spatial axes", len(c.size), len(spatial))
	}
	eff := geometry.EffectiveSize(size, spatial)
	n := 1
	for _, dim := range spatial {
		n *= dim
	}
	centers, err := sampling.WeightedCenters(c.Rand(), eff, spatial, c.numSamples, weightMap.Data[:n])
	if err != nil {
		return err
	}
	c.centerCrops = centerCrops{centers: centers, size: eff, spatial: spatial}
	return nil
}

// ApplySamplesGroup crops the held centers from every member of a
// co-registered group.
func (c *RandWeightedCrop) ApplySamplesGroup(vols []*volume.Volume) ([][]*volume.Volume, error) {
	return c.cropGroup(vols, "RandWeightedCrop")
}

// ApplySamples crops the held centers from a single volume.
func (c *RandWeightedCrop) ApplySamples(v *volume.Volume) ([]*volume.Volume, error) {
	return singleMemberSamples(c.ApplySamplesGroup([]*volume.Volume{v}))
}

// RandCropByPosNegLabel samples patch centers on labeled voxels with
// probability pos/(pos+neg) and on background voxels otherwise. A side
// without candidates hands its draws to the other side.
type RandCropByPosNegLabel struct {
	sampling.State
	centerCrops
	size           []int
	pos            float64
	neg            float64
	numSamples     int
	imageThreshold float64
	allowSmaller   bool
}

// NewRandCropByPosNegLabel creates the transform. pos and neg weight the
// foreground and background draws and must not both be zero. With
// allowSmaller, a patch larger than the image is reduced to the image
// extent instead of failing.
func NewRandCropByPosNegLabel(size []int, pos, neg float64, numSamples int, imageThreshold float64, allowSmaller bool) (*RandCropByPosNegLabel, error) {
	if len(size) == 0 {
		return nil, configErrorf("RandCropByPosNegLabel", "size", "at least one component is required")
	}
	if pos < 0 || neg < 0 {
		return nil, configErrorf("RandCropByPosNegLabel", "pos", "ratios must not be negative, got pos=%v neg=%v", pos, neg)
	}
	if pos+neg == 0 {
		return nil, configErrorf("RandCropByPosNegLabel", "pos", "pos and neg cannot both be zero")
	}
	if numSamples < 1 {
		return nil, configErrorf("RandCropByPosNegLabel", "numSamples", "must be positive, got %d", numSamples)
	}
	return &RandCropByPosNegLabel{
		size:           size,
		pos:            pos,
		neg:            neg,
		numSamples:     numSamples,
		imageThreshold: imageThreshold,
		allowSmaller:   allowSmaller,
	}, nil
}

// Randomize draws the crop centers from a label. Precomputed foreground and
// background pools may be passed to skip the label scan; with either pool
// nil both are derived from the label, restricting background to image
// values above the threshold when an image is given.
func (c *RandCropByPosNegLabel) Randomize(label, image *volume.Volume, fg, bg []int) error {
	spatial := label.SpatialShape()
	size, ok := expandInts(c.size, len(spatial))
	if !ok {
		return configErrorf("RandCropByPosNegLabel", "size", "got %d components for %d spatial axes", len(c.size), len(spatial))
	}
	eff := geometry.EffectiveSize(size, spatial)
	if fg == nil || bg == nil {
		var err error
		fg, bg, err = sampling.FgBgIndices(label, image, c.imageThreshold)
		if err != nil {
			return err
		}
	}
	posRatio := c.pos / (c.pos + c.neg)
	centers, err := sampling.PosNegCenters(c.Rand(), eff, spatial, c.numSamples, posRatio, fg, bg, c.allowSmaller)
	if err != nil {
		return err
	}
	c.centerCrops = centerCrops{centers: centers, size: eff, spatial: spatial}
	return nil
}

// ApplySamplesGroup crops the held centers from every member of a
// co-registered group.
func (c *RandCropByPosNegLabel) ApplySamplesGroup(vols []*volume.Volume) ([][]*volume.Volume, error) {
	return c.cropGroup(vols, "RandCropByPosNegLabel")
}

// ApplySamples crops the held centers from a single volume.
func (c *RandCropByPosNegLabel) ApplySamples(v *volume.Volume) ([]*volume.Volume, error) {
	return singleMemberSamples(c.ApplySamplesGroup([]*volume.Volume{v}))
}

// RandCropByLabelClasses samples patch centers class by class, picking each
// sample's class from the configured ratios and then a voxel of that class
// uniformly. Classes without voxels are skipped.
type RandCropByLabelClasses struct {
	sampling.State
	centerCrops
	size           []int
	ratios         []float64
	numClasses     int
	numSamples     int
	imageThreshold float64
	allowSmaller   bool
}

// NewRandCropByLabelClasses creates the transform. Nil ratios weight every
// class equally. numClasses is required when the label holds integer class
// values in a single channel; a multi-channel label is read as one-hot.
func NewRandCropByLabelClasses(size []int, ratios []float64, numClasses, numSamples int, imageThreshold float64, allowSmaller bool) (*RandCropByLabelClasses, error) {
	if len(size) == 0 {
		return nil, configErrorf("RandCropByLabelClasses", "size", "at least one component is required")
	}
	for _, r := range ratios {
		if r < 0 {
			return nil, configErrorf("RandCropByLabelClasses", "ratios", "must not be negative, got %v", ratios)
		}
	}
	if ratios != nil && numClasses > 0 && len(ratios) != numClasses {
		return nil, configErrorf("RandCropByLabelClasses", "ratios", "got %d ratios for %d classes", len(ratios), numClasses)
	}
	if numSamples < 1 {
		return nil, configErrorf("RandCropByLabelClasses", "numSamples", "must be positive, got %d", numSamples)
	}
	return &RandCropByLabelClasses{
		size:           size,
		ratios:         ratios,
		numClasses:     numClasses,
		numSamples:     numSamples,
		imageThreshold: imageThreshold,
		allowSmaller:   allowSmaller,
	}, nil
}

// Randomize draws the crop centers from a class label. Precomputed class
// pools may be passed to skip the label scan; with nil indices the pools
// are derived from the label, restricted to image values above the
// threshold when an image is given.
func (c *RandCropByLabelClasses) Randomize(label, image *volume.Volume, indices [][]int) error {
	spatial := label.SpatialShape()
	size, ok := expandInts(c.size, len(spatial))
	if !ok {
		return configErrorf("RandCropByLabelClasses", "size", "got %d components for %d spatial axes", len(c.size), len(spatial))
	}
	eff := geometry.EffectiveSize(size, spatial)
	if indices == nil {
		var err error
		indices, err = sampling.ClassIndices(label, image, c.numClasses, c.imageThreshold)
		if err != nil {
			return err
		}
	}
	centers, err := sampling.ClassCenters(c.Rand(), eff, spatial, c.numSamples, c.ratios, indices, c.allowSmaller)
	if err != nil {
		return err
	}
	c.centerCrops = centerCrops{centers: centers, size: eff, spatial: spatial}
	return nil
}

// ApplySamplesGroup crops the held centers from every member of a
// co-registered group.
func (c *RandCropByLabelClasses) ApplySamplesGroup(vols []*volume.Volume) ([][]*volume.Volume, error) {
	return c.cropGroup(vols, "RandCropByLabelClasses")
}

// ApplySamples crops the held centers from a single volume.
func (c *RandCropByLabelClasses) ApplySamples(v *volume.Volume) ([]*volume.Volume, error) {
	return singleMemberSamples(c.ApplySamplesGroup([]*volume.Volume{v}))
}
