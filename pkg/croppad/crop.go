package croppad

import (
	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// Crop extracts the given spatial region and appends one crop entry to the
// volume's applied-operation log. The box must already be clipped to the
// image; resolving an ROI does that.
func Crop(v *volume.Volume, box geometry.Box) (*volume.Volume, error) {
	out, err := v.ExtractBox(box)
	if err != nil {
		return nil, err
	}
	carryMeta(out, v)
	out.PushOperation(volume.Operation{
		Kind:      volume.OpCrop,
		Box:       box,
		OrigShape: v.Shape,
	})
	return out, nil
}

// SpatialCrop crops a fixed region described by any ROI form: center and
// size, start and end coordinates, explicit per-axis ranges, or scale
// factors.
type SpatialCrop struct {
	roi geometry.ROI
}

// NewSpatialCrop creates the transform.
func NewSpatialCrop(roi geometry.ROI) (*SpatialCrop, error) {
	if roi == nil {
		return nil, configErrorf("SpatialCrop", "roi", "a region specification is required")
	}
	return &SpatialCrop{roi: roi}, nil
}

// Apply resolves the region against the volume and crops it.
func (c *SpatialCrop) Apply(v *volume.Volume) (*volume.Volume, error) {
	box, err := c.roi.Resolve(v.SpatialShape())
	if err != nil {
		return nil, configErrorf("SpatialCrop", "roi", "%v", err)
	}
	return Crop(v, box)
}

// Inverse restores the extent removed by the most recent Apply.
func (c *SpatialCrop) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpCrop, "SpatialCrop"); err != nil {
		return nil, err
	}
	return Invert(v)
}

// CenterSpatialCrop crops a region of the given size from the center of the
// volume. Size components of -1 keep the whole axis; oversized components
// clip to the image.
type CenterSpatialCrop struct {
	size []int
}

// NewCenterSpatialCrop creates the transform. The size takes one component
// per spatial axis, or a single component applied to all axes.
func NewCenterSpatialCrop(size []int) (*CenterSpatialCrop, error) {
	if len(size) == 0 {
		return nil, configErrorf("CenterSpatialCrop", "size", "at least one component is required")
	}
	return &CenterSpatialCrop{size: size}, nil
}

// box resolves the centered region for a spatial shape.
func (c *CenterSpatialCrop) box(spatial []int) (geometry.Box, error) {
	size, ok := expandInts(c.size, len(spatial))
	if !ok {
		return geometry.Box{}, configErrorf("CenterSpatialCrop", "size", "got %d components for %d spatial axes", len(c.size), len(spatial))
	}
	center := make([]int, len(spatial))
	for i, dim := range spatial {
		center[i] = dim / 2
	}
	return geometry.CenterSize{Center: center, Size: size}.Resolve(spatial)
}

// Apply crops the centered region.
func (c *CenterSpatialCrop) Apply(v *volume.Volume) (*volume.Volume, error) {
	box, err := c.box(v.SpatialShape())
	if err != nil {
		return nil, err
	}
	return Crop(v, box)
}

// Inverse restores the extent removed by the most recent Apply.
func (c *CenterSpatialCrop) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpCrop, "CenterSpatialCrop"); err != nil {
		return nil, err
	}
	return Invert(v)
}

// CenterScaleCrop crops a centered region sized relative to the image, one
// scale factor per axis.
type CenterScaleCrop struct {
	scale []float64
}

// NewCenterScaleCrop creates the transform. The scale takes one factor per
// spatial axis, or a single factor applied to all axes.
func NewCenterScaleCrop(scale []float64) (*CenterScaleCrop, error) {
	if len(scale) == 0 {
		return nil, configErrorf("CenterScaleCrop", "scale", "at least one factor is required")
	}
	return &CenterScaleCrop{scale: scale}, nil
}

// Apply crops the centered scaled region.
func (c *CenterScaleCrop) Apply(v *volume.Volume) (*volume.Volume, error) {
	spatial := v.SpatialShape()
	factors, ok := expandFloats(c.scale, len(spatial))
	if !ok {
		return nil, configErrorf("CenterScaleCrop", "scale", "got %d factors for %d spatial axes", len(c.scale), len(spatial))
	}
	box, err := (geometry.Scale{Factors: factors}).Resolve(spatial)
	if err != nil {
		return nil, configErrorf("CenterScaleCrop", "scale", "%v", err)
	}
	return Crop(v, box)
}

// Inverse restores the extent removed by the most recent Apply.
func (c *CenterScaleCrop) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpCrop, "CenterScaleCrop"); err != nil {
		return nil, err
	}
	return Invert(v)
}
