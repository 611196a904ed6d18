package croppad

import (
	"github.com/pzaffino/MONAI/pkg/volume"
)

// ResizeWithPadOrCrop forces a volume to a target spatial size, center
// cropping axes that are too large and padding axes that are too small.
// Both steps always log an operation, so one Apply is undone by exactly two
// inverse steps. Non-positive target components leave their axis unchanged.
type ResizeWithPadOrCrop struct {
	cropper *CenterSpatialCrop
	padder  *SpatialPad
}

// NewResizeWithPadOrCrop creates the transform.
func NewResizeWithPadOrCrop(size []int, method PadMethod, mode PadMode) (*ResizeWithPadOrCrop, error) {
	cropper, err := NewCenterSpatialCrop(size)
	if err != nil {
		return nil, configErrorf("ResizeWithPadOrCrop", "size", "%v", err)
	}
	padder, err := NewSpatialPad(size, method, mode)
	if err != nil {
		return nil, configErrorf("ResizeWithPadOrCrop", "size", "%v", err)
	}
	return &ResizeWithPadOrCrop{cropper: cropper, padder: padder}, nil
}

// Apply crops, then pads, to the target size.
func (t *ResizeWithPadOrCrop) Apply(v *volume.Volume) (*volume.Volume, error) {
	out, err := t.cropper.Apply(v)
	if err != nil {
		return nil, err
	}
	return t.padder.Apply(out)
}

// Inverse undoes the most recent Apply, popping the pad entry and then the
// crop entry.
func (t *ResizeWithPadOrCrop) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpPad, "ResizeWithPadOrCrop"); err != nil {
		return nil, err
	}
	out, err := Invert(v)
	if err != nil {
		return nil, err
	}
	if err := expectKind(out, volume.OpCrop, "ResizeWithPadOrCrop"); err != nil {
		return nil, err
	}
	return Invert(out)
}
