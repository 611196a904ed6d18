// Package visualization renders volume slices as grayscale images so crop
// and pad results can be inspected by eye.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/pzaffino/MONAI/pkg/volume"
)

// Viewer extracts 2D slices from one channel of a volume and writes them as
// grayscale JPEG images. Values are scaled into the full gray range using the
// minimum and maximum of the selected channel.
type Viewer struct {
	// vol holds the volume being viewed
	vol *volume.Volume

	// channel selects which channel feeds the images
	channel int

	// lo and hi are the normalization bounds of the selected channel
	lo float64
	hi float64
}

// NewViewer creates a viewer over one channel of a volume
func NewViewer(vol *volume.Volume, channel int) (*Viewer, error) {
	if vol == nil {
		return nil, fmt.Errorf("viewer needs a volume")
	}
	if channel < 0 || channel >= vol.Channels() {
		return nil, fmt.Errorf("channel %d out of range for %d channels", channel, vol.Channels())
	}

	v := &Viewer{
		vol:     vol,
		channel: channel,
		lo:      math.Inf(1),
		hi:      math.Inf(-1),
	}

	// Normalization bounds come from the selected channel only, so a label
	// channel renders at full contrast regardless of the other channels
	stride := vol.NumElements() / vol.Channels()
	for _, value := range vol.Data[channel*stride : (channel+1)*stride] {
		v.lo = math.Min(v.lo, value)
		v.hi = math.Max(v.hi, value)
	}

	return v, nil
}

// gray maps a volume value onto the 16-bit gray range
func (v *Viewer) gray(value float64) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	scaled := (value - v.lo) / (v.hi - v.lo) * 65535
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, scaled)))}
}

// ExtractSlice extracts a 2D slice across the given spatial axis of a volume
// with three spatial axes
func (v *Viewer) ExtractSlice(axis int, position int) (image.Image, error) {
	spatial := v.vol.SpatialShape()
	if len(spatial) != 3 {
		return nil, fmt.Errorf("slice extraction needs 3 spatial axes, volume has %d", len(spatial))
	}
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("invalid axis %d (must be 0, 1 or 2)", axis)
	}
	if position < 0 || position >= spatial[axis] {
		return nil, fmt.Errorf("position %d out of range for axis %d size %d", position, axis, spatial[axis])
	}

	var img *image.Gray16

	switch axis {
	case 0:
		// Fix the first spatial axis, image rows follow the second
		img = image.NewGray16(image.Rect(0, 0, spatial[2], spatial[1]))
		for y := 0; y < spatial[1]; y++ {
			for x := 0; x < spatial[2]; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(v.channel, position, y, x)))
			}
		}

	case 1:
		// Fix the second spatial axis, image rows follow the first
		img = image.NewGray16(image.Rect(0, 0, spatial[2], spatial[0]))
		for y := 0; y < spatial[0]; y++ {
			for x := 0; x < spatial[2]; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(v.channel, y, position, x)))
			}
		}

	case 2:
		// Fix the third spatial axis, image rows follow the first
		img = image.NewGray16(image.Rect(0, 0, spatial[1], spatial[0]))
		for y := 0; y < spatial[0]; y++ {
			for x := 0; x < spatial[1]; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(v.channel, y, x, position)))
			}
		}
	}

	return img, nil
}

// PlaneImage renders a volume with two spatial axes as a single image
func (v *Viewer) PlaneImage() (image.Image, error) {
	spatial := v.vol.SpatialShape()
	if len(spatial) != 2 {
		return nil, fmt.Errorf("plane rendering needs 2 spatial axes, volume has %d", len(spatial))
	}

	img := image.NewGray16(image.Rect(0, 0, spatial[1], spatial[0]))
	for y := 0; y < spatial[0]; y++ {
		for x := 0; x < spatial[1]; x++ {
			img.SetGray16(x, y, v.gray(v.vol.At(v.channel, y, x)))
		}
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis int, outputDir string) error {
	spatial := v.vol.SpatialShape()
	if len(spatial) != 3 {
		return fmt.Errorf("slice extraction needs 3 spatial axes, volume has %d", len(spatial))
	}
	if axis < 0 || axis > 2 {
		return fmt.Errorf("invalid axis %d (must be 0, 1 or 2)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < spatial[axis]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_axis%d_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
