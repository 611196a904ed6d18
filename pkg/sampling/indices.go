package sampling

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/volume"
)

// FgBgIndices partitions the flat spatial indices of a label into a
// foreground pool (any channel nonzero) and a background pool. With an
// image given, background is restricted to positions where any image
// channel exceeds the threshold, so padded or empty regions are never
// sampled as background.
func FgBgIndices(label, image *volume.Volume, imageThreshold float64) (fg, bg []int, err error) {
	n := spatialElements(label)
	fgMask := labelMask(label)

	var imgMask []bool
	if image != nil {
		if !label.SameSpatialShape(image) {
			return nil, nil, &volume.ShapeMismatchError{
				Op:   "compute foreground indices",
				Got:  image.SpatialShape(),
				Want: label.SpatialShape(),
			}
		}
		imgMask = thresholdMask(image, imageThreshold)
	}

	for s := 0; s < n; s++ {
		switch {
		case fgMask[s]:
			fg = append(fg, s)
		case imgMask == nil || imgMask[s]:
			bg = append(bg, s)
		}
	}
	return fg, bg, nil
}

// ClassIndices builds one flat spatial index pool per class. A label with
// several channels is read as one-hot with one channel per class; a
// single-channel label holds integer class values and needs numClasses.
// With an image given, every pool is restricted to positions where any
// image channel exceeds the threshold.
func ClassIndices(label, image *volume.Volume, numClasses int, imageThreshold float64) ([][]int, error) {
	channels := label.Channels()
	classes := channels
	if channels == 1 {
		if numClasses <= 0 {
			return nil, fmt.Errorf("numClasses is required for a single-channel class label")
		}
		classes = numClasses
	}

	var imgMask []bool
	if image != nil {
		if !label.SameSpatialShape(image) {
			return nil, &volume.ShapeMismatchError{
				Op:   "compute class indices",
				Got:  image.SpatialShape(),
				Want: label.SpatialShape(),
			}
		}
		imgMask = thresholdMask(image, imageThreshold)
	}

	n := spatialElements(label)
	indices := make([][]int, classes)
	for cls := 0; cls < classes; cls++ {
		for s := 0; s < n; s++ {
			var in bool
			if channels > 1 {
				in = label.Data[cls*n+s] != 0
			} else {
				in = label.Data[s] == float64(cls)
			}
			if in && (imgMask == nil || imgMask[s]) {
				indices[cls] = append(indices[cls], s)
			}
		}
	}
	return indices, nil
}

// spatialElements returns the number of positions in one channel.
func spatialElements(v *volume.Volume) int {
	n := 1
	for _, d := range v.Shape[1:] {
		n *= d
	}
	return n
}

// labelMask flags spatial positions where any channel is nonzero.
func labelMask(v *volume.Volume) []bool {
	n := spatialElements(v)
	mask := make([]bool, n)
	for c := 0; c < v.Channels(); c++ {
		off := c * n
		for s := 0; s < n; s++ {
			if v.Data[off+s] != 0 {
				mask[s] = true
			}
		}
	}
	return mask
}

// thresholdMask flags spatial positions where any channel exceeds the
// threshold.
func thresholdMask(v *volume.Volume, threshold float64) []bool {
	n := spatialElements(v)
	mask := make([]bool, n)
	for c := 0; c < v.Channels(); c++ {
		off := c * n
		for s := 0; s < n; s++ {
			if v.Data[off+s] > threshold {
				mask[s] = true
			}
		}
	}
	return mask
}
