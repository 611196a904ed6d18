package geometry

import "fmt"

// CorrectCropCenter shifts a proposed crop center inward so that a region of
// the given size fits entirely inside the image. The size is kept and the
// center moves; a size component of -1 (or 0) means the whole axis.
//
// When the size exceeds the image on an axis, allowSmaller decides the
// policy: if true the size is treated as clamped to the image for the
// purpose of placing the center, if false an error is returned.
func CorrectCropCenter(center, size, spatial []int, allowSmaller bool) ([]int, error) {
	if len(center) != len(spatial) {
		return nil, fmt.Errorf("crop center has %d components, image has %d spatial axes", len(center), len(spatial))
	}
	eff := EffectiveSize(size, spatial)
	for i, s := range eff {
		if s > spatial[i] {
			if !allowSmaller {
				return nil, fmt.Errorf("crop size %v is larger than image spatial size %v", eff, spatial)
			}
			eff[i] = spatial[i]
		}
	}
	out := make([]int, len(center))
	for i, c := range center {
		validStart := eff[i] / 2
		validEnd := spatial[i] + 1 - (eff[i]+1)/2
		if validEnd == validStart {
			validEnd++
		}
		if c < validStart {
			c = validStart
		}
		if c > validEnd-1 {
			c = validEnd - 1
		}
		out[i] = c
	}
	return out, nil
}
