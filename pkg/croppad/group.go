package croppad

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// validateGroup checks that all members of a co-registered group share one
// spatial shape. Channel counts may differ per member.
func validateGroup(vols []*volume.Volume) error {
	if len(vols) == 0 {
		return fmt.Errorf("group holds no volumes")
	}
	first := vols[0]
	for i, v := range vols[1:] {
		if !first.SameSpatialShape(v) {
			return &volume.ShapeMismatchError{
				Op:   fmt.Sprintf("apply to group member %d", i+1),
				Got:  v.SpatialShape(),
				Want: first.SpatialShape(),
			}
		}
	}
	return nil
}

// ApplyGroup applies one transform to every member of a co-registered
// group. Random transforms must have been randomized beforehand, so the
// held draw is shared by all members and the group crops identically.
func ApplyGroup(t Transform, vols []*volume.Volume) ([]*volume.Volume, error) {
	if err := validateGroup(vols); err != nil {
		return nil, err
	}
	out := make([]*volume.Volume, len(vols))
	for i, v := range vols {
		result, err := t.Apply(v)
		if err != nil {
			return nil, fmt.Errorf("failed on group member %d: %v", i, err)
		}
		out[i] = result
	}
	return out, nil
}

// CropGroup crops the same region from every member of a co-registered
// group.
func CropGroup(vols []*volume.Volume, box geometry.Box) ([]*volume.Volume, error) {
	if err := validateGroup(vols); err != nil {
		return nil, err
	}
	out := make([]*volume.Volume, len(vols))
	for i, v := range vols {
		result, err := Crop(v, box)
		if err != nil {
			return nil, fmt.Errorf("failed on group member %d: %v", i, err)
		}
		out[i] = result
	}
	return out, nil
}
