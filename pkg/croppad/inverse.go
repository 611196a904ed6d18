package croppad

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// Invert undoes the most recent operation recorded in the volume's
// applied-operation log. A crop entry is undone by placing the data back
// into a zero-filled volume of the recorded original shape; a pad entry is
// undone by cropping the padded border away. Each call removes one entry.
//
// A volume without a log is treated as already original and returned
// unchanged.
func Invert(v *volume.Volume) (*volume.Volume, error) {
	if !v.HasOperations() {
		return v, nil
	}
	out := v.Clone()
	op, _ := out.PopOperation()

	switch op.Kind {
	case volume.OpCrop:
		if !sameInts(out.SpatialShape(), op.Box.Size()) {
			return nil, &volume.ShapeMismatchError{Op: "invert crop", Got: out.SpatialShape(), Want: op.Box.Size()}
		}
		if out.Channels() != op.OrigShape[0] {
			return nil, &volume.ShapeMismatchError{Op: "invert crop", Got: out.Shape, Want: op.OrigShape}
		}
		restored, err := volume.NewZeros(op.OrigShape)
		if err != nil {
			return nil, fmt.Errorf("failed to restore original extent: %v", err)
		}
		if err := restored.PasteBox(out, op.Box); err != nil {
			return nil, fmt.Errorf("failed to restore original extent: %v", err)
		}
		carryMeta(restored, out)
		return restored, nil

	case volume.OpPad:
		spatial := out.SpatialShape()
		start := make([]int, len(spatial))
		end := make([]int, len(spatial))
		if len(op.Pad) != len(spatial) || len(op.OrigShape) != len(spatial)+1 {
			return nil, &volume.ShapeMismatchError{Op: "invert pad", Got: out.Shape, Want: op.OrigShape}
		}
		for i, w := range op.Pad {
			origDim := op.OrigShape[i+1]
			if spatial[i] != origDim+w.Before+w.After {
				return nil, &volume.ShapeMismatchError{Op: "invert pad", Got: out.Shape, Want: op.OrigShape}
			}
			start[i] = w.Before
			end[i] = w.Before + origDim
		}
		interior, err := out.ExtractBox(geometry.Box{Start: start, End: end})
		if err != nil {
			return nil, fmt.Errorf("failed to remove padded border: %v", err)
		}
		carryMeta(interior, out)
		return interior, nil
	}
	return nil, fmt.Errorf("cannot invert operation of kind %s", op.Kind)
}

// InvertAll undoes every recorded operation, most recent first, returning
// the volume at its original extent.
func InvertAll(v *volume.Volume) (*volume.Volume, error) {
	out := v
	for out.HasOperations() {
		next, err := Invert(out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// InvertSamples merges a multi-sample batch back into one volume of the
// original extent. Each sample's most recent entry must be the crop that
// produced it; the inverted samples are pasted at their recorded boxes into
// a zero-filled volume, later samples taking precedence where patches
// overlap. The merged volume keeps the samples' remaining log and carries
// no patch index.
func InvertSamples(samples []*volume.Volume) (*volume.Volume, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to invert")
	}
	var merged *volume.Volume
	for i, s := range samples {
		op, ok := s.PeekOperation()
		if !ok {
			return nil, fmt.Errorf("sample %d carries no operation to invert", i)
		}
		if op.Kind != volume.OpCrop {
			return nil, fmt.Errorf("sample %d records a %s, expected a crop", i, op.Kind)
		}
		inv, err := Invert(s)
		if err != nil {
			return nil, fmt.Errorf("failed to invert sample %d: %v", i, err)
		}
		if merged == nil {
			merged = inv
			continue
		}
		if !sameInts(merged.Shape, inv.Shape) {
			return nil, &volume.ShapeMismatchError{Op: "merge inverted samples", Got: inv.Shape, Want: merged.Shape}
		}
		patch, err := inv.ExtractBox(op.Box)
		if err != nil {
			return nil, fmt.Errorf("failed to merge sample %d: %v", i, err)
		}
		if err := merged.PasteBox(patch, op.Box); err != nil {
			return nil, fmt.Errorf("failed to merge sample %d: %v", i, err)
		}
	}
	merged.ClearPatchIndex()
	return merged, nil
}

// expectKind verifies that the most recent log entry matches the operation
// a transform's Inverse is about to undo.
func expectKind(v *volume.Volume, kind volume.OpKind, transform string) error {
	op, ok := v.PeekOperation()
	if !ok {
		return fmt.Errorf("cannot invert %s: the applied-operation log is empty", transform)
	}
	if op.Kind != kind {
		return fmt.Errorf("cannot invert %s: most recent operation is a %s, expected a %s", transform, op.Kind, kind)
	}
	return nil
}
