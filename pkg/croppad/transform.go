// Package croppad implements crop and pad transforms for channel-first
// volumes: deterministic region and padding operations, randomized patch
// samplers biased by labels or weight maps, and the inverse engine that
// undoes any recorded operation from a volume's applied-operation log.
//
// Transforms are built once and reused. Deterministic transforms are pure;
// random transforms draw their geometry in Randomize and then apply that
// draw unchanged to every volume handed to them, so a group of
// co-registered volumes crops identically. The packages under pkg/sampling
// and pkg/geometry supply the draws and the box arithmetic.
package croppad

import (
	"github.com/pzaffino/MONAI/pkg/volume"
)

// Transform applies one crop or pad operation to a volume, returning a new
// volume with an extended applied-operation log.
type Transform interface {
	Apply(*volume.Volume) (*volume.Volume, error)
}

// InvertibleTransform is a transform that can undo the operations it
// recorded most recently on a volume.
type InvertibleTransform interface {
	Transform
	Inverse(*volume.Volume) (*volume.Volume, error)
}

// MultiSampleTransform produces several independently drawn patches from
// one input volume, tagging each with its patch index.
type MultiSampleTransform interface {
	ApplySamples(*volume.Volume) ([]*volume.Volume, error)
}

// Seedable is implemented by every transform and adapter that draws
// randomness.
type Seedable interface {
	Seed(seed uint64)
}

// carryMeta moves the applied-operation log and the patch tag of src onto
// dst. Used after data-plane operations that build a fresh volume.
func carryMeta(dst, src *volume.Volume) {
	for _, op := range src.AppliedOperations() {
		dst.PushOperation(op)
	}
	if idx, ok := src.PatchIndex(); ok {
		dst.SetPatchIndex(idx)
	}
}

// expandInts broadcasts a parameter to one value per spatial axis: a single
// value repeats, a full-length slice is copied.
func expandInts(vals []int, rank int) ([]int, bool) {
	switch len(vals) {
	case 1:
		out := make([]int, rank)
		for i := range out {
			out[i] = vals[0]
		}
		return out, true
	case rank:
		out := make([]int, rank)
		copy(out, vals)
		return out, true
	}
	return nil, false
}

// expandFloats is expandInts for float parameters.
func expandFloats(vals []float64, rank int) ([]float64, bool) {
	switch len(vals) {
	case 1:
		out := make([]float64, rank)
		for i := range out {
			out[i] = vals[0]
		}
		return out, true
	case rank:
		out := make([]float64, rank)
		copy(out, vals)
		return out, true
	}
	return nil, false
}

// sameInts reports whether two int slices hold the same values.
func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
