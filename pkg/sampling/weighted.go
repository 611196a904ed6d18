package sampling

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/pzaffino/MONAI/pkg/geometry"
)

// WeightedCenters draws crop centers from a scalar weight map covering the
// image, treating the map as an unnormalized categorical distribution over
// the positions where a patch of the given size fits entirely. Weights that
// are negative or not finite count as zero. A map that carries no positive
// weight degrades to uniform sampling over the valid positions instead of
// failing.
func WeightedCenters(r *rand.Rand, size, spatial []int, numSamples int, weights []float64) ([][]int, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("numSamples must be positive, got %d", numSamples)
	}
	n := 1
	for _, d := range spatial {
		n *= d
	}
	if len(weights) != n {
		return nil, fmt.Errorf("weight map has %d values, image has %d spatial positions", len(weights), n)
	}

	// Valid center positions form an interior block per axis; a window at
	// least as large as the axis leaves a single centered position.
	win := geometry.EffectiveSize(size, spatial)
	rank := len(spatial)
	lo := make([]int, rank)
	validShape := make([]int, rank)
	for i, dim := range spatial {
		if dim > win[i] {
			lo[i] = win[i] / 2
			validShape[i] = dim - win[i] + 1
		} else {
			lo[i] = dim / 2
			validShape[i] = 1
		}
	}

	validN := 1
	for _, d := range validShape {
		validN *= d
	}
	valid := make([]float64, validN)
	coord := make([]int, rank)
	full := make([]int, rank)
	for k := range valid {
		for i := range coord {
			full[i] = lo[i] + coord[i]
		}
		w := weights[geometry.RavelIndex(full, spatial)]
		if !math.IsNaN(w) && !math.IsInf(w, 0) && w > 0 {
			valid[k] = w
		}
		for axis := rank - 1; axis >= 0; axis-- {
			coord[axis]++
			if coord[axis] < validShape[axis] {
				break
			}
			coord[axis] = 0
		}
	}

	cum := floats.CumSum(make([]float64, validN), valid)
	total := cum[validN-1]

	centers := make([][]int, 0, numSamples)
	for s := 0; s < numSamples; s++ {
		var idx int
		if total <= 0 {
			idx = r.Intn(validN)
		} else {
			x := r.Float64() * total
			idx = sort.Search(validN, func(j int) bool { return cum[j] > x })
			if idx >= validN {
				idx = validN - 1
			}
		}
		center := geometry.UnravelIndex(idx, validShape)
		for i := range center {
			center[i] += lo[i]
		}
		centers = append(centers, center)
	}
	return centers, nil
}
