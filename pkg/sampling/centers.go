package sampling

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pzaffino/MONAI/pkg/geometry"
)

// PosNegCenters draws crop centers from foreground and background index
// pools. Each sample first makes a Bernoulli choice between the pools with
// probability posRatio for foreground, then picks a uniform index from the
// chosen pool. An empty pool forces every draw to the other one; when both
// are empty no center can be produced and an EmptyPoolError is returned.
// Centers are shifted inward so a region of the given size fits, or clamped
// to the image when allowSmaller permits an undersized crop at the edges.
func PosNegCenters(r *rand.Rand, size, spatial []int, numSamples int, posRatio float64, fg, bg []int, allowSmaller bool) ([][]int, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("numSamples must be positive, got %d", numSamples)
	}
	if len(fg) == 0 && len(bg) == 0 {
		return nil, &EmptyPoolError{Detail: "foreground and background index pools are both empty"}
	}
	ratio := posRatio
	if len(fg) == 0 {
		ratio = 0
	} else if len(bg) == 0 {
		ratio = 1
	}

	bern := distuv.Bernoulli{P: ratio, Src: r}
	centers := make([][]int, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		pool := bg
		if bern.Rand() == 1 {
			pool = fg
		}
		idx := pool[r.Intn(len(pool))]
		center, err := geometry.CorrectCropCenter(geometry.UnravelIndex(idx, spatial), size, spatial, allowSmaller)
		if err != nil {
			return nil, err
		}
		centers = append(centers, center)
	}
	return centers, nil
}

// ClassCenters draws crop centers from per-class index pools with the given
// relative ratios. Each sample draws a class from the ratio distribution,
// then a uniform index within that class's pool. Classes with an empty pool
// get ratio zero no matter what was configured; if that leaves no class to
// draw from, an EmptyPoolError is returned. Centers are corrected the same
// way as in PosNegCenters.
func ClassCenters(r *rand.Rand, size, spatial []int, numSamples int, ratios []float64, indices [][]int, allowSmaller bool) ([][]int, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("numSamples must be positive, got %d", numSamples)
	}
	if len(indices) == 0 {
		return nil, &EmptyPoolError{Detail: "no class index pools given"}
	}
	if ratios == nil {
		ratios = make([]float64, len(indices))
		for i := range ratios {
			ratios[i] = 1
		}
	}
	if len(ratios) != len(indices) {
		return nil, fmt.Errorf("got %d ratios for %d classes", len(ratios), len(indices))
	}

	weights := make([]float64, len(ratios))
	for i, ratio := range ratios {
		if ratio < 0 {
			return nil, fmt.Errorf("class ratios must not be negative, got %v for class %d", ratio, i)
		}
		if len(indices[i]) == 0 {
			continue
		}
		weights[i] = ratio
	}
	if floats.Sum(weights) <= 0 {
		return nil, &EmptyPoolError{Detail: "every class with a nonzero ratio has an empty index pool"}
	}

	cat := distuv.NewCategorical(weights, r)
	centers := make([][]int, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		pool := indices[int(cat.Rand())]
		idx := pool[r.Intn(len(pool))]
		center, err := geometry.CorrectCropCenter(geometry.UnravelIndex(idx, spatial), size, spatial, allowSmaller)
		if err != nil {
			return nil, err
		}
		centers = append(centers, center)
	}
	return centers, nil
}
