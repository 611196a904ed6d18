package sampling

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pzaffino/MONAI/pkg/volume"
)

func createLabel(t *testing.T, data []float64, shape []int) *volume.Volume {
	t.Helper()
	v, err := volume.New(data, shape)
	if err != nil {
		t.Fatalf("Failed to create label volume: %v", err)
	}
	return v
}

func TestStateDeterminism(t *testing.T) {
	a := NewState(42)
	b := NewState(42)
	for i := 0; i < 100; i++ {
		if a.Rand().Uint64() != b.Rand().Uint64() {
			t.Fatalf("States with the same seed diverged at draw %d", i)
		}
	}

	a.Seed(7)
	b.Seed(7)
	if a.SubSeed() != b.SubSeed() {
		t.Error("Expected identical sub-seeds after re-seeding")
	}
}

func TestStateZeroValue(t *testing.T) {
	var s State
	if s.Rand() == nil {
		t.Fatal("Expected zero-value state to self-seed")
	}
	s.Rand().Uint64()
}

func TestRandInt(t *testing.T) {
	r := NewState(1).Rand()
	for i := 0; i < 1000; i++ {
		got := RandInt(r, 3, 8)
		if got < 3 || got >= 8 {
			t.Fatalf("RandInt out of range: %d", got)
		}
	}
	if got := RandInt(r, 5, 5); got != 5 {
		t.Errorf("Expected degenerate interval to return lo, got %d", got)
	}
	if got := RandInt(r, 5, 2); got != 5 {
		t.Errorf("Expected inverted interval to return lo, got %d", got)
	}
}

func TestRandomPatchStart(t *testing.T) {
	r := NewState(3).Rand()
	spatial := []int{10, 6, 4}
	patch := []int{4, 6, 9}
	seen := false
	for i := 0; i < 500; i++ {
		start := RandomPatchStart(r, spatial, patch)
		if start[0] < 0 || start[0] > 6 {
			t.Fatalf("Start %d out of range for axis 0", start[0])
		}
		if start[1] != 0 {
			t.Fatalf("Expected start 0 on exactly covered axis, got %d", start[1])
		}
		if start[2] != 0 {
			t.Fatalf("Expected start 0 on oversized patch axis, got %d", start[2])
		}
		if start[0] == 6 {
			seen = true
		}
	}
	if !seen {
		t.Error("Expected the maximum start position to be drawn at least once")
	}
}

func TestFgBgIndices(t *testing.T) {
	label := createLabel(t, []float64{
		0, 1, 0,
		0, 0, 2,
		0, 0, 0,
	}, []int{1, 3, 3})

	fg, bg, err := FgBgIndices(label, nil, 0)
	if err != nil {
		t.Fatalf("FgBgIndices failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 5}, fg); diff != "" {
		t.Errorf("Foreground mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2, 3, 4, 6, 7, 8}, bg); diff != "" {
		t.Errorf("Background mismatch (-want +got):\n%s", diff)
	}
}

func TestFgBgIndicesWithImageThreshold(t *testing.T) {
	label := createLabel(t, []float64{
		0, 1, 0,
		0, 0, 0,
		0, 0, 0,
	}, []int{1, 3, 3})
	image := createLabel(t, []float64{
		5, 5, 5,
		0, 0, 0,
		0, 0, 5,
	}, []int{1, 3, 3})

	fg, bg, err := FgBgIndices(label, image, 0)
	if err != nil {
		t.Fatalf("FgBgIndices failed: %v", err)
	}
	if diff := cmp.Diff([]int{1}, fg); diff != "" {
		t.Errorf("Foreground mismatch (-want +got):\n%s", diff)
	}
	// Background keeps only positions above the image threshold.
	if diff := cmp.Diff([]int{0, 2, 8}, bg); diff != "" {
		t.Errorf("Background mismatch (-want +got):\n%s", diff)
	}
}

func TestFgBgIndicesShapeMismatch(t *testing.T) {
	label := createLabel(t, make([]float64, 9), []int{1, 3, 3})
	image := createLabel(t, make([]float64, 8), []int{1, 2, 4})
	_, _, err := FgBgIndices(label, image, 0)
	var mismatch *volume.ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected ShapeMismatchError, got %v", err)
	}
}

func TestFgBgIndicesMultiChannel(t *testing.T) {
	// Foreground is any channel nonzero; negative values count too.
	label := createLabel(t, []float64{
		0, 0, 0, 0,
		0, -1, 0, 0,
	}, []int{2, 2, 2})
	fg, _, err := FgBgIndices(label, nil, 0)
	if err != nil {
		t.Fatalf("FgBgIndices failed: %v", err)
	}
	if diff := cmp.Diff([]int{1}, fg); diff != "" {
		t.Errorf("Foreground mismatch (-want +got):\n%s", diff)
	}
}

func TestClassIndicesInteger(t *testing.T) {
	label := createLabel(t, []float64{
		0, 1, 1,
		2, 0, 0,
		0, 0, 3,
	}, []int{1, 3, 3})

	indices, err := ClassIndices(label, nil, 4, 0)
	if err != nil {
		t.Fatalf("ClassIndices failed: %v", err)
	}
	want := [][]int{
		{0, 4, 5, 6, 7},
		{1, 2},
		{3},
		{8},
	}
	if diff := cmp.Diff(want, indices); diff != "" {
		t.Errorf("Index pools mismatch (-want +got):\n%s", diff)
	}

	if _, err := ClassIndices(label, nil, 0, 0); err == nil {
		t.Error("Expected error when numClasses is missing for an integer label")
	}
}

func TestClassIndicesOneHot(t *testing.T) {
	label := createLabel(t, []float64{
		1, 0,
		0, 0,

		0, 1,
		0, 0,

		0, 0,
		1, 1,
	}, []int{3, 2, 2})

	indices, err := ClassIndices(label, nil, 0, 0)
	if err != nil {
		t.Fatalf("ClassIndices failed: %v", err)
	}
	want := [][]int{
		{0},
		{1},
		{2, 3},
	}
	if diff := cmp.Diff(want, indices); diff != "" {
		t.Errorf("Index pools mismatch (-want +got):\n%s", diff)
	}
}

func TestClassIndicesWithImage(t *testing.T) {
	label := createLabel(t, []float64{
		1, 1,
		0, 0,
	}, []int{1, 2, 2})
	image := createLabel(t, []float64{
		9, 0,
		9, 0,
	}, []int{1, 2, 2})

	indices, err := ClassIndices(label, image, 2, 0)
	if err != nil {
		t.Fatalf("ClassIndices failed: %v", err)
	}
	want := [][]int{
		{2},
		{0},
	}
	if diff := cmp.Diff(want, indices); diff != "" {
		t.Errorf("Index pools mismatch (-want +got):\n%s", diff)
	}
}

func TestPosNegCentersDeterminism(t *testing.T) {
	fg := []int{5, 6, 7}
	bg := []int{0, 1, 2, 3}
	spatial := []int{4, 4}
	size := []int{2, 2}

	a, err := PosNegCenters(NewState(11).Rand(), size, spatial, 8, 0.5, fg, bg, false)
	if err != nil {
		t.Fatalf("PosNegCenters failed: %v", err)
	}
	b, err := PosNegCenters(NewState(11).Rand(), size, spatial, 8, 0.5, fg, bg, false)
	if err != nil {
		t.Fatalf("PosNegCenters failed: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Same seed produced different centers (-first +second):\n%s", diff)
	}
}

func TestPosNegCentersPools(t *testing.T) {
	spatial := []int{1, 9}
	size := []int{1, 1}

	// Ratio 1 keeps every draw in the foreground pool.
	centers, err := PosNegCenters(NewState(2).Rand(), size, spatial, 20, 1, []int{4}, []int{0, 8}, false)
	if err != nil {
		t.Fatalf("PosNegCenters failed: %v", err)
	}
	for _, c := range centers {
		if c[1] != 4 {
			t.Fatalf("Expected all centers at the foreground voxel, got %v", c)
		}
	}

	// An empty foreground pool falls back to background.
	centers, err = PosNegCenters(NewState(2).Rand(), size, spatial, 20, 1, nil, []int{0, 8}, false)
	if err != nil {
		t.Fatalf("PosNegCenters failed: %v", err)
	}
	for _, c := range centers {
		if c[1] != 0 && c[1] != 8 {
			t.Fatalf("Expected centers from the background pool, got %v", c)
		}
	}

	_, err = PosNegCenters(NewState(2).Rand(), size, spatial, 1, 0.5, nil, nil, false)
	var empty *EmptyPoolError
	if !errors.As(err, &empty) {
		t.Fatalf("Expected EmptyPoolError for two empty pools, got %v", err)
	}
}

func TestPosNegCentersCorrected(t *testing.T) {
	// Foreground sits in a corner; centers must be shifted so the full
	// region fits inside the image.
	spatial := []int{5, 5}
	size := []int{3, 3}
	centers, err := PosNegCenters(NewState(4).Rand(), size, spatial, 10, 1, []int{0}, nil, false)
	if err != nil {
		t.Fatalf("PosNegCenters failed: %v", err)
	}
	for _, c := range centers {
		if diff := cmp.Diff([]int{1, 1}, c); diff != "" {
			t.Errorf("Corrected center mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestClassCentersFrequencies(t *testing.T) {
	// One voxel per class on a 2x2 grid; size 1 keeps centers at the drawn
	// voxel, so the landed cell identifies the class.
	spatial := []int{2, 2}
	indices := [][]int{{0}, {1}, {2}, {3}}
	ratios := []float64{1, 2, 3, 1}
	const n = 5000

	centers, err := ClassCenters(NewState(123).Rand(), []int{1, 1}, spatial, n, ratios, indices, false)
	if err != nil {
		t.Fatalf("ClassCenters failed: %v", err)
	}
	counts := make([]int, 4)
	for _, c := range centers {
		counts[c[0]*2+c[1]]++
	}
	for cls, want := range []float64{1.0 / 7, 2.0 / 7, 3.0 / 7, 1.0 / 7} {
		got := float64(counts[cls]) / n
		if math.Abs(got-want) > 0.05 {
			t.Errorf("Class %d frequency %.3f, expected about %.3f", cls, got, want)
		}
	}
}

func TestClassCentersEmptyClassZeroed(t *testing.T) {
	// Class 1 has no indices, so its ratio is ignored entirely.
	spatial := []int{1, 4}
	indices := [][]int{{0}, nil, {3}}
	ratios := []float64{1, 100, 1}

	centers, err := ClassCenters(NewState(9).Rand(), []int{1, 1}, spatial, 50, ratios, indices, false)
	if err != nil {
		t.Fatalf("ClassCenters failed: %v", err)
	}
	for _, c := range centers {
		if c[1] != 0 && c[1] != 3 {
			t.Fatalf("Expected centers only from populated classes, got %v", c)
		}
	}
}

func TestClassCentersErrors(t *testing.T) {
	spatial := []int{1, 4}

	_, err := ClassCenters(NewState(1).Rand(), []int{1, 1}, spatial, 1, []float64{1, -2}, [][]int{{0}, {1}}, false)
	if err == nil {
		t.Error("Expected error for a negative ratio, got nil")
	}

	_, err = ClassCenters(NewState(1).Rand(), []int{1, 1}, spatial, 1, []float64{1, 1, 1}, [][]int{{0}, {1}}, false)
	if err == nil {
		t.Error("Expected error for a ratio/class count mismatch, got nil")
	}

	_, err = ClassCenters(NewState(1).Rand(), []int{1, 1}, spatial, 1, []float64{1, 1}, [][]int{nil, nil}, false)
	var empty *EmptyPoolError
	if !errors.As(err, &empty) {
		t.Fatalf("Expected EmptyPoolError when every pool is empty, got %v", err)
	}

	_, err = ClassCenters(NewState(1).Rand(), []int{1, 1}, spatial, 0, nil, [][]int{{0}}, false)
	if err == nil {
		t.Error("Expected error for zero numSamples, got nil")
	}
}

func TestClassCentersDefaultRatios(t *testing.T) {
	centers, err := ClassCenters(NewState(5).Rand(), []int{1, 1}, []int{1, 2}, 100, nil, [][]int{{0}, {1}}, false)
	if err != nil {
		t.Fatalf("ClassCenters failed: %v", err)
	}
	seen := map[int]bool{}
	for _, c := range centers {
		seen[c[1]] = true
	}
	if !seen[0] || !seen[1] {
		t.Error("Expected both classes drawn under default equal ratios")
	}
}

func TestWeightedCentersPeak(t *testing.T) {
	// All weight on one interior voxel pulls every center there.
	spatial := []int{5, 5}
	weights := make([]float64, 25)
	weights[12] = 1 // position (2, 2)

	centers, err := WeightedCenters(NewState(8).Rand(), []int{3, 3}, spatial, 10, weights)
	if err != nil {
		t.Fatalf("WeightedCenters failed: %v", err)
	}
	for _, c := range centers {
		if diff := cmp.Diff([]int{2, 2}, c); diff != "" {
			t.Errorf("Center mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestWeightedCentersInvalidWeightsAreZero(t *testing.T) {
	spatial := []int{5, 5}
	weights := make([]float64, 25)
	weights[6] = math.NaN()
	weights[8] = -100
	weights[16] = math.Inf(1)
	weights[12] = 0.5

	centers, err := WeightedCenters(NewState(8).Rand(), []int{3, 3}, spatial, 10, weights)
	if err != nil {
		t.Fatalf("WeightedCenters failed: %v", err)
	}
	for _, c := range centers {
		if diff := cmp.Diff([]int{2, 2}, c); diff != "" {
			t.Errorf("Center mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestWeightedCentersUniformFallback(t *testing.T) {
	// An all-zero map samples uniformly instead of failing.
	spatial := []int{4, 4}
	weights := make([]float64, 16)

	centers, err := WeightedCenters(NewState(21).Rand(), []int{2, 2}, spatial, 200, weights)
	if err != nil {
		t.Fatalf("WeightedCenters failed: %v", err)
	}
	seen := map[[2]int]bool{}
	for _, c := range centers {
		// Valid centers keep the 2x2 window inside the image.
		if c[0] < 1 || c[0] > 3 || c[1] < 1 || c[1] > 3 {
			t.Fatalf("Center %v leaves the valid region", c)
		}
		seen[[2]int{c[0], c[1]}] = true
	}
	if len(seen) < 2 {
		t.Error("Expected uniform fallback to spread over several positions")
	}
}

func TestWeightedCentersWindowFits(t *testing.T) {
	spatial := []int{8, 6}
	size := []int{4, 3}
	weights := make([]float64, 48)
	for i := range weights {
		weights[i] = float64(i%7) + 0.5
	}

	centers, err := WeightedCenters(NewState(30).Rand(), size, spatial, 100, weights)
	if err != nil {
		t.Fatalf("WeightedCenters failed: %v", err)
	}
	for _, c := range centers {
		for i := range c {
			start := c[i] - size[i]/2
			if start < 0 || start+size[i] > spatial[i] {
				t.Fatalf("Center %v does not fit a %v window in %v", c, size, spatial)
			}
		}
	}
}

func TestWeightedCentersOversizedWindow(t *testing.T) {
	// A window larger than the image collapses each axis to its single
	// centered position.
	spatial := []int{4, 4}
	weights := make([]float64, 16)
	weights[5] = 3

	centers, err := WeightedCenters(NewState(2).Rand(), []int{6, 6}, spatial, 5, weights)
	if err != nil {
		t.Fatalf("WeightedCenters failed: %v", err)
	}
	for _, c := range centers {
		if diff := cmp.Diff([]int{2, 2}, c); diff != "" {
			t.Errorf("Center mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestWeightedCentersShapeMismatch(t *testing.T) {
	_, err := WeightedCenters(NewState(2).Rand(), []int{2, 2}, []int{4, 4}, 1, make([]float64, 10))
	if err == nil {
		t.Error("Expected error for a weight map of the wrong size, got nil")
	}
}
