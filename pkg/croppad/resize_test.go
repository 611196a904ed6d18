package croppad

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

func TestResizeWithPadOrCrop(t *testing.T) {
	v := createTestVolume(t, []int{1, 7, 3})
	r, err := NewResizeWithPadOrCrop([]int{5, 5}, MethodSymmetric, PadMode{})
	if err != nil {
		t.Fatalf("NewResizeWithPadOrCrop failed: %v", err)
	}

	out, err := r.Apply(v)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 5, 5}, out.Shape); diff != "" {
		t.Fatalf("Shape mismatch (-want +got):\n%s", diff)
	}
	ops := out.AppliedOperations()
	if len(ops) != 2 {
		t.Fatalf("Expected crop and pad entries, got %d operations", len(ops))
	}
	if ops[0].Kind != volume.OpCrop || ops[1].Kind != volume.OpPad {
		t.Errorf("Expected crop then pad, got %s then %s", ops[0].Kind, ops[1].Kind)
	}
	want := []float64{
		0, 3, 4, 5, 0,
		0, 6, 7, 8, 0,
		0, 9, 10, 11, 0,
		0, 12, 13, 14, 0,
		0, 15, 16, 17, 0,
	}
	if diff := cmp.Diff(want, out.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}

	restored, err := r.Inverse(out)
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 7, 3}, restored.Shape); diff != "" {
		t.Errorf("Restored shape mismatch (-want +got):\n%s", diff)
	}
	// The first and last rows were discarded by the crop and come back as
	// zeros.
	wantRestored := make([]float64, 21)
	for row := 1; row < 6; row++ {
		for col := 0; col < 3; col++ {
			wantRestored[3*row+col] = float64(3*row + col)
		}
	}
	if diff := cmp.Diff(wantRestored, restored.Data); diff != "" {
		t.Errorf("Restored data mismatch (-want +got):\n%s", diff)
	}
	if restored.HasOperations() {
		t.Error("Expected an empty log after the inverse")
	}
}

func TestResizeWithPadOrCropEqualSize(t *testing.T) {
	v := createTestVolume(t, []int{1, 5, 5})
	r, err := NewResizeWithPadOrCrop([]int{5, 5}, MethodSymmetric, PadMode{})
	if err != nil {
		t.Fatalf("NewResizeWithPadOrCrop failed: %v", err)
	}
	out, err := r.Apply(v)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff(v.Data, out.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
	// Both steps log even when nothing changes, so the inverse always pops
	// two entries.
	if len(out.AppliedOperations()) != 2 {
		t.Errorf("Expected 2 logged operations, got %d", len(out.AppliedOperations()))
	}
}

func TestResizeWithPadOrCropInverseErrors(t *testing.T) {
	r, err := NewResizeWithPadOrCrop([]int{4, 4}, MethodSymmetric, PadMode{})
	if err != nil {
		t.Fatalf("NewResizeWithPadOrCrop failed: %v", err)
	}

	if _, err := r.Inverse(createTestVolume(t, []int{1, 4, 4})); err == nil {
		t.Error("Expected an error for an empty log")
	}

	cropped, err := Crop(createTestVolume(t, []int{1, 6, 6}), geometry.NewBox([]int{0, 0}, []int{4, 4}))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if _, err := r.Inverse(cropped); err == nil {
		t.Error("Expected an error when the most recent operation is a crop")
	}
}

func TestResizeWithPadOrCropValidation(t *testing.T) {
	var cfgErr *ConfigError
	if _, err := NewResizeWithPadOrCrop(nil, MethodSymmetric, PadMode{}); !errors.As(err, &cfgErr) {
		t.Errorf("Expected a config error for an empty size, got %v", err)
	}
}
