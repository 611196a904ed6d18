package croppad

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

func TestInvertWithoutLog(t *testing.T) {
	v := createTestVolume(t, []int{1, 4, 4})
	out, err := Invert(v)
	if err != nil {
		t.Fatalf("Invert failed: %v", err)
	}
	if out != v {
		t.Error("Expected the volume back unchanged when the log is empty")
	}
}

func TestInvertPad3D(t *testing.T) {
	v := createTestVolume(t, []int{1, 5, 5, 5})
	p, err := NewSpatialPad([]int{6, 6, 6}, MethodSymmetric, PadMode{})
	if err != nil {
		t.Fatalf("NewSpatialPad failed: %v", err)
	}
	padded, err := p.Apply(v)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 6, 6, 6}, padded.Shape); diff != "" {
		t.Fatalf("Shape mismatch (-want +got):\n%s", diff)
	}

	restored, err := Invert(padded)
	if err != nil {
		t.Fatalf("Invert failed: %v", err)
	}
	if diff := cmp.Diff(v.Shape, restored.Shape); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(v.Data, restored.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
	if restored.HasOperations() {
		t.Error("Expected an empty log after inverting the pad")
	}
}

func TestInvertAllChain(t *testing.T) {
	v := createTestVolume(t, []int{1, 6, 6})
	cropper, err := NewCenterSpatialCrop([]int{4, 4})
	if err != nil {
		t.Fatalf("NewCenterSpatialCrop failed: %v", err)
	}
	padder, err := NewSpatialPad([]int{6, 6}, MethodSymmetric, PadMode{})
	if err != nil {
		t.Fatalf("NewSpatialPad failed: %v", err)
	}

	cropped, err := cropper.Apply(v)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	padded, err := padder.Apply(cropped)
	if err != nil {
		t.Fatalf("Pad failed: %v", err)
	}
	if len(padded.AppliedOperations()) != 2 {
		t.Fatalf("Expected 2 logged operations, got %d", len(padded.AppliedOperations()))
	}

	restored, err := InvertAll(padded)
	if err != nil {
		t.Fatalf("InvertAll failed: %v", err)
	}
	if restored.HasOperations() {
		t.Error("Expected an empty log after inverting the chain")
	}
	// The border rows and columns were discarded by the crop and come back
	// as zeros.
	want := make([]float64, 36)
	for r := 1; r < 5; r++ {
		for c := 1; c < 5; c++ {
			want[6*r+c] = float64(6*r + c)
		}
	}
	if diff := cmp.Diff(want, restored.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

func TestInvertTamperedCrop(t *testing.T) {
	v := createTestVolume(t, []int{1, 3, 3})
	v.PushOperation(volume.Operation{
		Kind:      volume.OpCrop,
		Box:       geometry.NewBox([]int{0, 0}, []int{2, 2}),
		OrigShape: []int{1, 5, 5},
	})

	var shapeErr *volume.ShapeMismatchError
	if _, err := Invert(v); !errors.As(err, &shapeErr) {
		t.Errorf("Expected a shape mismatch error, got %v", err)
	}
}

func TestInvertSamplesMerge(t *testing.T) {
	v := createTestVolume(t, []int{1, 4, 4})
	first, err := Crop(v, geometry.NewBox([]int{0, 0}, []int{2, 2}))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	first.SetPatchIndex(0)
	second, err := Crop(v, geometry.NewBox([]int{2, 2}, []int{4, 4}))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	second.SetPatchIndex(1)

	merged, err := InvertSamples([]*volume.Volume{first, second})
	if err != nil {
		t.Fatalf("InvertSamples failed: %v", err)
	}
	if diff := cmp.Diff(v.Shape, merged.Shape); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
	want := []float64{
		0, 1, 0, 0,
		4, 5, 0, 0,
		0, 0, 10, 11,
		0, 0, 14, 15,
	}
	if diff := cmp.Diff(want, merged.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
	if _, ok := merged.PatchIndex(); ok {
		t.Error("Expected the merged volume to carry no patch index")
	}
	if merged.HasOperations() {
		t.Error("Expected an empty log on the merged volume")
	}
}

func TestInvertSamplesOverlapPrecedence(t *testing.T) {
	v := createTestVolume(t, []int{1, 4, 4})
	first, err := Crop(v, geometry.NewBox([]int{0, 0}, []int{2, 2}))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	second, err := Crop(v, geometry.NewBox([]int{1, 1}, []int{3, 3}))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	for i := range second.Data {
		second.Data[i] = 100
	}

	merged, err := InvertSamples([]*volume.Volume{first, second})
	if err != nil {
		t.Fatalf("InvertSamples failed: %v", err)
	}
	want := []float64{
		0, 1, 0, 0,
		4, 100, 100, 0,
		0, 100, 100, 0,
		0, 0, 0, 0,
	}
	if diff := cmp.Diff(want, merged.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

func TestInvertSamplesErrors(t *testing.T) {
	if _, err := InvertSamples(nil); err == nil {
		t.Error("Expected an error for an empty sample list")
	}

	plain := createTestVolume(t, []int{1, 4, 4})
	if _, err := InvertSamples([]*volume.Volume{plain}); err == nil {
		t.Error("Expected an error for a sample without a log")
	}

	padded, err := Pad(plain, []volume.PadWidth{{Before: 1}, {}}, PadMode{})
	if err != nil {
		t.Fatalf("Pad failed: %v", err)
	}
	if _, err := InvertSamples([]*volume.Volume{padded}); err == nil {
		t.Error("Expected an error when the most recent operation is a pad")
	}
}
