package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pzaffino/MONAI/pkg/croppad"
	"github.com/pzaffino/MONAI/pkg/volume"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Pipeline.Stages) != 2 {
		t.Fatalf("Expected 2 default stages, got %d", len(cfg.Pipeline.Stages))
	}
	if cfg.Pipeline.Stages[0].Name != "spatialPad" {
		t.Errorf("Expected first stage spatialPad, got %s", cfg.Pipeline.Stages[0].Name)
	}
	if cfg.Pipeline.Stages[1].Name != "randSpatialCropSamples" {
		t.Errorf("Expected second stage randSpatialCropSamples, got %s", cfg.Pipeline.Stages[1].Name)
	}
	if !cfg.Output.Verbose {
		t.Error("Expected verbose output by default")
	}

	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Failed to build default pipeline: %v", err)
	}
	if len(p.Stages()) != 2 {
		t.Errorf("Expected 2 pipeline stages, got %d", len(p.Stages()))
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got error: %v", err)
	}

	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Seed = 1234
	cfg.Pipeline.Stages = []Stage{
		{
			Name:   "borderPad",
			Keys:   []string{"image", "label"},
			Border: []int{2},
			Mode:   "edge",
		},
		{
			Name:      "cropForeground",
			Keys:      []string{"image", "label"},
			SourceKey: "label",
			Margin:    []int{1},
		},
	}
	cfg.Output.SliceAxis = 2
	cfg.Output.SliceDir = "out/slices"

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(configPath); err != nil {
		t.Fatalf("Failed to create default config file: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if !strings.Contains(string(data), "spatialPad") {
		t.Errorf("Expected default stage in file, got:\n%s", data)
	}
}

func TestLoadConfigAndApply(t *testing.T) {
	yamlText := `
pipeline:
  seed: 7
  stages:
    - name: spatialPad
      keys: [image]
      size: [7, 7]
      mode: constant
      value: -1
    - name: centerSpatialCrop
      keys: [image]
      size: [6, 6]
output:
  verbose: false
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlText), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Pipeline.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", cfg.Pipeline.Seed)
	}
	if cfg.Output.Verbose {
		t.Error("Expected verbose to be overridden to false")
	}

	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	data := make([]float64, 25)
	for i := range data {
		data[i] = float64(i)
	}
	v, err := volume.New(data, []int{1, 5, 5})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	out, err := p.Apply(croppad.Sample{"image": v})
	if err != nil {
		t.Fatalf("Failed to apply pipeline: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(out))
	}

	got, err := out[0].Volume("image")
	if err != nil {
		t.Fatalf("Failed to get output volume: %v", err)
	}
	if diff := cmp.Diff([]int{1, 6, 6}, got.Shape); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
	// The crop keeps the padded ring on the top and left edges
	if got.Data[0] != -1 {
		t.Errorf("Expected pad value -1 at corner, got %v", got.Data[0])
	}
	if got.Data[7] != 0 {
		t.Errorf("Expected original corner value 0, got %v", got.Data[7])
	}
}

func TestBuildSeedReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Seed = 42
	cfg.Pipeline.Stages = []Stage{
		{
			Name:         "randSpatialCrop",
			Keys:         []string{"image"},
			Size:         []int{3, 3},
			RandomCenter: true,
		},
	}

	run := func() []float64 {
		t.Helper()
		p, err := cfg.Build()
		if err != nil {
			t.Fatalf("Failed to build pipeline: %v", err)
		}
		data := make([]float64, 64)
		for i := range data {
			data[i] = float64(i)
		}
		v, err := volume.New(data, []int{1, 8, 8})
		if err != nil {
			t.Fatalf("Failed to create volume: %v", err)
		}
		out, err := p.Apply(croppad.Sample{"image": v})
		if err != nil {
			t.Fatalf("Failed to apply pipeline: %v", err)
		}
		got, err := out[0].Volume("image")
		if err != nil {
			t.Fatalf("Failed to get output volume: %v", err)
		}
		return got.Data
	}

	first := run()
	second := run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Expected identical crops from equal seeds (-first +second):\n%s", diff)
	}
}

func TestBuildStageErrors(t *testing.T) {
	tests := []struct {
		name    string
		stage   Stage
		wantErr string
	}{
		{
			name:    "unknown transform",
			stage:   Stage{Name: "warp", Keys: []string{"image"}},
			wantErr: "unknown transform",
		},
		{
			name:    "bad pad mode",
			stage:   Stage{Name: "spatialPad", Keys: []string{"image"}, Size: []int{4, 4}, Mode: "mirror"},
			wantErr: "pad mode",
		},
		{
			name:    "bad pad method",
			stage:   Stage{Name: "spatialPad", Keys: []string{"image"}, Size: []int{4, 4}, Method: "middle"},
			wantErr: "pad method",
		},
		{
			name:    "spatialCrop without region",
			stage:   Stage{Name: "spatialCrop", Keys: []string{"image"}},
			wantErr: "spatialCrop needs",
		},
		{
			name:    "missing keys",
			stage:   Stage{Name: "centerSpatialCrop", Size: []int{4, 4}},
			wantErr: "stage 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Pipeline.Seed = -1
			cfg.Pipeline.Stages = []Stage{tt.stage}

			_, err := cfg.Build()
			if err == nil {
				t.Fatal("Expected an error building the stage")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildLabelSamplerDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Pipeline.Seed = 5
	cfg.Pipeline.Stages = []Stage{
		{
			Name:     "randCropByPosNegLabel",
			Keys:     []string{"image"},
			LabelKey: "label",
			Size:     []int{3, 3},
		},
	}

	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	image := make([]float64, 25)
	for i := range image {
		image[i] = float64(i)
	}
	img, err := volume.New(image, []int{1, 5, 5})
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	label, err := volume.NewZeros([]int{1, 5, 5})
	if err != nil {
		t.Fatalf("Failed to create label: %v", err)
	}
	label.Data[12] = 1

	// Pos and neg default to an even split, numSamples to a single patch
	out, err := p.Apply(croppad.Sample{"image": img, "label": label})
	if err != nil {
		t.Fatalf("Failed to apply pipeline: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(out))
	}
	got, err := out[0].Volume("image")
	if err != nil {
		t.Fatalf("Failed to get output volume: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3, 3}, got.Shape); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
}
