// Package config provides configuration loading and management for the crop
// and pad pipeline. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pzaffino/MONAI/pkg/croppad"
	"github.com/pzaffino/MONAI/pkg/geometry"
)

// Stage describes one transform of the pipeline. Name selects the transform
// and the remaining fields hold its parameters; fields a transform does not
// use are ignored.
type Stage struct {
	// Name selects the transform to build
	Name string `yaml:"name"`

	// Keys lists the sample entries the transform applies to
	Keys []string `yaml:"keys"`

	// AllowMissingKeys skips keys absent from a sample instead of failing
	AllowMissingKeys bool `yaml:"allowMissingKeys,omitempty"`

	// Size is the target spatial size, one value per axis or one for all
	Size []int `yaml:"size,omitempty"`

	// MaxSize bounds the drawn size of random-size crops per axis
	MaxSize []int `yaml:"maxSize,omitempty"`

	// Scale sizes a region relative to the image
	Scale []float64 `yaml:"scale,omitempty"`

	// MaxScale bounds the drawn scale of random-size crops per axis
	MaxScale []float64 `yaml:"maxScale,omitempty"`

	// Start and End bound an explicit crop region per axis
	Start []int `yaml:"start,omitempty"`
	End   []int `yaml:"end,omitempty"`

	// Center places an explicit crop region by its middle voxel
	Center []int `yaml:"center,omitempty"`

	// Border holds border pad widths: one value for all axes, one per axis,
	// or before/after pairs per axis
	Border []int `yaml:"border,omitempty"`

	// K holds the per-axis divisors of a divisible pad
	K []int `yaml:"k,omitempty"`

	// Mode names the pad fill: constant, edge, reflect, replicate or wrap
	Mode string `yaml:"mode,omitempty"`

	// Value fills constant pads
	Value float64 `yaml:"value,omitempty"`

	// Method places the original data within a pad: symmetric or end
	Method string `yaml:"method,omitempty"`

	// RandomCenter and RandomSize control the draws of the random croppers
	RandomCenter bool `yaml:"randomCenter,omitempty"`
	RandomSize   bool `yaml:"randomSize,omitempty"`

	// NumSamples is the number of patches a sampler produces per input
	NumSamples int `yaml:"numSamples,omitempty"`

	// SourceKey names the volume a foreground crop measures
	SourceKey string `yaml:"sourceKey,omitempty"`

	// Margin widens the foreground box on both sides of each axis
	Margin []int `yaml:"margin,omitempty"`

	// AllowSmaller clips oversized regions to the image instead of failing
	AllowSmaller bool `yaml:"allowSmaller,omitempty"`

	// WeightKey names the weight map of a weighted crop
	WeightKey string `yaml:"weightKey,omitempty"`

	// LabelKey and ImageKey name the label and intensity volumes of the
	// label-driven samplers; ImageKey may be empty
	LabelKey string `yaml:"labelKey,omitempty"`
	ImageKey string `yaml:"imageKey,omitempty"`

	// Pos and Neg weight foreground draws against background draws
	Pos float64 `yaml:"pos,omitempty"`
	Neg float64 `yaml:"neg,omitempty"`

	// ImageThreshold restricts sampling to image values above it
	ImageThreshold float64 `yaml:"imageThreshold,omitempty"`

	// Ratios weights the classes of a class-driven sampler
	Ratios []float64 `yaml:"ratios,omitempty"`

	// NumClasses is the class count of a single-channel integer label
	NumClasses int `yaml:"numClasses,omitempty"`

	// Postfix names the bounding box entries recorded per key
	Postfix string `yaml:"postfix,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Pipeline parameters
	Pipeline struct {
		// Seed makes the random transforms reproducible; a negative value
		// leaves them seeded from the clock
		Seed int64 `yaml:"seed"`

		// Stages lists the transforms to apply in order
		Stages []Stage `yaml:"stages"`
	} `yaml:"pipeline"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// SaveSlices determines whether to export slice images of the results
		SaveSlices bool `yaml:"saveSlices"`

		// SliceAxis is the spatial axis slice images are taken across
		SliceAxis int `yaml:"sliceAxis"`

		// SliceDir is the directory slice images are written to
		SliceDir string `yaml:"sliceDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Pad to a common extent, then sample four random patches per volume
	cfg.Pipeline.Seed = 0
	cfg.Pipeline.Stages = []Stage{
		{
			Name:             "spatialPad",
			Keys:             []string{"image", "label"},
			Size:             []int{64, 64, 64},
			AllowMissingKeys: true,
		},
		{
			Name:             "randSpatialCropSamples",
			Keys:             []string{"image", "label"},
			Size:             []int{32, 32, 32},
			NumSamples:       4,
			RandomCenter:     true,
			AllowMissingKeys: true,
		},
	}

	// Set default output parameters
	cfg.Output.Verbose = true
	cfg.Output.SaveSlices = false
	cfg.Output.SliceAxis = 0
	cfg.Output.SliceDir = "slices"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Build constructs the transform pipeline the configuration describes and
// seeds it when a non-negative seed is configured.
func (cfg *Config) Build() (*croppad.Pipeline, error) {
	stages := make([]croppad.DictTransform, len(cfg.Pipeline.Stages))
	for i, stage := range cfg.Pipeline.Stages {
		built, err := buildStage(stage)
		if err != nil {
			return nil, fmt.Errorf("error building stage %d (%s): %w", i, stage.Name, err)
		}
		stages[i] = built
	}
	p := croppad.NewPipeline(stages...)
	if cfg.Pipeline.Seed >= 0 {
		p.Seed(uint64(cfg.Pipeline.Seed))
	}
	return p, nil
}

// buildStage maps one stage description onto its transform constructor.
func buildStage(stage Stage) (croppad.DictTransform, error) {
	mode, err := croppad.ParsePadMode(stage.Mode, stage.Value)
	if err != nil {
		return nil, err
	}
	method, err := croppad.ParsePadMethod(stage.Method)
	if err != nil {
		return nil, err
	}

	switch stage.Name {
	case "spatialPad":
		return croppad.NewSpatialPadd(stage.Keys, stage.Size, method, mode, stage.AllowMissingKeys)
	case "borderPad":
		return croppad.NewBorderPadd(stage.Keys, stage.Border, mode, stage.AllowMissingKeys)
	case "divisiblePad":
		return croppad.NewDivisiblePadd(stage.Keys, stage.K, method, mode, stage.AllowMissingKeys)
	case "resizeWithPadOrCrop":
		return croppad.NewResizeWithPadOrCropd(stage.Keys, stage.Size, method, mode, stage.AllowMissingKeys)
	case "spatialCrop":
		roi, err := stageROI(stage)
		if err != nil {
			return nil, err
		}
		return croppad.NewSpatialCropd(stage.Keys, roi, stage.AllowMissingKeys)
	case "centerSpatialCrop":
		return croppad.NewCenterSpatialCropd(stage.Keys, stage.Size, stage.AllowMissingKeys)
	case "centerScaleCrop":
		return croppad.NewCenterScaleCropd(stage.Keys, stage.Scale, stage.AllowMissingKeys)
	case "randSpatialCrop":
		return croppad.NewRandSpatialCropd(stage.Keys, stage.Size, stage.MaxSize, stage.RandomCenter, stage.RandomSize, stage.AllowMissingKeys)
	case "randScaleCrop":
		return croppad.NewRandScaleCropd(stage.Keys, stage.Scale, stage.MaxScale, stage.RandomCenter, stage.RandomSize, stage.AllowMissingKeys)
	case "randSpatialCropSamples":
		return croppad.NewRandSpatialCropSamplesd(stage.Keys, stage.Size, sampleCount(stage), stage.MaxSize, stage.RandomCenter, stage.RandomSize, stage.AllowMissingKeys)
	case "cropForeground":
		opts := croppad.CropForegroundOptions{
			Margin:       stage.Margin,
			AllowSmaller: stage.AllowSmaller,
			KDivisible:   stage.K,
			Mode:         mode,
		}
		return croppad.NewCropForegroundd(stage.Keys, stage.SourceKey, opts, stage.AllowMissingKeys)
	case "randWeightedCrop":
		return croppad.NewRandWeightedCropd(stage.Keys, stage.WeightKey, stage.Size, sampleCount(stage), stage.AllowMissingKeys)
	case "randCropByPosNegLabel":
		pos, neg := stage.Pos, stage.Neg
		if pos == 0 && neg == 0 {
			pos, neg = 1, 1
		}
		return croppad.NewRandCropByPosNegLabeld(stage.Keys, stage.LabelKey, stage.ImageKey, stage.Size, pos, neg, sampleCount(stage), stage.ImageThreshold, stage.AllowSmaller, stage.AllowMissingKeys)
	case "randCropByLabelClasses":
		return croppad.NewRandCropByLabelClassesd(stage.Keys, stage.LabelKey, stage.ImageKey, stage.Size, stage.Ratios, stage.NumClasses, sampleCount(stage), stage.ImageThreshold, stage.AllowSmaller, stage.AllowMissingKeys)
	case "boundingRect":
		return croppad.NewBoundingRectd(stage.Keys, stage.Postfix, nil, stage.AllowMissingKeys)
	}
	return nil, fmt.Errorf("unknown transform %q", stage.Name)
}

// stageROI resolves the explicit region forms a spatialCrop stage accepts.
func stageROI(stage Stage) (geometry.ROI, error) {
	switch {
	case len(stage.Center) > 0 && len(stage.Size) > 0:
		return geometry.CenterSize{Center: stage.Center, Size: stage.Size}, nil
	case len(stage.Start) > 0 && len(stage.End) > 0:
		return geometry.StartEnd{Start: stage.Start, End: stage.End}, nil
	case len(stage.Scale) > 0:
		return geometry.Scale{Factors: stage.Scale}, nil
	}
	return nil, fmt.Errorf("spatialCrop needs center and size, start and end, or scale")
}

// sampleCount returns the configured sample count, defaulting to one patch.
func sampleCount(stage Stage) int {
	if stage.NumSamples < 1 {
		return 1
	}
	return stage.NumSamples
}
