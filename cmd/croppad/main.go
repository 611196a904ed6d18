package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pzaffino/MONAI/internal/rawvol"
	"github.com/pzaffino/MONAI/pkg/config"
	"github.com/pzaffino/MONAI/pkg/croppad"
	"github.com/pzaffino/MONAI/pkg/visualization"
	"github.com/pzaffino/MONAI/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Pipeline configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration file and exit")
	inputPath := flag.String("input", "", "Input raw volume file")
	demo := flag.Bool("demo", false, "Run on a generated demo volume instead of an input file")
	outputDir := flag.String("output", "output", "Directory for output volumes")
	seed := flag.Int64("seed", -1, "Override the configured random seed (negative keeps the configuration)")
	samples := flag.Int("samples", 0, "Override the patch count of sampling stages (0 keeps the configuration)")
	slicesDir := flag.String("slices-dir", "", "Save slice images of each output under this directory")
	axis := flag.Int("axis", -1, "Spatial axis for slice images (negative keeps the configuration)")
	invert := flag.Bool("invert", false, "Invert the outputs and report the restored shapes")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to write configuration")
		}
		logger.Info().Str("path", *configPath).Msg("wrote default configuration")
		return
	}

	// Validate inputs
	if *inputPath == "" && !*demo {
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration and apply command line overrides
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *seed >= 0 {
		cfg.Pipeline.Seed = *seed
	}
	if *samples > 0 {
		for i := range cfg.Pipeline.Stages {
			if cfg.Pipeline.Stages[i].NumSamples > 0 {
				cfg.Pipeline.Stages[i].NumSamples = *samples
			}
		}
	}
	if *slicesDir != "" {
		cfg.Output.SaveSlices = true
		cfg.Output.SliceDir = *slicesDir
	}
	if *axis >= 0 {
		cfg.Output.SliceAxis = *axis
	}
	if cfg.Output.Verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	// Build the pipeline
	pipeline, err := cfg.Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	for i, stage := range cfg.Pipeline.Stages {
		logger.Debug().
			Int("stage", i).
			Str("transform", stage.Name).
			Strs("keys", stage.Keys).
			Msg("configured stage")
	}

	// Load or generate the input sample
	sample, err := loadSample(*inputPath, *demo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load input")
	}
	for _, key := range volumeKeys(sample) {
		v := sample[key].(*volume.Volume)
		logger.Info().Str("key", key).Ints("shape", v.Shape).Msg("loaded volume")
	}

	// Run the pipeline
	logger.Info().Int("stages", len(pipeline.Stages())).Msg("applying pipeline")
	start := time.Now()
	results, err := pipeline.Apply(sample)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline failed")
	}
	logger.Info().
		Int("samples", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline completed")

	// Write output volumes
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create output directory")
	}
	for i, result := range results {
		for _, key := range volumeKeys(result) {
			v := result[key].(*volume.Volume)
			path := filepath.Join(*outputDir, fmt.Sprintf("sample_%03d_%s.rvol", i, key))
			if err := rawvol.WriteFile(path, v); err != nil {
				logger.Fatal().Err(err).Str("path", path).Msg("failed to write output volume")
			}
			logger.Debug().Str("path", path).Ints("shape", v.Shape).Msg("wrote volume")
		}
	}
	logger.Info().Str("dir", *outputDir).Msg("wrote output volumes")

	// Export slice images if requested
	if cfg.Output.SaveSlices {
		for i, result := range results {
			dir := filepath.Join(cfg.Output.SliceDir, fmt.Sprintf("sample_%03d", i))
			if err := saveSlices(result, cfg.Output.SliceAxis, dir); err != nil {
				logger.Warn().Err(err).Int("sample", i).Msg("failed to save slice images")
			}
		}
		logger.Info().Str("dir", cfg.Output.SliceDir).Msg("saved slice images")
	}

	// Undo the recorded operations to prove the round trip
	if *invert {
		restored, err := invertResults(results)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to invert results")
		}
		keys := make([]string, 0, len(restored))
		for key := range restored {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			logger.Info().Str("key", key).Ints("shape", restored[key].Shape).Msg("restored original extent")
		}
	}
}

// loadSample reads the input volume, or builds a demo pair of a gradient
// image with a bright ball in the middle and the matching binary mask.
func loadSample(path string, demo bool) (croppad.Sample, error) {
	if !demo {
		v, err := rawvol.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return croppad.Sample{"image": v}, nil
	}

	spatial := []int{48, 48, 48}
	image, err := rawvol.Gradient(spatial)
	if err != nil {
		return nil, err
	}
	label, err := rawvol.Sphere(spatial, nil, 12)
	if err != nil {
		return nil, err
	}
	for i, v := range label.Data {
		image.Data[i] += v
	}
	return croppad.Sample{"image": image, "label": label}, nil
}

// volumeKeys returns the keys of a sample holding volumes, in sorted order.
func volumeKeys(s croppad.Sample) []string {
	keys := make([]string, 0, len(s))
	for key, val := range s {
		if _, ok := val.(*volume.Volume); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// saveSlices renders one output sample into grayscale images. Volumes with
// three spatial axes get a slice sequence, planar ones a single image.
func saveSlices(s croppad.Sample, axis int, dir string) error {
	keys := volumeKeys(s)
	if len(keys) == 0 {
		return fmt.Errorf("sample holds no volumes")
	}
	key := keys[0]
	for _, k := range keys {
		if k == "image" {
			key = k
		}
	}
	v := s[key].(*volume.Volume)

	viewer, err := visualization.NewViewer(v, 0)
	if err != nil {
		return err
	}
	switch v.SpatialRank() {
	case 3:
		return viewer.SaveSliceSequence(axis, dir)
	case 2:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		img, err := viewer.PlaneImage()
		if err != nil {
			return err
		}
		return viewer.SaveSlice(img, filepath.Join(dir, "plane.jpg"))
	}
	return fmt.Errorf("no slice rendering for %d spatial axes", v.SpatialRank())
}

// invertResults undoes the recorded operations of every output volume,
// merging patch batches back into one volume per key first.
func invertResults(results []croppad.Sample) (map[string]*volume.Volume, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to invert")
	}
	restored := make(map[string]*volume.Volume)
	for _, key := range volumeKeys(results[0]) {
		vols := make([]*volume.Volume, 0, len(results))
		for _, s := range results {
			v, err := s.Volume(key)
			if err != nil {
				return nil, err
			}
			vols = append(vols, v)
		}
		// Keys no transform touched are already at their original extent
		out := vols[0]
		if len(vols) > 1 && out.HasOperations() {
			merged, err := croppad.InvertSamples(vols)
			if err != nil {
				return nil, fmt.Errorf("failed to merge %q: %v", key, err)
			}
			out = merged
		}
		full, err := croppad.InvertAll(out)
		if err != nil {
			return nil, fmt.Errorf("failed to invert %q: %v", key, err)
		}
		restored[key] = full
	}
	return restored, nil
}
