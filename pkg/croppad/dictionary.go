package croppad

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/sampling"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// PatchIndexKey is the sample entry holding the patch index that
// multi-sample adapters assign to each produced sample.
const PatchIndexKey = "patch_index"

// Sample is one named collection of co-registered volumes plus auxiliary
// entries such as recorded coordinates or index pools.
type Sample map[string]any

// Volume returns the volume stored at key.
func (s Sample) Volume(key string) (*volume.Volume, error) {
	val, ok := s[key]
	if !ok {
		return nil, fmt.Errorf("key %q is missing from the sample", key)
	}
	v, ok := val.(*volume.Volume)
	if !ok {
		return nil, fmt.Errorf("value at key %q is %T, not a volume", key, val)
	}
	return v, nil
}

// clone copies the sample map itself, sharing the values.
func (s Sample) clone() Sample {
	out := make(Sample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// DictTransform applies one crop or pad stage to a sample. Deterministic
// stages return a single sample; patch samplers fan one sample out into
// several.
type DictTransform interface {
	Apply(Sample) ([]Sample, error)
}

// InvertibleDictTransform is a dictionary stage that can undo itself on
// every volume it transformed.
type InvertibleDictTransform interface {
	DictTransform
	Inverse(Sample) (Sample, error)
}

// forEachKey visits the configured keys of a sample in order. A missing
// key is skipped with allowMissing and is an error otherwise.
func forEachKey(s Sample, keys []string, allowMissing bool, fn func(key string, v *volume.Volume) error) error {
	for _, key := range keys {
		if _, ok := s[key]; !ok {
			if allowMissing {
				continue
			}
			return fmt.Errorf("key %q is missing from the sample", key)
		}
		v, err := s.Volume(key)
		if err != nil {
			return err
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
	return nil
}

// firstPresentKey returns the first configured key present in the sample.
func firstPresentKey(s Sample, keys []string) (string, bool) {
	for _, key := range keys {
		if _, ok := s[key]; ok {
			return key, true
		}
	}
	return "", false
}

// deepCopyValue copies the sample values a fan-out must not share between
// output samples. Unknown types are carried as they are.
func deepCopyValue(val any) any {
	switch v := val.(type) {
	case *volume.Volume:
		return v.Clone()
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out
	case [][]int:
		out := make([][]int, len(v))
		for i, row := range v {
			out[i] = make([]int, len(row))
			copy(out[i], row)
		}
		return out
	default:
		return val
	}
}

// fanOut builds the n output samples of a patch sampler: configured keys
// stay shared until their patches overwrite them, every other entry is
// deep copied, and each sample is tagged with its patch index.
func fanOut(d Sample, keys []string, n int) []Sample {
	touched := make(map[string]bool, len(keys))
	for _, k := range keys {
		touched[k] = true
	}
	out := make([]Sample, n)
	for i := range out {
		s := make(Sample, len(d)+1)
		for k, v := range d {
			if touched[k] {
				s[k] = v
			} else {
				s[k] = deepCopyValue(v)
			}
		}
		s[PatchIndexKey] = i
		out[i] = s
	}
	return out
}

// Padd applies one padder to the volumes at the configured keys.
type Padd struct {
	keys         []string
	padder       InvertibleTransform
	allowMissing bool
}

// NewPadd wraps a padder for dictionary use.
func NewPadd(keys []string, padder InvertibleTransform, allowMissingKeys bool) (*Padd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("Padd", "keys", "at least one key is required")
	}
	return &Padd{keys: keys, padder: padder, allowMissing: allowMissingKeys}, nil
}

// NewSpatialPadd pads every configured key to a minimum spatial size.
func NewSpatialPadd(keys []string, size []int, method PadMethod, mode PadMode, allowMissingKeys bool) (*Padd, error) {
	padder, err := NewSpatialPad(size, method, mode)
	if err != nil {
		return nil, err
	}
	return NewPadd(keys, padder, allowMissingKeys)
}

// NewBorderPadd pads a border around every configured key.
func NewBorderPadd(keys []string, border []int, mode PadMode, allowMissingKeys bool) (*Padd, error) {
	padder, err := NewBorderPad(border, mode)
	if err != nil {
		return nil, err
	}
	return NewPadd(keys, padder, allowMissingKeys)
}

// NewDivisiblePadd pads every configured key to divisible spatial sizes.
func NewDivisiblePadd(keys []string, k []int, method PadMethod, mode PadMode, allowMissingKeys bool) (*Padd, error) {
	padder, err := NewDivisiblePad(k, method, mode)
	if err != nil {
		return nil, err
	}
	return NewPadd(keys, padder, allowMissingKeys)
}

// NewResizeWithPadOrCropd resizes every configured key to a target spatial
// size by cropping and padding.
func NewResizeWithPadOrCropd(keys []string, size []int, method PadMethod, mode PadMode, allowMissingKeys bool) (*Padd, error) {
	resizer, err := NewResizeWithPadOrCrop(size, method, mode)
	if err != nil {
		return nil, err
	}
	return NewPadd(keys, resizer, allowMissingKeys)
}

// Apply pads every configured key.
func (t *Padd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.padder.Apply(v)
		if err != nil {
			return fmt.Errorf("failed to pad %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Sample{d}, nil
}

// Inverse undoes the pad on every configured key.
func (t *Padd) Inverse(s Sample) (Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.padder.Inverse(v)
		if err != nil {
			return fmt.Errorf("failed to invert pad on %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Cropd applies one cropper to the volumes at the configured keys.
type Cropd struct {
	keys         []string
	cropper      InvertibleTransform
	allowMissing bool
}

// NewCropd wraps a cropper for dictionary use.
func NewCropd(keys []string, cropper InvertibleTransform, allowMissingKeys bool) (*Cropd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("Cropd", "keys", "at least one key is required")
	}
	return &Cropd{keys: keys, cropper: cropper, allowMissing: allowMissingKeys}, nil
}

// NewSpatialCropd crops every configured key to one region of interest.
func NewSpatialCropd(keys []string, roi geometry.ROI, allowMissingKeys bool) (*Cropd, error) {
	cropper, err := NewSpatialCrop(roi)
	if err != nil {
		return nil, err
	}
	return NewCropd(keys, cropper, allowMissingKeys)
}

// NewCenterSpatialCropd crops a centered region from every configured key.
func NewCenterSpatialCropd(keys []string, size []int, allowMissingKeys bool) (*Cropd, error) {
	cropper, err := NewCenterSpatialCrop(size)
	if err != nil {
		return nil, err
	}
	return NewCropd(keys, cropper, allowMissingKeys)
}

// NewCenterScaleCropd crops a centered region sized relative to the image
// from every configured key.
func NewCenterScaleCropd(keys []string, scale []float64, allowMissingKeys bool) (*Cropd, error) {
	cropper, err := NewCenterScaleCrop(scale)
	if err != nil {
		return nil, err
	}
	return NewCropd(keys, cropper, allowMissingKeys)
}

// Apply crops every configured key.
func (t *Cropd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.cropper.Apply(v)
		if err != nil {
			return fmt.Errorf("failed to crop %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Sample{d}, nil
}

// Inverse undoes the crop on every configured key.
func (t *Cropd) Inverse(s Sample) (Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.cropper.Inverse(v)
		if err != nil {
			return fmt.Errorf("failed to invert crop on %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// randCropper is a random cropper that draws its geometry from a spatial
// shape and then applies that draw to any number of volumes.
type randCropper interface {
	InvertibleTransform
	Seedable
	Randomize(spatial []int) error
}

// RandCropd draws one crop geometry per sample from the first present key
// and applies it to every configured key, so co-registered volumes crop
// identically.
type RandCropd struct {
	keys         []string
	cropper      randCropper
	allowMissing bool
}

// NewRandCropd wraps a random cropper for dictionary use.
func NewRandCropd(keys []string, cropper randCropper, allowMissingKeys bool) (*RandCropd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("RandCropd", "keys", "at least one key is required")
	}
	return &RandCropd{keys: keys, cropper: cropper, allowMissing: allowMissingKeys}, nil
}

// NewRandSpatialCropd crops a random region from every configured key.
func NewRandSpatialCropd(keys []string, size, maxSize []int, randomCenter, randomSize bool, allowMissingKeys bool) (*RandCropd, error) {
	cropper, err := NewRandSpatialCrop(size, maxSize, randomCenter, randomSize)
	if err != nil {
		return nil, err
	}
	return NewRandCropd(keys, cropper, allowMissingKeys)
}

// NewRandScaleCropd crops a random region sized relative to the image from
// every configured key.
func NewRandScaleCropd(keys []string, scale, maxScale []float64, randomCenter, randomSize bool, allowMissingKeys bool) (*RandCropd, error) {
	cropper, err := NewRandScaleCrop(scale, maxScale, randomCenter, randomSize)
	if err != nil {
		return nil, err
	}
	return NewRandCropd(keys, cropper, allowMissingKeys)
}

// Seed reseeds the wrapped cropper.
func (t *RandCropd) Seed(seed uint64) {
	t.cropper.Seed(seed)
}

// Apply draws one crop geometry from the first present key and crops every
// configured key with it. A sample containing none of the keys passes
// through unchanged when missing keys are allowed.
func (t *RandCropd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	first, ok := firstPresentKey(d, t.keys)
	if !ok {
		if t.allowMissing {
			return []Sample{d}, nil
		}
		return nil, fmt.Errorf("key %q is missing from the sample", t.keys[0])
	}
	ref, err := d.Volume(first)
	if err != nil {
		return nil, err
	}
	if err := t.cropper.Randomize(ref.SpatialShape()); err != nil {
		return nil, err
	}
	err = forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.cropper.Apply(v)
		if err != nil {
			return fmt.Errorf("failed to crop %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Sample{d}, nil
}

// Inverse undoes the crop on every configured key.
func (t *RandCropd) Inverse(s Sample) (Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.cropper.Inverse(v)
		if err != nil {
			return fmt.Errorf("failed to invert crop on %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RandSpatialCropSamplesd crops several randomly placed patches from every
// configured key, producing one output sample per patch. All keys are
// expected to share one spatial shape; each key is cropped with the same
// per-event sub-seed so sample i matches across keys.
type RandSpatialCropSamplesd struct {
	sampling.State
	keys         []string
	cropper      *RandSpatialCropSamples
	allowMissing bool
}

// NewRandSpatialCropSamplesd creates the adapter.
func NewRandSpatialCropSamplesd(keys []string, size []int, numSamples int, maxSize []int, randomCenter, randomSize bool, allowMissingKeys bool) (*RandSpatialCropSamplesd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("RandSpatialCropSamplesd", "keys", "at least one key is required")
	}
	cropper, err := NewRandSpatialCropSamples(size, maxSize, randomCenter, randomSize, numSamples)
	if err != nil {
		return nil, err
	}
	return &RandSpatialCropSamplesd{keys: keys, cropper: cropper, allowMissing: allowMissingKeys}, nil
}

// Apply fans the sample out into one sample per patch.
func (t *RandSpatialCropSamplesd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	out := fanOut(d, t.keys, t.cropper.NumSamples())
	subSeed := t.SubSeed()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		t.cropper.Seed(subSeed)
		patches, err := t.cropper.ApplySamples(v)
		if err != nil {
			return fmt.Errorf("failed to crop %q: %v", key, err)
		}
		for i, p := range patches {
			out[i][key] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CropForegroundd crops every configured key to the foreground box of the
// volume at SourceKey and records the box coordinates in the sample.
type CropForegroundd struct {
	// StartCoordKey and EndCoordKey name the entries recording the box
	// coordinates as []int. An empty key skips that record.
	StartCoordKey string
	EndCoordKey   string

	keys         []string
	sourceKey    string
	cropper      *CropForeground
	allowMissing bool
}

// NewCropForegroundd creates the adapter. The box is computed once from
// sourceKey and applied to every configured key.
func NewCropForegroundd(keys []string, sourceKey string, opts CropForegroundOptions, allowMissingKeys bool) (*CropForegroundd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("CropForegroundd", "keys", "at least one key is required")
	}
	if sourceKey == "" {
		return nil, configErrorf("CropForegroundd", "sourceKey", "a source key is required")
	}
	cropper, err := NewCropForeground(opts)
	if err != nil {
		return nil, err
	}
	return &CropForegroundd{
		StartCoordKey: "foreground_start_coord",
		EndCoordKey:   "foreground_end_coord",
		keys:          keys,
		sourceKey:     sourceKey,
		cropper:       cropper,
		allowMissing:  allowMissingKeys,
	}, nil
}

// Apply computes the foreground box from the source key and crops every
// configured key with it.
func (t *CropForegroundd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	src, err := d.Volume(t.sourceKey)
	if err != nil {
		return nil, err
	}
	start, end, err := t.cropper.ComputeBoundingBox(src)
	if err != nil {
		return nil, err
	}
	if t.StartCoordKey != "" {
		d[t.StartCoordKey] = start
	}
	if t.EndCoordKey != "" {
		d[t.EndCoordKey] = end
	}
	err = forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.cropper.CropPad(v, start, end)
		if err != nil {
			return fmt.Errorf("failed to crop %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Sample{d}, nil
}

// Inverse undoes the crop and pad on every configured key. The recorded
// coordinate entries are left in place.
func (t *CropForegroundd) Inverse(s Sample) (Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		out, err := t.cropper.Inverse(v)
		if err != nil {
			return fmt.Errorf("failed to invert crop on %q: %v", key, err)
		}
		d[key] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RandWeightedCropd samples patches from every configured key at centers
// drawn from the weight map stored at the weight key.
type RandWeightedCropd struct {
	keys         []string
	wKey         string
	cropper      *RandWeightedCrop
	allowMissing bool
}

// NewRandWeightedCropd creates the adapter.
func NewRandWeightedCropd(keys []string, wKey string, size []int, numSamples int, allowMissingKeys bool) (*RandWeightedCropd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("RandWeightedCropd", "keys", "at least one key is required")
	}
	if wKey == "" {
		return nil, configErrorf("RandWeightedCropd", "wKey", "a weight map key is required")
	}
	cropper, err := NewRandWeightedCrop(size, numSamples)
	if err != nil {
		return nil, err
	}
	return &RandWeightedCropd{keys: keys, wKey: wKey, cropper: cropper, allowMissing: allowMissingKeys}, nil
}

// Seed reseeds the wrapped cropper.
func (t *RandWeightedCropd) Seed(seed uint64) {
	t.cropper.Seed(seed)
}

// Apply draws the centers once from the weight map and fans the sample out
// into one sample per patch.
func (t *RandWeightedCropd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	weightMap, err := d.Volume(t.wKey)
	if err != nil {
		return nil, err
	}
	if err := t.cropper.Randomize(weightMap); err != nil {
		return nil, err
	}
	return applyCenterSamples(d, t.keys, t.allowMissing, t.cropper.ApplySamples, len(t.cropper.Centers()))
}

// RandCropByPosNegLabeld samples patches from every configured key at
// centers balanced between labeled and background voxels of the label key.
// Precomputed pools stored at the foreground and background index keys are
// consumed from the sample when configured.
type RandCropByPosNegLabeld struct {
	// FgIndicesKey and BgIndicesKey name optional []int entries holding
	// precomputed pools. When both are present they replace the label scan
	// and are removed from the sample.
	FgIndicesKey string
	BgIndicesKey string

	keys         []string
	labelKey     string
	imageKey     string
	cropper      *RandCropByPosNegLabel
	allowMissing bool
}

// NewRandCropByPosNegLabeld creates the adapter. imageKey may be empty;
// when set, background sampling is restricted to voxels where that image
// exceeds the threshold.
func NewRandCropByPosNegLabeld(keys []string, labelKey, imageKey string, size []int, pos, neg float64, numSamples int, imageThreshold float64, allowSmaller bool, allowMissingKeys bool) (*RandCropByPosNegLabeld, error) {
	if len(keys) == 0 {
		return nil, configErrorf("RandCropByPosNegLabeld", "keys", "at least one key is required")
	}
	if labelKey == "" {
		return nil, configErrorf("RandCropByPosNegLabeld", "labelKey", "a label key is required")
	}
	cropper, err := NewRandCropByPosNegLabel(size, pos, neg, numSamples, imageThreshold, allowSmaller)
	if err != nil {
		return nil, err
	}
	return &RandCropByPosNegLabeld{
		keys:         keys,
		labelKey:     labelKey,
		imageKey:     imageKey,
		cropper:      cropper,
		allowMissing: allowMissingKeys,
	}, nil
}

// Seed reseeds the wrapped cropper.
func (t *RandCropByPosNegLabeld) Seed(seed uint64) {
	t.cropper.Seed(seed)
}

// Apply draws the centers once from the label and fans the sample out into
// one sample per patch.
func (t *RandCropByPosNegLabeld) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	label, err := d.Volume(t.labelKey)
	if err != nil {
		return nil, err
	}
	var image *volume.Volume
	if t.imageKey != "" {
		if image, err = d.Volume(t.imageKey); err != nil {
			return nil, err
		}
	}
	fg, err := popIntSlice(d, t.FgIndicesKey)
	if err != nil {
		return nil, err
	}
	bg, err := popIntSlice(d, t.BgIndicesKey)
	if err != nil {
		return nil, err
	}
	if err := t.cropper.Randomize(label, image, fg, bg); err != nil {
		return nil, err
	}
	return applyCenterSamples(d, t.keys, t.allowMissing, t.cropper.ApplySamples, len(t.cropper.Centers()))
}

// RandCropByLabelClassesd samples patches from every configured key at
// centers drawn class by class from the label key. A precomputed pool
// stored at the indices key is consumed from the sample when configured.
type RandCropByLabelClassesd struct {
	// IndicesKey names an optional [][]int entry holding precomputed class
	// pools. When present it replaces the label scan and is removed from
	// the sample.
	IndicesKey string

	keys         []string
	labelKey     string
	imageKey     string
	cropper      *RandCropByLabelClasses
	allowMissing bool
}

// NewRandCropByLabelClassesd creates the adapter. imageKey may be empty;
// when set, sampling is restricted to voxels where that image exceeds the
// threshold.
func NewRandCropByLabelClassesd(keys []string, labelKey, imageKey string, size []int, ratios []float64, numClasses, numSamples int, imageThreshold float64, allowSmaller bool, allowMissingKeys bool) (*RandCropByLabelClassesd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("RandCropByLabelClassesd", "keys", "at least one key is required")
	}
	if labelKey == "" {
		return nil, configErrorf("RandCropByLabelClassesd", "labelKey", "a label key is required")
	}
	cropper, err := NewRandCropByLabelClasses(size, ratios, numClasses, numSamples, imageThreshold, allowSmaller)
	if err != nil {
		return nil, err
	}
	return &RandCropByLabelClassesd{
		keys:         keys,
		labelKey:     labelKey,
		imageKey:     imageKey,
		cropper:      cropper,
		allowMissing: allowMissingKeys,
	}, nil
}

// Seed reseeds the wrapped cropper.
func (t *RandCropByLabelClassesd) Seed(seed uint64) {
	t.cropper.Seed(seed)
}

// Apply draws the centers once from the label and fans the sample out into
// one sample per patch.
func (t *RandCropByLabelClassesd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	label, err := d.Volume(t.labelKey)
	if err != nil {
		return nil, err
	}
	var image *volume.Volume
	if t.imageKey != "" {
		if image, err = d.Volume(t.imageKey); err != nil {
			return nil, err
		}
	}
	indices, err := popIntSliceList(d, t.IndicesKey)
	if err != nil {
		return nil, err
	}
	if err := t.cropper.Randomize(label, image, indices); err != nil {
		return nil, err
	}
	return applyCenterSamples(d, t.keys, t.allowMissing, t.cropper.ApplySamples, len(t.cropper.Centers()))
}

// BoundingRectd records the per-channel foreground bounds of every
// configured key under "<key>_<postfix>" without changing the volumes.
type BoundingRectd struct {
	keys         []string
	postfix      string
	rect         *BoundingRect
	allowMissing bool
}

// NewBoundingRectd creates the adapter. An empty postfix defaults to
// "bbox"; a nil select function keeps strictly positive voxels.
func NewBoundingRectd(keys []string, postfix string, sel SelectFunc, allowMissingKeys bool) (*BoundingRectd, error) {
	if len(keys) == 0 {
		return nil, configErrorf("BoundingRectd", "keys", "at least one key is required")
	}
	if postfix == "" {
		postfix = "bbox"
	}
	return &BoundingRectd{
		keys:         keys,
		postfix:      postfix,
		rect:         NewBoundingRect(sel),
		allowMissing: allowMissingKeys,
	}, nil
}

// Apply measures every configured key.
func (t *BoundingRectd) Apply(s Sample) ([]Sample, error) {
	d := s.clone()
	err := forEachKey(d, t.keys, t.allowMissing, func(key string, v *volume.Volume) error {
		recordKey := key + "_" + t.postfix
		if _, exists := d[recordKey]; exists {
			return fmt.Errorf("bounding box entry %q already exists in the sample", recordKey)
		}
		d[recordKey] = t.rect.Compute(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Sample{d}, nil
}

// applyCenterSamples fans a sample out through a held-center patch sampler,
// cropping every configured key with the same centers.
func applyCenterSamples(d Sample, keys []string, allowMissing bool, apply func(*volume.Volume) ([]*volume.Volume, error), numSamples int) ([]Sample, error) {
	out := fanOut(d, keys, numSamples)
	err := forEachKey(d, keys, allowMissing, func(key string, v *volume.Volume) error {
		patches, err := apply(v)
		if err != nil {
			return fmt.Errorf("failed to crop %q: %v", key, err)
		}
		for i, p := range patches {
			out[i][key] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// popIntSlice removes and returns an []int entry, nil when the key is
// empty or absent.
func popIntSlice(d Sample, key string) ([]int, error) {
	if key == "" {
		return nil, nil
	}
	val, ok := d[key]
	if !ok {
		return nil, nil
	}
	out, ok := val.([]int)
	if !ok {
		return nil, fmt.Errorf("value at key %q is %T, not an index pool", key, val)
	}
	delete(d, key)
	return out, nil
}

// popIntSliceList removes and returns a [][]int entry, nil when the key is
// empty or absent.
func popIntSliceList(d Sample, key string) ([][]int, error) {
	if key == "" {
		return nil, nil
	}
	val, ok := d[key]
	if !ok {
		return nil, nil
	}
	out, ok := val.([][]int)
	if !ok {
		return nil, fmt.Errorf("value at key %q is %T, not a class index pool", key, val)
	}
	delete(d, key)
	return out, nil
}

// InvertSamplesd merges the samples of one fan-out back into a single
// sample: for every configured key the patches are inverted and pasted at
// their recorded positions over the original extent, and the patch index
// entry is dropped. Auxiliary entries are taken from the first sample.
func InvertSamplesd(samples []Sample, keys []string, allowMissingKeys bool) (Sample, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot invert an empty sample list")
	}
	d := samples[0].clone()
	delete(d, PatchIndexKey)
	for _, key := range keys {
		vols := make([]*volume.Volume, 0, len(samples))
		for _, s := range samples {
			if _, ok := s[key]; !ok {
				continue
			}
			v, err := s.Volume(key)
			if err != nil {
				return nil, err
			}
			vols = append(vols, v)
		}
		if len(vols) == 0 {
			if allowMissingKeys {
				continue
			}
			return nil, fmt.Errorf("key %q is missing from the sample", key)
		}
		if len(vols) != len(samples) {
			return nil, fmt.Errorf("key %q is present in %d of %d samples", key, len(vols), len(samples))
		}
		merged, err := InvertSamples(vols)
		if err != nil {
			return nil, fmt.Errorf("failed to invert %q: %v", key, err)
		}
		d[key] = merged
	}
	return d, nil
}
