package croppad

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// PadFunc fills one padded line at a time. It receives the original values
// along one axis and must return a line holding before+len(src)+after
// values with the original data in the middle.
type PadFunc func(src []float64, before, after int) []float64

type padKind int

const (
	padConstant padKind = iota
	padEdge
	padReflect
	padReplicate
	padWrap
	padCustom
)

// PadMode selects how padded positions are filled. The zero value fills
// with constant zero. Padding is applied one spatial axis at a time in
// ascending axis order; the channel axis is never padded.
type PadMode struct {
	kind  padKind
	value float64
	fn    PadFunc
}

// Constant fills padded positions with a fixed value.
func Constant(value float64) PadMode {
	return PadMode{kind: padConstant, value: value}
}

// Edge repeats the border value outward.
func Edge() PadMode {
	return PadMode{kind: padEdge}
}

// Reflect mirrors values across the border without repeating the border
// value itself.
func Reflect() PadMode {
	return PadMode{kind: padReflect}
}

// Replicate repeats the border value outward. It behaves like Edge and
// exists for callers used to that name.
func Replicate() PadMode {
	return PadMode{kind: padReplicate}
}

// Wrap continues each line periodically.
func Wrap() PadMode {
	return PadMode{kind: padWrap}
}

// FillWith pads with a caller-supplied line function.
func FillWith(fn PadFunc) PadMode {
	return PadMode{kind: padCustom, fn: fn}
}

// String returns the mode name as used in configuration files.
func (m PadMode) String() string {
	switch m.kind {
	case padConstant:
		return "constant"
	case padEdge:
		return "edge"
	case padReflect:
		return "reflect"
	case padReplicate:
		return "replicate"
	case padWrap:
		return "wrap"
	case padCustom:
		return "custom"
	}
	return fmt.Sprintf("padmode(%d)", int(m.kind))
}

// ParsePadMode resolves a configuration name to a pad mode. The value is
// only used by the constant mode.
func ParsePadMode(name string, value float64) (PadMode, error) {
	switch name {
	case "", "constant":
		return Constant(value), nil
	case "edge":
		return Edge(), nil
	case "reflect":
		return Reflect(), nil
	case "replicate":
		return Replicate(), nil
	case "wrap":
		return Wrap(), nil
	}
	return PadMode{}, fmt.Errorf("unknown pad mode %q", name)
}

// fillLine writes the padded form of src into dst according to the mode.
// dst holds before+len(src)+after values.
func (m PadMode) fillLine(dst, src []float64, before, after int) error {
	n := len(src)
	if m.kind == padCustom {
		out := m.fn(src, before, after)
		if len(out) != before+n+after {
			return fmt.Errorf("pad function returned %d values, expected %d", len(out), before+n+after)
		}
		copy(dst, out)
		return nil
	}
	if n == 0 && m.kind != padConstant {
		return fmt.Errorf("cannot pad an empty axis with mode %s", m)
	}
	copy(dst[before:before+n], src)
	switch m.kind {
	case padConstant:
		for i := 0; i < before; i++ {
			dst[i] = m.value
		}
		for i := before + n; i < len(dst); i++ {
			dst[i] = m.value
		}
	case padEdge, padReplicate:
		for i := 0; i < before; i++ {
			dst[i] = src[0]
		}
		for i := before + n; i < len(dst); i++ {
			dst[i] = src[n-1]
		}
	case padReflect:
		for i := 0; i < before; i++ {
			dst[i] = src[reflectIndex(i-before, n)]
		}
		for i := before + n; i < len(dst); i++ {
			dst[i] = src[reflectIndex(i-before, n)]
		}
	case padWrap:
		for i := 0; i < before; i++ {
			dst[i] = src[wrapIndex(i-before, n)]
		}
		for i := before + n; i < len(dst); i++ {
			dst[i] = src[wrapIndex(i-before, n)]
		}
	}
	return nil
}

// reflectIndex maps an out-of-range position onto the line by mirroring at
// the first and last positions, without repeating them.
func reflectIndex(p, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	p %= period
	if p < 0 {
		p += period
	}
	if p >= n {
		p = period - p
	}
	return p
}

// wrapIndex maps an out-of-range position onto the line periodically.
func wrapIndex(p, n int) int {
	p %= n
	if p < 0 {
		p += n
	}
	return p
}

// Pad extends a volume by the given per-axis widths and appends one pad
// entry to its applied-operation log. All-zero widths still produce a
// (cloned) result with a log entry, keeping one entry per forward call.
func Pad(v *volume.Volume, widths []volume.PadWidth, mode PadMode) (*volume.Volume, error) {
	if len(widths) != v.SpatialRank() {
		return nil, fmt.Errorf("got %d pad widths for %d spatial axes", len(widths), v.SpatialRank())
	}
	for i, w := range widths {
		if w.Before < 0 || w.After < 0 {
			return nil, fmt.Errorf("pad widths must not be negative, got %+v for axis %d", w, i)
		}
	}

	record := volume.Operation{
		Kind:      volume.OpPad,
		Pad:       widths,
		OrigShape: v.Shape,
	}

	out := v
	padded := false
	for axis, w := range widths {
		if w.Before == 0 && w.After == 0 {
			continue
		}
		next, err := padAxis(out, axis, w.Before, w.After, mode)
		if err != nil {
			return nil, err
		}
		out = next
		padded = true
	}
	if !padded {
		out = v.Clone()
		out.PushOperation(record)
		return out, nil
	}
	carryMeta(out, v)
	out.PushOperation(record)
	return out, nil
}

// padAxis pads a single spatial axis, filling one line at a time.
func padAxis(v *volume.Volume, axis, before, after int, mode PadMode) (*volume.Volume, error) {
	outShape := make([]int, len(v.Shape))
	copy(outShape, v.Shape)
	outShape[axis+1] += before + after
	out, err := volume.NewZeros(outShape)
	if err != nil {
		return nil, err
	}
	// A zero extent on any other axis leaves no line to fill.
	if out.NumElements() == 0 {
		return out, nil
	}

	n := v.Shape[axis+1]
	srcStrides := v.Strides()
	dstStrides := out.Strides()
	lineSrc := srcStrides[axis+1]
	lineDst := dstStrides[axis+1]

	src := make([]float64, n)
	dst := make([]float64, n+before+after)

	// Iterate every coordinate combination of the remaining axes, channel
	// included, and pad the line along the target axis.
	otherAxes := make([]int, 0, len(v.Shape)-1)
	for i := range v.Shape {
		if i != axis+1 {
			otherAxes = append(otherAxes, i)
		}
	}
	coord := make([]int, len(otherAxes))
	for {
		srcBase := 0
		dstBase := 0
		for i, ax := range otherAxes {
			srcBase += coord[i] * srcStrides[ax]
			dstBase += coord[i] * dstStrides[ax]
		}
		for k := 0; k < n; k++ {
			src[k] = v.Data[srcBase+k*lineSrc]
		}
		if err := mode.fillLine(dst, src, before, after); err != nil {
			return nil, err
		}
		for k := range dst {
			out.Data[dstBase+k*lineDst] = dst[k]
		}

		i := len(coord) - 1
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < v.Shape[otherAxes[i]] {
				break
			}
			coord[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return out, nil
}

// PadMethod positions the original data inside a padded target size.
type PadMethod int

const (
	// MethodSymmetric splits the added width evenly around the data
	MethodSymmetric PadMethod = iota

	// MethodEnd adds the whole width after the data
	MethodEnd
)

// String returns the method name as used in configuration files.
func (m PadMethod) String() string {
	if m == MethodEnd {
		return "end"
	}
	return "symmetric"
}

// ParsePadMethod resolves a configuration name to a pad method.
func ParsePadMethod(name string) (PadMethod, error) {
	switch name {
	case "", "symmetric":
		return MethodSymmetric, nil
	case "end":
		return MethodEnd, nil
	}
	return MethodSymmetric, fmt.Errorf("unknown pad method %q", name)
}

// splitWidth divides a total added width per the method. Symmetric puts the
// smaller half before the data when the width is odd.
func splitWidth(width int, method PadMethod) volume.PadWidth {
	if method == MethodEnd {
		return volume.PadWidth{After: width}
	}
	half := width / 2
	return volume.PadWidth{Before: half, After: width - half}
}

// SpatialPad pads a volume out to a target spatial size. Axes already at or
// above the target are left alone; a target component of -1 keeps that axis
// unchanged.
type SpatialPad struct {
	size   []int
	method PadMethod
	mode   PadMode
}

// NewSpatialPad creates the transform. The size takes one component per
// spatial axis, or a single component applied to all axes.
func NewSpatialPad(size []int, method PadMethod, mode PadMode) (*SpatialPad, error) {
	if len(size) == 0 {
		return nil, configErrorf("SpatialPad", "size", "at least one component is required")
	}
	return &SpatialPad{size: size, method: method, mode: mode}, nil
}

// Apply pads the volume and appends one pad entry to its log.
func (p *SpatialPad) Apply(v *volume.Volume) (*volume.Volume, error) {
	spatial := v.SpatialShape()
	size, ok := expandInts(p.size, len(spatial))
	if !ok {
		return nil, configErrorf("SpatialPad", "size", "got %d components for %d spatial axes", len(p.size), len(spatial))
	}
	target := geometry.EffectiveSize(size, spatial)
	widths := make([]volume.PadWidth, len(spatial))
	for i, dim := range spatial {
		width := target[i] - dim
		if width < 0 {
			width = 0
		}
		widths[i] = splitWidth(width, p.method)
	}
	return Pad(v, widths, p.mode)
}

// Inverse re-crops the padded border recorded by the most recent Apply.
func (p *SpatialPad) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpPad, "SpatialPad"); err != nil {
		return nil, err
	}
	return Invert(v)
}

// BorderPad pads a fixed border around a volume. The border takes one
// component (all axes, both sides), one per axis (both sides), or two per
// axis interleaved as before/after pairs.
type BorderPad struct {
	border []int
	mode   PadMode
}

// NewBorderPad creates the transform.
func NewBorderPad(border []int, mode PadMode) (*BorderPad, error) {
	if len(border) == 0 {
		return nil, configErrorf("BorderPad", "border", "at least one component is required")
	}
	for _, b := range border {
		if b < 0 {
			return nil, configErrorf("BorderPad", "border", "components must not be negative, got %v", border)
		}
	}
	return &BorderPad{border: border, mode: mode}, nil
}

// widths resolves the border spec against a spatial rank.
func (p *BorderPad) widths(rank int) ([]volume.PadWidth, error) {
	out := make([]volume.PadWidth, rank)
	switch len(p.border) {
	case 1:
		for i := range out {
			out[i] = volume.PadWidth{Before: p.border[0], After: p.border[0]}
		}
	case rank:
		for i := range out {
			out[i] = volume.PadWidth{Before: p.border[i], After: p.border[i]}
		}
	case 2 * rank:
		for i := range out {
			out[i] = volume.PadWidth{Before: p.border[2*i], After: p.border[2*i+1]}
		}
	default:
		return nil, configErrorf("BorderPad", "border", "got %d components for %d spatial axes, expected 1, %d or %d", len(p.border), rank, rank, 2*rank)
	}
	return out, nil
}

// Apply pads the border and appends one pad entry to the log.
func (p *BorderPad) Apply(v *volume.Volume) (*volume.Volume, error) {
	widths, err := p.widths(v.SpatialRank())
	if err != nil {
		return nil, err
	}
	return Pad(v, widths, p.mode)
}

// Inverse re-crops the padded border recorded by the most recent Apply.
func (p *BorderPad) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpPad, "BorderPad"); err != nil {
		return nil, err
	}
	return Invert(v)
}

// DivisiblePad pads each spatial axis up to the nearest multiple of a
// divisor, so downstream models with fixed down-sampling factors accept the
// volume. A divisor of zero or less leaves that axis unchanged.
type DivisiblePad struct {
	k      []int
	method PadMethod
	mode   PadMode
}

// NewDivisiblePad creates the transform. The divisor takes one component
// per spatial axis, or a single component applied to all axes.
func NewDivisiblePad(k []int, method PadMethod, mode PadMode) (*DivisiblePad, error) {
	if len(k) == 0 {
		return nil, configErrorf("DivisiblePad", "k", "at least one component is required")
	}
	return &DivisiblePad{k: k, method: method, mode: mode}, nil
}

// Apply pads the volume and appends one pad entry to its log.
func (p *DivisiblePad) Apply(v *volume.Volume) (*volume.Volume, error) {
	spatial := v.SpatialShape()
	k, ok := expandInts(p.k, len(spatial))
	if !ok {
		return nil, configErrorf("DivisiblePad", "k", "got %d components for %d spatial axes", len(p.k), len(spatial))
	}
	target := geometry.DivisibleSize(spatial, k)
	widths := make([]volume.PadWidth, len(spatial))
	for i, dim := range spatial {
		widths[i] = splitWidth(target[i]-dim, p.method)
	}
	return Pad(v, widths, p.mode)
}

// Inverse re-crops the padded border recorded by the most recent Apply.
func (p *DivisiblePad) Inverse(v *volume.Volume) (*volume.Volume, error) {
	if err := expectKind(v, volume.OpPad, "DivisiblePad"); err != nil {
		return nil, err
	}
	return Invert(v)
}
