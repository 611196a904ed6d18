// Package rawvol reads and writes volumes in a small raw binary format and
// generates synthetic volumes for demonstration runs. A file holds a magic
// tag, the shape and the data values; the applied-operation log is not
// stored.
package rawvol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pzaffino/MONAI/pkg/geometry"
	"github.com/pzaffino/MONAI/pkg/volume"
)

// magic identifies a raw volume file
var magic = [4]byte{'R', 'V', 'O', 'L'}

// maxRank bounds the shapes a file may declare
const maxRank = 8

// maxElements bounds the allocation a file may request
const maxElements = 1 << 30

// Write serializes a volume: the magic tag, the number of axes, the axis
// sizes and the values, all little-endian with float64 data.
func Write(w io.Writer, v *volume.Volume) error {
	if v == nil {
		return fmt.Errorf("cannot write a nil volume")
	}
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return fmt.Errorf("failed to write magic: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(v.Shape))); err != nil {
		return fmt.Errorf("failed to write rank: %v", err)
	}
	dims := make([]uint32, len(v.Shape))
	for i, d := range v.Shape {
		dims[i] = uint32(d)
	}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return fmt.Errorf("failed to write shape: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, v.Data); err != nil {
		return fmt.Errorf("failed to write data: %v", err)
	}
	return nil
}

// Read deserializes a volume written by Write.
func Read(r io.Reader) (*volume.Volume, error) {
	var tag [4]byte
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return nil, fmt.Errorf("failed to read magic: %v", err)
	}
	if tag != magic {
		return nil, fmt.Errorf("not a raw volume file (magic %q)", tag)
	}

	var rank uint32
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, fmt.Errorf("failed to read rank: %v", err)
	}
	if rank < 2 || rank > maxRank {
		return nil, fmt.Errorf("rank %d out of range [2, %d]", rank, maxRank)
	}

	dims := make([]uint32, rank)
	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return nil, fmt.Errorf("failed to read shape: %v", err)
	}
	shape := make([]int, rank)
	n := 1
	for i, d := range dims {
		shape[i] = int(d)
		n *= int(d)
		if n > maxElements {
			return nil, fmt.Errorf("shape %v exceeds %d elements", shape, maxElements)
		}
	}

	data := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read data: %v", err)
	}
	return volume.New(data, shape)
}

// WriteFile writes a volume to a raw volume file.
func WriteFile(path string, v *volume.Volume) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %v", err)
	}
	defer file.Close()

	return Write(file, v)
}

// ReadFile reads a volume from a raw volume file.
func ReadFile(path string) (*volume.Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume file: %v", err)
	}
	defer file.Close()

	return Read(file)
}

// Gradient builds a single-channel volume whose values ramp from 0 at the
// origin corner to 1 at the opposite corner.
func Gradient(spatial []int) (*volume.Volume, error) {
	v, err := volume.NewZeros(append([]int{1}, spatial...))
	if err != nil {
		return nil, err
	}
	for i := range v.Data {
		coord := geometry.UnravelIndex(i, spatial)
		sum := 0.0
		for axis, c := range coord {
			if spatial[axis] > 1 {
				sum += float64(c) / float64(spatial[axis]-1)
			}
		}
		v.Data[i] = sum / float64(len(spatial))
	}
	return v, nil
}

// Sphere builds a single-channel binary mask that is 1 inside a ball and 0
// outside. A nil center places the ball at the middle of the volume.
func Sphere(spatial []int, center []int, radius float64) (*volume.Volume, error) {
	if center == nil {
		center = make([]int, len(spatial))
		for i, d := range spatial {
			center[i] = d / 2
		}
	}
	if len(center) != len(spatial) {
		return nil, fmt.Errorf("center %v does not match %d spatial axes", center, len(spatial))
	}

	v, err := volume.NewZeros(append([]int{1}, spatial...))
	if err != nil {
		return nil, err
	}
	for i := range v.Data {
		coord := geometry.UnravelIndex(i, spatial)
		dist := 0.0
		for axis, c := range coord {
			d := float64(c - center[axis])
			dist += d * d
		}
		if math.Sqrt(dist) <= radius {
			v.Data[i] = 1
		}
	}
	return v, nil
}
