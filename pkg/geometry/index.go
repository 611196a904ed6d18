package geometry

// Strides returns the row-major stride per axis for the given shape, with
// the last axis contiguous.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// RavelIndex converts an N-dimensional coordinate to a flat row-major index.
func RavelIndex(coord, shape []int) int {
	idx := 0
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		idx += coord[i] * stride
		stride *= shape[i]
	}
	return idx
}

// UnravelIndex converts a flat row-major index to an N-dimensional
// coordinate within the given shape.
func UnravelIndex(idx int, shape []int) []int {
	coord := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		coord[i] = idx % shape[i]
		idx /= shape[i]
	}
	return coord
}
