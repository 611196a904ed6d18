package geometry

// DivisibleSize rounds each size component up to the nearest multiple of the
// matching divisor. A divisor of zero or less leaves that axis unchanged.
// Sizes only grow, so a region expanded to a divisible size always still
// contains the original region.
func DivisibleSize(size, k []int) []int {
	out := make([]int, len(size))
	for i, s := range size {
		kd := 0
		if i < len(k) {
			kd = k[i]
		}
		if kd <= 0 {
			out[i] = s
			continue
		}
		out[i] = ((s + kd - 1) / kd) * kd
	}
	return out
}
