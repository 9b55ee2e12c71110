package nrseq

// goldNc is the Gold sequence warm-up discard per TS 38.211 5.2.1.
const goldNc = 1600

// Gold returns n bits of the length-31 Gold scrambling sequence for the
// given initialization value.
func Gold(cinit uint32, n int) []uint8 {
	total := goldNc + n + 31
	x1 := make([]uint8, total)
	x2 := make([]uint8, total)

	x1[0] = 1
	for i := 0; i < 31; i++ {
		x2[i] = uint8((cinit >> i) & 1)
	}
	for i := 0; i+31 < total; i++ {
		x1[i+31] = (x1[i+3] + x1[i]) & 1
		x2[i+31] = (x2[i+3] + x2[i+2] + x2[i+1] + x2[i]) & 1
	}

	c := make([]uint8, n)
	for i := 0; i < n; i++ {
		c[i] = (x1[i+goldNc] + x2[i+goldNc]) & 1
	}
	return c
}
