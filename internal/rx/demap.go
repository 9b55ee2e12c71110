package rx

// LLRsPerSSB is the number of soft bits produced from the 432 equalized
// PBCH data REs of one SSB (QPSK, 2 bits per RE).
const LLRsPerSSB = 864

// DemapQPSK converts a block of equalized REs into int8 soft bits. The
// whole block shares one scaling: the mantissas are shifted right just far
// enough for the largest component to fit int8, so relative reliabilities
// survive and the absolute level does not. A positive LLR means bit 0.
//
// Per-RE exponents are ignored on purpose: within one SSB the equalizer
// emits a common exponent per symbol and the inter-symbol level difference
// is dwarfed by the channel-power weighting already baked into y*conj(H).
func DemapQPSK(res []EqualizedRE) []int8 {
	var maxAbs int32
	for _, re := range res {
		if a := abs32(int32(re.IQ.I)); a > maxAbs {
			maxAbs = a
		}
		if a := abs32(int32(re.IQ.Q)); a > maxAbs {
			maxAbs = a
		}
	}
	shift := uint(0)
	for maxAbs>>shift > 127 {
		shift++
	}

	llr := make([]int8, 0, 2*len(res))
	for _, re := range res {
		llr = append(llr, int8(int32(re.IQ.I)>>shift), int8(int32(re.IQ.Q)>>shift))
	}
	return llr
}

// DemapQPSKHard slices each equalized component straight to a saturated
// LLR, for consumers that only want the sign decision. The sign
// convention matches DemapQPSK: positive means bit 0.
func DemapQPSKHard(res []EqualizedRE) []int8 {
	llr := make([]int8, 0, 2*len(res))
	for _, re := range res {
		llr = append(llr, hardLLR(re.IQ.I), hardLLR(re.IQ.Q))
	}
	return llr
}

func hardLLR(v int16) int8 {
	if v < 0 {
		return -127
	}
	return 127
}

// HardBits slices a soft-bit block into hard decisions, 0 for positive.
func HardBits(llr []int8) []uint8 {
	bits := make([]uint8, len(llr))
	for i, v := range llr {
		if v < 0 {
			bits[i] = 1
		}
	}
	return bits
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
