package nrseq

// NumDMRS is the number of PBCH demodulation reference REs per SSB
// (60 in the first PBCH symbol, 24 beside the SSS, 60 in the last).
const NumDMRS = 144

// DMRSHypotheses is the number of ibar_SSB candidates searched during
// channel estimation.
const DMRSHypotheses = 8

// PBCHDMRS returns the QPSK PBCH DMRS sequence for a cell and SSB index
// hypothesis. Each entry is the (I, Q) pair in {-1, +1}; the 1/sqrt(2)
// amplitude is absorbed by the channel estimator's block scaling.
func PBCHDMRS(nid, ibar int) [NumDMRS][2]int8 {
	cinit := uint32(1<<11)*uint32(ibar+1)*uint32(nid/4+1) +
		uint32(1<<6)*uint32(ibar+1) + uint32(nid%4)
	c := Gold(cinit, 2*NumDMRS)

	var r [NumDMRS][2]int8
	for m := 0; m < NumDMRS; m++ {
		r[m][0] = 1 - 2*int8(c[2*m])
		r[m][1] = 1 - 2*int8(c[2*m+1])
	}
	return r
}

// DMRSShift returns the DMRS subcarrier phase v for a cell: DMRS REs sit on
// subcarriers v, v+4, v+8, ... within the SSB band.
func DMRSShift(nid int) int {
	return nid % 4
}

// PBCHScrambling returns n bits of the PBCH scrambling sequence for a cell
// and second/third-LSB SSB index v, as used to descramble PBCH LLRs
// downstream.
func PBCHScrambling(nid, v, n int) []uint8 {
	c := Gold(uint32(nid), (1+v)*n)
	return c[v*n:]
}
