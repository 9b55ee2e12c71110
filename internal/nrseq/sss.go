package nrseq

// SSSLen is the number of subcarriers carried by the secondary
// synchronization signal.
const SSSLen = 127

// NumNid1 is the number of N_id_1 hypotheses resolved by the SSS.
const NumNid1 = 336

// SSS returns the BPSK secondary synchronization sequence for the cell
// identity components (N_id_1, N_id_2). Values are +1/-1.
func SSS(nid1, nid2 int) [SSSLen]int8 {
	var x0, x1 [SSSLen]uint8
	x0[0] = 1
	x1[0] = 1
	for i := 0; i+7 < SSSLen; i++ {
		x0[i+7] = (x0[i+4] + x0[i]) & 1
		x1[i+7] = (x1[i+1] + x1[i]) & 1
	}

	m0 := 15*(nid1/112) + 5*nid2
	m1 := nid1 % 112

	var d [SSSLen]int8
	for n := 0; n < SSSLen; n++ {
		s0 := 1 - 2*int8(x0[(n+m0)%SSSLen])
		s1 := 1 - 2*int8(x1[(n+m1)%SSSLen])
		d[n] = s0 * s1
	}
	return d
}
