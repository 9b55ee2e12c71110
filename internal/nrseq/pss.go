// Package nrseq generates the 3GPP NR synchronization and reference
// sequences: PSS, SSS, the length-31 Gold scrambler, and the PBCH DMRS.
// All sequences are returned as small integers so fixed-point stages can
// consume them without scaling.
package nrseq

// PSSLen is the number of subcarriers carried by the primary
// synchronization signal.
const PSSLen = 127

// PSS returns the BPSK primary synchronization sequence for N_id_2.
// Values are +1/-1.
func PSS(nid2 int) [PSSLen]int8 {
	// m-sequence x(i+7) = x(i+4) + x(i) mod 2, seeded 0110111 (x0..x6).
	var x [PSSLen]uint8
	seed := [7]uint8{0, 1, 1, 0, 1, 1, 1}
	copy(x[:7], seed[:])
	for i := 0; i+7 < PSSLen; i++ {
		x[i+7] = (x[i+4] + x[i]) & 1
	}

	var d [PSSLen]int8
	for n := 0; n < PSSLen; n++ {
		m := (n + 43*nid2) % PSSLen
		d[n] = 1 - 2*int8(x[m])
	}
	return d
}
