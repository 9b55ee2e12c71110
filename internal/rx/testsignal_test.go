package rx

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/playsdr/nrsync/internal/fixed"
	"github.com/playsdr/nrsync/internal/nrseq"
)

// ssbWaveform is a synthesized full-rate capture carrying periodic
// synchronization blocks for one cell, with the transmitted PBCH bits kept
// in demapping order for verification.
type ssbWaveform struct {
	samples []fixed.IQ
	bits    [][]uint8 // per SSB, LLRsPerSSB hard bits
	starts  []int     // full-rate index of each PSS cyclic prefix start
}

const (
	sigAmplitude   = 11000
	noiseAmplitude = 256
)

// halfSubframeLen is the sample length of one 7-symbol cycle.
func halfSubframeLen(num Numerology) int {
	return num.FFTLen + num.CP1 + 6*(num.FFTLen+num.CP2)
}

// buildSSBWaveform places nssb blocks starting at firstStart (must be
// even so the decimated correlation peak maps back exactly), spaced by
// period full-rate samples (a multiple of the half-subframe length so
// repeated detections agree with the free-running symbol grid).
func buildSSBWaveform(num Numerology, cell Cell, ibar, nssb, firstStart, period, total int, cfoHz float64, seed int64) *ssbWaveform {
	rng := rand.New(rand.NewSource(seed))
	fft := fourier.NewCmplxFFT(num.FFTLen)
	band := num.SSBBand()
	v := nrseq.DMRSShift(cell.Nid())

	buf := make([]complex128, total)
	w := &ssbWaveform{}

	pss := nrseq.PSS(cell.Nid2)
	sss := nrseq.SSS(cell.Nid1, cell.Nid2)
	dmrs := nrseq.PBCHDMRS(cell.Nid(), ibar)

	for s := 0; s < nssb; s++ {
		start := firstStart + s*period
		w.starts = append(w.starts, start)

		grids := make([][]complex128, 4)
		for i := range grids {
			grids[i] = make([]complex128, num.FFTLen)
		}
		for i, d := range pss {
			grids[0][band+56+i] = complex(float64(d), 0)
		}
		for k, d := range sss {
			grids[2][band+sssOffset+k] = complex(float64(d), 0)
		}
		m := 0
		for si := 1; si <= 3; si++ {
			for _, sc := range dmrsPositions(si, v) {
				grids[si][band+sc] = complex(float64(dmrs[m][0]), float64(dmrs[m][1]))
				m++
			}
		}
		var bits []uint8
		for si := 1; si <= 3; si++ {
			for _, sc := range dataPositions(si, v) {
				b0 := uint8(rng.Intn(2))
				b1 := uint8(rng.Intn(2))
				grids[si][band+sc] = complex(float64(1-2*int(b0)), float64(1-2*int(b1)))
				bits = append(bits, b0, b1)
			}
		}
		w.bits = append(w.bits, bits)

		pos := start
		g := make([]complex128, num.FFTLen)
		for _, grid := range grids {
			for k := range g {
				g[(k+num.FFTLen/2)%num.FFTLen] = grid[k]
			}
			td := fft.Sequence(nil, g)
			for i := 0; i < num.CP2; i++ {
				buf[pos+i] = td[num.FFTLen-num.CP2+i]
			}
			copy(buf[pos+num.CP2:pos+num.CP2+num.FFTLen], td)
			pos += num.CP2 + num.FFTLen
		}
	}

	var maxAbs float64
	for _, c := range buf {
		if a := math.Abs(real(c)); a > maxAbs {
			maxAbs = a
		}
		if a := math.Abs(imag(c)); a > maxAbs {
			maxAbs = a
		}
	}
	scale := sigAmplitude / maxAbs

	w.samples = make([]fixed.IQ, total)
	for n, c := range buf {
		re := real(c) * scale
		im := imag(c) * scale
		if cfoHz != 0 {
			phi := 2 * math.Pi * cfoHz * float64(n) / num.SampleRate
			cr, sr := math.Cos(phi), math.Sin(phi)
			re, im = re*cr-im*sr, re*sr+im*cr
		}
		w.samples[n] = fixed.IQ{
			I: fixed.Sat16(int64(math.Round(re)) + int64(rng.Intn(2*noiseAmplitude)-noiseAmplitude)),
			Q: fixed.Sat16(int64(math.Round(im)) + int64(rng.Intn(2*noiseAmplitude)-noiseAmplitude)),
		}
	}
	return w
}
