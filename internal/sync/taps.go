// Package sync implements the acquisition front end: the PSS correlator
// bank, peak detection, and carrier frequency offset estimation. It runs at
// the decimated 1.92 MHz reference rate.
package sync

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/playsdr/nrsync/internal/fixed"
	"github.com/playsdr/nrsync/internal/nrseq"
)

// PSSTapLen is the correlation length: one 128-point symbol at the
// reference rate carries the 127 PSS subcarriers.
const PSSTapLen = 128

// tapAmplitude leaves one bit of headroom below the int16 rail.
const tapAmplitude = 16383

// GeneratePSSTaps synthesizes the time-domain correlation reference for one
// N_id_2: the BPSK PSS placed on the centered subcarriers of a 128-point
// grid, inverse transformed and quantized to int16.
func GeneratePSSTaps(nid2 int) []fixed.IQ {
	d := nrseq.PSS(nid2)

	grid := make([]complex128, PSSTapLen)
	for i := 0; i < nrseq.PSSLen; i++ {
		// The SSB band is DC centered, which puts the 127 PSS subcarriers
		// at offsets -64..+62.
		rel := i - 64
		bin := (rel + PSSTapLen) % PSSTapLen
		grid[bin] = complex(float64(d[i]), 0)
	}

	fft := fourier.NewCmplxFFT(PSSTapLen)
	td := fft.Sequence(nil, grid)

	maxAbs := 0.0
	for _, v := range td {
		if a := math.Abs(real(v)); a > maxAbs {
			maxAbs = a
		}
		if a := math.Abs(imag(v)); a > maxAbs {
			maxAbs = a
		}
	}

	taps := make([]fixed.IQ, PSSTapLen)
	scale := tapAmplitude / maxAbs
	for i, v := range td {
		taps[i] = fixed.IQ{
			I: int16(math.Round(real(v) * scale)),
			Q: int16(math.Round(imag(v) * scale)),
		}
	}
	return taps
}
