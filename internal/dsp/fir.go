package dsp

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"

	"github.com/playsdr/nrsync/internal/fixed"
)

// FIRDecimator is a windowed-sinc lowpass decimator, the alternative to the
// CIC front end for inputs whose rate is not a power-of-2 multiple of the
// reference rate. Taps are Q15.
type FIRDecimator struct {
	ratio int
	taps  []int32
	hist  []fixed.IQ
	pos   int
	phase int
}

// NewFIRDecimator designs a Hamming-windowed sinc lowpass with cutoff at
// half the output Nyquist rate and the given tap count.
func NewFIRDecimator(ratio, numTaps int) (*FIRDecimator, error) {
	if ratio < 1 {
		return nil, fmt.Errorf("fir: invalid decimation ratio %d", ratio)
	}
	if numTaps < 2 {
		return nil, fmt.Errorf("fir: need at least 2 taps, got %d", numTaps)
	}

	w := window.Hamming(numTaps)
	ft := make([]float64, numTaps)
	cutoff := 0.5 / float64(ratio)
	center := float64(numTaps-1) / 2
	sum := 0.0
	for i := range ft {
		ft[i] = 2 * cutoff * sinc(2*cutoff*(float64(i)-center)) * w[i]
		sum += ft[i]
	}

	taps := make([]int32, numTaps)
	for i := range ft {
		taps[i] = int32(math.Round(ft[i] / sum * float64(int32(1)<<twiddleBits)))
	}

	return &FIRDecimator{
		ratio: ratio,
		taps:  taps,
		hist:  make([]fixed.IQ, numTaps),
	}, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// Ratio returns the decimation ratio.
func (f *FIRDecimator) Ratio() int { return f.ratio }

// Push feeds one input sample; every ratio-th call computes and returns an
// output sample.
func (f *FIRDecimator) Push(s fixed.IQ) (out fixed.IQ, ok bool) {
	f.hist[f.pos] = s
	f.pos = (f.pos + 1) % len(f.hist)

	f.phase++
	if f.phase < f.ratio {
		return fixed.IQ{}, false
	}
	f.phase = 0

	var accI, accQ int64
	idx := f.pos
	for _, t := range f.taps {
		h := f.hist[idx]
		accI += int64(t) * int64(h.I)
		accQ += int64(t) * int64(h.Q)
		idx++
		if idx == len(f.hist) {
			idx = 0
		}
	}
	return fixed.IQ{
		I: fixed.Sat16(accI >> twiddleBits),
		Q: fixed.Sat16(accQ >> twiddleBits),
	}, true
}
