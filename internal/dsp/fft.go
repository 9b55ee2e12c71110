// Package dsp contains the fixed-point signal processing primitives of the
// receiver: rate conversion, the integer FFT, and the DDS used for carrier
// frequency correction.
package dsp

import (
	"math"

	"github.com/playsdr/nrsync/internal/fixed"
)

const twiddleBits = 15

// IntFFT is a radix-2 decimation-in-frequency transform over 32-bit integer
// mantissas with dynamic block scaling: before any stage that could
// overflow the guard range, the whole block is shifted right by one bit and
// the block exponent is incremented. Stage arithmetic truncates.
type IntFFT struct {
	n    int
	twRe []int32 // Q15 twiddle factors, e^{-j2*pi*k/n}
	twIm []int32
}

// NewIntFFT creates a transform of size n. Panics if n is not a power of 2.
func NewIntFFT(n int) *IntFFT {
	if n < 2 || n&(n-1) != 0 {
		panic("dsp: FFT length must be a power of 2")
	}
	f := &IntFFT{
		n:    n,
		twRe: make([]int32, n/2),
		twIm: make([]int32, n/2),
	}
	for k := 0; k < n/2; k++ {
		phi := 2 * math.Pi * float64(k) / float64(n)
		f.twRe[k] = int32(math.Round(math.Cos(phi) * float64(int32(1)<<twiddleBits)))
		f.twIm[k] = int32(math.Round(-math.Sin(phi) * float64(int32(1)<<twiddleBits)))
	}
	return f
}

// Len returns the transform size.
func (f *IntFFT) Len() int { return f.n }

// guard is the per-stage headroom limit. A butterfly at most doubles a
// mantissa before the twiddle multiply, so staying below 2^29 keeps every
// intermediate inside int32.
const guard = int32(1) << 29

// Transform runs the FFT in place and returns the block exponent: the number
// of right shifts applied across all stages. The true spectrum value is
// x[k] * 2^exp. Output is in natural (not bit-reversed) order.
func (f *IntFFT) Transform(x []fixed.C32) int {
	if len(x) != f.n {
		panic("dsp: FFT input length mismatch")
	}

	exp := 0
	for span := f.n / 2; span >= 1; span >>= 1 {
		if blockNeedsScaling(x) {
			scaleBlock(x)
			exp++
		}
		stride := (f.n / 2) / span
		for start := 0; start < f.n; start += 2 * span {
			for j := 0; j < span; j++ {
				a := x[start+j]
				b := x[start+j+span]
				x[start+j] = fixed.C32{Re: a.Re + b.Re, Im: a.Im + b.Im}
				dr := int64(a.Re - b.Re)
				di := int64(a.Im - b.Im)
				wr := int64(f.twRe[j*stride])
				wi := int64(f.twIm[j*stride])
				x[start+j+span] = fixed.C32{
					Re: int32((dr*wr - di*wi) >> twiddleBits),
					Im: int32((dr*wi + di*wr) >> twiddleBits),
				}
			}
		}
	}

	bitReverse(x)
	return exp
}

func blockNeedsScaling(x []fixed.C32) bool {
	for _, v := range x {
		if v.Re >= guard || v.Re <= -guard || v.Im >= guard || v.Im <= -guard {
			return true
		}
	}
	return false
}

func scaleBlock(x []fixed.C32) {
	for i := range x {
		x[i].Re >>= 1
		x[i].Im >>= 1
	}
}

func bitReverse(x []fixed.C32) {
	n := len(x)
	bits := 0
	for tmp := n; tmp > 1; tmp >>= 1 {
		bits++
	}
	for i := 0; i < n; i++ {
		j := reverseBits(i, bits)
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
}

func reverseBits(x, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}

// Shift reorders a natural-order spectrum so that DC sits at the center
// (index n/2), matching the subcarrier ordering of the resource grid.
func Shift(x []fixed.C32) {
	n := len(x)
	half := n / 2
	for i := 0; i < half; i++ {
		x[i], x[i+half] = x[i+half], x[i]
	}
}
