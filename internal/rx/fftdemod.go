package rx

import (
	"math"

	"github.com/playsdr/nrsync/internal/dsp"
	"github.com/playsdr/nrsync/internal/fixed"
)

// Symbol is one demodulated OFDM symbol: DC-centered subcarriers with a
// shared block exponent. The true subcarrier value is SC[k] * 2^Exp.
type Symbol struct {
	SC          []fixed.IQ
	Exp         int
	Timestamp   uint64
	CyclePos    int
	SymbolInSSB int
	SSBIndex    int
}

// FFTDemod transforms CP-advance-aligned sample windows into subcarrier
// symbols. The transform truncates at every narrowing step and publishes
// the accumulated block exponent with each symbol. The constant phase ramp
// caused by sampling the window ahead of the symbol body is undone by a
// per-subcarrier rotation so the effective timing reference is the nominal
// CP end.
type FFTDemod struct {
	num   Numerology
	fft   *dsp.IntFFT
	rotRe []int32 // Q15
	rotIm []int32
	work  []fixed.C32
}

// NewFFTDemod builds the demodulator for a CP advance setting.
func NewFFTDemod(num Numerology, advance int) *FFTDemod {
	d := &FFTDemod{
		num:   num,
		fft:   dsp.NewIntFFT(num.FFTLen),
		rotRe: make([]int32, num.FFTLen),
		rotIm: make([]int32, num.FFTLen),
		work:  make([]fixed.C32, num.FFTLen),
	}
	delta := float64(num.CP2 - advance)
	for k := 0; k < num.FFTLen; k++ {
		// k indexes the DC-centered spectrum
		phi := 2 * math.Pi * delta * float64(k-num.FFTLen/2) / float64(num.FFTLen)
		d.rotRe[k] = int32(math.Round(math.Cos(phi) * 32768))
		d.rotIm[k] = int32(math.Round(math.Sin(phi) * 32768))
	}
	return d
}

// Process demodulates one window.
func (d *FFTDemod) Process(w SymbolWindow) Symbol {
	for i, s := range w.Samples {
		d.work[i] = s.Wide()
	}
	exp := d.fft.Transform(d.work)
	dsp.Shift(d.work)

	// Narrow to 16-bit mantissas with a symbol-wide truncating shift.
	var maxAbs int32
	for _, v := range d.work {
		if a := v.Re; a < 0 {
			a = -a
			if a > maxAbs {
				maxAbs = a
			}
		} else if a > maxAbs {
			maxAbs = a
		}
		if a := v.Im; a < 0 {
			a = -a
			if a > maxAbs {
				maxAbs = a
			}
		} else if a > maxAbs {
			maxAbs = a
		}
	}
	shift := 0
	for maxAbs>>uint(shift) > 32767 {
		shift++
	}

	sym := Symbol{
		SC:          make([]fixed.IQ, d.num.FFTLen),
		Exp:         exp + shift,
		Timestamp:   w.Timestamp,
		CyclePos:    w.CyclePos,
		SymbolInSSB: w.SymbolInSSB,
		SSBIndex:    w.SSBIndex,
	}
	for k, v := range d.work {
		re := int64(v.Re >> uint(shift))
		im := int64(v.Im >> uint(shift))
		wr := int64(d.rotRe[k])
		wi := int64(d.rotIm[k])
		sym.SC[k] = fixed.IQ{
			I: fixed.Sat16((re*wr - im*wi) >> 15),
			Q: fixed.Sat16((re*wi + im*wr) >> 15),
		}
	}
	return sym
}
