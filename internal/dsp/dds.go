package dsp

import (
	"math"
	"sync/atomic"

	"github.com/playsdr/nrsync/internal/fixed"
)

const (
	ddsLutBits = 10
	ddsLutLen  = 1 << ddsLutBits
)

// DDS is a direct digital synthesizer used as the carrier frequency
// corrector: a 32-bit phase accumulator indexes a quantized sin/cos table
// and every sample is multiplied by the resulting unit phasor. The phase
// increment may be retuned at any time from another goroutine; correction is
// causal, samples already emitted are never revisited.
type DDS struct {
	sampleRate float64
	phase      uint32
	inc        atomic.Int64 // signed increment, widened for atomic storage

	cosLut [ddsLutLen]int16
	sinLut [ddsLutLen]int16
}

// NewDDS creates a synthesizer for the given sample rate.
func NewDDS(sampleRate float64) *DDS {
	d := &DDS{sampleRate: sampleRate}
	for i := 0; i < ddsLutLen; i++ {
		phi := 2 * math.Pi * float64(i) / ddsLutLen
		d.cosLut[i] = int16(math.Round(math.Cos(phi) * 32767))
		d.sinLut[i] = int16(math.Round(math.Sin(phi) * 32767))
	}
	return d
}

// SetFrequency tunes the rotation frequency in Hz. A negative frequency
// derotates a positive carrier offset.
func (d *DDS) SetFrequency(hz float64) {
	inc := int64(math.Round(hz / d.sampleRate * math.Exp2(32)))
	d.inc.Store(inc)
}

// Frequency returns the currently programmed rotation frequency in Hz.
func (d *DDS) Frequency() float64 {
	return float64(d.inc.Load()) / math.Exp2(32) * d.sampleRate
}

// Rotate multiplies one sample by e^{j*phase} and advances the accumulator.
func (d *DDS) Rotate(s fixed.IQ) fixed.IQ {
	idx := d.phase >> (32 - ddsLutBits)
	c := int64(d.cosLut[idx])
	n := int64(d.sinLut[idx])
	d.phase += uint32(d.inc.Load())

	re := (int64(s.I)*c - int64(s.Q)*n) >> twiddleBits
	im := (int64(s.I)*n + int64(s.Q)*c) >> twiddleBits
	return fixed.IQ{I: fixed.Sat16(re), Q: fixed.Sat16(im)}
}

// ResetPhase zeroes the phase accumulator.
func (d *DDS) ResetPhase() {
	d.phase = 0
}
