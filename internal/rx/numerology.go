// Package rx assembles the synchronized receive path: symbol timing, OFDM
// demodulation, SSS detection, channel estimation, LLR demapping and the
// resource-grid framing, plus the pipeline that wires the stages together.
package rx

import "fmt"

// referenceRate is the decimated rate used by PSS correlation, Hz.
const referenceRate = 1920000.0

// Numerology fixes all sizes derived from the FFT order.
type Numerology struct {
	NFFT       int
	FFTLen     int
	CP1        int // long cyclic prefix, first symbol of each half subframe
	CP2        int // short cyclic prefix, all other symbols
	SampleRate float64
	NPRB       int // resource blocks carried by the grid output
	Decimation int // input rate over the 1.92 MHz reference rate
}

// symbolsPerHalfMS is the symbol cycle length: one CP1 symbol followed by
// six CP2 symbols covers exactly half a millisecond.
const symbolsPerHalfMS = 7

// NewNumerology derives the receiver geometry for an FFT order.
func NewNumerology(nfft int) (Numerology, error) {
	if nfft < 8 || nfft > 11 {
		return Numerology{}, fmt.Errorf("rx: unsupported FFT order %d", nfft)
	}
	fftLen := 1 << nfft
	n := Numerology{
		NFFT:       nfft,
		FFTLen:     fftLen,
		CP1:        20 * fftLen / 256,
		CP2:        18 * fftLen / 256,
		SampleRate: 15000 * float64(fftLen),
		NPRB:       20,
	}
	if nfft >= 9 {
		n.NPRB = 25
	}
	n.Decimation = int(n.SampleRate / referenceRate)
	return n, nil
}

// SymbolLen returns the total length of the symbol at a cycle position.
func (n Numerology) SymbolLen(cyclePos int) int {
	if cyclePos == 0 {
		return n.FFTLen + n.CP1
	}
	return n.FFTLen + n.CP2
}

// CPLen returns the cyclic prefix length at a cycle position.
func (n Numerology) CPLen(cyclePos int) int {
	if cyclePos == 0 {
		return n.CP1
	}
	return n.CP2
}

// SSBBand returns the DC-centered subcarrier index of the first of the 240
// SSB subcarriers.
func (n Numerology) SSBBand() int {
	return n.FFTLen/2 - 120
}

// GridBand returns the first subcarrier index and width of the resource
// grid output band (NPRB resource blocks centered on DC).
func (n Numerology) GridBand() (start, width int) {
	width = n.NPRB * 12
	return n.FFTLen/2 - width/2, width
}
