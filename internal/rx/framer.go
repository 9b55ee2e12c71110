package rx

import "fmt"

// GridWord is one 32-bit word of the resource-grid output stream.
//
// Every OFDM symbol is framed as four header words carrying the 64-bit
// sample timestamp in the low 16 bits each, least significant quarter
// first, followed by NPRB*12 payload words packing one subcarrier as
// (Q << 16) | I. The final payload word carries the end-of-symbol mark.
type GridWord struct {
	Data uint32
	Last bool
}

// gridHeaderWords is the number of timestamp words preceding the payload.
const gridHeaderWords = 4

// Framer extracts the configured bandwidth part from demodulated symbols
// and serializes it for the grid consumer.
type Framer struct {
	num Numerology
}

// NewFramer creates a framer for the given numerology.
func NewFramer(num Numerology) *Framer {
	return &Framer{num: num}
}

// Frame serializes one symbol. It fails when the symbol does not span the
// full FFT band, since a short symbol would silently shift the extracted
// bandwidth part.
func (f *Framer) Frame(sym Symbol) ([]GridWord, error) {
	if len(sym.SC) != f.num.FFTLen {
		return nil, fmt.Errorf("framer: symbol has %d subcarriers, want %d", len(sym.SC), f.num.FFTLen)
	}
	start, width := f.num.GridBand()

	words := make([]GridWord, 0, gridHeaderWords+width)
	for q := 0; q < gridHeaderWords; q++ {
		words = append(words, GridWord{Data: uint32(sym.Timestamp>>(16*q)) & 0xffff})
	}
	for i := 0; i < width; i++ {
		sc := sym.SC[start+i]
		words = append(words, GridWord{
			Data: uint32(uint16(sc.Q))<<16 | uint32(uint16(sc.I)),
			Last: i == width-1,
		})
	}
	return words, nil
}

// CheckTransfer validates a framed symbol against the length contract:
// header plus NPRB*12 payload words, end mark on the final word only.
func (f *Framer) CheckTransfer(words []GridWord) error {
	_, width := f.num.GridBand()
	if len(words) != gridHeaderWords+width {
		return fmt.Errorf("framer: transfer has %d words, want %d", len(words), gridHeaderWords+width)
	}
	for i, w := range words {
		if w.Last != (i == len(words)-1) {
			return fmt.Errorf("framer: end mark at word %d", i)
		}
	}
	return nil
}

// TransferTimestamp recovers the 64-bit timestamp from a framed symbol's
// header words.
func TransferTimestamp(words []GridWord) uint64 {
	var ts uint64
	for q := 0; q < gridHeaderWords && q < len(words); q++ {
		ts |= uint64(words[q].Data&0xffff) << (16 * q)
	}
	return ts
}
