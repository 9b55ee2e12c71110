package sync

import (
	"math"

	"github.com/playsdr/nrsync/internal/fixed"
)

// EstimateCFO derives the carrier frequency offset from the two half-window
// correlation sums at a PSS peak. A frequency offset rotates the second
// half of the window against the first by 2*pi*f*T_half; the angle of
// h1 * conj(h0) recovers it. sampleRate is the decimated reference rate.
func EstimateCFO(halves [2]fixed.C64, sampleRate float64) float64 {
	cross := halves[1].MulConj(halves[0])
	if cross.Re == 0 && cross.Im == 0 {
		return 0
	}
	angle := math.Atan2(float64(cross.Im), float64(cross.Re))
	halfLen := float64(PSSTapLen / 2)
	return angle * sampleRate / (2 * math.Pi * halfLen)
}

// MaxCFO returns the unambiguous estimation range in Hz: half a cycle
// across the half-window spacing.
func MaxCFO(sampleRate float64) float64 {
	return sampleRate / float64(PSSTapLen)
}
