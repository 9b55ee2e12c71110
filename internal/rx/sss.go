package rx

import (
	"github.com/playsdr/nrsync/internal/fixed"
	"github.com/playsdr/nrsync/internal/nrseq"
)

// Cell is a resolved physical cell identity.
type Cell struct {
	Nid1 int
	Nid2 int
}

// Nid returns the physical cell ID.
func (c Cell) Nid() int { return c.Nid1*3 + c.Nid2 }

// sssOffset is the SSB-band subcarrier index of the first SSS subcarrier.
const sssOffset = 56

// SSSDetector resolves N_id_1 by correlating the SSS-bearing subcarriers
// of a demodulated symbol against all 336 candidate sequences for the
// already-known N_id_2. A candidate is accepted only when its correlation
// power clears the runner-up by the configured margin.
type SSSDetector struct {
	num Numerology
	// MarginShift encodes the confidence margin: best power must exceed
	// second-best << MarginShift.
	MarginShift uint

	// refs[nid2][nid1] built lazily per nid2
	refs [3][][nrseq.SSSLen]int8
}

// NewSSSDetector creates a detector with a 4x power margin.
func NewSSSDetector(num Numerology) *SSSDetector {
	return &SSSDetector{num: num, MarginShift: 2}
}

func (d *SSSDetector) sequences(nid2 int) [][nrseq.SSSLen]int8 {
	if d.refs[nid2] == nil {
		refs := make([][nrseq.SSSLen]int8, nrseq.NumNid1)
		for nid1 := 0; nid1 < nrseq.NumNid1; nid1++ {
			refs[nid1] = nrseq.SSS(nid1, nid2)
		}
		d.refs[nid2] = refs
	}
	return d.refs[nid2]
}

// Detect resolves the cell identity from the SSS symbol. ok is false when
// no candidate clears the margin; the caller then stays unsynchronized.
func (d *SSSDetector) Detect(sym Symbol, nid2 int) (Cell, bool) {
	start := d.num.SSBBand() + sssOffset
	sss := sym.SC[start : start+nrseq.SSSLen]

	var best, second uint64
	bestIdx := -1
	for nid1, ref := range d.sequences(nid2) {
		var acc fixed.C64
		for k := 0; k < nrseq.SSSLen; k++ {
			if ref[k] > 0 {
				acc.Re += int64(sss[k].I)
				acc.Im += int64(sss[k].Q)
			} else {
				acc.Re -= int64(sss[k].I)
				acc.Im -= int64(sss[k].Q)
			}
		}
		p := acc.Power()
		if p > best {
			second = best
			best = p
			bestIdx = nid1
		} else if p > second {
			second = p
		}
	}

	if bestIdx < 0 || best <= second<<d.MarginShift {
		return Cell{}, false
	}
	return Cell{Nid1: bestIdx, Nid2: nid2}, true
}
