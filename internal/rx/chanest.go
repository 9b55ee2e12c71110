package rx

import (
	"github.com/playsdr/nrsync/internal/fixed"
	"github.com/playsdr/nrsync/internal/nrseq"
)

// pbchBandSC is the SSB band width in subcarriers.
const pbchBandSC = 240

// EqualizedRE is one channel-corrected PBCH resource element. The true
// value is IQ * 2^Exp; the exponent is shared by all REs of one symbol.
type EqualizedRE struct {
	IQ          fixed.IQ
	Exp         int
	SymbolInSSB int
}

// ChannelEstimator recovers the channel from the PBCH DMRS and equalizes
// the PBCH data REs of the same SSB. The SSB index hypothesis ibar_SSB is
// resolved on the way by correlating the received DMRS against all
// candidate sequences.
//
// Estimation needs the cell identity (for the DMRS sequence and its
// subcarrier phase), so the first SSB after acquisition only resolves the
// identity and produces no output; equalized PBCH starts with the second.
type ChannelEstimator struct {
	num Numerology
}

// NewChannelEstimator creates the estimator.
func NewChannelEstimator(num Numerology) *ChannelEstimator {
	return &ChannelEstimator{num: num}
}

// dmrsPositions returns the SSB-band subcarrier indices carrying DMRS in
// the given PBCH symbol (1-based SSB symbol index), for subcarrier phase v.
func dmrsPositions(symbolInSSB, v int) []int {
	var pos []int
	appendRange := func(lo, hi int) {
		for sc := lo + v; sc < hi; sc += 4 {
			pos = append(pos, sc)
		}
	}
	switch symbolInSSB {
	case 1, 3:
		appendRange(0, pbchBandSC)
	case 2:
		appendRange(0, 48)
		appendRange(192, pbchBandSC)
	}
	return pos
}

// isDMRS reports whether an SSB-band subcarrier carries DMRS for phase v.
func isDMRS(sc, v int) bool { return sc%4 == v }

// dataPositions returns the PBCH data subcarriers of a symbol.
func dataPositions(symbolInSSB, v int) []int {
	var pos []int
	appendRange := func(lo, hi int) {
		for sc := lo; sc < hi; sc++ {
			if !isDMRS(sc, v) {
				pos = append(pos, sc)
			}
		}
	}
	switch symbolInSSB {
	case 1, 3:
		appendRange(0, pbchBandSC)
	case 2:
		appendRange(0, 48)
		appendRange(192, pbchBandSC)
	}
	return pos
}

// ProcessSSB resolves ibar_SSB and equalizes the three PBCH symbols of one
// SSB. syms must be the SSB symbols 1..3 in order. ok is false when no
// DMRS hypothesis stands out, in which case nothing is emitted.
func (e *ChannelEstimator) ProcessSSB(syms [3]Symbol, cell Cell) (ibar int, out []EqualizedRE, ok bool) {
	v := nrseq.DMRSShift(cell.Nid())
	band := e.num.SSBBand()

	// Collect received DMRS REs in sequence order, aligned to the smallest
	// symbol exponent so the hypothesis metric weighs symbols consistently.
	minExp := syms[0].Exp
	for _, s := range syms[1:] {
		if s.Exp < minExp {
			minExp = s.Exp
		}
	}
	type dmrsRE struct {
		re, im int64
		sym    int // 0..2
		sc     int
	}
	var received []dmrsRE
	for si, s := range syms {
		shift := uint(s.Exp - minExp)
		for _, sc := range dmrsPositions(si+1, v) {
			y := s.SC[band+sc]
			received = append(received, dmrsRE{
				re:  int64(y.I) << shift,
				im:  int64(y.Q) << shift,
				sym: si,
				sc:  sc,
			})
		}
	}
	if len(received) != nrseq.NumDMRS {
		return 0, nil, false
	}

	var best, second uint64
	bestIbar := -1
	for hyp := 0; hyp < nrseq.DMRSHypotheses; hyp++ {
		ref := nrseq.PBCHDMRS(cell.Nid(), hyp)
		var accRe, accIm int64
		for m, y := range received {
			rr, ri := int64(ref[m][0]), int64(ref[m][1])
			// y * conj(r)
			accRe += y.re*rr + y.im*ri
			accIm += y.im*rr - y.re*ri
		}
		p := uint64(accRe*accRe + accIm*accIm)
		if p > best {
			second = best
			best = p
			bestIbar = hyp
		} else if p > second {
			second = p
		}
	}
	if bestIbar < 0 || best <= second {
		return 0, nil, false
	}
	ibar = bestIbar

	// Per-RE channel taps: h = y * conj(r), at each symbol's own exponent.
	ref := nrseq.PBCHDMRS(cell.Nid(), ibar)
	type tap struct {
		sc     int
		re, im int64
	}
	taps := make([][]tap, 3)
	for m, y := range received {
		rr, ri := int64(ref[m][0]), int64(ref[m][1])
		taps[y.sym] = append(taps[y.sym], tap{
			sc: y.sc,
			re: y.re*rr + y.im*ri,
			im: y.im*rr - y.re*ri,
		})
	}

	for si, s := range syms {
		symTaps := taps[si]
		interp := func(sc int) (int64, int64) {
			// locate neighbors; DMRS spacing is 4 within each side
			lo := 0
			for lo+1 < len(symTaps) && symTaps[lo+1].sc <= sc {
				lo++
			}
			hi := lo
			if lo+1 < len(symTaps) && symTaps[lo+1].sc-symTaps[lo].sc == 4 && symTaps[lo].sc < sc {
				hi = lo + 1
			}
			if hi == lo {
				return symTaps[lo].re, symTaps[lo].im
			}
			a, b := symTaps[lo], symTaps[hi]
			frac := int64(sc - a.sc)
			span := int64(b.sc - a.sc)
			return a.re + (b.re-a.re)*frac/span, a.im + (b.im-a.im)*frac/span
		}

		data := dataPositions(si+1, v)
		prods := make([]fixed.C64, len(data))
		var maxAbs int64
		for i, sc := range data {
			y := s.SC[band+sc]
			hr, hi := interp(sc)
			// z = y * conj(h)
			zr := int64(y.I)*hr + int64(y.Q)*hi
			zi := int64(y.Q)*hr - int64(y.I)*hi
			prods[i] = fixed.C64{Re: zr, Im: zi}
			if a := zr; a < 0 {
				a = -a
				if a > maxAbs {
					maxAbs = a
				}
			} else if a > maxAbs {
				maxAbs = a
			}
			if a := zi; a < 0 {
				a = -a
				if a > maxAbs {
					maxAbs = a
				}
			} else if a > maxAbs {
				maxAbs = a
			}
		}
		shift := uint(0)
		for maxAbs>>shift > 32767 {
			shift++
		}
		// z carries the data mantissa at s.Exp times the tap mantissa at
		// minExp, so the published exponent is their sum plus the
		// narrowing shift.
		for i := range prods {
			out = append(out, EqualizedRE{
				IQ:          fixed.NarrowIQ(prods[i], shift),
				Exp:         s.Exp + minExp + int(shift),
				SymbolInSSB: si + 1,
			})
		}
	}
	return ibar, out, true
}
