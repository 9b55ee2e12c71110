package sync

import (
	"github.com/playsdr/nrsync/internal/fixed"
)

// corrShift truncates the complex correlation sum before squaring so the
// power metric stays inside 64 bits.
const corrShift = 8

// NumSequences is the number of PSS hypotheses correlated in parallel.
const NumSequences = 3

// CorrOut is the correlation result for one input sample: a power metric
// per sequence plus the two half-window complex sums used for CFO
// estimation at the peak.
type CorrOut struct {
	Power  [NumSequences]uint64
	Halves [NumSequences][2]fixed.C64
}

// Correlator slides the three PSS references over the incoming sample
// stream. Multiplier reuse folds the bank onto fewer multipliers: with
// reuse factor R each sample needs R internal cycles, during which the
// tap schedule walks the window in chunks of ceil(PSSTapLen/R) taps. An
// arriving sample is held in the input queue until its cycles run; since
// one sample arrives per R cycles the queue never grows past one entry
// and never reorders. The output is bit-identical for any reuse factor;
// only the cycle cost changes.
type Correlator struct {
	taps  [NumSequences][]fixed.IQ
	ring  []fixed.IQ
	pos   int
	count int

	reuse int
	chunk int // taps walked per internal cycle

	hold    []fixed.IQ
	tapIdx  int // schedule position within the sample in progress
	partial [NumSequences][2]fixed.C64
	cycles  uint64
}

// NewCorrelator builds the bank. reuse <= 1 means one sample per cycle.
func NewCorrelator(reuse int) *Correlator {
	if reuse < 1 {
		reuse = 1
	}
	c := &Correlator{
		ring:  make([]fixed.IQ, PSSTapLen),
		reuse: reuse,
		chunk: (PSSTapLen + reuse - 1) / reuse,
		hold:  make([]fixed.IQ, 0, 2),
	}
	for nid2 := 0; nid2 < NumSequences; nid2++ {
		c.taps[nid2] = GeneratePSSTaps(nid2)
	}
	return c
}

// CyclesPerSample returns the number of internal cycles the bank occupies
// per input sample.
func (c *Correlator) CyclesPerSample() int { return c.reuse }

// Cycles returns the total internal cycles consumed so far.
func (c *Correlator) Cycles() uint64 { return c.cycles }

// HoldDepth returns the number of samples waiting in the input queue.
func (c *Correlator) HoldDepth() int { return len(c.hold) }

// Push feeds one sample arrival and grants the bank its reuse cycles. ok
// reports a completed correlation over the window ending at that sample;
// it stays false until the window has filled once.
func (c *Correlator) Push(s fixed.IQ) (out CorrOut, ok bool) {
	c.hold = append(c.hold, s)
	for i := 0; i < c.reuse; i++ {
		c.cycles++
		if o, done := c.cycle(); done {
			out, ok = o, true
		}
	}
	return out, ok
}

// cycle advances the tap schedule by one chunk, accepting the next held
// sample into the window when the previous one has finished.
func (c *Correlator) cycle() (CorrOut, bool) {
	if c.tapIdx == 0 {
		if len(c.hold) == 0 {
			return CorrOut{}, false
		}
		c.ring[c.pos] = c.hold[0]
		copy(c.hold, c.hold[1:])
		c.hold = c.hold[:len(c.hold)-1]
		c.pos++
		if c.pos == PSSTapLen {
			c.pos = 0
		}
		if c.count < PSSTapLen {
			c.count++
		}
		for seq := range c.partial {
			c.partial[seq] = [2]fixed.C64{}
		}
	}

	end := c.tapIdx + c.chunk
	if end > PSSTapLen {
		end = PSSTapLen
	}
	for seq := 0; seq < NumSequences; seq++ {
		taps := c.taps[seq]
		idx := c.pos + c.tapIdx // oldest sample plus schedule offset
		if idx >= PSSTapLen {
			idx -= PSSTapLen
		}
		h := &c.partial[seq]
		for k := c.tapIdx; k < end; k++ {
			p := fixed.MulConj(c.ring[idx], taps[k])
			if k < PSSTapLen/2 {
				h[0] = h[0].Add(p)
			} else {
				h[1] = h[1].Add(p)
			}
			idx++
			if idx == PSSTapLen {
				idx = 0
			}
		}
	}
	c.tapIdx = end
	if c.tapIdx < PSSTapLen {
		return CorrOut{}, false
	}
	c.tapIdx = 0
	if c.count < PSSTapLen {
		return CorrOut{}, false
	}

	var out CorrOut
	for seq := 0; seq < NumSequences; seq++ {
		h0, h1 := c.partial[seq][0], c.partial[seq][1]
		sum := h0.Add(h1)
		tr := fixed.TruncC64(sum, corrShift)
		out.Power[seq] = uint64(tr.Re*tr.Re + tr.Im*tr.Im)
		out.Halves[seq] = [2]fixed.C64{h0, h1}
	}
	return out, true
}

// Reset clears the sliding window and the schedule state.
func (c *Correlator) Reset() {
	c.pos = 0
	c.count = 0
	c.tapIdx = 0
	c.cycles = 0
	c.hold = c.hold[:0]
	for i := range c.ring {
		c.ring[i] = fixed.IQ{}
	}
	for seq := range c.partial {
		c.partial[seq] = [2]fixed.C64{}
	}
}
