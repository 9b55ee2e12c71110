package sync

import (
	"github.com/playsdr/nrsync/internal/fixed"
)

// DetectionEvent reports one confirmed PSS peak. Offset is the index, at
// the decimated reference rate, of the peak correlation sample itself (the
// last sample of the PSS symbol body), not the edge of the exceedance run.
type DetectionEvent struct {
	Nid2   int
	Offset uint64
	Power  uint64
	Halves [2]fixed.C64
	CFO    float64 // filled in by the PSS detector
}

// PeakDetector declares a peak when the correlation power exceeds the
// sliding-window local average by a power-of-two relative threshold for a
// configured number of consecutive samples. Within an exceedance run the
// largest sample wins. Re-triggers within one PSS period are debounced.
type PeakDetector struct {
	windowLen   int
	shift       uint
	consecutive int
	debounce    uint64

	window [NumSequences][]uint64
	sum    [NumSequences]uint64
	wpos   int
	filled int

	runLen     [NumSequences]int
	bestPower  [NumSequences]uint64
	bestOffset [NumSequences]uint64
	bestHalves [NumSequences][2]fixed.C64

	lastDetect uint64
	armed      bool
}

// NewPeakDetector creates a detector. shift is the log2 of the relative
// threshold over the window average; debounce is the minimum sample
// distance between detections (one PSS period).
func NewPeakDetector(windowLen int, shift uint, consecutive int, debounce uint64) *PeakDetector {
	p := &PeakDetector{
		windowLen:   windowLen,
		shift:       shift,
		consecutive: consecutive,
		debounce:    debounce,
	}
	for s := range p.window {
		p.window[s] = make([]uint64, windowLen)
	}
	return p
}

// SetShift adjusts the relative threshold. The detector starts with a high
// initial shift and the caller lowers it after first lock.
func (p *PeakDetector) SetShift(shift uint) { p.shift = shift }

// Push evaluates the correlation result at sample index idx. An event is
// emitted once per peak, when its exceedance run ends.
func (p *PeakDetector) Push(idx uint64, c CorrOut) (ev DetectionEvent, ok bool) {
	for seq := 0; seq < NumSequences; seq++ {
		cur := c.Power[seq]
		avgOK := p.filled >= p.windowLen && p.sum[seq] > 0
		exceeds := avgOK && cur*uint64(p.windowLen) > p.sum[seq]<<p.shift

		if exceeds {
			p.runLen[seq]++
			if cur > p.bestPower[seq] || p.runLen[seq] == 1 {
				p.bestPower[seq] = cur
				p.bestOffset[seq] = idx
				p.bestHalves[seq] = c.Halves[seq]
			}
		} else if p.runLen[seq] > 0 {
			if p.runLen[seq] >= p.consecutive && !ok {
				if ev2, fired := p.declare(seq); fired {
					ev, ok = ev2, true
				}
			}
			p.runLen[seq] = 0
			p.bestPower[seq] = 0
		}

		// The window tracks the local average; the current sample enters it
		// after the comparison so a peak does not lift its own baseline.
		p.sum[seq] += cur - p.window[seq][p.wpos]
		p.window[seq][p.wpos] = cur
	}
	p.wpos++
	if p.wpos == p.windowLen {
		p.wpos = 0
		if p.filled < p.windowLen {
			p.filled = p.windowLen
		}
	}
	return ev, ok
}

func (p *PeakDetector) declare(seq int) (DetectionEvent, bool) {
	off := p.bestOffset[seq]
	if p.armed && off < p.lastDetect+p.debounce {
		return DetectionEvent{}, false
	}
	p.armed = true
	p.lastDetect = off
	return DetectionEvent{
		Nid2:   seq,
		Offset: off,
		Power:  p.bestPower[seq],
		Halves: p.bestHalves[seq],
	}, true
}

// Reset clears window and run state.
func (p *PeakDetector) Reset() {
	for s := range p.window {
		for i := range p.window[s] {
			p.window[s][i] = 0
		}
		p.sum[s] = 0
		p.runLen[s] = 0
		p.bestPower[s] = 0
	}
	p.wpos = 0
	p.filled = 0
	p.armed = false
}
