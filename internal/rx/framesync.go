package rx

import (
	"github.com/playsdr/nrsync/internal/fixed"
)

// State is the timing tracker state.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAcquiring:
		return "ACQUIRING"
	case StateTracking:
		return "TRACKING"
	}
	return "?"
}

// SymbolWindow is one CP-advance-aligned FFT input block cut from the
// sample stream, tagged with its grid timing.
type SymbolWindow struct {
	Samples     []fixed.IQ // FFTLen samples
	Timestamp   uint64     // full-rate sample index of the symbol's CP start
	CyclePos    int        // position in the 7-symbol half-subframe cycle
	SymbolInSSB int        // 1..3 while inside an SSB, -1 otherwise
	SSBIndex    int        // running SSB number since first lock
}

// resyncTolerance is the timing deviation, in samples, beyond which a new
// detection is treated as a new synchronization context instead of a
// refresh of the current one.
const resyncTolerance = 2

// FrameSync is the symbol timing tracker. Once a PSS detection establishes
// the grid it cuts one FFT window per OFDM symbol out of the stream,
// advancing the window into the cyclic prefix by the configured CP advance.
// A new detection re-times the grid; the switch takes effect at the next
// symbol boundary, never inside a window.
type FrameSync struct {
	num     Numerology
	advance int
	ring    []fixed.IQ
	mask    uint64

	state  State
	absIdx uint64

	nextCPStart uint64
	cyclePos    int

	ssbLeft  int
	ssbIndex int

	resyncs    int
	lastDetect uint64
	watchdog   uint64
}

// NewFrameSync creates the tracker. halfCPAdvance selects the half-CP
// window advance (robust to late timing at the cost of inter-symbol
// interference margin); watchdog is the sample count without a detection
// after which tracking is abandoned (0 disables).
func NewFrameSync(num Numerology, halfCPAdvance bool, watchdog uint64) *FrameSync {
	advance := num.CP2
	if halfCPAdvance {
		advance = num.CP2 / 2
	}
	ringLen := 8 * num.FFTLen
	return &FrameSync{
		num:      num,
		advance:  advance,
		ring:     make([]fixed.IQ, ringLen),
		mask:     uint64(ringLen - 1),
		state:    StateIdle,
		ssbIndex: -1,
		watchdog: watchdog,
	}
}

// Advance returns the configured CP advance in samples.
func (f *FrameSync) Advance() int { return f.advance }

// State returns the tracker state.
func (f *FrameSync) State() State { return f.state }

// Resyncs returns how many detections forced a context reset.
func (f *FrameSync) Resyncs() int { return f.resyncs }

// SSBIndex returns the index of the most recent SSB, or -1.
func (f *FrameSync) SSBIndex() int { return f.ssbIndex }

// OnDetection re-times the grid from a confirmed PSS peak. pssEnd is the
// full-rate index of the last sample of the PSS symbol body. The three
// symbols that follow carry the SSB's PBCH and SSS.
func (f *FrameSync) OnDetection(pssEnd uint64) {
	newBase := pssEnd + 1

	if f.state == StateTracking || f.state == StateAcquiring {
		if dev := f.gridDeviation(newBase); dev > resyncTolerance {
			f.resyncs++
		}
	} else {
		f.state = StateAcquiring
	}

	// PSS occupies cycle position 1, so the first PBCH symbol is at 2.
	f.nextCPStart = newBase
	f.cyclePos = 2
	f.ssbLeft = 3
	f.ssbIndex++
	f.lastDetect = newBase
}

// gridDeviation walks symbol boundaries forward from the current grid and
// returns the distance from newBase to the nearest one.
func (f *FrameSync) gridDeviation(newBase uint64) uint64 {
	boundary := f.nextCPStart
	pos := f.cyclePos
	best := ^uint64(0)
	for i := 0; i < 2*40*symbolsPerHalfMS; i++ {
		var d uint64
		if boundary > newBase {
			d = boundary - newBase
		} else {
			d = newBase - boundary
		}
		if d < best {
			best = d
		}
		if boundary > newBase+uint64(f.num.FFTLen) {
			break
		}
		boundary += uint64(f.num.SymbolLen(pos))
		pos = (pos + 1) % symbolsPerHalfMS
	}
	return best
}

// Push feeds one full-rate sample and returns any symbol windows completed
// by it. Windows are returned in transmission order.
func (f *FrameSync) Push(s fixed.IQ) []SymbolWindow {
	f.ring[f.absIdx&f.mask] = s
	f.absIdx++

	if f.state == StateIdle {
		return nil
	}
	if f.watchdog != 0 && f.state == StateTracking && f.absIdx > f.lastDetect+f.watchdog {
		f.state = StateIdle
		return nil
	}

	var out []SymbolWindow
	for {
		winStart := f.nextCPStart + uint64(f.advance)
		winEnd := winStart + uint64(f.num.FFTLen)
		if winEnd > f.absIdx {
			break
		}
		if winStart+f.mask+1 < f.absIdx {
			// ring overrun; can only happen if timing went backwards
			f.state = StateIdle
			return out
		}

		w := SymbolWindow{
			Samples:     make([]fixed.IQ, f.num.FFTLen),
			Timestamp:   f.nextCPStart,
			CyclePos:    f.cyclePos,
			SymbolInSSB: -1,
			SSBIndex:    f.ssbIndex,
		}
		for i := 0; i < f.num.FFTLen; i++ {
			w.Samples[i] = f.ring[(winStart+uint64(i))&f.mask]
		}
		if f.ssbLeft > 0 {
			w.SymbolInSSB = 4 - f.ssbLeft
			f.ssbLeft--
		}
		out = append(out, w)

		if f.state == StateAcquiring {
			f.state = StateTracking
		}
		f.nextCPStart += uint64(f.num.SymbolLen(f.cyclePos))
		f.cyclePos = (f.cyclePos + 1) % symbolsPerHalfMS
	}
	return out
}

// Reset drops the synchronization context.
func (f *FrameSync) Reset() {
	f.state = StateIdle
	f.ssbLeft = 0
	f.ssbIndex = -1
	f.resyncs = 0
}
