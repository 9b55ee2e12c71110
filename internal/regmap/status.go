package regmap

import (
	"math"
	"sync"
)

// Detection status register indices. Values reported as "none yet" read
// as all-ones.
const (
	StatRegID         = 0
	StatRegNid2       = 1
	StatRegCFO        = 2 // milli-Hz, two's complement
	StatRegDetections = 3
	StatRegShift      = 4 // RW: peak threshold exponent
	StatRegMode       = 5 // RW: CFO estimation mode
	StatRegState      = 6
	StatRegNid        = 7
	StatRegIbar       = 8
	StatRegPeakLo     = 9
	StatRegPeakHi     = 10
	StatRegResyncs    = 11
)

const noValue = 0xffffffff

// Status is the PSS detection and cell identity register block. The
// pipeline publishes through the setters; bus writes to the two control
// registers are stored and forwarded to OnControl when set.
type Status struct {
	mu sync.RWMutex

	nid2       uint32
	cfoMilliHz int32
	detections uint32
	shift      uint32
	mode       uint32
	state      uint32
	nid        uint32
	ibar       uint32
	peak       uint64
	resyncs    uint32

	// OnControl, when non-nil, observes writes to the shift and mode
	// registers. Called with the block's lock held.
	OnControl func(reg int, val uint32)
}

// NewStatus creates the block with no detection recorded.
func NewStatus() *Status {
	return &Status{nid2: noValue, nid: noValue, ibar: noValue}
}

// RecordDetection publishes a confirmed peak.
func (s *Status) RecordDetection(nid2 int, power uint64, cfoHz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nid2 = uint32(nid2)
	s.peak = power
	s.cfoMilliHz = int32(math.Round(cfoHz * 1000))
	s.detections++
}

// RecordCell publishes a resolved cell identity.
func (s *Status) RecordCell(nid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nid = uint32(nid)
}

// RecordIbar publishes the most recent SSB index hypothesis.
func (s *Status) RecordIbar(ibar int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ibar = uint32(ibar)
}

// RecordState publishes the timing tracker state.
func (s *Status) RecordState(state int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = uint32(state)
}

// RecordResync counts a timing reset.
func (s *Status) RecordResync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncs++
}

// Snapshot is a consistent copy of the block for JSON reporting.
type Snapshot struct {
	Nid2       int     `json:"n_id_2"`
	Nid        int     `json:"n_id"`
	Ibar       int     `json:"ibar_ssb"`
	CFOHz      float64 `json:"cfo_hz"`
	Detections uint32  `json:"detections"`
	State      uint32  `json:"state"`
	PeakPower  uint64  `json:"peak_power"`
	Resyncs    uint32  `json:"resyncs"`
}

// Snapshot returns the current values under one lock acquisition.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asInt := func(v uint32) int {
		if v == noValue {
			return -1
		}
		return int(v)
	}
	return Snapshot{
		Nid2:       asInt(s.nid2),
		Nid:        asInt(s.nid),
		Ibar:       asInt(s.ibar),
		CFOHz:      float64(s.cfoMilliHz) / 1000,
		Detections: s.detections,
		State:      s.state,
		PeakPower:  s.peak,
		Resyncs:    s.resyncs,
	}
}

// ReadReg implements Block.
func (s *Status) ReadReg(reg int) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch reg {
	case StatRegID:
		return PSSBlockID, true
	case StatRegNid2:
		return s.nid2, true
	case StatRegCFO:
		return uint32(s.cfoMilliHz), true
	case StatRegDetections:
		return s.detections, true
	case StatRegShift:
		return s.shift, true
	case StatRegMode:
		return s.mode, true
	case StatRegState:
		return s.state, true
	case StatRegNid:
		return s.nid, true
	case StatRegIbar:
		return s.ibar, true
	case StatRegPeakLo:
		return uint32(s.peak), true
	case StatRegPeakHi:
		return uint32(s.peak >> 32), true
	case StatRegResyncs:
		return s.resyncs, true
	}
	return 0, false
}

// WriteReg implements Block.
func (s *Status) WriteReg(reg int, val uint32) bool {
	if reg != StatRegShift && reg != StatRegMode {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch reg {
	case StatRegShift:
		s.shift = val
	case StatRegMode:
		s.mode = val
	}
	if s.OnControl != nil {
		s.OnControl(reg, val)
	}
	return true
}
