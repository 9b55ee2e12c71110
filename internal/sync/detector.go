package sync

import (
	"github.com/playsdr/nrsync/internal/fixed"
)

// CFOMode selects the initial offset estimation strategy. The detector
// sits behind the derotator, so every measurement after the first is a
// residual on top of the correction already being applied.
type CFOMode int

const (
	// CFOModeCoarseFine takes a coarse estimate at the first confirmed
	// peak and folds the residual measured at the second peak into the
	// correction as the fine stage. Needs two PSS detections to converge.
	CFOModeCoarseFine CFOMode = iota
	// CFOModeFineOnly applies the first peak's estimate immediately and
	// holds it. Suited to stable oscillators and jittery input cadence,
	// where a second estimation pass adds more noise than it removes.
	CFOModeFineOnly
)

// Config parameterizes the PSS detector.
type Config struct {
	SampleRate     float64 // decimated reference rate, Hz
	WindowLen      int
	InitialShift   uint // relative threshold at acquisition
	TrackingShift  uint // relative threshold after first lock
	Consecutive    int
	DebouncePeriod uint64 // samples between valid detections
	MultReuse      int
	CFOMode        CFOMode
	CFOTracking    bool // keep folding residuals in after the initial stages
}

// Detector is the complete PSS acquisition front end: correlator bank,
// peak detector and CFO estimator. It consumes samples at the reference
// rate and emits confirmed detection events.
type Detector struct {
	cfg  Config
	corr *Correlator
	peak *PeakDetector

	sampleIdx  uint64
	detections uint64
	cfo        float64
	lastNid2   int
}

// NewDetector creates the front end for a configuration.
func NewDetector(cfg Config) *Detector {
	if cfg.WindowLen == 0 {
		cfg.WindowLen = 8
	}
	if cfg.Consecutive == 0 {
		cfg.Consecutive = 1
	}
	if cfg.TrackingShift == 0 {
		cfg.TrackingShift = cfg.InitialShift
	}
	return &Detector{
		cfg:      cfg,
		corr:     NewCorrelator(cfg.MultReuse),
		peak:     NewPeakDetector(cfg.WindowLen, cfg.InitialShift, cfg.Consecutive, cfg.DebouncePeriod),
		lastNid2: -1,
	}
}

// CyclesPerSample reports the modeled processing rate of the correlator
// bank under multiplier reuse.
func (d *Detector) CyclesPerSample() int { return d.corr.CyclesPerSample() }

// Push feeds one reference-rate sample. ok reports a confirmed detection;
// the event carries the updated CFO estimate.
func (d *Detector) Push(s fixed.IQ) (ev DetectionEvent, ok bool) {
	out, ready := d.corr.Push(s)
	idx := d.sampleIdx
	d.sampleIdx++
	if !ready {
		return DetectionEvent{}, false
	}

	ev, ok = d.peak.Push(idx, out)
	if !ok {
		return DetectionEvent{}, false
	}

	residual := EstimateCFO(ev.Halves, d.cfg.SampleRate)
	switch {
	case d.cfg.CFOMode == CFOModeCoarseFine && d.detections < 2:
		// First peak: coarse, measured on the uncorrected stream.
		// Second peak: fine, a residual on the derotated stream.
		d.cfo += residual
	case d.cfg.CFOMode == CFOModeFineOnly && d.detections == 0:
		d.cfo = residual
	case d.cfg.CFOTracking:
		d.cfo += residual
	}
	ev.CFO = d.cfo

	if d.detections == 0 {
		// After first lock the local average is dominated by noise again, so
		// a lower relative threshold keeps re-detections reliable.
		d.peak.SetShift(d.cfg.TrackingShift)
	}
	d.detections++
	d.lastNid2 = ev.Nid2
	return ev, true
}

// SetShift overrides the relative threshold exponent, taking effect on
// the next sample. The override also replaces the tracking threshold so
// it survives the first-lock transition.
func (d *Detector) SetShift(shift uint) {
	d.cfg.TrackingShift = shift
	d.peak.SetShift(shift)
}

// SetCFOMode switches the offset estimation strategy.
func (d *Detector) SetCFOMode(mode CFOMode) { d.cfg.CFOMode = mode }

// CFO returns the current frequency offset estimate in Hz.
func (d *Detector) CFO() float64 { return d.cfo }

// Detections returns the number of confirmed peaks so far.
func (d *Detector) Detections() uint64 { return d.detections }

// Nid2 returns the sequence index of the last detection, or -1.
func (d *Detector) Nid2() int { return d.lastNid2 }

// SampleIndex returns the number of reference-rate samples consumed.
func (d *Detector) SampleIndex() uint64 { return d.sampleIdx }

// Reset returns the detector to cold acquisition.
func (d *Detector) Reset() {
	d.corr.Reset()
	d.peak.Reset()
	d.peak.SetShift(d.cfg.InitialShift)
	d.sampleIdx = 0
	d.detections = 0
	d.cfo = 0
	d.lastNid2 = -1
}
