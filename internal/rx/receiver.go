package rx

import (
	"context"
	"fmt"

	"github.com/playsdr/nrsync/internal/dsp"
	"github.com/playsdr/nrsync/internal/fixed"
	psync "github.com/playsdr/nrsync/internal/sync"
)

// EventKind tags a receiver event.
type EventKind int

const (
	// EventPeak is a confirmed PSS correlation peak.
	EventPeak EventKind = iota
	// EventCell is a new or changed cell identity from SSS.
	EventCell
	// EventCFO is an updated carrier offset estimate.
	EventCFO
	// EventSSB is a fully equalized and demapped synchronization block.
	EventSSB
)

// Event is a single-shot report from the pipeline. Only the fields
// relevant to the kind are meaningful.
type Event struct {
	Kind      EventKind
	Timestamp uint64 // full-rate sample index
	Nid2      int
	Cell      Cell
	Ibar      int
	CFO       float64
	Power     uint64
}

// Options parameterizes a Receiver. Zero values select the defaults
// noted per field.
type Options struct {
	Numerology    Numerology
	HalfCPAdvance bool

	// Peak detection. InitialShift is the acquisition threshold exponent,
	// TrackingShift the relaxed one applied after first lock.
	InitialShift   uint // default 4
	TrackingShift  uint // default 3
	WindowLen      int  // default 8
	Consecutive    int  // default 1
	DebouncePeriod uint64

	MultReuse   int // correlator multiplier reuse factor, default 1
	CFOMode     psync.CFOMode
	CFOTracking bool

	// DemapHard emits saturated sign decisions instead of soft LLRs.
	DemapHard bool

	// Watchdog is the full-rate sample count without a detection after
	// which synchronization is abandoned. 0 disables.
	Watchdog uint64

	Metrics *Metrics

	// Sinks. Nil sinks are skipped. They are invoked from the pipeline's
	// processing goroutine and must not block.
	OnLLRs  func(ssbIndex int, llrs []int8)
	OnGrid  func(words []GridWord)
	OnEvent func(ev Event)
}

// Receiver is the full synchronization pipeline: derotation, decimation,
// PSS detection, symbol timing, OFDM demodulation, SSS resolution,
// channel estimation, demapping and grid framing.
//
// The zero-latency core is synchronous: Push consumes one full-rate
// sample and drives every downstream stage to completion before
// returning, so all outputs are deterministic functions of the input
// stream. Run wraps the core in a goroutine for streaming use.
type Receiver struct {
	opt Options
	num Numerology

	dds   *dsp.DDS
	dec   *dsp.CIC
	det   *psync.Detector
	fsync *FrameSync
	demod *FFTDemod
	sss   *SSSDetector
	chest *ChannelEstimator
	frm   *Framer

	sampleIdx uint64 // full-rate samples consumed

	cell      Cell
	cellValid bool

	// SSB assembly. ssbCellValid latches whether the identity was known
	// when the block started; estimation needs it from the first symbol,
	// so a block that resolves its own identity is consumed for cell
	// search only.
	ssbSyms      [3]Symbol
	ssbHave      int
	ssbIndex     int
	ssbCellValid bool
	ssbCount     int
}

// NewReceiver builds the pipeline.
func NewReceiver(opt Options) (*Receiver, error) {
	num := opt.Numerology
	if num.FFTLen == 0 {
		return nil, fmt.Errorf("rx: options carry no numerology")
	}
	if opt.InitialShift == 0 {
		opt.InitialShift = 4
	}
	if opt.TrackingShift == 0 {
		opt.TrackingShift = 3
	}
	if opt.WindowLen == 0 {
		opt.WindowLen = 8
	}
	if opt.Consecutive == 0 {
		opt.Consecutive = 1
	}
	if opt.MultReuse == 0 {
		opt.MultReuse = 1
	}

	dec, err := dsp.NewCIC(num.Decimation, 3)
	if err != nil {
		return nil, fmt.Errorf("rx: decimator: %w", err)
	}

	fsync := NewFrameSync(num, opt.HalfCPAdvance, opt.Watchdog)
	r := &Receiver{
		opt:   opt,
		num:   num,
		dds:   dsp.NewDDS(num.SampleRate),
		dec:   dec,
		det: psync.NewDetector(psync.Config{
			SampleRate:     referenceRate,
			WindowLen:      opt.WindowLen,
			InitialShift:   opt.InitialShift,
			TrackingShift:  opt.TrackingShift,
			Consecutive:    opt.Consecutive,
			DebouncePeriod: opt.DebouncePeriod,
			MultReuse:      opt.MultReuse,
			CFOMode:        opt.CFOMode,
			CFOTracking:    opt.CFOTracking,
		}),
		fsync:    fsync,
		demod:    NewFFTDemod(num, fsync.Advance()),
		sss:      NewSSSDetector(num),
		chest:    NewChannelEstimator(num),
		frm:      NewFramer(num),
		ssbIndex: -1,
	}
	return r, nil
}

// Cell returns the resolved identity and whether one is held.
func (r *Receiver) Cell() (Cell, bool) { return r.cell, r.cellValid }

// CFO returns the current offset estimate in Hz.
func (r *Receiver) CFO() float64 { return r.det.CFO() }

// State returns the timing tracker state.
func (r *Receiver) State() State { return r.fsync.State() }

// SSBCount returns the number of fully demapped blocks.
func (r *Receiver) SSBCount() int { return r.ssbCount }

// Resyncs returns how many detections forced a timing reset.
func (r *Receiver) Resyncs() int { return r.fsync.Resyncs() }

// SetDetectionShift overrides the peak threshold exponent at runtime.
func (r *Receiver) SetDetectionShift(shift uint) { r.det.SetShift(shift) }

// SetCFOMode switches the frequency offset estimation strategy.
func (r *Receiver) SetCFOMode(mode psync.CFOMode) { r.det.SetCFOMode(mode) }

func (r *Receiver) emit(ev Event) {
	if r.opt.OnEvent != nil {
		r.opt.OnEvent(ev)
	}
}

// Push consumes one full-rate sample. Samples flagged invalid carry no
// data and are dropped without advancing time, matching a gated input
// stream.
func (r *Receiver) Push(s fixed.IQ, valid bool) error {
	if !valid {
		return nil
	}
	idx := r.sampleIdx
	r.sampleIdx++

	s = r.dds.Rotate(s)

	// Decimated branch: PSS correlation at the reference rate. A peak at
	// decimated index P was produced while consuming full-rate sample
	// (P+1)*D-1, which is also the last sample of the PSS body, so the
	// grid can be re-timed before this sample enters the tracker.
	if ds, ok := r.dec.Push(s); ok {
		if ev, hit := r.det.Push(ds); hit {
			resyncsBefore := r.fsync.Resyncs()
			pssEnd := (ev.Offset+1)*uint64(r.num.Decimation) - 1
			r.fsync.OnDetection(pssEnd)
			r.dds.SetFrequency(-ev.CFO)

			r.emit(Event{Kind: EventPeak, Timestamp: pssEnd, Nid2: ev.Nid2, Power: ev.Power})
			r.emit(Event{Kind: EventCFO, Timestamp: pssEnd, CFO: ev.CFO})
			if m := r.opt.Metrics; m != nil {
				m.detectionsTotal.Inc()
				m.cfoHz.Set(ev.CFO)
				m.peakPower.Set(float64(ev.Power))
				if r.fsync.Resyncs() > resyncsBefore {
					m.resyncsTotal.Inc()
				}
			}
		}
	}

	for _, w := range r.fsync.Push(s) {
		if err := r.handleSymbol(r.demod.Process(w), idx); err != nil {
			return err
		}
	}
	if m := r.opt.Metrics; m != nil {
		m.syncState.Set(float64(r.fsync.State()))
	}
	return nil
}

func (r *Receiver) handleSymbol(sym Symbol, now uint64) error {
	if r.opt.OnGrid != nil {
		words, err := r.frm.Frame(sym)
		if err != nil {
			return err
		}
		r.opt.OnGrid(words)
		if m := r.opt.Metrics; m != nil {
			m.gridSymbols.Inc()
		}
	}

	if sym.SymbolInSSB < 1 {
		return nil
	}

	if sym.SymbolInSSB == 1 {
		// Block start: latch whether identity is already known.
		r.ssbIndex = sym.SSBIndex
		r.ssbCellValid = r.cellValid
		r.ssbHave = 0
	}
	if sym.SSBIndex == r.ssbIndex && sym.SymbolInSSB == r.ssbHave+1 {
		r.ssbSyms[r.ssbHave] = sym
		r.ssbHave++
	}

	if sym.SymbolInSSB == 2 {
		if cell, ok := r.sss.Detect(sym, r.det.Nid2()); ok {
			if !r.cellValid || cell != r.cell {
				r.cell = cell
				r.cellValid = true
				r.emit(Event{Kind: EventCell, Timestamp: now, Cell: cell})
				if m := r.opt.Metrics; m != nil {
					m.cellID.Set(float64(cell.Nid()))
				}
			}
		}
	}

	if r.ssbHave == 3 {
		r.ssbHave = 0
		if !r.ssbCellValid {
			return nil
		}
		ibar, eq, ok := r.chest.ProcessSSB(r.ssbSyms, r.cell)
		if !ok {
			return nil
		}
		var llrs []int8
		if r.opt.DemapHard {
			llrs = DemapQPSKHard(eq)
		} else {
			llrs = DemapQPSK(eq)
		}
		r.ssbCount++
		if r.opt.OnLLRs != nil {
			r.opt.OnLLRs(sym.SSBIndex, llrs)
		}
		r.emit(Event{Kind: EventSSB, Timestamp: now, Cell: r.cell, Ibar: ibar})
		if m := r.opt.Metrics; m != nil {
			m.ssbsTotal.Inc()
			m.ibarSSB.Set(float64(ibar))
			m.llrBitsTotal.Add(float64(len(llrs)))
		}
	}
	return nil
}

// Result summarizes an offline run over a recording.
type Result struct {
	Cell      Cell
	CellValid bool
	CFO       float64
	SSBs      int
	Ibars     []int
	LLRs      []int8
	Grid      [][]GridWord
	Events    []Event
}

// ProcessRecording runs the pipeline synchronously over a full recording
// and collects every output. Sinks configured in Options still fire.
func (r *Receiver) ProcessRecording(samples []fixed.IQ) (*Result, error) {
	res := &Result{}
	userLLR, userGrid, userEvent := r.opt.OnLLRs, r.opt.OnGrid, r.opt.OnEvent
	r.opt.OnLLRs = func(ssb int, llrs []int8) {
		res.LLRs = append(res.LLRs, llrs...)
		if userLLR != nil {
			userLLR(ssb, llrs)
		}
	}
	r.opt.OnGrid = func(words []GridWord) {
		res.Grid = append(res.Grid, words)
		if userGrid != nil {
			userGrid(words)
		}
	}
	r.opt.OnEvent = func(ev Event) {
		res.Events = append(res.Events, ev)
		if ev.Kind == EventSSB {
			res.Ibars = append(res.Ibars, ev.Ibar)
		}
		if userEvent != nil {
			userEvent(ev)
		}
	}
	defer func() {
		r.opt.OnLLRs, r.opt.OnGrid, r.opt.OnEvent = userLLR, userGrid, userEvent
	}()

	for _, s := range samples {
		if err := r.Push(s, true); err != nil {
			return nil, err
		}
	}
	res.Cell, res.CellValid = r.cell, r.cellValid
	res.CFO = r.det.CFO()
	res.SSBs = r.ssbCount
	return res, nil
}

// Run consumes sample blocks from in until it closes or ctx is done.
// Processing happens on the calling goroutine's behalf in a dedicated
// worker; outputs arrive through the Options sinks.
func (r *Receiver) Run(ctx context.Context, in <-chan []fixed.IQ) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, open := <-in:
			if !open {
				return nil
			}
			for _, s := range block {
				if err := r.Push(s, true); err != nil {
					return err
				}
			}
		}
	}
}

// Reset returns the pipeline to cold acquisition.
func (r *Receiver) Reset() {
	r.dds.SetFrequency(0)
	r.dds.ResetPhase()
	r.dec.Reset()
	r.det.Reset()
	r.fsync.Reset()
	r.cellValid = false
	r.ssbHave = 0
	r.ssbIndex = -1
	r.ssbCount = 0
	r.sampleIdx = 0
}
