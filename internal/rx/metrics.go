package rx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports the receiver's observable state. All fields are live
// handles; the pipeline updates them inline.
type Metrics struct {
	detectionsTotal prometheus.Counter // Confirmed PSS peaks
	resyncsTotal    prometheus.Counter // Detections that forced a timing reset
	ssbsTotal       prometheus.Counter // Fully equalized synchronization blocks
	llrBitsTotal    prometheus.Counter // Soft bits handed to the output queue
	gridSymbols     prometheus.Counter // Framed resource-grid symbols

	syncState prometheus.Gauge // 0=IDLE 1=ACQUIRING 2=TRACKING
	cfoHz     prometheus.Gauge // Current carrier offset estimate
	cellID    prometheus.Gauge // Resolved N_id, -1 before resolution
	ibarSSB   prometheus.Gauge // Most recent ibar_SSB hypothesis
	peakPower prometheus.Gauge // Correlation power of the last peak
}

// NewMetrics registers the receiver metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		detectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nrsync_pss_detections_total",
			Help: "Confirmed PSS correlation peaks",
		}),
		resyncsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nrsync_timing_resyncs_total",
			Help: "Detections whose timing disagreed with the tracked symbol grid",
		}),
		ssbsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nrsync_ssbs_total",
			Help: "Synchronization blocks equalized and demapped",
		}),
		llrBitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nrsync_llr_bits_total",
			Help: "PBCH soft bits produced",
		}),
		gridSymbols: f.NewCounter(prometheus.CounterOpts{
			Name: "nrsync_grid_symbols_total",
			Help: "OFDM symbols framed onto the resource-grid stream",
		}),
		syncState: f.NewGauge(prometheus.GaugeOpts{
			Name: "nrsync_sync_state",
			Help: "Timing tracker state (0=IDLE, 1=ACQUIRING, 2=TRACKING)",
		}),
		cfoHz: f.NewGauge(prometheus.GaugeOpts{
			Name: "nrsync_cfo_hz",
			Help: "Carrier frequency offset estimate in Hz",
		}),
		cellID: f.NewGauge(prometheus.GaugeOpts{
			Name: "nrsync_cell_id",
			Help: "Resolved physical cell ID, -1 before SSS resolution",
		}),
		ibarSSB: f.NewGauge(prometheus.GaugeOpts{
			Name: "nrsync_ibar_ssb",
			Help: "Most recent SSB index hypothesis from DMRS correlation",
		}),
		peakPower: f.NewGauge(prometheus.GaugeOpts{
			Name: "nrsync_peak_power",
			Help: "Correlation power of the most recent PSS peak",
		}),
	}
	m.cellID.Set(-1)
	return m
}
