package capture

import (
	"fmt"

	"github.com/playsdr/nrsync/internal/dsp"
	"github.com/playsdr/nrsync/internal/fixed"
)

// Resampled converts a source captured above the pipeline rate down by an
// integer factor with an anti-aliasing FIR.
type Resampled struct {
	src Source
	fir *dsp.FIRDecimator
}

// NewResampled wraps src with a decimate-by-ratio front filter.
func NewResampled(src Source, ratio int) (*Resampled, error) {
	if ratio < 2 {
		return nil, fmt.Errorf("capture: resample ratio %d, need at least 2", ratio)
	}
	fir, err := dsp.NewFIRDecimator(ratio, 8*ratio+1)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &Resampled{src: src, fir: fir}, nil
}

// ReadBlock reads from the underlying source and returns the decimated
// samples. A block may come back empty near block boundaries.
func (r *Resampled) ReadBlock() ([]fixed.IQ, error) {
	in, err := r.src.ReadBlock()
	if err != nil {
		return nil, err
	}
	out := make([]fixed.IQ, 0, len(in)/r.fir.Ratio()+1)
	for _, s := range in {
		if d, ok := r.fir.Push(s); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Close closes the underlying source.
func (r *Resampled) Close() error { return r.src.Close() }
