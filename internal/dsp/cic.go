package dsp

import (
	"fmt"
	"math/bits"

	"github.com/playsdr/nrsync/internal/fixed"
)

// CIC is an N-stage cascaded integrator-comb decimator. It converts the raw
// input rate down to the 1.92 MHz reference rate used by PSS correlation.
// The R^N passband gain is compensated by truncation at the output so the
// decimated stream keeps the input's 16-bit scale.
type CIC struct {
	ratio  int
	stages int
	shift  uint

	integI []int64
	integQ []int64
	combI  []int64
	combQ  []int64
	phase  int
}

// NewCIC creates a decimator with the given ratio and number of stages.
// The ratio must be a power of 2 (1 disables decimation).
func NewCIC(ratio, stages int) (*CIC, error) {
	if ratio < 1 || ratio&(ratio-1) != 0 {
		return nil, fmt.Errorf("cic: ratio %d is not a power of 2", ratio)
	}
	if stages < 1 {
		return nil, fmt.Errorf("cic: need at least one stage, got %d", stages)
	}
	return &CIC{
		ratio:  ratio,
		stages: stages,
		shift:  uint(stages * bits.TrailingZeros(uint(ratio))),
		integI: make([]int64, stages),
		integQ: make([]int64, stages),
		combI:  make([]int64, stages),
		combQ:  make([]int64, stages),
	}, nil
}

// Ratio returns the decimation ratio.
func (c *CIC) Ratio() int { return c.ratio }

// Push feeds one input sample. Every ratio-th call produces an output
// sample; ok reports whether out is valid.
func (c *CIC) Push(s fixed.IQ) (out fixed.IQ, ok bool) {
	if c.ratio == 1 {
		return s, true
	}

	i64, q64 := int64(s.I), int64(s.Q)
	for k := 0; k < c.stages; k++ {
		c.integI[k] += i64
		c.integQ[k] += q64
		i64 = c.integI[k]
		q64 = c.integQ[k]
	}

	c.phase++
	if c.phase < c.ratio {
		return fixed.IQ{}, false
	}
	c.phase = 0

	for k := 0; k < c.stages; k++ {
		di := i64 - c.combI[k]
		dq := q64 - c.combQ[k]
		c.combI[k] = i64
		c.combQ[k] = q64
		i64 = di
		q64 = dq
	}

	return fixed.IQ{I: fixed.Sat16(i64 >> c.shift), Q: fixed.Sat16(q64 >> c.shift)}, true
}

// Reset clears all integrator and comb state.
func (c *CIC) Reset() {
	for k := 0; k < c.stages; k++ {
		c.integI[k], c.integQ[k] = 0, 0
		c.combI[k], c.combQ[k] = 0, 0
	}
	c.phase = 0
}
