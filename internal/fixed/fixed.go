// Package fixed holds the complex fixed-point sample types used throughout
// the receive pipeline.
//
// All pipeline arithmetic is integer arithmetic. Where a stage narrows a
// result it truncates (arithmetic shift right, rounding toward minus
// infinity), never rounds to nearest. Downstream scaling constants are
// calibrated against that bias, so it is part of the numeric contract.
package fixed

// IQ is one complex baseband sample with 16-bit mantissas.
type IQ struct {
	I int16
	Q int16
}

// C32 is a complex working value with 32-bit mantissas, used inside the FFT
// and the channel estimator where products and sums outgrow 16 bits.
type C32 struct {
	Re int32
	Im int32
}

// C64 is a complex accumulator. Correlator accumulations over 128 taps of
// 16x16-bit products fit in 64 bits with room to spare.
type C64 struct {
	Re int64
	Im int64
}

// Add returns a+b without overflow checking; callers are responsible for
// staying inside the representable range (see CheckRange).
func (a IQ) Add(b IQ) IQ {
	return IQ{a.I + b.I, a.Q + b.Q}
}

// Neg returns -a.
func (a IQ) Neg() IQ {
	return IQ{-a.I, -a.Q}
}

// Wide returns the sample widened to 32-bit mantissas.
func (a IQ) Wide() C32 {
	return C32{int32(a.I), int32(a.Q)}
}

// MulConj returns a * conj(b) as a 64-bit complex value.
func MulConj(a, b IQ) C64 {
	ar, ai := int64(a.I), int64(a.Q)
	br, bi := int64(b.I), int64(b.Q)
	return C64{
		Re: ar*br + ai*bi,
		Im: ai*br - ar*bi,
	}
}

// Mul returns a * b as a 64-bit complex value.
func Mul(a, b IQ) C64 {
	ar, ai := int64(a.I), int64(a.Q)
	br, bi := int64(b.I), int64(b.Q)
	return C64{
		Re: ar*br - ai*bi,
		Im: ar*bi + ai*br,
	}
}

// Add returns a+b.
func (a C64) Add(b C64) C64 {
	return C64{a.Re + b.Re, a.Im + b.Im}
}

// MulConj returns a * conj(b).
func (a C64) MulConj(b C64) C64 {
	return C64{
		Re: a.Re*b.Re + a.Im*b.Im,
		Im: a.Im*b.Re - a.Re*b.Im,
	}
}

// Power returns |a|^2. Callers truncate to their working width.
func (a C64) Power() uint64 {
	return uint64(a.Re*a.Re + a.Im*a.Im)
}

// Trunc arithmetically shifts v right by n bits. This is the pipeline's
// canonical narrowing operation.
func Trunc(v int64, n uint) int64 {
	return v >> n
}

// TruncC64 truncates both components of a complex accumulator.
func TruncC64(a C64, n uint) C64 {
	return C64{a.Re >> n, a.Im >> n}
}

// Sat16 clamps v to the int16 range.
func Sat16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// NarrowIQ truncates a complex accumulator by n bits and saturates to an IQ
// sample. Saturation only guards against off-by-one headroom mistakes; a
// correctly scaled stage never hits it.
func NarrowIQ(a C64, n uint) IQ {
	return IQ{Sat16(a.Re >> n), Sat16(a.Im >> n)}
}

// CheckRange reports whether the sample magnitude fits within maxAmp on both
// rails. Input overflow is a producer error and must be rejected before the
// sample enters the pipeline.
func CheckRange(s IQ, maxAmp int16) bool {
	return s.I <= maxAmp && s.I >= -maxAmp && s.Q <= maxAmp && s.Q >= -maxAmp
}
