package dsp

import (
	"math"
	"testing"

	"github.com/playsdr/nrsync/internal/fixed"
)

func TestCIC_DCGain(t *testing.T) {
	cic, err := NewCIC(8, 3)
	if err != nil {
		t.Fatal(err)
	}

	const in = 1000
	var outputs []fixed.IQ
	for i := 0; i < 8*64; i++ {
		if out, ok := cic.Push(fixed.IQ{I: in, Q: -in}); ok {
			outputs = append(outputs, out)
		}
	}

	if len(outputs) != 64 {
		t.Fatalf("got %d outputs for 512 inputs at ratio 8, want 64", len(outputs))
	}

	// After the filter settles, a DC input passes with unity gain (the R^N
	// growth is compensated by the output shift).
	settled := outputs[len(outputs)-1]
	if settled.I != in || settled.Q != -in {
		t.Errorf("settled CIC output = %+v, want {%d %d}", settled, in, -in)
	}
}

func TestCIC_RejectsBadRatio(t *testing.T) {
	if _, err := NewCIC(3, 3); err == nil {
		t.Error("NewCIC(3,3) accepted a non-power-of-2 ratio")
	}
}

func TestCIC_PassthroughAtRatioOne(t *testing.T) {
	cic, err := NewCIC(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	in := fixed.IQ{I: 123, Q: -456}
	out, ok := cic.Push(in)
	if !ok || out != in {
		t.Errorf("ratio-1 CIC: got %+v ok=%v, want passthrough", out, ok)
	}
}

func TestFIRDecimator_DCGain(t *testing.T) {
	fir, err := NewFIRDecimator(4, 63)
	if err != nil {
		t.Fatal(err)
	}

	const in = 8000
	var last fixed.IQ
	count := 0
	for i := 0; i < 4 * 128; i++ {
		if out, ok := fir.Push(fixed.IQ{I: in, Q: in / 2}); ok {
			last = out
			count++
		}
	}

	if count != 128 {
		t.Fatalf("got %d outputs for 512 inputs at ratio 4, want 128", count)
	}
	if math.Abs(float64(last.I)-in) > in/100 {
		t.Errorf("FIR DC gain off: got %d, want ~%d", last.I, in)
	}
}

func TestFIRDecimator_RejectsTone(t *testing.T) {
	// A tone well above the output Nyquist rate must be attenuated hard.
	fir, err := NewFIRDecimator(4, 63)
	if err != nil {
		t.Fatal(err)
	}

	const amp = 8000
	var maxOut int16
	for i := 0; i < 4 * 256; i++ {
		phi := 2 * math.Pi * 0.45 * float64(i) // 0.45 of input rate
		s := fixed.IQ{
			I: int16(amp * math.Cos(phi)),
			Q: int16(amp * math.Sin(phi)),
		}
		if out, ok := fir.Push(s); ok {
			if v := absInt16(out.I); v > maxOut {
				maxOut = v
			}
		}
	}
	t.Logf("stopband residual: %d of %d", maxOut, amp)
	if int(maxOut) > amp/20 {
		t.Errorf("stopband tone leaked: %d of %d", maxOut, amp)
	}
}

func TestDDS_RoundTripRotation(t *testing.T) {
	const fs = 3840000.0
	fwd := NewDDS(fs)
	rev := NewDDS(fs)
	fwd.SetFrequency(1200)
	rev.SetFrequency(-1200)

	in := fixed.IQ{I: 12000, Q: 0}
	var maxErr int
	for i := 0; i < 4096; i++ {
		out := rev.Rotate(fwd.Rotate(in))
		if e := int(absInt16(out.I - in.I)); e > maxErr {
			maxErr = e
		}
		if e := int(absInt16(out.Q - in.Q)); e > maxErr {
			maxErr = e
		}
	}
	// Phase quantization of the 1024-entry LUT bounds the residual rotation
	// to one table step, about 0.6% of the amplitude here.
	t.Logf("round-trip max error: %d LSB", maxErr)
	if maxErr > 150 {
		t.Errorf("derotation round trip error %d LSB, want <= 150", maxErr)
	}
}

func TestDDS_FrequencyReadback(t *testing.T) {
	d := NewDDS(3840000)
	d.SetFrequency(-1200)
	if got := d.Frequency(); math.Abs(got+1200) > 0.01 {
		t.Errorf("Frequency() = %v, want -1200", got)
	}
}

func absInt16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
