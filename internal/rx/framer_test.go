package rx

import (
	"testing"

	"github.com/playsdr/nrsync/internal/fixed"
)

func TestFramer_RoundTrip(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFramer(num)

	sym := Symbol{
		SC:        make([]fixed.IQ, num.FFTLen),
		Timestamp: 0x0123456789abcdef,
	}
	start, width := num.GridBand()
	for i := 0; i < width; i++ {
		sym.SC[start+i] = fixed.IQ{I: int16(i - 100), Q: int16(-i)}
	}

	words, err := f.Frame(sym)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.CheckTransfer(words); err != nil {
		t.Fatal(err)
	}
	if got := TransferTimestamp(words); got != sym.Timestamp {
		t.Fatalf("timestamp %#x, want %#x", got, sym.Timestamp)
	}

	for i := 0; i < width; i++ {
		w := words[gridHeaderWords+i].Data
		if got, want := int16(uint16(w)), int16(i-100); got != want {
			t.Fatalf("payload word %d: I = %d, want %d", i, got, want)
		}
		if got, want := int16(uint16(w>>16)), int16(-i); got != want {
			t.Fatalf("payload word %d: Q = %d, want %d", i, got, want)
		}
	}
}

func TestFramer_RejectsShortSymbol(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFramer(num)
	if _, err := f.Frame(Symbol{SC: make([]fixed.IQ, num.FFTLen-1)}); err == nil {
		t.Fatal("short symbol accepted")
	}
}

func TestFramer_CheckTransferContract(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFramer(num)
	words, err := f.Frame(Symbol{SC: make([]fixed.IQ, num.FFTLen)})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.CheckTransfer(words[:len(words)-1]); err == nil {
		t.Error("truncated transfer accepted")
	}

	moved := make([]GridWord, len(words))
	copy(moved, words)
	moved[len(moved)-1].Last = false
	moved[10].Last = true
	if err := f.CheckTransfer(moved); err == nil {
		t.Error("misplaced end mark accepted")
	}
}

func TestNumerology_Geometry(t *testing.T) {
	cases := []struct {
		nfft, fftLen, cp1, cp2, nprb, dec int
		rate                              float64
	}{
		{8, 256, 20, 18, 20, 2, 3.84e6},
		{9, 512, 40, 36, 25, 4, 7.68e6},
		{10, 1024, 80, 72, 25, 8, 15.36e6},
		{11, 2048, 160, 144, 25, 16, 30.72e6},
	}
	for _, tc := range cases {
		num, err := NewNumerology(tc.nfft)
		if err != nil {
			t.Fatalf("nfft %d: %v", tc.nfft, err)
		}
		if num.FFTLen != tc.fftLen || num.CP1 != tc.cp1 || num.CP2 != tc.cp2 {
			t.Errorf("nfft %d: geometry %+v", tc.nfft, num)
		}
		if num.NPRB != tc.nprb || num.Decimation != tc.dec || num.SampleRate != tc.rate {
			t.Errorf("nfft %d: rates %+v", tc.nfft, num)
		}
		// 7 symbols must cover exactly half a millisecond.
		if got, want := halfSubframeLen(num), int(num.SampleRate/2000); got != want {
			t.Errorf("nfft %d: half subframe %d samples, want %d", tc.nfft, got, want)
		}
	}

	for _, bad := range []int{0, 7, 12} {
		if _, err := NewNumerology(bad); err == nil {
			t.Errorf("nfft %d accepted", bad)
		}
	}
}
