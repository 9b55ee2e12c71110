package rx

import (
	"testing"

	"github.com/playsdr/nrsync/internal/fixed"
)

// pushN feeds n tagged samples whose I component encodes the stream index.
func pushN(f *FrameSync, from, n int) []SymbolWindow {
	var out []SymbolWindow
	for i := 0; i < n; i++ {
		idx := from + i
		wins := f.Push(fixed.IQ{I: int16(idx % 16384), Q: int16(-(idx % 128))})
		out = append(out, wins...)
	}
	return out
}

func TestFrameSync_WindowSchedule(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFrameSync(num, false, 0)

	pushN(f, 0, 1000)
	if f.State() != StateIdle {
		t.Fatal("tracking without a detection")
	}
	f.OnDetection(999)
	wins := pushN(f, 1000, 3200)

	if len(wins) < 9 {
		t.Fatalf("got %d windows", len(wins))
	}
	if f.State() != StateTracking {
		t.Fatalf("state %v, want TRACKING", f.State())
	}

	first := wins[0]
	if first.Timestamp != 1000 {
		t.Errorf("first window timestamp %d, want 1000", first.Timestamp)
	}
	if first.CyclePos != 2 {
		t.Errorf("first window cycle position %d, want 2", first.CyclePos)
	}

	// The detection grid starts at cycle position 2, so deltas run through
	// five short symbols, the long CP1 symbol, then short again.
	wantDelta := []uint64{274, 274, 274, 274, 274, 276, 274}
	wantSSB := []int{1, 2, 3, -1, -1, -1, -1, -1}
	for i, want := range wantSSB {
		if wins[i].SymbolInSSB != want {
			t.Errorf("window %d: SymbolInSSB %d, want %d", i, wins[i].SymbolInSSB, want)
		}
	}
	for i, want := range wantDelta {
		if d := wins[i+1].Timestamp - wins[i].Timestamp; d != want {
			t.Errorf("window %d->%d: timestamp delta %d, want %d", i, i+1, d, want)
		}
	}

	// Window content starts CP-advance samples past the CP start.
	winStart := int(first.Timestamp) + f.Advance()
	for i, s := range first.Samples {
		want := int16((winStart + i) % 16384)
		if s.I != want {
			t.Fatalf("window sample %d = %d, want %d", i, s.I, want)
		}
	}
}

func TestFrameSync_HalfAdvance(t *testing.T) {
	num := mustNumerology(t, 8)
	full := NewFrameSync(num, false, 0)
	half := NewFrameSync(num, true, 0)
	if full.Advance() != num.CP2 {
		t.Errorf("full advance %d, want %d", full.Advance(), num.CP2)
	}
	if half.Advance() != num.CP2/2 {
		t.Errorf("half advance %d, want %d", half.Advance(), num.CP2/2)
	}

	pushN(half, 0, 500)
	half.OnDetection(499)
	wins := pushN(half, 500, 2*num.FFTLen)
	if len(wins) == 0 {
		t.Fatal("no windows")
	}
	winStart := int(wins[0].Timestamp) + num.CP2/2
	if got := wins[0].Samples[0].I; got != int16(winStart%16384) {
		t.Errorf("half-advance window starts at sample %d, want %d", got, winStart%16384)
	}
}

func TestFrameSync_ResyncCounting(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFrameSync(num, false, 0)

	pushN(f, 0, 1000)
	f.OnDetection(999)
	pushN(f, 1000, 2*halfSubframeLen(num))

	// On-grid detection: one full half subframe later, same cycle offset.
	f.OnDetection(999 + uint64(halfSubframeLen(num)*2))
	if f.Resyncs() != 0 {
		t.Fatalf("on-grid detection counted as resync (%d)", f.Resyncs())
	}

	f.OnDetection(999 + uint64(halfSubframeLen(num)*2) + 5)
	if f.Resyncs() != 1 {
		t.Fatalf("off-grid detection not counted, resyncs %d", f.Resyncs())
	}
}

func TestFrameSync_Watchdog(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFrameSync(num, false, 3000)

	pushN(f, 0, 500)
	f.OnDetection(499)
	pushN(f, 500, 1000)
	if f.State() != StateTracking {
		t.Fatalf("state %v before watchdog", f.State())
	}
	pushN(f, 1500, 3000)
	if f.State() != StateIdle {
		t.Fatalf("state %v, want IDLE after watchdog expiry", f.State())
	}
}

func TestFrameSync_SSBIndexAdvances(t *testing.T) {
	num := mustNumerology(t, 8)
	f := NewFrameSync(num, false, 0)
	if f.SSBIndex() != -1 {
		t.Fatalf("initial SSB index %d", f.SSBIndex())
	}
	pushN(f, 0, 500)
	f.OnDetection(499)
	wins := pushN(f, 500, 2*num.FFTLen)
	if f.SSBIndex() != 0 {
		t.Fatalf("SSB index %d after first detection", f.SSBIndex())
	}
	for _, w := range wins {
		if w.SymbolInSSB > 0 && w.SSBIndex != 0 {
			t.Fatalf("SSB window tagged with index %d", w.SSBIndex)
		}
	}
	f.OnDetection(499 + uint64(2*halfSubframeLen(num)))
	if f.SSBIndex() != 1 {
		t.Fatalf("SSB index %d after second detection", f.SSBIndex())
	}
}
