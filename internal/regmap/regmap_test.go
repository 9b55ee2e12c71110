package regmap

import "testing"

func TestBus_Routing(t *testing.T) {
	b := NewBus()
	b.Attach(0, NewFIFO(16))
	b.Attach(1, NewStatus())

	// The block order and aperture stride are external contracts: the
	// LLR FIFO answers at word address 0, the PSS detector one 16 KiB
	// aperture up.
	if BlockWords*4 != 1<<14 {
		t.Fatalf("aperture stride %d bytes, want %d", BlockWords*4, 1<<14)
	}
	if id, err := b.Read(0); err != nil || id != FIFOBlockID {
		t.Fatalf("FIFO ID read = %#x, %v", id, err)
	}
	if id, err := b.Read(1 * BlockWords); err != nil || id != PSSBlockID {
		t.Fatalf("status ID read = %#x, %v", id, err)
	}
	if _, err := b.Read(2 * BlockWords); err == nil {
		t.Fatal("read from unmapped aperture succeeded")
	}
	if err := b.Write(1*BlockWords+StatRegNid, 1); err == nil {
		t.Fatal("write to read-only register succeeded")
	}
}

func TestFIFO_LevelAndPop(t *testing.T) {
	f := NewFIFO(8)
	f.Push(10, 11, 12)

	if lvl, _ := f.ReadReg(fifoRegLevel); lvl != 3 {
		t.Fatalf("level %d, want 3", lvl)
	}
	for want := uint32(10); want <= 12; want++ {
		if got, _ := f.ReadReg(fifoRegPop); got != want {
			t.Fatalf("pop = %d, want %d", got, want)
		}
	}
	if lvl, _ := f.ReadReg(fifoRegLevel); lvl != 0 {
		t.Fatalf("level %d after draining", lvl)
	}

	// Empty pop returns zero and raises the empty flag.
	if got, _ := f.ReadReg(fifoRegPop); got != 0 {
		t.Fatalf("empty pop = %d", got)
	}
	if flags, _ := f.ReadReg(fifoRegFlags); flags&FIFOFlagEmpty == 0 {
		t.Fatal("empty flag not set")
	}
}

func TestFIFO_OverflowIsStickyAndCounted(t *testing.T) {
	f := NewFIFO(4)
	f.Push(1, 2, 3, 4, 5, 6)

	over, dropped := f.Overflowed()
	if !over || dropped != 2 {
		t.Fatalf("overflow %v dropped %d, want true 2", over, dropped)
	}
	// The queue keeps the oldest words; overflow drops the newest.
	if got, _ := f.Pop(); got != 1 {
		t.Fatalf("head = %d after overflow, want 1", got)
	}

	// Draining does not clear the sticky flag; a flag write does.
	for {
		if _, ok := f.Pop(); !ok {
			break
		}
	}
	if over, _ := f.Overflowed(); !over {
		t.Fatal("overflow flag cleared by draining")
	}
	if !f.WriteReg(fifoRegFlags, FIFOFlagOverflow) {
		t.Fatal("flags register rejected write")
	}
	if over, _ := f.Overflowed(); over {
		t.Fatal("overflow flag survived clear")
	}
	if _, dropped := f.Overflowed(); dropped != 2 {
		t.Fatal("drop count lost on flag clear")
	}
}

func TestStatus_SnapshotAndRegisters(t *testing.T) {
	s := NewStatus()

	snap := s.Snapshot()
	if snap.Nid != -1 || snap.Nid2 != -1 || snap.Ibar != -1 {
		t.Fatalf("fresh snapshot reports values: %+v", snap)
	}

	s.RecordDetection(2, 0x123456789a, -1437.25)
	s.RecordCell(626)
	s.RecordIbar(3)
	s.RecordState(2)
	s.RecordResync()

	snap = s.Snapshot()
	if snap.Nid2 != 2 || snap.Nid != 626 || snap.Ibar != 3 || snap.Detections != 1 {
		t.Fatalf("snapshot %+v", snap)
	}
	if snap.CFOHz < -1437.3 || snap.CFOHz > -1437.2 {
		t.Fatalf("CFO %.3f, want -1437.25", snap.CFOHz)
	}

	if v, _ := s.ReadReg(StatRegCFO); int32(v) != -1437250 {
		t.Fatalf("CFO register %d, want -1437250 milli-Hz", int32(v))
	}
	lo, _ := s.ReadReg(StatRegPeakLo)
	hi, _ := s.ReadReg(StatRegPeakHi)
	if got := uint64(hi)<<32 | uint64(lo); got != 0x123456789a {
		t.Fatalf("peak power %#x", got)
	}
	if v, _ := s.ReadReg(StatRegResyncs); v != 1 {
		t.Fatalf("resyncs %d", v)
	}
}

func TestStatus_ControlWrites(t *testing.T) {
	s := NewStatus()
	var gotReg int
	var gotVal uint32
	s.OnControl = func(reg int, val uint32) { gotReg, gotVal = reg, val }

	if err := NewBus().Write(0, 0); err == nil {
		t.Fatal("write on empty bus succeeded")
	}
	b := NewBus()
	b.Attach(1, s)
	if err := b.Write(1*BlockWords+StatRegShift, 3); err != nil {
		t.Fatal(err)
	}
	if gotReg != StatRegShift || gotVal != 3 {
		t.Fatalf("control callback saw reg %d val %d", gotReg, gotVal)
	}
	if v, _ := s.ReadReg(StatRegShift); v != 3 {
		t.Fatalf("shift register %d", v)
	}
}

func TestPackLLR(t *testing.T) {
	if got := PackLLR(-3, true); got != (LLRTagPBCH | 0xfd) {
		t.Fatalf("PackLLR(-3, pbch) = %#x", got)
	}
	if got := PackLLR(127, false); got != 0x7f {
		t.Fatalf("PackLLR(127) = %#x", got)
	}
}
