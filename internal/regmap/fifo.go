package regmap

import "sync"

// FIFO register layout. Register 7 pops one word per read; an empty pop
// returns zero with the empty flag raised on the flags register.
const (
	fifoRegID       = 0
	fifoRegCapacity = 1
	fifoRegFlags    = 2
	fifoRegDropped  = 3
	fifoRegLevel    = 5
	fifoRegPop      = 7
)

// Flag bits of the FIFO flags register.
const (
	FIFOFlagOverflow = 1 << 0 // sticky, write 1 to clear
	FIFOFlagEmpty    = 1 << 1 // state of the most recent pop
)

// LLR stream word encoding: the soft bit in the low byte, the payload
// type in the bit above it.
const (
	LLRTagPBCH = 1 << 8
)

// PackLLR encodes one soft bit as a stream word.
func PackLLR(llr int8, pbch bool) uint32 {
	w := uint32(uint8(llr))
	if pbch {
		w |= LLRTagPBCH
	}
	return w
}

// FIFO is a bounded word queue exposed as a register block. The producer
// side never blocks: words pushed against a full queue are dropped and
// accounted, and the overflow flag stays set until cleared through the
// flags register. Consumers poll the level register and pop.
type FIFO struct {
	mu       sync.Mutex
	buf      []uint32
	head     int
	count    int
	overflow bool
	empty    bool
	dropped  uint64
}

// NewFIFO creates a queue holding up to capacity words.
func NewFIFO(capacity int) *FIFO {
	return &FIFO{buf: make([]uint32, capacity)}
}

// Push appends words, dropping whatever exceeds the free space.
func (f *FIFO) Push(words ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range words {
		if f.count == len(f.buf) {
			f.overflow = true
			f.dropped++
			continue
		}
		f.buf[(f.head+f.count)%len(f.buf)] = w
		f.count++
	}
}

// Level returns the current occupancy.
func (f *FIFO) Level() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Pop removes and returns the oldest word.
func (f *FIFO) Pop() (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pop()
}

func (f *FIFO) pop() (uint32, bool) {
	if f.count == 0 {
		f.empty = true
		return 0, false
	}
	f.empty = false
	w := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.count--
	return w, true
}

// Overflowed reports the sticky overflow flag and the drop count.
func (f *FIFO) Overflowed() (bool, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overflow, f.dropped
}

// ReadReg implements Block.
func (f *FIFO) ReadReg(reg int) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch reg {
	case fifoRegID:
		return FIFOBlockID, true
	case fifoRegCapacity:
		return uint32(len(f.buf)), true
	case fifoRegFlags:
		var v uint32
		if f.overflow {
			v |= FIFOFlagOverflow
		}
		if f.empty {
			v |= FIFOFlagEmpty
		}
		return v, true
	case fifoRegDropped:
		return uint32(f.dropped), true
	case fifoRegLevel:
		return uint32(f.count), true
	case fifoRegPop:
		w, _ := f.pop()
		return w, true
	}
	return 0, false
}

// WriteReg implements Block. Only the flags register accepts writes, to
// clear the sticky overflow bit.
func (f *FIFO) WriteReg(reg int, val uint32) bool {
	if reg != fifoRegFlags {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if val&FIFOFlagOverflow != 0 {
		f.overflow = false
	}
	return true
}
