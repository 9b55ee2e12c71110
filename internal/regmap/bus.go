// Package regmap implements the word-addressed control and status surface
// of the receiver. Functional blocks attach to a bus at fixed 4K-word
// apertures (16 KiB of byte address space each); the aperture order and
// the register indices inside each aperture are a stable contract with
// external consumers and must not be renumbered. The LLR FIFO sits at
// aperture 0, the PSS detector block at aperture 1.
package regmap

import "fmt"

// BlockWords is the aperture size of one block, in 32-bit words. The
// byte-address stride between blocks is 1<<14.
const BlockWords = 1 << 12

// Block identification words, read at register 0 of each aperture.
const (
	PSSBlockID  = 0x00010061
	FIFOBlockID = 0x00010069
)

// Block is one aperture's register file. Reads may have side effects
// (queue pops); writes to read-only registers report false.
type Block interface {
	ReadReg(reg int) (uint32, bool)
	WriteReg(reg int, val uint32) bool
}

// Bus routes word addresses to attached blocks. Address bits above the
// aperture select the block.
type Bus struct {
	blocks map[uint32]Block
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{blocks: make(map[uint32]Block)}
}

// Attach maps a block at the given aperture index.
func (b *Bus) Attach(index uint32, blk Block) {
	b.blocks[index] = blk
}

// Read performs a word-addressed read.
func (b *Bus) Read(addr uint32) (uint32, error) {
	blk, ok := b.blocks[addr/BlockWords]
	if !ok {
		return 0, fmt.Errorf("regmap: no block at address %#x", addr)
	}
	v, ok := blk.ReadReg(int(addr % BlockWords))
	if !ok {
		return 0, fmt.Errorf("regmap: register %#x is not readable", addr)
	}
	return v, nil
}

// Write performs a word-addressed write.
func (b *Bus) Write(addr, val uint32) error {
	blk, ok := b.blocks[addr/BlockWords]
	if !ok {
		return fmt.Errorf("regmap: no block at address %#x", addr)
	}
	if !blk.WriteReg(int(addr%BlockWords), val) {
		return fmt.Errorf("regmap: register %#x is not writable", addr)
	}
	return nil
}
