// Package capture provides the receiver's sample sources: raw I/Q capture
// files and stereo line input through PortAudio, with optional rate
// conversion down to the pipeline rate.
package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/playsdr/nrsync/internal/fixed"
)

// railLimit is the largest sample magnitude accepted from a source.
// Samples at the rail are a producer fault (clipped capture) and are
// counted instead of silently passed on.
const railLimit = 32767

// Source delivers blocks of complex samples. ReadBlock returns io.EOF
// when the source is exhausted.
type Source interface {
	ReadBlock() ([]fixed.IQ, error)
	Close() error
}

const fileBlockSamples = 4096

// FileSource reads a raw capture: interleaved little-endian int16 I/Q
// pairs, no header.
type FileSource struct {
	f       *os.File
	raw     []byte
	clipped uint64
}

// OpenFile opens a raw capture file.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &FileSource{f: f, raw: make([]byte, 4*fileBlockSamples)}, nil
}

// ReadBlock returns the next block of samples.
func (s *FileSource) ReadBlock() ([]fixed.IQ, error) {
	n, err := io.ReadFull(s.f, s.raw)
	if err == io.ErrUnexpectedEOF {
		n -= n % 4
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}

	block := make([]fixed.IQ, n/4)
	for i := range block {
		block[i] = fixed.IQ{
			I: int16(binary.LittleEndian.Uint16(s.raw[4*i:])),
			Q: int16(binary.LittleEndian.Uint16(s.raw[4*i+2:])),
		}
		if !fixed.CheckRange(block[i], railLimit-1) {
			s.clipped++
		}
	}
	return block, nil
}

// Clipped returns how many samples sat on the rail.
func (s *FileSource) Clipped() uint64 { return s.clipped }

// Close closes the file.
func (s *FileSource) Close() error { return s.f.Close() }
