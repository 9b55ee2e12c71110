package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/playsdr/nrsync/internal/fixed"
)

const audioFramesPerBuf = 2048

// Init initializes PortAudio. Call once before opening audio sources.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// AudioSource captures I/Q from a stereo input: left channel is I, right
// channel is Q, the common wiring for sound-card level converters.
type AudioSource struct {
	stream  *portaudio.Stream
	buf     []int16
	mu      sync.Mutex
	clipped uint64
}

// OpenAudio opens a stereo input stream at the given rate. device selects
// an input by substring match on its name; empty picks the default.
func OpenAudio(device string, rate float64) (*AudioSource, error) {
	s := &AudioSource{buf: make([]int16, 2*audioFramesPerBuf)}

	var err error
	if device == "" {
		s.stream, err = portaudio.OpenDefaultStream(2, 0, rate, audioFramesPerBuf, s.buf)
		if err != nil {
			return nil, fmt.Errorf("capture: open default input: %w", err)
		}
	} else {
		info, ferr := findInputDevice(device)
		if ferr != nil {
			return nil, ferr
		}
		params := portaudio.LowLatencyParameters(info, nil)
		params.Input.Channels = 2
		params.SampleRate = rate
		params.FramesPerBuffer = audioFramesPerBuf
		s.stream, err = portaudio.OpenStream(params, s.buf)
		if err != nil {
			return nil, fmt.Errorf("capture: open %q: %w", info.Name, err)
		}
	}
	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	return s, nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	for _, d := range devices {
		if d.MaxInputChannels >= 2 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("capture: no stereo input device matches %q", name)
}

// ReadBlock returns the next block of captured samples.
func (s *AudioSource) ReadBlock() ([]fixed.IQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("capture: read: %w", err)
	}
	block := make([]fixed.IQ, audioFramesPerBuf)
	for i := range block {
		block[i] = fixed.IQ{I: s.buf[2*i], Q: s.buf[2*i+1]}
		if !fixed.CheckRange(block[i], railLimit-1) {
			s.clipped++
		}
	}
	return block, nil
}

// Clipped returns how many samples sat on the rail.
func (s *AudioSource) Clipped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipped
}

// Close stops and closes the stream.
func (s *AudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

// ListInputs prints the available input devices.
func ListInputs() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("capture: list devices: %w", err)
	}
	fmt.Println("Input devices:")
	n := 0
	for _, d := range devices {
		if d.MaxInputChannels < 2 {
			continue
		}
		fmt.Printf("  %s (channels:%d rate:%.0f)\n", d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		n++
	}
	if n == 0 {
		fmt.Println("  (no stereo inputs found)")
	}
	return nil
}
