// Package preview plays a bench tone over the host's audio output so an
// operator can audibly confirm a tone/channel assignment before trusting
// it to real hardware. It is a diagnostic convenience only: nothing here
// feeds the DDS/LUT synthesis path, which lives entirely in the FPGA.
package preview

import (
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"
)

const (
	sampleRate      = 44100
	framesPerBuffer = 512
)

// Player opens the default portaudio output stream once and replays
// generated tones on demand, writing in framesPerBuffer-sized chunks
// through a single reusable buffer bound at stream-open time.
type Player struct {
	stream *portaudio.Stream
	buf    []float32
}

// Open initialises portaudio and opens the default mono output stream.
func Open() (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("preview: portaudio init: %w", err)
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, framesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("preview: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("preview: start stream: %w", err)
	}

	return &Player{stream: stream, buf: buf}, nil
}

// PlayTone generates durationSec of a sine at freqHz and amplitude (0..1)
// and writes it to the output stream in framesPerBuffer chunks, blocking
// until done.
func (p *Player) PlayTone(freqHz float64, amplitude float32, durationSec float64) error {
	total := int(durationSec * sampleRate)
	sample := 0

	for sample < total {
		n := len(p.buf)
		if remaining := total - sample; remaining < n {
			n = remaining
		}
		for i := 0; i < n; i++ {
			t := float64(sample+i) / sampleRate
			p.buf[i] = amplitude * float32(math.Sin(2*math.Pi*freqHz*t))
		}
		for i := n; i < len(p.buf); i++ {
			p.buf[i] = 0
		}

		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("preview: write: %w", err)
		}
		sample += n
	}
	return nil
}

// Close stops the stream and releases portaudio.
func (p *Player) Close() error {
	p.stream.Stop()
	err := p.stream.Close()
	portaudio.Terminate()
	return err
}
