package hwcmd

import (
	"fmt"
	"sync"

	"github.com/maemo32/awgserver/awgerr"
)

// WenPolarity selects the idle level of the WEN strobe.
type WenPolarity int

const (
	// ActiveHigh means WEN idles low and pulses high (the default).
	ActiveHigh WenPolarity = iota
	ActiveLow
)

// Backend is the narrow write path to the peripheral: drive DATA, then
// pulse WEN once per word. Implementations must not reorder words or
// insert extra WEN edges, and SendWords must only return once every WEN
// pulse for the given words has been driven.
//
// A Backend is not safe for concurrent use by multiple goroutines; Device
// below supplies the single-writer guarantee the peripheral requires.
type Backend interface {
	// Init maps the peripheral, drives DATA to 0, and drives WEN to its
	// inactive polarity. Returns an error wrapping awgerr.HwUnavailable
	// on failure.
	Init() error
	// SendWords drives each word across DATA and pulses WEN once,
	// synchronously, in order.
	SendWords(words []uint32) error
	// Close unmaps the peripheral and releases any backing descriptor.
	Close() error
}

// Device wraps a Backend with the HW mutex the direct server and the
// player must share: the two must never call SendWords concurrently. All
// exported methods take the lock for their full duration, including the
// word-by-word WEN toggling inside SendWords, so a caller never observes
// an interleaved word sequence from a concurrent writer.
type Device struct {
	mu      sync.Mutex
	backend Backend
	mirror  Mirror
}

// Mirror taps every word actually driven to the peripheral, for a console
// mirror or similar diagnostic consumer. Mirror errors are not propagated:
// a stuck or absent console reader must never block the control path.
type Mirror interface {
	Write(word uint32) error
}

// NewDevice wraps backend with the single-writer mutex. Init must still be
// called before use.
func NewDevice(backend Backend) *Device {
	return &Device{backend: backend}
}

// SetMirror installs mirror as the Device's diagnostic tap; nil disables
// mirroring.
func (d *Device) SetMirror(mirror Mirror) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mirror = mirror
}

func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.Init(); err != nil {
		return fmt.Errorf("hwcmd: init: %w: %w", err, awgerr.HwUnavailable)
	}
	return nil
}

// SendWords drives words across DATA+WEN in order, holding the HW mutex
// for the whole call so no interleaving with another writer is possible.
func (d *Device) SendWords(words []uint32) error {
	if len(words) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.SendWords(words); err != nil {
		return fmt.Errorf("hwcmd: send_words: %w", awgerr.Io)
	}

	if d.mirror != nil {
		for _, w := range words {
			d.mirror.Write(w)
		}
	}
	return nil
}

// ZeroOutput writes GAIN=0 to every (channel, tone) pair followed by one
// COMMIT.
func (d *Device) ZeroOutput() error {
	return d.SendWords(ZeroGainFrame())
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.backend.Close()
}
