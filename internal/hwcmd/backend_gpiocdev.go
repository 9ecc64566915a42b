//go:build linux

package hwcmd

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/maemo32/awgserver/awgerr"
)

// gpioLine is the slice of *gpiocdev.Line this backend needs, narrowed to
// an interface so tests can substitute a fake line.
type gpioLine interface {
	SetValue(v int) error
	Close() error
}

// GpiocdevConfig configures the bit-banged GPIO backend: WEN on its own
// line, and optionally the low bits of DATA on individual lines for small
// bring-up rigs that have no AXI GPIO core at all.
type GpiocdevConfig struct {
	Chip        string // e.g. "gpiochip0"
	WenOffset   int
	DataOffsets []int // len(DataOffsets) lines, bit i <-> DataOffsets[i]
	Polarity    WenPolarity
}

type gpiocdevBackend struct {
	cfg      GpiocdevConfig
	wen      gpioLine
	dataBits []gpioLine
	requestFn func(chip string, offset int, initial int) (gpioLine, error)
}

// NewGpiocdevBackend returns the "gpiocdev" Backend.
func NewGpiocdevBackend(cfg GpiocdevConfig) Backend {
	return &gpiocdevBackend{cfg: cfg, requestFn: requestOutputLine}
}

func requestOutputLine(chip string, offset int, initial int) (gpioLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (b *gpiocdevBackend) Init() error {
	inactive := 0
	if b.cfg.Polarity == ActiveLow {
		inactive = 1
	}

	wen, err := b.requestFn(b.cfg.Chip, b.cfg.WenOffset, inactive)
	if err != nil {
		return fmt.Errorf("gpiocdev: request wen line %d on %s: %w: %w", b.cfg.WenOffset, b.cfg.Chip, err, awgerr.HwUnavailable)
	}
	b.wen = wen

	b.dataBits = make([]gpioLine, len(b.cfg.DataOffsets))
	for i, off := range b.cfg.DataOffsets {
		line, err := b.requestFn(b.cfg.Chip, off, 0)
		if err != nil {
			b.closeRequested(i)
			return fmt.Errorf("gpiocdev: request data line %d on %s: %w: %w", off, b.cfg.Chip, err, awgerr.HwUnavailable)
		}
		b.dataBits[i] = line
	}

	return nil
}

func (b *gpiocdevBackend) closeRequested(upTo int) {
	if b.wen != nil {
		b.wen.Close()
	}
	for i := 0; i < upTo; i++ {
		if b.dataBits[i] != nil {
			b.dataBits[i].Close()
		}
	}
}

func (b *gpiocdevBackend) writeData(w uint32) error {
	for i, line := range b.dataBits {
		bit := int((w >> uint(i)) & 1)
		if err := line.SetValue(bit); err != nil {
			return err
		}
	}
	return nil
}

func (b *gpiocdevBackend) wenLevels() (active, inactive int) {
	if b.cfg.Polarity == ActiveLow {
		return 0, 1
	}
	return 1, 0
}

// SendWords drives the configured DATA lines (if any; a pure-WEN rig with
// an external word source may configure zero DataOffsets) then pulses WEN,
// one word at a time, in order.
func (b *gpiocdevBackend) SendWords(words []uint32) error {
	active, inactive := b.wenLevels()
	for _, w := range words {
		if err := b.writeData(w); err != nil {
			return err
		}
		if err := b.wen.SetValue(active); err != nil {
			return err
		}
		if err := b.wen.SetValue(inactive); err != nil {
			return err
		}
	}
	return nil
}

func (b *gpiocdevBackend) Close() error {
	var firstErr error
	if b.wen != nil {
		if err := b.wen.Close(); err != nil {
			firstErr = err
		}
	}
	for _, line := range b.dataBits {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
