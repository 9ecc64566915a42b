//go:build linux

package hwcmd

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/maemo32/awgserver/awgerr"
)

// regWindowSize is the 4 KiB register window size.
const regWindowSize = 4096

// dataRegOffset and wenRegOffset are the register offsets within their
// respective windows; offset 0x00 is DATA/VALUE on both windows (WEN lives
// in bit 0 of its window's value register).
const (
	dataRegOffset = 0x00
	wenRegOffset  = 0x00
)

// MmapConfig configures the "mmap" backend (the default: raw
// physical-memory windows opened via /dev/mem) and the "uio" backend
// (the same register layout through a kernel-allocated /dev/uioN node),
// letting a deployment switch between userspace mmap and UIO at
// compile/config time.
type MmapConfig struct {
	// DevicePath is "/dev/mem" for the mmap backend, or a discovered
	// "/dev/uioN" path for the uio backend.
	DevicePath string
	// DataBase and WenBase are physical (mmap backend) or UIO-relative
	// (uio backend, normally 0) offsets of the two register windows.
	DataBase int64
	WenBase  int64
	Polarity WenPolarity
}

type mmapRegion struct {
	data []byte
	reg  *uint32
}

// mmapBackend implements Backend by mmap'ing the two register windows and
// issuing volatile-style stores through atomic.StoreUint32, which (unlike
// a plain slice write) is guaranteed by the Go memory model not to be
// reordered or elided by the compiler. There is no higher-level library
// available for raw physical-register mmap; see DESIGN.md.
type mmapBackend struct {
	cfg MmapConfig

	fd   int
	data mmapRegion
	wen  mmapRegion
}

// NewMmapBackend returns the "mmap" or "uio" Backend; both are the same
// implementation parameterised by DevicePath.
func NewMmapBackend(cfg MmapConfig) Backend {
	return &mmapBackend{cfg: cfg, fd: -1}
}

func (b *mmapBackend) Init() error {
	fd, err := unix.Open(b.cfg.DevicePath, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", b.cfg.DevicePath, err, awgerr.HwUnavailable)
	}
	b.fd = fd

	data, err := b.mapWindow(b.cfg.DataBase)
	if err != nil {
		unix.Close(fd)
		b.fd = -1
		return err
	}
	b.data = data

	wen, err := b.mapWindow(b.cfg.WenBase)
	if err != nil {
		unix.Munmap(b.data.data)
		unix.Close(fd)
		b.fd = -1
		return err
	}
	b.wen = wen

	b.writeData(0)
	b.writeWen(b.inactiveWen())

	return nil
}

func (b *mmapBackend) mapWindow(base int64) (mmapRegion, error) {
	mem, err := unix.Mmap(b.fd, base, regWindowSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return mmapRegion{}, fmt.Errorf("mmap offset 0x%x: %w: %w", base, err, awgerr.HwUnavailable)
	}
	reg := (*uint32)(unsafe.Pointer(&mem[0]))
	return mmapRegion{data: mem, reg: reg}, nil
}

func (b *mmapBackend) inactiveWen() uint32 {
	if b.cfg.Polarity == ActiveLow {
		return 1
	}
	return 0
}

func (b *mmapBackend) activeWen() uint32 {
	if b.cfg.Polarity == ActiveLow {
		return 0
	}
	return 1
}

func (b *mmapBackend) writeData(v uint32) {
	atomic.StoreUint32(b.data.reg, v)
}

func (b *mmapBackend) writeWen(v uint32) {
	atomic.StoreUint32(b.wen.reg, v)
}

// SendWords implements the WRITE_DATA -> WEN_RISE -> WEN_FALL ordering for
// each word in turn, returning only after the last pulse has been driven.
func (b *mmapBackend) SendWords(words []uint32) error {
	for _, w := range words {
		b.writeData(w)
		b.writeWen(b.activeWen())
		b.writeWen(b.inactiveWen())
	}
	return nil
}

func (b *mmapBackend) Close() error {
	var firstErr error
	if b.data.data != nil {
		if err := unix.Munmap(b.data.data); err != nil {
			firstErr = err
		}
	}
	if b.wen.data != nil {
		if err := unix.Munmap(b.wen.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.fd >= 0 {
		if err := unix.Close(b.fd); err != nil && firstErr == nil {
			firstErr = err
		}
		b.fd = -1
	}
	return firstErr
}

// devMemPath is the canonical path for the "mmap" backend.
const devMemPath = "/dev/mem"

// defaultMmapConfig returns the default physical addresses against
// /dev/mem.
func defaultMmapConfig(polarity WenPolarity) MmapConfig {
	return MmapConfig{
		DevicePath: devMemPath,
		DataBase:   0x41200000,
		WenBase:    0x41210000,
		Polarity:   polarity,
	}
}
