package hwcmd

import "sync"

// FakeBackend is an in-memory Backend used by tests in this module and in
// packages that depend on hwcmd (playlist, netsrv) to assert on exactly
// which words were driven and in what order, without requiring real
// hardware or root to open /dev/mem. It mirrors the recording style of a
// mock GPIO line generalised from a single output line to the full
// word-level contract of the peripheral.
type FakeBackend struct {
	mu     sync.Mutex
	words  []uint32
	wens   int // count of WEN pulse pairs driven
	closed bool
	inited bool

	// InitErr, if set, is returned by Init instead of succeeding.
	InitErr error
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

func (f *FakeBackend) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		return f.InitErr
	}
	f.inited = true
	return nil
}

func (f *FakeBackend) SendWords(words []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = append(f.words, words...)
	f.wens += len(words)
	return nil
}

func (f *FakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Words returns a copy of every word driven so far, in order.
func (f *FakeBackend) Words() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint32, len(f.words))
	copy(out, f.words)
	return out
}

// WenPulses returns the number of WEN pulse pairs driven, which must equal
// the number of words driven.
func (f *FakeBackend) WenPulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wens
}

func (f *FakeBackend) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
