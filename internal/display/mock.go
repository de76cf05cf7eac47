package display

import (
	"sync"
	"time"

	"github.com/ayusman/paperframe/internal/quantize"
)

// MockDriver is an in-memory Driver for tests and for running the daemon on
// a machine without a panel. It records every displayed frame.
type MockDriver struct {
	mu       sync.Mutex
	inited   bool
	frames   []*quantize.Buffer
	commands []byte
	slept    bool

	// FailInit and FailDisplay inject hardware failures.
	FailInit    error
	FailDisplay error
	// BusyFor makes WaitReady report not-ready for calls with a shorter
	// timeout.
	BusyFor time.Duration
}

// NewMockDriver creates an idle mock panel.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// Init marks the panel initialized.
func (d *MockDriver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailInit != nil {
		return d.FailInit
	}
	d.inited = true
	return nil
}

// Reset is a no-op.
func (d *MockDriver) Reset() {}

// SendCommand records the command byte.
func (d *MockDriver) SendCommand(cmd byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, cmd)
}

// SendData is a no-op.
func (d *MockDriver) SendData(data []byte) {}

// WaitReady honors the configured busy window.
func (d *MockDriver) WaitReady(timeout time.Duration) error {
	d.mu.Lock()
	busy := d.BusyFor
	d.mu.Unlock()
	if busy > timeout {
		return ErrNotReady
	}
	return nil
}

// Display records the frame.
func (d *MockDriver) Display(buf *quantize.Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailDisplay != nil {
		return d.FailDisplay
	}
	d.frames = append(d.frames, buf)
	return nil
}

// Clear records nothing and succeeds.
func (d *MockDriver) Clear(fill byte) error { return nil }

// Sleep marks the panel asleep.
func (d *MockDriver) Sleep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slept = true
}

// Frames returns every displayed frame in order.
func (d *MockDriver) Frames() []*quantize.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*quantize.Buffer(nil), d.frames...)
}

// LastFrame returns the most recently displayed frame, or nil.
func (d *MockDriver) LastFrame() *quantize.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return nil
	}
	return d.frames[len(d.frames)-1]
}

// Inited reports whether Init succeeded.
func (d *MockDriver) Inited() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inited
}
