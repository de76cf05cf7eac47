// Package display abstracts the e-paper hardware behind a fixed driver
// capability. The register-level panel protocol stays inside concrete
// drivers; the pipeline only sees Driver.
package display

import (
	"errors"
	"time"

	"github.com/ayusman/paperframe/internal/quantize"
)

// ErrNotReady is returned when the panel's busy line does not clear within
// the wait timeout.
var ErrNotReady = errors.New("display: panel not ready")

// Driver is the hardware refresh capability the render pipeline consumes.
// Implementations are hardware-specific and selected once at process start.
//
// A Display call drives a full physical refresh sequence; it is never
// aborted mid-flight, because interrupting an e-paper waveform can leave
// visible artifacts on the panel.
type Driver interface {
	// Init powers up and configures the panel. Failure here is fatal to
	// the process; every later failure is contained per refresh.
	Init() error
	// Reset pulses the hardware reset line.
	Reset()
	// SendCommand writes a single command byte.
	SendCommand(cmd byte)
	// SendData writes a data payload for the preceding command.
	SendData(data []byte)
	// WaitReady blocks until the panel is idle or the timeout elapses,
	// returning ErrNotReady on timeout.
	WaitReady(timeout time.Duration) error
	// Display pushes a packed frame and runs the refresh waveform.
	Display(buf *quantize.Buffer) error
	// Clear fills the panel with the palette entry at fill.
	Clear(fill byte) error
	// Sleep puts the panel into deep sleep until the next Reset.
	Sleep()
}
