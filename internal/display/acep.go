package display

import (
	"fmt"
	"time"

	"github.com/ayusman/paperframe/internal/quantize"
)

// Pins holds the GPIO assignment for an ACeP panel.
type Pins struct {
	Reset int
	DC    int // data/command select
	Busy  int
}

// DefaultPins is the stock HAT wiring on all three supported boards.
var DefaultPins = Pins{Reset: 17, DC: 25, Busy: 24}

// ACeP command set (UC8159-class controller).
const (
	cmdPanelSetting   = 0x00
	cmdPowerOn        = 0x04
	cmdPowerOff       = 0x02
	cmdDeepSleep      = 0x07
	cmdDataStart      = 0x10
	cmdDisplayRefresh = 0x12
)

// readyPollInterval is how often the busy line is sampled while waiting.
const readyPollInterval = 10 * time.Millisecond

// ACePDriver drives a 7-color ACeP e-paper panel over a Platform bus.
type ACePDriver struct {
	platform Platform
	pins     Pins
	width    int
	height   int
}

// NewACeP creates a driver for a panel of the given geometry.
func NewACeP(platform Platform, pins Pins, width, height int) *ACePDriver {
	return &ACePDriver{platform: platform, pins: pins, width: width, height: height}
}

// Init resets the panel and writes the panel configuration.
func (d *ACePDriver) Init() error {
	d.Reset()
	if err := d.WaitReady(2 * time.Second); err != nil {
		return fmt.Errorf("display: panel did not come up: %w", err)
	}
	d.SendCommand(cmdPanelSetting)
	d.SendData([]byte{0xEF, 0x08})
	d.SendCommand(cmdPowerOn)
	return d.WaitReady(5 * time.Second)
}

// Reset pulses the reset line.
func (d *ACePDriver) Reset() {
	_ = d.platform.SetPin(d.pins.Reset, true)
	time.Sleep(20 * time.Millisecond)
	_ = d.platform.SetPin(d.pins.Reset, false)
	time.Sleep(2 * time.Millisecond)
	_ = d.platform.SetPin(d.pins.Reset, true)
	time.Sleep(20 * time.Millisecond)
}

// SendCommand writes one command byte with DC low.
func (d *ACePDriver) SendCommand(cmd byte) {
	_ = d.platform.SetPin(d.pins.DC, false)
	_ = d.platform.SPIWrite([]byte{cmd})
}

// SendData writes a payload with DC high.
func (d *ACePDriver) SendData(data []byte) {
	_ = d.platform.SetPin(d.pins.DC, true)
	_ = d.platform.SPIWrite(data)
}

// WaitReady polls the busy line until it clears or timeout elapses. The
// bound keeps a wedged panel from stalling the whole refresh loop.
func (d *ACePDriver) WaitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		busy, err := d.platform.ReadPin(d.pins.Busy)
		if err != nil {
			return fmt.Errorf("display: busy line: %w", err)
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: busy for %v", ErrNotReady, timeout)
		}
		time.Sleep(readyPollInterval)
	}
}

// Display pushes a packed frame and runs the refresh waveform. The refresh
// itself can take tens of seconds on ACeP panels.
func (d *ACePDriver) Display(buf *quantize.Buffer) error {
	want := (d.width*d.height*quantize.BitsPerPixel + 7) / 8
	if buf.Width != d.width || buf.Height != d.height || len(buf.Pix) != want {
		return fmt.Errorf("display: frame %dx%d (%d bytes) does not match panel %dx%d",
			buf.Width, buf.Height, len(buf.Pix), d.width, d.height)
	}

	d.SendCommand(cmdDataStart)
	d.SendData(buf.Pix)
	d.SendCommand(cmdDisplayRefresh)
	return d.WaitReady(40 * time.Second)
}

// Clear fills the whole panel with one palette index.
func (d *ACePDriver) Clear(fill byte) error {
	packed := fill<<4 | fill&0x0F
	frame := make([]byte, (d.width*d.height*quantize.BitsPerPixel+7)/8)
	for i := range frame {
		frame[i] = packed
	}
	d.SendCommand(cmdDataStart)
	d.SendData(frame)
	d.SendCommand(cmdDisplayRefresh)
	return d.WaitReady(40 * time.Second)
}

// Sleep powers the panel down until the next Reset.
func (d *ACePDriver) Sleep() {
	d.SendCommand(cmdPowerOff)
	d.SendCommand(cmdDeepSleep)
	d.SendData([]byte{0xA5})
}
