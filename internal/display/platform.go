package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Platform is the board-level bus access a panel driver needs: GPIO lines
// for reset/data-command/busy and an SPI write path. A platform value is
// constructed once at startup and injected into the driver; nothing in this
// package rebinds hardware bindings globally.
type Platform interface {
	Name() string
	SetPin(pin int, high bool) error
	ReadPin(pin int) (bool, error)
	SPIWrite(data []byte) error
	Close() error
}

// Detect probes the board model and returns the matching platform.
// Probing reads the device-tree model string, the same signal the vendor
// tooling uses, but the result is returned as a value rather than bound
// into a process-wide namespace.
func Detect() (Platform, error) {
	model, err := os.ReadFile("/proc/device-tree/model")
	if err != nil {
		return nil, fmt.Errorf("display: probe board model: %w", err)
	}
	return platformForModel(string(model))
}

func platformForModel(model string) (Platform, error) {
	switch {
	case strings.Contains(model, "Raspberry Pi"):
		return newSysfsPlatform("raspberry-pi", "/dev/spidev0.0"), nil
	case strings.Contains(model, "NVIDIA Jetson"):
		return newSysfsPlatform("jetson", "/dev/spidev0.0"), nil
	case strings.Contains(model, "Hobot X3"), strings.Contains(model, "Sunrise X3"):
		return newSysfsPlatform("sunrise-x3", "/dev/spidev2.0"), nil
	default:
		return nil, fmt.Errorf("display: unsupported board %q", strings.TrimRight(model, "\x00\n"))
	}
}

// sysfsPlatform drives GPIO through the sysfs interface and SPI through a
// spidev character device. All three supported boards expose both.
type sysfsPlatform struct {
	name     string
	spiPath  string
	gpioRoot string
	exported map[int]bool
}

func newSysfsPlatform(name, spiPath string) *sysfsPlatform {
	return &sysfsPlatform{
		name:     name,
		spiPath:  spiPath,
		gpioRoot: "/sys/class/gpio",
		exported: make(map[int]bool),
	}
}

func (p *sysfsPlatform) Name() string { return p.name }

func (p *sysfsPlatform) export(pin int) error {
	if p.exported[pin] {
		return nil
	}
	pinDir := filepath.Join(p.gpioRoot, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(pinDir); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(p.gpioRoot, "export"), []byte(strconv.Itoa(pin)), 0644); err != nil {
			return fmt.Errorf("display: export gpio %d: %w", pin, err)
		}
	}
	p.exported[pin] = true
	return nil
}

// SetPin drives an output line high or low.
func (p *sysfsPlatform) SetPin(pin int, high bool) error {
	if err := p.export(pin); err != nil {
		return err
	}
	base := filepath.Join(p.gpioRoot, fmt.Sprintf("gpio%d", pin))
	if err := os.WriteFile(filepath.Join(base, "direction"), []byte("out"), 0644); err != nil {
		return fmt.Errorf("display: direction gpio %d: %w", pin, err)
	}
	v := "0"
	if high {
		v = "1"
	}
	if err := os.WriteFile(filepath.Join(base, "value"), []byte(v), 0644); err != nil {
		return fmt.Errorf("display: write gpio %d: %w", pin, err)
	}
	return nil
}

// ReadPin samples an input line.
func (p *sysfsPlatform) ReadPin(pin int) (bool, error) {
	if err := p.export(pin); err != nil {
		return false, err
	}
	base := filepath.Join(p.gpioRoot, fmt.Sprintf("gpio%d", pin))
	if err := os.WriteFile(filepath.Join(base, "direction"), []byte("in"), 0644); err != nil {
		return false, fmt.Errorf("display: direction gpio %d: %w", pin, err)
	}
	raw, err := os.ReadFile(filepath.Join(base, "value"))
	if err != nil {
		return false, fmt.Errorf("display: read gpio %d: %w", pin, err)
	}
	return strings.TrimSpace(string(raw)) == "1", nil
}

// SPIWrite pushes data to the panel over the spidev device.
func (p *sysfsPlatform) SPIWrite(data []byte) error {
	f, err := os.OpenFile(p.spiPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("display: open spi: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("display: spi write: %w", err)
	}
	return nil
}

// Close releases exported GPIO lines.
func (p *sysfsPlatform) Close() error {
	for pin := range p.exported {
		_ = os.WriteFile(filepath.Join(p.gpioRoot, "unexport"), []byte(strconv.Itoa(pin)), 0644)
	}
	p.exported = make(map[int]bool)
	return nil
}
