// Package clock is the builtin clock content provider: a card with the
// current time and date. Its output changes every minute, so it opts out
// of caching entirely.
package clock

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/plugins/card"
)

// Meta describes the provider for registration.
func Meta() plugin.Metadata {
	return plugin.Metadata{
		ID:          "clock",
		DisplayName: "Clock",
		ClassName:   "Clock",
		Version:     "1.0",
		Author:      "paperframe",
		Description: "Shows the current time and date.",
	}
}

// Plugin implements the clock provider.
type Plugin struct {
	// Now is the clock source, replaceable in tests.
	Now func() time.Time
}

// New creates the provider.
func New() *Plugin {
	return &Plugin{Now: time.Now}
}

// ValidateSettings accepts an optional time_format of "12h" or "24h".
func (p *Plugin) ValidateSettings(settings plugin.Settings) error {
	switch settings["time_format"] {
	case "", "12h", "24h":
		return nil
	default:
		return fmt.Errorf("clock: time_format must be 12h or 24h, got %q", settings["time_format"])
	}
}

// GenerateImage renders the time card at the device geometry.
func (p *Plugin) GenerateImage(ctx context.Context, settings plugin.Settings, device plugin.DeviceConfig) (image.Image, error) {
	now := p.Now()

	layout := "15:04"
	if settings["time_format"] == "12h" {
		layout = "3:04 PM"
	}

	img := card.New(device.Width, device.Height, color.White)
	card.Center(img, []string{
		now.Format(layout),
		now.Format("Monday, January 2"),
	}, color.Black)
	return img, nil
}

// CacheKey is constant; paired with a zero TTL it is never looked up.
func (p *Plugin) CacheKey(settings plugin.Settings) string { return "clock" }

// CacheTTL is zero: the card is regenerated on every refresh.
func (p *Plugin) CacheTTL(settings plugin.Settings) time.Duration { return 0 }

// OnEnable is a no-op.
func (p *Plugin) OnEnable(settings plugin.Settings) error { return nil }

// OnDisable is a no-op.
func (p *Plugin) OnDisable(settings plugin.Settings) error { return nil }
