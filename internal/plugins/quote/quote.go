// Package quote is the builtin quote-of-the-day content provider.
package quote

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"time"

	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/plugins/card"
)

type entry struct {
	text   string
	author string
}

var quotes = []entry{
	{"The best way to predict the future is to invent it.", "Alan Kay"},
	{"Simplicity is prerequisite for reliability.", "Edsger Dijkstra"},
	{"Make it work, make it right, make it fast.", "Kent Beck"},
	{"Deleted code is debugged code.", "Jeff Sickel"},
	{"A little copying is better than a little dependency.", "Rob Pike"},
	{"The cheapest, fastest, and most reliable components are those that aren't there.", "Gordon Bell"},
	{"Controlling complexity is the essence of computer programming.", "Brian Kernighan"},
	{"Weeks of coding can save you hours of planning.", "Unknown"},
	{"Programs must be written for people to read.", "Harold Abelson"},
	{"First, solve the problem. Then, write the code.", "John Johnson"},
	{"There is no silver bullet.", "Fred Brooks"},
	{"Measure twice, cut once.", "Proverb"},
}

// dailyTTL keeps a daily quote cached until the date-scoped key rolls over.
const dailyTTL = 86400 * time.Second

// Meta describes the provider for registration.
func Meta() plugin.Metadata {
	return plugin.Metadata{
		ID:          "quote",
		DisplayName: "Quote of the Day",
		ClassName:   "Quote",
		Version:     "1.0",
		Author:      "paperframe",
		Description: "Shows a quote, either one per day or a fresh random pick per refresh.",
	}
}

// Plugin implements the quote provider.
type Plugin struct {
	// Now is the clock source, replaceable in tests.
	Now func() time.Time
}

// New creates the provider.
func New() *Plugin {
	return &Plugin{Now: time.Now}
}

// ValidateSettings accepts an optional variant of "daily" or "random".
func (p *Plugin) ValidateSettings(settings plugin.Settings) error {
	switch settings["variant"] {
	case "", "daily", "random":
		return nil
	default:
		return fmt.Errorf("quote: variant must be daily or random, got %q", settings["variant"])
	}
}

// GenerateImage renders the selected quote at the device geometry.
func (p *Plugin) GenerateImage(ctx context.Context, settings plugin.Settings, device plugin.DeviceConfig) (image.Image, error) {
	var q entry
	if settings["variant"] == "random" {
		q = quotes[rand.Intn(len(quotes))]
	} else {
		q = quotes[p.Now().YearDay()%len(quotes)]
	}

	lines := card.Wrap(q.text, device.Width/10)
	lines = append(lines, "", "- "+q.author)

	img := card.New(device.Width, device.Height, color.White)
	card.Center(img, lines, color.Black)
	return img, nil
}

// CacheKey scopes the daily variant to the calendar day so the fingerprint
// is stable across refreshes within one day and rolls over at midnight.
func (p *Plugin) CacheKey(settings plugin.Settings) string {
	if settings["variant"] == "random" {
		return "quote:random"
	}
	return "quote:daily:" + p.Now().Format("2006-01-02")
}

// CacheTTL is one day for the daily variant and zero for random picks.
func (p *Plugin) CacheTTL(settings plugin.Settings) time.Duration {
	if settings["variant"] == "random" {
		return 0
	}
	return dailyTTL
}

// OnEnable is a no-op.
func (p *Plugin) OnEnable(settings plugin.Settings) error { return nil }

// OnDisable is a no-op.
func (p *Plugin) OnDisable(settings plugin.Settings) error { return nil }
