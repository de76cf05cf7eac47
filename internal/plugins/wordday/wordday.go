// Package wordday is the builtin word-of-the-day content provider.
package wordday

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/plugins/card"
)

type entry struct {
	word       string
	kind       string
	definition string
}

var words = []entry{
	{"petrichor", "noun", "the pleasant smell of earth after rain"},
	{"apricity", "noun", "the warmth of the sun in winter"},
	{"sonder", "noun", "the realization that each passerby has a life as vivid as your own"},
	{"defenestrate", "verb", "to throw someone or something out of a window"},
	{"limerence", "noun", "the state of being infatuated with another person"},
	{"vellichor", "noun", "the strange wistfulness of used bookstores"},
	{"sempiternal", "adjective", "eternal and unchanging, everlasting"},
	{"susurrus", "noun", "a whispering or rustling sound"},
	{"numinous", "adjective", "having a strong spiritual quality"},
	{"halcyon", "adjective", "denoting a period of time that was idyllically happy"},
}

// Meta describes the provider for registration.
func Meta() plugin.Metadata {
	return plugin.Metadata{
		ID:          "wordday",
		DisplayName: "Word of the Day",
		ClassName:   "WordOfDay",
		Version:     "1.0",
		Author:      "paperframe",
		Description: "Shows a word with its definition, one per day.",
	}
}

// Plugin implements the word-of-the-day provider.
type Plugin struct {
	Now func() time.Time
}

// New creates the provider.
func New() *Plugin {
	return &Plugin{Now: time.Now}
}

// ValidateSettings accepts any settings; the provider has none.
func (p *Plugin) ValidateSettings(settings plugin.Settings) error { return nil }

// GenerateImage renders today's word at the device geometry.
func (p *Plugin) GenerateImage(ctx context.Context, settings plugin.Settings, device plugin.DeviceConfig) (image.Image, error) {
	w := words[p.Now().YearDay()%len(words)]

	lines := []string{w.word, "(" + w.kind + ")", ""}
	lines = append(lines, card.Wrap(w.definition, device.Width/10)...)

	img := card.New(device.Width, device.Height, color.White)
	card.Center(img, lines, color.Black)
	return img, nil
}

// CacheKey rolls over at midnight.
func (p *Plugin) CacheKey(settings plugin.Settings) string {
	return "wordday:" + p.Now().Format("2006-01-02")
}

// CacheTTL is one day.
func (p *Plugin) CacheTTL(settings plugin.Settings) time.Duration {
	return 24 * time.Hour
}

// OnEnable is a no-op.
func (p *Plugin) OnEnable(settings plugin.Settings) error { return nil }

// OnDisable is a no-op.
func (p *Plugin) OnDisable(settings plugin.Settings) error { return nil }
