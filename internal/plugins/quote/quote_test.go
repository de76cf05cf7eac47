package quote

import (
	"context"
	"testing"
	"time"

	"github.com/ayusman/paperframe/internal/plugin"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
}

func TestCacheTTL_PerVariant(t *testing.T) {
	p := New()

	if got := p.CacheTTL(plugin.Settings{"variant": "daily"}); got != 86400*time.Second {
		t.Errorf("daily TTL = %v, want 86400s", got)
	}
	if got := p.CacheTTL(plugin.Settings{"variant": "random"}); got != 0 {
		t.Errorf("random TTL = %v, want 0", got)
	}
	// Unset variant behaves as daily.
	if got := p.CacheTTL(plugin.Settings{}); got != 86400*time.Second {
		t.Errorf("default TTL = %v, want 86400s", got)
	}
}

func TestCacheKey_DailyIsDateScoped(t *testing.T) {
	p := New()
	p.Now = fixedNow

	key := p.CacheKey(plugin.Settings{"variant": "daily"})
	if key != "quote:daily:2026-08-29" {
		t.Errorf("key = %q", key)
	}

	// Stable within the same day.
	if again := p.CacheKey(plugin.Settings{"variant": "daily"}); again != key {
		t.Errorf("key changed within the day: %q vs %q", key, again)
	}

	// Rolls over the next day.
	p.Now = func() time.Time { return fixedNow().AddDate(0, 0, 1) }
	if next := p.CacheKey(plugin.Settings{"variant": "daily"}); next == key {
		t.Error("key did not roll over at the date boundary")
	}
}

func TestValidateSettings(t *testing.T) {
	p := New()
	for _, v := range []string{"", "daily", "random"} {
		if err := p.ValidateSettings(plugin.Settings{"variant": v}); err != nil {
			t.Errorf("variant %q rejected: %v", v, err)
		}
	}
	if err := p.ValidateSettings(plugin.Settings{"variant": "hourly"}); err == nil {
		t.Error("unknown variant accepted")
	}
}

func TestGenerateImage_MatchesDeviceGeometry(t *testing.T) {
	p := New()
	p.Now = fixedNow

	img, err := p.GenerateImage(context.Background(), plugin.Settings{}, plugin.DeviceConfig{Width: 600, Height: 448})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 600 || b.Dy() != 448 {
		t.Errorf("image %dx%d, want 600x448", b.Dx(), b.Dy())
	}
}
