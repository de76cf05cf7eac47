// Package photo is the builtin photo-sync content provider: it fetches an
// image from a configured URL and scales it to the panel geometry.
package photo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strconv"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/ayusman/paperframe/internal/plugin"
)

// defaultCacheHours is the artifact lifetime when the instance does not
// set cache_hours.
const defaultCacheHours = 24

// Meta describes the provider for registration.
func Meta() plugin.Metadata {
	return plugin.Metadata{
		ID:          "photo",
		DisplayName: "Photo",
		ClassName:   "PhotoSync",
		Version:     "1.0",
		Author:      "paperframe",
		Description: "Fetches a photo from a URL and fits it to the panel.",
	}
}

// Plugin implements the photo provider.
type Plugin struct {
	// Client performs the fetch; defaults to a client without its own
	// timeout since the pipeline bounds generation with a context.
	Client *http.Client
}

// New creates the provider.
func New() *Plugin {
	return &Plugin{Client: &http.Client{}}
}

// ValidateSettings requires a well-formed http(s) url and, optionally,
// fit ("cover" or "contain") and cache_hours (a non-negative integer).
func (p *Plugin) ValidateSettings(settings plugin.Settings) error {
	raw := settings["url"]
	if raw == "" {
		return fmt.Errorf("photo: url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("photo: url must be http or https, got %q", raw)
	}

	switch settings["fit"] {
	case "", "cover", "contain":
	default:
		return fmt.Errorf("photo: fit must be cover or contain, got %q", settings["fit"])
	}

	if raw := settings["cache_hours"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("photo: cache_hours must be a non-negative integer, got %q", raw)
		}
	}
	return nil
}

// GenerateImage fetches the photo and scales it to the device geometry.
func (p *Plugin) GenerateImage(ctx context.Context, settings plugin.Settings, device plugin.DeviceConfig) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, settings["url"], nil)
	if err != nil {
		return nil, fmt.Errorf("photo: build request: %w", err)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("photo: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo: fetch: unexpected status %d", resp.StatusCode)
	}

	src, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("photo: decode: %w", err)
	}

	return fit(src, device.Width, device.Height, settings["fit"]), nil
}

// CacheKey fingerprints the fetch URL.
func (p *Plugin) CacheKey(settings plugin.Settings) string {
	sum := sha256.Sum256([]byte(settings["url"]))
	return "photo:" + hex.EncodeToString(sum[:8])
}

// CacheTTL honors the cache_hours setting.
func (p *Plugin) CacheTTL(settings plugin.Settings) time.Duration {
	hours := defaultCacheHours
	if raw := settings["cache_hours"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			hours = n
		}
	}
	return time.Duration(hours) * time.Hour
}

// OnEnable is a no-op.
func (p *Plugin) OnEnable(settings plugin.Settings) error { return nil }

// OnDisable is a no-op.
func (p *Plugin) OnDisable(settings plugin.Settings) error { return nil }

func (p *Plugin) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// fit scales src onto a w by h canvas. "cover" fills the canvas and crops
// the overflow; anything else letterboxes on white.
func fit(src image.Image, w, h int, mode string) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}

	scaleW := float64(w) / float64(sw)
	scaleH := float64(h) / float64(sh)

	var scale float64
	if mode == "cover" {
		scale = max(scaleW, scaleH)
	} else {
		scale = min(scaleW, scaleH)
	}

	tw := int(float64(sw)*scale + 0.5)
	th := int(float64(sh)*scale + 0.5)
	x := (w - tw) / 2
	y := (h - th) / 2

	xdraw.CatmullRom.Scale(dst, image.Rect(x, y, x+tw, y+th), src, sb, xdraw.Over, nil)
	return dst
}
