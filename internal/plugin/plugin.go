// Package plugin defines the content-provider capability contract and the
// registry the render pipeline selects providers from. The capability
// surface is fixed and closed: providers are compiled in and registered
// explicitly at startup, never loaded from a directory at runtime.
package plugin

import (
	"context"
	"image"
	"time"
)

// Metadata describes a registered content provider. It is created at
// registration time and never mutated.
type Metadata struct {
	ID          string `json:"plugin_id"`
	DisplayName string `json:"display_name"`
	ClassName   string `json:"class_name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Settings are the administrator-supplied options of a plugin instance.
type Settings map[string]string

// Instance binds a provider to a settings map. Instances are created by
// administrative action, owned by the orchestrator's configuration, and
// removed explicitly; the provider itself holds no instance state.
type Instance struct {
	InstanceID string   `json:"instance_id"`
	PluginID   string   `json:"plugin_id"`
	Settings   Settings `json:"settings"`
}

// DeviceConfig carries the target geometry a provider renders for.
type DeviceConfig struct {
	Width     int
	Height    int
	Rotation  int
	ColorMode string
}

// Plugin is the capability contract every content provider satisfies.
type Plugin interface {
	// ValidateSettings checks a settings map without side effects.
	ValidateSettings(settings Settings) error

	// GenerateImage produces the content image for the given settings and
	// device geometry. It may perform network I/O and must respect ctx.
	GenerateImage(ctx context.Context, settings Settings, device DeviceConfig) (image.Image, error)

	// CacheKey returns a deterministic fingerprint of the cache-relevant
	// subset of settings. It is stable across calls within the same logical
	// period (the same calendar day for daily variants).
	CacheKey(settings Settings) string

	// CacheTTL returns the lifetime of a generated artifact. Zero means
	// never cache: always regenerate.
	CacheTTL(settings Settings) time.Duration

	// OnEnable and OnDisable are lifecycle hooks invoked when an instance
	// of this provider is activated or deactivated. Both are idempotent.
	OnEnable(settings Settings) error
	OnDisable(settings Settings) error
}
