package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/ayusman/paperframe/internal/cache"
	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/quantize"
	"github.com/ayusman/paperframe/internal/store"
)

// Refresh runs one full refresh cycle: resolve the active instance, obtain
// its artifact (cache or generate), quantize it, and push the frame to the
// panel. The cycle is serialized; a concurrent call waits its turn.
//
// The daily-safety mark is recorded only after the panel accepts the frame,
// so any failure leaves the refresh pending and the next tick retries.
func (a *App) Refresh(ctx context.Context, reason string) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	started := time.Now()

	inst, err := a.config.Store.Instances().Active()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoActiveInstance
		}
		return fmt.Errorf("load active instance: %w", err)
	}

	ev := Event{
		Time:       started,
		Reason:     reason,
		InstanceID: inst.ID,
		PluginID:   inst.PluginID,
	}
	err = a.runCycle(ctx, inst, &ev)
	ev.DurationMs = time.Since(started).Milliseconds()
	if err != nil && ev.Outcome == "" {
		ev.Outcome = store.OutcomeError
		ev.Error = err.Error()
	}

	a.record(ev)
	return err
}

// runCycle runs the pipeline stages for one instance. It sets ev.Outcome on
// the paths that complete a panel update (ok or degraded); error paths
// leave it for Refresh to fill in.
func (a *App) runCycle(ctx context.Context, inst *store.Instance, ev *Event) error {
	// Stage 1: plugin lookup and settings validation. A bad instance
	// never reaches the panel; the prior frame stays up.
	p, err := a.config.Registry.Get(inst.PluginID)
	if err != nil {
		return &PluginError{PluginID: inst.PluginID, Err: err}
	}
	settings := inst.AsPluginInstance().Settings
	if err := p.ValidateSettings(settings); err != nil {
		return &PluginError{PluginID: inst.PluginID, Err: err}
	}

	// Stage 2: artifact from cache or generation. The cache key is scoped
	// by instance so two instances of one plugin never collide.
	key := inst.ID + ":" + p.CacheKey(settings)
	ttl := p.CacheTTL(settings)

	art, err := a.config.Cache.GetOrGenerate(ctx, key, ttl, func(ctx context.Context) (cache.Artifact, error) {
		return a.generate(ctx, p, settings)
	})
	degraded := false
	if err != nil {
		// Generation failed. A stale artifact keeps the panel fresh in the
		// daily-safety sense even though the content is old.
		stale, ok := a.config.Cache.Stale(key)
		if !ok {
			return &GenerationError{PluginID: inst.PluginID, Err: err}
		}
		a.log.Warn("generation failed, using stale artifact",
			"plugin", inst.PluginID, "err", err, "age", time.Since(stale.CreatedAt))
		art = stale
		degraded = true
		ev.Error = err.Error()
	}

	// Stage 3: decode and quantize onto the panel palette.
	img, _, err := image.Decode(bytes.NewReader(art.Data))
	if err != nil {
		return fmt.Errorf("decode cached artifact %q: %w", key, err)
	}
	buf, err := quantize.Quantize(img, quantize.Options{
		Width:    a.config.Device.Width,
		Height:   a.config.Device.Height,
		Rotation: a.config.Device.Rotation,
		Palette:  a.config.Palette,
		Method:   a.config.Method,
	})
	if err != nil {
		return fmt.Errorf("quantize frame: %w", err)
	}

	// Stage 4: push to the panel. Only now is the refresh considered done.
	if err := a.config.Driver.Display(buf); err != nil {
		return fmt.Errorf("display frame: %w", err)
	}
	if err := a.config.Scheduler.MarkRefreshed(time.Now()); err != nil {
		a.log.Warn("persisting refresh mark failed", "err", err)
	}

	if degraded {
		ev.Outcome = store.OutcomeDegraded
	} else {
		ev.Outcome = store.OutcomeOK
	}
	return nil
}

// generate runs the plugin's generator under the configured timeout,
// applies the optional transform, and encodes the result as a PNG artifact.
func (a *App) generate(ctx context.Context, p plugin.Plugin, settings plugin.Settings) (cache.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.GenerateTimeout)
	defer cancel()

	img, err := p.GenerateImage(ctx, settings, a.config.Device)
	if err != nil {
		return cache.Artifact{}, err
	}
	if a.config.Transform != nil {
		img, err = a.config.Transform(ctx, img, a.config.TransformPrompt)
		if err != nil {
			return cache.Artifact{}, fmt.Errorf("transform: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return cache.Artifact{}, fmt.Errorf("encode artifact: %w", err)
	}
	return cache.Artifact{Data: buf.Bytes(), MIME: "image/png"}, nil
}

// record persists the refresh outcome and notifies the control surface.
func (a *App) record(ev Event) {
	a.mu.Lock()
	copied := ev
	a.lastEvent = &copied
	a.mu.Unlock()

	rec := store.RefreshRecord{
		InstanceID: ev.InstanceID,
		PluginID:   ev.PluginID,
		Reason:     ev.Reason,
		Outcome:    ev.Outcome,
		Error:      ev.Error,
		Duration:   time.Duration(ev.DurationMs) * time.Millisecond,
		StartedAt:  ev.Time,
	}
	if err := a.config.Store.History().Add(&rec); err != nil {
		a.log.Warn("recording refresh history failed", "err", err)
	}
	if a.config.Notify != nil {
		a.config.Notify(ev)
	}

	switch ev.Outcome {
	case store.OutcomeOK:
		a.log.Info("refresh complete",
			"reason", ev.Reason, "plugin", ev.PluginID, "duration_ms", ev.DurationMs)
	case store.OutcomeDegraded:
		a.log.Warn("refresh complete with stale content",
			"reason", ev.Reason, "plugin", ev.PluginID, "err", ev.Error)
	default:
		a.log.Error("refresh failed",
			"reason", ev.Reason, "plugin", ev.PluginID, "err", ev.Error)
	}
}

// PluginError reports a plugin lookup or settings validation failure.
type PluginError struct {
	PluginID string
	Err      error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %q: %v", e.PluginID, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// GenerationError reports a content generation failure with no stale
// artifact to fall back on.
type GenerationError struct {
	PluginID string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate content for plugin %q: %v", e.PluginID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
