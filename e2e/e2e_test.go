package e2e

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/paperframe/internal/app"
	"github.com/ayusman/paperframe/internal/cache"
	"github.com/ayusman/paperframe/internal/display"
	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/plugins"
	"github.com/ayusman/paperframe/internal/quantize"
	"github.com/ayusman/paperframe/internal/schedule"
	"github.com/ayusman/paperframe/internal/server"
	"github.com/ayusman/paperframe/internal/store"
)

// grayPlugin renders a uniform mid-gray frame so the legacy quantizer's
// white fallback is observable end to end.
type grayPlugin struct{}

func (grayPlugin) ValidateSettings(s plugin.Settings) error { return nil }

func (grayPlugin) GenerateImage(ctx context.Context, s plugin.Settings, d plugin.DeviceConfig) (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			img.Set(x, y, color.NRGBA{128, 128, 128, 255})
		}
	}
	return img, nil
}

func (grayPlugin) CacheKey(s plugin.Settings) string        { return "gray" }
func (grayPlugin) CacheTTL(s plugin.Settings) time.Duration { return time.Hour }
func (grayPlugin) OnEnable(s plugin.Settings) error         { return nil }
func (grayPlugin) OnDisable(s plugin.Settings) error        { return nil }

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	sched, err := schedule.New(schedule.UpdateTime{Hour: 6}, time.UTC, s.Schedule())
	if err != nil {
		t.Fatalf("schedule.New() error = %v", err)
	}

	registry := plugin.NewRegistry()
	if err := plugins.RegisterBuiltins(registry); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}
	if err := registry.Register(plugin.Metadata{ID: "gray", DisplayName: "Gray"}, grayPlugin{}); err != nil {
		t.Fatalf("Register(gray) error = %v", err)
	}

	driver := display.NewMockDriver()
	application := app.New(app.Config{
		Device:    plugin.DeviceConfig{Width: 600, Height: 448, ColorMode: "7color"},
		Driver:    driver,
		Store:     s,
		Cache:     cache.New(cache.NewMemStore()),
		Registry:  registry,
		Scheduler: sched,
		Palette:   quantize.Default(),
		Method:    quantize.MethodLegacy,
	})

	srv := server.New(server.Config{App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	var instanceID string

	t.Run("ListPlugins", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/plugins")
		if err != nil {
			t.Fatalf("list plugins error = %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Plugins []plugin.Metadata `json:"plugins"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		found := false
		for _, m := range body.Plugins {
			if m.ID == "clock" {
				found = true
			}
		}
		if !found {
			t.Fatalf("builtin clock plugin missing from %v", body.Plugins)
		}
	})

	t.Run("CreateInstance", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/instances",
			"application/json",
			strings.NewReader(`{"plugin_id": "gray", "name": "test frame"}`),
		)
		if err != nil {
			t.Fatalf("create instance error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		instanceID = created.ID
	})

	t.Run("Activate", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/instances/"+instanceID+"/activate", "application/json", nil)
		if err != nil {
			t.Fatalf("activate error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("ManualRefresh", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/refresh", "application/json", nil)
		if err != nil {
			t.Fatalf("refresh error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		frame := driver.LastFrame()
		if frame == nil {
			t.Fatal("no frame reached the panel")
		}
		white := quantize.Default().Index(quantize.White)
		packed := byte(white<<4 | white)
		for i, b := range frame.Pix {
			if b != packed {
				t.Fatalf("byte %d = %#x, want %#x", i, b, packed)
			}
		}
	})

	t.Run("StatusAfterRefresh", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("status error = %v", err)
		}
		defer resp.Body.Close()

		var status struct {
			LastRefresh *string `json:"last_refresh"`
			ActiveID    string  `json:"active_instance_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if status.LastRefresh == nil {
			t.Fatal("last_refresh still null after refresh")
		}
		if status.ActiveID != instanceID {
			t.Fatalf("active = %q, want %q", status.ActiveID, instanceID)
		}
	})

	t.Run("History", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/history")
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			History []struct {
				Outcome string `json:"outcome"`
			} `json:"history"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if len(body.History) != 1 || body.History[0].Outcome != store.OutcomeOK {
			t.Fatalf("history = %+v, want one ok entry", body.History)
		}
	})

	t.Run("PauseThenManualStillWorks", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/pause", "application/json", nil)
		if err != nil {
			t.Fatalf("pause error = %v", err)
		}
		resp.Body.Close()

		resp, err = client.Post(ts.URL+"/api/refresh", "application/json", nil)
		if err != nil {
			t.Fatalf("refresh error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("manual refresh while paused: status = %d", resp.StatusCode)
		}
	})
}
