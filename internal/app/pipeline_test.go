package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/paperframe/internal/cache"
	"github.com/ayusman/paperframe/internal/display"
	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/quantize"
	"github.com/ayusman/paperframe/internal/schedule"
	"github.com/ayusman/paperframe/internal/store"
)

// scriptPlugin renders a uniform fill and can be told to fail.
type scriptPlugin struct {
	fill        color.Color
	key         string
	ttl         time.Duration
	failGen     error
	failVal     error
	generations int64
}

func (p *scriptPlugin) ValidateSettings(s plugin.Settings) error { return p.failVal }

func (p *scriptPlugin) GenerateImage(ctx context.Context, s plugin.Settings, d plugin.DeviceConfig) (image.Image, error) {
	atomic.AddInt64(&p.generations, 1)
	if p.failGen != nil {
		return nil, p.failGen
	}
	img := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			img.Set(x, y, p.fill)
		}
	}
	return img, nil
}

func (p *scriptPlugin) CacheKey(s plugin.Settings) string       { return p.key }
func (p *scriptPlugin) CacheTTL(s plugin.Settings) time.Duration { return p.ttl }
func (p *scriptPlugin) OnEnable(s plugin.Settings) error        { return nil }
func (p *scriptPlugin) OnDisable(s plugin.Settings) error       { return nil }

type harness struct {
	app    *App
	driver *display.MockDriver
	store  *store.Store
	plugin *scriptPlugin
}

func newHarness(t *testing.T, width, height int, method quantize.Method, p *scriptPlugin) *harness {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "paperframe.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sched, err := schedule.New(schedule.UpdateTime{Hour: 6}, time.UTC, st.Schedule())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	reg := plugin.NewRegistry()
	if err := reg.Register(plugin.Metadata{ID: "script", DisplayName: "Script"}, p); err != nil {
		t.Fatalf("register plugin: %v", err)
	}

	inst := &store.Instance{ID: "inst-1", PluginID: "script", Name: "test"}
	if err := st.Instances().Create(inst); err != nil {
		t.Fatalf("create instance: %v", err)
	}
	if err := st.Instances().SetActive(inst.ID); err != nil {
		t.Fatalf("activate instance: %v", err)
	}

	driver := display.NewMockDriver()
	a := New(Config{
		Device:    plugin.DeviceConfig{Width: width, Height: height, ColorMode: "7color"},
		Driver:    driver,
		Store:     st,
		Cache:     cache.New(cache.NewMemStore()),
		Registry:  reg,
		Scheduler: sched,
		Palette:   quantize.Default(),
		Method:    method,
	})
	return &harness{app: a, driver: driver, store: st, plugin: p}
}

func TestRefreshUniformGrayLegacyAllWhite(t *testing.T) {
	h := newHarness(t, 600, 448, quantize.MethodLegacy,
		&scriptPlugin{fill: color.NRGBA{128, 128, 128, 255}, key: "gray"})

	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	frame := h.driver.LastFrame()
	if frame == nil {
		t.Fatal("no frame displayed")
	}
	if got, want := len(frame.Pix), 600*448/2; got != want {
		t.Fatalf("frame size = %d, want %d", got, want)
	}
	white := quantize.Default().Index(quantize.White)
	packed := byte(white<<4 | white)
	for i, b := range frame.Pix {
		if b != packed {
			t.Fatalf("byte %d = %#x, want %#x (all white)", i, b, packed)
		}
	}

	if _, ok := h.app.Scheduler().LastRefresh(); !ok {
		t.Fatal("refresh not marked after successful display")
	}
	ev := h.app.LastEvent()
	if ev == nil || ev.Outcome != store.OutcomeOK {
		t.Fatalf("last event = %+v, want outcome ok", ev)
	}
}

func TestRefreshUsesCacheAcrossCycles(t *testing.T) {
	h := newHarness(t, 64, 32, quantize.MethodNearest,
		&scriptPlugin{fill: color.NRGBA{255, 255, 255, 255}, key: "stable", ttl: time.Hour})

	for i := 0; i < 3; i++ {
		if err := h.app.Refresh(context.Background(), "manual"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt64(&h.plugin.generations); n != 1 {
		t.Fatalf("generator ran %d times, want 1", n)
	}
	if got := len(h.driver.Frames()); got != 3 {
		t.Fatalf("displayed %d frames, want 3", got)
	}
}

func TestRefreshGenerationFailureFallsBackToStale(t *testing.T) {
	p := &scriptPlugin{fill: color.NRGBA{255, 255, 255, 255}, key: "k", ttl: time.Nanosecond}
	h := newHarness(t, 64, 32, quantize.MethodNearest, p)

	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	p.failGen = errors.New("upstream down")
	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("degraded refresh: %v", err)
	}

	ev := h.app.LastEvent()
	if ev.Outcome != store.OutcomeDegraded {
		t.Fatalf("outcome = %q, want degraded", ev.Outcome)
	}
	if ev.Error == "" {
		t.Fatal("degraded event should carry the generation error")
	}
	if got := len(h.driver.Frames()); got != 2 {
		t.Fatalf("displayed %d frames, want 2", got)
	}
}

func TestRefreshGenerationFailureWithoutStale(t *testing.T) {
	p := &scriptPlugin{key: "k", failGen: errors.New("upstream down")}
	h := newHarness(t, 64, 32, quantize.MethodNearest, p)

	err := h.app.Refresh(context.Background(), "manual")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
	if h.driver.LastFrame() != nil {
		t.Fatal("frame displayed despite failed generation")
	}
	if _, ok := h.app.Scheduler().LastRefresh(); ok {
		t.Fatal("refresh marked despite failure")
	}
	if ev := h.app.LastEvent(); ev.Outcome != store.OutcomeError {
		t.Fatalf("outcome = %q, want error", ev.Outcome)
	}
}

func TestRefreshValidationFailureKeepsPriorFrame(t *testing.T) {
	p := &scriptPlugin{fill: color.NRGBA{0, 0, 0, 255}, key: "k"}
	h := newHarness(t, 64, 32, quantize.MethodNearest, p)

	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	p.failVal = errors.New("bad settings")
	err := h.app.Refresh(context.Background(), "manual")
	var pErr *PluginError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want PluginError", err)
	}
	if got := len(h.driver.Frames()); got != 1 {
		t.Fatalf("displayed %d frames, want 1 (prior frame untouched)", got)
	}
}

func TestRefreshHardwareFailureLeavesRefreshPending(t *testing.T) {
	p := &scriptPlugin{fill: color.NRGBA{255, 255, 255, 255}, key: "k"}
	h := newHarness(t, 64, 32, quantize.MethodNearest, p)

	h.driver.FailDisplay = errors.New("panel busy")
	if err := h.app.Refresh(context.Background(), "manual"); err == nil {
		t.Fatal("expected display error")
	}
	if _, ok := h.app.Scheduler().LastRefresh(); ok {
		t.Fatal("refresh marked despite hardware failure")
	}

	// The next cycle retries and succeeds.
	h.driver.FailDisplay = nil
	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("retry refresh: %v", err)
	}
	if _, ok := h.app.Scheduler().LastRefresh(); !ok {
		t.Fatal("refresh not marked after retry")
	}
}

func TestRefreshNoActiveInstance(t *testing.T) {
	p := &scriptPlugin{key: "k"}
	h := newHarness(t, 64, 32, quantize.MethodNearest, p)

	if err := h.store.Instances().ClearActive(); err != nil {
		t.Fatalf("clear active: %v", err)
	}
	if err := h.app.Refresh(context.Background(), "manual"); !errors.Is(err, ErrNoActiveInstance) {
		t.Fatalf("err = %v, want ErrNoActiveInstance", err)
	}
}

func TestRefreshRecordsHistory(t *testing.T) {
	p := &scriptPlugin{fill: color.NRGBA{255, 255, 255, 255}, key: "k"}
	h := newHarness(t, 64, 32, quantize.MethodNearest, p)

	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	p.failVal = errors.New("bad settings")
	h.app.Refresh(context.Background(), "manual")

	recs, err := h.store.History().Recent(10)
	if err != nil {
		t.Fatalf("recent history: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("history entries = %d, want 2", len(recs))
	}
	if recs[0].Outcome != store.OutcomeError || recs[1].Outcome != store.OutcomeOK {
		t.Fatalf("history outcomes = %q, %q", recs[0].Outcome, recs[1].Outcome)
	}
}

func TestTransformAppliedBeforeQuantize(t *testing.T) {
	p := &scriptPlugin{fill: color.NRGBA{0, 0, 0, 255}, key: "k"}
	h := newHarness(t, 8, 8, quantize.MethodNearest, p)

	// Invert the generated black fill to white.
	h.app.config.Transform = func(ctx context.Context, img image.Image, prompt string) (image.Image, error) {
		out := image.NewNRGBA(img.Bounds())
		for y := out.Rect.Min.Y; y < out.Rect.Max.Y; y++ {
			for x := out.Rect.Min.X; x < out.Rect.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				out.Set(x, y, color.NRGBA{255 - uint8(r>>8), 255 - uint8(g>>8), 255 - uint8(b>>8), 255})
			}
		}
		return out, nil
	}

	if err := h.app.Refresh(context.Background(), "manual"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	frame := h.driver.LastFrame()
	white := quantize.Default().Index(quantize.White)
	if frame.Pix[0] != byte(white<<4|white) {
		t.Fatalf("first byte = %#x, want white pair", frame.Pix[0])
	}
}
