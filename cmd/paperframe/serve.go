package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/paperframe/internal/app"
	"github.com/ayusman/paperframe/internal/cache"
	"github.com/ayusman/paperframe/internal/config"
	"github.com/ayusman/paperframe/internal/display"
	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/plugins"
	"github.com/ayusman/paperframe/internal/quantize"
	"github.com/ayusman/paperframe/internal/schedule"
	"github.com/ayusman/paperframe/internal/server"
	"github.com/ayusman/paperframe/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the paperframe daemon",
	Long:  `Start the render pipeline and the HTTP control surface.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "paperframe",
	})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dataDir = filepath.Join(home, ".paperframe")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	st, err := store.New(filepath.Join(dataDir, "paperframe.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := cache.OpenBolt(filepath.Join(dataDir, "artifacts.db"))
	if err != nil {
		return err
	}
	artifacts := cache.New(blobs)
	defer artifacts.Close()

	sched, err := schedule.New(cfg.At, cfg.Location, st.Schedule())
	if err != nil {
		return err
	}

	registry := plugin.NewRegistry()
	if err := plugins.RegisterBuiltins(registry); err != nil {
		return err
	}

	driver, err := openDriver(cfg, logger)
	if err != nil {
		return err
	}

	palette := quantize.Default()
	if cal, ok := quantize.CalibrationByName(cfg.Display.Calibration); ok {
		palette = palette.Resolve(&cal, nil)
	}
	method := quantize.MethodNearest
	if cfg.Display.Method == "legacy" {
		method = quantize.MethodLegacy
	}

	hub := server.NewEventsHub()
	a := app.New(app.Config{
		Device: plugin.DeviceConfig{
			Width:     cfg.Display.Width,
			Height:    cfg.Display.Height,
			Rotation:  cfg.Display.Rotation,
			ColorMode: "7color",
		},
		Driver:         driver,
		Store:          st,
		Cache:          artifacts,
		Registry:       registry,
		Scheduler:      sched,
		Palette:        palette,
		Method:         method,
		CacheRetention: time.Duration(cfg.Cache.RetentionDays) * 24 * time.Hour,
		CacheMaxBytes:  int64(cfg.Cache.MaxMB) * 1024 * 1024,
		Notify:         hub.Publish,
		Logger:         logger,
	})
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	srv := server.New(server.Config{App: a, Events: hub})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control surface listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe(cfg.Listen)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
		return nil
	case err := <-errCh:
		return err
	}
}

// openDriver builds the panel driver named by the configuration: "acep7"
// probes the board and talks to the real panel, "mock" renders into memory
// for development off-device.
func openDriver(cfg *config.Config, logger *log.Logger) (display.Driver, error) {
	switch cfg.Display.Driver {
	case "mock":
		logger.Warn("using mock display driver, no panel output")
		return display.NewMockDriver(), nil
	default:
		platform, err := display.Detect()
		if err != nil {
			return nil, err
		}
		logger.Info("detected board", "platform", platform.Name())
		return display.NewACeP(platform, display.DefaultPins, cfg.Display.Width, cfg.Display.Height), nil
	}
}
