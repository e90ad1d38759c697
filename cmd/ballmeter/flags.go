package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ironsheep/ballmeter/internal/config"
	"github.com/ironsheep/ballmeter/internal/source"
)

// envLogLevel overrides the configured log level.
const envLogLevel = "BALLMETER_LOG_LEVEL"

// loadConfig builds the configuration for a subcommand: defaults, then the
// -config file, then BALLMETER_LOG_LEVEL, then flags that were set
// explicitly.
func loadConfig(name string, args []string) (config.Config, error) {
	fs := flag.NewFlagSet("ballmeter "+name, flag.ContinueOnError)

	configPath := fs.String("config", "", "JSON configuration `file`")
	mode := fs.String("mode", "", "calibration mode: operator or preset")
	ppm := fs.Float64("ppm", 0, "pixels per millimetre in preset mode")
	density := fs.Float64("density", 0, "density factor in g/cm3 in preset mode")

	kind := fs.String("source", "", "frame source: files, mjpeg or camera")
	path := fs.String("path", "", "image file or directory for the files source (implies -source files)")
	url := fs.String("url", "", "MJPEG stream URL, or camera device index or URL")
	loop := fs.Bool("loop", false, "repeat the files source")
	interval := fs.Int("interval", 0, "milliseconds between frames of the files source")
	resolutions := fs.String("resolutions", "", "camera resolutions to try in order, e.g. 1280x720,640x480")

	detector := fs.String("detector", "", "circle detector: hough or opencv")

	console := fs.Bool("console", true, "log calibration changes and measurements")
	window := fs.Bool("window", false, "show the preview window")
	fullscreen := fs.Bool("fullscreen", false, "fullscreen preview; frames are letterboxed to -screen")
	screen := fs.String("screen", "", "screen size for -fullscreen, e.g. 1920x1080")
	lcd := fs.String("lcd", "", "serial `port` of the 16x2 LCD")
	snapshotDir := fs.String("snapshot-dir", "", "save annotated frames to this directory")
	snapshotEvery := fs.Int("snapshot-every", 0, "save every Nth frame that shows a ball")

	card := fs.Bool("card", false, "enable calibration from a printed card (needs -tags tesseract)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Read(*configPath); err != nil {
			return cfg, err
		}
	}
	if env := os.Getenv(envLogLevel); env != "" {
		cfg.LogLevel = env
	}

	var errs []error
	sourceSet := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "ppm":
			cfg.PixelsPerMM = *ppm
		case "density":
			cfg.DensityFactor = *density
		case "source":
			cfg.Source.Kind = *kind
			sourceSet = true
		case "path":
			cfg.Source.Path = *path
		case "url":
			cfg.Source.URL = *url
		case "loop":
			cfg.Source.Loop = *loop
		case "interval":
			cfg.Source.IntervalMS = *interval
		case "resolutions":
			rs, err := parseResolutions(*resolutions)
			if err != nil {
				errs = append(errs, err)
				return
			}
			cfg.Source.Resolutions = rs
		case "detector":
			cfg.Detector.Backend = *detector
		case "console":
			cfg.Display.Console = *console
		case "window":
			cfg.Display.Window = *window
		case "fullscreen":
			cfg.Display.Fullscreen = *fullscreen
		case "screen":
			r, err := source.ParseResolution(*screen)
			if err != nil {
				errs = append(errs, err)
				return
			}
			cfg.Display.ScreenWidth, cfg.Display.ScreenHeight = r.Width, r.Height
		case "lcd":
			cfg.Display.LCDPort = *lcd
		case "snapshot-dir":
			cfg.Display.SnapshotDir = *snapshotDir
		case "snapshot-every":
			cfg.Display.SnapshotEvery = *snapshotEvery
		case "card":
			cfg.Card.Enabled = *card
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	if *path != "" && !sourceSet {
		cfg.Source.Kind = config.SourceFiles
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseResolutions parses a comma-separated list of WIDTHxHEIGHT values.
func parseResolutions(s string) ([]source.Resolution, error) {
	var out []source.Resolution
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := source.ParseResolution(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no resolutions in %q", s)
	}
	return out, nil
}

// newLogger returns a text logger on stderr; stdout is reserved for the MCP
// protocol.
func newLogger(cfg config.Config) *slog.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
