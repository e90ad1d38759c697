// Package config holds the ballmeter run configuration.
//
// Configuration is read from an optional JSON file, then individual values
// are overridden by command-line flags. Unset fields keep the defaults from
// Default, so a file only needs the values that differ.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/ballmeter/internal/display"
	"github.com/ironsheep/ballmeter/internal/source"
)

// Calibration modes.
const (
	// ModeOperator starts uncalibrated; the operator calibrates with a ball
	// of known diameter and then enters the density factor.
	ModeOperator = "operator"

	// ModePreset starts with a fixed ratio and density factor, for unattended
	// deployments with a fixed camera.
	ModePreset = "preset"
)

// Source kinds.
const (
	SourceFiles  = "files"
	SourceMJPEG  = "mjpeg"
	SourceCamera = "camera"
)

// Detector backends.
const (
	DetectorHough  = "hough"
	DetectorOpenCV = "opencv"
)

// Preset defaults of the Raspberry Pi deployment.
const (
	DefaultPixelsPerMM   = 3.14
	DefaultDensityFactor = 9.0
)

// maxFileSize bounds the configuration file.
const maxFileSize = 1 << 20

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete run configuration.
type Config struct {
	Mode          string  `json:"mode"`
	PixelsPerMM   float64 `json:"pixels_per_mm"`
	DensityFactor float64 `json:"density_factor"`

	Source   SourceConfig   `json:"source"`
	Detector DetectorConfig `json:"detector"`
	Display  DisplayConfig  `json:"display"`
	Card     CardConfig     `json:"card"`

	LogLevel string `json:"log_level"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind string `json:"kind"`

	// Path is a still image or a directory for the files source.
	Path string `json:"path,omitempty"`
	Loop bool   `json:"loop,omitempty"`

	// IntervalMS paces the files source.
	IntervalMS int `json:"interval_ms,omitempty"`

	// URL is the stream address for mjpeg, or a device index or stream
	// URL for camera.
	URL string `json:"url,omitempty"`

	// Resolutions are tried in order by the camera source.
	Resolutions []source.Resolution `json:"resolutions,omitempty"`
}

// DetectorConfig selects the circle detector. Both backends run with the
// fixed operating point of detection.DefaultParams.
type DetectorConfig struct {
	Backend string `json:"backend"`
}

// DisplayConfig configures the render sinks.
type DisplayConfig struct {
	// Console logs state changes and measurements.
	Console bool `json:"console"`

	// Window opens an OpenCV preview window; Fullscreen letterboxes frames
	// to ScreenWidth x ScreenHeight.
	Window       bool   `json:"window,omitempty"`
	Fullscreen   bool   `json:"fullscreen,omitempty"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`
	Title        string `json:"title,omitempty"`

	// SnapshotDir enables saving annotated frames every SnapshotEvery
	// frames.
	SnapshotDir    string `json:"snapshot_dir,omitempty"`
	SnapshotEvery  int    `json:"snapshot_every,omitempty"`
	SnapshotFormat string `json:"snapshot_format,omitempty"`

	// LCDPort enables the serial LCD.
	LCDPort    string              `json:"lcd_port,omitempty"`
	LCDOptions display.PortOptions `json:"lcd_options"`

	Colors ColorConfig `json:"colors"`
}

// ColorConfig overrides overlay colours as "#RRGGBB" or "#RRGGBBAA".
type ColorConfig struct {
	Circle     string `json:"circle,omitempty"`
	Center     string `json:"center,omitempty"`
	Text       string `json:"text,omitempty"`
	Background string `json:"background,omitempty"`
}

// CardConfig enables calibration from a printed card.
type CardConfig struct {
	Enabled  bool       `json:"enabled,omitempty"`
	Language string     `json:"language,omitempty"`
	Tessdata string     `json:"tessdata,omitempty"`
	Region   [4]float64 `json:"region"`
	Scale    float64    `json:"scale,omitempty"`
}

// Default returns the configuration used when nothing is specified:
// operator calibration on camera 0 with console output.
func Default() Config {
	return Config{
		Mode:          ModeOperator,
		PixelsPerMM:   DefaultPixelsPerMM,
		DensityFactor: DefaultDensityFactor,
		Source: SourceConfig{
			Kind:        SourceCamera,
			URL:         "0",
			Resolutions: append([]source.Resolution(nil), source.DefaultResolutions...),
		},
		Detector: DetectorConfig{Backend: DetectorHough},
		Display: DisplayConfig{
			Console:        true,
			Title:          "Ball Volume Measurement",
			ScreenWidth:    1920,
			ScreenHeight:   1080,
			SnapshotEvery:  30,
			SnapshotFormat: "png",
		},
		Card: CardConfig{
			Language: "eng",
			Region:   [4]float64{0, 0, 1, 1},
			Scale:    2,
		},
		LogLevel: "info",
	}
}

// Load reads a JSON configuration file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read reads a JSON configuration file over the defaults without validating
// it, for callers that apply further overrides first.
func Read(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and normalises the LCD options.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	switch c.Mode {
	case ModeOperator:
	case ModePreset:
		if !(c.PixelsPerMM > 0) {
			return invalid("pixels_per_mm must be positive in preset mode, got %v", c.PixelsPerMM)
		}
		if !(c.DensityFactor > 0) {
			return invalid("density_factor must be positive in preset mode, got %v", c.DensityFactor)
		}
	default:
		return invalid("mode must be %q or %q, got %q", ModeOperator, ModePreset, c.Mode)
	}

	switch c.Source.Kind {
	case SourceFiles:
		if c.Source.Path == "" {
			return invalid("source.path is required for the files source")
		}
		if c.Source.IntervalMS < 0 {
			return invalid("source.interval_ms must not be negative")
		}
	case SourceMJPEG:
		if !strings.HasPrefix(c.Source.URL, "http://") && !strings.HasPrefix(c.Source.URL, "https://") {
			return invalid("source.url must be an http(s) URL for the mjpeg source, got %q", c.Source.URL)
		}
	case SourceCamera:
		if c.Source.URL == "" {
			return invalid("source.url must name a camera device or stream")
		}
		for _, r := range c.Source.Resolutions {
			if r.Width <= 0 || r.Height <= 0 {
				return invalid("source.resolutions contains %s", r)
			}
		}
	default:
		return invalid("source.kind must be files, mjpeg or camera, got %q", c.Source.Kind)
	}

	switch c.Detector.Backend {
	case DetectorHough, DetectorOpenCV:
	default:
		return invalid("detector.backend must be %q or %q, got %q", DetectorHough, DetectorOpenCV, c.Detector.Backend)
	}

	d := &c.Display
	if d.Fullscreen && (d.ScreenWidth <= 0 || d.ScreenHeight <= 0) {
		return invalid("display.screen_width and screen_height are required for fullscreen")
	}
	if d.SnapshotDir != "" && d.SnapshotEvery < 1 {
		return invalid("display.snapshot_every must be at least 1")
	}
	if d.LCDPort != "" {
		opts, err := d.LCDOptions.Normalize()
		if err != nil {
			return invalid("display.lcd_options: %v", err)
		}
		d.LCDOptions = opts
	}

	if c.Card.Enabled {
		r := c.Card.Region
		if r[0] < 0 || r[1] < 0 || r[2] > 1 || r[3] > 1 || r[0] >= r[2] || r[1] >= r[3] {
			return invalid("card.region must be x0,y0,x1,y1 fractions with x0<x1 and y0<y1, got %v", r)
		}
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// Preset reports whether the calibration is fixed by configuration.
func (c *Config) Preset() bool {
	return c.Mode == ModePreset
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
