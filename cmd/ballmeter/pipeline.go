package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ironsheep/ballmeter/internal/calibration"
	"github.com/ironsheep/ballmeter/internal/config"
	"github.com/ironsheep/ballmeter/internal/detection"
	"github.com/ironsheep/ballmeter/internal/display"
	"github.com/ironsheep/ballmeter/internal/imaging"
	"github.com/ironsheep/ballmeter/internal/ocr"
	"github.com/ironsheep/ballmeter/internal/operator"
	"github.com/ironsheep/ballmeter/internal/server"
	"github.com/ironsheep/ballmeter/internal/session"
	"github.com/ironsheep/ballmeter/internal/source"
)

// pipeline is a wired measurement session and the resources it holds.
type pipeline struct {
	session *session.Session
	closers []io.Closer
}

// Close releases resources in reverse order of acquisition, so sinks such
// as the LCD are cleared before the source stops.
func (p *pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// buildPipeline wires source, detector, calibration, sinks and operator
// input from cfg. Operator commands are read from in; prompts go to prompts.
func buildPipeline(ctx context.Context, cfg config.Config, in io.Reader, prompts io.Writer, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{}
	done := false
	defer func() {
		if !done {
			p.Close()
		}
	}()

	cal, err := newCalibration(cfg)
	if err != nil {
		return nil, err
	}
	det, err := newDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}

	src, err := openSource(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	if c, ok := src.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	style, err := newStyle(cfg.Display.Colors)
	if err != nil {
		return nil, err
	}
	ops := operator.NewConsole(in, prompts)
	sink, err := openSinks(cfg.Display, style, ops, logger)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, sink)

	opts := session.Options{Logger: logger}
	if cfg.Display.Fullscreen {
		w, h := cfg.Display.ScreenWidth, cfg.Display.ScreenHeight
		opts.Prepare = func(frame image.Image) image.Image {
			return imaging.Letterbox(frame, w, h)
		}
	}
	if cfg.Card.Enabled {
		cards, err := newCardReader(cfg.Card)
		if err != nil {
			return nil, err
		}
		opts.Cards = cards
	}

	p.session = session.New(src, det, cal, sink, ops, opts)
	logger.Info("pipeline ready", "session", p.session.ID(), "mode", cfg.Mode,
		"source", cfg.Source.Kind, "detector", cfg.Detector.Backend, "sinks", len(sink))
	done = true
	return p, nil
}

// serverOptions wires the MCP server with the same detector, calibration
// and card reader the live loop would use.
func serverOptions(cfg config.Config, logger *slog.Logger) (server.Options, error) {
	cal, err := newCalibration(cfg)
	if err != nil {
		return server.Options{}, err
	}
	det, err := newDetector(cfg.Detector)
	if err != nil {
		return server.Options{}, err
	}
	style, err := newStyle(cfg.Display.Colors)
	if err != nil {
		return server.Options{}, err
	}

	opts := server.Options{
		Detector:    det,
		Calibration: cal,
		Style:       &style,
		Logger:      logger,
	}
	if cfg.Card.Enabled {
		cards, err := newCardReader(cfg.Card)
		if err != nil {
			return server.Options{}, err
		}
		opts.Cards = cards
	}
	return opts, nil
}

func newCalibration(cfg config.Config) (*calibration.Calibration, error) {
	if !cfg.Preset() {
		return calibration.New(), nil
	}
	cal, err := calibration.NewPreset(cfg.PixelsPerMM, cfg.DensityFactor)
	if err != nil {
		return nil, fmt.Errorf("preset calibration: %w", err)
	}
	return cal, nil
}

func newDetector(dc config.DetectorConfig) (detection.Detector, error) {
	switch dc.Backend {
	case config.DetectorOpenCV:
		d, err := detection.NewOpenCVDetector()
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return detection.NewHoughDetector(), nil
	}
}

func openSource(ctx context.Context, sc config.SourceConfig) (session.Source, error) {
	switch sc.Kind {
	case config.SourceFiles:
		src, err := source.NewFiles(sc.Path, imaging.NewImageCache(), source.FilesOptions{
			Loop:     sc.Loop,
			Interval: time.Duration(sc.IntervalMS) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceMJPEG:
		src, err := source.OpenMJPEG(ctx, sc.URL, &http.Client{})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceCamera:
		src, err := source.OpenCamera(sc.URL, sc.Resolutions)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

func newStyle(c config.ColorConfig) (display.Style, error) {
	return display.ParseStyle(c.Circle, c.Center, c.Text, c.Background)
}

// openSinks opens every sink enabled in dc. On failure the sinks opened so
// far are closed.
func openSinks(dc config.DisplayConfig, style display.Style, keys display.KeyHandler, logger *slog.Logger) (display.Multi, error) {
	var sinks display.Multi
	fail := func(err error) (display.Multi, error) {
		sinks.Close()
		return nil, err
	}

	if dc.Console {
		sinks = append(sinks, display.NewConsole(logger))
	}
	if dc.SnapshotDir != "" {
		w, err := display.NewSnapshotWriter(dc.SnapshotDir, dc.SnapshotEvery, dc.SnapshotFormat, style)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
	}
	if dc.LCDPort != "" {
		lcd, err := display.OpenLCD(dc.LCDPort, dc.LCDOptions)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, lcd)
	}
	if dc.Window {
		win, err := display.OpenWindow(dc.Title, dc.Fullscreen, style, keys)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, win)
	}
	return sinks, nil
}

func newCardReader(cc config.CardConfig) (*ocr.CardReader, error) {
	rec, err := ocr.NewTesseract(cc.Language, cc.Tessdata)
	if err != nil {
		return nil, err
	}
	return ocr.NewCardReader(rec, ocr.CardOptions{Region: cc.Region, Scale: cc.Scale}), nil
}
