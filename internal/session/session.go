// Package session runs the measurement loop: acquire a frame, detect the
// ball, measure it when calibrated, hand the result to the render sink, then
// apply the operator actions queued during the cycle.
//
// The loop is single-threaded. Actions are applied fully between frames, so
// the calibration never changes while a frame is being processed.
package session

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ironsheep/ballmeter/internal/calibration"
	"github.com/ironsheep/ballmeter/internal/detection"
	"github.com/ironsheep/ballmeter/internal/measure"
	"github.com/ironsheep/ballmeter/internal/operator"
)

// ErrSourceExhausted is returned by Run when the frame source stops
// producing frames. It ends the session.
var ErrSourceExhausted = errors.New("session: frame source returned no frame")

// Source yields frames on demand. A false result means end of stream or an
// acquisition failure; either way the session ends.
type Source interface {
	Read() (image.Image, bool)
}

// Sink receives every processed frame together with its View.
type Sink interface {
	Render(frame image.Image, v View) error
}

// Actions supplies operator actions queued since the previous call. It must
// not block.
type Actions interface {
	Pending() []operator.Action
}

// CardReader reads the reference diameter printed on a calibration card
// held up in the frame. The raw text is validated like typed input.
type CardReader interface {
	ReadDiameter(frame image.Image) (string, error)
}

// View is what the render sink gets for one frame.
type View struct {
	// Seq is the 1-based frame number within the session.
	Seq uint64 `json:"seq"`

	// Circle is the detected ball, nil when none was found.
	Circle *detection.Circle `json:"circle,omitempty"`

	// Result is the measurement, nil when no ball was found or the session
	// is not calibrated.
	Result *measure.Result `json:"result,omitempty"`

	// Calibration is the configuration in effect for this frame.
	Calibration calibration.Snapshot `json:"calibration"`
}

// Options holds optional collaborators.
type Options struct {
	// Prepare transforms each frame before detection, e.g. letterboxing to
	// the screen size. Nil leaves frames untouched.
	Prepare func(image.Image) image.Image

	// Cards enables the calibrate-from-card action.
	Cards CardReader

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session owns the calibration for the lifetime of one measurement run.
type Session struct {
	id       string
	source   Source
	detector detection.Detector
	cal      *calibration.Calibration
	sink     Sink
	actions  Actions
	opts     Options
	log      *slog.Logger
	seq      uint64
}

// New creates a session. actions may be nil when no operator is attached.
func New(src Source, det detection.Detector, cal *calibration.Calibration, sink Sink, actions Actions, opts Options) *Session {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:       id,
		source:   src,
		detector: det,
		cal:      cal,
		sink:     sink,
		actions:  actions,
		opts:     opts,
		log:      logger.With("session", id),
	}
}

// ID returns the session identifier used in log output.
func (s *Session) ID() string {
	return s.id
}

// Calibration returns the session's calibration.
func (s *Session) Calibration() *calibration.Calibration {
	return s.cal
}

// Frames returns the number of frames processed so far.
func (s *Session) Frames() uint64 {
	return s.seq
}

// Run processes frames until the operator quits, the source is exhausted or
// ctx is cancelled. Quitting returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("measurement session started", "state", s.cal.State())
	defer func() {
		s.log.Info("measurement session ended", "frames", s.seq, "state", s.cal.State())
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		quit, err := s.Step()
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Step runs one frame cycle. It reports whether the operator asked to quit.
func (s *Session) Step() (quit bool, err error) {
	frame, ok := s.source.Read()
	if !ok {
		return false, ErrSourceExhausted
	}
	if s.opts.Prepare != nil {
		frame = s.opts.Prepare(frame)
	}
	s.seq++

	v := View{Seq: s.seq}
	if c, found := s.detector.Detect(frame); found {
		v.Circle = &c
		if res, ok := measure.Compute(c.Diameter(), s.cal); ok {
			v.Result = &res
		}
	}
	v.Calibration = s.cal.Snapshot()

	if v.Result != nil {
		s.log.Debug("measured", "seq", v.Seq, "radius_px", v.Circle.Radius,
			"diameter_mm", v.Result.DiameterMM, "volume_cm3", v.Result.VolumeCM3)
	}

	if err := s.sink.Render(frame, v); err != nil {
		s.log.Warn("render failed", "seq", v.Seq, "error", err)
	}

	if s.actions == nil {
		return false, nil
	}
	for _, a := range s.actions.Pending() {
		if s.Apply(a, v.Circle, frame) {
			return true, nil
		}
	}
	return false, nil
}

// Apply validates and applies one operator action against the circle and
// frame of the current cycle. Rejected actions are logged and leave the
// calibration unchanged. It reports whether the action was Quit.
func (s *Session) Apply(a operator.Action, circle *detection.Circle, frame image.Image) bool {
	switch a.Kind {
	case operator.Quit:
		s.log.Info("operator quit")
		return true

	case operator.Calibrate:
		s.calibrate(a.Value, circle)

	case operator.CalibrateFromCard:
		if s.opts.Cards == nil {
			s.log.Warn("calibration card reading is not available")
			return false
		}
		text, err := s.opts.Cards.ReadDiameter(frame)
		if err != nil {
			s.log.Warn("calibration card not readable", "error", err)
			return false
		}
		s.log.Info("calibration card read", "text", text)
		s.calibrate(text, circle)

	case operator.SetDensityFactor:
		v, err := calibration.ParseValue(a.Value)
		if err == nil {
			err = s.cal.SetDensityFactor(v)
		}
		if err != nil {
			s.log.Warn("density factor rejected", "value", a.Value, "error", err)
			return false
		}
		s.log.Info("density factor set", "g_per_cm3", v, "state", s.cal.State())

	default:
		s.log.Warn("unknown operator action", "kind", a.Kind)
	}
	return false
}

func (s *Session) calibrate(raw string, circle *detection.Circle) {
	v, err := calibration.ParseValue(raw)
	if err == nil {
		err = s.cal.Calibrate(circle, v)
	}
	if err != nil {
		s.log.Warn("calibration rejected", "value", raw, "error", err)
		return
	}
	ratio, _ := s.cal.Ratio()
	s.log.Info("calibrated", "real_diameter_mm", v, "radius_px", circle.Radius,
		"pixels_per_mm", ratio, "state", s.cal.State())
}
