package display

import (
	"image"
	"log/slog"

	"github.com/ironsheep/ballmeter/internal/calibration"
	"github.com/ironsheep/ballmeter/internal/measure"
	"github.com/ironsheep/ballmeter/internal/session"
)

// Console logs calibration changes and measurements. A line is written only
// when the displayed value changes, so a ball held still does not flood the
// log.
type Console struct {
	log      *slog.Logger
	state    calibration.State
	started  bool
	last     *measure.Rounded
	detected bool
}

// NewConsole logs through logger, or slog.Default() when nil.
func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{log: logger}
}

// Render implements session.Sink.
func (c *Console) Render(_ image.Image, v session.View) error {
	if !c.started || v.Calibration.State != c.state {
		c.started = true
		c.state = v.Calibration.State
		c.logState(v.Calibration)
	}

	if (v.Circle != nil) != c.detected {
		c.detected = v.Circle != nil
		if c.detected {
			c.log.Info("ball detected", "seq", v.Seq, "x", v.Circle.X, "y", v.Circle.Y, "radius_px", v.Circle.Radius)
		} else {
			c.log.Info("ball lost", "seq", v.Seq)
			c.last = nil
		}
	}

	if v.Result == nil {
		return nil
	}
	r := v.Result.Rounded()
	if c.last != nil && sameRounded(*c.last, r) {
		return nil
	}
	c.last = &r

	attrs := []any{"seq", v.Seq, "diameter_px", r.DiameterPx, "diameter_mm", r.DiameterMM, "volume_cm3", r.VolumeCM3}
	if r.WeightG != nil {
		attrs = append(attrs, "weight_g", *r.WeightG)
	}
	c.log.Info("measurement", attrs...)
	return nil
}

func (c *Console) logState(s calibration.Snapshot) {
	switch s.State {
	case calibration.Uncalibrated:
		c.log.Info(CalibrateHint, "state", s.State)
	case calibration.Calibrated:
		c.log.Info(DensityHint, "state", s.State, "pixels_per_mm", *s.PixelsPerMM)
	default:
		c.log.Info("calibration complete", "state", s.State,
			"pixels_per_mm", *s.PixelsPerMM, "density_g_per_cm3", *s.DensityFactor)
	}
}

func sameRounded(a, b measure.Rounded) bool {
	if a.DiameterPx != b.DiameterPx || a.DiameterMM != b.DiameterMM || a.VolumeCM3 != b.VolumeCM3 {
		return false
	}
	if (a.WeightG == nil) != (b.WeightG == nil) {
		return false
	}
	return a.WeightG == nil || *a.WeightG == *b.WeightG
}
