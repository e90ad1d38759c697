// Package calibration holds the session's measurement configuration: the
// pixel-to-millimetre ratio established once by the operator and the density
// factor used to turn volume into weight.
//
// The configuration moves through three states and never goes back:
//
//	Uncalibrated --Calibrate--> Calibrated --SetDensityFactor--> FactorSet
//
// A deployment that knows its geometry up front can start directly in
// FactorSet with NewPreset. Nothing here is persisted; a restart begins again
// from the initial state.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/ballmeter/internal/detection"
)

// State is the position of a Calibration in its lifecycle.
type State int

const (
	// Uncalibrated means no pixel-to-millimetre ratio is known yet.
	Uncalibrated State = iota
	// Calibrated means the ratio is set but no density factor is.
	Calibrated
	// FactorSet means both ratio and density factor are set. Terminal.
	FactorSet
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case Calibrated:
		return "calibrated"
	case FactorSet:
		return "factor_set"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON and log output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidValue is returned for operator values that are not positive
	// finite numbers.
	ErrInvalidValue = errors.New("calibration: value must be a positive number")

	// ErrNoCircle is returned when calibration is requested while no ball is
	// detected in the current frame.
	ErrNoCircle = errors.New("calibration: no ball detected in the current frame")

	// ErrAlreadyCalibrated is returned when calibration is requested after the
	// ratio has been set.
	ErrAlreadyCalibrated = errors.New("calibration: ratio already set for this session")

	// ErrNotCalibrated is returned when a density factor is supplied before
	// calibration.
	ErrNotCalibrated = errors.New("calibration: calibrate before setting the density factor")

	// ErrFactorAlreadySet is returned when a density factor is supplied a
	// second time.
	ErrFactorAlreadySet = errors.New("calibration: density factor already set for this session")
)

// Calibration is the single, session-owned measurement configuration.
//
// It is not safe for concurrent use; the measurement loop is its only writer
// and reader.
type Calibration struct {
	state               State
	ratio               float64
	referenceDiameterMM float64
	densityFactor       float64
}

// New returns a Calibration in the Uncalibrated state.
func New() *Calibration {
	return &Calibration{state: Uncalibrated}
}

// NewPreset returns a Calibration that starts in FactorSet with a fixed
// ratio (pixels per millimetre) and density factor (g/cm³).
func NewPreset(pixelsPerMM, densityFactor float64) (*Calibration, error) {
	if !validValue(pixelsPerMM) {
		return nil, fmt.Errorf("preset pixels per mm %v: %w", pixelsPerMM, ErrInvalidValue)
	}
	if !validValue(densityFactor) {
		return nil, fmt.Errorf("preset density factor %v: %w", densityFactor, ErrInvalidValue)
	}
	return &Calibration{
		state:         FactorSet,
		ratio:         pixelsPerMM,
		densityFactor: densityFactor,
	}, nil
}

// State returns the current state.
func (c *Calibration) State() State {
	return c.state
}

// Ratio returns the pixels-per-millimetre ratio, if set.
func (c *Calibration) Ratio() (float64, bool) {
	return c.ratio, c.state != Uncalibrated
}

// ReferenceDiameterMM returns the real diameter supplied at calibration
// time. It is absent before calibration and for preset configurations.
func (c *Calibration) ReferenceDiameterMM() (float64, bool) {
	return c.referenceDiameterMM, c.referenceDiameterMM > 0
}

// DensityFactor returns the density factor in g/cm³, if set.
func (c *Calibration) DensityFactor() (float64, bool) {
	return c.densityFactor, c.state == FactorSet
}

// Calibrate derives the pixel-to-millimetre ratio from the ball detected in
// the current frame and its real diameter.
//
// On success the ratio becomes 2*radius/realDiameterMM and the state moves to
// Calibrated. Every failure leaves the Calibration unchanged.
func (c *Calibration) Calibrate(circle *detection.Circle, realDiameterMM float64) error {
	if c.state != Uncalibrated {
		return ErrAlreadyCalibrated
	}
	if !validValue(realDiameterMM) {
		return fmt.Errorf("real diameter %v mm: %w", realDiameterMM, ErrInvalidValue)
	}
	if circle == nil {
		return ErrNoCircle
	}

	c.ratio = circle.Diameter() / realDiameterMM
	c.referenceDiameterMM = realDiameterMM
	c.state = Calibrated
	return nil
}

// SetDensityFactor sets the density factor in g/cm³ and moves the state to
// FactorSet. It is only accepted in the Calibrated state.
func (c *Calibration) SetDensityFactor(value float64) error {
	switch c.state {
	case Uncalibrated:
		return ErrNotCalibrated
	case FactorSet:
		return ErrFactorAlreadySet
	}
	if !validValue(value) {
		return fmt.Errorf("density factor %v: %w", value, ErrInvalidValue)
	}

	c.densityFactor = value
	c.state = FactorSet
	return nil
}

// Snapshot is a read-only copy of a Calibration for display and JSON output.
// Unset values are nil.
type Snapshot struct {
	State               State    `json:"state"`
	PixelsPerMM         *float64 `json:"pixels_per_mm,omitempty"`
	ReferenceDiameterMM *float64 `json:"reference_diameter_mm,omitempty"`
	DensityFactor       *float64 `json:"density_factor,omitempty"`
}

// Snapshot returns the current configuration.
func (c *Calibration) Snapshot() Snapshot {
	s := Snapshot{State: c.state}
	if v, ok := c.Ratio(); ok {
		s.PixelsPerMM = &v
	}
	if v, ok := c.ReferenceDiameterMM(); ok {
		s.ReferenceDiameterMM = &v
	}
	if v, ok := c.DensityFactor(); ok {
		s.DensityFactor = &v
	}
	return s
}

func validValue(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
