// Package measure converts a detected pixel diameter into physical volume
// and estimated weight using the session calibration.
package measure

import (
	"math"

	"github.com/ironsheep/ballmeter/internal/calibration"
)

// Result is the measurement of one frame. It is recomputed every frame and
// never stored.
type Result struct {
	// DiameterPx is the detected diameter the result was computed from.
	DiameterPx float64 `json:"diameter_px"`

	// DiameterMM is the real diameter in millimetres.
	DiameterMM float64 `json:"diameter_mm"`

	// VolumeCM3 is the sphere volume in cubic centimetres.
	VolumeCM3 float64 `json:"volume_cm3"`

	// WeightG is the estimated weight in grams. Nil when no density factor is
	// configured.
	WeightG *float64 `json:"weight_g,omitempty"`
}

// Compute measures a ball of the given pixel diameter.
//
// It returns false when the calibration has no pixel-to-millimetre ratio
// yet; that is the expected state before the first calibration and not an
// error. No clamping is applied: a zero diameter gives a zero volume.
func Compute(diameterPx float64, cal *calibration.Calibration) (Result, bool) {
	ratio, ok := cal.Ratio()
	if !ok {
		return Result{}, false
	}

	diameterMM := diameterPx / ratio
	radiusCM := (diameterMM / 2) / 10
	volume := SphereVolume(radiusCM)

	res := Result{
		DiameterPx: diameterPx,
		DiameterMM: diameterMM,
		VolumeCM3:  volume,
	}
	if density, ok := cal.DensityFactor(); ok {
		weight := volume * density
		res.WeightG = &weight
	}
	return res, true
}

// SphereVolume returns (4/3)·π·r³.
func SphereVolume(radius float64) float64 {
	return (4.0 / 3.0) * math.Pi * radius * radius * radius
}

// Rounded is a Result rounded for display: volume and weight to whole units,
// diameters to one decimal.
type Rounded struct {
	DiameterPx float64 `json:"diameter_px"`
	DiameterMM float64 `json:"diameter_mm"`
	VolumeCM3  int64   `json:"volume_cm3"`
	WeightG    *int64  `json:"weight_g,omitempty"`
}

// Rounded returns the display rounding of r.
func (r Result) Rounded() Rounded {
	out := Rounded{
		DiameterPx: math.Round(r.DiameterPx*10) / 10,
		DiameterMM: math.Round(r.DiameterMM*10) / 10,
		VolumeCM3:  int64(math.Round(r.VolumeCM3)),
	}
	if r.WeightG != nil {
		w := int64(math.Round(*r.WeightG))
		out.WeightG = &w
	}
	return out
}
