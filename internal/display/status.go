// Package display renders measurement results: text status lines, frame
// annotations, snapshots, a serial character LCD and an optional OpenCV
// preview window. Every renderer implements session.Sink.
package display

import (
	"fmt"
	"math"

	"github.com/ironsheep/ballmeter/internal/calibration"
	"github.com/ironsheep/ballmeter/internal/detection"
	"github.com/ironsheep/ballmeter/internal/session"
)

// Operator hints shown while the calibration is incomplete.
const (
	CalibrateHint = "Press 'c' to calibrate"
	DensityHint   = "Press 'd' to set density factor"
)

// StatusLines returns the text block drawn in the top-left corner of the
// preview for one frame.
func StatusLines(v session.View) []string {
	snap := v.Calibration

	var lines []string
	switch snap.State {
	case calibration.Uncalibrated:
		return []string{CalibrateHint}
	case calibration.Calibrated:
		lines = append(lines, fmt.Sprintf("Calibration: %.2f px = 1mm", *snap.PixelsPerMM), DensityHint)
	case calibration.FactorSet:
		lines = append(lines,
			fmt.Sprintf("Calibration: %.2f px = 1mm", *snap.PixelsPerMM),
			fmt.Sprintf("Density: %.2f g/cm3", *snap.DensityFactor),
		)
	}

	if v.Result == nil {
		return lines
	}
	r := v.Result.Rounded()
	lines = append(lines, fmt.Sprintf("Volume: %d cm3", r.VolumeCM3))
	if r.WeightG != nil {
		lines = append(lines, fmt.Sprintf("Weight: %d g", *r.WeightG))
	}
	return append(lines,
		fmt.Sprintf("Diameter (px): %.1f px", r.DiameterPx),
		fmt.Sprintf("Diameter (mm): %.1f mm", r.DiameterMM),
	)
}

// RadiusLabel is the text drawn at the centre of a detected ball.
func RadiusLabel(c detection.Circle) string {
	return fmt.Sprintf("R: %dpx", int(math.Round(c.Radius)))
}
