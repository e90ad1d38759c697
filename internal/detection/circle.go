package detection

import (
	"errors"
	"image"
	"math"
)

// ErrOpenCVUnavailable is returned by NewOpenCVDetector in binaries built
// without the gocv tag.
var ErrOpenCVUnavailable = errors.New("detection: gocv build tag is not enabled")

// Fixed detection operating point. These values were tuned empirically for a
// single ball held in front of a webcam and are not runtime configurable.
const (
	// BlurKernelSize is the side length of the square Gaussian kernel applied
	// to the intensity image before edge detection.
	BlurKernelSize = 9

	// BlurSigma is the standard deviation of the Gaussian kernel in pixels.
	BlurSigma = 2.0

	// AccumulatorResolution is the inverse ratio of accumulator resolution to
	// image resolution (1 = same resolution as the frame).
	AccumulatorResolution = 1.0

	// MinCenterDistance is the minimum distance in pixels between the centres
	// of two distinct detections.
	MinCenterDistance = 100.0

	// CannyHighThreshold is the upper hysteresis threshold of the edge stage.
	// The lower threshold is half of it.
	CannyHighThreshold = 50.0

	// AccumulatorThreshold is the number of votes a centre needs within its
	// 3x3 neighbourhood, and the number of edge points a radius needs, before
	// a circle is accepted.
	AccumulatorThreshold = 30

	// MinRadius and MaxRadius bound the radius search window (inclusive).
	MinRadius = 20
	MaxRadius = 300
)

// Circle is the projection of the ball found in one frame.
//
// Centre and radius are rounded to the nearest whole pixel. A Circle lives for
// one frame cycle only.
type Circle struct {
	// X is the horizontal centre position in frame coordinates.
	X float64 `json:"center_x"`

	// Y is the vertical centre position in frame coordinates.
	Y float64 `json:"center_y"`

	// Radius is the radius in pixels.
	Radius float64 `json:"radius_px"`
}

// Diameter returns the pixel diameter of the circle.
func (c Circle) Diameter() float64 {
	return 2 * c.Radius
}

// Center returns the centre as an integer image point.
func (c Circle) Center() image.Point {
	return image.Pt(int(c.X), int(c.Y))
}

// Detector finds at most one circle in a frame.
//
// The boolean result is false when nothing circular enough was found. That
// is the normal state when no ball is in view and is not an error.
type Detector interface {
	Detect(frame image.Image) (Circle, bool)
}

// Params groups the transform parameters so that both backends run with the
// same operating point.
type Params struct {
	DP        float64
	MinDist   float64
	Param1    float64
	Param2    int
	MinRadius int
	MaxRadius int
	BlurSize  int
	BlurSigma float64
}

// DefaultParams returns the fixed operating point described by the package
// constants.
func DefaultParams() Params {
	return Params{
		DP:        AccumulatorResolution,
		MinDist:   MinCenterDistance,
		Param1:    CannyHighThreshold,
		Param2:    AccumulatorThreshold,
		MinRadius: MinRadius,
		MaxRadius: MaxRadius,
		BlurSize:  BlurKernelSize,
		BlurSigma: BlurSigma,
	}
}

// roundCircle rounds a raw candidate to whole pixels and shifts it into frame
// coordinates.
func roundCircle(x, y, r float64, origin image.Point) Circle {
	return Circle{
		X:      math.Round(x) + float64(origin.X),
		Y:      math.Round(y) + float64(origin.Y),
		Radius: math.Round(r),
	}
}
