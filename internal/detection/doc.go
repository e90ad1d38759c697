// Package detection finds the projection of a ball in a video frame.
//
// A frame goes through a fixed pipeline:
//
//  1. Intensity conversion and a 9x9 Gaussian blur (sigma 2)
//  2. Canny edge detection (thresholds 25 and 50)
//  3. Hough gradient circle transform (dp 1, minimum centre distance 100 px,
//     accumulator threshold 30, radius 20-300 px)
//
// Only the highest-ranked candidate is reported. The package assumes a single
// ball in view and makes no attempt to disambiguate by size, position or
// motion between frames.
//
// # Backends
//
// HoughDetector is implemented in Go and is always available. OpenCVDetector
// calls OpenCV through gocv with the same parameters and is compiled only
// with the gocv build tag:
//
//	go build -tags gocv ./cmd/ballmeter
//
// # Coordinate System
//
// Coordinates follow the image convention: origin at the top-left, X to the
// right, Y down. Centre and radius are rounded to whole pixels.
//
// # Limitations
//
// The operating point favours precision over recall. Low-contrast balls,
// strong motion blur, or a ball cut off by the frame edge may not be found.
// A miss is reported as "no circle" rather than an error.
package detection
