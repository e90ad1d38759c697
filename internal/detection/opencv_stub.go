//go:build !gocv

package detection

import "image"

// OpenCVDetector is a placeholder in builds without OpenCV.
type OpenCVDetector struct{}

// NewOpenCVDetector always fails without the gocv build tag.
func NewOpenCVDetector() (*OpenCVDetector, error) {
	return nil, ErrOpenCVUnavailable
}

// Detect never finds anything without OpenCV.
func (d *OpenCVDetector) Detect(frame image.Image) (Circle, bool) {
	return Circle{}, false
}
