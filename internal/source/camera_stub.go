//go:build !gocv

package source

import "image"

// Camera is unavailable without the gocv build tag.
type Camera struct{}

// OpenCamera always fails in builds without OpenCV.
func OpenCamera(device string, prefs []Resolution) (*Camera, error) {
	return nil, ErrCameraUnavailable
}

// Resolution returns the zero Resolution.
func (c *Camera) Resolution() Resolution {
	return Resolution{}
}

// Read never yields a frame.
func (c *Camera) Read() (image.Image, bool) {
	return nil, false
}

// Close does nothing.
func (c *Camera) Close() error {
	return nil
}
