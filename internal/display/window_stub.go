//go:build !gocv

package display

import (
	"image"

	"github.com/ironsheep/ballmeter/internal/session"
)

// Window is unavailable without the gocv build tag.
type Window struct{}

// OpenWindow always fails in builds without OpenCV.
func OpenWindow(title string, fullscreen bool, style Style, keys KeyHandler) (*Window, error) {
	return nil, ErrWindowUnavailable
}

// Render does nothing.
func (w *Window) Render(image.Image, session.View) error {
	return nil
}

// Close does nothing.
func (w *Window) Close() error {
	return nil
}
