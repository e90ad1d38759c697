package display

import (
	"errors"
	"image"
	"io"

	"github.com/ironsheep/ballmeter/internal/session"
)

// Multi renders each frame to every sink in order. A failing sink does not
// stop the others; their errors are joined.
type Multi []session.Sink

// Render implements session.Sink.
func (m Multi) Render(frame image.Image, v session.View) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(frame, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds a resource.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
