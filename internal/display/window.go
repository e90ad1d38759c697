//go:build gocv

package display

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/ballmeter/internal/session"
)

// Window shows annotated frames in an OpenCV window and forwards key presses
// to keys.
type Window struct {
	win   *gocv.Window
	style Style
	keys  KeyHandler
}

// OpenWindow creates the preview window. fullscreen stretches it over the
// whole screen; frames should then be letterboxed by the session.
func OpenWindow(title string, fullscreen bool, style Style, keys KeyHandler) (*Window, error) {
	win := gocv.NewWindow(title)
	if fullscreen {
		win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	}
	return &Window{win: win, style: style, keys: keys}, nil
}

// Render implements session.Sink.
func (w *Window) Render(frame image.Image, v session.View) error {
	mat, err := gocv.ImageToMatRGB(Annotate(frame, v, w.style))
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	w.win.IMShow(mat)
	if key := w.win.WaitKey(1); key >= 0 && w.keys != nil {
		w.keys.Key(key)
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
