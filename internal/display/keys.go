package display

import "errors"

// ErrWindowUnavailable is returned by OpenWindow in builds without OpenCV.
var ErrWindowUnavailable = errors.New("display: preview window requires a build with -tags gocv")

// KeyHandler receives key codes pressed in the preview window.
type KeyHandler interface {
	Key(key int)
}
