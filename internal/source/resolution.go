package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrCameraUnavailable is returned by OpenCamera in builds without OpenCV.
	ErrCameraUnavailable = errors.New("source: camera capture requires a build with -tags gocv")

	// ErrCameraNotOpened is returned when the device exists but cannot stream.
	ErrCameraNotOpened = errors.New("source: camera could not be opened")
)

// Resolution is a capture size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// DefaultResolutions is the order in which capture sizes are tried.
var DefaultResolutions = []Resolution{
	{1920, 1080},
	{1280, 720},
	{800, 600},
	{640, 480},
}

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT", s)
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return Resolution{}, fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT", s)
	}
	return Resolution{Width: width, Height: height}, nil
}
