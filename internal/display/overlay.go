package display

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ironsheep/ballmeter/internal/imaging"
	"github.com/ironsheep/ballmeter/internal/session"
)

// Style holds the annotation colours.
type Style struct {
	Circle     color.RGBA
	Center     color.RGBA
	Text       color.RGBA
	Background color.RGBA
}

// DefaultStyle draws a green outline, a red centre and white text on a
// translucent black box.
func DefaultStyle() Style {
	return Style{
		Circle:     imaging.MustParseColor("#00FF00"),
		Center:     imaging.MustParseColor("#FF0000"),
		Text:       imaging.MustParseColor("#FFFFFF"),
		Background: imaging.MustParseColor("#000000A0"),
	}
}

// ParseStyle builds a style from hex colours, keeping the default for any
// empty entry.
func ParseStyle(circle, center, text, background string) (Style, error) {
	s := DefaultStyle()
	for _, f := range []struct {
		hex string
		dst *color.RGBA
	}{
		{circle, &s.Circle},
		{center, &s.Center},
		{text, &s.Text},
		{background, &s.Background},
	} {
		if f.hex == "" {
			continue
		}
		c, err := imaging.ParseColor(f.hex)
		if err != nil {
			return Style{}, fmt.Errorf("invalid overlay colour %q: %w", f.hex, err)
		}
		*f.dst = c
	}
	return s, nil
}

// Annotate returns a copy of frame with the detected ball and the status
// lines drawn on it.
func Annotate(frame image.Image, v session.View, style Style) *imaging.Canvas {
	cv := imaging.NewCanvas(frame)
	origin := frame.Bounds().Min

	if c := v.Circle; c != nil {
		cv.Circle(c.X, c.Y, c.Radius, 2, style.Circle)
		cv.Dot(c.X, c.Y, 3, style.Center)

		label := RadiusLabel(*c)
		// basicfont glyphs are 7px wide.
		cv.Text(int(c.X)-len(label)*7/2, int(c.Y)+6, label, style.Center, style.Background)
	}

	cv.Lines(origin.X+10, origin.Y+10, StatusLines(v), style.Text, style.Background)
	return cv
}

// SnapshotWriter saves annotated frames to a directory.
type SnapshotWriter struct {
	dir    string
	every  uint64
	format string
	style  Style
	saved  int
}

// NewSnapshotWriter saves every n-th frame that shows a ball into dir as
// format ("png" or "jpg"). The directory is created if needed.
func NewSnapshotWriter(dir string, every int, format string, style Style) (*SnapshotWriter, error) {
	if every < 1 {
		every = 1
	}
	switch format {
	case "":
		format = "png"
	case "png", "jpg", "jpeg":
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotWriter{dir: dir, every: uint64(every), format: format, style: style}, nil
}

// Saved reports how many snapshots were written.
func (w *SnapshotWriter) Saved() int {
	return w.saved
}

// Render implements session.Sink.
func (w *SnapshotWriter) Render(frame image.Image, v session.View) error {
	if v.Circle == nil || v.Seq%w.every != 0 {
		return nil
	}

	path := filepath.Join(w.dir, fmt.Sprintf("frame-%06d.%s", v.Seq, w.format))
	if err := imaging.Save(Annotate(frame, v, w.style), path); err != nil {
		return err
	}
	w.saved++
	slog.Debug("snapshot saved", "path", path)
	return nil
}
