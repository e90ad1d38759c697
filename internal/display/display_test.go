package display

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/ironsheep/ballmeter/internal/calibration"
	"github.com/ironsheep/ballmeter/internal/detection"
	"github.com/ironsheep/ballmeter/internal/measure"
	"github.com/ironsheep/ballmeter/internal/session"
)

func blankFrame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

// views returns the same ball (r=100 px, 60 mm real) at each calibration
// stage.
func views(t *testing.T) (uncal, cal, full session.View) {
	t.Helper()
	circle := &detection.Circle{X: 160, Y: 120, Radius: 100}

	c := calibration.New()
	uncal = session.View{Seq: 1, Circle: circle, Calibration: c.Snapshot()}

	require.NoError(t, c.Calibrate(circle, 60))
	calRes, ok := measure.Compute(circle.Diameter(), c)
	require.True(t, ok)
	cal = session.View{Seq: 2, Circle: circle, Result: &calRes, Calibration: c.Snapshot()}

	require.NoError(t, c.SetDensityFactor(9))
	fullRes, ok := measure.Compute(circle.Diameter(), c)
	require.True(t, ok)
	full = session.View{Seq: 3, Circle: circle, Result: &fullRes, Calibration: c.Snapshot()}
	return uncal, cal, full
}

func TestViews_StagesDoNotShareResults(t *testing.T) {
	_, cal, full := views(t)
	require.NotNil(t, cal.Result)
	require.NotNil(t, full.Result)
	assert.Nil(t, cal.Result.WeightG, "calibrated stage has no density factor yet")
	assert.NotNil(t, full.Result.WeightG)
}

func TestStatusLines(t *testing.T) {
	uncal, cal, full := views(t)

	assert.Equal(t, []string{"Press 'c' to calibrate"}, StatusLines(uncal))

	want := []string{
		"Calibration: 3.33 px = 1mm",
		"Press 'd' to set density factor",
		"Volume: 113 cm3",
		"Diameter (px): 200.0 px",
		"Diameter (mm): 60.0 mm",
	}
	if diff := cmp.Diff(want, StatusLines(cal)); diff != "" {
		t.Errorf("calibrated lines mismatch (-want +got):\n%s", diff)
	}

	want = []string{
		"Calibration: 3.33 px = 1mm",
		"Density: 9.00 g/cm3",
		"Volume: 113 cm3",
		"Weight: 1018 g",
		"Diameter (px): 200.0 px",
		"Diameter (mm): 60.0 mm",
	}
	if diff := cmp.Diff(want, StatusLines(full)); diff != "" {
		t.Errorf("complete lines mismatch (-want +got):\n%s", diff)
	}

	// No ball in view: only the calibration lines.
	full.Circle, full.Result = nil, nil
	assert.Len(t, StatusLines(full), 2)
}

func TestRadiusLabel(t *testing.T) {
	assert.Equal(t, "R: 100px", RadiusLabel(detection.Circle{Radius: 99.6}))
}

func TestAnnotate(t *testing.T) {
	_, _, full := views(t)
	frame := blankFrame(320, 240)

	cv := Annotate(frame, full, DefaultStyle())
	assert.Equal(t, frame.Bounds(), cv.Bounds())
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, cv.RGBAAt(260, 120), "outline drawn at the radius")
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, cv.RGBAAt(160, 120), "centre dot")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(260, 120), "source frame untouched")
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("#0000FF", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, s.Circle)
	assert.Equal(t, DefaultStyle().Center, s.Center)

	_, err = ParseStyle("", "red", "", "")
	assert.Error(t, err)
}

func TestSnapshotWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	w, err := NewSnapshotWriter(dir, 2, "png", DefaultStyle())
	require.NoError(t, err)

	_, cal, _ := views(t)
	frame := blankFrame(320, 240)
	for seq := uint64(1); seq <= 4; seq++ {
		v := cal
		v.Seq = seq
		require.NoError(t, w.Render(frame, v))
	}
	// No ball: never saved.
	require.NoError(t, w.Render(frame, session.View{Seq: 6}))

	assert.Equal(t, 2, w.Saved())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"frame-000002.png", "frame-000004.png"}, names)

	_, err = NewSnapshotWriter(dir, 1, "bmp", DefaultStyle())
	assert.Error(t, err)
}

func TestConsole_LogsChangesOnly(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(slog.New(slog.NewTextHandler(&buf, nil)))
	uncal, cal, full := views(t)
	frame := blankFrame(4, 4)

	for _, v := range []session.View{uncal, uncal, cal, cal, cal, full, {Seq: 9, Calibration: full.Calibration}} {
		require.NoError(t, c.Render(frame, v))
	}

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Press 'c' to calibrate"))
	assert.Equal(t, 1, strings.Count(out, "Press 'd' to set density factor"))
	assert.Equal(t, 1, strings.Count(out, "calibration complete"))
	assert.Equal(t, 1, strings.Count(out, "ball detected"))
	assert.Equal(t, 1, strings.Count(out, "ball lost"))
	assert.Equal(t, 2, strings.Count(out, "msg=measurement"))
	assert.Contains(t, out, "weight_g=1018")
}

// fakePort records serial writes.
type fakePort struct {
	bytes.Buffer
	closed bool
	err    error
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.Buffer.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestLCD(t *testing.T) {
	port := &fakePort{}
	lcd, err := NewLCD(port)
	require.NoError(t, err)

	banner := port.String()
	assert.True(t, strings.HasPrefix(banner, "\xfe\x01"), "display cleared first")
	assert.Contains(t, banner, "\xfe\x80Start App...    ")
	assert.Contains(t, banner, "\xfe\xc0Please wait...  ")

	_, cal, full := views(t)
	port.Reset()
	require.NoError(t, lcd.Render(nil, cal))
	assert.Equal(t, "\xfe\x80Vol: 113 cm3    \xfe\xc0Weight: -       ", port.String())

	port.Reset()
	require.NoError(t, lcd.Render(nil, full))
	assert.Equal(t, "\xfe\xc0Weight: 1018 g  ", port.String(), "unchanged row not rewritten")

	port.Reset()
	require.NoError(t, lcd.Render(nil, session.View{}))
	assert.Empty(t, port.String(), "last reading kept while no ball is measured")

	require.NoError(t, lcd.Close())
	assert.Equal(t, "\xfe\x01", port.String())
	assert.True(t, port.closed)
}

func TestLCD_WriteError(t *testing.T) {
	_, err := NewLCD(&fakePort{err: errors.New("unplugged")})
	assert.Error(t, err)
}

func TestLCDLines(t *testing.T) {
	_, _, full := views(t)
	l1, l2, ok := LCDLines(full)
	require.True(t, ok)
	assert.Equal(t, "Vol: 113 cm3", l1)
	assert.Equal(t, "Weight: 1018 g", l2)

	_, _, ok = LCDLines(session.View{})
	assert.False(t, ok)
}

func TestPad(t *testing.T) {
	assert.Equal(t, "abc"+strings.Repeat(" ", 13), pad("abc"))
	assert.Equal(t, "0123456789abcdef", pad("0123456789abcdefXYZ"))
}

func TestPortOptions_Normalize(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, got)

	got, err = PortOptions{BaudRate: 19200, DataBits: 7, StopBits: 2, Parity: "even"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", got.Parity)

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 9600, DataBits: 8, StopBits: serial.TwoStopBits, Parity: serial.OddParity}, mode)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{DataBits: 4}.SerialMode()
	assert.Error(t, err)
}

type recordingSink struct {
	n   int
	err error
}

func (r *recordingSink) Render(image.Image, session.View) error {
	r.n++
	return r.err
}

type closingSink struct {
	recordingSink
	closed bool
}

func (c *closingSink) Close() error {
	c.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &closingSink{}
	m := Multi{failing, ok}

	err := m.Render(nil, session.View{})
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, failing.n)
	assert.Equal(t, 1, ok.n, "later sinks still render")

	require.NoError(t, m.Close())
	assert.True(t, ok.closed)
}
