package display

import (
	"fmt"
	"image"
	"io"
	"strings"

	"go.bug.st/serial"

	"github.com/ironsheep/ballmeter/internal/session"
)

// LCD geometry and the HD44780 commands understood by serial backpacks.
// Commands are sent as the 0xFE prefix followed by the controller byte.
const (
	LCDColumns = 16

	lcdCommand = 0xFE
	lcdClear   = 0x01
	lcdLine1   = 0x80
	lcdLine2   = 0xC0
)

// Start-up banner shown until the first measurement.
const (
	BannerLine1 = "Start App..."
	BannerLine2 = "Please wait..."
)

// LCD shows volume and weight on a 16x2 character display. The screen is
// only rewritten when a ball is measured and the text has changed; the last
// reading stays visible while no ball is in view.
type LCD struct {
	port  io.WriteCloser
	lines [2]string
}

// OpenLCD opens the serial port at path and shows the start-up banner.
func OpenLCD(path string, opts PortOptions) (*LCD, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open LCD port %s: %w", path, err)
	}
	return NewLCD(port)
}

// NewLCD drives an LCD over an already open port and shows the banner.
func NewLCD(port io.WriteCloser) (*LCD, error) {
	l := &LCD{port: port}
	if err := l.clear(); err != nil {
		return nil, err
	}
	if err := l.show(BannerLine1, BannerLine2); err != nil {
		return nil, err
	}
	return l, nil
}

// LCDLines formats a reading for the two display rows.
func LCDLines(v session.View) (string, string, bool) {
	if v.Result == nil {
		return "", "", false
	}
	r := v.Result.Rounded()
	line1 := fmt.Sprintf("Vol: %d cm3", r.VolumeCM3)
	line2 := "Weight: -"
	if r.WeightG != nil {
		line2 = fmt.Sprintf("Weight: %d g", *r.WeightG)
	}
	return line1, line2, true
}

// Render implements session.Sink.
func (l *LCD) Render(_ image.Image, v session.View) error {
	line1, line2, ok := LCDLines(v)
	if !ok {
		return nil
	}
	return l.show(line1, line2)
}

// Close clears the display and releases the port.
func (l *LCD) Close() error {
	clearErr := l.clear()
	if err := l.port.Close(); err != nil {
		return err
	}
	return clearErr
}

func (l *LCD) clear() error {
	l.lines = [2]string{}
	return l.write([]byte{lcdCommand, lcdClear})
}

func (l *LCD) show(line1, line2 string) error {
	for i, row := range []struct {
		addr byte
		text string
	}{{lcdLine1, line1}, {lcdLine2, line2}} {
		if l.lines[i] == row.text {
			continue
		}
		buf := append([]byte{lcdCommand, row.addr}, pad(row.text)...)
		if err := l.write(buf); err != nil {
			return err
		}
		l.lines[i] = row.text
	}
	return nil
}

func (l *LCD) write(b []byte) error {
	if _, err := l.port.Write(b); err != nil {
		return fmt.Errorf("LCD write failed: %w", err)
	}
	return nil
}

// pad fits s to exactly one row so stale characters are overwritten.
func pad(s string) string {
	if len(s) > LCDColumns {
		return s[:LCDColumns]
	}
	return s + strings.Repeat(" ", LCDColumns-len(s))
}
