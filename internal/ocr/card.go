package ocr

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"

	bmimaging "github.com/ironsheep/ballmeter/internal/imaging"
)

// ErrNoDiameter is returned when the recognised text holds no number.
var ErrNoDiameter = errors.New("ocr: no diameter found on calibration card")

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// CardOptions locates the calibration card in the frame.
type CardOptions struct {
	// Region is the card area as fractions of the frame: x0, y0, x1, y1.
	// The zero value means the whole frame.
	Region [4]float64

	// Scale enlarges the cropped card before recognition. Tesseract reads
	// small printed digits far better at 2-3x. Zero means 2.
	Scale float64
}

// CardReader reads the reference diameter printed on a calibration card,
// e.g. "Ø 60 mm", held up in the camera view.
type CardReader struct {
	rec  Recognizer
	opts CardOptions
}

// NewCardReader creates a reader that sends the card region to rec.
func NewCardReader(rec Recognizer, opts CardOptions) *CardReader {
	if opts.Region == ([4]float64{}) {
		opts.Region = [4]float64{0, 0, 1, 1}
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	return &CardReader{rec: rec, opts: opts}
}

// ReadDiameter returns the diameter text from the card, without unit, ready
// for calibration.ParseValue.
func (r *CardReader) ReadDiameter(frame image.Image) (string, error) {
	card, err := r.prepare(frame)
	if err != nil {
		return "", err
	}

	text, err := r.rec.Recognize(card)
	if err != nil {
		return "", fmt.Errorf("card recognition failed: %w", err)
	}
	return ExtractDiameter(text)
}

// prepare crops the card region and boosts it for recognition.
func (r *CardReader) prepare(frame image.Image) (image.Image, error) {
	reg := r.opts.Region
	rect := bmimaging.FractionRect(frame.Bounds(), reg[0], reg[1], reg[2], reg[3])
	card, err := bmimaging.Crop(frame, rect, r.opts.Scale)
	if err != nil {
		return nil, err
	}

	gray := imaging.Grayscale(card)
	gray = imaging.AdjustContrast(gray, 40)
	return imaging.Sharpen(gray, 1.0), nil
}

var (
	numberWithUnit = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*mm\b`)
	bareNumber     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// ExtractDiameter finds the diameter in OCR output. A number followed by
// "mm" wins over any other number; otherwise the first number is used.
func ExtractDiameter(text string) (string, error) {
	lower := strings.ToLower(text)
	if m := numberWithUnit.FindStringSubmatch(lower); m != nil {
		return m[1], nil
	}
	if m := bareNumber.FindString(lower); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNoDiameter, strings.TrimSpace(text))
}
