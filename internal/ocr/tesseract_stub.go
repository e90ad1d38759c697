//go:build !tesseract

package ocr

import "image"

// Tesseract is unavailable without the tesseract build tag.
type Tesseract struct{}

// NewTesseract always fails in builds without Tesseract.
func NewTesseract(language, tessdata string) (*Tesseract, error) {
	return nil, ErrUnavailable
}

// Version reports that no engine is linked.
func Version() string {
	return ""
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(image.Image) (string, error) {
	return "", ErrUnavailable
}
