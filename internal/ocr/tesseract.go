//go:build tesseract

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// cardWhitelist limits recognition to what a calibration card prints.
const cardWhitelist = "0123456789.,mM "

// Tesseract recognises text with the Tesseract engine.
type Tesseract struct {
	language  string
	tessdata  string
	whitelist string
}

// NewTesseract creates a recogniser for language (e.g. "eng"). tessdata
// overrides the training data directory; empty uses the system default.
func NewTesseract(language, tessdata string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language, tessdata: tessdata, whitelist: cardWhitelist}, nil
}

// Version returns the linked Tesseract version.
func Version() string {
	return gosseract.Version()
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(img image.Image) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdata != "" {
		if err := client.SetTessdataPrefix(t.tessdata); err != nil {
			return "", fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetWhitelist(t.whitelist); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("failed to set page segmentation: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}
