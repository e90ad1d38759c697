//go:build !tesseract

package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTesseract_Stub(t *testing.T) {
	_, err := NewTesseract("eng", "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, Version())
}
