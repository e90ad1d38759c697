// Package ocr reads the reference diameter from a printed calibration card.
//
// Instead of typing the ball's real diameter, the operator can hold a card
// reading e.g. "60 mm" in a fixed area of the camera view and trigger the
// card action. CardReader crops that area, enlarges and sharpens it, runs
// text recognition and extracts the number. The result is validated by the
// calibration exactly like typed input.
//
// # Engines
//
// Recognition goes through the Recognizer interface. The Tesseract engine
// (gosseract/v2) needs cgo and the Tesseract libraries, so it is compiled
// only with the tesseract build tag:
//
//	go build -tags tesseract ./cmd/ballmeter
//
// Language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Without the tag, NewTesseract returns ErrUnavailable and the card action
// is reported as unavailable at runtime.
package ocr

import "errors"

// ErrUnavailable is returned when the binary was built without Tesseract.
var ErrUnavailable = errors.New("ocr: text recognition requires a build with -tags tesseract")
