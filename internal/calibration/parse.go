package calibration

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// unitSuffixes are accepted after an operator value and ignored.
var unitSuffixes = []string{"g/cm3", "g/cm³", "mm"}

// ParseValue turns operator text into a positive finite number.
//
// Surrounding whitespace, a trailing unit (mm, g/cm3, ...) and a decimal
// comma are tolerated, so "60", " 60.5 mm" and "9,0" are all accepted. Empty,
// non-numeric, non-finite and non-positive input returns ErrInvalidValue.
func ParseValue(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, suffix := range unitSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimRightFunc(strings.TrimSuffix(s, suffix), unicode.IsSpace)
			break
		}
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	if s == "" {
		return 0, fmt.Errorf("empty value: %w", ErrInvalidValue)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", raw, ErrInvalidValue)
	}
	if !validValue(v) {
		return 0, fmt.Errorf("%q: %w", raw, ErrInvalidValue)
	}
	return v, nil
}
