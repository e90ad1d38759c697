package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"60", 60},
		{" 60.5 ", 60.5},
		{"60mm", 60},
		{"60 MM", 60},
		{"9,0", 9},
		{"9 g/cm3", 9},
		{"7.85g/cm³", 7.85},
		{"1e2", 100},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseValue(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValue_Rejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "mm", "abc", "-5", "0", "1,000.5", "inf", "NaN", "6O"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseValue(raw)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}
