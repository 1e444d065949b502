package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorToDecimal(t *testing.T) {
	tests := []struct {
		name  string
		minor int64
		want  string
	}{
		{"zero", 0, "0.00"},
		{"whole units", 5000, "50.00"},
		{"with cents", 3099, "30.99"},
		{"under one unit", 7, "0.07"},
		{"single cent", 1, "0.01"},
		{"large amount", 123456789, "1234567.89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorToDecimal(tt.minor))
		})
	}
}

func TestDecimalToMinor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"whole units", "50", 5000, false},
		{"two decimals", "30.99", 3099, false},
		{"one decimal", "30.5", 3050, false},
		{"zero", "0.00", 0, false},
		{"trailing dot", "30.", 3000, false},
		{"three decimals rejected", "1.005", 0, true},
		{"negative rejected", "-5.00", 0, true},
		{"empty rejected", "", 0, true},
		{"garbage rejected", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecimalToMinor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecimalToMinorRoundTrips(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 3099, 5000, 987654321} {
		got, err := DecimalToMinor(MinorToDecimal(minor))
		require.NoError(t, err)
		assert.Equal(t, minor, got)
	}
}
