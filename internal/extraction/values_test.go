package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1234.50", 1234.50},
		{"1,234.50", 1234.50},
		{"1.234,50", 1234.50},
		{"1.234.567,89", 1234567.89},
		{"1,234,567", 1234567},
		{"1,234", 1234},
		{"12,5", 12.5},
		{"1 234,50", 1234.50},
		{"1'234.50", 1234.50},
		{"$1,234.50", 1234.50},
		{"€ 1.234,50", 1234.50},
		{"Rs. 45,640", 45640},
		{"INR 45,640/-", 45640},
		{"USD 99.99", 99.99},
		{"1,23,456.00", 123456},
		{"(12.00)", -12},
		{"-7.25", -7.25},
		{"0.5", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseMoney_Invalid(t *testing.T) {
	for _, in := range []string{"", "N/A", "USD", "12#4", "1.2.3,4,5"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMoney(in)
			assert.Error(t, err)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-03-05",
		"05-03-2024",
		"05/03/2024",
		"2024/03/05",
		"05.03.2024",
		"March 5, 2024",
		"5 March 2024",
		"05 Mar 2024",
		"5 Mar 2024",
		"05-Mar-2024",
		"Mar 5, 2024",
		"2024-03-05T10:00:00Z",
		" 2024-03-05 ",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseDate("next tuesday")
	assert.Error(t, err)
}
