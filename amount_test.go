package match

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"12.5", 6, "12500000"},
		{"0.000001", 6, "1"},
		{"100", 0, "100"},
	}
	for _, tt := range tests {
		got, err := ParseUnits(tt.in, tt.decimals)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.Dec(), tt.in)
	}

	_, err := ParseUnits("0.0000001", 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUnits("-1", 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUnits("abc", 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUnits("1", 78)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "12.5", FormatUnits(uint256.NewInt(12_500_000), 6))
	assert.Equal(t, "0.000001", FormatUnits(uint256.NewInt(1), 6))
	assert.Equal(t, "100", FormatUnits(uint256.NewInt(100), 0))
	assert.Equal(t, "0", FormatUnits(new(uint256.Int), 18))
}
