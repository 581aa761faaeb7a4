package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.23454", "1.2345"},
		{"1.23455", "1.2346"},
		{"-1.23455", "-1.2346"},
		{"10", "10"},
		{"0.00004", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundQuantity(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestExceeds(t *testing.T) {
	four := decimal.NewFromInt(4)

	assert.False(t, Exceeds(decimal.RequireFromString("4.0005"), four), "inside epsilon")
	assert.False(t, Exceeds(decimal.RequireFromString("4.001"), four), "exactly epsilon")
	assert.True(t, Exceeds(decimal.RequireFromString("4.0011"), four))
	assert.True(t, Exceeds(decimal.NewFromInt(6), four))
	assert.False(t, Exceeds(decimal.NewFromInt(3), four))
}

func TestIsPositiveQuantity(t *testing.T) {
	assert.True(t, IsPositiveQuantity(decimal.RequireFromString("0.0001")))
	assert.False(t, IsPositiveQuantity(decimal.RequireFromString("0.00004")))
	assert.False(t, IsPositiveQuantity(decimal.NewFromInt(-1)))
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity(" 2.50005 ")
	require.NoError(t, err)
	assert.Equal(t, "2.5001", q.String())

	_, err = ParseQuantity("abc")
	assert.Error(t, err)
}

func TestSumQuantities(t *testing.T) {
	total := SumQuantities(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.2"), decimal.NewFromInt(3))
	assert.Equal(t, "3.3", total.String())
	assert.Equal(t, "2", MinQuantity(decimal.NewFromInt(2), decimal.NewFromInt(5)).String())
}
