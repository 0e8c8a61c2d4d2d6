package algofi

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMulDiv(t *testing.T) {
	testCases := []struct {
		a, b, c  uint64
		expected uint64
	}{
		{100_000, 1_200_000_000, ScaleFactor, 120_000},
		{7, 3, 2, 10},
		{math.MaxUint64, math.MaxUint64, math.MaxUint64, math.MaxUint64},
		{math.MaxUint64, 2, 4, math.MaxUint64 / 2},
		{5, 5, 0, 0},
		{math.MaxUint64, math.MaxUint64, 1, math.MaxUint64},
		{math.MaxUint64, 3, 2, math.MaxUint64},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, MulDiv(tc.a, tc.b, tc.c), "%d*%d/%d", tc.a, tc.b, tc.c)
	}
}

func TestMulDivBig(t *testing.T) {
	a := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	z := MulDivBig(a, uint256.NewInt(3), uint256.NewInt(2))
	expected := new(uint256.Int).Mul(new(uint256.Int).Lsh(uint256.NewInt(1), 99), uint256.NewInt(3))
	assert.Equal(t, expected, z)

	assert.True(t, MulDivBig(a, a, new(uint256.Int)).IsZero())
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, "3", FloorDiv(decimal.NewFromInt(7), decimal.NewFromInt(2)).String())
	assert.Equal(t, "-4", FloorDiv(decimal.NewFromInt(-7), decimal.NewFromInt(2)).String())
	assert.Equal(t, "2", FloorDiv(decimal.RequireFromString("5.5"), decimal.RequireFromString("2.5")).String())
	assert.True(t, FloorDiv(decimal.NewFromInt(1), decimal.Zero).IsZero())
}

func TestFloorDecimal(t *testing.T) {
	assert.Equal(t, uint64(12), FloorDecimal(decimal.RequireFromString("12.99")))
	assert.Equal(t, uint64(0), FloorDecimal(decimal.RequireFromString("-3")))
	assert.Equal(t, uint64(math.MaxUint64), FloorDecimal(decimal.RequireFromString("1e30")))
}
