// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package convert

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	require.NoError(t, err)
	return v
}

func TestNewRejectsZeroStrike(t *testing.T) {
	_, err := New(new(uint256.Int), 18, 18)
	require.ErrorIs(t, err, ErrInvalidStrike)

	_, err = New(nil, 18, 18)
	require.ErrorIs(t, err, ErrInvalidStrike)
}

func TestNewRejectsOversizedDecimals(t *testing.T) {
	_, err := New(uint256.NewInt(1), 60, 18)
	require.ErrorIs(t, err, ErrInvalidDecimals)
}

func TestUnitStrikeSameDecimals(t *testing.T) {
	require := require.New(t)

	c, err := New(mustDecimal(t, "1000000000000000000"), 18, 18)
	require.NoError(err)

	amount := uint256.NewInt(12345)
	got, err := c.ToConsideration(amount)
	require.NoError(err)
	require.Equal(amount, got)

	got, err = c.ToCollateral(amount)
	require.NoError(err)
	require.Equal(amount, got)
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name                  string
		strike                string
		collateralDecimals    uint8
		considerationDecimals uint8
		collateral            string
		consideration         string
	}{
		{
			name:                  "call 2000 strike 18/6",
			strike:                "2000000000000000000000",
			collateralDecimals:    18,
			considerationDecimals: 6,
			collateral:            "1000000000000000000",
			consideration:         "2000000000",
		},
		{
			name:                  "strike 10000 same decimals",
			strike:                "10000000000000000000000",
			collateralDecimals:    18,
			considerationDecimals: 18,
			collateral:            "3",
			consideration:         "30000",
		},
		{
			name:                  "collateral 6 consideration 18",
			strike:                "1000000000000000000",
			collateralDecimals:    6,
			considerationDecimals: 18,
			collateral:            "1000000",
			consideration:         "1000000000000000000",
		},
		{
			name:                  "put inverted strike",
			strike:                "500000000000000",
			collateralDecimals:    6,
			considerationDecimals: 18,
			collateral:            "2000000000",
			consideration:         "1000000000000000000",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			c, err := New(mustDecimal(t, test.strike), test.collateralDecimals, test.considerationDecimals)
			require.NoError(err)

			collateral := mustDecimal(t, test.collateral)
			consideration := mustDecimal(t, test.consideration)

			got, err := c.ToConsideration(collateral)
			require.NoError(err)
			require.Equal(consideration, got)

			got, err = c.ToNeededConsideration(collateral)
			require.NoError(err)
			require.Equal(consideration, got)

			got, err = c.ToCollateral(consideration)
			require.NoError(err)
			require.Equal(collateral, got)
		})
	}
}

func TestRoundTripWhenConsiderationIsFiner(t *testing.T) {
	require := require.New(t)

	// 6-decimal collateral into 18-decimal consideration scales up exactly.
	c, err := New(mustDecimal(t, "3000000000000000000000"), 6, 18)
	require.NoError(err)

	for _, x := range []uint64{0, 1, 7, 999_999, 1_000_000, 123_456_789} {
		amount := uint256.NewInt(x)
		consideration, err := c.ToConsideration(amount)
		require.NoError(err)
		back, err := c.ToCollateral(consideration)
		require.NoError(err)
		require.Equal(amount, back, "amount %d", x)
	}
}

func TestNeededConsiderationRoundsUp(t *testing.T) {
	require := require.New(t)

	// One consideration unit per 1e12 collateral units.
	c, err := New(mustDecimal(t, "1000000000000000000"), 18, 6)
	require.NoError(err)

	amount := uint256.NewInt(1_000_000_000_001)
	down, err := c.ToConsideration(amount)
	require.NoError(err)
	require.Equal(uint256.NewInt(1), down)

	up, err := c.ToNeededConsideration(amount)
	require.NoError(err)
	require.Equal(uint256.NewInt(2), up)

	// Dust below one consideration unit still costs one unit.
	up, err = c.ToNeededConsideration(uint256.NewInt(1))
	require.NoError(err)
	require.Equal(uint256.NewInt(1), up)
}

func TestNeededConsiderationNeverBelowFloor(t *testing.T) {
	require := require.New(t)

	c, err := New(mustDecimal(t, "1333333333333333333"), 18, 18)
	require.NoError(err)

	for _, x := range []uint64{1, 3, 10, 1_000_003, 987_654_321} {
		amount := uint256.NewInt(x)
		down, err := c.ToConsideration(amount)
		require.NoError(err)
		up, err := c.ToNeededConsideration(amount)
		require.NoError(err)
		require.False(up.Lt(down))
		require.True(new(uint256.Int).Sub(up, down).Cmp(one) <= 0)
	}
}

func TestOverflow(t *testing.T) {
	require := require.New(t)

	maxAmount := new(uint256.Int).SetAllOne()
	c, err := New(mustDecimal(t, "10000000000000000000000"), 18, 18)
	require.NoError(err)

	_, err = c.ToConsideration(maxAmount)
	require.ErrorIs(err, ErrArithmeticOverflow)

	_, err = c.ToNeededConsideration(maxAmount)
	require.ErrorIs(err, ErrArithmeticOverflow)

	// The reverse direction shrinks and stays representable.
	_, err = c.ToCollateral(maxAmount)
	require.NoError(err)
}

func TestStrikeIsCopied(t *testing.T) {
	require := require.New(t)

	strike := uint256.NewInt(5)
	c, err := New(strike, 0, 0)
	require.NoError(err)

	strike.SetUint64(9)
	require.Equal(uint256.NewInt(5), c.Strike())
}
