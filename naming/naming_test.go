// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package naming

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/optionvm/redemption"
)

// 2025-12-31T08:00:00Z
const testExpiration = 1_767_168_000

func mustDecimal(t *testing.T, s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	require.NoError(t, err)
	return v
}

func TestStrike(t *testing.T) {
	tests := []struct {
		strike   string
		isPut    bool
		expected string
	}{
		{strike: "3000000000000000000000", expected: "3000"},
		{strike: "1500000000000000000", expected: "1.5"},
		{strike: "250000000000000", expected: "0.00025"},
		{strike: "500000000000000", isPut: true, expected: "2000"},
		{strike: "333333333333333", isPut: true, expected: "3000.003"},
		{strike: "0", expected: "0"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			require.Equal(t, test.expected, Strike(mustDecimal(t, test.strike), test.isPut))
		})
	}
}

func TestDate(t *testing.T) {
	require.Equal(t, "2025-12-31", Date(testExpiration))
	require.Equal(t, "1970-01-01", Date(0))
}

func TestNames(t *testing.T) {
	require := require.New(t)

	call := redemption.Params{
		Expiration: testExpiration,
		Strike:     mustDecimal(t, "3000000000000000000000"),
	}
	require.Equal("OPT-WETH-USDC-2025-12-31-3000-C", OptionName(call, "WETH", "USDC"))
	require.Equal("RDM-WETH-USDC-2025-12-31-3000-C", RedemptionName(call, "WETH", "USDC"))

	put := redemption.Params{
		Expiration: testExpiration,
		Strike:     mustDecimal(t, "500000000000000"),
		IsPut:      true,
	}
	require.Equal("OPT-WETH-USDC-2025-12-31-2000-P", OptionName(put, "USDC", "WETH"))
}
