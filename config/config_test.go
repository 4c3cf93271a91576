// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig(nil)
	require.NoError(err)
	require.Equal(DefaultConfig, cfg)
	require.NoError(cfg.Verify())
}

func TestParseConfigOverrides(t *testing.T) {
	require := require.New(t)

	blocked := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	cfg, err := ParseConfig([]byte(`{
		"defaultFeeRate": 1000000000000000,
		"maxSweepHolders": 8,
		"chainID": 96369,
		"blocklist": ["0x00000000000000000000000000000000000000aa"]
	}`))
	require.NoError(err)
	require.Equal(uint64(1e15), cfg.DefaultFeeRate)
	require.Equal(8, cfg.MaxSweepHolders)
	require.Equal(uint64(96369), cfg.ChainID)
	require.Equal(DefaultConfig.SeriesCacheSize, cfg.SeriesCacheSize)
	require.Equal([]ids.ShortID{ids.ShortID(blocked)}, cfg.BlockedAssets())
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		expectedErr error
	}{
		{
			name:        "fee above cap",
			config:      `{"defaultFeeRate": 10000000000000001}`,
			expectedErr: ErrInvalidFeeRate,
		},
		{
			name:        "zero sweep bound",
			config:      `{"maxSweepHolders": 0}`,
			expectedErr: ErrInvalidSweepBound,
		},
		{
			name:        "zero cache",
			config:      `{"seriesCacheSize": 0}`,
			expectedErr: ErrInvalidCacheSize,
		},
		{
			name:        "negative history",
			config:      `{"eventHistory": -1}`,
			expectedErr: ErrInvalidHistorySize,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(test.config))
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig([]byte(`{`))
	require.Error(t, err)
}
