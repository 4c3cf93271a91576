// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the runtime configuration and the genesis of the
// option VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/fee"
)

var (
	ErrInvalidFeeRate     = errors.New("invalid default fee rate")
	ErrInvalidSweepBound  = errors.New("max sweep holders must be positive")
	ErrInvalidCacheSize   = errors.New("series cache size must be positive")
	ErrInvalidHistorySize = errors.New("event history must not be negative")
)

var DefaultConfig = Config{
	DefaultFeeRate:  0,
	MaxSweepHolders: 256,
	SeriesCacheSize: 1024,
	EventHistory:    4096,
	ChainID:         1,
}

type Config struct {
	// Fee rate assigned to new series, in 1e18 fixed point. Capped at 1%.
	DefaultFeeRate uint64 `json:"defaultFeeRate"`

	// Upper bound on the holders a single sweep may redeem for
	MaxSweepHolders int `json:"maxSweepHolders"`

	// Number of series kept open in memory
	SeriesCacheSize int `json:"seriesCacheSize"`

	// Number of committed events retained for the events API
	EventHistory int `json:"eventHistory"`

	// Chain ID of the EIP-712 domain permits are signed over
	ChainID uint64 `json:"chainID"`

	// Assets that may not back new series
	Blocklist []common.Address `json:"blocklist"`
}

// BlockedAssets returns the blocklist as asset addresses.
func (c Config) BlockedAssets() []ids.ShortID {
	blocked := make([]ids.ShortID, len(c.Blocklist))
	for i, addr := range c.Blocklist {
		blocked[i] = ids.ShortID(addr)
	}
	return blocked
}

// FeeRate returns the default fee rate as a uint256.
func (c Config) FeeRate() *uint256.Int {
	return uint256.NewInt(c.DefaultFeeRate)
}

func (c Config) Verify() error {
	switch {
	case c.FeeRate().Gt(fee.MaxRate):
		return fmt.Errorf("%w: %d exceeds %s", ErrInvalidFeeRate, c.DefaultFeeRate, fee.MaxRate.Dec())
	case c.MaxSweepHolders <= 0:
		return ErrInvalidSweepBound
	case c.SeriesCacheSize <= 0:
		return ErrInvalidCacheSize
	case c.EventHistory < 0:
		return ErrInvalidHistorySize
	default:
		return nil
	}
}

func ParseConfig(configBytes []byte) (Config, error) {
	if len(configBytes) == 0 {
		return DefaultConfig, nil
	}

	cfg := DefaultConfig
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Verify()
}
