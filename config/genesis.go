// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// MaxDecimals bounds the precision of a genesis asset so that strike
// conversion stays within 256 bits.
const MaxDecimals = 59

var (
	ErrNoFactoryOwner    = errors.New("genesis has no factory owner")
	ErrInvalidSymbol     = errors.New("invalid asset symbol")
	ErrDuplicateSymbol   = errors.New("duplicate asset symbol")
	ErrInvalidDecimals   = errors.New("invalid asset decimals")
	ErrInvalidAllocation = errors.New("invalid allocation")
)

// Genesis describes the initial state of the VM.
type Genesis struct {
	// Account allowed to block assets, claim fees and change fee rates
	FactoryOwner common.Address `json:"factoryOwner"`

	// Receiver of claimed fees. Defaults to the factory owner.
	FeeRecipient common.Address `json:"feeRecipient"`

	Assets []GenesisAsset `json:"assets"`
}

// GenesisAsset is a fungible token created at genesis.
type GenesisAsset struct {
	Symbol      string       `json:"symbol"`
	Decimals    uint8        `json:"decimals"`
	Allocations []Allocation `json:"allocations"`
}

// Allocation credits Balance base units to Address. Balance is a decimal
// string so that 256-bit amounts survive JSON.
type Allocation struct {
	Address common.Address `json:"address"`
	Balance string         `json:"balance"`
}

// AssetAddress derives the address of the asset called symbol.
func AssetAddress(symbol string) ids.ShortID {
	return ids.ShortID(common.BytesToAddress(crypto.Keccak256([]byte("asset:" + symbol))))
}

func (a GenesisAsset) Address() ids.ShortID {
	return AssetAddress(a.Symbol)
}

// Amount parses the allocated balance.
func (a Allocation) Amount() (*uint256.Int, error) {
	v, err := uint256.FromDecimal(a.Balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q of %s: %w", ErrInvalidAllocation, a.Balance, a.Address.Hex(), err)
	}
	return v, nil
}

// Owner returns the factory owner as an address.
func (g *Genesis) Owner() ids.ShortID {
	return ids.ShortID(g.FactoryOwner)
}

// Recipient returns the fee recipient, falling back to the factory owner.
func (g *Genesis) Recipient() ids.ShortID {
	if g.FeeRecipient == (common.Address{}) {
		return g.Owner()
	}
	return ids.ShortID(g.FeeRecipient)
}

func (g *Genesis) Verify() error {
	if g.FactoryOwner == (common.Address{}) {
		return ErrNoFactoryOwner
	}
	symbols := make(map[string]struct{}, len(g.Assets))
	for _, a := range g.Assets {
		if a.Symbol == "" {
			return ErrInvalidSymbol
		}
		if _, ok := symbols[a.Symbol]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSymbol, a.Symbol)
		}
		symbols[a.Symbol] = struct{}{}

		if a.Decimals > MaxDecimals {
			return fmt.Errorf("%w: %s has %d", ErrInvalidDecimals, a.Symbol, a.Decimals)
		}
		for _, alloc := range a.Allocations {
			if alloc.Address == (common.Address{}) {
				return fmt.Errorf("%w: %s allocated to the zero address", ErrInvalidAllocation, a.Symbol)
			}
			if _, err := alloc.Amount(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}

func ParseGenesis(genesisBytes []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(genesisBytes, g); err != nil {
		return nil, err
	}
	if err := g.Verify(); err != nil {
		return nil, err
	}
	return g, nil
}
