// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// Resolver looks up an asset by address.
type Resolver interface {
	Get(addr ids.ShortID) (Asset, error)
}

// Transferer pulls assets from a holder into a series. It is the single
// entry point for transfers that need a prior authorization, so the ledgers
// never talk to an allowance directly.
type Transferer interface {
	TransferFrom(token, from, to ids.ShortID, amount *uint256.Int) error
}

var _ Transferer = (*AllowanceTransferer)(nil)

// AllowanceTransferer spends allowances granted to a single shared spender.
// Holders approve the spender once and every series can then pull from them.
type AllowanceTransferer struct {
	spender ids.ShortID
	assets  Resolver
}

func NewAllowanceTransferer(spender ids.ShortID, assets Resolver) *AllowanceTransferer {
	return &AllowanceTransferer{
		spender: spender,
		assets:  assets,
	}
}

func (t *AllowanceTransferer) Spender() ids.ShortID {
	return t.spender
}

func (t *AllowanceTransferer) TransferFrom(token, from, to ids.ShortID, amount *uint256.Int) error {
	a, err := t.assets.Get(token)
	if err != nil {
		return err
	}
	return a.TransferFrom(t.spender, from, to, amount)
}
