// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset models the fungible tokens a series holds as collateral and
// consideration.
package asset

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/state"
)

var (
	ErrUnknownAsset = errors.New("unknown asset")
	ErrAssetExists  = errors.New("asset already registered")
	ErrBlocked      = errors.New("asset is blocklisted")
)

// Asset is an ERC20-style fungible token. The caller of every mutating method
// is passed explicitly.
type Asset interface {
	Address() ids.ShortID
	Symbol() string
	Decimals() uint8

	BalanceOf(holder ids.ShortID) (*uint256.Int, error)
	TotalSupply() (*uint256.Int, error)
	Allowance(owner, spender ids.ShortID) (*uint256.Int, error)

	Approve(owner, spender ids.ShortID, amount *uint256.Int) error
	Transfer(caller, to ids.ShortID, amount *uint256.Int) error
	TransferFrom(spender, from, to ids.ShortID, amount *uint256.Int) error
}

// Metadata is the persisted description of a Token.
type Metadata struct {
	Symbol   string `serialize:"true" json:"symbol"`
	Decimals uint8  `serialize:"true" json:"decimals"`
}

var _ Asset = (*Token)(nil)

// Token is an Asset whose balances live in the shared state database.
type Token struct {
	meta  Metadata
	store *state.Store
}

func NewToken(db database.Database, address ids.ShortID, meta Metadata) *Token {
	return &Token{
		meta:  meta,
		store: state.New(db, address),
	}
}

func (t *Token) Address() ids.ShortID { return t.store.Address() }
func (t *Token) Symbol() string       { return t.meta.Symbol }
func (t *Token) Decimals() uint8      { return t.meta.Decimals }
func (t *Token) Metadata() Metadata   { return t.meta }

func (t *Token) BalanceOf(holder ids.ShortID) (*uint256.Int, error) {
	return t.store.BalanceOf(holder)
}

func (t *Token) TotalSupply() (*uint256.Int, error) {
	return t.store.TotalSupply()
}

func (t *Token) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return t.store.Allowance(owner, spender)
}

func (t *Token) Approve(owner, spender ids.ShortID, amount *uint256.Int) error {
	if err := guard.RequireAddress(spender); err != nil {
		return err
	}
	return t.store.SetAllowance(owner, spender, amount)
}

func (t *Token) Transfer(caller, to ids.ShortID, amount *uint256.Int) error {
	if err := guard.RequireAddress(to); err != nil {
		return err
	}
	return t.store.Move(caller, to, amount)
}

func (t *Token) TransferFrom(spender, from, to ids.ShortID, amount *uint256.Int) error {
	if err := guard.RequireAddress(to); err != nil {
		return err
	}
	if err := t.store.SpendAllowance(from, spender, amount); err != nil {
		return err
	}
	return t.store.Move(from, to, amount)
}

// Mint issues new units. It backs genesis allocations and test faucets.
func (t *Token) Mint(to ids.ShortID, amount *uint256.Int) error {
	if err := guard.RequireAddress(to); err != nil {
		return err
	}
	return t.store.Mint(to, amount)
}

// Registry maps addresses to the assets a series may reference.
type Registry struct {
	lock    sync.RWMutex
	assets  map[ids.ShortID]Asset
	blocked map[ids.ShortID]bool
}

func NewRegistry() *Registry {
	return &Registry{
		assets:  make(map[ids.ShortID]Asset),
		blocked: make(map[ids.ShortID]bool),
	}
}

func (r *Registry) Register(a Asset) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	addr := a.Address()
	if _, ok := r.assets[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAssetExists, addr)
	}
	r.assets[addr] = a
	return nil
}

func (r *Registry) Get(addr ids.ShortID) (Asset, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	a, ok := r.assets[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, addr)
	}
	return a, nil
}

// Usable returns the asset only if it may back a new series.
func (r *Registry) Usable(addr ids.ShortID) (Asset, error) {
	a, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	if r.Blocked(addr) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, addr)
	}
	return a, nil
}

func (r *Registry) SetBlocked(addr ids.ShortID, blocked bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if blocked {
		r.blocked[addr] = true
	} else {
		delete(r.blocked, addr)
	}
}

func (r *Registry) Blocked(addr ids.ShortID) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.blocked[addr]
}

// List returns the registered assets ordered by symbol.
func (r *Registry) List() []Asset {
	r.lock.RLock()
	defer r.lock.RUnlock()

	assets := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Symbol() < assets[j].Symbol()
	})
	return assets
}
