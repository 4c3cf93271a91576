// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/events"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/redemption"
)

// SeriesInfo is a snapshot of a series.
type SeriesInfo struct {
	Option     ids.ShortID
	Redemption ids.ShortID
	Params     redemption.Params

	CollateralSymbol    string
	ConsiderationSymbol string

	Owner   ids.ShortID
	Locked  bool
	Expired bool

	FeeRate             *uint256.Int
	AccruedFees         *uint256.Int
	AvailableCollateral *uint256.Int
	ConsiderationHeld   *uint256.Int
	OptionSupply        *uint256.Int
	RedemptionSupply    *uint256.Int
}

// AssetInfo describes a registered asset.
type AssetInfo struct {
	Address  ids.ShortID
	Symbol   string
	Decimals uint8
	Blocked  bool
}

// SeriesInfo describes the series addr, its option or its redemption
// address, belongs to.
func (vm *VM) SeriesInfo(addr ids.ShortID) (SeriesInfo, error) {
	var info SeriesInfo
	err := vm.view(func() error {
		s, err := vm.series(addr)
		if err != nil {
			return err
		}
		info, err = describe(s)
		return err
	})
	return info, err
}

func describe(s *Series) (SeriesInfo, error) {
	r := s.Redemption
	info := SeriesInfo{
		Option:              s.Option.Address(),
		Redemption:          r.Address(),
		Params:              r.Params(),
		CollateralSymbol:    r.CollateralAsset().Symbol(),
		ConsiderationSymbol: r.ConsiderationAsset().Symbol(),
		Expired:             r.Expired(),
	}

	var err error
	if info.Owner, err = s.Option.Owner(); err != nil {
		return SeriesInfo{}, err
	}
	if info.Locked, err = s.Option.Locked(); err != nil {
		return SeriesInfo{}, err
	}
	calculator, err := r.FeeCalculator()
	if err != nil {
		return SeriesInfo{}, err
	}
	info.FeeRate = calculator.Rate()
	if info.AccruedFees, err = r.AccruedFees(); err != nil {
		return SeriesInfo{}, err
	}
	if info.AvailableCollateral, err = r.AvailableCollateral(); err != nil {
		return SeriesInfo{}, err
	}
	if info.ConsiderationHeld, err = r.ConsiderationHeld(); err != nil {
		return SeriesInfo{}, err
	}
	if info.OptionSupply, err = s.Option.TotalSupply(); err != nil {
		return SeriesInfo{}, err
	}
	if info.RedemptionSupply, err = r.TotalSupply(); err != nil {
		return SeriesInfo{}, err
	}
	return info, nil
}

// Assets lists the registered assets ordered by symbol.
func (vm *VM) Assets() []AssetInfo {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized {
		return nil
	}
	list := vm.assets.List()
	infos := make([]AssetInfo, len(list))
	for i, a := range list {
		infos[i] = AssetInfo{
			Address:  a.Address(),
			Symbol:   a.Symbol(),
			Decimals: a.Decimals(),
			Blocked:  vm.assets.Blocked(a.Address()),
		}
	}
	return infos
}

// Asset returns the registered asset at addr.
func (vm *VM) Asset(addr ids.ShortID) (asset.Asset, error) {
	var a asset.Asset
	err := vm.view(func() error {
		var err error
		a, err = vm.assets.Get(addr)
		return err
	})
	return a, err
}

func (vm *VM) BalanceOf(token, holder ids.ShortID) (*uint256.Int, error) {
	var balance *uint256.Int
	err := vm.view(func() error {
		t, err := vm.token(token)
		if err != nil {
			return err
		}
		balance, err = t.BalanceOf(holder)
		return err
	})
	return balance, err
}

func (vm *VM) Allowance(token, owner, spender ids.ShortID) (*uint256.Int, error) {
	var allowance *uint256.Int
	err := vm.view(func() error {
		t, err := vm.token(token)
		if err != nil {
			return err
		}
		allowance, err = t.Allowance(owner, spender)
		return err
	})
	return allowance, err
}

func (vm *VM) TotalSupply(token ids.ShortID) (*uint256.Int, error) {
	var supply *uint256.Int
	err := vm.view(func() error {
		t, err := vm.token(token)
		if err != nil {
			return err
		}
		supply, err = t.TotalSupply()
		return err
	})
	return supply, err
}

// Events returns up to limit committed events starting at sequence number
// from, and the sequence number to continue from.
func (vm *VM) Events(from uint64, limit int) ([]events.Event, uint64) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.history.since(from, limit)
}

// Holders pages through the indexed Redemption holders of a series.
func (vm *VM) Holders(series, after ids.ShortID, limit int) []ids.ShortID {
	return vm.indexer.Holders(series, after, limit)
}

// PermitNonce is the nonce the next permit of owner on token must carry.
func (vm *VM) PermitNonce(token, owner ids.ShortID) (uint64, error) {
	var nonce uint64
	err := vm.view(func() error {
		var err error
		nonce, err = vm.permits.Nonce(token, owner)
		return err
	})
	return nonce, err
}

// PermitDigest is the hash owner signs to authorize p on token.
func (vm *VM) PermitDigest(token ids.ShortID, p permit.Permit) ([]byte, error) {
	var digest []byte
	err := vm.view(func() error {
		a, err := vm.assets.Get(token)
		if err != nil {
			return err
		}
		digest, err = vm.permits.Digest(a, p)
		return err
	})
	return digest, err
}

// CallNonce is the nonce the next authenticated call of caller must carry.
func (vm *VM) CallNonce(caller ids.ShortID) (uint64, error) {
	var nonce uint64
	err := vm.view(func() error {
		var err error
		nonce, err = vm.permits.CallNonce(caller)
		return err
	})
	return nonce, err
}

// CallDigest is the hash the caller of c signs.
func (vm *VM) CallDigest(c permit.Call) ([]byte, error) {
	var digest []byte
	err := vm.view(func() error {
		var err error
		digest, err = vm.permits.CallDigest(FactoryAddress, c)
		return err
	})
	return digest, err
}
