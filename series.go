// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/optionvm/events"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/option"
	"github.com/luxfi/optionvm/redemption"
	"github.com/luxfi/optionvm/state"
)

var (
	optionInitHash     = crypto.Keccak256([]byte("optionvm:option"))
	redemptionInitHash = crypto.Keccak256([]byte("optionvm:redemption"))
)

// SeriesConfig are the terms a series is created with.
type SeriesConfig struct {
	Collateral    ids.ShortID
	Consideration ids.ShortID
	Strike        *uint256.Int
	Expiration    uint64
	IsPut         bool
}

func (c SeriesConfig) params() redemption.Params {
	return redemption.Params{
		Collateral:    c.Collateral,
		Consideration: c.Consideration,
		Expiration:    c.Expiration,
		Strike:        c.Strike,
		IsPut:         c.IsPut,
	}
}

// Series is an opened pair of ledgers.
type Series struct {
	Option     *option.Option
	Redemption *redemption.Redemption
}

type seriesRecord struct {
	Index      uint64      `serialize:"true"`
	Option     ids.ShortID `serialize:"true"`
	Redemption ids.ShortID `serialize:"true"`
}

func seriesKey(option ids.ShortID) string {
	return "series:" + common.Address(option).Hex()
}

func pairKey(redemption ids.ShortID) string {
	return "pair:" + common.Address(redemption).Hex()
}

func seriesIndexKey(index uint64) string {
	return fmt.Sprintf("seriesAt:%d", index)
}

// seriesAddresses derives the addresses of the index-th series created with
// params.
func seriesAddresses(params redemption.Params, index uint64) (ids.ShortID, ids.ShortID) {
	var (
		expiration [8]byte
		counter    [8]byte
		kind       = []byte{0}
	)
	binary.BigEndian.PutUint64(expiration[:], params.Expiration)
	binary.BigEndian.PutUint64(counter[:], index)
	if params.IsPut {
		kind[0] = 1
	}
	strike := params.Strike.Bytes32()
	salt := crypto.Keccak256Hash(
		params.Collateral[:],
		params.Consideration[:],
		expiration[:],
		strike[:],
		kind,
		counter[:],
	)

	factory := common.Address(FactoryAddress)
	optionAddr := crypto.CreateAddress2(factory, salt, optionInitHash)
	redemptionAddr := crypto.CreateAddress2(factory, salt, redemptionInitHash)
	return ids.ShortID(optionAddr), ids.ShortID(redemptionAddr)
}

// CreateSeries deploys a new option and redemption pair. The caller owns the
// option ledger and may lock it.
func (vm *VM) CreateSeries(caller ids.ShortID, cfg SeriesConfig) (*Series, error) {
	var series *Series
	err := vm.execute("createSeries", func() error {
		var err error
		series, err = vm.createSeries(caller, cfg)
		if err != nil {
			return err
		}
		vm.afterCommit(func() {
			vm.seriesCount++
			vm.seriesCache.Put(series.Option.Address(), series)
			vm.metrics.SetSeries(vm.seriesCount)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	vm.log.Info("series created",
		log.String("option", common.Address(series.Option.Address()).Hex()),
		log.String("redemption", common.Address(series.Redemption.Address()).Hex()),
		log.Uint64("expiration", cfg.Expiration),
		log.Bool("isPut", cfg.IsPut),
	)
	return series, nil
}

func (vm *VM) createSeries(caller ids.ShortID, cfg SeriesConfig) (*Series, error) {
	if err := guard.RequireAddress(caller); err != nil {
		return nil, err
	}
	if err := guard.RequirePositive(cfg.Strike); err != nil {
		return nil, err
	}
	if _, err := vm.assets.Usable(cfg.Collateral); err != nil {
		return nil, err
	}
	if _, err := vm.assets.Usable(cfg.Consideration); err != nil {
		return nil, err
	}

	count, err := vm.store.GetUint(keySeriesCount)
	if err != nil {
		return nil, err
	}
	index := count.Uint64()
	params := cfg.params()
	optionAddr, redemptionAddr := seriesAddresses(params, index)

	series, err := vm.openSeries(optionAddr, redemptionAddr)
	if err != nil {
		return nil, err
	}
	if err := series.Redemption.Init(FactoryAddress, optionAddr, params, vm.FeeRate()); err != nil {
		return nil, err
	}
	if err := series.Option.Init(FactoryAddress, caller); err != nil {
		return nil, err
	}

	record := &seriesRecord{
		Index:      index,
		Option:     optionAddr,
		Redemption: redemptionAddr,
	}
	if err := vm.store.PutRecord(seriesKey(optionAddr), record); err != nil {
		return nil, err
	}
	if err := vm.store.PutAddress(pairKey(redemptionAddr), optionAddr); err != nil {
		return nil, err
	}
	if err := vm.store.PutAddress(seriesIndexKey(index), optionAddr); err != nil {
		return nil, err
	}
	if err := vm.store.PutUint(keySeriesCount, uint256.NewInt(index+1)); err != nil {
		return nil, err
	}

	vm.pending.Emit(events.Event{
		Kind:     events.SeriesCreated,
		Contract: optionAddr,
		From:     caller,
		To:       redemptionAddr,
	})
	return series, nil
}

// openSeries constructs the ledgers at the given addresses over the VM
// state. Ledgers that were initialized before are loaded.
func (vm *VM) openSeries(optionAddr, redemptionAddr ids.ShortID) (*Series, error) {
	r, err := redemption.New(redemption.Config{
		DB:              vm.db,
		Address:         redemptionAddr,
		Assets:          vm.assets,
		Transferer:      vm.transferer,
		Clock:           &vm.clock,
		Events:          &vm.pending,
		MaxSweepHolders: vm.MaxSweepHolders,
	})
	if err != nil {
		return nil, err
	}
	o, err := option.New(option.Config{
		DB:         vm.db,
		Address:    optionAddr,
		Redemption: r,
		Clock:      &vm.clock,
		Events:     &vm.pending,
	})
	if err != nil {
		return nil, err
	}
	return &Series{Option: o, Redemption: r}, nil
}

// series returns the series that addr, an option or a redemption address,
// belongs to.
func (vm *VM) series(addr ids.ShortID) (*Series, error) {
	if s, ok := vm.seriesCache.Get(addr); ok {
		return s, nil
	}

	record := seriesRecord{}
	found, err := vm.store.GetRecord(seriesKey(addr), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		optionAddr, err := vm.store.GetAddress(pairKey(addr))
		if err != nil {
			return nil, err
		}
		if optionAddr == ids.ShortEmpty {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, common.Address(addr).Hex())
		}
		if s, ok := vm.seriesCache.Get(optionAddr); ok {
			return s, nil
		}
		found, err = vm.store.GetRecord(seriesKey(optionAddr), &record)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: missing series %s", state.ErrCorrupted, common.Address(optionAddr).Hex())
		}
	}

	s, err := vm.openSeries(record.Option, record.Redemption)
	if err != nil {
		return nil, err
	}
	vm.seriesCache.Put(record.Option, s)
	return s, nil
}

// loadSeries restores the series count and rebuilds the holder index of every
// series created before.
func (vm *VM) loadSeries() error {
	count, err := vm.store.GetUint(keySeriesCount)
	if err != nil {
		return err
	}
	vm.seriesCount = int(count.Uint64())
	vm.metrics.SetSeries(vm.seriesCount)

	for index := uint64(0); index < count.Uint64(); index++ {
		optionAddr, err := vm.store.GetAddress(seriesIndexKey(index))
		if err != nil {
			return err
		}
		s, err := vm.series(optionAddr)
		if err != nil {
			return err
		}
		redemptionAddr := s.Redemption.Address()
		vm.indexer.Track(optionAddr, redemptionAddr)
		err = s.Redemption.Holders(func(holder ids.ShortID, balance *uint256.Int) error {
			vm.indexer.Seed(redemptionAddr, holder, balance)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SeriesAt returns the option address of the index-th series created.
func (vm *VM) SeriesAt(index uint64) (ids.ShortID, error) {
	var addr ids.ShortID
	err := vm.view(func() error {
		if index >= uint64(vm.seriesCount) {
			return fmt.Errorf("%w: index %d", ErrUnknownSeries, index)
		}
		var err error
		addr, err = vm.store.GetAddress(seriesIndexKey(index))
		return err
	})
	return addr, err
}

// SeriesCount returns the number of series created.
func (vm *VM) SeriesCount() int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.seriesCount
}
