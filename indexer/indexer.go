// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package indexer follows committed ledger events and keeps, per series, the
// ordered set of addresses holding Redemption units. Sweeps take their holder
// lists from here since the ledgers never enumerate holders.
package indexer

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/events"
)

const degree = 16

type holding struct {
	holder  ids.ShortID
	balance *uint256.Int
}

func less(a, b holding) bool {
	return bytes.Compare(a.holder[:], b.holder[:]) < 0
}

// Indexer is safe for concurrent use.
type Indexer struct {
	lock sync.RWMutex
	// redemption address -> holders with a nonzero balance
	series map[ids.ShortID]*btree.BTreeG[holding]
	// option address -> redemption address
	pairs map[ids.ShortID]ids.ShortID
}

func New() *Indexer {
	return &Indexer{
		series: make(map[ids.ShortID]*btree.BTreeG[holding]),
		pairs:  make(map[ids.ShortID]ids.ShortID),
	}
}

// Track starts indexing the redemption ledger paired with option.
func (i *Indexer) Track(option, redemption ids.ShortID) {
	i.lock.Lock()
	defer i.lock.Unlock()

	i.track(option, redemption)
}

func (i *Indexer) track(option, redemption ids.ShortID) {
	if _, ok := i.series[redemption]; ok {
		return
	}
	i.series[redemption] = btree.NewG(degree, less)
	i.pairs[option] = redemption
}

// Seed sets the indexed balance of holder in a tracked redemption ledger.
// It is used to rebuild the index from state on restart.
func (i *Indexer) Seed(redemption, holder ids.ShortID, balance *uint256.Int) {
	i.lock.Lock()
	defer i.lock.Unlock()

	holders, ok := i.series[redemption]
	if !ok {
		return
	}
	if balance == nil || balance.IsZero() {
		holders.Delete(holding{holder: holder})
		return
	}
	holders.ReplaceOrInsert(holding{holder: holder, balance: balance.Clone()})
}

// Apply folds committed events into the holder sets. Events of untracked
// contracts are ignored.
func (i *Indexer) Apply(committed []events.Event) {
	i.lock.Lock()
	defer i.lock.Unlock()

	for _, e := range committed {
		if e.Kind == events.SeriesCreated {
			i.track(e.Contract, e.To)
			continue
		}
		holders, ok := i.series[e.Contract]
		if !ok {
			continue
		}
		switch e.Kind {
		case events.Mint:
			credit(holders, e.To, e.Amount)
		case events.Transfer:
			debit(holders, e.From, e.Amount)
			credit(holders, e.To, e.Amount)
		case events.Redeem:
			debit(holders, e.From, e.Amount)
		}
	}
}

func credit(holders *btree.BTreeG[holding], holder ids.ShortID, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	current, ok := holders.Get(holding{holder: holder})
	if !ok {
		holders.ReplaceOrInsert(holding{holder: holder, balance: amount.Clone()})
		return
	}
	current.balance = new(uint256.Int).Add(current.balance, amount)
	holders.ReplaceOrInsert(current)
}

func debit(holders *btree.BTreeG[holding], holder ids.ShortID, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	current, ok := holders.Get(holding{holder: holder})
	if !ok {
		return
	}
	if !current.balance.Gt(amount) {
		holders.Delete(current)
		return
	}
	current.balance = new(uint256.Int).Sub(current.balance, amount)
	holders.ReplaceOrInsert(current)
}

// Resolve maps an option address to its redemption address. Redemption
// addresses resolve to themselves.
func (i *Indexer) Resolve(series ids.ShortID) (ids.ShortID, bool) {
	i.lock.RLock()
	defer i.lock.RUnlock()

	if redemption, ok := i.pairs[series]; ok {
		return redemption, true
	}
	_, ok := i.series[series]
	return series, ok
}

// Holders returns up to limit holders of the series in address order,
// starting after the given address. A limit of 0 returns all of them.
func (i *Indexer) Holders(series ids.ShortID, after ids.ShortID, limit int) []ids.ShortID {
	redemption, ok := i.Resolve(series)
	if !ok {
		return nil
	}

	i.lock.RLock()
	defer i.lock.RUnlock()

	holders := i.series[redemption]
	var result []ids.ShortID
	holders.AscendGreaterOrEqual(holding{holder: after}, func(h holding) bool {
		if h.holder == after && after != ids.ShortEmpty {
			return true
		}
		result = append(result, h.holder)
		return limit == 0 || len(result) < limit
	})
	return result
}

// Balance is the indexed Redemption balance of holder.
func (i *Indexer) Balance(series, holder ids.ShortID) *uint256.Int {
	redemption, ok := i.Resolve(series)
	if !ok {
		return new(uint256.Int)
	}

	i.lock.RLock()
	defer i.lock.RUnlock()

	h, ok := i.series[redemption].Get(holding{holder: holder})
	if !ok {
		return new(uint256.Int)
	}
	return h.balance.Clone()
}

// Len is the number of holders of the series.
func (i *Indexer) Len(series ids.ShortID) int {
	redemption, ok := i.Resolve(series)
	if !ok {
		return 0
	}

	i.lock.RLock()
	defer i.lock.RUnlock()

	return i.series[redemption].Len()
}
