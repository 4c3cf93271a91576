// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package indexer

import (
	"bytes"
	"sort"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/optionvm/events"
)

func TestApply(t *testing.T) {
	require := require.New(t)

	option := ids.GenerateTestShortID()
	redemption := ids.GenerateTestShortID()
	alice := ids.GenerateTestShortID()
	bob := ids.GenerateTestShortID()

	i := New()
	i.Apply([]events.Event{
		{Kind: events.SeriesCreated, Contract: option, To: redemption},
		{Kind: events.Mint, Contract: redemption, To: alice, Amount: uint256.NewInt(10)},
		// Option ledger events are not Redemption holdings.
		{Kind: events.Mint, Contract: option, To: alice, Amount: uint256.NewInt(10)},
		{Kind: events.Transfer, Contract: redemption, From: alice, To: bob, Amount: uint256.NewInt(4)},
	})
	require.Equal(2, i.Len(option))
	require.Equal(uint256.NewInt(6), i.Balance(redemption, alice))
	require.Equal(uint256.NewInt(4), i.Balance(option, bob))

	i.Apply([]events.Event{
		{Kind: events.Redeem, Contract: redemption, From: alice, Amount: uint256.NewInt(6)},
	})
	require.Equal([]ids.ShortID{bob}, i.Holders(option, ids.ShortEmpty, 0))
	require.True(i.Balance(redemption, alice).IsZero())
}

func TestHoldersPaging(t *testing.T) {
	require := require.New(t)

	option := ids.GenerateTestShortID()
	redemption := ids.GenerateTestShortID()
	i := New()
	i.Track(option, redemption)

	holders := make([]ids.ShortID, 5)
	committed := make([]events.Event, 0, len(holders))
	for n := range holders {
		holders[n] = ids.GenerateTestShortID()
		committed = append(committed, events.Event{
			Kind:     events.Mint,
			Contract: redemption,
			To:       holders[n],
			Amount:   uint256.NewInt(1),
		})
	}
	i.Apply(committed)
	sort.Slice(holders, func(a, b int) bool {
		return bytes.Compare(holders[a][:], holders[b][:]) < 0
	})

	page := i.Holders(redemption, ids.ShortEmpty, 2)
	require.Equal(holders[:2], page)
	page = i.Holders(redemption, page[1], 2)
	require.Equal(holders[2:4], page)
	page = i.Holders(redemption, page[1], 2)
	require.Equal(holders[4:], page)

	require.Equal(holders, i.Holders(redemption, ids.ShortEmpty, 0))
}

func TestUntrackedSeries(t *testing.T) {
	i := New()
	unknown := ids.GenerateTestShortID()
	i.Apply([]events.Event{
		{Kind: events.Mint, Contract: unknown, To: ids.GenerateTestShortID(), Amount: uint256.NewInt(1)},
	})
	require.Nil(t, i.Holders(unknown, ids.ShortEmpty, 0))
	require.Zero(t, i.Len(unknown))
}

func TestSeed(t *testing.T) {
	require := require.New(t)

	option := ids.GenerateTestShortID()
	redemption := ids.GenerateTestShortID()
	alice := ids.GenerateTestShortID()

	i := New()
	i.Seed(redemption, alice, uint256.NewInt(5))
	require.Zero(i.Len(redemption))

	i.Track(option, redemption)
	i.Seed(redemption, alice, uint256.NewInt(5))
	require.Equal(uint256.NewInt(5), i.Balance(option, alice))

	i.Seed(redemption, alice, new(uint256.Int))
	require.Zero(i.Len(option))
}
