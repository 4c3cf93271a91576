// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the notifications ledgers emit on every state
// change.
package events

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

type Kind uint8

const (
	Mint Kind = iota + 1
	Exercise
	Redeem
	Transfer
	Approval
	Lock
	Unlock
	FeesClaimed
	FeeUpdated
	OwnershipTransferred
	SeriesCreated
)

var kindNames = map[Kind]string{
	Mint:                 "mint",
	Exercise:             "exercise",
	Redeem:               "redeem",
	Transfer:             "transfer",
	Approval:             "approval",
	Lock:                 "lock",
	Unlock:               "unlock",
	FeesClaimed:          "feesClaimed",
	FeeUpdated:           "feeUpdated",
	OwnershipTransferred: "ownershipTransferred",
	SeriesCreated:        "seriesCreated",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a single ledger notification. Amount is denominated in the
// emitting contract's own units; Collateral and Consideration carry asset
// amounts paid out or taken in, and are nil when the event moves none.
type Event struct {
	Kind          Kind
	Contract      ids.ShortID
	From          ids.ShortID
	To            ids.ShortID
	Amount        *uint256.Int
	Collateral    *uint256.Int
	Consideration *uint256.Int
}

type Emitter interface {
	Emit(Event)
}

// Buffer collects events for one operation so they are published only if
// the operation commits.
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(e Event) {
	b.events = append(b.events, e)
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []Event {
	drained := b.events
	b.events = nil
	return drained
}

func (b *Buffer) Reset() {
	b.events = nil
}

func (b *Buffer) Len() int {
	return len(b.events)
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
