// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package guard holds the checks shared by every ledger operation: the
// expiration phase, the transfer lock, ownership and argument validation,
// and the per-contract reentrancy flag.
package guard

import (
	"errors"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

var (
	ErrContractExpired    = errors.New("contract expired")
	ErrContractNotExpired = errors.New("contract not expired")
	ErrLockedContract     = errors.New("contract locked")
	ErrReentrantCall      = errors.New("reentrant call")
	ErrNotOwner           = errors.New("caller is not the owner")
	ErrNotFactory         = errors.New("caller is not the factory")
	ErrInvalidValue       = errors.New("invalid value")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrNotInitialized     = errors.New("contract not initialized")
	ErrAlreadyInitialized = errors.New("contract already initialized")
)

// Clock reports the current unix time in seconds.
type Clock interface {
	Unix() uint64
}

// Expired reports whether a series with the given expiration has reached it.
// The expiration second itself belongs to the post-expiry phase.
func Expired(clock Clock, expiration uint64) bool {
	return clock.Unix() >= expiration
}

// RequireActive fails once the expiration has been reached.
func RequireActive(clock Clock, expiration uint64) error {
	if Expired(clock, expiration) {
		return ErrContractExpired
	}
	return nil
}

// RequireExpired fails while the series is still active.
func RequireExpired(clock Clock, expiration uint64) error {
	if !Expired(clock, expiration) {
		return ErrContractNotExpired
	}
	return nil
}

func RequireUnlocked(locked bool) error {
	if locked {
		return ErrLockedContract
	}
	return nil
}

func RequireOwner(caller, owner ids.ShortID) error {
	if caller != owner {
		return ErrNotOwner
	}
	return nil
}

func RequireFactory(caller, factory ids.ShortID) error {
	if caller != factory {
		return ErrNotFactory
	}
	return nil
}

// RequireAddress rejects the zero address.
func RequireAddress(addr ids.ShortID) error {
	if addr == ids.ShortEmpty {
		return ErrInvalidAddress
	}
	return nil
}

// RequirePositive rejects nil and zero amounts.
func RequirePositive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidValue
	}
	return nil
}

// Reentrancy is a non-reentrant section flag for a single contract instance.
// The zero value is ready for use.
type Reentrancy struct {
	entered atomic.Bool
}

// Enter marks the contract as executing. The returned func must be called to
// leave the section; a nested Enter before that fails with ErrReentrantCall.
func (r *Reentrancy) Enter() (func(), error) {
	if !r.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { r.entered.Store(false) }, nil
}

// Entered reports whether a call is currently in progress.
func (r *Reentrancy) Entered() bool {
	return r.entered.Load()
}
