// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package option implements the right-to-exercise token of a series.
//
// Every Option unit is issued together with a Redemption unit by the paired
// redemption ledger, which this ledger owns. Exercising burns Option units and
// swaps consideration for collateral through the redemption ledger. Holding
// both tokens lets a writer unwind the pair before expiration, which
// transfers do automatically for recipients that hold Redemption units.
package option

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/events"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/redemption"
	"github.com/luxfi/optionvm/state"
)

const (
	keyInitialized = "initialized"
	keyFactory     = "factory"
	keyOwner       = "owner"
	keyRedemption  = "redemption"
	keyLocked      = "locked"
)

// Config carries the collaborators of an Option ledger.
type Config struct {
	DB         database.Database
	Address    ids.ShortID
	Redemption *redemption.Redemption
	Clock      guard.Clock
	Events     events.Emitter
}

type Option struct {
	address    ids.ShortID
	store      *state.Store
	redemption *redemption.Redemption
	clock      guard.Clock
	events     events.Emitter
	reentrancy guard.Reentrancy

	initialized bool
}

// New opens the ledger at cfg.Address. A ledger that was initialized before
// must be opened with the redemption ledger it was paired with.
func New(cfg Config) (*Option, error) {
	o := &Option{
		address:    cfg.Address,
		store:      state.New(cfg.DB, cfg.Address),
		redemption: cfg.Redemption,
		clock:      cfg.Clock,
		events:     cfg.Events,
	}
	if o.events == nil {
		o.events = events.Discard
	}

	initialized, err := o.store.GetBool(keyInitialized)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return o, nil
	}
	link, err := o.store.GetAddress(keyRedemption)
	if err != nil {
		return nil, err
	}
	if link != o.redemption.Address() {
		return nil, fmt.Errorf("%w: option %s is paired with %s, not %s",
			state.ErrCorrupted, o.address, link, o.redemption.Address())
	}
	o.initialized = true
	return o, nil
}

// Init pairs the ledger with its redemption ledger exactly once. The caller
// becomes the factory.
func (o *Option) Init(caller, owner ids.ShortID) error {
	release, err := o.reentrancy.Enter()
	if err != nil {
		return err
	}
	defer release()

	if o.initialized {
		return guard.ErrAlreadyInitialized
	}
	if err := guard.RequireAddress(caller); err != nil {
		return err
	}
	if err := guard.RequireAddress(owner); err != nil {
		return err
	}
	if !o.redemption.Initialized() {
		return fmt.Errorf("%w: redemption %s", guard.ErrNotInitialized, o.redemption.Address())
	}
	pairedWith, err := o.redemption.Owner()
	if err != nil {
		return err
	}
	if pairedWith != o.address {
		return fmt.Errorf("%w: redemption %s is owned by %s", guard.ErrNotOwner, o.redemption.Address(), pairedWith)
	}

	if err := o.store.PutAddress(keyFactory, caller); err != nil {
		return err
	}
	if err := o.store.PutAddress(keyOwner, owner); err != nil {
		return err
	}
	if err := o.store.PutAddress(keyRedemption, o.redemption.Address()); err != nil {
		return err
	}
	if err := o.store.PutBool(keyInitialized, true); err != nil {
		return err
	}
	o.initialized = true
	return nil
}

func (o *Option) Address() ids.ShortID { return o.address }

func (o *Option) Initialized() bool { return o.initialized }

func (o *Option) Redemption() *redemption.Redemption { return o.redemption }

func (o *Option) Params() redemption.Params { return o.redemption.Params() }

func (o *Option) Expired() bool { return o.redemption.Expired() }

func (o *Option) Owner() (ids.ShortID, error) {
	return o.store.GetAddress(keyOwner)
}

func (o *Option) Factory() (ids.ShortID, error) {
	return o.store.GetAddress(keyFactory)
}

func (o *Option) Locked() (bool, error) {
	return o.store.GetBool(keyLocked)
}

func (o *Option) BalanceOf(holder ids.ShortID) (*uint256.Int, error) {
	return o.store.BalanceOf(holder)
}

func (o *Option) TotalSupply() (*uint256.Int, error) {
	return o.store.TotalSupply()
}

func (o *Option) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return o.store.Allowance(owner, spender)
}

func (o *Option) enter() (func(), error) {
	if !o.initialized {
		return nil, guard.ErrNotInitialized
	}
	return o.reentrancy.Enter()
}

func (o *Option) requireOwner(caller ids.ShortID) error {
	owner, err := o.store.GetAddress(keyOwner)
	if err != nil {
		return err
	}
	return guard.RequireOwner(caller, owner)
}

func (o *Option) requireUnlocked() error {
	locked, err := o.store.GetBool(keyLocked)
	if err != nil {
		return err
	}
	return guard.RequireUnlocked(locked)
}

// Mint deposits amount of account's collateral and issues the net amount of
// both tokens to account. It returns the units issued.
func (o *Option) Mint(account ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	release, err := o.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	return o.mint(account, amount)
}

func (o *Option) mint(account ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	if err := guard.RequireActive(o.clock, o.redemption.Params().Expiration); err != nil {
		return nil, err
	}
	if err := guard.RequirePositive(amount); err != nil {
		return nil, err
	}
	net, err := o.redemption.Mint(o.address, account, amount)
	if err != nil {
		return nil, err
	}
	if err := o.store.Mint(account, net); err != nil {
		return nil, err
	}
	o.events.Emit(events.Event{
		Kind:       events.Mint,
		Contract:   o.address,
		To:         account,
		Amount:     net.Clone(),
		Collateral: amount.Clone(),
	})
	return net, nil
}

// Exercise burns amount of the caller's options, takes the strike payment
// from the caller and sends amount of collateral to account. It returns the
// consideration paid.
func (o *Option) Exercise(caller, account ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	release, err := o.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := guard.RequireActive(o.clock, o.redemption.Params().Expiration); err != nil {
		return nil, err
	}
	if err := guard.RequirePositive(amount); err != nil {
		return nil, err
	}
	if err := guard.RequireAddress(account); err != nil {
		return nil, err
	}
	if err := o.store.Burn(caller, amount); err != nil {
		return nil, err
	}
	payment, err := o.redemption.Exercise(o.address, account, amount, caller)
	if err != nil {
		return nil, err
	}
	o.events.Emit(events.Event{
		Kind:          events.Exercise,
		Contract:      o.address,
		From:          caller,
		To:            account,
		Amount:        amount.Clone(),
		Collateral:    amount.Clone(),
		Consideration: payment.Clone(),
	})
	return payment, nil
}

// Redeem burns amount of matched Option and Redemption units held by the
// caller and returns the collateral behind them.
func (o *Option) Redeem(caller ids.ShortID, amount *uint256.Int) (redemption.Payout, error) {
	release, err := o.enter()
	if err != nil {
		return redemption.Payout{}, err
	}
	defer release()

	if err := guard.RequireActive(o.clock, o.redemption.Params().Expiration); err != nil {
		return redemption.Payout{}, err
	}
	if err := guard.RequirePositive(amount); err != nil {
		return redemption.Payout{}, err
	}
	return o.redeemPair(caller, amount)
}

func (o *Option) redeemPair(account ids.ShortID, amount *uint256.Int) (redemption.Payout, error) {
	if err := o.store.Burn(account, amount); err != nil {
		return redemption.Payout{}, err
	}
	payout, err := o.redemption.RedeemPair(o.address, account, amount)
	if err != nil {
		return redemption.Payout{}, err
	}
	o.events.Emit(events.Event{
		Kind:          events.Redeem,
		Contract:      o.address,
		From:          account,
		Amount:        amount.Clone(),
		Collateral:    payout.Collateral.Clone(),
		Consideration: payout.Consideration.Clone(),
	})
	return payout, nil
}

// Transfer moves amount of the caller's options to to. A caller holding less
// than amount mints the shortfall first. A recipient holding Redemption units
// has the matched pairs unwound.
func (o *Option) Transfer(caller, to ids.ShortID, amount *uint256.Int) error {
	release, err := o.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := o.requireUnlocked(); err != nil {
		return err
	}
	if err := guard.RequireAddress(to); err != nil {
		return err
	}

	balance, err := o.store.BalanceOf(caller)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		shortfall := new(uint256.Int).Sub(amount, balance)
		calculator, err := o.redemption.FeeCalculator()
		if err != nil {
			return err
		}
		gross, err := calculator.GrossUp(shortfall)
		if err != nil {
			return err
		}
		if _, err := o.mint(caller, gross); err != nil {
			return err
		}
	}

	if err := o.store.Move(caller, to, amount); err != nil {
		return err
	}
	o.emitTransfer(caller, to, amount)
	return o.autoRedeem(to, amount)
}

// TransferFrom moves amount from from to to using the spender's allowance.
// It never mints on behalf of from.
func (o *Option) TransferFrom(spender, from, to ids.ShortID, amount *uint256.Int) error {
	release, err := o.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := o.requireUnlocked(); err != nil {
		return err
	}
	if err := guard.RequireAddress(to); err != nil {
		return err
	}
	if err := o.store.SpendAllowance(from, spender, amount); err != nil {
		return err
	}
	if err := o.store.Move(from, to, amount); err != nil {
		return err
	}
	o.emitTransfer(from, to, amount)
	return o.autoRedeem(to, amount)
}

// autoRedeem unwinds up to amount matched pairs held by to. Pairs only unwind
// before expiration.
func (o *Option) autoRedeem(to ids.ShortID, amount *uint256.Int) error {
	if amount.IsZero() || o.redemption.Expired() {
		return nil
	}
	held, err := o.redemption.BalanceOf(to)
	if err != nil {
		return err
	}
	if held.IsZero() {
		return nil
	}
	if held.Gt(amount) {
		held = amount.Clone()
	}
	_, err = o.redeemPair(to, held)
	return err
}

func (o *Option) emitTransfer(from, to ids.ShortID, amount *uint256.Int) {
	o.events.Emit(events.Event{
		Kind:     events.Transfer,
		Contract: o.address,
		From:     from,
		To:       to,
		Amount:   amount.Clone(),
	})
}

func (o *Option) Approve(owner, spender ids.ShortID, amount *uint256.Int) error {
	if !o.initialized {
		return guard.ErrNotInitialized
	}
	if err := guard.RequireAddress(spender); err != nil {
		return err
	}
	if err := o.store.SetAllowance(owner, spender, amount); err != nil {
		return err
	}
	o.events.Emit(events.Event{
		Kind:     events.Approval,
		Contract: o.address,
		From:     owner,
		To:       spender,
		Amount:   amount.Clone(),
	})
	return nil
}

// Lock pauses transfers of both tokens. Minting, exercise and redemption are
// unaffected.
func (o *Option) Lock(caller ids.ShortID) error {
	return o.setLocked(caller, true)
}

func (o *Option) Unlock(caller ids.ShortID) error {
	return o.setLocked(caller, false)
}

func (o *Option) setLocked(caller ids.ShortID, locked bool) error {
	release, err := o.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := o.requireOwner(caller); err != nil {
		return err
	}
	if err := o.store.PutBool(keyLocked, locked); err != nil {
		return err
	}
	if locked {
		err = o.redemption.Lock(o.address)
	} else {
		err = o.redemption.Unlock(o.address)
	}
	if err != nil {
		return err
	}

	kind := events.Unlock
	if locked {
		kind = events.Lock
	}
	o.events.Emit(events.Event{
		Kind:     kind,
		Contract: o.address,
		From:     caller,
	})
	return nil
}

func (o *Option) TransferOwnership(caller, newOwner ids.ShortID) error {
	release, err := o.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := o.requireOwner(caller); err != nil {
		return err
	}
	if err := guard.RequireAddress(newOwner); err != nil {
		return err
	}
	if err := o.store.PutAddress(keyOwner, newOwner); err != nil {
		return err
	}
	o.events.Emit(events.Event{
		Kind:     events.OwnershipTransferred,
		Contract: o.address,
		From:     caller,
		To:       newOwner,
	})
	return nil
}
