// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package redemption implements the claim token on a series' collateral.
//
// One Redemption unit is a claim on one unit of deposited collateral. The
// ledger custodies the collateral and the consideration paid in by
// exercisers. Before expiration only the paired option ledger can move
// collateral in or out. After expiration any holder redeems, receiving
// collateral first and the equivalent consideration for whatever was
// exercised away.
package redemption

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/convert"
	"github.com/luxfi/optionvm/events"
	"github.com/luxfi/optionvm/fee"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/state"
)

const (
	keyInitialized = "initialized"
	keyFactory     = "factory"
	keyOwner       = "owner"
	keyParams      = "params"
	keyFeeRate     = "feeRate"
	keyFees        = "fees"
	keyLocked      = "locked"
)

var (
	ErrInsufficientCollateral    = errors.New("insufficient collateral")
	ErrInsufficientConsideration = errors.New("insufficient consideration")
	ErrFeeOnTransferNotSupported = errors.New("fee-on-transfer assets not supported")
	ErrTooManyHolders            = errors.New("too many holders")
)

// Config carries the collaborators of a Redemption ledger.
type Config struct {
	DB         database.Database
	Address    ids.ShortID
	Assets     asset.Resolver
	Transferer asset.Transferer
	Clock      guard.Clock
	Events     events.Emitter
	// MaxSweepHolders bounds a single Sweep. Zero means unbounded.
	MaxSweepHolders int
}

// Payout is what a redeemer receives.
type Payout struct {
	Collateral    *uint256.Int
	Consideration *uint256.Int
}

type Redemption struct {
	address         ids.ShortID
	store           *state.Store
	assets          asset.Resolver
	transferer      asset.Transferer
	clock           guard.Clock
	events          events.Emitter
	maxSweepHolders int
	reentrancy      guard.Reentrancy

	// Immutable once initialized.
	initialized   bool
	params        Params
	collateral    asset.Asset
	consideration asset.Asset
	converter     *convert.Converter
}

// New opens the ledger at cfg.Address. A ledger that was initialized before
// is loaded from the database.
func New(cfg Config) (*Redemption, error) {
	r := &Redemption{
		address:         cfg.Address,
		store:           state.New(cfg.DB, cfg.Address),
		assets:          cfg.Assets,
		transferer:      cfg.Transferer,
		clock:           cfg.Clock,
		events:          cfg.Events,
		maxSweepHolders: cfg.MaxSweepHolders,
	}
	if r.events == nil {
		r.events = events.Discard
	}

	initialized, err := r.store.GetBool(keyInitialized)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return r, nil
	}

	var record paramsRecord
	found, err := r.store.GetRecord(keyParams, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: missing params of %s", state.ErrCorrupted, r.address)
	}
	if err := r.bind(record.params()); err != nil {
		return nil, err
	}
	r.initialized = true
	return r, nil
}

// Init sets the series terms exactly once. The caller becomes the factory and
// owner is the paired option ledger.
func (r *Redemption) Init(caller, owner ids.ShortID, params Params, feeRate *uint256.Int) error {
	release, err := r.reentrancy.Enter()
	if err != nil {
		return err
	}
	defer release()

	if r.initialized {
		return guard.ErrAlreadyInitialized
	}
	if err := guard.RequireAddress(caller); err != nil {
		return err
	}
	if err := guard.RequireAddress(owner); err != nil {
		return err
	}
	if err := guard.RequireAddress(params.Collateral); err != nil {
		return err
	}
	if err := guard.RequireAddress(params.Consideration); err != nil {
		return err
	}
	if params.Collateral == params.Consideration {
		return fmt.Errorf("%w: collateral and consideration are the same asset", guard.ErrInvalidValue)
	}
	if err := guard.RequirePositive(params.Strike); err != nil {
		return err
	}
	if err := guard.RequireActive(r.clock, params.Expiration); err != nil {
		return err
	}
	if _, err := fee.NewCalculator(feeRate); err != nil {
		return err
	}

	params = params.Clone()
	collateral, err := r.assets.Get(params.Collateral)
	if err != nil {
		return err
	}
	consideration, err := r.assets.Get(params.Consideration)
	if err != nil {
		return err
	}
	params.CollateralDecimals = collateral.Decimals()
	params.ConsiderationDecimals = consideration.Decimals()

	if err := r.bind(params); err != nil {
		return err
	}

	if feeRate == nil {
		feeRate = new(uint256.Int)
	}
	if err := r.store.PutAddress(keyFactory, caller); err != nil {
		return err
	}
	if err := r.store.PutAddress(keyOwner, owner); err != nil {
		return err
	}
	if err := r.store.PutRecord(keyParams, params.record()); err != nil {
		return err
	}
	if err := r.store.PutUint(keyFeeRate, feeRate); err != nil {
		return err
	}
	if err := r.store.PutBool(keyInitialized, true); err != nil {
		return err
	}
	r.initialized = true
	return nil
}

func (r *Redemption) bind(params Params) error {
	collateral, err := r.assets.Get(params.Collateral)
	if err != nil {
		return err
	}
	consideration, err := r.assets.Get(params.Consideration)
	if err != nil {
		return err
	}
	converter, err := convert.New(params.Strike, params.CollateralDecimals, params.ConsiderationDecimals)
	if err != nil {
		if errors.Is(err, convert.ErrArithmeticOverflow) {
			return err
		}
		return fmt.Errorf("%w: %w", guard.ErrInvalidValue, err)
	}
	r.params = params
	r.collateral = collateral
	r.consideration = consideration
	r.converter = converter
	return nil
}

func (r *Redemption) Address() ids.ShortID { return r.address }

func (r *Redemption) Initialized() bool { return r.initialized }

// Params returns a copy of the series terms.
func (r *Redemption) Params() Params { return r.params.Clone() }

func (r *Redemption) Converter() *convert.Converter { return r.converter }

func (r *Redemption) CollateralAsset() asset.Asset { return r.collateral }

func (r *Redemption) ConsiderationAsset() asset.Asset { return r.consideration }

func (r *Redemption) Expired() bool {
	return guard.Expired(r.clock, r.params.Expiration)
}

func (r *Redemption) Owner() (ids.ShortID, error) {
	return r.store.GetAddress(keyOwner)
}

func (r *Redemption) Factory() (ids.ShortID, error) {
	return r.store.GetAddress(keyFactory)
}

func (r *Redemption) Locked() (bool, error) {
	return r.store.GetBool(keyLocked)
}

// AccruedFees is the collateral set aside for the factory.
func (r *Redemption) AccruedFees() (*uint256.Int, error) {
	return r.store.GetUint(keyFees)
}

// FeeCalculator returns the calculator for the current fee rate.
func (r *Redemption) FeeCalculator() (*fee.Calculator, error) {
	rate, err := r.store.GetUint(keyFeeRate)
	if err != nil {
		return nil, err
	}
	return fee.NewCalculator(rate)
}

func (r *Redemption) BalanceOf(holder ids.ShortID) (*uint256.Int, error) {
	return r.store.BalanceOf(holder)
}

func (r *Redemption) TotalSupply() (*uint256.Int, error) {
	return r.store.TotalSupply()
}

func (r *Redemption) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return r.store.Allowance(owner, spender)
}

// Holders calls fn with every holder of a non-zero Redemption balance.
func (r *Redemption) Holders(fn func(holder ids.ShortID, balance *uint256.Int) error) error {
	return r.store.Holders(fn)
}

// AvailableCollateral is the custodied collateral that redeemers and
// exercisers may draw on. Accrued fees are excluded.
func (r *Redemption) AvailableCollateral() (*uint256.Int, error) {
	if !r.initialized {
		return nil, guard.ErrNotInitialized
	}
	held, err := r.collateral.BalanceOf(r.address)
	if err != nil {
		return nil, err
	}
	fees, err := r.store.GetUint(keyFees)
	if err != nil {
		return nil, err
	}
	if held.Lt(fees) {
		return new(uint256.Int), nil
	}
	return held.Sub(held, fees), nil
}

// ConsiderationHeld is the live consideration balance of the ledger.
func (r *Redemption) ConsiderationHeld() (*uint256.Int, error) {
	if !r.initialized {
		return nil, guard.ErrNotInitialized
	}
	return r.consideration.BalanceOf(r.address)
}

func (r *Redemption) enter() (func(), error) {
	if !r.initialized {
		return nil, guard.ErrNotInitialized
	}
	return r.reentrancy.Enter()
}

func (r *Redemption) requireOwner(caller ids.ShortID) error {
	owner, err := r.store.GetAddress(keyOwner)
	if err != nil {
		return err
	}
	return guard.RequireOwner(caller, owner)
}

func (r *Redemption) requireFactory(caller ids.ShortID) error {
	factory, err := r.store.GetAddress(keyFactory)
	if err != nil {
		return err
	}
	return guard.RequireFactory(caller, factory)
}

func (r *Redemption) requireUnlocked() error {
	locked, err := r.store.GetBool(keyLocked)
	if err != nil {
		return err
	}
	return guard.RequireUnlocked(locked)
}

// Mint pulls amount of collateral from account and issues the amount net of
// fees as Redemption units. It returns the units issued.
func (r *Redemption) Mint(caller, account ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	release, err := r.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := guard.RequireActive(r.clock, r.params.Expiration); err != nil {
		return nil, err
	}
	if err := guard.RequirePositive(amount); err != nil {
		return nil, err
	}
	if err := guard.RequireAddress(account); err != nil {
		return nil, err
	}
	calculator, err := r.FeeCalculator()
	if err != nil {
		return nil, err
	}

	if err := r.pull(r.collateral, account, amount); err != nil {
		return nil, err
	}

	charged := calculator.Fee(amount)
	net := new(uint256.Int).Sub(amount, charged)
	if !charged.IsZero() {
		fees, err := r.store.GetUint(keyFees)
		if err != nil {
			return nil, err
		}
		if err := r.store.PutUint(keyFees, fees.Add(fees, charged)); err != nil {
			return nil, err
		}
	}
	if err := r.store.Mint(account, net); err != nil {
		return nil, err
	}

	r.events.Emit(events.Event{
		Kind:       events.Mint,
		Contract:   r.address,
		To:         account,
		Amount:     net.Clone(),
		Collateral: amount.Clone(),
	})
	return net, nil
}

// Exercise takes the strike payment for amount of collateral from payer and
// pays the collateral to account.
func (r *Redemption) Exercise(caller, account ids.ShortID, amount *uint256.Int, payer ids.ShortID) (*uint256.Int, error) {
	release, err := r.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := guard.RequireActive(r.clock, r.params.Expiration); err != nil {
		return nil, err
	}
	if err := guard.RequirePositive(amount); err != nil {
		return nil, err
	}
	if err := guard.RequireAddress(account); err != nil {
		return nil, err
	}

	payment, err := r.converter.ToNeededConsideration(amount)
	if err != nil {
		return nil, err
	}
	payerBalance, err := r.consideration.BalanceOf(payer)
	if err != nil {
		return nil, err
	}
	if payerBalance.Lt(payment) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientConsideration, payerBalance.Dec(), payment.Dec())
	}
	available, err := r.AvailableCollateral()
	if err != nil {
		return nil, err
	}
	if available.Lt(amount) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientCollateral, available.Dec(), amount.Dec())
	}

	if err := r.pull(r.consideration, payer, payment); err != nil {
		return nil, err
	}
	if err := r.collateral.Transfer(r.address, account, amount); err != nil {
		return nil, err
	}

	r.events.Emit(events.Event{
		Kind:          events.Exercise,
		Contract:      r.address,
		From:          payer,
		To:            account,
		Amount:        amount.Clone(),
		Collateral:    amount.Clone(),
		Consideration: payment.Clone(),
	})
	return payment, nil
}

// RedeemPair burns account's units ahead of expiration. The paired option
// ledger calls it after burning the matching option units.
func (r *Redemption) RedeemPair(caller, account ids.ShortID, amount *uint256.Int) (Payout, error) {
	release, err := r.enter()
	if err != nil {
		return Payout{}, err
	}
	defer release()

	if err := r.requireOwner(caller); err != nil {
		return Payout{}, err
	}
	if err := guard.RequireActive(r.clock, r.params.Expiration); err != nil {
		return Payout{}, err
	}
	return r.redeem(account, amount)
}

// Redeem burns the caller's units after expiration.
func (r *Redemption) Redeem(caller ids.ShortID, amount *uint256.Int) (Payout, error) {
	release, err := r.enter()
	if err != nil {
		return Payout{}, err
	}
	defer release()

	if err := guard.RequireExpired(r.clock, r.params.Expiration); err != nil {
		return Payout{}, err
	}
	return r.redeem(caller, amount)
}

// RedeemConsideration burns the caller's units for consideration only.
func (r *Redemption) RedeemConsideration(caller ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	release, err := r.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := guard.RequirePositive(amount); err != nil {
		return nil, err
	}
	balance, err := r.store.BalanceOf(caller)
	if err != nil {
		return nil, err
	}
	if balance.Lt(amount) {
		return nil, fmt.Errorf("%w: have %s, need %s", state.ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	out, err := r.converter.ToConsideration(amount)
	if err != nil {
		return nil, err
	}
	held, err := r.consideration.BalanceOf(r.address)
	if err != nil {
		return nil, err
	}
	if held.Lt(out) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientConsideration, held.Dec(), out.Dec())
	}

	if err := r.store.Burn(caller, amount); err != nil {
		return nil, err
	}
	if !out.IsZero() {
		if err := r.consideration.Transfer(r.address, caller, out); err != nil {
			return nil, err
		}
	}

	r.events.Emit(events.Event{
		Kind:          events.Redeem,
		Contract:      r.address,
		From:          caller,
		Amount:        amount.Clone(),
		Consideration: out.Clone(),
	})
	return out, nil
}

// Sweep redeems the full balance of every listed holder after expiration.
// Holders without a balance are skipped. It returns the units redeemed.
func (r *Redemption) Sweep(holders []ids.ShortID) (*uint256.Int, error) {
	release, err := r.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := guard.RequireExpired(r.clock, r.params.Expiration); err != nil {
		return nil, err
	}
	if r.maxSweepHolders > 0 && len(holders) > r.maxSweepHolders {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyHolders, len(holders), r.maxSweepHolders)
	}

	swept := new(uint256.Int)
	for _, holder := range holders {
		balance, err := r.store.BalanceOf(holder)
		if err != nil {
			return nil, err
		}
		if balance.IsZero() {
			continue
		}
		if _, err := r.redeem(holder, balance); err != nil {
			return nil, fmt.Errorf("failed to sweep %s: %w", holder, err)
		}
		swept.Add(swept, balance)
	}
	return swept, nil
}

// redeem pays collateral first and covers the rest in consideration.
func (r *Redemption) redeem(account ids.ShortID, amount *uint256.Int) (Payout, error) {
	if err := guard.RequirePositive(amount); err != nil {
		return Payout{}, err
	}
	balance, err := r.store.BalanceOf(account)
	if err != nil {
		return Payout{}, err
	}
	if balance.Lt(amount) {
		return Payout{}, fmt.Errorf("%w: have %s, need %s", state.ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}

	available, err := r.AvailableCollateral()
	if err != nil {
		return Payout{}, err
	}
	payout := Payout{
		Collateral:    amount.Clone(),
		Consideration: new(uint256.Int),
	}
	if available.Lt(amount) {
		payout.Collateral = available
		shortfall := new(uint256.Int).Sub(amount, available)
		payout.Consideration, err = r.converter.ToConsideration(shortfall)
		if err != nil {
			return Payout{}, err
		}
		held, err := r.consideration.BalanceOf(r.address)
		if err != nil {
			return Payout{}, err
		}
		if held.Lt(payout.Consideration) {
			return Payout{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientConsideration, held.Dec(), payout.Consideration.Dec())
		}
	}

	if err := r.store.Burn(account, amount); err != nil {
		return Payout{}, err
	}
	if !payout.Collateral.IsZero() {
		if err := r.collateral.Transfer(r.address, account, payout.Collateral); err != nil {
			return Payout{}, err
		}
	}
	if !payout.Consideration.IsZero() {
		if err := r.consideration.Transfer(r.address, account, payout.Consideration); err != nil {
			return Payout{}, err
		}
	}

	r.events.Emit(events.Event{
		Kind:          events.Redeem,
		Contract:      r.address,
		From:          account,
		Amount:        amount.Clone(),
		Collateral:    payout.Collateral.Clone(),
		Consideration: payout.Consideration.Clone(),
	})
	return payout, nil
}

// pull moves amount of a from holder into the ledger and checks that exactly
// amount arrived.
func (r *Redemption) pull(a asset.Asset, from ids.ShortID, amount *uint256.Int) error {
	before, err := a.BalanceOf(r.address)
	if err != nil {
		return err
	}
	if err := r.transferer.TransferFrom(a.Address(), from, r.address, amount); err != nil {
		return err
	}
	after, err := a.BalanceOf(r.address)
	if err != nil {
		return err
	}
	if after.Lt(before) {
		return ErrFeeOnTransferNotSupported
	}
	if received := new(uint256.Int).Sub(after, before); !received.Eq(amount) {
		return fmt.Errorf("%w: received %s, expected %s", ErrFeeOnTransferNotSupported, received.Dec(), amount.Dec())
	}
	return nil
}

func (r *Redemption) Transfer(caller, to ids.ShortID, amount *uint256.Int) error {
	release, err := r.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.requireUnlocked(); err != nil {
		return err
	}
	if err := guard.RequireAddress(to); err != nil {
		return err
	}
	if err := r.store.Move(caller, to, amount); err != nil {
		return err
	}
	r.emitTransfer(caller, to, amount)
	return nil
}

func (r *Redemption) TransferFrom(spender, from, to ids.ShortID, amount *uint256.Int) error {
	release, err := r.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.requireUnlocked(); err != nil {
		return err
	}
	if err := guard.RequireAddress(to); err != nil {
		return err
	}
	if err := r.store.SpendAllowance(from, spender, amount); err != nil {
		return err
	}
	if err := r.store.Move(from, to, amount); err != nil {
		return err
	}
	r.emitTransfer(from, to, amount)
	return nil
}

func (r *Redemption) emitTransfer(from, to ids.ShortID, amount *uint256.Int) {
	r.events.Emit(events.Event{
		Kind:     events.Transfer,
		Contract: r.address,
		From:     from,
		To:       to,
		Amount:   amount.Clone(),
	})
}

func (r *Redemption) Approve(owner, spender ids.ShortID, amount *uint256.Int) error {
	if !r.initialized {
		return guard.ErrNotInitialized
	}
	if err := guard.RequireAddress(spender); err != nil {
		return err
	}
	if err := r.store.SetAllowance(owner, spender, amount); err != nil {
		return err
	}
	r.events.Emit(events.Event{
		Kind:     events.Approval,
		Contract: r.address,
		From:     owner,
		To:       spender,
		Amount:   amount.Clone(),
	})
	return nil
}

// Lock pauses transfers of Redemption units.
func (r *Redemption) Lock(caller ids.ShortID) error {
	return r.setLocked(caller, true)
}

func (r *Redemption) Unlock(caller ids.ShortID) error {
	return r.setLocked(caller, false)
}

func (r *Redemption) setLocked(caller ids.ShortID, locked bool) error {
	release, err := r.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := r.store.PutBool(keyLocked, locked); err != nil {
		return err
	}
	kind := events.Unlock
	if locked {
		kind = events.Lock
	}
	r.events.Emit(events.Event{
		Kind:     kind,
		Contract: r.address,
		From:     caller,
	})
	return nil
}

// ClaimFees sends the accrued fees to recipient and returns the amount sent.
func (r *Redemption) ClaimFees(caller, recipient ids.ShortID) (*uint256.Int, error) {
	release, err := r.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.requireFactory(caller); err != nil {
		return nil, err
	}
	if err := guard.RequireAddress(recipient); err != nil {
		return nil, err
	}
	fees, err := r.store.GetUint(keyFees)
	if err != nil {
		return nil, err
	}
	if fees.IsZero() {
		return fees, nil
	}
	if err := r.store.PutUint(keyFees, new(uint256.Int)); err != nil {
		return nil, err
	}
	if err := r.collateral.Transfer(r.address, recipient, fees); err != nil {
		return nil, err
	}

	r.events.Emit(events.Event{
		Kind:       events.FeesClaimed,
		Contract:   r.address,
		To:         recipient,
		Amount:     fees.Clone(),
		Collateral: fees.Clone(),
	})
	return fees, nil
}

// SetFee changes the fee rate for future mints.
func (r *Redemption) SetFee(caller ids.ShortID, rate *uint256.Int) error {
	release, err := r.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := r.requireFactory(caller); err != nil {
		return err
	}
	calculator, err := fee.NewCalculator(rate)
	if err != nil {
		return err
	}
	if err := r.store.PutUint(keyFeeRate, calculator.Rate()); err != nil {
		return err
	}
	r.events.Emit(events.Event{
		Kind:     events.FeeUpdated,
		Contract: r.address,
		From:     caller,
		Amount:   calculator.Rate(),
	})
	return nil
}
