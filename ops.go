// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/redemption"
)

var (
	ErrUnknownToken    = errors.New("unknown token")
	ErrNotOptionLedger = errors.New("address is not an option ledger")
	ErrPermitMismatch  = errors.New("permit does not authorize this mint")
	ErrNoHolders       = errors.New("no holders to sweep")
)

// Fungible is the ERC20 surface shared by assets, option ledgers and
// redemption ledgers.
type Fungible interface {
	BalanceOf(holder ids.ShortID) (*uint256.Int, error)
	TotalSupply() (*uint256.Int, error)
	Allowance(owner, spender ids.ShortID) (*uint256.Int, error)

	Approve(owner, spender ids.ShortID, amount *uint256.Int) error
	Transfer(caller, to ids.ShortID, amount *uint256.Int) error
	TransferFrom(spender, from, to ids.ShortID, amount *uint256.Int) error
}

// token resolves addr to an asset or to either ledger of a series.
func (vm *VM) token(addr ids.ShortID) (Fungible, error) {
	if a, err := vm.assets.Get(addr); err == nil {
		return a, nil
	}
	s, err := vm.series(addr)
	if errors.Is(err, ErrUnknownSeries) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, common.Address(addr).Hex())
	}
	if err != nil {
		return nil, err
	}
	if s.Option.Address() == addr {
		return s.Option, nil
	}
	return s.Redemption, nil
}

// optionSeries returns the series whose option ledger is at addr.
func (vm *VM) optionSeries(addr ids.ShortID) (*Series, error) {
	s, err := vm.series(addr)
	if err != nil {
		return nil, err
	}
	if s.Option.Address() != addr {
		return nil, fmt.Errorf("%w: %s", ErrNotOptionLedger, common.Address(addr).Hex())
	}
	return s, nil
}

// Mint deposits amount of the caller's collateral into the series and issues
// the net amount of both tokens to the caller.
func (vm *VM) Mint(caller, series ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	var net *uint256.Int
	err := vm.execute("mint", func() error {
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		net, err = s.Option.Mint(caller, amount)
		return err
	})
	return net, err
}

// MintWithPermit approves the factory with a signed permit on the collateral
// and mints in the same operation.
func (vm *VM) MintWithPermit(
	caller ids.ShortID,
	series ids.ShortID,
	amount *uint256.Int,
	p permit.Permit,
	signature []byte,
) (*uint256.Int, error) {
	var net *uint256.Int
	err := vm.execute("mintWithPermit", func() error {
		if p.Owner != caller || p.Spender != FactoryAddress {
			return ErrPermitMismatch
		}
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		if err := vm.permits.Apply(s.Redemption.CollateralAsset(), p, signature); err != nil {
			return err
		}
		net, err = s.Option.Mint(caller, amount)
		return err
	})
	return net, err
}

// Exercise burns amount of the caller's options, charges the caller the
// strike and delivers amount of collateral to account.
func (vm *VM) Exercise(caller, series, account ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	var payment *uint256.Int
	err := vm.execute("exercise", func() error {
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		payment, err = s.Option.Exercise(caller, account, amount)
		return err
	})
	return payment, err
}

// RedeemPair burns matched Option and Redemption units before expiration.
func (vm *VM) RedeemPair(caller, series ids.ShortID, amount *uint256.Int) (redemption.Payout, error) {
	var payout redemption.Payout
	err := vm.execute("redeemPair", func() error {
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		payout, err = s.Option.Redeem(caller, amount)
		return err
	})
	return payout, err
}

// Redeem burns Redemption units after expiration.
func (vm *VM) Redeem(caller, series ids.ShortID, amount *uint256.Int) (redemption.Payout, error) {
	var payout redemption.Payout
	err := vm.execute("redeem", func() error {
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		payout, err = s.Redemption.Redeem(caller, amount)
		return err
	})
	return payout, err
}

// RedeemConsideration burns Redemption units for consideration only.
func (vm *VM) RedeemConsideration(caller, series ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := vm.execute("redeemConsideration", func() error {
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		out, err = s.Redemption.RedeemConsideration(caller, amount)
		return err
	})
	return out, err
}

// Sweep redeems every listed holder after expiration. Without a list, the
// indexed holders are swept, up to MaxSweepHolders of them.
func (vm *VM) Sweep(series ids.ShortID, holders []ids.ShortID) (*uint256.Int, error) {
	var swept *uint256.Int
	err := vm.execute("sweep", func() error {
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		if len(holders) == 0 {
			holders = vm.indexer.Holders(s.Redemption.Address(), ids.ShortEmpty, vm.MaxSweepHolders)
		}
		if len(holders) == 0 {
			return ErrNoHolders
		}
		swept, err = s.Redemption.Sweep(holders)
		return err
	})
	return swept, err
}

// Transfer moves amount of token, an asset or either ledger of a series, from
// the caller to to.
func (vm *VM) Transfer(caller, token, to ids.ShortID, amount *uint256.Int) error {
	return vm.execute("transfer", func() error {
		t, err := vm.token(token)
		if err != nil {
			return err
		}
		return t.Transfer(caller, to, amount)
	})
}

func (vm *VM) TransferFrom(spender, token, from, to ids.ShortID, amount *uint256.Int) error {
	return vm.execute("transferFrom", func() error {
		t, err := vm.token(token)
		if err != nil {
			return err
		}
		return t.TransferFrom(spender, from, to, amount)
	})
}

func (vm *VM) Approve(caller, token, spender ids.ShortID, amount *uint256.Int) error {
	return vm.execute("approve", func() error {
		t, err := vm.token(token)
		if err != nil {
			return err
		}
		return t.Approve(caller, spender, amount)
	})
}

// Lock stops transfers of both tokens of the series.
func (vm *VM) Lock(caller, series ids.ShortID) error {
	return vm.execute("lock", func() error {
		s, err := vm.optionSeries(series)
		if err != nil {
			return err
		}
		return s.Option.Lock(caller)
	})
}

func (vm *VM) Unlock(caller, series ids.ShortID) error {
	return vm.execute("unlock", func() error {
		s, err := vm.optionSeries(series)
		if err != nil {
			return err
		}
		return s.Option.Unlock(caller)
	})
}

func (vm *VM) TransferOwnership(caller, series, newOwner ids.ShortID) error {
	return vm.execute("transferOwnership", func() error {
		s, err := vm.optionSeries(series)
		if err != nil {
			return err
		}
		return s.Option.TransferOwnership(caller, newOwner)
	})
}

// ClaimFees sends the fees accrued by the series to the fee recipient.
func (vm *VM) ClaimFees(caller, series ids.ShortID) (*uint256.Int, error) {
	var claimed *uint256.Int
	err := vm.execute("claimFees", func() error {
		if err := vm.requireFactoryOwner(caller); err != nil {
			return err
		}
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		recipient, err := vm.store.GetAddress(keyFeeRecipient)
		if err != nil {
			return err
		}
		claimed, err = s.Redemption.ClaimFees(FactoryAddress, recipient)
		return err
	})
	return claimed, err
}

// SetFee changes the fee rate of the series. Fees already accrued are kept.
func (vm *VM) SetFee(caller, series ids.ShortID, rate *uint256.Int) error {
	return vm.execute("setFee", func() error {
		if err := vm.requireFactoryOwner(caller); err != nil {
			return err
		}
		s, err := vm.series(series)
		if err != nil {
			return err
		}
		return s.Redemption.SetFee(FactoryAddress, rate)
	})
}

func (vm *VM) SetFeeRecipient(caller, recipient ids.ShortID) error {
	return vm.execute("setFeeRecipient", func() error {
		if err := vm.requireFactoryOwner(caller); err != nil {
			return err
		}
		if err := guard.RequireAddress(recipient); err != nil {
			return err
		}
		return vm.store.PutAddress(keyFeeRecipient, recipient)
	})
}

// BlockAsset stops addr from backing new series. Existing series are not
// affected.
func (vm *VM) BlockAsset(caller, addr ids.ShortID) error {
	return vm.setBlocked("blockAsset", caller, addr, true)
}

func (vm *VM) UnblockAsset(caller, addr ids.ShortID) error {
	return vm.setBlocked("unblockAsset", caller, addr, false)
}

func (vm *VM) setBlocked(op string, caller, addr ids.ShortID, blocked bool) error {
	return vm.execute(op, func() error {
		if err := vm.requireFactoryOwner(caller); err != nil {
			return err
		}
		if _, err := vm.assets.Get(addr); err != nil {
			return err
		}
		if err := vm.store.PutBool(blockedKey(addr), blocked); err != nil {
			return err
		}
		vm.afterCommit(func() {
			vm.assets.SetBlocked(addr, blocked)
		})
		return nil
	})
}

// Faucet credits amount of a registered asset to to. Only the factory owner
// may mint assets after genesis.
func (vm *VM) Faucet(caller, addr, to ids.ShortID, amount *uint256.Int) error {
	return vm.execute("faucet", func() error {
		if err := vm.requireFactoryOwner(caller); err != nil {
			return err
		}
		if err := guard.RequireAddress(to); err != nil {
			return err
		}
		if err := guard.RequirePositive(amount); err != nil {
			return err
		}
		a, err := vm.assets.Get(addr)
		if err != nil {
			return err
		}
		token, ok := a.(*asset.Token)
		if !ok {
			return fmt.Errorf("%w: %s is not mintable", ErrUnknownToken, common.Address(addr).Hex())
		}
		return token.Mint(to, amount)
	})
}

// Authenticate verifies that c was signed by its caller and consumes the
// caller's call nonce. The nonce stays consumed when the call it authorized
// fails afterwards.
func (vm *VM) Authenticate(c permit.Call, sig []byte) error {
	return vm.execute("authenticate", func() error {
		return vm.permits.Authenticate(FactoryAddress, c, sig)
	})
}
