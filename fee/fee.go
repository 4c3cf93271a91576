// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fee computes the protocol fee charged on collateral deposits.
package fee

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrFeeTooHigh     = errors.New("fee rate exceeds maximum")
	ErrAmountOverflow = errors.New("amount overflow")

	// Denominator is the fixed point scale of a fee rate: 1e18 is 100%.
	Denominator = uint256.NewInt(1e18)
	// MaxRate caps the fee at 1%.
	MaxRate = uint256.NewInt(1e16)

	one = uint256.NewInt(1)
)

// Calculator applies a fixed fee rate. It is immutable and safe for concurrent
// use; a rate change builds a new Calculator.
type Calculator struct {
	rate *uint256.Int
}

func NewCalculator(rate *uint256.Int) (*Calculator, error) {
	if rate == nil {
		rate = new(uint256.Int)
	}
	if rate.Gt(MaxRate) {
		return nil, ErrFeeTooHigh
	}
	return &Calculator{rate: rate.Clone()}, nil
}

// Rate returns a copy of the fee rate.
func (c *Calculator) Rate() *uint256.Int {
	return c.rate.Clone()
}

// Fee is floor(amount * rate / 1e18). It never exceeds amount.
func (c *Calculator) Fee(amount *uint256.Int) *uint256.Int {
	// rate <= 1e18 so the quotient is bounded by amount.
	fee, _ := new(uint256.Int).MulDivOverflow(amount, c.rate, Denominator)
	return fee
}

// Net is the amount left after the fee.
func (c *Calculator) Net(amount *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(amount, c.Fee(amount))
}

// GrossUp returns the smallest gross amount whose Net is at least net.
func (c *Calculator) GrossUp(net *uint256.Int) (*uint256.Int, error) {
	if c.rate.IsZero() {
		return net.Clone(), nil
	}

	keep := new(uint256.Int).Sub(Denominator, c.rate)
	gross, overflow := new(uint256.Int).MulDivOverflow(net, Denominator, keep)
	if overflow {
		return nil, ErrAmountOverflow
	}
	if !new(uint256.Int).MulMod(net, Denominator, keep).IsZero() {
		if _, overflow := gross.AddOverflow(gross, one); overflow {
			return nil, ErrAmountOverflow
		}
	}
	// The truncated fee can leave slack of a unit or two.
	for !gross.IsZero() {
		smaller := new(uint256.Int).Sub(gross, one)
		if c.Net(smaller).Lt(net) {
			break
		}
		gross = smaller
	}
	return gross, nil
}
