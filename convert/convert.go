// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package convert translates amounts between the collateral and
// consideration assets of a series at its strike price.
//
// The strike is an 18-decimal fixed point price of one whole collateral unit
// denominated in consideration. Each asset has its own decimals, so the
// conversion factor is
//
//	strike * 10^considerationDecimals / (10^collateralDecimals * 10^18)
//
// which is stored as a reduced fraction. Every intermediate product is taken
// at 512 bits before division so valid inputs never overflow silently.
package convert

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// StrikeDecimals is the fixed point precision of a strike price.
const StrikeDecimals = 18

// maxDecimals keeps 10^(decimals+StrikeDecimals) inside 256 bits.
const maxDecimals = 77 - StrikeDecimals

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInvalidStrike      = errors.New("strike must be positive")
	ErrInvalidDecimals    = errors.New("unsupported decimals")

	one = uint256.NewInt(1)
)

// Converter is immutable after construction and safe for concurrent use.
type Converter struct {
	strike *uint256.Int
	num    *uint256.Int
	den    *uint256.Int
}

func New(strike *uint256.Int, collateralDecimals, considerationDecimals uint8) (*Converter, error) {
	if strike == nil || strike.IsZero() {
		return nil, ErrInvalidStrike
	}
	if collateralDecimals > maxDecimals || considerationDecimals > maxDecimals {
		return nil, ErrInvalidDecimals
	}

	num := new(big.Int).Mul(strike.ToBig(), pow10(considerationDecimals))
	den := pow10(collateralDecimals + StrikeDecimals)
	gcd := new(big.Int).GCD(nil, nil, num, den)
	num.Quo(num, gcd)
	den.Quo(den, gcd)

	n, overflow := uint256.FromBig(num)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	d, overflow := uint256.FromBig(den)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return &Converter{
		strike: strike.Clone(),
		num:    n,
		den:    d,
	}, nil
}

// Strike returns a copy of the strike price.
func (c *Converter) Strike() *uint256.Int {
	return c.strike.Clone()
}

// ToConsideration converts a collateral amount to consideration, rounding
// down.
func (c *Converter) ToConsideration(collateral *uint256.Int) (*uint256.Int, error) {
	return mulDiv(collateral, c.num, c.den)
}

// ToCollateral converts a consideration amount to collateral, rounding down.
func (c *Converter) ToCollateral(consideration *uint256.Int) (*uint256.Int, error) {
	return mulDiv(consideration, c.den, c.num)
}

// ToNeededConsideration is ToConsideration rounded up. It is the amount an
// exerciser pays, so the series is never short-changed by truncation.
func (c *Converter) ToNeededConsideration(collateral *uint256.Int) (*uint256.Int, error) {
	z, err := mulDiv(collateral, c.num, c.den)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(collateral, c.num, c.den).IsZero() {
		return z, nil
	}
	z, overflow := z.AddOverflow(z, one)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
