// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package naming renders human readable series names such as
// OPT-WETH-USDC-2025-12-31-3000-C.
package naming

import (
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/luxfi/optionvm/convert"
	"github.com/luxfi/optionvm/redemption"
)

const (
	OptionPrefix     = "OPT"
	RedemptionPrefix = "RDM"

	// putPrecision is the number of decimals shown for an inverted strike.
	putPrecision = 6
)

// Strike formats an 18-decimal strike. A put is collateralized in the quote
// asset, so its strike is stored inverted and shown inverted back.
func Strike(strike *uint256.Int, isPut bool) string {
	if strike == nil || strike.IsZero() {
		return "0"
	}
	d := decimal.NewFromBigInt(strike.ToBig(), -convert.StrikeDecimals)
	if isPut {
		d = decimal.NewFromInt(1).DivRound(d, putPrecision)
	}
	return d.String()
}

// Date formats a unix timestamp as a UTC calendar date.
func Date(unix uint64) string {
	return time.Unix(int64(unix), 0).UTC().Format(time.DateOnly)
}

func Kind(isPut bool) string {
	if isPut {
		return "P"
	}
	return "C"
}

// Name is the display name of one side of a series.
func Name(prefix string, params redemption.Params, collateralSymbol, considerationSymbol string) string {
	// A put's collateral is the quote asset, so the pair reads the other way.
	base, quote := collateralSymbol, considerationSymbol
	if params.IsPut {
		base, quote = quote, base
	}
	return strings.Join([]string{
		prefix,
		base,
		quote,
		Date(params.Expiration),
		Strike(params.Strike, params.IsPut),
		Kind(params.IsPut),
	}, "-")
}

func OptionName(params redemption.Params, collateralSymbol, considerationSymbol string) string {
	return Name(OptionPrefix, params, collateralSymbol, considerationSymbol)
}

func RedemptionName(params redemption.Params, collateralSymbol, considerationSymbol string) string {
	return Name(RedemptionPrefix, params, collateralSymbol, considerationSymbol)
}
