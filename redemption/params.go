// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package redemption

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// Params are the immutable terms of an option series.
type Params struct {
	Collateral    ids.ShortID
	Consideration ids.ShortID
	// Expiration is the unix second at which the series expires.
	Expiration uint64
	// Strike is the 18-decimal price of one collateral unit in consideration.
	Strike *uint256.Int
	IsPut  bool

	// Filled in from the assets at initialization.
	CollateralDecimals    uint8
	ConsiderationDecimals uint8
}

type paramsRecord struct {
	Collateral            ids.ShortID `serialize:"true"`
	Consideration         ids.ShortID `serialize:"true"`
	Expiration            uint64      `serialize:"true"`
	Strike                [32]byte    `serialize:"true"`
	IsPut                 bool        `serialize:"true"`
	CollateralDecimals    uint8       `serialize:"true"`
	ConsiderationDecimals uint8       `serialize:"true"`
}

func (p Params) record() *paramsRecord {
	return &paramsRecord{
		Collateral:            p.Collateral,
		Consideration:         p.Consideration,
		Expiration:            p.Expiration,
		Strike:                p.Strike.Bytes32(),
		IsPut:                 p.IsPut,
		CollateralDecimals:    p.CollateralDecimals,
		ConsiderationDecimals: p.ConsiderationDecimals,
	}
}

func (r *paramsRecord) params() Params {
	return Params{
		Collateral:            r.Collateral,
		Consideration:         r.Consideration,
		Expiration:            r.Expiration,
		Strike:                new(uint256.Int).SetBytes32(r.Strike[:]),
		IsPut:                 r.IsPut,
		CollateralDecimals:    r.CollateralDecimals,
		ConsiderationDecimals: r.ConsiderationDecimals,
	}
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	if p.Strike != nil {
		p.Strike = p.Strike.Clone()
	}
	return p
}
