// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/events"

	avajson "github.com/luxfi/optionvm/utils/json"
)

// EmptyReply is returned by calls that only report success.
type EmptyReply struct{}

type AmountReply struct {
	Amount avajson.Uint256 `json:"amount"`
}

type PayoutReply struct {
	Collateral    avajson.Uint256 `json:"collateral"`
	Consideration avajson.Uint256 `json:"consideration"`
}

type APIAsset struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Blocked  bool           `json:"blocked"`
}

type GetAssetsReply struct {
	Assets []APIAsset `json:"assets"`
}

// CallAuth authenticates a state changing call. Signature is the EIP-712
// signature of Caller over the method, the hash of the arguments encoded
// with an empty Signature, Nonce and Deadline.
type CallAuth struct {
	Caller    common.Address `json:"caller"`
	Nonce     avajson.Uint64 `json:"nonce"`
	Deadline  avajson.Uint64 `json:"deadline"`
	Signature string         `json:"signature"`
}

func (a *CallAuth) auth() *CallAuth {
	return a
}

// SignedArgs are the arguments of calls made on behalf of a caller.
type SignedArgs interface {
	auth() *CallAuth
}

type CallNonceArgs struct {
	Caller common.Address `json:"caller"`
}

type CallNonceReply struct {
	Nonce   avajson.Uint64 `json:"nonce"`
	ChainID avajson.Uint64 `json:"chainID"`
}

type CreateSeriesArgs struct {
	CallAuth
	Collateral    common.Address  `json:"collateral"`
	Consideration common.Address  `json:"consideration"`
	Strike        avajson.Uint256 `json:"strike"`
	Expiration    avajson.Uint64  `json:"expiration"`
	IsPut         bool            `json:"isPut"`
}

type CreateSeriesReply struct {
	Option         common.Address `json:"option"`
	Redemption     common.Address `json:"redemption"`
	OptionName     string         `json:"optionName"`
	RedemptionName string         `json:"redemptionName"`
}

type AddressArgs struct {
	Address common.Address `json:"address"`
}

type GetSeriesReply struct {
	Option         common.Address `json:"option"`
	Redemption     common.Address `json:"redemption"`
	OptionName     string         `json:"optionName"`
	RedemptionName string         `json:"redemptionName"`

	Collateral            common.Address  `json:"collateral"`
	Consideration         common.Address  `json:"consideration"`
	CollateralDecimals    uint8           `json:"collateralDecimals"`
	ConsiderationDecimals uint8           `json:"considerationDecimals"`
	Strike                avajson.Uint256 `json:"strike"`
	Expiration            avajson.Uint64  `json:"expiration"`
	IsPut                 bool            `json:"isPut"`

	Owner   common.Address `json:"owner"`
	Locked  bool           `json:"locked"`
	Expired bool           `json:"expired"`

	FeeRate             avajson.Uint256 `json:"feeRate"`
	AccruedFees         avajson.Uint256 `json:"accruedFees"`
	AvailableCollateral avajson.Uint256 `json:"availableCollateral"`
	ConsiderationHeld   avajson.Uint256 `json:"considerationHeld"`
	OptionSupply        avajson.Uint256 `json:"optionSupply"`
	RedemptionSupply    avajson.Uint256 `json:"redemptionSupply"`
}

type GetSeriesAtArgs struct {
	Index avajson.Uint64 `json:"index"`
}

type GetSeriesAtReply struct {
	Option common.Address `json:"option"`
	Count  avajson.Uint64 `json:"count"`
}

// SeriesAmountArgs name an amount of a series moved by the caller.
type SeriesAmountArgs struct {
	CallAuth
	Series common.Address  `json:"series"`
	Amount avajson.Uint256 `json:"amount"`
}

type PermitArgs struct {
	Value    avajson.Uint256 `json:"value"`
	Nonce    avajson.Uint64  `json:"nonce"`
	Deadline avajson.Uint64  `json:"deadline"`
	// Signature is the 65-byte [R || S || V] signature, hex encoded.
	Signature string `json:"signature"`
}

type MintWithPermitArgs struct {
	SeriesAmountArgs
	Permit PermitArgs `json:"permit"`
}

type ExerciseArgs struct {
	SeriesAmountArgs
	// Account receives the collateral. Defaults to the caller.
	Account common.Address `json:"account"`
}

type SweepArgs struct {
	Series common.Address `json:"series"`
	// Holders to redeem. When empty the indexed holders are swept.
	Holders []common.Address `json:"holders"`
}

type TransferArgs struct {
	CallAuth
	Token  common.Address  `json:"token"`
	From   common.Address  `json:"from"`
	To     common.Address  `json:"to"`
	Amount avajson.Uint256 `json:"amount"`
}

type ApproveArgs struct {
	CallAuth
	Token   common.Address  `json:"token"`
	Spender common.Address  `json:"spender"`
	Amount  avajson.Uint256 `json:"amount"`
}

type SeriesCallArgs struct {
	CallAuth
	Series common.Address `json:"series"`
}

type TransferOwnershipArgs struct {
	SeriesCallArgs
	NewOwner common.Address `json:"newOwner"`
}

type SetFeeArgs struct {
	SeriesCallArgs
	Rate avajson.Uint256 `json:"rate"`
}

type SetFeeRecipientArgs struct {
	CallAuth
	Recipient common.Address `json:"recipient"`
}

type AssetCallArgs struct {
	CallAuth
	Asset common.Address `json:"asset"`
}

type FaucetArgs struct {
	AssetCallArgs
	To     common.Address  `json:"to"`
	Amount avajson.Uint256 `json:"amount"`
}

type BalanceArgs struct {
	Token  common.Address `json:"token"`
	Holder common.Address `json:"holder"`
}

type AllowanceArgs struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
}

type GetEventsArgs struct {
	From  avajson.Uint64 `json:"from"`
	Limit avajson.Uint32 `json:"limit"`
}

type APIEvent struct {
	Kind          string          `json:"kind"`
	Contract      common.Address  `json:"contract"`
	From          common.Address  `json:"from"`
	To            common.Address  `json:"to"`
	Amount        avajson.Uint256 `json:"amount"`
	Collateral    avajson.Uint256 `json:"collateral"`
	Consideration avajson.Uint256 `json:"consideration"`
}

func newAPIEvent(e events.Event) APIEvent {
	return APIEvent{
		Kind:          e.Kind.String(),
		Contract:      common.Address(e.Contract),
		From:          common.Address(e.From),
		To:            common.Address(e.To),
		Amount:        avajson.NewUint256(e.Amount),
		Collateral:    avajson.NewUint256(e.Collateral),
		Consideration: avajson.NewUint256(e.Consideration),
	}
}

type GetEventsReply struct {
	Events []APIEvent     `json:"events"`
	Next   avajson.Uint64 `json:"next"`
}

type GetHoldersArgs struct {
	Series common.Address `json:"series"`
	After  common.Address `json:"after"`
	Limit  avajson.Uint32 `json:"limit"`
}

type GetHoldersReply struct {
	Holders []common.Address `json:"holders"`
}

type PermitNonceArgs struct {
	Token common.Address `json:"token"`
	Owner common.Address `json:"owner"`
}

type PermitNonceReply struct {
	Nonce avajson.Uint64 `json:"nonce"`
}

func toAddresses(addrs []ids.ShortID) []common.Address {
	out := make([]common.Address, len(addrs))
	for i, addr := range addrs {
		out[i] = common.Address(addr)
	}
	return out
}

func fromAddresses(addrs []common.Address) []ids.ShortID {
	out := make([]ids.ShortID, len(addrs))
	for i, addr := range addrs {
		out[i] = ids.ShortID(addr)
	}
	return out
}
