// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/rpc"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/convert"
	"github.com/luxfi/optionvm/fee"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/redemption"
	"github.com/luxfi/optionvm/state"

	avajson "github.com/luxfi/optionvm/utils/json"
)

// CallTTL bounds how long a signed call stays valid.
const CallTTL = 5 * time.Minute

// knownErrors are the sentinel errors a server reply is mapped back to. A
// message that contains another one must come first.
var knownErrors = []error{
	ErrNotFactoryOwner,
	ErrUnknownSeries,
	ErrUnknownToken,
	ErrNotOptionLedger,
	ErrPermitMismatch,
	ErrNoHolders,
	errInvalidSignature,
	guard.ErrContractExpired,
	guard.ErrContractNotExpired,
	guard.ErrLockedContract,
	guard.ErrReentrantCall,
	guard.ErrNotOwner,
	guard.ErrNotFactory,
	guard.ErrInvalidValue,
	guard.ErrInvalidAddress,
	guard.ErrNotInitialized,
	guard.ErrAlreadyInitialized,
	state.ErrInsufficientBalance,
	state.ErrInsufficientAllowance,
	state.ErrBalanceOverflow,
	state.ErrCorrupted,
	redemption.ErrInsufficientCollateral,
	redemption.ErrInsufficientConsideration,
	redemption.ErrFeeOnTransferNotSupported,
	redemption.ErrTooManyHolders,
	convert.ErrArithmeticOverflow,
	fee.ErrFeeTooHigh,
	asset.ErrUnknownAsset,
	asset.ErrAssetExists,
	asset.ErrBlocked,
	permit.ErrExpired,
	permit.ErrInvalidNonce,
	permit.ErrInvalidSignature,
	permit.ErrWrongSigner,
}

// ErrorFromString wraps err with the sentinel error its message names, so
// callers can match server failures with errors.Is.
func ErrorFromString(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, known := range knownErrors {
		if strings.Contains(msg, known.Error()) {
			return fmt.Errorf("%w: %s", known, msg)
		}
	}
	return err
}

// Client for interacting with the optionvm API.
type Client struct {
	Requester rpc.EndpointRequester
}

// NewClient returns a client for the VM served at uri.
func NewClient(uri string) *Client {
	return &Client{Requester: rpc.NewEndpointRequester(uri)}
}

func (c *Client) send(ctx context.Context, method string, args, reply interface{}, options ...rpc.Option) error {
	err := c.Requester.SendRequest(ctx, Name+"."+method, args, reply, options...)
	return ErrorFromString(err)
}

func (c *Client) GetAssets(ctx context.Context, options ...rpc.Option) ([]APIAsset, error) {
	res := &GetAssetsReply{}
	err := c.send(ctx, "getAssets", struct{}{}, res, options...)
	return res.Assets, err
}

// CreateSeries returns the option and redemption addresses of the new series.
func (c *Client) CreateSeries(ctx context.Context, signer *Signer, args *CreateSeriesArgs, options ...rpc.Option) (*CreateSeriesReply, error) {
	res := &CreateSeriesReply{}
	err := c.sendSigned(ctx, signer, "createSeries", args, res, options...)
	return res, err
}

func (c *Client) GetSeries(ctx context.Context, series ids.ShortID, options ...rpc.Option) (*GetSeriesReply, error) {
	res := &GetSeriesReply{}
	err := c.send(ctx, "getSeries", &AddressArgs{Address: common.Address(series)}, res, options...)
	return res, err
}

func (c *Client) Mint(ctx context.Context, signer *Signer, series ids.ShortID, amount *uint256.Int, options ...rpc.Option) (*uint256.Int, error) {
	return c.seriesAmount(ctx, signer, "mint", series, amount, options...)
}

// MintWithPermit signs the call but not the permit. The permit signature is
// produced by the collateral owner.
func (c *Client) MintWithPermit(
	ctx context.Context,
	signer *Signer,
	series ids.ShortID,
	amount *uint256.Int,
	p permit.Permit,
	signature []byte,
	options ...rpc.Option,
) (*uint256.Int, error) {
	res := &AmountReply{}
	err := c.sendSigned(ctx, signer, "mintWithPermit", &MintWithPermitArgs{
		SeriesAmountArgs: seriesAmountArgs(series, amount),
		Permit: PermitArgs{
			Value:     avajson.NewUint256(p.Value),
			Nonce:     avajson.Uint64(p.Nonce),
			Deadline:  avajson.Uint64(p.Deadline),
			Signature: hexutil.Encode(signature),
		},
	}, res, options...)
	return res.Amount.Int(), err
}

func (c *Client) Exercise(ctx context.Context, signer *Signer, series, account ids.ShortID, amount *uint256.Int, options ...rpc.Option) (*uint256.Int, error) {
	res := &AmountReply{}
	err := c.sendSigned(ctx, signer, "exercise", &ExerciseArgs{
		SeriesAmountArgs: seriesAmountArgs(series, amount),
		Account:          common.Address(account),
	}, res, options...)
	return res.Amount.Int(), err
}

func (c *Client) RedeemPair(ctx context.Context, signer *Signer, series ids.ShortID, amount *uint256.Int, options ...rpc.Option) (redemption.Payout, error) {
	return c.payout(ctx, signer, "redeemPair", series, amount, options...)
}

func (c *Client) Redeem(ctx context.Context, signer *Signer, series ids.ShortID, amount *uint256.Int, options ...rpc.Option) (redemption.Payout, error) {
	return c.payout(ctx, signer, "redeem", series, amount, options...)
}

func (c *Client) RedeemConsideration(ctx context.Context, signer *Signer, series ids.ShortID, amount *uint256.Int, options ...rpc.Option) (*uint256.Int, error) {
	return c.seriesAmount(ctx, signer, "redeemConsideration", series, amount, options...)
}

// Sweep redeems holders of an expired series. With no holders the server
// sweeps the holders it has indexed.
func (c *Client) Sweep(ctx context.Context, series ids.ShortID, holders []ids.ShortID, options ...rpc.Option) (*uint256.Int, error) {
	res := &AmountReply{}
	err := c.send(ctx, "sweep", &SweepArgs{
		Series:  common.Address(series),
		Holders: toAddresses(holders),
	}, res, options...)
	return res.Amount.Int(), err
}

func (c *Client) Transfer(ctx context.Context, signer *Signer, token, to ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "transfer", &TransferArgs{
		Token:  common.Address(token),
		To:     common.Address(to),
		Amount: avajson.NewUint256(amount),
	}, &EmptyReply{}, options...)
}

func (c *Client) TransferFrom(ctx context.Context, signer *Signer, token, from, to ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "transferFrom", &TransferArgs{
		Token:  common.Address(token),
		From:   common.Address(from),
		To:     common.Address(to),
		Amount: avajson.NewUint256(amount),
	}, &EmptyReply{}, options...)
}

func (c *Client) Approve(ctx context.Context, signer *Signer, token, spender ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "approve", &ApproveArgs{
		Token:   common.Address(token),
		Spender: common.Address(spender),
		Amount:  avajson.NewUint256(amount),
	}, &EmptyReply{}, options...)
}

func (c *Client) Lock(ctx context.Context, signer *Signer, series ids.ShortID, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "lock", seriesCallArgs(series), &EmptyReply{}, options...)
}

func (c *Client) Unlock(ctx context.Context, signer *Signer, series ids.ShortID, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "unlock", seriesCallArgs(series), &EmptyReply{}, options...)
}

func (c *Client) TransferOwnership(ctx context.Context, signer *Signer, series, newOwner ids.ShortID, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "transferOwnership", &TransferOwnershipArgs{
		SeriesCallArgs: *seriesCallArgs(series),
		NewOwner:       common.Address(newOwner),
	}, &EmptyReply{}, options...)
}

func (c *Client) ClaimFees(ctx context.Context, signer *Signer, series ids.ShortID, options ...rpc.Option) (*uint256.Int, error) {
	res := &AmountReply{}
	err := c.sendSigned(ctx, signer, "claimFees", seriesCallArgs(series), res, options...)
	return res.Amount.Int(), err
}

func (c *Client) SetFee(ctx context.Context, signer *Signer, series ids.ShortID, rate *uint256.Int, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "setFee", &SetFeeArgs{
		SeriesCallArgs: *seriesCallArgs(series),
		Rate:           avajson.NewUint256(rate),
	}, &EmptyReply{}, options...)
}

func (c *Client) SetFeeRecipient(ctx context.Context, signer *Signer, recipient ids.ShortID, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "setFeeRecipient", &SetFeeRecipientArgs{
		Recipient: common.Address(recipient),
	}, &EmptyReply{}, options...)
}

func (c *Client) BlockAsset(ctx context.Context, signer *Signer, addr ids.ShortID, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "blockAsset", &AssetCallArgs{
		Asset: common.Address(addr),
	}, &EmptyReply{}, options...)
}

func (c *Client) Faucet(ctx context.Context, signer *Signer, addr, to ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.sendSigned(ctx, signer, "faucet", &FaucetArgs{
		AssetCallArgs: AssetCallArgs{Asset: common.Address(addr)},
		To:            common.Address(to),
		Amount:        avajson.NewUint256(amount),
	}, &EmptyReply{}, options...)
}

func (c *Client) GetBalance(ctx context.Context, token, holder ids.ShortID, options ...rpc.Option) (*uint256.Int, error) {
	res := &AmountReply{}
	err := c.send(ctx, "getBalance", &BalanceArgs{
		Token:  common.Address(token),
		Holder: common.Address(holder),
	}, res, options...)
	return res.Amount.Int(), err
}

func (c *Client) GetEvents(ctx context.Context, from uint64, limit uint32, options ...rpc.Option) (*GetEventsReply, error) {
	res := &GetEventsReply{}
	err := c.send(ctx, "getEvents", &GetEventsArgs{
		From:  avajson.Uint64(from),
		Limit: avajson.Uint32(limit),
	}, res, options...)
	return res, err
}

func (c *Client) GetHolders(ctx context.Context, series, after ids.ShortID, limit uint32, options ...rpc.Option) ([]ids.ShortID, error) {
	res := &GetHoldersReply{}
	err := c.send(ctx, "getHolders", &GetHoldersArgs{
		Series: common.Address(series),
		After:  common.Address(after),
		Limit:  avajson.Uint32(limit),
	}, res, options...)
	return fromAddresses(res.Holders), err
}

func (c *Client) GetPermitNonce(ctx context.Context, token, owner ids.ShortID, options ...rpc.Option) (uint64, error) {
	res := &PermitNonceReply{}
	err := c.send(ctx, "getPermitNonce", &PermitNonceArgs{
		Token: common.Address(token),
		Owner: common.Address(owner),
	}, res, options...)
	return uint64(res.Nonce), err
}

func (c *Client) GetCallNonce(ctx context.Context, caller ids.ShortID, options ...rpc.Option) (*CallNonceReply, error) {
	res := &CallNonceReply{}
	err := c.send(ctx, "getCallNonce", &CallNonceArgs{Caller: common.Address(caller)}, res, options...)
	return res, err
}

// sendSigned signs args with the next call nonce of signer and sends them.
func (c *Client) sendSigned(ctx context.Context, signer *Signer, method string, args SignedArgs, reply interface{}, options ...rpc.Option) error {
	signer.lock.Lock()
	defer signer.lock.Unlock()

	nonce, err := c.GetCallNonce(ctx, signer.address, options...)
	if err != nil {
		return err
	}
	deadline := uint64(time.Now().Add(CallTTL).Unix())
	if err := signer.Sign(uint64(nonce.ChainID), method, args, uint64(nonce.Nonce), deadline); err != nil {
		return err
	}
	return c.send(ctx, method, args, reply, options...)
}

func (c *Client) seriesAmount(ctx context.Context, signer *Signer, method string, series ids.ShortID, amount *uint256.Int, options ...rpc.Option) (*uint256.Int, error) {
	res := &AmountReply{}
	args := seriesAmountArgs(series, amount)
	err := c.sendSigned(ctx, signer, method, &args, res, options...)
	return res.Amount.Int(), err
}

func (c *Client) payout(ctx context.Context, signer *Signer, method string, series ids.ShortID, amount *uint256.Int, options ...rpc.Option) (redemption.Payout, error) {
	res := &PayoutReply{}
	args := seriesAmountArgs(series, amount)
	err := c.sendSigned(ctx, signer, method, &args, res, options...)
	return redemption.Payout{
		Collateral:    res.Collateral.Int(),
		Consideration: res.Consideration.Int(),
	}, err
}

func seriesAmountArgs(series ids.ShortID, amount *uint256.Int) SeriesAmountArgs {
	return SeriesAmountArgs{
		Series: common.Address(series),
		Amount: avajson.NewUint256(amount),
	}
}

func seriesCallArgs(series ids.ShortID) *SeriesCallArgs {
	return &SeriesCallArgs{
		Series: common.Address(series),
	}
}
