// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/optionvm/naming"
	"github.com/luxfi/optionvm/permit"

	avajson "github.com/luxfi/optionvm/utils/json"
)

const nameCacheSize = 512

var errInvalidSignature = errors.New("invalid signature encoding")

// Service is the JSON-RPC API of the VM.
type Service struct {
	vm *VM

	// option address -> seriesNames
	names *lru.Cache
}

type seriesNames struct {
	option     string
	redemption string
}

func NewService(vm *VM) (*Service, error) {
	names, err := lru.New(nameCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{vm: vm, names: names}, nil
}

func (s *Service) called(method string) {
	s.vm.log.Debug("API called",
		log.String("service", Name),
		log.String("method", method),
	)
}

// authenticate returns the caller that signed args as a call to method.
func (s *Service) authenticate(method string, args SignedArgs) (ids.ShortID, error) {
	sig, err := hexutil.Decode(args.auth().Signature)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", errInvalidSignature, err)
	}
	call, err := newCall(method, args)
	if err != nil {
		return ids.ShortEmpty, err
	}
	if err := s.vm.Authenticate(call, sig); err != nil {
		s.vm.log.Debug("API call rejected",
			log.String("method", method),
			log.String("caller", common.Address(call.Caller).Hex()),
			log.Err(err),
		)
		return ids.ShortEmpty, err
	}
	return call.Caller, nil
}

// seriesNames renders the token names of a series. Terms never change, so
// names are cached for the lifetime of the service.
func (s *Service) seriesNames(info SeriesInfo) seriesNames {
	if cached, ok := s.names.Get(info.Option); ok {
		return cached.(seriesNames)
	}
	names := seriesNames{
		option:     naming.OptionName(info.Params, info.CollateralSymbol, info.ConsiderationSymbol),
		redemption: naming.RedemptionName(info.Params, info.CollateralSymbol, info.ConsiderationSymbol),
	}
	s.names.Add(info.Option, names)
	return names
}

// GetAssets lists the assets series may be created over.
func (s *Service) GetAssets(_ *http.Request, _ *struct{}, reply *GetAssetsReply) error {
	s.called("getAssets")

	for _, a := range s.vm.Assets() {
		reply.Assets = append(reply.Assets, APIAsset{
			Address:  common.Address(a.Address),
			Symbol:   a.Symbol,
			Decimals: a.Decimals,
			Blocked:  a.Blocked,
		})
	}
	return nil
}

func (s *Service) CreateSeries(_ *http.Request, args *CreateSeriesArgs, reply *CreateSeriesReply) error {
	s.called("createSeries")

	caller, err := s.authenticate("createSeries", args)
	if err != nil {
		return err
	}
	series, err := s.vm.CreateSeries(caller, SeriesConfig{
		Collateral:    ids.ShortID(args.Collateral),
		Consideration: ids.ShortID(args.Consideration),
		Strike:        args.Strike.Int(),
		Expiration:    uint64(args.Expiration),
		IsPut:         args.IsPut,
	})
	if err != nil {
		return err
	}
	info, err := s.vm.SeriesInfo(series.Option.Address())
	if err != nil {
		return err
	}
	names := s.seriesNames(info)
	reply.Option = common.Address(info.Option)
	reply.Redemption = common.Address(info.Redemption)
	reply.OptionName = names.option
	reply.RedemptionName = names.redemption
	return nil
}

// GetSeries describes the series of an option or redemption address.
func (s *Service) GetSeries(_ *http.Request, args *AddressArgs, reply *GetSeriesReply) error {
	s.called("getSeries")

	info, err := s.vm.SeriesInfo(ids.ShortID(args.Address))
	if err != nil {
		return err
	}
	names := s.seriesNames(info)
	p := info.Params
	*reply = GetSeriesReply{
		Option:                common.Address(info.Option),
		Redemption:            common.Address(info.Redemption),
		OptionName:            names.option,
		RedemptionName:        names.redemption,
		Collateral:            common.Address(p.Collateral),
		Consideration:         common.Address(p.Consideration),
		CollateralDecimals:    p.CollateralDecimals,
		ConsiderationDecimals: p.ConsiderationDecimals,
		Strike:                avajson.NewUint256(p.Strike),
		Expiration:            avajson.Uint64(p.Expiration),
		IsPut:                 p.IsPut,
		Owner:                 common.Address(info.Owner),
		Locked:                info.Locked,
		Expired:               info.Expired,
		FeeRate:               avajson.NewUint256(info.FeeRate),
		AccruedFees:           avajson.NewUint256(info.AccruedFees),
		AvailableCollateral:   avajson.NewUint256(info.AvailableCollateral),
		ConsiderationHeld:     avajson.NewUint256(info.ConsiderationHeld),
		OptionSupply:          avajson.NewUint256(info.OptionSupply),
		RedemptionSupply:      avajson.NewUint256(info.RedemptionSupply),
	}
	return nil
}

// GetSeriesAt returns the option address of the index-th series created.
func (s *Service) GetSeriesAt(_ *http.Request, args *GetSeriesAtArgs, reply *GetSeriesAtReply) error {
	s.called("getSeriesAt")

	option, err := s.vm.SeriesAt(uint64(args.Index))
	if err != nil {
		return err
	}
	reply.Option = common.Address(option)
	reply.Count = avajson.Uint64(s.vm.SeriesCount())
	return nil
}

func (s *Service) Mint(_ *http.Request, args *SeriesAmountArgs, reply *AmountReply) error {
	s.called("mint")

	caller, err := s.authenticate("mint", args)
	if err != nil {
		return err
	}
	net, err := s.vm.Mint(caller, ids.ShortID(args.Series), args.Amount.Int())
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(net)
	return nil
}

func (s *Service) MintWithPermit(_ *http.Request, args *MintWithPermitArgs, reply *AmountReply) error {
	s.called("mintWithPermit")

	sig, err := hexutil.Decode(args.Permit.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidSignature, err)
	}
	caller, err := s.authenticate("mintWithPermit", args)
	if err != nil {
		return err
	}
	p := permit.Permit{
		Owner:    caller,
		Spender:  FactoryAddress,
		Value:    args.Permit.Value.Int(),
		Nonce:    uint64(args.Permit.Nonce),
		Deadline: uint64(args.Permit.Deadline),
	}
	net, err := s.vm.MintWithPermit(caller, ids.ShortID(args.Series), args.Amount.Int(), p, sig)
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(net)
	return nil
}

// Exercise returns the consideration paid.
func (s *Service) Exercise(_ *http.Request, args *ExerciseArgs, reply *AmountReply) error {
	s.called("exercise")

	caller, err := s.authenticate("exercise", args)
	if err != nil {
		return err
	}
	account := args.Account
	if account == (common.Address{}) {
		account = common.Address(caller)
	}
	payment, err := s.vm.Exercise(caller, ids.ShortID(args.Series), ids.ShortID(account), args.Amount.Int())
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(payment)
	return nil
}

func (s *Service) RedeemPair(_ *http.Request, args *SeriesAmountArgs, reply *PayoutReply) error {
	s.called("redeemPair")

	caller, err := s.authenticate("redeemPair", args)
	if err != nil {
		return err
	}
	payout, err := s.vm.RedeemPair(caller, ids.ShortID(args.Series), args.Amount.Int())
	if err != nil {
		return err
	}
	reply.Collateral = avajson.NewUint256(payout.Collateral)
	reply.Consideration = avajson.NewUint256(payout.Consideration)
	return nil
}

func (s *Service) Redeem(_ *http.Request, args *SeriesAmountArgs, reply *PayoutReply) error {
	s.called("redeem")

	caller, err := s.authenticate("redeem", args)
	if err != nil {
		return err
	}
	payout, err := s.vm.Redeem(caller, ids.ShortID(args.Series), args.Amount.Int())
	if err != nil {
		return err
	}
	reply.Collateral = avajson.NewUint256(payout.Collateral)
	reply.Consideration = avajson.NewUint256(payout.Consideration)
	return nil
}

func (s *Service) RedeemConsideration(_ *http.Request, args *SeriesAmountArgs, reply *AmountReply) error {
	s.called("redeemConsideration")

	caller, err := s.authenticate("redeemConsideration", args)
	if err != nil {
		return err
	}
	out, err := s.vm.RedeemConsideration(caller, ids.ShortID(args.Series), args.Amount.Int())
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(out)
	return nil
}

// Sweep returns the Redemption units redeemed.
func (s *Service) Sweep(_ *http.Request, args *SweepArgs, reply *AmountReply) error {
	s.called("sweep")

	swept, err := s.vm.Sweep(ids.ShortID(args.Series), fromAddresses(args.Holders))
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(swept)
	return nil
}

func (s *Service) Transfer(_ *http.Request, args *TransferArgs, _ *EmptyReply) error {
	s.called("transfer")

	caller, err := s.authenticate("transfer", args)
	if err != nil {
		return err
	}
	return s.vm.Transfer(caller, ids.ShortID(args.Token), ids.ShortID(args.To), args.Amount.Int())
}

func (s *Service) TransferFrom(_ *http.Request, args *TransferArgs, _ *EmptyReply) error {
	s.called("transferFrom")

	caller, err := s.authenticate("transferFrom", args)
	if err != nil {
		return err
	}
	return s.vm.TransferFrom(
		caller,
		ids.ShortID(args.Token),
		ids.ShortID(args.From),
		ids.ShortID(args.To),
		args.Amount.Int(),
	)
}

func (s *Service) Approve(_ *http.Request, args *ApproveArgs, _ *EmptyReply) error {
	s.called("approve")

	caller, err := s.authenticate("approve", args)
	if err != nil {
		return err
	}
	return s.vm.Approve(caller, ids.ShortID(args.Token), ids.ShortID(args.Spender), args.Amount.Int())
}

func (s *Service) Lock(_ *http.Request, args *SeriesCallArgs, _ *EmptyReply) error {
	s.called("lock")

	caller, err := s.authenticate("lock", args)
	if err != nil {
		return err
	}
	return s.vm.Lock(caller, ids.ShortID(args.Series))
}

func (s *Service) Unlock(_ *http.Request, args *SeriesCallArgs, _ *EmptyReply) error {
	s.called("unlock")

	caller, err := s.authenticate("unlock", args)
	if err != nil {
		return err
	}
	return s.vm.Unlock(caller, ids.ShortID(args.Series))
}

func (s *Service) TransferOwnership(_ *http.Request, args *TransferOwnershipArgs, _ *EmptyReply) error {
	s.called("transferOwnership")

	caller, err := s.authenticate("transferOwnership", args)
	if err != nil {
		return err
	}
	return s.vm.TransferOwnership(caller, ids.ShortID(args.Series), ids.ShortID(args.NewOwner))
}

func (s *Service) ClaimFees(_ *http.Request, args *SeriesCallArgs, reply *AmountReply) error {
	s.called("claimFees")

	caller, err := s.authenticate("claimFees", args)
	if err != nil {
		return err
	}
	claimed, err := s.vm.ClaimFees(caller, ids.ShortID(args.Series))
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(claimed)
	return nil
}

func (s *Service) SetFee(_ *http.Request, args *SetFeeArgs, _ *EmptyReply) error {
	s.called("setFee")

	caller, err := s.authenticate("setFee", args)
	if err != nil {
		return err
	}
	return s.vm.SetFee(caller, ids.ShortID(args.Series), args.Rate.Int())
}

func (s *Service) SetFeeRecipient(_ *http.Request, args *SetFeeRecipientArgs, _ *EmptyReply) error {
	s.called("setFeeRecipient")

	caller, err := s.authenticate("setFeeRecipient", args)
	if err != nil {
		return err
	}
	return s.vm.SetFeeRecipient(caller, ids.ShortID(args.Recipient))
}

func (s *Service) BlockAsset(_ *http.Request, args *AssetCallArgs, _ *EmptyReply) error {
	s.called("blockAsset")

	caller, err := s.authenticate("blockAsset", args)
	if err != nil {
		return err
	}
	return s.vm.BlockAsset(caller, ids.ShortID(args.Asset))
}

func (s *Service) UnblockAsset(_ *http.Request, args *AssetCallArgs, _ *EmptyReply) error {
	s.called("unblockAsset")

	caller, err := s.authenticate("unblockAsset", args)
	if err != nil {
		return err
	}
	return s.vm.UnblockAsset(caller, ids.ShortID(args.Asset))
}

func (s *Service) Faucet(_ *http.Request, args *FaucetArgs, _ *EmptyReply) error {
	s.called("faucet")

	caller, err := s.authenticate("faucet", args)
	if err != nil {
		return err
	}
	return s.vm.Faucet(caller, ids.ShortID(args.Asset), ids.ShortID(args.To), args.Amount.Int())
}

func (s *Service) GetBalance(_ *http.Request, args *BalanceArgs, reply *AmountReply) error {
	s.called("getBalance")

	balance, err := s.vm.BalanceOf(ids.ShortID(args.Token), ids.ShortID(args.Holder))
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(balance)
	return nil
}

func (s *Service) GetAllowance(_ *http.Request, args *AllowanceArgs, reply *AmountReply) error {
	s.called("getAllowance")

	allowance, err := s.vm.Allowance(ids.ShortID(args.Token), ids.ShortID(args.Owner), ids.ShortID(args.Spender))
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(allowance)
	return nil
}

func (s *Service) GetTotalSupply(_ *http.Request, args *AddressArgs, reply *AmountReply) error {
	s.called("getTotalSupply")

	supply, err := s.vm.TotalSupply(ids.ShortID(args.Address))
	if err != nil {
		return err
	}
	reply.Amount = avajson.NewUint256(supply)
	return nil
}

// GetEvents pages through committed events in commit order.
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	s.called("getEvents")

	committed, next := s.vm.Events(uint64(args.From), int(args.Limit))
	reply.Events = make([]APIEvent, len(committed))
	for i, e := range committed {
		reply.Events[i] = newAPIEvent(e)
	}
	reply.Next = avajson.Uint64(next)
	return nil
}

func (s *Service) GetHolders(_ *http.Request, args *GetHoldersArgs, reply *GetHoldersReply) error {
	s.called("getHolders")

	holders := s.vm.Holders(ids.ShortID(args.Series), ids.ShortID(args.After), int(args.Limit))
	reply.Holders = toAddresses(holders)
	return nil
}

func (s *Service) GetPermitNonce(_ *http.Request, args *PermitNonceArgs, reply *PermitNonceReply) error {
	s.called("getPermitNonce")

	nonce, err := s.vm.PermitNonce(ids.ShortID(args.Token), ids.ShortID(args.Owner))
	if err != nil {
		return err
	}
	reply.Nonce = avajson.Uint64(nonce)
	return nil
}

// GetCallNonce returns the nonce the next call of caller must be signed with
// and the chain calls are signed for.
func (s *Service) GetCallNonce(_ *http.Request, args *CallNonceArgs, reply *CallNonceReply) error {
	s.called("getCallNonce")

	nonce, err := s.vm.CallNonce(ids.ShortID(args.Caller))
	if err != nil {
		return err
	}
	reply.Nonce = avajson.Uint64(nonce)
	reply.ChainID = avajson.Uint64(s.vm.ChainID)
	return nil
}
