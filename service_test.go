// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/luxfi/crypto/secp256k1"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/state"

	avajson "github.com/luxfi/optionvm/utils/json"
)

const (
	testOptionName     = "OPT-WETH-USDC-2023-12-14-3000-C"
	testRedemptionName = "RDM-WETH-USDC-2023-12-14-3000-C"
)

var malloryKey = testKey(0xee)

func newTestService(t *testing.T, vm *VM) *Service {
	s, err := NewService(vm)
	require.NoError(t, err)
	return s
}

// signArgs authenticates args as a call to method by the account of key.
func signArgs(t *testing.T, vm *VM, key *secp256k1.PrivateKey, method string, args SignedArgs) {
	t.Helper()

	signer := NewSigner(key)
	nonce, err := vm.CallNonce(signer.Address())
	require.NoError(t, err)
	require.NoError(t, signer.Sign(vm.ChainID, method, args, nonce, testNow+60))
}

func TestServiceCreateAndDescribeSeries(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := newTestService(t, vm)

	args := &CreateSeriesArgs{
		Collateral:    common.Address(weth),
		Consideration: common.Address(usdc),
		Strike:        avajson.NewUint256(ether(3000)),
		Expiration:    testExpiration,
	}
	signArgs(t, vm, aliceKey, "createSeries", args)
	created := &CreateSeriesReply{}
	require.NoError(s.CreateSeries(nil, args, created))
	require.Equal(testOptionName, created.OptionName)
	require.Equal(testRedemptionName, created.RedemptionName)

	reply := &GetSeriesReply{}
	require.NoError(s.GetSeries(nil, &AddressArgs{Address: created.Redemption}, reply))
	require.Equal(created.Option, reply.Option)
	require.Equal(testOptionName, reply.OptionName)
	require.Equal(common.Address(alice), reply.Owner)
	require.Equal("3000000000000000000000", reply.Strike.String())
	require.Equal(avajson.Uint64(testExpiration), reply.Expiration)

	at := &GetSeriesAtReply{}
	require.NoError(s.GetSeriesAt(nil, &GetSeriesAtArgs{Index: 0}, at))
	require.Equal(created.Option, at.Option)
	require.Equal(avajson.Uint64(1), at.Count)

	err := s.GetSeries(nil, &AddressArgs{Address: common.Address(ids.GenerateTestShortID())}, &GetSeriesReply{})
	require.ErrorIs(err, ErrUnknownSeries)
}

func TestServiceMintAndExercise(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := newTestService(t, vm)
	series := createTestSeries(t, vm)
	option := common.Address(series.Option.Address())

	for _, token := range []ids.ShortID{weth, usdc} {
		approve := &ApproveArgs{
			Token:   common.Address(token),
			Spender: common.Address(FactoryAddress),
			Amount:  avajson.NewUint256(state.Infinite),
		}
		signArgs(t, vm, aliceKey, "approve", approve)
		require.NoError(s.Approve(nil, approve, &EmptyReply{}))
	}

	mint := &SeriesAmountArgs{
		Series: option,
		Amount: avajson.NewUint256(ether(2)),
	}
	signArgs(t, vm, aliceKey, "mint", mint)
	minted := &AmountReply{}
	require.NoError(s.Mint(nil, mint, minted))
	require.Equal(ether(2), minted.Amount.Int())

	// The account defaults to the caller.
	exercise := &ExerciseArgs{
		SeriesAmountArgs: SeriesAmountArgs{
			Series: option,
			Amount: avajson.NewUint256(ether(1)),
		},
	}
	signArgs(t, vm, aliceKey, "exercise", exercise)
	paid := &AmountReply{}
	require.NoError(s.Exercise(nil, exercise, paid))
	require.Equal(usd(3000), paid.Amount.Int())
	requireBalance(t, vm, weth, alice, ether(99))

	balance := &AmountReply{}
	require.NoError(s.GetBalance(nil, &BalanceArgs{
		Token:  option,
		Holder: common.Address(alice),
	}, balance))
	require.Equal(ether(1), balance.Amount.Int())

	events := &GetEventsReply{}
	require.NoError(s.GetEvents(nil, &GetEventsArgs{From: 0, Limit: 2}, events))
	require.Len(events.Events, 2)
	require.Equal("seriesCreated", events.Events[0].Kind)
	require.Equal(avajson.Uint64(2), events.Next)

	nonce := &CallNonceReply{}
	require.NoError(s.GetCallNonce(nil, &CallNonceArgs{Caller: common.Address(alice)}, nonce))
	require.Equal(avajson.Uint64(4), nonce.Nonce)
	require.Equal(avajson.Uint64(vm.ChainID), nonce.ChainID)

	holders := &GetHoldersReply{}
	require.NoError(s.GetHolders(nil, &GetHoldersArgs{Series: option}, holders))
	require.Equal([]common.Address{common.Address(alice)}, holders.Holders)
}

func TestServiceMintWithPermit(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := newTestService(t, vm)
	series := createTestSeries(t, vm)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	holder := permit.KeyAddress(key)
	holderKey, err := secp256k1.ToPrivateKey(crypto.FromECDSA(key))
	require.NoError(err)
	require.NoError(vm.Faucet(testOwner, weth, holder, ether(1)))

	p := permit.Permit{
		Owner:    holder,
		Spender:  FactoryAddress,
		Value:    ether(1),
		Deadline: testNow + 60,
	}
	digest, err := vm.PermitDigest(weth, p)
	require.NoError(err)
	sig, err := permit.Sign(digest, key)
	require.NoError(err)

	args := &MintWithPermitArgs{
		SeriesAmountArgs: SeriesAmountArgs{
			Series: common.Address(series.Option.Address()),
			Amount: avajson.NewUint256(ether(1)),
		},
		Permit: PermitArgs{
			Value:     avajson.NewUint256(p.Value),
			Deadline:  avajson.Uint64(p.Deadline),
			Signature: "not hex",
		},
	}
	err = s.MintWithPermit(nil, args, &AmountReply{})
	require.ErrorIs(err, errInvalidSignature)

	args.Permit.Signature = hexutil.Encode(sig)
	signArgs(t, vm, holderKey, "mintWithPermit", args)
	reply := &AmountReply{}
	require.NoError(s.MintWithPermit(nil, args, reply))
	require.Equal(ether(1), reply.Amount.Int())

	nonce := &PermitNonceReply{}
	require.NoError(s.GetPermitNonce(nil, &PermitNonceArgs{
		Token: common.Address(weth),
		Owner: common.Address(holder),
	}, nonce))
	require.Equal(avajson.Uint64(1), nonce.Nonce)
}

func TestServiceRejectsUnauthenticatedCalls(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := newTestService(t, vm)
	mallory := NewSigner(malloryKey).Address()

	// Unsigned calls are rejected.
	transfer := &TransferArgs{
		CallAuth: CallAuth{Caller: common.Address(alice)},
		Token:    common.Address(weth),
		To:       common.Address(mallory),
		Amount:   avajson.NewUint256(ether(100)),
	}
	err := s.Transfer(nil, transfer, &EmptyReply{})
	require.ErrorIs(err, errInvalidSignature)

	// Signed by mallory but naming alice.
	signArgs(t, vm, malloryKey, "transfer", transfer)
	transfer.Caller = common.Address(alice)
	err = s.Transfer(nil, transfer, &EmptyReply{})
	require.ErrorIs(err, permit.ErrWrongSigner)

	// Signed by mallory but naming the factory owner.
	faucet := &FaucetArgs{
		AssetCallArgs: AssetCallArgs{Asset: common.Address(usdc)},
		To:            common.Address(mallory),
		Amount:        avajson.NewUint256(usd(1_000_000)),
	}
	signArgs(t, vm, malloryKey, "faucet", faucet)
	faucet.Caller = common.Address(testOwner)
	err = s.Faucet(nil, faucet, &EmptyReply{})
	require.ErrorIs(err, permit.ErrWrongSigner)

	// Signed by mallory as herself, the owner check applies.
	signArgs(t, vm, malloryKey, "faucet", faucet)
	err = s.Faucet(nil, faucet, &EmptyReply{})
	require.ErrorIs(err, ErrNotFactoryOwner)

	// Amount changed after alice signed.
	signArgs(t, vm, aliceKey, "transfer", transfer)
	transfer.Amount = avajson.NewUint256(ether(99))
	err = s.Transfer(nil, transfer, &EmptyReply{})
	require.ErrorIs(err, permit.ErrWrongSigner)

	// A signature for one method does not authorize another.
	approve := &ApproveArgs{
		Token:   common.Address(weth),
		Spender: common.Address(mallory),
		Amount:  avajson.NewUint256(state.Infinite),
	}
	signArgs(t, vm, aliceKey, "transfer", approve)
	err = s.Approve(nil, approve, &EmptyReply{})
	require.ErrorIs(err, permit.ErrWrongSigner)

	requireBalance(t, vm, weth, mallory, ether(0))
	requireBalance(t, vm, usdc, mallory, usd(0))
	requireBalance(t, vm, weth, alice, ether(100))

	// Only the rejected owner check consumed a nonce.
	nonce, err := vm.CallNonce(mallory)
	require.NoError(err)
	require.Equal(uint64(1), nonce)
	nonce, err = vm.CallNonce(alice)
	require.NoError(err)
	require.Zero(nonce)
}

func TestServiceRejectsReplayedCalls(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	s := newTestService(t, vm)

	transfer := &TransferArgs{
		Token:  common.Address(weth),
		To:     common.Address(bob),
		Amount: avajson.NewUint256(ether(1)),
	}
	signArgs(t, vm, aliceKey, "transfer", transfer)
	require.NoError(s.Transfer(nil, transfer, &EmptyReply{}))

	err := s.Transfer(nil, transfer, &EmptyReply{})
	require.ErrorIs(err, permit.ErrInvalidNonce)
	requireBalance(t, vm, weth, bob, ether(101))

	// Calls past their deadline are rejected.
	signArgs(t, vm, aliceKey, "transfer", transfer)
	vm.Clock().SetUnix(testNow + 61)
	err = s.Transfer(nil, transfer, &EmptyReply{})
	require.ErrorIs(err, permit.ErrExpired)
	requireBalance(t, vm, weth, bob, ether(101))
}

func TestClientRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	vm := newTestVM(t, nil)
	handlers, err := vm.CreateHandlers(ctx)
	require.NoError(err)
	require.Contains(handlers, "/events")
	server := httptest.NewServer(handlers[""])
	defer server.Close()

	client := NewClient(server.URL)
	var (
		aliceSigner = NewSigner(aliceKey)
		bobSigner   = NewSigner(bobKey)
		ownerSigner = NewSigner(testOwnerKey)
	)
	require.Equal(alice, aliceSigner.Address())

	assets, err := client.GetAssets(ctx)
	require.NoError(err)
	require.Len(assets, 2)
	require.Equal("USDC", assets[0].Symbol)

	created, err := client.CreateSeries(ctx, aliceSigner, &CreateSeriesArgs{
		Collateral:    common.Address(weth),
		Consideration: common.Address(usdc),
		Strike:        avajson.NewUint256(ether(3000)),
		Expiration:    testExpiration,
	})
	require.NoError(err)
	require.Equal(testOptionName, created.OptionName)
	option := ids.ShortID(created.Option)

	// Server failures map back to the sentinel errors.
	_, err = client.Mint(ctx, aliceSigner, option, ether(1))
	require.ErrorIs(err, state.ErrInsufficientAllowance)
	require.ErrorIs(client.Lock(ctx, bobSigner, option), guard.ErrNotOwner)

	require.NoError(client.Approve(ctx, aliceSigner, weth, FactoryAddress, state.Infinite))
	minted, err := client.Mint(ctx, aliceSigner, option, ether(4))
	require.NoError(err)
	require.Equal(ether(4), minted)

	require.NoError(client.Transfer(ctx, aliceSigner, option, bob, ether(1)))
	balance, err := client.GetBalance(ctx, option, bob)
	require.NoError(err)
	require.Equal(ether(1), balance)

	payout, err := client.RedeemPair(ctx, aliceSigner, option, ether(3))
	require.NoError(err)
	require.Equal(ether(3), payout.Collateral)
	require.True(payout.Consideration.IsZero())

	info, err := client.GetSeries(ctx, option)
	require.NoError(err)
	require.Equal(ether(1), info.OptionSupply.Int())
	require.Equal(ether(1), info.AvailableCollateral.Int())

	holders, err := client.GetHolders(ctx, option, ids.ShortEmpty, 0)
	require.NoError(err)
	require.Equal([]ids.ShortID{alice}, holders)

	events, err := client.GetEvents(ctx, 0, 0)
	require.NoError(err)
	require.NotEmpty(events.Events)

	require.ErrorIs(client.SetFeeRecipient(ctx, aliceSigner, carol), ErrNotFactoryOwner)
	require.NoError(client.SetFeeRecipient(ctx, ownerSigner, carol))
	require.NoError(client.Faucet(ctx, ownerSigner, usdc, bob, usd(5)))
	require.NoError(client.TransferOwnership(ctx, aliceSigner, option, bob))
	require.NoError(client.Lock(ctx, bobSigner, option))

	nonce, err := client.GetCallNonce(ctx, alice)
	require.NoError(err)
	require.Equal(avajson.Uint64(8), nonce.Nonce)
}
