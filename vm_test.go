// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/events"
	"github.com/luxfi/optionvm/fee"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/redemption"
	"github.com/luxfi/optionvm/state"
)

func TestInitializeGenesis(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)

	assets := vm.Assets()
	require.Len(assets, 2)
	require.Equal("USDC", assets[0].Symbol)
	require.Equal(uint8(6), assets[0].Decimals)
	require.Equal(usdc, assets[0].Address)
	require.Equal("WETH", assets[1].Symbol)

	requireBalance(t, vm, weth, alice, ether(100))
	requireBalance(t, vm, usdc, bob, usd(1_000_000))

	owner, err := vm.Owner()
	require.NoError(err)
	require.Equal(testOwner, owner)

	// A second Initialize is a no-op.
	require.NoError(vm.Initialize(context.Background(), nil, memdb.New(), nil, nil))
	require.Len(vm.Assets(), 2)
}

func TestInitializeRejectsInvalidGenesis(t *testing.T) {
	vm := &VM{}
	err := vm.Initialize(context.Background(), nil, memdb.New(), []byte(`{"assets":[]}`), nil)
	require.Error(t, err)
}

func TestOperationsRequireInitialize(t *testing.T) {
	vm := &VM{}
	_, err := vm.Mint(alice, ids.GenerateTestShortID(), uint256.NewInt(1))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestCreateSeries(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	series := createTestSeries(t, vm)
	second := createTestSeries(t, vm)

	// Identical terms still get fresh addresses.
	require.NotEqual(series.Option.Address(), second.Option.Address())
	require.NotEqual(series.Option.Address(), series.Redemption.Address())
	require.Equal(2, vm.SeriesCount())

	option, err := vm.SeriesAt(0)
	require.NoError(err)
	require.Equal(series.Option.Address(), option)
	_, err = vm.SeriesAt(2)
	require.ErrorIs(err, ErrUnknownSeries)

	info, err := vm.SeriesInfo(series.Redemption.Address())
	require.NoError(err)
	require.Equal(series.Option.Address(), info.Option)
	require.Equal(alice, info.Owner)
	require.Equal(uint8(18), info.Params.CollateralDecimals)
	require.Equal(uint8(6), info.Params.ConsiderationDecimals)
	require.Equal("WETH", info.CollateralSymbol)
	require.False(info.Expired)
	require.True(info.OptionSupply.IsZero())

	factory, err := series.Redemption.Factory()
	require.NoError(err)
	require.Equal(FactoryAddress, factory)

	committed, next := vm.Events(0, 0)
	require.Equal(uint64(2), next)
	require.Len(committed, 2)
	require.Equal(events.SeriesCreated, committed[0].Kind)
	require.Equal(series.Redemption.Address(), committed[0].To)
}

func TestCreateSeriesValidation(t *testing.T) {
	blocklist := []byte(`{"blocklist":["` + common.Address(weth).Hex() + `"]}`)
	tests := []struct {
		name        string
		config      []byte
		caller      ids.ShortID
		cfg         SeriesConfig
		expectedErr error
	}{
		{
			name:        "zero caller",
			caller:      ids.ShortEmpty,
			cfg:         SeriesConfig{Collateral: usdc, Consideration: weth, Strike: ether(1), Expiration: testExpiration},
			expectedErr: guard.ErrInvalidAddress,
		},
		{
			name:        "zero strike",
			caller:      alice,
			cfg:         SeriesConfig{Collateral: usdc, Consideration: weth, Strike: new(uint256.Int), Expiration: testExpiration},
			expectedErr: guard.ErrInvalidValue,
		},
		{
			name:        "unknown asset",
			caller:      alice,
			cfg:         SeriesConfig{Collateral: ids.GenerateTestShortID(), Consideration: usdc, Strike: ether(1), Expiration: testExpiration},
			expectedErr: asset.ErrUnknownAsset,
		},
		{
			name:        "blocked asset",
			config:      blocklist,
			caller:      alice,
			cfg:         SeriesConfig{Collateral: weth, Consideration: usdc, Strike: ether(1), Expiration: testExpiration},
			expectedErr: asset.ErrBlocked,
		},
		{
			name:        "same asset",
			caller:      alice,
			cfg:         SeriesConfig{Collateral: usdc, Consideration: usdc, Strike: ether(1), Expiration: testExpiration},
			expectedErr: guard.ErrInvalidValue,
		},
		{
			name:        "already expired",
			caller:      alice,
			cfg:         SeriesConfig{Collateral: usdc, Consideration: weth, Strike: ether(1), Expiration: testNow},
			expectedErr: guard.ErrContractExpired,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			vm := newTestVM(t, test.config)
			_, err := vm.CreateSeries(test.caller, test.cfg)
			require.ErrorIs(err, test.expectedErr)
			require.Zero(vm.SeriesCount())

			committed, _ := vm.Events(0, 0)
			require.Empty(committed)
		})
	}
}

func TestSeriesLifecycle(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	series := createTestSeries(t, vm)
	option := series.Option.Address()
	redemptionAddr := series.Redemption.Address()

	// Alice writes 10 calls.
	approveFactory(t, vm, alice, weth)
	net, err := vm.Mint(alice, option, ether(10))
	require.NoError(err)
	require.Equal(ether(10), net)
	requireBalance(t, vm, option, alice, ether(10))
	requireBalance(t, vm, redemptionAddr, alice, ether(10))
	requireBalance(t, vm, weth, alice, ether(90))
	requireBalance(t, vm, weth, redemptionAddr, ether(10))

	// Bob buys 4 and exercises them at 3000 USDC each.
	require.NoError(vm.Transfer(alice, option, bob, ether(4)))
	approveFactory(t, vm, bob, usdc)
	payment, err := vm.Exercise(bob, option, bob, ether(4))
	require.NoError(err)
	require.Equal(usd(12_000), payment)
	requireBalance(t, vm, weth, bob, ether(104))
	requireBalance(t, vm, usdc, bob, usd(988_000))
	requireBalance(t, vm, usdc, redemptionAddr, usd(12_000))

	// Alice unwinds 2 pairs before expiry.
	payout, err := vm.RedeemPair(alice, option, ether(2))
	require.NoError(err)
	require.Equal(ether(2), payout.Collateral)
	require.True(payout.Consideration.IsZero())

	// Redemption needs expiry.
	_, err = vm.Redeem(alice, redemptionAddr, ether(1))
	require.ErrorIs(err, guard.ErrContractNotExpired)

	vm.Clock().SetUnix(testExpiration)

	_, err = vm.Mint(alice, option, ether(1))
	require.ErrorIs(err, guard.ErrContractExpired)
	_, err = vm.Exercise(alice, option, alice, ether(1))
	require.ErrorIs(err, guard.ErrContractExpired)

	// 8 units remain against 4 WETH and 12,000 USDC.
	payout, err = vm.Redeem(alice, option, ether(8))
	require.NoError(err)
	require.Equal(ether(4), payout.Collateral)
	require.Equal(usd(12_000), payout.Consideration)
	requireBalance(t, vm, weth, alice, ether(96))
	requireBalance(t, vm, usdc, alice, usd(1_012_000))

	info, err := vm.SeriesInfo(option)
	require.NoError(err)
	require.True(info.Expired)
	require.True(info.RedemptionSupply.IsZero())
	require.True(info.AvailableCollateral.IsZero())
	require.True(info.ConsiderationHeld.IsZero())
}

func TestFailedOperationRollsBack(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	series := createTestSeries(t, vm)
	option := series.Option.Address()

	approveFactory(t, vm, alice, weth)
	_, err := vm.Mint(alice, option, ether(5))
	require.NoError(err)
	require.NoError(vm.Transfer(alice, option, bob, ether(5)))
	_, before := vm.Events(0, 0)

	// Options are burned before the strike payment fails.
	_, err = vm.Exercise(bob, option, bob, ether(5))
	require.ErrorIs(err, state.ErrInsufficientAllowance)
	requireBalance(t, vm, option, bob, ether(5))
	requireBalance(t, vm, weth, series.Redemption.Address(), ether(5))

	// Carol has no collateral to auto-mint with.
	err = vm.Transfer(carol, option, bob, ether(1))
	require.ErrorIs(err, state.ErrInsufficientAllowance)
	requireBalance(t, vm, option, carol, new(uint256.Int))

	_, after := vm.Events(0, 0)
	require.Equal(before, after)
}

func TestTransferAutoMintsAndAutoRedeems(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	series := createTestSeries(t, vm)
	option := series.Option.Address()
	redemptionAddr := series.Redemption.Address()

	approveFactory(t, vm, alice, weth)
	approveFactory(t, vm, bob, weth)

	// Bob writes 3 himself.
	_, err := vm.Mint(bob, option, ether(3))
	require.NoError(err)
	require.NoError(vm.Transfer(bob, option, carol, ether(3)))

	// Alice sells 5 she does not hold to bob. Bob's 3 matched pairs unwind.
	require.NoError(vm.Transfer(alice, option, bob, ether(5)))
	requireBalance(t, vm, option, alice, new(uint256.Int))
	requireBalance(t, vm, redemptionAddr, alice, ether(5))
	requireBalance(t, vm, option, bob, ether(2))
	requireBalance(t, vm, redemptionAddr, bob, new(uint256.Int))
	requireBalance(t, vm, weth, bob, ether(100))
}

func TestLock(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	series := createTestSeries(t, vm)
	option := series.Option.Address()
	redemptionAddr := series.Redemption.Address()
	approveFactory(t, vm, alice, weth)

	require.ErrorIs(vm.Lock(bob, option), guard.ErrNotOwner)
	require.ErrorIs(vm.Lock(alice, redemptionAddr), ErrNotOptionLedger)
	require.NoError(vm.Lock(alice, option))

	_, err := vm.Mint(alice, option, ether(2))
	require.NoError(err)
	require.ErrorIs(vm.Transfer(alice, option, bob, ether(1)), guard.ErrLockedContract)
	require.ErrorIs(vm.Transfer(alice, redemptionAddr, bob, ether(1)), guard.ErrLockedContract)

	require.NoError(vm.Unlock(alice, option))
	require.NoError(vm.Transfer(alice, redemptionAddr, bob, ether(1)))

	require.NoError(vm.TransferOwnership(alice, option, bob))
	require.ErrorIs(vm.Lock(alice, option), guard.ErrNotOwner)
	require.NoError(vm.Lock(bob, option))
}

func TestMintWithPermit(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	series := createTestSeries(t, vm)
	option := series.Option.Address()

	key, err := crypto.GenerateKey()
	require.NoError(err)
	holder := permit.KeyAddress(key)
	require.NoError(vm.Faucet(testOwner, weth, holder, ether(5)))

	p := permit.Permit{
		Owner:    holder,
		Spender:  FactoryAddress,
		Value:    ether(5),
		Nonce:    0,
		Deadline: testNow + 60,
	}
	digest, err := vm.PermitDigest(weth, p)
	require.NoError(err)
	sig, err := permit.Sign(digest, key)
	require.NoError(err)

	_, err = vm.MintWithPermit(alice, option, ether(5), p, sig)
	require.ErrorIs(err, ErrPermitMismatch)

	net, err := vm.MintWithPermit(holder, option, ether(5), p, sig)
	require.NoError(err)
	require.Equal(ether(5), net)
	requireBalance(t, vm, option, holder, ether(5))

	nonce, err := vm.PermitNonce(weth, holder)
	require.NoError(err)
	require.Equal(uint64(1), nonce)

	_, err = vm.MintWithPermit(holder, option, ether(1), p, sig)
	require.ErrorIs(err, permit.ErrInvalidNonce)
}

func TestFees(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, []byte(`{"defaultFeeRate": 10000000000000000}`))
	series := createTestSeries(t, vm)
	option := series.Option.Address()
	approveFactory(t, vm, alice, weth)

	net, err := vm.Mint(alice, option, ether(10))
	require.NoError(err)
	fees := uint256.NewInt(1e17)
	require.Equal(new(uint256.Int).Sub(ether(10), fees), net)

	_, err = vm.ClaimFees(alice, option)
	require.ErrorIs(err, ErrNotFactoryOwner)

	claimed, err := vm.ClaimFees(testOwner, option)
	require.NoError(err)
	require.Equal(fees, claimed)
	requireBalance(t, vm, weth, testOwner, fees)

	require.NoError(vm.SetFeeRecipient(testOwner, carol))
	require.ErrorIs(vm.SetFee(alice, option, new(uint256.Int)), ErrNotFactoryOwner)
	require.ErrorIs(vm.SetFee(testOwner, option, uint256.NewInt(1e16+1)), fee.ErrFeeTooHigh)
	require.NoError(vm.SetFee(testOwner, option, uint256.NewInt(1e15)))

	_, err = vm.Mint(alice, option, ether(1))
	require.NoError(err)
	claimed, err = vm.ClaimFees(testOwner, option)
	require.NoError(err)
	require.Equal(uint256.NewInt(1e15), claimed)
	requireBalance(t, vm, weth, carol, uint256.NewInt(1e15))
}

func TestBlockAsset(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	vm := newTestVMWithDB(t, db, nil)

	require.ErrorIs(vm.BlockAsset(alice, usdc), ErrNotFactoryOwner)
	require.ErrorIs(vm.BlockAsset(testOwner, ids.GenerateTestShortID()), asset.ErrUnknownAsset)
	require.NoError(vm.BlockAsset(testOwner, usdc))

	_, err := vm.CreateSeries(alice, SeriesConfig{
		Collateral:    weth,
		Consideration: usdc,
		Strike:        ether(3000),
		Expiration:    testExpiration,
	})
	require.ErrorIs(err, asset.ErrBlocked)

	// The block survives a restart.
	restarted := newTestVMWithDB(t, db, nil)
	t.Cleanup(func() {
		require.NoError(restarted.Shutdown(context.Background()))
	})
	for _, a := range restarted.Assets() {
		require.Equal(a.Address == usdc, a.Blocked)
	}

	require.NoError(restarted.UnblockAsset(testOwner, usdc))
	createTestSeries(t, restarted)
}

func TestSweep(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, []byte(`{"maxSweepHolders": 2}`))
	series := createTestSeries(t, vm)
	option := series.Option.Address()
	redemptionAddr := series.Redemption.Address()

	approveFactory(t, vm, alice, weth)
	approveFactory(t, vm, bob, weth)
	_, err := vm.Mint(alice, option, ether(3))
	require.NoError(err)
	_, err = vm.Mint(bob, option, ether(2))
	require.NoError(err)
	require.ElementsMatch([]ids.ShortID{alice, bob}, vm.Holders(option, ids.ShortEmpty, 0))

	_, err = vm.Sweep(option, nil)
	require.ErrorIs(err, guard.ErrContractNotExpired)

	vm.Clock().SetUnix(testExpiration + 1)
	_, err = vm.Sweep(option, []ids.ShortID{alice, bob, carol})
	require.ErrorIs(err, redemption.ErrTooManyHolders)

	swept, err := vm.Sweep(redemptionAddr, nil)
	require.NoError(err)
	require.Equal(ether(5), swept)
	requireBalance(t, vm, weth, alice, ether(100))
	requireBalance(t, vm, weth, bob, ether(100))
	require.Empty(vm.Holders(option, ids.ShortEmpty, 0))

	_, err = vm.Sweep(option, nil)
	require.ErrorIs(err, ErrNoHolders)
}

func TestRestartRestoresSeries(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	vm := newTestVMWithDB(t, db, nil)
	series := createTestSeries(t, vm)
	option := series.Option.Address()
	approveFactory(t, vm, alice, weth)
	approveFactory(t, vm, bob, weth)
	_, err := vm.Mint(alice, option, ether(3))
	require.NoError(err)
	_, err = vm.Mint(bob, option, ether(1))
	require.NoError(err)

	restarted := newTestVMWithDB(t, db, nil)
	t.Cleanup(func() {
		require.NoError(restarted.Shutdown(context.Background()))
	})
	require.Equal(1, restarted.SeriesCount())
	requireBalance(t, restarted, option, alice, ether(3))
	require.ElementsMatch([]ids.ShortID{alice, bob}, restarted.Holders(option, ids.ShortEmpty, 0))
	require.Equal(ether(3), restarted.Indexer().Balance(option, alice))

	// Existing ledgers keep working.
	_, err = restarted.Mint(alice, option, ether(1))
	require.NoError(err)
	requireBalance(t, restarted, series.Redemption.Address(), alice, ether(4))
}

func TestUnknownToken(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	_, err := vm.BalanceOf(ids.GenerateTestShortID(), alice)
	require.ErrorIs(err, ErrUnknownToken)
	_, err = vm.Mint(alice, ids.GenerateTestShortID(), ether(1))
	require.ErrorIs(err, ErrUnknownSeries)
}

func TestFaucet(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, nil)
	require.ErrorIs(vm.Faucet(alice, weth, alice, ether(1)), ErrNotFactoryOwner)
	require.ErrorIs(vm.Faucet(testOwner, weth, ids.ShortEmpty, ether(1)), guard.ErrInvalidAddress)
	require.NoError(vm.Faucet(testOwner, weth, carol, ether(1)))
	requireBalance(t, vm, weth, carol, ether(1))

	supply, err := vm.TotalSupply(weth)
	require.NoError(err)
	require.Equal(ether(201), supply)
}
