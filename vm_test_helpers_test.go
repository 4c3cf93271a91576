// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/luxfi/crypto/secp256k1"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/optionvm/config"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/state"
)

const (
	testNow        = 1_700_000_000
	testExpiration = testNow + 30*24*60*60

	// 100 WETH and 1,000,000 USDC
	testWETHBalance = "100000000000000000000"
	testUSDCBalance = "1000000000000"
)

var (
	testOwnerKey = testKey(0x0f)
	aliceKey     = testKey(0xa1)
	bobKey       = testKey(0xb0)
	carolKey     = testKey(0xc0)

	testOwner = permit.KeyAddress(testOwnerKey.ToECDSA())
	alice     = permit.KeyAddress(aliceKey.ToECDSA())
	bob       = permit.KeyAddress(bobKey.ToECDSA())
	carol     = permit.KeyAddress(carolKey.ToECDSA())

	weth = config.AssetAddress("WETH")
	usdc = config.AssetAddress("USDC")
)

// testKey returns the key whose every byte is b.
func testKey(b byte) *secp256k1.PrivateKey {
	key, err := secp256k1.ToPrivateKey(bytes.Repeat([]byte{b}, secp256k1.PrivateKeyLen))
	if err != nil {
		panic(err)
	}
	return key
}

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func usd(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e6))
}

func testGenesisBytes(t *testing.T) []byte {
	genesis := &config.Genesis{
		FactoryOwner: common.Address(testOwner),
		Assets: []config.GenesisAsset{
			{
				Symbol:   "WETH",
				Decimals: 18,
				Allocations: []config.Allocation{
					{Address: common.Address(alice), Balance: testWETHBalance},
					{Address: common.Address(bob), Balance: testWETHBalance},
				},
			},
			{
				Symbol:   "USDC",
				Decimals: 6,
				Allocations: []config.Allocation{
					{Address: common.Address(alice), Balance: testUSDCBalance},
					{Address: common.Address(bob), Balance: testUSDCBalance},
				},
			},
		},
	}
	b, err := genesis.Bytes()
	require.NoError(t, err)
	return b
}

func newTestVMWithDB(t *testing.T, db database.Database, configBytes []byte) *VM {
	vm := &VM{}
	vm.clock.SetUnix(testNow)
	require.NoError(t, vm.Initialize(
		context.Background(),
		log.NewNoOpLogger(),
		db,
		testGenesisBytes(t),
		configBytes,
	))
	return vm
}

func newTestVM(t *testing.T, configBytes []byte) *VM {
	vm := newTestVMWithDB(t, memdb.New(), configBytes)
	t.Cleanup(func() {
		require.NoError(t, vm.Shutdown(context.Background()))
	})
	return vm
}

func createTestSeries(t *testing.T, vm *VM) *Series {
	series, err := vm.CreateSeries(alice, SeriesConfig{
		Collateral:    weth,
		Consideration: usdc,
		Strike:        ether(3000),
		Expiration:    testExpiration,
	})
	require.NoError(t, err)
	return series
}

// approveFactory lets the factory pull any amount of token from holder.
func approveFactory(t *testing.T, vm *VM, holder, token ids.ShortID) {
	require.NoError(t, vm.Approve(holder, token, FactoryAddress, state.Infinite))
}

func requireBalance(t *testing.T, vm *VM, token, holder ids.ShortID, expected *uint256.Int) {
	t.Helper()

	balance, err := vm.BalanceOf(token, holder)
	require.NoError(t, err)
	require.Equal(t, expected.Dec(), balance.Dec())
}
