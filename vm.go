// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package optionvm hosts collateralized option series. Each series is a pair
// of fungible ledgers, an Option token and a Redemption token, backed by
// collateral held by the redemption ledger. The VM plays the factory: it
// creates series, owns the asset registry and runs every operation as one
// atomic state transition.
package optionvm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/luxfi/cache"
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/pubsub"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/config"
	"github.com/luxfi/optionvm/events"
	"github.com/luxfi/optionvm/indexer"
	"github.com/luxfi/optionvm/metrics"
	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/state"
	"github.com/luxfi/optionvm/utils/timer/mockable"
)

const (
	Name    = "optionvm"
	Version = "v0.1.0"

	keyGenesis      = "genesis"
	keyOwner        = "owner"
	keyFeeRecipient = "feeRecipient"
	keyAssets       = "assets"
	keySeriesCount  = "seriesCount"
)

var (
	// FactoryAddress is the account every series is created by. Holders
	// approve it to move their collateral and consideration.
	FactoryAddress = ids.ShortID(common.BytesToAddress(crypto.Keccak256([]byte("optionvm:factory"))))

	ErrNotInitialized  = errors.New("vm not initialized")
	ErrNotFactoryOwner = errors.New("caller is not the factory owner")
	ErrUnknownSeries   = errors.New("unknown series")
)

type VM struct {
	config.Config

	log log.Logger

	// Serializes every operation. Reads take the read lock.
	lock sync.RWMutex

	registerer metric.Registerer
	metrics    metrics.Metrics

	baseDB database.Database
	db     *versiondb.Database

	// Factory state: genesis latch, owner, assets, series records
	store *state.Store

	// Used to check expirations
	clock mockable.Clock

	assets     *asset.Registry
	transferer *asset.AllowanceTransferer
	permits    *permit.Verifier

	// option address -> opened series
	seriesCache cache.Cacher[ids.ShortID, *Series]
	seriesCount int

	// Events emitted and in-memory updates deferred by the operation in flight
	pending  events.Buffer
	onCommit []func()
	history  history

	indexer *indexer.Indexer

	// Notifies subscribers of committed events
	pubsub *pubsub.Server

	initialized bool
}

// Initialize opens the VM over db. Genesis is applied the first time only.
func (vm *VM) Initialize(
	_ context.Context,
	logger log.Logger,
	db database.Database,
	genesisBytes []byte,
	configBytes []byte,
) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.initialized {
		return nil
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	vm.log = logger

	cfg, err := config.ParseConfig(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	vm.Config = cfg
	vm.log.Info("VM config initialized",
		log.Reflect("config", cfg),
	)

	if vm.registerer == nil {
		vm.registerer = metric.NewRegistry()
	}
	vm.metrics, err = metrics.New(vm.registerer)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	vm.baseDB = db
	vm.db = versiondb.New(db)
	vm.store = state.New(vm.db, FactoryAddress)
	vm.assets = asset.NewRegistry()
	vm.transferer = asset.NewAllowanceTransferer(FactoryAddress, vm.assets)
	vm.permits = permit.NewVerifier(vm.db, vm.ChainID, &vm.clock)
	vm.seriesCache = lru.NewCache[ids.ShortID, *Series](vm.SeriesCacheSize)
	vm.history = newHistory(vm.EventHistory)
	vm.indexer = indexer.New()
	vm.pubsub = pubsub.New(vm.log)

	if err := vm.initGenesis(genesisBytes); err != nil {
		vm.db.Abort()
		return err
	}
	if err := vm.db.Commit(); err != nil {
		return err
	}
	for _, addr := range vm.BlockedAssets() {
		vm.assets.SetBlocked(addr, true)
	}
	if err := vm.loadSeries(); err != nil {
		return err
	}

	vm.initialized = true
	return nil
}

func (vm *VM) initGenesis(genesisBytes []byte) error {
	initialized, err := vm.store.GetBool(keyGenesis)
	if err != nil {
		return err
	}
	if !initialized {
		genesis, err := config.ParseGenesis(genesisBytes)
		if err != nil {
			return fmt.Errorf("failed to parse genesis: %w", err)
		}
		if err := vm.applyGenesis(genesis); err != nil {
			return err
		}
	}
	return vm.loadAssets()
}

func (vm *VM) applyGenesis(genesis *config.Genesis) error {
	list := assetList{}
	for _, a := range genesis.Assets {
		addr := a.Address()
		meta := asset.Metadata{Symbol: a.Symbol, Decimals: a.Decimals}
		vm.log.Info("initializing genesis asset",
			log.String("symbol", a.Symbol),
			log.String("address", common.Address(addr).Hex()),
		)

		token := asset.NewToken(vm.db, addr, meta)
		for _, alloc := range a.Allocations {
			amount, err := alloc.Amount()
			if err != nil {
				return err
			}
			if err := token.Mint(ids.ShortID(alloc.Address), amount); err != nil {
				return err
			}
		}
		if err := vm.store.PutRecord(assetKey(addr), &meta); err != nil {
			return err
		}
		list.Addresses = append(list.Addresses, addr)
	}

	if err := vm.store.PutRecord(keyAssets, &list); err != nil {
		return err
	}
	if err := vm.store.PutAddress(keyOwner, genesis.Owner()); err != nil {
		return err
	}
	if err := vm.store.PutAddress(keyFeeRecipient, genesis.Recipient()); err != nil {
		return err
	}
	return vm.store.PutBool(keyGenesis, true)
}

func (vm *VM) loadAssets() error {
	list := assetList{}
	if _, err := vm.store.GetRecord(keyAssets, &list); err != nil {
		return err
	}
	for _, addr := range list.Addresses {
		meta := asset.Metadata{}
		found, err := vm.store.GetRecord(assetKey(addr), &meta)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: missing metadata of asset %s", state.ErrCorrupted, addr)
		}
		if err := vm.assets.Register(asset.NewToken(vm.db, addr, meta)); err != nil {
			return err
		}
		blocked, err := vm.store.GetBool(blockedKey(addr))
		if err != nil {
			return err
		}
		vm.assets.SetBlocked(addr, blocked)
	}
	return nil
}

func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if !vm.initialized {
		return nil
	}
	vm.initialized = false
	vm.db.Abort()
	return errors.Join(
		vm.db.Close(),
		vm.baseDB.Close(),
	)
}

func (*VM) Version(context.Context) (string, error) {
	return Version, nil
}

func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	service, err := NewService(vm)
	if err != nil {
		return nil, err
	}

	codec := json2.NewCodec()
	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(codec, "application/json")
	rpcServer.RegisterCodec(codec, "application/json;charset=UTF-8")
	rpcServer.RegisterInterceptFunc(vm.metrics.InterceptRequest)
	rpcServer.RegisterAfterFunc(vm.metrics.AfterRequest)
	// name this service "optionvm"
	if err := rpcServer.RegisterService(service, Name); err != nil {
		return nil, err
	}
	return map[string]http.Handler{
		"":        rpcServer,
		"/events": vm.pubsub,
	}, nil
}

// Clock returns the clock expirations are checked against.
func (vm *VM) Clock() *mockable.Clock {
	return &vm.clock
}

func (vm *VM) Logger() log.Logger {
	return vm.log
}

// Indexer returns the holder index fed by committed events.
func (vm *VM) Indexer() *indexer.Indexer {
	return vm.indexer
}

// Owner returns the factory owner.
func (vm *VM) Owner() (ids.ShortID, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.store.GetAddress(keyOwner)
}

func (vm *VM) requireFactoryOwner(caller ids.ShortID) error {
	owner, err := vm.store.GetAddress(keyOwner)
	if err != nil {
		return err
	}
	if caller != owner {
		return fmt.Errorf("%w: %s", ErrNotFactoryOwner, caller)
	}
	return nil
}

type assetList struct {
	Addresses []ids.ShortID `serialize:"true"`
}

func assetKey(addr ids.ShortID) string {
	return "asset:" + common.Address(addr).Hex()
}

func blockedKey(addr ids.ShortID) string {
	return "blocked:" + common.Address(addr).Hex()
}
