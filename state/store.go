// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists the fungible balances and named variables of one
// contract under its own database namespace.
package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrBalanceOverflow       = errors.New("balance overflow")
	ErrCorrupted             = errors.New("corrupted state")

	// Infinite is the allowance that SpendAllowance never decrements.
	Infinite = new(uint256.Int).SetAllOne()
)

const addressLen = len(ids.ShortID{})

var (
	prefixBalance   = []byte("balance:")
	prefixAllowance = []byte("allowance:")
	prefixVar       = []byte("var:")
	keySupply       = []byte("supply")
)

// Store is not safe for concurrent use. Callers serialize access the same way
// they serialize the database underneath.
type Store struct {
	address ids.ShortID
	db      database.Database
}

// New returns the namespace of the contract at address inside db.
func New(db database.Database, address ids.ShortID) *Store {
	return &Store{
		address: address,
		db:      prefixdb.New(address[:], db),
	}
}

func (s *Store) Address() ids.ShortID {
	return s.address
}

func balanceKey(holder ids.ShortID) []byte {
	key := make([]byte, 0, len(prefixBalance)+addressLen)
	key = append(key, prefixBalance...)
	return append(key, holder[:]...)
}

func allowanceKey(owner, spender ids.ShortID) []byte {
	key := make([]byte, 0, len(prefixAllowance)+2*addressLen)
	key = append(key, prefixAllowance...)
	key = append(key, owner[:]...)
	return append(key, spender[:]...)
}

func varKey(name string) []byte {
	key := make([]byte, 0, len(prefixVar)+len(name))
	key = append(key, prefixVar...)
	return append(key, name...)
}

func (s *Store) BalanceOf(holder ids.ShortID) (*uint256.Int, error) {
	return s.getUint(balanceKey(holder))
}

func (s *Store) TotalSupply() (*uint256.Int, error) {
	return s.getUint(keySupply)
}

func (s *Store) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return s.getUint(allowanceKey(owner, spender))
}

func (s *Store) SetAllowance(owner, spender ids.ShortID, amount *uint256.Int) error {
	return s.putUint(allowanceKey(owner, spender), amount)
}

// Mint credits holder and grows the supply.
func (s *Store) Mint(holder ids.ShortID, amount *uint256.Int) error {
	supply, err := s.TotalSupply()
	if err != nil {
		return err
	}
	if _, overflow := supply.AddOverflow(supply, amount); overflow {
		return ErrBalanceOverflow
	}
	balance, err := s.BalanceOf(holder)
	if err != nil {
		return err
	}
	// balance <= supply, so this cannot overflow once the supply did not.
	balance.Add(balance, amount)
	if err := s.putUint(balanceKey(holder), balance); err != nil {
		return err
	}
	return s.putUint(keySupply, supply)
}

// Burn debits holder and shrinks the supply.
func (s *Store) Burn(holder ids.ShortID, amount *uint256.Int) error {
	balance, err := s.BalanceOf(holder)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	supply, err := s.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Lt(amount) {
		return ErrCorrupted
	}
	balance.Sub(balance, amount)
	supply.Sub(supply, amount)
	if err := s.putUint(balanceKey(holder), balance); err != nil {
		return err
	}
	return s.putUint(keySupply, supply)
}

// Move transfers amount from one holder to another without touching supply.
func (s *Store) Move(from, to ids.ShortID, amount *uint256.Int) error {
	fromBalance, err := s.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBalance, err := s.BalanceOf(to)
	if err != nil {
		return err
	}
	if _, overflow := toBalance.AddOverflow(toBalance, amount); overflow {
		return ErrBalanceOverflow
	}
	fromBalance.Sub(fromBalance, amount)
	if err := s.putUint(balanceKey(from), fromBalance); err != nil {
		return err
	}
	return s.putUint(balanceKey(to), toBalance)
}

// SpendAllowance consumes amount of the allowance owner granted spender.
func (s *Store) SpendAllowance(owner, spender ids.ShortID, amount *uint256.Int) error {
	allowance, err := s.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Eq(Infinite) {
		return nil
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
	}
	return s.SetAllowance(owner, spender, allowance.Sub(allowance, amount))
}

func (s *Store) GetUint(name string) (*uint256.Int, error) {
	return s.getUint(varKey(name))
}

func (s *Store) PutUint(name string, v *uint256.Int) error {
	return s.putUint(varKey(name), v)
}

// GetAddress returns ids.ShortEmpty for an unset variable.
func (s *Store) GetAddress(name string) (ids.ShortID, error) {
	b, err := s.db.Get(varKey(name))
	if errors.Is(err, database.ErrNotFound) {
		return ids.ShortEmpty, nil
	}
	if err != nil {
		return ids.ShortEmpty, err
	}
	return ids.ToShortID(b)
}

func (s *Store) PutAddress(name string, addr ids.ShortID) error {
	return s.db.Put(varKey(name), addr[:])
}

func (s *Store) GetBool(name string) (bool, error) {
	has, err := s.db.Has(varKey(name))
	if err != nil {
		return false, err
	}
	return has, nil
}

func (s *Store) PutBool(name string, v bool) error {
	if !v {
		return s.db.Delete(varKey(name))
	}
	return s.db.Put(varKey(name), []byte{1})
}

// GetRecord decodes the record stored under name into v. It reports false if
// nothing is stored.
func (s *Store) GetRecord(name string, v interface{}) (bool, error) {
	b, err := s.db.Get(varKey(name))
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := Codec.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return true, nil
}

func (s *Store) PutRecord(name string, v interface{}) error {
	b, err := Codec.Marshal(CodecVersion, v)
	if err != nil {
		return err
	}
	return s.db.Put(varKey(name), b)
}

func (s *Store) getUint(key []byte) (*uint256.Int, error) {
	b, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, ErrCorrupted
	}
	return new(uint256.Int).SetBytes(b), nil
}

// Zero values are deleted so an emptied balance leaves no key behind.
func (s *Store) putUint(key []byte, v *uint256.Int) error {
	if v.IsZero() {
		return s.db.Delete(key)
	}
	b := v.Bytes32()
	return s.db.Put(key, b[:])
}

// Holders calls fn with every non-zero balance, ordered by holder address.
func (s *Store) Holders(fn func(holder ids.ShortID, balance *uint256.Int) error) error {
	it := s.db.NewIteratorWithPrefix(prefixBalance)
	defer it.Release()

	for it.Next() {
		key := it.Key()
		value := it.Value()
		if len(key) != len(prefixBalance)+addressLen || len(value) != 32 {
			return ErrCorrupted
		}
		holder, err := ids.ToShortID(key[len(prefixBalance):])
		if err != nil {
			return err
		}
		if err := fn(holder, new(uint256.Int).SetBytes(value)); err != nil {
			return err
		}
	}
	return it.Error()
}
