// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package json provides JSON serialization utilities for numeric types.
package json

import (
	"strconv"

	"github.com/holiman/uint256"
)

const Null = "null"

func unquote(str string) string {
	if len(str) >= 2 {
		if lastIndex := len(str) - 1; str[0] == '"' && str[lastIndex] == '"' {
			str = str[1:lastIndex]
		}
	}
	return str
}

// Uint32 is a uint32 that can be JSON marshaled as a string.
type Uint32 uint32

func (u Uint32) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint32) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == Null {
		return nil
	}
	val, err := strconv.ParseUint(unquote(str), 10, 32)
	*u = Uint32(val)
	return err
}

// Uint64 is a uint64 that can be JSON marshaled as a string.
type Uint64 uint64

func (u Uint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint64) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == Null {
		return nil
	}
	val, err := strconv.ParseUint(unquote(str), 10, 64)
	*u = Uint64(val)
	return err
}

// Uint256 is a token amount that is JSON marshaled as a decimal string.
type Uint256 struct {
	v uint256.Int
}

func NewUint256(v *uint256.Int) Uint256 {
	var u Uint256
	if v != nil {
		u.v.Set(v)
	}
	return u
}

// Int returns a copy of the amount.
func (u Uint256) Int() *uint256.Int {
	return u.v.Clone()
}

func (u Uint256) String() string {
	return u.v.Dec()
}

func (u Uint256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.v.Dec() + `"`), nil
}

func (u *Uint256) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == Null {
		return nil
	}
	val, err := uint256.FromDecimal(unquote(str))
	if err != nil {
		return err
	}
	u.v.Set(val)
	return nil
}
