// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package permit

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/math"
)

// CallDomain is the EIP-712 domain name calls are signed under.
const CallDomain = "OptionFactory"

var callTypes = apitypes.Types{
	"EIP712Domain": types["EIP712Domain"],
	"Call": {
		{Name: "caller", Type: "address"},
		{Name: "method", Type: "string"},
		{Name: "args", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// Call is a state changing request made on behalf of Caller. Args is the
// hash of the encoded request arguments.
type Call struct {
	Caller   ids.ShortID
	Method   string
	Args     common.Hash
	Nonce    uint64
	Deadline uint64
}

func callNonceKey(caller ids.ShortID) string {
	return "call:" + Address(caller).Hex()
}

// CallNonce returns the nonce the next call of caller must carry.
func (v *Verifier) CallNonce(caller ids.ShortID) (uint64, error) {
	nonce, err := v.store.GetUint(callNonceKey(caller))
	if err != nil {
		return 0, err
	}
	return nonce.Uint64(), nil
}

// CallDigest is the EIP-712 hash the caller signs. contract is the account
// that verifies the call.
func (v *Verifier) CallDigest(contract ids.ShortID, c Call) ([]byte, error) {
	return CallDigest(v.chainID, contract, c)
}

// Authenticate verifies that sig over c was produced by c.Caller and
// consumes the caller's nonce, so a signed call is accepted at most once.
func (v *Verifier) Authenticate(contract ids.ShortID, c Call, sig []byte) error {
	if v.clock.Unix() > c.Deadline {
		return fmt.Errorf("%w: deadline %d", ErrExpired, c.Deadline)
	}
	nonce, err := v.CallNonce(c.Caller)
	if err != nil {
		return err
	}
	if c.Nonce != nonce {
		return fmt.Errorf("%w: got %d, expected %d", ErrInvalidNonce, c.Nonce, nonce)
	}

	digest, err := v.CallDigest(contract, c)
	if err != nil {
		return err
	}
	signer, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if signer != c.Caller {
		return fmt.Errorf("%w: recovered %s", ErrWrongSigner, Address(signer).Hex())
	}
	next, err := safemath.Add64(nonce, 1)
	if err != nil {
		return err
	}
	return v.store.PutUint(callNonceKey(c.Caller), new(uint256.Int).SetUint64(next))
}

// CallDigest computes keccak256(0x19 0x01 || domainSeparator || hashStruct(c)).
func CallDigest(chainID *big.Int, contract ids.ShortID, c Call) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       callTypes,
		PrimaryType: "Call",
		Domain: apitypes.TypedDataDomain{
			Name:              CallDomain,
			Version:           Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: Address(contract).Hex(),
		},
		Message: map[string]interface{}{
			"caller":   Address(c.Caller).Hex(),
			"method":   c.Method,
			"args":     c.Args.Bytes(),
			"nonce":    new(big.Int).SetUint64(c.Nonce),
			"deadline": new(big.Int).SetUint64(c.Deadline),
		},
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash call: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// ArgsHash hashes encoded request arguments.
func ArgsHash(encoded []byte) common.Hash {
	return crypto.Keccak256Hash(encoded)
}
