// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package permit implements signed allowances: a holder signs an EIP-712
// Permit message off-line and anyone may submit it to set the allowance.
package permit

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/math"

	"github.com/luxfi/optionvm/asset"
	"github.com/luxfi/optionvm/guard"
	"github.com/luxfi/optionvm/state"
)

// Version is the EIP-712 domain version of every permit.
const Version = "1"

const signatureLen = 65

var (
	ErrExpired          = errors.New("permit expired")
	ErrInvalidNonce     = errors.New("invalid permit nonce")
	ErrInvalidSignature = errors.New("invalid permit signature")
	ErrWrongSigner      = errors.New("permit not signed by owner")

	// nonces live in their own namespace so they never collide with a
	// token's balances.
	nonceNamespace = ids.ShortID{'p', 'e', 'r', 'm', 'i', 't'}

	types = apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Permit": {
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
	}
)

// Permit authorizes Spender to move up to Value of Owner's tokens until
// Deadline.
type Permit struct {
	Owner    ids.ShortID
	Spender  ids.ShortID
	Value    *uint256.Int
	Nonce    uint64
	Deadline uint64
}

// Verifier checks permits and tracks the next nonce of every owner per token.
type Verifier struct {
	chainID *big.Int
	store   *state.Store
	clock   guard.Clock
}

func NewVerifier(db database.Database, chainID uint64, clock guard.Clock) *Verifier {
	return &Verifier{
		chainID: new(big.Int).SetUint64(chainID),
		store:   state.New(db, nonceNamespace),
		clock:   clock,
	}
}

func nonceKey(token, owner ids.ShortID) string {
	return "nonce:" + Address(token).Hex() + ":" + Address(owner).Hex()
}

// Nonce returns the nonce the next permit of owner on token must carry.
func (v *Verifier) Nonce(token, owner ids.ShortID) (uint64, error) {
	nonce, err := v.store.GetUint(nonceKey(token, owner))
	if err != nil {
		return 0, err
	}
	return nonce.Uint64(), nil
}

// Digest is the EIP-712 hash the owner signs.
func (v *Verifier) Digest(token asset.Asset, p Permit) ([]byte, error) {
	return Digest(v.chainID, token, p)
}

// Apply verifies sig over p and sets the allowance on token. The nonce is
// consumed, so a permit applies at most once.
func (v *Verifier) Apply(token asset.Asset, p Permit, sig []byte) error {
	if v.clock.Unix() > p.Deadline {
		return fmt.Errorf("%w: deadline %d", ErrExpired, p.Deadline)
	}
	if p.Value == nil {
		return guard.ErrInvalidValue
	}
	nonce, err := v.Nonce(token.Address(), p.Owner)
	if err != nil {
		return err
	}
	if p.Nonce != nonce {
		return fmt.Errorf("%w: got %d, expected %d", ErrInvalidNonce, p.Nonce, nonce)
	}

	digest, err := v.Digest(token, p)
	if err != nil {
		return err
	}
	signer, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if signer != p.Owner {
		return fmt.Errorf("%w: recovered %s", ErrWrongSigner, signer)
	}

	next, err := safemath.Add64(nonce, 1)
	if err != nil {
		return err
	}
	if err := v.store.PutUint(nonceKey(token.Address(), p.Owner), new(uint256.Int).SetUint64(next)); err != nil {
		return err
	}
	return token.Approve(p.Owner, p.Spender, p.Value)
}

// Digest computes keccak256(0x19 0x01 || domainSeparator || hashStruct(p)).
func Digest(chainID *big.Int, token asset.Asset, p Permit) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       types,
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              token.Symbol(),
			Version:           Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: Address(token.Address()).Hex(),
		},
		Message: map[string]interface{}{
			"owner":    Address(p.Owner).Hex(),
			"spender":  Address(p.Spender).Hex(),
			"value":    p.Value.ToBig(),
			"nonce":    new(big.Int).SetUint64(p.Nonce),
			"deadline": new(big.Int).SetUint64(p.Deadline),
		},
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash permit: %w", err)
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

// Sign produces a 65 byte [R || S || V] signature with V in {27, 28}.
func Sign(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// Recover returns the address that produced sig over digest.
func Recover(digest, sig []byte) (ids.ShortID, error) {
	if len(sig) != signatureLen {
		return ids.ShortEmpty, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	normalized := make([]byte, signatureLen)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return ids.ShortID(crypto.PubkeyToAddress(*pub)), nil
}

// Address converts a ledger address to its EVM form.
func Address(addr ids.ShortID) common.Address {
	return common.Address(addr)
}

// KeyAddress returns the ledger address controlled by key.
func KeyAddress(key *ecdsa.PrivateKey) ids.ShortID {
	return ids.ShortID(crypto.PubkeyToAddress(key.PublicKey))
}
