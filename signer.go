// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/luxfi/crypto/secp256k1"
	"github.com/luxfi/ids"

	"github.com/luxfi/optionvm/permit"

	avajson "github.com/luxfi/optionvm/utils/json"
)

// Signer signs API calls for the account its key controls. Calls of one
// signer are sent one at a time so their nonces are used in order.
type Signer struct {
	lock    sync.Mutex
	key     *secp256k1.PrivateKey
	address ids.ShortID
}

func NewSigner(key *secp256k1.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: permit.KeyAddress(key.ToECDSA()),
	}
}

// Address is the account calls are made on behalf of.
func (s *Signer) Address() ids.ShortID {
	return s.address
}

// Sign fills in the authentication of args so the VM running chainID accepts
// them as a call to method.
func (s *Signer) Sign(chainID uint64, method string, args SignedArgs, nonce, deadline uint64) error {
	auth := args.auth()
	auth.Caller = common.Address(s.address)
	auth.Nonce = avajson.Uint64(nonce)
	auth.Deadline = avajson.Uint64(deadline)

	call, err := newCall(method, args)
	if err != nil {
		return err
	}
	digest, err := permit.CallDigest(new(big.Int).SetUint64(chainID), FactoryAddress, call)
	if err != nil {
		return err
	}
	sig, err := s.key.SignHash(digest)
	if err != nil {
		return err
	}
	auth.Signature = hexutil.Encode(sig)
	return nil
}

// newCall describes the call args authenticate. The arguments are hashed
// with an empty signature.
func newCall(method string, args SignedArgs) (permit.Call, error) {
	auth := args.auth()
	sig := auth.Signature
	auth.Signature = ""
	encoded, err := json.Marshal(args)
	auth.Signature = sig
	if err != nil {
		return permit.Call{}, err
	}
	return permit.Call{
		Caller:   ids.ShortID(auth.Caller),
		Method:   method,
		Args:     permit.ArgsHash(encoded),
		Nonce:    uint64(auth.Nonce),
		Deadline: uint64(auth.Deadline),
	}, nil
}
