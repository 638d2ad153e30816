// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wallet

import (
	"errors"
	"math/rand"

	"github.com/stellar/go/keypair"

	"perun.network/perun-paystream-backend/wallet/types"
)

// Account is used for signing ledger transactions.
type Account struct {
	// kp is the stellar key pair of the account.
	kp *keypair.Full
	// addr caches the ledger address derived from kp.
	addr types.Address
}

// NewAccount wraps the given key pair into an Account.
func NewAccount(kp *keypair.Full) (*Account, error) {
	if kp == nil {
		return nil, errors.New("nil key pair")
	}
	addr, err := types.AddressFromKeyPair(kp)
	if err != nil {
		return nil, err
	}
	return &Account{kp: kp, addr: addr}, nil
}

// NewRandomAccount creates a new account whose seed is drawn from rng.
func NewRandomAccount(rng *rand.Rand) (*Account, *keypair.Full, error) {
	var seed [32]byte
	if _, err := rng.Read(seed[:]); err != nil {
		return nil, nil, err
	}
	kp, err := keypair.FromRawSeed(seed)
	if err != nil {
		return nil, nil, err
	}
	acc, err := NewAccount(kp)
	if err != nil {
		return nil, nil, err
	}
	return acc, kp, nil
}

// AccountFromSeed restores an account from its strkey encoded seed (S...).
func AccountFromSeed(seed string) (*Account, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, err
	}
	return NewAccount(kp)
}

// Address returns the ledger address of the account.
func (a Account) Address() types.Address {
	return a.addr
}

// Seed returns the strkey encoded secret seed.
func (a Account) Seed() string {
	return a.kp.Seed()
}

// KeyPair returns the underlying stellar key pair.
func (a Account) KeyPair() *keypair.Full {
	return a.kp
}

// SignData signs the given data with the account's private key.
func (a Account) SignData(data []byte) ([]byte, error) {
	if a.kp == nil {
		return nil, errors.New("account has no key pair")
	}
	return a.kp.Sign(data)
}
