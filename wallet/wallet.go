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
	"sort"

	"github.com/stellar/go/keypair"
	"polycry.pt/poly-go/sync"

	"perun.network/perun-paystream-backend/wallet/types"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// EphemeralWallet is a wallet that stores accounts in memory.
type EphemeralWallet struct {
	lock     sync.Mutex
	accounts map[types.Address]*Account
}

// NewEphemeralWallet creates a new EphemeralWallet instance.
func NewEphemeralWallet() *EphemeralWallet {
	return &EphemeralWallet{
		accounts: make(map[types.Address]*Account),
	}
}

// Unlock returns the account associated with the given address.
func (e *EphemeralWallet) Unlock(addr types.Address) (*Account, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	account, ok := e.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// AddNewAccount generates a new account and adds it to the wallet.
func (e *EphemeralWallet) AddNewAccount(rng *rand.Rand) (*Account, *keypair.Full, error) {
	acc, kp, err := NewRandomAccount(rng)
	if err != nil {
		return nil, nil, err
	}
	return acc, kp, e.AddAccount(acc)
}

// AddAccount adds the given account to the wallet.
func (e *EphemeralWallet) AddAccount(acc *Account) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	k := acc.Address()
	if _, ok := e.accounts[k]; ok {
		return ErrAccountExists
	}
	e.accounts[k] = acc
	return nil
}

// Addresses returns the addresses of all accounts in ascending order.
func (e *EphemeralWallet) Addresses() []types.Address {
	e.lock.Lock()
	defer e.lock.Unlock()
	addrs := make([]types.Address, 0, len(e.accounts))
	for a := range e.accounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })
	return addrs
}
