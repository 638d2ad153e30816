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

package ledger

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/wallet/types"
)

type (
	// Store is the key-value backend of the ledger. Update runs fn in a read-write transaction that is
	// committed if fn returns nil and discarded otherwise.
	Store interface {
		View(fn func(Txn) error) error
		Update(fn func(Txn) error) error
		Close() error
	}

	// Txn is a store transaction. Get returns ErrNotFound for missing keys.
	Txn interface {
		Get(key []byte) ([]byte, error)
		Set(key, val []byte) error
		Iterate(prefix []byte, fn func(key, val []byte) error) error
	}
)

var (
	accountPrefix = []byte("acct/")
	txPrefix      = []byte("tx/")
)

func accountKey(addr types.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr[:]...)
}

func txKey(id uuid.UUID) []byte {
	return append(append([]byte{}, txPrefix...), id[:]...)
}

func loadAccount(txn Txn, addr types.Address) (Account, error) {
	raw, err := txn.Get(accountKey(addr))
	if errors.Is(err, ErrNotFound) {
		return Account{}, nil
	} else if err != nil {
		return Account{}, err
	}
	var acc Account
	if err := acc.UnmarshalBinary(raw); err != nil {
		return Account{}, errors.WithMessagef(err, "decoding account %v", addr)
	}
	return acc, nil
}

func storeAccount(txn Txn, addr types.Address, acc Account) error {
	raw, err := acc.MarshalBinary()
	if err != nil {
		return err
	}
	return txn.Set(accountKey(addr), raw)
}

func forEachAccount(txn Txn, fn func(KeyedAccount) error) error {
	return txn.Iterate(accountPrefix, func(key, val []byte) error {
		addr, err := types.AddressFromBytes(key[len(accountPrefix):])
		if err != nil {
			return err
		}
		var acc Account
		if err := acc.UnmarshalBinary(val); err != nil {
			return errors.WithMessagef(err, "decoding account %v", addr)
		}
		return fn(KeyedAccount{Address: addr, Account: acc})
	})
}
