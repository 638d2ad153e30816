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

package test

import (
	"math/rand"

	"perun.network/perun-paystream-backend/wallet"
	"perun.network/perun-paystream-backend/wallet/types"
)

// NewRandomAddress returns an address filled with random bytes.
func NewRandomAddress(rng *rand.Rand) types.Address {
	var a types.Address
	if _, err := rng.Read(a[:]); err != nil {
		panic(err)
	}
	return a
}

// NewRandomAccount returns an account with a key pair drawn from rng.
func NewRandomAccount(rng *rand.Rand) *wallet.Account {
	acc, _, err := wallet.NewRandomAccount(rng)
	if err != nil {
		panic(err)
	}
	return acc
}

// NewRandomAccounts returns n random accounts.
func NewRandomAccounts(rng *rand.Rand, n int) []*wallet.Account {
	accs := make([]*wallet.Account, n)
	for i := range accs {
		accs[i] = NewRandomAccount(rng)
	}
	return accs
}
