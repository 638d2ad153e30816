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

package util

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"

	"github.com/pkg/errors"
	"github.com/stellar/go/keypair"

	"perun.network/perun-paystream-backend/wallet"
	"perun.network/perun-paystream-backend/wallet/types"
)

// Faucet mints lamports.
type Faucet interface {
	Airdrop(ctx context.Context, addr types.Address, lamports uint64) error
}

// MakeRandWallet creates a wallet holding one account drawn from a crypto-seeded source.
func MakeRandWallet() (*wallet.EphemeralWallet, *wallet.Account, *keypair.Full) {
	w := wallet.NewEphemeralWallet()

	var b [8]byte
	_, err := rand.Read(b[:])
	if err != nil {
		panic(err)
	}
	r := mathrand.New(mathrand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))

	acc, kp, err := w.AddNewAccount(r)
	if err != nil {
		panic(err)
	}
	return w, acc, kp
}

// FundAccounts airdrops lamports to every address.
func FundAccounts(ctx context.Context, f Faucet, lamports uint64, addrs ...types.Address) error {
	for _, addr := range addrs {
		if err := f.Airdrop(ctx, addr, lamports); err != nil {
			return errors.WithMessagef(err, "funding %v", addr)
		}
	}
	return nil
}
