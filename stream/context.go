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

package stream

import (
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

// Escrow describes the ledger balance of the stream account.
type Escrow struct {
	// Balance is the current ledger balance of the stream account.
	Balance uint64
	// Reserve is the minimum balance the host requires for the account's storage.
	Reserve uint64
}

// Available returns the balance above the reserve.
func (e Escrow) Available() uint64 {
	if e.Balance < e.Reserve {
		return 0
	}
	return e.Balance - e.Reserve
}

type (
	// CreateContext holds everything Create needs. Record is the current, normally zeroed, content
	// of the stream account.
	CreateContext struct {
		Record   wire.Stream
		Escrow   Escrow
		Now      uint64
		Payee    types.Address
		Payer    types.Address
		Amount   uint64
		Duration uint64
	}

	// WithdrawContext holds everything Withdraw needs. Payee is the identity the host verified as signer.
	WithdrawContext struct {
		Record wire.Stream
		Escrow Escrow
		Now    uint64
		Payee  types.Address
		Amount uint64
	}

	// CancelContext holds everything Cancel needs. Payee and Payer are the identities of the supplied
	// accounts; the flags tell whether the host verified their signatures.
	CancelContext struct {
		Record      wire.Stream
		Escrow      Escrow
		Now         uint64
		Payee       types.Address
		Payer       types.Address
		PayeeSigned bool
		PayerSigned bool
	}
)

// Settlement is the outcome of a successful operation: the record to persist and the amounts
// to move out of the escrow.
type Settlement struct {
	Record  wire.Stream
	ToPayee uint64
	ToPayer uint64
}

// Operation is one of CreateContext, WithdrawContext or CancelContext.
type Operation interface {
	Kind() wire.InstructionTag
	apply() (Settlement, error)
}

func (CreateContext) Kind() wire.InstructionTag   { return wire.TagCreate }
func (WithdrawContext) Kind() wire.InstructionTag { return wire.TagWithdraw }
func (CancelContext) Kind() wire.InstructionTag   { return wire.TagCancel }

func (c CreateContext) apply() (Settlement, error)   { return Create(c) }
func (c WithdrawContext) apply() (Settlement, error) { return Withdraw(c) }
func (c CancelContext) apply() (Settlement, error)   { return Cancel(c) }
