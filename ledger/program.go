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
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"perun.network/perun-paystream-backend/wallet/types"
)

type (
	// Program executes instructions addressed to its id.
	Program interface {
		ID() types.Address
		Process(ctx *InvokeContext, data []byte) error
	}

	// Committer is implemented by programs that observe the transactions they took part in once
	// those are committed.
	Committer interface {
		Committed(r *Receipt)
	}

	// AccountInfo is an account as seen by a program during one instruction. Programs mutate
	// Account in place; the ledger validates the changes afterwards.
	AccountInfo struct {
		Address    types.Address
		IsSigner   bool
		IsWritable bool
		Account    *Account
	}

	// InvokeContext is the environment of one instruction.
	InvokeContext struct {
		programID types.Address
		accounts  []*AccountInfo
		now       uint64
		rent      Rent
		events    []xdr.ContractEvent
	}
)

func (c *InvokeContext) ProgramID() types.Address { return c.programID }
func (c *InvokeContext) Accounts() []*AccountInfo { return c.accounts }
func (c *InvokeContext) Now() uint64              { return c.now }
func (c *InvokeContext) Rent() Rent               { return c.rent }

// Emit records a contract event attributed to the running program.
func (c *InvokeContext) Emit(topics []xdr.ScVal, data xdr.ScVal) {
	id := c.programID.Hash()
	c.events = append(c.events, xdr.ContractEvent{
		ContractId: &id,
		Type:       xdr.ContractEventTypeContract,
		Body: xdr.ContractEventBody{
			V: 0,
			V0: &xdr.ContractEventV0{
				Topics: topics,
				Data:   data,
			},
		},
	})
}

// Transfer moves lamports between two accounts of the instruction. The ledger later rejects the
// instruction if from is not owned by the running program.
func Transfer(from, to *AccountInfo, lamports uint64) error {
	if lamports == 0 {
		return nil
	}
	if !from.IsWritable || !to.IsWritable {
		return errors.Wrap(ErrReadonlyModified, "transfer")
	}
	if from.Account.Lamports < lamports {
		return errors.Wrapf(ErrInsufficientFunds, "%v holds %d, transfer of %d", from.Address, from.Account.Lamports, lamports)
	}
	if to.Account.Lamports+lamports < to.Account.Lamports {
		return errors.Wrapf(ErrUnbalancedTransaction, "%v balance overflows", to.Address)
	}
	from.Account.Lamports -= lamports
	to.Account.Lamports += lamports
	return nil
}
