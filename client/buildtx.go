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

package client

import (
	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/processor"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

// buildCreateStreamTx allocates the stream account, deposits reserve plus amount and initializes the
// record in one transaction.
func buildCreateStreamTx(programID, payer, stream types.Address, args wire.CreateInstruction, reserve uint64) ([]ledger.Instruction, error) {
	deposit := reserve + args.Amount
	if deposit < reserve {
		return nil, errors.Errorf("deposit of %d overflows", args.Amount)
	}
	return []ledger.Instruction{
		ledger.CreateAccountInstruction(payer, stream, ledger.CreateAccount{
			Lamports: deposit,
			Space:    wire.StreamSize,
			Owner:    programID,
		}),
		processor.CreateInstruction(programID, stream, args),
	}, nil
}

func buildWithdrawTx(programID, stream, payee types.Address, amount uint64) []ledger.Instruction {
	return []ledger.Instruction{processor.WithdrawInstruction(programID, stream, payee, amount)}
}

func buildCancelTx(programID, stream types.Address, rec wire.Stream, signer types.Address) []ledger.Instruction {
	return []ledger.Instruction{processor.CancelInstruction(programID, stream, rec.Payee, rec.Payer, signer)}
}
