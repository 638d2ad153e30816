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

package processor

import (
	"crypto/sha256"

	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

// DefaultProgramID is the address the paystream program is registered under unless configured otherwise.
var DefaultProgramID = types.Address(sha256.Sum256([]byte("paystream")))

// CreateInstruction initializes the pre-funded account stream.
func CreateInstruction(programID, stream types.Address, args wire.CreateInstruction) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  []ledger.AccountMeta{ledger.WritableAccount(stream)},
		Data:      wire.EncodeInstruction(args),
	}
}

// WithdrawInstruction requests amount from stream on behalf of payee.
func WithdrawInstruction(programID, stream, payee types.Address, amount uint64) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  []ledger.AccountMeta{ledger.WritableAccount(stream), ledger.SignerAccount(payee, true)},
		Data:      wire.EncodeInstruction(wire.WithdrawInstruction{Amount: amount}),
	}
}

// CancelInstruction terminates stream. signer must be payee or payer.
func CancelInstruction(programID, stream, payee, payer, signer types.Address) ledger.Instruction {
	meta := func(addr types.Address) ledger.AccountMeta {
		if addr == signer {
			return ledger.SignerAccount(addr, true)
		}
		return ledger.WritableAccount(addr)
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  []ledger.AccountMeta{ledger.WritableAccount(stream), meta(payee), meta(payer)},
		Data:      wire.EncodeInstruction(wire.CancelInstruction{}),
	}
}
