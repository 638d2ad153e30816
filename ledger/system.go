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
	"bytes"

	"github.com/pkg/errors"
	xdr3 "github.com/stellar/go-xdr/xdr3"

	"perun.network/perun-paystream-backend/wallet/types"
)

// SystemProgramID owns every account that was not assigned to another program.
var SystemProgramID = types.ZeroAddress

type systemInstructionType uint32

const (
	systemCreateAccount systemInstructionType = iota
	systemTransfer
)

type (
	// CreateAccount allocates a new account, funds it and assigns it to Owner.
	// Accounts: [funder signer writable, new account signer writable].
	CreateAccount struct {
		Lamports uint64
		Space    uint64
		Owner    types.Address
	}

	// SystemTransfer moves lamports between system accounts.
	// Accounts: [from signer writable, to writable].
	SystemTransfer struct {
		Lamports uint64
	}
)

// CreateAccountInstruction builds the system instruction creating newAccount funded by funder.
func CreateAccountInstruction(funder, newAccount types.Address, args CreateAccount) Instruction {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	mustEncode(e.EncodeUint(uint32(systemCreateAccount)))
	mustEncode(e.EncodeUhyper(args.Lamports))
	mustEncode(e.EncodeUhyper(args.Space))
	mustEncode(e.EncodeFixedOpaque(args.Owner[:]))
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{SignerAccount(funder, true), SignerAccount(newAccount, true)},
		Data:      buf.Bytes(),
	}
}

// TransferInstruction builds the system instruction moving lamports from from to to.
func TransferInstruction(from, to types.Address, lamports uint64) Instruction {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	mustEncode(e.EncodeUint(uint32(systemTransfer)))
	mustEncode(e.EncodeUhyper(lamports))
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{SignerAccount(from, true), WritableAccount(to)},
		Data:      buf.Bytes(),
	}
}

func mustEncode(_ int, err error) {
	if err != nil {
		panic(err)
	}
}

type systemProgram struct{}

func (systemProgram) ID() types.Address {
	return SystemProgramID
}

func (systemProgram) Process(ctx *InvokeContext, data []byte) error {
	r := bytes.NewReader(data)
	d := xdr3.NewDecoder(r)
	kind, _, err := d.DecodeUint()
	if err != nil {
		return errors.Wrap(ErrInvalidInstruction, err.Error())
	}
	switch systemInstructionType(kind) {
	case systemCreateAccount:
		var args CreateAccount
		if args.Lamports, _, err = d.DecodeUhyper(); err != nil {
			return errors.Wrap(ErrInvalidInstruction, err.Error())
		}
		if args.Space, _, err = d.DecodeUhyper(); err != nil {
			return errors.Wrap(ErrInvalidInstruction, err.Error())
		}
		owner, _, err := d.DecodeFixedOpaque(types.AddressLength)
		if err != nil {
			return errors.Wrap(ErrInvalidInstruction, err.Error())
		}
		copy(args.Owner[:], owner)
		if r.Len() != 0 {
			return errors.Wrap(ErrInvalidInstruction, "trailing bytes")
		}
		return createAccount(ctx, args)
	case systemTransfer:
		lamports, _, err := d.DecodeUhyper()
		if err != nil {
			return errors.Wrap(ErrInvalidInstruction, err.Error())
		}
		if r.Len() != 0 {
			return errors.Wrap(ErrInvalidInstruction, "trailing bytes")
		}
		return systemTransferLamports(ctx, lamports)
	default:
		return errors.Wrapf(ErrInvalidInstruction, "unknown system instruction %d", kind)
	}
}

func createAccount(ctx *InvokeContext, args CreateAccount) error {
	if len(ctx.Accounts()) != 2 {
		return errors.Wrap(ErrInvalidAccounts, "create account needs funder and new account")
	}
	funder, created := ctx.Accounts()[0], ctx.Accounts()[1]
	if !funder.IsSigner || !created.IsSigner {
		return errors.Wrap(ErrSignatureInvalid, "create account needs funder and new account to sign")
	}
	if args.Space > MaxAccountDataLength {
		return errors.Wrapf(ErrDataTooLarge, "%d bytes", args.Space)
	}
	if !created.Account.IsZero() {
		return errors.Wrapf(ErrAccountInUse, "%v", created.Address)
	}
	if err := Transfer(funder, created, args.Lamports); err != nil {
		return err
	}
	created.Account.Data = make([]byte, args.Space)
	created.Account.Owner = args.Owner
	return nil
}

func systemTransferLamports(ctx *InvokeContext, lamports uint64) error {
	if len(ctx.Accounts()) != 2 {
		return errors.Wrap(ErrInvalidAccounts, "transfer needs from and to")
	}
	from, to := ctx.Accounts()[0], ctx.Accounts()[1]
	if !from.IsSigner {
		return errors.Wrap(ErrSignatureInvalid, "transfer needs the sender to sign")
	}
	if len(from.Account.Data) != 0 {
		return errors.Wrap(ErrInvalidAccounts, "transfer from an account holding data")
	}
	return Transfer(from, to, lamports)
}
