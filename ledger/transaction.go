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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	xdr3 "github.com/stellar/go-xdr/xdr3"
	"github.com/stellar/go/xdr"

	"perun.network/perun-paystream-backend/wallet/types"
)

type (
	// AccountMeta references an account used by an instruction.
	AccountMeta struct {
		Address    types.Address
		IsSigner   bool
		IsWritable bool
	}

	// Instruction is a call of a program with positional accounts and opaque data.
	Instruction struct {
		ProgramID types.Address
		Accounts  []AccountMeta
		Data      []byte
	}

	// Signature is a signer's ed25519 signature of the transaction message.
	Signature struct {
		Signer types.Address
		Sig    []byte
	}

	// Transaction is a list of instructions executed atomically.
	Transaction struct {
		ID           uuid.UUID
		Instructions []Instruction
		Signatures   []Signature
	}

	// Signer signs transaction messages.
	Signer interface {
		Address() types.Address
		SignData(data []byte) ([]byte, error)
	}

	// Receipt describes a committed transaction.
	Receipt struct {
		ID     uuid.UUID
		Slot   uint64
		Time   uint64
		Events []xdr.ContractEvent
	}
)

func ReadonlyAccount(addr types.Address) AccountMeta {
	return AccountMeta{Address: addr}
}

func WritableAccount(addr types.Address) AccountMeta {
	return AccountMeta{Address: addr, IsWritable: true}
}

func SignerAccount(addr types.Address, writable bool) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: true, IsWritable: writable}
}

// NewTransaction creates an unsigned transaction with a fresh id.
func NewTransaction(ixs ...Instruction) *Transaction {
	return &Transaction{ID: uuid.New(), Instructions: ixs}
}

// Message returns the bytes covered by signatures: the XDR encoding of the id and the instructions.
func (tx *Transaction) Message() ([]byte, error) {
	buf := bytes.Buffer{}
	e := xdr3.NewEncoder(&buf)
	if _, err := e.EncodeFixedOpaque(tx.ID[:]); err != nil {
		return nil, err
	}
	if _, err := e.EncodeUint(uint32(len(tx.Instructions))); err != nil {
		return nil, err
	}
	for _, ix := range tx.Instructions {
		if err := ix.encodeTo(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (ix Instruction) encodeTo(e *xdr3.Encoder) error {
	if _, err := e.EncodeFixedOpaque(ix.ProgramID[:]); err != nil {
		return err
	}
	if _, err := e.EncodeUint(uint32(len(ix.Accounts))); err != nil {
		return err
	}
	for _, m := range ix.Accounts {
		if _, err := e.EncodeFixedOpaque(m.Address[:]); err != nil {
			return err
		}
		if _, err := e.EncodeBool(m.IsSigner); err != nil {
			return err
		}
		if _, err := e.EncodeBool(m.IsWritable); err != nil {
			return err
		}
	}
	_, err := e.EncodeOpaque(ix.Data)
	return err
}

// Signers returns the distinct addresses flagged as signers, in order of first appearance.
func (tx *Transaction) Signers() []types.Address {
	seen := make(map[types.Address]bool)
	var signers []types.Address
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !seen[m.Address] {
				seen[m.Address] = true
				signers = append(signers, m.Address)
			}
		}
	}
	return signers
}

// Sign adds the signatures of the given signers to the transaction.
func (tx *Transaction) Sign(signers ...Signer) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	for _, s := range signers {
		sig, err := s.SignData(msg)
		if err != nil {
			return errors.WithMessagef(err, "signing as %v", s.Address())
		}
		tx.Signatures = append(tx.Signatures, Signature{Signer: s.Address(), Sig: sig})
	}
	return nil
}

func (tx *Transaction) signature(addr types.Address) ([]byte, bool) {
	for _, s := range tx.Signatures {
		if s.Signer == addr {
			return s.Sig, true
		}
	}
	return nil, false
}
