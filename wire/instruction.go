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

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/wallet/types"
)

// InstructionTag is the leading discriminator byte of an encoded instruction.
type InstructionTag uint8

const (
	TagCreate InstructionTag = iota
	TagWithdraw
	TagCancel
)

const (
	tagLen    = 1
	amountLen = 8

	// CreateInstructionLength is the encoded length of a CreateInstruction.
	CreateInstructionLength = tagLen + 2*types.AddressLength + 2*amountLen
	// WithdrawInstructionLength is the encoded length of a WithdrawInstruction.
	WithdrawInstructionLength = tagLen + amountLen
	// CancelInstructionLength is the encoded length of a CancelInstruction.
	CancelInstructionLength = tagLen
)

// ErrMalformedCall is returned for any payload that does not decode to exactly one instruction.
var ErrMalformedCall = errors.New("malformed call")

func (t InstructionTag) String() string {
	switch t {
	case TagCreate:
		return "create"
	case TagWithdraw:
		return "withdraw"
	case TagCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Instruction is one of CreateInstruction, WithdrawInstruction or CancelInstruction.
type Instruction interface {
	Tag() InstructionTag
	MarshalBinary() ([]byte, error)
	isInstruction()
}

type (
	// CreateInstruction initializes a pre-funded stream account.
	CreateInstruction struct {
		Payee    types.Address
		Payer    types.Address
		Amount   uint64
		Duration uint64
	}

	// WithdrawInstruction requests up to Amount of the vested funds for the payee.
	WithdrawInstruction struct {
		Amount uint64
	}

	// CancelInstruction terminates a stream and settles the remaining balance.
	CancelInstruction struct{}
)

func (CreateInstruction) Tag() InstructionTag   { return TagCreate }
func (WithdrawInstruction) Tag() InstructionTag { return TagWithdraw }
func (CancelInstruction) Tag() InstructionTag   { return TagCancel }

func (CreateInstruction) isInstruction()   {}
func (WithdrawInstruction) isInstruction() {}
func (CancelInstruction) isInstruction()   {}

func (c CreateInstruction) MarshalBinary() ([]byte, error) {
	b := make([]byte, CreateInstructionLength)
	b[0] = byte(TagCreate)
	off := tagLen
	off += copy(b[off:], c.Payee[:])
	off += copy(b[off:], c.Payer[:])
	binary.LittleEndian.PutUint64(b[off:], c.Amount)
	binary.LittleEndian.PutUint64(b[off+amountLen:], c.Duration)
	return b, nil
}

func (w WithdrawInstruction) MarshalBinary() ([]byte, error) {
	b := make([]byte, WithdrawInstructionLength)
	b[0] = byte(TagWithdraw)
	binary.LittleEndian.PutUint64(b[tagLen:], w.Amount)
	return b, nil
}

func (CancelInstruction) MarshalBinary() ([]byte, error) {
	return []byte{byte(TagCancel)}, nil
}

// EncodeInstruction returns the binary form of ix.
func EncodeInstruction(ix Instruction) []byte {
	b, err := ix.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeInstruction parses data into exactly one instruction. Fields are fixed width and little-endian.
// Unknown tags, truncated fields and trailing bytes all fail with ErrMalformedCall.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) < tagLen {
		return nil, errors.Wrap(ErrMalformedCall, "empty payload")
	}
	tag := InstructionTag(data[0])
	var want int
	switch tag {
	case TagCreate:
		want = CreateInstructionLength
	case TagWithdraw:
		want = WithdrawInstructionLength
	case TagCancel:
		want = CancelInstructionLength
	default:
		return nil, errors.Wrapf(ErrMalformedCall, "unknown instruction tag %d", data[0])
	}
	if len(data) != want {
		return nil, errors.Wrapf(ErrMalformedCall, "%v: expected %d bytes, got %d", tag, want, len(data))
	}

	body := data[tagLen:]
	switch tag {
	case TagCreate:
		var c CreateInstruction
		off := copy(c.Payee[:], body)
		off += copy(c.Payer[:], body[off:])
		c.Amount = binary.LittleEndian.Uint64(body[off:])
		c.Duration = binary.LittleEndian.Uint64(body[off+amountLen:])
		return c, nil
	case TagWithdraw:
		return WithdrawInstruction{Amount: binary.LittleEndian.Uint64(body)}, nil
	default:
		return CancelInstruction{}, nil
	}
}
