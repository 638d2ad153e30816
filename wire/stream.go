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
	"github.com/stellar/go/xdr"

	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire/scval"
)

// StreamStatus is the lifecycle state of a stream record.
type StreamStatus uint8

const (
	StatusUninitialized StreamStatus = iota
	StatusActive
	StatusCompleted
	StatusTerminated
)

// StreamSize is the fixed length of an encoded stream record:
// status, payee, payer, total amount, remaining balance, duration, start time.
const StreamSize = 1 + 2*types.AddressLength + 4*8

const (
	SymbolStreamStatus    = "status"
	SymbolStreamPayee     = "payee"
	SymbolStreamPayer     = "payer"
	SymbolStreamTotal     = "total"
	SymbolStreamRemaining = "remaining"
	SymbolStreamDuration  = "duration"
	SymbolStreamStart     = "start"

	streamScMapLen = 7
)

var (
	ErrInvalidStreamData = errors.New("invalid stream record data")
	ErrStreamInvariant   = errors.New("stream record invariant violated")
)

func (s StreamStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s StreamStatus) valid() bool {
	return s <= StatusTerminated
}

// Stream is the persistent record of one escrow agreement. It lives in the data region of the
// stream account, which also holds the escrowed funds.
type Stream struct {
	Status           StreamStatus
	Payee            types.Address
	Payer            types.Address
	TotalAmount      uint64
	RemainingBalance uint64
	Duration         uint64
	StartTime        uint64
}

func (s Stream) IsInitialized() bool { return s.Status != StatusUninitialized }
func (s Stream) IsActive() bool      { return s.Status == StatusActive }
func (s Stream) IsCompleted() bool   { return s.Status == StatusCompleted }
func (s Stream) IsTerminated() bool  { return s.Status == StatusTerminated }

// Withdrawn returns the amount the stream has already paid out or settled.
func (s Stream) Withdrawn() uint64 {
	return s.TotalAmount - s.RemainingBalance
}

// Validate checks the invariants every persisted record satisfies.
func (s Stream) Validate() error {
	if !s.Status.valid() {
		return errors.Wrapf(ErrStreamInvariant, "unknown status %d", s.Status)
	}
	if s.RemainingBalance > s.TotalAmount {
		return errors.Wrapf(ErrStreamInvariant, "remaining balance %d exceeds total %d", s.RemainingBalance, s.TotalAmount)
	}
	switch s.Status {
	case StatusUninitialized:
		if s != (Stream{}) {
			return errors.Wrap(ErrStreamInvariant, "uninitialized record is not zeroed")
		}
	case StatusActive:
		if s.Duration == 0 {
			return errors.Wrap(ErrStreamInvariant, "active stream with zero duration")
		}
	case StatusCompleted, StatusTerminated:
		if s.RemainingBalance != 0 {
			return errors.Wrapf(ErrStreamInvariant, "%v stream with remaining balance %d", s.Status, s.RemainingBalance)
		}
	}
	return nil
}

// MarshalBinary encodes the record into its fixed-length account layout.
func (s Stream) MarshalBinary() ([]byte, error) {
	b := make([]byte, StreamSize)
	b[0] = byte(s.Status)
	off := 1
	off += copy(b[off:], s.Payee[:])
	off += copy(b[off:], s.Payer[:])
	for _, v := range []uint64{s.TotalAmount, s.RemainingBalance, s.Duration, s.StartTime} {
		binary.LittleEndian.PutUint64(b[off:], v)
		off += 8
	}
	return b, nil
}

// UnmarshalBinary decodes a record from its account layout. The data must be exactly StreamSize long.
func (s *Stream) UnmarshalBinary(data []byte) error {
	if len(data) != StreamSize {
		return errors.Wrapf(ErrInvalidStreamData, "expected %d bytes, got %d", StreamSize, len(data))
	}
	status := StreamStatus(data[0])
	if !status.valid() {
		return errors.Wrapf(ErrInvalidStreamData, "unknown status %d", data[0])
	}
	var r Stream
	r.Status = status
	off := 1
	off += copy(r.Payee[:], data[off:])
	off += copy(r.Payer[:], data[off:])
	r.TotalAmount = binary.LittleEndian.Uint64(data[off:])
	r.RemainingBalance = binary.LittleEndian.Uint64(data[off+8:])
	r.Duration = binary.LittleEndian.Uint64(data[off+16:])
	r.StartTime = binary.LittleEndian.Uint64(data[off+24:])
	*s = r
	return nil
}

// StreamFromBytes decodes a record from account data.
func StreamFromBytes(data []byte) (Stream, error) {
	var s Stream
	err := s.UnmarshalBinary(data)
	return s, err
}

func (s Stream) ToScVal() (xdr.ScVal, error) {
	status, err := scval.WrapUint32(xdr.Uint32(s.Status))
	if err != nil {
		return xdr.ScVal{}, err
	}
	payee, err := scval.WrapAddress(s.Payee)
	if err != nil {
		return xdr.ScVal{}, err
	}
	payer, err := scval.WrapAddress(s.Payer)
	if err != nil {
		return xdr.ScVal{}, err
	}
	total, err := scval.WrapUint64(xdr.Uint64(s.TotalAmount))
	if err != nil {
		return xdr.ScVal{}, err
	}
	remaining, err := scval.WrapUint64(xdr.Uint64(s.RemainingBalance))
	if err != nil {
		return xdr.ScVal{}, err
	}
	duration, err := scval.WrapUint64(xdr.Uint64(s.Duration))
	if err != nil {
		return xdr.ScVal{}, err
	}
	start, err := scval.WrapUint64(xdr.Uint64(s.StartTime))
	if err != nil {
		return xdr.ScVal{}, err
	}
	m, err := MakeSymbolScMap(
		[]xdr.ScSymbol{
			SymbolStreamStatus,
			SymbolStreamPayee,
			SymbolStreamPayer,
			SymbolStreamTotal,
			SymbolStreamRemaining,
			SymbolStreamDuration,
			SymbolStreamStart,
		},
		[]xdr.ScVal{status, payee, payer, total, remaining, duration, start},
	)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return scval.WrapScMap(m)
}

func (s *Stream) FromScVal(v xdr.ScVal) error {
	m, err := ExpectScMap(v, streamScMapLen)
	if err != nil {
		return err
	}
	var r Stream

	statusVal, err := GetScMapValueFromSymbol(SymbolStreamStatus, m)
	if err != nil {
		return err
	}
	status, err := scval.UnwrapUint32(statusVal)
	if err != nil {
		return err
	}
	if status > uint32(StatusTerminated) {
		return errors.Wrapf(ErrInvalidStreamData, "unknown status %d", status)
	}
	r.Status = StreamStatus(status)

	for _, f := range []struct {
		sym xdr.ScSymbol
		dst *types.Address
	}{
		{SymbolStreamPayee, &r.Payee},
		{SymbolStreamPayer, &r.Payer},
	} {
		val, err := GetScMapValueFromSymbol(f.sym, m)
		if err != nil {
			return err
		}
		if *f.dst, err = scval.UnwrapAddress(val); err != nil {
			return errors.WithMessage(err, string(f.sym))
		}
	}

	for _, f := range []struct {
		sym xdr.ScSymbol
		dst *uint64
	}{
		{SymbolStreamTotal, &r.TotalAmount},
		{SymbolStreamRemaining, &r.RemainingBalance},
		{SymbolStreamDuration, &r.Duration},
		{SymbolStreamStart, &r.StartTime},
	} {
		val, err := GetScMapValueFromSymbol(f.sym, m)
		if err != nil {
			return err
		}
		if *f.dst, err = scval.UnwrapUint64(val); err != nil {
			return errors.WithMessage(err, string(f.sym))
		}
	}

	*s = r
	return nil
}

func StreamFromScVal(v xdr.ScVal) (Stream, error) {
	var s Stream
	err := (&s).FromScVal(v)
	return s, err
}
