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
	"fmt"

	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/wire"
)

// Every call either succeeds or fails with exactly one of these errors, possibly wrapped with detail.
var (
	ErrMalformedCall      = wire.ErrMalformedCall
	ErrNotOwned           = errors.New("stream account not owned by program")
	ErrNotWritable        = errors.New("account not writable")
	ErrMissingSignature   = errors.New("missing required signature")
	ErrMissingAccount     = errors.New("missing account")
	ErrInvalidAccountData = errors.New("invalid account data")
	ErrNotRentExempt      = errors.New("stream account not rent exempt")
	ErrInsufficientAmount = errors.New("insufficient amount")
	ErrAlreadyInitialized = errors.New("stream already initialized")
	ErrUninitialized      = errors.New("stream not initialized")
	ErrInvalidPayee       = errors.New("invalid payee")
	ErrInvalidPayer       = errors.New("invalid payer")
	ErrNotActive          = errors.New("stream not active")
	ErrArithmeticFault    = errors.New("arithmetic fault")
	ErrConsistencyFault   = errors.New("escrow consistency fault")
)

// ErrorCode is the stable numeric form of a call failure.
type ErrorCode uint32

const (
	CodeMalformedCall ErrorCode = iota + 1
	CodeNotOwned
	CodeNotWritable
	CodeMissingSignature
	CodeMissingAccount
	CodeInvalidAccountData
	CodeNotRentExempt
	CodeInsufficientAmount
	CodeAlreadyInitialized
	CodeUninitialized
	CodeInvalidPayee
	CodeInvalidPayer
	CodeNotActive
	CodeArithmeticFault
	CodeConsistencyFault
)

var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrMalformedCall, CodeMalformedCall},
	{ErrNotOwned, CodeNotOwned},
	{ErrNotWritable, CodeNotWritable},
	{ErrMissingSignature, CodeMissingSignature},
	{ErrMissingAccount, CodeMissingAccount},
	{ErrInvalidAccountData, CodeInvalidAccountData},
	{ErrNotRentExempt, CodeNotRentExempt},
	{ErrInsufficientAmount, CodeInsufficientAmount},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrUninitialized, CodeUninitialized},
	{ErrInvalidPayee, CodeInvalidPayee},
	{ErrInvalidPayer, CodeInvalidPayer},
	{ErrNotActive, CodeNotActive},
	{ErrArithmeticFault, CodeArithmeticFault},
	{ErrConsistencyFault, CodeConsistencyFault},
}

// Code returns the code of the first taxonomy error found in err's chain.
func Code(err error) (ErrorCode, bool) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code, true
		}
	}
	return 0, false
}

// Err returns the sentinel error for c.
func (c ErrorCode) Err() error {
	for _, e := range errorCodes {
		if e.code == c {
			return e.err
		}
	}
	return nil
}

func (c ErrorCode) String() string {
	if err := c.Err(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unknown error code %d", uint32(c))
}
