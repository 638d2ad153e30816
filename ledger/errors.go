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

import "github.com/pkg/errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrEmptyTransaction      = errors.New("transaction has no instructions")
	ErrUnknownProgram        = errors.New("unknown program")
	ErrSignatureInvalid      = errors.New("invalid or missing signature")
	ErrDuplicateTransaction  = errors.New("transaction already processed")
	ErrUnbalancedTransaction = errors.New("instruction did not conserve lamports")
	ErrReadonlyModified      = errors.New("instruction modified a readonly account")
	ErrExternalDebit         = errors.New("instruction debited an account it does not own")
	ErrExternalDataModified  = errors.New("instruction modified data of an account it does not own")
	ErrRentViolation         = errors.New("account left below its minimum balance")
	ErrAccountInUse          = errors.New("account already in use")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidInstruction    = errors.New("invalid instruction data")
	ErrInvalidAccounts       = errors.New("invalid instruction accounts")
	ErrClockRegressed        = errors.New("clock moved backwards")
	ErrDataTooLarge          = errors.New("account data too large")
)

// InstructionError reports the failing instruction of a rejected transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return errors.Wrapf(e.Err, "instruction %d", e.Index).Error()
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}
