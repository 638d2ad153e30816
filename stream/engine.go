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
	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/wire"
)

// Apply runs op and checks the resulting record before handing it back. It has no side effects;
// the caller persists the record and moves the settled amounts.
func Apply(op Operation) (Settlement, error) {
	s, err := op.apply()
	if err != nil {
		return Settlement{}, err
	}
	if err := s.Record.Validate(); err != nil {
		return Settlement{}, errors.Wrap(ErrConsistencyFault, err.Error())
	}
	return s, nil
}

// Create initializes a pre-funded stream account. Checks run in order and the first failure wins.
func Create(ctx CreateContext) (Settlement, error) {
	if ctx.Escrow.Balance < ctx.Escrow.Reserve {
		return Settlement{}, errors.Wrapf(ErrNotRentExempt, "balance %d below reserve %d", ctx.Escrow.Balance, ctx.Escrow.Reserve)
	}
	if ctx.Escrow.Available() < ctx.Amount {
		return Settlement{}, errors.Wrapf(ErrInsufficientAmount, "escrow holds %d above reserve, stream needs %d", ctx.Escrow.Available(), ctx.Amount)
	}
	if ctx.Record.IsInitialized() {
		return Settlement{}, ErrAlreadyInitialized
	}
	if ctx.Duration == 0 {
		return Settlement{}, errors.Wrap(ErrArithmeticFault, "zero duration")
	}
	return Settlement{
		Record: wire.Stream{
			Status:           wire.StatusActive,
			Payee:            ctx.Payee,
			Payer:            ctx.Payer,
			TotalAmount:      ctx.Amount,
			RemainingBalance: ctx.Amount,
			Duration:         ctx.Duration,
			StartTime:        ctx.Now,
		},
	}, nil
}

// Withdraw pays the payee min(requested, releasable). A withdrawal that drains the stream completes it.
func Withdraw(ctx WithdrawContext) (Settlement, error) {
	rec := ctx.Record
	if !rec.IsInitialized() {
		return Settlement{}, ErrUninitialized
	}
	if !rec.IsActive() {
		return Settlement{}, errors.Wrapf(ErrNotActive, "stream is %v", rec.Status)
	}
	if ctx.Payee != rec.Payee {
		return Settlement{}, ErrInvalidPayee
	}
	releasable, err := Releasable(rec, ctx.Now)
	if err != nil {
		return Settlement{}, err
	}
	payout := min(ctx.Amount, releasable)
	if ctx.Escrow.Available() < payout {
		return Settlement{}, errors.Wrapf(ErrConsistencyFault, "escrow holds %d above reserve, payout is %d", ctx.Escrow.Available(), payout)
	}
	rec.RemainingBalance -= payout
	if rec.RemainingBalance == 0 {
		rec.Status = wire.StatusCompleted
	}
	return Settlement{Record: rec, ToPayee: payout}, nil
}

// Cancel terminates an active stream. The payee receives what has vested and was not withdrawn yet,
// the payer receives the rest of the remaining balance.
func Cancel(ctx CancelContext) (Settlement, error) {
	rec := ctx.Record
	if !rec.IsInitialized() {
		return Settlement{}, ErrUninitialized
	}
	if !rec.IsActive() {
		return Settlement{}, errors.Wrapf(ErrNotActive, "stream is %v", rec.Status)
	}
	if rec.RemainingBalance == 0 {
		return Settlement{}, errors.Wrap(ErrInsufficientAmount, "nothing left to settle")
	}
	if ctx.Payee != rec.Payee {
		return Settlement{}, ErrInvalidPayee
	}
	if ctx.Payer != rec.Payer {
		return Settlement{}, ErrInvalidPayer
	}
	if !ctx.PayeeSigned && !ctx.PayerSigned {
		return Settlement{}, errors.Wrap(ErrMissingSignature, "cancel needs the payee or the payer")
	}
	owed, err := Releasable(rec, ctx.Now)
	if err != nil {
		return Settlement{}, err
	}
	if ctx.Escrow.Available() < rec.RemainingBalance {
		return Settlement{}, errors.Wrapf(ErrConsistencyFault, "escrow holds %d above reserve, remaining balance is %d", ctx.Escrow.Available(), rec.RemainingBalance)
	}
	refund := rec.RemainingBalance - owed
	rec.RemainingBalance = 0
	rec.Status = wire.StatusTerminated
	return Settlement{Record: rec, ToPayee: owed, ToPayer: refund}, nil
}
