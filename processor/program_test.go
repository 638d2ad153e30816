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

package processor_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-paystream-backend/event"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/processor"
	"perun.network/perun-paystream-backend/stream"
	"perun.network/perun-paystream-backend/wallet"
	wtest "perun.network/perun-paystream-backend/wallet/test"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

const (
	startTime   = 1_000
	initBalance = 100_000_000
)

type env struct {
	t       *testing.T
	rng     *rand.Rand
	ledger  *ledger.Ledger
	clock   *ledger.ManualClock
	metrics *processor.Metrics
	id      types.Address
	payer   *wallet.Account
	payee   *wallet.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	rng := pkgtest.Prng(t)
	e := &env{
		t:       t,
		rng:     rng,
		clock:   ledger.NewManualClock(startTime),
		metrics: processor.NewMetrics(prometheus.NewRegistry(), "test"),
		id:      processor.DefaultProgramID,
		payer:   wtest.NewRandomAccount(rng),
		payee:   wtest.NewRandomAccount(rng),
	}
	e.ledger = ledger.New(ledger.NewMemStore(),
		ledger.WithClock(e.clock),
		ledger.WithProgram(processor.NewProgram(e.id, e.metrics)),
	)
	t.Cleanup(func() { require.NoError(t, e.ledger.Close()) })
	ctx := context.Background()
	require.NoError(t, e.ledger.Airdrop(ctx, e.payer.Address(), initBalance))
	require.NoError(t, e.ledger.Airdrop(ctx, e.payee.Address(), initBalance))
	return e
}

func (e *env) submit(signers []ledger.Signer, ixs ...ledger.Instruction) ([]event.StreamEvent, error) {
	e.t.Helper()
	tx := ledger.NewTransaction(ixs...)
	require.NoError(e.t, tx.Sign(signers...))
	r, err := e.ledger.Submit(context.Background(), tx)
	if err != nil {
		return nil, err
	}
	evs, err := event.DecodeEvents(r.Events)
	require.NoError(e.t, err)
	return evs, nil
}

func (e *env) reserve() uint64 {
	return e.ledger.MinimumBalance(wire.StreamSize)
}

// createInstructions funds a fresh stream account with the reserve plus args.Amount and
// initializes it with args.
func (e *env) createInstructions(acc *wallet.Account, args wire.CreateInstruction) []ledger.Instruction {
	return []ledger.Instruction{
		ledger.CreateAccountInstruction(e.payer.Address(), acc.Address(), ledger.CreateAccount{
			Lamports: e.reserve() + args.Amount,
			Space:    wire.StreamSize,
			Owner:    e.id,
		}),
		processor.CreateInstruction(e.id, acc.Address(), args),
	}
}

func (e *env) createStream(amount, duration uint64) (types.Address, error) {
	e.t.Helper()
	acc := wtest.NewRandomAccount(e.rng)
	evs, err := e.submit([]ledger.Signer{e.payer, acc}, e.createInstructions(acc, wire.CreateInstruction{
		Payee:    e.payee.Address(),
		Payer:    e.payer.Address(),
		Amount:   amount,
		Duration: duration,
	})...)
	if err != nil {
		return acc.Address(), err
	}
	require.NoError(e.t, event.AssertCreatedEvent(evs))
	return acc.Address(), nil
}

func (e *env) record(addr types.Address) wire.Stream {
	e.t.Helper()
	acc, err := e.ledger.Account(context.Background(), addr)
	require.NoError(e.t, err)
	rec, err := wire.StreamFromBytes(acc.Data)
	require.NoError(e.t, err)
	return rec
}

func (e *env) balance(addr types.Address) uint64 {
	e.t.Helper()
	acc, err := e.ledger.Account(context.Background(), addr)
	require.NoError(e.t, err)
	return acc.Lamports
}

func TestStreamLifecycle(t *testing.T) {
	e := newEnv(t)
	s, err := e.createStream(1000, 100)
	require.NoError(t, err)

	rec := e.record(s)
	require.Equal(t, wire.StatusActive, rec.Status)
	require.Equal(t, uint64(startTime), rec.StartTime)
	require.Equal(t, e.reserve()+1000, e.balance(s))
	require.Equal(t, initBalance-e.reserve()-1000, e.balance(e.payer.Address()))

	e.clock.Advance(30)
	evs, err := e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, s, e.payee.Address(), 1_000_000))
	require.NoError(t, err)
	ev, ok := event.Find(evs, event.EventTypeWithdrawn)
	require.True(t, ok)
	require.Equal(t, uint64(300), ev.Payout)
	require.Equal(t, s, ev.Stream)
	require.Equal(t, uint64(700), ev.Record.RemainingBalance)
	require.Equal(t, uint64(initBalance+300), e.balance(e.payee.Address()))

	// Nothing new has vested at the same instant.
	_, err = e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, s, e.payee.Address(), 1_000_000))
	require.NoError(t, err)
	require.Equal(t, uint64(initBalance+300), e.balance(e.payee.Address()))

	e.clock.Advance(20)
	payerBefore := e.balance(e.payer.Address())
	evs, err = e.submit([]ledger.Signer{e.payer}, processor.CancelInstruction(e.id, s, e.payee.Address(), e.payer.Address(), e.payer.Address()))
	require.NoError(t, err)
	require.NoError(t, event.AssertCancelledEvent(evs))
	ev, _ = event.Find(evs, event.EventTypeCancelled)
	require.Equal(t, uint64(200), ev.Payout)
	require.Equal(t, uint64(500), ev.Refund)

	require.Equal(t, uint64(initBalance+500), e.balance(e.payee.Address()))
	require.Equal(t, payerBefore+500, e.balance(e.payer.Address()))
	require.Equal(t, e.reserve(), e.balance(s))
	rec = e.record(s)
	require.Equal(t, wire.StatusTerminated, rec.Status)
	require.Zero(t, rec.RemainingBalance)

	_, err = e.submit([]ledger.Signer{e.payer}, processor.CancelInstruction(e.id, s, e.payee.Address(), e.payer.Address(), e.payer.Address()))
	require.ErrorIs(t, err, stream.ErrNotActive)
	require.Equal(t, e.reserve(), e.balance(s))

	require.Equal(t, float64(500), testutil.ToFloat64(e.metrics.PaidOut))
	require.Equal(t, float64(500), testutil.ToFloat64(e.metrics.Refunded))
	require.Equal(t, float64(2), testutil.ToFloat64(e.metrics.Operations.WithLabelValues(wire.TagWithdraw.String(), processor.OutcomeOK)))
}

func TestWithdrawCompletes(t *testing.T) {
	e := newEnv(t)
	s, err := e.createStream(1000, 60)
	require.NoError(t, err)

	e.clock.Advance(61)
	evs, err := e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, s, e.payee.Address(), 1000))
	require.NoError(t, err)
	require.NoError(t, event.AssertWithdrawnEvent(evs))
	require.NoError(t, event.AssertCompletedEvent(evs))
	require.Equal(t, wire.StatusCompleted, e.record(s).Status)
	require.Equal(t, e.reserve(), e.balance(s))

	_, err = e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, s, e.payee.Address(), 1))
	require.ErrorIs(t, err, stream.ErrNotActive)
	_, err = e.submit([]ledger.Signer{e.payee}, processor.CancelInstruction(e.id, s, e.payee.Address(), e.payer.Address(), e.payee.Address()))
	require.ErrorIs(t, err, stream.ErrNotActive)
}

func TestCreateIsAtomic(t *testing.T) {
	e := newEnv(t)
	s, err := e.createStream(1000, 0)
	require.ErrorIs(t, err, stream.ErrArithmeticFault)
	code, ok := stream.Code(err)
	require.True(t, ok)
	require.Equal(t, stream.CodeArithmeticFault, code)

	require.Equal(t, uint64(initBalance), e.balance(e.payer.Address()))
	acc, err := e.ledger.Account(context.Background(), s)
	require.NoError(t, err)
	require.True(t, acc.IsZero())
}

func TestCreatePreconditions(t *testing.T) {
	e := newEnv(t)
	rng := e.rng
	ctx := context.Background()
	underfunded := wtest.NewRandomAddress(rng)
	require.NoError(t, e.ledger.Genesis(ctx, ledger.KeyedAccount{
		Address: underfunded,
		Account: ledger.Account{Lamports: e.reserve() - 1, Owner: e.id, Data: make([]byte, wire.StreamSize)},
	}))
	args := wire.CreateInstruction{Payee: e.payee.Address(), Payer: e.payer.Address(), Amount: 10, Duration: 10}
	_, err := e.submit(nil, processor.CreateInstruction(e.id, underfunded, args))
	require.ErrorIs(t, err, stream.ErrNotRentExempt)

	s, err := e.createStream(1000, 100)
	require.NoError(t, err)
	_, err = e.submit(nil, processor.CreateInstruction(e.id, s, args))
	require.ErrorIs(t, err, stream.ErrAlreadyInitialized)

	args.Amount = 1001
	_, err = e.submit(nil, processor.CreateInstruction(e.id, s, args))
	require.ErrorIs(t, err, stream.ErrInsufficientAmount)
}

func TestCreateRejectsUnsettleableParties(t *testing.T) {
	e := newEnv(t)
	payee, payer := e.payee.Address(), e.payer.Address()
	for _, tc := range []struct {
		name string
		args func(s types.Address) wire.CreateInstruction
		err  error
	}{
		{
			name: "payee is stream",
			args: func(s types.Address) wire.CreateInstruction {
				return wire.CreateInstruction{Payee: s, Payer: payer, Amount: 100, Duration: 10}
			},
			err: stream.ErrInvalidPayee,
		},
		{
			name: "payer is stream",
			args: func(s types.Address) wire.CreateInstruction {
				return wire.CreateInstruction{Payee: payee, Payer: s, Amount: 100, Duration: 10}
			},
			err: stream.ErrInvalidPayer,
		},
		{
			name: "self stream",
			args: func(types.Address) wire.CreateInstruction {
				return wire.CreateInstruction{Payee: payer, Payer: payer, Amount: 100, Duration: 10}
			},
			err: stream.ErrInvalidPayee,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			acc := wtest.NewRandomAccount(e.rng)
			_, err := e.submit([]ledger.Signer{e.payer, acc}, e.createInstructions(acc, tc.args(acc.Address()))...)
			require.ErrorIs(t, err, tc.err)
			require.Zero(t, e.balance(acc.Address()))
			require.Equal(t, uint64(initBalance), e.balance(payer))
		})
	}
}

func TestMetricsCountCommittedCalls(t *testing.T) {
	e := newEnv(t)
	payee, payer := e.payee.Address(), e.payer.Address()
	createOK := e.metrics.Operations.WithLabelValues(wire.TagCreate.String(), processor.OutcomeOK)
	withdrawOK := e.metrics.Operations.WithLabelValues(wire.TagWithdraw.String(), processor.OutcomeOK)

	acc := wtest.NewRandomAccount(e.rng)
	ixs := e.createInstructions(acc, wire.CreateInstruction{Payee: payee, Payer: payer, Amount: 1000, Duration: 100})
	ixs = append(ixs, ledger.TransferInstruction(payer, payee, 2*initBalance))
	_, err := e.submit([]ledger.Signer{e.payer, acc}, ixs...)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Zero(t, testutil.ToFloat64(createOK))

	s, err := e.createStream(1000, 100)
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(createOK))

	e.clock.Advance(50)
	_, err = e.submit([]ledger.Signer{e.payee},
		processor.WithdrawInstruction(e.id, s, payee, 1000),
		ledger.TransferInstruction(payee, payer, 2*initBalance),
	)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Zero(t, testutil.ToFloat64(withdrawOK))
	require.Zero(t, testutil.ToFloat64(e.metrics.PaidOut))
	require.Equal(t, uint64(1000), e.record(s).RemainingBalance)

	_, err = e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, s, payee, 1000))
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(withdrawOK))
	require.Equal(t, float64(500), testutil.ToFloat64(e.metrics.PaidOut))
}

func TestAccountBinding(t *testing.T) {
	e := newEnv(t)
	rng := e.rng
	ctx := context.Background()
	s, err := e.createStream(1000, 100)
	require.NoError(t, err)
	e.clock.Advance(10)
	payee, payer := e.payee.Address(), e.payer.Address()

	withdraw := processor.WithdrawInstruction(e.id, s, payee, 1)

	missing := withdraw
	missing.Accounts = missing.Accounts[:1]
	_, err = e.submit(nil, missing)
	require.ErrorIs(t, err, stream.ErrMissingAccount)

	_, err = e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, payer, payee, 1))
	require.ErrorIs(t, err, stream.ErrNotOwned)

	readonly := processor.WithdrawInstruction(e.id, s, payee, 1)
	readonly.Accounts[0] = ledger.ReadonlyAccount(s)
	_, err = e.submit([]ledger.Signer{e.payee}, readonly)
	require.ErrorIs(t, err, stream.ErrNotWritable)

	garbage := wtest.NewRandomAddress(rng)
	require.NoError(t, e.ledger.Genesis(ctx, ledger.KeyedAccount{
		Address: garbage,
		Account: ledger.Account{Lamports: e.reserve() + 10, Owner: e.id, Data: make([]byte, wire.StreamSize+1)},
	}))
	_, err = e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, garbage, payee, 1))
	require.ErrorIs(t, err, stream.ErrInvalidAccountData)

	unsigned := processor.WithdrawInstruction(e.id, s, payee, 1)
	unsigned.Accounts[1] = ledger.WritableAccount(payee)
	_, err = e.submit(nil, unsigned)
	require.ErrorIs(t, err, stream.ErrMissingSignature)

	_, err = e.submit([]ledger.Signer{e.payer}, processor.WithdrawInstruction(e.id, s, payer, 1))
	require.ErrorIs(t, err, stream.ErrInvalidPayee)

	_, err = e.submit(nil, processor.CancelInstruction(e.id, s, payee, payer, types.ZeroAddress))
	require.ErrorIs(t, err, stream.ErrMissingSignature)

	outsider := wtest.NewRandomAccount(rng)
	_, err = e.submit([]ledger.Signer{outsider}, processor.CancelInstruction(e.id, s, payee, outsider.Address(), outsider.Address()))
	require.ErrorIs(t, err, stream.ErrInvalidPayer)

	malformed := processor.WithdrawInstruction(e.id, s, payee, 1)
	malformed.Data = append(malformed.Data, 0)
	_, err = e.submit([]ledger.Signer{e.payee}, malformed)
	require.ErrorIs(t, err, stream.ErrMalformedCall)

	uninitialized := wtest.NewRandomAddress(rng)
	require.NoError(t, e.ledger.Genesis(ctx, ledger.KeyedAccount{
		Address: uninitialized,
		Account: ledger.Account{Lamports: e.reserve(), Owner: e.id, Data: make([]byte, wire.StreamSize)},
	}))
	_, err = e.submit([]ledger.Signer{e.payee}, processor.WithdrawInstruction(e.id, uninitialized, payee, 1))
	require.ErrorIs(t, err, stream.ErrUninitialized)

	require.Equal(t, uint64(1000), e.record(s).RemainingBalance)
}
