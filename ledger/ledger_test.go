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

package ledger_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/wallet"
	wtest "perun.network/perun-paystream-backend/wallet/test"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire/scval"
)

const (
	startTime   = 1_700_000_000
	initBalance = 1_000_000_000
)

type setup struct {
	ledger *ledger.Ledger
	clock  *ledger.ManualClock
	reg    *prometheus.Registry
	alice  *wallet.Account
	bob    *wallet.Account
}

type storeFactory func(t *testing.T) ledger.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) ledger.Store { return ledger.NewMemStore() },
		"badger": func(t *testing.T) ledger.Store {
			s, err := ledger.OpenBadgerStore("", true)
			require.NoError(t, err)
			return s
		},
	}
}

func newSetup(t *testing.T, rng *rand.Rand, store ledger.Store, progs ...ledger.Program) *setup {
	t.Helper()
	s := &setup{
		clock: ledger.NewManualClock(startTime),
		reg:   prometheus.NewRegistry(),
		alice: wtest.NewRandomAccount(rng),
		bob:   wtest.NewRandomAccount(rng),
	}
	opts := []ledger.Option{ledger.WithClock(s.clock), ledger.WithMetrics(ledger.NewMetrics(s.reg, "test"))}
	for _, p := range progs {
		opts = append(opts, ledger.WithProgram(p))
	}
	s.ledger = ledger.New(store, opts...)
	t.Cleanup(func() { require.NoError(t, s.ledger.Close()) })

	ctx := context.Background()
	require.NoError(t, s.ledger.Airdrop(ctx, s.alice.Address(), initBalance))
	require.NoError(t, s.ledger.Airdrop(ctx, s.bob.Address(), initBalance))
	return s
}

func (s *setup) balance(t *testing.T, addr types.Address) uint64 {
	t.Helper()
	acc, err := s.ledger.Account(context.Background(), addr)
	require.NoError(t, err)
	return acc.Lamports
}

func (s *setup) submit(t *testing.T, signers []ledger.Signer, ixs ...ledger.Instruction) (*ledger.Receipt, error) {
	t.Helper()
	tx := ledger.NewTransaction(ixs...)
	require.NoError(t, tx.Sign(signers...))
	return s.ledger.Submit(context.Background(), tx)
}

// funcProgram runs fn for every instruction.
type funcProgram struct {
	id types.Address
	fn func(ctx *ledger.InvokeContext, data []byte) error
}

func (p funcProgram) ID() types.Address { return p.id }

func (p funcProgram) Process(ctx *ledger.InvokeContext, data []byte) error { return p.fn(ctx, data) }

func TestCreateAccount(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			rng := pkgtest.Prng(t)
			s := newSetup(t, rng, factory(t))
			owner := wtest.NewRandomAddress(rng)
			created := wtest.NewRandomAccount(rng)
			rent := s.ledger.MinimumBalance(97)
			require.Equal(t, uint64((128+97)*3480*2), rent)

			_, err := s.submit(t, []ledger.Signer{s.alice, created},
				ledger.CreateAccountInstruction(s.alice.Address(), created.Address(), ledger.CreateAccount{
					Lamports: rent + 500,
					Space:    97,
					Owner:    owner,
				}))
			require.NoError(t, err)

			acc, err := s.ledger.Account(context.Background(), created.Address())
			require.NoError(t, err)
			require.Equal(t, owner, acc.Owner)
			require.Len(t, acc.Data, 97)
			require.Equal(t, rent+500, acc.Lamports)
			require.Equal(t, uint64(initBalance)-rent-500, s.balance(t, s.alice.Address()))

			owned, err := s.ledger.ProgramAccounts(context.Background(), owner)
			require.NoError(t, err)
			require.Len(t, owned, 1)
			require.Equal(t, created.Address(), owned[0].Address)

			_, err = s.submit(t, []ledger.Signer{s.alice, created},
				ledger.CreateAccountInstruction(s.alice.Address(), created.Address(), ledger.CreateAccount{
					Lamports: rent,
					Space:    97,
					Owner:    owner,
				}))
			require.ErrorIs(t, err, ledger.ErrAccountInUse)
		})
	}
}

func TestCreateAccountBelowRent(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := newSetup(t, rng, ledger.NewMemStore())
	created := wtest.NewRandomAccount(rng)

	_, err := s.submit(t, []ledger.Signer{s.alice, created},
		ledger.CreateAccountInstruction(s.alice.Address(), created.Address(), ledger.CreateAccount{
			Lamports: s.ledger.MinimumBalance(97) - 1,
			Space:    97,
			Owner:    wtest.NewRandomAddress(rng),
		}))
	require.ErrorIs(t, err, ledger.ErrRentViolation)
	var ixErr *ledger.InstructionError
	require.ErrorAs(t, err, &ixErr)
	require.Equal(t, 0, ixErr.Index)
	require.Equal(t, uint64(initBalance), s.balance(t, s.alice.Address()))
}

func TestTransfer(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			rng := pkgtest.Prng(t)
			s := newSetup(t, rng, factory(t))

			r, err := s.submit(t, []ledger.Signer{s.alice}, ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 100))
			require.NoError(t, err)
			require.Equal(t, uint64(startTime), r.Time)
			require.Equal(t, uint64(1), r.Slot)
			require.Equal(t, uint64(initBalance-100), s.balance(t, s.alice.Address()))
			require.Equal(t, uint64(initBalance+100), s.balance(t, s.bob.Address()))

			_, err = s.submit(t, []ledger.Signer{s.alice}, ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), initBalance))
			require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		})
	}
}

func TestSignatures(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := newSetup(t, rng, ledger.NewMemStore())
	ix := ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 1)

	_, err := s.ledger.Submit(context.Background(), ledger.NewTransaction(ix))
	require.ErrorIs(t, err, ledger.ErrSignatureInvalid)

	_, err = s.submit(t, []ledger.Signer{s.bob}, ix)
	require.ErrorIs(t, err, ledger.ErrSignatureInvalid)

	tx := ledger.NewTransaction(ix)
	require.NoError(t, tx.Sign(s.alice))
	tx.Instructions[0].Data = ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 2).Data
	_, err = s.ledger.Submit(context.Background(), tx)
	require.ErrorIs(t, err, ledger.ErrSignatureInvalid)

	// The system program checks the signer flag itself.
	unsigned := ix
	unsigned.Accounts = []ledger.AccountMeta{ledger.WritableAccount(s.alice.Address()), ledger.WritableAccount(s.bob.Address())}
	_, err = s.submit(t, nil, unsigned)
	require.ErrorIs(t, err, ledger.ErrSignatureInvalid)
	require.Equal(t, uint64(initBalance), s.balance(t, s.alice.Address()))
}

func TestSubmitRejects(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := newSetup(t, rng, ledger.NewMemStore())
	ctx := context.Background()

	_, err := s.ledger.Submit(ctx, ledger.NewTransaction())
	require.ErrorIs(t, err, ledger.ErrEmptyTransaction)

	_, err = s.submit(t, nil, ledger.Instruction{ProgramID: wtest.NewRandomAddress(rng)})
	require.ErrorIs(t, err, ledger.ErrUnknownProgram)

	tx := ledger.NewTransaction(ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 1))
	require.NoError(t, tx.Sign(s.alice))
	_, err = s.ledger.Submit(ctx, tx)
	require.NoError(t, err)
	_, err = s.ledger.Submit(ctx, tx)
	require.ErrorIs(t, err, ledger.ErrDuplicateTransaction)

	s.clock.Set(startTime - 1)
	_, err = s.submit(t, []ledger.Signer{s.alice}, ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 1))
	require.ErrorIs(t, err, ledger.ErrClockRegressed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.ledger.Submit(cancelled, tx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAtomicity(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := newSetup(t, rng, ledger.NewMemStore())

	_, err := s.submit(t, []ledger.Signer{s.alice},
		ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 10),
		ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), initBalance),
	)
	var ixErr *ledger.InstructionError
	require.ErrorAs(t, err, &ixErr)
	require.Equal(t, 1, ixErr.Index)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Equal(t, uint64(initBalance), s.balance(t, s.alice.Address()))
	require.Equal(t, uint64(initBalance), s.balance(t, s.bob.Address()))

	// Later instructions see the effects of earlier ones.
	_, err = s.submit(t, []ledger.Signer{s.alice, s.bob},
		ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 10),
		ledger.TransferInstruction(s.bob.Address(), s.alice.Address(), initBalance+10),
	)
	require.NoError(t, err)
	require.Equal(t, uint64(2*initBalance), s.balance(t, s.alice.Address()))
	require.Zero(t, s.balance(t, s.bob.Address()))
}

func TestOwnershipRules(t *testing.T) {
	rng := pkgtest.Prng(t)
	id := wtest.NewRandomAddress(rng)
	var mode string
	prog := funcProgram{id: id, fn: func(ctx *ledger.InvokeContext, _ []byte) error {
		a, b := ctx.Accounts()[0], ctx.Accounts()[1]
		switch mode {
		case "debit":
			a.Account.Lamports--
			b.Account.Lamports++
		case "mint":
			b.Account.Lamports++
		case "data":
			a.Account.Data = []byte{1}
		case "readonly":
			b.Account.Lamports--
			a.Account.Lamports++
		case "emit":
			ctx.Emit([]xdr.ScVal{scval.MustWrapScSymbol("test")}, scval.MustWrapUint64(xdr.Uint64(ctx.Now())))
		}
		return nil
	}}
	s := newSetup(t, rng, ledger.NewMemStore(), prog)
	accs := []ledger.AccountMeta{ledger.WritableAccount(s.alice.Address()), ledger.WritableAccount(s.bob.Address())}
	ix := ledger.Instruction{ProgramID: id, Accounts: accs}

	for m, want := range map[string]error{
		"debit": ledger.ErrExternalDebit,
		"mint":  ledger.ErrUnbalancedTransaction,
		"data":  ledger.ErrExternalDataModified,
	} {
		mode = m
		_, err := s.submit(t, nil, ix)
		require.ErrorIs(t, err, want, m)
	}

	mode = "readonly"
	_, err := s.submit(t, nil, ledger.Instruction{ProgramID: id, Accounts: []ledger.AccountMeta{
		ledger.WritableAccount(s.alice.Address()), ledger.ReadonlyAccount(s.bob.Address()),
	}})
	require.ErrorIs(t, err, ledger.ErrReadonlyModified)

	_, err = s.submit(t, nil, ledger.Instruction{ProgramID: id, Accounts: []ledger.AccountMeta{
		ledger.WritableAccount(s.alice.Address()), ledger.WritableAccount(s.alice.Address()),
	}})
	require.ErrorIs(t, err, ledger.ErrInvalidAccounts)

	mode = "emit"
	r, err := s.submit(t, nil, ix)
	require.NoError(t, err)
	require.Len(t, r.Events, 1)
	ev := r.Events[0]
	require.Equal(t, id.Hash(), *ev.ContractId)
	now, err := scval.UnwrapUint64(ev.Body.V0.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(startTime), now)
}

func TestMetrics(t *testing.T) {
	rng := pkgtest.Prng(t)
	s := newSetup(t, rng, ledger.NewMemStore())

	_, err := s.submit(t, []ledger.Signer{s.alice}, ledger.TransferInstruction(s.alice.Address(), s.bob.Address(), 1))
	require.NoError(t, err)
	_, err = s.ledger.Submit(context.Background(), ledger.NewTransaction())
	require.Error(t, err)

	m := ledger.NewMetrics(nil, "")
	require.NotNil(t, m)
	count, err := testutil.GatherAndCount(s.reg, "test_ledger_airdropped_lamports_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(s.reg, "test_ledger_transactions_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
