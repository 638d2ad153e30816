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
	"context"
	"math/bits"
	"time"

	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"
	"perun.network/go-perun/log"
	"polycry.pt/poly-go/sync"

	"perun.network/perun-paystream-backend/wallet"
	"perun.network/perun-paystream-backend/wallet/types"
)

// Ledger stores accounts and executes transactions one at a time. Each transaction is applied
// completely or not at all.
type Ledger struct {
	log log.Embedding

	mu       sync.Mutex
	store    Store
	clock    Clock
	rent     Rent
	metrics  *Metrics
	programs map[types.Address]Program
	slot     uint64
	lastTime uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithRent(r Rent) Option {
	return func(l *Ledger) { l.rent = r }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithProgram registers p at construction time.
func WithProgram(p Program) Option {
	return func(l *Ledger) { l.programs[p.ID()] = p }
}

// New creates a ledger on top of store. Without options it uses the system clock, the default rent
// and unregistered metrics.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		log:      log.MakeEmbedding(log.Default()),
		store:    store,
		clock:    SystemClock{},
		rent:     DefaultRent,
		programs: map[types.Address]Program{SystemProgramID: systemProgram{}},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(nil, "")
	}
	return l
}

// Register adds a program to the ledger.
func (l *Ledger) Register(p Program) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.programs[p.ID()]; ok {
		return errors.Errorf("program %v already registered", p.ID())
	}
	l.programs[p.ID()] = p
	return nil
}

func (l *Ledger) Rent() Rent {
	return l.rent
}

// MinimumBalance returns the rent exempt balance for dataLen bytes of account data.
func (l *Ledger) MinimumBalance(dataLen int) uint64 {
	return l.rent.MinimumBalance(dataLen)
}

func (l *Ledger) Clock() Clock {
	return l.clock
}

func (l *Ledger) Close() error {
	return l.store.Close()
}

// Account returns the account stored under addr, or the zero account.
func (l *Ledger) Account(ctx context.Context, addr types.Address) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	var acc Account
	err := l.store.View(func(txn Txn) error {
		var err error
		acc, err = loadAccount(txn, addr)
		return err
	})
	return acc, err
}

// ProgramAccounts returns all accounts owned by owner in address order.
func (l *Ledger) ProgramAccounts(ctx context.Context, owner types.Address) ([]KeyedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var accs []KeyedAccount
	err := l.store.View(func(txn Txn) error {
		return forEachAccount(txn, func(ka KeyedAccount) error {
			if ka.Account.Owner == owner && !ka.Account.IsZero() {
				accs = append(accs, ka)
			}
			return nil
		})
	})
	return accs, err
}

// Airdrop mints lamports into addr.
func (l *Ledger) Airdrop(ctx context.Context, addr types.Address, lamports uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.store.Update(func(txn Txn) error {
		acc, err := loadAccount(txn, addr)
		if err != nil {
			return err
		}
		if acc.Lamports+lamports < acc.Lamports {
			return errors.Wrapf(ErrUnbalancedTransaction, "airdrop overflows balance of %v", addr)
		}
		acc.Lamports += lamports
		return storeAccount(txn, addr, acc)
	})
	if err != nil {
		return err
	}
	l.metrics.Airdropped.Add(float64(lamports))
	l.log.Log().WithField("account", addr).Debugf("Airdropped %d lamports", lamports)
	return nil
}

// Genesis writes the given accounts as they are, bypassing all checks.
func (l *Ledger) Genesis(ctx context.Context, accs ...KeyedAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Update(func(txn Txn) error {
		for _, ka := range accs {
			if err := storeAccount(txn, ka.Address, ka.Account); err != nil {
				return err
			}
		}
		return nil
	})
}

// Submit verifies and executes tx. The clock is read once and every instruction sees the same time.
func (l *Ledger) Submit(ctx context.Context, tx *Transaction) (_ *Receipt, err error) {
	start := time.Now()
	defer func() { l.metrics.observeSubmit(start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx == nil || len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	if err := verifySignatures(tx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now < l.lastTime {
		return nil, errors.Wrapf(ErrClockRegressed, "last %d, now %d", l.lastTime, now)
	}
	txLog := l.log.Log().WithField("tx", tx.ID)

	receipt := &Receipt{ID: tx.ID, Time: now}
	err = l.store.Update(func(txn Txn) error {
		if _, err := txn.Get(txKey(tx.ID)); err == nil {
			return ErrDuplicateTransaction
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		state := newTxState(txn)
		for i, ix := range tx.Instructions {
			events, err := l.execute(state, ix, now)
			if err != nil {
				return &InstructionError{Index: i, Err: err}
			}
			receipt.Events = append(receipt.Events, events...)
		}
		if err := state.flush(); err != nil {
			return err
		}
		return txn.Set(txKey(tx.ID), []byte{1})
	})
	if err != nil {
		txLog.Debugf("Transaction rejected: %v", err)
		return nil, err
	}

	l.lastTime = now
	l.slot++
	receipt.Slot = l.slot
	txLog.Debugf("Transaction committed in slot %d with %d instructions and %d events", l.slot, len(tx.Instructions), len(receipt.Events))
	l.notifyCommitted(tx, receipt)
	return receipt, nil
}

// notifyCommitted counts the executed instructions and hands the receipt to every participating
// program that implements Committer, once per program.
func (l *Ledger) notifyCommitted(tx *Transaction, r *Receipt) {
	notified := make(map[types.Address]bool, len(tx.Instructions))
	for _, ix := range tx.Instructions {
		l.metrics.Instructions.WithLabelValues(ix.ProgramID.String()).Inc()
		if notified[ix.ProgramID] {
			continue
		}
		notified[ix.ProgramID] = true
		if c, ok := l.programs[ix.ProgramID].(Committer); ok {
			c.Committed(r)
		}
	}
}

func verifySignatures(tx *Transaction) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	for _, signer := range tx.Signers() {
		sig, ok := tx.signature(signer)
		if !ok {
			return errors.Wrapf(ErrSignatureInvalid, "missing signature of %v", signer)
		}
		valid, err := wallet.Backend.VerifySignature(msg, sig, signer)
		if err != nil {
			return errors.Wrapf(ErrSignatureInvalid, "signature of %v: %v", signer, err)
		}
		if !valid {
			return errors.Wrapf(ErrSignatureInvalid, "signature of %v", signer)
		}
	}
	return nil
}

// txState caches the accounts touched by a transaction until it commits.
type txState struct {
	txn      Txn
	accounts map[types.Address]Account
	loaded   map[types.Address]Account
}

func newTxState(txn Txn) *txState {
	return &txState{
		txn:      txn,
		accounts: make(map[types.Address]Account),
		loaded:   make(map[types.Address]Account),
	}
}

func (s *txState) get(addr types.Address) (Account, error) {
	if acc, ok := s.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	acc, err := loadAccount(s.txn, addr)
	if err != nil {
		return Account{}, err
	}
	s.loaded[addr] = acc.Clone()
	s.accounts[addr] = acc.Clone()
	return acc, nil
}

func (s *txState) flush() error {
	for addr, acc := range s.accounts {
		if acc.Equal(s.loaded[addr]) {
			continue
		}
		if err := storeAccount(s.txn, addr, acc); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) execute(state *txState, ix Instruction, now uint64) ([]xdr.ContractEvent, error) {
	prog, ok := l.programs[ix.ProgramID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProgram, "%v", ix.ProgramID)
	}
	seen := make(map[types.Address]bool, len(ix.Accounts))
	infos := make([]*AccountInfo, len(ix.Accounts))
	before := make([]Account, len(ix.Accounts))
	for i, m := range ix.Accounts {
		if seen[m.Address] {
			return nil, errors.Wrapf(ErrInvalidAccounts, "account %v referenced twice", m.Address)
		}
		seen[m.Address] = true
		acc, err := state.get(m.Address)
		if err != nil {
			return nil, err
		}
		before[i] = acc.Clone()
		infos[i] = &AccountInfo{Address: m.Address, IsSigner: m.IsSigner, IsWritable: m.IsWritable, Account: &acc}
	}

	ictx := &InvokeContext{programID: prog.ID(), accounts: infos, now: now, rent: l.rent}
	if err := prog.Process(ictx, ix.Data); err != nil {
		return nil, err
	}
	if err := l.verifyChanges(prog.ID(), before, infos); err != nil {
		return nil, err
	}
	for _, info := range infos {
		state.accounts[info.Address] = info.Account.Clone()
	}
	return ictx.events, nil
}

// verifyChanges enforces the ownership rules on everything an instruction changed.
func (l *Ledger) verifyChanges(programID types.Address, before []Account, infos []*AccountInfo) error {
	var sumBefore, sumAfter [2]uint64
	for i, info := range infos {
		pre, post := before[i], *info.Account
		sumBefore = add128(sumBefore, pre.Lamports)
		sumAfter = add128(sumAfter, post.Lamports)
		if pre.Equal(post) {
			continue
		}
		if !info.IsWritable {
			return errors.Wrapf(ErrReadonlyModified, "%v", info.Address)
		}
		if post.Lamports < pre.Lamports && pre.Owner != programID {
			return errors.Wrapf(ErrExternalDebit, "%v", info.Address)
		}
		if !bytes.Equal(pre.Data, post.Data) && pre.Owner != programID {
			return errors.Wrapf(ErrExternalDataModified, "%v", info.Address)
		}
		if pre.Owner != post.Owner && (pre.Owner != programID || len(pre.Data) != 0) {
			return errors.Wrapf(ErrExternalDataModified, "owner change of %v", info.Address)
		}
		if len(post.Data) > 0 && !l.rent.IsExempt(post.Lamports, len(post.Data)) {
			return errors.Wrapf(ErrRentViolation, "%v holds %d, needs %d", info.Address, post.Lamports, l.rent.MinimumBalance(len(post.Data)))
		}
	}
	if sumBefore != sumAfter {
		return ErrUnbalancedTransaction
	}
	return nil
}

func add128(acc [2]uint64, v uint64) [2]uint64 {
	lo, carry := bits.Add64(acc[1], v, 0)
	return [2]uint64{acc[0] + carry, lo}
}
