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

package processor

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"
	"perun.network/go-perun/log"

	"perun.network/perun-paystream-backend/event"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/stream"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

// Program is the paystream program. It binds the positional accounts of a call to the typed
// contexts of the stream engine and carries out the resulting settlement.
type Program struct {
	log log.Embedding

	id      types.Address
	metrics *Metrics
}

// NewProgram creates the program registered under id. metrics may be nil.
func NewProgram(id types.Address, metrics *Metrics) *Program {
	if metrics == nil {
		metrics = NewMetrics(nil, "")
	}
	return &Program{
		log:     log.MakeEmbedding(log.Default()),
		id:      id,
		metrics: metrics,
	}
}

func (p *Program) ID() types.Address {
	return p.id
}

// Process decodes data and runs the call against the accounts of ctx.
func (p *Program) Process(ctx *ledger.InvokeContext, data []byte) error {
	ix, err := wire.DecodeInstruction(data)
	if err != nil {
		p.metrics.failed(KindUnknown, err)
		return err
	}
	switch ix := ix.(type) {
	case wire.CreateInstruction:
		err = p.create(ctx, ix)
	case wire.WithdrawInstruction:
		err = p.withdraw(ctx, ix)
	case wire.CancelInstruction:
		err = p.cancel(ctx)
	default:
		err = errors.Wrapf(stream.ErrMalformedCall, "unsupported instruction %T", ix)
	}
	if err != nil {
		p.metrics.failed(ix.Tag().String(), err)
		p.log.Log().WithField("op", ix.Tag()).Debugf("Call failed: %v", err)
	}
	return err
}

// Committed records the calls of a committed transaction from the events the program emitted.
func (p *Program) Committed(r *ledger.Receipt) {
	id := p.id.Hash()
	var own []xdr.ContractEvent
	for _, ev := range r.Events {
		if ev.ContractId != nil && *ev.ContractId == id {
			own = append(own, ev)
		}
	}
	evs, err := event.DecodeEvents(own)
	if err != nil {
		p.log.Log().WithField("tx", r.ID).Warnf("Decoding committed events: %v", err)
		return
	}
	for _, ev := range evs {
		p.metrics.committed(ev)
	}
}

// escrowAccount is the bound stream account.
type escrowAccount struct {
	info   *ledger.AccountInfo
	record wire.Stream
	escrow stream.Escrow
}

// bind checks that ctx carries n accounts and that the first one is a writable stream account
// owned by the program holding a decodable record.
func (p *Program) bind(ctx *ledger.InvokeContext, n int) (*escrowAccount, error) {
	accs := ctx.Accounts()
	if len(accs) < n {
		return nil, errors.Wrapf(stream.ErrMissingAccount, "expected %d accounts, got %d", n, len(accs))
	}
	info := accs[0]
	if info.Account.Owner != p.id {
		return nil, errors.Wrapf(stream.ErrNotOwned, "%v is owned by %v", info.Address, info.Account.Owner)
	}
	if !info.IsWritable {
		return nil, errors.Wrapf(stream.ErrNotWritable, "stream account %v", info.Address)
	}
	rec, err := wire.StreamFromBytes(info.Account.Data)
	if err != nil {
		return nil, errors.Wrap(stream.ErrInvalidAccountData, err.Error())
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.Wrap(stream.ErrInvalidAccountData, err.Error())
	}
	return &escrowAccount{
		info:   info,
		record: rec,
		escrow: stream.Escrow{
			Balance: info.Account.Lamports,
			Reserve: ctx.Rent().MinimumBalance(len(info.Account.Data)),
		},
	}, nil
}

func requireWritable(infos ...*ledger.AccountInfo) error {
	for _, info := range infos {
		if !info.IsWritable {
			return errors.Wrapf(stream.ErrNotWritable, "%v", info.Address)
		}
	}
	return nil
}

// checkParties rejects parties that could never be listed next to the stream account in a
// withdraw or cancel call, since an instruction may reference an account only once.
func checkParties(streamAddr, payee, payer types.Address) error {
	switch {
	case payee == streamAddr:
		return errors.Wrap(stream.ErrInvalidPayee, "payee is the stream account")
	case payer == streamAddr:
		return errors.Wrap(stream.ErrInvalidPayer, "payer is the stream account")
	case payee == payer:
		return errors.Wrap(stream.ErrInvalidPayee, "payee and payer are the same account")
	}
	return nil
}

func (p *Program) create(ctx *ledger.InvokeContext, ix wire.CreateInstruction) error {
	acc, err := p.bind(ctx, 1)
	if err != nil {
		return err
	}
	if err := checkParties(acc.info.Address, ix.Payee, ix.Payer); err != nil {
		return err
	}
	s, err := stream.Apply(stream.CreateContext{
		Record:   acc.record,
		Escrow:   acc.escrow,
		Now:      ctx.Now(),
		Payee:    ix.Payee,
		Payer:    ix.Payer,
		Amount:   ix.Amount,
		Duration: ix.Duration,
	})
	if err != nil {
		return err
	}
	if err := p.commit(ctx, acc, s, event.EventTypeCreated); err != nil {
		return err
	}
	p.log.Log().WithField("stream", acc.info.Address).Debugf("Created stream of %d over %ds", ix.Amount, ix.Duration)
	return nil
}

func (p *Program) withdraw(ctx *ledger.InvokeContext, ix wire.WithdrawInstruction) error {
	acc, err := p.bind(ctx, 2)
	if err != nil {
		return err
	}
	payee := ctx.Accounts()[1]
	if !payee.IsSigner {
		return errors.Wrapf(stream.ErrMissingSignature, "payee %v", payee.Address)
	}
	if err := requireWritable(payee); err != nil {
		return err
	}
	s, err := stream.Apply(stream.WithdrawContext{
		Record: acc.record,
		Escrow: acc.escrow,
		Now:    ctx.Now(),
		Payee:  payee.Address,
		Amount: ix.Amount,
	})
	if err != nil {
		return err
	}
	if err := ledger.Transfer(acc.info, payee, s.ToPayee); err != nil {
		return errors.Wrap(stream.ErrConsistencyFault, err.Error())
	}
	if err := p.commit(ctx, acc, s, event.EventTypeWithdrawn); err != nil {
		return err
	}
	if s.Record.IsCompleted() {
		if err := p.emit(ctx, acc, s, event.EventTypeCompleted); err != nil {
			return err
		}
	}
	p.log.Log().WithField("stream", acc.info.Address).Debugf("Withdrew %d of requested %d", s.ToPayee, ix.Amount)
	return nil
}

func (p *Program) cancel(ctx *ledger.InvokeContext) error {
	acc, err := p.bind(ctx, 3)
	if err != nil {
		return err
	}
	payee, payer := ctx.Accounts()[1], ctx.Accounts()[2]
	if err := requireWritable(payee, payer); err != nil {
		return err
	}
	s, err := stream.Apply(stream.CancelContext{
		Record:      acc.record,
		Escrow:      acc.escrow,
		Now:         ctx.Now(),
		Payee:       payee.Address,
		Payer:       payer.Address,
		PayeeSigned: payee.IsSigner,
		PayerSigned: payer.IsSigner,
	})
	if err != nil {
		return err
	}
	if err := ledger.Transfer(acc.info, payee, s.ToPayee); err != nil {
		return errors.Wrap(stream.ErrConsistencyFault, err.Error())
	}
	if err := ledger.Transfer(acc.info, payer, s.ToPayer); err != nil {
		return errors.Wrap(stream.ErrConsistencyFault, err.Error())
	}
	if err := p.commit(ctx, acc, s, event.EventTypeCancelled); err != nil {
		return err
	}
	p.log.Log().WithField("stream", acc.info.Address).Debugf("Cancelled: %d to payee, %d to payer", s.ToPayee, s.ToPayer)
	return nil
}

// commit writes the settled record back into the stream account and emits evType.
func (p *Program) commit(ctx *ledger.InvokeContext, acc *escrowAccount, s stream.Settlement, evType event.EventType) error {
	data, err := s.Record.MarshalBinary()
	if err != nil {
		return errors.Wrap(stream.ErrConsistencyFault, err.Error())
	}
	acc.info.Account.Data = data
	return p.emit(ctx, acc, s, evType)
}

func (p *Program) emit(ctx *ledger.InvokeContext, acc *escrowAccount, s stream.Settlement, evType event.EventType) error {
	ev := event.StreamEvent{
		Type:   evType,
		Stream: acc.info.Address,
		Record: s.Record,
		Payout: s.ToPayee,
		Refund: s.ToPayer,
	}
	return ev.Emit(ctx)
}
