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

package client

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/stellar/go/keypair"
	"perun.network/go-perun/log"
	"polycry.pt/poly-go/sync"

	"perun.network/perun-paystream-backend/event"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/processor"
	"perun.network/perun-paystream-backend/stream"
	"perun.network/perun-paystream-backend/wallet"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

var (
	ErrNotAStream      = errors.New("account is not a paystream account")
	ErrMissingLedger   = errors.New("client config has no ledger")
	ErrMissingAccount  = errors.New("client config has no account")
	ErrNotStreamMember = errors.New("account is neither payee nor payer of the stream")
)

// ClientConfig collects what a StreamClient needs. The program id defaults to
// processor.DefaultProgramID and the sender to a TxSender of the account.
type ClientConfig struct {
	ledger    Ledger
	account   *wallet.Account
	programID types.Address
	sender    Sender
}

func (cc *ClientConfig) SetLedger(l Ledger) {
	cc.ledger = l
}

func (cc *ClientConfig) SetAccount(acc *wallet.Account) {
	cc.account = acc
}

func (cc *ClientConfig) SetProgramID(id types.Address) {
	cc.programID = id
}

func (cc *ClientConfig) SetSender(s Sender) {
	cc.sender = s
}

// StreamClient creates and settles payment streams for one account.
type StreamClient struct {
	log log.Embedding

	mu        sync.Mutex
	ledger    Ledger
	account   *wallet.Account
	programID types.Address
	sender    Sender
}

// StreamInfo is a stream account as found on the ledger.
type StreamInfo struct {
	Address types.Address
	Record  wire.Stream
	Balance uint64
}

func NewStreamClient(cfg ClientConfig) (*StreamClient, error) {
	if cfg.ledger == nil {
		return nil, ErrMissingLedger
	}
	if cfg.account == nil {
		return nil, ErrMissingAccount
	}
	c := &StreamClient{
		log:       log.MakeEmbedding(log.WithField("account", cfg.account.Address())),
		ledger:    cfg.ledger,
		account:   cfg.account,
		programID: cfg.programID,
		sender:    cfg.sender,
	}
	if c.programID.IsZero() {
		c.programID = processor.DefaultProgramID
	}
	if c.sender == nil {
		c.sender = NewSender(cfg.ledger, cfg.account)
	}
	return c, nil
}

func (c *StreamClient) Address() types.Address {
	return c.account.Address()
}

func (c *StreamClient) ProgramID() types.Address {
	return c.programID
}

// CreateStream escrows amount for payee, released linearly over duration seconds. It returns the
// address of the new stream account.
func (c *StreamClient) CreateStream(ctx context.Context, payee types.Address, amount, duration uint64) (types.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kp, err := keypair.Random()
	if err != nil {
		return types.Address{}, err
	}
	streamAcc, err := wallet.NewAccount(kp)
	if err != nil {
		return types.Address{}, err
	}
	args := wire.CreateInstruction{Payee: payee, Payer: c.Address(), Amount: amount, Duration: duration}
	ixs, err := buildCreateStreamTx(c.programID, c.Address(), streamAcc.Address(), args, c.ledger.MinimumBalance(wire.StreamSize))
	if err != nil {
		return types.Address{}, err
	}
	evs, err := c.invoke(ctx, []ledger.Signer{streamAcc}, ixs...)
	if err != nil {
		return types.Address{}, err
	}
	if err := event.AssertCreatedEvent(evs); err != nil {
		return types.Address{}, err
	}
	c.log.Log().WithField("stream", streamAcc.Address()).Infof("Created stream of %d to %v over %ds", amount, payee, duration)
	return streamAcc.Address(), nil
}

// Withdraw requests up to amount from a stream this account receives and returns what was paid out.
func (c *StreamClient) Withdraw(ctx context.Context, streamAddr types.Address, amount uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evs, err := c.invoke(ctx, nil, buildWithdrawTx(c.programID, streamAddr, c.Address(), amount)...)
	if err != nil {
		return 0, err
	}
	ev, ok := event.Find(evs, event.EventTypeWithdrawn)
	if !ok {
		return 0, event.ErrNoWithdrawEvent
	}
	c.log.Log().WithField("stream", streamAddr).Debugf("Withdrew %d", ev.Payout)
	return ev.Payout, nil
}

// Cancel terminates a stream this account pays or receives.
func (c *StreamClient) Cancel(ctx context.Context, streamAddr types.Address) (stream.Settlement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.getStream(ctx, streamAddr)
	if err != nil {
		return stream.Settlement{}, err
	}
	if rec.Payee != c.Address() && rec.Payer != c.Address() {
		return stream.Settlement{}, ErrNotStreamMember
	}
	evs, err := c.invoke(ctx, nil, buildCancelTx(c.programID, streamAddr, rec, c.Address())...)
	if err != nil {
		return stream.Settlement{}, err
	}
	ev, ok := event.Find(evs, event.EventTypeCancelled)
	if !ok {
		return stream.Settlement{}, event.ErrNoCancelEvent
	}
	c.log.Log().WithField("stream", streamAddr).Infof("Cancelled: %d to payee, %d to payer", ev.Payout, ev.Refund)
	return stream.Settlement{Record: ev.Record, ToPayee: ev.Payout, ToPayer: ev.Refund}, nil
}

// Transfer sends lamports to another account.
func (c *StreamClient) Transfer(ctx context.Context, to types.Address, lamports uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.sender.SignSendTx(ctx, ledger.NewTransaction(ledger.TransferInstruction(c.Address(), to, lamports)))
	return err
}

func (c *StreamClient) GetStream(ctx context.Context, streamAddr types.Address) (wire.Stream, error) {
	return c.getStream(ctx, streamAddr)
}

func (c *StreamClient) getStream(ctx context.Context, streamAddr types.Address) (wire.Stream, error) {
	acc, err := c.ledger.Account(ctx, streamAddr)
	if err != nil {
		return wire.Stream{}, err
	}
	if acc.Owner != c.programID {
		return wire.Stream{}, errors.Wrapf(ErrNotAStream, "%v", streamAddr)
	}
	return wire.StreamFromBytes(acc.Data)
}

// Balance returns the lamports held by the client's account.
func (c *StreamClient) Balance(ctx context.Context) (uint64, error) {
	acc, err := c.ledger.Account(ctx, c.Address())
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// Streams lists all streams in which party is payee or payer, oldest first.
func (c *StreamClient) Streams(ctx context.Context, party types.Address) ([]StreamInfo, error) {
	return ListStreams(ctx, c.ledger, c.programID, party)
}

// ListStreams lists the streams of party owned by programID, oldest first.
func ListStreams(ctx context.Context, l Ledger, programID, party types.Address) ([]StreamInfo, error) {
	accs, err := l.ProgramAccounts(ctx, programID)
	if err != nil {
		return nil, err
	}
	var infos []StreamInfo
	for _, ka := range accs {
		rec, err := wire.StreamFromBytes(ka.Account.Data)
		if err != nil {
			log.WithField("stream", ka.Address).Warnf("Skipping undecodable stream account: %v", err)
			continue
		}
		if !rec.IsInitialized() || (rec.Payee != party && rec.Payer != party) {
			continue
		}
		infos = append(infos, StreamInfo{Address: ka.Address, Record: rec, Balance: ka.Account.Lamports})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Record.StartTime < infos[j].Record.StartTime
	})
	return infos, nil
}
