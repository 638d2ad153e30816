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

	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/event"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/wallet/types"
)

// Ledger is the part of the host ledger a client talks to.
type Ledger interface {
	Submit(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error)
	Account(ctx context.Context, addr types.Address) (ledger.Account, error)
	ProgramAccounts(ctx context.Context, owner types.Address) ([]ledger.KeyedAccount, error)
	MinimumBalance(dataLen int) uint64
}

// Sender signs and submits transactions on behalf of one account.
type Sender interface {
	SignSendTx(ctx context.Context, tx *ledger.Transaction, cosigners ...ledger.Signer) (*ledger.Receipt, error)
}

type TxSender struct {
	ledger Ledger
	signer ledger.Signer
}

func NewSender(l Ledger, signer ledger.Signer) Sender {
	return &TxSender{ledger: l, signer: signer}
}

// SignSendTx signs tx with the sender's key and all cosigners and submits it.
func (s *TxSender) SignSendTx(ctx context.Context, tx *ledger.Transaction, cosigners ...ledger.Signer) (*ledger.Receipt, error) {
	if err := tx.Sign(append([]ledger.Signer{s.signer}, cosigners...)...); err != nil {
		return nil, err
	}
	return s.ledger.Submit(ctx, tx)
}

// invoke sends ixs and decodes the paystream events of the receipt.
func (c *StreamClient) invoke(ctx context.Context, cosigners []ledger.Signer, ixs ...ledger.Instruction) ([]event.StreamEvent, error) {
	receipt, err := c.sender.SignSendTx(ctx, ledger.NewTransaction(ixs...), cosigners...)
	if err != nil {
		return nil, err
	}
	evs, err := event.DecodeEvents(receipt.Events)
	if err != nil {
		return nil, errors.WithMessage(err, "decoding receipt events")
	}
	return evs, nil
}
