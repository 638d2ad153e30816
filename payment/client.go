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

package payment

import (
	"context"

	"perun.network/perun-paystream-backend/client"
	"perun.network/perun-paystream-backend/wallet"
	"perun.network/perun-paystream-backend/wallet/types"
)

// PaymentClient is a party paying or receiving streams.
type PaymentClient struct {
	client  *client.StreamClient
	account *wallet.Account
}

// SetupPaymentClient creates a client acting for acc, which must be held by w.
func SetupPaymentClient(l client.Ledger, w *wallet.EphemeralWallet, acc *wallet.Account, programID types.Address) (*PaymentClient, error) {
	unlocked, err := w.Unlock(acc.Address())
	if err != nil {
		return nil, err
	}
	cfg := client.ClientConfig{}
	cfg.SetLedger(l)
	cfg.SetAccount(unlocked)
	cfg.SetProgramID(programID)
	c, err := client.NewStreamClient(cfg)
	if err != nil {
		return nil, err
	}
	return &PaymentClient{client: c, account: unlocked}, nil
}

func (c *PaymentClient) Address() types.Address {
	return c.account.Address()
}

// OpenStream pays amount to payee linearly over duration seconds.
func (c *PaymentClient) OpenStream(ctx context.Context, payee types.Address, amount, duration uint64) (*PaymentStream, error) {
	addr, err := c.client.CreateStream(ctx, payee, amount, duration)
	if err != nil {
		return nil, err
	}
	return newPaymentStream(c, addr), nil
}

// Stream attaches to an existing stream account.
func (c *PaymentClient) Stream(addr types.Address) *PaymentStream {
	return newPaymentStream(c, addr)
}

// IncomingStreams returns the streams paying this client.
func (c *PaymentClient) IncomingStreams(ctx context.Context) ([]*PaymentStream, error) {
	return c.streams(ctx, func(info client.StreamInfo) bool { return info.Record.Payee == c.Address() })
}

// OutgoingStreams returns the streams this client pays.
func (c *PaymentClient) OutgoingStreams(ctx context.Context) ([]*PaymentStream, error) {
	return c.streams(ctx, func(info client.StreamInfo) bool { return info.Record.Payer == c.Address() })
}

func (c *PaymentClient) streams(ctx context.Context, keep func(client.StreamInfo) bool) ([]*PaymentStream, error) {
	infos, err := c.client.Streams(ctx, c.Address())
	if err != nil {
		return nil, err
	}
	var out []*PaymentStream
	for _, info := range infos {
		if keep(info) {
			out = append(out, newPaymentStream(c, info.Address))
		}
	}
	return out, nil
}

// Balance returns the client's spendable lamports.
func (c *PaymentClient) Balance(ctx context.Context) (uint64, error) {
	return c.client.Balance(ctx)
}
