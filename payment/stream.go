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
	"math"

	"perun.network/perun-paystream-backend/stream"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

// PaymentStream is a stream seen from one of its parties.
type PaymentStream struct {
	c    *PaymentClient
	addr types.Address
}

func newPaymentStream(c *PaymentClient, addr types.Address) *PaymentStream {
	return &PaymentStream{c: c, addr: addr}
}

func (s *PaymentStream) Address() types.Address {
	return s.addr
}

// Claim withdraws everything that is releasable right now and returns the payout.
func (s *PaymentStream) Claim(ctx context.Context) (uint64, error) {
	return s.Withdraw(ctx, math.MaxUint64)
}

// Withdraw withdraws up to amount.
func (s *PaymentStream) Withdraw(ctx context.Context, amount uint64) (uint64, error) {
	return s.c.client.Withdraw(ctx, s.addr, amount)
}

// Cancel terminates the stream, settling the vested share to the payee and the rest to the payer.
func (s *PaymentStream) Cancel(ctx context.Context) (stream.Settlement, error) {
	return s.c.client.Cancel(ctx, s.addr)
}

// Status returns the current stream record.
func (s *PaymentStream) Status(ctx context.Context) (wire.Stream, error) {
	return s.c.client.GetStream(ctx, s.addr)
}

// Releasable returns what a withdrawal at time now would pay out.
func (s *PaymentStream) Releasable(ctx context.Context, now uint64) (uint64, error) {
	rec, err := s.Status(ctx)
	if err != nil {
		return 0, err
	}
	if !rec.IsActive() {
		return 0, nil
	}
	return stream.Releasable(rec, now)
}
