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

package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-paystream-backend/client"
	paytest "perun.network/perun-paystream-backend/payment/test"
	"perun.network/perun-paystream-backend/stream"
	wtest "perun.network/perun-paystream-backend/wallet/test"
	"perun.network/perun-paystream-backend/wire"
)

func TestClientConfig(t *testing.T) {
	cfg := client.ClientConfig{}
	_, err := client.NewStreamClient(cfg)
	require.ErrorIs(t, err, client.ErrMissingLedger)

	set := paytest.NewTestSetup(t)
	cfg.SetLedger(set.GetLedger())
	_, err = client.NewStreamClient(cfg)
	require.ErrorIs(t, err, client.ErrMissingAccount)
}

func TestCreateWithdrawCancel(t *testing.T) {
	ctx := context.Background()
	set := paytest.NewTestSetup(t)
	payer, payee := set.NewStreamClient(0), set.NewStreamClient(1)

	addr, err := payer.CreateStream(ctx, payee.Address(), 600, 60)
	require.NoError(t, err)
	rec, err := payee.GetStream(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, wire.Stream{
		Status:           wire.StatusActive,
		Payee:            payee.Address(),
		Payer:            payer.Address(),
		TotalAmount:      600,
		RemainingBalance: 600,
		Duration:         60,
		StartTime:        paytest.StartTime,
	}, rec)

	set.GetClock().Advance(20)
	payout, err := payee.Withdraw(ctx, addr, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(50), payout)
	payout, err = payee.Withdraw(ctx, addr, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(150), payout)

	_, err = payer.Withdraw(ctx, addr, 1)
	require.ErrorIs(t, err, stream.ErrInvalidPayee)

	set.GetClock().Advance(10)
	settlement, err := payee.Cancel(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(100), settlement.ToPayee)
	require.Equal(t, uint64(300), settlement.ToPayer)

	balance, err := payee.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(paytest.InitialBalance+300), balance)
}

func TestCancelByOutsider(t *testing.T) {
	ctx := context.Background()
	set := paytest.NewTestSetup(t)
	payer := set.NewStreamClient(0)

	addr, err := payer.CreateStream(ctx, wtest.NewRandomAddress(pkgtest.Prng(t)), 100, 10)
	require.NoError(t, err)

	other := set.NewStreamClient(1)
	_, err = other.Cancel(ctx, addr)
	require.ErrorIs(t, err, client.ErrNotStreamMember)

	_, err = other.GetStream(ctx, other.Address())
	require.ErrorIs(t, err, client.ErrNotAStream)
}

func TestStreamsAndTransfer(t *testing.T) {
	ctx := context.Background()
	set := paytest.NewTestSetup(t)
	a, b := set.NewStreamClient(0), set.NewStreamClient(1)

	first, err := a.CreateStream(ctx, b.Address(), 100, 10)
	require.NoError(t, err)
	set.GetClock().Advance(5)
	second, err := b.CreateStream(ctx, a.Address(), 200, 10)
	require.NoError(t, err)

	for _, c := range []*client.StreamClient{a, b} {
		infos, err := c.Streams(ctx, c.Address())
		require.NoError(t, err)
		require.Len(t, infos, 2)
		require.Equal(t, first, infos[0].Address)
		require.Equal(t, second, infos[1].Address)
		require.Equal(t, set.Reserve()+200, infos[1].Balance)
	}
	none, err := client.ListStreams(ctx, set.GetLedger(), a.ProgramID(), wtest.NewRandomAddress(pkgtest.Prng(t)))
	require.NoError(t, err)
	require.Empty(t, none)

	before, err := b.Balance(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Transfer(ctx, b.Address(), 42))
	after, err := b.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, before+42, after)
}
