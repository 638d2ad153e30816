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

package test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-paystream-backend/client"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/processor"
	"perun.network/perun-paystream-backend/util"
	"perun.network/perun-paystream-backend/wallet"
	"perun.network/perun-paystream-backend/wire"
)

const (
	StartTime      = 1_700_000_000
	InitialBalance = 1_000_000_000
	NumParties     = 2
)

// Setup is an in-memory ledger with the paystream program deployed and funded parties.
type Setup struct {
	t        *testing.T
	ledger   *ledger.Ledger
	clock    *ledger.ManualClock
	registry *prometheus.Registry
	metrics  *processor.Metrics
	wallets  []*wallet.EphemeralWallet
	accounts []*wallet.Account
}

func NewTestSetup(t *testing.T) *Setup {
	t.Helper()
	rng := pkgtest.Prng(t)
	s := &Setup{
		t:        t,
		clock:    ledger.NewManualClock(StartTime),
		registry: prometheus.NewRegistry(),
	}
	s.ledger = ledger.New(ledger.NewMemStore(),
		ledger.WithClock(s.clock),
		ledger.WithMetrics(ledger.NewMetrics(s.registry, "test")),
	)
	t.Cleanup(func() { require.NoError(t, s.ledger.Close()) })

	s.metrics = processor.NewMetrics(s.registry, "test")
	_, err := util.Deploy(s.ledger, processor.DefaultProgramID, s.metrics)
	require.NoError(t, err)

	for i := 0; i < NumParties; i++ {
		w := wallet.NewEphemeralWallet()
		acc, _, err := w.AddNewAccount(rng)
		require.NoError(t, err)
		s.wallets = append(s.wallets, w)
		s.accounts = append(s.accounts, acc)
		require.NoError(t, util.FundAccounts(context.Background(), s.ledger, InitialBalance, acc.Address()))
	}
	return s
}

func (s *Setup) GetLedger() *ledger.Ledger             { return s.ledger }
func (s *Setup) GetClock() *ledger.ManualClock         { return s.clock }
func (s *Setup) GetRegistry() *prometheus.Registry     { return s.registry }
func (s *Setup) GetMetrics() *processor.Metrics        { return s.metrics }
func (s *Setup) GetWallets() []*wallet.EphemeralWallet { return s.wallets }
func (s *Setup) GetAccounts() []*wallet.Account        { return s.accounts }

// NewStreamClient returns a client acting for the i-th account.
func (s *Setup) NewStreamClient(i int) *client.StreamClient {
	s.t.Helper()
	cfg := client.ClientConfig{}
	cfg.SetLedger(s.ledger)
	cfg.SetAccount(s.accounts[i])
	c, err := client.NewStreamClient(cfg)
	require.NoError(s.t, err)
	return c
}

// Reserve is the minimum balance of a stream account.
func (s *Setup) Reserve() uint64 {
	return s.ledger.MinimumBalance(wire.StreamSize)
}
