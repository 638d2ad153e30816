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

package util

import (
	"github.com/prometheus/client_golang/prometheus"

	"perun.network/perun-paystream-backend/config"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/processor"
	"perun.network/perun-paystream-backend/wallet/types"
)

// Deploy registers a paystream program under id on l.
func Deploy(l *ledger.Ledger, id types.Address, metrics *processor.Metrics) (*processor.Program, error) {
	prog := processor.NewProgram(id, metrics)
	if err := l.Register(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// OpenLedger opens the store configured in cfg and returns a ledger with the paystream program
// deployed under processor.DefaultProgramID. Metrics are registered with reg if it is not nil.
func OpenLedger(cfg config.LedgerConfig, namespace string, reg prometheus.Registerer, opts ...ledger.Option) (*ledger.Ledger, error) {
	var store ledger.Store
	if cfg.InMemory {
		store = ledger.NewMemStore()
	} else {
		bs, err := ledger.OpenBadgerStore(cfg.DataDir, false)
		if err != nil {
			return nil, err
		}
		store = bs
	}
	opts = append([]ledger.Option{
		ledger.WithRent(cfg.Rent()),
		ledger.WithMetrics(ledger.NewMetrics(reg, namespace)),
	}, opts...)
	l := ledger.New(store, opts...)
	if _, err := Deploy(l, processor.DefaultProgramID, processor.NewMetrics(reg, namespace)); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}
