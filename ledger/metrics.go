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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
)

// Metrics observes ledger activity.
type Metrics struct {
	Transactions *prometheus.CounterVec
	Instructions *prometheus.CounterVec
	Airdropped   prometheus.Counter
	SubmitTime   prometheus.Histogram
}

// NewMetrics creates the ledger metrics and registers them with reg if it is not nil.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Submitted transactions by outcome.",
		}, []string{"outcome"}),
		Instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "instructions_total",
			Help:      "Executed instructions by program.",
		}, []string{"program"}),
		Airdropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "airdropped_lamports_total",
			Help:      "Lamports minted by airdrops.",
		}),
		SubmitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "submit_duration_seconds",
			Help:      "Duration of transaction submission.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transactions, m.Instructions, m.Airdropped, m.SubmitTime)
	}
	return m
}

func (m *Metrics) observeSubmit(start time.Time, err error) {
	outcome := OutcomeCommitted
	if err != nil {
		outcome = OutcomeRejected
	}
	m.Transactions.WithLabelValues(outcome).Inc()
	m.SubmitTime.Observe(time.Since(start).Seconds())
}
