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
	"github.com/prometheus/client_golang/prometheus"

	"perun.network/perun-paystream-backend/event"
	"perun.network/perun-paystream-backend/stream"
	"perun.network/perun-paystream-backend/wire"
)

const (
	OutcomeOK   = "ok"
	OutcomeHost = "host"
	KindUnknown = "unknown"
)

type Metrics struct {
	Operations *prometheus.CounterVec
	PaidOut    prometheus.Counter
	Refunded   prometheus.Counter
}

// NewMetrics creates the program metrics and registers them with reg if it is not nil.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paystream",
			Name:      "operations_total",
			Help:      "Paystream calls by kind and outcome. Successful calls count once their transaction commits.",
		}, []string{"kind", "outcome"}),
		PaidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paystream",
			Name:      "paid_lamports_total",
			Help:      "Lamports released to payees.",
		}),
		Refunded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paystream",
			Name:      "refunded_lamports_total",
			Help:      "Lamports returned to payers on cancellation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.PaidOut, m.Refunded)
	}
	return m
}

// failed counts a rejected call. A failing call aborts its transaction, so the outcome is final.
func (m *Metrics) failed(kind string, err error) {
	outcome := OutcomeHost
	if code, ok := stream.Code(err); ok {
		outcome = code.String()
	}
	m.Operations.WithLabelValues(kind, outcome).Inc()
}

// committed counts a call of a committed transaction and the lamports it settled.
func (m *Metrics) committed(ev event.StreamEvent) {
	var kind wire.InstructionTag
	switch ev.Type {
	case event.EventTypeCreated:
		kind = wire.TagCreate
	case event.EventTypeWithdrawn:
		kind = wire.TagWithdraw
	case event.EventTypeCancelled:
		kind = wire.TagCancel
	default:
		return
	}
	m.Operations.WithLabelValues(kind.String(), OutcomeOK).Inc()
	m.PaidOut.Add(float64(ev.Payout))
	m.Refunded.Add(float64(ev.Refund))
}
