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

package main

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"perun.network/perun-paystream-backend/config"
)

func TestValidateDemoFlags(t *testing.T) {
	require.NoError(t, validateDemoFlags(1000, 3600, 900))
	require.NoError(t, validateDemoFlags(1000, 3600, 1799))

	require.Error(t, validateDemoFlags(0, 3600, 900))
	require.Error(t, validateDemoFlags(1000, 3600, 0))
	require.Error(t, validateDemoFlags(1000, 3600, 1800))
	require.Error(t, validateDemoFlags(1000, 60, 60))
	require.Error(t, validateDemoFlags(1000, 60, 100))
	require.Error(t, validateDemoFlags(1000, math.MaxUint64, math.MaxUint64/2+1))
}

func TestDemoInMemory(t *testing.T) {
	cfg = config.Default()
	cfg.Ledger.InMemory = true
	demoAmount, demoDuration, demoElapsed = 1000, 100, 10
	t.Cleanup(func() { demoAmount, demoDuration, demoElapsed = 1_000_000, 3600, 900 })

	var out bytes.Buffer
	require.NoError(t, runDemo(context.Background(), &out))
	require.Contains(t, out.String(), "claimed 100 after 10s")
	require.Contains(t, out.String(), "cancelled: 100 to payee, 800 refunded")
	require.Contains(t, out.String(), "paystream_paystream_operations_total{kind=cancel,outcome=ok} 1")
}

func TestDemoRejectsCompletingSteps(t *testing.T) {
	cfg = config.Default()
	cfg.Ledger.InMemory = true
	demoAmount, demoDuration, demoElapsed = 1000, 60, 60
	t.Cleanup(func() { demoAmount, demoDuration, demoElapsed = 1_000_000, 3600, 900 })

	var out bytes.Buffer
	require.Error(t, runDemo(context.Background(), &out))
	require.Empty(t, out.String())
}
