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
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stellar/go/keypair"

	"perun.network/perun-paystream-backend/client"
	"perun.network/perun-paystream-backend/ledger"
	"perun.network/perun-paystream-backend/payment"
	"perun.network/perun-paystream-backend/processor"
	"perun.network/perun-paystream-backend/stream"
	"perun.network/perun-paystream-backend/util"
	"perun.network/perun-paystream-backend/wallet/types"
	"perun.network/perun-paystream-backend/wire"
)

var (
	demoAmount   uint64
	demoDuration uint64
	demoElapsed  uint64
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fresh key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := keypair.Random()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nseed:    %s\n", kp.Address(), kp.Seed())
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a paystream instruction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
		if err != nil {
			return err
		}
		ix, err := wire.DecodeInstruction(raw)
		if err != nil {
			code, _ := stream.Code(err)
			return fmt.Errorf("code %d: %w", code, err)
		}
		printInstruction(cmd.OutOrStdout(), ix)
		return nil
	},
}

var streamsCmd = &cobra.Command{
	Use:   "streams <address>",
	Short: "List the streams a party pays or receives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		party, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		l, err := util.OpenLedger(cfg.Ledger, cfg.Metrics.Namespace, nil)
		if err != nil {
			return err
		}
		defer l.Close()

		infos, err := client.ListStreams(cmd.Context(), l, processor.DefaultProgramID, party)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(infos) == 0 {
			fmt.Fprintln(out, "no streams")
		}
		for _, info := range infos {
			printStream(out, info.Address, info.Record)
		}
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a payer and a payee through a stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	demoCmd.Flags().Uint64Var(&demoAmount, "amount", 1_000_000, "escrowed lamports")
	demoCmd.Flags().Uint64Var(&demoDuration, "duration", 3600, "stream duration in seconds")
	demoCmd.Flags().Uint64Var(&demoElapsed, "elapsed", 900, "seconds between opening the stream and each following step")
}

// validateDemoFlags makes sure the stream is still active when the demo cancels it, after two
// steps of elapsed seconds each.
func validateDemoFlags(amount, duration, elapsed uint64) error {
	if amount == 0 {
		return errors.New("--amount must be positive")
	}
	if elapsed == 0 || elapsed > math.MaxUint64/2 || 2*elapsed >= duration {
		return errors.Errorf("--elapsed must be positive and below half of --duration (%d), got %d", duration, elapsed)
	}
	return nil
}

func runDemo(ctx context.Context, out io.Writer) error {
	if err := validateDemoFlags(demoAmount, demoDuration, demoElapsed); err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	clock := ledger.NewManualClock(uint64(time.Now().Unix()))
	l, err := util.OpenLedger(cfg.Ledger, cfg.Metrics.Namespace, reg, ledger.WithClock(clock))
	if err != nil {
		return err
	}
	defer l.Close()

	wPayer, accPayer, _ := util.MakeRandWallet()
	wPayee, accPayee, _ := util.MakeRandWallet()
	funding := l.MinimumBalance(wire.StreamSize) + 2*demoAmount
	if err := util.FundAccounts(ctx, l, funding, accPayer.Address(), accPayee.Address()); err != nil {
		return err
	}
	payer, err := payment.SetupPaymentClient(l, wPayer, accPayer, processor.DefaultProgramID)
	if err != nil {
		return err
	}
	payee, err := payment.SetupPaymentClient(l, wPayee, accPayee, processor.DefaultProgramID)
	if err != nil {
		return err
	}
	printBalances := func(step string) error {
		a, err := payer.Balance(ctx)
		if err != nil {
			return err
		}
		b, err := payee.Balance(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-8s payer %d, payee %d\n", step, a, b)
		return nil
	}

	if err := printBalances("start"); err != nil {
		return err
	}
	s, err := payer.OpenStream(ctx, payee.Address(), demoAmount, demoDuration)
	if err != nil {
		return err
	}
	rec, err := s.Status(ctx)
	if err != nil {
		return err
	}
	printStream(out, s.Address(), rec)
	if err := printBalances("open"); err != nil {
		return err
	}

	clock.Advance(demoElapsed)
	payout, err := payee.Stream(s.Address()).Claim(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "claimed %d after %ds\n", payout, demoElapsed)
	if err := printBalances("claim"); err != nil {
		return err
	}

	clock.Advance(demoElapsed)
	settlement, err := s.Cancel(ctx)
	if err != nil {
		if code, ok := stream.Code(err); ok {
			return fmt.Errorf("cancel failed with code %d: %w", code, err)
		}
		return err
	}
	fmt.Fprintf(out, "cancelled: %d to payee, %d refunded\n", settlement.ToPayee, settlement.ToPayer)
	if err := printBalances("cancel"); err != nil {
		return err
	}
	return printMetrics(out, reg)
}

func printInstruction(out io.Writer, ix wire.Instruction) {
	switch ix := ix.(type) {
	case wire.CreateInstruction:
		fmt.Fprintf(out, "create\n  payee:    %v\n  payer:    %v\n  amount:   %d\n  duration: %d\n", ix.Payee, ix.Payer, ix.Amount, ix.Duration)
	case wire.WithdrawInstruction:
		fmt.Fprintf(out, "withdraw\n  amount: %d\n", ix.Amount)
	case wire.CancelInstruction:
		fmt.Fprintln(out, "cancel")
	}
}

func printStream(out io.Writer, addr types.Address, rec wire.Stream) {
	fmt.Fprintf(out, "stream %v: %v, payer %v, payee %v, %d/%d remaining over %ds from %d\n",
		addr, rec.Status, rec.Payer, rec.Payee, rec.RemainingBalance, rec.TotalAmount, rec.Duration, rec.StartTime)
}

func printMetrics(out io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(out, "%s{%s} %v\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
	return nil
}
