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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	plogrus "perun.network/go-perun/log/logrus"

	"perun.network/perun-paystream-backend/config"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "paystream",
	Short: "Linear payment streams on a local ledger",
	Long: `paystream escrows funds for a payee and releases them linearly over time.

The payee withdraws what has vested; either party may cancel, which pays the
vested share to the payee and refunds the rest to the payer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		lvl, err := cfg.Log.ParseLevel()
		if err != nil {
			return err
		}
		plogrus.Set(lvl, cfg.Log.Formatter())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "paystream.yaml", "configuration file")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(streamsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
