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

package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"perun.network/perun-paystream-backend/ledger"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	envPrefix = "PAYSTREAM_"
)

type Config struct {
	Ledger  LedgerConfig  `yaml:"ledger"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LedgerConfig struct {
	DataDir             string `yaml:"data_dir"`
	InMemory            bool   `yaml:"in_memory"`
	LamportsPerByteYear uint64 `yaml:"rent_lamports_per_byte_year"`
	ExemptionThreshold  uint64 `yaml:"rent_exemption_threshold"`
	AccountOverhead     uint64 `yaml:"rent_account_overhead"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when neither a file nor the environment say otherwise.
func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			DataDir:             "./paystream-data",
			LamportsPerByteYear: ledger.DefaultLamportsPerByteYear,
			ExemptionThreshold:  ledger.DefaultExemptionThreshold,
			AccountOverhead:     ledger.DefaultAccountOverhead,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Metrics: MetricsConfig{
			Namespace: "paystream",
		},
	}
}

// LoadConfig starts from Default, applies the YAML file at path if it exists and then the
// PAYSTREAM_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "parse config file %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}
	cfg.Ledger.DataDir = envOrDefault("DATA_DIR", cfg.Ledger.DataDir)
	cfg.Ledger.InMemory = envBool("IN_MEMORY", cfg.Ledger.InMemory)
	cfg.Ledger.LamportsPerByteYear = envUint64("RENT_LAMPORTS_PER_BYTE_YEAR", cfg.Ledger.LamportsPerByteYear)
	cfg.Log.Level = envOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Metrics.Namespace = envOrDefault("METRICS_NAMESPACE", cfg.Metrics.Namespace)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := c.Log.ParseLevel(); err != nil {
		return err
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if !c.Ledger.InMemory && c.Ledger.DataDir == "" {
		return errors.New("ledger needs a data directory unless it runs in memory")
	}
	return nil
}

func (l LogConfig) ParseLevel() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(l.Level)
	return lvl, errors.Wrap(err, "log level")
}

// Formatter returns the logrus formatter selected by Format.
func (l LogConfig) Formatter() logrus.Formatter {
	if l.Format == FormatJSON {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

func (l LedgerConfig) Rent() ledger.Rent {
	return ledger.Rent{
		LamportsPerByteYear: l.LamportsPerByteYear,
		ExemptionThreshold:  l.ExemptionThreshold,
		AccountOverhead:     l.AccountOverhead,
	}
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(envPrefix + name); v != "" {
		return v
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envUint64(name string, fallback uint64) uint64 {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
