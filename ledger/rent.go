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

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2
	DefaultAccountOverhead     = 128
)

// Rent computes the minimum balance an account must hold for its storage.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
	AccountOverhead     uint64
}

// DefaultRent is the rent schedule used when nothing else is configured.
var DefaultRent = Rent{
	LamportsPerByteYear: DefaultLamportsPerByteYear,
	ExemptionThreshold:  DefaultExemptionThreshold,
	AccountOverhead:     DefaultAccountOverhead,
}

// MinimumBalance returns the balance an account with dataLen bytes of data needs to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (r.AccountOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionThreshold
}

// IsExempt reports whether balance covers the reservation for dataLen bytes.
func (r Rent) IsExempt(balance uint64, dataLen int) bool {
	return balance >= r.MinimumBalance(dataLen)
}
