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

package stream

import (
	"math/bits"

	"github.com/pkg/errors"

	"perun.network/perun-paystream-backend/wire"
)

// Rate returns the amount vesting per time unit, truncated toward zero.
func Rate(total, duration uint64) (uint64, error) {
	if duration == 0 {
		return 0, errors.Wrap(ErrArithmeticFault, "zero duration")
	}
	return total / duration, nil
}

// Elapsed returns now - start, or zero if now precedes start.
func Elapsed(start, now uint64) uint64 {
	if now < start {
		return 0
	}
	return now - start
}

// Vested returns the amount of s released to the payee by time now. It is rate * elapsed while the
// stream runs and the full total amount once the duration has passed.
func Vested(s wire.Stream, now uint64) (uint64, error) {
	rate, err := Rate(s.TotalAmount, s.Duration)
	if err != nil {
		return 0, err
	}
	elapsed := Elapsed(s.StartTime, now)
	if elapsed >= s.Duration {
		return s.TotalAmount, nil
	}
	hi, vested := bits.Mul64(rate, elapsed)
	if hi != 0 {
		return 0, errors.Wrapf(ErrArithmeticFault, "vesting overflow: rate %d, elapsed %d", rate, elapsed)
	}
	return min(vested, s.TotalAmount), nil
}

// Releasable returns the vested amount that has not been paid out yet, capped at the remaining balance.
func Releasable(s wire.Stream, now uint64) (uint64, error) {
	if s.RemainingBalance > s.TotalAmount {
		return 0, errors.Wrapf(ErrConsistencyFault, "remaining balance %d exceeds total %d", s.RemainingBalance, s.TotalAmount)
	}
	vested, err := Vested(s, now)
	if err != nil {
		return 0, err
	}
	withdrawn := s.Withdrawn()
	if vested <= withdrawn {
		return 0, nil
	}
	return min(vested-withdrawn, s.RemainingBalance), nil
}
