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

package scval

import (
	"errors"

	"github.com/stellar/go/xdr"

	"perun.network/perun-paystream-backend/wallet/types"
)

func WrapScMap(m xdr.ScMap) (xdr.ScVal, error) {
	return xdr.NewScVal(xdr.ScValTypeScvMap, &m)
}

func MustWrapScMap(m xdr.ScMap) xdr.ScVal {
	v, err := WrapScMap(m)
	if err != nil {
		panic(err)
	}
	return v
}

func WrapScSymbol(symbol xdr.ScSymbol) (xdr.ScVal, error) {
	return xdr.NewScVal(xdr.ScValTypeScvSymbol, symbol)
}

func MustWrapScSymbol(symbol xdr.ScSymbol) xdr.ScVal {
	v, err := WrapScSymbol(symbol)
	if err != nil {
		panic(err)
	}
	return v
}

func WrapScBytes(b xdr.ScBytes) (xdr.ScVal, error) {
	return xdr.NewScVal(xdr.ScValTypeScvBytes, b)
}

func MustWrapScBytes(b xdr.ScBytes) xdr.ScVal {
	v, err := WrapScBytes(b)
	if err != nil {
		panic(err)
	}
	return v
}

func WrapUint64(i xdr.Uint64) (xdr.ScVal, error) {
	return xdr.NewScVal(xdr.ScValTypeScvU64, i)
}

func MustWrapUint64(i xdr.Uint64) xdr.ScVal {
	v, err := WrapUint64(i)
	if err != nil {
		panic(err)
	}
	return v
}

func WrapUint32(i xdr.Uint32) (xdr.ScVal, error) {
	return xdr.NewScVal(xdr.ScValTypeScvU32, i)
}

func MustWrapUint32(i xdr.Uint32) xdr.ScVal {
	v, err := WrapUint32(i)
	if err != nil {
		panic(err)
	}
	return v
}

// WrapAddress wraps a ledger address as 32 raw bytes.
func WrapAddress(a types.Address) (xdr.ScVal, error) {
	return WrapScBytes(a[:])
}

func MustWrapAddress(a types.Address) xdr.ScVal {
	v, err := WrapAddress(a)
	if err != nil {
		panic(err)
	}
	return v
}

// UnwrapAddress is the inverse of WrapAddress.
func UnwrapAddress(v xdr.ScVal) (types.Address, error) {
	b, ok := v.GetBytes()
	if !ok {
		return types.Address{}, errors.New("expected bytes")
	}
	return types.AddressFromBytes(b)
}

func UnwrapUint64(v xdr.ScVal) (uint64, error) {
	u, ok := v.GetU64()
	if !ok {
		return 0, errors.New("expected uint64")
	}
	return uint64(u), nil
}

func UnwrapUint32(v xdr.ScVal) (uint32, error) {
	u, ok := v.GetU32()
	if !ok {
		return 0, errors.New("expected uint32")
	}
	return uint32(u), nil
}
