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

package wire

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellar/go/xdr"

	"perun.network/perun-paystream-backend/wire/scval"
)

var ErrKeyNotFound = errors.New("key not found")

// MakeSymbolScMap creates a xdr.ScMap from a slice of symbols and a slice of values.
// The entries are sorted lexicographically by symbol. We expect that keys does not contain duplicates.
func MakeSymbolScMap(keys []xdr.ScSymbol, values []xdr.ScVal) (xdr.ScMap, error) {
	if len(keys) != len(values) {
		return xdr.ScMap{}, errors.New("keys and values must have the same length")
	}
	m := make(xdr.ScMap, len(keys))
	for i, k := range keys {
		m[i] = xdr.ScMapEntry{
			Key: scval.MustWrapScSymbol(k),
			Val: values[i],
		}
	}
	sort.Slice(m, func(i, j int) bool {
		return strings.Compare(string(m[i].Key.MustSym()), string(m[j].Key.MustSym())) < 0
	})
	return m, nil
}

// ExpectScMap unwraps v as a map holding exactly n entries.
func ExpectScMap(v xdr.ScVal, n int) (xdr.ScMap, error) {
	m, ok := v.GetMap()
	if !ok || m == nil {
		return nil, errors.New("expected map")
	}
	if len(*m) != n {
		return nil, fmt.Errorf("expected map of length %d, got %d", n, len(*m))
	}
	return *m, nil
}

func GetMapValue(key xdr.ScVal, m xdr.ScMap) (xdr.ScVal, error) {
	for _, v := range m {
		if v.Key.Equals(key) {
			return v.Val, nil
		}
	}
	return xdr.ScVal{}, ErrKeyNotFound
}

func GetScMapValueFromSymbol(key xdr.ScSymbol, m xdr.ScMap) (xdr.ScVal, error) {
	keyVal, err := scval.WrapScSymbol(key)
	if err != nil {
		return xdr.ScVal{}, err
	}
	v, err := GetMapValue(keyVal, m)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
