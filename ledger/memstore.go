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
	"bytes"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"polycry.pt/poly-go/sync"
)

// MemStore keeps all data in a map. Writes of an update go to an overlay that is merged on commit.
type MemStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

var ErrStoreClosed = errors.New("store closed")

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (s *MemStore) View(fn func(Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return fn(&memTxn{base: s.data})
}

func (s *MemStore) Update(fn func(Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	txn := &memTxn{base: s.data, overlay: make(map[string][]byte), writable: true}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.overlay {
		s.data[k] = v
	}
	return nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memTxn struct {
	base     map[string][]byte
	overlay  map[string][]byte
	writable bool
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	if v, ok := t.overlay[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	if v, ok := t.base[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (t *memTxn) Set(key, val []byte) error {
	if !t.writable {
		return errors.New("set in read-only transaction")
	}
	t.overlay[string(key)] = bytes.Clone(val)
	return nil
}

func (t *memTxn) Iterate(prefix []byte, fn func(key, val []byte) error) error {
	p := string(prefix)
	keys := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range []map[string][]byte{t.overlay, t.base} {
		for k := range m {
			if strings.HasPrefix(k, p) && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := t.Get([]byte(k))
		if err != nil {
			return err
		}
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}
