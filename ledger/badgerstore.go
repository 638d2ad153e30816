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
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"
)

// BadgerStore persists the ledger in a badger database.
type BadgerStore struct {
	db *badgerdb.DB
}

// OpenBadgerStore opens the database in dir. With inMemory set, dir is ignored and nothing is persisted.
func OpenBadgerStore(dir string, inMemory bool) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(dir)
	if inMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = badgerLogger{log.WithField("store", "badger")}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger store at %q", dir)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) View(fn func(Txn) error) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		return fn(badgerTxn{txn})
	})
}

func (s *BadgerStore) Update(fn func(Txn) error) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return fn(badgerTxn{txn})
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerTxn struct {
	txn *badgerdb.Txn
}

func (t badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t badgerTxn) Set(key, val []byte) error {
	return t.txn.Set(key, val)
}

func (t badgerTxn) Iterate(prefix []byte, fn func(key, val []byte) error) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger routes badger's internal messages to the framework logger.
type badgerLogger struct {
	log.Logger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Debugf(format, args...)
}
