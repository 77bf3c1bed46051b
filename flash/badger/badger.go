/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 23 15:10:01 2017 mstenber
 * Last modified: Mon Oct 19 15:16:02 2026 mstenber
 * Edit time:     173 min
 *
 */

package badger

import (
	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/mlog"
)

// Every key is prefixed so that other data may share the database
// later on.
var chunkPrefix = []byte("c")

// badgerBackend keeps the chunks in a badger database.
type badgerBackend struct {
	flash.DirectoryBackendBase
	db *badger.DB
}

var _ flash.Backend = &badgerBackend{}

func NewBadgerBackend() flash.Backend {
	return &badgerBackend{}
}

func (self *badgerBackend) Init(config flash.BackendConfiguration) error {
	if err := self.DirectoryBackendBase.Init(config); err != nil {
		return err
	}
	opts := badger.DefaultOptions
	opts.Dir = config.Directory
	opts.ValueDir = config.Directory
	opts.SyncWrites = !config.NoSync
	db, err := badger.Open(opts)
	if err != nil {
		return errors.Wrap(err, "badger.Open")
	}
	self.db = db
	return nil
}

func (self *badgerBackend) Close() error {
	return self.db.Close()
}

func prefixed(key []byte) []byte {
	return append(append([]byte(nil), chunkPrefix...), key...)
}

func (self *badgerBackend) GetChunk(key []byte) (v []byte, err error) {
	err = self.db.View(func(txn *badger.Txn) error {
		i, err := txn.Get(prefixed(key))
		if err == badger.ErrKeyNotFound {
			return flash.ErrNotFound
		}
		if err == nil {
			v, err = i.ValueCopy(nil)
		}
		return err
	})
	return
}

func (self *badgerBackend) StoreChunk(key, data []byte) error {
	mlog.Printf2("flash/badger/badger", "bad.StoreChunk %x (%d b)", key, len(data))
	// badger keeps a reference to the value until the commit
	v := append([]byte(nil), data...)
	return self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(prefixed(key), v)
	})
}

func (self *badgerBackend) DeleteChunk(key []byte) error {
	mlog.Printf2("flash/badger/badger", "bad.DeleteChunk %x", key)
	return self.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(prefixed(key))
	})
}

func (self *badgerBackend) IterateKeys(prefix []byte, cb func(key []byte) bool) error {
	p := prefixed(prefix)
	return self.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			k := it.Item().Key()
			if !cb(k[len(chunkPrefix):]) {
				break
			}
		}
		return nil
	})
}
