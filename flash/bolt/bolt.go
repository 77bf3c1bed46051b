/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 23 15:10:01 2017 mstenber
 * Last modified: Mon Oct 19 14:58:40 2026 mstenber
 * Edit time:     61 min
 *
 */

package bolt

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bbolt "go.etcd.io/bbolt"

	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/mlog"
)

var chunkBucket = []byte("chunk")

const openTimeout = 5 * time.Second

// boltBackend keeps the chunks in a single bucket of one bbolt
// database file.
type boltBackend struct {
	flash.DirectoryBackendBase

	db *bbolt.DB
}

var _ flash.Backend = &boltBackend{}
var _ flash.Syncer = &boltBackend{}

func NewBoltBackend() flash.Backend {
	return &boltBackend{}
}

func (self *boltBackend) Init(config flash.BackendConfiguration) error {
	if err := self.DirectoryBackendBase.Init(config); err != nil {
		return err
	}
	path := filepath.Join(config.Directory, "bbolt.db")
	db, err := bbolt.Open(path, 0600,
		&bbolt.Options{Timeout: openTimeout, NoSync: config.NoSync})
	if err != nil {
		return errors.Wrap(err, "bbolt.Open")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chunkBucket)
		return err
	})
	if err != nil {
		db.Close()
		return errors.Wrap(err, "CreateBucketIfNotExists")
	}
	self.db = db
	return nil
}

func (self *boltBackend) Close() error {
	return self.db.Close()
}

func (self *boltBackend) GetChunk(key []byte) (v []byte, err error) {
	err = self.db.View(func(tx *bbolt.Tx) error {
		bv := tx.Bucket(chunkBucket).Get(key)
		if bv == nil {
			return flash.ErrNotFound
		}
		// Only valid for the duration of the transaction
		v = append([]byte(nil), bv...)
		return nil
	})
	return
}

func (self *boltBackend) StoreChunk(key, data []byte) error {
	mlog.Printf2("flash/bolt/bolt", "bbolt.StoreChunk %x (%d b)", key, len(data))
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chunkBucket).Put(key, data)
	})
}

func (self *boltBackend) DeleteChunk(key []byte) error {
	mlog.Printf2("flash/bolt/bolt", "bbolt.DeleteChunk %x", key)
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chunkBucket).Delete(key)
	})
}

func (self *boltBackend) IterateKeys(prefix []byte, cb func(key []byte) bool) error {
	return self.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(chunkBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if !cb(k) {
				break
			}
		}
		return nil
	})
}

func (self *boltBackend) Sync() error {
	if !self.NoSync {
		return nil
	}
	return self.db.Sync()
}
