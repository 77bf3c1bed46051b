/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 23 15:10:01 2017 mstenber
 * Last modified: Mon Oct 19 14:41:12 2026 mstenber
 * Edit time:     35 min
 *
 */

package inmemory

import (
	"bytes"
	"sort"

	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/mlog"
	"github.com/fingon/go-flashcache/util"
)

// inMemoryBackend keeps the chunks in a map; nothing survives
// Close.
type inMemoryBackend struct {
	key2Data map[string][]byte
	used     uint64
	lock     util.MutexLocked
}

var _ flash.Backend = &inMemoryBackend{}

func NewInMemoryBackend() flash.Backend {
	return &inMemoryBackend{key2Data: make(map[string][]byte)}
}

func (self *inMemoryBackend) Init(config flash.BackendConfiguration) error {
	return nil
}

func (self *inMemoryBackend) Close() error {
	return nil
}

func (self *inMemoryBackend) GetChunk(key []byte) ([]byte, error) {
	defer self.lock.Locked()()
	data, ok := self.key2Data[string(key)]
	if !ok {
		return nil, flash.ErrNotFound
	}
	return data, nil
}

func (self *inMemoryBackend) StoreChunk(key, data []byte) error {
	defer self.lock.Locked()()
	mlog.Printf2("flash/inmemory/inmemory", "im.StoreChunk %x (%d b)", key, len(data))
	k := string(key)
	self.used -= uint64(len(self.key2Data[k]))
	self.key2Data[k] = append([]byte(nil), data...)
	self.used += uint64(len(data))
	return nil
}

func (self *inMemoryBackend) DeleteChunk(key []byte) error {
	defer self.lock.Locked()()
	mlog.Printf2("flash/inmemory/inmemory", "im.DeleteChunk %x", key)
	k := string(key)
	self.used -= uint64(len(self.key2Data[k]))
	delete(self.key2Data, k)
	return nil
}

func (self *inMemoryBackend) IterateKeys(prefix []byte, cb func(key []byte) bool) error {
	self.lock.Lock()
	keys := make([]string, 0, len(self.key2Data))
	for k := range self.key2Data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	self.lock.Unlock()
	sort.Strings(keys)
	for _, k := range keys {
		if !cb([]byte(k)) {
			break
		}
	}
	return nil
}

func (self *inMemoryBackend) GetBytesUsed() uint64 {
	defer self.lock.Locked()()
	return self.used
}
