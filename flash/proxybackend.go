/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 12:02:47 2018 mstenber
 * Last modified: Mon Oct 19 12:14:02 2026 mstenber
 * Edit time:     17 min
 *
 */

package flash

import "github.com/fingon/go-flashcache/mlog"

// ProxyBackend forwards everything to Backend. Embed it to override
// only some of the operations.
type ProxyBackend struct {
	Backend Backend
}

var _ Backend = &ProxyBackend{}
var _ Syncer = &ProxyBackend{}

func (self *ProxyBackend) Init(config BackendConfiguration) error {
	return self.Backend.Init(config)
}

func (self *ProxyBackend) Close() error {
	mlog.Printf2("flash/proxybackend", "proxying backend Close()")
	return self.Backend.Close()
}

func (self *ProxyBackend) GetChunk(key []byte) ([]byte, error) {
	return self.Backend.GetChunk(key)
}

func (self *ProxyBackend) StoreChunk(key, data []byte) error {
	return self.Backend.StoreChunk(key, data)
}

func (self *ProxyBackend) DeleteChunk(key []byte) error {
	return self.Backend.DeleteChunk(key)
}

func (self *ProxyBackend) IterateKeys(prefix []byte, cb func(key []byte) bool) error {
	return self.Backend.IterateKeys(prefix, cb)
}

func (self *ProxyBackend) GetBytesUsed() uint64 {
	return self.Backend.GetBytesUsed()
}

func (self *ProxyBackend) Sync() error {
	if s, ok := self.Backend.(Syncer); ok {
		return s.Sync()
	}
	return nil
}
