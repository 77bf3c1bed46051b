/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 17:35:40 2026 mstenber
 * Last modified: Mon Oct 19 19:12:08 2026 mstenber
 * Edit time:     121 min
 *
 */

// device is a flash device with objects (files) on it. Objects are
// stored as chunks in a flash.Store, and the short reads and writes
// of them go through the chunk cache.
//
// If writing to flash fails, the device becomes read-only.
package device

import (
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/flash/factory"
	"github.com/fingon/go-flashcache/mlog"
	"github.com/fingon/go-flashcache/util"
)

var ErrReadOnly = errors.New("device: read-only")
var ErrNotFound = errors.New("device: no such object")
var ErrClosed = errors.New("device: closed")
var ErrTooLarge = errors.New("device: beyond maximum object size")
var ErrChunkSizeMismatch = errors.New("device: chunk size differs from the stored one")

type Device struct {
	// lock serializes everything that touches cache or objects
	lock util.MutexLocked

	chunkSize int
	cache     cache.Manager
	store     *flash.Store
	objects   map[cache.ObjectId]*Object
	lastId    cache.ObjectId
	readOnly  bool
	lastErr   error
	closed    bool
}

// writeBack is what the cache writes through; failures turn the
// device read-only.
type writeBack Device

func (self *writeBack) WriteChunk(obj cache.ObjectId, chunkId int, data []byte, nBytes int, durable bool) error {
	d := (*Device)(self)
	err := d.store.WriteChunk(obj, chunkId, data, nBytes, durable)
	if err != nil {
		d.setReadOnly(err)
	}
	return err
}

// Open opens (or creates) the device described by config.
func Open(config Configuration) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	mlog.Printf2("device/device", "Open %s %s caches:%d chunk:%d",
		config.Backend, config.Directory, config.Caches, config.ChunkSize)
	store, err := factory.NewStore(config.storeConfiguration())
	if err != nil {
		return nil, err
	}
	return open(config, store)
}

func open(config Configuration, store *flash.Store) (*Device, error) {
	self := &Device{chunkSize: config.ChunkSize, store: store,
		objects: make(map[cache.ObjectId]*Object)}
	err := self.checkDeviceHeader()
	if err == nil {
		err = self.loadObjects()
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	err = self.cache.Init(cache.Configuration{
		NCaches:   config.Caches,
		ChunkSize: config.ChunkSize,
		Writer:    (*writeBack)(self)})
	if err != nil {
		// The device works also without the cache, just slower
		log.WithError(err).Warnf("device: running without chunk cache")
	}
	return self, nil
}

// checkDeviceHeader records the chunk size in a new store, and makes
// sure an existing store was written with the same one.
func (self *Device) checkDeviceHeader() error {
	h, found, err := self.store.ReadDeviceHeader()
	if err != nil {
		return err
	}
	if !found {
		h.ChunkSize = uint32(self.chunkSize)
		return self.store.WriteDeviceHeader(h, true)
	}
	if int(h.ChunkSize) != self.chunkSize {
		return errors.Wrapf(ErrChunkSizeMismatch, "stored %d, configured %d",
			h.ChunkSize, self.chunkSize)
	}
	return nil
}

func (self *Device) loadObjects() error {
	ids, err := self.store.Objects()
	if err != nil {
		return err
	}
	for _, id := range ids {
		size, found, err := self.store.ReadHeader(id)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		self.objects[id] = &Object{device: self, id: id, size: size}
		if id > self.lastId {
			self.lastId = id
		}
	}
	mlog.Printf2("device/device", " loaded %d objects", len(self.objects))
	return nil
}

func (self *Device) setReadOnly(err error) {
	if !self.readOnly {
		log.WithError(err).Warnf("device: flash write failed, going read-only")
	}
	self.readOnly = true
	self.lastErr = err
}

// check returns error if the device should not be written to.
func (self *Device) check(write bool) error {
	if self.closed {
		return ErrClosed
	}
	if write && self.readOnly {
		return errors.Wrapf(ErrReadOnly, "%v", self.lastErr)
	}
	return nil
}

func (self *Device) ChunkSize() int {
	return self.chunkSize
}

// MaxObjectSize is the size at which the chunk ids run out.
func (self *Device) MaxObjectSize() int64 {
	return int64(flash.MaxChunkId) * int64(self.chunkSize)
}

func (self *Device) IsReadOnly() bool {
	defer self.lock.Locked()()
	return self.readOnly
}

func (self *Device) CacheStats() cache.Stats {
	defer self.lock.Locked()()
	return self.cache.Stats()
}

func (self *Device) StoreStats() flash.StoreStats {
	return self.store.Stats()
}

func (self *Device) GetBytesUsed() uint64 {
	return self.store.GetBytesUsed()
}

// CountDirty returns the number of dirty cached chunks.
func (self *Device) CountDirty() int {
	defer self.lock.Locked()()
	return self.cache.CountDirty()
}

func (self *Device) CreateObject() (*Object, error) {
	defer self.lock.Locked()()
	if err := self.check(true); err != nil {
		return nil, err
	}
	id := self.lastId + 1
	if id == cache.NoObject {
		return nil, errors.New("device: object ids exhausted")
	}
	if err := self.store.WriteHeader(id, 0, false); err != nil {
		self.setReadOnly(err)
		return nil, err
	}
	self.lastId = id
	o := &Object{device: self, id: id}
	self.objects[id] = o
	mlog.Printf2("device/device", "d.CreateObject %v", id)
	return o, nil
}

func (self *Device) GetObject(id cache.ObjectId) (*Object, error) {
	defer self.lock.Locked()()
	if err := self.check(false); err != nil {
		return nil, err
	}
	o, ok := self.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

// DeleteObject removes the object and its cached chunks.
func (self *Device) DeleteObject(id cache.ObjectId) error {
	defer self.lock.Locked()()
	if err := self.check(true); err != nil {
		return err
	}
	o, ok := self.objects[id]
	if !ok {
		return ErrNotFound
	}
	mlog.Printf2("device/device", "d.DeleteObject %v", id)
	self.cache.InvalidateObject(id)
	delete(self.objects, id)
	o.deleted = true
	if err := self.store.DeleteChunksFrom(id, flash.HeaderChunk); err != nil {
		self.setReadOnly(err)
		return err
	}
	return nil
}

// Objects returns ids of the objects in ascending order.
func (self *Device) Objects() []cache.ObjectId {
	defer self.lock.Locked()()
	ids := make([]cache.ObjectId, 0, len(self.objects))
	for id := range self.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (self *Device) writeHeaders() (err error) {
	if self.readOnly {
		return nil
	}
	for _, o := range self.objects {
		if err2 := o.writeHeader(); err2 != nil && err == nil {
			err = err2
		}
	}
	return
}

func (self *Device) flush(discard bool) error {
	self.lock.AssertLocked()
	err := self.cache.FlushAll(discard)
	if err2 := self.writeHeaders(); err == nil {
		err = err2
	}
	if err2 := self.store.Sync(); err == nil && err2 != nil {
		self.setReadOnly(err2)
		err = err2
	}
	if err == nil && self.readOnly {
		err = errors.Wrapf(ErrReadOnly, "%v", self.lastErr)
	}
	return err
}

// Sync writes every dirty cached chunk and object header to flash.
// The error of an earlier failed write is returned too.
func (self *Device) Sync() error {
	defer self.lock.Locked()()
	if err := self.check(false); err != nil {
		return err
	}
	mlog.Printf2("device/device", "d.Sync")
	return self.flush(false)
}

// Close flushes everything and releases the device.
func (self *Device) Close() error {
	defer self.lock.Locked()()
	if err := self.check(false); err != nil {
		return err
	}
	mlog.Printf2("device/device", "d.Close")
	err := self.flush(true)
	self.cache.Deinit()
	self.closed = true
	if err2 := self.store.Close(); err == nil {
		err = err2
	}
	return err
}
