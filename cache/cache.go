/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 09:12:40 2026 mstenber
 * Last modified: Mon Oct 19 14:02:11 2026 mstenber
 * Edit time:     187 min
 *
 */

// cache is the short operation cache of a flash device.
//
// In many situations there is no high level buffering, and most reads
// and writes are short and sequential (e.g. scanning a file byte by
// byte). Writing a partial chunk to flash is expensive, so a small
// number of chunk sized buffers are kept here per device; dirty ones
// are written back when evicted or flushed.
//
// There are only a handful of slots per device, so lookups are plain
// linear scans over the slot array.
//
// Manager does no locking of its own; the owning device serializes
// all calls.
package cache

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fingon/go-flashcache/mlog"
)

// MaxCaches is the hard upper bound on slots per device.
const MaxCaches = 20

// When the usage clock passes this, all usage values are reset.
const usageResetThreshold = 100000000

var ErrAllocation = errors.New("cache: buffer allocation failed")
var ErrInvalidChunkSize = errors.New("cache: invalid chunk size")
var ErrNoWriter = errors.New("cache: no chunk writer")

// ObjectId identifies a flash object. Slots refer to objects only by
// id, so the cache never keeps an object alive; the object layer must
// call InvalidateObject before it forgets an object that may be
// cached.
type ObjectId uint32

// NoObject is the owner of an unbound slot.
const NoObject ObjectId = 0

// ChunkWriter is the flash write primitive used for write-back. It is
// called exactly once per flush of a dirty slot, and never retried.
type ChunkWriter interface {
	WriteChunk(obj ObjectId, chunkId int, data []byte, nBytes int, durable bool) error
}

type Configuration struct {
	// NCaches is the requested number of slots; capped to
	// MaxCaches. Zero disables caching.
	NCaches int

	// ChunkSize is the payload size of a single chunk in bytes.
	ChunkSize int

	Writer ChunkWriter

	// Alloc allocates a slot buffer; nil result means failure.
	// Defaults to make.
	Alloc func(size int) []byte
}

type Stats struct {
	Hits, Flushes, Evictions, FlushFailures int
}

type Manager struct {
	slots   []Slot
	lastUse int
	writer  ChunkWriter
	stats   Stats
	lastErr error
}

func defaultAlloc(size int) []byte {
	return make([]byte, size)
}

// NewManager returns initialized Manager, or error if initialization
// failed.
func NewManager(config Configuration) (*Manager, error) {
	self := &Manager{}
	if err := self.Init(config); err != nil {
		return nil, err
	}
	return self, nil
}

// Init sets up the slot array. On failure the manager is left
// inert (as if it had zero slots).
func (self *Manager) Init(config Configuration) error {
	n := config.NCaches
	if n > MaxCaches {
		n = MaxCaches
	}
	mlog.Printf2("cache/cache", "m.Init n:%d (asked %d) chunk:%d", n, config.NCaches, config.ChunkSize)
	self.slots = nil
	self.lastUse = 0
	self.stats = Stats{}
	self.lastErr = nil
	if n <= 0 {
		return nil
	}
	if config.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if config.Writer == nil {
		return ErrNoWriter
	}
	alloc := config.Alloc
	if alloc == nil {
		alloc = defaultAlloc
	}
	slots := make([]Slot, n)
	for i := range slots {
		data := alloc(config.ChunkSize)
		if data == nil || len(data) < config.ChunkSize {
			mlog.Printf2("cache/cache", " allocation of slot #%d failed", i)
			return errors.Wrapf(ErrAllocation, "slot %d/%d", i, n)
		}
		slots[i].data = data[:config.ChunkSize]
	}
	self.slots = slots
	self.writer = config.Writer
	return nil
}

// Deinit releases the slots. It does not flush; callers wanting
// durability must flush first.
func (self *Manager) Deinit() {
	mlog.Printf2("cache/cache", "m.Deinit")
	for i := range self.slots {
		self.slots[i].data = nil
	}
	self.slots = nil
	self.writer = nil
}

// NCaches returns the number of usable slots.
func (self *Manager) NCaches() int {
	return len(self.slots)
}

func (self *Manager) Stats() Stats {
	return self.stats
}

// LastError returns the most recent write-back failure, if it has not
// been followed by a successful one.
func (self *Manager) LastError() error {
	return self.lastErr
}

// Find returns the slot holding chunkId of obj, or nil.
func (self *Manager) Find(obj ObjectId, chunkId int) *Slot {
	if obj == NoObject {
		return nil
	}
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.owner == obj && slot.chunkId == chunkId {
			self.stats.Hits++
			return slot
		}
	}
	return nil
}

func (self *Manager) findFree() *Slot {
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.owner == NoObject {
			return slot
		}
	}
	return nil
}

// Acquire returns an unbound slot for new content, evicting the least
// recently used unlocked slot if need be. nil is returned if every
// slot is locked (or there are no slots); the caller then has to do
// without the cache.
//
// Dirty victim is written out first. If that write fails, the slot is
// still reused; the error is available from LastError.
func (self *Manager) Acquire() *Slot {
	if len(self.slots) == 0 {
		return nil
	}
	if slot := self.findFree(); slot != nil {
		mlog.Printf2("cache/cache", "m.Acquire free #%d", self.index(slot))
		return slot
	}

	var victim *Slot
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.locked {
			continue
		}
		if victim == nil || slot.lastUse < victim.lastUse {
			victim = slot
		}
	}
	if victim == nil {
		mlog.Printf2("cache/cache", "m.Acquire - all slots locked")
		return nil
	}
	mlog.Printf2("cache/cache", "m.Acquire evicting #%d (%v/%d use:%d dirty:%v)",
		self.index(victim), victim.owner, victim.chunkId, victim.lastUse, victim.dirty)
	self.stats.Evictions++
	if err := self.FlushSlot(victim, true); err != nil {
		log.WithError(err).Warnf("cache: write-back of evicted chunk failed")
	}
	return victim
}

// Use marks the slot as most recently used, and dirty if isWrite.
func (self *Manager) Use(slot *Slot, isWrite bool) {
	if len(self.slots) == 0 || slot == nil {
		return
	}
	if self.lastUse < 0 || self.lastUse > usageResetThreshold {
		mlog.Printf2("cache/cache", "m.Use resetting usage clock at %d", self.lastUse)
		for i := range self.slots {
			self.slots[i].lastUse = 0
		}
		self.lastUse = 0
	}
	self.lastUse++
	slot.lastUse = self.lastUse
	if isWrite {
		slot.dirty = true
	}
}

// FlushSlot writes out the slot if it is dirty, and unbinds it if
// discard is set. Locked slots are left alone.
//
// dirty is cleared even if the write fails; the failure is returned so
// that the caller can decide what to do about it.
func (self *Manager) FlushSlot(slot *Slot, discard bool) (err error) {
	if slot == nil || slot.owner == NoObject || slot.locked {
		return nil
	}
	if slot.dirty {
		mlog.Printf2("cache/cache", "m.FlushSlot %v/%d (%d b)", slot.owner, slot.chunkId, slot.nBytes)
		self.stats.Flushes++
		err = self.writer.WriteChunk(slot.owner, slot.chunkId,
			slot.data, slot.nBytes, true)
		slot.dirty = false
		if err != nil {
			self.stats.FlushFailures++
			err = errors.Wrapf(err, "flush of object %d chunk %d", slot.owner, slot.chunkId)
		}
		self.lastErr = err
	}
	if discard {
		slot.owner = NoObject
	}
	return
}

// FlushObject flushes every slot of obj. All of them are attempted;
// the first error is returned.
func (self *Manager) FlushObject(obj ObjectId, discard bool) (err error) {
	if obj == NoObject {
		return nil
	}
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.owner != obj {
			continue
		}
		if err2 := self.FlushSlot(slot, discard); err2 != nil && err == nil {
			err = err2
		}
	}
	return
}

// dirtyObject returns some object with an unlocked dirty slot.
func (self *Manager) dirtyObject() ObjectId {
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.owner != NoObject && slot.dirty && !slot.locked {
			return slot.owner
		}
	}
	return NoObject
}

// FlushAll flushes the cache one object at a time, until no flushable
// dirty slot remains. Locked slots stay dirty.
func (self *Manager) FlushAll(discard bool) (err error) {
	mlog.Printf2("cache/cache", "m.FlushAll discard:%v", discard)
	for {
		obj := self.dirtyObject()
		if obj == NoObject {
			break
		}
		if err2 := self.FlushObject(obj, discard); err2 != nil && err == nil {
			err = err2
		}
	}
	return
}

// InvalidateChunk drops the cached copy of a chunk without writing
// it. Used when the whole chunk has just been written directly.
func (self *Manager) InvalidateChunk(obj ObjectId, chunkId int) {
	slot := self.Find(obj, chunkId)
	if slot != nil {
		mlog.Printf2("cache/cache", "m.InvalidateChunk %v/%d dirty:%v", obj, chunkId, slot.dirty)
		slot.unbind()
	}
}

// InvalidateObject drops every cached chunk of obj without writing
// them. Used on delete and resize.
func (self *Manager) InvalidateObject(obj ObjectId) {
	if obj == NoObject {
		return
	}
	mlog.Printf2("cache/cache", "m.InvalidateObject %v", obj)
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.owner == obj {
			slot.unbind()
		}
	}
}

func (self *Manager) CountDirty() int {
	n := 0
	for i := range self.slots {
		if self.slots[i].dirty {
			n++
		}
	}
	return n
}

func (self *Manager) IsObjectDirty(obj ObjectId) bool {
	if obj == NoObject {
		return false
	}
	for i := range self.slots {
		slot := &self.slots[i]
		if slot.owner == obj && slot.dirty {
			return true
		}
	}
	return false
}

func (self *Manager) index(slot *Slot) int {
	for i := range self.slots {
		if &self.slots[i] == slot {
			return i
		}
	}
	return -1
}
