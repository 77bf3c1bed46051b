/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 09:40:02 2026 mstenber
 * Last modified: Mon Oct 19 12:31:55 2026 mstenber
 * Edit time:     22 min
 *
 */

package cache

import "fmt"

// Slot is a single chunk buffer of the cache. Slots are allocated
// once in Manager.Init and recycled in place; callers get pointers to
// them from Find and Acquire, and must not keep them across calls that
// may evict (unless they Lock the slot).
type Slot struct {
	owner   ObjectId
	chunkId int
	data    []byte
	nBytes  int
	dirty   bool
	locked  bool
	lastUse int
}

// Bind associates a freshly acquired slot with chunkId of obj. The
// caller must have checked with Find that the chunk is not already
// cached.
func (self *Slot) Bind(obj ObjectId, chunkId int) {
	self.owner = obj
	self.chunkId = chunkId
	self.nBytes = 0
	self.dirty = false
	self.locked = false
}

func (self *Slot) unbind() {
	self.owner = NoObject
	self.dirty = false
}

// Data returns the chunk sized buffer of the slot.
func (self *Slot) Data() []byte {
	return self.data
}

func (self *Slot) NBytes() int {
	return self.nBytes
}

func (self *Slot) SetNBytes(n int) {
	if n < 0 || n > len(self.data) {
		panic(fmt.Sprintf("nBytes %d out of range [0,%d]", n, len(self.data)))
	}
	self.nBytes = n
}

func (self *Slot) Owner() ObjectId {
	return self.owner
}

func (self *Slot) ChunkId() int {
	return self.chunkId
}

func (self *Slot) IsDirty() bool {
	return self.dirty
}

func (self *Slot) IsLocked() bool {
	return self.locked
}

func (self *Slot) LastUse() int {
	return self.lastUse
}

// Lock protects the slot from eviction and discard until Unlock.
func (self *Slot) Lock() {
	self.locked = true
}

func (self *Slot) Unlock() {
	self.locked = false
}

func (self *Slot) String() string {
	return fmt.Sprintf("slot{%v/%d %db dirty:%v locked:%v use:%d}",
		self.owner, self.chunkId, self.nBytes, self.dirty, self.locked, self.lastUse)
}
