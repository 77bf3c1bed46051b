/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 18:02:55 2026 mstenber
 * Last modified: Mon Oct 19 19:40:13 2026 mstenber
 * Edit time:     148 min
 *
 */

package device

import (
	"io"

	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/mlog"
	"github.com/fingon/go-flashcache/util"
)

// Object is a sparse byte array on the device. Unwritten ranges
// within its size read as zeroes.
type Object struct {
	device *Device
	id     cache.ObjectId
	size   int64

	// headerDirty is set when size has not been written to flash
	headerDirty bool
	deleted     bool
}

var _ io.ReaderAt = &Object{}
var _ io.WriterAt = &Object{}

func (self *Object) Id() cache.ObjectId {
	return self.id
}

func (self *Object) Size() int64 {
	defer self.device.lock.Locked()()
	return self.size
}

func (self *Object) check(write bool) error {
	if self.deleted {
		return ErrNotFound
	}
	return self.device.check(write)
}

// chunkRange describes the part of a chunk an operation touches.
type chunkRange struct {
	chunkId int
	start   int
	n       int
}

func (self chunkRange) isWhole(chunkSize int) bool {
	return self.start == 0 && self.n == chunkSize
}

// chunkRanges splits [off, off+n) to per-chunk ranges.
func chunkRanges(off int64, n int, chunkSize int) (ranges []chunkRange) {
	cs := int64(chunkSize)
	for n > 0 {
		r := chunkRange{chunkId: int(off/cs) + flash.FirstDataChunk,
			start: int(off % cs)}
		r.n = util.IMin(chunkSize-r.start, n)
		ranges = append(ranges, r)
		off += int64(r.n)
		n -= r.n
	}
	return
}

// readChunk reads the whole chunk to buf; the part past the stored
// data is zeroed.
func (self *Object) readChunk(chunkId int, buf []byte) (int, error) {
	n, err := self.device.store.ReadChunk(self.id, chunkId, buf)
	if err != nil {
		return 0, err
	}
	util.ZeroBytes(buf[n:])
	return n, nil
}

// loadSlot returns the cache slot with chunkId of the object, reading
// it from flash if necessary. nil slot means the cache could not
// provide one.
func (self *Object) loadSlot(chunkId int) (*cache.Slot, error) {
	c := &self.device.cache
	if slot := c.Find(self.id, chunkId); slot != nil {
		return slot, nil
	}
	slot := c.Acquire()
	if slot == nil {
		return nil, nil
	}
	slot.Bind(self.id, chunkId)
	n, err := self.readChunk(chunkId, slot.Data())
	if err != nil {
		c.InvalidateChunk(self.id, chunkId)
		return nil, err
	}
	slot.SetNBytes(n)
	return slot, nil
}

// ReadAt reads len(buf) bytes at off. Reads past the end of the
// object return io.EOF.
func (self *Object) ReadAt(buf []byte, off int64) (n int, err error) {
	d := self.device
	defer d.lock.Locked()()
	if err = self.check(false); err != nil {
		return
	}
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	// size never exceeds MaxObjectSize, so neither do the chunk ids
	if off >= self.size {
		return 0, io.EOF
	}
	want := len(buf)
	if int64(want) > self.size-off {
		want = int(self.size - off)
	}
	mlog.Printf2("device/object", "o.ReadAt %v %d@%d", self.id, want, off)
	for _, r := range chunkRanges(off, want, d.chunkSize) {
		dst := buf[n : n+r.n]
		if err = self.readRange(r, dst); err != nil {
			return
		}
		n += r.n
	}
	if n < len(buf) {
		err = io.EOF
	}
	return
}

func (self *Object) readRange(r chunkRange, dst []byte) error {
	d := self.device
	c := &d.cache
	if r.isWhole(d.chunkSize) {
		if slot := c.Find(self.id, r.chunkId); slot != nil {
			copy(dst, slot.Data())
			c.Use(slot, false)
			return nil
		}
		_, err := self.readChunk(r.chunkId, dst)
		return err
	}
	slot, err := self.loadSlot(r.chunkId)
	if err != nil {
		return err
	}
	if slot == nil {
		tmp := make([]byte, d.chunkSize)
		if _, err = self.readChunk(r.chunkId, tmp); err != nil {
			return err
		}
		copy(dst, tmp[r.start:])
		return nil
	}
	slot.Lock()
	copy(dst, slot.Data()[r.start:])
	slot.Unlock()
	c.Use(slot, false)
	return nil
}

// WriteAt writes buf at off, growing the object if necessary.
func (self *Object) WriteAt(buf []byte, off int64) (n int, err error) {
	d := self.device
	defer d.lock.Locked()()
	if err = self.check(true); err != nil {
		return
	}
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	if off > d.MaxObjectSize()-int64(len(buf)) {
		return 0, errors.Wrapf(ErrTooLarge, "%d bytes at %d", len(buf), off)
	}
	mlog.Printf2("device/object", "o.WriteAt %v %d@%d", self.id, len(buf), off)
	for _, r := range chunkRanges(off, len(buf), d.chunkSize) {
		if err = self.writeRange(r, buf[n:n+r.n]); err != nil {
			break
		}
		n += r.n
		if end := off + int64(n); end > self.size {
			self.size = end
			self.headerDirty = true
		}
	}
	return
}

func (self *Object) writeRange(r chunkRange, src []byte) error {
	d := self.device
	c := &d.cache
	if r.isWhole(d.chunkSize) {
		// Whole chunks gain nothing from the cache
		if err := d.store.WriteChunk(self.id, r.chunkId, src, len(src), false); err != nil {
			d.setReadOnly(err)
			return err
		}
		c.InvalidateChunk(self.id, r.chunkId)
		return nil
	}
	slot, err := self.loadSlot(r.chunkId)
	if err != nil {
		return err
	}
	if d.readOnly {
		// Eviction in loadSlot failed
		return errors.Wrapf(ErrReadOnly, "%v", d.lastErr)
	}
	end := r.start + r.n
	if slot == nil {
		tmp := make([]byte, d.chunkSize)
		nBytes, err := self.readChunk(r.chunkId, tmp)
		if err != nil {
			return err
		}
		copy(tmp[r.start:], src)
		err = d.store.WriteChunk(self.id, r.chunkId, tmp, util.IMax(nBytes, end), false)
		if err != nil {
			d.setReadOnly(err)
		}
		return err
	}
	slot.Lock()
	copy(slot.Data()[r.start:], src)
	slot.SetNBytes(util.IMax(slot.NBytes(), end))
	slot.Unlock()
	c.Use(slot, true)
	return nil
}

// Truncate sets the size of the object. Data past the new end is
// dropped from both cache and flash.
func (self *Object) Truncate(size int64) error {
	d := self.device
	defer d.lock.Locked()()
	if err := self.check(true); err != nil {
		return err
	}
	if size < 0 {
		return errors.Errorf("negative size %d", size)
	}
	if size > d.MaxObjectSize() {
		return errors.Wrapf(ErrTooLarge, "size %d", size)
	}
	mlog.Printf2("device/object", "o.Truncate %v %d -> %d", self.id, self.size, size)
	if size < self.size {
		if err := d.cache.FlushObject(self.id, true); err != nil {
			return err
		}
		d.cache.InvalidateObject(self.id)

		cs := int64(d.chunkSize)
		firstDropped := int((size+cs-1)/cs) + flash.FirstDataChunk
		if err := d.store.DeleteChunksFrom(self.id, firstDropped); err != nil {
			d.setReadOnly(err)
			return err
		}
		if tail := int(size % cs); tail > 0 {
			if err := self.truncateChunk(firstDropped-1, tail); err != nil {
				return err
			}
		}
	}
	self.size = size
	self.headerDirty = true
	return nil
}

// truncateChunk drops everything past nBytes from the stored chunk.
func (self *Object) truncateChunk(chunkId, nBytes int) error {
	d := self.device
	tmp := make([]byte, d.chunkSize)
	n, err := self.readChunk(chunkId, tmp)
	if err != nil || n <= nBytes {
		return err
	}
	if err = d.store.WriteChunk(self.id, chunkId, tmp, nBytes, false); err != nil {
		d.setReadOnly(err)
	}
	return err
}

func (self *Object) writeHeader() error {
	if !self.headerDirty {
		return nil
	}
	d := self.device
	if err := d.store.WriteHeader(self.id, self.size, false); err != nil {
		d.setReadOnly(err)
		return err
	}
	self.headerDirty = false
	return nil
}

// Flush writes the cached chunks and the size of the object to flash.
// The chunks stay cached.
func (self *Object) Flush() error {
	d := self.device
	defer d.lock.Locked()()
	if err := self.check(false); err != nil {
		return err
	}
	mlog.Printf2("device/object", "o.Flush %v", self.id)
	err := d.cache.FlushObject(self.id, false)
	if err == nil && !d.readOnly {
		err = self.writeHeader()
	}
	if err == nil {
		err = d.store.Sync()
	}
	return err
}

// IsDirty returns true if some chunk of the object is waiting in the
// cache to be written.
func (self *Object) IsDirty() bool {
	defer self.device.lock.Locked()()
	return self.device.cache.IsObjectDirty(self.id)
}
