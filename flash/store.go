/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 13:15:02 2026 mstenber
 * Last modified: Mon Oct 19 14:20:31 2026 mstenber
 * Edit time:     64 min
 *
 */

// flash is the chunk store underneath the cache: objects are stored
// as fixed size chunks in a key-value Backend, one record per chunk.
//
// Store is safe for concurrent use as far as the Backend is; the
// device serializes writes anyway.
package flash

import (
	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/mlog"
	"github.com/fingon/go-flashcache/util"
)

type StoreStats struct {
	ChunkReads, ChunkWrites, ChunkDeletes int64
	BytesRead, BytesWritten               int64
	Syncs                                 int64
}

type Store struct {
	backend Backend

	chunkReads, chunkWrites, chunkDeletes util.AtomicInt
	bytesRead, bytesWritten               util.AtomicInt
	syncs                                 util.AtomicInt
}

var _ cache.ChunkWriter = &Store{}

// NewStore wraps an already initialized backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (self *Store) Backend() Backend {
	return self.backend
}

func (self *Store) put(key []byte, msg interface {
	MarshalMsg([]byte) ([]byte, error)
}, durable bool) error {
	b, err := msg.MarshalMsg(nil)
	if err != nil {
		return errors.Wrap(err, "MarshalMsg")
	}
	if err = self.backend.StoreChunk(key, b); err != nil {
		return errors.Wrapf(err, "storing %x", key)
	}
	self.chunkWrites.Inc()
	if durable {
		return self.Sync()
	}
	return nil
}

// WriteChunk stores the first nBytes of data as chunkId of obj.
func (self *Store) WriteChunk(obj cache.ObjectId, chunkId int, data []byte, nBytes int, durable bool) error {
	mlog.Printf2("flash/store", "s.WriteChunk %v/%d %d b durable:%v", obj, chunkId, nBytes, durable)
	if obj == cache.NoObject || chunkId < FirstDataChunk || !validChunkId(chunkId) {
		return errors.Errorf("invalid chunk %v/%d", obj, chunkId)
	}
	if nBytes < 0 || nBytes > len(data) {
		return errors.Errorf("invalid nBytes %d (have %d)", nBytes, len(data))
	}
	rec := &ChunkRecord{ObjectId: obj, ChunkId: uint32(chunkId),
		Data: data[:nBytes]}
	if err := self.put(ChunkKey(obj, chunkId), rec, durable); err != nil {
		return err
	}
	self.bytesWritten.AddInt(nBytes)
	return nil
}

func (self *Store) get(key []byte, msg interface {
	UnmarshalMsg([]byte) ([]byte, error)
}) (found bool, err error) {
	b, err := self.backend.GetChunk(key)
	if errors.Cause(err) == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %x", key)
	}
	self.chunkReads.Inc()
	if _, err = msg.UnmarshalMsg(b); err != nil {
		return false, errors.Wrapf(err, "corrupt record %x", key)
	}
	return true, nil
}

// ReadChunk copies the stored content of chunkId of obj to buf, and
// returns how many bytes were valid. Missing chunk reads as zero
// bytes.
func (self *Store) ReadChunk(obj cache.ObjectId, chunkId int, buf []byte) (int, error) {
	if !validChunkId(chunkId) {
		return 0, errors.Errorf("invalid chunk %v/%d", obj, chunkId)
	}
	var rec ChunkRecord
	found, err := self.get(ChunkKey(obj, chunkId), &rec)
	if err != nil || !found {
		mlog.Printf2("flash/store", "s.ReadChunk %v/%d - missing:%v err:%v", obj, chunkId, !found, err)
		return 0, err
	}
	if rec.ObjectId != obj || int(rec.ChunkId) != chunkId {
		return 0, errors.Errorf("chunk %v/%d contains %v/%d", obj, chunkId, rec.ObjectId, rec.ChunkId)
	}
	if len(rec.Data) > len(buf) {
		return 0, errors.Errorf("chunk %v/%d has %d bytes, buffer %d", obj, chunkId, len(rec.Data), len(buf))
	}
	n := copy(buf, rec.Data)
	mlog.Printf2("flash/store", "s.ReadChunk %v/%d: %d b", obj, chunkId, n)
	self.bytesRead.AddInt(n)
	return n, nil
}

func (self *Store) keys(prefix []byte, filter func(obj cache.ObjectId, chunkId int) bool) (keys [][]byte, err error) {
	err = self.backend.IterateKeys(prefix, func(key []byte) bool {
		obj, chunkId, err := ParseChunkKey(key)
		if err == nil && filter(obj, chunkId) {
			keys = append(keys, append([]byte(nil), key...))
		}
		return true
	})
	return
}

// DeleteChunksFrom removes data chunks of obj starting at firstChunk.
// With firstChunk HeaderChunk, the whole object goes.
func (self *Store) DeleteChunksFrom(obj cache.ObjectId, firstChunk int) error {
	keys, err := self.keys(ObjectPrefix(obj), func(_ cache.ObjectId, chunkId int) bool {
		return chunkId >= firstChunk
	})
	if err != nil {
		return errors.Wrap(err, "IterateKeys")
	}
	mlog.Printf2("flash/store", "s.DeleteChunksFrom %v/%d: %d chunks", obj, firstChunk, len(keys))
	for _, key := range keys {
		if err = self.backend.DeleteChunk(key); err != nil {
			return errors.Wrapf(err, "deleting %x", key)
		}
		self.chunkDeletes.Inc()
	}
	return nil
}

func (self *Store) WriteHeader(obj cache.ObjectId, size int64, durable bool) error {
	mlog.Printf2("flash/store", "s.WriteHeader %v size:%d", obj, size)
	if obj == cache.NoObject || size < 0 {
		return errors.Errorf("invalid header %v size %d", obj, size)
	}
	return self.put(ChunkKey(obj, HeaderChunk), &ObjectHeader{Size: size}, durable)
}

func (self *Store) ReadHeader(obj cache.ObjectId) (size int64, found bool, err error) {
	var h ObjectHeader
	if obj == cache.NoObject {
		return 0, false, errors.New("invalid header object")
	}
	found, err = self.get(ChunkKey(obj, HeaderChunk), &h)
	size = h.Size
	return
}

func (self *Store) WriteDeviceHeader(h DeviceHeader, durable bool) error {
	mlog.Printf2("flash/store", "s.WriteDeviceHeader %+v", h)
	return self.put(ChunkKey(deviceObject, HeaderChunk), &h, durable)
}

func (self *Store) ReadDeviceHeader() (h DeviceHeader, found bool, err error) {
	found, err = self.get(ChunkKey(deviceObject, HeaderChunk), &h)
	return
}

// Objects returns the objects that have a header, in ascending order.
func (self *Store) Objects() ([]cache.ObjectId, error) {
	var objs []cache.ObjectId
	err := self.backend.IterateKeys(nil, func(key []byte) bool {
		obj, chunkId, err := ParseChunkKey(key)
		if err == nil && chunkId == HeaderChunk && obj != deviceObject {
			objs = append(objs, obj)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "IterateKeys")
	}
	return objs, nil
}

func (self *Store) Sync() error {
	s, ok := self.backend.(Syncer)
	if !ok {
		return nil
	}
	self.syncs.Inc()
	return s.Sync()
}

func (self *Store) Stats() StoreStats {
	return StoreStats{
		ChunkReads:   self.chunkReads.Get(),
		ChunkWrites:  self.chunkWrites.Get(),
		ChunkDeletes: self.chunkDeletes.Get(),
		BytesRead:    self.bytesRead.Get(),
		BytesWritten: self.bytesWritten.Get(),
		Syncs:        self.syncs.Get(),
	}
}

func (self *Store) GetBytesUsed() uint64 {
	return self.backend.GetBytesUsed()
}

func (self *Store) Close() error {
	mlog.Printf2("flash/store", "s.Close")
	return self.backend.Close()
}
