/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 14:30:12 2026 mstenber
 * Last modified: Mon Oct 19 16:51:40 2026 mstenber
 * Edit time:     38 min
 *
 */

package flash_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stvp/assert"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/flash/inmemory"
)

var errInjected = errors.New("injected failure")

type failingBackend struct {
	flash.ProxyBackend
	fail bool
}

func (self *failingBackend) StoreChunk(key, data []byte) error {
	if self.fail {
		return errInjected
	}
	return self.Backend.StoreChunk(key, data)
}

func TestChunkKey(t *testing.T) {
	t.Parallel()
	key := flash.ChunkKey(cache.ObjectId(0x01020304), 0x0a0b)
	assert.Equal(t, key, []byte{1, 2, 3, 4, 0, 0, 0x0a, 0x0b})
	assert.Equal(t, flash.ObjectPrefix(cache.ObjectId(0x01020304)), []byte{1, 2, 3, 4})
	obj, chunkId, err := flash.ParseChunkKey(key)
	assert.Nil(t, err)
	assert.Equal(t, obj, cache.ObjectId(0x01020304))
	assert.Equal(t, chunkId, 0x0a0b)
	_, _, err = flash.ParseChunkKey(key[:7])
	assert.NotEqual(t, err, nil)
}

func TestRecord(t *testing.T) {
	t.Parallel()
	rec := flash.ChunkRecord{ObjectId: 7, ChunkId: 3, Data: []byte("foo")}
	b, err := rec.MarshalMsg(nil)
	assert.Nil(t, err)
	var rec2 flash.ChunkRecord
	_, err = rec2.UnmarshalMsg(b)
	assert.Nil(t, err)
	if diff := cmp.Diff(rec, rec2); diff != "" {
		t.Error("record mismatch:", diff)
	}

	var h flash.ObjectHeader
	_, err = h.UnmarshalMsg(b)
	assert.NotEqual(t, err, nil)

	dh := flash.DeviceHeader{ChunkSize: 2048}
	b, err = dh.MarshalMsg(nil)
	assert.Nil(t, err)
	var dh2 flash.DeviceHeader
	_, err = dh2.UnmarshalMsg(b)
	assert.Nil(t, err)
	assert.Equal(t, dh2, dh)
}

func TestDeviceHeader(t *testing.T) {
	t.Parallel()
	s := flash.NewStore(inmemory.NewInMemoryBackend())
	_, found, err := s.ReadDeviceHeader()
	assert.Nil(t, err)
	assert.False(t, found)
	assert.Nil(t, s.WriteDeviceHeader(flash.DeviceHeader{ChunkSize: 64}, true))
	assert.Nil(t, s.WriteHeader(cache.ObjectId(1), 0, false))
	h, found, err := s.ReadDeviceHeader()
	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, h.ChunkSize, uint32(64))

	// The device header is not an object
	objs, err := s.Objects()
	assert.Nil(t, err)
	assert.Equal(t, objs, []cache.ObjectId{1})
	_, _, err = s.ReadHeader(cache.NoObject)
	assert.NotEqual(t, err, nil)
}

func TestChunkIdRange(t *testing.T) {
	t.Parallel()
	s := flash.NewStore(inmemory.NewInMemoryBackend())
	data := []byte("last")
	assert.Nil(t, s.WriteChunk(cache.ObjectId(1), flash.MaxChunkId, data, 4, false))
	assert.NotEqual(t, s.WriteChunk(cache.ObjectId(1), flash.MaxChunkId+1, data, 4, false), nil)
	_, err := s.ReadChunk(cache.ObjectId(1), flash.MaxChunkId+1, data)
	assert.NotEqual(t, err, nil)

	// The largest chunk does not alias the first one
	n, err := s.ReadChunk(cache.ObjectId(1), flash.FirstDataChunk, data)
	assert.Nil(t, err)
	assert.Equal(t, n, 0)
	n, err = s.ReadChunk(cache.ObjectId(1), flash.MaxChunkId, data)
	assert.Nil(t, err)
	assert.Equal(t, string(data[:n]), "last")

	// Too small buffer is an error, not a silent truncation
	_, err = s.ReadChunk(cache.ObjectId(1), flash.MaxChunkId, data[:2])
	assert.NotEqual(t, err, nil)
}

func TestStore(t *testing.T) {
	t.Parallel()
	s := flash.NewStore(inmemory.NewInMemoryBackend())
	defer s.Close()
	o1 := cache.ObjectId(1)
	o2 := cache.ObjectId(2)

	buf := make([]byte, 16)
	n, err := s.ReadChunk(o1, 1, buf)
	assert.Nil(t, err)
	assert.Equal(t, n, 0)

	_, found, err := s.ReadHeader(o1)
	assert.Nil(t, err)
	assert.False(t, found)

	data := []byte("0123456789abcdef")
	assert.Nil(t, s.WriteChunk(o1, 1, data, 10, true))
	assert.Nil(t, s.WriteChunk(o1, 2, data, 16, false))
	assert.Nil(t, s.WriteChunk(o1, 3, data, 1, false))
	assert.Nil(t, s.WriteChunk(o2, 1, data, 4, false))
	assert.Nil(t, s.WriteHeader(o1, 33, false))
	assert.Nil(t, s.WriteHeader(o2, 4, false))

	n, err = s.ReadChunk(o1, 1, buf)
	assert.Nil(t, err)
	assert.Equal(t, buf[:n], data[:10])

	objs, err := s.Objects()
	assert.Nil(t, err)
	assert.Equal(t, objs, []cache.ObjectId{o1, o2})

	assert.Nil(t, s.DeleteChunksFrom(o1, 2))
	n, err = s.ReadChunk(o1, 2, buf)
	assert.Nil(t, err)
	assert.Equal(t, n, 0)
	n, err = s.ReadChunk(o1, 1, buf)
	assert.Nil(t, err)
	assert.Equal(t, n, 10)
	size, found, err := s.ReadHeader(o1)
	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, size, int64(33))

	assert.Nil(t, s.DeleteChunksFrom(o1, flash.HeaderChunk))
	objs, err = s.Objects()
	assert.Nil(t, err)
	assert.Equal(t, objs, []cache.ObjectId{o2})

	st := s.Stats()
	assert.Equal(t, st.ChunkWrites, int64(6))
	assert.Equal(t, st.ChunkDeletes, int64(4))
	assert.Equal(t, st.BytesWritten, int64(31))
}

func TestStoreInvalid(t *testing.T) {
	t.Parallel()
	s := flash.NewStore(inmemory.NewInMemoryBackend())
	data := make([]byte, 8)
	assert.NotEqual(t, s.WriteChunk(cache.NoObject, 1, data, 8, false), nil)
	assert.NotEqual(t, s.WriteChunk(cache.ObjectId(1), flash.HeaderChunk, data, 8, false), nil)
	assert.NotEqual(t, s.WriteChunk(cache.ObjectId(1), 1, data, 9, false), nil)
	assert.NotEqual(t, s.WriteHeader(cache.ObjectId(1), -1, false), nil)

	// Record stored under the wrong key is noticed
	be := s.Backend()
	b, err := be.GetChunk(flash.ChunkKey(cache.ObjectId(1), 1))
	assert.Equal(t, err, flash.ErrNotFound)
	assert.Nil(t, s.WriteChunk(cache.ObjectId(1), 1, data, 8, false))
	b, err = be.GetChunk(flash.ChunkKey(cache.ObjectId(1), 1))
	assert.Nil(t, err)
	assert.Nil(t, be.StoreChunk(flash.ChunkKey(cache.ObjectId(1), 2), b))
	_, err = s.ReadChunk(cache.ObjectId(1), 2, data)
	assert.NotEqual(t, err, nil)
}

func TestStoreWriteFailure(t *testing.T) {
	t.Parallel()
	fb := &failingBackend{ProxyBackend: flash.ProxyBackend{Backend: inmemory.NewInMemoryBackend()}}
	s := flash.NewStore(fb)
	data := bytes.Repeat([]byte{1}, 8)
	assert.Nil(t, s.WriteChunk(cache.ObjectId(1), 1, data, 8, true))
	fb.fail = true
	err := s.WriteChunk(cache.ObjectId(1), 1, data, 8, true)
	assert.Equal(t, errors.Cause(err), errInjected)
	assert.Equal(t, s.Stats().ChunkWrites, int64(1))
}
