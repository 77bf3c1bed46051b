/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 12:40:10 2026 mstenber
 * Last modified: Tue Oct 20 10:42:15 2026 mstenber
 * Edit time:     58 min
 *
 */

package flash

import (
	"encoding/binary"
	"math"

	"github.com/glycerine/greenpack/msgp"
	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/util"
)

// Chunk 0 of every object holds its header; payload chunks start at
// FirstDataChunk.
const (
	HeaderChunk    = 0
	FirstDataChunk = 1

	// MaxChunkId is the largest chunk id a key can hold.
	MaxChunkId = math.MaxUint32
)

// The header chunk of NoObject describes the device itself.
const deviceObject = cache.NoObject

const keyLength = 8

// ChunkKey is the backend key of a chunk: big-endian object id
// followed by big-endian chunk id, so that the chunks of an object
// sort together and in order. chunkId must be within
// [0,MaxChunkId].
func ChunkKey(obj cache.ObjectId, chunkId int) []byte {
	return util.ConcatBytes(util.Uint32Bytes(uint32(obj)),
		util.Uint32Bytes(uint32(chunkId)))
}

// ObjectPrefix is the common prefix of every key of obj.
func ObjectPrefix(obj cache.ObjectId) []byte {
	return util.Uint32Bytes(uint32(obj))
}

// ParseChunkKey is the inverse of ChunkKey.
func ParseChunkKey(key []byte) (obj cache.ObjectId, chunkId int, err error) {
	if len(key) != keyLength {
		err = errors.Errorf("invalid chunk key %x", key)
		return
	}
	obj = cache.ObjectId(binary.BigEndian.Uint32(key))
	chunkId = int(binary.BigEndian.Uint32(key[4:]))
	return
}

func validChunkId(chunkId int) bool {
	return chunkId >= 0 && uint64(chunkId) <= MaxChunkId
}

// ChunkRecord is what a data chunk looks like on flash (before the
// codec).
type ChunkRecord struct {
	ObjectId cache.ObjectId `zid:"0"`
	ChunkId  uint32         `zid:"1"`

	// Data is the valid part of the chunk.
	Data []byte `zid:"2"`
}

// ObjectHeader is stored in HeaderChunk of an object.
type ObjectHeader struct {
	Size int64 `zid:"0"`
}

// DeviceHeader is stored in HeaderChunk of NoObject. The chunk
// size of a store cannot change once data has been written.
type DeviceHeader struct {
	ChunkSize uint32 `zid:"0"`
}

func readArrayHeader(nbs *msgp.NilBitsStack, b []byte, want uint32) ([]byte, error) {
	sz, b, err := nbs.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != want {
		return b, errors.Errorf("record has %d fields, expected %d", sz, want)
	}
	return b, nil
}

func (self *ChunkRecord) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendUint32(b, uint32(self.ObjectId))
	b = msgp.AppendUint32(b, self.ChunkId)
	b = msgp.AppendBytes(b, self.Data)
	return b, nil
}

func (self *ChunkRecord) UnmarshalMsg(b []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	o, err = readArrayHeader(&nbs, b, 3)
	if err != nil {
		return
	}
	var obj uint32
	obj, o, err = nbs.ReadUint32Bytes(o)
	if err != nil {
		return
	}
	self.ObjectId = cache.ObjectId(obj)
	self.ChunkId, o, err = nbs.ReadUint32Bytes(o)
	if err != nil {
		return
	}
	self.Data, o, err = nbs.ReadBytesBytes(o, nil)
	return
}

func (self *ObjectHeader) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 1)
	b = msgp.AppendInt64(b, self.Size)
	return b, nil
}

func (self *ObjectHeader) UnmarshalMsg(b []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	o, err = readArrayHeader(&nbs, b, 1)
	if err != nil {
		return
	}
	self.Size, o, err = nbs.ReadInt64Bytes(o)
	return
}

func (self *DeviceHeader) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 1)
	b = msgp.AppendUint32(b, self.ChunkSize)
	return b, nil
}

func (self *DeviceHeader) UnmarshalMsg(b []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	o, err = readArrayHeader(&nbs, b, 1)
	if err != nil {
		return
	}
	self.ChunkSize, o, err = nbs.ReadUint32Bytes(o)
	return
}
