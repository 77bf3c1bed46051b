/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 11:14:11 2018 mstenber
 * Last modified: Mon Oct 19 12:10:45 2026 mstenber
 * Edit time:     38 min
 *
 */

package flash

import (
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("flash: chunk not found")

type BackendConfiguration struct {
	// Directory is where on-disk backends keep their data.
	Directory string

	// ValueUpdateInterval describes how often cached values (e.g.
	// bytes used) are updated _in background_.
	ValueUpdateInterval time.Duration

	// NoSync defers the fsync of backends that support it to the
	// next durable write.
	NoSync bool
}

// Backend is the medium the chunks end up on. Keys are opaque to the
// backend; see ChunkKey.
type Backend interface {
	// Init makes the backend usable, and must be called once
	// before anything else.
	Init(config BackendConfiguration) error

	Close() error

	// GetChunk returns the stored value, or ErrNotFound.
	GetChunk(key []byte) ([]byte, error)

	// StoreChunk adds or replaces the value.
	StoreChunk(key, data []byte) error

	// DeleteChunk removes the value; removing a missing one is not
	// an error.
	DeleteChunk(key []byte) error

	// IterateKeys calls cb with every key having the prefix, in
	// ascending order, until cb returns false. The key passed to
	// cb is only valid within the call.
	IterateKeys(prefix []byte, cb func(key []byte) bool) error

	GetBytesUsed() uint64
}

// Syncer is implemented by backends that may hold writes in memory;
// Sync makes everything stored so far durable.
type Syncer interface {
	Sync() error
}
