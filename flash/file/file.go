/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Jan  2 10:07:37 2018 mstenber
 * Last modified: Mon Oct 19 15:40:27 2026 mstenber
 * Edit time:     148 min
 *
 */

package file

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/mlog"
	"github.com/fingon/go-flashcache/util"
)

// fileBackend stores every chunk in its own file.
//
// The first directoryBytes of the key (the object id) name a
// subdirectory of chunks/, and the rest of the key the file within
// it, both hex encoded. Writes replace the file atomically.
//
// Only keys of keyBytes are supported.
const (
	directoryBytes = 4
	keyBytes       = 8
)

const chunksDirectory = "chunks"

type fileBackend struct {
	flash.DirectoryBackendBase
	created map[string]bool
	lock    util.MutexLocked
}

var _ flash.Backend = &fileBackend{}

func NewFileBackend() flash.Backend {
	return &fileBackend{}
}

func (self *fileBackend) Init(config flash.BackendConfiguration) error {
	if err := self.DirectoryBackendBase.Init(config); err != nil {
		return err
	}
	self.created = make(map[string]bool)
	return nil
}

func (self *fileBackend) Close() error {
	return nil
}

func (self *fileBackend) mkdirAll(path string) error {
	defer self.lock.Locked()()
	if self.created[path] {
		return nil
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return err
	}
	self.created[path] = true
	return nil
}

func (self *fileBackend) chunkPath(key []byte) (dir, path string, err error) {
	if len(key) != keyBytes {
		err = errors.Errorf("invalid key %x", key)
		return
	}
	dir = filepath.Join(self.Directory, chunksDirectory,
		hex.EncodeToString(key[:directoryBytes]))
	path = filepath.Join(dir, hex.EncodeToString(key[directoryBytes:]))
	return
}

func (self *fileBackend) GetChunk(key []byte) ([]byte, error) {
	_, path, err := self.chunkPath(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, flash.ErrNotFound
	}
	return b, err
}

func (self *fileBackend) StoreChunk(key, data []byte) error {
	mlog.Printf2("flash/file/file", "fb.StoreChunk %x (%d b)", key, len(data))
	dir, path, err := self.chunkPath(key)
	if err != nil {
		return err
	}
	if err = self.mkdirAll(dir); err != nil {
		return errors.Wrap(err, "mkdirAll")
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (self *fileBackend) DeleteChunk(key []byte) error {
	mlog.Printf2("flash/file/file", "fb.DeleteChunk %x", key)
	_, path, err := self.chunkPath(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func readHexNames(dir string, size int) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([][]byte, 0, len(entries))
	for _, e := range entries {
		// Skips also leftover temporary files of atomic writes
		b, err := hex.DecodeString(e.Name())
		if err != nil || len(b) != size {
			continue
		}
		names = append(names, b)
	}
	return names, nil
}

func (self *fileBackend) IterateKeys(prefix []byte, cb func(key []byte) bool) error {
	root := filepath.Join(self.Directory, chunksDirectory)
	var dirs [][]byte
	if len(prefix) >= directoryBytes {
		dirs = [][]byte{prefix[:directoryBytes]}
	} else {
		var err error
		dirs, err = readHexNames(root, directoryBytes)
		if err != nil {
			return err
		}
	}
	// ReadDir returns the entries sorted by name, and the hex
	// encoding keeps that the key order
	for _, d := range dirs {
		if !bytes.HasPrefix(d, prefix) && !bytes.HasPrefix(prefix, d) {
			continue
		}
		names, err := readHexNames(filepath.Join(root, hex.EncodeToString(d)),
			keyBytes-directoryBytes)
		if err != nil {
			return err
		}
		for _, n := range names {
			key := util.ConcatBytes(d, n)
			if !bytes.HasPrefix(key, prefix) {
				continue
			}
			if !cb(key) {
				return nil
			}
		}
	}
	return nil
}
