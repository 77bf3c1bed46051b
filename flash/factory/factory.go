/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 16:40:47 2018 mstenber
 * Last modified: Mon Oct 19 15:58:13 2026 mstenber
 * Edit time:     58 min
 *
 */

package factory

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/codec"
	"github.com/fingon/go-flashcache/flash"
	"github.com/fingon/go-flashcache/flash/badger"
	"github.com/fingon/go-flashcache/flash/bolt"
	"github.com/fingon/go-flashcache/flash/file"
	"github.com/fingon/go-flashcache/flash/inmemory"
	"github.com/fingon/go-flashcache/mlog"
	"github.com/fingon/go-flashcache/util"
)

const (
	DefaultIterations = 12345
	DefaultSalt       = "asdf"
)

type factoryCallback func() flash.Backend

var backendFactories = map[string]factoryCallback{
	"inmemory": func() flash.Backend {
		return inmemory.NewInMemoryBackend()
	},
	"badger": func() flash.Backend {
		return badger.NewBadgerBackend()
	},
	"bolt": func() flash.Backend {
		return bolt.NewBoltBackend()
	},
	"file": func() flash.Backend {
		return file.NewFileBackend()
	}}

// List returns the backend names in sorted order.
func List() []string {
	keys := make([]string, 0, len(backendFactories))
	for k := range backendFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New returns initialized backend of the given name.
func New(name string, config flash.BackendConfiguration) (flash.Backend, error) {
	mlog.Printf2("flash/factory/factory", "f.New %v %v", name, config)
	f, ok := backendFactories[name]
	if !ok {
		return nil, errors.Errorf("unknown backend %q", name)
	}
	be := f()
	if err := be.Init(config); err != nil {
		return nil, errors.Wrapf(err, "initializing %s backend", name)
	}
	return be, nil
}

type StoreConfiguration struct {
	flash.BackendConfiguration
	BackendName    string
	Password, Salt string
	Iterations     int
}

// NewCodec returns the codec a store with the configuration uses:
// compression always, and encryption if a password is set.
func NewCodec(config StoreConfiguration) (codec.Codec, error) {
	c2 := &codec.CompressingCodec{}
	if config.Password == "" {
		mlog.Printf2("flash/factory/factory", " only compression")
		return codec.CodecChain{}.Init(c2), nil
	}
	mlog.Printf2("flash/factory/factory", " with encryption + compression")
	iterations := util.IOr(config.Iterations, DefaultIterations)
	salt := util.SOr(config.Salt, DefaultSalt)
	c1, err := codec.NewEncryptingCodec([]byte(config.Password), []byte(salt), iterations)
	if err != nil {
		return nil, err
	}
	return codec.CodecChain{}.Init(c1, c2), nil
}

func NewStore(config StoreConfiguration) (*flash.Store, error) {
	mlog.Printf2("flash/factory/factory", "f.NewStore %v", config.BackendName)
	c, err := NewCodec(config)
	if err != nil {
		return nil, err
	}
	be, err := New(config.BackendName, config.BackendConfiguration)
	if err != nil {
		return nil, err
	}
	return flash.NewStore(flash.NewCodecBackend(be, c)), nil
}
