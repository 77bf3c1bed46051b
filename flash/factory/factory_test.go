/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 16:40:47 2018 mstenber
 * Last modified: Mon Oct 19 16:20:51 2026 mstenber
 * Edit time:     24 min
 *
 */

package factory

import (
	"bytes"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/flash"
)

func TestList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, len(List()), len(backendFactories))
	assert.Equal(t, List(), []string{"badger", "bolt", "file", "inmemory"})
}

func TestUnknown(t *testing.T) {
	t.Parallel()
	_, err := New("nope", flash.BackendConfiguration{})
	assert.NotEqual(t, err, nil)
}

func TestStore(t *testing.T) {
	t.Parallel()
	for _, name := range List() {
		name := name
		for _, password := range []string{"", "secret"} {
			password := password
			t.Run(name+"/"+password, func(t *testing.T) {
				t.Parallel()
				dir := t.TempDir()
				config := StoreConfiguration{BackendName: name, Password: password,
					Iterations: 10}
				config.Directory = dir
				s, err := NewStore(config)
				assert.Nil(t, err)

				data := bytes.Repeat([]byte("abcd"), 100)
				assert.Nil(t, s.WriteChunk(cache.ObjectId(3), 1, data, len(data), true))
				assert.Nil(t, s.WriteHeader(cache.ObjectId(3), 400, true))
				assert.Nil(t, s.Close())

				s, err = NewStore(config)
				assert.Nil(t, err)
				defer s.Close()
				if name == "inmemory" {
					return
				}
				size, found, err := s.ReadHeader(cache.ObjectId(3))
				assert.Nil(t, err)
				assert.True(t, found)
				assert.Equal(t, size, int64(400))
				buf := make([]byte, 512)
				n, err := s.ReadChunk(cache.ObjectId(3), 1, buf)
				assert.Nil(t, err)
				assert.Equal(t, buf[:n], data)
			})
		}
	}
}

func TestWrongPassword(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	config := StoreConfiguration{BackendName: "bolt", Password: "right",
		Iterations: 10}
	config.Directory = dir
	s, err := NewStore(config)
	assert.Nil(t, err)
	assert.Nil(t, s.WriteChunk(cache.ObjectId(1), 1, []byte("x"), 1, true))
	assert.Nil(t, s.Close())

	config.Password = "wrong"
	s, err = NewStore(config)
	assert.Nil(t, err)
	defer s.Close()
	_, err = s.ReadChunk(cache.ObjectId(1), 1, make([]byte, 4))
	assert.NotEqual(t, err, nil)
}

func TestCodecDefaults(t *testing.T) {
	t.Parallel()
	implicit, err := NewCodec(StoreConfiguration{Password: "pw"})
	assert.Nil(t, err)
	explicit, err := NewCodec(StoreConfiguration{Password: "pw",
		Salt: DefaultSalt, Iterations: DefaultIterations})
	assert.Nil(t, err)
	other, err := NewCodec(StoreConfiguration{Password: "pw",
		Salt: "pepper", Iterations: DefaultIterations})
	assert.Nil(t, err)

	key := flash.ChunkKey(cache.ObjectId(1), 1)
	b, err := implicit.EncodeBytes([]byte("data"), key)
	assert.Nil(t, err)
	d, err := explicit.DecodeBytes(b, key)
	assert.Nil(t, err)
	assert.Equal(t, string(d), "data")
	_, err = other.DecodeBytes(b, key)
	assert.NotEqual(t, err, nil)
}
