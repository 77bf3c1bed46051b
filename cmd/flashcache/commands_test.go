/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 22:35:10 2026 mstenber
 * Last modified: Mon Oct 19 22:44:51 2026 mstenber
 * Edit time:     9 min
 *
 */

package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/device"
)

func TestParseObjectId(t *testing.T) {
	t.Parallel()
	id, err := parseObjectId("42")
	assert.Nil(t, err)
	assert.Equal(t, id, cache.ObjectId(42))
	for _, s := range []string{"0", "-1", "x", "4294967296"} {
		_, err = parseObjectId(s)
		assert.NotEqual(t, err, nil)
	}
}

func TestCopyIn(t *testing.T) {
	t.Parallel()
	config := device.DefaultConfiguration()
	config.Backend = "inmemory"
	config.ChunkSize = 16
	d, err := device.Open(config)
	assert.Nil(t, err)
	defer d.Close()
	o, err := d.CreateObject()
	assert.Nil(t, err)
	data := bytes.Repeat([]byte("0123456789"), 10)
	n, err := copyIn(o, bytes.NewReader(data), 3)
	assert.Nil(t, err)
	assert.Equal(t, n, int64(len(data)))
	var b bytes.Buffer
	_, err = io.Copy(&b, io.NewSectionReader(o, 0, o.Size()))
	assert.Nil(t, err)
	assert.Equal(t, b.Bytes(), data)
}

func TestOverrideConfiguration(t *testing.T) {
	pf := rootCommand().PersistentFlags()
	err := pf.Parse([]string{"--iterations", "7", "--no-sync", "--salt", "x"})
	assert.Nil(t, err)

	file := device.DefaultConfiguration()
	file.Caches = 3
	file.Iterations = 100
	file.Salt = "y"
	config := overrideConfiguration(file, opts.config, pf.Changed)
	assert.Equal(t, config.Iterations, 7)
	assert.True(t, config.NoSync)
	assert.Equal(t, config.Salt, "x")
	assert.Equal(t, config.Caches, 3)
	assert.Equal(t, config.Backend, file.Backend)
}
