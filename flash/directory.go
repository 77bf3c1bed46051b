/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 15:55:15 2018 mstenber
 * Last modified: Mon Oct 19 12:22:09 2026 mstenber
 * Edit time:     41 min
 *
 */

package flash

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fingon/go-flashcache/mlog"
)

type delayedUInt64ValueCallback func() uint64

// delayedUInt64Value is recalculated in background at most once per
// interval; callers get the latest known value immediately.
type delayedUInt64Value struct {
	interval   time.Duration
	value      uint64
	valueTime  time.Time
	valueMutex sync.Mutex
	going      bool
	callback   delayedUInt64ValueCallback
}

func (self *delayedUInt64Value) Value() uint64 {
	self.valueMutex.Lock()
	defer self.valueMutex.Unlock()
	if self.going || self.valueTime.Add(self.interval).After(time.Now()) {
		return self.value
	}
	self.going = true
	go func() {
		value := self.callback()

		self.valueMutex.Lock()
		defer self.valueMutex.Unlock()
		self.value = value
		self.valueTime = time.Now()
		self.going = false
	}()
	return self.value
}

// Refresh recalculates the value synchronously.
func (self *delayedUInt64Value) Refresh() uint64 {
	value := self.callback()
	self.valueMutex.Lock()
	defer self.valueMutex.Unlock()
	self.value = value
	self.valueTime = time.Now()
	return value
}

// DirectoryBackendBase is the shared part of backends that live in a
// directory.
type DirectoryBackendBase struct {
	BackendConfiguration

	used delayedUInt64Value
}

const minimumValueUpdateInterval = time.Second

func (self *DirectoryBackendBase) Init(config BackendConfiguration) error {
	if config.Directory == "" {
		return errors.New("no directory given")
	}
	if err := os.MkdirAll(config.Directory, 0700); err != nil {
		return errors.Wrap(err, "os.MkdirAll")
	}
	if config.ValueUpdateInterval < minimumValueUpdateInterval {
		config.ValueUpdateInterval = minimumValueUpdateInterval
	}
	self.BackendConfiguration = config
	dir := config.Directory
	self.used = delayedUInt64Value{interval: config.ValueUpdateInterval,
		callback: func() uint64 { return calculateUsed(dir) }}
	return nil
}

func calculateUsed(dir string) (sum uint64) {
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			sum += uint64(info.Size())
		}
		return nil
	})
	mlog.Printf2("flash/directory", "calculateUsed %v: %v", dir, sum)
	return sum
}

func (self *DirectoryBackendBase) GetBytesUsed() uint64 {
	return self.used.Value()
}

// RefreshBytesUsed recalculates the used bytes right away.
func (self *DirectoryBackendBase) RefreshBytesUsed() uint64 {
	return self.used.Refresh()
}
