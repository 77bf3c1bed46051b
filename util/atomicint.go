/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Mar 21 11:19:49 2018 mstenber
 * Last modified: Mon Oct 19 11:08:50 2026 mstenber
 * Edit time:     9 min
 *
 */

package util

import "sync/atomic"

// AtomicInt is a counter that may be read while the device lock is
// held by someone else (e.g. statistics).
type AtomicInt int64

func (self *AtomicInt) Get() int64 {
	return atomic.LoadInt64((*int64)(self))
}

func (self *AtomicInt) GetInt() int {
	return int(self.Get())
}

func (self *AtomicInt) Add(value int64) int64 {
	return atomic.AddInt64((*int64)(self), value)
}

func (self *AtomicInt) AddInt(value int) int {
	return int(self.Add(int64(value)))
}

func (self *AtomicInt) Inc() int64 {
	return self.Add(1)
}

func (self *AtomicInt) Set(value int64) {
	atomic.StoreInt64((*int64)(self), value)
}
