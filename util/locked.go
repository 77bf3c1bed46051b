/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 12:21:40 2018 mstenber
 * Last modified: Mon Oct 19 11:02:37 2026 mstenber
 * Edit time:     29 min
 *
 */

package util

import (
	"sync"
	"sync/atomic"
)

// MutexLocked is a mutex with convenience features; just
// defer x.Locked()() in the beginning of a function.
//
// It also remembers which goroutine holds it, so that code that must
// run with the lock held can check for it with AssertLocked.
type MutexLocked struct {
	mut   sync.Mutex
	owner uint64
}

func (self *MutexLocked) Lock() {
	self.mut.Lock()
	atomic.StoreUint64(&self.owner, GetGoroutineID())
}

func (self *MutexLocked) Unlock() {
	atomic.StoreUint64(&self.owner, 0)
	self.mut.Unlock()
}

func (self *MutexLocked) Locked() (unlock func()) {
	self.Lock()
	return self.Unlock
}

// IsLockedByMe returns true if the calling goroutine holds the lock.
func (self *MutexLocked) IsLockedByMe() bool {
	return atomic.LoadUint64(&self.owner) == GetGoroutineID()
}

func (self *MutexLocked) AssertLocked() {
	if !self.IsLockedByMe() {
		panic("lock not held")
	}
}
