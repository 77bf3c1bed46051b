/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 30 13:41:33 2017 mstenber
 * Last modified: Mon Oct 19 10:44:02 2026 mstenber
 * Edit time:     121 min
 *
 */

// mlog is maybe-log. It is a small wrapper of standard 'log' that
// only prints what has been asked for:
//
// - the MLOG environment variable (or -mlog flag) is a regular
// expression matched against the tag (typically "package/file") given
// to Printf2; what does not match costs next to nothing
//
// - call stack depth is used to indent the output, so nested calls
// (e.g. cache eviction inside an object write) read like a trace
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fingon/go-flashcache/util/gid"
)

const (
	stateUninitialized int32 = iota
	stateInitializing
	stateDisabled
	stateEnabled
)

const maxDepth = 100

// FlagSet contains the -mlog flag; it is registered also to the
// default flag.CommandLine.
var FlagSet = flag.NewFlagSet("mlog", flag.ContinueOnError)

var flagPattern = FlagSet.String("mlog", "", "Enable trace logging for tags matching the given regular expression")

type tracer struct {
	// guarded by mutex
	logger   *log.Logger
	pattern  string
	re       *regexp.Regexp
	tag2Show map[string]bool
	minDepth int
	callers  []uintptr
	withGid  bool
}

// Read with atomic ops; rest of the state only with mutex held.
var status int32

var mutex sync.Mutex

var t = tracer{logger: log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds),
	withGid: true}

func init() {
	flag.CommandLine.Var(FlagSet.Lookup("mlog").Value, "mlog",
		FlagSet.Lookup("mlog").Usage)
	Reset()
}

// Reset returns the module to its initial state; the next log call
// re-reads the environment and flags.
func Reset() {
	mutex.Lock()
	defer mutex.Unlock()
	atomic.StoreInt32(&status, stateUninitialized)
	t.minDepth = maxDepth
	t.callers = make([]uintptr, maxDepth)
}

// IsEnabled can be used to check if mlog is in use at all before
// doing something expensive.
func IsEnabled() bool {
	return atomic.LoadInt32(&status) != stateDisabled
}

// SetLogger overrides the output logger. The returned function
// restores the previous one.
func SetLogger(l *log.Logger) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := t.logger
	t.logger = l
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		t.logger = old
	}
}

// SetPattern overrides the environment/flag provided pattern. The
// returned function restores the previous one.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := t.pattern
	t.setPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		t.setPattern(old)
	}
}

// SetGoroutineIds toggles goroutine id prefix of the output.
func SetGoroutineIds(enabled bool) {
	mutex.Lock()
	defer mutex.Unlock()
	t.withGid = enabled
}

func (self *tracer) setPattern(p string) {
	self.pattern = p
	if p == "" {
		atomic.StoreInt32(&status, stateDisabled)
		return
	}
	self.re = regexp.MustCompile(p)
	self.tag2Show = make(map[string]bool)
	atomic.StoreInt32(&status, stateEnabled)
}

func (self *tracer) initialize() {
	if !atomic.CompareAndSwapInt32(&status, stateUninitialized, stateInitializing) {
		return
	}
	p := os.Getenv("MLOG")
	if *flagPattern != "" {
		p = *flagPattern
	}
	self.setPattern(p)
}

func (self *tracer) show(tag string) bool {
	show, ok := self.tag2Show[tag]
	if !ok {
		show = self.re.MatchString(tag)
		self.tag2Show[tag] = show
	}
	return show
}

// Printf logs using the caller's file name as the tag. It calls
// runtime.Caller whenever mlog is enabled, so Printf2 is preferable
// in anything hot.
func Printf(format string, args ...interface{}) {
	if atomic.LoadInt32(&status) == stateDisabled {
		return
	}
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	Printf2(file, format, args...)
}

// Printf2 logs with explicitly given tag.
func Printf2(tag string, format string, args ...interface{}) {
	st := atomic.LoadInt32(&status)
	if st == stateDisabled {
		return
	}
	mutex.Lock()
	defer mutex.Unlock()
	if st < stateDisabled {
		t.initialize()
		if atomic.LoadInt32(&status) != stateEnabled {
			return
		}
	}
	if !t.show(tag) {
		return
	}
	depth := runtime.Callers(1, t.callers)
	if depth < t.minDepth {
		t.minDepth = depth
	}
	depth -= t.minDepth
	if depth > 0 {
		format = fmt.Sprint(strings.Repeat(".", depth), format)
	}
	if t.withGid {
		format = fmt.Sprintf("%8d %s", gid.GetGoroutineID(), format)
	}
	t.logger.Printf(format, args...)
}
