/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 12:49:31 2018 mstenber
 * Last modified: Mon Oct 19 11:17:55 2026 mstenber
 * Edit time:     6 min
 *
 */

// gid provides the id of the current goroutine; it is used for
// tracing and lock ownership checks only.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

var prefix = []byte("goroutine ")

// GetGoroutineID parses the id from the first line of the stack
// trace, "goroutine N [running]:". 0 is returned if that fails.
func GetGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	if !bytes.HasPrefix(b, prefix) {
		return 0
	}
	b = b[len(prefix):]
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
