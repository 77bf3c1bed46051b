/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 13:45:20 2017 mstenber
 * Last modified: Mon Oct 19 11:14:02 2026 mstenber
 * Edit time:     12 min
 *
 */

package util

import (
	"encoding/binary"

	"github.com/fingon/go-flashcache/util/gid"
)

func GetGoroutineID() uint64 {
	return gid.GetGoroutineID()
}

func ConcatBytes(bytes ...[]byte) []byte {
	nl := 0
	for _, b := range bytes {
		nl += len(b)
	}
	r := make([]byte, 0, nl)
	for _, b := range bytes {
		r = append(r, b...)
	}
	return r
}

func Uint32Bytes(n uint32) []byte {
	nb := make([]byte, 4)
	binary.BigEndian.PutUint32(nb, n)
	return nb
}

// ZeroBytes clears the slice in place.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func IMin(i int, ints ...int) int {
	for _, v := range ints {
		if v < i {
			i = v
		}
	}
	return i
}

func IMax(i int, ints ...int) int {
	for _, v := range ints {
		if v > i {
			i = v
		}
	}
	return i
}

// IOr returns the first non-zero argument.
func IOr(ints ...int) int {
	for _, v := range ints {
		if v != 0 {
			return v
		}
	}
	return 0
}

// SOr returns the first non-empty argument.
func SOr(strings ...string) string {
	for _, v := range strings {
		if v != "" {
			return v
		}
	}
	return ""
}
