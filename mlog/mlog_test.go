/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 30 14:31:18 2017 mstenber
 * Last modified: Mon Oct 19 10:51:20 2026 mstenber
 * Edit time:     31 min
 *
 */

package mlog

import (
	"bytes"
	"log"
	"testing"

	"github.com/stvp/assert"
)

func TestMlog(t *testing.T) {
	SetGoroutineIds(false)
	defer SetGoroutineIds(true)
	Reset()
	add := func(pattern string, outputted bool) {
		t.Run(pattern, func(t *testing.T) {
			var b bytes.Buffer
			logger := log.New(&b, "", 0)
			defer SetLogger(logger)()
			defer SetPattern(pattern)()
			Printf2("cache/cache", "foo %s", "bar")
			assert.Equal(t, b.Len() > 0, outputted)
			if outputted {
				assert.Equal(t, b.String(), "foo bar\n")
			}
		})
	}
	add("", false)
	add("zzzglorb", false)
	add("cache/", true)
	add("^cache/cache$", true)
	add("^device", false)
}

func TestMlogCallerTag(t *testing.T) {
	SetGoroutineIds(false)
	defer SetGoroutineIds(true)
	var b bytes.Buffer
	Reset()
	defer SetLogger(log.New(&b, "", 0))()
	defer SetPattern("mlog_test")()
	Printf("x%d", 1)
	assert.Equal(t, b.String(), "x1\n")
}

//go:noinline
func traceDeeper(depth int) {
	Printf2("x", "d%d", depth)
	if depth < 2 {
		traceDeeper(depth + 1)
	}
	Printf2("x", "D%d", depth)
}

func TestMlogRecursion(t *testing.T) {
	SetGoroutineIds(false)
	defer SetGoroutineIds(true)
	var b bytes.Buffer
	Reset()
	defer SetLogger(log.New(&b, "", 0))()
	defer SetPattern(".")()
	traceDeeper(0)
	assert.Equal(t, b.String(), "d0\n.d1\n..d2\n..D2\n.D1\nD0\n")
}

func BenchmarkMlogDisabled(b *testing.B) {
	defer SetPattern("")()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Printf2("cache/cache", "y %d", 42)
	}
}

func BenchmarkMlogNotMatching(b *testing.B) {
	defer SetPattern("zzglorb")()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Printf2("cache/cache", "y %d", 42)
	}
}
