/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 13:00:27 2018 mstenber
 * Last modified: Mon Oct 19 11:18:13 2026 mstenber
 * Edit time:     2 min
 *
 */

package gid

import "testing"

func TestGetGoroutineID(t *testing.T) {
	id := GetGoroutineID()
	if id == 0 {
		t.Fatal("zero goroutine id")
	}
	other := make(chan uint64)
	go func() {
		other <- GetGoroutineID()
	}()
	if <-other == id {
		t.Fatal("same id in different goroutine")
	}
}

func BenchmarkGetGoroutineID(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GetGoroutineID()
	}
}
