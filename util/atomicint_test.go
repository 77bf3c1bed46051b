/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Mar 21 11:23:10 2018 mstenber
 * Last modified: Mon Oct 19 11:09:31 2026 mstenber
 * Edit time:     3 min
 *
 */

package util

import (
	"testing"

	"github.com/stvp/assert"
)

func TestAtomicInt(t *testing.T) {
	t.Parallel()
	var ai AtomicInt
	assert.Equal(t, ai.GetInt(), 0)
	assert.Equal(t, ai.Inc(), int64(1))
	assert.Equal(t, ai.AddInt(2), 3)
	assert.Equal(t, ai.Get(), int64(3))
	ai.Set(32)
	assert.Equal(t, ai.GetInt(), 32)
}
