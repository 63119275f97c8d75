/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsPreservesInsertionOrder(t *testing.T) {
	f := NewFields()
	f.Add("X-Second", "2")
	f.Add("x-first", "1")
	f.Add("X-Second", "2b")

	assert.Equal(t, []string{"X-Second", "X-First"}, f.Keys())
	assert.Equal(t, []string{"2", "2b"}, f.Values("X-Second"))
	assert.Equal(t, "1", f.Get("X-FIRST"))
}

func TestFieldsSetReplacesValues(t *testing.T) {
	f := NewFields()
	f.Add("Accept", "text/html")
	f.Add("Accept", "application/json")
	f.Set("Accept", "*/*")

	assert.Equal(t, []string{"*/*"}, f.Values("Accept"))
	assert.Equal(t, 1, f.Len())
}

func TestFieldsDelRemovesFromOrder(t *testing.T) {
	f := NewFields()
	f.Add("A", "1")
	f.Add("B", "2")
	f.Add("C", "3")
	f.Del("B")

	assert.Equal(t, []string{"A", "C"}, f.Keys())
	assert.False(t, f.Has("B"))
}

func TestFieldsResetKeepsBackingAllocation(t *testing.T) {
	f := NewFields()
	f.Add("A", "1")
	f.Reset()

	assert.Equal(t, 0, f.Len())
	assert.Equal(t, "", f.Get("A"))

	f.Add("B", "2")
	assert.Equal(t, []string{"B"}, f.Keys())
}

func TestFieldsCloneIsIndependent(t *testing.T) {
	f := NewFields()
	f.Add("A", "1")
	c := f.Clone()
	c.Add("A", "2")

	assert.Equal(t, []string{"1"}, f.Values("A"))
	assert.Equal(t, []string{"1", "2"}, c.Values("A"))
}

func TestFieldsHeaderSnapshot(t *testing.T) {
	f := NewFields()
	f.Add("Content-Type", "text/plain")
	f.Add("Content-Type", "text/html")

	h := f.Header()
	assert.Equal(t, []string{"text/plain", "text/html"}, h["Content-Type"])

	// mutating the snapshot must not affect the Fields it was taken from
	h["Content-Type"][0] = "mutated"
	assert.Equal(t, "text/plain", f.Get("Content-Type"))
}

func TestFieldsRangeStopsEarly(t *testing.T) {
	f := NewFields()
	f.Add("A", "1")
	f.Add("B", "2")
	f.Add("C", "3")

	var seen []string
	f.Range(func(key string, values []string) bool {
		seen = append(seen, key)
		return key != "B"
	})

	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestFieldsGetOnNilIsEmpty(t *testing.T) {
	var f *Fields
	assert.Equal(t, "", f.Get("Anything"))
}
