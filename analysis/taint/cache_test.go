// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrMapBits(t *testing.T) {
	m := NewAddrMap(128)
	assert.Equal(t, uint(7), m.IndexBits)
	assert.Equal(t, uint(55), m.TagBits)

	m = NewAddrMap(64)
	assert.Equal(t, uint(6), m.IndexBits)
	assert.Equal(t, uint(56), m.TagBits)

	assert.Panics(t, func() { NewAddrMap(48) })
	assert.Panics(t, func() { NewAddrMap(0) })
}

func TestAddrMapSplit(t *testing.T) {
	m := NewAddrMap(64)
	tests := []struct {
		addr, idx, tag uint64
	}{
		{0, 0, 0},
		{1, 0, 0},
		{3, 0, 0},
		{4, 1, 0},
		{0b110100001000, 0b10, 0b1101},
		{0b110100001011, 0b10, 0b1101},
	}
	for _, test := range tests {
		assert.Equal(t, test.idx, m.Index(test.addr), "index of %#b", test.addr)
		assert.Equal(t, test.tag, m.Tag(test.addr), "tag of %#b", test.addr)
	}
}

func TestCacheRead(t *testing.T) {
	c := NewCache(64, 4)
	s, ok := c.Read(^uint64(0))
	assert.True(t, ok)
	assert.True(t, s.Empty())

	_, ok = c.Read(0xffff)
	assert.False(t, ok)
}

func TestCacheWriteRoundRobin(t *testing.T) {
	c := NewCache(64, 4)
	ta := Of(0, 1, 2)
	ta2 := Of(1, 2)

	const addr = 0x7fffff0d3
	c.Write(addr, ta)
	out, ok := c.Read(addr)
	require.True(t, ok)
	assert.Equal(t, ta, out)

	c.Write(0x8fffff0d3, ta2)
	out, ok = c.Read(0x8fffff0d3)
	require.True(t, ok)
	assert.Equal(t, ta2, out)
	out, ok = c.Read(addr)
	require.True(t, ok)
	assert.Equal(t, ta, out)

	c.Write(0x9fffff0d3, ta2)
	out, ok = c.Read(addr)
	require.True(t, ok)
	assert.Equal(t, ta, out)

	c.Write(0xafffff0d3, ta2)
	out, ok = c.Read(addr)
	require.True(t, ok)
	assert.Equal(t, ta, out)

	// fifth tag in a 4-way set evicts the first one written
	c.Write(0xbfffff0d3, ta2)
	_, ok = c.Read(addr)
	assert.False(t, ok)
}

func TestCacheCounts(t *testing.T) {
	c := NewCache(16, 2)
	c.Write(0x100, Of(1, 2))
	c.Write(0x200, Of(2))
	assert.Equal(t, 1, c.Count(1))
	assert.Equal(t, 2, c.Count(2))
	assert.Equal(t, Of(1, 2), c.Held())

	// overwrite in place
	c.Write(0x100, Of(3))
	assert.Equal(t, 0, c.Count(1))
	assert.Equal(t, 1, c.Count(2))
	assert.Equal(t, 1, c.Count(3))

	c.ClearLabel(2)
	assert.Equal(t, 0, c.Count(2))
	s, ok := c.Read(0x200)
	require.True(t, ok)
	assert.True(t, s.Empty())
	assert.Equal(t, Of(3), c.Held())

	// 0x100 to 0x400 all map to set 0; eviction releases the evicted set
	c.Write(0x300, Of(5))
	c.Write(0x400, Of(6))
	_, ok = c.Read(0x100)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Count(3))
	assert.Equal(t, 1, c.Count(5))
	assert.Equal(t, 1, c.Count(6))
	assert.Equal(t, Of(5, 6), c.Held())
}
