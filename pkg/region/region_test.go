// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package region_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/asm370/pkg/region"
)

func TestWriteAcrossPages(t *testing.T) {
	arena := region.NewArena(16)
	mem := region.New(arena, 40)

	require.Equal(t, 3, arena.InUse())
	assert.Equal(t, int64(40), mem.Size())

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	mem.Write(12, data)

	assert.Equal(t, data, mem.ReadRange(12, 10))
	assert.Equal(t, []byte{0, 0, 1, 2}, mem.ReadRange(10, 4))
	assert.Equal(t, []byte{10, 0}, mem.ReadRange(21, 2))
}

func TestOutOfRangePanics(t *testing.T) {
	mem := region.New(region.NewArena(16), 20)

	assert.Panics(t, func() { mem.Write(18, []byte{1, 2, 3}) })
	assert.Panics(t, func() { mem.Write(-1, []byte{1}) })
	assert.Panics(t, func() { mem.ReadRange(0, 21) })
	assert.NotPanics(t, func() { mem.Write(18, []byte{1, 2}) })
}

func TestReleaseReusesPages(t *testing.T) {
	arena := region.NewArena(8)

	first := region.New(arena, 16)
	first.Write(0, []byte{0xFF, 0xFF})
	first.Release()

	assert.Equal(t, 0, arena.InUse())

	second := region.New(arena, 16)
	assert.Equal(t, 2, arena.InUse())
	assert.Equal(t, []byte{0, 0}, second.ReadRange(0, 2))
}

func TestArenaMisuse(t *testing.T) {
	arena := region.NewArena(8)
	handle := arena.Acquire()

	arena.Release(handle)

	assert.Panics(t, func() { arena.Release(handle) })
	assert.Panics(t, func() { arena.Block(handle) })
}
