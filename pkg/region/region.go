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

// Package region holds generated object code between the second pass and
// the object module emitter.
package region

import (
	"fmt"

	"github.com/golang/glog"
)

func NewArena(pageSize int) *Arena {
	if pageSize <= 0 {
		pageSize = PAGE_SIZE
	}

	return &Arena{pageSize: pageSize}
}

// Acquire returns a zero-filled page
func (arena *Arena) Acquire() Handle {
	if count := len(arena.free); count > 0 {
		handle := arena.free[count-1]
		arena.free = arena.free[:count-1]
		arena.used[handle] = true

		page := arena.pages[handle]
		for i := range page {
			page[i] = 0
		}

		return handle
	}

	arena.pages = append(arena.pages, make([]byte, arena.pageSize))
	arena.used = append(arena.used, true)

	return Handle(len(arena.pages) - 1)
}

// Release returns a page to the arena. Releasing a page twice is a
// programming error.
func (arena *Arena) Release(handle Handle) {
	if int(handle) >= len(arena.used) || !arena.used[handle] {
		panic(fmt.Sprintf("region: release of unused page %d", handle))
	}

	arena.used[handle] = false
	arena.free = append(arena.free, handle)
}

func (arena *Arena) Block(handle Handle) []byte {
	if int(handle) >= len(arena.used) || !arena.used[handle] {
		panic(fmt.Sprintf("region: access to unused page %d", handle))
	}

	return arena.pages[handle]
}

// InUse counts the pages currently acquired
func (arena *Arena) InUse() int {
	return len(arena.pages) - len(arena.free)
}

// New acquires enough pages from arena to hold size bytes
func New(arena *Arena, size int64) *Region {
	pageSize := int64(arena.pageSize)
	count := (size + pageSize - 1) / pageSize

	region := &Region{arena: arena, size: size}

	for i := int64(0); i < count; i++ {
		region.pages = append(region.pages, arena.Acquire())
	}

	glog.V(2).Infof("region: %d bytes in %d pages", size, count)

	return region
}

func (region *Region) Size() int64 {
	return region.size
}

func (region *Region) check(offset, length int64) {
	if offset < 0 || length < 0 || offset+length > region.size {
		panic(fmt.Sprintf(
			"region: access [%#x, %#x) outside of %#x bytes",
			offset, offset+length, region.size,
		))
	}
}

// Write copies data to offset. Writes past the region are a programming
// error and panic.
func (region *Region) Write(offset int64, data []byte) {
	region.check(offset, int64(len(data)))

	pageSize := int64(region.arena.pageSize)

	for len(data) > 0 {
		page := region.arena.Block(region.pages[offset/pageSize])
		n := copy(page[offset%pageSize:], data)
		data = data[n:]
		offset += int64(n)
	}
}

// ReadRange returns a copy of length bytes at offset
func (region *Region) ReadRange(offset, length int64) []byte {
	region.check(offset, length)

	pageSize := int64(region.arena.pageSize)
	result := make([]byte, 0, length)

	for int64(len(result)) < length {
		page := region.arena.Block(region.pages[offset/pageSize])
		start := offset % pageSize
		end := start + length - int64(len(result))

		if end > pageSize {
			end = pageSize
		}

		result = append(result, page[start:end]...)
		offset += end - start
	}

	return result
}

func (region *Region) Release() {
	for _, handle := range region.pages {
		region.arena.Release(handle)
	}

	region.pages = nil
	region.size = 0
}
