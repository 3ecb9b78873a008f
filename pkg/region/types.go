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

package region

const PAGE_SIZE = 4096

type Handle int

// Arena hands out fixed-size pages by integer handle. Released pages are
// reused before new ones are allocated.
type Arena struct {
	pageSize int
	pages    [][]byte
	used     []bool
	free     []Handle
}

// Region is an exclusively owned, zero-filled byte range backed by arena
// pages.
type Region struct {
	arena *Arena
	pages []Handle
	size  int64
}
