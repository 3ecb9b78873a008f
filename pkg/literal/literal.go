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

// Package literal keeps the per-section literal pools.
package literal

import (
	"fmt"
	"sort"

	"github.com/lassandro/asm370/pkg/constant"
	"github.com/lassandro/asm370/pkg/encoding"
)

type Entry struct {
	Text       string
	Scope      int
	Value      int64
	Length     int64
	Type       byte
	Alignment  int64
	Descriptor *constant.Descriptor
	Line       int
	Assigned   bool
}

type Pool struct {
	Limit int

	pending map[int][]*Entry
	index   map[int]map[string]*Entry
	count   int
}

type ScopeError struct {
	Text string
}

func (err *ScopeError) Error() string {
	return fmt.Sprintf("Literal %s is outside of any control section", err.Text)
}

type LimitError struct {
	Limit int
}

func (err *LimitError) Error() string {
	return fmt.Sprintf("More than %d literals", err.Limit)
}

func NewPool(limit int) *Pool {
	return &Pool{
		Limit:   limit,
		pending: make(map[int][]*Entry),
		index:   make(map[int]map[string]*Entry),
	}
}

// Intern returns the pending entry for text in scope, creating it on first
// use. Identical text in different scopes, or after a flush, gets a new
// entry.
func (p *Pool) Intern(
	scope int, text string, desc *constant.Descriptor, line int,
) (*Entry, error) {
	if scope <= 0 {
		return nil, &ScopeError{text}
	}

	if entries, ok := p.index[scope]; ok {
		if entry, ok := entries[text]; ok {
			return entry, nil
		}
	} else {
		p.index[scope] = make(map[string]*Entry)
	}

	if p.count >= p.Limit {
		return nil, &LimitError{p.Limit}
	}

	entry := &Entry{
		Text:       text,
		Scope:      scope,
		Descriptor: desc,
		Line:       line,
	}

	if desc != nil {
		entry.Length = desc.Size()
		entry.Type = desc.Type
	}

	p.count++
	p.index[scope][text] = entry
	p.pending[scope] = append(p.pending[scope], entry)

	return entry, nil
}

// Flush assigns addresses to the pending literals of scope starting at loc.
// The pool starts on a doubleword and entries are laid out in groups whose
// length is a multiple of 8, 4, 2 and then 1. It returns the entries in
// layout order and the location following the pool.
func (p *Pool) Flush(scope int, loc int64) ([]*Entry, int64) {
	pending := p.pending[scope]

	delete(p.pending, scope)
	delete(p.index, scope)

	if len(pending) == 0 {
		return nil, loc
	}

	loc = encoding.Align(loc, 8)
	result := make([]*Entry, 0, len(pending))

	for _, boundary := range []int64{8, 4, 2, 1} {
		for _, entry := range pending {
			if entry.Assigned || group(entry.Length) != boundary {
				continue
			}

			entry.Value = loc
			entry.Alignment = boundary
			entry.Assigned = true
			loc += entry.Length

			result = append(result, entry)
		}
	}

	return result, loc
}

func group(length int64) int64 {
	for _, boundary := range []int64{8, 4, 2} {
		if length > 0 && length%boundary == 0 {
			return boundary
		}
	}

	return 1
}

func (p *Pool) Pending(scope int) int {
	return len(p.pending[scope])
}

// Scopes lists the scopes holding unflushed literals, in id order
func (p *Pool) Scopes() []int {
	result := make([]int, 0, len(p.pending))

	for scope, entries := range p.pending {
		if len(entries) > 0 {
			result = append(result, scope)
		}
	}

	sort.Ints(result)
	return result
}
