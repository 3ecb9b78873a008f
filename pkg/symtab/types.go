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

package symtab

import (
	"fmt"
)

type ScopeKind uint
type Class uint

const (
	SCOPE_SD ScopeKind = iota
	SCOPE_PC
	SCOPE_XD
)

const (
	CLASS_ABSOLUTE Class = iota
	CLASS_RELOCATABLE
	CLASS_COMPLEX
	CLASS_UNDEFINED
)

// Reference flags for the cross-reference report
const (
	REF_NONE    byte = ' '
	REF_MODIFY  byte = 'M'
	REF_BRANCH  byte = 'B'
	REF_USING   byte = 'U'
	REF_DROP    byte = 'D'
	REF_EXECUTE byte = 'X'
)

type Scope struct {
	ID        int
	Label     string
	Kind      ScopeKind
	Length    int64
	Loc       int64
	Base      int64
	Continued bool
	Line      int
}

// Term is one relocatable component of a value: a control section, dummy
// section or external symbol, added or subtracted.
type Term struct {
	Scope  int
	Extern string
	Sign   int
}

type Value struct {
	Number int64
	Terms  []Term
}

type Reference struct {
	Line int
	Flag byte
}

type Symbol struct {
	Name       string
	Value      Value
	Scope      int
	Length     int64
	Kind       byte
	Defined    bool
	Line       int
	References []Reference
}

type Extern struct {
	Name string
	Weak bool
	Line int

	// ESDID, assigned by Normalize
	ID int

	// Set when the name turned out to be a section of this assembly
	Section int
}

type Entry struct {
	Name string
	Line int
}

type Table struct {
	Scopes  []*Scope
	Dummies []*Scope
	Symbols map[string]*Symbol
	Externs []*Extern
	Entries []Entry

	Current    *Scope
	normalized bool
	externs    map[string]*Extern
}

type DuplicateDefinitionError struct {
	Name string
	Line int
}

func (err *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("'%s' was already defined on line %d", err.Name, err.Line)
}
