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

// Package symtab tracks control sections, symbols and external names, and
// builds the global offset table once the first pass is complete.
package symtab

import (
	"sort"

	"github.com/lassandro/asm370/pkg/encoding"
)

func Absolute(number int64) Value {
	return Value{Number: number}
}

func Relocatable(number int64, scope int) Value {
	return Value{number, []Term{{Scope: scope, Sign: 1}}}
}

func External(name string) Value {
	return Value{0, []Term{{Extern: name, Sign: 1}}}
}

func (v Value) Add(other Value) Value {
	result := Value{Number: v.Number + other.Number}

	for _, term := range append(append([]Term{}, v.Terms...), other.Terms...) {
		merged := false

		for i := range result.Terms {
			if result.Terms[i].Scope == term.Scope &&
				result.Terms[i].Extern == term.Extern {
				result.Terms[i].Sign += term.Sign
				merged = true
				break
			}
		}

		if !merged {
			result.Terms = append(result.Terms, term)
		}
	}

	kept := result.Terms[:0]

	for _, term := range result.Terms {
		if term.Sign != 0 {
			kept = append(kept, term)
		}
	}

	if len(kept) == 0 {
		result.Terms = nil
	} else {
		result.Terms = kept
	}

	return result
}

func (v Value) Negate() Value {
	result := Value{Number: -v.Number}

	for _, term := range v.Terms {
		term.Sign = -term.Sign
		result.Terms = append(result.Terms, term)
	}

	return result
}

func (v Value) Sub(other Value) Value {
	return v.Add(other.Negate())
}

func (v Value) IsAbsolute() bool {
	return len(v.Terms) == 0
}

func (v Value) Class() Class {
	switch {
	case len(v.Terms) == 0:
		return CLASS_ABSOLUTE
	case len(v.Terms) == 1 && v.Terms[0].Sign == 1:
		return CLASS_RELOCATABLE
	default:
		return CLASS_COMPLEX
	}
}

// Scope is the section a simply relocatable value belongs to, or 0
func (v Value) Scope() int {
	if v.Class() == CLASS_RELOCATABLE && v.Terms[0].Extern == "" {
		return v.Terms[0].Scope
	}

	return 0
}

func (sym *Symbol) Class() Class {
	if !sym.Defined {
		return CLASS_UNDEFINED
	}

	return sym.Value.Class()
}

func (scope *Scope) SetLoc(loc int64) {
	scope.Loc = loc

	if loc > scope.Length {
		scope.Length = loc
	}
}

func NewTable() *Table {
	return &Table{
		Symbols: make(map[string]*Symbol),
		externs: make(map[string]*Extern),
	}
}

// OpenScope starts or resumes a control section. A resumed section picks up
// at its high-water mark.
func (t *Table) OpenScope(label string, kind ScopeKind, line int) (*Scope, error) {
	if existing := t.ScopeByLabel(label, kind == SCOPE_XD); existing != nil {
		if (existing.Kind == SCOPE_XD) != (kind == SCOPE_XD) {
			return nil, &DuplicateDefinitionError{label, existing.Line}
		}

		t.freeze()
		existing.Continued = true
		existing.Loc = existing.Length
		t.Current = existing
		return existing, nil
	}

	if label != "" {
		if sym, exists := t.Symbols[label]; exists && sym.Defined {
			return nil, &DuplicateDefinitionError{label, sym.Line}
		}
	}

	t.freeze()

	scope := &Scope{Label: label, Kind: kind, Line: line}

	if kind == SCOPE_XD {
		scope.ID = -(len(t.Dummies) + 1)
		t.Dummies = append(t.Dummies, scope)
	} else {
		scope.ID = len(t.Scopes) + 1
		t.Scopes = append(t.Scopes, scope)
	}

	if label != "" {
		if _, err := t.DefineSymbol(
			label, Relocatable(0, scope.ID), 1, 'J', line,
		); err != nil {
			return nil, err
		}
	}

	t.Current = scope
	return scope, nil
}

// ScopeByLabel finds a section by label. The unnamed private section is
// only matched when dummy is false.
func (t *Table) ScopeByLabel(label string, dummy bool) *Scope {
	if label == "" && dummy {
		return nil
	}

	for _, scope := range t.Scopes {
		if scope.Label == label {
			return scope
		}
	}

	if label == "" {
		return nil
	}

	for _, scope := range t.Dummies {
		if scope.Label == label {
			return scope
		}
	}

	return nil
}

func (t *Table) Scope(id int) *Scope {
	if id > 0 && id <= len(t.Scopes) {
		return t.Scopes[id-1]
	} else if id < 0 && -id <= len(t.Dummies) {
		return t.Dummies[-id-1]
	}

	return nil
}

func (t *Table) freeze() {
	if t.Current != nil && t.Current.Loc > t.Current.Length {
		t.Current.Length = t.Current.Loc
	}
}

func (t *Table) DefineSymbol(
	name string, value Value, length int64, kind byte, line int,
) (*Symbol, error) {
	sym, exists := t.Symbols[name]

	if exists && sym.Defined {
		return sym, &DuplicateDefinitionError{name, sym.Line}
	}

	if !exists {
		sym = &Symbol{Name: name}
		t.Symbols[name] = sym
	}

	sym.Value = value
	sym.Scope = value.Scope()
	sym.Length = length
	sym.Kind = kind
	sym.Line = line
	sym.Defined = true

	return sym, nil
}

// ReferenceSymbol records a use of name. Undefined names are created on
// first reference.
func (t *Table) ReferenceSymbol(name string, line int, flag byte) *Symbol {
	sym, exists := t.Symbols[name]

	if !exists {
		sym = &Symbol{Name: name}
		t.Symbols[name] = sym
	}

	sym.References = append(sym.References, Reference{line, flag})
	return sym
}

func (t *Table) Lookup(name string) (*Symbol, bool) {
	sym, exists := t.Symbols[name]
	return sym, exists
}

// Undefined lists the referenced symbols that never got a definition
func (t *Table) Undefined() []*Symbol {
	var result []*Symbol

	for _, sym := range t.Sorted() {
		if !sym.Defined {
			result = append(result, sym)
		}
	}

	return result
}

func (t *Table) Sorted() []*Symbol {
	result := make([]*Symbol, 0, len(t.Symbols))

	for _, sym := range t.Symbols {
		result = append(result, sym)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// DeclareExtern registers an EXTRN or WXTRN name and defines it as an
// external symbol.
func (t *Table) DeclareExtern(name string, weak bool, line int) (*Extern, error) {
	if sym, ok := t.Symbols[name]; ok && sym.Defined {
		if ext, exists := t.externs[name]; exists && sym.Kind == 'T' {
			ext.Weak = ext.Weak && weak
			return ext, nil
		}

		return nil, &DuplicateDefinitionError{name, sym.Line}
	}

	if _, err := t.DefineSymbol(name, External(name), 1, 'T', line); err != nil {
		return nil, err
	}

	if ext, exists := t.externs[name]; exists {
		ext.Weak = weak
		return ext, nil
	}

	return t.addExtern(name, weak, line), nil
}

// ReferenceExtern registers the target of a V-type constant. The name may
// still turn out to be a section of this assembly.
func (t *Table) ReferenceExtern(name string, line int) *Extern {
	if ext, exists := t.externs[name]; exists {
		return ext
	}

	return t.addExtern(name, false, line)
}

func (t *Table) addExtern(name string, weak bool, line int) *Extern {
	ext := &Extern{Name: name, Weak: weak, Line: line}
	t.externs[name] = ext
	t.Externs = append(t.Externs, ext)
	return ext
}

func (t *Table) Extern(name string) *Extern {
	return t.externs[name]
}

func (t *Table) AddEntry(name string, line int) {
	for _, entry := range t.Entries {
		if entry.Name == name {
			return
		}
	}

	t.Entries = append(t.Entries, Entry{name, line})
}

// Normalize builds the global offset table. Ordinary sections are laid out
// in id order from offset 0, each starting on a doubleword boundary, and
// every relocatable symbol is moved by its section's base. External names
// get ESDIDs following the sections. Normalize runs once; later calls do
// nothing.
func (t *Table) Normalize() {
	if t.normalized {
		return
	}

	t.normalized = true
	t.freeze()

	for i, scope := range t.Scopes {
		if i > 0 {
			prev := t.Scopes[i-1]
			scope.Base = encoding.Align(prev.Base+prev.Length, 8)
		} else {
			scope.Base = 0
		}
	}

	id := len(t.Scopes)

	for _, ext := range t.Externs {
		if scope := t.ScopeByLabel(ext.Name, false); scope != nil && scope.ID > 0 && ext.Name != "" {
			ext.Section = scope.ID
			ext.ID = scope.ID
			continue
		}

		id++
		ext.ID = id
	}

	for _, sym := range t.Symbols {
		if sym.Defined {
			sym.Value = t.Relocate(sym.Value)
		}
	}
}

// Relocate adds the base of every ordinary section term to v
func (t *Table) Relocate(v Value) Value {
	for _, term := range v.Terms {
		if term.Extern == "" && term.Scope > 0 {
			v.Number += int64(term.Sign) * t.Offset(term.Scope)
		}
	}

	return v
}

func (t *Table) Offset(id int) int64 {
	if scope := t.Scope(id); scope != nil && id > 0 {
		return scope.Base
	}

	return 0
}

// Size is the number of bytes the ordinary sections span
func (t *Table) Size() int64 {
	if len(t.Scopes) == 0 {
		return 0
	}

	last := t.Scopes[len(t.Scopes)-1]
	return last.Base + last.Length
}

// ESDID maps a relocation term to the ESD item it refers to
func (t *Table) ESDID(term Term) int {
	if term.Extern != "" {
		if ext, ok := t.externs[term.Extern]; ok {
			return ext.ID
		}

		return 0
	}

	if term.Scope > 0 {
		return term.Scope
	}

	return 0
}
