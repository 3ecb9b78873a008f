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

package assembler

import (
	"strings"

	"github.com/golang/glog"

	"github.com/lassandro/asm370/pkg/constant"
	"github.com/lassandro/asm370/pkg/encoding"
	"github.com/lassandro/asm370/pkg/objdeck"
	"github.com/lassandro/asm370/pkg/symtab"
)

// generate is the second pass over one record. Addresses are final by now.
func (ctx *Context) generate(rec *Record) {
	switch rec.Type {
	case RECORD_INSTRUCTION:
		rec.Object = ctx.encodeInstruction(rec)
		ctx.emitText(rec, rec.Loc, rec.Object)

	case RECORD_STORAGE:
		if rec.Directive == DIRECTIVE_DC {
			ctx.encodeStorage(rec)
		}

	case RECORD_POOL:
		ctx.encodePool(rec)

	case RECORD_EQUATE:
		// Only the cross-reference is of interest here
		for i, operand := range rec.Statement.Operands {
			ctx.evaluate(operand, rec.Statement.OperandCursor(i), rec, symtab.REF_NONE, true)
		}

	case RECORD_LOCATED:
		switch rec.Directive {
		case DIRECTIVE_USING:
			ctx.using(rec)
		case DIRECTIVE_DROP:
			ctx.drop(rec)
		case DIRECTIVE_END:
			ctx.end(rec)
		case DIRECTIVE_CNOP:
			ctx.fill(rec)
		}
	}
}

// emitText stores data in the region and records the run for the TXT
// records. Dummy sections generate nothing.
func (ctx *Context) emitText(rec *Record, loc int64, data []byte) {
	if rec.Scope <= 0 || len(data) == 0 {
		return
	}

	ctx.region.Write(loc, data)
	ctx.runs = append(ctx.runs, run{rec.Scope, loc, loc + int64(len(data))})
}

func (ctx *Context) encodeStorage(rec *Record) {
	stmt := rec.Statement
	obj := make([]byte, rec.Length)

	for i, desc := range rec.Descriptors {
		offset := rec.Offsets[i]
		at := stmt.OperandCursor(i)

		var data []byte

		if desc.IsAddress() {
			data = ctx.addressConstant(rec, desc, rec.Loc+offset, at, stmt.Line)
		} else {
			var err error

			if data, err = desc.Encode(); err != nil {
				ctx.constantError(err, at, rec)
				continue
			}
		}

		copy(obj[offset:], data)
	}

	rec.Object = obj
	ctx.emitText(rec, rec.Loc, obj)
}

func (ctx *Context) encodePool(rec *Record) {
	at := rec.Statement.MnemonicCursor()
	obj := make([]byte, rec.Length)

	for _, entry := range rec.Literals {
		desc := entry.Descriptor
		offset := entry.Value - rec.Loc

		var data []byte

		if desc.IsAddress() {
			data = ctx.addressConstant(rec, desc, entry.Value, at, entry.Line)
		} else {
			var err error

			if data, err = desc.Encode(); err != nil {
				ctx.constantError(err, at, rec)
				continue
			}
		}

		copy(obj[offset:], data)
	}

	rec.Object = obj
	ctx.emitText(rec, rec.Loc, obj)
}

// addressConstant materializes an A, Y, V or S constant starting at loc.
// Every item is evaluated with the location counter at its own address.
func (ctx *Context) addressConstant(
	rec *Record, desc *constant.Descriptor, loc int64, at Cursor, line int,
) []byte {
	result := make([]byte, 0, desc.Size())

	for dup := int64(0); dup < desc.Dup; dup++ {
		for n, nominal := range desc.Nominal {
			item := make([]byte, desc.ItemLength(n))

			located := &Record{
				Statement: &Statement{Line: line},
				Scope:     rec.Scope,
				Loc:       loc + int64(len(result)),
			}

			ctx.addressItem(rec, located, desc.Type, nominal, item, at)
			result = append(result, item...)
		}
	}

	return result
}

func (ctx *Context) addressItem(
	rec *Record, located *Record, kind byte, nominal string, item []byte, at Cursor,
) {
	if kind == 'V' {
		ctx.externalItem(located, strings.ToUpper(nominal), item)
		return
	}

	result, err := ctx.evaluate(nominal, at, located, symtab.REF_NONE, true)

	if err != nil {
		ctx.report(err, rec)
		return
	}

	if kind == 'S' {
		base, disp, err := ctx.resolve(result.Value, at)

		if err != nil {
			ctx.report(err, rec)
			return
		}

		putBaseDisplacement(item, storage{base: base, displacement: disp})
		return
	}

	value := result.Value

	if !encoding.Fits(value.Number, len(item)) {
		ctx.report(&OversizedLiteralError{at, len(item), value.Number}, rec)
		return
	}

	encoding.PutInt(item, value.Number)

	if located.Scope <= 0 {
		return
	}

	for _, term := range value.Terms {
		if term.Extern == "" && term.Scope < 0 {
			continue
		}

		action := objdeck.ACTION_ADD
		count := term.Sign

		if count < 0 {
			action = objdeck.ACTION_SUBTRACT
			count = -count
		}

		for ; count > 0; count-- {
			ctx.relocations = append(ctx.relocations, objdeck.Relocation{
				Position: located.Scope,
				Target:   ctx.Symbols.ESDID(term),
				Address:  located.Loc,
				Length:   len(item),
				Action:   action,
			})
		}
	}
}

// externalItem fills a V-type constant. A name that is a section of this
// assembly resolves to that section.
func (ctx *Context) externalItem(located *Record, name string, item []byte) {
	ctx.Symbols.ReferenceSymbol(name, located.Statement.Line, symtab.REF_NONE)

	ext := ctx.Symbols.Extern(name)

	if ext == nil || located.Scope <= 0 {
		return
	}

	relocation := objdeck.Relocation{
		Position: located.Scope,
		Target:   ext.ID,
		Address:  located.Loc,
		Length:   len(item),
		Action:   objdeck.ACTION_STORE,
	}

	if ext.Section != 0 {
		encoding.PutInt(item, ctx.Symbols.Offset(ext.Section))
		relocation.Action = objdeck.ACTION_ADD
	}

	ctx.relocations = append(ctx.relocations, relocation)
}

func (ctx *Context) using(rec *Record) {
	stmt := rec.Statement

	if len(stmt.Operands) < 2 {
		return
	}

	var registers []int64

	seen := make(map[int64]bool)

	for i := 1; i < len(stmt.Operands); i++ {
		at := stmt.OperandCursor(i)
		value, err := ctx.absolute(stmt.Operands[i], at, rec, symtab.REF_USING, true)

		if err != nil {
			ctx.report(err, rec)
			return
		}

		if value < 0 || value > 15 {
			ctx.report(&InvalidRegisterError{at}, rec)
			return
		}

		if seen[value] {
			ctx.report(&DuplicateRegisterError{at, value}, rec)
			return
		}

		seen[value] = true
		registers = append(registers, value)
	}

	at := stmt.OperandCursor(0)
	result, err := ctx.evaluate(stmt.Operands[0], at, rec, symtab.REF_USING, true)

	if err != nil {
		ctx.report(err, rec)
		return
	}

	base := result.Value
	scope := base.Scope()
	remaining := int64(-1)

	switch {
	case base.IsAbsolute():
	case scope > 0:
		s := ctx.Symbols.Scope(scope)
		remaining = s.Base + s.Length - base.Number
	case scope < 0:
		remaining = ctx.Symbols.Scope(scope).Length - base.Number
	default:
		ctx.report(&InvalidOperandError{
			at,
			[]OperandType{OPERAND_ABSOLUTE, OPERAND_RELOCATABLE},
			classOperand(base),
		}, rec)
		return
	}

	bounded := !base.IsAbsolute()

	if bounded && remaining < 0 {
		remaining = 0
	}

	for k, register := range registers {
		domainBase := base.Number + int64(k)*DISPLACEMENT_LIMIT
		domainRemaining := remaining

		if bounded {
			domainRemaining = remaining - int64(k)*DISPLACEMENT_LIMIT

			if domainRemaining < 0 {
				domainRemaining = 0
			}
		}

		if previous := ctx.Using.Active(int(register)); previous != nil {
			ctx.report(&UsingReplacedError{
				stmt.OperandCursor(k + 1), register, previous.Line,
			}, rec)
		}

		ctx.Using.Using(int(register), domainBase, scope, domainRemaining, stmt.Line)

		glog.V(2).Infof(
			"assembler: line %d using R%d base %06X scope %d",
			stmt.Line, register, domainBase, scope,
		)
	}
}

func (ctx *Context) drop(rec *Record) {
	stmt := rec.Statement

	if len(stmt.Operands) == 0 {
		ctx.Using.DropAll()
		return
	}

	for i, operand := range stmt.Operands {
		at := stmt.OperandCursor(i)
		value, err := ctx.absolute(operand, at, rec, symtab.REF_DROP, true)

		if err != nil {
			ctx.report(err, rec)
			continue
		}

		if value < 0 || value > 15 {
			ctx.report(&InvalidRegisterError{at}, rec)
			continue
		}

		if !ctx.Using.Drop(int(value)) {
			ctx.report(&InactiveRegisterError{at, value}, rec)
		}
	}
}

// end drops every domain and records the entry point for the END record.
// Without an operand the first section is the entry.
func (ctx *Context) end(rec *Record) {
	stmt := rec.Statement

	ctx.Using.DropAll()

	if len(stmt.Operands) == 0 {
		if len(ctx.Symbols.Scopes) > 0 {
			first := ctx.Symbols.Scopes[0]

			ctx.entry = objdeck.End{
				HasEntry: true,
				Address:  first.Base,
				Scope:    first.ID,
				Length:   first.Length,
			}
		}

		return
	}

	at := stmt.OperandCursor(0)
	result, err := ctx.evaluate(stmt.Operands[0], at, rec, symtab.REF_NONE, true)

	if err != nil {
		ctx.report(err, rec)
		return
	}

	value := result.Value

	if value.Class() == symtab.CLASS_RELOCATABLE {
		term := value.Terms[0]

		if term.Extern != "" {
			ctx.entry = objdeck.End{HasEntry: true, Name: term.Extern}
			return
		}

		if term.Scope > 0 {
			ctx.entry = objdeck.End{
				HasEntry: true,
				Address:  value.Number,
				Scope:    term.Scope,
				Length:   ctx.Symbols.Scope(term.Scope).Length,
			}
			return
		}
	}

	ctx.report(&InvalidOperandError{
		at,
		[]OperandType{OPERAND_RELOCATABLE},
		classOperand(value),
	}, rec)
}

// fill pads a CNOP with BCR 0,0. An odd start gets a zero byte first.
func (ctx *Context) fill(rec *Record) {
	obj := make([]byte, rec.Length)
	i := int64(0)

	if rec.Loc%2 != 0 && rec.Length > 0 {
		i = 1
	}

	for ; i+1 < rec.Length; i += 2 {
		obj[i] = 0x07
		obj[i+1] = 0x00
	}

	rec.Object = obj
	ctx.emitText(rec, rec.Loc, obj)
}

// checkEntries reports ENTRY names that never became addresses in an
// ordinary section
func (ctx *Context) checkEntries() {
	for _, entry := range ctx.Symbols.Entries {
		sym, ok := ctx.Symbols.Lookup(entry.Name)

		if ok && sym.Defined && sym.Value.Scope() > 0 {
			continue
		}

		at, ok := ctx.entries[entry.Name]

		if !ok {
			at = Cursor{Line: entry.Line, Column: 1}
		}

		ctx.report(&UnknownLabelError{at, entry.Name}, nil)
	}
}
