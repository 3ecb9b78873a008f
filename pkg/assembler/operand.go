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

	"github.com/lassandro/asm370/pkg/constant"
	"github.com/lassandro/asm370/pkg/opcode"
	"github.com/lassandro/asm370/pkg/symtab"
)

type innerKind uint

// What the parenthesized part of a storage operand holds besides the base
const (
	INNER_BASE innerKind = iota
	INNER_INDEX
	INNER_LENGTH
)

type storage struct {
	base         int64
	displacement int64

	// Index register or length, when written out
	inner    int64
	hasInner bool

	// Set for operands resolved through USING
	implicit bool
	address  int64
	length   int64
}

// storageOperand reports whether operand i of op addresses storage
func storageOperand(op *opcode.Opcode, i int) bool {
	switch op.Format {
	case opcode.FORMAT_RX, opcode.FORMAT_RX_EXT,
		opcode.FORMAT_RS, opcode.FORMAT_RS_SHIFT:
		return i == op.Operands()-1
	case opcode.FORMAT_SI, opcode.FORMAT_S:
		return i == 0
	case opcode.FORMAT_SS_L, opcode.FORMAT_SS_LL, opcode.FORMAT_SS_SRP:
		return i < 2
	}

	return false
}

// ordinal is the architectural operand number of storage operand i: the
// first operand of SI and SS instructions is operand 1, any other storage
// operand is operand 2.
func ordinal(op *opcode.Opcode, i int) int {
	switch op.Format {
	case opcode.FORMAT_SI:
		return 1
	case opcode.FORMAT_SS_L, opcode.FORMAT_SS_LL, opcode.FORMAT_SS_SRP:
		return i + 1
	}

	return 2
}

// referenceFlag is the cross-reference flag for storage operand i
func referenceFlag(op *opcode.Opcode, i int) byte {
	switch {
	case op.Flags&opcode.FLAG_EXECUTE != 0:
		return symtab.REF_EXECUTE
	case op.Flags&opcode.FLAG_BRANCH != 0:
		return symtab.REF_BRANCH
	case ordinal(op, i) == 1 && op.Flags&opcode.FLAG_MODIFY1 != 0:
		return symtab.REF_MODIFY
	case ordinal(op, i) == 2 && op.Flags&opcode.FLAG_MODIFY2 != 0:
		return symtab.REF_MODIFY
	}

	return symtab.REF_NONE
}

func (ctx *Context) register(text string, at Cursor, rec *Record) (int64, Diagnostic) {
	value, err := ctx.absolute(text, at, rec, symtab.REF_NONE, true)

	if err != nil {
		return 0, err
	}

	if value < 0 || value > 15 {
		return 0, &InvalidRegisterError{at}
	}

	return value, nil
}

func (ctx *Context) immediate(
	text string, at Cursor, rec *Record, limit int64,
) (int64, Diagnostic) {
	value, err := ctx.absolute(text, at, rec, symtab.REF_NONE, true)

	if err != nil {
		return 0, err
	}

	// Negative bytes are accepted in two's complement
	if limit == 0xFF && value < 0 && value >= -128 {
		return value & 0xFF, nil
	}

	if value < 0 || value > limit {
		return 0, &OversizedLiteralError{at, limit, value}
	}

	return value, nil
}

// splitAddress separates D(X,B) into the displacement expression and the
// parenthesized list. A parenthesized expression on its own is not split.
func splitAddress(text string) (string, []string) {
	if !strings.HasSuffix(text, ")") {
		return text, nil
	}

	open := -1

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'':
			if constant.IsAttributeQuote(text, i) {
				continue
			}

			for i++; i < len(text); i++ {
				if text[i] == '\'' {
					if i+1 < len(text) && text[i+1] == '\'' {
						i++
						continue
					}

					break
				}
			}
		case '(':
			end := constant.MatchParen(text, i)

			if end < 0 {
				return text, nil
			}

			if end == len(text)-1 {
				open = i
			}

			i = end
		}
	}

	if open <= 0 {
		return text, nil
	}

	return text[:open], strings.Split(text[open+1:len(text)-1], ",")
}

// resolve turns an address into base and displacement. Absolute addresses
// below 4096 need no base register.
func (ctx *Context) resolve(value symtab.Value, at Cursor) (int64, int64, Diagnostic) {
	switch value.Class() {
	case symtab.CLASS_ABSOLUTE:
		if value.Number >= 0 && value.Number < DISPLACEMENT_LIMIT {
			return 0, value.Number, nil
		}

		if disp, domain, ok := ctx.Using.Resolve(value.Number, 0, 0); ok {
			return int64(domain.Register), disp, nil
		}

		return 0, 0, &UnaddressableError{at, value.Number}

	case symtab.CLASS_RELOCATABLE:
		if value.Scope() == 0 {
			return 0, 0, &RelocationError{at}
		}

		if disp, domain, ok := ctx.Using.Resolve(value.Number, 0, value.Scope()); ok {
			return int64(domain.Register), disp, nil
		}

		return 0, 0, &UnaddressableError{at, value.Number}
	}

	return 0, 0, &InvalidOperandError{
		at,
		[]OperandType{OPERAND_ABSOLUTE, OPERAND_RELOCATABLE},
		OPERAND_COMPLEX,
	}
}

// storage evaluates storage operand i of rec. kind says what a lone
// parenthesized value means.
func (ctx *Context) storage(rec *Record, i int, kind innerKind) (storage, Diagnostic) {
	var result storage

	stmt := rec.Statement
	text := stmt.Operands[i]
	at := stmt.OperandCursor(i)

	if entry, ok := rec.literals[i]; ok {
		result.implicit = true
		result.address = entry.Value
		result.length = entry.Descriptor.LengthAttribute()

		value := symtab.Relocatable(entry.Value, entry.Scope)
		base, disp, err := ctx.resolve(value, at)

		result.base = base
		result.displacement = disp
		return result, err
	} else if strings.HasPrefix(text, "=") {
		return result, &InvalidLiteralError{at}
	}

	dispText, inner := splitAddress(text)

	if len(inner) > 2 || (kind == INNER_BASE && len(inner) > 1) {
		required := 2

		if kind == INNER_BASE {
			required = 1
		}

		return result, &InvalidNumArgumentsError{at, required, len(inner)}
	}

	value, err := ctx.evaluate(dispText, at, rec, referenceFlag(rec.Opcode, i), true)

	if err != nil {
		return result, err
	}

	explicitBase := (kind == INNER_BASE && len(inner) == 1) || len(inner) == 2

	if kind != INNER_BASE && len(inner) > 0 && strings.TrimSpace(inner[0]) != "" {
		if kind == INNER_INDEX {
			result.inner, err = ctx.register(inner[0], at, rec)
		} else {
			result.inner, err = ctx.absolute(inner[0], at, rec, symtab.REF_NONE, true)
		}

		if err != nil {
			return result, err
		}

		result.hasInner = true
	}

	if explicitBase {
		result.base, err = ctx.register(inner[len(inner)-1], at, rec)

		if err != nil {
			return result, err
		}

		if !value.Value.IsAbsolute() {
			return result, &InvalidOperandError{
				at,
				[]OperandType{OPERAND_ABSOLUTE},
				classOperand(value.Value),
			}
		}

		if value.Value.Number < 0 || value.Value.Number >= DISPLACEMENT_LIMIT {
			return result, &OversizedLiteralError{
				at, DISPLACEMENT_LIMIT - 1, value.Value.Number,
			}
		}

		result.displacement = value.Value.Number
		return result, nil
	}

	result.length = value.Length

	if value.Value.Class() == symtab.CLASS_RELOCATABLE {
		result.implicit = true
		result.address = value.Value.Number
	}

	result.base, result.displacement, err = ctx.resolve(value.Value, at)
	return result, err
}

// storageLength is the encoded length field of an SS operand: one less
// than the written or implicit length, and 0 for an explicit length of 0
func storageLength(operand storage, limit int64, at Cursor) (byte, Diagnostic) {
	length := operand.length

	if operand.hasInner {
		length = operand.inner
	}

	if length == 0 {
		return 0, nil
	}

	if length < 0 || length > limit {
		return 0, &OversizedLiteralError{at, limit, length}
	}

	return byte(length - 1), nil
}

func putBaseDisplacement(dst []byte, operand storage) {
	dst[0] = byte(operand.base<<4) | byte(operand.displacement>>8)&0x0F
	dst[1] = byte(operand.displacement)
}

// encodeInstruction fills the operand fields of an instruction skeleton.
// Fields that fail to evaluate are left zero.
func (ctx *Context) encodeInstruction(rec *Record) []byte {
	op := rec.Opcode
	stmt := rec.Statement
	obj := append([]byte{}, rec.Skeleton...)

	if len(stmt.Operands) < op.Operands() {
		return obj
	}

	reg := func(i int) int64 {
		value, err := ctx.register(stmt.Operands[i], stmt.OperandCursor(i), rec)

		if err != nil {
			ctx.report(err, rec)
		}

		return value
	}

	imm := func(i int, limit int64) int64 {
		value, err := ctx.immediate(stmt.Operands[i], stmt.OperandCursor(i), rec, limit)

		if err != nil {
			ctx.report(err, rec)
		}

		return value
	}

	addr := func(i int, kind innerKind) storage {
		operand, err := ctx.storage(rec, i, kind)

		if err != nil {
			ctx.report(err, rec)
		}

		if operand.implicit {
			if ordinal(op, i) == 1 {
				rec.Addr1, rec.HasAddr1 = operand.address, true
			} else {
				rec.Addr2, rec.HasAddr2 = operand.address, true
			}

			ctx.checkAlignment(rec, i, operand)
		}

		return operand
	}

	length := func(operand storage, i int, limit int64) byte {
		value, err := storageLength(operand, limit, stmt.OperandCursor(i))

		if err != nil {
			ctx.report(err, rec)
		}

		return value
	}

	switch op.Format {
	case opcode.FORMAT_RR:
		obj[1] = byte(reg(0)<<4 | reg(1))
	case opcode.FORMAT_RR_R1:
		obj[1] = byte(reg(0) << 4)
	case opcode.FORMAT_RR_I:
		obj[1] = byte(imm(0, 0xFF))
	case opcode.FORMAT_RR_EXT:
		obj[1] |= byte(reg(0))
	case opcode.FORMAT_RX:
		r1 := reg(0)
		operand := addr(1, INNER_INDEX)
		obj[1] = byte(r1<<4 | operand.inner)
		putBaseDisplacement(obj[2:4], operand)
	case opcode.FORMAT_RX_EXT:
		operand := addr(0, INNER_INDEX)
		obj[1] |= byte(operand.inner)
		putBaseDisplacement(obj[2:4], operand)
	case opcode.FORMAT_RS:
		obj[1] = byte(reg(0)<<4 | reg(1))
		putBaseDisplacement(obj[2:4], addr(2, INNER_BASE))
	case opcode.FORMAT_RS_SHIFT:
		obj[1] = byte(reg(0) << 4)
		putBaseDisplacement(obj[2:4], addr(1, INNER_BASE))
	case opcode.FORMAT_SI:
		putBaseDisplacement(obj[2:4], addr(0, INNER_BASE))
		obj[1] = byte(imm(1, 0xFF))
	case opcode.FORMAT_S:
		putBaseDisplacement(obj[2:4], addr(0, INNER_BASE))
	case opcode.FORMAT_SS_L:
		first := addr(0, INNER_LENGTH)
		second := addr(1, INNER_BASE)
		obj[1] = length(first, 0, 256)
		putBaseDisplacement(obj[2:4], first)
		putBaseDisplacement(obj[4:6], second)
	case opcode.FORMAT_SS_LL:
		first := addr(0, INNER_LENGTH)
		second := addr(1, INNER_LENGTH)
		obj[1] = length(first, 0, 16)<<4 | length(second, 1, 16)
		putBaseDisplacement(obj[2:4], first)
		putBaseDisplacement(obj[4:6], second)
	case opcode.FORMAT_SS_SRP:
		first := addr(0, INNER_LENGTH)
		second := addr(1, INNER_BASE)
		obj[1] = length(first, 0, 16)<<4 | byte(imm(2, 0x0F))
		putBaseDisplacement(obj[2:4], first)
		putBaseDisplacement(obj[4:6], second)
	}

	return obj
}

// checkAlignment notes register-storage operands that miss the boundary
// the instruction expects
func (ctx *Context) checkAlignment(rec *Record, i int, operand storage) {
	op := rec.Opcode

	switch op.Format {
	case opcode.FORMAT_RX, opcode.FORMAT_RX_EXT, opcode.FORMAT_RS, opcode.FORMAT_RS_SHIFT:
	default:
		return
	}

	if op.Align <= 1 || op.Flags&opcode.FLAG_BRANCH != 0 {
		return
	}

	if operand.address%op.Align != 0 {
		ctx.report(
			&AlignmentError{rec.Statement.OperandCursor(i), op.Align, operand.address},
			rec,
		)
	}
}
