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
	"github.com/lassandro/asm370/pkg/encoding"
	"github.com/lassandro/asm370/pkg/symtab"
)

// Expression grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = factor { ("*" | "/") factor }
//	factor  = ("+" | "-") factor | primary
//	primary = "(" expr ")" | decimal | X'..' | B'..' | C'..' | L'sym | L'* | * | symbol
type evaluator struct {
	ctx    *Context
	text   string
	pos    int
	at     Cursor
	rec    *Record
	flag   byte
	record bool
}

type operandValue struct {
	Value  symtab.Value
	Length int64
}

// evaluate computes an expression in the context of rec. When record is
// set, every symbol it names gets a cross-reference entry with flag.
func (ctx *Context) evaluate(
	text string, at Cursor, rec *Record, flag byte, record bool,
) (operandValue, Diagnostic) {
	e := &evaluator{
		ctx:    ctx,
		text:   text,
		at:     at,
		rec:    rec,
		flag:   flag,
		record: record,
	}

	if strings.TrimSpace(text) == "" {
		return operandValue{}, &InvalidExpressionError{at, text}
	}

	result, err := e.expr()

	if err != nil {
		return operandValue{}, err
	}

	if e.pos < len(e.text) {
		return operandValue{}, &UnexpectedCharacterError{at, rune(e.text[e.pos])}
	}

	return result, nil
}

// absolute evaluates an expression that must not be relocatable
func (ctx *Context) absolute(
	text string, at Cursor, rec *Record, flag byte, record bool,
) (int64, Diagnostic) {
	result, err := ctx.evaluate(text, at, rec, flag, record)

	if err != nil {
		return 0, err
	}

	if !result.Value.IsAbsolute() {
		return 0, &InvalidOperandError{
			at,
			[]OperandType{OPERAND_ABSOLUTE},
			classOperand(result.Value),
		}
	}

	return result.Value.Number, nil
}

func classOperand(value symtab.Value) OperandType {
	switch value.Class() {
	case symtab.CLASS_ABSOLUTE:
		return OPERAND_ABSOLUTE
	case symtab.CLASS_RELOCATABLE:
		return OPERAND_RELOCATABLE
	}

	return OPERAND_COMPLEX
}

func (e *evaluator) peek() byte {
	if e.pos < len(e.text) {
		return e.text[e.pos]
	}

	return 0
}

func (e *evaluator) expr() (operandValue, Diagnostic) {
	left, err := e.term()

	if err != nil {
		return left, err
	}

	for {
		switch e.peek() {
		case '+':
			e.pos++
			right, err := e.term()

			if err != nil {
				return left, err
			}

			left.Value = left.Value.Add(right.Value)
		case '-':
			e.pos++
			right, err := e.term()

			if err != nil {
				return left, err
			}

			left.Value = left.Value.Sub(right.Value)
		default:
			return left, nil
		}
	}
}

func (e *evaluator) term() (operandValue, Diagnostic) {
	left, err := e.factor()

	if err != nil {
		return left, err
	}

	for {
		op := e.peek()

		if op != '*' && op != '/' {
			return left, nil
		}

		e.pos++
		right, err := e.factor()

		if err != nil {
			return left, err
		}

		if !left.Value.IsAbsolute() || !right.Value.IsAbsolute() {
			return left, &RelocationError{e.at}
		}

		if op == '*' {
			left.Value.Number *= right.Value.Number
		} else if right.Value.Number == 0 {
			left.Value.Number = 0
		} else {
			left.Value.Number /= right.Value.Number
		}
	}
}

func (e *evaluator) factor() (operandValue, Diagnostic) {
	switch e.peek() {
	case '+':
		e.pos++
		return e.factor()
	case '-':
		e.pos++
		result, err := e.factor()
		result.Value = result.Value.Negate()
		return result, err
	}

	return e.primary()
}

func (e *evaluator) primary() (operandValue, Diagnostic) {
	c := e.peek()

	switch {
	case c == 0:
		return operandValue{}, &InvalidExpressionError{e.at, e.text}

	case c == '(':
		end := constant.MatchParen(e.text, e.pos)

		if end < 0 {
			return operandValue{}, &UnbalancedParenthesesError{e.at}
		}

		inner := &evaluator{
			ctx:    e.ctx,
			text:   e.text[e.pos+1 : end],
			at:     e.at,
			rec:    e.rec,
			flag:   e.flag,
			record: e.record,
		}

		result, err := inner.expr()

		if err != nil {
			return result, err
		}

		if inner.pos < len(inner.text) {
			return result, &UnexpectedCharacterError{e.at, rune(inner.text[inner.pos])}
		}

		e.pos = end + 1
		return result, nil

	case c == '*':
		e.pos++
		return operandValue{e.location(), e.locationLength()}, nil

	case c >= '0' && c <= '9':
		start := e.pos

		for e.pos < len(e.text) && e.text[e.pos] >= '0' && e.text[e.pos] <= '9' {
			e.pos++
		}

		value, err := encoding.DecodeInt(e.text[start:e.pos])

		if err != nil || value > 0x7FFFFFFF {
			return operandValue{}, &InvalidLiteralError{e.at}
		}

		return operandValue{symtab.Absolute(value), 1}, nil

	case constant.IsSymbolStart(c):
		next := byte(0)

		if e.pos+1 < len(e.text) {
			next = e.text[e.pos+1]
		}

		if next == '\'' {
			switch upper(c) {
			case 'X', 'B', 'C':
				return e.selfDefining(upper(c))
			case 'L':
				if constant.IsAttributeQuote(e.text, e.pos+1) {
					return e.lengthAttribute()
				}
			}
		}

		return e.symbol()
	}

	return operandValue{}, &UnexpectedCharacterError{e.at, rune(c)}
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}

func (e *evaluator) selfDefining(kind byte) (operandValue, Diagnostic) {
	start := e.pos + 2
	end := start

	for ; end < len(e.text); end++ {
		if e.text[end] == '\'' {
			if kind == 'C' && end+1 < len(e.text) && e.text[end+1] == '\'' {
				end++
				continue
			}

			break
		}
	}

	if end >= len(e.text) {
		return operandValue{}, &InvalidStringError{e.at}
	}

	body := e.text[start:end]

	if kind == 'C' {
		body = strings.ReplaceAll(body, "''", "'")
		body = strings.ReplaceAll(body, "&&", "&")
	}

	value, err := encoding.DecodeTerm(kind, body)

	if err != nil {
		return operandValue{}, &InvalidLiteralError{e.at}
	}

	e.pos = end + 1
	return operandValue{symtab.Absolute(value), 1}, nil
}

func (e *evaluator) lengthAttribute() (operandValue, Diagnostic) {
	e.pos += 2

	if e.peek() == '*' {
		e.pos++
		return operandValue{symtab.Absolute(e.locationLength()), 1}, nil
	}

	name := e.name()
	sym, err := e.lookup(name)

	if err != nil {
		return operandValue{}, err
	}

	return operandValue{symtab.Absolute(sym.Length), 1}, nil
}

func (e *evaluator) name() string {
	start := e.pos

	for e.pos < len(e.text) && constant.IsSymbolChar(e.text[e.pos]) {
		e.pos++
	}

	return strings.ToUpper(e.text[start:e.pos])
}

func (e *evaluator) symbol() (operandValue, Diagnostic) {
	sym, err := e.lookup(e.name())

	if err != nil {
		return operandValue{}, err
	}

	return operandValue{sym.Value, sym.Length}, nil
}

func (e *evaluator) lookup(name string) (*symtab.Symbol, Diagnostic) {
	table := e.ctx.Symbols

	var sym *symtab.Symbol

	if e.record {
		sym = table.ReferenceSymbol(name, e.rec.Statement.Line, e.flag)
	} else {
		sym, _ = table.Lookup(name)
	}

	if sym == nil || !sym.Defined {
		return nil, &UnknownLabelError{e.at, name}
	}

	return sym, nil
}

func (e *evaluator) location() symtab.Value {
	if e.rec == nil || e.rec.Scope == 0 {
		if e.rec == nil {
			return symtab.Absolute(0)
		}

		return symtab.Absolute(e.rec.Loc)
	}

	return symtab.Relocatable(e.rec.Loc, e.rec.Scope)
}

func (e *evaluator) locationLength() int64 {
	if e.rec != nil && e.rec.Opcode != nil {
		return e.rec.Opcode.Length()
	}

	return 1
}
