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
	"bufio"
	"io"
	"strings"

	"github.com/lassandro/asm370/pkg/constant"
)

type segment struct {
	text     string
	line     int
	column   int
	lineByte int64
	raw      string
}

// ReadStatements splits fixed format source into statements. Columns 1-71
// hold the statement, a non-blank column 72 continues it on the next line
// from column 16 and columns 73-80 are ignored. Syntax problems found while
// splitting are returned alongside the statements.
func ReadStatements(input io.Reader) ([]*Statement, []Diagnostic, error) {
	var statements []*Statement
	var diagnostics []Diagnostic
	var group []segment

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1}

	flush := func() {
		if len(group) == 0 {
			return
		}

		stmt, errs := buildStatement(group)
		statements = append(statements, stmt)
		diagnostics = append(diagnostics, errs...)
		group = nil
	}

	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		line := strings.ReplaceAll(raw, "\t", " ")

		continued := len(line) >= CONTINUE_COLUMN && line[CONTINUE_COLUMN-1] != ' '

		if len(line) > STATEMENT_END {
			line = line[:STATEMENT_END]
		}

		seg := segment{
			text:     line,
			line:     cursor.Line,
			column:   1,
			lineByte: cursor.LineByte,
			raw:      raw,
		}

		if len(group) > 0 {
			if len(line) >= CONTINUE_START {
				seg.text = line[CONTINUE_START-1:]
			} else {
				seg.text = ""
			}

			seg.column = CONTINUE_START
		}

		group = append(group, seg)

		if !continued {
			flush()
		}

		cursor.Line++
		cursor.LineByte += int64(len(scanner.Text()) + 1)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	flush()

	return statements, diagnostics, nil
}

func buildStatement(group []segment) (*Statement, []Diagnostic) {
	first := group[0]

	stmt := &Statement{
		Line: first.line,
		Position: Cursor{
			Line:     first.line,
			Column:   1,
			Byte:     first.lineByte,
			Size:     int64(len(first.raw)),
			LineByte: first.lineByte,
		},
	}

	for _, seg := range group {
		stmt.Lines = append(stmt.Lines, seg.raw)
	}

	text := first.text

	if strings.TrimSpace(text) == "" ||
		strings.HasPrefix(text, "*") || strings.HasPrefix(text, ".*") {
		stmt.Comment = true
		return stmt, nil
	}

	pos := 0

	if text[0] != ' ' {
		pos = fieldEnd(text, 0)
		stmt.Label = text[:pos]
		stmt.labelColumn = 1
	}

	pos = skipBlanks(text, pos)

	if pos >= len(text) {
		// A label on its own
		stmt.mnemonicColumn = pos + 1
		return stmt, nil
	}

	end := fieldEnd(text, pos)
	stmt.Mnemonic = strings.ToUpper(text[pos:end])
	stmt.mnemonicColumn = pos + 1

	pos = skipBlanks(text, end)
	stmt.errors = stmt.scanOperand(group, pos)

	return stmt, stmt.errors
}

func fieldEnd(text string, pos int) int {
	for pos < len(text) && text[pos] != ' ' {
		pos++
	}

	return pos
}

func skipBlanks(text string, pos int) int {
	for pos < len(text) && text[pos] == ' ' {
		pos++
	}

	return pos
}

func attributeQuote(builder *strings.Builder, text string, i int) bool {
	prefix := builder.String()

	if len(prefix) == 0 {
		return false
	}

	return constant.IsAttributeQuote(prefix+text[i:], len(prefix))
}

// scanOperand collects the operand field starting at pos of the first
// segment. The field ends at the first blank outside quotes. It resumes on
// the next segment when a string or the field runs into column 71, or when
// it ends in a comma before a blank.
func (stmt *Statement) scanOperand(group []segment, pos int) []Diagnostic {
	var builder strings.Builder
	var diagnostics []Diagnostic

	inQuote := false
	index := 0

	for index < len(group) {
		seg := group[index]
		text := seg.text
		i := pos

		if i >= len(text) && builder.Len() == 0 {
			break
		}

		stmt.spans = append(stmt.spans, span{
			start:    builder.Len(),
			line:     seg.line,
			column:   seg.column + i,
			lineByte: seg.lineByte,
		})

		blank := false

		for ; i < len(text); i++ {
			c := text[i]

			if inQuote {
				builder.WriteByte(c)

				if c == '\'' {
					if i+1 < len(text) && text[i+1] == '\'' {
						builder.WriteByte('\'')
						i++
					} else {
						inQuote = false
					}
				}

				continue
			}

			if c == ' ' {
				blank = true
				break
			}

			if c == '\'' && !attributeQuote(&builder, text, i) {
				inQuote = true
			}

			builder.WriteByte(c)
		}

		index++
		pos = 0

		if index >= len(group) {
			break
		}

		if blank {
			if !strings.HasSuffix(builder.String(), ",") {
				break
			}

			pos = skipBlanks(group[index].text, 0)
		}
	}

	stmt.Operand = builder.String()

	if inQuote {
		diagnostics = append(
			diagnostics,
			&InvalidStringError{stmt.cursorAt(0, len(stmt.Operand))},
		)
		return diagnostics
	}

	if stmt.Operand == "" {
		return diagnostics
	}

	if err := stmt.splitOperands(); err != nil {
		diagnostics = append(diagnostics, err)
	}

	return diagnostics
}

// splitOperands splits the operand field on commas outside parentheses and
// quotes
func (stmt *Statement) splitOperands() Diagnostic {
	s := stmt.Operand
	depth := 0
	start := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if constant.IsAttributeQuote(s, i) {
				continue
			}

			for i++; i < len(s); i++ {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						i++
						continue
					}

					break
				}
			}
		case '(':
			depth++
		case ')':
			depth--

			if depth < 0 {
				return &UnbalancedParenthesesError{stmt.cursorAt(i, 1)}
			}
		case ',':
			if depth == 0 {
				stmt.Operands = append(stmt.Operands, s[start:i])
				stmt.offsets = append(stmt.offsets, start)
				start = i + 1
			}
		}
	}

	if depth != 0 {
		stmt.Operands = nil
		stmt.offsets = nil
		return &UnbalancedParenthesesError{stmt.cursorAt(0, len(s))}
	}

	stmt.Operands = append(stmt.Operands, s[start:])
	stmt.offsets = append(stmt.offsets, start)

	return nil
}

// cursorAt maps an offset into the operand field to its source position
func (stmt *Statement) cursorAt(offset int, size int) Cursor {
	if len(stmt.spans) == 0 {
		return stmt.MnemonicCursor()
	}

	current := stmt.spans[0]

	for _, sp := range stmt.spans {
		if sp.start <= offset {
			current = sp
		}
	}

	column := current.column + offset - current.start

	return Cursor{
		Line:     current.line,
		Column:   column,
		Byte:     current.lineByte + int64(column-1),
		Size:     int64(size),
		LineByte: current.lineByte,
	}
}

func (stmt *Statement) OperandCursor(i int) Cursor {
	if i < 0 || i >= len(stmt.Operands) {
		return stmt.cursorAt(0, len(stmt.Operand))
	}

	return stmt.cursorAt(stmt.offsets[i], len(stmt.Operands[i]))
}

func (stmt *Statement) LabelCursor() Cursor {
	return Cursor{
		Line:     stmt.Line,
		Column:   1,
		Byte:     stmt.Position.LineByte,
		Size:     int64(len(stmt.Label)),
		LineByte: stmt.Position.LineByte,
	}
}

func (stmt *Statement) MnemonicCursor() Cursor {
	column := stmt.mnemonicColumn

	if column == 0 {
		column = 1
	}

	return Cursor{
		Line:     stmt.Line,
		Column:   column,
		Byte:     stmt.Position.LineByte + int64(column-1),
		Size:     int64(len(stmt.Mnemonic)),
		LineByte: stmt.Position.LineByte,
	}
}
