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
	"fmt"
	"strings"

	"github.com/lassandro/asm370/pkg/constant"
	"github.com/lassandro/asm370/pkg/literal"
	"github.com/lassandro/asm370/pkg/opcode"
	"github.com/lassandro/asm370/pkg/symtab"
)

type OperandType uint
type RecordType uint
type Severity uint
type DirectiveType uint

type Cursor struct {
	Line     int
	Column   int
	Byte     int64
	Size     int64
	LineByte int64
}

// span maps a stretch of the joined operand field back to the physical
// line it came from
type span struct {
	start    int
	line     int
	column   int
	lineByte int64
}

// Statement is one logical source statement, continuation lines included
type Statement struct {
	Line     int
	Lines    []string
	Position Cursor
	Label    string
	Mnemonic string
	Operand  string
	Operands []string
	Comment  bool

	labelColumn    int
	mnemonicColumn int
	offsets        []int
	spans          []span
	errors         []Diagnostic
}

// Record is the classified form of a statement. Addresses are section
// relative during the first pass and module relative afterwards.
type Record struct {
	Type      RecordType
	Statement *Statement
	Directive DirectiveType
	Opcode    *opcode.Opcode
	Scope     int
	Loc       int64
	Length    int64
	Value     symtab.Value

	Skeleton    []byte
	Descriptors []*constant.Descriptor
	Offsets     []int64
	Literals    []*literal.Entry

	// Filled by the second pass for the listing
	Object   []byte
	Addr1    int64
	Addr2    int64
	HasAddr1 bool
	HasAddr2 bool

	Errored bool

	label    string
	literals map[int]*literal.Entry
}

type TokenError interface {
	GetPosition() Cursor
}

// Diagnostic is an assembly error that leaves the run going
type Diagnostic interface {
	error
	TokenError
	Severity() Severity
	Code() string
}

func (severity Severity) String() string {
	switch severity {
	case SEVERITY_NONE:
		return "None"
	case SEVERITY_INFO:
		return "Informational"
	case SEVERITY_NOTIFY:
		return "Notify"
	case SEVERITY_WARNING:
		return "Warning"
	case SEVERITY_ERROR:
		return "Error"
	case SEVERITY_SEVERE:
		return "Severe"
	}

	return "<invalid>"
}

// Letter is the one character severity suffix of message codes
func (severity Severity) Letter() byte {
	return " INWES"[severity]
}

func (severity Severity) ReturnCode() int {
	switch severity {
	case SEVERITY_NOTIFY:
		return 2
	case SEVERITY_WARNING:
		return 4
	case SEVERITY_ERROR:
		return 8
	case SEVERITY_SEVERE:
		return 12
	}

	return 0
}

func operandTypeString(operandType OperandType) string {
	switch operandType {
	case OPERAND_REGISTER:
		return "Register"
	case OPERAND_ABSOLUTE:
		return "Absolute"
	case OPERAND_RELOCATABLE:
		return "Relocatable"
	case OPERAND_COMPLEX:
		return "Complex"
	case OPERAND_SYMBOL:
		return "Symbol"
	case OPERAND_STRING:
		return "String"
	}

	return "<invalid>"
}

func code(number int, severity Severity) string {
	return fmt.Sprintf("ASM%03d%c", number, severity.Letter())
}

type InvalidOperandError struct {
	Position Cursor
	Required []OperandType
	Received OperandType
}

func (err *InvalidOperandError) GetPosition() Cursor { return err.Position }
func (err *InvalidOperandError) Severity() Severity  { return SEVERITY_ERROR }
func (err *InvalidOperandError) Code() string        { return code(1, err.Severity()) }

func (err *InvalidOperandError) Error() string {
	var requiredString string

	requiredStrings := make([]string, 0, len(err.Required))

	for _, operandType := range err.Required {
		requiredStrings = append(requiredStrings, operandTypeString(operandType))
	}

	if count := len(requiredStrings); count == 1 {
		requiredString = requiredStrings[0]
	} else if count == 2 {
		requiredString = requiredStrings[0] + " or " + requiredStrings[1]
	} else if count > 2 {
		requiredString = strings.Join(
			requiredStrings[:len(requiredStrings)-1], ", ",
		) + ", or " + requiredStrings[len(requiredStrings)-1]
	}

	return fmt.Sprintf(
		"%02d:%02d: Invalid operand\n\twant:%s\n\thave:%s",
		err.Position.Line,
		err.Position.Column,
		requiredString,
		operandTypeString(err.Received),
	)
}

type InvalidNumArgumentsError struct {
	Position Cursor
	Required int
	Received int
}

func (err *InvalidNumArgumentsError) GetPosition() Cursor { return err.Position }
func (err *InvalidNumArgumentsError) Severity() Severity  { return SEVERITY_ERROR }
func (err *InvalidNumArgumentsError) Code() string        { return code(2, err.Severity()) }

func (err *InvalidNumArgumentsError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid number of operands\n\twant:%d\n\thave:%d",
		err.Position.Line,
		err.Position.Column,
		err.Required,
		err.Received,
	)
}

// MissingOperandError is raised when fewer operands are given than the
// statement needs. The statement keeps its full length.
type MissingOperandError struct {
	Position Cursor
	Required int
	Received int
}

func (err *MissingOperandError) GetPosition() Cursor { return err.Position }
func (err *MissingOperandError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *MissingOperandError) Code() string        { return code(3, err.Severity()) }

func (err *MissingOperandError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Missing operand\n\twant:%d\n\thave:%d",
		err.Position.Line,
		err.Position.Column,
		err.Required,
		err.Received,
	)
}

type OversizedLabelError struct {
	Position Cursor
	Required int64
	Received int64
}

func (err *OversizedLabelError) GetPosition() Cursor { return err.Position }
func (err *OversizedLabelError) Severity() Severity  { return SEVERITY_ERROR }
func (err *OversizedLabelError) Code() string        { return code(4, err.Severity()) }

func (err *OversizedLabelError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Label exceeds allowed length\n\twant:%d\n\thave:%d",
		err.Position.Line,
		err.Position.Column,
		err.Required,
		err.Received,
	)
}

type InvalidLiteralError struct {
	Position Cursor
}

func (err *InvalidLiteralError) GetPosition() Cursor { return err.Position }
func (err *InvalidLiteralError) Severity() Severity  { return SEVERITY_ERROR }
func (err *InvalidLiteralError) Code() string        { return code(5, err.Severity()) }

func (err *InvalidLiteralError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid self-defining term",
		err.Position.Line,
		err.Position.Column,
	)
}

type InvalidStringError struct {
	Position Cursor
}

func (err *InvalidStringError) GetPosition() Cursor { return err.Position }
func (err *InvalidStringError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *InvalidStringError) Code() string        { return code(6, err.Severity()) }

func (err *InvalidStringError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Unterminated string",
		err.Position.Line,
		err.Position.Column,
	)
}

type OversizedLiteralError struct {
	Position Cursor
	Required interface{}
	Received interface{}
}

func (err *OversizedLiteralError) GetPosition() Cursor { return err.Position }
func (err *OversizedLiteralError) Severity() Severity  { return SEVERITY_ERROR }
func (err *OversizedLiteralError) Code() string        { return code(7, err.Severity()) }

func (err *OversizedLiteralError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Value exceeds allowed size\n\twant:%v\n\thave:%v",
		err.Position.Line,
		err.Position.Column,
		err.Required,
		err.Received,
	)
}

type InvalidRegisterError struct {
	Position Cursor
}

func (err *InvalidRegisterError) GetPosition() Cursor { return err.Position }
func (err *InvalidRegisterError) Severity() Severity  { return SEVERITY_ERROR }
func (err *InvalidRegisterError) Code() string        { return code(8, err.Severity()) }

func (err *InvalidRegisterError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid register",
		err.Position.Line,
		err.Position.Column,
	)
}

type UnexpectedCharacterError struct {
	Position Cursor
	Received rune
}

func (err *UnexpectedCharacterError) GetPosition() Cursor { return err.Position }
func (err *UnexpectedCharacterError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *UnexpectedCharacterError) Code() string        { return code(9, err.Severity()) }

func (err *UnexpectedCharacterError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Unexpected character %c",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type UnbalancedParenthesesError struct {
	Position Cursor
}

func (err *UnbalancedParenthesesError) GetPosition() Cursor { return err.Position }
func (err *UnbalancedParenthesesError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *UnbalancedParenthesesError) Code() string        { return code(10, err.Severity()) }

func (err *UnbalancedParenthesesError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Unbalanced parentheses",
		err.Position.Line,
		err.Position.Column,
	)
}

type InvalidExpressionError struct {
	Position Cursor
	Received string
}

func (err *InvalidExpressionError) GetPosition() Cursor { return err.Position }
func (err *InvalidExpressionError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *InvalidExpressionError) Code() string        { return code(11, err.Severity()) }

func (err *InvalidExpressionError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid expression '%s'",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type RedeclaredLabelError struct {
	Position Cursor
	Received string
}

func (err *RedeclaredLabelError) GetPosition() Cursor { return err.Position }
func (err *RedeclaredLabelError) Severity() Severity  { return SEVERITY_ERROR }
func (err *RedeclaredLabelError) Code() string        { return code(12, err.Severity()) }

func (err *RedeclaredLabelError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Redeclaration of label '%s'",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type UnknownLabelError struct {
	Position Cursor
	Received string
}

func (err *UnknownLabelError) GetPosition() Cursor { return err.Position }
func (err *UnknownLabelError) Severity() Severity  { return SEVERITY_ERROR }
func (err *UnknownLabelError) Code() string        { return code(13, err.Severity()) }

func (err *UnknownLabelError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Undefined symbol '%s'",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type UnknownMnemonicError struct {
	Position Cursor
	Received string
}

func (err *UnknownMnemonicError) GetPosition() Cursor { return err.Position }
func (err *UnknownMnemonicError) Severity() Severity  { return SEVERITY_ERROR }
func (err *UnknownMnemonicError) Code() string        { return code(14, err.Severity()) }

func (err *UnknownMnemonicError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Unknown mnemonic '%s'",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type MissingLabelError struct {
	Position Cursor
	Received string
}

func (err *MissingLabelError) GetPosition() Cursor { return err.Position }
func (err *MissingLabelError) Severity() Severity  { return SEVERITY_ERROR }
func (err *MissingLabelError) Code() string        { return code(15, err.Severity()) }

func (err *MissingLabelError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: %s requires a label",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type UnaddressableError struct {
	Position Cursor
	Received int64
}

func (err *UnaddressableError) GetPosition() Cursor { return err.Position }
func (err *UnaddressableError) Severity() Severity  { return SEVERITY_ERROR }
func (err *UnaddressableError) Code() string        { return code(16, err.Severity()) }

func (err *UnaddressableError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Address %06X is not covered by any USING",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type DuplicateRegisterError struct {
	Position Cursor
	Received int64
}

func (err *DuplicateRegisterError) GetPosition() Cursor { return err.Position }
func (err *DuplicateRegisterError) Severity() Severity  { return SEVERITY_ERROR }
func (err *DuplicateRegisterError) Code() string        { return code(17, err.Severity()) }

func (err *DuplicateRegisterError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Register %d appears twice",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type UsingReplacedError struct {
	Position Cursor
	Received int64
	Line     int
}

func (err *UsingReplacedError) GetPosition() Cursor { return err.Position }
func (err *UsingReplacedError) Severity() Severity  { return SEVERITY_NOTIFY }
func (err *UsingReplacedError) Code() string        { return code(18, err.Severity()) }

func (err *UsingReplacedError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Register %d replaces the USING from line %d",
		err.Position.Line,
		err.Position.Column,
		err.Received,
		err.Line,
	)
}

type InactiveRegisterError struct {
	Position Cursor
	Received int64
}

func (err *InactiveRegisterError) GetPosition() Cursor { return err.Position }
func (err *InactiveRegisterError) Severity() Severity  { return SEVERITY_WARNING }
func (err *InactiveRegisterError) Code() string        { return code(19, err.Severity()) }

func (err *InactiveRegisterError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Register %d is not in use",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type MissingEndError struct {
	Position Cursor
}

func (err *MissingEndError) GetPosition() Cursor { return err.Position }
func (err *MissingEndError) Severity() Severity  { return SEVERITY_WARNING }
func (err *MissingEndError) Code() string        { return code(20, err.Severity()) }

func (err *MissingEndError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: END statement missing, one was supplied",
		err.Position.Line,
		err.Position.Column,
	)
}

type StatementAfterEndError struct {
	Position Cursor
}

func (err *StatementAfterEndError) GetPosition() Cursor { return err.Position }
func (err *StatementAfterEndError) Severity() Severity  { return SEVERITY_WARNING }
func (err *StatementAfterEndError) Code() string        { return code(21, err.Severity()) }

func (err *StatementAfterEndError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Statements after END are ignored",
		err.Position.Line,
		err.Position.Column,
	)
}

type AlignmentError struct {
	Position Cursor
	Required int64
	Received int64
}

func (err *AlignmentError) GetPosition() Cursor { return err.Position }
func (err *AlignmentError) Severity() Severity  { return SEVERITY_INFO }
func (err *AlignmentError) Code() string        { return code(22, err.Severity()) }

func (err *AlignmentError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Operand address %06X is not aligned to %d",
		err.Position.Line,
		err.Position.Column,
		err.Received,
		err.Required,
	)
}

type RelocationError struct {
	Position Cursor
}

func (err *RelocationError) GetPosition() Cursor { return err.Position }
func (err *RelocationError) Severity() Severity  { return SEVERITY_ERROR }
func (err *RelocationError) Code() string        { return code(23, err.Severity()) }

func (err *RelocationError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Relocatable term not allowed here",
		err.Position.Line,
		err.Position.Column,
	)
}

type InvalidConstantError struct {
	Position Cursor
	Err      error
}

func (err *InvalidConstantError) GetPosition() Cursor { return err.Position }
func (err *InvalidConstantError) Severity() Severity  { return SEVERITY_ERROR }
func (err *InvalidConstantError) Code() string        { return code(24, err.Severity()) }
func (err *InvalidConstantError) Unwrap() error       { return err.Err }

func (err *InvalidConstantError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Invalid constant: %v",
		err.Position.Line,
		err.Position.Column,
		err.Err,
	)
}

type LiteralScopeError struct {
	Position Cursor
	Received string
}

func (err *LiteralScopeError) GetPosition() Cursor { return err.Position }
func (err *LiteralScopeError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *LiteralScopeError) Code() string        { return code(25, err.Severity()) }

func (err *LiteralScopeError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Literal %s outside of an ordinary section",
		err.Position.Line,
		err.Position.Column,
		err.Received,
	)
}

type LiteralLimitError struct {
	Position Cursor
	Required int
}

func (err *LiteralLimitError) GetPosition() Cursor { return err.Position }
func (err *LiteralLimitError) Severity() Severity  { return SEVERITY_SEVERE }
func (err *LiteralLimitError) Code() string        { return code(26, err.Severity()) }

func (err *LiteralLimitError) Error() string {
	return fmt.Sprintf(
		"%02d:%02d: Literal count exceeds %d",
		err.Position.Line,
		err.Position.Column,
		err.Required,
	)
}

// RegionOverflowError aborts the run. It is never a Diagnostic.
type RegionOverflowError struct {
	Required int64
	Limit    int64
}

func (err *RegionOverflowError) Error() string {
	return fmt.Sprintf(
		"Program needs %d bytes, region is %d bytes", err.Required, err.Limit,
	)
}
