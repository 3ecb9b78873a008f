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

const (
	OPERAND_NONE OperandType = iota
	OPERAND_REGISTER
	OPERAND_ABSOLUTE
	OPERAND_RELOCATABLE
	OPERAND_COMPLEX
	OPERAND_SYMBOL
	OPERAND_STRING
)

const (
	RECORD_COMMENT RecordType = iota
	RECORD_LOCATED
	RECORD_STORAGE
	RECORD_EQUATE
	RECORD_INSTRUCTION
	RECORD_POOL
)

const (
	SEVERITY_NONE Severity = iota
	SEVERITY_INFO
	SEVERITY_NOTIFY
	SEVERITY_WARNING
	SEVERITY_ERROR
	SEVERITY_SEVERE
)

const (
	DIRECTIVE_INVALID DirectiveType = iota

	// Sections
	DIRECTIVE_START
	DIRECTIVE_CSECT
	DIRECTIVE_RSECT
	DIRECTIVE_DSECT

	// Storage
	DIRECTIVE_DC
	DIRECTIVE_DS
	DIRECTIVE_EQU
	DIRECTIVE_ORG
	DIRECTIVE_CNOP
	DIRECTIVE_LTORG

	// Addressing
	DIRECTIVE_USING
	DIRECTIVE_DROP

	// Linkage
	DIRECTIVE_ENTRY
	DIRECTIVE_EXTRN
	DIRECTIVE_WXTRN
	DIRECTIVE_AMODE
	DIRECTIVE_RMODE
	DIRECTIVE_END

	// Listing control
	DIRECTIVE_TITLE
	DIRECTIVE_EJECT
	DIRECTIVE_SPACE
	DIRECTIVE_PRINT
)

const (
	LABEL_SIZE      = 8
	STATEMENT_END   = 71
	CONTINUE_COLUMN = 72
	CONTINUE_START  = 16

	DISPLACEMENT_LIMIT = 4096
	RETURN_CODE_FATAL  = 16
)
