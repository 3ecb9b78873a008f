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

// Package opcode is the static System/370 machine instruction table.
package opcode

import (
	"strings"
)

type Opcode struct {
	Mnemonic string

	// One byte opcodes are stored in the low byte; two byte opcodes
	// (B2xx, 9Cxx) use both.
	Code   uint16
	Format Format

	// Condition mask of extended branch mnemonics
	Mask uint8

	// Boundary the storage operand is expected on
	Align int64
	Flags uint8
}

var table = []Opcode{
	// RR
	{"SPM", 0x04, FORMAT_RR_R1, 0, 1, 0},
	{"BALR", 0x05, FORMAT_RR, 0, 1, 0},
	{"BCTR", 0x06, FORMAT_RR, 0, 1, 0},
	{"BCR", 0x07, FORMAT_RR, 0, 1, 0},
	{"SSK", 0x08, FORMAT_RR, 0, 1, 0},
	{"ISK", 0x09, FORMAT_RR, 0, 1, 0},
	{"SVC", 0x0A, FORMAT_RR_I, 0, 1, 0},
	{"MVCL", 0x0E, FORMAT_RR, 0, 1, 0},
	{"CLCL", 0x0F, FORMAT_RR, 0, 1, 0},
	{"LPR", 0x10, FORMAT_RR, 0, 1, 0},
	{"LNR", 0x11, FORMAT_RR, 0, 1, 0},
	{"LTR", 0x12, FORMAT_RR, 0, 1, 0},
	{"LCR", 0x13, FORMAT_RR, 0, 1, 0},
	{"NR", 0x14, FORMAT_RR, 0, 1, 0},
	{"CLR", 0x15, FORMAT_RR, 0, 1, 0},
	{"OR", 0x16, FORMAT_RR, 0, 1, 0},
	{"XR", 0x17, FORMAT_RR, 0, 1, 0},
	{"LR", 0x18, FORMAT_RR, 0, 1, 0},
	{"CR", 0x19, FORMAT_RR, 0, 1, 0},
	{"AR", 0x1A, FORMAT_RR, 0, 1, 0},
	{"SR", 0x1B, FORMAT_RR, 0, 1, 0},
	{"MR", 0x1C, FORMAT_RR, 0, 1, 0},
	{"DR", 0x1D, FORMAT_RR, 0, 1, 0},
	{"ALR", 0x1E, FORMAT_RR, 0, 1, 0},
	{"SLR", 0x1F, FORMAT_RR, 0, 1, 0},
	{"LPDR", 0x20, FORMAT_RR, 0, 1, 0},
	{"LNDR", 0x21, FORMAT_RR, 0, 1, 0},
	{"LTDR", 0x22, FORMAT_RR, 0, 1, 0},
	{"LCDR", 0x23, FORMAT_RR, 0, 1, 0},
	{"HDR", 0x24, FORMAT_RR, 0, 1, 0},
	{"LRDR", 0x25, FORMAT_RR, 0, 1, 0},
	{"MXR", 0x26, FORMAT_RR, 0, 1, 0},
	{"MXDR", 0x27, FORMAT_RR, 0, 1, 0},
	{"LDR", 0x28, FORMAT_RR, 0, 1, 0},
	{"CDR", 0x29, FORMAT_RR, 0, 1, 0},
	{"ADR", 0x2A, FORMAT_RR, 0, 1, 0},
	{"SDR", 0x2B, FORMAT_RR, 0, 1, 0},
	{"MDR", 0x2C, FORMAT_RR, 0, 1, 0},
	{"DDR", 0x2D, FORMAT_RR, 0, 1, 0},
	{"AWR", 0x2E, FORMAT_RR, 0, 1, 0},
	{"SWR", 0x2F, FORMAT_RR, 0, 1, 0},
	{"LPER", 0x30, FORMAT_RR, 0, 1, 0},
	{"LNER", 0x31, FORMAT_RR, 0, 1, 0},
	{"LTER", 0x32, FORMAT_RR, 0, 1, 0},
	{"LCER", 0x33, FORMAT_RR, 0, 1, 0},
	{"HER", 0x34, FORMAT_RR, 0, 1, 0},
	{"LRER", 0x35, FORMAT_RR, 0, 1, 0},
	{"AXR", 0x36, FORMAT_RR, 0, 1, 0},
	{"SXR", 0x37, FORMAT_RR, 0, 1, 0},
	{"LER", 0x38, FORMAT_RR, 0, 1, 0},
	{"CER", 0x39, FORMAT_RR, 0, 1, 0},
	{"AER", 0x3A, FORMAT_RR, 0, 1, 0},
	{"SER", 0x3B, FORMAT_RR, 0, 1, 0},
	{"MER", 0x3C, FORMAT_RR, 0, 1, 0},
	{"DER", 0x3D, FORMAT_RR, 0, 1, 0},
	{"AUR", 0x3E, FORMAT_RR, 0, 1, 0},
	{"SUR", 0x3F, FORMAT_RR, 0, 1, 0},

	// RX
	{"STH", 0x40, FORMAT_RX, 0, 2, FLAG_MODIFY2},
	{"LA", 0x41, FORMAT_RX, 0, 1, 0},
	{"STC", 0x42, FORMAT_RX, 0, 1, FLAG_MODIFY2},
	{"IC", 0x43, FORMAT_RX, 0, 1, 0},
	{"EX", 0x44, FORMAT_RX, 0, 2, FLAG_EXECUTE},
	{"BAL", 0x45, FORMAT_RX, 0, 1, FLAG_BRANCH},
	{"BCT", 0x46, FORMAT_RX, 0, 1, FLAG_BRANCH},
	{"BC", 0x47, FORMAT_RX, 0, 1, FLAG_BRANCH},
	{"LH", 0x48, FORMAT_RX, 0, 2, 0},
	{"CH", 0x49, FORMAT_RX, 0, 2, 0},
	{"AH", 0x4A, FORMAT_RX, 0, 2, 0},
	{"SH", 0x4B, FORMAT_RX, 0, 2, 0},
	{"MH", 0x4C, FORMAT_RX, 0, 2, 0},
	{"CVD", 0x4E, FORMAT_RX, 0, 8, FLAG_MODIFY2},
	{"CVB", 0x4F, FORMAT_RX, 0, 8, 0},
	{"ST", 0x50, FORMAT_RX, 0, 4, FLAG_MODIFY2},
	{"N", 0x54, FORMAT_RX, 0, 4, 0},
	{"CL", 0x55, FORMAT_RX, 0, 4, 0},
	{"O", 0x56, FORMAT_RX, 0, 4, 0},
	{"X", 0x57, FORMAT_RX, 0, 4, 0},
	{"L", 0x58, FORMAT_RX, 0, 4, 0},
	{"C", 0x59, FORMAT_RX, 0, 4, 0},
	{"A", 0x5A, FORMAT_RX, 0, 4, 0},
	{"S", 0x5B, FORMAT_RX, 0, 4, 0},
	{"M", 0x5C, FORMAT_RX, 0, 4, 0},
	{"D", 0x5D, FORMAT_RX, 0, 4, 0},
	{"AL", 0x5E, FORMAT_RX, 0, 4, 0},
	{"SL", 0x5F, FORMAT_RX, 0, 4, 0},
	{"STD", 0x60, FORMAT_RX, 0, 8, FLAG_MODIFY2},
	{"MXD", 0x67, FORMAT_RX, 0, 8, 0},
	{"LD", 0x68, FORMAT_RX, 0, 8, 0},
	{"CD", 0x69, FORMAT_RX, 0, 8, 0},
	{"AD", 0x6A, FORMAT_RX, 0, 8, 0},
	{"SD", 0x6B, FORMAT_RX, 0, 8, 0},
	{"MD", 0x6C, FORMAT_RX, 0, 8, 0},
	{"DD", 0x6D, FORMAT_RX, 0, 8, 0},
	{"AW", 0x6E, FORMAT_RX, 0, 8, 0},
	{"SW", 0x6F, FORMAT_RX, 0, 8, 0},
	{"STE", 0x70, FORMAT_RX, 0, 4, FLAG_MODIFY2},
	{"LE", 0x78, FORMAT_RX, 0, 4, 0},
	{"CE", 0x79, FORMAT_RX, 0, 4, 0},
	{"AE", 0x7A, FORMAT_RX, 0, 4, 0},
	{"SE", 0x7B, FORMAT_RX, 0, 4, 0},
	{"ME", 0x7C, FORMAT_RX, 0, 4, 0},
	{"DE", 0x7D, FORMAT_RX, 0, 4, 0},
	{"AU", 0x7E, FORMAT_RX, 0, 4, 0},
	{"SU", 0x7F, FORMAT_RX, 0, 4, 0},

	// Control and I/O
	{"SSM", 0x8000, FORMAT_S, 0, 1, 0},
	{"LPSW", 0x8200, FORMAT_S, 0, 8, 0},
	{"TS", 0x9300, FORMAT_S, 0, 1, FLAG_MODIFY1},
	{"SIO", 0x9C00, FORMAT_S, 0, 1, 0},
	{"SIOF", 0x9C01, FORMAT_S, 0, 1, 0},
	{"TIO", 0x9D00, FORMAT_S, 0, 1, 0},
	{"CLRIO", 0x9D01, FORMAT_S, 0, 1, 0},
	{"HIO", 0x9E00, FORMAT_S, 0, 1, 0},
	{"HDV", 0x9E01, FORMAT_S, 0, 1, 0},
	{"TCH", 0x9F00, FORMAT_S, 0, 1, 0},
	{"STIDP", 0xB202, FORMAT_S, 0, 8, FLAG_MODIFY1},
	{"STIDC", 0xB203, FORMAT_S, 0, 4, FLAG_MODIFY1},
	{"SCK", 0xB204, FORMAT_S, 0, 8, 0},
	{"STCK", 0xB205, FORMAT_S, 0, 8, FLAG_MODIFY1},
	{"SCKC", 0xB206, FORMAT_S, 0, 8, 0},
	{"STCKC", 0xB207, FORMAT_S, 0, 8, FLAG_MODIFY1},
	{"SPT", 0xB208, FORMAT_S, 0, 8, 0},
	{"STPT", 0xB209, FORMAT_S, 0, 8, FLAG_MODIFY1},
	{"SPKA", 0xB20A, FORMAT_S, 0, 1, 0},
	{"IPK", 0xB20B, FORMAT_S_NONE, 0, 1, 0},
	{"PTLB", 0xB20D, FORMAT_S_NONE, 0, 1, 0},
	{"SPX", 0xB210, FORMAT_S, 0, 4, 0},
	{"STPX", 0xB211, FORMAT_S, 0, 4, FLAG_MODIFY1},
	{"STAP", 0xB212, FORMAT_S, 0, 2, FLAG_MODIFY1},
	{"RRB", 0xB213, FORMAT_S, 0, 1, 0},

	// RS
	{"BXH", 0x86, FORMAT_RS, 0, 1, FLAG_BRANCH},
	{"BXLE", 0x87, FORMAT_RS, 0, 1, FLAG_BRANCH},
	{"SRL", 0x88, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SLL", 0x89, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SRA", 0x8A, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SLA", 0x8B, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SRDL", 0x8C, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SLDL", 0x8D, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SRDA", 0x8E, FORMAT_RS_SHIFT, 0, 1, 0},
	{"SLDA", 0x8F, FORMAT_RS_SHIFT, 0, 1, 0},
	{"STM", 0x90, FORMAT_RS, 0, 4, FLAG_MODIFY2},
	{"LM", 0x98, FORMAT_RS, 0, 4, 0},
	{"SIGP", 0xAE, FORMAT_RS, 0, 1, 0},
	{"STCTL", 0xB6, FORMAT_RS, 0, 4, FLAG_MODIFY2},
	{"LCTL", 0xB7, FORMAT_RS, 0, 4, 0},
	{"CS", 0xBA, FORMAT_RS, 0, 4, FLAG_MODIFY2},
	{"CDS", 0xBB, FORMAT_RS, 0, 8, FLAG_MODIFY2},
	{"CLM", 0xBD, FORMAT_RS, 0, 1, 0},
	{"STCM", 0xBE, FORMAT_RS, 0, 1, FLAG_MODIFY2},
	{"ICM", 0xBF, FORMAT_RS, 0, 1, 0},

	// SI
	{"WRD", 0x84, FORMAT_SI, 0, 1, 0},
	{"RDD", 0x85, FORMAT_SI, 0, 1, FLAG_MODIFY1},
	{"TM", 0x91, FORMAT_SI, 0, 1, 0},
	{"MVI", 0x92, FORMAT_SI, 0, 1, FLAG_MODIFY1},
	{"NI", 0x94, FORMAT_SI, 0, 1, FLAG_MODIFY1},
	{"CLI", 0x95, FORMAT_SI, 0, 1, 0},
	{"OI", 0x96, FORMAT_SI, 0, 1, FLAG_MODIFY1},
	{"XI", 0x97, FORMAT_SI, 0, 1, FLAG_MODIFY1},
	{"STNSM", 0xAC, FORMAT_SI, 0, 1, FLAG_MODIFY1},
	{"STOSM", 0xAD, FORMAT_SI, 0, 1, FLAG_MODIFY1},

	// SS
	{"MVN", 0xD1, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"MVC", 0xD2, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"MVZ", 0xD3, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"NC", 0xD4, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"CLC", 0xD5, FORMAT_SS_L, 0, 1, 0},
	{"OC", 0xD6, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"XC", 0xD7, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"TR", 0xDC, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"TRT", 0xDD, FORMAT_SS_L, 0, 1, 0},
	{"ED", 0xDE, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"EDMK", 0xDF, FORMAT_SS_L, 0, 1, FLAG_MODIFY1},
	{"SRP", 0xF0, FORMAT_SS_SRP, 0, 1, FLAG_MODIFY1},
	{"MVO", 0xF1, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"PACK", 0xF2, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"UNPK", 0xF3, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"ZAP", 0xF8, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"CP", 0xF9, FORMAT_SS_LL, 0, 1, 0},
	{"AP", 0xFA, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"SP", 0xFB, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"MP", 0xFC, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},
	{"DP", 0xFD, FORMAT_SS_LL, 0, 1, FLAG_MODIFY1},

	// Extended branch mnemonics
	{"B", 0x47, FORMAT_RX_EXT, MASK_ALWAYS, 1, FLAG_BRANCH},
	{"NOP", 0x47, FORMAT_RX_EXT, MASK_NEVER, 1, FLAG_BRANCH},
	{"BH", 0x47, FORMAT_RX_EXT, MASK_HIGH, 1, FLAG_BRANCH},
	{"BL", 0x47, FORMAT_RX_EXT, MASK_LOW, 1, FLAG_BRANCH},
	{"BE", 0x47, FORMAT_RX_EXT, MASK_EQUAL, 1, FLAG_BRANCH},
	{"BNH", 0x47, FORMAT_RX_EXT, MASK_NOTHIGH, 1, FLAG_BRANCH},
	{"BNL", 0x47, FORMAT_RX_EXT, MASK_NOTLOW, 1, FLAG_BRANCH},
	{"BNE", 0x47, FORMAT_RX_EXT, MASK_NOTEQUAL, 1, FLAG_BRANCH},
	{"BO", 0x47, FORMAT_RX_EXT, MASK_OVERFLOW, 1, FLAG_BRANCH},
	{"BP", 0x47, FORMAT_RX_EXT, MASK_HIGH, 1, FLAG_BRANCH},
	{"BM", 0x47, FORMAT_RX_EXT, MASK_LOW, 1, FLAG_BRANCH},
	{"BZ", 0x47, FORMAT_RX_EXT, MASK_EQUAL, 1, FLAG_BRANCH},
	{"BNP", 0x47, FORMAT_RX_EXT, MASK_NOTHIGH, 1, FLAG_BRANCH},
	{"BNM", 0x47, FORMAT_RX_EXT, MASK_NOTLOW, 1, FLAG_BRANCH},
	{"BNZ", 0x47, FORMAT_RX_EXT, MASK_NOTEQUAL, 1, FLAG_BRANCH},
	{"BNO", 0x47, FORMAT_RX_EXT, MASK_NOTOVER, 1, FLAG_BRANCH},
	{"BR", 0x07, FORMAT_RR_EXT, MASK_ALWAYS, 1, 0},
	{"NOPR", 0x07, FORMAT_RR_EXT, MASK_NEVER, 1, 0},
	{"BHR", 0x07, FORMAT_RR_EXT, MASK_HIGH, 1, 0},
	{"BLR", 0x07, FORMAT_RR_EXT, MASK_LOW, 1, 0},
	{"BER", 0x07, FORMAT_RR_EXT, MASK_EQUAL, 1, 0},
	{"BNHR", 0x07, FORMAT_RR_EXT, MASK_NOTHIGH, 1, 0},
	{"BNLR", 0x07, FORMAT_RR_EXT, MASK_NOTLOW, 1, 0},
	{"BNER", 0x07, FORMAT_RR_EXT, MASK_NOTEQUAL, 1, 0},
	{"BOR", 0x07, FORMAT_RR_EXT, MASK_OVERFLOW, 1, 0},
	{"BPR", 0x07, FORMAT_RR_EXT, MASK_HIGH, 1, 0},
	{"BMR", 0x07, FORMAT_RR_EXT, MASK_LOW, 1, 0},
	{"BZR", 0x07, FORMAT_RR_EXT, MASK_EQUAL, 1, 0},
	{"BNPR", 0x07, FORMAT_RR_EXT, MASK_NOTHIGH, 1, 0},
	{"BNMR", 0x07, FORMAT_RR_EXT, MASK_NOTLOW, 1, 0},
	{"BNZR", 0x07, FORMAT_RR_EXT, MASK_NOTEQUAL, 1, 0},
	{"BNOR", 0x07, FORMAT_RR_EXT, MASK_NOTOVER, 1, 0},
}

var mnemonics = make(map[string]*Opcode, len(table))

func init() {
	for i := range table {
		mnemonics[table[i].Mnemonic] = &table[i]
	}
}

// Lookup finds a machine instruction by mnemonic, ignoring case
func Lookup(mnemonic string) (*Opcode, bool) {
	op, ok := mnemonics[strings.ToUpper(mnemonic)]
	return op, ok
}

// Length is the instruction length in bytes
func (op *Opcode) Length() int64 {
	switch op.Format {
	case FORMAT_RR, FORMAT_RR_R1, FORMAT_RR_I, FORMAT_RR_EXT:
		return 2
	case FORMAT_SS_L, FORMAT_SS_LL, FORMAT_SS_SRP:
		return 6
	default:
		return 4
	}
}

// Operands is the number of operands the format requires
func (op *Opcode) Operands() int {
	switch op.Format {
	case FORMAT_S_NONE:
		return 0
	case FORMAT_RR_R1, FORMAT_RR_I, FORMAT_RR_EXT, FORMAT_RX_EXT, FORMAT_S:
		return 1
	case FORMAT_RS, FORMAT_SS_SRP:
		return 3
	default:
		return 2
	}
}

// Skeleton returns the instruction bytes with only the opcode and any
// implied mask filled in.
func (op *Opcode) Skeleton() []byte {
	result := make([]byte, op.Length())

	if op.Code > 0xFF {
		result[0] = byte(op.Code >> 8)
		result[1] = byte(op.Code)
	} else {
		result[0] = byte(op.Code)
	}

	if op.Format == FORMAT_RR_EXT || op.Format == FORMAT_RX_EXT {
		result[1] = op.Mask << 4
	}

	return result
}
