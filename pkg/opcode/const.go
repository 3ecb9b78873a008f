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

package opcode

type Format uint

const (
	FORMAT_RR       Format = iota // R1,R2
	FORMAT_RR_R1                  // R1
	FORMAT_RR_I                   // I
	FORMAT_RR_EXT                 // R2, mask implied
	FORMAT_RX                     // R1,D2(X2,B2)
	FORMAT_RX_EXT                 // D2(X2,B2), mask implied
	FORMAT_RS                     // R1,R3,D2(B2)
	FORMAT_RS_SHIFT               // R1,D2(B2)
	FORMAT_SI                     // D1(B1),I2
	FORMAT_S                      // D2(B2)
	FORMAT_S_NONE                 // no operands
	FORMAT_SS_L                   // D1(L,B1),D2(B2)
	FORMAT_SS_LL                  // D1(L1,B1),D2(L2,B2)
	FORMAT_SS_SRP                 // D1(L1,B1),D2(B2),I3
)

const (
	FLAG_NONE uint8 = 0

	// First or second operand names storage the instruction changes
	FLAG_MODIFY1 uint8 = 1 << 0
	FLAG_MODIFY2 uint8 = 1 << 1

	// Address operand is a branch target
	FLAG_BRANCH uint8 = 1 << 2

	// Address operand is the target of EX
	FLAG_EXECUTE uint8 = 1 << 3
)

// Condition code masks of the extended branch mnemonics
const (
	MASK_NEVER    uint8 = 0
	MASK_OVERFLOW       = 1
	MASK_HIGH           = 2
	MASK_LOW            = 4
	MASK_NOTEQUAL       = 7
	MASK_EQUAL          = 8
	MASK_NOTLOW         = 11
	MASK_NOTHIGH        = 13
	MASK_NOTOVER        = 14
	MASK_ALWAYS         = 15
)
