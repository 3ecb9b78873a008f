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

package assembler_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/lassandro/asm370/pkg/assembler"
	"github.com/lassandro/asm370/pkg/config"
	"github.com/lassandro/asm370/pkg/objdeck"
)

type testCase struct {
	Name    string
	Input   string
	Output  map[int64][]byte
	Symbols map[string]int64
}

type failCase struct {
	Name  string
	Input string
	Error error
}

// source joins fixed format lines. Columns matter, so the statements are
// not indented in the test tables.
func source(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// continued pads a line to column 71 and marks column 72
func continued(line string) string {
	return line + strings.Repeat(" ", assembler.STATEMENT_END-len(line)) + "X"
}

func options() *config.Options {
	opts := config.Default()
	opts.Date = "21001"
	return opts
}

// image flattens the TXT data of a module into address -> byte
func image(module *objdeck.Module) map[int64]byte {
	result := make(map[int64]byte)

	for _, text := range module.Text {
		for i, b := range text.Data {
			result[text.Address+int64(i)] = b
		}
	}

	return result
}

func testAssemblerSuccess(t *testing.T, test *testCase) {
	result, err := assembler.Assemble(strings.NewReader(test.Input), options())

	if err != nil {
		t.Fatal(err)
	}

	for _, diagnostic := range result.Diagnostics {
		if diagnostic.Severity() > assembler.SEVERITY_INFO {
			t.Fatal(diagnostic)
		}
	}

	if result.Module == nil || len(result.Object) == 0 {
		t.Fatalf("%s produced no object deck", t.Name())
	}

	have := image(result.Module)
	covered := make(map[int64]bool)

	for addr, want := range test.Output {
		for i, b := range want {
			covered[addr+int64(i)] = true

			if got := have[addr+int64(i)]; got != b {
				t.Fatalf(
					"Object code mismatch\n"+
						"want:%02X (test.Output[%#06x][%d])\n"+
						"have:%02X",
					b,
					addr,
					i,
					got,
				)
			}
		}
	}

	for addr, b := range have {
		if !covered[addr] && b != 0 {
			t.Fatalf(
				"Unexpected object code\n"+
					"want:00\n"+
					"have:%02X (address %#06x)",
				b,
				addr,
			)
		}
	}

	for name, want := range test.Symbols {
		sym, ok := result.Symbols.Lookup(name)

		if !ok || !sym.Defined {
			t.Fatalf(
				"Missing symbol\n"+
					"want:%d (test.Symbols[%s])\n"+
					"have:nil",
				want,
				name,
			)
		} else if sym.Value.Number != want {
			t.Fatalf(
				"Symbol value mismatch\n"+
					"want:%d (test.Symbols[%s])\n"+
					"have:%d",
				want,
				name,
				sym.Value.Number,
			)
		}
	}
}

func testAssemblerFail(t *testing.T, test *failCase) {
	if test.Error == nil {
		panic("Fail case missing error value")
	}

	result, err := assembler.Assemble(strings.NewReader(test.Input), options())

	if err != nil {
		t.Fatal(err)
	}

	errs := result.Diagnostics

	if len(errs) == 0 {
		t.Fatalf(
			"%s produced error of incorrect type"+
				"\nwant:%T (test.Error)\nhave:<nil>",
			t.Name(),
			test.Error,
		)
	}

	if len(errs) > 1 {
		errTypes := make([]reflect.Type, 0, len(errs))
		for _, err := range errs {
			errTypes = append(errTypes, reflect.TypeOf(err))
		}

		t.Fatalf(
			"%s produced multiple errors:\n\twant:%T (test.Error)\n\thave:%v",
			t.Name(),
			test.Error,
			errTypes,
		)
	}

	if reflect.TypeOf(errs[0]) != reflect.TypeOf(test.Error) {
		t.Fatalf(
			"%s produced error of incorrect type"+
				"\nwant:%T (test.Error)\nhave:%T",
			t.Name(),
			test.Error,
			errs[0],
		)
	}

	if errs[0].Severity() >= assembler.SEVERITY_ERROR && result.Object != nil {
		t.Fatalf("%s emitted an object deck despite %s", t.Name(), errs[0].Code())
	}
}

func testSuccess(t *testing.T, tests []testCase) {
	t.Run("Success", func(t *testing.T) {
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerSuccess(t, &test)
			})
		}
	})
}

func testFail(t *testing.T, tests []failCase) {
	t.Run("Fail", func(t *testing.T) {
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerFail(t, &test)
			})
		}
	})
}

func TestMinimalProgram(t *testing.T) {
	result, err := assembler.Assemble(strings.NewReader(source(
		"TEST     CSECT",
		"         DC    F'1'",
		"         END",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	if code := result.ReturnCode(); code != 0 {
		t.Fatalf("Return code\nwant:0\nhave:%d", code)
	}

	if count := len(result.Object); count != 3 {
		t.Fatalf("Record count\nwant:3\nhave:%d", count)
	}

	kinds := []string{"ESD", "TXT", "END"}

	for i, record := range result.Object {
		decoded, err := objdeck.Decode(i, record)

		if err != nil {
			t.Fatal(err)
		}

		if decoded.Kind != kinds[i] {
			t.Fatalf("Record %d\nwant:%s\nhave:%s", i, kinds[i], decoded.Kind)
		}

		switch decoded.Kind {
		case "TXT":
			if !bytes.Equal(decoded.Text.Data, []byte{0x00, 0x00, 0x00, 0x01}) {
				t.Fatalf("TXT data\nwant:00000001\nhave:%X", decoded.Text.Data)
			}
		case "END":
			if decoded.End.Scope != 1 {
				t.Fatalf("END ESDID\nwant:1\nhave:%d", decoded.End.Scope)
			}
		}
	}
}

// RR  |op      |R1  |R2  |
func TestRegisterRegister(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "LR",
			Input: source(
				"TEST     CSECT",
				"         LR    1,2",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x18, 0x12},
			},
		},
		{
			Name: "BALR",
			Input: source(
				"TEST     CSECT",
				"         BALR  14,15",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x05, 0xEF},
			},
		},
		{
			Name: "SVC",
			Input: source(
				"TEST     CSECT",
				"         SVC   13",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x0A, 0x0D},
			},
		},
		{
			Name: "BR",
			Input: source(
				"TEST     CSECT",
				"         BR    14",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x07, 0xFE},
			},
		},
		{
			Name: "Equated Registers",
			Input: source(
				"TEST     CSECT",
				"R3       EQU   3",
				"R4       EQU   4",
				"         LR    R3,R4",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x18, 0x34},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Bad Register",
			Input: source(
				"TEST     CSECT",
				"         LR    1,16",
				"         END",
			),
			Error: &assembler.InvalidRegisterError{},
		},
		{
			Name: "Missing Operand",
			Input: source(
				"TEST     CSECT",
				"         LR    1",
				"         END",
			),
			Error: &assembler.MissingOperandError{},
		},
		{
			Name: "Extra Operand",
			Input: source(
				"TEST     CSECT",
				"         LR    1,2,3",
				"         END",
			),
			Error: &assembler.InvalidNumArgumentsError{},
		},
		{
			Name: "Oversized SVC",
			Input: source(
				"TEST     CSECT",
				"         SVC   256",
				"         END",
			),
			Error: &assembler.OversizedLiteralError{},
		},
	})
}

// RX  |op      |R1  |X2  |B2  |D2          |
func TestRegisterStorage(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Implicit",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,FIELD",
				"FIELD    DC    F'5'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xF0, 0x04},
				0x0004: {0x00, 0x00, 0x00, 0x05},
			},
			Symbols: map[string]int64{
				"FIELD": 4,
			},
		},
		{
			Name: "Implicit Indexed",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,FIELD(2)",
				"FIELD    DC    F'5'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x12, 0xF0, 0x04},
				0x0004: {0x00, 0x00, 0x00, 0x05},
			},
		},
		{
			Name: "Explicit",
			Input: source(
				"TEST     CSECT",
				"         LA    1,12(2,3)",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x41, 0x12, 0x30, 0x0C},
			},
		},
		{
			Name: "Explicit Base Only",
			Input: source(
				"TEST     CSECT",
				"         LA    1,4(,3)",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x41, 0x10, 0x30, 0x04},
			},
		},
		{
			Name: "Absolute",
			Input: source(
				"TEST     CSECT",
				"         LA    1,100",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x41, 0x10, 0x00, 0x64},
			},
		},
		{
			Name: "Highest Register Wins Ties",
			Input: source(
				"TEST     CSECT",
				"         USING *,8",
				"         USING *,9",
				"         L     1,FIELD",
				"FIELD    DC    F'1'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0x90, 0x04},
				0x0004: {0x00, 0x00, 0x00, 0x01},
			},
		},
		{
			Name: "Smallest Displacement Wins",
			Input: source(
				"TEST     CSECT",
				"         USING *,9",
				"         DC    H'0'",
				"         USING HERE,8",
				"HERE     L     1,FIELD",
				"FIELD    DC    F'1'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0002: {0x58, 0x10, 0x80, 0x06},
				0x0008: {0x00, 0x00, 0x00, 0x01},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Unknown Label",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,NOWHERE",
				"         END",
			),
			Error: &assembler.UnknownLabelError{},
		},
		{
			Name: "No Base Register",
			Input: source(
				"TEST     CSECT",
				"         L     1,FIELD",
				"FIELD    DC    F'1'",
				"         END",
			),
			Error: &assembler.UnaddressableError{},
		},
		{
			Name: "Dropped Base Register",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         DROP  15",
				"         L     1,FIELD",
				"FIELD    DC    F'1'",
				"         END",
			),
			Error: &assembler.UnaddressableError{},
		},
		{
			Name: "Unbalanced Parentheses",
			Input: source(
				"TEST     CSECT",
				"         LA    1,0(2",
				"         END",
			),
			Error: &assembler.UnbalancedParenthesesError{},
		},
		{
			Name: "Misaligned Operand",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,FIELD+2",
				"FIELD    DC    F'1'",
				"         END",
			),
			Error: &assembler.AlignmentError{},
		},
		{
			Name: "Oversized Displacement",
			Input: source(
				"TEST     CSECT",
				"         LA    1,4096(,3)",
				"         END",
			),
			Error: &assembler.OversizedLiteralError{},
		},
	})
}

// RS  |op      |R1  |R3  |B2  |D2          |
// SI  |op      |I2       |B1  |D1          |
func TestRegisterStorageImmediate(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "STM",
			Input: source(
				"TEST     CSECT",
				"         STM   14,12,12(13)",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x90, 0xEC, 0xD0, 0x0C},
			},
		},
		{
			Name: "SLL",
			Input: source(
				"TEST     CSECT",
				"         SLL   1,4",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x89, 0x10, 0x00, 0x04},
			},
		},
		{
			Name: "CLI",
			Input: source(
				"TEST     CSECT",
				"         CLI   0(1),C'A'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x95, 0xC1, 0x10, 0x00},
			},
		},
		{
			Name: "MVI Implicit",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         MVI   FLAG,X'FF'",
				"FLAG     DC    X'00'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x92, 0xFF, 0xF0, 0x04},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Oversized Immediate",
			Input: source(
				"TEST     CSECT",
				"         MVI   0(1),256",
				"         END",
			),
			Error: &assembler.OversizedLiteralError{},
		},
	})
}

// SS  |op      |L1  |L2  |B1  |D1          |B2  |D2          |
func TestStorageStorage(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "MVC Explicit",
			Input: source(
				"TEST     CSECT",
				"         MVC   0(8,1),0(2)",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xD2, 0x07, 0x10, 0x00, 0x20, 0x00},
			},
		},
		{
			Name: "MVC Implicit Length",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         MVC   A,B",
				"A        DC    CL4'AB'",
				"B        DC    CL4'CD'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xD2, 0x03, 0xF0, 0x06, 0xF0, 0x0A},
				0x0006: {0xC1, 0xC2, 0x40, 0x40},
				0x000A: {0xC3, 0xC4, 0x40, 0x40},
			},
		},
		{
			Name: "MVC Length Attribute Override",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         MVC   A(2),B",
				"A        DC    CL4'AB'",
				"B        DC    CL4'CD'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xD2, 0x01, 0xF0, 0x06, 0xF0, 0x0A},
				0x0006: {0xC1, 0xC2, 0x40, 0x40},
				0x000A: {0xC3, 0xC4, 0x40, 0x40},
			},
		},
		{
			Name: "PACK",
			Input: source(
				"TEST     CSECT",
				"         PACK  0(3,1),0(5,2)",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xF2, 0x24, 0x10, 0x00, 0x20, 0x00},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Oversized Length",
			Input: source(
				"TEST     CSECT",
				"         PACK  0(17,1),0(5,2)",
				"         END",
			),
			Error: &assembler.OversizedLiteralError{},
		},
	})
}

func TestLiterals(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Pooled At END",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,=F'1'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xF0, 0x08},
				0x0008: {0x00, 0x00, 0x00, 0x01},
			},
		},
		{
			Name: "Pooled At END After ORG",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,=F'7'",
				"         DS    CL96",
				"         ORG   TEST+8",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xF0, 0x08},
				0x0008: {0x00, 0x00, 0x00, 0x07},
			},
		},
		{
			Name: "Deduplicated",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,=F'1'",
				"         L     2,=F'1'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xF0, 0x08},
				0x0004: {0x58, 0x20, 0xF0, 0x08},
				0x0008: {0x00, 0x00, 0x00, 0x01},
			},
		},
		{
			Name: "LTORG",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         L     1,=F'2'",
				"         LTORG",
				"         L     2,=F'2'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xF0, 0x08},
				0x0008: {0x00, 0x00, 0x00, 0x02},
				0x000C: {0x58, 0x20, 0xF0, 0x10},
				0x0010: {0x00, 0x00, 0x00, 0x02},
			},
		},
		{
			Name: "Grouped By Alignment",
			Input: source(
				"TEST     CSECT",
				"         USING *,15",
				"         MVC   0(1,1),=C'A'",
				"         L     1,=F'3'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xD2, 0x00, 0x10, 0x00, 0xF0, 0x14},
				0x0006: {0x58, 0x10, 0xF0, 0x10},
				0x0010: {0x00, 0x00, 0x00, 0x03},
				0x0014: {0xC1},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Outside Of Section",
			Input: source(
				"AREA     DSECT",
				"         L     1,=F'1'",
				"         END",
			),
			Error: &assembler.LiteralScopeError{},
		},
	})
}

func TestStorage(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Alignment",
			Input: source(
				"TEST     CSECT",
				"         DC    C'A'",
				"FULL     DC    F'-1'",
				"HALF     DC    H'2'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xC1},
				0x0004: {0xFF, 0xFF, 0xFF, 0xFF},
				0x0008: {0x00, 0x02},
			},
			Symbols: map[string]int64{
				"FULL": 4,
				"HALF": 8,
			},
		},
		{
			Name: "Multiple Operands",
			Input: source(
				"TEST     CSECT",
				"         DC    X'0102',2H'3'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x01, 0x02, 0x00, 0x03, 0x00, 0x03},
			},
		},
		{
			Name: "Continuation",
			Input: source(
				"TEST     CSECT",
				continued("         DC    F'1',"),
				"               F'2'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02},
			},
		},
		{
			Name: "Reserved Storage",
			Input: source(
				"TEST     CSECT",
				"         DS    CL3",
				"WORD     DS    0F",
				"         DC    F'9'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0004: {0x00, 0x00, 0x00, 0x09},
			},
			Symbols: map[string]int64{
				"WORD": 4,
			},
		},
		{
			Name: "Packed",
			Input: source(
				"TEST     CSECT",
				"         DC    P'-125'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x12, 0x5D},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Unsupported Type",
			Input: source(
				"TEST     CSECT",
				"         DC    Q'1'",
				"         END",
			),
			Error: &assembler.InvalidConstantError{},
		},
		{
			Name: "Duplication Too Large",
			Input: source(
				"TEST     CSECT",
				"         DC    1000000000000000X'FF'",
				"         END",
			),
			Error: &assembler.InvalidConstantError{},
		},
		{
			Name: "Missing Nominal",
			Input: source(
				"TEST     CSECT",
				"         DC    F",
				"         END",
			),
			Error: &assembler.InvalidConstantError{},
		},
		{
			Name: "Unterminated String",
			Input: source(
				"TEST     CSECT",
				"         DC    C'ABC",
				"         END",
			),
			Error: &assembler.InvalidStringError{},
		},
	})
}

func TestAddressConstants(t *testing.T) {
	result, err := assembler.Assemble(strings.NewReader(source(
		"ONE      CSECT",
		"         DC    A(TWO)",
		"         DC    A(TWO-ONE)",
		"         DC    A(SELF-ONE)",
		"SELF     DC    Y(SELF)",
		"TWO      CSECT",
		"         DC    F'7'",
		"         END",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	if result.Module == nil {
		t.Fatalf("No object deck: %v", result.Diagnostics)
	}

	have := image(result.Module)
	want := map[int64]byte{
		0x03: 0x10, // A(TWO)
		0x07: 0x10, // A(TWO-ONE)
		0x0B: 0x0C, // A(SELF-ONE)
		0x0D: 0x0C, // Y(SELF)
		0x13: 0x07,
	}

	for addr, b := range want {
		if have[addr] != b {
			t.Fatalf("Byte %#04x\nwant:%02X\nhave:%02X", addr, b, have[addr])
		}
	}

	relocations := []objdeck.Relocation{
		{Position: 1, Target: 2, Address: 0x00, Length: 4, Action: objdeck.ACTION_ADD},
		{Position: 1, Target: 2, Address: 0x04, Length: 4, Action: objdeck.ACTION_ADD},
		{Position: 1, Target: 1, Address: 0x04, Length: 4, Action: objdeck.ACTION_SUBTRACT},
		{Position: 1, Target: 1, Address: 0x0C, Length: 2, Action: objdeck.ACTION_ADD},
	}

	if !reflect.DeepEqual(result.Module.Relocations, relocations) {
		t.Fatalf(
			"Relocation mismatch\nwant:%+v\nhave:%+v",
			relocations,
			result.Module.Relocations,
		)
	}
}

func TestExternals(t *testing.T) {
	result, err := assembler.Assemble(strings.NewReader(source(
		"TEST     CSECT",
		"         ENTRY HERE",
		"         EXTRN SUB",
		"         WXTRN MAYBE",
		"HERE     DC    A(SUB)",
		"         DC    V(OTHER)",
		"         DC    A(MAYBE)",
		"         END",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	if result.Module == nil {
		t.Fatalf("No object deck: %v", result.Diagnostics)
	}

	symbols := []objdeck.Symbol{
		{Name: "TEST", Type: objdeck.ESD_SD, ID: 1, Length: 12, AMode: "24", RMode: "24"},
		{Name: "SUB", Type: objdeck.ESD_ER, ID: 2},
		{Name: "MAYBE", Type: objdeck.ESD_WX, ID: 3},
		{Name: "OTHER", Type: objdeck.ESD_ER, ID: 4},
		{Name: "HERE", Type: objdeck.ESD_LD, LDID: 1},
	}

	if !reflect.DeepEqual(result.Module.Symbols, symbols) {
		t.Fatalf(
			"ESD mismatch\nwant:%+v\nhave:%+v",
			symbols,
			result.Module.Symbols,
		)
	}

	relocations := []objdeck.Relocation{
		{Position: 1, Target: 2, Address: 0, Length: 4, Action: objdeck.ACTION_ADD},
		{Position: 1, Target: 4, Address: 4, Length: 4, Action: objdeck.ACTION_STORE},
		{Position: 1, Target: 3, Address: 8, Length: 4, Action: objdeck.ACTION_ADD},
	}

	if !reflect.DeepEqual(result.Module.Relocations, relocations) {
		t.Fatalf(
			"Relocation mismatch\nwant:%+v\nhave:%+v",
			relocations,
			result.Module.Relocations,
		)
	}

	testFail(t, []failCase{
		{
			Name: "Undefined Entry",
			Input: source(
				"TEST     CSECT",
				"         ENTRY NOWHERE",
				"         END",
			),
			Error: &assembler.UnknownLabelError{},
		},
		{
			Name: "Extern Redeclares Label",
			Input: source(
				"TEST     CSECT",
				"HERE     DC    F'1'",
				"         EXTRN HERE",
				"         END",
			),
			Error: &assembler.RedeclaredLabelError{},
		},
	})
}

func TestSections(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Doubleword Bases",
			Input: source(
				"ONE      CSECT",
				"         DC    X'01'",
				"TWO      CSECT",
				"         DC    X'02'",
				"ONE      CSECT",
				"         DC    X'03'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x01, 0x03},
				0x0008: {0x02},
			},
			Symbols: map[string]int64{
				"ONE": 0,
				"TWO": 8,
			},
		},
		{
			Name: "Private Section",
			Input: source(
				"         DC    X'0A'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x0A},
			},
		},
		{
			Name: "DSECT Addressing",
			Input: source(
				"TEST     CSECT",
				"         USING AREA,3",
				"         L     1,FIELD2",
				"         BR    14",
				"AREA     DSECT",
				"FIELD1   DS    F",
				"FIELD2   DS    F",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0x30, 0x04},
				0x0004: {0x07, 0xFE},
			},
			Symbols: map[string]int64{
				"FIELD2": 4,
			},
		},
		{
			Name: "ORG",
			Input: source(
				"TEST     CSECT",
				"         DC    F'1'",
				"         ORG   TEST",
				"         DC    H'2'",
				"         ORG",
				"         DC    H'3'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x00, 0x02, 0x00, 0x01, 0x00, 0x03},
			},
		},
		{
			Name: "CNOP",
			Input: source(
				"TEST     CSECT",
				"         DC    H'1'",
				"         CNOP  0,4",
				"         DC    H'2'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x00, 0x01, 0x07, 0x00, 0x00, 0x02},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Unlabeled DSECT",
			Input: source(
				"         DSECT",
				"         END",
			),
			Error: &assembler.MissingLabelError{},
		},
		{
			Name: "DSECT Reuses Section Name",
			Input: source(
				"TEST     CSECT",
				"TEST     DSECT",
				"         END",
			),
			Error: &assembler.RedeclaredLabelError{},
		},
		{
			Name: "Bad CNOP",
			Input: source(
				"TEST     CSECT",
				"         CNOP  1,4",
				"         END",
			),
			Error: &assembler.InvalidLiteralError{},
		},
	})
}

func TestEquates(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Forward References",
			Input: source(
				"TEST     CSECT",
				"A        EQU   B",
				"B        EQU   C+1",
				"C        EQU   4",
				"         LA    1,A",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x41, 0x10, 0x00, 0x05},
			},
			Symbols: map[string]int64{
				"A": 5,
				"B": 5,
				"C": 4,
			},
		},
		{
			Name: "Location Counter",
			Input: source(
				"ONE      CSECT",
				"         DC    X'01'",
				"TWO      CSECT",
				"         DC    X'02'",
				"HERE     EQU   *",
				"LEN      EQU   HERE-TWO",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x01},
				0x0008: {0x02},
			},
			Symbols: map[string]int64{
				"HERE": 9,
				"LEN":  1,
			},
		},
		{
			Name: "Length Attribute",
			Input: source(
				"TEST     CSECT",
				"FIELD    DC    CL3'ABC'",
				"LEN      EQU   L'FIELD",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0xC1, 0xC2, 0xC3},
			},
			Symbols: map[string]int64{
				"LEN": 3,
			},
		},
		{
			Name: "Self-Defining Terms",
			Input: source(
				"TEST     CSECT",
				"A        EQU   X'10'+B'11'*2",
				"C        EQU   C'A'/0",
				"         END",
			),
			Symbols: map[string]int64{
				"A": 22,
				"C": 0,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Missing Label",
			Input: source(
				"TEST     CSECT",
				"         EQU   1",
				"         END",
			),
			Error: &assembler.MissingLabelError{},
		},
		{
			Name: "Undefined",
			Input: source(
				"TEST     CSECT",
				"A        EQU   NOWHERE",
				"         END",
			),
			Error: &assembler.UnknownLabelError{},
		},
		{
			Name: "Relocatable Product",
			Input: source(
				"TEST     CSECT",
				"HERE     DC    A(HERE*2)",
				"         END",
			),
			Error: &assembler.RelocationError{},
		},
	})
}

func TestUsing(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Absolute Base",
			Input: source(
				"TEST     CSECT",
				"         USING 0,12",
				"         L     1,FIELD",
				"FIELD    DC    F'1'",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xC0, 0x04},
				0x0004: {0x00, 0x00, 0x00, 0x01},
			},
			Symbols: map[string]int64{
				"FIELD": 4,
			},
		},
		{
			Name: "Absolute Base Into Dummy Section",
			Input: source(
				"TEST     CSECT",
				"         USING 0,12",
				"         L     1,FIELD",
				"AREA     DSECT",
				"         DS    F",
				"FIELD    DS    F",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x58, 0x10, 0xC0, 0x04},
			},
			Symbols: map[string]int64{
				"FIELD": 4,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Replaced Domain",
			Input: source(
				"TEST     CSECT",
				"         USING *,12",
				"         USING *,12",
				"         END",
			),
			Error: &assembler.UsingReplacedError{},
		},
		{
			Name: "Duplicate Register",
			Input: source(
				"TEST     CSECT",
				"         USING *,12,12",
				"         END",
			),
			Error: &assembler.DuplicateRegisterError{},
		},
		{
			Name: "Inactive Register",
			Input: source(
				"TEST     CSECT",
				"         DROP  5",
				"         END",
			),
			Error: &assembler.InactiveRegisterError{},
		},
		{
			Name: "Missing Register",
			Input: source(
				"TEST     CSECT",
				"         USING *",
				"         END",
			),
			Error: &assembler.MissingOperandError{},
		},
	})

	result, err := assembler.Assemble(strings.NewReader(source(
		"TEST     CSECT",
		"         USING NOWHERE,12",
		"         L     1,FIELD",
		"FIELD    DC    F'1'",
		"         END",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	want := []reflect.Type{
		reflect.TypeOf(&assembler.UnknownLabelError{}),
		reflect.TypeOf(&assembler.UnaddressableError{}),
	}

	have := make([]reflect.Type, 0, len(result.Diagnostics))

	for _, diagnostic := range result.Diagnostics {
		have = append(have, reflect.TypeOf(diagnostic))
	}

	if !reflect.DeepEqual(want, have) {
		t.Fatalf("Diagnostics\nwant:%v\nhave:%v", want, have)
	}

	if code := result.ReturnCode(); code != 8 {
		t.Fatalf("Return code\nwant:8\nhave:%d", code)
	}

	if result.Object != nil {
		t.Fatal("Object deck emitted despite errors")
	}

	instruction := result.Records[2]

	if !bytes.Equal(instruction.Object, []byte{0x58, 0x10, 0x00, 0x00}) {
		t.Fatalf("Unaddressable encoding\nwant:58100000\nhave:%X", instruction.Object)
	}
}

func TestEnd(t *testing.T) {
	testFail(t, []failCase{
		{
			Name: "Missing END",
			Input: source(
				"TEST     CSECT",
				"         DC    F'1'",
			),
			Error: &assembler.MissingEndError{},
		},
		{
			Name: "Statement After END",
			Input: source(
				"TEST     CSECT",
				"         END",
				"         DC    F'1'",
				"         DC    F'2'",
			),
			Error: &assembler.StatementAfterEndError{},
		},
		{
			Name: "Absolute Entry",
			Input: source(
				"TEST     CSECT",
				"         END   4",
			),
			Error: &assembler.InvalidOperandError{},
		},
	})

	result, err := assembler.Assemble(strings.NewReader(source(
		"TEST     CSECT",
		"         DC    F'1'",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	if code := result.ReturnCode(); code != 4 {
		t.Fatalf("Return code\nwant:4\nhave:%d", code)
	}

	if len(result.Object) == 0 {
		t.Fatal("Warnings must not suppress the object deck")
	}

	result, err = assembler.Assemble(strings.NewReader(source(
		"ONE      CSECT",
		"         DC    F'1'",
		"TWO      CSECT",
		"START    DC    F'2'",
		"         END   START",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	end := result.Module.End

	if !end.HasEntry || end.Scope != 2 || end.Address != 8 || end.Length != 4 {
		t.Fatalf("END entry\nwant:{esdid 2, address 8, length 4}\nhave:%+v", end)
	}
}

func TestLabels(t *testing.T) {
	testFail(t, []failCase{
		{
			Name: "Oversized Label",
			Input: source(
				"TEST     CSECT",
				"TOOLONGLABEL DC F'1'",
				"         END",
			),
			Error: &assembler.OversizedLabelError{},
		},
		{
			Name: "Redeclared Label",
			Input: source(
				"TEST     CSECT",
				"A        DC    F'1'",
				"A        DC    F'2'",
				"         END",
			),
			Error: &assembler.RedeclaredLabelError{},
		},
		{
			Name: "Bad Character",
			Input: source(
				"TEST     CSECT",
				"A-B      DC    F'1'",
				"         END",
			),
			Error: &assembler.UnexpectedCharacterError{},
		},
		{
			Name: "Unknown Mnemonic",
			Input: source(
				"TEST     CSECT",
				"         FOO   1,2",
				"         END",
			),
			Error: &assembler.UnknownMnemonicError{},
		},
	})

	testSuccess(t, []testCase{
		{
			Name: "Comments",
			Input: source(
				"* Lorem Ipsum",
				".* Lorem Ipsum",
				"TEST     CSECT",
				"",
				"LABEL    DC    F'1'     Lorem Ipsum",
				"         END",
			),
			Output: map[int64][]byte{
				0x0000: {0x00, 0x00, 0x00, 0x01},
			},
			Symbols: map[string]int64{
				"LABEL": 0,
			},
		},
		{
			Name: "Case Insensitive",
			Input: source(
				"test     csect",
				"label    dc    f'1'",
				"         end",
			),
			Output: map[int64][]byte{
				0x0000: {0x00, 0x00, 0x00, 0x01},
			},
			Symbols: map[string]int64{
				"LABEL": 0,
			},
		},
	})
}

func TestRegionOverflow(t *testing.T) {
	opts := options()
	opts.RegionSize = 16

	_, err := assembler.Assemble(strings.NewReader(source(
		"TEST     CSECT",
		"         DS    CL100",
		"         END",
	)), opts)

	if _, ok := err.(*assembler.RegionOverflowError); !ok {
		t.Fatalf(
			"Region overflow\nwant:%T\nhave:%T",
			&assembler.RegionOverflowError{},
			err,
		)
	}
}

func TestRegionOverflowDuplication(t *testing.T) {
	opts := options()
	opts.RegionSize = 16

	sources := map[string]string{
		"Control Section": source(
			"TEST     CSECT",
			"         DC    400000000X'FF'",
			"         END",
		),
		"Dummy Section": source(
			"TEST     CSECT",
			"         DC    F'1'",
			"AREA     DSECT",
			"         DC    400000000X'FF'",
			"         END",
		),
	}

	for name, input := range sources {
		t.Run(name, func(t *testing.T) {
			_, err := assembler.Assemble(strings.NewReader(input), opts)

			if _, ok := err.(*assembler.RegionOverflowError); !ok {
				t.Fatalf(
					"Region overflow\nwant:%T\nhave:%T",
					&assembler.RegionOverflowError{},
					err,
				)
			}
		})
	}
}

func TestContextReuse(t *testing.T) {
	ctx := assembler.NewContext(options())
	input := source(
		"TEST     CSECT",
		"A        DC    F'1'",
		"         END",
	)

	first, err := ctx.Run(strings.NewReader(input))

	if err != nil {
		t.Fatal(err)
	}

	second, err := ctx.Run(strings.NewReader(input))

	if err != nil {
		t.Fatal(err)
	}

	if len(second.Diagnostics) != 0 {
		t.Fatalf("Second run inherited state: %v", second.Diagnostics)
	}

	if !reflect.DeepEqual(first.Object, second.Object) {
		t.Fatal("Runs over the same source differ")
	}
}

func TestSymTable(t *testing.T) {
	result, err := assembler.Assemble(strings.NewReader(source(
		"* Header",
		"ONE      CSECT",
		"         DC    X'01'",
		"TWO      CSECT",
		"FIELD    DC    F'2'",
		"         END",
	)), options())

	if err != nil {
		t.Fatal(err)
	}

	var buffer bytes.Buffer

	if err := result.SymTable("test.asm").Encode(&buffer); err != nil {
		t.Fatal(err)
	}

	table, err := assembler.DecodeSymTable(&buffer)

	if err != nil {
		t.Fatal(err)
	}

	if table.Source != "test.asm" {
		t.Fatalf("Source\nwant:test.asm\nhave:%s", table.Source)
	}

	field, ok := table.Labels["FIELD"]

	if !ok || field.Value != 8 || field.ESDID != 2 || field.Length != 4 {
		t.Fatalf("FIELD\nwant:{8 2 4}\nhave:%+v", field)
	}

	// "* Header\n" and "ONE      CSECT\n" precede the first DC
	if offset := table.Lines[0]; offset != 24 {
		t.Fatalf("Line byte of address 0\nwant:24\nhave:%d", offset)
	}

	if offset := table.Lines[8]; offset != 60 {
		t.Fatalf("Line byte of address 8\nwant:60\nhave:%d", offset)
	}
}
