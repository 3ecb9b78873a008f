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

package listing_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/asm370/pkg/assembler"
	"github.com/lassandro/asm370/pkg/config"
	"github.com/lassandro/asm370/pkg/listing"
)

func assemble(t *testing.T, lines ...string) *assembler.Result {
	opts := config.Default()
	opts.Date = "21001"

	result, err := assembler.Assemble(
		strings.NewReader(strings.Join(lines, "\n")+"\n"),
		opts,
	)

	require.NoError(t, err)
	return result
}

func render(t *testing.T, printer *listing.Printer) string {
	var buffer bytes.Buffer
	require.NoError(t, printer.Write(&buffer))
	return buffer.String()
}

func TestSourceLines(t *testing.T) {
	result := assemble(t,
		"TEST     CSECT",
		"         USING *,15",
		"         L     1,=F'1'",
		"FIELD    DC    CL12'HELLO'",
		"         END",
	)

	out := render(t, listing.New(result, "TEST"))

	assert.Contains(t, out, "000000 5810 F010")
	assert.Contains(t, out, "00010")
	assert.Contains(t, out, "000004 C8C5D3D3D6404040")
	assert.Contains(t, out, "00000C 40404040")
	assert.Contains(t, out, "=F'1'")
	assert.Contains(t, out, "00000001")
	assert.Contains(t, out, "return code 0")
	assert.NotContains(t, out, "\033[")
}

func TestDiagnosticsUnderLine(t *testing.T) {
	result := assemble(t,
		"TEST     CSECT",
		"         LR    1,16",
		"         END",
	)

	out := render(t, listing.New(result, ""))
	lines := strings.Split(out, "\n")

	index := -1

	for i, line := range lines {
		if strings.Contains(line, "LR    1,16") {
			index = i
			break
		}
	}

	require.NotEqual(t, -1, index)
	require.Less(t, index+1, len(lines))
	assert.True(t, strings.HasPrefix(lines[index+1], "** ASM"))
	assert.Contains(t, out, "No object deck produced")
	assert.Contains(t, out, "return code 8")
}

func TestMissingEndDiagnostic(t *testing.T) {
	result := assemble(t,
		"TEST     CSECT",
		"         DC    F'1'",
	)

	out := render(t, listing.New(result, ""))

	assert.Equal(t, 1, strings.Count(out, "** ASM"))
	assert.Contains(t, out, "return code 4")
}

func TestCrossReference(t *testing.T) {
	result := assemble(t,
		"TEST     CSECT",
		"         USING *,15",
		"         MVI   FLAG,0",
		"         CLI   FLAG,1",
		"FLAG     DC    X'00'",
		"         END",
	)

	printer := listing.New(result, "")
	out := render(t, printer)

	assert.Contains(t, out, "Ordinary Symbol and Literal Cross Reference")
	assert.Contains(t, out, "    3M")
	assert.Contains(t, out, "    4 ")
	assert.Contains(t, out, "External Symbol Dictionary")

	printer.XRef = false
	out = render(t, printer)

	assert.NotContains(t, out, "Cross Reference")
}

func TestColor(t *testing.T) {
	result := assemble(t,
		"TEST     CSECT",
		"         FOO",
		"         END",
	)

	printer := listing.New(result, "")
	printer.Color = true

	out := render(t, printer)

	assert.Contains(t, out, "\033[1;31m** ASM")
}
