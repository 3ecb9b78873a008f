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

package listing

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lassandro/asm370/pkg/assembler"
	"github.com/lassandro/asm370/pkg/objdeck"
	"github.com/lassandro/asm370/pkg/symtab"
)

const (
	OBJECT_PER_LINE = 8
	REFS_PER_LINE   = 8

	bold  = "\033[1m"
	red   = "\033[1;31m"
	dim   = "\033[1;30m"
	reset = "\033[0m"
)

type Printer struct {
	Title string
	XRef  bool
	Color bool

	out     *bufio.Writer
	result  *assembler.Result
	printed map[int]bool
	number  int
}

func New(result *assembler.Result, title string) *Printer {
	return &Printer{Title: title, XRef: true, result: result}
}

// Write prints the source listing followed by the external symbol
// dictionary, the cross-reference and the diagnostic summary
func (p *Printer) Write(w io.Writer) error {
	p.out = bufio.NewWriter(w)
	p.printed = make(map[int]bool)
	p.number = 0

	p.heading(p.Title)
	p.style(bold, "  LOC   OBJECT CODE      ADDR1  ADDR2   STMT  SOURCE STATEMENT\n")

	lines := p.result.Lines()

	for _, rec := range p.result.Records {
		p.record(rec, lines)
	}

	// Diagnostics on lines no statement owns, such as a missing END
	var rest []int

	for line := range lines {
		if !p.printed[line] {
			rest = append(rest, line)
		}
	}

	sort.Ints(rest)

	for _, line := range rest {
		p.diagnostics(lines[line])
	}

	if p.result.Module != nil {
		p.externals(p.result.Module)
	}

	if p.XRef {
		p.crossReference()
	}

	p.summary()

	return p.out.Flush()
}

func (p *Printer) style(color string, format string, args ...interface{}) {
	if p.Color {
		fmt.Fprint(p.out, color)
		fmt.Fprintf(p.out, format, args...)
		fmt.Fprint(p.out, reset)
	} else {
		fmt.Fprintf(p.out, format, args...)
	}
}

func (p *Printer) heading(title string) {
	p.out.WriteByte('\n')

	if title != "" {
		p.style(bold, "%s\n", title)
	}

	p.out.WriteByte('\n')
}

func (p *Printer) record(rec *assembler.Record, lines map[int][]assembler.Diagnostic) {
	stmt := rec.Statement

	if rec.Type == assembler.RECORD_POOL {
		// Pools flushed at END print ahead of the END statement itself
		if stmt.Mnemonic != "END" {
			p.source(rec, lines)
		}

		p.pool(rec)
		return
	}

	p.source(rec, lines)
}

func (p *Printer) source(rec *assembler.Record, lines map[int][]assembler.Diagnostic) {
	stmt := rec.Statement

	p.number++

	loc := "      "
	addr1 := "     "
	addr2 := "     "

	switch rec.Type {
	case assembler.RECORD_INSTRUCTION, assembler.RECORD_STORAGE,
		assembler.RECORD_POOL:
		loc = fmt.Sprintf("%06X", rec.Loc)
	case assembler.RECORD_LOCATED:
		if rec.Scope != 0 && rec.Directive != assembler.DIRECTIVE_END {
			loc = fmt.Sprintf("%06X", rec.Loc)
		}
	case assembler.RECORD_EQUATE:
		addr2 = fmt.Sprintf("%05X", rec.Value.Number&0xFFFFF)
	}

	if rec.HasAddr1 {
		addr1 = fmt.Sprintf("%05X", rec.Addr1&0xFFFFF)
	}

	if rec.HasAddr2 {
		addr2 = fmt.Sprintf("%05X", rec.Addr2&0xFFFFF)
	}

	object := rec.Object
	first := object

	if len(first) > OBJECT_PER_LINE {
		first = first[:OBJECT_PER_LINE]
	}

	for i, text := range stmt.Lines {
		if i == 0 {
			fmt.Fprintf(
				p.out,
				"%s %-16s %s  %s  %5d  %s\n",
				loc,
				p.objectCode(rec, first),
				addr1,
				addr2,
				p.number,
				text,
			)
		} else {
			fmt.Fprintf(p.out, "%44s%s\n", "", text)
		}
	}

	// The rest of long constants
	for offset := OBJECT_PER_LINE; offset < len(object); offset += OBJECT_PER_LINE {
		end := offset + OBJECT_PER_LINE

		if end > len(object) {
			end = len(object)
		}

		fmt.Fprintf(
			p.out,
			"%06X %-16s\n",
			rec.Loc+int64(offset),
			p.objectCode(rec, object[offset:end]),
		)
	}

	for i := range stmt.Lines {
		line := stmt.Line + i

		if p.printed[line] {
			continue
		}

		p.printed[line] = true
		p.diagnostics(lines[line])
	}
}

// objectCode groups instructions by halfword and leaves data contiguous
func (p *Printer) objectCode(rec *assembler.Record, data []byte) string {
	if rec.Type != assembler.RECORD_INSTRUCTION {
		return fmt.Sprintf("%X", data)
	}

	var builder strings.Builder

	for i := 0; i < len(data); i += 2 {
		if i > 0 {
			builder.WriteByte(' ')
		}

		fmt.Fprintf(&builder, "%X", data[i:i+2])
	}

	return builder.String()
}

func (p *Printer) pool(rec *assembler.Record) {
	for _, entry := range rec.Literals {
		offset := entry.Value - rec.Loc
		var data []byte

		if offset >= 0 && offset+entry.Length <= int64(len(rec.Object)) {
			data = rec.Object[offset : offset+entry.Length]
		}

		if len(data) > OBJECT_PER_LINE {
			data = data[:OBJECT_PER_LINE]
		}

		p.number++

		fmt.Fprintf(
			p.out,
			"%06X %-16s %5s  %5s  %5d  %s\n",
			entry.Value,
			fmt.Sprintf("%X", data),
			"",
			"",
			p.number,
			entry.Text,
		)
	}
}

func (p *Printer) diagnostics(diagnostics []assembler.Diagnostic) {
	for _, diagnostic := range diagnostics {
		color := red

		if diagnostic.Severity() < assembler.SEVERITY_WARNING {
			color = dim
		}

		p.style(color, "** %s %s\n", diagnostic.Code(), diagnostic)
	}
}

func (p *Printer) externals(module *objdeck.Module) {
	p.heading("External Symbol Dictionary")
	p.style(bold, "SYMBOL   TYPE  ID  ADDRESS  LENGTH  LD ID  AMODE RMODE\n")

	for _, sym := range module.Symbols {
		id := "    "
		length := "        "
		ldid := "     "

		switch sym.Type {
		case objdeck.ESD_LD:
			ldid = fmt.Sprintf("%5d", sym.LDID)
		case objdeck.ESD_SD, objdeck.ESD_PC:
			id = fmt.Sprintf("%4d", sym.ID)
			length = fmt.Sprintf("%06X  ", sym.Length)
		default:
			id = fmt.Sprintf("%4d", sym.ID)
		}

		fmt.Fprintf(
			p.out,
			"%-8s  %-2s %s  %06X  %s %s  %-5s %-5s\n",
			sym.Name,
			sym.Type,
			id,
			sym.Address,
			length,
			ldid,
			sym.AMode,
			sym.RMode,
		)
	}
}

func (p *Printer) crossReference() {
	p.heading("Ordinary Symbol and Literal Cross Reference")
	p.style(bold, "SYMBOL   LENGTH   VALUE     ID  R  TYPE  DEFN  REFERENCES\n")

	for _, sym := range p.result.Symbols.Sorted() {
		if !sym.Defined {
			fmt.Fprintf(p.out, "%-8s ****UNDEFINED****", sym.Name)
			p.references(sym.References)
			continue
		}

		class := "A"

		switch sym.Class() {
		case symtab.CLASS_RELOCATABLE:
			class = "R"
		case symtab.CLASS_COMPLEX:
			class = "C"
		}

		fmt.Fprintf(
			p.out,
			"%-8s %6d  %08X  %3d  %s  %-4c  %4d ",
			sym.Name,
			sym.Length,
			uint32(sym.Value.Number),
			sym.Scope,
			class,
			sym.Kind,
			sym.Line,
		)

		p.references(sym.References)
	}
}

func (p *Printer) references(refs []symtab.Reference) {
	for i, ref := range refs {
		if i > 0 && i%REFS_PER_LINE == 0 {
			fmt.Fprintf(p.out, "\n%50s", "")
		}

		fmt.Fprintf(p.out, " %4d%c", ref.Line, ref.Flag)
	}

	p.out.WriteByte('\n')
}

func (p *Printer) summary() {
	p.heading("Diagnostic Summary")

	counts := make(map[assembler.Severity]int)

	for _, diagnostic := range p.result.Diagnostics {
		counts[diagnostic.Severity()]++
	}

	for severity := assembler.SEVERITY_INFO; severity <= assembler.SEVERITY_SEVERE; severity++ {
		if counts[severity] > 0 {
			fmt.Fprintf(p.out, "%6d %s\n", counts[severity], severity)
		}
	}

	fmt.Fprintf(
		p.out,
		"%6d statements, %d bytes, highest severity %s, return code %d\n",
		p.number,
		p.result.Size,
		p.result.MaxSeverity(),
		p.result.ReturnCode(),
	)

	if p.result.Object == nil {
		p.style(red, "No object deck produced\n")
	}
}
