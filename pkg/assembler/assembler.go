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

// Package assembler turns System/370 assembler source into an object deck.
package assembler

import (
	"io"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/lassandro/asm370/pkg/config"
	"github.com/lassandro/asm370/pkg/literal"
	"github.com/lassandro/asm370/pkg/objdeck"
	"github.com/lassandro/asm370/pkg/region"
	"github.com/lassandro/asm370/pkg/symtab"
	"github.com/lassandro/asm370/pkg/using"
)

type modes struct {
	amode string
	rmode string
}

type run struct {
	scope int
	start int64
	end   int64
}

// Context owns every table of one assembly. Nothing in it is shared
// between runs; Reset clears it for the next one.
type Context struct {
	Options     *config.Options
	Symbols     *symtab.Table
	Literals    *literal.Pool
	Using       *using.Resolver
	Records     []*Record
	Diagnostics []Diagnostic

	arena  *region.Arena
	region *region.Region

	deferred    []*Record
	modes       map[string]*modes
	entries     map[string]Cursor
	deckID      string
	ended       bool
	afterEnd    bool
	runs        []run
	relocations []objdeck.Relocation
	entry       objdeck.End
}

type Result struct {
	Records     []*Record
	Symbols     *symtab.Table
	Diagnostics []Diagnostic
	Module      *objdeck.Module
	Object      []objdeck.Record
	DeckID      string
	Size        int64
}

func parseDirective(ident string) DirectiveType {
	if strings.EqualFold(ident, "START") {
		return DIRECTIVE_START
	} else if strings.EqualFold(ident, "CSECT") {
		return DIRECTIVE_CSECT
	} else if strings.EqualFold(ident, "RSECT") {
		return DIRECTIVE_RSECT
	} else if strings.EqualFold(ident, "DSECT") {
		return DIRECTIVE_DSECT
	} else if strings.EqualFold(ident, "DC") {
		return DIRECTIVE_DC
	} else if strings.EqualFold(ident, "DS") {
		return DIRECTIVE_DS
	} else if strings.EqualFold(ident, "EQU") {
		return DIRECTIVE_EQU
	} else if strings.EqualFold(ident, "ORG") {
		return DIRECTIVE_ORG
	} else if strings.EqualFold(ident, "CNOP") {
		return DIRECTIVE_CNOP
	} else if strings.EqualFold(ident, "LTORG") {
		return DIRECTIVE_LTORG
	} else if strings.EqualFold(ident, "USING") {
		return DIRECTIVE_USING
	} else if strings.EqualFold(ident, "DROP") {
		return DIRECTIVE_DROP
	} else if strings.EqualFold(ident, "ENTRY") {
		return DIRECTIVE_ENTRY
	} else if strings.EqualFold(ident, "EXTRN") {
		return DIRECTIVE_EXTRN
	} else if strings.EqualFold(ident, "WXTRN") {
		return DIRECTIVE_WXTRN
	} else if strings.EqualFold(ident, "AMODE") {
		return DIRECTIVE_AMODE
	} else if strings.EqualFold(ident, "RMODE") {
		return DIRECTIVE_RMODE
	} else if strings.EqualFold(ident, "END") {
		return DIRECTIVE_END
	} else if strings.EqualFold(ident, "TITLE") {
		return DIRECTIVE_TITLE
	} else if strings.EqualFold(ident, "EJECT") {
		return DIRECTIVE_EJECT
	} else if strings.EqualFold(ident, "SPACE") {
		return DIRECTIVE_SPACE
	} else if strings.EqualFold(ident, "PRINT") {
		return DIRECTIVE_PRINT
	}

	return DIRECTIVE_INVALID
}

func NewContext(opts *config.Options) *Context {
	if opts == nil {
		opts = config.Default()
	}

	ctx := &Context{
		Options: opts,
		arena:   region.NewArena(region.PAGE_SIZE),
	}

	ctx.Reset()
	return ctx
}

// Reset drops all state of the previous run. Region pages go back to the
// arena for reuse.
func (ctx *Context) Reset() {
	if ctx.region != nil {
		ctx.region.Release()
		ctx.region = nil
	}

	ctx.Symbols = symtab.NewTable()
	ctx.Literals = literal.NewPool(ctx.Options.LiteralLimit)
	ctx.Using = using.NewResolver()
	ctx.Records = nil
	ctx.Diagnostics = nil
	ctx.deferred = nil
	ctx.modes = make(map[string]*modes)
	ctx.entries = make(map[string]Cursor)
	ctx.deckID = strings.ToUpper(ctx.Options.DeckID)
	ctx.ended = false
	ctx.afterEnd = false
	ctx.runs = nil
	ctx.relocations = nil
	ctx.entry = objdeck.End{}
}

// Assemble runs one assembly with a fresh context
func Assemble(input io.Reader, opts *config.Options) (*Result, error) {
	return NewContext(opts).Run(input)
}

// Run assembles input. Problems in the source are returned as diagnostics
// in the result; the error is reserved for conditions that abort the run.
func (ctx *Context) Run(input io.Reader) (*Result, error) {
	ctx.Reset()

	statements, _, err := ReadStatements(input)

	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("assembler: %d statements", len(statements))

	// Pass 1
	for _, stmt := range statements {
		for _, diagnostic := range stmt.errors {
			ctx.report(diagnostic, nil)
		}

		ctx.classify(stmt)
	}

	if !ctx.ended {
		ctx.synthesizeEnd(statements)
	}

	ctx.resolveDeferred()
	ctx.normalize()

	size := ctx.Symbols.Size()

	glog.V(1).Infof(
		"assembler: %d sections, %d bytes", len(ctx.Symbols.Scopes), size,
	)

	if size > ctx.Options.RegionSize {
		return nil, &RegionOverflowError{size, ctx.Options.RegionSize}
	}

	// Dummy sections are never stored but pass 2 still builds their images
	for _, dummy := range ctx.Symbols.Dummies {
		if dummy.Length > ctx.Options.RegionSize {
			return nil, &RegionOverflowError{dummy.Length, ctx.Options.RegionSize}
		}
	}

	ctx.region = region.New(ctx.arena, size)

	// Pass 2
	for _, rec := range ctx.Records {
		if !rec.Errored {
			ctx.generate(rec)
		}
	}

	ctx.checkEntries()

	sort.SliceStable(ctx.Diagnostics, func(i, j int) bool {
		return ctx.Diagnostics[i].GetPosition().Line <
			ctx.Diagnostics[j].GetPosition().Line
	})

	result := &Result{
		Records:     ctx.Records,
		Symbols:     ctx.Symbols,
		Diagnostics: ctx.Diagnostics,
		DeckID:      ctx.deckID,
		Size:        size,
	}

	if severity := result.MaxSeverity(); severity <= SEVERITY_WARNING {
		result.Module = ctx.module()
		result.Object = objdeck.Emit(result.Module)
	} else {
		glog.V(1).Infof("assembler: no object deck, highest severity %s", severity)
	}

	return result, nil
}

func (ctx *Context) report(diagnostic Diagnostic, rec *Record) {
	glog.V(2).Infof("assembler: %s %v", diagnostic.Code(), diagnostic)

	ctx.Diagnostics = append(ctx.Diagnostics, diagnostic)

	if rec != nil && diagnostic.Severity() >= SEVERITY_ERROR {
		rec.Errored = true
	}
}

func (ctx *Context) synthesizeEnd(statements []*Statement) {
	stmt := &Statement{Mnemonic: "END", Lines: []string{"         END"}}

	if count := len(statements); count > 0 {
		last := statements[count-1]
		stmt.Line = last.Line + len(last.Lines)
		ctx.report(&MissingEndError{last.Position}, nil)
	} else {
		stmt.Line = 1
		ctx.report(&MissingEndError{Cursor{Line: 1, Column: 1}}, nil)
	}

	stmt.Position = Cursor{Line: stmt.Line, Column: 1}
	ctx.classify(stmt)
}

// normalize moves every section relative address to its place in the
// module once the section lengths are final
func (ctx *Context) normalize() {
	ctx.Symbols.Normalize()

	for _, rec := range ctx.Records {
		if rec.Scope > 0 {
			offset := ctx.Symbols.Offset(rec.Scope)
			rec.Loc += offset

			for _, entry := range rec.Literals {
				entry.Value += offset
			}
		}

		if rec.Type == RECORD_EQUATE {
			rec.Value = ctx.Symbols.Relocate(rec.Value)
		}
	}
}

func (ctx *Context) mode(label string) (string, string) {
	amode := ctx.Options.AMode
	rmode := ctx.Options.RMode

	if m, ok := ctx.modes[label]; ok {
		if m.amode != "" {
			amode = m.amode
		}

		if m.rmode != "" {
			rmode = m.rmode
		}
	}

	return strings.ToUpper(amode), strings.ToUpper(rmode)
}

// module collects the finished tables in emitter order: sections, external
// references, then entry points
func (ctx *Context) module() *objdeck.Module {
	m := &objdeck.Module{DeckID: ctx.deckID}

	for _, scope := range ctx.Symbols.Scopes {
		sym := objdeck.Symbol{
			Name:    scope.Label,
			Type:    objdeck.ESD_SD,
			ID:      scope.ID,
			Address: scope.Base,
			Length:  scope.Length,
		}

		if scope.Label == "" {
			sym.Type = objdeck.ESD_PC
		}

		sym.AMode, sym.RMode = ctx.mode(scope.Label)
		m.Symbols = append(m.Symbols, sym)
	}

	for _, ext := range ctx.Symbols.Externs {
		if ext.Section != 0 {
			continue
		}

		sym := objdeck.Symbol{Name: ext.Name, Type: objdeck.ESD_ER, ID: ext.ID}

		if ext.Weak {
			sym.Type = objdeck.ESD_WX
		}

		m.Symbols = append(m.Symbols, sym)
	}

	for _, entry := range ctx.Symbols.Entries {
		sym, ok := ctx.Symbols.Lookup(entry.Name)

		if !ok || !sym.Defined || sym.Value.Scope() <= 0 {
			continue
		}

		m.Symbols = append(m.Symbols, objdeck.Symbol{
			Name:    entry.Name,
			Type:    objdeck.ESD_LD,
			Address: sym.Value.Number,
			LDID:    sym.Value.Scope(),
		})
	}

	m.Text = ctx.text()
	m.Relocations = ctx.relocations

	m.End = ctx.entry
	m.End.IDR = []objdeck.IDR{{
		Translator: ctx.Options.Translator,
		Version:    ctx.Options.Version,
		Date:       ctx.Options.AssemblyDate(),
	}}

	return m
}

// text merges the written ranges into contiguous runs per section and
// reads their final bytes back from the region
func (ctx *Context) text() []objdeck.Text {
	runs := append([]run{}, ctx.runs...)

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].start < runs[j].start
	})

	var merged []run

	for _, r := range runs {
		if count := len(merged); count > 0 {
			last := &merged[count-1]

			if last.scope == r.scope && r.start <= last.end {
				if r.end > last.end {
					last.end = r.end
				}

				continue
			}
		}

		merged = append(merged, r)
	}

	result := make([]objdeck.Text, 0, len(merged))

	for _, r := range merged {
		result = append(result, objdeck.Text{
			Scope:   r.scope,
			Address: r.start,
			Data:    ctx.region.ReadRange(r.start, r.end-r.start),
		})
	}

	return result
}

func (result *Result) MaxSeverity() Severity {
	severity := SEVERITY_NONE

	for _, diagnostic := range result.Diagnostics {
		if diagnostic.Severity() > severity {
			severity = diagnostic.Severity()
		}
	}

	return severity
}

func (result *Result) ReturnCode() int {
	return result.MaxSeverity().ReturnCode()
}

// Lines groups the diagnostics by the line they were raised on
func (result *Result) Lines() map[int][]Diagnostic {
	lines := make(map[int][]Diagnostic)

	for _, diagnostic := range result.Diagnostics {
		line := diagnostic.GetPosition().Line
		lines[line] = append(lines[line], diagnostic)
	}

	return lines
}
