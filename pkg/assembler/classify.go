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
	"errors"
	"strings"

	"github.com/golang/glog"

	"github.com/lassandro/asm370/pkg/config"
	"github.com/lassandro/asm370/pkg/constant"
	"github.com/lassandro/asm370/pkg/encoding"
	"github.com/lassandro/asm370/pkg/literal"
	"github.com/lassandro/asm370/pkg/opcode"
	"github.com/lassandro/asm370/pkg/symtab"
)

var errMissingNominal = errors.New("missing nominal value")

// classify is the first pass over one statement. It assigns the statement
// its location, defines its label and sizes whatever it will generate.
func (ctx *Context) classify(stmt *Statement) {
	rec := &Record{Type: RECORD_COMMENT, Statement: stmt}

	defer func() {
		ctx.Records = append(ctx.Records, rec)
	}()

	if stmt.Comment {
		return
	}

	if ctx.ended {
		if !ctx.afterEnd {
			ctx.report(&StatementAfterEndError{stmt.Position}, nil)
			ctx.afterEnd = true
		}

		return
	}

	for _, diagnostic := range stmt.errors {
		if diagnostic.Severity() >= SEVERITY_ERROR {
			rec.Errored = true
		}
	}

	ctx.checkLabel(rec)

	if stmt.Mnemonic == "" {
		scope := ctx.ensureScope(rec)
		rec.Type = RECORD_LOCATED
		ctx.defineLabel(rec, scope.Loc, 1, 'U')
		return
	}

	if op, ok := opcode.Lookup(stmt.Mnemonic); ok {
		ctx.classifyInstruction(rec, op)
		return
	}

	rec.Directive = parseDirective(stmt.Mnemonic)

	if rec.Errored && rec.Directive != DIRECTIVE_END {
		// The operand field could not be split; keep the location only
		if rec.Directive != DIRECTIVE_INVALID {
			ctx.locate(rec)
		}

		return
	}

	switch rec.Directive {
	case DIRECTIVE_START, DIRECTIVE_CSECT, DIRECTIVE_RSECT, DIRECTIVE_DSECT:
		ctx.classifySection(rec)
	case DIRECTIVE_DC, DIRECTIVE_DS:
		ctx.classifyStorage(rec)
	case DIRECTIVE_EQU:
		ctx.classifyEquate(rec)
	case DIRECTIVE_ORG:
		ctx.classifyOrigin(rec)
	case DIRECTIVE_CNOP:
		ctx.classifyAlignment(rec)
	case DIRECTIVE_LTORG:
		ctx.classifyPool(rec)
	case DIRECTIVE_USING:
		ctx.locate(rec)
		rec.Type = RECORD_LOCATED

		if count := len(stmt.Operands); count < 2 {
			ctx.report(&MissingOperandError{ctx.operandsCursor(rec), 2, count}, rec)
		}
	case DIRECTIVE_DROP:
		ctx.locate(rec)
		rec.Type = RECORD_LOCATED
	case DIRECTIVE_ENTRY:
		ctx.classifyEntry(rec)
	case DIRECTIVE_EXTRN, DIRECTIVE_WXTRN:
		ctx.classifyExtern(rec)
	case DIRECTIVE_AMODE, DIRECTIVE_RMODE:
		ctx.classifyMode(rec)
	case DIRECTIVE_END:
		ctx.classifyEnd(rec)
	case DIRECTIVE_TITLE:
		if ctx.deckID == "" && rec.label != "" {
			ctx.deckID = rec.label
			glog.V(2).Infof("assembler: deck id %s from TITLE", ctx.deckID)
		}
	case DIRECTIVE_EJECT, DIRECTIVE_SPACE, DIRECTIVE_PRINT:
	default:
		ctx.report(&UnknownMnemonicError{stmt.MnemonicCursor(), stmt.Mnemonic}, rec)

		scope := ctx.ensureScope(rec)
		rec.Type = RECORD_LOCATED
		ctx.defineLabel(rec, scope.Loc, 1, 'U')
	}
}

// resolveDeferred settles the equates that named symbols defined further
// down. It repeats until a round makes no progress; whatever is left is
// reported as undefined.
func (ctx *Context) resolveDeferred() {
	for len(ctx.deferred) > 0 {
		var pending []*Record

		for _, rec := range ctx.deferred {
			if !ctx.defineEquate(rec, false) {
				pending = append(pending, rec)
			}
		}

		if len(pending) == len(ctx.deferred) {
			for _, rec := range pending {
				ctx.defineEquate(rec, true)
			}

			pending = nil
		}

		ctx.deferred = pending
	}
}

// locate places rec at the current location without opening a section
func (ctx *Context) locate(rec *Record) {
	if scope := ctx.Symbols.Current; scope != nil {
		rec.Scope = scope.ID
		rec.Loc = scope.Loc
	}
}

// ensureScope places rec at the current location. Code ahead of the first
// section directive goes to the unnamed private section.
func (ctx *Context) ensureScope(rec *Record) *symtab.Scope {
	scope := ctx.Symbols.Current

	if scope == nil {
		scope, _ = ctx.Symbols.OpenScope("", symtab.SCOPE_PC, rec.Statement.Line)
		glog.V(2).Infof("assembler: line %d opens the private section", rec.Statement.Line)
	}

	rec.Scope = scope.ID
	rec.Loc = scope.Loc
	return scope
}

func (ctx *Context) checkLabel(rec *Record) {
	stmt := rec.Statement
	label := stmt.Label

	if label == "" {
		return
	}

	for i := 0; i < len(label); i++ {
		valid := constant.IsSymbolChar(label[i])

		if i == 0 {
			valid = constant.IsSymbolStart(label[i])
		}

		if !valid {
			at := stmt.LabelCursor()
			at.Column += i
			at.Byte += int64(i)
			at.Size = 1

			ctx.report(&UnexpectedCharacterError{at, rune(label[i])}, rec)
			return
		}
	}

	if len(label) > LABEL_SIZE {
		ctx.report(
			&OversizedLabelError{stmt.LabelCursor(), LABEL_SIZE, int64(len(label))},
			rec,
		)
		return
	}

	rec.label = strings.ToUpper(label)
}

func (ctx *Context) defineLabel(rec *Record, loc int64, length int64, kind byte) {
	if rec.label == "" {
		return
	}

	value := symtab.Relocatable(loc, rec.Scope)

	if rec.Scope == 0 {
		value = symtab.Absolute(loc)
	}

	_, err := ctx.Symbols.DefineSymbol(
		rec.label, value, length, kind, rec.Statement.Line,
	)

	if err != nil {
		ctx.report(&RedeclaredLabelError{rec.Statement.LabelCursor(), rec.label}, rec)
	}
}

// operandsCursor points at the operand field, or at the mnemonic when the
// field is empty
func (ctx *Context) operandsCursor(rec *Record) Cursor {
	stmt := rec.Statement

	if stmt.Operand == "" {
		return stmt.MnemonicCursor()
	}

	return stmt.cursorAt(0, len(stmt.Operand))
}

func (ctx *Context) constantEvaluator(at Cursor, rec *Record) constant.Evaluator {
	return func(expr string) (int64, error) {
		value, err := ctx.absolute(expr, at, rec, symtab.REF_NONE, true)

		if err != nil {
			return 0, err
		}

		return value, nil
	}
}

// constantError reports a constant that failed to parse or encode.
// Expression problems inside the constant keep their own diagnostic.
func (ctx *Context) constantError(err error, at Cursor, rec *Record) {
	if diagnostic, ok := err.(Diagnostic); ok {
		ctx.report(diagnostic, rec)
		return
	}

	ctx.report(&InvalidConstantError{at, err}, rec)
}

// checkNominal validates what can be checked of a constant before any
// address is known. V-type names are registered as external references.
func (ctx *Context) checkNominal(
	desc *constant.Descriptor, at Cursor, rec *Record,
) bool {
	switch {
	case desc.Type == 'V':
		for _, nominal := range desc.Nominal {
			name := strings.ToUpper(nominal)

			if !validSymbol(name) {
				ctx.report(&InvalidExpressionError{at, nominal}, rec)
				return false
			}

			ctx.Symbols.ReferenceExtern(name, rec.Statement.Line)
		}
	case !desc.IsAddress():
		if err := desc.Validate(); err != nil {
			ctx.constantError(err, at, rec)
			return false
		}
	}

	return true
}

func validSymbol(name string) bool {
	if name == "" || len(name) > LABEL_SIZE || !constant.IsSymbolStart(name[0]) {
		return false
	}

	for i := 1; i < len(name); i++ {
		if !constant.IsSymbolChar(name[i]) {
			return false
		}
	}

	return true
}

func (ctx *Context) classifyInstruction(rec *Record, op *opcode.Opcode) {
	stmt := rec.Statement
	scope := ctx.ensureScope(rec)

	rec.Type = RECORD_INSTRUCTION
	rec.Opcode = op
	rec.Loc = encoding.Align(scope.Loc, 2)
	rec.Length = op.Length()
	rec.Skeleton = op.Skeleton()

	scope.SetLoc(rec.Loc + rec.Length)
	ctx.defineLabel(rec, rec.Loc, rec.Length, 'I')

	required := op.Operands()

	if rec.Errored || required == 0 {
		return
	}

	if count := len(stmt.Operands); count < required {
		ctx.report(&MissingOperandError{ctx.operandsCursor(rec), required, count}, rec)
		return
	} else if count > required {
		ctx.report(
			&InvalidNumArgumentsError{stmt.OperandCursor(required), required, count},
			rec,
		)
		return
	}

	for i, text := range stmt.Operands {
		if strings.HasPrefix(text, "=") && storageOperand(op, i) {
			ctx.internLiteral(rec, i)
		}
	}
}

func (ctx *Context) internLiteral(rec *Record, i int) {
	stmt := rec.Statement
	text := stmt.Operands[i]
	at := stmt.OperandCursor(i)

	desc, err := constant.Parse(text[1:], ctx.constantEvaluator(at, rec))

	if err != nil {
		ctx.constantError(err, at, rec)
		return
	}

	if len(desc.Nominal) == 0 || desc.Size() == 0 {
		ctx.report(&InvalidLiteralError{at}, rec)
		return
	}

	if !ctx.checkNominal(desc, at, rec) {
		return
	}

	entry, err := ctx.Literals.Intern(rec.Scope, text, desc, stmt.Line)

	switch err.(type) {
	case nil:
	case *literal.ScopeError:
		ctx.report(&LiteralScopeError{at, text}, rec)
		return
	case *literal.LimitError:
		ctx.report(&LiteralLimitError{at, ctx.Literals.Limit}, rec)
		return
	default:
		ctx.report(&InvalidConstantError{at, err}, rec)
		return
	}

	if rec.literals == nil {
		rec.literals = make(map[int]*literal.Entry)
	}

	rec.literals[i] = entry
}

func (ctx *Context) classifyStorage(rec *Record) {
	stmt := rec.Statement
	scope := ctx.ensureScope(rec)

	rec.Type = RECORD_STORAGE

	if len(stmt.Operands) == 0 {
		ctx.report(&MissingOperandError{stmt.MnemonicCursor(), 1, 0}, rec)
		ctx.defineLabel(rec, scope.Loc, 1, 'U')
		return
	}

	loc := scope.Loc
	started := false

	for i, text := range stmt.Operands {
		at := stmt.OperandCursor(i)
		desc, err := constant.Parse(text, ctx.constantEvaluator(at, rec))

		if err != nil {
			ctx.constantError(err, at, rec)
			continue
		}

		if rec.Directive == DIRECTIVE_DC {
			if len(desc.Nominal) == 0 {
				ctx.report(&InvalidConstantError{at, errMissingNominal}, rec)
				continue
			}

			if !ctx.checkNominal(desc, at, rec) {
				continue
			}
		}

		loc = encoding.Align(loc, desc.Alignment())

		if !started {
			started = true
			rec.Loc = loc
			ctx.defineLabel(rec, loc, desc.LengthAttribute(), desc.Type)
		}

		rec.Descriptors = append(rec.Descriptors, desc)
		rec.Offsets = append(rec.Offsets, loc-rec.Loc)
		loc += desc.Size()
	}

	if !started {
		ctx.defineLabel(rec, scope.Loc, 1, 'U')
		return
	}

	rec.Length = loc - rec.Loc
	scope.SetLoc(loc)
}

func (ctx *Context) classifyEquate(rec *Record) {
	stmt := rec.Statement

	ctx.locate(rec)
	rec.Type = RECORD_EQUATE

	if rec.label == "" {
		if stmt.Label == "" {
			ctx.report(&MissingLabelError{stmt.MnemonicCursor(), stmt.Mnemonic}, rec)
		}

		return
	}

	if len(stmt.Operands) == 0 {
		ctx.report(&MissingOperandError{stmt.MnemonicCursor(), 1, 0}, rec)
		return
	}

	if !ctx.defineEquate(rec, false) {
		glog.V(2).Infof("assembler: line %d deferred", stmt.Line)
		ctx.deferred = append(ctx.deferred, rec)
	}
}

// defineEquate evaluates an EQU and defines its label. It reports false
// when a symbol is not defined yet and final is not set.
func (ctx *Context) defineEquate(rec *Record, final bool) bool {
	stmt := rec.Statement

	pending := func(err Diagnostic) bool {
		if _, ok := err.(*UnknownLabelError); ok && !final {
			return true
		}

		ctx.report(err, rec)
		return false
	}

	result, err := ctx.evaluate(
		stmt.Operands[0], stmt.OperandCursor(0), rec, symtab.REF_NONE, false,
	)

	if err != nil {
		return !pending(err)
	}

	length := result.Length

	if len(stmt.Operands) > 1 && stmt.Operands[1] != "" {
		length, err = ctx.absolute(
			stmt.Operands[1], stmt.OperandCursor(1), rec, symtab.REF_NONE, false,
		)

		if err != nil {
			return !pending(err)
		}
	}

	rec.Value = result.Value
	rec.Length = 0

	if _, derr := ctx.Symbols.DefineSymbol(
		rec.label, result.Value, length, 'U', stmt.Line,
	); derr != nil {
		ctx.report(&RedeclaredLabelError{stmt.LabelCursor(), rec.label}, rec)
	}

	return true
}

func (ctx *Context) classifyOrigin(rec *Record) {
	stmt := rec.Statement
	scope := ctx.ensureScope(rec)

	rec.Type = RECORD_LOCATED
	target := scope.Length

	if len(stmt.Operands) > 0 && stmt.Operands[0] != "" {
		at := stmt.OperandCursor(0)
		result, err := ctx.evaluate(stmt.Operands[0], at, rec, symtab.REF_NONE, true)

		if err != nil {
			ctx.report(err, rec)
			return
		}

		if result.Value.Scope() != scope.ID || result.Value.Number < 0 {
			ctx.report(&InvalidOperandError{
				at,
				[]OperandType{OPERAND_RELOCATABLE},
				classOperand(result.Value),
			}, rec)
			return
		}

		target = result.Value.Number
	}

	scope.SetLoc(target)
	rec.Loc = target
	ctx.defineLabel(rec, target, 1, 'U')
}

// classifyAlignment sizes a CNOP. The location moves to the first address
// at byte b of a w byte boundary.
func (ctx *Context) classifyAlignment(rec *Record) {
	stmt := rec.Statement
	scope := ctx.ensureScope(rec)

	rec.Type = RECORD_LOCATED

	if count := len(stmt.Operands); count != 2 {
		if count < 2 {
			ctx.report(&MissingOperandError{ctx.operandsCursor(rec), 2, count}, rec)
		} else {
			ctx.report(&InvalidNumArgumentsError{stmt.OperandCursor(2), 2, count}, rec)
		}

		return
	}

	var values [2]int64

	for i := range values {
		value, err := ctx.absolute(
			stmt.Operands[i], stmt.OperandCursor(i), rec, symtab.REF_NONE, true,
		)

		if err != nil {
			ctx.report(err, rec)
			return
		}

		values[i] = value
	}

	b, w := values[0], values[1]

	if w != 4 && w != 8 {
		ctx.report(&InvalidLiteralError{stmt.OperandCursor(1)}, rec)
		return
	}

	if b < 0 || b >= w || b%2 != 0 {
		ctx.report(&InvalidLiteralError{stmt.OperandCursor(0)}, rec)
		return
	}

	loc := scope.Loc

	for loc%w != b {
		loc++
	}

	rec.Loc = scope.Loc
	rec.Length = loc - scope.Loc

	scope.SetLoc(loc)
	ctx.defineLabel(rec, loc, 1, 'U')
}

func (ctx *Context) classifyPool(rec *Record) {
	scope := ctx.ensureScope(rec)
	entries, end := ctx.Literals.Flush(scope.ID, scope.Loc)

	rec.Type = RECORD_LOCATED

	if len(entries) == 0 {
		ctx.defineLabel(rec, scope.Loc, 1, 'U')
		return
	}

	rec.Type = RECORD_POOL
	rec.Loc = encoding.Align(scope.Loc, 8)
	rec.Length = end - rec.Loc
	rec.Literals = entries

	scope.SetLoc(end)
	ctx.defineLabel(rec, rec.Loc, 1, 'U')

	glog.V(2).Infof(
		"assembler: line %d pools %d literals", rec.Statement.Line, len(entries),
	)
}

func (ctx *Context) classifySection(rec *Record) {
	stmt := rec.Statement
	kind := symtab.SCOPE_SD

	if rec.Directive == DIRECTIVE_DSECT {
		if rec.label == "" {
			if stmt.Label == "" {
				ctx.report(&MissingLabelError{stmt.MnemonicCursor(), stmt.Mnemonic}, rec)
			}

			return
		}

		kind = symtab.SCOPE_XD
	} else if rec.label == "" {
		kind = symtab.SCOPE_PC
	}

	scope, err := ctx.Symbols.OpenScope(rec.label, kind, stmt.Line)

	if err != nil {
		ctx.report(&RedeclaredLabelError{stmt.LabelCursor(), rec.label}, rec)
		return
	}

	rec.Type = RECORD_LOCATED
	rec.Scope = scope.ID
	rec.Loc = scope.Loc

	if rec.Directive == DIRECTIVE_START && len(stmt.Operands) > 0 && !scope.Continued {
		at := stmt.OperandCursor(0)
		origin, err := ctx.absolute(stmt.Operands[0], at, rec, symtab.REF_NONE, true)

		if err != nil {
			ctx.report(err, rec)
			return
		}

		if origin < 0 {
			ctx.report(&InvalidLiteralError{at}, rec)
			return
		}

		origin = encoding.Align(origin, 8)
		scope.SetLoc(origin)
		rec.Loc = origin

		if sym, ok := ctx.Symbols.Lookup(rec.label); ok && rec.label != "" {
			sym.Value = symtab.Relocatable(origin, scope.ID)
		}
	}
}

func (ctx *Context) classifyEntry(rec *Record) {
	stmt := rec.Statement

	ctx.locate(rec)
	rec.Type = RECORD_LOCATED

	if len(stmt.Operands) == 0 {
		ctx.report(&MissingOperandError{stmt.MnemonicCursor(), 1, 0}, rec)
		return
	}

	for i, operand := range stmt.Operands {
		name := strings.ToUpper(operand)
		at := stmt.OperandCursor(i)

		if !validSymbol(name) {
			ctx.report(&InvalidExpressionError{at, operand}, rec)
			continue
		}

		ctx.Symbols.AddEntry(name, stmt.Line)
		ctx.Symbols.ReferenceSymbol(name, stmt.Line, symtab.REF_NONE)

		if _, seen := ctx.entries[name]; !seen {
			ctx.entries[name] = at
		}
	}
}

func (ctx *Context) classifyExtern(rec *Record) {
	stmt := rec.Statement
	weak := rec.Directive == DIRECTIVE_WXTRN

	rec.Type = RECORD_LOCATED

	if len(stmt.Operands) == 0 {
		ctx.report(&MissingOperandError{stmt.MnemonicCursor(), 1, 0}, rec)
		return
	}

	for i, operand := range stmt.Operands {
		name := strings.ToUpper(operand)
		at := stmt.OperandCursor(i)

		if !validSymbol(name) {
			ctx.report(&InvalidExpressionError{at, operand}, rec)
			continue
		}

		if _, err := ctx.Symbols.DeclareExtern(name, weak, stmt.Line); err != nil {
			ctx.report(&RedeclaredLabelError{at, name}, rec)
		}
	}
}

func (ctx *Context) classifyMode(rec *Record) {
	stmt := rec.Statement

	if len(stmt.Operands) != 1 {
		ctx.report(&InvalidNumArgumentsError{ctx.operandsCursor(rec), 1, len(stmt.Operands)}, rec)
		return
	}

	value := strings.ToUpper(stmt.Operands[0])
	valid := config.ValidAMode(value)

	if rec.Directive == DIRECTIVE_RMODE {
		valid = config.ValidRMode(value)
	}

	if !valid {
		ctx.report(&InvalidExpressionError{stmt.OperandCursor(0), stmt.Operands[0]}, rec)
		return
	}

	m, ok := ctx.modes[rec.label]

	if !ok {
		m = &modes{}
		ctx.modes[rec.label] = m
	}

	if rec.Directive == DIRECTIVE_AMODE {
		m.amode = value
	} else {
		m.rmode = value
	}
}

// classifyEnd closes the assembly. Literals still pending in any section
// are pooled ahead of the END record.
func (ctx *Context) classifyEnd(rec *Record) {
	ctx.locate(rec)
	rec.Type = RECORD_LOCATED
	ctx.ended = true

	// Same placement as an LTORG just before END. Sections other than the
	// current one resume at their length.
	for _, id := range ctx.Literals.Scopes() {
		scope := ctx.Symbols.Scope(id)
		loc := scope.Length

		if scope == ctx.Symbols.Current {
			loc = scope.Loc
		}

		entries, end := ctx.Literals.Flush(id, loc)

		if len(entries) == 0 {
			continue
		}

		pool := &Record{
			Type:      RECORD_POOL,
			Statement: rec.Statement,
			Scope:     id,
			Loc:       encoding.Align(loc, 8),
			Literals:  entries,
		}

		pool.Length = end - pool.Loc
		scope.SetLoc(end)

		ctx.Records = append(ctx.Records, pool)
	}

	if scope := ctx.Symbols.Current; scope != nil && rec.Scope == scope.ID {
		rec.Loc = scope.Loc
	}
}
