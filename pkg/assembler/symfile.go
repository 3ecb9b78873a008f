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
	"encoding/gob"
	"io"
)

// SymTable is the debugging side file written next to an object deck. It
// maps module addresses back to the source.
type SymTable struct {
	Source string

	// Module address -> byte offset of the generating statement
	Lines map[int64]int64

	Labels map[string]SymEntry
}

type SymEntry struct {
	Value  int64
	ESDID  int
	Length int64
	Line   int
}

// SymTable collects the addresses of every record that generated code or
// data and every defined ordinary symbol
func (result *Result) SymTable(source string) *SymTable {
	table := &SymTable{
		Source: source,
		Lines:  make(map[int64]int64),
		Labels: make(map[string]SymEntry),
	}

	for _, rec := range result.Records {
		if rec.Scope <= 0 || len(rec.Object) == 0 {
			continue
		}

		if _, exists := table.Lines[rec.Loc]; !exists {
			table.Lines[rec.Loc] = rec.Statement.Position.LineByte
		}
	}

	for _, sym := range result.Symbols.Sorted() {
		if !sym.Defined {
			continue
		}

		table.Labels[sym.Name] = SymEntry{
			Value:  sym.Value.Number,
			ESDID:  sym.Value.Scope(),
			Length: sym.Length,
			Line:   sym.Line,
		}
	}

	return table
}

func (table *SymTable) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(table)
}

func DecodeSymTable(r io.Reader) (*SymTable, error) {
	var table SymTable

	if err := gob.NewDecoder(r).Decode(&table); err != nil {
		return nil, err
	}

	return &table, nil
}
