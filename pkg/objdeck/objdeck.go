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

// Package objdeck writes and reads 80 byte ESD/TXT/RLD/END object records.
package objdeck

import (
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/lassandro/asm370/pkg/encoding"
)

// Emitter buffers ESD items in threes and RLD items up to a full data field.
// Symbols must all be given before text and relocations, and End closes the
// deck.
type Emitter struct {
	deck     string
	sequence int
	records  []Record

	symbols []Symbol

	rld         []byte
	rldValid    bool
	rldTarget   int
	rldPosition int
	rldFlag     int
}

func NewEmitter(deck string) *Emitter {
	return &Emitter{deck: strings.ToUpper(deck)}
}

// Emit serializes a finished module. It depends only on m, so emitting the
// same module twice yields identical records.
func Emit(m *Module) []Record {
	emitter := NewEmitter(m.DeckID)

	for _, sym := range m.Symbols {
		emitter.Symbol(sym)
	}

	for _, text := range m.Text {
		emitter.Text(text.Scope, text.Address, text.Data)
	}

	for _, reloc := range m.Relocations {
		emitter.Relocation(reloc)
	}

	emitter.End(m.End)

	glog.V(1).Infof(
		"objdeck: %d records for %d symbols, %d text runs, %d relocations",
		len(emitter.records), len(m.Symbols), len(m.Text), len(m.Relocations),
	)

	return emitter.Records()
}

func (e *Emitter) Records() []Record {
	return e.records
}

func (e *Emitter) newRecord(kind string) *Record {
	var record Record

	for i := range record {
		record[i] = encoding.Blank
	}

	record[0] = 0x02
	encoding.PutName(record[1:4], kind)

	e.sequence++

	var sequence string

	if deck := e.deck; len(deck) > 4 {
		sequence = fmt.Sprintf("%s%04d", deck[:4], e.sequence%10000)
	} else if deck != "" {
		width := 8 - len(deck)
		sequence = fmt.Sprintf("%s%0*d", deck, width, e.sequence)
	} else {
		sequence = fmt.Sprintf("%08d", e.sequence)
	}

	encoding.PutName(record[72:80], sequence)

	e.records = append(e.records, record)
	return &e.records[len(e.records)-1]
}

func (e *Emitter) Symbol(sym Symbol) {
	e.symbols = append(e.symbols, sym)

	if len(e.symbols) == ESD_PER_CARD {
		e.flushSymbols()
	}
}

func (e *Emitter) flushSymbols() {
	if len(e.symbols) == 0 {
		return
	}

	record := e.newRecord("ESD")

	encoding.PutInt(record[10:12], int64(len(e.symbols)*ESD_ITEM_SIZE))

	if first := e.symbols[0]; first.Type != ESD_LD {
		encoding.PutInt(record[14:16], int64(first.ID))
	}

	for i, sym := range e.symbols {
		item := record[16+i*ESD_ITEM_SIZE : 16+(i+1)*ESD_ITEM_SIZE]

		encoding.PutName(item[0:8], strings.ToUpper(sym.Name))
		item[8] = byte(sym.Type)
		encoding.PutInt(item[9:12], sym.Address)

		switch sym.Type {
		case ESD_LD:
			encoding.PutInt(item[14:16], int64(sym.LDID))
		case ESD_ER, ESD_WX:
			if sym.Address == 0 {
				for j := 9; j < 12; j++ {
					item[j] = encoding.Blank
				}
			}
		default:
			item[12] = modeFlags(sym.AMode, sym.RMode)
			encoding.PutInt(item[13:16], sym.Length)
		}
	}

	e.symbols = e.symbols[:0]
}

func modeFlags(amode, rmode string) byte {
	var flags byte

	switch strings.ToUpper(amode) {
	case "31":
		flags |= 0x02
	case "ANY":
		flags |= 0x03
	}

	if strings.ToUpper(rmode) == "ANY" {
		flags |= 0x04
	}

	return flags
}

// Text writes data as TXT records of at most 56 bytes, each restating its
// ESDID and load address.
func (e *Emitter) Text(scope int, address int64, data []byte) {
	e.flushSymbols()

	for len(data) > 0 {
		size := len(data)

		if size > TEXT_SIZE {
			size = TEXT_SIZE
		}

		record := e.newRecord("TXT")
		encoding.PutInt(record[5:8], address)
		encoding.PutInt(record[10:12], int64(size))
		encoding.PutInt(record[14:16], int64(scope))
		copy(record[16:16+size], data[:size])

		data = data[size:]
		address += int64(size)
	}
}

// Relocation appends an RLD item. An item with the same position and target
// as the one before it is written in the 4 byte short form, and the previous
// item gets its continuation bit. The first item of every record is full.
func (e *Emitter) Relocation(reloc Relocation) {
	e.flushSymbols()

	short := e.rldValid &&
		reloc.Target == e.rldTarget && reloc.Position == e.rldPosition

	size := 8

	if short {
		size = 4
	}

	if len(e.rld)+size > RLD_SIZE {
		e.flushRelocations()
		short = false
	}

	if short {
		e.rld[e.rldFlag] |= RLD_CONTINUATION
	} else {
		var pointers [4]byte
		encoding.PutInt(pointers[0:2], int64(reloc.Target))
		encoding.PutInt(pointers[2:4], int64(reloc.Position))
		e.rld = append(e.rld, pointers[:]...)
	}

	var item [4]byte
	item[0] = rldFlags(reloc)
	encoding.PutInt(item[1:4], reloc.Address)

	e.rldFlag = len(e.rld)
	e.rld = append(e.rld, item[:]...)
	e.rldValid = true
	e.rldTarget = reloc.Target
	e.rldPosition = reloc.Position
}

func rldFlags(reloc Relocation) byte {
	flags := RLD_TYPE_A

	if reloc.Action == ACTION_STORE {
		flags = RLD_TYPE_V
	}

	flags |= byte((reloc.Length-1)&0x03) << 2

	if reloc.Action == ACTION_SUBTRACT {
		flags |= RLD_SUBTRACT
	}

	return flags
}

func (e *Emitter) flushRelocations() {
	if len(e.rld) == 0 {
		return
	}

	record := e.newRecord("RLD")
	encoding.PutInt(record[10:12], int64(len(e.rld)))
	copy(record[16:16+len(e.rld)], e.rld)

	e.rld = e.rld[:0]
	e.rldValid = false
}

// End flushes the buffered ESD and RLD items and writes the END record
func (e *Emitter) End(end End) {
	e.flushSymbols()
	e.flushRelocations()

	record := e.newRecord("END")

	if end.HasEntry {
		if end.Name != "" {
			encoding.PutName(record[16:24], strings.ToUpper(end.Name))
		} else {
			encoding.PutInt(record[5:8], end.Address)
			encoding.PutInt(record[14:16], int64(end.Scope))
		}

		encoding.PutInt(record[28:32], end.Length)
	}

	idr := end.IDR

	if len(idr) > IDR_PER_CARD {
		idr = idr[:IDR_PER_CARD]
	}

	if len(idr) > 0 {
		encoding.PutName(record[32:33], fmt.Sprint(len(idr)))
	}

	for i, item := range idr {
		field := record[33+i*IDR_ITEM_SIZE : 33+(i+1)*IDR_ITEM_SIZE]
		encoding.PutName(field[0:10], item.Translator)
		encoding.PutName(field[10:14], item.Version)
		encoding.PutName(field[14:19], item.Date)
	}
}
