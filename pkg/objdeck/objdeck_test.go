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

package objdeck_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/asm370/pkg/encoding"
	"github.com/lassandro/asm370/pkg/objdeck"
)

func kinds(records []objdeck.Record) []string {
	result := make([]string, 0, len(records))

	for _, record := range records {
		result = append(result, encoding.FromEBCDIC(record[1:4]))
	}

	return result
}

func decode(t *testing.T, records []objdeck.Record) []*objdeck.Decoded {
	result := make([]*objdeck.Decoded, 0, len(records))

	for i, record := range records {
		decoded, err := objdeck.Decode(i, record)
		require.NoError(t, err)
		result = append(result, decoded)
	}

	return result
}

func TestSymbolsGroupedInThrees(t *testing.T) {
	module := &objdeck.Module{}

	for i := 1; i <= 7; i++ {
		module.Symbols = append(module.Symbols, objdeck.Symbol{
			Name: fmt.Sprintf("SECT%d", i),
			Type: objdeck.ESD_SD,
			ID:   i,
		})
	}

	records := objdeck.Emit(module)

	require.Equal(t, []string{"ESD", "ESD", "ESD", "END"}, kinds(records))

	decoded := decode(t, records)
	assert.Len(t, decoded[0].Symbols, 3)
	assert.Len(t, decoded[1].Symbols, 3)
	assert.Len(t, decoded[2].Symbols, 1)

	assert.Equal(t, "SECT4", decoded[1].Symbols[0].Name)
	assert.Equal(t, 4, decoded[1].Symbols[0].ID)
	assert.Equal(t, []byte{0x00, 0x04}, records[1][14:16])
	assert.Equal(t, []byte{0x00, 0x10}, records[2][10:12])
}

func TestTextSplit(t *testing.T) {
	data := make([]byte, 130)

	for i := range data {
		data[i] = byte(i)
	}

	module := &objdeck.Module{
		Symbols: []objdeck.Symbol{{Name: "MAIN", Type: objdeck.ESD_SD, ID: 1, Length: 130}},
		Text:    []objdeck.Text{{Scope: 1, Address: 0x100, Data: data}},
	}

	records := objdeck.Emit(module)

	require.Equal(t, []string{"ESD", "TXT", "TXT", "TXT", "END"}, kinds(records))

	decoded := decode(t, records)

	var joined []byte
	next := int64(0x100)

	for _, record := range decoded[1:4] {
		require.NotNil(t, record.Text)
		assert.Equal(t, 1, record.Text.Scope)
		assert.Equal(t, next, record.Text.Address)
		assert.LessOrEqual(t, len(record.Text.Data), objdeck.TEXT_SIZE)

		joined = append(joined, record.Text.Data...)
		next += int64(len(record.Text.Data))
	}

	assert.Equal(t, data, joined)

	// Short payloads are padded with EBCDIC blanks
	assert.Equal(t, encoding.Blank, records[3][16+18])
}

func TestRelocationForms(t *testing.T) {
	module := &objdeck.Module{}

	// Same target and position: one full item followed by short ones
	for i := 0; i < 3; i++ {
		module.Relocations = append(module.Relocations, objdeck.Relocation{
			Position: 1, Target: 2, Address: int64(i * 4), Length: 4,
		})
	}

	module.Relocations = append(module.Relocations, objdeck.Relocation{
		Position: 1, Target: 3, Address: 0x20, Length: 3, Action: objdeck.ACTION_SUBTRACT,
	})

	records := objdeck.Emit(module)

	require.Equal(t, []string{"RLD", "END"}, kinds(records))

	rld := records[0]
	assert.Equal(t, []byte{0x00, 0x18}, rld[10:12])

	assert.Equal(t, []byte{
		0x00, 0x02, 0x00, 0x01, 0x0D, 0x00, 0x00, 0x00,
		0x0D, 0x00, 0x00, 0x04,
		0x0C, 0x00, 0x00, 0x08,
		0x00, 0x03, 0x00, 0x01, 0x0A, 0x00, 0x00, 0x20,
	}, rld[16:40])

	decoded := decode(t, records)
	assert.Equal(t, module.Relocations, decoded[0].Relocations)
}

func TestRelocationOverflow(t *testing.T) {
	module := &objdeck.Module{}

	// Alternating targets keep every item full: 7 fit in 56 bytes
	for i := 0; i < 9; i++ {
		module.Relocations = append(module.Relocations, objdeck.Relocation{
			Position: 1, Target: 2 + i%2, Address: int64(i * 4), Length: 4,
		})
	}

	records := objdeck.Emit(module)

	require.Equal(t, []string{"RLD", "RLD", "END"}, kinds(records))
	assert.Equal(t, []byte{0x00, 0x38}, records[0][10:12])
	assert.Equal(t, []byte{0x00, 0x10}, records[1][10:12])

	// The first item of the second record restates its pointers
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x01}, records[1][16:20])

	decoded := decode(t, records)

	var all []objdeck.Relocation
	all = append(all, decoded[0].Relocations...)
	all = append(all, decoded[1].Relocations...)
	assert.Equal(t, module.Relocations, all)
}

func TestShortItemAfterFlushIsFull(t *testing.T) {
	module := &objdeck.Module{}

	for i := 0; i < 15; i++ {
		module.Relocations = append(module.Relocations, objdeck.Relocation{
			Position: 1, Target: 1, Address: int64(i * 4), Length: 4,
		})
	}

	// 8 + 12*4 = 56 bytes fill the first record exactly
	records := objdeck.Emit(module)

	require.Equal(t, []string{"RLD", "RLD", "END"}, kinds(records))
	assert.Equal(t, []byte{0x00, 0x38}, records[0][10:12])
	assert.Equal(t, []byte{0x00, 0x0C}, records[1][10:12])
	assert.Equal(t, byte(0x0C), records[0][16+52])
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x01}, records[1][16:20])
}

func TestEndRecord(t *testing.T) {
	module := &objdeck.Module{
		End: objdeck.End{
			HasEntry: true,
			Address:  0x18,
			Scope:    1,
			Length:   0x40,
			IDR:      []objdeck.IDR{{"ASM370", "0100", "26292"}},
		},
	}

	records := objdeck.Emit(module)
	require.Len(t, records, 1)

	end := records[0]
	assert.Equal(t, byte(0x02), end[0])
	assert.Equal(t, []byte{0x00, 0x00, 0x18}, end[5:8])
	assert.Equal(t, []byte{0x00, 0x01}, end[14:16])
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x40}, end[28:32])
	assert.Equal(t, "1", encoding.FromEBCDIC(end[32:33]))
	assert.Equal(t, "ASM370    010026292", encoding.FromEBCDIC(end[33:52]))

	decoded := decode(t, records)
	assert.Equal(t, module.End, *decoded[0].End)
}

func TestSymbolicEntry(t *testing.T) {
	records := objdeck.Emit(&objdeck.Module{
		End: objdeck.End{HasEntry: true, Name: "start"},
	})

	assert.Equal(t, "START   ", encoding.FromEBCDIC(records[0][16:24]))
	assert.Equal(t, []byte{0x40, 0x40}, records[0][14:16])
}

func TestSequenceField(t *testing.T) {
	records := objdeck.Emit(&objdeck.Module{DeckID: "pay"})
	assert.Equal(t, "PAY00001", encoding.FromEBCDIC(records[0][72:80]))

	records = objdeck.Emit(&objdeck.Module{})
	assert.Equal(t, "00000001", encoding.FromEBCDIC(records[0][72:80]))

	records = objdeck.Emit(&objdeck.Module{DeckID: "PAYROLL"})
	assert.Equal(t, "PAYR0001", encoding.FromEBCDIC(records[0][72:80]))
}

func TestEmitIsIdempotent(t *testing.T) {
	module := &objdeck.Module{
		DeckID: "TEST",
		Symbols: []objdeck.Symbol{
			{Name: "MAIN", Type: objdeck.ESD_SD, ID: 1, Length: 8, AMode: "31", RMode: "ANY"},
			{Name: "EXT", Type: objdeck.ESD_ER, ID: 2},
			{Name: "ENTRY1", Type: objdeck.ESD_LD, Address: 4, LDID: 1},
		},
		Text:        []objdeck.Text{{Scope: 1, Data: []byte{0, 0, 0, 0, 0, 0, 0, 4}}},
		Relocations: []objdeck.Relocation{{Position: 1, Target: 2, Length: 4, Action: objdeck.ACTION_STORE}},
		End:         objdeck.End{HasEntry: true, Scope: 1, Length: 8},
	}

	first := objdeck.Emit(module)
	second := objdeck.Emit(module)

	assert.Equal(t, first, second)

	decoded := decode(t, first)
	require.Len(t, decoded[0].Symbols, 3)
	assert.Equal(t, "31", decoded[0].Symbols[0].AMode)
	assert.Equal(t, "ANY", decoded[0].Symbols[0].RMode)
	assert.Equal(t, byte(0x06), first[0][16+12])
	assert.Equal(t, 1, decoded[0].Symbols[2].LDID)
	assert.Equal(t, objdeck.ACTION_STORE, decoded[2].Relocations[0].Action)
	assert.Equal(t, byte(0x1C), first[2][16+4])
}

func TestReadRecords(t *testing.T) {
	records := objdeck.Emit(&objdeck.Module{DeckID: "X"})

	var buffer bytes.Buffer

	for _, record := range records {
		buffer.Write(record[:])
	}

	read, err := objdeck.ReadRecords(bytes.NewReader(buffer.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, records, read)

	_, err = objdeck.ReadRecords(bytes.NewReader(buffer.Bytes()[:40]))
	assert.IsType(t, &objdeck.InvalidRecordError{}, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var record objdeck.Record

	_, err := objdeck.Decode(0, record)
	assert.IsType(t, &objdeck.InvalidRecordError{}, err)

	record[0] = 0x02
	encoding.PutName(record[1:4], "XYZ")

	_, err = objdeck.Decode(0, record)
	assert.IsType(t, &objdeck.InvalidRecordError{}, err)
}
