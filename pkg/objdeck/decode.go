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

package objdeck

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lassandro/asm370/pkg/encoding"
)

// ReadRecords splits r into 80 byte records. A trailing partial record is
// an error.
func ReadRecords(r io.Reader) ([]Record, error) {
	var result []Record

	for {
		var record Record

		n, err := io.ReadFull(r, record[:])

		if errors.Is(err, io.EOF) {
			return result, nil
		} else if errors.Is(err, io.ErrUnexpectedEOF) {
			return result, &InvalidRecordError{
				len(result), fmt.Sprintf("short record of %d bytes", n),
			}
		} else if err != nil {
			return result, err
		}

		result = append(result, record)
	}
}

func blank(field []byte) bool {
	for _, b := range field {
		if b != encoding.Blank {
			return false
		}
	}

	return true
}

func field(src []byte) int64 {
	if blank(src) {
		return 0
	}

	return int64(encoding.Uint(src))
}

func name(src []byte) string {
	return strings.TrimRight(encoding.FromEBCDIC(src), " ")
}

// Decode parses one record. index is only used to label errors.
func Decode(index int, record Record) (*Decoded, error) {
	if record[0] != 0x02 {
		return nil, &InvalidRecordError{index, "missing record marker"}
	}

	result := &Decoded{
		Kind:     name(record[1:4]),
		Sequence: name(record[72:80]),
	}

	count := int(field(record[10:12]))

	switch result.Kind {
	case "ESD":
		if count%ESD_ITEM_SIZE != 0 || count > ESD_PER_CARD*ESD_ITEM_SIZE {
			return nil, &InvalidRecordError{index, "bad ESD byte count"}
		}

		id := int(field(record[14:16]))

		for i := 0; i < count/ESD_ITEM_SIZE; i++ {
			item := record[16+i*ESD_ITEM_SIZE : 16+(i+1)*ESD_ITEM_SIZE]

			sym := Symbol{
				Name:    name(item[0:8]),
				Type:    ESDType(item[8]),
				Address: field(item[9:12]),
			}

			switch sym.Type {
			case ESD_LD:
				sym.LDID = int(field(item[14:16]))
			case ESD_ER, ESD_WX:
				sym.ID = id
				id++
			default:
				sym.ID = id
				id++
				sym.Length = field(item[13:16])
				sym.AMode, sym.RMode = decodeModes(item[12])
			}

			result.Symbols = append(result.Symbols, sym)
		}
	case "TXT":
		if count > TEXT_SIZE {
			return nil, &InvalidRecordError{index, "bad TXT byte count"}
		}

		result.Text = &Text{
			Scope:   int(field(record[14:16])),
			Address: field(record[5:8]),
			Data:    append(Bytes{}, record[16:16+count]...),
		}
	case "RLD":
		if count > RLD_SIZE {
			return nil, &InvalidRecordError{index, "bad RLD byte count"}
		}

		relocations, err := decodeRelocations(record[16 : 16+count])

		if err != nil {
			return nil, &InvalidRecordError{index, err.Error()}
		}

		result.Relocations = relocations
	case "END":
		end := &End{
			Address: field(record[5:8]),
			Scope:   int(field(record[14:16])),
			Name:    name(record[16:24]),
			Length:  field(record[28:32]),
		}

		end.HasEntry = end.Scope != 0 || end.Name != ""

		if items, err := strconv.Atoi(name(record[32:33])); err == nil {
			for i := 0; i < items && i < IDR_PER_CARD; i++ {
				item := record[33+i*IDR_ITEM_SIZE : 33+(i+1)*IDR_ITEM_SIZE]

				end.IDR = append(end.IDR, IDR{
					Translator: name(item[0:10]),
					Version:    name(item[10:14]),
					Date:       name(item[14:19]),
				})
			}
		}

		result.End = end
	default:
		return nil, &InvalidRecordError{index, "unknown record type " + result.Kind}
	}

	return result, nil
}

func decodeModes(flags byte) (string, string) {
	amode := "24"
	rmode := "24"

	if flags == encoding.Blank {
		return amode, rmode
	}

	switch flags & 0x03 {
	case 0x02:
		amode = "31"
	case 0x03:
		amode = "ANY"
	}

	if flags&0x04 != 0 {
		rmode = "ANY"
	}

	return amode, rmode
}

func decodeRelocations(data []byte) ([]Relocation, error) {
	var result []Relocation

	full := true
	target, position := 0, 0

	for len(data) > 0 {
		if full {
			if len(data) < 8 {
				return nil, errors.New("truncated RLD item")
			}

			target = int(encoding.Uint(data[0:2]))
			position = int(encoding.Uint(data[2:4]))
			data = data[4:]
		} else if len(data) < 4 {
			return nil, errors.New("truncated RLD item")
		}

		flags := data[0]

		reloc := Relocation{
			Position: position,
			Target:   target,
			Address:  int64(encoding.Uint(data[1:4])),
			Length:   int((flags>>2)&0x03) + 1,
			Action:   ACTION_ADD,
		}

		if flags&0xF0 == RLD_TYPE_V {
			reloc.Action = ACTION_STORE
		} else if flags&RLD_SUBTRACT != 0 {
			reloc.Action = ACTION_SUBTRACT
		}

		result = append(result, reloc)

		full = flags&RLD_CONTINUATION == 0
		data = data[4:]
	}

	return result, nil
}
