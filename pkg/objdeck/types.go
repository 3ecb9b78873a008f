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
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	RECORD_SIZE   = 80
	TEXT_SIZE     = 56
	RLD_SIZE      = 56
	ESD_PER_CARD  = 3
	ESD_ITEM_SIZE = 16
	IDR_ITEM_SIZE = 19
	IDR_PER_CARD  = 2
)

type ESDType byte
type Action uint8

const (
	ESD_SD ESDType = 0x00
	ESD_LD ESDType = 0x01
	ESD_ER ESDType = 0x02
	ESD_PC ESDType = 0x04
	ESD_CM ESDType = 0x05
	ESD_XD ESDType = 0x06
	ESD_WX ESDType = 0x0A
)

const (
	ACTION_ADD Action = iota
	ACTION_SUBTRACT
	ACTION_STORE
)

// RLD flag byte layout: type in the high nibble, length-1 in bits 2-3,
// direction in bit 1 and the continuation bit in bit 0.
const (
	RLD_TYPE_A       byte = 0x00
	RLD_TYPE_V       byte = 0x10
	RLD_SUBTRACT     byte = 0x02
	RLD_CONTINUATION byte = 0x01
)

type Record [RECORD_SIZE]byte

// Bytes prints as upper case hex in YAML dumps
type Bytes []byte

type Symbol struct {
	Name    string  `yaml:"name"`
	Type    ESDType `yaml:"type"`
	ID      int     `yaml:"id,omitempty"`
	Address int64   `yaml:"address"`
	Length  int64   `yaml:"length,omitempty"`
	LDID    int     `yaml:"ldid,omitempty"`
	AMode   string  `yaml:"amode,omitempty"`
	RMode   string  `yaml:"rmode,omitempty"`
}

type Text struct {
	Scope   int   `yaml:"esdid"`
	Address int64 `yaml:"address"`
	Data    Bytes `yaml:"data"`
}

type Relocation struct {
	Position int    `yaml:"position"`
	Target   int    `yaml:"target"`
	Address  int64  `yaml:"address"`
	Length   int    `yaml:"length"`
	Action   Action `yaml:"action"`
}

type IDR struct {
	Translator string `yaml:"translator"`
	Version    string `yaml:"version"`
	Date       string `yaml:"date"`
}

type End struct {
	HasEntry bool   `yaml:"-"`
	Address  int64  `yaml:"address,omitempty"`
	Scope    int    `yaml:"esdid,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Length   int64  `yaml:"length,omitempty"`
	IDR      []IDR  `yaml:"idr,omitempty"`
}

// Module is the finished state the emitter serializes
type Module struct {
	DeckID      string
	Symbols     []Symbol
	Text        []Text
	Relocations []Relocation
	End         End
}

// Decoded is one object record parsed back into fields
type Decoded struct {
	Kind        string       `yaml:"kind"`
	Sequence    string       `yaml:"sequence"`
	Symbols     []Symbol     `yaml:"esd,omitempty"`
	Text        *Text        `yaml:"text,omitempty"`
	Relocations []Relocation `yaml:"rld,omitempty"`
	End         *End         `yaml:"end,omitempty"`
}

type InvalidRecordError struct {
	Index  int
	Reason string
}

func (err *InvalidRecordError) Error() string {
	return fmt.Sprintf("Record %d: %s", err.Index+1, err.Reason)
}

func (t ESDType) String() string {
	switch t {
	case ESD_SD:
		return "SD"
	case ESD_LD:
		return "LD"
	case ESD_ER:
		return "ER"
	case ESD_PC:
		return "PC"
	case ESD_CM:
		return "CM"
	case ESD_XD:
		return "XD"
	case ESD_WX:
		return "WX"
	}

	return fmt.Sprintf("%02X", byte(t))
}

func (t ESDType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func (b Bytes) MarshalYAML() (interface{}, error) {
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

func (a Action) String() string {
	switch a {
	case ACTION_ADD:
		return "add"
	case ACTION_SUBTRACT:
		return "subtract"
	case ACTION_STORE:
		return "store"
	}

	return "invalid"
}

func (a Action) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}
