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

// Package constant parses DC/DS operands and materializes their bytes.
package constant

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/lassandro/asm370/pkg/encoding"
)

// Largest number of bytes a single operand may reserve
const MAX_SIZE int64 = 1 << 31

type limits struct {
	natural   int64
	alignment int64
	min       int64
	max       int64
}

var types = map[byte]limits{
	'C': {1, 1, 1, 256},
	'X': {1, 1, 1, 256},
	'B': {1, 1, 1, 256},
	'P': {1, 1, 1, 16},
	'Z': {1, 1, 1, 16},
	'F': {4, 4, 1, 8},
	'H': {2, 2, 1, 8},
	'E': {4, 4, 1, 8},
	'D': {8, 8, 1, 8},
	'A': {4, 4, 1, 4},
	'Y': {2, 2, 1, 2},
	'V': {4, 4, 3, 4},
	'S': {2, 2, 2, 2},
}

// Natural returns the implicit length and the alignment of a constant type.
// Types whose length depends on the nominal value report 1.
func Natural(t byte) (length, alignment int64) {
	if l, ok := types[t]; ok {
		return l.natural, l.alignment
	}

	return 1, 1
}

func IsAddressType(t byte) bool {
	return t == 'A' || t == 'Y' || t == 'V' || t == 'S'
}

// Parse reads one DC/DS operand. eval resolves parenthesized duplication
// factors and length modifiers.
func Parse(text string, eval Evaluator) (*Descriptor, error) {
	desc := &Descriptor{Text: text, Dup: 1}
	pos := 0

	// Duplication factor
	if pos < len(text) && text[pos] == '(' {
		end := MatchParen(text, pos)

		if end < 0 {
			return nil, &SyntaxError{text, "unbalanced duplication factor"}
		}

		value, err := evaluate(eval, text[pos+1:end])

		if err != nil {
			return nil, err
		}

		desc.Dup = value
		pos = end + 1
	} else if digits := leadingDigits(text[pos:]); digits > 0 {
		value, err := encoding.DecodeInt(text[pos : pos+digits])

		if err != nil {
			return nil, &SyntaxError{text, "invalid duplication factor"}
		}

		desc.Dup = value
		pos += digits
	}

	if desc.Dup < 0 {
		return nil, &RangeError{text, desc.Dup}
	}

	if pos >= len(text) {
		return nil, &SyntaxError{text, "missing type"}
	}

	desc.Type = upper(text[pos])
	pos++

	lim, ok := types[desc.Type]

	if !ok {
		return nil, &UnsupportedTypeError{desc.Type}
	}

	// Length modifier
	if pos < len(text) && upper(text[pos]) == 'L' {
		pos++

		if pos < len(text) && text[pos] == '(' {
			end := MatchParen(text, pos)

			if end < 0 {
				return nil, &SyntaxError{text, "unbalanced length modifier"}
			}

			value, err := evaluate(eval, text[pos+1:end])

			if err != nil {
				return nil, err
			}

			desc.Length = value
			pos = end + 1
		} else if digits := leadingDigits(text[pos:]); digits > 0 {
			value, _ := encoding.DecodeInt(text[pos : pos+digits])
			desc.Length = value
			pos += digits
		} else {
			return nil, &SyntaxError{text, "missing length"}
		}

		if desc.Length < lim.min || desc.Length > lim.max {
			return nil, &RangeError{text, desc.Length}
		}

		desc.Explicit = true
	}

	if err := desc.parseNominal(text[pos:]); err != nil {
		return nil, err
	}

	if err := desc.measure(lim); err != nil {
		return desc, err
	}

	// Keeps Size and every location counter sum far from overflow
	if item := desc.itemSize(); item > 0 && desc.Dup > MAX_SIZE/item {
		return nil, &RangeError{text, MAX_SIZE}
	}

	return desc, nil
}

func (desc *Descriptor) parseNominal(rest string) error {
	if rest == "" {
		return nil
	}

	if IsAddressType(desc.Type) {
		if rest[0] != '(' || MatchParen(rest, 0) != len(rest)-1 {
			return &SyntaxError{desc.Text, "address constants need a parenthesized nominal value"}
		}

		items, err := SplitList(rest[1 : len(rest)-1])

		if err != nil {
			return &SyntaxError{desc.Text, err.Error()}
		}

		desc.Nominal = items
		return nil
	}

	if rest[0] != '\'' {
		return &SyntaxError{desc.Text, "nominal value must be quoted"}
	}

	end := closingQuote(rest, 0)

	if end < 0 {
		return &SyntaxError{desc.Text, "unterminated nominal value"}
	} else if end != len(rest)-1 {
		return &SyntaxError{desc.Text, "unexpected characters after nominal value"}
	}

	body := rest[1:end]

	if desc.Type == 'C' {
		body = strings.ReplaceAll(body, "''", "'")
		body = strings.ReplaceAll(body, "&&", "&")
		desc.Nominal = []string{body}
		return nil
	}

	for _, item := range strings.Split(body, ",") {
		item = strings.TrimSpace(item)

		if item == "" {
			return &SyntaxError{desc.Text, "empty nominal value"}
		}

		desc.Nominal = append(desc.Nominal, item)
	}

	return nil
}

func (desc *Descriptor) measure(lim limits) error {
	if len(desc.Nominal) == 0 {
		if desc.Explicit {
			desc.lengths = []int64{desc.Length}
		} else {
			desc.lengths = []int64{lim.natural}
		}

		return nil
	}

	desc.lengths = make([]int64, len(desc.Nominal))

	for i, item := range desc.Nominal {
		if desc.Explicit {
			desc.lengths[i] = desc.Length
			continue
		}

		var length int64

		switch desc.Type {
		case 'C':
			encoded, err := encoding.ToEBCDIC(item)

			if err != nil {
				return &SyntaxError{desc.Text, err.Error()}
			}

			length = int64(len(encoded))
		case 'X':
			length = int64(len(item)+1) / 2
		case 'B':
			length = int64(len(item)+7) / 8
		case 'P':
			length = int64(countDigits(item))/2 + 1
		case 'Z':
			length = int64(countDigits(item))
		default:
			length = lim.natural
		}

		if length < lim.min || length > lim.max {
			return &RangeError{desc.Text, length}
		}

		desc.lengths[i] = length
	}

	return nil
}

func (desc *Descriptor) itemSize() int64 {
	var size int64

	for _, length := range desc.lengths {
		size += length
	}

	return size
}

// Size is the number of bytes the operand occupies, duplication included
func (desc *Descriptor) Size() int64 {
	return desc.itemSize() * desc.Dup
}

func (desc *Descriptor) Alignment() int64 {
	if desc.Explicit {
		return 1
	}

	_, alignment := Natural(desc.Type)
	return alignment
}

// LengthAttribute is the length of the first nominal value
func (desc *Descriptor) LengthAttribute() int64 {
	if len(desc.lengths) == 0 {
		return 1
	}

	return desc.lengths[0]
}

func (desc *Descriptor) ItemLength(i int) int64 {
	return desc.lengths[i]
}

func (desc *Descriptor) IsAddress() bool {
	return IsAddressType(desc.Type)
}

// Encode materializes a data constant, duplication included. Address
// constants are resolved by the caller from Nominal.
func (desc *Descriptor) Encode() ([]byte, error) {
	if len(desc.Nominal) == 0 && !desc.IsAddress() {
		return make([]byte, desc.Size()), nil
	}

	item, err := desc.encodeOnce()

	if err != nil {
		return nil, err
	}

	result := make([]byte, 0, int64(len(item))*desc.Dup)

	for i := int64(0); i < desc.Dup; i++ {
		result = append(result, item...)
	}

	return result, nil
}

// Validate checks that every nominal value encodes. Only one copy is built
// whatever the duplication factor.
func (desc *Descriptor) Validate() error {
	_, err := desc.encodeOnce()
	return err
}

func (desc *Descriptor) encodeOnce() ([]byte, error) {
	if desc.IsAddress() {
		return nil, errors.New("Address constants are resolved by the assembler")
	}

	var item []byte

	for i, nominal := range desc.Nominal {
		encoded, err := encodeItem(desc.Type, nominal, desc.lengths[i])

		if err != nil {
			if _, ok := err.(*RangeError); ok {
				return nil, &RangeError{desc.Text, desc.lengths[i]}
			}

			return nil, &SyntaxError{desc.Text, err.Error()}
		}

		item = append(item, encoded...)
	}

	return item, nil
}

func encodeItem(t byte, nominal string, length int64) ([]byte, error) {
	result := make([]byte, length)

	switch t {
	case 'C':
		encoded, err := encoding.ToEBCDIC(nominal)

		if err != nil {
			return nil, err
		}

		for i := range result {
			result[i] = encoding.Blank
		}

		copy(result, encoded)
	case 'X', 'B':
		var raw []byte
		var err error

		if t == 'X' {
			raw, err = encoding.DecodeHex(nominal)
		} else {
			raw, err = encoding.DecodeBinary(nominal)
		}

		if err != nil {
			return nil, err
		}

		if int64(len(raw)) > length {
			raw = raw[int64(len(raw))-length:]
		}

		copy(result[length-int64(len(raw)):], raw)
	case 'F', 'H':
		value, err := encoding.DecodeInt(nominal)

		if err != nil {
			return nil, err
		}

		bits := uint(length * 8)

		if bits < 64 && (value < -(int64(1)<<(bits-1)) || value >= int64(1)<<(bits-1)) {
			return nil, &RangeError{nominal, length}
		}

		encoding.PutInt(result, value)
	case 'P', 'Z':
		negative, digits, err := decimalDigits(nominal)

		if err != nil {
			return nil, err
		}

		if t == 'P' {
			return packed(result, negative, digits)
		}

		return zoned(result, negative, digits)
	case 'E', 'D':
		value, err := parseFloat(nominal)

		if err != nil {
			return nil, err
		}

		long, err := hexFloat(value)

		if err != nil {
			return nil, err
		}

		full := make([]byte, 8)
		encoding.PutInt(full, int64(long))
		copy(result, full)
	default:
		return nil, &UnsupportedTypeError{t}
	}

	return result, nil
}

func packed(result []byte, negative bool, digits string) ([]byte, error) {
	nibbles := make([]byte, 0, len(digits)+2)

	for i := 0; i < len(digits); i++ {
		nibbles = append(nibbles, digits[i]-'0')
	}

	if negative {
		nibbles = append(nibbles, 0xD)
	} else {
		nibbles = append(nibbles, 0xC)
	}

	if len(nibbles)%2 != 0 {
		nibbles = append([]byte{0}, nibbles...)
	}

	if len(nibbles)/2 > len(result) {
		return nil, &RangeError{digits, int64(len(result))}
	}

	offset := len(result) - len(nibbles)/2

	for i := 0; i < len(nibbles); i += 2 {
		result[offset+i/2] = nibbles[i]<<4 | nibbles[i+1]
	}

	return result, nil
}

func zoned(result []byte, negative bool, digits string) ([]byte, error) {
	if len(digits) > len(result) {
		return nil, &RangeError{digits, int64(len(result))}
	}

	for i := range result {
		result[i] = 0xF0
	}

	offset := len(result) - len(digits)

	for i := 0; i < len(digits); i++ {
		result[offset+i] = 0xF0 | (digits[i] - '0')
	}

	last := len(result) - 1

	if negative {
		result[last] = 0xD0 | (result[last] & 0x0F)
	} else {
		result[last] = 0xC0 | (result[last] & 0x0F)
	}

	return result, nil
}

// decimalDigits strips the sign and decimal point, and leading zeros past
// the first digit.
func decimalDigits(s string) (bool, string, error) {
	negative := false

	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	s = strings.Replace(s, ".", "", 1)

	if s == "" {
		return false, "", errors.New("missing digits")
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false, "", errors.New("invalid decimal digit")
		}
	}

	s = strings.TrimLeft(s, "0")

	if s == "" {
		s = "0"
	}

	return negative, s, nil
}

func countDigits(s string) int {
	count := 0

	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			count++
		}
	}

	return count
}

func parseFloat(s string) (float64, error) {
	value, err := strconv.ParseFloat(s, 64)

	if err != nil {
		return 0, errors.New("invalid floating point value")
	}

	return value, nil
}

// hexFloat converts to the long hexadecimal floating point format: sign,
// excess-64 base-16 exponent and a 56-bit fraction.
func hexFloat(value float64) (uint64, error) {
	if value == 0 {
		return 0, nil
	}

	var sign uint64

	if value < 0 {
		sign = 1 << 63
		value = -value
	}

	exponent := 0

	for value >= 1 {
		value /= 16
		exponent++
	}

	for value < 1.0/16 {
		value *= 16
		exponent--
	}

	if exponent+64 < 0 || exponent+64 > 127 {
		return 0, &RangeError{"floating point exponent", 8}
	}

	fraction := uint64(math.Ldexp(value, 56))

	return sign | uint64(exponent+64)<<56 | fraction, nil
}
