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

package encoding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// EBCDIC blank, used to pad names and unused record fields
const Blank byte = 0x40

var codepage = charmap.CodePage037

// Decodes a string of hexadecimal digits into bytes, right aligned. An odd
// digit count gets a leading zero nibble.
func DecodeHex(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.New("Empty hex string")
	}

	if len(s)%2 != 0 {
		s = "0" + s
	}

	result := make([]byte, len(s)/2)

	for i := 0; i < len(result); i++ {
		value, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)

		if err != nil {
			return nil, fmt.Errorf("Invalid hex string '%s'", s)
		}

		result[i] = byte(value)
	}

	return result, nil
}

// Decodes a string of binary digits into bytes, right aligned.
func DecodeBinary(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.New("Empty binary string")
	}

	if pad := len(s) % 8; pad != 0 {
		s = strings.Repeat("0", 8-pad) + s
	}

	result := make([]byte, len(s)/8)

	for i := 0; i < len(result); i++ {
		value, err := strconv.ParseUint(s[i*8:i*8+8], 2, 8)

		if err != nil {
			return nil, fmt.Errorf("Invalid binary string '%s'", s)
		}

		result[i] = byte(value)
	}

	return result, nil
}

// Decodes a base-10 string in the formats: +123, -123, 123
func DecodeInt(s string) (int64, error) {
	if len(s) > 0 && s[0] == '+' {
		s = s[1:]
	}

	return strconv.ParseInt(s, 10, 64)
}

// Decodes a self-defining term body (the part between the quotes) of the
// given type into its numeric value. Terms are limited to 32 bits.
func DecodeTerm(kind byte, body string) (int64, error) {
	var raw []byte
	var err error

	switch kind {
	case 'X', 'x':
		raw, err = DecodeHex(body)
	case 'B', 'b':
		raw, err = DecodeBinary(body)
	case 'C', 'c':
		raw, err = ToEBCDIC(body)
	default:
		return 0, fmt.Errorf("Invalid self-defining term type %c", kind)
	}

	if err != nil {
		return 0, err
	}

	for len(raw) > 4 && raw[0] == 0 {
		raw = raw[1:]
	}

	if len(raw) > 4 || len(raw) == 0 {
		return 0, fmt.Errorf("Self-defining term %c'%s' exceeds 4 bytes", kind, body)
	}

	return int64(Uint(raw)), nil
}

// Converts a string into code page 037
func ToEBCDIC(s string) ([]byte, error) {
	result := make([]byte, 0, len(s))

	for _, r := range s {
		b, ok := codepage.EncodeRune(r)

		if !ok {
			return nil, fmt.Errorf("Character %q has no EBCDIC encoding", r)
		}

		result = append(result, b)
	}

	return result, nil
}

// Converts code page 037 bytes back into a string
func FromEBCDIC(b []byte) string {
	var builder strings.Builder

	for _, c := range b {
		builder.WriteRune(codepage.DecodeByte(c))
	}

	return builder.String()
}

// Writes name into dst as EBCDIC, truncated or padded with blanks
func PutName(dst []byte, name string) {
	for i := range dst {
		dst[i] = Blank
	}

	encoded, err := ToEBCDIC(name)

	if err != nil {
		encoded = []byte{}
	}

	copy(dst, encoded)
}

// Writes value big-endian into all of dst, keeping the low order bytes
func PutInt(dst []byte, value int64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(value)
		value >>= 8
	}
}

// Reads a big-endian unsigned value of up to 8 bytes
func Uint(src []byte) uint64 {
	var result uint64

	for _, b := range src {
		result = (result << 8) | uint64(b)
	}

	return result
}

// Reports whether value fits in the given number of bytes, either as a
// signed or an unsigned quantity.
func Fits(value int64, size int) bool {
	if size >= 8 {
		return true
	}

	bits := uint(size * 8)
	return value >= -(int64(1)<<(bits-1)) && value < int64(1)<<bits
}

// Rounds value up to the next multiple of boundary
func Align(value, boundary int64) int64 {
	if boundary <= 1 {
		return value
	}

	if rem := value % boundary; rem != 0 {
		return value + boundary - rem
	}

	return value
}
