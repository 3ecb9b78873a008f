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

package encoding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/asm370/pkg/encoding"
)

func TestDecodeHex(t *testing.T) {
	value, err := encoding.DecodeHex("ABC")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0xBC}, value)

	_, err = encoding.DecodeHex("")
	assert.Error(t, err)

	_, err = encoding.DecodeHex("0G")
	assert.Error(t, err)
}

func TestDecodeBinary(t *testing.T) {
	value, err := encoding.DecodeBinary("110000001")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x81}, value)

	_, err = encoding.DecodeBinary("102")
	assert.Error(t, err)
}

func TestDecodeTerm(t *testing.T) {
	tests := []struct {
		kind  byte
		body  string
		value int64
	}{
		{'X', "FF", 0xFF},
		{'X', "00000000C1", 0xC1},
		{'B', "101", 5},
		{'C', "A", 0xC1},
		{'c', "AB", 0xC1C2},
	}

	for _, test := range tests {
		value, err := encoding.DecodeTerm(test.kind, test.body)
		require.NoError(t, err, "%c'%s'", test.kind, test.body)
		assert.Equal(t, test.value, value, "%c'%s'", test.kind, test.body)
	}

	_, err := encoding.DecodeTerm('C', "ABCDE")
	assert.Error(t, err)

	_, err = encoding.DecodeTerm('Q', "1")
	assert.Error(t, err)
}

func TestEBCDIC(t *testing.T) {
	encoded, err := encoding.ToEBCDIC("Az 9")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC1, 0xA9, 0x40, 0xF9}, encoded)
	assert.Equal(t, "Az 9", encoding.FromEBCDIC(encoded))

	_, err = encoding.ToEBCDIC("€")
	assert.Error(t, err)
}

func TestPutName(t *testing.T) {
	dst := make([]byte, 8)
	encoding.PutName(dst, "MAIN")
	assert.Equal(t, []byte{0xD4, 0xC1, 0xC9, 0xD5, 0x40, 0x40, 0x40, 0x40}, dst)
}

func TestIntegers(t *testing.T) {
	dst := make([]byte, 3)
	encoding.PutInt(dst, -2)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFE}, dst)
	assert.Equal(t, uint64(0xFFFFFE), encoding.Uint(dst))

	assert.True(t, encoding.Fits(255, 1))
	assert.True(t, encoding.Fits(-128, 1))
	assert.False(t, encoding.Fits(256, 1))
	assert.False(t, encoding.Fits(-129, 1))
	assert.True(t, encoding.Fits(1<<40, 8))
}

func TestAlign(t *testing.T) {
	assert.Equal(t, int64(8), encoding.Align(5, 8))
	assert.Equal(t, int64(8), encoding.Align(8, 8))
	assert.Equal(t, int64(5), encoding.Align(5, 1))
}
