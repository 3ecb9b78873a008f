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

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/asm370/pkg/config"
)

func TestDefaults(t *testing.T) {
	opts := config.Default()

	assert.Equal(t, config.DEFAULT_REGION_SIZE, opts.RegionSize)
	assert.Equal(t, 8192, opts.LiteralLimit)
	assert.Equal(t, "24", opts.AMode)
	assert.NoError(t, opts.Validate())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	opts, err := config.Decode(strings.NewReader(`
region_size = 4096
deck_id = "PAY1"
date = "24123"
amode = "31"
rmode = "ANY"
xref = false
`))

	require.NoError(t, err)
	assert.Equal(t, int64(4096), opts.RegionSize)
	assert.Equal(t, "PAY1", opts.DeckID)
	assert.Equal(t, "24123", opts.AssemblyDate())
	assert.Equal(t, "31", opts.AMode)
	assert.Equal(t, "ANY", opts.RMode)
	assert.False(t, opts.XRef)
	assert.True(t, opts.Listing)
	assert.Equal(t, config.DEFAULT_TRANSLATOR, opts.Translator)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := config.Decode(strings.NewReader("region = 12\n"))

	var keyErr *config.UnknownKeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, []string{"region"}, keyErr.Keys)
}

func TestDecodeRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"region":  "region_size = 0",
		"amode":   `amode = "64"`,
		"rmode":   `rmode = "31"`,
		"deck":    `deck_id = "TOOLONGID"`,
		"date":    `date = "2024"`,
		"version": `version = "12345"`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Decode(strings.NewReader(input))

			var optErr *config.InvalidOptionError
			assert.ErrorAs(t, err, &optErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asm370.toml")
	require.NoError(t, os.WriteFile(path, []byte("literal_limit = 16\n"), 0666))

	opts, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 16, opts.LiteralLimit)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestAssemblyDateFallsBackToClock(t *testing.T) {
	opts := config.Default()

	assert.Len(t, opts.AssemblyDate(), 5)
}
