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

// Package config holds the assembler options and loads them from TOML.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DEFAULT_REGION_SIZE   int64 = 1 << 20
	DEFAULT_LITERAL_LIMIT       = 8192
	DEFAULT_TRANSLATOR          = "ASM370"
	DEFAULT_VERSION             = "0100"
)

type Options struct {
	RegionSize   int64  `toml:"region_size"`
	LiteralLimit int    `toml:"literal_limit"`
	DeckID       string `toml:"deck_id"`
	Translator   string `toml:"translator"`
	Version      string `toml:"version"`
	Date         string `toml:"date"`
	AMode        string `toml:"amode"`
	RMode        string `toml:"rmode"`
	Listing      bool   `toml:"listing"`
	XRef         bool   `toml:"xref"`
}

type UnknownKeyError struct {
	Keys []string
}

func (err *UnknownKeyError) Error() string {
	return fmt.Sprintf("Unknown configuration keys: %s", strings.Join(err.Keys, ", "))
}

type InvalidOptionError struct {
	Name  string
	Value interface{}
}

func (err *InvalidOptionError) Error() string {
	return fmt.Sprintf("Invalid value for %s: %v", err.Name, err.Value)
}

func Default() *Options {
	return &Options{
		RegionSize:   DEFAULT_REGION_SIZE,
		LiteralLimit: DEFAULT_LITERAL_LIMIT,
		Translator:   DEFAULT_TRANSLATOR,
		Version:      DEFAULT_VERSION,
		AMode:        "24",
		RMode:        "24",
		Listing:      true,
		XRef:         true,
	}
}

// Decode reads TOML from r on top of the defaults. Keys that do not map to
// an option are rejected.
func Decode(r io.Reader) (*Options, error) {
	opts := Default()

	meta, err := toml.NewDecoder(r).Decode(opts)

	if err != nil {
		return nil, err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))

		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return nil, &UnknownKeyError{keys}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

func Load(path string) (*Options, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	return Decode(file)
}

func (opts *Options) Validate() error {
	if opts.RegionSize <= 0 {
		return &InvalidOptionError{"region_size", opts.RegionSize}
	}

	if opts.LiteralLimit <= 0 {
		return &InvalidOptionError{"literal_limit", opts.LiteralLimit}
	}

	if len(opts.DeckID) > 8 {
		return &InvalidOptionError{"deck_id", opts.DeckID}
	}

	if len(opts.Translator) > 10 {
		return &InvalidOptionError{"translator", opts.Translator}
	}

	if len(opts.Version) > 4 {
		return &InvalidOptionError{"version", opts.Version}
	}

	if opts.Date != "" {
		if _, err := time.Parse("06002", opts.Date); err != nil || len(opts.Date) != 5 {
			return &InvalidOptionError{"date", opts.Date}
		}
	}

	if !ValidAMode(opts.AMode) {
		return &InvalidOptionError{"amode", opts.AMode}
	}

	if !ValidRMode(opts.RMode) {
		return &InvalidOptionError{"rmode", opts.RMode}
	}

	return nil
}

// AssemblyDate returns the YYDDD date stamped into the END record
func (opts *Options) AssemblyDate() string {
	if opts.Date != "" {
		return opts.Date
	}

	now := time.Now()
	return fmt.Sprintf("%02d%03d", now.Year()%100, now.YearDay())
}

func ValidAMode(mode string) bool {
	switch strings.ToUpper(mode) {
	case "24", "31", "ANY":
		return true
	}

	return false
}

func ValidRMode(mode string) bool {
	switch strings.ToUpper(mode) {
	case "24", "ANY":
		return true
	}

	return false
}
