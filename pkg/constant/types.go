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

package constant

import (
	"fmt"
)

// Resolves an absolute expression appearing in a duplication factor or an
// explicit length modifier.
type Evaluator func(expr string) (int64, error)

// Descriptor is one parsed DC/DS operand: [dup][type][length][nominal]
type Descriptor struct {
	Text     string
	Dup      int64
	Type     byte
	Length   int64
	Explicit bool
	Nominal  []string

	lengths []int64
}

type SyntaxError struct {
	Text   string
	Reason string
}

func (err *SyntaxError) Error() string {
	return fmt.Sprintf("Invalid constant '%s': %s", err.Text, err.Reason)
}

type UnsupportedTypeError struct {
	Type byte
}

func (err *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("Unsupported constant type '%c'", err.Type)
}

type RangeError struct {
	Text   string
	Length int64
}

func (err *RangeError) Error() string {
	return fmt.Sprintf("Value '%s' does not fit in %d bytes", err.Text, err.Length)
}
