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
	"errors"
)

var errNoEvaluator = errors.New("Expression not allowed here")

func IsSymbolChar(c byte) bool {
	return IsSymbolStart(c) || (c >= '0' && c <= '9') || c == '_'
}

func IsSymbolStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		c == '$' || c == '#' || c == '@'
}

// IsAttributeQuote reports whether the quote at s[i] belongs to a length
// attribute reference such as L'FIELD rather than opening a string.
func IsAttributeQuote(s string, i int) bool {
	if i == 0 || (s[i-1] != 'L' && s[i-1] != 'l') {
		return false
	}

	if i >= 2 && IsSymbolChar(s[i-2]) {
		return false
	}

	if i+1 >= len(s) {
		return false
	}

	c := s[i+1]
	return IsSymbolStart(c) || c == '*'
}

// closingQuote returns the index of the quote ending the string opened at
// s[open], skipping doubled quotes, or -1.
func closingQuote(s string, open int) int {
	for i := open + 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}

		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}

		return i
	}

	return -1
}

// MatchParen returns the index of the parenthesis closing s[open], or -1.
// Quoted strings are skipped.
func MatchParen(s string, open int) int {
	depth := 0

	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if IsAttributeQuote(s, i) {
				continue
			}

			end := closingQuote(s, i)

			if end < 0 {
				return -1
			}

			i = end
		case '(':
			depth++
		case ')':
			depth--

			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// SplitList splits s on commas outside parentheses and quotes
func SplitList(s string) ([]string, error) {
	var result []string

	depth := 0
	start := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if IsAttributeQuote(s, i) {
				continue
			}

			end := closingQuote(s, i)

			if end < 0 {
				return nil, errors.New("unterminated string")
			}

			i = end
		case '(':
			depth++
		case ')':
			depth--

			if depth < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				result = append(result, s[start:i])
				start = i + 1
			}
		}
	}

	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}

	result = append(result, s[start:])

	for _, item := range result {
		if item == "" {
			return nil, errors.New("empty list item")
		}
	}

	return result, nil
}

func leadingDigits(s string) int {
	n := 0

	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}

	return n
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}

func evaluate(eval Evaluator, expr string) (int64, error) {
	if eval == nil {
		return 0, errNoEvaluator
	}

	return eval(expr)
}
