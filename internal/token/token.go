// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines mash token kinds, delimiters and source addresses.
package token

import "fmt"

// Kind represents a mash token kind.
type Kind int

const (
	EOF Kind = iota
	TEXT

	// Delimiters
	OPEN  // [[[ - Open a frame
	SEP   // ||| - Separate a frame's code from its text
	CLOSE // ]]] - Close the current frame
)

// Delimiter spellings. All three are ASCII and exactly DelimLen bytes long.
const (
	DelimOpen  = "[[["
	DelimSep   = "|||"
	DelimClose = "]]]"

	DelimLen = 3
)

// Lookup returns the delimiter kind spelled by s, or TEXT if s is not a
// delimiter.
func Lookup(s string) Kind {
	switch s {
	case DelimOpen:
		return OPEN
	case DelimSep:
		return SEP
	case DelimClose:
		return CLOSE
	}
	return TEXT
}

// String returns the string representation of a token kind.
func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case TEXT:
		return "TEXT"
	case OPEN:
		return "OPEN"
	case SEP:
		return "SEP"
	case CLOSE:
		return "CLOSE"
	}
	return "UNKNOWN"
}

// Address identifies where a token began: source name plus 1-based line and
// column. Columns count runes, not bytes.
type Address struct {
	Source string
	Line   int
	Column int
}

// Start returns the address of the first character of source.
func Start(source string) Address {
	return Address{Source: source, Line: 1, Column: 1}
}

// Advance returns the address following r.
func (a Address) Advance(r rune) Address {
	if r == '\n' {
		return Address{Source: a.Source, Line: a.Line + 1, Column: 1}
	}
	return Address{Source: a.Source, Line: a.Line, Column: a.Column + 1}
}

// AdvanceString returns the address following every rune of s.
func (a Address) AdvanceString(s string) Address {
	for _, r := range s {
		a = a.Advance(r)
	}
	return a
}

// String renders the address the way diagnostics name it: "<source>, line <n>".
func (a Address) String() string {
	return fmt.Sprintf("%s, line %d", a.Source, a.Line)
}
