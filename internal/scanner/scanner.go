// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner provides a streaming lexer that splits mash input into
// literal text runs and delimiter markers.
package scanner

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"nickandperla.net/mash/internal/token"
)

// Scanner tokenizes mash input rune-by-rune.
type Scanner struct {
	reader *bufio.Reader
	buf    strings.Builder
	peeked *Item
	pos    token.Address // Address of the next unread rune
}

// Item represents a scanned token with its value.
type Item struct {
	Kind  token.Kind
	Value string
	Addr  token.Address // Address of the token's first character
}

// New creates a new Scanner from an io.Reader. source names the input in
// every address the scanner produces.
func New(r io.Reader, source string) *Scanner {
	return &Scanner{
		reader: bufio.NewReader(r),
		pos:    token.Start(source),
	}
}

// NewFromString creates a new Scanner from a string.
func NewFromString(s, source string) *Scanner {
	return New(strings.NewReader(s), source)
}

// Peek returns the next item without consuming it.
func (s *Scanner) Peek() (*Item, error) {
	if s.peeked != nil {
		return s.peeked, nil
	}
	item, err := s.Next()
	if err != nil {
		return nil, err
	}
	s.peeked = item
	return item, nil
}

// Next returns the next token from the input. Text runs are never empty;
// once the input is exhausted every call returns an EOF item.
func (s *Scanner) Next() (*Item, error) {
	if s.peeked != nil {
		item := s.peeked
		s.peeked = nil
		return item, nil
	}

	s.buf.Reset()
	start := s.pos

	for {
		kind, err := s.delimiterAhead()
		if err != nil {
			return nil, err
		}
		if kind != token.TEXT {
			// Flush accumulated text first; the delimiter stays unread
			if s.buf.Len() > 0 {
				return &Item{Kind: token.TEXT, Value: s.buf.String(), Addr: start}, nil
			}
			if _, err := s.reader.Discard(token.DelimLen); err != nil {
				return nil, err
			}
			addr := s.pos
			// Delimiters never contain a newline
			s.pos.Column += token.DelimLen
			return &Item{Kind: kind, Value: spelling(kind), Addr: addr}, nil
		}

		r, size, err := s.reader.ReadRune()
		if err == io.EOF {
			if s.buf.Len() > 0 {
				return &Item{Kind: token.TEXT, Value: s.buf.String(), Addr: start}, nil
			}
			return &Item{Kind: token.EOF, Addr: s.pos}, nil
		}
		if err != nil {
			return nil, err
		}

		s.pos = s.pos.Advance(r)
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 passes through as the original byte
			if err := s.readRawByte(); err != nil {
				return nil, err
			}
			continue
		}
		s.buf.WriteRune(r)
	}
}

func (s *Scanner) readRawByte() error {
	if err := s.reader.UnreadRune(); err != nil {
		return err
	}
	b, err := s.reader.ReadByte()
	if err != nil {
		return err
	}
	s.buf.WriteByte(b)
	return nil
}

// delimiterAhead reports which delimiter, if any, starts at the next unread
// byte without consuming anything.
func (s *Scanner) delimiterAhead() (token.Kind, error) {
	b, err := s.reader.Peek(token.DelimLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return token.TEXT, err
	}
	if len(b) < token.DelimLen {
		return token.TEXT, nil
	}
	return token.Lookup(string(b)), nil
}

func spelling(k token.Kind) string {
	switch k {
	case token.OPEN:
		return token.DelimOpen
	case token.SEP:
		return token.DelimSep
	case token.CLOSE:
		return token.DelimClose
	}
	return ""
}

// Items scans src from the beginning and returns every token up to, but not
// including, EOF. Calling it again restarts the scan from scratch.
func Items(src, source string) ([]*Item, error) {
	scan := NewFromString(src, source)
	var items []*Item
	for {
		item, err := scan.Next()
		if err != nil {
			return nil, err
		}
		if item.Kind == token.EOF {
			return items, nil
		}
		items = append(items, item)
	}
}
