// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package tree

import (
	"io"
	"strings"

	"nickandperla.net/mash/internal/scanner"
	"nickandperla.net/mash/internal/token"
)

// builder tracks one frame that is still open.
type builder struct {
	frame  *Frame
	sawSep bool            // AccumulatingCode once set; terminal until close
	raw    strings.Builder // Source text since the opening delimiter, while no separator was seen
	codeAt token.Address   // Address right after the opening delimiter
}

// Parse reads a whole document and returns its root frame.
func Parse(r io.Reader, source string) (*Frame, error) {
	return build(scanner.New(r, source), source)
}

// ParseString parses a document held in a string.
func ParseString(src, source string) (*Frame, error) {
	return build(scanner.NewFromString(src, source), source)
}

func build(scan *scanner.Scanner, source string) (*Frame, error) {
	root := &builder{frame: &Frame{Open: token.Start(source)}}
	stack := []*builder{root}

	for {
		item, err := scan.Next()
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]

		switch item.Kind {
		case token.EOF:
			if len(stack) > 1 {
				// Report where the innermost unclosed frame began, not end of input
				open := stack[len(stack)-1].frame.Open
				return nil, syntaxErrorf(open, ErrUnclosed, "for frame opened at column %d", open.Column)
			}
			return root.frame, nil

		case token.TEXT:
			recordRaw(stack, item.Value)
			top.frame.Text = append(top.frame.Text, &Element{Addr: item.Addr, Text: item.Value})

		case token.OPEN:
			recordRaw(stack, item.Value)
			f := &Frame{Open: item.Addr}
			top.frame.Text = append(top.frame.Text, f)
			stack = append(stack, &builder{
				frame:  f,
				codeAt: item.Addr.AdvanceString(item.Value),
			})

		case token.SEP:
			if len(stack) == 1 {
				return nil, syntaxErrorf(item.Addr, ErrStraySeparator, "at column %d", item.Addr.Column)
			}
			if top.sawSep {
				return nil, syntaxErrorf(item.Addr, ErrExtraSeparator, "in frame opened at line %d", top.frame.Open.Line)
			}
			// Enclosing frames still collecting code see the separator verbatim
			recordRaw(stack[:len(stack)-1], item.Value)
			top.frame.Code = []*Element{{Addr: top.codeAt, Text: top.raw.String()}}
			top.frame.Text = nil
			top.sawSep = true
			top.raw.Reset()

		case token.CLOSE:
			if len(stack) == 1 {
				return nil, syntaxErrorf(item.Addr, ErrExtraClose, "at column %d", item.Addr.Column)
			}
			stack = stack[:len(stack)-1]
			recordRaw(stack, item.Value)
		}
	}
}

// recordRaw appends s to the raw source of every open, non-root frame that
// has not seen its separator yet.
func recordRaw(stack []*builder, s string) {
	for _, b := range stack[1:] {
		if !b.sawSep {
			b.raw.WriteString(s)
		}
	}
}
