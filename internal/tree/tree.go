// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package tree defines the mash document tree and builds it from the
// scanner's token stream.
//
// A document is a root Frame whose Text list holds the whole input. Every
// delimited region [[[ code ||| text ]]] becomes a nested Frame holding at
// most one code Element and a recursively parsed text list. A region without
// a separator has no code; its whole interior is text.
package tree

import (
	"fmt"

	"nickandperla.net/mash/internal/token"
)

// Node is an entry of a Frame's text list: an *Element or a *Frame.
type Node interface {
	// Address returns where the node begins in its source.
	Address() token.Address
	node()
}

// Element is a leaf holding literal text or one code fragment. Which of the
// two it is depends on the list of its parent Frame that holds it.
type Element struct {
	Addr token.Address
	Text string
}

func (e *Element) Address() token.Address { return e.Addr }
func (e *Element) node()                  {}

func (e *Element) String() string {
	return fmt.Sprintf("%s, column %d: %q", e.Addr, e.Addr.Column, e.Text)
}

// Frame is one delimited region, or the implicit region of a whole document
// for the root.
type Frame struct {
	Open token.Address // Address of the opening delimiter (document start for the root)
	Code []*Element    // Zero or one fragment
	Text []Node
}

func (f *Frame) Address() token.Address { return f.Open }
func (f *Frame) node()                  {}

// Fragment returns the frame's code element, or nil if it has none.
func (f *Frame) Fragment() *Element {
	if len(f.Code) == 0 {
		return nil
	}
	return f.Code[0]
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame at %s, column %d (%d code, %d text)", f.Open, f.Open.Column, len(f.Code), len(f.Text))
}

// Stats summarizes a tree. Frames includes the root.
type Stats struct {
	Frames int
	Code   int
	Text   int
}

func (s Stats) String() string {
	return fmt.Sprintf("frames=%d code=%d text=%d", s.Frames, s.Code, s.Text)
}

// Elements returns the total number of elements counted.
func (s Stats) Elements() int {
	return s.Code + s.Text
}

// Visitor is called for every node of a tree in document order. code is
// true for elements held in a Code list.
type Visitor func(n Node, code bool)

// Walk visits f and everything below it in document order.
func (f *Frame) Walk(fn Visitor) {
	fn(f, false)
	for _, e := range f.Code {
		fn(e, true)
	}
	for _, n := range f.Text {
		switch n := n.(type) {
		case *Frame:
			n.Walk(fn)
		default:
			fn(n, false)
		}
	}
}

// Stats counts the frames and elements of the tree rooted at f.
func (f *Frame) Stats() Stats {
	var s Stats
	f.Walk(func(n Node, code bool) {
		switch {
		case code:
			s.Code++
		case isFrame(n):
			s.Frames++
		default:
			s.Text++
		}
	})
	return s
}

func isFrame(n Node) bool {
	_, ok := n.(*Frame)
	return ok
}
