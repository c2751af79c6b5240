// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package tree

import (
	"errors"
	"strings"
	"testing"
)

func TestParseBasics(t *testing.T) {
	root, err := ParseString("a\nb[[[c|||d]]]e\nf", "x.mash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Code) != 0 {
		t.Errorf("expected root without code, got %d", len(root.Code))
	}
	if len(root.Text) != 3 {
		t.Fatalf("expected 3 text children, got %d", len(root.Text))
	}
	if _, ok := root.Text[0].(*Element); !ok {
		t.Errorf("expected child 0 to be an element, got %T", root.Text[0])
	}
	f, ok := root.Text[1].(*Frame)
	if !ok {
		t.Fatalf("expected child 1 to be a frame, got %T", root.Text[1])
	}
	if len(f.Code) != 1 || len(f.Text) != 1 {
		t.Errorf("expected 1 code and 1 text element, got %d and %d", len(f.Code), len(f.Text))
	}
	if f.Code[0].Text != "c" {
		t.Errorf("expected code 'c', got '%s'", f.Code[0].Text)
	}
	if f.Code[0].Addr.Line != 2 || f.Code[0].Addr.Column != 5 {
		t.Errorf("expected code at 2:5, got %d:%d", f.Code[0].Addr.Line, f.Code[0].Addr.Column)
	}
	if _, ok := root.Text[2].(*Element); !ok {
		t.Errorf("expected child 2 to be an element, got %T", root.Text[2])
	}

	// No panics from String
	_ = root.String()
	_ = f.Code[0].String()
}

func TestParseDelimiterAtStart(t *testing.T) {
	root, err := ParseString("[[[ a ]]]", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Text) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Text))
	}
	f := root.Text[0].(*Frame)
	if len(f.Code) != 0 {
		t.Errorf("expected no code without a separator, got %d", len(f.Code))
	}
	if len(f.Text) != 1 || f.Text[0].(*Element).Text != " a " {
		t.Errorf("expected interior ' a ' as text, got %v", f.Text)
	}
}

func TestParseNoDelimiters(t *testing.T) {
	inputs := []string{"plain", "  leading and trailing  \n", "multi\nline\n\ntext"}
	for _, src := range inputs {
		root, err := ParseString(src, "x")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", src, err)
		}
		if len(root.Code) != 0 {
			t.Errorf("%q: expected no code", src)
		}
		if len(root.Text) != 1 || root.Text[0].(*Element).Text != src {
			t.Errorf("%q: expected a single element holding the input, got %v", src, root.Text)
		}
	}
}

func TestParseEmptySeparatorSides(t *testing.T) {
	root, err := ParseString("[[[|||]]]", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := root.Text[0].(*Frame)
	if len(f.Code) != 1 || f.Code[0].Text != "" {
		t.Errorf("expected one empty code element, got %v", f.Code)
	}
	if len(f.Text) != 0 {
		t.Errorf("expected empty text list, got %d", len(f.Text))
	}
}

func TestParseNested(t *testing.T) {
	src := "top [[[ outer ||| x [[[ inner ||| y ]]] z ]]] end"
	root, err := ParseString(src, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outer := root.Text[1].(*Frame)
	if outer.Fragment().Text != " outer " {
		t.Errorf("expected outer code ' outer ', got '%s'", outer.Fragment().Text)
	}
	if len(outer.Text) != 3 {
		t.Fatalf("expected 3 children in outer frame, got %d", len(outer.Text))
	}
	inner := outer.Text[1].(*Frame)
	if inner.Fragment().Text != " inner " {
		t.Errorf("expected inner code ' inner ', got '%s'", inner.Fragment().Text)
	}

	stats := root.Stats()
	if stats != (Stats{Frames: 3, Code: 2, Text: 5}) {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestParseNestedFrameInsideCode(t *testing.T) {
	// Delimiters before the separator stay verbatim in the fragment
	root, err := ParseString("[[[ a [[[ b ]]] c ||| d ]]]", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := root.Text[0].(*Frame)
	if got := f.Fragment().Text; got != " a [[[ b ]]] c " {
		t.Errorf("expected raw code with nested delimiters, got '%s'", got)
	}
	if len(f.Text) != 1 {
		t.Errorf("expected 1 text child, got %d", len(f.Text))
	}

	// Separators of nested frames are part of the enclosing fragment too
	root, err = ParseString("[[[ a [[[ b ||| c ]]] ||| d ]]]", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f = root.Text[0].(*Frame)
	if got := f.Fragment().Text; got != " a [[[ b ||| c ]]] " {
		t.Errorf("expected nested separator kept verbatim, got '%s'", got)
	}
}

func TestParseExtraSeparator(t *testing.T) {
	_, err := ParseString("[[[ a \n ||| b \n ||| c ]]]", "xyz.mash")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "xyz.mash, line 3") {
		t.Errorf("expected error at line 3, got: %v", err)
	}
	if !errors.Is(err, ErrExtraSeparator) {
		t.Errorf("expected ErrExtraSeparator, got %v", err)
	}
	var se *SyntaxError
	if !errors.As(err, &se) || se.Addr.Line != 3 || se.Addr.Column != 2 {
		t.Errorf("expected address 3:2, got %+v", se)
	}
}

func TestParseExtraSeparatorFarApart(t *testing.T) {
	src := "[[[ a |||" + strings.Repeat("\nlots of text", 20) + "\n||| ]]]"
	_, err := ParseString(src, "far.mash")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "far.mash, line 22") {
		t.Errorf("expected error at the second separator's line, got: %v", err)
	}
}

func TestParseSeparatorPerNestingLevel(t *testing.T) {
	// One separator per frame is fine at every depth
	if _, err := ParseString("[[[ a ||| [[[ b ||| c ]]] ]]]", "x"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseMissingClose(t *testing.T) {
	_, err := ParseString("1  \n 2 \n 3 [[[ a \n b \n c \n d", "abc.mash")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "abc.mash, line 3") {
		t.Errorf("expected error at the opening line, got: %v", err)
	}
	if !errors.Is(err, ErrUnclosed) {
		t.Errorf("expected ErrUnclosed, got %v", err)
	}
}

func TestParseMissingCloseInnermost(t *testing.T) {
	_, err := ParseString("[[[ outer \n [[[ inner ]]] \n [[[ open \n", "n.mash")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "n.mash, line 3") {
		t.Errorf("expected error at the innermost unclosed frame, got: %v", err)
	}
}

func TestParseExtraClose(t *testing.T) {
	_, err := ParseString("[[[ \n a \n ||| \n b \n ]]] \n c \n ]]]", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrExtraClose) {
		t.Errorf("expected ErrExtraClose, got %v", err)
	}
	if !strings.Contains(err.Error(), "x, line 7") {
		t.Errorf("expected error at line 7, got: %v", err)
	}
}

func TestParseStraySeparator(t *testing.T) {
	_, err := ParseString("a\n|||\nb", "s.mash")
	if !errors.Is(err, ErrStraySeparator) {
		t.Fatalf("expected ErrStraySeparator, got %v", err)
	}
	if !strings.Contains(err.Error(), "s.mash, line 2") {
		t.Errorf("expected error at line 2, got: %v", err)
	}
}

func TestParseReader(t *testing.T) {
	root, err := Parse(strings.NewReader("a [[[ b ]]]"), "r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Text) != 2 {
		t.Errorf("expected 2 children, got %d", len(root.Text))
	}
}

func TestStats(t *testing.T) {
	root, err := ParseString("a\nb[[[c|||d]]]e\nf", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := root.Stats()
	if stats != (Stats{Frames: 2, Code: 1, Text: 3}) {
		t.Errorf("expected (2, 1, 3), got %v", stats)
	}
	if stats.String() != "frames=2 code=1 text=3" {
		t.Errorf("unexpected stats string '%s'", stats.String())
	}
}

func TestStatsMatchesWalk(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a [[[ b ]]] c",
		"[[[ x ||| [[[ y ||| z ]]] [[[ w ]]] ]]]",
		"[[[|||]]][[[|||]]]",
	}
	for _, src := range inputs {
		root, err := ParseString(src, "x")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", src, err)
		}
		elements := 0
		root.Walk(func(n Node, code bool) {
			if _, ok := n.(*Element); ok {
				elements++
			}
		})
		if s := root.Stats(); s.Elements() != elements {
			t.Errorf("%q: stats count %d elements, walk found %d", src, s.Elements(), elements)
		}
	}
}
