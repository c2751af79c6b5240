// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package fragment provides the evaluators that run mash code fragments:
// Disabled for validate-only runs, Exec for an external interpreter process,
// Wasm for a sandboxed WebAssembly interpreter, and Mock for tests.
package fragment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"

	"nickandperla.net/mash/internal/eval"
	"nickandperla.net/mash/internal/token"
)

// Disabled rejects every fragment. Documents without code still expand.
type Disabled struct{}

// Evaluate always fails at the fragment's first line.
func (Disabled) Evaluate(_ context.Context, _ string, at token.Address) (string, error) {
	return "", &eval.Failure{Kind: "disabled", Message: "code fragments are not allowed", Line: at.Line}
}

// Mock is an evaluator for tests.
type Mock struct {
	Response string
	Handler  func(src string, at token.Address) (string, error)
	calls    atomic.Int64
}

// NewMock creates a mock evaluator with a fixed response.
func NewMock(response string) *Mock {
	return &Mock{Response: response}
}

// NewMockHandler creates a mock evaluator with a custom handler.
func NewMockHandler(handler func(src string, at token.Address) (string, error)) *Mock {
	return &Mock{Handler: handler}
}

// Evaluate returns the mock response or calls the handler.
func (m *Mock) Evaluate(_ context.Context, src string, at token.Address) (string, error) {
	m.calls.Add(1)
	if m.Handler != nil {
		return m.Handler(src, at)
	}
	return m.Response, nil
}

// Calls returns how many fragments the mock has evaluated.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// Line patterns for common interpreters. The first non-empty capture group
// is the reported line; the last match in the output wins.
const (
	DefaultLinePattern = `line (\d+)`
	PythonLinePattern  = `File "<stdin>", line (\d+)`
	ShellLinePattern   = `(?m)^[^:\n]*: (?:line )?(\d+):`
)

// lineMatcher extracts a reported line number from interpreter diagnostics.
type lineMatcher struct {
	re *regexp.Regexp
}

func newLineMatcher(pattern string) (lineMatcher, error) {
	if pattern == "" {
		pattern = DefaultLinePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return lineMatcher{}, err
	}
	return lineMatcher{re: re}, nil
}

// find returns the line named by the last match in s, or 0.
func (m lineMatcher) find(s string) int {
	if m.re == nil {
		return 0
	}
	matches := m.re.FindAllStringSubmatch(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		for _, group := range matches[i][1:] {
			if group == "" {
				continue
			}
			if n, err := strconv.Atoi(group); err == nil {
				return n
			}
		}
	}
	return 0
}

// PythonKindPattern names the exception class on a traceback's final line.
// Kind patterns follow the line pattern rules: the first non-empty capture
// group of the last match is the failure kind.
const PythonKindPattern = `(?m)^(\w+(?:Error|Exception|Exit|Interrupt))\b`

// kindMatcher extracts the fragment language's error category from
// interpreter diagnostics. A zero matcher finds nothing.
type kindMatcher struct {
	re *regexp.Regexp
}

func newKindMatcher(pattern string) (kindMatcher, error) {
	if pattern == "" {
		return kindMatcher{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return kindMatcher{}, err
	}
	return kindMatcher{re: re}, nil
}

// kind names the failure in s, falling back to the exit status.
func (m kindMatcher) kind(s string, status int) string {
	if m.re != nil {
		matches := m.re.FindAllStringSubmatch(s, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			for _, group := range matches[i][1:] {
				if group != "" {
					return group
				}
			}
		}
	}
	return fmt.Sprintf("exit status %d", status)
}
