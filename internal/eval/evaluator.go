// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"fmt"

	"nickandperla.net/mash/internal/token"
)

// Evaluator runs one code fragment and returns its textual output.
//
// src has already been unindented and padded with blank lines, so a line
// number the evaluator reports about src is a line number of the document.
// at is the address where the fragment starts.
//
// Contract:
// - Concurrency: implementations used with a pool must be safe for concurrent use.
// - Errors: report failures as *Failure when a line is known; any other error
//   is attributed to the fragment's first line.
// - Cancellation: should return promptly once ctx is done.
type Evaluator interface {
	Evaluate(ctx context.Context, src string, at token.Address) (string, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, src string, at token.Address) (string, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, src string, at token.Address) (string, error) {
	return f(ctx, src, at)
}

// Failure is an error raised by a fragment. Kind is the fragment language's
// own error category and is opaque to mash. Line is the line the evaluator
// reported, 0 when unknown.
type Failure struct {
	Kind    string
	Message string
	Line    int
}

func (f *Failure) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", f.Line, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}
