// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval expands a mash document tree by running its code fragments
// through a pluggable Evaluator, optionally on a caller-supplied worker pool.
package eval

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"nickandperla.net/mash/internal/pool"
	"nickandperla.net/mash/internal/token"
	"nickandperla.net/mash/internal/tree"
)

// Combine controls how a frame's code output and the expansion of its text
// are joined.
type Combine int

const (
	// Prepend emits the code output, then the text (document order). Default.
	Prepend Combine = iota
	// Append emits the text, then the code output.
	Append
	// Replace emits only the code output when the frame has code; its text is
	// not expanded.
	Replace
)

// String returns the string representation of a Combine policy.
func (c Combine) String() string {
	switch c {
	case Prepend:
		return "PREPEND"
	case Append:
		return "APPEND"
	case Replace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}

// ParseCombine parses a string into a Combine policy.
func ParseCombine(s string) (Combine, bool) {
	switch strings.ToUpper(s) {
	case "PREPEND", "":
		return Prepend, true
	case "APPEND":
		return Append, true
	case "REPLACE":
		return Replace, true
	default:
		return Prepend, false
	}
}

// Engine walks a tree and produces its expanded output. The tree is only
// read, so one tree may be expanded by several engines at once.
type Engine struct {
	evaluator Evaluator
	pool      pool.Pool
	combine   Combine
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPool dispatches sibling frames to p. Without a pool expansion is
// sequential on the calling goroutine.
func WithPool(p pool.Pool) Option {
	return func(e *Engine) { e.pool = p }
}

// WithCombine sets the combine policy.
func WithCombine(c Combine) Option {
	return func(e *Engine) { e.combine = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine that runs fragments through ev.
func New(ev Evaluator, opts ...Option) *Engine {
	e := &Engine{evaluator: ev}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = EvaluatorFunc(func(context.Context, string, token.Address) (string, error) {
			return "", ErrNoEvaluator
		})
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Expand returns the expanded output of the tree rooted at root.
//
// Failures are fail-fast: the first evaluation failure stops the expansion,
// no further work is submitted, and the failure reported is the first one in
// document order. A canceled ctx yields a *CancelError and never partial
// output.
func (e *Engine) Expand(ctx context.Context, root *tree.Frame) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CancelError{Err: err}
	}
	return e.expandFrame(ctx, root, e.pool != nil)
}

// EvaluateFragment runs one code element: its common indentation is removed
// and it is padded so that line n of what the evaluator sees is line n of the
// document.
func (e *Engine) EvaluateFragment(ctx context.Context, el *tree.Element) (string, error) {
	src := Unindent(el.Text)
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", &CancelError{Err: err}
	}

	e.logger.Debug("evaluating fragment", "source", el.Addr.Source, "line", el.Addr.Line, "column", el.Addr.Column)
	out, err := e.evaluator.Evaluate(ctx, Pad(src, el.Addr), el.Addr)
	if err != nil {
		return "", e.attribute(ctx, el, err)
	}
	return out, nil
}

// attribute turns an evaluator error into a positioned failure.
func (e *Engine) attribute(ctx context.Context, el *tree.Element, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return &CancelError{Err: err}
	}

	at := el.Addr
	var f *Failure
	if errors.As(err, &f) {
		if f.Line > 0 && f.Line != at.Line {
			at = token.Address{Source: at.Source, Line: f.Line, Column: 1}
		}
		e.logger.Debug("fragment failed", "source", at.Source, "line", at.Line, "kind", f.Kind)
		return &EvalError{Addr: at, Kind: f.Kind, Message: f.Message, Err: err}
	}
	e.logger.Debug("fragment failed", "source", at.Source, "line", at.Line, "error", err)
	return &EvalError{Addr: at, Message: err.Error(), Err: err}
}

func (e *Engine) expandFrame(ctx context.Context, f *tree.Frame, dispatch bool) (string, error) {
	el := f.Fragment()
	var code string
	if el != nil {
		out, err := e.EvaluateFragment(ctx, el)
		if err != nil {
			return "", err
		}
		code = out
		if e.combine == Replace {
			return code, nil
		}
	}

	var body string
	var err error
	if dispatch {
		body, err = e.expandConcurrent(ctx, f.Text)
	} else {
		body, err = e.expandSequential(ctx, f.Text)
	}
	if err != nil {
		return "", err
	}

	if e.combine == Append {
		return body + code, nil
	}
	return code + body, nil
}

func (e *Engine) expandSequential(ctx context.Context, nodes []tree.Node) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		switch n := n.(type) {
		case *tree.Element:
			sb.WriteString(n.Text)
		case *tree.Frame:
			if err := ctx.Err(); err != nil {
				return "", &CancelError{Err: err}
			}
			out, err := e.expandFrame(ctx, n, false)
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
		}
	}
	return sb.String(), nil
}

// expandConcurrent submits every sibling frame of nodes to the pool and
// assembles the results in document order. Work running on a worker expands
// its own subtree sequentially, so a bounded pool never waits on itself.
func (e *Engine) expandConcurrent(parent context.Context, nodes []tree.Node) (string, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	parts := make([]string, len(nodes))
	handles := make([]pool.Handle, len(nodes))

submit:
	for i, n := range nodes {
		switch n := n.(type) {
		case *tree.Element:
			parts[i] = n.Text
		case *tree.Frame:
			if ctx.Err() != nil {
				break submit
			}
			e.logger.Debug("dispatching frame", "source", n.Open.Source, "line", n.Open.Line)
			handles[i] = e.pool.Submit(ctx, func(ctx context.Context) (string, error) {
				out, err := e.expandFrame(ctx, n, false)
				if err != nil {
					cancel()
				}
				return out, err
			})
		}
	}

	// Every submitted unit is awaited so none outlives the result, unless the
	// caller itself gives up.
	var failure, canceled error
	for i, h := range handles {
		if h == nil {
			continue
		}
		out, err := h.Await(parent)
		switch {
		case err == nil:
			parts[i] = out
		case isCancellation(err):
			if canceled == nil {
				canceled = err
			}
		case failure == nil:
			failure = err
		}
	}

	if failure != nil {
		return "", failure
	}
	if err := parent.Err(); err != nil {
		return "", &CancelError{Err: err}
	}
	if canceled != nil {
		return "", asCancelError(canceled)
	}
	return strings.Join(parts, ""), nil
}

func isCancellation(err error) bool {
	var ce *CancelError
	return errors.As(err, &ce) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func asCancelError(err error) *CancelError {
	var ce *CancelError
	if errors.As(err, &ce) {
		return ce
	}
	return &CancelError{Err: err}
}
