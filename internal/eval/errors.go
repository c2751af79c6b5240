// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"errors"
	"fmt"

	"nickandperla.net/mash/internal/token"
)

var (
	// ErrCanceled matches every *CancelError.
	ErrCanceled = errors.New("expansion canceled")

	// ErrNoEvaluator is reported for code fragments when an Engine was built
	// without an Evaluator.
	ErrNoEvaluator = errors.New("no fragment evaluator configured")
)

// EvalError is a failure raised while running a fragment. Addr names the
// document line of the failing statement.
type EvalError struct {
	Addr    token.Address
	Kind    string
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s", e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Addr, e.Kind, e.Message)
}

// Unwrap returns the evaluator's original error.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// CancelError reports that an expansion stopped because its context ended.
// No partial output accompanies it.
type CancelError struct {
	Err error
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("%v: %v", ErrCanceled, e.Err)
}

// Unwrap returns the context error.
func (e *CancelError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCanceled.
func (e *CancelError) Is(target error) bool {
	return target == ErrCanceled
}
