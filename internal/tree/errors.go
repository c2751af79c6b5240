// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package tree

import (
	"errors"
	"fmt"

	"nickandperla.net/mash/internal/token"
)

// Structural error kinds, matched with errors.Is.
var (
	ErrExtraSeparator = errors.New("extra separator")
	ErrUnclosed       = errors.New("missing closing delimiter")
	ErrExtraClose     = errors.New("extra closing delimiter")
	ErrStraySeparator = errors.New("separator outside of any frame")
)

// SyntaxError is a delimiter-balance or separator-count violation. Addr
// points at the offending marker, or for an unclosed frame at its opening
// delimiter.
type SyntaxError struct {
	Addr   token.Address
	Kind   error
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Addr, e.Kind)
	}
	return fmt.Sprintf("%s: %v %s", e.Addr, e.Kind, e.Detail)
}

// Unwrap returns the error kind so errors.Is matches the sentinels above.
func (e *SyntaxError) Unwrap() error {
	return e.Kind
}

func syntaxErrorf(at token.Address, kind error, format string, args ...any) *SyntaxError {
	return &SyntaxError{Addr: at, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
