// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package fragment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"nickandperla.net/mash/internal/eval"
	"nickandperla.net/mash/internal/token"
)

// Errors for the WASM evaluator.
var (
	// ErrModuleCompilation is returned when the interpreter module does not compile.
	ErrModuleCompilation = errors.New("wasm module compilation failed")

	// ErrModuleExecution is returned when the interpreter module cannot run.
	ErrModuleExecution = errors.New("wasm module execution failed")
)

// Wasm runs each fragment in a fresh instance of a WASI interpreter module,
// e.g. a Python or Lua interpreter compiled to WebAssembly. The fragment is
// the instance's standard input and its standard output is the result. The
// instance sees no filesystem, network or host environment beyond what is
// configured here.
//
// Safe for concurrent use: every call instantiates its own module.
type Wasm struct {
	runtime  wazero.Runtime
	module   wazero.CompiledModule
	args     []string
	maxPages uint32
	lines    lineMatcher
	kinds    kindMatcher
}

// WasmOption configures the Wasm evaluator.
type WasmOption func(*Wasm) error

// WithWasmArgs sets the interpreter's argv. The first entry is the program
// name, as in a WASI command line.
func WithWasmArgs(args ...string) WasmOption {
	return func(w *Wasm) error { w.args = args; return nil }
}

// WithWasmMemoryPages limits instance memory to pages of 64KiB.
func WithWasmMemoryPages(pages uint32) WasmOption {
	return func(w *Wasm) error { w.maxPages = pages; return nil }
}

// WithWasmLinePattern sets the regular expression that finds the failing
// line in the interpreter's standard error.
func WithWasmLinePattern(pattern string) WasmOption {
	return func(w *Wasm) error {
		m, err := newLineMatcher(pattern)
		if err != nil {
			return fmt.Errorf("line pattern: %w", err)
		}
		w.lines = m
		return nil
	}
}

// WithWasmKindPattern sets the regular expression that names the failure
// kind in the interpreter's standard error.
func WithWasmKindPattern(pattern string) WasmOption {
	return func(w *Wasm) error {
		m, err := newKindMatcher(pattern)
		if err != nil {
			return fmt.Errorf("kind pattern: %w", err)
		}
		w.kinds = m
		return nil
	}
}

// NewWasm compiles binary once; Close releases it.
func NewWasm(ctx context.Context, binary []byte, opts ...WasmOption) (*Wasm, error) {
	w := &Wasm{args: []string{"interpreter"}}
	w.lines, _ = newLineMatcher(DefaultLinePattern)
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if w.maxPages > 0 {
		cfg = cfg.WithMemoryLimitPages(w.maxPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: wasi: %v", ErrModuleExecution, err)
	}
	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrModuleCompilation, err)
	}

	w.runtime = r
	w.module = compiled
	return w, nil
}

// NewWasmFile compiles the interpreter module at path.
func NewWasmFile(ctx context.Context, path string, opts ...WasmOption) (*Wasm, error) {
	binary, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewWasm(ctx, binary, opts...)
}

// Evaluate runs src in a new module instance.
func (w *Wasm) Evaluate(ctx context.Context, src string, at token.Address) (string, error) {
	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(w.args...).
		WithEnv("MASH_SOURCE", at.Source).
		WithEnv("MASH_LINE", strconv.Itoa(at.Line)).
		WithStdin(strings.NewReader(src)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := w.runtime.InstantiateModule(ctx, w.module, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err == nil {
		return stdout.String(), nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("wasm: %w", ctx.Err())
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return stdout.String(), nil
		}
		diag := stderr.String()
		return "", &eval.Failure{
			Kind:    w.kinds.kind(diag, int(exitErr.ExitCode())),
			Message: strings.TrimSpace(diag),
			Line:    w.lines.find(diag),
		}
	}
	return "", fmt.Errorf("%w: %v", ErrModuleExecution, err)
}

// Close releases the runtime and the compiled module.
func (w *Wasm) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}
