// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package mash provides the public API for the mash document processor.
package mash

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"nickandperla.net/mash/internal/config"
	"nickandperla.net/mash/internal/eval"
	"nickandperla.net/mash/internal/pool"
	"nickandperla.net/mash/internal/store"
	"nickandperla.net/mash/internal/tree"
)

// Option configures a Runtime.
type Option func(*Runtime)

// Evaluator runs one code fragment.
type Evaluator = eval.Evaluator

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc = eval.EvaluatorFunc

// Failure is the error an Evaluator returns for a fragment that failed.
type Failure = eval.Failure

// Pool runs independent frames concurrently.
type Pool = pool.Pool

// Task is one unit of work submitted to a Pool.
type Task = pool.Task

// Handle awaits a submitted Task.
type Handle = pool.Handle

// Stats counts the frames and elements of a document.
type Stats = tree.Stats

// Store caches expansions.
type Store = store.Store

// VersionEntry is one archived output.
type VersionEntry = store.VersionEntry

// Combine controls how a frame's code output and its text are joined.
type Combine = eval.Combine

// Combine policies.
const (
	Prepend = eval.Prepend
	Append  = eval.Append
	Replace = eval.Replace
)

// ParseCombine parses a string into a Combine policy.
func ParseCombine(s string) (Combine, bool) {
	return eval.ParseCombine(s)
}

// WithEvaluator runs code fragments with ev.
func WithEvaluator(ev Evaluator) Option {
	return func(r *Runtime) {
		r.evaluator = ev
	}
}

// WithInterpreter runs each code fragment in a new process of command, a
// shell-quoted command line that reads the program from standard input.
func WithInterpreter(command string) Option {
	return func(r *Runtime) {
		r.interpreter = command
		r.wasmPath = ""
	}
}

// WithLinePattern sets the regular expression that finds the failing line in
// the interpreter's error output.
func WithLinePattern(pattern string) Option {
	return func(r *Runtime) {
		r.linePattern = pattern
	}
}

// WithKindPattern sets the regular expression that names the failure kind in
// the interpreter's error output. When nothing matches, the kind is the exit
// status.
func WithKindPattern(pattern string) Option {
	return func(r *Runtime) {
		r.kindPattern = pattern
	}
}

// WithWasm runs each code fragment in a sandboxed WASI interpreter module.
func WithWasm(path string, args ...string) Option {
	return func(r *Runtime) {
		r.wasmPath = path
		r.wasmArgs = args
		r.interpreter = ""
	}
}

// WithNoFragments rejects every code fragment. Text-only documents still
// expand.
func WithNoFragments() Option {
	return func(r *Runtime) {
		r.noFragments = true
	}
}

// WithPool expands sibling frames concurrently on p. The caller owns p.
func WithPool(p Pool) Option {
	return func(r *Runtime) {
		r.pool = p
	}
}

// WithWorkers expands sibling frames concurrently on n workers owned by the
// runtime. Zero means sequential.
func WithWorkers(n int) Option {
	return func(r *Runtime) {
		r.nWorkers = n
	}
}

// WithCombine sets the frame combine policy.
func WithCombine(c Combine) Option {
	return func(r *Runtime) {
		r.combine = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMemoryCache caches expansions in memory (for testing).
func WithMemoryCache() Option {
	return func(r *Runtime) {
		r.memoryCache = true
		r.sqlitePath = ""
	}
}

// WithSQLiteCache caches and archives expansions in a SQLite database. The
// database and its directory are created when the runtime opens it.
func WithSQLiteCache(path string) Option {
	return func(r *Runtime) {
		r.sqlitePath = path
		r.memoryCache = false
	}
}

// WithStore uses s for the cache and archive. The runtime closes it.
func WithStore(s Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithTimeout bounds each expansion. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = timeout
	}
}

// WithConfig applies project settings. Options after it override them.
func WithConfig(cfg config.Config) Option {
	return func(r *Runtime) {
		if err := cfg.Validate(); err != nil {
			r.err = fmt.Errorf("config: %w", err)
			return
		}
		if cfg.Interpreter != "" {
			WithInterpreter(cfg.Interpreter)(r)
		}
		if cfg.Wasm != "" {
			WithWasm(cfg.Wasm, cfg.WasmArgs...)(r)
		}
		if cfg.LinePattern != "" {
			r.linePattern = cfg.LinePattern
		}
		if cfg.KindPattern != "" {
			r.kindPattern = cfg.KindPattern
		}
		r.nWorkers = cfg.Workers
		r.combine, _ = cfg.CombinePolicy()
		r.timeout = time.Duration(cfg.Timeout)
		if cfg.Cache {
			dir := cfg.CacheDir
			if dir == "" {
				dir = config.DefaultCacheDir
			}
			WithSQLiteCache(filepath.Join(dir, CacheFile))(r)
		}
	}
}

// CacheFile is the database name inside the cache directory.
const CacheFile = "mash.db"
