// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package mash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nickandperla.net/mash/internal/eval"
	"nickandperla.net/mash/internal/fragment"
	"nickandperla.net/mash/internal/pool"
	"nickandperla.net/mash/internal/store"
	"nickandperla.net/mash/internal/tree"
)

// ErrNoArchive is returned by History when the runtime has no cache store.
var ErrNoArchive = errors.New("no archive configured")

// poolDrainTimeout bounds how long Close waits for an owned pool.
const poolDrainTimeout = 5 * time.Second

// Runtime is the mash document processor.
type Runtime struct {
	engine    *eval.Engine
	evaluator eval.Evaluator
	evalID    string
	combine   eval.Combine
	pool      pool.Pool
	workers   *pool.Workers // owned; closed by Close
	wasm      *fragment.Wasm
	store     store.Store
	logger    *slog.Logger
	timeout   time.Duration

	// Settings resolved by New.
	interpreter string
	linePattern string
	kindPattern string
	wasmPath    string
	wasmArgs    []string
	noFragments bool
	nWorkers    int
	memoryCache bool
	sqlitePath  string
	err         error
}

// New creates a runtime with the given options. Without an evaluator option
// code fragments run with python3.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, r.err
	}

	if err := r.resolveEvaluator(); err != nil {
		return nil, err
	}
	if err := r.resolveStore(); err != nil {
		r.Close()
		return nil, err
	}
	if r.pool == nil && r.nWorkers > 0 {
		r.workers = pool.New(r.nWorkers)
		r.pool = r.workers
	}

	engineOpts := []eval.Option{eval.WithCombine(r.combine), eval.WithLogger(r.logger)}
	if r.pool != nil {
		engineOpts = append(engineOpts, eval.WithPool(r.pool))
	}
	r.engine = eval.New(r.evaluator, engineOpts...)
	return r, nil
}

func (r *Runtime) resolveEvaluator() error {
	switch {
	case r.evaluator != nil:
		if r.evalID == "" {
			r.evalID = fmt.Sprintf("%T", r.evaluator)
		}
	case r.noFragments:
		r.evaluator = fragment.Disabled{}
		r.evalID = "disabled"
	case r.wasmPath != "":
		var wopts []fragment.WasmOption
		if len(r.wasmArgs) > 0 {
			wopts = append(wopts, fragment.WithWasmArgs(r.wasmArgs...))
		}
		if r.linePattern != "" {
			wopts = append(wopts, fragment.WithWasmLinePattern(r.linePattern))
		}
		if r.kindPattern != "" {
			wopts = append(wopts, fragment.WithWasmKindPattern(r.kindPattern))
		}
		w, err := fragment.NewWasmFile(context.Background(), r.wasmPath, wopts...)
		if err != nil {
			return fmt.Errorf("wasm interpreter %s: %w", r.wasmPath, err)
		}
		r.wasm = w
		r.evaluator = w
		r.evalID = "wasm:" + r.wasmPath + " " + strings.Join(r.wasmArgs, " ")
	case r.interpreter != "":
		x, err := fragment.NewExecString(r.interpreter, r.execOptions()...)
		if err != nil {
			return err
		}
		r.evaluator = x
		r.evalID = "exec:" + strings.Join(x.Command, " ")
	default:
		x, err := fragment.NewPython(r.execOptions()...)
		if err != nil {
			return err
		}
		r.evaluator = x
		r.evalID = "exec:" + strings.Join(x.Command, " ")
	}
	return nil
}

func (r *Runtime) resolveStore() error {
	switch {
	case r.store != nil:
	case r.noFragments:
		// Nothing is evaluated, so there is nothing to cache
	case r.sqlitePath != "":
		if err := os.MkdirAll(filepath.Dir(r.sqlitePath), 0o755); err != nil {
			return fmt.Errorf("cache dir: %w", err)
		}
		s, err := store.NewSQLite(r.sqlitePath)
		if err != nil {
			return fmt.Errorf("cache %s: %w", r.sqlitePath, err)
		}
		r.store = s
	case r.memoryCache:
		r.store = store.NewMemory()
	}
	return nil
}

func (r *Runtime) execOptions() []fragment.ExecOption {
	var xopts []fragment.ExecOption
	if r.linePattern != "" {
		xopts = append(xopts, fragment.WithLinePattern(r.linePattern))
	}
	if r.kindPattern != "" {
		xopts = append(xopts, fragment.WithKindPattern(r.kindPattern))
	}
	return xopts
}

// Parse builds the frame tree of src without evaluating it.
func (r *Runtime) Parse(src, source string) (*tree.Frame, error) {
	return tree.ParseString(src, source)
}

// Validate checks the structure of src and returns its element counts.
func (r *Runtime) Validate(src, source string) (Stats, error) {
	root, err := tree.ParseString(src, source)
	if err != nil {
		return Stats{}, err
	}
	return root.Stats(), nil
}

// Expand parses and evaluates src. With a cache configured, a document whose
// key was seen before is returned without evaluation.
func (r *Runtime) Expand(ctx context.Context, src, source string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	key := r.cacheKey(src, source)
	if r.store != nil {
		e, ok, err := r.store.Get(key)
		if err != nil {
			r.logger.Warn("cache lookup failed", "source", source, "err", err)
		} else if ok {
			r.logger.Debug("cache hit", "source", source, "key", key[:12])
			return e.Output, nil
		}
		r.logger.Debug("cache miss", "source", source, "key", key[:12])
	}

	root, err := tree.ParseString(src, source)
	if err != nil {
		return "", err
	}
	out, err := r.engine.Expand(ctx, root)
	if err != nil {
		return "", err
	}

	if r.store != nil {
		if err := r.store.Put(store.Entry{Key: key, Source: source, Output: out}); err != nil {
			r.logger.Warn("cache write failed", "source", source, "err", err)
		} else {
			r.logger.Debug("archived expansion", "source", source, "bytes", len(out))
		}
	}
	return out, nil
}

// ExpandReader reads a whole document from reader and expands it.
func (r *Runtime) ExpandReader(ctx context.Context, reader io.Reader, source string) (string, error) {
	src, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return r.Expand(ctx, string(src), source)
}

// ExpandFile expands the document at path, named by its path.
func (r *Runtime) ExpandFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return r.ExpandReader(ctx, f, path)
}

// History returns archived outputs of source, newest first.
func (r *Runtime) History(source string, limit int) ([]VersionEntry, error) {
	hs, ok := r.store.(store.HistoryStore)
	if !ok {
		return nil, ErrNoArchive
	}
	return hs.History(source, limit)
}

// Close releases the worker pool, the cache and the wasm runtime.
func (r *Runtime) Close() error {
	var errs []error
	if r.workers != nil && !r.workers.Close(poolDrainTimeout) {
		errs = append(errs, errors.New("worker pool did not drain"))
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.wasm != nil {
		errs = append(errs, r.wasm.Close(context.Background()))
	}
	return errors.Join(errs...)
}

// cacheKey identifies an expansion by everything that determines its output.
func (r *Runtime) cacheKey(src, source string) string {
	h := sha256.New()
	for _, part := range []string{source, src, r.evalID, r.combine.String()} {
		fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
