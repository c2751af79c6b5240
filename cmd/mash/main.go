// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Command mash expands the code frames of a document.
//
// Usage:
//
//	mash [flags] [FILE]
//
// With no FILE the document is read from standard input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"nickandperla.net/mash/internal/config"
	"nickandperla.net/mash/pkg/mash"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// errUsage marks command-line mistakes.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the parsed command line.
type options struct {
	clear    bool
	output   string
	config   string
	check    bool
	stats    bool
	file     string
	settings config.Config
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "mash: %v\n", err)
		return exitUsage
	}
	cfg := opts.settings

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if opts.clear {
		if err := clearDirs(cfg.CacheDir, cfg.ArchiveDir); err != nil {
			fmt.Fprintf(stderr, "mash: %v\n", err)
			return exitFail
		}
		logger.Info("cleared", "cache", cfg.CacheDir, "archive", cfg.ArchiveDir)
		return exitOK
	}

	source, src, err := readDocument(opts.file, stdin)
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "mash: no input: give a FILE or pipe a document on stdin\n")
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "mash: %v\n", err)
		return exitFail
	}

	rtOpts := []mash.Option{mash.WithConfig(cfg), mash.WithLogger(logger)}
	if opts.check || opts.stats {
		rtOpts = append(rtOpts, mash.WithNoFragments())
	}
	rt, err := mash.New(rtOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "mash: %v\n", err)
		return exitFail
	}
	defer rt.Close()

	if opts.check || opts.stats {
		stats, err := rt.Validate(src, source)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitFail
		}
		if opts.stats {
			fmt.Fprintln(stdout, stats)
		} else {
			fmt.Fprintf(stdout, "%s: ok\n", source)
		}
		return exitOK
	}

	out, err := rt.Expand(ctx, src, source)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}

	if opts.output == "" {
		if _, err := io.WriteString(stdout, out); err != nil {
			fmt.Fprintf(stderr, "mash: write output: %v\n", err)
			return exitFail
		}
		return exitOK
	}
	archived, err := writeOutput(opts.output, out, cfg.ArchiveDir)
	if err != nil {
		fmt.Fprintf(stderr, "mash: %v\n", err)
		return exitFail
	}
	if archived != "" {
		logger.Info("archived previous output", "path", archived)
	}
	return exitOK
}

// parseArgs reads the config file and lets explicitly set flags override it.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("mash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: mash [flags] [FILE]\n\n")
		fs.PrintDefaults()
	}

	var (
		opts     options
		interp   = fs.String("interp", "", "Interpreter command reading fragments on stdin, e.g. \"python3 -\"")
		wasm     = fs.String("wasm", "", "WASI interpreter module running fragments in a sandbox")
		workers  = fs.Int("workers", 0, "Expand sibling frames on N workers (0 = sequential)")
		combine  = fs.String("combine", "", "Frame combine policy: prepend, append or replace")
		cache    = fs.Bool("cache", false, "Cache expansions and archive outputs")
		logLevel = fs.String("log-level", "", "Log level: debug, info, warn or error")
		timeout  = fs.Duration("timeout", 0, "Bound the whole expansion (0 = none)")
	)
	fs.BoolVar(&opts.clear, "c", false, "Remove the cache and archive directories and exit")
	fs.StringVar(&opts.output, "o", "", "Write output to PATH, archiving the previous content")
	fs.StringVar(&opts.config, "config", config.DefaultFile, "Project settings file")
	fs.BoolVar(&opts.check, "check", false, "Check structure only; code is not run")
	fs.BoolVar(&opts.stats, "stats", false, "Print frame and element counts")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		opts.file = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected at most one FILE, got %d", fs.NArg())
	}

	cfg, err := config.Load(opts.config)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interp":
			cfg.Interpreter, cfg.Wasm = *interp, ""
		case "wasm":
			cfg.Wasm, cfg.Interpreter = *wasm, ""
		case "workers":
			cfg.Workers = *workers
		case "combine":
			cfg.Combine = *combine
		case "cache":
			cfg.Cache = *cache
		case "log-level":
			cfg.LogLevel = *logLevel
		case "timeout":
			cfg.Timeout = config.Duration(*timeout)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.settings = cfg
	return &opts, nil
}

func defaultTimestamp() int64 { return time.Now().UnixNano() }

// timestamp names archived files.
var timestamp = defaultTimestamp
