// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package fragment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"nickandperla.net/mash/internal/eval"
	"nickandperla.net/mash/internal/token"
)

// ErrNoCommand is returned when an Exec evaluator has no command.
var ErrNoCommand = errors.New("no interpreter command")

// Exec runs each fragment in a fresh interpreter process. The fragment is
// written to the process's standard input; its standard output is the
// fragment's result. A non-zero exit is a failure whose message is the
// process's standard error.
type Exec struct {
	Command []string
	Dir     string
	Env     []string
	Timeout time.Duration
	lines   lineMatcher
	kinds   kindMatcher
}

// ExecOption configures the Exec evaluator.
type ExecOption func(*Exec) error

// WithExecDir sets the working directory of the interpreter.
func WithExecDir(dir string) ExecOption {
	return func(x *Exec) error { x.Dir = dir; return nil }
}

// WithExecEnv adds KEY=VALUE entries to the interpreter's environment.
func WithExecEnv(env ...string) ExecOption {
	return func(x *Exec) error { x.Env = append(x.Env, env...); return nil }
}

// WithExecTimeout bounds each fragment's run time. Zero means no bound.
func WithExecTimeout(timeout time.Duration) ExecOption {
	return func(x *Exec) error { x.Timeout = timeout; return nil }
}

// WithLinePattern sets the regular expression that finds the failing line in
// the interpreter's standard error.
func WithLinePattern(pattern string) ExecOption {
	return func(x *Exec) error {
		m, err := newLineMatcher(pattern)
		if err != nil {
			return fmt.Errorf("line pattern: %w", err)
		}
		x.lines = m
		return nil
	}
}

// WithKindPattern sets the regular expression that names the failure kind in
// the interpreter's standard error. Without one, or when nothing matches, the
// kind is the exit status.
func WithKindPattern(pattern string) ExecOption {
	return func(x *Exec) error {
		m, err := newKindMatcher(pattern)
		if err != nil {
			return fmt.Errorf("kind pattern: %w", err)
		}
		x.kinds = m
		return nil
	}
}

// NewExec creates an evaluator running command, e.g. ["python3", "-"].
func NewExec(command []string, opts ...ExecOption) (*Exec, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, ErrNoCommand
	}
	x := &Exec{Command: command}
	x.lines, _ = newLineMatcher(DefaultLinePattern)
	for _, opt := range opts {
		if err := opt(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// NewExecString creates an Exec evaluator from a shell-quoted command line
// such as `python3 -u -`.
func NewExecString(command string, opts ...ExecOption) (*Exec, error) {
	words, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	return NewExec(words, opts...)
}

// NewPython runs fragments with python3 reading the program from stdin.
func NewPython(opts ...ExecOption) (*Exec, error) {
	opts = append([]ExecOption{WithLinePattern(PythonLinePattern), WithKindPattern(PythonKindPattern)}, opts...)
	return NewExec([]string{"python3", "-"}, opts...)
}

// NewShell runs fragments with sh reading the script from stdin.
func NewShell(opts ...ExecOption) (*Exec, error) {
	opts = append([]ExecOption{WithLinePattern(ShellLinePattern)}, opts...)
	return NewExec([]string{"sh", "-s"}, opts...)
}

// ParseCommand splits a shell-quoted command line into words.
func ParseCommand(command string) ([]string, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(words) == 0 {
		return nil, ErrNoCommand
	}
	return words, nil
}

// Evaluate runs src in a new interpreter process.
func (x *Exec) Evaluate(ctx context.Context, src string, at token.Address) (string, error) {
	runCtx := ctx
	if x.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, x.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, x.Command[0], x.Command[1:]...)
	cmd.Dir = x.Dir
	cmd.Env = append(os.Environ(), "MASH_SOURCE="+at.Source, "MASH_LINE="+strconv.Itoa(at.Line))
	cmd.Env = append(cmd.Env, x.Env...)
	cmd.Stdin = strings.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%s: %w", x.Command[0], ctx.Err())
	}
	if runCtx.Err() != nil {
		return "", &eval.Failure{Kind: "timeout", Message: fmt.Sprintf("fragment ran longer than %s", x.Timeout)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := stderr.String()
		return "", &eval.Failure{
			Kind:    x.kinds.kind(diag, exitErr.ExitCode()),
			Message: strings.TrimSpace(diag),
			Line:    x.lines.find(diag),
		}
	}
	return "", fmt.Errorf("run %s: %w", x.Command[0], err)
}
