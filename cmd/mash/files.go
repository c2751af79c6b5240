// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// stdinSource names documents read from standard input.
const stdinSource = "<stdin>"

// readDocument returns the source name and text of path, or of stdin when
// path is empty. A terminal on stdin is a usage error.
func readDocument(path string, stdin io.Reader) (string, string, error) {
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return "", "", err
		}
		return path, string(src), nil
	}
	if isTerminal(stdin) {
		return "", "", errUsage
	}
	src, err := io.ReadAll(stdin)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	return stdinSource, string(src), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// clearDirs removes each directory and everything in it. Missing ones are
// skipped.
func clearDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" || dir == "." || dir == "/" {
			return fmt.Errorf("refusing to clear %q", dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// writeOutput writes out to path. Existing content is first copied into
// archiveDir as <base>.<nanos>; the copy's path is returned.
func writeOutput(path, out, archiveDir string) (string, error) {
	var archived string
	prev, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return "", err
	default:
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return "", fmt.Errorf("archive dir: %w", err)
		}
		archived = filepath.Join(archiveDir, fmt.Sprintf("%s.%d", filepath.Base(path), timestamp()))
		if err := os.WriteFile(archived, prev, 0o644); err != nil {
			return "", fmt.Errorf("archive: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	return archived, os.Rename(tmp.Name(), path)
}
