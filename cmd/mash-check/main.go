// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// mash-check: structure checker for .mash files.
//
// Validates delimiter structure only: matched open/close pairs, at most one
// separator per frame, no stray separators. Code is never run.
//
// Usage:
//
//	mash-check FILE [FILE...]
//	mash-check --dir DIR
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nickandperla.net/mash/internal/tree"
)

// checkResult holds the outcome of checking a single file.
type checkResult struct {
	path         string
	err          error
	stats        tree.Stats
	expectsError bool
}

// checkFile parses a .mash file. Leading test directives (# EXPECTED:,
// # ERROR:, # COMBINE:) are blanked first so reported lines still match the
// file; a file with # ERROR: is marked as expecting an error.
func checkFile(path string) checkResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return checkResult{path: path, err: fmt.Errorf("read error: %w", err)}
	}

	lines := strings.Split(string(content), "\n")
	expectsError := false
	for i, line := range lines {
		if strings.HasPrefix(line, "# ERROR:") {
			expectsError = true
		} else if !strings.HasPrefix(line, "# EXPECTED:") && !strings.HasPrefix(line, "# COMBINE:") {
			break
		}
		lines[i] = ""
	}

	root, err := tree.ParseString(strings.Join(lines, "\n"), path)
	result := checkResult{path: path, err: err, expectsError: expectsError}
	if err == nil {
		result.stats = root.Stats()
	}
	return result
}

// findMashFiles recursively finds all .mash files under dir.
func findMashFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".mash") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: mash-check [--dir DIR] FILE [FILE...]")
		return 1
	}

	var files []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--dir" {
			if i+1 >= len(args) {
				fmt.Fprintln(stderr, "Error: --dir requires an argument")
				return 1
			}
			i++
			found, err := findMashFiles(args[i])
			if err != nil {
				fmt.Fprintf(stderr, "Error scanning directory %s: %v\n", args[i], err)
				return 1
			}
			files = append(files, found...)
		} else {
			files = append(files, args[i])
		}
	}

	if len(files) == 0 {
		fmt.Fprintln(stderr, "No .mash files found")
		return 1
	}

	passed := 0
	failed := 0
	expectedErr := 0

	for _, f := range files {
		result := checkFile(f)

		switch {
		case result.expectsError:
			// Evaluation errors are invisible here, so a clean parse is OK too.
			expectedErr++
			if result.err != nil {
				fmt.Fprintf(stdout, "OK   %s (expected error, found one)\n", f)
			} else {
				fmt.Fprintf(stdout, "OK   %s (expected error, structure accepted)\n", f)
			}
		case result.err != nil:
			failed++
			fmt.Fprintf(stdout, "FAIL %s\n", f)
			fmt.Fprintf(stdout, "     %v\n", result.err)
		default:
			passed++
			fmt.Fprintf(stdout, "OK   %s (%s)\n", f, result.stats)
		}
	}

	fmt.Fprintf(stdout, "\n--- Summary ---\n")
	fmt.Fprintf(stdout, "Passed:          %d\n", passed)
	fmt.Fprintf(stdout, "Expected errors: %d\n", expectedErr)
	fmt.Fprintf(stdout, "Failed:          %d\n", failed)
	fmt.Fprintf(stdout, "Total:           %d\n", len(files))

	if failed > 0 {
		return 1
	}
	return 0
}
