// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"nickandperla.net/mash/internal/token"
)

// Unindent removes the leading whitespace shared by every non-blank line of
// code. Blank lines are left as they are. If no indentation is shared, code is
// returned unchanged.
func Unindent(code string) string {
	lines := strings.Split(code, "\n")

	prefix, found := "", false
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if !found {
			prefix, found = indent, true
		} else {
			prefix = commonPrefix(prefix, indent)
		}
		if prefix == "" {
			return code
		}
	}
	if prefix == "" {
		return code
	}

	for i, line := range lines {
		if !isBlank(line) {
			lines[i] = line[len(prefix):]
		}
	}
	return strings.Join(lines, "\n")
}

// Pad prepends enough blank lines that the first line of code sits on the
// line of at.
func Pad(code string, at token.Address) string {
	if at.Line <= 1 {
		return code
	}
	return strings.Repeat("\n", at.Line-1) + code
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
