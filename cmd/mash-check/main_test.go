// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckConformanceCorpus(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"--dir", filepath.Join("..", "..", "pkg", "mash", "testdata")}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s%s", code, out.String(), errOut.String())
	}
	if !strings.Contains(out.String(), "Failed:          0") {
		t.Errorf("unexpected summary:\n%s", out.String())
	}
}

func TestCheckFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mash")
	bad := filepath.Join(dir, "bad.mash")
	os.WriteFile(good, []byte("a\nb[[[c|||d]]]e\nf"), 0o644)
	os.WriteFile(bad, []byte("[[[ \n a \n ||| \n b \n ]]] \n c \n ]]]"), 0o644)

	var out, errOut bytes.Buffer
	code := run([]string{good, bad}, &out, &errOut)
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	s := out.String()
	if !strings.Contains(s, "OK   "+good+" (frames=2 code=1 text=3)") {
		t.Errorf("expected good file to pass with stats:\n%s", s)
	}
	if !strings.Contains(s, "FAIL "+bad) || !strings.Contains(s, bad+", line 7") {
		t.Errorf("expected bad file to fail at line 7:\n%s", s)
	}
	if !strings.Contains(s, "Passed:          1") || !strings.Contains(s, "Failed:          1") {
		t.Errorf("unexpected summary:\n%s", s)
	}
}

func TestCheckExpectedError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e.mash")
	os.WriteFile(path, []byte("# ERROR: e.mash, line 2\n]]]\n"), 0o644)

	var out, errOut bytes.Buffer
	if code := run([]string{path}, &out, &errOut); code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), "expected error, found one") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestCheckDirectiveHeaderKeepsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.mash")
	os.WriteFile(path, []byte("# EXPECTED: x\nok\n]]]\n"), 0o644)

	var out, errOut bytes.Buffer
	if code := run([]string{path}, &out, &errOut); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out.String(), path+", line 3") {
		t.Errorf("expected stray close at line 3:\n%s", out.String())
	}
}

func TestCheckFileBlanksDirectives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.mash")
	os.WriteFile(path, []byte("# COMBINE: append\n# ERROR: h.mash, line 4\n# EXPECTED: a\n[[[\n"), 0o644)

	result := checkFile(path)
	if !result.expectsError {
		t.Error("expected the ERROR directive to be seen")
	}
	if result.err == nil || !strings.Contains(result.err.Error(), path+", line 4") {
		t.Errorf("expected unclosed frame at line 4, got %v", result.err)
	}
}

func TestCheckUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if code := run([]string{"--dir"}, &out, &errOut); code != 1 {
		t.Errorf("expected exit 1 for --dir without argument, got %d", code)
	}
	if code := run([]string{"--dir", t.TempDir()}, &out, &errOut); code != 1 {
		t.Errorf("expected exit 1 for empty dir, got %d", code)
	}
}
