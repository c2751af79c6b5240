// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// mashIn runs the command in a fresh working directory.
func mashIn(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestClear(t *testing.T) {
	chdir(t, t.TempDir())
	os.MkdirAll(filepath.Join(".mash", "sub"), 0o755)
	os.Mkdir(".mash-archive", 0o755)

	code, _, stderr := mashIn(t, "", "-c")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	for _, dir := range []string{".mash", ".mash-archive"} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", dir)
		}
	}

	// Clearing twice is fine
	if code, _, _ := mashIn(t, "", "-c"); code != exitOK {
		t.Errorf("expected exit 0 on second clear, got %d", code)
	}
}

func TestFileInput(t *testing.T) {
	requireShell(t)
	chdir(t, t.TempDir())
	writeFile(t, "test.mash", "[[[ echo a ||| b ]]]\n")

	code, stdout, stderr := mashIn(t, "", "-interp", "sh -s", "test.mash")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != "a\n b \n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestStdinInput(t *testing.T) {
	chdir(t, t.TempDir())
	code, stdout, stderr := mashIn(t, "hello [[[world]]]", "-log-level", "error")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != "hello world" {
		t.Errorf("expected 'hello world', got %q", stdout)
	}
}

// brokenWriter fails every write, like a closed pipe.
type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestStdoutWriteFailure(t *testing.T) {
	chdir(t, t.TempDir())
	var errOut bytes.Buffer
	code := run(context.Background(), []string{"-log-level", "error"}, strings.NewReader("hello"), brokenWriter{}, &errOut)
	if code != exitFail {
		t.Errorf("expected exit %d, got %d", exitFail, code)
	}
	if !strings.Contains(errOut.String(), "broken pipe") {
		t.Errorf("expected the write error on stderr, got %q", errOut.String())
	}
}

func TestStats(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "s.mash", "a\nb[[[c|||d]]]e\nf")

	code, stdout, _ := mashIn(t, "", "-stats", "s.mash")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout) != "frames=2 code=1 text=3" {
		t.Errorf("unexpected stats %q", stdout)
	}
}

func TestCheck(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "good.mash", "[[[ print('never run') ||| text ]]]")
	writeFile(t, "bad.mash", "1  \n 2 \n 3 [[[ a \n b \n c \n d")

	code, stdout, _ := mashIn(t, "", "-check", "good.mash")
	if code != exitOK || stdout != "good.mash: ok\n" {
		t.Errorf("expected ok, got %d %q", code, stdout)
	}

	code, _, stderr := mashIn(t, "", "-check", "bad.mash")
	if code != exitFail {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "bad.mash, line 3") {
		t.Errorf("expected 'bad.mash, line 3' in %q", stderr)
	}
}

func TestEvaluationFailure(t *testing.T) {
	requireShell(t)
	chdir(t, t.TempDir())
	writeFile(t, "f.mash", "one\ntwo\n[[[\necho 'line 5: boom' >&2\n\nexit 3\n|||]]]\n")

	code, stdout, stderr := mashIn(t, "", "-interp", "sh -s", "f.mash")
	if code != exitFail {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if stdout != "" {
		t.Errorf("expected no partial output, got %q", stdout)
	}
	if !strings.Contains(stderr, "f.mash, line 5: exit status 3") {
		t.Errorf("unexpected error %q", stderr)
	}
}

func TestOutputArchive(t *testing.T) {
	chdir(t, t.TempDir())
	timestamp = func() int64 { return 42 }
	t.Cleanup(func() { timestamp = defaultTimestamp })

	writeFile(t, "doc.mash", "new [[[content]]]")
	writeFile(t, "out.txt", "old content")

	code, stdout, stderr := mashIn(t, "", "-o", "out.txt", "doc.mash")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}
	got, _ := os.ReadFile("out.txt")
	if string(got) != "new content" {
		t.Errorf("expected 'new content', got %q", got)
	}
	old, err := os.ReadFile(filepath.Join(".mash-archive", "out.txt.42"))
	if err != nil {
		t.Fatalf("expected archived copy: %v", err)
	}
	if string(old) != "old content" {
		t.Errorf("expected 'old content' archived, got %q", old)
	}
}

func TestOutputNewFile(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "doc.mash", "fresh")

	if code, _, stderr := mashIn(t, "", "-o", "out.txt", "doc.mash"); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if _, err := os.Stat(".mash-archive"); !os.IsNotExist(err) {
		t.Error("expected no archive for a new output file")
	}
}

func TestConfigFile(t *testing.T) {
	requireShell(t)
	chdir(t, t.TempDir())
	writeFile(t, ".mash.yaml", "interpreter: sh -s\ncombine: replace\nworkers: 2\n")
	writeFile(t, "c.mash", "<[[[printf x|||body]]]>")

	code, stdout, stderr := mashIn(t, "", "c.mash")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != "<x>" {
		t.Errorf("expected '<x>', got %q", stdout)
	}

	// Flags override the file
	code, stdout, _ = mashIn(t, "", "-combine", "append", "c.mash")
	if code != exitOK || stdout != "<bodyx>" {
		t.Errorf("expected '<bodyx>', got %d %q", code, stdout)
	}
}

func TestCacheFlag(t *testing.T) {
	requireShell(t)
	chdir(t, t.TempDir())
	writeFile(t, "k.mash", "[[[printf cached|||]]]")

	for i := 0; i < 2; i++ {
		code, stdout, stderr := mashIn(t, "", "-cache", "-interp", "sh -s", "k.mash")
		if code != exitOK || stdout != "cached" {
			t.Fatalf("run %d: got %d %q %s", i, code, stdout, stderr)
		}
	}
	if _, err := os.Stat(filepath.Join(".mash", "mash.db")); err != nil {
		t.Errorf("expected cache database: %v", err)
	}
}

func TestCheckLeavesCacheAlone(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "c.mash", "[[[x|||y]]]")

	for _, flag := range []string{"-check", "-stats"} {
		if code, _, stderr := mashIn(t, "", "-cache", flag, "c.mash"); code != exitOK {
			t.Fatalf("%s: expected exit 0, got %d: %s", flag, code, stderr)
		}
	}
	if _, err := os.Stat(".mash"); !os.IsNotExist(err) {
		t.Errorf("expected no cache directory, got %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, ".bad.yaml", "combine: sideways\n")

	tests := []struct {
		name string
		args []string
	}{
		{"two files", []string{"a.mash", "b.mash"}},
		{"unknown flag", []string{"-frobnicate"}},
		{"bad combine", []string{"-combine", "sideways", "x.mash"}},
		{"bad config", []string{"-config", ".bad.yaml", "x.mash"}},
		{"negative workers", []string{"-workers", "-2", "x.mash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := mashIn(t, "", tt.args...); code != exitUsage {
				t.Errorf("expected exit %d, got %d", exitUsage, code)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	code, _, stderr := mashIn(t, "", "-check", "missing.mash")
	if code != exitFail {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "missing.mash") {
		t.Errorf("expected file name in %q", stderr)
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
