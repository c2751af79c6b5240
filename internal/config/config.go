// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config loads the per-project mash settings file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nickandperla.net/mash/internal/eval"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = ".mash.yaml"

// Defaults for directories relative to the working directory.
const (
	DefaultCacheDir   = ".mash"
	DefaultArchiveDir = ".mash-archive"
)

// Config holds project settings. Zero fields take the defaults.
type Config struct {
	Interpreter string   `yaml:"interpreter"`
	LinePattern string   `yaml:"line_pattern"`
	KindPattern string   `yaml:"kind_pattern"`
	Wasm        string   `yaml:"wasm"`
	WasmArgs    []string `yaml:"wasm_args"`
	Workers     int      `yaml:"workers"`
	Combine     string   `yaml:"combine"`
	Cache       bool     `yaml:"cache"`
	CacheDir    string   `yaml:"cache_dir"`
	ArchiveDir  string   `yaml:"archive_dir"`
	LogLevel    string   `yaml:"log_level"`
	Timeout     Duration `yaml:"timeout"`
}

// Duration is a time.Duration written as "30s" or "1m30s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		Combine:    eval.Prepend.String(),
		CacheDir:   DefaultCacheDir,
		ArchiveDir: DefaultArchiveDir,
		LogLevel:   "warn",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML settings over the defaults and validates them.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", time.Duration(c.Timeout))
	}
	if c.Interpreter != "" && c.Wasm != "" {
		return errors.New("interpreter and wasm are mutually exclusive")
	}
	if _, err := c.CombinePolicy(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// CombinePolicy parses Combine.
func (c Config) CombinePolicy() (eval.Combine, error) {
	mode, ok := eval.ParseCombine(c.Combine)
	if !ok {
		return mode, fmt.Errorf("unknown combine policy: %q", c.Combine)
	}
	return mode, nil
}

// Level parses LogLevel. Empty means warn.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	s := strings.TrimSpace(c.LogLevel)
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
