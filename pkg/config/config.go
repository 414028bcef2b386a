// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads telemgen.yaml, the project file naming every target
// board, its schemas and where its generated files go.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/telemgen/pkg/schema"
)

// DefaultFile is the project file name searched for when --config is unset.
const DefaultFile = "telemgen.yaml"

// ErrNotFound is returned by Find when no project file exists.
var ErrNotFound = errors.New("config: " + DefaultFile + " not found")

// Config is a parsed project file. Every path is absolute once loaded.
type Config struct {
	Path     string  `yaml:"-"`
	Commands string  `yaml:"commands"`
	Boards   []Board `yaml:"boards"`
}

// Board describes one firmware target.
type Board struct {
	ID             int     `yaml:"id"`
	Name           string  `yaml:"name"`
	Data           string  `yaml:"data"`
	TestCase       string  `yaml:"test_case"`
	Outputs        Outputs `yaml:"outputs"`
	DecoderPackage string  `yaml:"decoder_package"`
}

// Outputs are the directories a board's generated files are written to.
type Outputs struct {
	Include string `yaml:"include"`
	Source  string `yaml:"source"`
	Decoder string `yaml:"decoder"`
}

// Dir returns the directory configured for an output kind name
// ("header", "source" or "decoder").
func (o Outputs) Dir(kind string) string {
	switch kind {
	case "header":
		return o.Include
	case "source":
		return o.Source
	case "decoder":
		return o.Decoder
	}
	return ""
}

// Load reads and validates a project file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a project file. Relative paths resolve against the
// directory of path. Unknown keys are rejected.
func Parse(data []byte, path string) (*Config, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config: file %s is empty", path)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Path = abs
	cfg.resolve(filepath.Dir(abs))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve(dir string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	c.Commands = join(c.Commands)
	for i := range c.Boards {
		b := &c.Boards[i]
		b.Data = join(b.Data)
		b.TestCase = join(b.TestCase)
		b.Outputs.Include = join(b.Outputs.Include)
		b.Outputs.Source = join(b.Outputs.Source)
		b.Outputs.Decoder = join(b.Outputs.Decoder)

		if b.Outputs.Source == "" {
			b.Outputs.Source = b.Outputs.Include
		}
		if b.Outputs.Decoder != "" && b.DecoderPackage == "" {
			b.DecoderPackage = packageName(filepath.Base(b.Outputs.Decoder))
		}
	}
}

// packageName lowercases a directory name and drops everything that cannot
// appear in a Go package name.
func packageName(dir string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(dir) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' && b.Len() > 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Config) validate() error {
	if len(c.Boards) == 0 {
		return fmt.Errorf("config: %s defines no boards", c.Path)
	}

	var errs []error
	ids := make(map[int]string)
	names := make(map[string]bool)
	for i, b := range c.Boards {
		where := fmt.Sprintf("config: board %d", i)
		if b.Name != "" {
			where = fmt.Sprintf("config: board %q", b.Name)
		}

		switch {
		case b.Name == "":
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		case names[b.Name]:
			errs = append(errs, fmt.Errorf("%s: name is used twice", where))
		}
		names[b.Name] = true

		if b.ID < 0 {
			errs = append(errs, fmt.Errorf("%s: id must not be negative", where))
		} else if other, dup := ids[b.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: id %d is already used by %q", where, b.ID, other))
		}
		ids[b.ID] = b.Name

		if b.Data == "" {
			errs = append(errs, fmt.Errorf("%s: data schema is required", where))
		}
		if b.Outputs.Include == "" {
			errs = append(errs, fmt.Errorf("%s: outputs.include is required", where))
		}
		if b.DecoderPackage != "" && b.Outputs.Decoder == "" {
			errs = append(errs, fmt.Errorf("%s: decoder_package needs outputs.decoder", where))
		}
		if b.Outputs.Decoder != "" && !schema.IsIdentifier(b.DecoderPackage) {
			errs = append(errs, fmt.Errorf("%s: decoder package %q is not a valid Go identifier", where, b.DecoderPackage))
		}
	}
	return errors.Join(errs...)
}

// Select returns the boards named by selectors, each a board name or id, in
// config order. No selectors selects every board.
func (c *Config) Select(selectors ...string) ([]Board, error) {
	if len(selectors) == 0 {
		return c.Boards, nil
	}

	want := make(map[int]bool, len(selectors))
	for _, s := range selectors {
		i, ok := c.index(s)
		if !ok {
			return nil, fmt.Errorf("config: unknown board %q", s)
		}
		want[i] = true
	}

	var out []Board
	for i, b := range c.Boards {
		if want[i] {
			out = append(out, b)
		}
	}
	return out, nil
}

// Board returns a single board by name or id.
func (c *Config) Board(selector string) (Board, error) {
	i, ok := c.index(selector)
	if !ok {
		return Board{}, fmt.Errorf("config: unknown board %q", selector)
	}
	return c.Boards[i], nil
}

func (c *Config) index(selector string) (int, bool) {
	for i, b := range c.Boards {
		if b.Name == selector {
			return i, true
		}
	}
	if id, err := strconv.Atoi(selector); err == nil {
		for i, b := range c.Boards {
			if b.ID == id {
				return i, true
			}
		}
	}
	return 0, false
}

// Inputs lists every schema file the config reads, for watching.
func (c *Config) Inputs() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(c.Path)
	add(c.Commands)
	for _, b := range c.Boards {
		add(b.Data)
		add(b.TestCase)
	}
	return out
}

// Find walks up from dir looking for DefaultFile.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	for {
		p := filepath.Join(dir, DefaultFile)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}
