// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package preserve carries hand-written code across regeneration. Generated
// files fence user code between BEGIN/END USER SECTION markers; Extract reads
// those regions from the previous file so the renderer can put them back
// verbatim.
package preserve

import (
	"strings"
)

// Marker lines. A region may be named after the generated declaration it
// belongs to; the unnamed region is the trailing section of the file.
const (
	BeginMarker  = "// BEGIN USER SECTION"
	EndMarker    = "// END USER SECTION"
	LegacyMarker = "/// END AUTOGENERATED SECTION - USER CODE GOES BELOW THIS LINE"

	// Banner opens every generated C file.
	Banner = "// AUTOGENERATED FILE - EDIT ONLY INSIDE USER SECTIONS"
)

// Region is one block of preserved user text.
type Region struct {
	Name string
	Body string

	// Line is the 1-based line of the region's begin marker.
	Line int
}

// Regions is the set of user regions read from one file, in file order.
type Regions struct {
	order  []string
	byName map[string]Region
}

// Get returns a region's body.
func (r *Regions) Get(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	reg, ok := r.byName[name]
	return reg.Body, ok
}

// Names lists region names in file order.
func (r *Regions) Names() []string {
	if r == nil {
		return nil
	}
	return r.order
}

// Len is the number of regions.
func (r *Regions) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Orphans returns the regions with non-blank content that used does not
// name. Their text would be lost by regeneration.
func (r *Regions) Orphans(used map[string]bool) []Region {
	var out []Region
	for _, name := range r.Names() {
		reg := r.byName[name]
		if !used[name] && strings.TrimSpace(reg.Body) != "" {
			out = append(out, reg)
		}
	}
	return out
}

func (r *Regions) add(reg Region) error {
	if prev, dup := r.byName[reg.Name]; dup {
		return &DuplicateRegionError{Name: reg.Name, Line: reg.Line, First: prev.Line}
	}
	r.order = append(r.order, reg.Name)
	r.byName[reg.Name] = reg
	return nil
}

// BeginLine renders a region's opening marker.
func BeginLine(name string) string {
	if name == "" {
		return BeginMarker
	}
	return BeginMarker + ": " + name
}

// EndLine renders a region's closing marker.
func EndLine(name string) string {
	if name == "" {
		return EndMarker
	}
	return EndMarker + ": " + name
}

// Wrap fences body between a region's markers. A non-empty body is
// terminated with a newline.
func Wrap(name, body string) string {
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return BeginLine(name) + "\n" + body + EndLine(name) + "\n"
}

// parseMarker matches a trimmed line against marker and returns the region
// name that follows it.
func parseMarker(line, marker string) (string, bool) {
	rest, ok := strings.CutPrefix(line, marker)
	if !ok {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	name, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(name), true
}

// Extract reads every user region of a previously generated file. A begin
// marker without its matching end is a hard error, so a truncated file can
// never silently drop user code. Files predating named regions donate
// everything after the legacy marker as the unnamed region.
func Extract(content string) (*Regions, error) {
	regions := &Regions{byName: make(map[string]Region)}
	lines := strings.SplitAfter(content, "\n")

	var (
		open    *Region
		body    strings.Builder
		hasNew  bool
		legacy  = -1
		lineNum int
	)

	for i, raw := range lines {
		lineNum = i + 1
		line := strings.TrimSpace(raw)

		if name, ok := parseMarker(line, BeginMarker); ok {
			hasNew = true
			if open != nil {
				return nil, &UnterminatedRegionError{Name: open.Name, Line: open.Line}
			}
			open = &Region{Name: name, Line: lineNum}
			body.Reset()
			continue
		}
		if name, ok := parseMarker(line, EndMarker); ok {
			hasNew = true
			if open == nil {
				return nil, &UnterminatedRegionError{Name: name, Line: lineNum, Stray: true}
			}
			if name != open.Name {
				return nil, &UnterminatedRegionError{Name: open.Name, Line: open.Line}
			}
			open.Body = body.String()
			if err := regions.add(*open); err != nil {
				return nil, err
			}
			open = nil
			continue
		}

		if open != nil {
			body.WriteString(raw)
			continue
		}
		if legacy == -1 && isLegacyMarker(line) {
			legacy = i
		}
	}

	if open != nil {
		return nil, &UnterminatedRegionError{Name: open.Name, Line: open.Line}
	}

	if !hasNew && legacy >= 0 {
		trailing := strings.Join(lines[legacy+1:], "")
		if err := regions.add(Region{Name: "", Body: trailing, Line: legacy + 1}); err != nil {
			return nil, err
		}
	}

	return regions, nil
}

// IsGenerated reports whether content carries a generated-code banner or any
// region marker.
func IsGenerated(content string) bool {
	for _, raw := range strings.SplitN(content, "\n", 8) {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "// AUTOGENERATED FILE") || strings.HasPrefix(line, "// Code generated ") {
			return true
		}
	}
	return strings.Contains(content, BeginMarker) || strings.Contains(content, legacyText)
}

// legacyText is LegacyMarker without its comment slashes.
var legacyText = strings.TrimLeft(LegacyMarker, "/ ")

// isLegacyMarker accepts the legacy end tag written as a // or /// comment.
func isLegacyMarker(line string) bool {
	rest := strings.TrimLeft(line, "/")
	if len(line)-len(rest) < 2 {
		return false
	}
	return strings.TrimSpace(rest) == legacyText
}

// Load extracts the regions of an existing output. Empty content yields no
// regions. Content that was not generated is refused unless force is set,
// in which case it is overwritten.
func Load(path string, content []byte, force bool) (*Regions, error) {
	if len(content) == 0 {
		return &Regions{byName: make(map[string]Region)}, nil
	}
	text := string(content)
	if !IsGenerated(text) {
		if force {
			return &Regions{byName: make(map[string]Region)}, nil
		}
		return nil, &ForeignFileError{Path: path}
	}
	regions, err := Extract(text)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return regions, nil
}
