// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package preserve

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for each preserver error kind.
var (
	ErrUnterminatedRegion = errors.New("preserve: unterminated user section")
	ErrDuplicateRegion    = errors.New("preserve: duplicate user section")
	ErrForeignFile        = errors.New("preserve: refusing to overwrite a file that was not generated")
	ErrOrphanedRegion     = errors.New("preserve: user section has no home in the regenerated file")
)

// UnterminatedRegionError reports a begin marker without its end, or an end
// marker without a begin (Stray).
type UnterminatedRegionError struct {
	Name  string
	Line  int
	Stray bool
}

func (e *UnterminatedRegionError) Error() string {
	if e.Stray {
		return fmt.Sprintf("line %d: %q has no matching %q", e.Line, EndLine(e.Name), BeginLine(e.Name))
	}
	return fmt.Sprintf("line %d: %q is never closed by %q", e.Line, BeginLine(e.Name), EndLine(e.Name))
}

func (e *UnterminatedRegionError) Is(target error) bool {
	return target == ErrUnterminatedRegion
}

// DuplicateRegionError reports two regions with the same name.
type DuplicateRegionError struct {
	Name  string
	Line  int
	First int
}

func (e *DuplicateRegionError) Error() string {
	return fmt.Sprintf("line %d: user section %q already appears on line %d", e.Line, e.Name, e.First)
}

func (e *DuplicateRegionError) Is(target error) bool {
	return target == ErrDuplicateRegion
}

// ForeignFileError reports an existing output with no generated banner and
// no markers.
type ForeignFileError struct {
	Path string
}

func (e *ForeignFileError) Error() string {
	return fmt.Sprintf("%s: file was not generated by telemgen (use --force to overwrite)", e.Path)
}

func (e *ForeignFileError) Is(target error) bool {
	return target == ErrForeignFile
}

// OrphanedRegionError reports user regions whose declaration disappeared
// from the schema.
type OrphanedRegionError struct {
	Path  string
	Names []string
}

func (e *OrphanedRegionError) Error() string {
	return fmt.Sprintf("%s: user sections %s would be discarded (use --drop-orphans to allow)",
		e.Path, strings.Join(e.Names, ", "))
}

func (e *OrphanedRegionError) Is(target error) bool {
	return target == ErrOrphanedRegion
}

// FileError attaches a path to an extraction error.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}
