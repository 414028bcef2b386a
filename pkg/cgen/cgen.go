// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cgen is a small structured form of C source files. Emitters build
// a File out of declarations and statements; Render turns it into text,
// injecting preserved user regions where the File asks for them.
package cgen

// File is one generated C header or source file.
type File struct {
	// Name is the file name, e.g. "globals.h".
	Name string

	// Banner lines are written first, each as a // comment.
	Banner []string

	// Guard is the include guard macro. Headers set it, sources leave it
	// empty.
	Guard string

	Includes []Include
	Items    []Item

	// Trailing appends the unnamed user section at the end of the file.
	Trailing bool
}

// Include is one #include line.
type Include struct {
	Path   string
	System bool
}

// Item is a top-level construct or a statement.
type Item interface {
	item()
}

// Blank is an empty line.
type Blank struct{}

// Comment is one or more // comment lines.
type Comment struct {
	Lines []string
}

// Define is a #define. Value may be empty.
type Define struct {
	Name  string
	Value string
}

// Typedef is a typedef written verbatim after the keyword, e.g.
// "void (*Cmd_Pointer)(uint8_t* x, uint8_t* y)".
type Typedef struct {
	Decl string
}

// Var declares or defines a variable. Dims are array dimensions, outermost
// first. Extern declarations carry no initializer.
type Var struct {
	Extern bool
	Static bool
	Const  bool
	Type   string
	Name   string
	Dims   []string
	Init   Init
}

// Init is a variable initializer.
type Init interface {
	initializer()
}

// Expr initializes with a single expression, e.g. "0" or "{0}".
type Expr string

// List initializes an array with one element per line.
type List struct {
	Elems []string
}

// Nested initializes a two-dimensional array with one row per line.
type Nested struct {
	Rows [][]string
}

// Param is a function parameter.
type Param struct {
	Type string
	Name string
}

// Proto is a function prototype.
type Proto struct {
	Extern bool
	Return string
	Name   string
	Params []Param
}

// Func is a function definition.
type Func struct {
	Static bool
	Return string
	Name   string
	Params []Param
	Body   []Item
}

// Stmt is one statement line inside a function body, written as is.
type Stmt string

// UserSection marks where a preserved user region goes. Default is used
// when the region does not exist yet.
type UserSection struct {
	Name    string
	Default string
}

// Raw is text written verbatim.
type Raw string

func (Blank) item()       {}
func (Comment) item()     {}
func (Define) item()      {}
func (Typedef) item()     {}
func (Var) item()         {}
func (Proto) item()       {}
func (Func) item()        {}
func (Stmt) item()        {}
func (UserSection) item() {}
func (Raw) item()         {}

func (Expr) initializer()   {}
func (List) initializer()   {}
func (Nested) initializer() {}

// Sections lists the names of every user section the file renders, in
// order. The unnamed trailing section is included when Trailing is set.
func (f *File) Sections() []string {
	var names []string
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, it := range items {
			switch v := it.(type) {
			case UserSection:
				names = append(names, v.Name)
			case Func:
				walk(v.Body)
			}
		}
	}
	walk(f.Items)
	if f.Trailing {
		names = append(names, "")
	}
	return names
}
