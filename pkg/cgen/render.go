// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Thermoquad/telemgen/pkg/preserve"
)

// Regions supplies preserved user region bodies by name.
type Regions interface {
	Get(name string) (string, bool)
}

type renderer struct {
	buf     bytes.Buffer
	regions Regions
	indent  int
}

// Render writes f as C source. regions may be nil.
func Render(f *File, regions Regions) []byte {
	r := &renderer{regions: regions}

	for _, line := range f.Banner {
		r.line("// " + line)
	}
	if len(f.Banner) > 0 {
		r.line("")
	}

	if f.Guard != "" {
		r.line("#ifndef " + f.Guard)
		r.line("#define " + f.Guard)
		r.line("")
	}

	for _, inc := range f.Includes {
		if inc.System {
			r.line("#include <" + inc.Path + ">")
		} else {
			r.line(`#include "` + inc.Path + `"`)
		}
	}
	if len(f.Includes) > 0 {
		r.line("")
	}

	for _, it := range f.Items {
		r.item(it)
	}

	if f.Guard != "" {
		r.line("")
		r.line("#endif /* " + f.Guard + " */")
	}

	if f.Trailing {
		r.line("")
		r.section(UserSection{})
	}

	return r.buf.Bytes()
}

func (r *renderer) line(s string) {
	if s != "" {
		r.buf.WriteString(strings.Repeat("\t", r.indent))
	}
	r.buf.WriteString(s)
	r.buf.WriteByte('\n')
}

func (r *renderer) item(it Item) {
	switch v := it.(type) {
	case Blank:
		r.line("")
	case Comment:
		for _, l := range v.Lines {
			r.line(strings.TrimRight("// "+l, " "))
		}
	case Define:
		if v.Value == "" {
			r.line("#define " + v.Name)
		} else {
			r.line("#define " + v.Name + " " + v.Value)
		}
	case Typedef:
		r.line("typedef " + v.Decl + ";")
	case Var:
		r.variable(v)
	case Proto:
		prefix := ""
		if v.Extern {
			prefix = "extern "
		}
		r.line(prefix + signature(v.Return, v.Name, v.Params) + ";")
	case Func:
		prefix := ""
		if v.Static {
			prefix = "static "
		}
		r.line(prefix + signature(v.Return, v.Name, v.Params) + " {")
		r.indent++
		for _, s := range v.Body {
			r.item(s)
		}
		r.indent--
		r.line("}")
	case Stmt:
		r.line(string(v))
	case UserSection:
		r.section(v)
	case Raw:
		r.buf.WriteString(string(v))
	default:
		panic(fmt.Sprintf("cgen: unknown item %T", it))
	}
}

// section writes a user region. Markers always start in column zero so
// Extract finds them regardless of the surrounding indentation, and the
// body is written verbatim.
func (r *renderer) section(s UserSection) {
	body := s.Default
	if r.regions != nil {
		if kept, ok := r.regions.Get(s.Name); ok {
			body = kept
		}
	}
	r.buf.WriteString(preserve.Wrap(s.Name, body))
}

func (r *renderer) variable(v Var) {
	var decl strings.Builder
	if v.Extern {
		decl.WriteString("extern ")
	}
	if v.Static {
		decl.WriteString("static ")
	}
	if v.Const {
		decl.WriteString("const ")
	}
	decl.WriteString(v.Type)
	decl.WriteString(" ")
	decl.WriteString(v.Name)
	for _, d := range v.Dims {
		decl.WriteString("[" + d + "]")
	}

	switch in := v.Init.(type) {
	case nil:
		r.line(decl.String() + ";")
	case Expr:
		r.line(decl.String() + " = " + string(in) + ";")
	case List:
		r.line(decl.String() + " = {")
		r.indent++
		for i, e := range in.Elems {
			r.line(e + comma(i, len(in.Elems)))
		}
		r.indent--
		r.line("};")
	case Nested:
		r.line(decl.String() + " = {")
		r.indent++
		for i, row := range in.Rows {
			r.line("{" + strings.Join(row, ", ") + "}" + comma(i, len(in.Rows)))
		}
		r.indent--
		r.line("};")
	}
}

func comma(i, n int) string {
	if i < n-1 {
		return ","
	}
	return ""
}

func signature(ret, name string, params []Param) string {
	if len(params) == 0 {
		return ret + " " + name + "(void)"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Type + " " + p.Name
	}
	return ret + " " + name + "(" + strings.Join(parts, ", ") + ")"
}
