// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emit

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/Thermoquad/telemgen/pkg/cgen"
	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/sim"
)

// Kind selects the output directory an artifact is written to.
type Kind int

const (
	KindHeader Kind = iota
	KindSource
	KindDecoder
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindSource:
		return "source"
	case KindDecoder:
		return "decoder"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Artifact is one generated file before rendering. Exactly one of C and Go
// is set.
type Artifact struct {
	Name string
	Kind Kind
	C    *cgen.File
	Go   *jen.File
}

// Sections lists the user sections the artifact renders.
func (a Artifact) Sections() []string {
	if a.C == nil {
		return nil
	}
	return a.C.Sections()
}

// Render produces the artifact's bytes, splicing in preserved regions.
// Go files carry no user sections and ignore regions.
func (a Artifact) Render(regions cgen.Regions) ([]byte, error) {
	if a.C != nil {
		return cgen.Render(a.C, regions), nil
	}
	var buf bytes.Buffer
	if err := a.Go.Render(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", a.Name, err)
	}
	return buf.Bytes(), nil
}

// Board is everything the emitters need for one target board.
type Board struct {
	Layout         *layout.PacketLayout
	Dispatch       *layout.DispatchTable
	CommandSource  string
	Sim            *sim.Table // nil when the board has no test case
	DecoderPackage string     // empty skips the Go decoder
}

// Artifacts runs every emitter for a board, in a fixed order.
func Artifacts(b Board) []Artifact {
	out := []Artifact{
		{Name: PackerHeaderName, Kind: KindHeader, C: PackerHeader(b.Layout)},
		{Name: PackerSourceName, Kind: KindSource, C: PackerSource(b.Layout)},
		{Name: GlobalsHeaderName, Kind: KindHeader, C: GlobalsHeader(b.Layout)},
		{Name: GlobalsSourceName, Kind: KindSource, C: GlobalsSource(b.Layout)},
	}
	if b.Dispatch != nil {
		out = append(out,
			Artifact{Name: DispatchHeaderName, Kind: KindHeader, C: DispatchHeader(b.Dispatch, b.CommandSource)},
			Artifact{Name: DispatchSourceName, Kind: KindSource, C: DispatchSource(b.Dispatch, b.CommandSource)},
			Artifact{Name: StubsSourceName, Kind: KindSource, C: CommandStubs(b.Dispatch, b.CommandSource)},
		)
	}
	if b.Sim != nil {
		out = append(out,
			Artifact{Name: SimHeaderName, Kind: KindHeader, C: SimHeader(b.Sim)},
			Artifact{Name: SimSourceName, Kind: KindSource, C: SimSource(b.Sim)},
		)
	}
	if b.DecoderPackage != "" {
		out = append(out, Artifact{Name: DecoderName, Kind: KindDecoder, Go: Decoder(b.Layout, b.DecoderPackage)})
	}
	return out
}
