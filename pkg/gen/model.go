// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gen

import (
	"github.com/Thermoquad/telemgen/pkg/config"
	"github.com/Thermoquad/telemgen/pkg/emit"
	"github.com/Thermoquad/telemgen/pkg/layout"
	"github.com/Thermoquad/telemgen/pkg/schema"
	"github.com/Thermoquad/telemgen/pkg/sim"
	"github.com/Thermoquad/telemgen/pkg/telem"
)

// Model is one board's validated schemas and everything derived from them.
type Model struct {
	Board    config.Board
	Fields   []schema.Field
	Layout   *layout.PacketLayout
	Commands []schema.Command
	Dispatch *layout.DispatchTable // nil without a command schema
	Sim      *sim.Table            // nil without a test case

	commandSource string
}

// LoadCommands reads and validates the shared command schema. A config
// without one yields no commands.
func LoadCommands(cfg *config.Config) ([]schema.Command, error) {
	if cfg.Commands == "" {
		return nil, nil
	}
	cmds, err := schema.LoadCommands(cfg.Commands)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateCommands(cmds, cfg.Commands); err != nil {
		return nil, err
	}
	return cmds, nil
}

// Compile runs the reader, validator and layout passes for one board.
// cmds is the shared command schema from LoadCommands.
func Compile(cfg *config.Config, b config.Board, cmds []schema.Command) (*Model, error) {
	fields, err := schema.LoadFields(b.Data)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateFields(fields, b.Data); err != nil {
		return nil, err
	}
	l, err := layout.Assign(fields, b.Data)
	if err != nil {
		return nil, err
	}

	m := &Model{Board: b, Fields: fields, Layout: l, Commands: cmds, commandSource: cfg.Commands}
	if cfg.Commands != "" {
		m.Dispatch = layout.BuildDispatchTable(cmds, b.ID)
	}

	if b.TestCase != "" {
		tc, err := schema.LoadTestCase(b.TestCase)
		if err != nil {
			return nil, err
		}
		table := m.Dispatch
		if table == nil {
			table = layout.BuildDispatchTable(nil, b.ID)
		}
		if m.Sim, err = sim.Build(tc, l, table); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Codec returns a runtime codec over the board's packet layout.
func (m *Model) Codec() *telem.Codec {
	return telem.NewCodec(m.Layout)
}

// Artifacts runs every emitter for the board.
func (m *Model) Artifacts() []emit.Artifact {
	pkg := ""
	if m.Board.Outputs.Decoder != "" {
		pkg = m.Board.DecoderPackage
	}
	return emit.Artifacts(emit.Board{
		Layout:         m.Layout,
		Dispatch:       m.Dispatch,
		CommandSource:  m.commandSource,
		Sim:            m.Sim,
		DecoderPackage: pkg,
	})
}
