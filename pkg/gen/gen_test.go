// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Thermoquad/telemgen/pkg/config"
	"github.com/Thermoquad/telemgen/pkg/emit"
	"github.com/Thermoquad/telemgen/pkg/preserve"
	"github.com/Thermoquad/telemgen/pkg/schema"
)

const projectYAML = `commands: commands.csv
boards:
  - id: 2
    name: heater
    data: heater.csv
    test_case: heater_case.csv
    outputs:
      include: out/heater/include
      source: out/heater/src
      decoder: out/ground/heater
  - id: 3
    name: pump
    data: pump.csv
    outputs:
      include: out/pump
`

const heaterCSV = "name,firmware_variable,min_val,max_val,unit,firmware_type,transmit_scale,should_generate,display_name_override,display_type\n" +
	"Battery,e_batt,0,30,V,int16_t,1000,y,,float\n" +
	"Valve 0,ivlv[0],0,1,,uint8_t,1,y,,bool\n" +
	"Valve 1,ivlv[1],0,1,,uint8_t,1,y,,bool\n" +
	"Debug,dbg,,,,uint8_t,1,n,,\n"

const pumpCSV = "name,firmware_variable,min_val,max_val,unit,firmware_type,transmit_scale,should_generate,display_name_override,display_type\n" +
	"Speed,rpm,0,6000,rpm,uint16_t,1,y,,int\n"

const commandsCSV = "function_name,num_args,supported_target_ids,arg_name,arg_type,transmit_scale,arg_name,arg_type,transmit_scale\n" +
	"set_vlv,2,\"2,3\",vlv_num,uint8_t,1,state,uint8_t,1\n" +
	"set_rpm,1,3,rpm,uint16_t,1,,,\n"

const heaterCase = "type,duration,function_name,arg0,arg1,e_batt\n" +
	"d,100,,,,12\n" +
	"c,10,set_vlv,1,1,\n"

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	all := map[string]string{
		config.DefaultFile: projectYAML,
		"heater.csv":       heaterCSV,
		"pump.csv":         pumpCSV,
		"commands.csv":     commandsCSV,
		"heater_case.csv":  heaterCase,
	}
	for name, content := range files {
		all[name] = content
	}
	for name, content := range all {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func loadProject(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(dir, config.DefaultFile))
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	return cfg
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func statuses(results []Result, root string) map[string]string {
	m := make(map[string]string, len(results))
	for _, r := range results {
		rel, _ := filepath.Rel(root, r.Path)
		m[filepath.ToSlash(rel)] = r.Status.String()
	}
	return m
}

// ============================================================
// Generate Tests
// ============================================================

func TestGenerate_WritesEveryBoard(t *testing.T) {
	dir := writeProject(t, nil)
	g := New(loadProject(t, dir), Options{}, nil)

	results, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := map[string]string{
		"out/heater/include/pack_telem_defines.h": "created",
		"out/heater/src/pack_telem_defines.c":     "created",
		"out/heater/include/globals.h":            "created",
		"out/heater/src/globals.c":                "created",
		"out/heater/include/pack_cmd_defines.h":   "created",
		"out/heater/src/pack_cmd_defines.c":       "created",
		"out/heater/src/telem.c":                  "created",
		"out/heater/include/firmware_test.h":      "created",
		"out/heater/src/firmware_test.c":          "created",
		"out/ground/heater/telem_decoder.go":      "created",
		"out/pump/pack_telem_defines.h":           "created",
		"out/pump/pack_telem_defines.c":           "created",
		"out/pump/globals.h":                      "created",
		"out/pump/globals.c":                      "created",
		"out/pump/pack_cmd_defines.h":             "created",
		"out/pump/pack_cmd_defines.c":             "created",
		"out/pump/telem.c":                        "created",
	}
	if diff := cmp.Diff(want, statuses(results, dir)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	globals := readFile(t, filepath.Join(dir, "out/heater/include/globals.h"))
	if !strings.Contains(globals, "extern uint8_t ivlv[2];") || strings.Contains(globals, "dbg") {
		t.Errorf("Unexpected globals.h:\n%s", globals)
	}

	// set_rpm is only built for the pump.
	if stubs := readFile(t, filepath.Join(dir, "out/heater/src/telem.c")); strings.Contains(stubs, "set_rpm") {
		t.Errorf("heater stubs contain a pump-only command:\n%s", stubs)
	}
	if stubs := readFile(t, filepath.Join(dir, "out/pump/telem.c")); !strings.Contains(stubs, "void set_rpm(uint8_t* data, uint8_t* status) {") {
		t.Errorf("pump stubs missing set_rpm:\n%s", stubs)
	}

	decoder := readFile(t, filepath.Join(dir, "out/ground/heater/telem_decoder.go"))
	if !strings.Contains(decoder, "package heater") {
		t.Errorf("Unexpected decoder package:\n%s", decoder)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	dir := writeProject(t, nil)
	g := New(loadProject(t, dir), Options{}, nil)

	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	before := readFile(t, filepath.Join(dir, "out/heater/src/telem.c"))

	results, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	for _, r := range results {
		if r.Status != StatusUnchanged {
			t.Errorf("%s: expected unchanged, got %s", r.Path, r.Status)
		}
	}
	if after := readFile(t, filepath.Join(dir, "out/heater/src/telem.c")); after != before {
		t.Error("regeneration changed telem.c")
	}
}

func TestGenerate_PreservesUserCode(t *testing.T) {
	dir := writeProject(t, nil)
	g := New(loadProject(t, dir), Options{}, nil)
	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	stubs := filepath.Join(dir, "out/heater/src/telem.c")
	edited := strings.Replace(readFile(t, stubs),
		preserve.EndLine("set_vlv")+"\n",
		"\tvalve_set(vlv_num, state);\n"+preserve.EndLine("set_vlv")+"\n", 1)
	edited = strings.TrimSuffix(edited, preserve.EndLine("")+"\n") +
		"static int calls;\n" + preserve.EndLine("") + "\n"
	if err := os.WriteFile(stubs, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	// A new heater command reshapes the stubs file around both regions.
	if err := os.WriteFile(filepath.Join(dir, "commands.csv"), []byte(commandsCSV+"arm,0,2,,,,,,\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	got := readFile(t, stubs)
	for _, want := range []string{
		"\tvalve_set(vlv_num, state);\n// END USER SECTION: set_vlv\n",
		"// BEGIN USER SECTION\nstatic int calls;\n// END USER SECTION\n",
		"void arm(uint8_t* data, uint8_t* status) {",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("regenerated telem.c is missing %q:\n%s", want, got)
		}
	}
}

func TestGenerate_AllOrNothing(t *testing.T) {
	dir := writeProject(t, nil)
	g := New(loadProject(t, dir), Options{}, nil)
	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	pumpGlobals := filepath.Join(dir, "out/pump/globals.h")
	before := readFile(t, pumpGlobals)

	// A valid pump change plus a heater range error must write nothing.
	if err := os.WriteFile(filepath.Join(dir, "pump.csv"), []byte(pumpCSV+"Temp,temp,0,100,C,int8_t,1,y,,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "heater.csv"), []byte(heaterCSV+"Bad,bad,0,40,V,int16_t,1000,y,,\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := g.Generate(context.Background())
	if !errors.Is(err, schema.ErrRange) {
		t.Fatalf("Expected range error, got %v", err)
	}
	if !strings.Contains(err.Error(), "heater.csv") {
		t.Errorf("Error does not name the schema: %v", err)
	}
	if after := readFile(t, pumpGlobals); after != before {
		t.Error("pump globals.h was written despite a failing run")
	}
}

func TestGenerate_OrphanedRegion(t *testing.T) {
	dir := writeProject(t, nil)
	g := New(loadProject(t, dir), Options{}, nil)
	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	stubs := filepath.Join(dir, "out/pump/telem.c")
	edited := strings.Replace(readFile(t, stubs),
		preserve.EndLine("set_rpm")+"\n",
		"\tmotor_rpm(rpm);\n"+preserve.EndLine("set_rpm")+"\n", 1)
	if err := os.WriteFile(stubs, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	// Retarget set_rpm away from the pump.
	if err := os.WriteFile(filepath.Join(dir, "commands.csv"), []byte(strings.Replace(commandsCSV, "set_rpm,1,3", "set_rpm,1,9", 1)), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := g.Generate(context.Background())
	if !errors.Is(err, preserve.ErrOrphanedRegion) {
		t.Fatalf("Expected orphaned region error, got %v", err)
	}
	if got := readFile(t, stubs); got != edited {
		t.Error("telem.c was rewritten despite the orphan")
	}

	g = New(loadProject(t, dir), Options{DropOrphans: true}, nil)
	results, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate with DropOrphans failed: %v", err)
	}
	var dropped []string
	for _, r := range results {
		dropped = append(dropped, r.Dropped...)
	}
	if diff := cmp.Diff([]string{"set_rpm"}, dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(readFile(t, stubs), "motor_rpm") {
		t.Error("orphaned region was kept")
	}
}

func TestGenerate_ForeignFile(t *testing.T) {
	dir := writeProject(t, nil)
	path := filepath.Join(dir, "out/pump/globals.h")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#pragma once\nint handwritten;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(loadProject(t, dir), Options{}, nil).Generate(context.Background())
	if !errors.Is(err, preserve.ErrForeignFile) {
		t.Fatalf("Expected foreign file error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out/heater")); !os.IsNotExist(err) {
		t.Error("other boards were written despite the error")
	}

	if _, err := New(loadProject(t, dir), Options{Force: true}, nil).Generate(context.Background()); err != nil {
		t.Fatalf("forced Generate failed: %v", err)
	}
	if strings.Contains(readFile(t, path), "handwritten") {
		t.Error("forced run kept foreign content")
	}
}

func TestGenerate_LegacyMarker(t *testing.T) {
	dir := writeProject(t, nil)
	path := filepath.Join(dir, "out/pump/pack_telem_defines.c")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	legacy := "void pack_telem_data(uint8_t* dst) { }\n" +
		"/// END AUTOGENERATED SECTION - USER CODE GOES BELOW THIS LINE\n" +
		"int legacy_user_code;\n"
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(loadProject(t, dir), Options{}, nil).Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := readFile(t, path); !strings.Contains(got, "// BEGIN USER SECTION\nint legacy_user_code;\n// END USER SECTION\n") {
		t.Errorf("legacy user code not carried over:\n%s", got)
	}
}

func TestGenerate_CheckAndDryRun(t *testing.T) {
	dir := writeProject(t, nil)
	cfg := loadProject(t, dir)

	results, err := New(cfg, Options{DryRun: true}, nil).Generate(context.Background())
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("dry run reported no files")
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Error("dry run wrote files")
	}

	if _, err := New(cfg, Options{Check: true}, nil).Generate(context.Background()); !errors.Is(err, ErrStale) {
		t.Errorf("Expected ErrStale before generation, got %v", err)
	}
	if _, err := New(cfg, Options{}, nil).Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := New(cfg, Options{Check: true}, nil).Generate(context.Background()); err != nil {
		t.Errorf("Expected clean check, got %v", err)
	}
}

func TestGenerate_SharedOutputDirectory(t *testing.T) {
	yaml := strings.Replace(projectYAML, "include: out/pump", "include: out/heater/include\n      source: out/heater/src", 1)
	dir := writeProject(t, map[string]string{config.DefaultFile: yaml})

	_, err := New(loadProject(t, dir), Options{}, nil).Generate(context.Background())
	if err == nil || !strings.Contains(err.Error(), "is generated for both heater and pump") {
		t.Fatalf("Expected collision error, got %v", err)
	}
}

func TestRender_DoesNotWrite(t *testing.T) {
	dir := writeProject(t, nil)
	cfg := loadProject(t, dir)
	b, err := cfg.Board("pump")
	if err != nil {
		t.Fatal(err)
	}

	outs, err := New(cfg, Options{}, nil).Render(context.Background(), b)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var names []string
	for _, o := range outs {
		names = append(names, o.Artifact.Name)
	}
	want := []string{
		emit.PackerHeaderName, emit.PackerSourceName, emit.GlobalsHeaderName, emit.GlobalsSourceName,
		emit.DispatchHeaderName, emit.DispatchSourceName, emit.StubsSourceName,
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Error("Render wrote files")
	}
}

func TestCompile_Codec(t *testing.T) {
	dir := writeProject(t, nil)
	cfg := loadProject(t, dir)
	cmds, err := LoadCommands(cfg)
	if err != nil {
		t.Fatal(err)
	}
	m, err := Compile(cfg, cfg.Boards[0], cmds)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	codec := m.Codec()
	packet, err := codec.Pack(map[string]float64{"e_batt": 12.345, "ivlv[1]": 1})
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if diff := cmp.Diff([]byte{0x39, 0x30, 0x00, 0x01}, packet); diff != "" {
		t.Errorf("packet mismatch (-want +got):\n%s", diff)
	}
	if m.Sim == nil || m.Sim.NumCmds() != 1 {
		t.Errorf("Expected one simulated command, got %+v", m.Sim)
	}
}

// ============================================================
// Write Tests
// ============================================================

func TestWriteFile_KeepsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.h")
	if err := writeFile(path, []byte("one\n")); err != nil {
		t.Fatalf("writeFile failed: %v", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(path, []byte("two\n")); err != nil {
		t.Fatalf("writeFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if got := readFile(t, path); got != "two\n" {
		t.Errorf("content = %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

// ============================================================
// Watch Tests
// ============================================================

func TestWatch_Debounces(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(input, []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	ran := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{input}, 50*time.Millisecond, func(context.Context) error {
			runs.Add(1)
			ran <- struct{}{}
			return nil
		}, func(err error) { t.Errorf("unexpected watch error: %v", err) })
	}()

	waitRun := func() {
		t.Helper()
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a run")
		}
	}
	waitRun() // initial run

	for i := range 3 {
		if err := os.WriteFile(input, []byte(strings.Repeat("b", i+1)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitRun()

	time.Sleep(200 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2 (initial + one debounced)", got)
	}
}
