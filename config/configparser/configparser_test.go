package configparser

import (
	"os"
	"path/filepath"
	"testing"
)

func resetModels() {
	models = map[string]modelDef{}
}

func TestLoadConfigFileDispatchesModelLine(t *testing.T) {
	resetModels()
	var gotAddr uint16
	var gotOpts []Option
	RegisterModel("WIDGET", TypeModel, func(addr uint16, _ string, opts []Option) error {
		gotAddr = addr
		gotOpts = opts
		return nil
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "test.cfg")
	content := "# a comment\nWIDGET 40 latency=4 ways=2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if gotAddr != 0x40 {
		t.Fatalf("addr = %#x, want 0x40", gotAddr)
	}
	if len(gotOpts) != 2 || gotOpts[0].Name != "latency" || gotOpts[0].EqualOpt != "4" {
		t.Fatalf("unexpected options: %+v", gotOpts)
	}
	if gotOpts[1].Name != "ways" || gotOpts[1].EqualOpt != "2" {
		t.Fatalf("unexpected options: %+v", gotOpts)
	}
}

func TestLoadConfigFileSwitch(t *testing.T) {
	resetModels()
	called := false
	RegisterSwitch("UNIFIED", func(uint16, string, []Option) error {
		called = true
		return nil
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "test.cfg")
	if err := os.WriteFile(path, []byte("UNIFIED\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if !called {
		t.Fatalf("switch callback never invoked")
	}
}

func TestLoadConfigFileUnknownComponent(t *testing.T) {
	resetModels()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cfg")
	if err := os.WriteFile(path, []byte("BOGUS 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected error for unregistered component")
	}
}

func TestLoadConfigFileModelRequiresAddress(t *testing.T) {
	resetModels()
	RegisterModel("WIDGET", TypeModel, func(uint16, string, []Option) error { return nil })

	dir := t.TempDir()
	path := filepath.Join(dir, "test.cfg")
	if err := os.WriteFile(path, []byte("WIDGET notahexnum\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected error when address field does not parse as hex")
	}
}

func TestParseOptionsSpaceSeparated(t *testing.T) {
	line := &optionLine{line: "latency=4 ways=2 block=8\n"}
	opts, err := line.parseOptions()
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if len(opts) != 3 {
		t.Fatalf("got %d options, want 3: %+v", len(opts), opts)
	}
	if opts[0].Name != "latency" || opts[0].EqualOpt != "4" {
		t.Fatalf("opts[0] = %+v", opts[0])
	}
	if opts[2].Name != "block" || opts[2].EqualOpt != "8" {
		t.Fatalf("opts[2] = %+v", opts[2])
	}
}

func TestParseOptionMultiValue(t *testing.T) {
	line := &optionLine{line: "mode=abc,extra1,extra2\n"}
	opt, err := line.parseOption()
	if err != nil {
		t.Fatalf("parseOption: %v", err)
	}
	if opt.Name != "mode" || opt.EqualOpt != "abc" {
		t.Fatalf("opt = %+v", opt)
	}
	if len(opt.Value) != 2 || *opt.Value[0] != "extra1" || *opt.Value[1] != "extra2" {
		t.Fatalf("opt.Value = %+v", opt.Value)
	}
}
