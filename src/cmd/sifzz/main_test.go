package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stuffzez/sifzz"
)

func TestFindScriptFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile("hello.sfzz", []byte("say 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"hello":      "hello.sfzz",
		"hello.sfzz": "hello.sfzz",
		"missing":    "",
		"hello.txt":  "",
	}
	for in, want := range tests {
		if got := findScriptFile(in); got != want {
			t.Errorf("findScriptFile(%q) = %q, want %q", in, got, want)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(&options{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "sifzz "+sifzz.Version+"\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCommandsCommand(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "--config", config, "--modules", dir, "commands")
	if err != nil {
		t.Fatalf("commands failed: %v", err)
	}
	if !strings.HasPrefix(out, "# Sifzz command reference") {
		t.Errorf("expected the markdown reference, got %q", out)
	}
	if !strings.Contains(out, "say EXPR") {
		t.Error("core statements missing from the reference")
	}

	out, err = execute(t, "--config", config, "--modules", dir, "commands", "--html")
	if err != nil {
		t.Fatalf("commands --html failed: %v", err)
	}
	if !strings.Contains(out, "<table>") {
		t.Errorf("expected an HTML table, got %q", out)
	}
}

func TestFlagValidation(t *testing.T) {
	config := filepath.Join(t.TempDir(), "config.yaml")

	t.Run("log format", func(t *testing.T) {
		_, err := execute(t, "--config", config, "--log-format", "xml", "commands")
		if err == nil || !strings.Contains(err.Error(), "log format must be text or json") {
			t.Errorf("expected a log format error, got %v", err)
		}
	})

	t.Run("debug category", func(t *testing.T) {
		_, err := execute(t, "--config", config, "--debug-category", "bogus", "commands")
		if err == nil || !strings.Contains(err.Error(), `unknown debug category "bogus"`) {
			t.Errorf("expected a category error, got %v", err)
		}
	})

	t.Run("no packs", func(t *testing.T) {
		root := newRootCommand(&options{})
		opts := &options{configPath: config, noPacks: true}
		cfg, err := loadConfig(root, opts)
		if err != nil {
			t.Fatal(err)
		}
		if len(cfg.Extensions) != 0 {
			t.Errorf("expected no extensions, got %v", cfg.Extensions)
		}
	})
}
