package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vinec/internal/core/config"
)

func TestParseOptions_Commands(t *testing.T) {
	var stderr bytes.Buffer

	opts, err := parseOptions([]string{"--verbose", "build", "--out", "public", "src"}, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.command != commandBuild || opts.outDir != "public" || !opts.verbose {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if len(opts.args) != 1 || opts.args[0] != "src" {
		t.Fatalf("unexpected args: %v", opts.args)
	}

	opts, err = parseOptions([]string{"dev", "--ui", "--explain", "a", "b"}, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.ui || !opts.explain || len(opts.args) != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	opts, err = parseOptions([]string{"history"}, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.since != "24h" || opts.top != 5 {
		t.Fatalf("unexpected history defaults: %+v", opts)
	}
}

func TestParseOptions_Rejects(t *testing.T) {
	cases := map[string][]string{
		"missing command":       {},
		"unknown command":       {"serve"},
		"positional arguments":  {"history", "extra"},
		"flag provided but not": {"build", "--ui"},
	}
	for want, args := range cases {
		var stderr bytes.Buffer
		_, err := parseOptions(args, &stderr)
		if err == nil {
			t.Fatalf("expected error for %v", args)
		}
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("args %v: unexpected error: %v", args, err)
		}
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2h", now)
	if err != nil || !got.Equal(now.Add(-2*time.Hour)) {
		t.Fatalf("duration: got %v, %v", got, err)
	}
	got, err = parseSince("2026-02-28", now)
	if err != nil || got.Day() != 28 {
		t.Fatalf("date: got %v, %v", got, err)
	}
	got, err = parseSince("2026-02-28T10:00:00Z", now)
	if err != nil || got.Hour() != 10 {
		t.Fatalf("rfc3339: got %v, %v", got, err)
	}
	got, err = parseSince("", now)
	if err != nil || !got.IsZero() {
		t.Fatalf("empty: got %v, %v", got, err)
	}
	if _, err := parseSince("yesterday", now); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplyOptions_OverridesWatchPathsAndOutDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Watch.Paths = []string{"./original"}

	applyOptions(cliOptions{outDir: "public", args: []string{"./override"}}, cfg)
	if len(cfg.Watch.Paths) != 1 || cfg.Watch.Paths[0] != "./override" {
		t.Fatalf("unexpected watch paths: %v", cfg.Watch.Paths)
	}
	if cfg.Build.OutDir != "public" {
		t.Fatalf("unexpected out dir: %q", cfg.Build.OutDir)
	}
}

func TestLoadConfig_FindsProjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFile)
	if err := os.WriteFile(path, []byte("[build]\nout_dir = \"out\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, got, err := loadConfig("", sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path || cfg.Build.OutDir != "out" {
		t.Fatalf("unexpected config %q out_dir=%q", got, cfg.Build.OutDir)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.toml"), dir); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestRun_VersionAndBuild(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("version exit code %d", code)
	}
	if !strings.Contains(stdout.String(), versionString) {
		t.Fatalf("unexpected version output %q", stdout.String())
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.DefaultFile), []byte("[history]\nenabled = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := "function Counter(){ const n = ref(0); return template`<div>{{n}}</div>`}\n"
	if err := os.WriteFile(filepath.Join(dir, "Counter.vine.ts"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	stdout.Reset()
	if code := run([]string{"build", "."}, &stdout, &stderr); code != 0 {
		t.Fatalf("build exit code %d: %s %s", code, stdout.String(), stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "dist", "Counter.vine.js")); err != nil {
		t.Fatalf("expected build output: %v", err)
	}

	stdout.Reset()
	if code := run([]string{"history"}, &stdout, &stderr); code != 0 {
		t.Fatalf("history exit code %d", code)
	}
	if !strings.Contains(stdout.String(), "no history recorded yet") {
		t.Fatalf("unexpected history output %q", stdout.String())
	}
}
