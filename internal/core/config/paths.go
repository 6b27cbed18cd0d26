package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot  string
	StyleBaseDir string
	HistoryPath  string
	OutDir       string
	WatchPaths   []string
}

// ResolvePaths anchors every relative path in cfg at the project root, which
// is detected from cwd when not given.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}
	root, err := DetectProjectRoot([]string{cwd})
	if err != nil {
		return ResolvedPaths{}, err
	}

	resolved := ResolvedPaths{
		ProjectRoot:  root,
		StyleBaseDir: ResolveRelative(root, cfg.Compiler.StyleBaseDir),
		HistoryPath:  ResolveRelative(root, cfg.History.Path),
		OutDir:       ResolveRelative(root, cfg.Build.OutDir),
	}
	for _, p := range cfg.Watch.Paths {
		resolved.WatchPaths = append(resolved.WatchPaths, ResolveRelative(cwd, p))
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate until it finds a project
// marker. It falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFile,
		"package.json",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
