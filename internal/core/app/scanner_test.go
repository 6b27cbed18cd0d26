package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"src/App.vine.ts",
		"src/util.js",
		"src/types.d.ts",
		"src/card.css",
		"src/legacy.old.ts",
		"node_modules/pkg/index.js",
		"README.md",
	} {
		writeFile(t, filepath.Join(dir, f), "x")
	}

	files, err := ScanDirectories([]string{dir}, []string{"node_modules"}, []string{"*.old.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "src/App.vine.ts"),
		filepath.Join(dir, "src/util.js"),
	}, files)

	// Explicit file arguments are accepted and deduplicated.
	single := filepath.Join(dir, "src/App.vine.ts")
	files, err = ScanDirectories([]string{single, dir}, []string{"node_modules"}, nil)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = ScanDirectories([]string{dir}, []string{"["}, nil)
	assert.Error(t, err)
	_, err = ScanDirectories([]string{filepath.Join(dir, "missing")}, nil, nil)
	assert.Error(t, err)
}

func TestIsHostFile(t *testing.T) {
	assert.True(t, IsHostFile("/p/App.vine.ts"))
	assert.True(t, IsHostFile("/p/App.TSX"))
	assert.True(t, IsHostFile("/p/main.mjs"))
	assert.False(t, IsHostFile("/p/env.d.ts"))
	assert.False(t, IsHostFile("/p/card.css"))
}
