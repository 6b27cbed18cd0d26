package extract

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ScopeID derives the style scope of a component from its file and name.
func ScopeID(fileID, component string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fileID+"#"+component))[:8]
}

// ResolveStylePath resolves a style import relative to the importing file.
// Relative file ids are anchored at baseDir.
func ResolveStylePath(baseDir, fileID, rel string) string {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(fileID), rel)
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}
