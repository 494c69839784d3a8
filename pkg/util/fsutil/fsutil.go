package fsutil

import (
	"path/filepath"
	"strings"
)

// Within returns true if target is dir or a path below it once both are cleaned.
func Within(dir, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Resolve joins the slash separated relative path rel to dir.
// ok is false if the result escapes dir.
func Resolve(dir, rel string) (p string, ok bool) {
	p = filepath.Join(dir, filepath.FromSlash(rel))
	return p, Within(dir, p)
}
