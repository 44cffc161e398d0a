package queue

import (
	"path/filepath"
	"strings"

	"bobbin/internal/textutil"
)

// OutputDir returns the collection directory for this item rooted at base.
// Collection path segments are sanitized individually so a hostile title or
// collection cannot escape base.
func (i Item) OutputDir(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	segments := textutil.SanitizePathSegments(i.CollectionPath)
	return filepath.Join(append([]string{base}, segments...)...)
}
