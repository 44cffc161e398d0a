package textutil

import "strings"

// SanitizeFileName makes name safe as a single path component on common
// filesystems. Separators, colons and asterisks turn into dashes; quotes,
// wildcards, redirections and pipes are dropped.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	return strings.TrimSpace(cleaned)
}

// SanitizePathSegments splits value on either slash, sanitizes every part and
// discards empty and relative components, so joining the result under a root
// never climbs out of it.
func SanitizePathSegments(value string) []string {
	var out []string
	for part := range strings.FieldsFuncSeq(value, isSlash) {
		switch clean := SanitizeFileName(part); clean {
		case "", ".", "..":
		default:
			out = append(out, clean)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func isSlash(r rune) bool { return r == '/' || r == '\\' }
