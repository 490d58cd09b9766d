package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ReferencesName reports whether any line contains name as a whole
// identifier, either read or assigned. This is a lexical check, not name
// resolution: a local or parameter shadowing a field still counts.
func ReferencesName(lines []string, name string) bool {
	if name == "" {
		return false
	}
	for _, line := range lines {
		for from := 0; from < len(line); {
			i := strings.Index(line[from:], name)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(name)
			if (start == 0 || !isIdentByte(line[start-1])) && (end == len(line) || !isIdentByte(line[end])) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

// AccessorField returns the field name implied by an accessor name following
// the get/set/is convention ("getVersion" -> "version"), or "" if name does
// not follow it.
func AccessorField(name string) string {
	for _, prefix := range []string{"get", "set", "is"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(rest)
		if !unicode.IsUpper(r) {
			continue
		}
		return string(unicode.ToLower(r)) + rest[size:]
	}
	return ""
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9') ||
		b >= utf8.RuneSelf
}
