package model

import "strings"

// Separator joins the segments of a node id.
const Separator = ":"

// Join qualifies name with the id of its container.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Separator + name
}

// ParentID returns the id of the container of id, or "" for a top-level id.
// Separators inside a parenthesised signature do not count.
func ParentID(id string) string {
	if i := lastSeparator(id); i >= 0 {
		return id[:i]
	}
	return ""
}

// Name returns the last segment of id ("getVersion()" for "Main.java:getVersion()").
func Name(id string) string {
	if i := lastSeparator(id); i >= 0 {
		return id[i+len(Separator):]
	}
	return id
}

// SimpleName returns the last segment of id without its signature
// ("getVersion" for "Main.java:getVersion()").
func SimpleName(id string) string {
	name := Name(id)
	if i := strings.IndexByte(name, '('); i >= 0 {
		return name[:i]
	}
	return name
}

// IsDescendant reports whether id lies strictly below ancestor.
func IsDescendant(id, ancestor string) bool {
	return strings.HasPrefix(id, ancestor+Separator)
}

// SourceUnitID returns the id of the source unit that contains id.
func SourceUnitID(id string) string {
	for {
		parent := ParentID(id)
		if parent == "" {
			return id
		}
		id = parent
	}
}

func lastSeparator(id string) int {
	depth := 0
	for i := len(id) - 1; i >= 0; i-- {
		switch id[i] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--
			}
		case Separator[0]:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
