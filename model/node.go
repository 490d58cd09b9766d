// Package model provides the structural model of a project: typed nodes
// addressed by hierarchical ids, the edits that mutate them, and the Project
// arena the edits are applied to.
package model

import "sort"

// Kind tags the variant of a Node.
type Kind string

const (
	KindSourceUnit Kind = "SourceUnit"
	KindType       Kind = "Type"
	KindFunction   Kind = "Function"
	KindVariable   Kind = "Variable"
)

// IsValid reports whether k is one of the four node kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindSourceUnit, KindType, KindFunction, KindVariable:
		return true
	default:
		return false
	}
}

// CanContain reports whether a node of kind k may hold a member of kind member.
func (k Kind) CanContain(member Kind) bool {
	switch k {
	case KindSourceUnit, KindType:
		return member == KindType || member == KindFunction || member == KindVariable
	default:
		return false
	}
}

// Node is a structural entity. Which payload fields are meaningful depends on
// Kind:
//
//	SourceUnit: Members
//	Type:       Supertypes, Members
//	Function:   Parameters, Body
//	Variable:   Initializer
//
// Members is only populated on the tree literal carried by an AddNode edit.
// Inside a Project, containment is expressed by id prefix alone.
type Node struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Modifiers   Modifiers `json:"modifiers,omitempty"`
	Parameters  []string  `json:"parameters,omitempty"`
	Body        []string  `json:"body,omitempty"`
	Initializer []string  `json:"initializer,omitempty"`
	Supertypes  []string  `json:"supertypes,omitempty"`
	Members     []Node    `json:"members,omitempty"`
}

// SourceUnit returns a source unit (a file) holding members. Member ids are
// relative to the unit and are qualified with path.
func SourceUnit(path string, members ...Node) Node {
	return container(KindSourceUnit, path, members)
}

// Type returns a type holding members. Member ids are relative to the type and
// are qualified with id.
func Type(id string, members ...Node) Node {
	return container(KindType, id, members)
}

// Function returns a function with the given body lines.
func Function(id string, body ...string) Node {
	return Node{ID: id, Kind: KindFunction, Body: copyLines(body)}
}

// Variable returns a variable with the given initializer lines.
func Variable(id string, initializer ...string) Node {
	return Node{ID: id, Kind: KindVariable, Initializer: copyLines(initializer)}
}

func container(kind Kind, id string, members []Node) Node {
	n := Node{ID: id, Kind: kind}
	for _, m := range members {
		n.Members = append(n.Members, m.qualify(id))
	}
	return n
}

// qualify prefixes the ids of n and all of its members with parent.
func (n Node) qualify(parent string) Node {
	q := n
	q.ID = Join(parent, n.ID)
	q.Members = nil
	for _, m := range n.Members {
		q.Members = append(q.Members, m.qualify(parent))
	}
	return q
}

// WithModifiers returns a copy of n with the given modifier set.
func (n Node) WithModifiers(tags ...string) Node {
	n.Modifiers = NewModifiers(tags...)
	return n
}

// WithParameters returns a copy of n with the given parameter names.
func (n Node) WithParameters(names ...string) Node {
	n.Parameters = copyLines(names)
	return n
}

// WithSupertypes returns a copy of n with the given supertypes.
func (n Node) WithSupertypes(names ...string) Node {
	n.Supertypes = sortedSet(names)
	return n
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	c := n
	c.Modifiers = Modifiers(copyLines(n.Modifiers))
	c.Parameters = copyLines(n.Parameters)
	c.Body = copyLines(n.Body)
	c.Initializer = copyLines(n.Initializer)
	c.Supertypes = copyLines(n.Supertypes)
	c.Members = nil
	for _, m := range n.Members {
		c.Members = append(c.Members, m.Clone())
	}
	return c
}

// Flatten returns n and all of its members in pre-order, each stripped of
// its Members.
func (n Node) Flatten() []Node {
	var out []Node
	n.walk(func(m Node) {
		m.Members = nil
		out = append(out, m)
	})
	return out
}

func (n Node) walk(fn func(Node)) {
	fn(n)
	for _, m := range n.Members {
		m.walk(fn)
	}
}

// Modifiers is a sorted, duplicate-free set of modifier tags.
type Modifiers []string

// NewModifiers builds a modifier set from tags in any order.
func NewModifiers(tags ...string) Modifiers {
	return Modifiers(sortedSet(tags))
}

// Has reports whether tag is in the set.
func (m Modifiers) Has(tag string) bool {
	i := sort.SearchStrings(m, tag)
	return i < len(m) && m[i] == tag
}

// HasAny reports whether any of tags is in the set.
func (m Modifiers) HasAny(tags ...string) bool {
	for _, t := range tags {
		if m.Has(t) {
			return true
		}
	}
	return false
}

// Apply returns the set produced by applying d to m. m is left untouched.
func (m Modifiers) Apply(d SetDelta) Modifiers {
	return Modifiers(d.Apply(m))
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func copyLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
