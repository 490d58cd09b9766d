package model

import (
	"fmt"
	"sort"
)

// Project is an arena of nodes keyed by id. Containment is derived from id
// prefixes, so removing a node is a prefix scan and there are no parent or
// child pointers to keep consistent.
//
// Stored nodes are replaced on edit, never mutated in place, which makes
// Clone a shallow copy of the index.
type Project struct {
	nodes map[string]Node
}

// New returns an empty project.
func New() *Project {
	return &Project{nodes: make(map[string]Node)}
}

// Len returns the number of nodes in the project.
func (p *Project) Len() int {
	return len(p.nodes)
}

// Find returns the node with the given id.
func (p *Project) Find(id string) (Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Subtree returns the node with the given id followed by all of its
// descendants, sorted by id. It returns nil if the node does not exist.
func (p *Project) Subtree(id string) []Node {
	root, ok := p.nodes[id]
	if !ok {
		return nil
	}
	out := []Node{root}
	for nid, n := range p.nodes {
		if IsDescendant(nid, id) {
			out = append(out, n)
		}
	}
	rest := out[1:]
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return out
}

// Members returns the direct members of the node with the given id, sorted by id.
func (p *Project) Members(id string) []Node {
	var out []Node
	for nid, n := range p.nodes {
		if ParentID(nid) == id && nid != id {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Nodes returns every node in the project, sorted by id.
func (p *Project) Nodes() []Node {
	out := make([]Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone returns an independent copy of the project.
func (p *Project) Clone() *Project {
	c := &Project{nodes: make(map[string]Node, len(p.nodes))}
	for id, n := range p.nodes {
		c.nodes[id] = n
	}
	return c
}

// Apply applies a single edit. A failing edit leaves the project unchanged.
func (p *Project) Apply(e Edit) error {
	switch e := e.(type) {
	case AddNode:
		return p.add(e.Node)
	case RemoveNode:
		return p.remove(e.ID)
	case EditFunction:
		n, err := p.lookup(e.ID, KindFunction)
		if err != nil {
			return err
		}
		n.Modifiers = n.Modifiers.Apply(e.Modifiers)
		n.Body = ApplyLineEdits(n.Body, e.Body)
		p.nodes[n.ID] = n
		return nil
	case EditVariable:
		n, err := p.lookup(e.ID, KindVariable)
		if err != nil {
			return err
		}
		n.Modifiers = n.Modifiers.Apply(e.Modifiers)
		n.Initializer = ApplyLineEdits(n.Initializer, e.Initializer)
		p.nodes[n.ID] = n
		return nil
	case EditType:
		n, err := p.lookup(e.ID, KindType)
		if err != nil {
			return err
		}
		n.Modifiers = n.Modifiers.Apply(e.Modifiers)
		n.Supertypes = e.Supertypes.Apply(n.Supertypes)
		p.nodes[n.ID] = n
		return nil
	default:
		return fmt.Errorf("unsupported edit %T", e)
	}
}

func (p *Project) lookup(id string, kind Kind) (Node, error) {
	n, ok := p.nodes[id]
	if !ok || n.Kind != kind {
		return Node{}, &UnknownNodeError{ID: id, Kind: kind}
	}
	return n, nil
}

func (p *Project) add(root Node) error {
	if err := p.checkParent(root); err != nil {
		return err
	}
	if err := checkMembers(root); err != nil {
		return err
	}

	flat := root.Flatten()
	seen := make(map[string]bool, len(flat))
	for _, n := range flat {
		if !n.Kind.IsValid() {
			return fmt.Errorf("node %s has invalid kind %q", n.ID, n.Kind)
		}
		if _, exists := p.nodes[n.ID]; exists || seen[n.ID] {
			return &DuplicateNodeError{ID: n.ID}
		}
		seen[n.ID] = true
	}

	for _, n := range flat {
		p.nodes[n.ID] = n.Clone()
	}
	return nil
}

// checkParent verifies that the container of root exists and accepts it.
func (p *Project) checkParent(root Node) error {
	parentID := ParentID(root.ID)
	if root.Kind == KindSourceUnit {
		if parentID != "" {
			return &MissingParentError{ID: root.ID, Kind: root.Kind, ParentID: parentID}
		}
		return nil
	}
	parent, ok := p.nodes[parentID]
	if parentID == "" || !ok || !parent.Kind.CanContain(root.Kind) {
		return &MissingParentError{ID: root.ID, Kind: root.Kind, ParentID: parentID}
	}
	return nil
}

// checkMembers verifies containment inside an added tree literal.
func checkMembers(n Node) error {
	for _, m := range n.Members {
		if ParentID(m.ID) != n.ID || !n.Kind.CanContain(m.Kind) {
			return &MissingParentError{ID: m.ID, Kind: m.Kind, ParentID: ParentID(m.ID)}
		}
		if err := checkMembers(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *Project) remove(id string) error {
	if _, ok := p.nodes[id]; !ok {
		return &UnknownNodeError{ID: id}
	}
	for nid := range p.nodes {
		if nid == id || IsDescendant(nid, id) {
			delete(p.nodes, nid)
		}
	}
	return nil
}
