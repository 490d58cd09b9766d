package analyze

import (
	"fmt"
	"sort"

	"decap/model"
)

// Ref is a node as recorded in a decapsulation set, together with the
// transaction that introduced it.
type Ref struct {
	Node          model.Node
	TransactionID string
}

// ID returns the id of the referenced node.
func (r Ref) ID() string { return r.Node.ID }

func (r Ref) String() string {
	if r.TransactionID == "" {
		return r.Node.ID
	}
	return fmt.Sprintf("%s (%s)", r.Node.ID, r.TransactionID)
}

// DecapsulationSet holds a decapsulated field and the accessors that
// decapsulate it, in the order they were first observed.
type DecapsulationSet struct {
	Field     Ref
	accessors []Ref
}

// NewDecapsulationSet returns a set for field with no accessors.
func NewDecapsulationSet(field Ref) *DecapsulationSet {
	return &DecapsulationSet{Field: field}
}

// AddAccessor records accessor. It returns false if an accessor with the
// same id is already recorded.
func (s *DecapsulationSet) AddAccessor(accessor Ref) bool {
	if s.HasAccessor(accessor.ID()) {
		return false
	}
	s.accessors = append(s.accessors, accessor)
	return true
}

// HasAccessor reports whether an accessor with the given id is recorded.
func (s *DecapsulationSet) HasAccessor(id string) bool {
	for _, a := range s.accessors {
		if a.ID() == id {
			return true
		}
	}
	return false
}

// Accessors returns a copy of the recorded accessors in insertion order.
func (s *DecapsulationSet) Accessors() []Ref {
	return append([]Ref(nil), s.accessors...)
}

// Len returns the number of recorded accessors.
func (s *DecapsulationSet) Len() int { return len(s.accessors) }

func (s *DecapsulationSet) clone() *DecapsulationSet {
	return &DecapsulationSet{Field: s.Field, accessors: s.Accessors()}
}

// Result maps field ids to their decapsulation sets.
type Result map[string]*DecapsulationSet

// FieldIDs returns the decapsulated field ids, sorted.
func (r Result) FieldIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	c := make(Result, len(r))
	for id, s := range r {
		c[id] = s.clone()
	}
	return c
}
