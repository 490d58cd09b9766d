package model

// Edit is one structural change applied to a Project. The concrete variants
// are AddNode, RemoveNode, EditFunction, EditVariable and EditType.
type Edit interface {
	// TargetID returns the id of the node the edit applies to.
	TargetID() string
	isEdit()
}

// AddNode adds Node and all of its members.
type AddNode struct {
	Node Node
}

// RemoveNode removes the node with ID and its whole subtree.
type RemoveNode struct {
	ID string
}

// EditFunction changes the modifiers and body of a function.
type EditFunction struct {
	ID        string
	Modifiers SetDelta
	Body      []LineEdit
}

// EditVariable changes the modifiers and initializer of a variable.
type EditVariable struct {
	ID          string
	Modifiers   SetDelta
	Initializer []LineEdit
}

// EditType changes the modifiers and supertypes of a type. Members are added
// and removed through AddNode and RemoveNode.
type EditType struct {
	ID         string
	Modifiers  SetDelta
	Supertypes SetDelta
}

func (e AddNode) TargetID() string      { return e.Node.ID }
func (e RemoveNode) TargetID() string   { return e.ID }
func (e EditFunction) TargetID() string { return e.ID }
func (e EditVariable) TargetID() string { return e.ID }
func (e EditType) TargetID() string     { return e.ID }

func (AddNode) isEdit()      {}
func (RemoveNode) isEdit()   {}
func (EditFunction) isEdit() {}
func (EditVariable) isEdit() {}
func (EditType) isEdit()     {}

// SetDelta is a pair of removed and added set elements.
//
// Additions are applied before removals, so a tag listed on both sides ends
// up absent. Removing a tag that is not present is a no-op: delta authors may
// over-specify.
type SetDelta struct {
	Removed []string `json:"remove,omitempty" yaml:"remove,omitempty"`
	Added   []string `json:"add,omitempty" yaml:"add,omitempty"`
}

// IsZero reports whether d changes nothing.
func (d SetDelta) IsZero() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// Apply returns the sorted set produced by applying d to set.
func (d SetDelta) Apply(set []string) []string {
	merged := make([]string, 0, len(set)+len(d.Added))
	merged = append(merged, set...)
	merged = append(merged, d.Added...)

	removed := make(map[string]bool, len(d.Removed))
	for _, r := range d.Removed {
		removed[r] = true
	}
	kept := merged[:0]
	for _, v := range merged {
		if !removed[v] {
			kept = append(kept, v)
		}
	}
	return sortedSet(kept)
}

// LineEdit is a splice on an ordered list of lines: Remove lines are dropped
// starting at Index and Insert is put in their place.
type LineEdit struct {
	Index  int      `json:"index" yaml:"index"`
	Remove int      `json:"remove,omitempty" yaml:"remove,omitempty"`
	Insert []string `json:"insert,omitempty" yaml:"insert,omitempty"`
}

// ApplyLineEdits applies edits to lines in order and returns a new slice.
// Out-of-range indices and counts are clamped, since merge-derived deltas
// are not always exact.
func ApplyLineEdits(lines []string, edits []LineEdit) []string {
	out := copyLines(lines)
	for _, e := range edits {
		index := clamp(e.Index, 0, len(out))
		remove := clamp(e.Remove, 0, len(out)-index)

		next := make([]string, 0, len(out)-remove+len(e.Insert))
		next = append(next, out[:index]...)
		next = append(next, e.Insert...)
		next = append(next, out[index+remove:]...)
		out = next
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
