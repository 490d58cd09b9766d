// Package detect finds decapsulation events by comparing the structural model
// before and after a transaction against the transaction's own edits.
package detect

import (
	"decap/model"
	"decap/transaction"
)

// EventKind classifies a detector event.
type EventKind string

const (
	// NewDecapsulation reports an accessor that newly exposes a field.
	NewDecapsulation EventKind = "NEW_DECAPSULATION"
	// FieldRemoved reports a field that no longer exists.
	FieldRemoved EventKind = "FIELD_REMOVED"
)

// Event is one finding for a transaction. Accessor is only set for
// NewDecapsulation events and holds the function as it is after the
// transaction.
type Event struct {
	Kind     EventKind
	FieldID  string
	Accessor model.Node
}

// DefaultPublicModifiers are the tags that make a field public.
var DefaultPublicModifiers = []string{"public"}

// Detector is a read-only pass over consecutive model states. It keeps no
// state between calls and is safe for concurrent use.
type Detector struct {
	public        []string
	accessorNames bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithPublicModifiers sets the modifier tags that make a field public.
// Fields carrying none of them are candidates for decapsulation.
func WithPublicModifiers(tags ...string) Option {
	return func(d *Detector) {
		if len(tags) > 0 {
			d.public = append([]string(nil), tags...)
		}
	}
}

// WithAccessorNames additionally treats a function named get<Field>,
// set<Field> or is<Field> in the same container as a field as referencing
// it, whatever its body says.
func WithAccessorNames(enabled bool) Option {
	return func(d *Detector) { d.accessorNames = enabled }
}

// NewDetector creates a detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{public: DefaultPublicModifiers}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the events produced by tx, in edit order. before and after
// are the model states around tx; neither is modified.
//
// A field only counts as decapsulated when it already existed before the
// transaction and is not added again by it: adding a field and its accessor
// together is not a decapsulation.
func (d *Detector) Detect(before, after *model.Project, tx *transaction.Transaction) []Event {
	c := newCollector()
	fresh := addedIDs(tx)

	for _, edit := range tx.Edits() {
		switch e := edit.(type) {
		case model.AddNode:
			for _, added := range e.Node.Flatten() {
				if added.Kind != model.KindFunction {
					continue
				}
				fn, ok := after.Find(added.ID)
				if !ok || fn.Kind != model.KindFunction {
					continue
				}
				for _, field := range d.candidateFields(before, after, fresh, fn.ID) {
					if d.references(fn, field) {
						c.decapsulation(field.ID, fn)
					}
				}
			}

		case model.EditFunction:
			fn, ok := after.Find(e.ID)
			if !ok || fn.Kind != model.KindFunction {
				continue
			}
			for _, field := range d.candidateFields(before, after, fresh, fn.ID) {
				if d.references(fn, field) {
					c.decapsulation(field.ID, fn)
				}
			}

		case model.EditVariable:
			if fresh[e.ID] || !d.widened(before, after, e.ID) {
				continue
			}
			field, _ := after.Find(e.ID)
			for _, fn := range after.Subtree(model.SourceUnitID(e.ID)) {
				if fn.Kind == model.KindFunction && d.references(fn, field) {
					c.decapsulation(field.ID, fn)
				}
			}

		case model.RemoveNode:
			for _, n := range before.Subtree(e.ID) {
				if n.Kind == model.KindVariable {
					c.removed(n.ID)
				}
			}
		}
	}

	return c.events
}

// candidateFields returns the non-public variables that are members of the
// container of fnID or of any of its ancestors, and that already existed
// before the transaction without being added again by it.
func (d *Detector) candidateFields(before, after *model.Project, fresh map[string]bool, fnID string) []model.Node {
	var fields []model.Node
	for container := model.ParentID(fnID); container != ""; container = model.ParentID(container) {
		for _, m := range after.Members(container) {
			if m.Kind != model.KindVariable || m.Modifiers.HasAny(d.public...) || fresh[m.ID] {
				continue
			}
			if prev, ok := before.Find(m.ID); !ok || prev.Kind != model.KindVariable {
				continue
			}
			fields = append(fields, m)
		}
	}
	return fields
}

// addedIDs returns the ids of every node added by tx.
func addedIDs(tx *transaction.Transaction) map[string]bool {
	ids := make(map[string]bool)
	for _, edit := range tx.Edits() {
		if e, ok := edit.(model.AddNode); ok {
			for _, n := range e.Node.Flatten() {
				ids[n.ID] = true
			}
		}
	}
	return ids
}

// widened reports whether the variable id gained a public modifier.
func (d *Detector) widened(before, after *model.Project, id string) bool {
	prev, ok := before.Find(id)
	if !ok || prev.Kind != model.KindVariable || prev.Modifiers.HasAny(d.public...) {
		return false
	}
	cur, ok := after.Find(id)
	return ok && cur.Kind == model.KindVariable && cur.Modifiers.HasAny(d.public...)
}

// references reports whether fn is an accessor of field.
func (d *Detector) references(fn, field model.Node) bool {
	name := model.Name(field.ID)
	if ReferencesName(fn.Body, name) {
		return true
	}
	if d.accessorNames && model.ParentID(fn.ID) == model.ParentID(field.ID) {
		return AccessorField(model.SimpleName(fn.ID)) == name
	}
	return false
}

type collector struct {
	events []Event
	seen   map[[2]string]bool
}

func newCollector() *collector {
	return &collector{seen: make(map[[2]string]bool)}
}

func (c *collector) decapsulation(fieldID string, accessor model.Node) {
	key := [2]string{fieldID, accessor.ID}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.events = append(c.events, Event{Kind: NewDecapsulation, FieldID: fieldID, Accessor: accessor})
}

func (c *collector) removed(fieldID string) {
	c.events = append(c.events, Event{Kind: FieldRemoved, FieldID: fieldID})
}
