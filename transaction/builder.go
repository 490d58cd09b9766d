package transaction

import (
	"time"

	"decap/model"
)

// Builder accumulates edits for a transaction.
//
//	tx := transaction.Build("1", func(b *transaction.Builder) {
//		b.Author("jane")
//		b.AddFunction("Main.java:getVersion()", "return version;")
//	})
type Builder struct {
	id    string
	opts  []Option
	edits []model.Edit
}

// Build runs fn against a fresh builder and returns the resulting transaction.
func Build(id string, fn func(b *Builder)) *Transaction {
	b := &Builder{id: id}
	if fn != nil {
		fn(b)
	}
	return b.Transaction()
}

// NewBuilder returns an empty builder for the transaction id.
func NewBuilder(id string) *Builder {
	return &Builder{id: id}
}

// Transaction returns the transaction built so far.
func (b *Builder) Transaction() *Transaction {
	return New(b.id, b.edits, b.opts...)
}

// Date sets the transaction date.
func (b *Builder) Date(date time.Time) *Builder {
	b.opts = append(b.opts, WithDate(date))
	return b
}

// Author sets the transaction author.
func (b *Builder) Author(author string) *Builder {
	b.opts = append(b.opts, WithAuthor(author))
	return b
}

// Add appends an arbitrary edit.
func (b *Builder) Add(e model.Edit) *Builder {
	b.edits = append(b.edits, e)
	return b
}

// AddNode appends an AddNode edit for n.
func (b *Builder) AddNode(n model.Node) *Builder {
	return b.Add(model.AddNode{Node: n})
}

// AddSourceUnit adds a source unit with members relative to path.
func (b *Builder) AddSourceUnit(path string, members ...model.Node) *Builder {
	return b.AddNode(model.SourceUnit(path, members...))
}

// AddType adds a type with members relative to id.
func (b *Builder) AddType(id string, members ...model.Node) *Builder {
	return b.AddNode(model.Type(id, members...))
}

// AddFunction adds a function with the given body lines.
func (b *Builder) AddFunction(id string, body ...string) *Builder {
	return b.AddNode(model.Function(id, body...))
}

// AddVariable adds a variable with the given initializer lines.
func (b *Builder) AddVariable(id string, initializer ...string) *Builder {
	return b.AddNode(model.Variable(id, initializer...))
}

// RemoveNode removes id and its subtree.
func (b *Builder) RemoveNode(id string) *Builder {
	return b.Add(model.RemoveNode{ID: id})
}

// EditFunction changes the modifiers and body of a function.
func (b *Builder) EditFunction(id string, modifiers model.SetDelta, body ...model.LineEdit) *Builder {
	return b.Add(model.EditFunction{ID: id, Modifiers: modifiers, Body: body})
}

// EditVariable changes the modifiers and initializer of a variable.
func (b *Builder) EditVariable(id string, modifiers model.SetDelta, initializer ...model.LineEdit) *Builder {
	return b.Add(model.EditVariable{ID: id, Modifiers: modifiers, Initializer: initializer})
}

// EditType changes the modifiers and supertypes of a type.
func (b *Builder) EditType(id string, modifiers, supertypes model.SetDelta) *Builder {
	return b.Add(model.EditType{ID: id, Modifiers: modifiers, Supertypes: supertypes})
}
