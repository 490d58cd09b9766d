// Package transaction provides Transaction, an immutable named batch of
// structural edits representing one unit of project history.
package transaction

import (
	"time"

	"decap/model"
)

// UnknownAuthor is the author of a transaction built without one.
const UnknownAuthor = "<unknown-author>"

// Transaction is an ordered batch of edits plus its metadata. It is immutable
// once built; Edits returns a copy of the edit list.
type Transaction struct {
	id     string
	date   time.Time
	author string
	edits  []model.Edit
}

// Option configures a Transaction under construction.
type Option func(*Transaction)

// WithDate sets the transaction date. The default is the construction time.
func WithDate(date time.Time) Option {
	return func(t *Transaction) { t.date = date }
}

// WithAuthor sets the transaction author. The default is UnknownAuthor.
func WithAuthor(author string) Option {
	return func(t *Transaction) { t.author = author }
}

// New builds a transaction. An empty edit list is legal.
func New(id string, edits []model.Edit, opts ...Option) *Transaction {
	t := &Transaction{
		id:     id,
		date:   time.Now(),
		author: UnknownAuthor,
		edits:  append([]model.Edit(nil), edits...),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the caller-assigned transaction id.
func (t *Transaction) ID() string { return t.id }

// Date returns when the transaction happened.
func (t *Transaction) Date() time.Time { return t.date }

// Author returns who made the transaction.
func (t *Transaction) Author() string { return t.author }

// Edits returns a copy of the ordered edit list.
func (t *Transaction) Edits() []model.Edit {
	return append([]model.Edit(nil), t.edits...)
}

// Len returns the number of edits.
func (t *Transaction) Len() int { return len(t.edits) }
