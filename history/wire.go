package history

import (
	"fmt"
	"strings"
	"time"

	"decap/model"
	"decap/transaction"
)

// File is the on-disk form of a transaction history.
type File struct {
	Transactions []Transaction `json:"transactions" yaml:"transactions"`
}

// Transaction is the serialized form of a transaction.
type Transaction struct {
	ID     string    `json:"id" yaml:"id"`
	Date   time.Time `json:"date" yaml:"date"`
	Author string    `json:"author,omitempty" yaml:"author,omitempty"`
	Edits  []Edit    `json:"edits,omitempty" yaml:"edits,omitempty"`
}

// Edit is the serialized form of an edit. Exactly one field is set.
type Edit struct {
	Add          *Node         `json:"add,omitempty" yaml:"add,omitempty"`
	Remove       string        `json:"remove,omitempty" yaml:"remove,omitempty"`
	EditFunction *FunctionEdit `json:"editFunction,omitempty" yaml:"editFunction,omitempty"`
	EditVariable *VariableEdit `json:"editVariable,omitempty" yaml:"editVariable,omitempty"`
	EditType     *TypeEdit     `json:"editType,omitempty" yaml:"editType,omitempty"`
}

// Node is the serialized form of a node tree. Member ids are relative to
// their container.
type Node struct {
	Kind        model.Kind `json:"kind" yaml:"kind"`
	ID          string     `json:"id" yaml:"id"`
	Modifiers   []string   `json:"modifiers,omitempty" yaml:"modifiers,omitempty,flow"`
	Parameters  []string   `json:"parameters,omitempty" yaml:"parameters,omitempty,flow"`
	Body        []string   `json:"body,omitempty" yaml:"body,omitempty"`
	Initializer []string   `json:"initializer,omitempty" yaml:"initializer,omitempty"`
	Supertypes  []string   `json:"supertypes,omitempty" yaml:"supertypes,omitempty,flow"`
	Members     []Node     `json:"members,omitempty" yaml:"members,omitempty"`
}

// FunctionEdit is the serialized form of model.EditFunction.
type FunctionEdit struct {
	ID        string           `json:"id" yaml:"id"`
	Modifiers model.SetDelta   `json:"modifiers" yaml:"modifiers,omitempty"`
	Body      []model.LineEdit `json:"body,omitempty" yaml:"body,omitempty"`
}

// VariableEdit is the serialized form of model.EditVariable.
type VariableEdit struct {
	ID          string           `json:"id" yaml:"id"`
	Modifiers   model.SetDelta   `json:"modifiers" yaml:"modifiers,omitempty"`
	Initializer []model.LineEdit `json:"initializer,omitempty" yaml:"initializer,omitempty"`
}

// TypeEdit is the serialized form of model.EditType.
type TypeEdit struct {
	ID         string         `json:"id" yaml:"id"`
	Modifiers  model.SetDelta `json:"modifiers" yaml:"modifiers,omitempty"`
	Supertypes model.SetDelta `json:"supertypes" yaml:"supertypes,omitempty"`
}

// FromTransaction converts tx to its serialized form.
func FromTransaction(tx *transaction.Transaction) (Transaction, error) {
	out := Transaction{
		ID:     tx.ID(),
		Date:   tx.Date().UTC(),
		Author: tx.Author(),
	}
	for i, e := range tx.Edits() {
		we, err := fromEdit(e)
		if err != nil {
			return Transaction{}, fmt.Errorf("transaction %s: edit %d: %w", tx.ID(), i, err)
		}
		out.Edits = append(out.Edits, we)
	}
	return out, nil
}

// ToTransaction converts a serialized transaction back.
func (t Transaction) ToTransaction() (*transaction.Transaction, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("transaction has no id")
	}
	edits := make([]model.Edit, 0, len(t.Edits))
	for i, we := range t.Edits {
		e, err := we.toEdit()
		if err != nil {
			return nil, fmt.Errorf("transaction %s: edit %d: %w", t.ID, i, err)
		}
		edits = append(edits, e)
	}

	var opts []transaction.Option
	if !t.Date.IsZero() {
		opts = append(opts, transaction.WithDate(t.Date))
	}
	if t.Author != "" {
		opts = append(opts, transaction.WithAuthor(t.Author))
	}
	return transaction.New(t.ID, edits, opts...), nil
}

func fromEdit(e model.Edit) (Edit, error) {
	switch e := e.(type) {
	case model.AddNode:
		n, err := fromNode(e.Node, "")
		if err != nil {
			return Edit{}, err
		}
		return Edit{Add: &n}, nil
	case model.RemoveNode:
		return Edit{Remove: e.ID}, nil
	case model.EditFunction:
		return Edit{EditFunction: &FunctionEdit{ID: e.ID, Modifiers: e.Modifiers, Body: e.Body}}, nil
	case model.EditVariable:
		return Edit{EditVariable: &VariableEdit{ID: e.ID, Modifiers: e.Modifiers, Initializer: e.Initializer}}, nil
	case model.EditType:
		return Edit{EditType: &TypeEdit{ID: e.ID, Modifiers: e.Modifiers, Supertypes: e.Supertypes}}, nil
	default:
		return Edit{}, fmt.Errorf("unsupported edit %T", e)
	}
}

func (we Edit) toEdit() (model.Edit, error) {
	var (
		edit model.Edit
		set  int
	)
	if we.Add != nil {
		set++
		n, err := we.Add.toNode("")
		if err != nil {
			return nil, err
		}
		edit = model.AddNode{Node: n}
	}
	if we.Remove != "" {
		set++
		edit = model.RemoveNode{ID: we.Remove}
	}
	if we.EditFunction != nil {
		set++
		edit = model.EditFunction{ID: we.EditFunction.ID, Modifiers: we.EditFunction.Modifiers, Body: we.EditFunction.Body}
	}
	if we.EditVariable != nil {
		set++
		edit = model.EditVariable{ID: we.EditVariable.ID, Modifiers: we.EditVariable.Modifiers, Initializer: we.EditVariable.Initializer}
	}
	if we.EditType != nil {
		set++
		edit = model.EditType{ID: we.EditType.ID, Modifiers: we.EditType.Modifiers, Supertypes: we.EditType.Supertypes}
	}
	if set != 1 {
		return nil, fmt.Errorf("expected exactly one of add, remove, editFunction, editVariable, editType; got %d", set)
	}
	return edit, nil
}

// fromNode serializes n with its id made relative to parent.
func fromNode(n model.Node, parent string) (Node, error) {
	id := n.ID
	if parent != "" {
		rel, ok := strings.CutPrefix(n.ID, parent+model.Separator)
		if !ok {
			return Node{}, fmt.Errorf("member %s is not inside %s", n.ID, parent)
		}
		id = rel
	}
	out := Node{
		Kind:        n.Kind,
		ID:          id,
		Modifiers:   n.Modifiers,
		Parameters:  n.Parameters,
		Body:        n.Body,
		Initializer: n.Initializer,
		Supertypes:  n.Supertypes,
	}
	for _, m := range n.Members {
		wm, err := fromNode(m, n.ID)
		if err != nil {
			return Node{}, err
		}
		out.Members = append(out.Members, wm)
	}
	return out, nil
}

// toNode rebuilds a node tree, qualifying member ids with parent.
func (wn Node) toNode(parent string) (model.Node, error) {
	if !wn.Kind.IsValid() {
		return model.Node{}, fmt.Errorf("node %q has unknown kind %q", wn.ID, wn.Kind)
	}
	if wn.ID == "" {
		return model.Node{}, fmt.Errorf("%s node has no id", wn.Kind)
	}
	id := model.Join(parent, wn.ID)
	out := model.Node{
		ID:          id,
		Kind:        wn.Kind,
		Modifiers:   model.NewModifiers(wn.Modifiers...),
		Parameters:  lines(wn.Parameters),
		Body:        lines(wn.Body),
		Initializer: lines(wn.Initializer),
		Supertypes:  model.NewModifiers(wn.Supertypes...),
	}
	for _, wm := range wn.Members {
		m, err := wm.toNode(id)
		if err != nil {
			return model.Node{}, err
		}
		out.Members = append(out.Members, m)
	}
	return out, nil
}

// lines normalizes an empty list to nil, as the model constructors do.
func lines(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
