// Package analyze folds an ordered transaction history through the structural
// model and accumulates the fields each transaction decapsulates.
package analyze

import (
	"fmt"
	"log/slog"

	"decap/detect"
	"decap/internal/logging"
	"decap/model"
	"decap/transaction"
)

// Analyzer owns a structural model and the result accumulated over the
// transactions applied to it so far. It is not safe for concurrent use;
// independent analyses need independent analyzers.
type Analyzer struct {
	project  *model.Project
	result   Result
	addedIn  map[string]string // node id -> transaction that added it
	applied  int
	detector *detect.Detector
	logger   *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDetector replaces the default detector.
func WithDetector(d *detect.Detector) Option {
	return func(a *Analyzer) {
		if d != nil {
			a.detector = d
		}
	}
}

// New returns an analyzer over an empty project.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		project:  model.New(),
		result:   make(Result),
		addedIn:  make(map[string]string),
		detector: detect.NewDetector(),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze applies txs in order to an empty project and returns the fields
// they decapsulate. On the first failing transaction it returns the error
// and no result.
func Analyze(txs []*transaction.Transaction, opts ...Option) (Result, error) {
	a := New(opts...)
	for _, tx := range txs {
		if err := a.Apply(tx); err != nil {
			return nil, err
		}
	}
	a.logger.Info("analysis complete",
		"transactions", a.applied,
		"nodes", a.project.Len(),
		"decapsulated", len(a.result))
	return a.result, nil
}

// Apply applies one transaction. Its edits are applied to a copy of the
// current model, so a failing edit leaves both the model and the result
// as they were.
func (a *Analyzer) Apply(tx *transaction.Transaction) error {
	before := a.project
	after := before.Clone()
	edits := tx.Edits()
	for i, e := range edits {
		if err := after.Apply(e); err != nil {
			return fmt.Errorf("applying transaction %s: edit %d (%s): %w", tx.ID(), i, e.TargetID(), err)
		}
	}

	events := a.detector.Detect(before, after, tx)
	a.trackOrigins(tx.ID(), edits)

	for _, ev := range events {
		switch ev.Kind {
		case detect.NewDecapsulation:
			a.record(tx.ID(), after, ev)
		case detect.FieldRemoved:
			if _, ok := a.result[ev.FieldID]; ok {
				delete(a.result, ev.FieldID)
				a.logger.Debug("decapsulation retracted", "tx", tx.ID(), "field", ev.FieldID)
			}
		}
	}

	a.project = after
	a.applied++
	a.logger.Debug("transaction applied",
		"tx", tx.ID(),
		"author", tx.Author(),
		"edits", len(edits),
		"events", len(events))
	return nil
}

func (a *Analyzer) record(txID string, after *model.Project, ev detect.Event) {
	set, ok := a.result[ev.FieldID]
	if !ok {
		field, found := after.Find(ev.FieldID)
		if !found {
			a.logger.Warn("decapsulated field missing from model", "tx", txID, "field", ev.FieldID)
			return
		}
		set = NewDecapsulationSet(Ref{Node: field, TransactionID: a.addedIn[ev.FieldID]})
		a.result[ev.FieldID] = set
	}
	if set.AddAccessor(Ref{Node: ev.Accessor, TransactionID: txID}) {
		a.logger.Debug("decapsulation found", "tx", txID, "field", ev.FieldID, "accessor", ev.Accessor.ID)
	}
}

// trackOrigins remembers which transaction added each live node.
func (a *Analyzer) trackOrigins(txID string, edits []model.Edit) {
	for _, edit := range edits {
		switch e := edit.(type) {
		case model.AddNode:
			for _, n := range e.Node.Flatten() {
				a.addedIn[n.ID] = txID
			}
		case model.RemoveNode:
			for id := range a.addedIn {
				if id == e.ID || model.IsDescendant(id, e.ID) {
					delete(a.addedIn, id)
				}
			}
		}
	}
}

// Result returns a copy of the result accumulated so far.
func (a *Analyzer) Result() Result {
	return a.result.Clone()
}

// Project returns a copy of the current model.
func (a *Analyzer) Project() *model.Project {
	return a.project.Clone()
}

// Applied returns the number of transactions applied.
func (a *Analyzer) Applied() int {
	return a.applied
}
