// Package report renders decapsulation results as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"decap/analyze"
	"decap/internal/store"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
	}
}

// Field is a decapsulated field and the accessors that expose it.
type Field struct {
	ID          string     `json:"id" yaml:"id"`
	Transaction string     `json:"transaction,omitempty" yaml:"transaction,omitempty"`
	Accessors   []Accessor `json:"accessors" yaml:"accessors"`
}

// Accessor is a function that decapsulates a field.
type Accessor struct {
	ID          string `json:"id" yaml:"id"`
	Transaction string `json:"transaction,omitempty" yaml:"transaction,omitempty"`
}

// Fields flattens result into fields sorted by id. Fields without accessors
// are left out.
func Fields(result analyze.Result) []Field {
	out := []Field{}
	for _, id := range result.FieldIDs() {
		set := result[id]
		if set.Len() == 0 {
			continue
		}
		f := Field{ID: id, Transaction: set.Field.TransactionID}
		for _, a := range set.Accessors() {
			f.Accessors = append(f.Accessors, Accessor{ID: a.ID(), Transaction: a.TransactionID})
		}
		out = append(out, f)
	}
	return out
}

// FieldsFromEntries groups the entries of a saved run into fields. Entries
// must be ordered by field id, as store.RunEntries returns them.
func FieldsFromEntries(entries []store.Entry) []Field {
	out := []Field{}
	for _, e := range entries {
		if len(out) == 0 || out[len(out)-1].ID != e.FieldID {
			out = append(out, Field{ID: e.FieldID, Transaction: e.FieldTx})
		}
		last := &out[len(out)-1]
		last.Accessors = append(last.Accessors, Accessor{ID: e.AccessorID, Transaction: e.AccessorTx})
	}
	return out
}

// Write renders fields to w in format f.
func Write(w io.Writer, fields []Field, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(fields); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, fields)
	}
}

// Text writes one "- field (tx)" line per decapsulated field followed by an
// indented "  - accessor (tx)" line per accessor.
func Text(w io.Writer, result analyze.Result) error {
	return Write(w, Fields(result), FormatText)
}

// JSON writes result as a JSON array of fields.
func JSON(w io.Writer, result analyze.Result) error {
	return Write(w, Fields(result), FormatJSON)
}

// YAML writes result as a YAML sequence of fields.
func YAML(w io.Writer, result analyze.Result) error {
	return Write(w, Fields(result), FormatYAML)
}

func writeText(w io.Writer, fields []Field) error {
	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "- %s\n", label(f.ID, f.Transaction)); err != nil {
			return err
		}
		for _, a := range f.Accessors {
			if _, err := fmt.Fprintf(w, "  - %s\n", label(a.ID, a.Transaction)); err != nil {
				return err
			}
		}
	}
	return nil
}

func label(id, tx string) string {
	if tx == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", id, tx)
}
