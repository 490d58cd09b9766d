package model

import "fmt"

// DuplicateNodeError indicates an added node whose id is already taken.
type DuplicateNodeError struct {
	ID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node: %s", e.ID)
}

// MissingParentError indicates an added node whose parent does not exist or
// cannot contain a node of its kind.
type MissingParentError struct {
	ID       string
	Kind     Kind
	ParentID string
}

func (e *MissingParentError) Error() string {
	if e.ParentID == "" {
		return fmt.Sprintf("%s %s has no container", e.Kind, e.ID)
	}
	return fmt.Sprintf("missing parent %s for %s %s", e.ParentID, e.Kind, e.ID)
}

// UnknownNodeError indicates an edit whose target does not exist, or exists
// with a different kind than the edit expects.
type UnknownNodeError struct {
	ID   string
	Kind Kind // expected kind, empty when any kind will do
}

func (e *UnknownNodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("unknown node: %s", e.ID)
	}
	return fmt.Sprintf("unknown %s: %s", e.Kind, e.ID)
}
