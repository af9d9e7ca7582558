package models

import (
	"errors"
	"strings"
)

// ErrNotFound indicates a record is missing from a store.
var ErrNotFound = errors.New("not found")

// ValidationError is a human-readable problem keyed by the offending entity.
type ValidationError struct {
	Entity  string `json:"entity"`
	Message string `json:"message"`
}

// ValidationErrors collects every problem found before a calculation runs.
type ValidationErrors []ValidationError

// Add appends a problem for the given entity.
func (v *ValidationErrors) Add(entity, message string) {
	*v = append(*v, ValidationError{Entity: entity, Message: message})
}

// Err returns nil when no problem was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Entity+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
