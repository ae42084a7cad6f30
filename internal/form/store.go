// Package form holds keyed string form state with a closed schema.
//
// The set of recognized field names is fixed when the Store is built. Values
// can be overwritten and reset, but keys are never added or removed.
package form

import (
	"fmt"
	"maps"
	"sync"

	dErrors "addressbook/pkg/domain-errors"
)

// FieldSet maps field names to their current value.
type FieldSet map[string]string

// ErrUnknownField is returned (wrapped) by Set for names outside the schema.
var ErrUnknownField = dErrors.New(dErrors.CodeValidation, "unknown field")

// Store is the mutable form state of one workflow.
type Store struct {
	mu       sync.RWMutex
	defaults FieldSet
	values   FieldSet
}

// New builds a Store whose schema and reset values are a copy of defaults.
func New(defaults FieldSet) *Store {
	return &Store{
		defaults: maps.Clone(orEmpty(defaults)),
		values:   maps.Clone(orEmpty(defaults)),
	}
}

// Set overwrites one field. Unknown names are rejected and leave the store unchanged.
func (s *Store) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[name]; !ok {
		return dErrors.Wrap(ErrUnknownField, dErrors.CodeValidation, fmt.Sprintf("unknown field %q", name))
	}
	s.values[name] = value
	return nil
}

// Get returns the value of name, or "" when the name is not recognized.
func (s *Store) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// All returns a copy of the current values.
func (s *Store) All() FieldSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Reset restores the values captured at construction.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = maps.Clone(s.defaults)
}

func orEmpty(f FieldSet) FieldSet {
	if f == nil {
		return FieldSet{}
	}
	return f
}
