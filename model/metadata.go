package model

import "github.com/modelpack/modelpack/modelerr"

// Metadata is the model's set-once-then-immutable metadata mapping
// (spec.md §9): a sum type with an unexported discriminant, following
// the teacher's Versioned/typed-wrapper convention (manifest/versioned.go)
// rather than a nil-checked map that can be silently overwritten.
type Metadata struct {
	set   bool
	value map[string]interface{}
}

// UnsetMetadata is the zero-value "no metadata" state.
var UnsetMetadata = Metadata{}

// NewMetadata returns a Set metadata value.
func NewMetadata(value map[string]interface{}) Metadata {
	return Metadata{set: true, value: value}
}

// IsSet reports whether metadata has been set.
func (m Metadata) IsSet() bool { return m.set }

// Value returns the metadata mapping. Callers must check IsSet first;
// calling Value on an unset Metadata returns nil.
func (m Metadata) Value() map[string]interface{} { return m.value }

// Set transitions Unset to Set(value). Calling it on an already-set
// Metadata is an error: the discipline is set-once, never mutated
// thereafter.
func (m *Metadata) Set(value map[string]interface{}) error {
	if m.set {
		return modelerr.ErrInvalidState{Reason: "metadata has already been set"}
	}
	m.set = true
	m.value = value
	return nil
}
