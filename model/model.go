// Package model defines the contract a model type must satisfy to be
// saved and loaded by this format, and the "nullify / restore" protocol
// that strips custom-serialized attributes from the root object before
// it is encoded with the opaque-object codec.
//
// Declaration plays the role the teacher's ManifestBuilder.References()
// plays for image manifests: an enumeration of what must be extracted
// before the root object can itself be serialized.
package model

import (
	"encoding/gob"
	"fmt"

	"github.com/modelpack/modelpack/modelerr"
)

// AttrSpec describes how one attribute is handled during save/load. A
// Transient entry (the spec's "(null, null)" variant) marks the
// attribute as discarded on save and restored as nil on load; a
// non-transient entry names the codec tag and filename used to persist
// it.
type AttrSpec struct {
	Transient bool
	CodecTag  string
	Filename  string
}

// Declaration maps attribute name to AttrSpec. Attribute names must be
// non-empty; filenames (for non-transient entries) must be filename-safe,
// unique, and not collide with the reserved root filename.
type Declaration map[string]AttrSpec

// RootFilename is the reserved name for the root object's own payload;
// no attribute may use it.
const RootFilename = "THEMODEL.pickle"

func isFilenameSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Validate checks the declaration against the schema in spec.md §3 and
// against the set of codec tags a caller considers available. It does
// not validate codec availability for transient entries, since they are
// never encoded.
func (d Declaration) Validate(availableCodecs map[string]bool) error {
	seenFilenames := make(map[string]bool, len(d))
	for attrName, spec := range d {
		if attrName == "" {
			return modelerr.ErrValidation{Reason: "attribute name must not be empty"}
		}
		if spec.Transient {
			continue
		}
		if spec.CodecTag == "" {
			return modelerr.ErrValidation{Reason: fmt.Sprintf("attribute %q: non-transient entry must name a codec tag", attrName)}
		}
		if !availableCodecs[spec.CodecTag] {
			return modelerr.ErrMissingCodec{Tag: spec.CodecTag}
		}
		if !isFilenameSafe(spec.Filename) {
			return modelerr.ErrValidation{Reason: fmt.Sprintf("attribute %q: filename %q is not filename-safe", attrName, spec.Filename)}
		}
		if spec.Filename == RootFilename {
			return modelerr.ErrValidation{Reason: fmt.Sprintf("attribute %q: filename collides with the reserved root filename", attrName)}
		}
		if seenFilenames[spec.Filename] {
			return modelerr.ErrValidation{Reason: fmt.Sprintf("duplicate attribute filename %q", spec.Filename)}
		}
		seenFilenames[spec.Filename] = true
	}
	return nil
}

// TransientSentinel is the placeholder value that replaces a
// custom-serialized attribute during save, guaranteeing the opaque
// root-object codec never captures a large framework-specific value.
// It is a distinguishable, comparable type rather than nil so that
// restore-time assertions can tell "never set" apart from "stripped by
// save."
type TransientSentinel struct{}

// Sentinel is the single shared TransientSentinel value.
var Sentinel = TransientSentinel{}

func init() {
	// A model's attribute store normally travels inside the root
	// object's own gob encoding, sentinels and all -- the opaque-object
	// codec has to be able to decode a TransientSentinel back out of an
	// interface{}-valued map entry without the caller registering it.
	gob.Register(TransientSentinel{})
}

// Model is the contract a model object must satisfy.
type Model interface {
	// CustomSerialization declares which attributes need custom codecs.
	CustomSerialization() Declaration

	// Predict runs the model's own inference logic.
	Predict(input interface{}) (interface{}, error)

	// ValidateModel checks the model's own invariants, independent of
	// the serialization format's invariants.
	ValidateModel() error

	// Attributes exposes the named attribute store so the save/load
	// orchestration can read and replace custom-serialized attributes
	// without reflecting over arbitrary exported fields.
	Attributes() AttributeStore
}

// PostDeserializeHook is implemented by models that need to run logic
// after a successful load, e.g. reconnecting a restored attribute to a
// cache invalidated by the round trip. Its absence means "no-op."
type PostDeserializeHook interface {
	PostDeserializeHook() error
}

// AttributeStore is the minimal named-value store the nullify/restore
// protocol needs: get, set, and a presence check, operating on whatever
// in-memory representation the concrete model type uses.
type AttributeStore interface {
	Get(name string) (interface{}, bool)
	Set(name string, value interface{})
}

// MapAttributeStore is a ready-made AttributeStore backed by a plain map,
// sufficient for most model types.
type MapAttributeStore map[string]interface{}

func (m MapAttributeStore) Get(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapAttributeStore) Set(name string, value interface{}) {
	m[name] = value
}
