package model

import "github.com/modelpack/modelpack/modelerr"

// Descriptor is one payload's entry in the manifest (spec.md §3's
// "stream descriptor"): the filename it was written under, its nonce and
// MAC, and the codec tag used to encode it.
type Descriptor struct {
	Filename   string
	Nonce      string
	MAC        string
	Serializer string
}

// EncodeAttr is supplied by the caller (manifestv3) to turn one
// attribute's value into a written payload and its resulting descriptor.
// model itself does not know how to reach the codec registry or the
// archive writer; it only owns the sentinel bookkeeping around the call.
type EncodeAttr func(attrName string, spec AttrSpec, value interface{}) (Descriptor, error)

// Nullify performs the save-time protocol from spec.md §4.F step 2: for
// each declared attribute, either assert it holds a normal (non-sentinel)
// value and replace it with the transient sentinel, or encode it via
// encodeAttr and then replace it with the sentinel. It returns the
// descriptor for every non-transient attribute.
func Nullify(m Model, decl Declaration, encodeAttr EncodeAttr) (map[string]Descriptor, error) {
	attrs := m.Attributes()
	descriptors := make(map[string]Descriptor)

	for attrName, spec := range decl {
		value, ok := attrs.Get(attrName)
		if !ok {
			return nil, modelerr.ErrValidation{Reason: "declared attribute is missing from the model: " + attrName}
		}
		if _, alreadyStripped := value.(TransientSentinel); alreadyStripped {
			return nil, modelerr.ErrInvariantViolation{Reason: "attribute already holds the transient sentinel before save: " + attrName}
		}

		if spec.Transient {
			attrs.Set(attrName, Sentinel)
			continue
		}

		desc, err := encodeAttr(attrName, spec, value)
		if err != nil {
			return nil, err
		}
		descriptors[attrName] = desc
		attrs.Set(attrName, Sentinel)
	}

	return descriptors, nil
}

// AssertNullified checks spec.md §4.F step 3's precondition: every
// declared attribute must be the transient sentinel before the naked
// model is serialized.
func AssertNullified(m Model, decl Declaration) error {
	attrs := m.Attributes()
	for attrName := range decl {
		value, ok := attrs.Get(attrName)
		if !ok {
			return modelerr.ErrInvariantViolation{Reason: "declared attribute missing before root serialization: " + attrName}
		}
		if _, isSentinel := value.(TransientSentinel); !isSentinel {
			return modelerr.ErrInvariantViolation{Reason: "declared attribute is not the transient sentinel before root serialization: " + attrName}
		}
	}
	return nil
}

// DecodeAttr is supplied by the caller to turn one attribute's
// descriptor back into a value, after the payload's MAC has already been
// verified.
type DecodeAttr func(attrName string, spec AttrSpec, desc Descriptor) (interface{}, error)

// Restore performs the load-time protocol from spec.md §4.F steps 5-6:
// for each declared attribute on the freshly loaded root object, assert
// it currently holds the transient sentinel, then either set it to nil
// (transient entries) or decode and set its real value.
func Restore(m Model, decl Declaration, descriptors map[string]Descriptor, decodeAttr DecodeAttr) error {
	attrs := m.Attributes()
	for attrName, spec := range decl {
		value, ok := attrs.Get(attrName)
		if !ok {
			return modelerr.ErrFormat{Reason: "declared attribute missing on loaded root object: " + attrName}
		}
		if _, isSentinel := value.(TransientSentinel); !isSentinel {
			return modelerr.ErrInvariantViolation{Reason: "loaded root object does not hold the transient sentinel for attribute: " + attrName}
		}

		if spec.Transient {
			attrs.Set(attrName, nil)
			continue
		}

		desc, ok := descriptors[attrName]
		if !ok {
			return modelerr.ErrFormat{Reason: "manifest has no descriptor for declared attribute: " + attrName}
		}
		value, err := decodeAttr(attrName, spec, desc)
		if err != nil {
			return err
		}
		attrs.Set(attrName, value)
	}
	return nil
}
