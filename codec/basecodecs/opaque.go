// Package basecodecs implements the base codec set named in spec.md §4.C
// and registers them into codec.DefaultRegistry from init(), exactly as
// manifest/schema1, manifest/schema2 and manifest/ocischema each
// self-register their media type from their own init() function.
package basecodecs

import (
	"encoding/gob"
	"io"

	"github.com/modelpack/modelpack/codec"
)

// OpaqueObject codecs an arbitrary Go value as a gob object graph. This is
// the fallback codec for attributes with no more specific structure: gob
// already walks arbitrary exported struct fields, slices and maps without
// a schema, which is the same "works for anything, don't ask what it is"
// contract spec.md gives this tag. No third-party graph codec in the pack
// offers that without requiring the caller to declare a schema up front
// (the CBOR and protobuf libraries present both want a known shape), so
// this one entry stays on the standard library.
type OpaqueObject struct{}

func (OpaqueObject) Tag() string { return "opaque-object" }

func (OpaqueObject) Encode(w io.Writer, v interface{}) error {
	return gob.NewEncoder(w).Encode(v)
}

func (OpaqueObject) Decode(r io.Reader) (interface{}, error) {
	var v interface{}
	if err := gob.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInto decodes into a caller-supplied pointer, for callers that
// know the concrete type ahead of time (the manifest's own model
// descriptor, in particular, which always encodes with this codec).
func (OpaqueObject) DecodeInto(r io.Reader, dst interface{}) error {
	return gob.NewDecoder(r).Decode(dst)
}

func init() {
	if err := codec.DefaultRegistry.Register(OpaqueObject{}); err != nil {
		panic(err)
	}
}
