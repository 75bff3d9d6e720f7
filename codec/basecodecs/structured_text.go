package basecodecs

import (
	"encoding/json"
	"io"

	"github.com/modelpack/modelpack/codec"
)

// StructuredText codecs a value as UTF-8 JSON, the same library the
// manifest itself is marshaled with.
type StructuredText struct{}

func (StructuredText) Tag() string { return "structured-text" }

func (StructuredText) Encode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

func (StructuredText) Decode(r io.Reader) (interface{}, error) {
	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func init() {
	if err := codec.DefaultRegistry.Register(StructuredText{}); err != nil {
		panic(err)
	}
}
