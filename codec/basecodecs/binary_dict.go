package basecodecs

import (
	"io"

	ugorji "github.com/ugorji/go/codec"

	"github.com/modelpack/modelpack/codec"
)

// BinaryDict codecs a map-shaped value with CBOR, via ugorji/go/codec --
// a compact binary notation for dictionary-like attributes, as opposed to
// the arbitrary-graph opaque-object tag.
type BinaryDict struct{}

func (BinaryDict) Tag() string { return "binary-dict" }

func cborHandle() *ugorji.CborHandle {
	h := &ugorji.CborHandle{}
	h.Canonical = true
	return h
}

func (BinaryDict) Encode(w io.Writer, v interface{}) error {
	return ugorji.NewEncoder(w, cborHandle()).Encode(v)
}

func (BinaryDict) Decode(r io.Reader) (interface{}, error) {
	var v map[string]interface{}
	if err := ugorji.NewDecoder(r, cborHandle()).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func init() {
	if err := codec.DefaultRegistry.Register(BinaryDict{}); err != nil {
		panic(err)
	}
}
