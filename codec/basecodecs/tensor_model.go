//go:build modelpack_hierarchical

package basecodecs

import (
	"io"

	"github.com/modelpack/modelpack/codec"
)

// TensorModel codecs a single framework-native blob (a whole-model or
// whole-state save that some tensor frameworks only know how to produce
// as one flat buffer), reusing disk-backed-binary's protobuf framing
// since the wire shape is identical: shape metadata plus raw bytes.
type TensorModel struct{ tag string }

func (c TensorModel) Tag() string { return c.tag }

func (c TensorModel) Encode(w io.Writer, v interface{}) error {
	return diskBackedBinaryCodec{}.Encode(w, v)
}

func (c TensorModel) Decode(r io.Reader) (interface{}, error) {
	return diskBackedBinaryCodec{}.Decode(r)
}

func init() {
	if err := codec.DefaultRegistry.RegisterMany(
		TensorModel{tag: "tensor-model"},
		TensorModel{tag: "tensor-state"},
	); err != nil {
		panic(err)
	}
}
