package basecodecs

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/gogo/protobuf/proto"

	"github.com/modelpack/modelpack/codec"
)

// tensorBlob is the on-disk framing for the disk-backed-binary tag: a flat
// byte buffer plus enough shape metadata to reconstruct it, protobuf-
// encoded. It implements proto.Message by hand (Reset/String/ProtoMessage)
// rather than through generated code, the same reflection-based style
// gogo/protobuf supports for hand-written message structs.
type tensorBlob struct {
	Shape []int64 `protobuf:"varint,1,rep,name=shape"`
	Dtype string  `protobuf:"bytes,2,opt,name=dtype"`
	Data  []byte  `protobuf:"bytes,3,opt,name=data"`
}

func (m *tensorBlob) Reset()         { *m = tensorBlob{} }
func (m *tensorBlob) String() string { return fmt.Sprintf("tensorBlob(dtype=%s, shape=%v)", m.Dtype, m.Shape) }
func (*tensorBlob) ProtoMessage()    {}

// DiskBackedBinary holds a raw byte buffer and the minimal metadata needed
// to interpret it, an array-friendly binary blob in spec.md's terms.
type DiskBackedBinary struct {
	Shape []int64
	Dtype string
	Data  []byte
}

type diskBackedBinaryCodec struct{}

func (diskBackedBinaryCodec) Tag() string { return "disk-backed-binary" }

func (diskBackedBinaryCodec) Encode(w io.Writer, v interface{}) error {
	blob, ok := v.(DiskBackedBinary)
	if !ok {
		if p, ok := v.(*DiskBackedBinary); ok {
			blob = *p
		} else {
			return fmt.Errorf("disk-backed-binary codec: unsupported value type %T", v)
		}
	}
	msg := &tensorBlob{Shape: blob.Shape, Dtype: blob.Dtype, Data: blob.Data}
	out, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func (diskBackedBinaryCodec) Decode(r io.Reader) (interface{}, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var msg tensorBlob
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return DiskBackedBinary{Shape: msg.Shape, Dtype: msg.Dtype, Data: msg.Data}, nil
}

func init() {
	if err := codec.DefaultRegistry.Register(diskBackedBinaryCodec{}); err != nil {
		panic(err)
	}
}
