//go:build modelpack_hierarchical

package basecodecs

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/modelpack/modelpack/codec"
)

// NeuralModelValue is the payload shape for the neural-model tags: a
// directory tree (weights, checkpoints, whatever the framework wants)
// plus an optional class map for custom layer/loss classes the framework
// can't resolve by name alone.
type NeuralModelValue struct {
	Tree    afero.Fs
	Classes map[string]string // class name -> fully qualified identifier
}

type neuralModelFrame struct {
	Tree    []byte // tar-framed, see HierarchicalBinary
	Classes map[string]string
}

// NeuralModel layers hierarchical-binary (for the weight tree) under
// opaque-object (for the class map), exactly as spec.md describes this
// tag as a composition of the two rather than its own wire format.
type NeuralModel struct{ tag string }

func (c NeuralModel) Tag() string { return c.tag }

func (c NeuralModel) Encode(w io.Writer, v interface{}) error {
	val, ok := v.(NeuralModelValue)
	if !ok {
		return fmt.Errorf("%s codec: unsupported value type %T", c.tag, v)
	}
	var treeBuf bytes.Buffer
	if err := (HierarchicalBinary{}).Encode(&treeBuf, val.Tree); err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(neuralModelFrame{Tree: treeBuf.Bytes(), Classes: val.Classes})
}

func (c NeuralModel) Decode(r io.Reader) (interface{}, error) {
	var frame neuralModelFrame
	if err := gob.NewDecoder(r).Decode(&frame); err != nil {
		return nil, err
	}
	tree, err := (HierarchicalBinary{}).Decode(bytes.NewReader(frame.Tree))
	if err != nil {
		return nil, err
	}
	fs, ok := tree.(afero.Fs)
	if !ok {
		return nil, fmt.Errorf("%s codec: decoded tree is not a filesystem", c.tag)
	}
	return NeuralModelValue{Tree: fs, Classes: frame.Classes}, nil
}

func init() {
	if err := codec.DefaultRegistry.RegisterMany(
		NeuralModel{tag: "neural-model"},
		NeuralModel{tag: "neural-model-with-custom-classes"},
	); err != nil {
		panic(err)
	}
}
