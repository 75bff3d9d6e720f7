package basecodecs

import (
	"io"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"

	"github.com/modelpack/modelpack/codec"
)

// LabeledDict codecs a map-shaped value as YAML, the teacher's own config
// serialization library repurposed here as a human-inspectable, tagged
// binary-safe mapping dump.
type LabeledDict struct{}

func (LabeledDict) Tag() string { return "labeled-dict" }

func (LabeledDict) Encode(w io.Writer, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func (LabeledDict) Decode(r io.Reader) (interface{}, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var v map[string]interface{}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func init() {
	if err := codec.DefaultRegistry.Register(LabeledDict{}); err != nil {
		panic(err)
	}
}
