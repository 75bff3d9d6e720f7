//go:build modelpack_hierarchical

package basecodecs

import (
	"archive/tar"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/spf13/afero"

	"github.com/modelpack/modelpack/codec"
)

// HierarchicalBinary codecs a directory tree for frameworks that insist on
// a filesystem handle rather than a single blob (some model serializers
// only know how to save_model(path)). The tree is built on an in-memory
// afero filesystem so no file ever touches disk, then framed as a tar
// stream for the payload.
//
// v must be an afero.Fs whose root holds exactly the files to persist;
// Decode returns one, mounted on a fresh in-memory filesystem.
type HierarchicalBinary struct{}

func (HierarchicalBinary) Tag() string { return "hierarchical-binary" }

func (HierarchicalBinary) Encode(w io.Writer, v interface{}) error {
	fs, ok := v.(afero.Fs)
	if !ok {
		return fmt.Errorf("hierarchical-binary codec: unsupported value type %T", v)
	}
	tw := tar.NewWriter(w)
	err := afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		hdr := &tar.Header{Name: path, Size: int64(len(data)), Mode: 0644}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

func (HierarchicalBinary) Decode(r io.Reader) (interface{}, error) {
	fs := afero.NewMemMapFs()
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		data, err := ioutil.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fs, hdr.Name, data, 0644); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func init() {
	if err := codec.DefaultRegistry.Register(HierarchicalBinary{}); err != nil {
		panic(err)
	}
}
