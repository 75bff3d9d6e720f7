package archive

import (
	"archive/tar"
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/modelpack/modelpack/modelerr"
	"github.com/modelpack/modelpack/stream"
)

func newFinalizedStream(t *testing.T, content string) *stream.Stream {
	t.Helper()
	s, err := stream.New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.CreateModelDirectory(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMember("a.json", newFinalizedStream(t, `{"x":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMember("THEMODEL.pickle", newFinalizedStream(t, "root-object-bytes")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}

	rdr, err := r.OpenMember("a.json")
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(rdr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("got %q", got)
	}

	if _, err := r.OpenMember("missing.bin"); err == nil {
		t.Fatal("expected error for missing member")
	} else if _, ok := err.(modelerr.ErrFormat); !ok {
		t.Fatalf("expected ErrFormat, got %T", err)
	}
}

func TestOpenReaderRejectsZeroTopLevelDirectories(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "loose.txt", Size: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err := OpenReader(&buf)
	if _, ok := err.(modelerr.ErrFormat); !ok {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestOpenReaderRejectsMultipleTopLevelDirectories(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range []string{"model_a/", "model_b/"} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeDir}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err := OpenReader(&buf)
	if _, ok := err.(modelerr.ErrFormat); !ok {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestGzipWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewGzipWriter(&buf)
	if _, err := w.CreateModelDirectory(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMember("meta.version", newFinalizedStream(t, "3\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	rdr, err := r.OpenMember("meta.version")
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(rdr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "3\n" {
		t.Fatalf("got %q", got)
	}
}
