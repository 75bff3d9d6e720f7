// Package archive implements the tar-based container format: a single
// top-level directory holding the manifest, the root object payload, and
// zero or more attribute payloads.
//
// Grounded on testutil/tarfile.go's tar-writer loop and buffer-then-seek
// idiom for obtaining a payload's size before writing its header, and on
// bytes.go/readseekcloser.go's ReadSeekCloser contract for the payload
// handles passed to WriteMember.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/google/uuid"

	"github.com/modelpack/modelpack/modelerr"
)

// ReadSeekCloser is the contract a payload handle must satisfy to be
// written into the archive: the writer seeks to the end to learn the
// size, rewinds, copies the bytes, then closes the handle. A
// *stream.Stream satisfies this once finalized.
type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// memberBuffer adapts a plain byte slice into a ReadSeekCloser, for
// members like meta.version and meta.json.asc whose integrity comes from
// the signature rather than a per-stream MAC and so need no
// stream.Stream wrapping.
type memberBuffer struct {
	*bytes.Reader
}

func (memberBuffer) Close() error { return nil }

// NewMemberFromBytes wraps data as a ReadSeekCloser suitable for
// WriteMember.
func NewMemberFromBytes(data []byte) ReadSeekCloser {
	return memberBuffer{bytes.NewReader(data)}
}

// Writer builds a model archive: exactly one top-level directory
// containing the manifest and payload members.
type Writer struct {
	tw        *tar.Writer
	gz        *gzip.Writer
	dirName   string
	dirWasSet bool
}

// NewWriter wraps an already-open tar stream. Use this when the caller
// supplies its own binary stream rather than a file path.
func NewWriter(w io.Writer) *Writer {
	return &Writer{tw: tar.NewWriter(w)}
}

// NewGzipWriter wraps w in gzip compression, per spec.md §6: archives
// written via the file-path writer are gzip-compressed.
func NewGzipWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	return &Writer{tw: tar.NewWriter(gz), gz: gz}
}

// CreateModelDirectory invents a name of the form "model_<32-hex>",
// writes its directory entry, and records it as the archive's single
// top-level directory.
func (w *Writer) CreateModelDirectory() (string, error) {
	if w.dirWasSet {
		return "", modelerr.ErrInvalidState{Reason: "model directory already created for this archive"}
	}
	id := uuid.New()
	name := "model_" + strings.ReplaceAll(id.String(), "-", "")
	hdr := &tar.Header{
		Name:     name + "/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return "", err
	}
	w.dirName = name
	w.dirWasSet = true
	return name, nil
}

// WriteMember seeks s to its end to learn its size, rewinds it, writes
// the tar header and bytes under the model directory, then closes s. The
// stream is owned by the writer after this call returns.
func (w *Writer) WriteMember(name string, s ReadSeekCloser) error {
	if !w.dirWasSet {
		return modelerr.ErrInvalidState{Reason: "write_member called before create_model_directory"}
	}
	size, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:     w.dirName + "/" + name,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     size,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(w.tw, s); err != nil {
		return err
	}
	return s.Close()
}

// Close finalizes the tar stream (and the gzip wrapper, if any).
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		return err
	}
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// Reader exposes a previously written archive's single model directory
// as a set of named members.
type Reader struct {
	dirName string
	members map[string][]byte
}

var gzipMagic = []byte{0x1f, 0x8b}

// OpenReader reads r fully, transparently decompressing gzip if present,
// and indexes every regular file by its path within the archive. It
// enforces invariant I1: exactly one top-level directory.
func OpenReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}

	var src io.Reader = br
	if len(peeked) == 2 && peeked[0] == gzipMagic[0] && peeked[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, modelerr.ErrFormat{Reason: "invalid gzip stream: " + err.Error()}
		}
		defer gz.Close()
		src = gz
	}

	tr := tar.NewReader(src)
	members := make(map[string][]byte)
	dirs := make(map[string]bool)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, modelerr.ErrFormat{Reason: "malformed tar stream: " + err.Error()}
		}

		name := strings.TrimSuffix(hdr.Name, "/")
		switch hdr.Typeflag {
		case tar.TypeDir:
			if !strings.Contains(name, "/") {
				dirs[name] = true
			}
		case tar.TypeReg:
			data, err := ioutil.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			members[name] = data
		}
	}

	if len(dirs) != 1 {
		return nil, modelerr.ErrFormat{Reason: fmt.Sprintf("archive must contain exactly one top-level directory, found %d", len(dirs))}
	}
	var dirName string
	for d := range dirs {
		dirName = d
	}

	return &Reader{dirName: dirName, members: members}, nil
}

// ModelDirectory returns the archive's single top-level directory name.
func (r *Reader) ModelDirectory() string { return r.dirName }

// OpenMember returns the bytes of a named member within the model
// directory, or modelerr.ErrFormat if it is absent.
func (r *Reader) OpenMember(name string) (io.Reader, error) {
	data, ok := r.members[r.dirName+"/"+name]
	if !ok {
		return nil, modelerr.ErrFormat{Reason: fmt.Sprintf("archive member %q is missing", name)}
	}
	return bytes.NewReader(data), nil
}

// Members lists every non-directory member's path relative to the model
// directory, used by the top-level Load to enforce the archive-facing
// half of invariant I2 (no member without a corresponding entry).
func (r *Reader) Members() []string {
	names := make([]string, 0, len(r.members))
	prefix := r.dirName + "/"
	for name := range r.members {
		if strings.HasPrefix(name, prefix) {
			names = append(names, strings.TrimPrefix(name, prefix))
		}
	}
	return names
}
