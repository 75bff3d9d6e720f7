// Package stream implements the verifiable stream primitive: an in-memory,
// append-only byte buffer that computes a keyed MAC as it is written and
// becomes read-only once finalized.
//
// The state machine mirrors the teacher's bytesBlob/closingByteReader
// pattern: explicit state fields (finalized, closed) that each operation
// checks, turning an operation in the wrong phase into a typed
// modelerr.ErrInvalidState.
package stream

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	digest "github.com/opencontainers/go-digest"

	"github.com/modelpack/modelpack/modelerr"
)

const nonceSize = 16

// Stream is a two-phase byte container: Writing, then Verified.
//
// In the Writing phase, Write extends the buffer and the running MAC.
// Finalize transitions to Verified, at which point Read/ReadLine/Seek/Tell
// become legal and Write becomes illegal.
type Stream struct {
	nonce     []byte
	mac       hash.Hash
	buf       bytes.Buffer
	finalized bool
	rd        *bytes.Reader
	closed    bool
}

// New creates a Writing stream with a freshly sampled 16-byte nonce.
func New() (*Stream, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Stream{
		nonce: nonce,
		mac:   hmac.New(sha256.New, nonce),
	}, nil
}

// Write appends bytes to the stream and folds them into the running MAC.
// It fails with modelerr.ErrInvalidState once the stream has been
// finalized.
func (s *Stream) Write(p []byte) (int, error) {
	if s.finalized {
		return 0, modelerr.ErrInvalidState{Reason: "write after finalize"}
	}
	n, err := s.buf.Write(p)
	if err != nil {
		return n, err
	}
	s.mac.Write(p[:n])
	return n, nil
}

// Finalize transitions the stream from Writing to Verified, returning the
// text-encoded nonce and MAC digest over everything written so far.
// Subsequent writes fail with modelerr.ErrInvalidState.
func (s *Stream) Finalize() (nonceText, macText string, err error) {
	if s.finalized {
		return "", "", modelerr.ErrInvalidState{Reason: "already finalized"}
	}
	s.finalized = true
	s.rd = bytes.NewReader(s.buf.Bytes())
	macDigest := digest.NewDigestFromBytes(digest.SHA256, s.mac.Sum(nil))
	return hex.EncodeToString(s.nonce), macDigest.String(), nil
}

// Writable reports whether the stream still accepts writes.
func (s *Stream) Writable() bool {
	return !s.finalized
}

// Read reads from the finalized stream's contents. It fails with
// modelerr.ErrInvalidState if the stream has not yet been finalized.
func (s *Stream) Read(p []byte) (int, error) {
	if !s.finalized {
		return 0, modelerr.ErrInvalidState{Reason: "read before finalize"}
	}
	if s.closed {
		return 0, modelerr.ErrInvalidState{Reason: "read after close"}
	}
	return s.rd.Read(p)
}

// ReadLine reads up to and including the next newline byte, or to EOF.
func (s *Stream) ReadLine() ([]byte, error) {
	if !s.finalized {
		return nil, modelerr.ErrInvalidState{Reason: "readline before finalize"}
	}
	var line []byte
	for {
		b, err := s.rd.ReadByte()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return line, err
		}
		line = append(line, b)
		if b == '\n' {
			return line, nil
		}
	}
}

// Seek repositions the read cursor. It fails with modelerr.ErrInvalidState
// if the stream has not yet been finalized.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if !s.finalized {
		return 0, modelerr.ErrInvalidState{Reason: "seek before finalize"}
	}
	return s.rd.Seek(offset, whence)
}

// Tell returns the current read position.
func (s *Stream) Tell() (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// Close marks the stream closed. It is only legal once the stream has been
// finalized.
func (s *Stream) Close() error {
	if !s.finalized {
		return modelerr.ErrInvalidState{Reason: "close before finalize"}
	}
	s.closed = true
	return nil
}

// Bytes returns the full written content. It does not check the stream's
// phase and returns whatever has been written so far.
func (s *Stream) Bytes() []byte {
	return s.buf.Bytes()
}

