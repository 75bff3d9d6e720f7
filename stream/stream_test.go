package stream

import (
	"bytes"
	"testing"

	"github.com/modelpack/modelpack/modelerr"
)

func TestWriteAfterFinalizeFails(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("late")); err == nil {
		t.Fatal("expected error writing after finalize")
	} else if _, ok := err.(modelerr.ErrInvalidState); !ok {
		t.Fatalf("expected ErrInvalidState, got %T", err)
	}
}

func TestReadBeforeFinalizeFails(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if _, err := s.Read(buf); err == nil {
		t.Fatal("expected error reading before finalize")
	}
}

func TestSeekBeforeFinalizeFails(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Seek(0, 0); err == nil {
		t.Fatal("expected error seeking before finalize")
	}
}

func TestCloseBeforeFinalizeFails(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err == nil {
		t.Fatal("expected error closing before finalize")
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err == nil {
		t.Fatal("expected error on second finalize")
	}
}

func TestRoundTripVerify(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("the quick brown fox jumps over the lazy dog")
	if _, err := s.Write(payload); err != nil {
		t.Fatal(err)
	}
	nonceText, macText, err := s.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	if err := Verify(nonceText, macText, s); err != nil {
		t.Fatalf("expected verify to succeed, got %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := s.Read(got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read mismatch after verify: got %q want %q", got, payload)
	}
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("original payload")); err != nil {
		t.Fatal(err)
	}
	nonceText, macText, err := s.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	tampered := bytes.NewReader([]byte("tampered payload"))
	if err := Verify(nonceText, macText, tampered); err == nil {
		t.Fatal("expected integrity error for tampered payload")
	} else if _, ok := err.(modelerr.ErrIntegrity); !ok {
		t.Fatalf("expected ErrIntegrity, got %T", err)
	}
}

func TestVerifyDetectsTamperedMAC(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("some payload")); err != nil {
		t.Fatal(err)
	}
	nonceText, _, err := s.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	forgedMAC := "sha256:0000000000000000000000000000000000000000000000000000000000000000"
	if err := Verify(nonceText, forgedMAC, s); err == nil {
		t.Fatal("expected integrity error for forged mac")
	}
}

func TestWritableReflectsPhase(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if !s.Writable() {
		t.Fatal("expected writable stream before finalize")
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	if s.Writable() {
		t.Fatal("expected non-writable stream after finalize")
	}
}

func TestReadLineSplitsOnNewline(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("first\nsecond\nthird")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}

	line, err := s.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "first\n" {
		t.Fatalf("got %q want %q", line, "first\n")
	}

	line, err = s.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "second\n" {
		t.Fatalf("got %q want %q", line, "second\n")
	}

	line, err = s.ReadLine()
	if string(line) != "third" {
		t.Fatalf("got %q want %q", line, "third")
	}
}

func TestCloseAfterFinalizeBlocksFurtherReads(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("data")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := s.Read(buf); err == nil {
		t.Fatal("expected error reading after close")
	}
}
