package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	digest "github.com/opencontainers/go-digest"

	"github.com/modelpack/modelpack/modelerr"
)

// Seeker is the minimal contract Verify needs from the stream it checks:
// any byte stream works, not just a *Stream.
type Seeker interface {
	io.Reader
	io.Seeker
}

// Verify rewinds seeker, streams its full contents through a MAC keyed by
// the decoded nonce, and compares the result against expectedMAC in
// constant time. On success it rewinds seeker again so it is ready for a
// subsequent decode. On mismatch it returns modelerr.ErrIntegrity.
func Verify(nonceText, expectedMAC string, seeker Seeker) error {
	nonce, err := hex.DecodeString(nonceText)
	if err != nil {
		return modelerr.ErrIntegrity{Reason: "malformed nonce: " + err.Error()}
	}
	expected, err := digest.Parse(expectedMAC)
	if err != nil {
		return modelerr.ErrIntegrity{Reason: "malformed mac: " + err.Error()}
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return err
	}

	mac := hmac.New(sha256.New, nonce)
	if _, err := io.Copy(mac, seeker); err != nil {
		return err
	}

	actual := digest.NewDigestFromBytes(digest.SHA256, mac.Sum(nil))
	if !hmac.Equal([]byte(actual.Encoded()), []byte(expected.Encoded())) {
		return modelerr.ErrIntegrity{Reason: "MAC mismatch, payload or descriptor was tampered with"}
	}

	_, err = seeker.Seek(0, io.SeekStart)
	return err
}
