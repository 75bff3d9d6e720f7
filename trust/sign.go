package trust

import (
	"bytes"
	"crypto"
	"io"
	"io/ioutil"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/sirupsen/logrus"

	"github.com/modelpack/modelpack/modelerr"
)

// defaultWarnBeforeDays matches spec.md §4.D's expiry-warning window.
const defaultWarnBeforeDays = 30

// UnsafeTestFingerprint is the fingerprint of the test-only signing key
// checked into the reference implementation's test suite. It must never
// be trusted for signing or verification outside of a testing context.
const UnsafeTestFingerprint = "56BC24E20C87C09D3F8C76A96FD20A3075CFFAF2"

// raiseForUnsafeKey fails closed if fingerprint is the reserved unsafe
// test fingerprint and UNSAFE_GPG_TESTING_ENABLED is not "1".
func raiseForUnsafeKey(fingerprint string) error {
	if !strings.EqualFold(fingerprint, UnsafeTestFingerprint) {
		return nil
	}
	enabled, err := unsafeTestingEnabled()
	if err != nil {
		return err
	}
	if !enabled {
		return modelerr.ErrSecurity{Reason: "reserved test-only fingerprint found in trusted keys and UNSAFE_GPG_TESTING_ENABLED is not set: " + fingerprint}
	}
	return nil
}

func warnIfSignerNearingExpiry(signer *openpgp.Entity) {
	info, err := describeKey(signer)
	if err != nil || info.ExpiresAt.IsZero() {
		return
	}
	days := int(time.Until(info.ExpiresAt).Hours() / 24)
	if days <= defaultWarnBeforeDays {
		logrus.WithFields(logrus.Fields{
			"fingerprint":    info.Fingerprint,
			"days_to_expiry": days,
		}).Warn("signing key is nearing expiry")
	}
}

func trustedHashName(h crypto.Hash) (string, bool) {
	switch h {
	case crypto.SHA224:
		return "SHA224", TrustedHashAlgorithms["SHA224"]
	case crypto.SHA256:
		return "SHA256", TrustedHashAlgorithms["SHA256"]
	case crypto.SHA384:
		return "SHA384", TrustedHashAlgorithms["SHA384"]
	case crypto.SHA512:
		return "SHA512", TrustedHashAlgorithms["SHA512"]
	default:
		return h.String(), false
	}
}

// Sign produces a detached-cleartext OpenPGP signature over data using
// signer's private key. If the key's private material is encrypted, the
// supplied passphrase decrypts it first -- the reference implementation's
// sign() takes the same optional passphrase and forwards it to gpg.
func Sign(data []byte, signer *openpgp.Entity, passphrase []byte) ([]byte, error) {
	warnIfSignerNearingExpiry(signer)

	if err := raiseForUnsafeKey(fingerprintHex(signer)); err != nil {
		return nil, err
	}

	if signer.PrivateKey == nil {
		return nil, modelerr.ErrInvalidArgument{Reason: "signing entity has no private key"}
	}
	if signer.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return nil, modelerr.ErrSecurity{Reason: "signing key is passphrase-protected but no passphrase was supplied"}
		}
		if err := signer.PrivateKey.Decrypt(passphrase); err != nil {
			return nil, modelerr.ErrSecurity{Reason: "failed to decrypt signing key: " + err.Error()}
		}
	}

	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, signer.PrivateKey, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Verify checks a cleartext-signed message against the keys in ks as of
// now, returning the verified plaintext and the fingerprint of the
// signer. It fails with modelerr.ErrIntegrity on a bad signature, an
// untrusted signer, a signature made with a hash algorithm outside
// TrustedHashAlgorithms, or a signature timestamp in the future.
func Verify(signed []byte, ks *KeyStore, now time.Time) (plaintext []byte, signerFingerprint string, err error) {
	block, _ := clearsign.Decode(signed)
	if block == nil {
		return nil, "", modelerr.ErrFormat{Reason: "not a cleartext-signed message"}
	}

	sigBytes, err := ioutil.ReadAll(block.ArmoredSignature.Body)
	if err != nil {
		return nil, "", err
	}

	pkts := packet.NewReader(bytes.NewReader(sigBytes))
	p, err := pkts.Next()
	if err != nil {
		return nil, "", modelerr.ErrFormat{Reason: "unreadable signature packet: " + err.Error()}
	}
	sig, ok := p.(*packet.Signature)
	if !ok {
		return nil, "", modelerr.ErrFormat{Reason: "signature body is not a signature packet"}
	}
	if name, trusted := trustedHashName(sig.Hash); !trusted {
		return nil, "", modelerr.ErrIntegrity{Reason: "signature uses an untrusted hash algorithm: " + name}
	}
	if sig.CreationTime.After(now) {
		return nil, "", modelerr.ErrIntegrity{Reason: "signature timestamp is in the future"}
	}

	signer, err := openpgp.CheckDetachedSignature(ks.Entities, bytes.NewReader(block.Bytes), bytes.NewReader(sigBytes), nil)
	if err != nil {
		return nil, "", modelerr.ErrIntegrity{Reason: "signature verification failed: " + err.Error()}
	}
	if signer == nil {
		return nil, "", modelerr.ErrIntegrity{Reason: "signature verification produced no signer"}
	}

	fp := fingerprintHex(signer)
	if err := raiseForUnsafeKey(fp); err != nil {
		return nil, "", err
	}
	if _, trusted := ks.Fingerprints[fp]; !trusted {
		return nil, "", modelerr.ErrIntegrity{Reason: "signer is not in the trusted key store: " + fp}
	}

	return block.Plaintext, fp, nil
}

// ReadAll is a small convenience used by archive readers pulling the
// signed manifest member out of a tar stream before handing it to Verify.
func ReadAll(r io.Reader) ([]byte, error) {
	return ioutil.ReadAll(r)
}
