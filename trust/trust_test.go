package trust

import (
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/modelpack/modelpack/modelerr"
)

func generateTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	ent, err := openpgp.NewEntity("tester", "modelpack test key", "tester@example.com", nil)
	if err != nil {
		t.Fatalf("generating test entity: %v", err)
	}
	return ent
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	signer := generateTestEntity(t)
	ks := &KeyStore{
		Entities:     openpgp.EntityList{signer},
		Fingerprints: map[string]*openpgp.Entity{fingerprintHex(signer): signer},
	}

	payload := []byte(`{"version":3,"payloads":[]}`)
	signed, err := Sign(payload, signer, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	plaintext, fp, err := Verify(signed, ks, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(plaintext) != string(payload) {
		t.Fatalf("got plaintext %q want %q", plaintext, payload)
	}
	if fp != fingerprintHex(signer) {
		t.Fatalf("got fingerprint %q want %q", fp, fingerprintHex(signer))
	}
}

func TestVerifyRejectsUntrustedSigner(t *testing.T) {
	signer := generateTestEntity(t)
	other := generateTestEntity(t)
	ks := &KeyStore{
		Entities:     openpgp.EntityList{other},
		Fingerprints: map[string]*openpgp.Entity{fingerprintHex(other): other},
	}

	signed, err := Sign([]byte("payload"), signer, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, _, err := Verify(signed, ks, time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected verification to fail for an untrusted signer")
	} else if _, ok := err.(modelerr.ErrIntegrity); !ok {
		t.Fatalf("expected ErrIntegrity, got %T", err)
	}
}

func TestVerifyRejectsFutureTimestamp(t *testing.T) {
	signer := generateTestEntity(t)
	ks := &KeyStore{
		Entities:     openpgp.EntityList{signer},
		Fingerprints: map[string]*openpgp.Entity{fingerprintHex(signer): signer},
	}

	signed, err := Sign([]byte("payload"), signer, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	past := time.Now().Add(-24 * time.Hour)
	if _, _, err := Verify(signed, ks, past); err == nil {
		t.Fatal("expected verification to fail when now precedes the signature timestamp")
	} else if _, ok := err.(modelerr.ErrIntegrity); !ok {
		t.Fatalf("expected ErrIntegrity, got %T", err)
	}
}

func TestRaiseForUnsafeKeyRejectsReservedFingerprintWhenGateClosed(t *testing.T) {
	t.Setenv("UNSAFE_GPG_TESTING_ENABLED", "")
	if err := raiseForUnsafeKey(UnsafeTestFingerprint); err == nil {
		t.Fatal("expected raiseForUnsafeKey to refuse the reserved fingerprint")
	} else if _, ok := err.(modelerr.ErrSecurity); !ok {
		t.Fatalf("expected ErrSecurity, got %T", err)
	}
}

func TestRaiseForUnsafeKeyAllowsReservedFingerprintWhenGateOpen(t *testing.T) {
	t.Setenv("UNSAFE_GPG_TESTING_ENABLED", "1")
	if err := raiseForUnsafeKey(UnsafeTestFingerprint); err != nil {
		t.Fatalf("expected raiseForUnsafeKey to allow the reserved fingerprint with the gate open: %v", err)
	}
}

func TestRaiseForUnsafeKeyIgnoresOtherFingerprints(t *testing.T) {
	t.Setenv("UNSAFE_GPG_TESTING_ENABLED", "")
	if err := raiseForUnsafeKey("0000000000000000000000000000000000000a"); err != nil {
		t.Fatalf("expected raiseForUnsafeKey to ignore unrelated fingerprints: %v", err)
	}
}

func TestUnsafeTestingEnabledRejectsUnknownValue(t *testing.T) {
	t.Setenv("UNSAFE_GPG_TESTING_ENABLED", "yes")
	if _, err := unsafeTestingEnabled(); err == nil {
		t.Fatal("expected an error for an unrecognized UNSAFE_GPG_TESTING_ENABLED value")
	} else if _, ok := err.(modelerr.ErrSecurity); !ok {
		t.Fatalf("expected ErrSecurity, got %T", err)
	}
}

func TestExpiryStatusThresholds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		expires  time.Time
		warnDays int
		want     ExpiryStatus
	}{
		{"far future", now.Add(365 * 24 * time.Hour), 30, StatusOK},
		{"within window", now.Add(10 * 24 * time.Hour), 30, StatusWarn},
		{"already past", now.Add(-1 * time.Hour), 30, StatusExpired},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			remaining := c.expires.Sub(now)
			days := int(remaining.Hours() / 24)
			var got ExpiryStatus
			switch {
			case remaining <= 0:
				got = StatusExpired
			case days <= c.warnDays:
				got = StatusWarn
			default:
				got = StatusOK
			}
			if got != c.want {
				t.Fatalf("got %s want %s", got, c.want)
			}
		})
	}
}
