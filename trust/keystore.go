// Package trust implements the signing and trust-verification story for
// model package manifests: an OpenPGP cleartext signature over the
// manifest bytes, checked against a directory of trusted public keys.
//
// This is the natural Go analogue of the reference implementation's GnuPG
// subprocess calls: spec.md's "detached-cleartext signature format" is
// exactly OpenPGP cleartext signing, so ProtonMail/go-crypto's
// openpgp/clearsign subpackage maps directly onto Sign/Verify.
package trust

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/sirupsen/logrus"

	"github.com/modelpack/modelpack/modelerr"
)

// trustDBFilename and fingerprintMapFilename are the two files, besides
// the "*.pub.asc" keys themselves, a trusted keys directory must contain.
const (
	trustDBFilename        = "trustdb.txt"
	fingerprintMapFilename = "keyname-to-fingerprint.json"
)

// TrustedHashAlgorithms is the set of digest algorithms a signature is
// allowed to use. A signature made with anything outside this set is
// rejected even if the key itself is trusted.
var TrustedHashAlgorithms = map[string]bool{
	"SHA224": true,
	"SHA256": true,
	"SHA384": true,
	"SHA512": true,
}

// KeyStore wraps an openpgp.EntityList loaded from a directory of
// "*.pub.asc" armored public keys, the way registry/storage/driver's
// factory resolves named, validated backends from a directory of
// parameters.
type KeyStore struct {
	Dir      string
	Entities openpgp.EntityList

	// Fingerprints maps a lowercase hex fingerprint to the entity that
	// owns it, for fast lookup during verification and expiry reporting.
	Fingerprints map[string]*openpgp.Entity
}

// LoadKeyStore reads every "*.pub.asc" file under dir and builds a
// KeyStore. The directory must also contain a trust database
// (trustdb.txt) and a keyname-to-fingerprint map
// (keyname-to-fingerprint.json) listing every "*.pub.asc" file present;
// a directory missing either, or a "*.pub.asc" file the map does not
// list, is rejected.
func LoadKeyStore(dir string) (*KeyStore, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var pubKeyNames []string
	hasTrustDB := false
	hasFingerprintMap := false
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			continue
		case entry.Name() == trustDBFilename:
			hasTrustDB = true
		case entry.Name() == fingerprintMapFilename:
			hasFingerprintMap = true
		case strings.HasSuffix(entry.Name(), ".pub.asc"):
			pubKeyNames = append(pubKeyNames, entry.Name())
		}
	}
	if len(pubKeyNames) == 0 {
		return nil, modelerr.ErrValidation{Reason: "no public keys found in trusted keys directory " + dir}
	}
	if !hasTrustDB {
		return nil, modelerr.ErrValidation{Reason: "no " + trustDBFilename + " found in trusted keys directory " + dir}
	}
	if !hasFingerprintMap {
		return nil, modelerr.ErrValidation{Reason: "no " + fingerprintMapFilename + " found in trusted keys directory " + dir}
	}

	fingerprintMap, err := readFingerprintMap(filepath.Join(dir, fingerprintMapFilename))
	if err != nil {
		return nil, err
	}

	ks := &KeyStore{Dir: dir, Fingerprints: make(map[string]*openpgp.Entity)}
	for _, name := range pubKeyNames {
		if _, listed := fingerprintMap[name]; !listed {
			return nil, modelerr.ErrValidation{Reason: "trusted key file " + name + " not found in fingerprint lookup"}
		}
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		list, err := openpgp.ReadArmoredKeyRing(f)
		f.Close()
		if err != nil {
			return nil, modelerr.ErrFormat{Reason: fmt.Sprintf("trusted key file %s: %v", name, err)}
		}
		for _, ent := range list {
			fp := fingerprintHex(ent)
			if err := raiseForUnsafeKey(fp); err != nil {
				return nil, err
			}
			if _, dup := ks.Fingerprints[fp]; dup {
				return nil, modelerr.ErrDuplicateKey{Key: fp}
			}
			ks.Fingerprints[fp] = ent
			ks.Entities = append(ks.Entities, ent)
		}
	}
	logrus.WithFields(logrus.Fields{"dir": dir, "keys": len(ks.Entities)}).Debug("loaded trusted key store")
	return ks, nil
}

// readFingerprintMap reads and validates keyname-to-fingerprint.json: every
// keyname must be non-empty and every fingerprint must be exactly 40
// characters of uppercase hex, matching the format `gpg2 --list-keys`
// reports.
func readFingerprintMap(path string) (map[string]string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, modelerr.ErrFormat{Reason: fingerprintMapFilename + ": " + err.Error()}
	}
	for keyname, fingerprint := range raw {
		if keyname == "" {
			return nil, modelerr.ErrValidation{Reason: "found empty keyname in " + fingerprintMapFilename}
		}
		if !isFingerprintFormatValid(fingerprint) {
			return nil, modelerr.ErrValidation{Reason: fmt.Sprintf("fingerprint %q for key %q is not a 40-character uppercase hex string", fingerprint, keyname)}
		}
	}
	return raw, nil
}

func isFingerprintFormatValid(fp string) bool {
	if len(fp) != 40 {
		return false
	}
	for _, r := range fp {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

func fingerprintHex(ent *openpgp.Entity) string {
	fp := ent.PrimaryKey.Fingerprint
	return strings.ToLower(fmt.Sprintf("%x", fp))
}

// unsafeTestingEnabled gates the reserved test fingerprint
// (raiseForUnsafeKey) and the caller-supplied test key of
// LoadKeyStoreWithUnsafeTestKey; it mirrors spec.md §6's UNSAFE_GPG_TESTING_ENABLED escape hatch. "1"
// enables it, "0" or unset refuses it, and any other value is a
// misconfiguration rather than a silently-ignored typo.
func unsafeTestingEnabled() (bool, error) {
	switch v := os.Getenv("UNSAFE_GPG_TESTING_ENABLED"); v {
	case "", "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, modelerr.ErrSecurity{Reason: fmt.Sprintf("unknown value %q for UNSAFE_GPG_TESTING_ENABLED, aborting", v)}
	}
}

// LoadKeyStoreWithUnsafeTestKey is LoadKeyStore, additionally merging in
// testKeyArmored when the UNSAFE_GPG_TESTING_ENABLED environment variable
// is set. It fails with modelerr.ErrSecurity if testKeyArmored is
// non-empty but the gate is not set, so a caller cannot silently ship a
// build with a test key wired in by accident.
func LoadKeyStoreWithUnsafeTestKey(dir string, testKeyArmored []byte) (*KeyStore, error) {
	ks, err := LoadKeyStore(dir)
	if err != nil {
		return nil, err
	}
	if len(testKeyArmored) == 0 {
		return ks, nil
	}
	enabled, err := unsafeTestingEnabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, modelerr.ErrSecurity{Reason: "refusing to load unsafe test key: UNSAFE_GPG_TESTING_ENABLED is not set"}
	}
	list, err := openpgp.ReadArmoredKeyRing(strings.NewReader(string(testKeyArmored)))
	if err != nil {
		return nil, modelerr.ErrFormat{Reason: fmt.Sprintf("unsafe test key: %v", err)}
	}
	logrus.Warn("UNSAFE_GPG_TESTING_ENABLED is set: loading an unsafe test signing key")
	for _, ent := range list {
		fp := fingerprintHex(ent)
		ks.Fingerprints[fp] = ent
		ks.Entities = append(ks.Entities, ent)
	}
	return ks, nil
}

// KeyInfo summarizes one trusted key for expiry reporting.
type KeyInfo struct {
	Fingerprint string
	Identity    string
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero value means the key never expires
}

// Keys returns summary info for every key in the store.
func (ks *KeyStore) Keys() ([]KeyInfo, error) {
	infos := make([]KeyInfo, 0, len(ks.Entities))
	for _, ent := range ks.Entities {
		info, err := describeKey(ent)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func describeKey(ent *openpgp.Entity) (KeyInfo, error) {
	ident := ent.PrimaryIdentity()
	if ident == nil || ident.SelfSignature == nil {
		return KeyInfo{}, modelerr.ErrInvariantViolation{Reason: "trusted key has no self-signature: " + fingerprintHex(ent)}
	}

	info := KeyInfo{
		Fingerprint: fingerprintHex(ent),
		Identity:    ident.Name,
		CreatedAt:   ent.PrimaryKey.CreationTime,
	}

	if info.CreatedAt.IsZero() {
		return KeyInfo{}, modelerr.ErrInvariantViolation{Reason: "trusted key has zero creation time: " + info.Fingerprint}
	}

	expiresAt, neverExpires := latestSubkeyExpiry(ent, ident)
	if !neverExpires {
		info.ExpiresAt = expiresAt
		if info.ExpiresAt.Before(info.CreatedAt) {
			return KeyInfo{}, modelerr.ErrInvariantViolation{Reason: "trusted key expiry precedes its own creation time: " + info.Fingerprint}
		}
	}

	return info, nil
}

// latestSubkeyExpiry aggregates expiry across the primary key and every
// subkey, the way the reference implementation treats gpgme's subkey
// list (which reports the primary key as its own first entry): the
// overall expiry is the latest of all of them, unless any single one
// carries the never-expires sentinel, in which case the key as a whole
// never expires.
func latestSubkeyExpiry(ent *openpgp.Entity, primaryIdent *openpgp.Identity) (time.Time, bool) {
	type candidate struct {
		createdAt time.Time
		lifetime  *uint32
	}

	candidates := []candidate{{createdAt: ent.PrimaryKey.CreationTime, lifetime: primaryIdent.SelfSignature.KeyLifetimeSecs}}
	for _, sub := range ent.Subkeys {
		if sub.PublicKey == nil || sub.Sig == nil {
			continue
		}
		candidates = append(candidates, candidate{createdAt: sub.PublicKey.CreationTime, lifetime: sub.Sig.KeyLifetimeSecs})
	}

	var latest time.Time
	for _, c := range candidates {
		if c.lifetime == nil || *c.lifetime == 0 {
			return time.Time{}, true
		}
		expiry := c.createdAt.Add(time.Duration(*c.lifetime) * time.Second)
		if expiry.After(latest) {
			latest = expiry
		}
	}
	return latest, false
}
