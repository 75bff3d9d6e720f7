package trust

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/spf13/afero"

	"github.com/modelpack/modelpack/modelerr"
)

// KeyHome is a scoped directory seeded with trusted public keys, used by
// tests and short-lived tooling that need a throwaway trusted-keys
// directory without touching a real one. NewKeyHome creates it and the
// caller removes it with Close when done, the same scoped-resource
// pattern the teacher's filesystem storage driver follows for its root
// directory.
type KeyHome struct {
	fs   afero.Fs
	path string
}

// NewKeyHome creates a temporary on-disk directory (backed by afero's OS
// filesystem, so the same call sites work unchanged if a future caller
// swaps in an in-memory filesystem for tests), writes each armored key in
// keys under it as "key-<n>.pub.asc", and seeds the
// keyname-to-fingerprint map and trust database that LoadKeyStore
// requires of any trusted keys directory. Seeding fails closed on the
// reserved unsafe test fingerprint, the same guard LoadKeyStore applies
// when it later reads this directory back.
func NewKeyHome(keys [][]byte) (*KeyHome, error) {
	dir, err := ioutil.TempDir("", "modelpack-keyhome-")
	if err != nil {
		return nil, err
	}
	fs := afero.NewOsFs()
	kh := &KeyHome{fs: fs, path: dir}

	fingerprintMap := make(map[string]string, len(keys))
	for i, key := range keys {
		list, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(key))
		if err != nil {
			kh.Close()
			return nil, modelerr.ErrFormat{Reason: fmt.Sprintf("seed key %d: %v", i, err)}
		}
		name := fmt.Sprintf("key-%d.pub.asc", i)
		for _, ent := range list {
			fp := fingerprintHex(ent)
			if err := raiseForUnsafeKey(fp); err != nil {
				kh.Close()
				return nil, err
			}
			fingerprintMap[name] = strings.ToUpper(fp)
		}
		if err := afero.WriteFile(fs, filepath.Join(dir, name), key, 0600); err != nil {
			kh.Close()
			return nil, err
		}
	}

	mapJSON, err := json.Marshal(fingerprintMap)
	if err != nil {
		kh.Close()
		return nil, err
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, fingerprintMapFilename), mapJSON, 0600); err != nil {
		kh.Close()
		return nil, err
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, trustDBFilename), []byte("trust database seeded by modelpack-keyhome\n"), 0600); err != nil {
		kh.Close()
		return nil, err
	}

	return kh, nil
}

// Path returns the directory LoadKeyStore should be pointed at.
func (kh *KeyHome) Path() string { return kh.path }

// Close tears down the directory. Safe to call even if creation failed
// partway through.
func (kh *KeyHome) Close() error {
	if kh.path == "" {
		return nil
	}
	return kh.fs.RemoveAll(kh.path)
}
