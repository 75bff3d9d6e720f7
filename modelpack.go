// Package modelpack is the top-level API: Save and Load a model to and
// from the tamper-evident archive format, picking the current manifest
// version on write and dispatching on the version marker on read.
//
// Grounded on manifests.go's RegisterManifestSchema/media-type dispatch
// table, generalized from "one constructor per media type string" to
// "one reader/writer pair per manifest version int."
package modelpack

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/modelpack/modelpack/archive"
	"github.com/modelpack/modelpack/codec"
	"github.com/modelpack/modelpack/manifestv3"
	"github.com/modelpack/modelpack/model"
	"github.com/modelpack/modelpack/modelerr"
	"github.com/modelpack/modelpack/trust"
)

// currentManifestVersion is the largest known manifest version, the one
// Save always writes.
const currentManifestVersion = manifestv3.Version

const metaVersionMember = "meta.version"

// SaveOptions configures one call to Save.
type SaveOptions struct {
	SkipValidation bool
	Passphrase     []byte
}

// Save serializes mdl into a new gzip-compressed archive written to w,
// using registry to resolve the model's declared codecs and signer to
// produce the manifest's detached-cleartext signature.
func Save(w io.Writer, mdl model.Model, registry *codec.Registry, signer *openpgp.Entity, opts SaveOptions) error {
	aw := archive.NewGzipWriter(w)

	if _, err := aw.CreateModelDirectory(); err != nil {
		return err
	}
	versionMember := fmt.Sprintf("%d\n", currentManifestVersion)
	if err := aw.WriteMember(metaVersionMember, archive.NewMemberFromBytes([]byte(versionMember))); err != nil {
		return err
	}

	if err := manifestv3.Write(aw, mdl, registry, signer, manifestv3.WriteOptions{
		SkipValidation: opts.SkipValidation,
		Passphrase:     opts.Passphrase,
	}); err != nil {
		return err
	}

	return aw.Close()
}

// LoadOptions configures one call to Load.
type LoadOptions struct {
	SkipValidation bool

	// KeyStore is the set of trusted public keys to verify the manifest
	// signature against. If nil, Load refuses to proceed: a keyless load
	// would silently disable signature verification, the one check this
	// format exists to provide.
	KeyStore *trust.KeyStore
}

// Load reads an archive from r into dst, a pointer to a zero-value
// concrete model type, dispatching on the archive's meta.version member.
func Load(r io.Reader, registry *codec.Registry, dst model.Model, opts LoadOptions) error {
	if opts.KeyStore == nil {
		return modelerr.ErrInvalidArgument{Reason: "Load requires a trusted key store"}
	}

	ar, err := archive.OpenReader(r)
	if err != nil {
		return err
	}

	versionReader, err := ar.OpenMember(metaVersionMember)
	if err != nil {
		return err
	}
	archiveVersion, err := readVersionMember(versionReader)
	if err != nil {
		return err
	}

	switch archiveVersion {
	case manifestv3.Version:
		if err := manifestv3.Read(ar, registry, opts.KeyStore, dst, manifestv3.ReadOptions{SkipValidation: opts.SkipValidation}); err != nil {
			return err
		}
	default:
		return modelerr.ErrUnsupportedVersion{Version: archiveVersion}
	}

	return checkMembershipInterlock(ar, dst)
}

// readVersionMember parses meta.version's "<decimal int>\n" contents.
func readVersionMember(r io.Reader) (int, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, err
	}
	line = strings.TrimSpace(line)
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, modelerr.ErrFormat{Reason: "meta.version is not a decimal integer: " + err.Error()}
	}
	return n, nil
}

// checkMembershipInterlock enforces invariant I2: every declared,
// non-transient attribute filename and the reserved root/meta members
// must correspond to exactly the set of files present in the archive,
// with no stray extra member.
//
// manifestv3.Read has already verified that every declared,
// non-transient attribute has a manifest entry (manifest entries for
// undeclared attributes are skipped there, not rejected); this checks the
// archive-facing half, that no additional file was smuggled into the
// model directory.
func checkMembershipInterlock(ar *archive.Reader, dst model.Model) error {
	expected := map[string]bool{
		metaVersionMember:  true,
		"meta.json.asc":    true,
		model.RootFilename: true,
	}
	for _, spec := range dst.CustomSerialization() {
		if spec.Transient {
			continue
		}
		expected[spec.Filename] = true
	}

	for _, name := range ar.Members() {
		if !expected[name] {
			return modelerr.ErrValidation{Reason: "archive member has no corresponding manifest entry: " + name}
		}
	}
	return nil
}
