// Package manifestv3 implements the V3 manifest: the per-version
// orchestrator that enumerates a model's declared attributes, encodes
// each into a verifiable stream, writes the streams and the root object
// into an archive, signs the resulting manifest record, and performs the
// inverse on load.
//
// Grounded on manifest/schema2 for JSON shape and versioning convention
// (the actively maintained schema in the teacher, as opposed to the
// deprecated schema1), and on manifest/schema1/sign.go for the
// "marshal canonical bytes, then sign" split that keeps the signed
// payload byte-stable, and on configuration/parser.go's "parse, then
// validate against a versioned schema" pattern, generalized from YAML
// config parsing to manifest JSON parsing.
package manifestv3

import (
	"fmt"

	"github.com/modelpack/modelpack/modelerr"
)

// Version is the manifest format version this package implements.
const Version = 3

// OpaqueObjectTag is the only codec tag the model descriptor's
// "serializer" field may hold; enforced by Validate.
const OpaqueObjectTag = "opaque-object"

// StreamDescriptor is the per-payload record defined in spec.md §3.
type StreamDescriptor struct {
	Filename   string `json:"filename"`
	Nonce      string `json:"nonce"`
	HMACCode   string `json:"hmac_code"`
	Serializer string `json:"serializer"`
}

func (d StreamDescriptor) validate(requireOpaqueSerializer bool) error {
	if d.Filename == "" {
		return modelerr.ErrValidation{Reason: "stream descriptor missing filename"}
	}
	if d.Nonce == "" {
		return modelerr.ErrValidation{Reason: "stream descriptor missing nonce"}
	}
	if d.HMACCode == "" {
		return modelerr.ErrValidation{Reason: "stream descriptor missing hmac_code"}
	}
	if d.Serializer == "" {
		return modelerr.ErrValidation{Reason: "stream descriptor missing serializer"}
	}
	if requireOpaqueSerializer && d.Serializer != OpaqueObjectTag {
		return modelerr.ErrValidation{Reason: fmt.Sprintf("model descriptor must use the %q codec, got %q", OpaqueObjectTag, d.Serializer)}
	}
	return nil
}

// Manifest is the V3 manifest record (spec.md §3).
type Manifest struct {
	Version                   int                         `json:"version"`
	Model                     StreamDescriptor            `json:"model"`
	Attributes                map[string]StreamDescriptor `json:"attributes"`
	WrittenOnDate             string                      `json:"written_on_date"`
	SerializingPackageVersion string                      `json:"serializing_package_version"`
	InstalledPackages         []string                    `json:"installed_packages,omitempty"`
}

// Validate enforces spec.md §4.G: required keys, per-descriptor schemas,
// strict version equality, and that the model descriptor uses the
// opaque-object codec.
func (m Manifest) Validate() error {
	if m.Version != Version {
		return modelerr.ErrValidation{Reason: fmt.Sprintf("manifest version must be %d, got %d", Version, m.Version)}
	}
	if err := m.Model.validate(true); err != nil {
		return err
	}
	for attrName, desc := range m.Attributes {
		if err := desc.validate(false); err != nil {
			return modelerr.ErrValidation{Reason: fmt.Sprintf("attribute %q: %v", attrName, err)}
		}
	}
	if m.WrittenOnDate == "" {
		return modelerr.ErrValidation{Reason: "manifest missing written_on_date"}
	}
	if m.SerializingPackageVersion == "" {
		return modelerr.ErrValidation{Reason: "manifest missing serializing_package_version"}
	}
	return nil
}
