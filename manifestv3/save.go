package manifestv3

import (
	"encoding/json"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/modelpack/modelpack/archive"
	"github.com/modelpack/modelpack/codec"
	"github.com/modelpack/modelpack/metrics"
	"github.com/modelpack/modelpack/model"
	"github.com/modelpack/modelpack/modelerr"
	"github.com/modelpack/modelpack/stream"
	"github.com/modelpack/modelpack/trust"
	"github.com/modelpack/modelpack/version"
)

// WriteOptions configures one call to Write.
type WriteOptions struct {
	// SkipValidation bypasses the model's own ValidateModel check
	// (spec.md §4.F step 1; concrete scenario 3).
	SkipValidation bool

	// Passphrase decrypts signer's private key material, if encrypted.
	Passphrase []byte

	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

func (o WriteOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Write implements spec.md §4.F's save-time protocol and §4.G's manifest
// assembly, against a model directory the caller (the dispatch package)
// has already created and written meta.version into.
func Write(w *archive.Writer, mdl model.Model, registry *codec.Registry, signer *openpgp.Entity, opts WriteOptions) (err error) {
	defer func() {
		if err != nil {
			metrics.SavesTotal.WithValues(metrics.OutcomeFailure).Inc()
		} else {
			metrics.SavesTotal.WithValues(metrics.OutcomeSuccess).Inc()
		}
	}()

	if !opts.SkipValidation {
		if err := mdl.ValidateModel(); err != nil {
			return modelerr.ErrValidation{Reason: err.Error()}
		}
	}

	decl := mdl.CustomSerialization()
	available := make(map[string]bool)
	for _, tag := range registry.Available() {
		available[tag] = true
	}
	if err := decl.Validate(available); err != nil {
		return err
	}

	attrDescriptors, err := model.Nullify(mdl, decl, func(attrName string, spec model.AttrSpec, value interface{}) (model.Descriptor, error) {
		c, err := registry.Get(spec.CodecTag)
		if err != nil {
			return model.Descriptor{}, err
		}
		s, err := stream.New()
		if err != nil {
			return model.Descriptor{}, err
		}
		if err := c.Encode(s, value); err != nil {
			return model.Descriptor{}, err
		}
		nonce, mac, err := s.Finalize()
		if err != nil {
			return model.Descriptor{}, err
		}
		if err := w.WriteMember(spec.Filename, s); err != nil {
			return model.Descriptor{}, err
		}
		return model.Descriptor{Filename: spec.Filename, Nonce: nonce, MAC: mac, Serializer: spec.CodecTag}, nil
	})
	if err != nil {
		return err
	}

	if err := model.AssertNullified(mdl, decl); err != nil {
		return err
	}

	opaqueCodec, err := registry.Get(OpaqueObjectTag)
	if err != nil {
		return err
	}
	rootStream, err := stream.New()
	if err != nil {
		return err
	}
	if err := opaqueCodec.Encode(rootStream, mdl); err != nil {
		return err
	}
	rootNonce, rootMAC, err := rootStream.Finalize()
	if err != nil {
		return err
	}
	if err := w.WriteMember(model.RootFilename, rootStream); err != nil {
		return err
	}

	attributes := make(map[string]StreamDescriptor, len(attrDescriptors))
	for attrName, d := range attrDescriptors {
		attributes[attrName] = StreamDescriptor{Filename: d.Filename, Nonce: d.Nonce, HMACCode: d.MAC, Serializer: d.Serializer}
	}

	manifest := Manifest{
		Version: Version,
		Model: StreamDescriptor{
			Filename:   model.RootFilename,
			Nonce:      rootNonce,
			HMACCode:   rootMAC,
			Serializer: OpaqueObjectTag,
		},
		Attributes:                attributes,
		WrittenOnDate:             opts.now().UTC().Format(time.RFC3339),
		SerializingPackageVersion: version.String(),
		InstalledPackages:         installedPackages(),
	}
	if err := manifest.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	body = append(body, '\n')

	signed, err := trust.Sign(body, signer, opts.Passphrase)
	if err != nil {
		return err
	}

	return w.WriteMember("meta.json.asc", archive.NewMemberFromBytes(signed))
}
