package manifestv3

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelpack/modelpack/archive"
	"github.com/modelpack/modelpack/codec"
	"github.com/modelpack/modelpack/metrics"
	"github.com/modelpack/modelpack/model"
	"github.com/modelpack/modelpack/modelerr"
	"github.com/modelpack/modelpack/stream"
	"github.com/modelpack/modelpack/trust"
)

// ReadOptions configures one call to Read.
type ReadOptions struct {
	// SkipValidation bypasses the loaded model's own ValidateModel check
	// (concrete scenario 3: a model saved without validation cannot be
	// loaded with validation requested unless this is set).
	SkipValidation bool

	// Now is injectable for deterministic tests; defaults to time.Now.
	// Used to reject a signature timestamp in the future.
	Now func() time.Time
}

func (o ReadOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Read implements spec.md §4.F's load-time protocol against an archive
// whose model directory the caller (the dispatch package) has already
// located and whose meta.version the caller has already checked against
// this manifest's own Version field (invariant I6 / the version
// interlock).
//
// dst must be a pointer to a zero-value concrete model type; the
// opaque-object codec decodes the root object's gob bytes directly into
// it, the same way json.Unmarshal decodes into a caller-supplied pointer
// rather than returning a freshly allocated, type-erased value.
func Read(ar *archive.Reader, registry *codec.Registry, ks *trust.KeyStore, dst model.Model, opts ReadOptions) (err error) {
	defer func() {
		if err != nil {
			metrics.LoadsTotal.WithValues(metrics.OutcomeFailure).Inc()
		} else {
			metrics.LoadsTotal.WithValues(metrics.OutcomeSuccess).Inc()
		}
	}()

	envelopeReader, err := ar.OpenMember("meta.json.asc")
	if err != nil {
		return err
	}
	envelope, err := trust.ReadAll(envelopeReader)
	if err != nil {
		return err
	}

	cleartext, _, err := trust.Verify(envelope, ks, opts.now())
	if err != nil {
		metrics.VerifyFailuresTotal.WithValues(metrics.CheckSignature).Inc()
		return err
	}

	var manifest Manifest
	if err := json.Unmarshal(bytes.TrimRight(cleartext, "\n"), &manifest); err != nil {
		return modelerr.ErrFormat{Reason: "manifest is not valid JSON: " + err.Error()}
	}
	if err := manifest.Validate(); err != nil {
		return err
	}

	decl := dst.CustomSerialization()
	needed := make(map[string]bool, len(decl))
	for attrName, spec := range decl {
		if spec.Transient {
			continue
		}
		needed[spec.CodecTag] = true
		if _, ok := manifest.Attributes[attrName]; !ok {
			return modelerr.ErrValidation{Reason: "manifest has no entry for declared attribute: " + attrName}
		}
	}
	for tag := range needed {
		if _, err := registry.Get(tag); err != nil {
			return err
		}
	}
	if len(manifest.InstalledPackages) == 0 {
		logrus.Warn("loaded manifest has no installed_packages provenance")
	}

	decodedValues := make(map[string]interface{}, len(manifest.Attributes))
	for attrName, desc := range manifest.Attributes {
		spec, declared := decl[attrName]
		if !declared || spec.Transient {
			continue
		}
		value, err := decodeAttributePayload(ar, registry, desc)
		if err != nil {
			return err
		}
		decodedValues[attrName] = value
	}

	rootReader, err := ar.OpenMember(model.RootFilename)
	if err != nil {
		return err
	}
	rootBytes, err := ioutil.ReadAll(rootReader)
	if err != nil {
		return err
	}
	if err := stream.Verify(manifest.Model.Nonce, manifest.Model.HMACCode, bytes.NewReader(rootBytes)); err != nil {
		metrics.VerifyFailuresTotal.WithValues(metrics.CheckMAC).Inc()
		return err
	}

	opaqueCodec, err := registry.Get(OpaqueObjectTag)
	if err != nil {
		return err
	}
	into, ok := opaqueCodec.(codec.DecodeIntoCodec)
	if !ok {
		return modelerr.ErrInvariantViolation{Reason: "opaque-object codec does not support decoding into a caller-supplied model"}
	}
	if err := into.DecodeInto(bytes.NewReader(rootBytes), dst); err != nil {
		return err
	}

	descriptorsByAttr := make(map[string]model.Descriptor, len(manifest.Attributes))
	for attrName, d := range manifest.Attributes {
		descriptorsByAttr[attrName] = model.Descriptor{Filename: d.Filename, Nonce: d.Nonce, MAC: d.HMACCode, Serializer: d.Serializer}
	}

	if err := model.Restore(dst, decl, descriptorsByAttr, func(attrName string, spec model.AttrSpec, desc model.Descriptor) (interface{}, error) {
		value, ok := decodedValues[attrName]
		if !ok {
			return nil, modelerr.ErrInvariantViolation{Reason: "attribute decoded but missing from value map: " + attrName}
		}
		return value, nil
	}); err != nil {
		return err
	}

	if !opts.SkipValidation {
		if err := dst.ValidateModel(); err != nil {
			return modelerr.ErrValidation{Reason: err.Error()}
		}
	}

	if hook, ok := dst.(model.PostDeserializeHook); ok {
		if err := hook.PostDeserializeHook(); err != nil {
			return err
		}
	}

	return nil
}

func decodeAttributePayload(ar *archive.Reader, registry *codec.Registry, desc StreamDescriptor) (interface{}, error) {
	payloadReader, err := ar.OpenMember(desc.Filename)
	if err != nil {
		return nil, err
	}
	raw, err := ioutil.ReadAll(payloadReader)
	if err != nil {
		return nil, err
	}
	if err := stream.Verify(desc.Nonce, desc.HMACCode, bytes.NewReader(raw)); err != nil {
		metrics.VerifyFailuresTotal.WithValues(metrics.CheckMAC).Inc()
		return nil, err
	}

	c, err := registry.Get(desc.Serializer)
	if err != nil {
		return nil, err
	}
	return c.Decode(bytes.NewReader(raw))
}
