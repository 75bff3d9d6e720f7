// Package modelerr defines the typed error kinds produced by the modelpack
// archive format. Operations never swallow errors; every failure surfaces
// as one of the kinds below so callers can distinguish a malformed archive
// from a tampered one from a bug in the caller's own model.
package modelerr

import "fmt"

// ErrFormat is returned when an archive is structurally malformed: wrong
// member count, a missing file, an unexpected member type.
type ErrFormat struct {
	Reason string
}

func (e ErrFormat) Error() string {
	return fmt.Sprintf("malformed archive: %s", e.Reason)
}

// ErrIntegrity is returned when a MAC or signature check fails: a tampered
// payload, an untrusted signer, an unsupported hash algorithm.
type ErrIntegrity struct {
	Reason string
}

func (e ErrIntegrity) Error() string {
	return fmt.Sprintf("integrity check failed: %s", e.Reason)
}

// ErrValidation is returned when a model's own validate_model-equivalent
// hook fails, or a manifest violates its schema.
type ErrValidation struct {
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ErrInvariantViolation indicates a "should never happen" guard tripped --
// a bug in modelpack itself, or evidence of tampering that slipped past
// the integrity checks.
type ErrInvariantViolation struct {
	Reason string
}

func (e ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// ErrSecurity is returned by the unsafe-key gate and environment variable
// inconsistencies.
type ErrSecurity struct {
	Reason string
}

func (e ErrSecurity) Error() string {
	return fmt.Sprintf("security error: %s", e.Reason)
}

// ErrMissingCodec is returned when a manifest references a codec tag that
// is not present in the registry used to load it.
type ErrMissingCodec struct {
	Tag string
}

func (e ErrMissingCodec) Error() string {
	return fmt.Sprintf("missing codec: %q is not registered", e.Tag)
}

// ErrUnsupportedVersion is returned when an archive's manifest version has
// no matching reader.
type ErrUnsupportedVersion struct {
	Version int
}

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported manifest version: %d", e.Version)
}

// ErrInvalidState is returned when a verifiable stream operation is
// attempted in the wrong phase (e.g. reading before finalize).
type ErrInvalidState struct {
	Reason string
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("invalid stream state: %s", e.Reason)
}

// ErrDuplicateKey is returned when a codec tag is registered twice.
type ErrDuplicateKey struct {
	Key string
}

func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key: %q is already registered", e.Key)
}

// ErrInvalidArgument is returned for malformed caller input: empty codec
// tags, a missing trusted key store or private key, and similar.
type ErrInvalidArgument struct {
	Reason string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}
