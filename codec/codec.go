// Package codec defines the Codec Registry: a process-wide table mapping a
// short tag string to an encoder/decoder pair for one attribute value. It
// generalizes the teacher's manifest-schema dispatch table (one entry per
// media type) to one entry per codec tag.
package codec

import (
	"io"
	"sync"

	"github.com/modelpack/modelpack/modelerr"
)

// Codec encodes and decodes a single attribute value to and from a byte
// stream. Implementations must be safe for concurrent use by multiple
// goroutines operating on independent streams.
type Codec interface {
	// Tag is the short string recorded in the manifest for every payload
	// this codec produced.
	Tag() string

	// Encode writes v's encoding to w.
	Encode(w io.Writer, v interface{}) error

	// Decode reads a value previously written by Encode from r.
	Decode(r io.Reader) (interface{}, error)
}

// DecodeIntoCodec is implemented by codecs that can decode directly into
// a caller-supplied pointer rather than returning a freshly allocated,
// type-erased value -- the manifest's model descriptor always uses a
// codec satisfying this, since the root object must land in the
// concrete model type the caller provides.
type DecodeIntoCodec interface {
	Codec
	DecodeInto(r io.Reader, dst interface{}) error
}

// Registry is a tag-keyed table of codecs.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds a single codec. It fails with modelerr.ErrDuplicateKey if
// the tag is already registered.
func (r *Registry) Register(c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(c)
}

func (r *Registry) registerLocked(c Codec) error {
	tag := c.Tag()
	if tag == "" {
		return modelerr.ErrInvalidArgument{Reason: "codec tag must not be empty"}
	}
	if _, exists := r.codecs[tag]; exists {
		return modelerr.ErrDuplicateKey{Key: tag}
	}
	r.codecs[tag] = c
	return nil
}

// RegisterMany adds every codec in cs, all-or-nothing: if any tag
// collides with one already registered, or collides with another entry
// in cs itself, the registry is left unchanged and the first error is
// returned.
func (r *Registry) RegisterMany(cs ...Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(cs))
	for _, c := range cs {
		tag := c.Tag()
		if tag == "" {
			return modelerr.ErrInvalidArgument{Reason: "codec tag must not be empty"}
		}
		if seen[tag] {
			return modelerr.ErrDuplicateKey{Key: tag}
		}
		if _, exists := r.codecs[tag]; exists {
			return modelerr.ErrDuplicateKey{Key: tag}
		}
		seen[tag] = true
	}
	for _, c := range cs {
		r.codecs[c.Tag()] = c
	}
	return nil
}

// Get returns the codec registered under tag, or modelerr.ErrMissingCodec
// if none is registered.
func (r *Registry) Get(tag string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[tag]
	if !ok {
		return nil, modelerr.ErrMissingCodec{Tag: tag}
	}
	return c, nil
}

// Available returns the tags currently registered, for diagnostics.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.codecs))
	for tag := range r.codecs {
		tags = append(tags, tag)
	}
	return tags
}

// DefaultRegistry is seeded at package-init time with the base codecs by
// the init() functions of package codec/basecodecs, mirroring how manifest/schema1, manifest/schema2 and
// manifest/ocischema each self-register via init().
var DefaultRegistry = NewRegistry()
