// Package config centralizes the process-wide configuration that
// modelpack's save and load paths need: where trusted signing keys live,
// whether the unsafe testing escape hatch is open, and how many days
// before expiry a signing key should start warning. Grounded on
// configuration.Configuration: a small struct, YAML-loadable, with
// defaults filled in and an explicit Validate pass. FromEnv builds a
// Config from environment variables alone; it does not overlay them onto
// a parsed file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/modelpack/modelpack/codec"
	"github.com/modelpack/modelpack/modelerr"
)

const (
	defaultWarnBeforeDays = 30

	envTrustedKeysDir  = "SERIALIZATION_TRUSTED_KEYS_DIR"
	envUnsafeGPGEnable = "UNSAFE_GPG_TESTING_ENABLED"
)

// Config is the YAML-loadable shape of modelpack's process configuration.
//
// Note that yaml field names avoid '_', following the teacher's
// Configuration.
type Config struct {
	TrustedKeysDir      string `yaml:"trustedkeysdir"`
	UnsafeGPGTesting    bool   `yaml:"unsafegpgtesting,omitempty"`
	ExpiryWarnBeforeDays int   `yaml:"expirywarnbeforedays,omitempty"`
}

// Validate fills in defaults and rejects an unusable configuration.
func (c *Config) Validate() error {
	if c.TrustedKeysDir == "" {
		return modelerr.ErrInvalidArgument{Reason: "trusted keys directory must be set"}
	}
	if c.ExpiryWarnBeforeDays == 0 {
		c.ExpiryWarnBeforeDays = defaultWarnBeforeDays
	}
	if c.ExpiryWarnBeforeDays < 0 {
		return modelerr.ErrInvalidArgument{Reason: "expiry warning window must not be negative"}
	}
	return nil
}

// Parse reads a YAML configuration document and validates it.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, modelerr.ErrFormat{Reason: "invalid configuration yaml: " + err.Error()}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// parseUnsafeGPGTesting implements the same fail-closed parsing trust's
// unsafeTestingEnabled applies to UNSAFE_GPG_TESTING_ENABLED: "1"
// accepts, "0" or unset refuses, and any other value is a hard
// configuration error rather than a silently-ignored typo.
func parseUnsafeGPGTesting(raw string) (bool, error) {
	switch raw {
	case "", "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, modelerr.ErrSecurity{Reason: fmt.Sprintf("unknown value %q for %s, aborting", raw, envUnsafeGPGEnable)}
	}
}

// FromEnv builds a Config from SERIALIZATION_TRUSTED_KEYS_DIR and
// UNSAFE_GPG_TESTING_ENABLED, the two environment variables spec.md §6
// names as the external interface's primary entry point.
func FromEnv() (Config, error) {
	c := Config{
		TrustedKeysDir:       os.Getenv(envTrustedKeysDir),
		ExpiryWarnBeforeDays: defaultWarnBeforeDays,
	}
	enabled, err := parseUnsafeGPGTesting(os.Getenv(envUnsafeGPGEnable))
	if err != nil {
		return Config{}, err
	}
	c.UnsafeGPGTesting = enabled
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Context bundles the config and the codec registry Save/Load need,
// avoiding the reference implementation's module-level globals --
// spec.md §9 asks for an explicit object threaded through the call
// stack rather than state read deep inside it.
type Context struct {
	Config   Config
	Registry *codec.Registry
}

// NewContext returns a Context using the default codec registry.
func NewContext(c Config) Context {
	return Context{Config: c, Registry: codec.DefaultRegistry}
}
