package config

import "testing"

func TestParseFillsDefaultWarningWindow(t *testing.T) {
	c, err := Parse([]byte("trustedkeysdir: /etc/modelpack/keys\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.ExpiryWarnBeforeDays != defaultWarnBeforeDays {
		t.Fatalf("got warn window %d want %d", c.ExpiryWarnBeforeDays, defaultWarnBeforeDays)
	}
}

func TestParseRejectsMissingTrustedKeysDir(t *testing.T) {
	if _, err := Parse([]byte("unsafegpgtesting: true\n")); err == nil {
		t.Fatal("expected validation error for missing trustedkeysdir")
	}
}

func TestParseRejectsNegativeWarningWindow(t *testing.T) {
	_, err := Parse([]byte("trustedkeysdir: /etc/modelpack/keys\nexpirywarnbeforedays: -1\n"))
	if err == nil {
		t.Fatal("expected validation error for negative expiry window")
	}
}

func TestFromEnvReadsKnownVariables(t *testing.T) {
	t.Setenv(envTrustedKeysDir, "/tmp/keys")
	t.Setenv(envUnsafeGPGEnable, "1")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if c.TrustedKeysDir != "/tmp/keys" {
		t.Fatalf("got trusted keys dir %q", c.TrustedKeysDir)
	}
	if !c.UnsafeGPGTesting {
		t.Fatal("expected unsafe gpg testing to be enabled")
	}
}

func TestFromEnvRejectsNonBooleanUnsafeFlag(t *testing.T) {
	t.Setenv(envTrustedKeysDir, "/tmp/keys")
	t.Setenv(envUnsafeGPGEnable, "not-a-bool")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-boolean UNSAFE_GPG_TESTING_ENABLED")
	}
}
