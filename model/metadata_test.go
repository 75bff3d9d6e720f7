package model

import "testing"

func TestMetadataSetOnce(t *testing.T) {
	var md Metadata
	if md.IsSet() {
		t.Fatal("expected zero-value metadata to be unset")
	}
	if err := md.Set(map[string]interface{}{"description": "test"}); err != nil {
		t.Fatal(err)
	}
	if !md.IsSet() {
		t.Fatal("expected metadata to be set")
	}
	if err := md.Set(map[string]interface{}{"description": "other"}); err == nil {
		t.Fatal("expected second Set to fail")
	}
}
