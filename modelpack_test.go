package modelpack

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/modelpack/modelpack/archive"
	"github.com/modelpack/modelpack/codec"
	_ "github.com/modelpack/modelpack/codec/basecodecs"
	"github.com/modelpack/modelpack/model"
	"github.com/modelpack/modelpack/modelerr"
	"github.com/modelpack/modelpack/trust"
)

// testModel is a minimal model.Model implementation. Attrs is exported
// so the opaque-object (gob) codec carries the attribute store --
// sentinels included -- through the root object's own encoding, the way
// a model's real attribute dict travels with it in the reference
// implementation's pickling.
type testModel struct {
	Name  string
	Attrs model.MapAttributeStore
}

func (m *testModel) CustomSerialization() model.Declaration {
	return model.Declaration{
		"weights": {CodecTag: "structured-text", Filename: "weights.json"},
		"cache":   {Transient: true},
	}
}
func (m *testModel) Predict(in interface{}) (interface{}, error) { return m.Name, nil }
func (m *testModel) ValidateModel() error                        { return nil }
func (m *testModel) Attributes() model.AttributeStore             { return m.Attrs }

func newTestModel() *testModel {
	return &testModel{
		Name: "demo",
		Attrs: model.MapAttributeStore{
			"weights": map[string]interface{}{"w": 1.0},
			"cache":   nil,
		},
	}
}

func testKeyStoreAndSigner(t *testing.T) (*trust.KeyStore, *openpgp.Entity) {
	t.Helper()
	signer, err := openpgp.NewEntity("tester", "modelpack test key", "tester@example.com", nil)
	if err != nil {
		t.Fatalf("generating signer: %v", err)
	}

	var armored bytes.Buffer
	aw, err := armor.Encode(&armored, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode: %v", err)
	}
	if err := signer.Serialize(aw); err != nil {
		t.Fatalf("serialize public key: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close armor writer: %v", err)
	}

	kh, err := trust.NewKeyHome([][]byte{armored.Bytes()})
	if err != nil {
		t.Fatalf("new key home: %v", err)
	}
	t.Cleanup(func() { kh.Close() })

	ks, err := trust.LoadKeyStore(kh.Path())
	if err != nil {
		t.Fatalf("load key store: %v", err)
	}
	return ks, signer
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ks, signer := testKeyStoreAndSigner(t)
	registry := codec.DefaultRegistry

	mdl := newTestModel()
	var buf bytes.Buffer
	if err := Save(&buf, mdl, registry, signer, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := &testModel{Attrs: model.MapAttributeStore{}}
	if err := Load(&buf, registry, loaded, LoadOptions{KeyStore: ks}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "demo" {
		t.Fatalf("got name %q want demo", loaded.Name)
	}
	w, ok := loaded.Attrs.Get("weights")
	if !ok {
		t.Fatal("expected weights attribute to be restored")
	}
	if _, ok := w.(map[string]interface{}); !ok {
		t.Fatalf("got weights of type %T", w)
	}
}

func TestLoadRequiresKeyStore(t *testing.T) {
	registry := codec.DefaultRegistry
	_, signer := testKeyStoreAndSigner(t)
	mdl := newTestModel()
	var buf bytes.Buffer
	if err := Save(&buf, mdl, registry, signer, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := &testModel{Attrs: model.MapAttributeStore{}}
	err := Load(&buf, registry, loaded, LoadOptions{})
	if _, ok := err.(modelerr.ErrInvalidArgument); !ok {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	ks, _ := testKeyStoreAndSigner(t)
	registry := codec.DefaultRegistry
	loaded := &testModel{Attrs: model.MapAttributeStore{}}

	var buf bytes.Buffer
	if _, err := readVersionMember(&buf); err == nil {
		t.Fatal("expected error reading version from empty buffer")
	}

	err := Load(&buf, registry, loaded, LoadOptions{KeyStore: ks})
	if err == nil {
		t.Fatal("expected an error opening an empty archive")
	}

	var v4 bytes.Buffer
	aw := archive.NewWriter(&v4)
	if _, err := aw.CreateModelDirectory(); err != nil {
		t.Fatal(err)
	}
	if err := aw.WriteMember(metaVersionMember, archive.NewMemberFromBytes([]byte("4\n"))); err != nil {
		t.Fatal(err)
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}
	err = Load(&v4, registry, loaded, LoadOptions{KeyStore: ks})
	if _, ok := err.(modelerr.ErrUnsupportedVersion); !ok {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}
