package registry

import (
	"crypto/sha256"
	"errors"
	"testing"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/molecule"
	"ckbecs.dev/ecs/schema"
	"ckbecs.dev/ecs/storage"
	"ckbecs.dev/ecs/storage/testkit"
)

func TestRegistry_DefinitionRoundTrip(t *testing.T) {
	r := New(testkit.NewMemory(), nil)
	def := schema.NewComponentDefinition(schema.ComponentDefinitionV1{
		ComponentName: []byte("lantern"),
		Delegate:      schema.Script{CodeHash: ckbhash.Sum([]byte("code")), HashType: schema.HashTypeData1, Args: []byte{1}},
	})
	id, err := r.PutDefinition(def)
	if err != nil {
		t.Fatalf("PutDefinition: %v", err)
	}
	got, err := r.GetDefinition(id)
	if err != nil {
		t.Fatalf("GetDefinition: %v", err)
	}
	if !got.Equal(def) {
		t.Fatalf("got %s want %s", got, def)
	}
}

func TestRegistry_RejectsMalformedRecords(t *testing.T) {
	mem := testkit.NewMemory()
	r := New(mem, nil)
	if _, err := r.PutDefinitionBytes([]byte("nope")); !errors.Is(err, storage.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	if mem.Len() != 0 {
		t.Fatalf("malformed record was stored")
	}

	// Garbage placed in the store directly is caught on read.
	id, err := mem.Put([]byte("garbage"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := r.GetDefinition(id); !errors.Is(err, storage.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestRegistry_StrictOnWriteCompatibleOnRead(t *testing.T) {
	mem := testkit.NewMemory()
	r := New(mem, nil)

	inner := molecule.BuildTable(
		molecule.PackBytes([]byte("future")),
		make([]byte, 32),
		schema.Script{}.Bytes(),
		[]byte("v2 field"),
	)
	newer := molecule.BuildUnion(uint32(schema.VariantV1), inner)

	if _, err := r.PutDefinitionBytes(newer); !errors.Is(err, storage.ErrInvalidRecord) {
		t.Fatalf("expected strict rejection, got %v", err)
	}
	id, err := mem.Put(newer)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	def, err := r.GetDefinition(id)
	if err != nil {
		t.Fatalf("GetDefinition: %v", err)
	}
	v1, ok := def.V1()
	if !ok || string(v1.ComponentName) != "future" || !v1.HasExtraFields() {
		t.Fatalf("unexpected decode: %s", def)
	}
}

func TestRegistry_Info(t *testing.T) {
	r := New(testkit.NewMemory(), nil)
	meta := []byte(`{"name":"lantern","description":"lights the way"}`)
	infoHash, _, err := r.PutInfo(meta)
	if err != nil {
		t.Fatalf("PutInfo: %v", err)
	}
	if infoHash != sha256.Sum256(meta) {
		t.Fatalf("info hash is not the sha2-256 of the metadata")
	}

	def := schema.NewComponentDefinition(schema.ComponentDefinitionV1{InfoHash: infoHash})
	got, err := r.Info(def)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if string(got) != string(meta) {
		t.Fatalf("got %q", got)
	}

	missing := schema.NewComponentDefinition(schema.ComponentDefinitionV1{InfoHash: [32]byte{1}})
	if _, err := r.Info(missing); !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
