package schema

import (
	"bytes"
	"testing"

	"ckbecs.dev/ecs/molecule"
)

func testDefinition() ComponentDefinition {
	return NewComponentDefinition(ComponentDefinitionV1{
		ComponentName: []byte("test"),
		InfoHash:      [32]byte{42, 42, 42},
		Delegate: Script{
			CodeHash: [32]byte{1, 1, 1, 1},
			HashType: HashTypeType,
		},
	})
}

func TestComponentDefinition_DefaultEncodingVector(t *testing.T) {
	want := []byte{
		0, 0, 0, 0, 105, 0, 0, 0, 16, 0, 0, 0, 20, 0, 0, 0, 52, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 53, 0, 0,
		0, 16, 0, 0, 0, 48, 0, 0, 0, 49, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	var zero ComponentDefinition
	if got := zero.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("default encoding mismatch:\n got %v\nwant %v", got, want)
	}
	if _, err := Decode(want, Strict); err != nil {
		t.Fatalf("Decode default: %v", err)
	}
}

func TestComponentDefinition_RoundTripBothModes(t *testing.T) {
	defs := []ComponentDefinition{
		{},
		testDefinition(),
		NewComponentDefinition(ComponentDefinitionV1{
			ComponentName: bytes.Repeat([]byte{0xff}, 300),
			Delegate:      Script{HashType: HashTypeData2, Args: []byte{1, 2, 3, 4, 5}},
		}),
	}
	for i, d := range defs {
		b := Encode(d)
		for _, mode := range []Mode{Strict, Compatible} {
			got, err := Decode(b, mode)
			if err != nil {
				t.Fatalf("def %d (%s): Decode: %v", i, mode, err)
			}
			if !got.Equal(d) {
				t.Fatalf("def %d (%s): round trip mismatch: %s vs %s", i, mode, got, d)
			}
			if !bytes.Equal(got.Bytes(), b) {
				t.Fatalf("def %d (%s): re-encoding differs", i, mode)
			}
		}
	}
}

func TestComponentDefinition_Accessors(t *testing.T) {
	got, err := Decode(testDefinition().Bytes(), Compatible)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v1, ok := got.V1()
	if !ok {
		t.Fatalf("expected V1 variant")
	}
	if string(v1.ComponentName) != "test" {
		t.Fatalf("component_name mismatch: %q", v1.ComponentName)
	}
	if v1.InfoHash[0] != 42 {
		t.Fatalf("info_hash mismatch: %x", v1.InfoHash)
	}
	if got.Delegate().HashType != HashTypeType {
		t.Fatalf("delegate hash type mismatch: %s", got.Delegate().HashType)
	}
	if got.Variant() != VariantV1 {
		t.Fatalf("unexpected variant %d", got.Variant())
	}
}

// withExtraField appends one field to the V1 table of an encoded definition.
func withExtraField(t *testing.T, d ComponentDefinition, extra []byte) []byte {
	t.Helper()
	v1, _ := d.V1()
	inner := molecule.BuildTable(molecule.PackBytes(v1.ComponentName), v1.InfoHash[:], v1.Delegate.Bytes(), extra)
	return molecule.BuildUnion(uint32(VariantV1), inner)
}

func TestComponentDefinition_ForwardCompatibility(t *testing.T) {
	extra := []byte("schema v2 field")
	b := withExtraField(t, testDefinition(), extra)

	if _, err := Decode(b, Strict); !molecule.IsKind(err, molecule.KindFieldCountNotMatch) {
		t.Fatalf("strict: expected FieldCountNotMatch, got %v", err)
	}

	got, err := Decode(b, Compatible)
	if err != nil {
		t.Fatalf("compatible: %v", err)
	}
	v1, _ := got.V1()
	if !v1.HasExtraFields() || !bytes.Equal(v1.Extra[0], extra) {
		t.Fatalf("extra field not preserved: %v", v1.Extra)
	}
	if !got.Delegate().Equal(testDefinition().Delegate()) {
		t.Fatalf("delegate corrupted by extra field")
	}
	if !bytes.Equal(got.Bytes(), b) {
		t.Fatalf("re-encoding with extra field differs")
	}
}

func TestComponentDefinition_DelegateWithExtraFields(t *testing.T) {
	delegate := Script{CodeHash: [32]byte{9}, HashType: HashTypeData1, Args: []byte{7}, Extra: [][]byte{{1, 2}}}
	d := NewComponentDefinition(ComponentDefinitionV1{ComponentName: []byte("x"), Delegate: delegate})
	b := d.Bytes()

	if _, err := Decode(b, Strict); !molecule.IsKind(err, molecule.KindFieldCountNotMatch) {
		t.Fatalf("strict: expected FieldCountNotMatch, got %v", err)
	}
	got, err := Decode(b, Compatible)
	if err != nil {
		t.Fatalf("compatible: %v", err)
	}
	if !got.Delegate().Equal(delegate) {
		t.Fatalf("delegate mismatch: %s", got.Delegate())
	}
}

func TestDecode_RejectsStructuralCorruption(t *testing.T) {
	good := testDefinition().Bytes()

	cases := []struct {
		name string
		b    []byte
		kind molecule.Kind
	}{
		{"empty", nil, molecule.KindHeaderIsBroken},
		{"short header", good[:3], molecule.KindHeaderIsBroken},
		{"union only", good[:4], molecule.KindHeaderIsBroken},
		{"truncated", good[:len(good)-1], molecule.KindTotalSizeNotMatch},
		{"trailing byte", append(append([]byte(nil), good...), 0), molecule.KindTotalSizeNotMatch},
	}

	unknown := append([]byte(nil), good...)
	copy(unknown, molecule.PackNumber(1))
	cases = append(cases, struct {
		name string
		b    []byte
		kind molecule.Kind
	}{"unknown variant", unknown, molecule.KindUnknownItem})

	// Swap the info_hash and delegate offsets so the table is non-monotonic.
	swapped := append([]byte(nil), good...)
	o2 := append([]byte(nil), swapped[12:16]...)
	o3 := append([]byte(nil), swapped[16:20]...)
	copy(swapped[12:16], o3)
	copy(swapped[16:20], o2)
	cases = append(cases, struct {
		name string
		b    []byte
		kind molecule.Kind
	}{"offsets not monotonic", swapped, molecule.KindOffsetsNotMatch})

	for _, tc := range cases {
		for _, mode := range []Mode{Strict, Compatible} {
			_, err := Decode(tc.b, mode)
			if !molecule.IsKind(err, tc.kind) {
				t.Fatalf("%s (%s): expected %s, got %v", tc.name, mode, tc.kind, err)
			}
		}
	}
}

func TestDecode_NeverPanicsOnMutation(t *testing.T) {
	good := withExtraField(t, testDefinition(), []byte{1, 2, 3})
	for i := range good {
		for _, v := range []byte{0x00, 0x01, 0x7f, 0xff} {
			b := append([]byte(nil), good...)
			b[i] = v
			_, _ = Decode(b, Compatible)
			_, _ = Decode(b, Strict)
		}
	}
	for i := 0; i <= len(good); i++ {
		_, _ = Decode(good[:i], Compatible)
	}
}

func TestDecode_InvalidInfoHashLength(t *testing.T) {
	inner := molecule.BuildTable(molecule.PackBytes([]byte("x")), make([]byte, 31), Script{}.Bytes())
	b := molecule.BuildUnion(uint32(VariantV1), inner)
	if _, err := Decode(b, Compatible); !molecule.IsKind(err, molecule.KindTotalSizeNotMatch) {
		t.Fatalf("expected TotalSizeNotMatch for 31-byte info_hash, got %v", err)
	}
}
