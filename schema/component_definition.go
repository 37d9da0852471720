// Package schema defines the records persisted on the ledger by the component
// verifiers: verifier references (Script) and the versioned component
// definition.
//
// Decoding never panics on adversarial input: every accessor reads through
// offsets that have already been checked against the buffer.
package schema

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"ckbecs.dev/ecs/molecule"
)

// Mode selects how decoders treat fields beyond the known schema.
type Mode int

const (
	// Strict rejects any field-count mismatch.
	Strict Mode = iota
	// Compatible accepts and preserves extra trailing fields.
	Compatible
)

func (m Mode) String() string {
	if m == Compatible {
		return "compatible"
	}
	return "strict"
}

// Variant is the union discriminant of a ComponentDefinition.
type Variant uint32

const (
	VariantV1 Variant = 0
)

// variantCount is the number of variants this reader knows.
const variantCount = 1

const v1FieldCount = 3

// DefinitionItem is one variant of the ComponentDefinition union.
// The set of implementations is closed to this package.
type DefinitionItem interface {
	Variant() Variant
	encode() []byte
}

// ComponentDefinitionV1 is the first definition layout.
type ComponentDefinitionV1 struct {
	// ComponentName is a free-form label; its content is not validated.
	ComponentName []byte
	// InfoHash identifies off-ledger metadata.
	InfoHash [32]byte
	// Delegate implements the component's type-level behaviour.
	Delegate Script

	// Extra holds trailing fields appended by newer schema versions.
	Extra [][]byte
}

func (ComponentDefinitionV1) Variant() Variant { return VariantV1 }

// HasExtraFields reports whether the record was decoded with fields beyond
// the V1 schema.
func (d ComponentDefinitionV1) HasExtraFields() bool { return len(d.Extra) != 0 }

func (d ComponentDefinitionV1) encode() []byte {
	fields := make([][]byte, 0, v1FieldCount+len(d.Extra))
	fields = append(fields, molecule.PackBytes(d.ComponentName), d.InfoHash[:], d.Delegate.Bytes())
	fields = append(fields, d.Extra...)
	return molecule.BuildTable(fields...)
}

// Equal compares two V1 records by encoding.
func (d ComponentDefinitionV1) Equal(o ComponentDefinitionV1) bool {
	return bytes.Equal(d.encode(), o.encode())
}

func (d ComponentDefinitionV1) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ComponentDefinitionV1 { component_name: %q, info_hash: 0x%s, delegate: %s",
		d.ComponentName, hex.EncodeToString(d.InfoHash[:]), d.Delegate)
	if n := len(d.Extra); n != 0 {
		fmt.Fprintf(&b, ", .. (%d fields)", n)
	}
	b.WriteString(" }")
	return b.String()
}

func decodeV1(b []byte, mode Mode) (ComponentDefinitionV1, error) {
	compatible := mode == Compatible
	offsets, err := molecule.VerifyTable("ComponentDefinitionV1", b, v1FieldCount, compatible)
	if err != nil {
		return ComponentDefinitionV1{}, err
	}
	fields := molecule.Fields(b, offsets)
	name, err := molecule.UnpackBytes("String", fields[0])
	if err != nil {
		return ComponentDefinitionV1{}, err
	}
	if err := molecule.VerifyArray("Byte32", fields[1], 32); err != nil {
		return ComponentDefinitionV1{}, err
	}
	delegate, err := DecodeScript(fields[2], mode)
	if err != nil {
		return ComponentDefinitionV1{}, err
	}
	d := ComponentDefinitionV1{
		ComponentName: clone(name),
		Delegate:      delegate,
		Extra:         cloneAll(fields[v1FieldCount:]),
	}
	copy(d.InfoHash[:], fields[1])
	return d, nil
}

// ComponentDefinition is the versioned, tagged-union definition record.
type ComponentDefinition struct {
	Item DefinitionItem
}

// NewComponentDefinition wraps a V1 record.
func NewComponentDefinition(v1 ComponentDefinitionV1) ComponentDefinition {
	return ComponentDefinition{Item: v1}
}

// Variant returns the discriminant of the held item. A zero-valued
// ComponentDefinition holds an empty V1 record.
func (d ComponentDefinition) Variant() Variant {
	return d.item().Variant()
}

func (d ComponentDefinition) item() DefinitionItem {
	if d.Item == nil {
		return ComponentDefinitionV1{}
	}
	return d.Item
}

// V1 returns the V1 record if that is the held variant.
func (d ComponentDefinition) V1() (ComponentDefinitionV1, bool) {
	switch it := d.item().(type) {
	case ComponentDefinitionV1:
		return it, true
	case *ComponentDefinitionV1:
		return *it, true
	default:
		return ComponentDefinitionV1{}, false
	}
}

// Delegate returns the verifier reference of the held variant.
func (d ComponentDefinition) Delegate() Script {
	switch it := d.item().(type) {
	case ComponentDefinitionV1:
		return it.Delegate
	case *ComponentDefinitionV1:
		return it.Delegate
	default:
		panic(fmt.Sprintf("schema: unhandled definition variant %d", it.Variant()))
	}
}

// Bytes returns the union encoding.
func (d ComponentDefinition) Bytes() []byte {
	it := d.item()
	return molecule.BuildUnion(uint32(it.Variant()), it.encode())
}

// Equal compares two definitions by encoding.
func (d ComponentDefinition) Equal(o ComponentDefinition) bool {
	return bytes.Equal(d.Bytes(), o.Bytes())
}

func (d ComponentDefinition) String() string {
	return fmt.Sprintf("ComponentDefinition(%s)", d.item())
}

// Encode is shorthand for d.Bytes().
func Encode(d ComponentDefinition) []byte {
	return d.Bytes()
}

// Decode parses a ComponentDefinition.
func Decode(b []byte, mode Mode) (ComponentDefinition, error) {
	id, inner, err := molecule.SplitUnion("ComponentDefinition", b)
	if err != nil {
		return ComponentDefinition{}, err
	}
	switch Variant(id) {
	case VariantV1:
		v1, err := decodeV1(inner, mode)
		if err != nil {
			return ComponentDefinition{}, err
		}
		return ComponentDefinition{Item: v1}, nil
	default:
		return ComponentDefinition{}, molecule.UnknownItem("ComponentDefinition", variantCount, id)
	}
}

// Verify checks b without retaining a decoded value.
func Verify(b []byte, mode Mode) error {
	_, err := Decode(b, mode)
	return err
}
