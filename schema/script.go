package schema

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/molecule"
)

// HashType selects how a script's code hash is matched against cells.
type HashType byte

const (
	HashTypeData  HashType = 0
	HashTypeType  HashType = 1
	HashTypeData1 HashType = 2
	HashTypeData2 HashType = 4
)

func (h HashType) String() string {
	switch h {
	case HashTypeData:
		return "data"
	case HashTypeType:
		return "type"
	case HashTypeData1:
		return "data1"
	case HashTypeData2:
		return "data2"
	default:
		return fmt.Sprintf("hash_type(%d)", byte(h))
	}
}

// ParseHashType parses the textual names produced by String.
func ParseHashType(s string) (HashType, error) {
	switch s {
	case "data":
		return HashTypeData, nil
	case "type":
		return HashTypeType, nil
	case "data1":
		return HashTypeData1, nil
	case "data2":
		return HashTypeData2, nil
	default:
		return 0, fmt.Errorf("unknown hash type %q", s)
	}
}

// TypeOrData collapses a hash type byte to the two lookup modes: type-hash
// lookup for HashTypeType, data-hash lookup for anything else.
func TypeOrData(b byte) HashType {
	if HashType(b) == HashTypeType {
		return HashTypeType
	}
	return HashTypeData
}

const scriptFieldCount = 3

// Script is a verifier reference: which code governs a cell, and with what
// arguments. Two scripts are equal iff their encodings are byte-identical.
type Script struct {
	CodeHash [32]byte
	HashType HashType
	Args     []byte

	// Extra holds trailing fields from a newer schema, preserved verbatim.
	Extra [][]byte
}

// Bytes returns the table encoding of s.
func (s Script) Bytes() []byte {
	fields := make([][]byte, 0, scriptFieldCount+len(s.Extra))
	fields = append(fields, s.CodeHash[:], []byte{byte(s.HashType)}, molecule.PackBytes(s.Args))
	fields = append(fields, s.Extra...)
	return molecule.BuildTable(fields...)
}

// Hash is the digest of the script encoding.
func (s Script) Hash() [32]byte {
	return ckbhash.Sum(s.Bytes())
}

// Equal reports byte-for-byte equality of the encodings.
func (s Script) Equal(o Script) bool {
	return bytes.Equal(s.Bytes(), o.Bytes())
}

func (s Script) String() string {
	return fmt.Sprintf("Script { code_hash: 0x%s, hash_type: %s, args: 0x%s }",
		hex.EncodeToString(s.CodeHash[:]), s.HashType, hex.EncodeToString(s.Args))
}

// DecodeScript parses a script table.
func DecodeScript(b []byte, mode Mode) (Script, error) {
	offsets, err := molecule.VerifyTable("Script", b, scriptFieldCount, mode == Compatible)
	if err != nil {
		return Script{}, err
	}
	fields := molecule.Fields(b, offsets)
	if err := molecule.VerifyArray("Byte32", fields[0], 32); err != nil {
		return Script{}, err
	}
	if err := molecule.VerifyArray("byte", fields[1], 1); err != nil {
		return Script{}, err
	}
	args, err := molecule.UnpackBytes("Bytes", fields[2])
	if err != nil {
		return Script{}, err
	}
	var s Script
	copy(s.CodeHash[:], fields[0])
	s.HashType = HashType(fields[1][0])
	s.Args = clone(args)
	s.Extra = cloneAll(fields[scriptFieldCount:])
	return s, nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

func cloneAll(fields [][]byte) [][]byte {
	if len(fields) == 0 {
		return nil
	}
	out := make([][]byte, len(fields))
	for i, f := range fields {
		out[i] = clone(f)
	}
	return out
}
