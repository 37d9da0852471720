package host

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/schema"
)

// MockTx is a fully resolved transaction in JSON form, for verifying
// transactions outside a chain (for example from the CLI).
//
// Byte strings are 0x-prefixed hex. A code_hash may instead be written as
// "builtin:<name>" to address a built-in program by data hash, and a cell
// may set "builtin" to carry that program's code as its data.
//
// Example:
//
//	{
//	  "cell_deps": [{"builtin": "component-lock"}],
//	  "inputs": [{
//	    "previous_output": {"tx_hash": "0x11..", "index": 0},
//	    "cell": {"capacity": 300, "lock": {"code_hash": "builtin:component-lock", "hash_type": "data1", "args": "0x.."}}
//	  }],
//	  "outputs": [{"capacity": 300, "lock": {...}}]
//	}
type MockTx struct {
	CellDeps []MockCell  `json:"cell_deps"`
	Inputs   []MockInput `json:"inputs"`
	Outputs  []MockCell  `json:"outputs"`
}

type MockInput struct {
	PreviousOutput MockOutPoint `json:"previous_output"`
	Since          uint64       `json:"since,omitempty"`
	Cell           MockCell     `json:"cell"`
}

type MockOutPoint struct {
	TxHash string `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

type MockCell struct {
	Capacity uint64      `json:"capacity"`
	Lock     MockScript  `json:"lock"`
	Type     *MockScript `json:"type,omitempty"`
	Data     string      `json:"data,omitempty"`
	Builtin  string      `json:"builtin,omitempty"`
}

type MockScript struct {
	CodeHash string `json:"code_hash"`
	HashType string `json:"hash_type"`
	Args     string `json:"args,omitempty"`
}

// LoadMockTx decodes a MockTx, rejecting unknown fields.
func LoadMockTx(r io.Reader) (*MockTx, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var m MockTx
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("mock tx: %w", err)
	}
	return &m, nil
}

// Resolve converts m into a ResolvedTx.
func (m *MockTx) Resolve() (*ResolvedTx, error) {
	rtx := &ResolvedTx{}
	for i, d := range m.CellDeps {
		c, err := d.cell()
		if err != nil {
			return nil, fmt.Errorf("cell_deps[%d]: %w", i, err)
		}
		rtx.CellDeps = append(rtx.CellDeps, c)
	}
	for i, in := range m.Inputs {
		txHash, err := DecodeHash(in.PreviousOutput.TxHash)
		if err != nil {
			return nil, fmt.Errorf("inputs[%d].previous_output: %w", i, err)
		}
		c, err := in.Cell.cell()
		if err != nil {
			return nil, fmt.Errorf("inputs[%d].cell: %w", i, err)
		}
		rtx.Inputs = append(rtx.Inputs, ResolvedInput{
			Input: ledger.CellInput{Since: in.Since, PreviousOutput: ledger.OutPoint{TxHash: txHash, Index: in.PreviousOutput.Index}},
			Cell:  c,
		})
	}
	for i, o := range m.Outputs {
		c, err := o.cell()
		if err != nil {
			return nil, fmt.Errorf("outputs[%d]: %w", i, err)
		}
		rtx.Outputs = append(rtx.Outputs, c)
	}
	return rtx, nil
}

func (mc MockCell) cell() (ledger.Cell, error) {
	lock, err := mc.Lock.script()
	if err != nil {
		return ledger.Cell{}, fmt.Errorf("lock: %w", err)
	}
	c := ledger.Cell{Capacity: mc.Capacity, Lock: lock}
	if mc.Type != nil {
		t, err := mc.Type.script()
		if err != nil {
			return ledger.Cell{}, fmt.Errorf("type: %w", err)
		}
		c.Type = &t
	}
	switch {
	case mc.Builtin != "" && mc.Data != "":
		return ledger.Cell{}, fmt.Errorf("builtin and data are mutually exclusive")
	case mc.Builtin != "":
		if _, ok := builtins[mc.Builtin]; !ok {
			return ledger.Cell{}, fmt.Errorf("unknown builtin %q", mc.Builtin)
		}
		c.Data = ProgramCode(mc.Builtin)
	default:
		c.Data, err = DecodeHex(mc.Data)
		if err != nil {
			return ledger.Cell{}, fmt.Errorf("data: %w", err)
		}
	}
	return c, nil
}

func (ms MockScript) script() (schema.Script, error) {
	var s schema.Script
	h, err := ParseCodeHash(ms.CodeHash)
	if err != nil {
		return s, fmt.Errorf("code_hash: %w", err)
	}
	s.CodeHash = h
	ht, err := schema.ParseHashType(ms.HashType)
	if err != nil {
		return s, err
	}
	s.HashType = ht
	s.Args, err = DecodeHex(ms.Args)
	if err != nil {
		return s, fmt.Errorf("args: %w", err)
	}
	return s, nil
}

// MockScriptOf renders s in mock JSON form.
func MockScriptOf(s schema.Script) MockScript {
	return MockScript{
		CodeHash: EncodeHex(s.CodeHash[:]),
		HashType: s.HashType.String(),
		Args:     EncodeHex(s.Args),
	}
}

// EncodeHex returns b as 0x-prefixed hex.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseCodeHash accepts 0x-prefixed hex or "builtin:<name>", the data hash
// of a built-in program's code.
func ParseCodeHash(s string) ([32]byte, error) {
	if name, ok := strings.CutPrefix(s, "builtin:"); ok {
		if _, known := builtins[name]; !known {
			return [32]byte{}, fmt.Errorf("unknown builtin %q", name)
		}
		return ckbhash.Sum(ProgramCode(name)), nil
	}
	return DecodeHash(s)
}

// DecodeHex decodes optionally 0x-prefixed hex. Empty input yields nil.
func DecodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}

// DecodeHash decodes exactly 32 bytes of hex.
func DecodeHash(s string) ([32]byte, error) {
	var h [32]byte
	b, err := DecodeHex(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}
