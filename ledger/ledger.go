// Package ledger describes the host primitives a verifier consumes: a
// read-only view of the enclosing transaction, grouped by script, plus the
// ability to hand control to another verifier.
//
// Everything here is data and interfaces; the host package provides an
// in-memory implementation.
package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"ckbecs.dev/ecs/schema"
)

// Source selects which cell list a load addresses.
type Source int

const (
	SourceInput Source = iota + 1
	SourceOutput
	SourceCellDep
	// SourceGroupInput addresses inputs whose lock (or type) equals the
	// running script.
	SourceGroupInput
	// SourceGroupOutput addresses outputs whose type equals the running
	// script.
	SourceGroupOutput
)

func (s Source) String() string {
	switch s {
	case SourceInput:
		return "input"
	case SourceOutput:
		return "output"
	case SourceCellDep:
		return "cell_dep"
	case SourceGroupInput:
		return "group_input"
	case SourceGroupOutput:
		return "group_output"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Cell is an immutable ledger entry.
type Cell struct {
	Capacity uint64
	Lock     schema.Script
	// Type is nil when the cell has no type script.
	Type *schema.Script
	Data []byte
}

// OutPoint names a cell by the transaction that created it.
type OutPoint struct {
	TxHash [32]byte
	Index  uint32
}

// OutPointSize is the encoded length of an OutPoint.
const OutPointSize = 36

// Bytes returns the struct encoding: tx_hash | index (LE u32).
func (o OutPoint) Bytes() []byte {
	out := make([]byte, OutPointSize)
	copy(out, o.TxHash[:])
	binary.LittleEndian.PutUint32(out[32:], o.Index)
	return out
}

func (o OutPoint) String() string {
	return fmt.Sprintf("0x%s:%d", hex.EncodeToString(o.TxHash[:]), o.Index)
}

// CellInput is a transaction input reference.
type CellInput struct {
	Since          uint64
	PreviousOutput OutPoint
}

// CellInputSize is the encoded length of a CellInput.
const CellInputSize = 8 + OutPointSize

// Bytes returns the struct encoding: since (LE u64) | previous_output.
func (in CellInput) Bytes() []byte {
	out := make([]byte, 0, CellInputSize)
	out = binary.LittleEndian.AppendUint64(out, in.Since)
	return append(out, in.PreviousOutput.Bytes()...)
}

// Capabilities describes properties of the host invocation boundary.
type Capabilities struct {
	// TextualArgv is set when exec arguments must be NUL-free text.
	TextualArgv bool
}

// Context is the per-invocation view handed to a verifier.
//
// Every load returns ErrIndexOutOfBound past the end of the addressed list.
// Implementations must be safe for a single goroutine; independent
// invocations never share a Context.
type Context interface {
	// Script returns the running script.
	Script() schema.Script
	// Argv returns the arguments passed by ExecCell; empty for a
	// top-level invocation.
	Argv() [][]byte

	LoadCell(index int, source Source) (Cell, error)
	LoadInput(index int, source Source) (CellInput, error)

	// LookForDep returns the index of the first cell dep whose data hash
	// (HashTypeData) or type script hash (HashTypeType) equals hash.
	LookForDep(hash [32]byte, hashType schema.HashType) (int, error)

	// ExecCell transfers control to the program located by codeHash and
	// hashType. launched reports whether that program started; when it
	// did, err is its verdict, whatever it wraps. When it did not, err
	// matches ErrExecFailed.
	ExecCell(codeHash [32]byte, hashType schema.HashType, argv [][]byte) (launched bool, err error)

	Capabilities() Capabilities
	Logger() *zerolog.Logger
}
