package host

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrUnknownOutPoint reports an input or cell dep the chain never created.
	ErrUnknownOutPoint = errors.New("host: unknown out point")
	// ErrScriptNotFound reports a script whose code is not among the cell
	// deps, or whose code cell is not a registered program.
	ErrScriptNotFound = errors.New("host: script code not found")
	// ErrCyclesExceeded reports an exhausted execution budget.
	ErrCyclesExceeded = errors.New("host: cycles exceeded")
	// ErrVMFault reports a verifier that aborted instead of returning.
	ErrVMFault = errors.New("host: vm fault")
	// ErrDuplicateInput reports an out point spent twice in one transaction.
	ErrDuplicateInput = errors.New("host: duplicate input")
)

// GroupKind says which cell field a script group was formed from.
type GroupKind int

const (
	GroupLock GroupKind = iota
	GroupType
)

func (k GroupKind) String() string {
	if k == GroupType {
		return "type"
	}
	return "lock"
}

// ScriptError attributes a failure to one script group.
type ScriptError struct {
	Kind       GroupKind
	Index      int
	ScriptHash [32]byte
	Err        error
}

func (e *ScriptError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s script group %d (0x%s): %v", e.Kind, e.Index, hex.EncodeToString(e.ScriptHash[:]), e.Err)
}

func (e *ScriptError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
