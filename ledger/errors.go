package ledger

import (
	"errors"
	"fmt"
)

// SysError is a failure reported by a host primitive.
type SysError struct {
	Code int8
	Name string
}

func (e *SysError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ledger: %s (%d)", e.Name, e.Code)
}

var (
	ErrIndexOutOfBound = &SysError{Code: 1, Name: "index out of bound"}
	ErrItemMissing     = &SysError{Code: 2, Name: "item missing"}
	ErrLengthNotEnough = &SysError{Code: 3, Name: "length not enough"}
	ErrEncoding        = &SysError{Code: 4, Name: "encoding"}

	// ErrExecFailed reports that ExecCell could not launch its target.
	// Only the launched result of ExecCell tells it apart from a verdict
	// that happens to wrap it.
	ErrExecFailed = errors.New("ledger: exec failed")
)

// IsIndexOutOfBound reports whether err signals the end of a cell list.
func IsIndexOutOfBound(err error) bool { return errors.Is(err, ErrIndexOutOfBound) }
