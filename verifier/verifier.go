// Package verifier defines the exit-code taxonomy shared by the component
// verifiers and the entry-point signature the host invokes.
//
// Callers should branch on Code/Kind rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
package verifier

import (
	"errors"
	"fmt"

	"ckbecs.dev/ecs/ledger"
)

// Func is a verifier entry point. A nil return accepts the script group.
type Func func(ctx ledger.Context) error

// Code is the small positive integer a verifier exits with.
//
// Ranges: 1-4 host primitives, 5 argument shape, 10-19 singleton,
// 20-29 balance, 30-39 dispatch.
type Code int8

const (
	CodeOK Code = 0

	CodeIndexOutOfBound Code = 1
	CodeItemMissing     Code = 2
	CodeLengthNotEnough Code = 3
	CodeEncoding        Code = 4

	CodeInvalidArgs Code = 5

	CodeTooManyCells  Code = 10
	CodeInvalidTypeID Code = 11
	CodeInvalidData   Code = 12

	CodeBalanceError Code = 20

	CodeComponentDefinitionNotFound Code = 30
	CodeInvalidComponentDefinition  Code = 31
	CodeDelegateLaunchFailed        Code = 32

	// CodeUnknown is reported for errors outside this taxonomy.
	CodeUnknown Code = -1
)

var codeNames = map[Code]string{
	CodeOK:                          "OK",
	CodeIndexOutOfBound:             "IndexOutOfBound",
	CodeItemMissing:                 "ItemMissing",
	CodeLengthNotEnough:             "LengthNotEnough",
	CodeEncoding:                    "Encoding",
	CodeInvalidArgs:                 "InvalidArgs",
	CodeTooManyCells:                "TooManyCells",
	CodeInvalidTypeID:               "InvalidTypeID",
	CodeInvalidData:                 "InvalidData",
	CodeBalanceError:                "BalanceError",
	CodeComponentDefinitionNotFound: "ComponentDefinitionNotFound",
	CodeInvalidComponentDefinition:  "InvalidComponentDefinition",
	CodeDelegateLaunchFailed:        "DelegateLaunchFailed",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", int8(c))
}

// Kind is a stable failure category.
type Kind string

const (
	KindHost       Kind = "Host"
	KindArgs       Kind = "Args"
	KindStructural Kind = "Structural"
	KindEconomic   Kind = "Economic"
	KindInternal   Kind = "Internal"
)

// Error is a typed verifier rejection.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Code    Code
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code, int8(e.Code), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, int8(e.Code), e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns an *Error with the given code and kind.
func New(code Code, kind Kind, msg string) error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

// Wrap is like New but records cause. A nil cause behaves like New.
func Wrap(code Code, kind Kind, msg string, cause error) error {
	return &Error{Code: code, Kind: kind, Message: msg, Cause: cause}
}

// InvalidArgs reports malformed verifier arguments.
func InvalidArgs(format string, a ...any) error {
	return New(CodeInvalidArgs, KindArgs, fmt.Sprintf(format, a...))
}

// CodeOf maps err to the exit code a host would observe.
// The outermost *Error wins; otherwise a wrapped *ledger.SysError supplies
// the code.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var sys *ledger.SysError
	if errors.As(err, &sys) {
		return Code(sys.Code)
	}
	return CodeUnknown
}

// KindOf returns the Kind of err, treating host primitive failures as
// KindHost and unknown errors as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var sys *ledger.SysError
	if errors.As(err, &sys) {
		return KindHost
	}
	return KindInternal
}
