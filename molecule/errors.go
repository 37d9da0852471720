package molecule

import (
	"errors"
	"fmt"
)

// Kind names the structural rule a buffer violated.
type Kind string

const (
	KindHeaderIsBroken     Kind = "HeaderIsBroken"
	KindTotalSizeNotMatch  Kind = "TotalSizeNotMatch"
	KindItemCountNotMatch  Kind = "ItemCountNotMatch"
	KindFieldCountNotMatch Kind = "FieldCountNotMatch"
	KindOffsetsNotMatch    Kind = "OffsetsNotMatch"
	KindUnknownItem        Kind = "UnknownItem"
)

// Error is a structural verification failure.
//
// Type is the schema type being verified when the failure was detected.
// Message is intended for humans; do not match on it.
type Error struct {
	Type    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Type, e.Kind, e.Message)
}

func newError(typ string, kind Kind, msg string) error {
	return &Error{Type: typ, Kind: kind, Message: msg}
}

func mismatch(typ string, kind Kind, expected, actual int) error {
	return newError(typ, kind, fmt.Sprintf("expected %d, got %d", expected, actual))
}

// UnknownItem reports a union discriminant the reader does not recognise.
func UnknownItem(typ string, itemCount int, itemID uint32) error {
	return newError(typ, KindUnknownItem, fmt.Sprintf("item id %d, known items %d", itemID, itemCount))
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
