// Package apperr holds the error taxonomy shared by the gateway, the
// normalizer and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindNetwork
	KindSchema
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	case KindSchema:
		return "schema"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound   = errors.New("not found")
	ErrNetwork    = errors.New("network failure")
	ErrSchema     = errors.New("malformed payload")
	ErrValidation = errors.New("value out of domain")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindNetwork:
		return ErrNetwork
	case KindSchema:
		return ErrSchema
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the cause, so errors.Is matches
// either of them.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func Schema(op, format string, args ...any) error {
	return &Error{Kind: KindSchema, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation reports a caller-supplied value outside its domain.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
