// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"errors"
	"fmt"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

const (
	// KindNetwork covers registry transport and status failures and failed downloads.
	KindNetwork Kind = iota + 1
	// KindParse covers malformed registry responses and malformed asset names.
	KindParse
	// KindIntegrity means downloaded bytes did not hash to the expected digest.
	KindIntegrity
	// KindFileSystem covers store, rename and extraction failures.
	KindFileSystem
	// KindUnknownComponent means the registry listed a name outside the known set.
	KindUnknownComponent
)

// Sentinels for errors.Is. An *Error unwraps to the sentinel of its Kind.
var (
	ErrNetwork          = errors.New("network error")
	ErrParse            = errors.New("parse error")
	ErrIntegrity        = errors.New("integrity error")
	ErrFileSystem       = errors.New("file system error")
	ErrUnknownComponent = errors.New("unknown component")

	// ErrInvalidKind is returned when a Kind value is not recognized.
	ErrInvalidKind = errors.New("invalid error kind")
)

type (
	// Kind classifies update failures.
	Kind int

	// Error is a classified failure of one step of a run.
	Error struct {
		Kind      Kind
		Component component.Name // Empty for run-level failures
		Op        string         // e.g. "fetch manifest", "download", "verify"
		Err       error
	}
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindParse:
		return "ParseError"
	case KindIntegrity:
		return "IntegrityError"
	case KindFileSystem:
		return "FileSystemError"
	case KindUnknownComponent:
		return "UnknownComponentError"
	default:
		return "unknown"
	}
}

// Validate returns nil if k is a defined kind.
func (k Kind) Validate() error {
	if k.sentinel() == nil {
		return fmt.Errorf("%w: %d", ErrInvalidKind, int(k))
	}
	return nil
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindParse:
		return ErrParse
	case KindIntegrity:
		return ErrIntegrity
	case KindFileSystem:
		return ErrFileSystem
	case KindUnknownComponent:
		return ErrUnknownComponent
	default:
		return nil
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Component != "" {
		msg = string(e.Component) + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause.
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

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind, true
	}
	return 0, false
}

func newError(kind Kind, name component.Name, op string, err error) *Error {
	return &Error{Kind: kind, Component: name, Op: op, Err: err}
}
