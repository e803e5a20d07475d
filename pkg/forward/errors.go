package forward

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	// ErrRuntimeNotReady is returned by operations that need a bound value.
	// Callers can retry once the runtime has started.
	ErrRuntimeNotReady = errors.New("runtime must be started")

	// ErrUnsupportedDeclaration aborts resolution when a symbol resolves to a
	// value that cannot be forward declared (arrays and primitives).
	ErrUnsupportedDeclaration = errors.New("unsupported forward declaration")

	// ErrInvalidAccess reports a malformed attribute or subscript access.
	ErrInvalidAccess = errors.New("invalid access")

	// ErrNotFound reports an attribute that does not exist.
	ErrNotFound = errors.New("attribute not found")

	// ErrNotSupported reports an operation the bound value does not support.
	ErrNotSupported = errors.New("operation not supported")
)

// NotReadyError is returned when op is invoked on an unresolved reference.
type NotReadyError struct {
	Symbol symbol.Symbol
	Op     string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: %s requires a started runtime", displaySymbol(e.Symbol), e.Op)
}

// Is matches ErrRuntimeNotReady.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrRuntimeNotReady
}

// UnsupportedDeclarationError names the symbol and the category that was rejected.
type UnsupportedDeclarationError struct {
	Symbol symbol.Symbol
	Kind   spi.Kind
}

func (e *UnsupportedDeclarationError) Error() string {
	return fmt.Sprintf("forward declarations of %ss are not supported: %s", e.Kind, e.Symbol)
}

// Is matches ErrUnsupportedDeclaration.
func (e *UnsupportedDeclarationError) Is(target error) bool {
	return target == ErrUnsupportedDeclaration
}

// AccessError describes a failed attribute or subscript access.
type AccessError struct {
	Symbol symbol.Symbol
	Op     string
	Name   string
	Err    error
}

func (e *AccessError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s %q: %v", displaySymbol(e.Symbol), e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", displaySymbol(e.Symbol), e.Op, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

func displaySymbol(s symbol.Symbol) string {
	if s.IsRoot() {
		return "<root>"
	}
	return string(s)
}
