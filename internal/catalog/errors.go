package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the simulated runtime.
var (
	ErrAlreadyStarted  = errors.New("runtime already started")
	ErrInvalidCatalog  = errors.New("invalid catalog")
	ErrNotInstantiable = errors.New("class cannot be instantiated")
	ErrClassCast       = errors.New("class cast failed")
	ErrIndexOutOfRange = errors.New("array index out of range")
)

// DefinitionError reports a malformed class or field declaration.
type DefinitionError struct {
	Class string
	Field string
	Msg   string
}

func (e *DefinitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: class %s field %s: %s", ErrInvalidCatalog, e.Class, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: class %s: %s", ErrInvalidCatalog, e.Class, e.Msg)
}

func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidCatalog
}
