package model

import (
	"errors"
	"fmt"
)

// Load-time error classes. Every fatal problem found while reading or
// checking a description wraps one of these.
var (
	// ErrMalformed indicates a structurally invalid document or attribute.
	ErrMalformed = errors.New("robodesc: malformed description")

	// ErrDanglingRef indicates a name that does not resolve to a defined entity.
	ErrDanglingRef = errors.New("robodesc: dangling reference")

	// ErrOutOfRange indicates a numeric value outside its valid domain.
	ErrOutOfRange = errors.New("robodesc: value out of range")

	// ErrUnresolvedPath indicates an include or asset file that cannot be found.
	ErrUnresolvedPath = errors.New("robodesc: unresolved path")

	// ErrDuplicateName indicates two entities of one kind sharing a name.
	ErrDuplicateName = errors.New("robodesc: duplicate name")

	// ErrTreeCycle indicates a body parent chain that never reaches the root.
	ErrTreeCycle = errors.New("robodesc: body tree is not a tree")
)

// ElementError wraps an error with the element it was found on.
type ElementError struct {
	Src     Source
	Tag     string
	Name    string
	Wrapped error
}

func (e *ElementError) Error() string {
	where := e.Src.File
	if e.Src.Line > 0 {
		where = fmt.Sprintf("%s:%d", e.Src.File, e.Src.Line)
	}
	what := "<" + e.Tag + ">"
	if e.Name != "" {
		what = fmt.Sprintf("<%s name=%q>", e.Tag, e.Name)
	}
	if where == "" {
		return fmt.Sprintf("%s: %v", what, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s: %v", where, what, e.Wrapped)
}

func (e *ElementError) Unwrap() error {
	return e.Wrapped
}
