package mjcf

import (
	"errors"
	"fmt"

	"github.com/san-kum/robodesc/internal/model"
)

// Sentinels re-exported so callers can match errors without importing model.
var (
	ErrMalformed      = model.ErrMalformed
	ErrDanglingRef    = model.ErrDanglingRef
	ErrOutOfRange     = model.ErrOutOfRange
	ErrUnresolvedPath = model.ErrUnresolvedPath
	ErrDuplicateName  = model.ErrDuplicateName
	ErrTreeCycle      = model.ErrTreeCycle
)

// LoadError reports which stage of Load failed.
type LoadError struct {
	File    string
	Stage   string // include, decode, assets or validate
	Wrapped error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("mjcf: load %s: %s: %v", e.File, e.Stage, e.Wrapped)
}

func (e *LoadError) Unwrap() error {
	return e.Wrapped
}

// malformed returns an ElementError for n wrapping ErrMalformed.
func malformed(src model.Source, tag, name, format string, a ...any) error {
	return &model.ElementError{
		Src:     src,
		Tag:     tag,
		Name:    name,
		Wrapped: fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, a...)),
	}
}

func elementErr(src model.Source, tag, name string, err error) error {
	var ee *model.ElementError
	if errors.As(err, &ee) {
		return err
	}
	return &model.ElementError{Src: src, Tag: tag, Name: name, Wrapped: err}
}
