// Package validate checks the invariants of a decoded model: tree shape,
// name uniqueness, cross references and numeric domains.
package validate

import (
	"fmt"
	"strings"

	"github.com/san-kum/robodesc/internal/model"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Issue is one finding. Kind is the sentinel class of the problem.
type Issue struct {
	Severity Severity
	Kind     error
	Entity   string
	Name     string
	Index    int
	Src      model.Source
	Msg      string
}

func (i *Issue) Error() string {
	var b strings.Builder
	if i.Src.File != "" {
		fmt.Fprintf(&b, "%s:%d: ", i.Src.File, i.Src.Line)
	}
	if i.Name != "" {
		fmt.Fprintf(&b, "%s %q: ", i.Entity, i.Name)
	} else if i.Entity != "" {
		fmt.Fprintf(&b, "%s %d: ", i.Entity, i.Index)
	}
	b.WriteString(i.Msg)
	return b.String()
}

func (i *Issue) Unwrap() error {
	return i.Kind
}

type Report struct {
	Issues []Issue
}

func (r *Report) add(sev Severity, kind error, entity string, idx int, name string, src model.Source, format string, a ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Kind:     kind,
		Entity:   entity,
		Name:     name,
		Index:    idx,
		Src:      src,
		Msg:      fmt.Sprintf(format, a...),
	})
}

func (r *Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) Errors() []Issue {
	return r.filter(Error)
}

func (r *Report) Warnings() []Issue {
	return r.filter(Warning)
}

func (r *Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == Error {
			return true
		}
	}
	return false
}

// Err returns nil when the report holds no errors.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Issues: errs}
}

// ValidationError carries every error-severity issue of a report.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validate: " + e.Issues[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validate: %d errors:", len(e.Issues))
	for i := range e.Issues {
		b.WriteString("\n\t")
		b.WriteString(e.Issues[i].Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Issues))
	for i := range e.Issues {
		out[i] = &e.Issues[i]
	}
	return out
}
