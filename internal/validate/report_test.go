package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/robodesc/internal/model"
)

func TestIssueError(t *testing.T) {
	tests := []struct {
		name  string
		issue Issue
		want  string
	}{
		{
			name:  "named with source",
			issue: Issue{Entity: "joint", Name: "elbow", Src: model.Source{File: "arm.xml", Line: 12}, Msg: "zero axis"},
			want:  `arm.xml:12: joint "elbow": zero axis`,
		},
		{
			name:  "unnamed",
			issue: Issue{Entity: "geom", Index: 3, Msg: "negative friction"},
			want:  "geom 3: negative friction",
		},
		{
			name:  "model level",
			issue: Issue{Msg: "timestep 0 must be positive"},
			want:  "timestep 0 must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.issue.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReportErr(t *testing.T) {
	r := &Report{}
	if r.Err() != nil {
		t.Fatal("empty report has an error")
	}
	r.add(Warning, model.ErrOutOfRange, "geom", 0, "", model.Source{}, "rgba outside [0, 1]")
	if r.Err() != nil || r.HasErrors() {
		t.Fatal("warnings alone must not fail")
	}
	r.add(Error, model.ErrDanglingRef, "geom", 1, "g", model.Source{}, "mesh %q is not defined", "m")
	err := r.Err()
	if !errors.Is(err, model.ErrDanglingRef) {
		t.Errorf("err = %v, want ErrDanglingRef", err)
	}
	if errors.Is(err, model.ErrOutOfRange) {
		t.Error("warning kinds leaked into the error")
	}
	if !strings.HasPrefix(err.Error(), "validate: ") {
		t.Errorf("err = %q", err)
	}
	if len(r.Errors()) != 1 || len(r.Warnings()) != 1 {
		t.Errorf("errors %d warnings %d", len(r.Errors()), len(r.Warnings()))
	}
}
