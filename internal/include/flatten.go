// Package include flattens <include file="..."/> directives into a single
// document before it is interpreted.
package include

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/edaniels/golog"

	"github.com/san-kum/robodesc/internal/xmltree"
)

const (
	DefaultMaxDepth = 16
	RootTag         = "mujoco"
	Tag             = "include"
)

var (
	ErrUnresolvedInclude = errors.New("include: file not found")
	ErrIncludeCycle      = errors.New("include: inclusion cycle")
	ErrRepeatedInclude   = errors.New("include: file included more than once")
	ErrTooDeep           = errors.New("include: nesting too deep")
	ErrBadInclude        = errors.New("include: invalid include directive")
)

// Error carries the directive that failed.
type Error struct {
	File    string // document holding the directive
	Line    int
	Target  string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Wrapped)
	}
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Target, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

type Options struct {
	MaxDepth int
	Logger   golog.Logger
}

type flattener struct {
	fsys   fs.FS
	base   string
	opts   Options
	seen   map[string]bool
	active []string
	files  []string
}

// Flatten loads root from fsys and splices every included document into it.
// Include paths are relative to the directory of root. It returns the
// flattened tree and the files read, in load order.
func Flatten(fsys fs.FS, root string, opts Options) (*xmltree.Node, []string, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	root = path.Clean(root)
	f := &flattener{
		fsys: fsys,
		base: path.Dir(root),
		opts: opts,
		seen: make(map[string]bool),
	}

	doc, err := f.load(root)
	if err != nil {
		if errors.Is(err, xmltree.ErrMalformed) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("include: read %s: %w", root, err)
	}
	if doc.Tag != RootTag {
		return nil, nil, &Error{File: root, Line: doc.Line, Wrapped: fmt.Errorf("%w: root element is <%s>, want <%s>", xmltree.ErrMalformed, doc.Tag, RootTag)}
	}
	f.seen[root] = true
	f.active = append(f.active, root)
	if err := f.expand(doc, 1); err != nil {
		return nil, nil, err
	}
	return doc, f.files, nil
}

func (f *flattener) load(name string) (*xmltree.Node, error) {
	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		return nil, err
	}
	f.files = append(f.files, name)
	return xmltree.ParseBytes(data, name)
}

// expand replaces include directives among n's descendants in place.
func (f *flattener) expand(n *xmltree.Node, depth int) error {
	out := n.Children[:0:0]
	for _, ch := range n.Children {
		if ch.Tag != Tag {
			if err := f.expand(ch, depth); err != nil {
				return err
			}
			out = append(out, ch)
			continue
		}
		spliced, err := f.include(ch, depth)
		if err != nil {
			return err
		}
		out = append(out, spliced...)
	}
	n.Children = out
	return nil
}

func (f *flattener) include(dir *xmltree.Node, depth int) ([]*xmltree.Node, error) {
	fail := func(target string, err error) error {
		return &Error{File: dir.File, Line: dir.Line, Target: target, Wrapped: err}
	}

	file, ok := dir.Attr("file")
	if !ok || file == "" {
		return nil, fail("", fmt.Errorf("%w: missing file attribute", ErrBadInclude))
	}
	if len(dir.Children) > 0 {
		return nil, fail(file, fmt.Errorf("%w: include must be empty", ErrBadInclude))
	}
	if depth > f.opts.MaxDepth {
		return nil, fail(file, fmt.Errorf("%w (limit %d)", ErrTooDeep, f.opts.MaxDepth))
	}

	target := path.Clean(path.Join(f.base, file))
	for _, a := range f.active {
		if a == target {
			return nil, fail(file, ErrIncludeCycle)
		}
	}
	if f.seen[target] {
		return nil, fail(file, ErrRepeatedInclude)
	}
	f.seen[target] = true

	f.opts.Logger.Debugw("including document", "file", target, "from", dir.File, "depth", depth)
	doc, err := f.load(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fail(file, ErrUnresolvedInclude)
		}
		if errors.Is(err, xmltree.ErrMalformed) {
			return nil, err
		}
		return nil, fail(file, err)
	}
	if doc.Tag != RootTag {
		return nil, fail(file, fmt.Errorf("%w: included root is <%s>, want <%s>", ErrBadInclude, doc.Tag, RootTag))
	}

	f.active = append(f.active, target)
	defer func() { f.active = f.active[:len(f.active)-1] }()
	if err := f.expand(doc, depth+1); err != nil {
		return nil, err
	}
	return doc.Children, nil
}
