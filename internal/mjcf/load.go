package mjcf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/edaniels/golog"

	"github.com/san-kum/robodesc/internal/assets"
	"github.com/san-kum/robodesc/internal/include"
	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/validate"
	"github.com/san-kum/robodesc/internal/xmltree"
)

type Options struct {
	Logger          golog.Logger
	MaxIncludeDepth int
	// Strict promotes validation warnings to errors.
	Strict        bool
	CheckAssets   bool
	ProbeTextures bool
	Workers       int
	MeshDir       string
	TextureDir    string
	// RootDir is the host directory fsys is rooted at, if any.
	RootDir string
	Cache   *assets.Cache
}

// Result is a loaded and validated model.
type Result struct {
	Model    *model.Model
	Files    []string
	Assets   map[string]assets.Asset
	Warnings []validate.Issue
}

// Load reads name from fsys, splices includes, decodes the document,
// optionally resolves its asset files and validates the result. Any error
// aborts the load; no partial model is returned.
func Load(ctx context.Context, fsys fs.FS, name string, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	log := opts.Logger

	root, files, err := include.Flatten(fsys, name, include.Options{MaxDepth: opts.MaxIncludeDepth, Logger: log})
	if err != nil {
		return nil, &LoadError{File: name, Stage: "include", Wrapped: classifyInclude(err)}
	}
	log.Debugw("flattened document", "file", name, "files", len(files))

	m, err := Decode(root, DecodeOptions{Logger: log})
	if err != nil {
		return nil, &LoadError{File: name, Stage: "decode", Wrapped: err}
	}

	res := &Result{Model: m, Files: files}
	if opts.CheckAssets {
		r := assets.NewResolver(fsys, path.Dir(path.Clean(name)), assets.Options{
			MeshDir:    opts.MeshDir,
			TextureDir: opts.TextureDir,
			RootDir:    opts.RootDir,
			Workers:    opts.Workers,
			Probe:      opts.ProbeTextures,
			Logger:     log,
			Cache:      opts.Cache,
		})
		res.Assets, err = r.ResolveAll(ctx, m)
		if err != nil {
			return nil, &LoadError{File: name, Stage: "assets", Wrapped: err}
		}
	}

	rep := validate.Model(m, validate.Options{Strict: opts.Strict, Logger: log})
	if err := rep.Err(); err != nil {
		return nil, &LoadError{File: name, Stage: "validate", Wrapped: err}
	}
	res.Warnings = rep.Warnings()
	for i := range res.Warnings {
		log.Warnw("model warning", "file", name, "issue", res.Warnings[i].Error())
	}
	log.Infow("loaded model",
		"file", name,
		"model", m.Name,
		"bodies", len(m.Bodies),
		"joints", len(m.Joints),
		"actuators", len(m.Actuators),
		"warnings", len(res.Warnings))
	return res, nil
}

// LoadFile loads a model from the host file system. Includes and assets are
// resolved relative to the file's directory.
func LoadFile(ctx context.Context, file string, opts Options) (*Result, error) {
	dir := filepath.Dir(file)
	if opts.RootDir == "" {
		opts.RootDir = dir
	}
	return Load(ctx, os.DirFS(dir), filepath.Base(file), opts)
}

// Unmarshal decodes and validates a self-contained document. Include
// directives are rejected since there is nothing to resolve them against.
func Unmarshal(data []byte, opts Options) (*model.Model, error) {
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	root, err := xmltree.ParseBytes(data, "")
	if err != nil {
		return nil, fmt.Errorf("mjcf: %w: %w", ErrMalformed, err)
	}
	var inc *xmltree.Node
	root.Walk(func(n *xmltree.Node) bool {
		if n.Tag == include.Tag {
			inc = n
			return false
		}
		return true
	})
	if inc != nil {
		return nil, malformed(model.Source{Line: inc.Line}, inc.Tag, "", "include not allowed in an in-memory document")
	}
	m, err := Decode(root, DecodeOptions{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	if err := validate.Model(m, validate.Options{Strict: opts.Strict, Logger: opts.Logger}).Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// classifyInclude maps inclusion failures onto the shared sentinels.
func classifyInclude(err error) error {
	switch {
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrUnresolvedPath):
		return err
	case errors.Is(err, include.ErrUnresolvedInclude), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrUnresolvedPath, err)
	case errors.Is(err, xmltree.ErrMalformed),
		errors.Is(err, include.ErrIncludeCycle),
		errors.Is(err, include.ErrRepeatedInclude),
		errors.Is(err, include.ErrTooDeep),
		errors.Is(err, include.ErrBadInclude):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return err
}
