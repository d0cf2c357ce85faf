// Package assets resolves the files a model references against the model's
// directory and checks that they exist. Texture headers can be probed to
// catch undecodable images before anything downstream opens them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/edaniels/golog"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/robodesc/internal/model"
)

var ErrUnresolvedAsset = fmt.Errorf("assets: %w", model.ErrUnresolvedPath)

type Kind string

const (
	MeshAsset    Kind = "mesh"
	TextureAsset Kind = "texture"
)

// Asset is a referenced file found on disk.
type Asset struct {
	Name   string
	Kind   Kind
	Path   string
	Size   int64
	Format string
	Width  int
	Height int
}

// Key is the map key ResolveAll uses for an asset.
func Key(kind Kind, name string) string {
	return string(kind) + "/" + name
}

type Options struct {
	// MeshDir and TextureDir override the compiler directories.
	MeshDir    string
	TextureDir string
	// RootDir is the OS directory the fs is rooted at; it is used for paths
	// that leave the fs.
	RootDir string
	Workers int
	Probe   bool
	Logger  golog.Logger
	Cache   *Cache
}

type Resolver struct {
	fsys fs.FS
	base string
	opts Options
}

// NewResolver resolves relative asset paths against base, the directory of
// the top-level model file inside fsys.
func NewResolver(fsys fs.FS, base string, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Cache == nil {
		opts.Cache = NewCache()
	}
	if base == "" {
		base = "."
	}
	return &Resolver{fsys: fsys, base: base, opts: opts}
}

func pick(dirs ...string) string {
	for _, d := range dirs {
		if d != "" {
			return d
		}
	}
	return ""
}

// MeshPath returns the path a mesh file resolves to.
func (r *Resolver) MeshPath(c model.Compiler, file string) string {
	return r.join(pick(r.opts.MeshDir, c.MeshDir, c.AssetDir), file)
}

// TexturePath returns the path a texture file resolves to.
func (r *Resolver) TexturePath(c model.Compiler, file string) string {
	return r.join(pick(r.opts.TextureDir, c.TextureDir, c.AssetDir), file)
}

func (r *Resolver) join(dir, file string) string {
	file = filepath.ToSlash(file)
	dir = filepath.ToSlash(dir)
	switch {
	case path.IsAbs(file):
		return path.Clean(file)
	case path.IsAbs(dir):
		return path.Join(dir, file)
	}
	return path.Join(r.base, dir, file)
}

// locate finds name either inside the fs or, for absolute and escaping
// paths, on the host file system.
func (r *Resolver) locate(name string) (fs.FS, string, string) {
	if path.IsAbs(name) {
		return os.DirFS("/"), strings.TrimPrefix(name, "/"), name
	}
	if fs.ValidPath(name) {
		return r.fsys, name, name
	}
	if r.opts.RootDir != "" {
		host := filepath.Join(r.opts.RootDir, name)
		if abs, err := filepath.Abs(host); err == nil {
			host = abs
		}
		host = filepath.ToSlash(host)
		return os.DirFS("/"), strings.TrimPrefix(host, "/"), host
	}
	return r.fsys, name, name
}

type job struct {
	kind Kind
	name string
	path string
}

// ResolveAll checks every mesh and texture file of m. The result is keyed by
// Key(kind, name).
func (r *Resolver) ResolveAll(ctx context.Context, m *model.Model) (map[string]Asset, error) {
	var jobs []job
	for _, me := range m.Meshes {
		jobs = append(jobs, job{kind: MeshAsset, name: me.Name, path: r.MeshPath(m.Compiler, me.File)})
	}
	for _, tx := range m.Textures {
		if tx.File == "" {
			continue
		}
		jobs = append(jobs, job{kind: TextureAsset, name: tx.Name, path: r.TexturePath(m.Compiler, tx.File)})
	}

	out := make(map[string]Asset, len(jobs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := r.resolve(j)
			if err != nil {
				return err
			}
			mu.Lock()
			out[Key(j.kind, j.name)] = a
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.opts.Logger.Debugw("assets resolved", "count", len(out), "cached", r.opts.Cache.Len())
	return out, nil
}

func (r *Resolver) resolve(j job) (Asset, error) {
	fsys, name, display := r.locate(j.path)
	probing := r.opts.Probe && j.kind == TextureAsset
	key := display
	if probing {
		key = "probe:" + display
	}
	shared, err := r.opts.Cache.Get(key, func() (*Asset, error) {
		return load(fsys, name, display, probing)
	})
	if err != nil {
		if errors.Is(err, ErrBadTexture) {
			return Asset{}, fmt.Errorf("%s %q: %w", j.kind, j.name, err)
		}
		return Asset{}, fmt.Errorf("%w: %s %q: %s: %w", ErrUnresolvedAsset, j.kind, j.name, display, err)
	}
	a := *shared
	a.Name = j.name
	a.Kind = j.kind
	return a, nil
}

func load(fsys fs.FS, name, display string, probeImage bool) (*Asset, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	a := &Asset{Path: display, Size: info.Size(), Format: extension(name)}
	if !probeImage {
		return a, nil
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, format, err := probe(f, name)
	if err != nil {
		return nil, err
	}
	a.Format = format
	a.Width = cfg.Width
	a.Height = cfg.Height
	return a, nil
}
