package mjcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/xmltree"
)

// reader reads typed attribute values of one element. Lookups see the
// element's own attributes over those inherited from its default classes.
// The first parse failure is kept in err and later reads return defaults.
type reader struct {
	n     *xmltree.Node
	attrs []model.Attr
	err   error
}

func newReader(n *xmltree.Node, inherited []model.Attr) *reader {
	return &reader{n: n, attrs: merge(inherited, ownAttrs(n))}
}

func ownAttrs(n *xmltree.Node) []model.Attr {
	out := make([]model.Attr, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		if a.Name == "class" || a.Name == "childclass" {
			continue
		}
		out = append(out, model.Attr{Name: a.Name, Value: a.Value})
	}
	return out
}

// merge overlays top on base, keeping base order and appending new names.
func merge(base, top []model.Attr) []model.Attr {
	out := make([]model.Attr, len(base), len(base)+len(top))
	copy(out, base)
	for _, a := range top {
		replaced := false
		for i := range out {
			if out[i].Name == a.Name {
				out[i].Value = a.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, a)
		}
	}
	return out
}

func (r *reader) src() model.Source {
	return model.Source{File: r.n.File, Line: r.n.Line}
}

func (r *reader) fail(format string, a ...any) {
	if r.err != nil {
		return
	}
	name, _ := r.n.Attr("name")
	r.err = malformed(r.src(), r.n.Tag, name, format, a...)
}

func (r *reader) lookup(name string) (string, bool) {
	for _, a := range r.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (r *reader) has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// own reports whether the element itself carries the attribute.
func (r *reader) own(name string) bool {
	_, ok := r.n.Attr(name)
	return ok
}

func (r *reader) str(name, def string) string {
	if v, ok := r.lookup(name); ok {
		return v
	}
	return def
}

func (r *reader) oneOf(name, def string, allowed ...string) string {
	v := r.str(name, def)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.fail("attribute %s: %q is not one of %s", name, v, strings.Join(allowed, ", "))
	return def
}

func (r *reader) boolean(name string, def bool) bool {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	r.fail("attribute %s: %q is not true or false", name, v)
	return def
}

func (r *reader) limited(name string) model.Limited {
	v, ok := r.lookup(name)
	if !ok {
		return model.LimitedAuto
	}
	l, ok := model.ParseLimited(v)
	if !ok {
		r.fail("attribute %s: %q is not auto, true or false", name, v)
	}
	return l
}

func (r *reader) integer(name string, def int) int {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.fail("attribute %s: %q is not an integer", name, v)
		return def
	}
	return i
}

// floats parses a list of between lo and hi numbers; hi <= 0 means no upper
// bound. It returns nil when the attribute is absent.
func (r *reader) floats(name string, lo, hi int) []float64 {
	v, ok := r.lookup(name)
	if !ok {
		return nil
	}
	vals, err := parseFloats(v)
	if err != nil {
		r.fail("attribute %s: %v", name, err)
		return nil
	}
	if len(vals) < lo || (hi > 0 && len(vals) > hi) {
		switch {
		case lo == hi:
			r.fail("attribute %s: want %d numbers, got %d", name, lo, len(vals))
		case hi <= 0:
			r.fail("attribute %s: want at least %d numbers, got %d", name, lo, len(vals))
		default:
			r.fail("attribute %s: want %d to %d numbers, got %d", name, lo, hi, len(vals))
		}
		return nil
	}
	return vals
}

func (r *reader) float(name string, def float64) float64 {
	vals := r.floats(name, 1, 1)
	if vals == nil {
		return def
	}
	return vals[0]
}

func (r *reader) optFloat(name string) *float64 {
	vals := r.floats(name, 1, 1)
	if vals == nil {
		return nil
	}
	return &vals[0]
}

func (r *reader) vec3(name string, def mgl64.Vec3) mgl64.Vec3 {
	vals := r.floats(name, 3, 3)
	if vals == nil {
		return def
	}
	return mgl64.Vec3{vals[0], vals[1], vals[2]}
}

func (r *reader) vec4(name string, def mgl64.Vec4) mgl64.Vec4 {
	vals := r.floats(name, 4, 4)
	if vals == nil {
		return def
	}
	return mgl64.Vec4{vals[0], vals[1], vals[2], vals[3]}
}

func (r *reader) pair(name string) *[2]float64 {
	vals := r.floats(name, 2, 2)
	if vals == nil {
		return nil
	}
	return &[2]float64{vals[0], vals[1]}
}

// partial reads up to len(def) numbers, filling the rest from def.
func (r *reader) partial(name string, def []float64) []float64 {
	out := append([]float64(nil), def...)
	vals := r.floats(name, 1, len(def))
	copy(out, vals)
	return out
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty number list")
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", f)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloats(vs ...float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, " ")
}
