package validate

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
)

type Options struct {
	// Strict promotes warnings to errors.
	Strict bool
	Logger golog.Logger
}

type checker struct {
	m   *model.Model
	r   *Report
	opt Options
}

// Model checks every invariant of m and reports all findings.
func Model(m *model.Model, opts Options) *Report {
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	c := &checker{m: m, r: &Report{}, opt: opts}

	if c.tree() {
		c.bodies()
		c.joints()
		c.geoms()
		c.sites()
	}
	c.names()
	c.defaults()
	c.materials()
	c.actuators()
	c.excludes()
	c.keyframes()
	c.option()

	if opts.Strict {
		for i := range c.r.Issues {
			c.r.Issues[i].Severity = Error
		}
	}
	opts.Logger.Debugw("validated model",
		"model", m.Name,
		"errors", len(c.r.Errors()),
		"warnings", len(c.r.Warnings()),
		"strict", opts.Strict)
	return c.r
}

func (c *checker) errorf(kind error, entity string, idx int, name string, src model.Source, format string, a ...any) {
	c.r.add(Error, kind, entity, idx, name, src, format, a...)
}

func (c *checker) warnf(kind error, entity string, idx int, name string, src model.Source, format string, a ...any) {
	c.r.add(Warning, kind, entity, idx, name, src, format, a...)
}

// tree checks the arena links. Later checks index through Parent and the
// owned element lists, so they only run when this passes.
func (c *checker) tree() bool {
	m := c.m
	before := len(c.r.Issues)
	if len(m.Bodies) == 0 {
		c.errorf(model.ErrTreeCycle, "body", 0, "", model.Source{}, "model has no root body")
		return false
	}
	if m.Bodies[0].Parent != -1 {
		c.errorf(model.ErrTreeCycle, "body", 0, m.Bodies[0].Name, m.Bodies[0].Src, "root body has parent %d", m.Bodies[0].Parent)
	}
	for i := 1; i < len(m.Bodies); i++ {
		b := &m.Bodies[i]
		if b.Parent < 0 || b.Parent >= len(m.Bodies) {
			c.errorf(model.ErrTreeCycle, "body", i, b.Name, b.Src, "parent index %d out of range", b.Parent)
			continue
		}
		if _, err := m.Path(i); err != nil {
			c.errorf(model.ErrTreeCycle, "body", i, b.Name, b.Src, "parent chain does not reach the root")
		}
	}
	if len(c.r.Issues) > before {
		return false
	}

	seen := make([]int, len(m.Bodies))
	for i := range m.Bodies {
		b := &m.Bodies[i]
		for _, ch := range b.Children {
			if ch <= 0 || ch >= len(m.Bodies) || m.Bodies[ch].Parent != i {
				c.errorf(model.ErrTreeCycle, "body", i, b.Name, b.Src, "child edge to %d does not match its parent", ch)
				continue
			}
			seen[ch]++
		}
		owned := []struct {
			kind string
			ids  []int
			n    int
			body func(int) int
		}{
			{"joint", b.Joints, len(m.Joints), func(k int) int { return m.Joints[k].Body }},
			{"geom", b.Geoms, len(m.Geoms), func(k int) int { return m.Geoms[k].Body }},
			{"site", b.Sites, len(m.Sites), func(k int) int { return m.Sites[k].Body }},
		}
		for _, o := range owned {
			for _, k := range o.ids {
				if k < 0 || k >= o.n || o.body(k) != i {
					c.errorf(model.ErrMalformed, "body", i, b.Name, b.Src, "%s %d is not owned by this body", o.kind, k)
				}
			}
		}
	}
	for i := 1; i < len(m.Bodies); i++ {
		if seen[i] != 1 {
			b := &m.Bodies[i]
			c.errorf(model.ErrTreeCycle, "body", i, b.Name, b.Src, "listed %d times among its parent's children", seen[i])
		}
	}
	for _, el := range []struct {
		kind string
		n    int
		body func(int) (int, string, model.Source)
	}{
		{"joint", len(m.Joints), func(k int) (int, string, model.Source) { return m.Joints[k].Body, m.Joints[k].Name, m.Joints[k].Src }},
		{"geom", len(m.Geoms), func(k int) (int, string, model.Source) { return m.Geoms[k].Body, m.Geoms[k].Name, m.Geoms[k].Src }},
		{"site", len(m.Sites), func(k int) (int, string, model.Source) { return m.Sites[k].Body, m.Sites[k].Name, m.Sites[k].Src }},
	} {
		for k := 0; k < el.n; k++ {
			if b, name, src := el.body(k); b < 0 || b >= len(m.Bodies) {
				c.errorf(model.ErrMalformed, el.kind, k, name, src, "owner body %d out of range", b)
			}
		}
	}
	return len(c.r.Issues) == before
}

func (c *checker) names() {
	m := c.m
	type named struct {
		name string
		src  model.Source
	}
	kinds := map[string][]named{}
	for _, b := range m.Bodies {
		kinds["body"] = append(kinds["body"], named{b.Name, b.Src})
	}
	for _, j := range m.Joints {
		kinds["joint"] = append(kinds["joint"], named{j.Name, j.Src})
	}
	for _, g := range m.Geoms {
		kinds["geom"] = append(kinds["geom"], named{g.Name, g.Src})
	}
	for _, s := range m.Sites {
		kinds["site"] = append(kinds["site"], named{s.Name, s.Src})
	}
	for _, me := range m.Meshes {
		kinds["mesh"] = append(kinds["mesh"], named{me.Name, me.Src})
	}
	for _, t := range m.Textures {
		kinds["texture"] = append(kinds["texture"], named{t.Name, t.Src})
	}
	for _, mat := range m.Materials {
		kinds["material"] = append(kinds["material"], named{mat.Name, mat.Src})
	}
	for _, a := range m.Actuators {
		kinds["actuator"] = append(kinds["actuator"], named{a.Name, a.Src})
	}
	for _, d := range m.Defaults {
		kinds["default class"] = append(kinds["default class"], named{d.Name, d.Src})
	}
	for _, k := range m.Keyframes {
		kinds["keyframe"] = append(kinds["keyframe"], named{k.Name, k.Src})
	}

	for _, kind := range []string{"body", "joint", "geom", "site", "mesh", "texture", "material", "actuator", "default class", "keyframe"} {
		first := map[string]model.Source{}
		for i, n := range kinds[kind] {
			if n.name == "" {
				continue
			}
			if prev, dup := first[n.name]; dup {
				c.errorf(model.ErrDuplicateName, kind, i, n.name, n.src, "name already used at %s:%d", prev.File, prev.Line)
				continue
			}
			first[n.name] = n.src
		}
	}
}

func (c *checker) defaults() {
	for i, d := range c.m.Defaults {
		if i == 0 {
			if d.Parent != -1 || d.Name != model.MainClass {
				c.errorf(model.ErrMalformed, "default class", i, d.Name, d.Src, "first class must be %q without a parent", model.MainClass)
			}
			continue
		}
		if d.Parent < 0 || d.Parent >= i {
			c.errorf(model.ErrMalformed, "default class", i, d.Name, d.Src, "parent class index %d must precede the class", d.Parent)
		}
	}
}

func (c *checker) checkPose(entity string, idx int, name string, src model.Source, p spatial.Pose) {
	q := p.Quat
	if !spatial.Finite(p.Pos[0], p.Pos[1], p.Pos[2], q.W, q.V[0], q.V[1], q.V[2]) {
		c.errorf(model.ErrOutOfRange, entity, idx, name, src, "pose has non-finite values")
		return
	}
	if q.Len() == 0 {
		c.errorf(model.ErrOutOfRange, entity, idx, name, src, "zero quaternion")
	}
}

func (c *checker) bodies() {
	m := c.m
	for i := range m.Bodies {
		b := &m.Bodies[i]
		if i > 0 {
			c.checkPose("body", i, b.Name, b.Src, b.Pose)
		}
		in := b.Inertial
		if in == nil {
			if i > 0 && len(b.Joints) > 0 && len(b.Geoms) == 0 {
				c.warnf(model.ErrOutOfRange, "body", i, b.Name, b.Src, "movable body has no mass")
			}
			continue
		}
		c.checkPose("body", i, b.Name, in.Src, in.Pose)
		switch {
		case !spatial.Finite(in.Mass):
			c.errorf(model.ErrOutOfRange, "body", i, b.Name, in.Src, "mass %g is not finite", in.Mass)
		case in.Mass < 0:
			c.errorf(model.ErrOutOfRange, "body", i, b.Name, in.Src, "negative mass %g", in.Mass)
		case in.Mass == 0 && len(b.Joints) > 0:
			c.warnf(model.ErrOutOfRange, "body", i, b.Name, in.Src, "movable body has zero mass")
		}
		if in.Diag != nil {
			if err := spatial.CheckInertia(*in.Diag); err != nil {
				c.errorf(model.ErrOutOfRange, "body", i, b.Name, in.Src, "diaginertia: %v", err)
			}
		}
		if in.Full != nil {
			if err := spatial.CheckFullInertia(*in.Full); err != nil {
				c.errorf(model.ErrOutOfRange, "body", i, b.Name, in.Src, "fullinertia: %v", err)
			}
		}
		if in.Diag != nil && in.Full != nil {
			c.errorf(model.ErrMalformed, "body", i, b.Name, in.Src, "diaginertia and fullinertia are exclusive")
		}
	}
}

func (c *checker) joints() {
	m := c.m
	for i := range m.Joints {
		j := &m.Joints[i]
		if j.Body == 0 {
			c.errorf(model.ErrMalformed, "joint", i, j.Name, j.Src, "joints cannot attach to the world body")
		}
		if !spatial.Finite(j.Damping, j.FrictionLoss, j.Armature, j.Stiffness, j.Ref, j.Pos[0], j.Pos[1], j.Pos[2], j.Axis[0], j.Axis[1], j.Axis[2]) {
			c.errorf(model.ErrOutOfRange, "joint", i, j.Name, j.Src, "non-finite parameter")
			continue
		}
		if j.Range != nil {
			lo, hi := j.Range[0], j.Range[1]
			if !(lo < hi) {
				c.errorf(model.ErrOutOfRange, "joint", i, j.Name, j.Src, "range [%g, %g]: lower bound must be below upper bound", lo, hi)
			}
		}
		if j.Limited == model.LimitedTrue && j.Range == nil {
			c.errorf(model.ErrMalformed, "joint", i, j.Name, j.Src, "limited joint has no range")
		}
		if (j.Type == model.Hinge || j.Type == model.Slide) && j.Axis.Len() == 0 {
			c.errorf(model.ErrOutOfRange, "joint", i, j.Name, j.Src, "zero axis")
		}
		for _, p := range []struct {
			name string
			v    float64
		}{{"damping", j.Damping}, {"frictionloss", j.FrictionLoss}, {"armature", j.Armature}, {"stiffness", j.Stiffness}} {
			if p.v < 0 {
				c.errorf(model.ErrOutOfRange, "joint", i, j.Name, j.Src, "negative %s %g", p.name, p.v)
			}
		}
		if j.Type == model.Free {
			if j.Body > 0 && m.Bodies[j.Body].Parent != 0 {
				c.errorf(model.ErrMalformed, "joint", i, j.Name, j.Src, "free joint on body %q, which is not a child of the world", m.Bodies[j.Body].Name)
			}
			if j.Range != nil {
				c.warnf(model.ErrMalformed, "joint", i, j.Name, j.Src, "range is ignored on free joints")
			}
		}
	}
}

// sizeArity is the number of size values each primitive needs.
var sizeArity = map[model.GeomType]int{
	model.Sphere:    1,
	model.Capsule:   2,
	model.Cylinder:  2,
	model.Ellipsoid: 3,
	model.Box:       3,
	model.Plane:     3,
}

func (c *checker) geoms() {
	m := c.m
	for i := range m.Geoms {
		g := &m.Geoms[i]
		c.checkPose("geom", i, g.Name, g.Src, g.Pose)

		switch g.Type {
		case model.MeshGeom:
			if g.Mesh == "" {
				c.errorf(model.ErrMalformed, "geom", i, g.Name, g.Src, "mesh geom names no mesh")
			} else if _, ok := m.MeshByName(g.Mesh); !ok {
				c.errorf(model.ErrDanglingRef, "geom", i, g.Name, g.Src, "mesh %q is not defined", g.Mesh)
			}
		case model.HField:
			c.errorf(model.ErrMalformed, "geom", i, g.Name, g.Src, "height field geoms are not supported")
		default:
			if g.Mesh != "" {
				c.warnf(model.ErrMalformed, "geom", i, g.Name, g.Src, "mesh %q is ignored on a %s geom", g.Mesh, g.Type)
			}
			c.geomSize(i, g)
		}

		if g.Material != "" {
			if _, ok := m.MaterialByName(g.Material); !ok {
				c.errorf(model.ErrDanglingRef, "geom", i, g.Name, g.Src, "material %q is not defined", g.Material)
			}
		}
		switch g.Condim {
		case 1, 3, 4, 6:
		default:
			c.errorf(model.ErrOutOfRange, "geom", i, g.Name, g.Src, "condim %d is not one of 1, 3, 4, 6", g.Condim)
		}
		if g.Contype < 0 || g.Conaffinity < 0 {
			c.errorf(model.ErrOutOfRange, "geom", i, g.Name, g.Src, "negative contype or conaffinity")
		}
		if g.Friction[0] < 0 || g.Friction[1] < 0 || g.Friction[2] < 0 {
			c.errorf(model.ErrOutOfRange, "geom", i, g.Name, g.Src, "negative friction")
		}
		if g.Mass != nil && !(*g.Mass >= 0) {
			c.errorf(model.ErrOutOfRange, "geom", i, g.Name, g.Src, "mass %g must be non-negative", *g.Mass)
		}
		c.rgba("geom", i, g.Name, g.Src, g.RGBA)
	}
}

func (c *checker) geomSize(i int, g *model.Geom) {
	want, ok := sizeArity[g.Type]
	if !ok {
		return
	}
	if len(g.Size) < want {
		c.errorf(model.ErrMalformed, "geom", i, g.Name, g.Src, "%s needs %d size values, got %d", g.Type, want, len(g.Size))
		return
	}
	for k := 0; k < want; k++ {
		v := g.Size[k]
		if g.Type == model.Plane {
			if v < 0 {
				c.errorf(model.ErrOutOfRange, "geom", i, g.Name, g.Src, "negative plane size %g", v)
			}
			continue
		}
		if !(v > 0) {
			c.errorf(model.ErrOutOfRange, "geom", i, g.Name, g.Src, "size %g must be positive", v)
		}
	}
}

func (c *checker) rgba(entity string, idx int, name string, src model.Source, v mgl64.Vec4) {
	for _, x := range v {
		if x < 0 || x > 1 {
			c.warnf(model.ErrOutOfRange, entity, idx, name, src, "rgba %v outside [0, 1]", v)
			return
		}
	}
}

func (c *checker) sites() {
	for i := range c.m.Sites {
		s := &c.m.Sites[i]
		c.checkPose("site", i, s.Name, s.Src, s.Pose)
		for _, v := range s.Size {
			if !(v >= 0) {
				c.errorf(model.ErrOutOfRange, "site", i, s.Name, s.Src, "size %g must be non-negative", v)
				break
			}
		}
	}
}

func (c *checker) materials() {
	m := c.m
	for i := range m.Materials {
		mat := &m.Materials[i]
		if mat.Texture != "" {
			if _, ok := m.TextureByName(mat.Texture); !ok {
				c.errorf(model.ErrDanglingRef, "material", i, mat.Name, mat.Src, "texture %q is not defined", mat.Texture)
			}
		}
		c.rgba("material", i, mat.Name, mat.Src, mat.RGBA)
	}
	for i := range m.Textures {
		t := &m.Textures[i]
		if t.Width < 0 || t.Height < 0 {
			c.errorf(model.ErrOutOfRange, "texture", i, t.Name, t.Src, "negative size %dx%d", t.Width, t.Height)
		}
	}
}

func (c *checker) checkRange(entity string, i int, name string, src model.Source, attr string, rng *[2]float64, lim model.Limited) {
	if rng != nil && !(rng[0] < rng[1]) {
		c.errorf(model.ErrOutOfRange, entity, i, name, src, "%s [%g, %g]: lower bound must be below upper bound", attr, rng[0], rng[1])
	}
	if lim == model.LimitedTrue && rng == nil {
		c.errorf(model.ErrMalformed, entity, i, name, src, "%s is limited but not given", attr)
	}
}

func (c *checker) actuators() {
	m := c.m
	driven := map[string]int{}
	for i := range m.Actuators {
		a := &m.Actuators[i]
		if _, ok := m.JointByName(a.Joint); !ok {
			c.errorf(model.ErrDanglingRef, "actuator", i, a.Name, a.Src, "joint %q is not defined", a.Joint)
		} else if prev, dup := driven[a.Joint]; dup {
			c.errorf(model.ErrDuplicateName, "actuator", i, a.Name, a.Src, "joint %q is already driven by actuator %d", a.Joint, prev)
		} else {
			driven[a.Joint] = i
		}
		c.checkRange("actuator", i, a.Name, a.Src, "ctrlrange", a.CtrlRange, a.CtrlLimited)
		c.checkRange("actuator", i, a.Name, a.Src, "forcerange", a.ForceRange, a.ForceLimited)
		if a.Kp < 0 || a.Kv < 0 {
			c.errorf(model.ErrOutOfRange, "actuator", i, a.Name, a.Src, "negative gain kp=%g kv=%g", a.Kp, a.Kv)
		}
		if a.Gear == 0 {
			c.warnf(model.ErrOutOfRange, "actuator", i, a.Name, a.Src, "zero gear")
		}
	}
}

func (c *checker) excludes() {
	m := c.m
	for i, ex := range m.Excludes {
		for _, name := range []string{ex.Body1, ex.Body2} {
			if _, ok := m.BodyByName(name); !ok {
				c.errorf(model.ErrDanglingRef, "exclude", i, ex.Name, ex.Src, "body %q is not defined", name)
			}
		}
		if ex.Body1 == ex.Body2 {
			c.errorf(model.ErrMalformed, "exclude", i, ex.Name, ex.Src, "body %q excluded from itself", ex.Body1)
		}
	}
}

func (c *checker) keyframes() {
	m := c.m
	nq := m.NQ()
	offsets := m.QposOffsets()
	for i, k := range m.Keyframes {
		if !spatial.Finite(k.Time) {
			c.errorf(model.ErrOutOfRange, "keyframe", i, k.Name, k.Src, "time is not finite")
		}
		if len(k.Qpos) > 0 {
			if len(k.Qpos) != nq {
				c.errorf(model.ErrMalformed, "keyframe", i, k.Name, k.Src, "qpos has %d values, model has %d", len(k.Qpos), nq)
			} else {
				for ji := range m.Joints {
					j := &m.Joints[ji]
					if j.QposDim() != 1 || j.Range == nil || !j.IsLimited(m.Compiler.AutoLimits) {
						continue
					}
					if v := k.Qpos[offsets[ji]]; v < j.Range[0] || v > j.Range[1] {
						c.errorf(model.ErrOutOfRange, "keyframe", i, k.Name, k.Src, "joint %q position %g outside [%g, %g]", j.Name, v, j.Range[0], j.Range[1])
					}
				}
			}
		}
		if len(k.Ctrl) > 0 {
			if len(k.Ctrl) != len(m.Actuators) {
				c.errorf(model.ErrMalformed, "keyframe", i, k.Name, k.Src, "ctrl has %d values, model has %d actuators", len(k.Ctrl), len(m.Actuators))
				continue
			}
			for ai, v := range k.Ctrl {
				a := &m.Actuators[ai]
				if a.CtrlRange == nil || !a.CtrlLimited.Resolve(true, m.Compiler.AutoLimits) {
					continue
				}
				if v < a.CtrlRange[0] || v > a.CtrlRange[1] {
					c.errorf(model.ErrOutOfRange, "keyframe", i, k.Name, k.Src, "ctrl %d value %g outside [%g, %g]", ai, v, a.CtrlRange[0], a.CtrlRange[1])
				}
			}
		}
	}
}

func (c *checker) option() {
	o := c.m.Option
	if !(o.Timestep > 0) || math.IsInf(o.Timestep, 0) {
		c.errorf(model.ErrOutOfRange, "option", 0, "", model.Source{}, "timestep %g must be positive", o.Timestep)
	}
}
