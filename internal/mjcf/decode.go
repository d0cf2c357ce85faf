package mjcf

import (
	"fmt"
	"path"
	"strings"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
	"github.com/san-kum/robodesc/internal/xmltree"
)

const RootTag = "mujoco"

// Sections read without being interpreted.
var ignoredSections = map[string]bool{
	"size":      true,
	"visual":    true,
	"statistic": true,
	"custom":    true,
	"extension": true,
}

// Sections whose content is outside the supported entity set.
var unsupportedSections = map[string]bool{
	"tendon":     true,
	"equality":   true,
	"sensor":     true,
	"deformable": true,
}

// Elements that only matter to a renderer.
var renderOnly = map[string]bool{
	"camera": true,
	"light":  true,
}

var orientationKeys = []string{"quat", "euler", "axisangle", "zaxis", "xyaxes"}

type DecodeOptions struct {
	Logger golog.Logger
}

type decoder struct {
	m      *model.Model
	defs   *defaults
	degree bool
	log    golog.Logger
}

// Decode interprets a flattened <mujoco> document. Default classes are
// resolved into every element, angles are converted to radians and
// orientations to unit quaternions.
func Decode(root *xmltree.Node, opts DecodeOptions) (*model.Model, error) {
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	src := model.Source{File: root.File, Line: root.Line}
	if root.Tag != RootTag {
		return nil, malformed(src, root.Tag, "", "root element must be <%s>", RootTag)
	}
	name, _ := root.Attr("model")
	d := &decoder{
		m:      model.New(name),
		defs:   newDefaults(),
		degree: true,
		log:    opts.Logger,
	}

	sections := map[string][]*xmltree.Node{}
	for _, ch := range root.Children {
		switch {
		case ignoredSections[ch.Tag]:
			d.log.Debugw("skipping section", "section", ch.Tag, "file", ch.File, "line", ch.Line)
		case unsupportedSections[ch.Tag]:
			d.log.Warnw("ignoring unsupported section", "section", ch.Tag, "file", ch.File, "line", ch.Line)
		default:
			sections[ch.Tag] = append(sections[ch.Tag], ch)
		}
	}

	steps := []struct {
		tag string
		fn  func(*xmltree.Node) error
	}{
		{"compiler", d.compiler},
		{"option", d.option},
		{"default", func(n *xmltree.Node) error { return d.defs.decode(n, -1) }},
	}
	for _, s := range steps {
		for _, n := range sections[s.tag] {
			if err := s.fn(n); err != nil {
				return nil, err
			}
		}
		delete(sections, s.tag)
	}
	if d.degree {
		if err := d.defs.toRadians(); err != nil {
			return nil, err
		}
	}
	classes, err := d.defs.modelClasses(d.degree)
	if err != nil {
		return nil, err
	}
	d.m.Defaults = classes

	for _, n := range sections["asset"] {
		if err := d.assets(n); err != nil {
			return nil, err
		}
	}
	if err := d.worldbody(sections["worldbody"]); err != nil {
		return nil, err
	}
	for _, tag := range []string{"contact", "actuator", "keyframe"} {
		for _, n := range sections[tag] {
			var err error
			switch tag {
			case "contact":
				err = d.contact(n)
			case "actuator":
				err = d.actuators(n)
			case "keyframe":
				err = d.keyframes(n)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	for _, tag := range []string{"asset", "worldbody", "contact", "actuator", "keyframe"} {
		delete(sections, tag)
	}
	for tag, nodes := range sections {
		n := nodes[0]
		return nil, malformed(model.Source{File: n.File, Line: n.Line}, tag, "", "unknown section")
	}

	d.log.Debugw("decoded model",
		"model", d.m.Name,
		"bodies", len(d.m.Bodies),
		"joints", len(d.m.Joints),
		"geoms", len(d.m.Geoms),
		"actuators", len(d.m.Actuators))
	return d.m, nil
}

func (d *decoder) compiler(n *xmltree.Node) error {
	r := newReader(n, nil)
	if r.has("angle") {
		d.degree = r.oneOf("angle", "degree", "degree", "radian") == "degree"
	}
	c := &d.m.Compiler
	if r.has("eulerseq") {
		c.EulerSeq = r.str("eulerseq", c.EulerSeq)
		if !spatial.ValidEulerSeq(c.EulerSeq) {
			r.fail("attribute eulerseq: %q is not three of x, y, z, X, Y, Z", c.EulerSeq)
		}
	}
	c.MeshDir = r.str("meshdir", c.MeshDir)
	c.TextureDir = r.str("texturedir", c.TextureDir)
	c.AssetDir = r.str("assetdir", c.AssetDir)
	c.AutoLimits = r.boolean("autolimits", c.AutoLimits)
	return r.err
}

func (d *decoder) option(n *xmltree.Node) error {
	r := newReader(n, nil)
	o := &d.m.Option
	o.Timestep = r.float("timestep", o.Timestep)
	o.Gravity = r.vec3("gravity", o.Gravity)
	if r.has("integrator") {
		o.Integrator = r.oneOf("integrator", o.Integrator, "Euler", "RK4", "implicit", "implicitfast")
	}
	return r.err
}

// class picks the default class of n: its own class attribute, else the
// inherited childclass, else main.
func (d *decoder) class(n *xmltree.Node, inherited string) (int, string, error) {
	name, ok := n.Attr("class")
	if !ok {
		name = inherited
	}
	if name == "" {
		name = model.MainClass
	}
	id, ok := d.defs.lookup(name)
	if !ok {
		elName, _ := n.Attr("name")
		return 0, "", &model.ElementError{
			Src:     model.Source{File: n.File, Line: n.Line},
			Tag:     n.Tag,
			Name:    elName,
			Wrapped: fmt.Errorf("%w: default class %q", model.ErrDanglingRef, name),
		}
	}
	return id, name, nil
}

func (d *decoder) classReader(n *xmltree.Node, inherited, tag string) (*reader, string, error) {
	id, name, err := d.class(n, inherited)
	if err != nil {
		return nil, "", err
	}
	return newReader(n, d.defs.attrs(id, tag)), name, nil
}

func (d *decoder) assets(n *xmltree.Node) error {
	for _, ch := range n.Children {
		var err error
		switch ch.Tag {
		case "mesh":
			err = d.mesh(ch)
		case "texture":
			err = d.texture(ch)
		case "material":
			err = d.material(ch)
		default:
			err = malformed(model.Source{File: ch.File, Line: ch.Line}, ch.Tag, "", "unknown asset element")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func baseName(file string) string {
	b := path.Base(strings.ReplaceAll(file, "\\", "/"))
	return strings.TrimSuffix(b, path.Ext(b))
}

func (d *decoder) mesh(n *xmltree.Node) error {
	r, class, err := d.classReader(n, "", "mesh")
	if err != nil {
		return err
	}
	me := model.Mesh{
		Class: class,
		File:  r.str("file", ""),
		Scale: r.vec3("scale", mgl64.Vec3{1, 1, 1}),
		Src:   r.src(),
	}
	if me.File == "" {
		r.fail("mesh needs a file")
	}
	me.Name = r.str("name", baseName(me.File))
	d.m.Meshes = append(d.m.Meshes, me)
	return r.err
}

func (d *decoder) texture(n *xmltree.Node) error {
	r := newReader(n, nil)
	tx := model.Texture{
		Type:    r.oneOf("type", "cube", "2d", "cube", "skybox"),
		File:    r.str("file", ""),
		Builtin: r.oneOf("builtin", "none", "none", "gradient", "checker", "flat"),
		Width:   r.integer("width", 0),
		Height:  r.integer("height", 0),
		RGB1:    r.vec3("rgb1", mgl64.Vec3{0.8, 0.8, 0.8}),
		RGB2:    r.vec3("rgb2", mgl64.Vec3{0.5, 0.5, 0.5}),
		Src:     r.src(),
	}
	if tx.File == "" && tx.Builtin == "none" {
		r.fail("texture needs a file or a builtin")
	}
	if tx.File != "" && tx.Builtin != "none" {
		r.fail("texture cannot have both a file and a builtin")
	}
	def := ""
	if tx.File != "" {
		def = baseName(tx.File)
	}
	tx.Name = r.str("name", def)
	d.m.Textures = append(d.m.Textures, tx)
	return r.err
}

func (d *decoder) material(n *xmltree.Node) error {
	r, class, err := d.classReader(n, "", "material")
	if err != nil {
		return err
	}
	mat := model.Material{
		Name:        r.str("name", ""),
		Class:       class,
		Texture:     r.str("texture", ""),
		RGBA:        r.vec4("rgba", mgl64.Vec4{1, 1, 1, 1}),
		Specular:    r.float("specular", 0.5),
		Shininess:   r.float("shininess", 0.5),
		Reflectance: r.float("reflectance", 0),
		Emission:    r.float("emission", 0),
		Src:         r.src(),
	}
	if mat.Name == "" {
		r.fail("material needs a name")
	}
	d.m.Materials = append(d.m.Materials, mat)
	return r.err
}

// worldbody merges every <worldbody> section into the world body: the
// world's own geoms and sites first, then the body subtrees in document
// order.
func (d *decoder) worldbody(sections []*xmltree.Node) error {
	for _, wb := range sections {
		if len(wb.Attrs) > 0 {
			return malformed(model.Source{File: wb.File, Line: wb.Line}, wb.Tag, "", "unexpected attribute %q", wb.Attrs[0].Name)
		}
		if err := d.bodyElements(wb, 0, ""); err != nil {
			return err
		}
	}
	for _, wb := range sections {
		if err := d.bodyChildren(wb, 0, ""); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) body(n *xmltree.Node, parent int, childclass string) error {
	r := newReader(n, nil)
	if cc, ok := n.Attr("childclass"); ok {
		if _, found := d.defs.lookup(cc); !found {
			name, _ := n.Attr("name")
			return &model.ElementError{Src: r.src(), Tag: n.Tag, Name: name, Wrapped: fmt.Errorf("%w: childclass %q", model.ErrDanglingRef, cc)}
		}
		childclass = cc
	}
	b := model.Body{
		Name:       r.str("name", ""),
		ChildClass: childclass,
		Pose:       d.pose(r),
		Mocap:      r.boolean("mocap", false),
		Src:        r.src(),
	}
	if r.err != nil {
		return r.err
	}
	id := d.m.AddBody(parent, b)
	if err := d.bodyElements(n, id, childclass); err != nil {
		return err
	}
	return d.bodyChildren(n, id, childclass)
}

func (d *decoder) bodyElements(n *xmltree.Node, body int, childclass string) error {
	world := body == 0
	for _, ch := range n.Children {
		src := model.Source{File: ch.File, Line: ch.Line}
		var err error
		switch {
		case ch.Tag == "body":
			continue
		case renderOnly[ch.Tag]:
			d.log.Debugw("skipping render element", "element", ch.Tag, "file", ch.File, "line", ch.Line)
		case ch.Tag == "geom":
			err = d.geom(ch, body, childclass)
		case ch.Tag == "site":
			err = d.site(ch, body, childclass)
		case world && (ch.Tag == "joint" || ch.Tag == "freejoint" || ch.Tag == "inertial"):
			err = malformed(src, ch.Tag, "", "not allowed in worldbody")
		case ch.Tag == "inertial":
			if d.m.Bodies[body].Inertial != nil {
				err = malformed(src, ch.Tag, "", "body has more than one inertial")
				break
			}
			err = d.inertial(ch, body)
		case ch.Tag == "joint":
			err = d.joint(ch, body, childclass)
		case ch.Tag == "freejoint":
			err = d.freejoint(ch, body)
		default:
			err = malformed(src, ch.Tag, "", "unknown element in <%s>", n.Tag)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) bodyChildren(n *xmltree.Node, body int, childclass string) error {
	for _, ch := range n.Children {
		if ch.Tag != "body" {
			continue
		}
		if err := d.body(ch, body, childclass); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) inertial(n *xmltree.Node, body int) error {
	r := newReader(n, nil)
	in := &model.Inertial{
		Pose: d.pose(r),
		Mass: r.float("mass", 0),
		Src:  r.src(),
	}
	if !r.has("mass") {
		r.fail("inertial needs a mass")
	}
	if r.has("diaginertia") && r.has("fullinertia") {
		r.fail("diaginertia and fullinertia are exclusive")
	}
	if r.has("diaginertia") {
		v := r.vec3("diaginertia", mgl64.Vec3{})
		in.Diag = &v
	}
	if vals := r.floats("fullinertia", 6, 6); vals != nil {
		var full [6]float64
		copy(full[:], vals)
		in.Full = &full
	}
	if r.err != nil {
		return r.err
	}
	d.m.Bodies[body].Inertial = in
	return nil
}

func (d *decoder) joint(n *xmltree.Node, body int, childclass string) error {
	r, class, err := d.classReader(n, childclass, "joint")
	if err != nil {
		return err
	}
	j := model.Joint{
		Name:         r.str("name", ""),
		Class:        class,
		Body:         body,
		Type:         model.JointType(r.oneOf("type", "hinge", "hinge", "slide", "ball", "free")),
		Pos:          r.vec3("pos", mgl64.Vec3{}),
		Axis:         r.vec3("axis", mgl64.Vec3{0, 0, 1}),
		Range:        r.pair("range"),
		Limited:      r.limited("limited"),
		Damping:      r.float("damping", 0),
		FrictionLoss: r.float("frictionloss", 0),
		Armature:     r.float("armature", 0),
		Stiffness:    r.float("stiffness", 0),
		Ref:          r.float("ref", 0),
		Src:          r.src(),
	}
	// Inherited values count too: classes keep joint range and ref raw.
	if d.degree && (j.Type == model.Hinge || j.Type == model.Ball) {
		if j.Range != nil {
			j.Range[0] *= deg
			j.Range[1] *= deg
		}
		j.Ref *= deg
	}
	if r.err != nil {
		return r.err
	}
	d.m.AddJoint(j)
	return nil
}

// freejoint reads the <freejoint> shorthand. It takes no default class.
func (d *decoder) freejoint(n *xmltree.Node, body int) error {
	r := newReader(n, nil)
	for _, a := range n.Attrs {
		if a.Name != "name" && a.Name != "group" {
			r.fail("unexpected attribute %q", a.Name)
		}
	}
	if r.err != nil {
		return r.err
	}
	d.m.AddJoint(freeJoint(r.str("name", ""), body, r.src()))
	return nil
}

func freeJoint(name string, body int, src model.Source) model.Joint {
	return model.Joint{Name: name, Body: body, Type: model.Free, Axis: mgl64.Vec3{0, 0, 1}, Src: src}
}

var geomTypes = []string{
	string(model.Plane), string(model.HField), string(model.Sphere), string(model.Capsule),
	string(model.Ellipsoid), string(model.Cylinder), string(model.Box), string(model.MeshGeom),
}

func (d *decoder) geom(n *xmltree.Node, body int, childclass string) error {
	r, class, err := d.classReader(n, childclass, "geom")
	if err != nil {
		return err
	}
	def := string(model.Sphere)
	if r.has("mesh") {
		def = string(model.MeshGeom)
	}
	g := model.Geom{
		Name:        r.str("name", ""),
		Class:       class,
		Body:        body,
		Type:        model.GeomType(r.oneOf("type", def, geomTypes...)),
		Size:        r.floats("size", 1, 3),
		Mesh:        r.str("mesh", ""),
		Material:    r.str("material", ""),
		RGBA:        r.vec4("rgba", mgl64.Vec4{0.5, 0.5, 0.5, 1}),
		Contype:     r.integer("contype", 1),
		Conaffinity: r.integer("conaffinity", 1),
		Condim:      r.integer("condim", 3),
		Group:       r.integer("group", 0),
		Friction:    vec3Of(r.partial("friction", []float64{1, 0.005, 0.0001})),
		Pose:        d.pose(r),
		Mass:        r.optFloat("mass"),
		Src:         r.src(),
	}
	if r.own("fromto") {
		d.fromto(r, &g)
	}
	if r.err != nil {
		return r.err
	}
	d.m.AddGeom(g)
	return nil
}

// fromto places a capsule, cylinder, box or ellipsoid between two points;
// the half length becomes the last size entry.
func (d *decoder) fromto(r *reader, g *model.Geom) {
	for _, k := range append([]string{"pos"}, orientationKeys...) {
		if r.own(k) {
			r.fail("fromto cannot be combined with %s", k)
			return
		}
	}
	v := r.floats("fromto", 6, 6)
	if v == nil {
		return
	}
	from := mgl64.Vec3{v[0], v[1], v[2]}
	to := mgl64.Vec3{v[3], v[4], v[5]}
	axis := to.Sub(from)
	q, err := spatial.ZAxisToQuat(axis)
	if err != nil {
		r.fail("fromto: %v", err)
		return
	}
	if len(g.Size) == 0 {
		r.fail("fromto needs a size")
		return
	}
	half := axis.Len() / 2
	switch g.Type {
	case model.Capsule, model.Cylinder:
		g.Size = []float64{g.Size[0], half}
	case model.Box, model.Ellipsoid:
		y := g.Size[0]
		if len(g.Size) > 1 {
			y = g.Size[1]
		}
		g.Size = []float64{g.Size[0], y, half}
	default:
		r.fail("fromto is not supported for %s geoms", g.Type)
		return
	}
	g.Pose = spatial.Pose{Pos: from.Add(to).Mul(0.5), Quat: q}
}

func (d *decoder) site(n *xmltree.Node, body int, childclass string) error {
	r, class, err := d.classReader(n, childclass, "site")
	if err != nil {
		return err
	}
	s := model.Site{
		Name:  r.str("name", ""),
		Class: class,
		Body:  body,
		Type:  model.GeomType(r.oneOf("type", string(model.Sphere), geomTypes...)),
		Size:  r.floats("size", 1, 3),
		Pose:  d.pose(r),
		RGBA:  r.vec4("rgba", mgl64.Vec4{0.5, 0.5, 0.5, 1}),
		Src:   r.src(),
	}
	if r.err != nil {
		return r.err
	}
	d.m.AddSite(s)
	return nil
}

func vec3Of(v []float64) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func (d *decoder) pose(r *reader) spatial.Pose {
	p := spatial.Pose{Pos: r.vec3("pos", mgl64.Vec3{}), Quat: mgl64.QuatIdent()}
	if q, ok := d.orientation(r); ok {
		p.Quat = q
	}
	return p
}

// orientation reads the element's orientation specifier. The element's own
// specifier hides any inherited from its class; two on one element are
// malformed. Zero quaternions are kept for validation to report.
func (d *decoder) orientation(r *reader) (mgl64.Quat, bool) {
	var given []string
	for _, k := range orientationKeys {
		if r.own(k) {
			given = append(given, k)
		}
	}
	inherited := false
	if len(given) == 0 {
		inherited = true
		for _, k := range orientationKeys {
			if r.has(k) {
				given = append(given, k)
			}
		}
	}
	if len(given) == 0 {
		return mgl64.Quat{}, false
	}
	if len(given) > 1 {
		r.fail("more than one orientation: %s", strings.Join(given, ", "))
		return mgl64.Quat{}, false
	}
	scale := 1.0
	if d.degree && !inherited {
		scale = deg
	}

	var (
		q   mgl64.Quat
		err error
	)
	switch given[0] {
	case "quat":
		v := r.floats("quat", 4, 4)
		if v == nil {
			return mgl64.Quat{}, false
		}
		q = mgl64.Quat{W: v[0], V: mgl64.Vec3{v[1], v[2], v[3]}}
		if n, nerr := spatial.NormalizeQuat(q); nerr == nil {
			q = n
		}
		return q, true
	case "euler":
		v := r.floats("euler", 3, 3)
		if v == nil {
			return mgl64.Quat{}, false
		}
		q, err = spatial.EulerToQuat(d.m.Compiler.EulerSeq, mgl64.Vec3{v[0] * scale, v[1] * scale, v[2] * scale})
	case "axisangle":
		v := r.floats("axisangle", 4, 4)
		if v == nil {
			return mgl64.Quat{}, false
		}
		q, err = spatial.AxisAngleToQuat(mgl64.Vec3{v[0], v[1], v[2]}, v[3]*scale)
	case "zaxis":
		v := r.floats("zaxis", 3, 3)
		if v == nil {
			return mgl64.Quat{}, false
		}
		q, err = spatial.ZAxisToQuat(mgl64.Vec3{v[0], v[1], v[2]})
	case "xyaxes":
		v := r.floats("xyaxes", 6, 6)
		if v == nil {
			return mgl64.Quat{}, false
		}
		q, err = spatial.XYAxesToQuat(mgl64.Vec3{v[0], v[1], v[2]}, mgl64.Vec3{v[3], v[4], v[5]})
	}
	if err != nil {
		r.fail("attribute %s: %v", given[0], err)
		return mgl64.Quat{}, false
	}
	return q, true
}

func (d *decoder) contact(n *xmltree.Node) error {
	for _, ch := range n.Children {
		r := newReader(ch, nil)
		if ch.Tag != "exclude" {
			return malformed(r.src(), ch.Tag, "", "unsupported contact element")
		}
		ex := model.Exclude{
			Name:  r.str("name", ""),
			Body1: r.str("body1", ""),
			Body2: r.str("body2", ""),
			Src:   r.src(),
		}
		if ex.Body1 == "" || ex.Body2 == "" {
			r.fail("exclude needs body1 and body2")
		}
		if r.err != nil {
			return r.err
		}
		d.m.Excludes = append(d.m.Excludes, ex)
	}
	return nil
}

var otherTransmissions = []string{"tendon", "site", "body", "jointinparent", "cranksite"}

func (d *decoder) actuators(n *xmltree.Node) error {
	for _, ch := range n.Children {
		kind := model.ActuatorKind(ch.Tag)
		switch kind {
		case model.Motor, model.Position, model.Velocity, model.General:
		default:
			return malformed(model.Source{File: ch.File, Line: ch.Line}, ch.Tag, "", "unknown actuator element")
		}
		r, class, err := d.classReader(ch, "", ch.Tag)
		if err != nil {
			return err
		}
		a := model.Actuator{
			Name:         r.str("name", ""),
			Class:        class,
			Kind:         kind,
			Joint:        r.str("joint", ""),
			Gear:         1,
			CtrlRange:    r.pair("ctrlrange"),
			ForceRange:   r.pair("forcerange"),
			CtrlLimited:  r.limited("ctrllimited"),
			ForceLimited: r.limited("forcelimited"),
			Src:          r.src(),
		}
		for _, t := range otherTransmissions {
			if r.has(t) {
				r.fail("transmission %q is not supported, actuators must name a joint", t)
			}
		}
		if a.Joint == "" {
			r.fail("actuator needs a joint")
		}
		if g := r.floats("gear", 1, 6); g != nil {
			a.Gear = g[0]
		}
		switch kind {
		case model.Position:
			a.Kp = r.float("kp", 1)
			a.Kv = r.float("kv", 0)
		case model.Velocity:
			a.Kv = r.float("kv", 1)
		case model.General:
			a.GainPrm = r.floats("gainprm", 1, 10)
			if a.GainPrm == nil {
				a.GainPrm = []float64{1}
			}
			a.BiasPrm = r.floats("biasprm", 1, 10)
			if a.BiasPrm == nil {
				a.BiasPrm = []float64{0, 0, 0}
			}
		}
		if r.err != nil {
			return r.err
		}
		d.m.Actuators = append(d.m.Actuators, a)
	}
	return nil
}

func (d *decoder) keyframes(n *xmltree.Node) error {
	for _, ch := range n.Children {
		r := newReader(ch, nil)
		if ch.Tag != "key" {
			return malformed(r.src(), ch.Tag, "", "unknown keyframe element")
		}
		k := model.Keyframe{
			Name: r.str("name", ""),
			Time: r.float("time", 0),
			Qpos: r.floats("qpos", 1, 0),
			Ctrl: r.floats("ctrl", 1, 0),
			Src:  r.src(),
		}
		if r.err != nil {
			return r.err
		}
		d.m.Keyframes = append(d.m.Keyframes, k)
	}
	return nil
}
