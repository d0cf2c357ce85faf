package mjcf

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
	"github.com/san-kum/robodesc/internal/xmltree"
)

// Encode writes m as a canonical document: angles in radians, orientations
// as quaternions and every resolved value explicit, so decoding the result
// reproduces m exactly.
func Encode(m *model.Model) *xmltree.Node {
	root := xmltree.New(RootTag)
	if m.Name != "" {
		root.Set("model", m.Name)
	}

	c := xmltree.New("compiler", xmltree.Attr{Name: "angle", Value: "radian"})
	c.Set("eulerseq", m.Compiler.EulerSeq)
	setNonEmpty(c, "meshdir", m.Compiler.MeshDir)
	setNonEmpty(c, "texturedir", m.Compiler.TextureDir)
	setNonEmpty(c, "assetdir", m.Compiler.AssetDir)
	c.Set("autolimits", strconv.FormatBool(m.Compiler.AutoLimits))
	root.Append(c)

	root.Append(xmltree.New("option",
		xmltree.Attr{Name: "timestep", Value: formatFloat(m.Option.Timestep)},
		xmltree.Attr{Name: "gravity", Value: vec3(m.Option.Gravity)},
		xmltree.Attr{Name: "integrator", Value: m.Option.Integrator},
	))

	if hasDefaults(m) {
		root.Append(encodeDefault(m, 0))
	}

	if len(m.Meshes)+len(m.Textures)+len(m.Materials) > 0 {
		asset := xmltree.New("asset")
		for i := range m.Meshes {
			asset.Append(encodeMesh(&m.Meshes[i]))
		}
		for i := range m.Textures {
			asset.Append(encodeTexture(&m.Textures[i]))
		}
		for i := range m.Materials {
			asset.Append(encodeMaterial(&m.Materials[i]))
		}
		root.Append(asset)
	}

	wb := xmltree.New("worldbody")
	if len(m.Bodies) > 0 {
		encodeBodyContent(m, 0, wb)
	}
	root.Append(wb)

	if len(m.Excludes) > 0 {
		contact := xmltree.New("contact")
		for _, ex := range m.Excludes {
			n := xmltree.New("exclude")
			setNonEmpty(n, "name", ex.Name)
			n.Set("body1", ex.Body1)
			n.Set("body2", ex.Body2)
			contact.Append(n)
		}
		root.Append(contact)
	}

	if len(m.Actuators) > 0 {
		act := xmltree.New("actuator")
		for i := range m.Actuators {
			act.Append(encodeActuator(&m.Actuators[i]))
		}
		root.Append(act)
	}

	if len(m.Keyframes) > 0 {
		kf := xmltree.New("keyframe")
		for _, k := range m.Keyframes {
			n := xmltree.New("key")
			setNonEmpty(n, "name", k.Name)
			n.Set("time", formatFloat(k.Time))
			if len(k.Qpos) > 0 {
				n.Set("qpos", formatFloats(k.Qpos...))
			}
			if len(k.Ctrl) > 0 {
				n.Set("ctrl", formatFloats(k.Ctrl...))
			}
			kf.Append(n)
		}
		root.Append(kf)
	}
	return root
}

// Marshal returns the canonical document for m.
func Marshal(m *model.Model) ([]byte, error) {
	var b bytes.Buffer
	if err := xmltree.Write(&b, Encode(m)); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func setNonEmpty(n *xmltree.Node, name, v string) {
	if v != "" {
		n.Set(name, v)
	}
}

func vec3(v mgl64.Vec3) string {
	return formatFloats(v[0], v[1], v[2])
}

func vec4(v mgl64.Vec4) string {
	return formatFloats(v[0], v[1], v[2], v[3])
}

func quat(q mgl64.Quat) string {
	return formatFloats(q.W, q.V[0], q.V[1], q.V[2])
}

func setPose(n *xmltree.Node, p spatial.Pose) {
	n.Set("pos", vec3(p.Pos))
	n.Set("quat", quat(p.Quat))
}

func hasDefaults(m *model.Model) bool {
	if len(m.Defaults) > 1 {
		return true
	}
	return len(m.Defaults) == 1 && len(m.Defaults[0].Elements) > 0
}

func encodeDefault(m *model.Model, id int) *xmltree.Node {
	cls := m.Defaults[id]
	n := xmltree.New("default")
	if cls.Parent >= 0 {
		n.Set("class", cls.Name)
	}
	tags := make([]string, 0, len(cls.Elements))
	for tag := range cls.Elements {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		el := xmltree.New(tag)
		for _, a := range cls.Elements[tag] {
			el.Set(a.Name, a.Value)
		}
		n.Append(el)
	}
	for i := range m.Defaults {
		if m.Defaults[i].Parent == id {
			n.Append(encodeDefault(m, i))
		}
	}
	return n
}

func encodeMesh(me *model.Mesh) *xmltree.Node {
	n := xmltree.New("mesh")
	n.Set("name", me.Name)
	setNonEmpty(n, "class", me.Class)
	n.Set("file", me.File)
	n.Set("scale", vec3(me.Scale))
	return n
}

func encodeTexture(tx *model.Texture) *xmltree.Node {
	n := xmltree.New("texture", xmltree.Attr{Name: "name", Value: tx.Name})
	n.Set("type", tx.Type)
	setNonEmpty(n, "file", tx.File)
	n.Set("builtin", tx.Builtin)
	n.Set("width", strconv.Itoa(tx.Width))
	n.Set("height", strconv.Itoa(tx.Height))
	n.Set("rgb1", vec3(tx.RGB1))
	n.Set("rgb2", vec3(tx.RGB2))
	return n
}

func encodeMaterial(mat *model.Material) *xmltree.Node {
	n := xmltree.New("material")
	n.Set("name", mat.Name)
	setNonEmpty(n, "class", mat.Class)
	setNonEmpty(n, "texture", mat.Texture)
	n.Set("rgba", vec4(mat.RGBA))
	n.Set("specular", formatFloat(mat.Specular))
	n.Set("shininess", formatFloat(mat.Shininess))
	n.Set("reflectance", formatFloat(mat.Reflectance))
	n.Set("emission", formatFloat(mat.Emission))
	return n
}

// encodeBodyContent appends the body's own elements, then its child bodies.
func encodeBodyContent(m *model.Model, id int, n *xmltree.Node) {
	b := &m.Bodies[id]
	if b.Inertial != nil {
		n.Append(encodeInertial(b.Inertial))
	}
	for _, j := range b.Joints {
		n.Append(encodeJoint(&m.Joints[j]))
	}
	for _, g := range b.Geoms {
		n.Append(encodeGeom(&m.Geoms[g]))
	}
	for _, s := range b.Sites {
		n.Append(encodeSite(&m.Sites[s]))
	}
	for _, ch := range b.Children {
		cb := &m.Bodies[ch]
		bn := xmltree.New("body")
		setNonEmpty(bn, "name", cb.Name)
		setNonEmpty(bn, "childclass", cb.ChildClass)
		setPose(bn, cb.Pose)
		bn.Set("mocap", strconv.FormatBool(cb.Mocap))
		encodeBodyContent(m, ch, bn)
		n.Append(bn)
	}
}

func encodeInertial(in *model.Inertial) *xmltree.Node {
	n := xmltree.New("inertial")
	setPose(n, in.Pose)
	n.Set("mass", formatFloat(in.Mass))
	if in.Diag != nil {
		n.Set("diaginertia", vec3(*in.Diag))
	}
	if in.Full != nil {
		n.Set("fullinertia", formatFloats(in.Full[:]...))
	}
	return n
}

// plainFree reports whether j carries nothing a <freejoint> cannot express.
func plainFree(j *model.Joint) bool {
	want := freeJoint(j.Name, j.Body, j.Src)
	return j.Type == model.Free && j.Class == "" &&
		j.Pos == want.Pos && j.Axis == want.Axis && j.Range == nil &&
		j.Limited == want.Limited && j.Damping == 0 && j.FrictionLoss == 0 &&
		j.Armature == 0 && j.Stiffness == 0 && j.Ref == 0
}

func encodeJoint(j *model.Joint) *xmltree.Node {
	if plainFree(j) {
		n := xmltree.New("freejoint")
		setNonEmpty(n, "name", j.Name)
		return n
	}
	n := xmltree.New("joint")
	setNonEmpty(n, "name", j.Name)
	setNonEmpty(n, "class", j.Class)
	n.Set("type", string(j.Type))
	n.Set("pos", vec3(j.Pos))
	n.Set("axis", vec3(j.Axis))
	if j.Range != nil {
		n.Set("range", formatFloats(j.Range[0], j.Range[1]))
	}
	n.Set("limited", j.Limited.String())
	n.Set("damping", formatFloat(j.Damping))
	n.Set("frictionloss", formatFloat(j.FrictionLoss))
	n.Set("armature", formatFloat(j.Armature))
	n.Set("stiffness", formatFloat(j.Stiffness))
	n.Set("ref", formatFloat(j.Ref))
	return n
}

func encodeGeom(g *model.Geom) *xmltree.Node {
	n := xmltree.New("geom")
	setNonEmpty(n, "name", g.Name)
	setNonEmpty(n, "class", g.Class)
	n.Set("type", string(g.Type))
	if len(g.Size) > 0 {
		n.Set("size", formatFloats(g.Size...))
	}
	setNonEmpty(n, "mesh", g.Mesh)
	setNonEmpty(n, "material", g.Material)
	n.Set("rgba", vec4(g.RGBA))
	n.Set("contype", strconv.Itoa(g.Contype))
	n.Set("conaffinity", strconv.Itoa(g.Conaffinity))
	n.Set("condim", strconv.Itoa(g.Condim))
	n.Set("group", strconv.Itoa(g.Group))
	n.Set("friction", vec3(g.Friction))
	setPose(n, g.Pose)
	if g.Mass != nil {
		n.Set("mass", formatFloat(*g.Mass))
	}
	return n
}

func encodeSite(s *model.Site) *xmltree.Node {
	n := xmltree.New("site")
	setNonEmpty(n, "name", s.Name)
	setNonEmpty(n, "class", s.Class)
	n.Set("type", string(s.Type))
	if len(s.Size) > 0 {
		n.Set("size", formatFloats(s.Size...))
	}
	setPose(n, s.Pose)
	n.Set("rgba", vec4(s.RGBA))
	return n
}

func encodeActuator(a *model.Actuator) *xmltree.Node {
	n := xmltree.New(string(a.Kind))
	setNonEmpty(n, "name", a.Name)
	setNonEmpty(n, "class", a.Class)
	n.Set("joint", a.Joint)
	n.Set("gear", formatFloat(a.Gear))
	if a.CtrlRange != nil {
		n.Set("ctrlrange", formatFloats(a.CtrlRange[0], a.CtrlRange[1]))
	}
	if a.ForceRange != nil {
		n.Set("forcerange", formatFloats(a.ForceRange[0], a.ForceRange[1]))
	}
	n.Set("ctrllimited", a.CtrlLimited.String())
	n.Set("forcelimited", a.ForceLimited.String())
	switch a.Kind {
	case model.Position:
		n.Set("kp", formatFloat(a.Kp))
		n.Set("kv", formatFloat(a.Kv))
	case model.Velocity:
		n.Set("kv", formatFloat(a.Kv))
	case model.General:
		if len(a.GainPrm) > 0 {
			n.Set("gainprm", formatFloats(a.GainPrm...))
		}
		if len(a.BiasPrm) > 0 {
			n.Set("biasprm", formatFloats(a.BiasPrm...))
		}
	}
	return n
}
