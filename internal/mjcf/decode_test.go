package mjcf

import (
	"errors"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/xmltree"
)

func mustDecode(t *testing.T, doc string) *model.Model {
	t.Helper()
	root, err := xmltree.ParseBytes([]byte(doc), "test.xml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := Decode(root, DecodeOptions{Logger: golog.NewTestLogger(t)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

func sameQuat(a, b mgl64.Quat) bool {
	return a.OrientationEqualThreshold(b, 1e-9)
}

func TestDegrees(t *testing.T) {
	m := mustDecode(t, degreeDoc)

	joint := func(name string) model.Joint {
		t.Helper()
		i, ok := m.JointByName(name)
		if !ok {
			t.Fatalf("joint %q missing", name)
		}
		return m.Joints[i]
	}
	tests := []struct {
		name string
		rng  [2]float64
	}{
		{"yaw", [2]float64{-45 * deg, 45 * deg}},
		{"pitch", [2]float64{-90 * deg, 90 * deg}},
		{"lift", [2]float64{-1, 1}},
		{"ext", [2]float64{-2, 2}},
		{"spin", [2]float64{-90 * deg, 90 * deg}},
	}
	for _, tt := range tests {
		j := joint(tt.name)
		if j.Range == nil || math.Abs(j.Range[0]-tt.rng[0]) > 1e-12 || math.Abs(j.Range[1]-tt.rng[1]) > 1e-12 {
			t.Errorf("%s range = %v, want %v", tt.name, j.Range, tt.rng)
		}
	}
	if got := joint("pitch").Ref; math.Abs(got-math.Pi/6) > 1e-12 {
		t.Errorf("pitch ref = %g, want pi/6", got)
	}
	if joint("lift").Damping != 1 {
		t.Errorf("lift did not inherit damping through slider")
	}

	base, _ := m.BodyByName("base")
	want := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	if q := m.Bodies[base].Pose.Quat; !sameQuat(q, want) {
		t.Errorf("base quat = %v, want %v (zyx sequence, first angle about z)", q, want)
	}

	arm, _ := m.GeomByName("arm")
	g := m.Geoms[arm]
	if g.Type != model.Capsule || !cmp.Equal(g.Size, []float64{0.02, 0.1}) {
		t.Errorf("arm geom = %+v", g)
	}
	if !sameQuat(g.Pose.Quat, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})) {
		t.Errorf("arm axisangle quat = %v", g.Pose.Quat)
	}

	origin := m.Sites[0]
	// zyx: the third angle turns about x.
	if origin.Body != 0 || !sameQuat(origin.Pose.Quat, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0})) {
		t.Errorf("inherited euler on site = %v", origin.Pose.Quat)
	}

	wrist, _ := m.BodyByName("wrist")
	if q := m.Bodies[wrist].Pose.Quat; !sameQuat(q, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})) {
		t.Errorf("wrist xyaxes quat = %v", q)
	}
	if in := m.Bodies[wrist].Inertial; in == nil || in.Full == nil || in.Diag != nil {
		t.Errorf("wrist inertial = %+v", in)
	}
	sphere := m.Geoms[m.Bodies[wrist].Geoms[0]]
	if !sameQuat(sphere.Pose.Quat, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})) {
		t.Errorf("zaxis quat = %v", sphere.Pose.Quat)
	}

	g0, _ := m.ActuatorByName("g")
	if a := m.Actuators[g0]; !cmp.Equal(a.GainPrm, []float64{10}) || !cmp.Equal(a.BiasPrm, []float64{0, -10, 0}) {
		t.Errorf("general actuator = %+v", a)
	}
	v, _ := m.ActuatorByName("v")
	if a := m.Actuators[v]; a.Kind != model.Velocity || a.Kv != 1 {
		t.Errorf("velocity actuator = %+v", a)
	}
}

func TestDegreesInheritedJointUnits(t *testing.T) {
	m := mustDecode(t, `<mujoco>
  <default>
    <joint range="0 0.5" ref="0.25"/>
    <default class="rail">
      <joint type="slide" range="-90 90"/>
    </default>
  </default>
  <worldbody>
    <body name="a">
      <joint name="slider" type="slide"/>
      <geom type="sphere" size="0.1"/>
      <body name="b">
        <joint name="turned" class="rail" type="hinge"/>
        <geom type="sphere" size="0.1"/>
      </body>
    </body>
  </worldbody>
</mujoco>`)

	tests := []struct {
		name string
		rng  [2]float64
		ref  float64
	}{
		{"slider", [2]float64{0, 0.5}, 0.25},
		{"turned", [2]float64{-math.Pi / 2, math.Pi / 2}, 0.25 * deg},
	}
	for _, tt := range tests {
		i, ok := m.JointByName(tt.name)
		if !ok {
			t.Fatalf("joint %q missing", tt.name)
		}
		j := m.Joints[i]
		if j.Range == nil || math.Abs(j.Range[0]-tt.rng[0]) > 1e-12 || math.Abs(j.Range[1]-tt.rng[1]) > 1e-12 {
			t.Errorf("%s range = %v, want %v", tt.name, j.Range, tt.rng)
		}
		if math.Abs(j.Ref-tt.ref) > 1e-12 {
			t.Errorf("%s ref = %g, want %g", tt.name, j.Ref, tt.ref)
		}
	}

	// Class values are rewritten for the model only where the class itself
	// describes an angular joint.
	for _, cls := range m.Defaults {
		for _, a := range cls.Elements["joint"] {
			if a.Name != "range" {
				continue
			}
			want := map[string]string{"main": formatFloats(0, 0.5*deg), "rail": "-90 90"}[cls.Name]
			if a.Value != want {
				t.Errorf("class %s range = %q, want %q", cls.Name, a.Value, want)
			}
		}
	}
}

func TestChildClass(t *testing.T) {
	m := mustDecode(t, `<mujoco>
	  <default>
	    <default class="robot">
	      <geom rgba="1 0 0 1" size="0.05"/>
	      <default class="visual">
	        <geom contype="0" conaffinity="0"/>
	      </default>
	    </default>
	  </default>
	  <worldbody>
	    <geom name="ground" type="plane" size="1 1 0.1"/>
	    <body name="a" childclass="robot">
	      <geom name="ga"/>
	      <body name="b">
	        <geom name="gb" class="visual"/>
	        <geom name="gc" class="main" size="0.2"/>
	      </body>
	    </body>
	  </worldbody>
	</mujoco>`)

	geom := func(name string) model.Geom {
		i, _ := m.GeomByName(name)
		return m.Geoms[i]
	}
	if g := geom("ground"); g.Class != model.MainClass || g.RGBA != (mgl64.Vec4{0.5, 0.5, 0.5, 1}) {
		t.Errorf("ground = %+v", g)
	}
	if g := geom("ga"); g.Class != "robot" || g.RGBA != (mgl64.Vec4{1, 0, 0, 1}) || g.Contype != 1 {
		t.Errorf("ga = %+v", g)
	}
	if g := geom("gb"); g.Class != "visual" || g.RGBA != (mgl64.Vec4{1, 0, 0, 1}) || g.Contype != 0 || g.Size[0] != 0.05 {
		t.Errorf("gb = %+v", g)
	}
	if g := geom("gc"); g.Class != model.MainClass || g.RGBA[0] != 0.5 || g.Size[0] != 0.2 {
		t.Errorf("gc = %+v", g)
	}
	b, _ := m.BodyByName("b")
	if m.Bodies[b].ChildClass != "robot" {
		t.Errorf("childclass not inherited: %q", m.Bodies[b].ChildClass)
	}
}

func TestWorldbodyMerge(t *testing.T) {
	m := mustDecode(t, `<mujoco>
	  <worldbody>
	    <body name="first"><geom name="g1" size="1"/></body>
	  </worldbody>
	  <worldbody>
	    <geom name="floor" type="plane" size="1 1 1"/>
	    <body name="second"/>
	  </worldbody>
	</mujoco>`)
	if diff := cmp.Diff([]string{model.WorldName, "first", "second"}, bodyNames(m)); diff != "" {
		t.Errorf("bodies (-want +got):\n%s", diff)
	}
	if m.Geoms[0].Name != "floor" || m.Geoms[1].Name != "g1" {
		t.Errorf("geom order: %q, %q", m.Geoms[0].Name, m.Geoms[1].Name)
	}
	if diff := cmp.Diff([]int{1, 2}, m.Bodies[0].Children); diff != "" {
		t.Errorf("world children (-want +got):\n%s", diff)
	}
}

func TestFromto(t *testing.T) {
	m := mustDecode(t, `<mujoco>
	  <worldbody>
	    <geom name="c" type="cylinder" fromto="0 0 0 1 0 0" size="0.1"/>
	    <geom name="b" type="box" fromto="0 0 0 0 0 2" size="0.1 0.2"/>
	  </worldbody>
	</mujoco>`)
	c := m.Geoms[0]
	if !cmp.Equal(c.Size, []float64{0.1, 0.5}) || c.Pose.Pos != (mgl64.Vec3{0.5, 0, 0}) {
		t.Errorf("cylinder = %+v", c)
	}
	if z := c.Pose.Quat.Rotate(mgl64.Vec3{0, 0, 1}); !z.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-6) {
		t.Errorf("cylinder axis = %v", z)
	}
	if b := m.Geoms[1]; !cmp.Equal(b.Size, []float64{0.1, 0.2, 1}) {
		t.Errorf("box size = %v", b.Size)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
		line int
	}{
		{"wrong root", `<robot/>`, ErrMalformed, 1},
		{"unknown section", "<mujoco>\n<tendons/>\n</mujoco>", ErrMalformed, 2},
		{"unknown element", "<mujoco><worldbody>\n<body><camera/><blob/></body></worldbody></mujoco>", ErrMalformed, 2},
		{"two orientations", `<mujoco><worldbody><body quat="1 0 0 0" euler="0 0 0"/></worldbody></mujoco>`, ErrMalformed, 1},
		{"bad number", `<mujoco><worldbody><body pos="0 0 x"/></worldbody></mujoco>`, ErrMalformed, 1},
		{"arity", `<mujoco><worldbody><body pos="0 0"/></worldbody></mujoco>`, ErrMalformed, 1},
		{"unknown class", `<mujoco><worldbody><geom class="nope" size="1"/></worldbody></mujoco>`, ErrDanglingRef, 1},
		{"unknown childclass", `<mujoco><worldbody><body childclass="nope"/></worldbody></mujoco>`, ErrDanglingRef, 1},
		{"duplicate class", `<mujoco><default><default class="a"/><default class="a"/></default></mujoco>`, ErrDuplicateName, 1},
		{"nameless nested class", `<mujoco><default><default/></default></mujoco>`, ErrMalformed, 1},
		{"named default element", `<mujoco><default><geom name="g"/></default></mujoco>`, ErrMalformed, 1},
		{"joint in worldbody", `<mujoco><worldbody><joint/></worldbody></mujoco>`, ErrMalformed, 1},
		{"two inertials", `<mujoco><worldbody><body><inertial mass="1"/><inertial mass="1"/></body></worldbody></mujoco>`, ErrMalformed, 1},
		{"inertial without mass", `<mujoco><worldbody><body><inertial diaginertia="1 1 1"/></body></worldbody></mujoco>`, ErrMalformed, 1},
		{"tendon transmission", `<mujoco><actuator><motor tendon="t"/></actuator></mujoco>`, ErrMalformed, 1},
		{"fromto with pos", `<mujoco><worldbody><geom type="capsule" size="1" pos="0 0 0" fromto="0 0 0 0 0 1"/></worldbody></mujoco>`, ErrMalformed, 1},
		{"fromto on sphere", `<mujoco><worldbody><geom size="1" fromto="0 0 0 0 0 1"/></worldbody></mujoco>`, ErrMalformed, 1},
		{"texture without source", `<mujoco><asset><texture name="t"/></asset></mujoco>`, ErrMalformed, 1},
		{"bad angle unit", `<mujoco><compiler angle="grad"/></mujoco>`, ErrMalformed, 1},
		{"bad eulerseq", `<mujoco><compiler eulerseq="xyw"/></mujoco>`, ErrMalformed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := xmltree.ParseBytes([]byte(tt.doc), "bad.xml")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			m, err := Decode(root, DecodeOptions{Logger: golog.NewTestLogger(t)})
			if m != nil {
				t.Error("partial model returned")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ee *model.ElementError
			if !errors.As(err, &ee) {
				t.Fatalf("err = %#v, want *model.ElementError", err)
			}
			if ee.Src.File != "bad.xml" || ee.Src.Line != tt.line {
				t.Errorf("src = %+v, want bad.xml:%d", ee.Src, tt.line)
			}
		})
	}
}

func TestUnmarshal(t *testing.T) {
	t.Run("include rejected", func(t *testing.T) {
		_, err := Unmarshal([]byte(`<mujoco><include file="x.xml"/></mujoco>`), Options{Logger: golog.NewTestLogger(t)})
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("inverted range", func(t *testing.T) {
		_, err := Unmarshal([]byte(`<mujoco><worldbody><body>
			<inertial mass="1" diaginertia="1 1 1"/>
			<joint name="j" range="10 -10"/>
		</body></worldbody></mujoco>`), Options{Logger: golog.NewTestLogger(t)})
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("syntax", func(t *testing.T) {
		if _, err := Unmarshal([]byte(`<mujoco>`), Options{Logger: golog.NewTestLogger(t)}); !errors.Is(err, ErrMalformed) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("ignored sections", func(t *testing.T) {
		m, err := Unmarshal([]byte(`<mujoco>
			<visual/><size njmax="10"/><sensor><jointpos joint="j"/></sensor>
			<worldbody><body name="b"><joint name="j"/><geom size="1"/></body></worldbody>
		</mujoco>`), Options{Logger: golog.NewTestLogger(t)})
		if err != nil {
			t.Fatal(err)
		}
		if len(m.Joints) != 1 {
			t.Errorf("joints = %d", len(m.Joints))
		}
	})
}
