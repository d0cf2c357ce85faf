package model

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/spatial"
)

const (
	WorldName = "world"
	MainClass = "main"
)

// Source locates the element an entity was read from.
type Source struct {
	File string
	Line int
}

// Limited is the tri-state of limited, ctrllimited and forcelimited.
type Limited int

const (
	LimitedAuto Limited = iota
	LimitedFalse
	LimitedTrue
)

func (l Limited) String() string {
	switch l {
	case LimitedFalse:
		return "false"
	case LimitedTrue:
		return "true"
	default:
		return "auto"
	}
}

func ParseLimited(s string) (Limited, bool) {
	switch s {
	case "auto":
		return LimitedAuto, true
	case "false":
		return LimitedFalse, true
	case "true":
		return LimitedTrue, true
	}
	return LimitedAuto, false
}

// Resolve applies the autolimits rule: auto means limited when a range is
// present and autolimits is on.
func (l Limited) Resolve(hasRange, autoLimits bool) bool {
	switch l {
	case LimitedTrue:
		return true
	case LimitedFalse:
		return false
	default:
		return hasRange && autoLimits
	}
}

type JointType string

const (
	Hinge JointType = "hinge"
	Slide JointType = "slide"
	Ball  JointType = "ball"
	Free  JointType = "free"
)

type GeomType string

const (
	Plane     GeomType = "plane"
	HField    GeomType = "hfield"
	Sphere    GeomType = "sphere"
	Capsule   GeomType = "capsule"
	Ellipsoid GeomType = "ellipsoid"
	Cylinder  GeomType = "cylinder"
	Box       GeomType = "box"
	MeshGeom  GeomType = "mesh"
)

type ActuatorKind string

const (
	Motor    ActuatorKind = "motor"
	Position ActuatorKind = "position"
	Velocity ActuatorKind = "velocity"
	General  ActuatorKind = "general"
)

type Compiler struct {
	EulerSeq   string
	MeshDir    string
	TextureDir string
	AssetDir   string
	AutoLimits bool
}

type Option struct {
	Timestep   float64
	Gravity    mgl64.Vec3
	Integrator string
}

// Inertial is a body's mass properties. At most one of Diag and Full is set.
type Inertial struct {
	Pose spatial.Pose
	Mass float64
	Diag *mgl64.Vec3
	Full *[6]float64
	Src  Source
}

type Body struct {
	Name       string
	ChildClass string
	Parent     int
	Pose       spatial.Pose
	Inertial   *Inertial
	Mocap      bool
	Children   []int
	Joints     []int
	Geoms      []int
	Sites      []int
	Src        Source
}

type Joint struct {
	Name         string
	Class        string
	Body         int
	Type         JointType
	Pos          mgl64.Vec3
	Axis         mgl64.Vec3
	Range        *[2]float64
	Limited      Limited
	Damping      float64
	FrictionLoss float64
	Armature     float64
	Stiffness    float64
	Ref          float64
	Src          Source
}

type Geom struct {
	Name        string
	Class       string
	Body        int
	Type        GeomType
	Size        []float64
	Mesh        string
	Material    string
	RGBA        mgl64.Vec4
	Contype     int
	Conaffinity int
	Condim      int
	Group       int
	Friction    mgl64.Vec3
	Pose        spatial.Pose
	Mass        *float64
	Src         Source
}

type Site struct {
	Name  string
	Class string
	Body  int
	Type  GeomType
	Size  []float64
	Pose  spatial.Pose
	RGBA  mgl64.Vec4
	Src   Source
}

// Actuator drives the joint it names. Kp and Kv apply to position and
// velocity actuators; GainPrm and BiasPrm to general ones.
type Actuator struct {
	Name         string
	Class        string
	Kind         ActuatorKind
	Joint        string
	Gear         float64
	CtrlRange    *[2]float64
	ForceRange   *[2]float64
	CtrlLimited  Limited
	ForceLimited Limited
	Kp           float64
	Kv           float64
	GainPrm      []float64
	BiasPrm      []float64
	Src          Source
}

type Mesh struct {
	Name  string
	Class string
	File  string
	Scale mgl64.Vec3
	Src   Source
}

type Texture struct {
	Name    string
	Type    string
	File    string
	Builtin string
	Width   int
	Height  int
	RGB1    mgl64.Vec3
	RGB2    mgl64.Vec3
	Src     Source
}

type Material struct {
	Name        string
	Class       string
	Texture     string
	RGBA        mgl64.Vec4
	Specular    float64
	Shininess   float64
	Reflectance float64
	Emission    float64
	Src         Source
}

type Attr struct {
	Name  string
	Value string
}

// DefaultClass holds raw attribute overrides per element tag. Parent is an
// index into Model.Defaults, -1 for the root class.
type DefaultClass struct {
	Name     string
	Parent   int
	Elements map[string][]Attr
	Src      Source
}

type Exclude struct {
	Name  string
	Body1 string
	Body2 string
	Src   Source
}

type Keyframe struct {
	Name string
	Time float64
	Qpos []float64
	Ctrl []float64
	Src  Source
}

// Model is the resolved entity set of one description. Bodies[0] is the
// world body; every cross-table link other than a by-name reference is an
// index.
type Model struct {
	Name      string
	Compiler  Compiler
	Option    Option
	Defaults  []DefaultClass
	Meshes    []Mesh
	Textures  []Texture
	Materials []Material
	Bodies    []Body
	Joints    []Joint
	Geoms     []Geom
	Sites     []Site
	Actuators []Actuator
	Excludes  []Exclude
	Keyframes []Keyframe
}
