// Package model holds the entity tables of a robot description. Bodies form
// an arena: parents, children and owned elements are table indices.
package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jinzhu/copier"

	"github.com/san-kum/robodesc/internal/spatial"
)

func DefaultCompiler() Compiler {
	return Compiler{EulerSeq: "xyz", AutoLimits: true}
}

func DefaultOption() Option {
	return Option{
		Timestep:   0.002,
		Gravity:    mgl64.Vec3{0, 0, -9.81},
		Integrator: "Euler",
	}
}

// New returns a model holding only the world body and the main default
// class.
func New(name string) *Model {
	return &Model{
		Name:     name,
		Compiler: DefaultCompiler(),
		Option:   DefaultOption(),
		Defaults: []DefaultClass{{Name: MainClass, Parent: -1, Elements: map[string][]Attr{}}},
		Bodies:   []Body{{Name: WorldName, Parent: -1, Pose: spatial.Identity()}},
	}
}

// AddBody appends b under parent and returns its index.
func (m *Model) AddBody(parent int, b Body) int {
	id := len(m.Bodies)
	b.Parent = parent
	m.Bodies = append(m.Bodies, b)
	m.Bodies[parent].Children = append(m.Bodies[parent].Children, id)
	return id
}

func (m *Model) AddJoint(j Joint) int {
	id := len(m.Joints)
	m.Joints = append(m.Joints, j)
	m.Bodies[j.Body].Joints = append(m.Bodies[j.Body].Joints, id)
	return id
}

func (m *Model) AddGeom(g Geom) int {
	id := len(m.Geoms)
	m.Geoms = append(m.Geoms, g)
	m.Bodies[g.Body].Geoms = append(m.Bodies[g.Body].Geoms, id)
	return id
}

func (m *Model) AddSite(s Site) int {
	id := len(m.Sites)
	m.Sites = append(m.Sites, s)
	m.Bodies[s.Body].Sites = append(m.Bodies[s.Body].Sites, id)
	return id
}

func (m *Model) BodyByName(name string) (int, bool) {
	for i := range m.Bodies {
		if m.Bodies[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) JointByName(name string) (int, bool) {
	for i := range m.Joints {
		if m.Joints[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) GeomByName(name string) (int, bool) {
	if name == "" {
		return -1, false
	}
	for i := range m.Geoms {
		if m.Geoms[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) MeshByName(name string) (int, bool) {
	for i := range m.Meshes {
		if m.Meshes[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) TextureByName(name string) (int, bool) {
	for i := range m.Textures {
		if m.Textures[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) MaterialByName(name string) (int, bool) {
	for i := range m.Materials {
		if m.Materials[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) ActuatorByName(name string) (int, bool) {
	if name == "" {
		return -1, false
	}
	for i := range m.Actuators {
		if m.Actuators[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Model) DefaultByName(name string) (int, bool) {
	for i := range m.Defaults {
		if m.Defaults[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Path returns the body indices from the world body down to body. It fails
// when the parent chain does not reach the root within len(Bodies) steps.
func (m *Model) Path(body int) ([]int, error) {
	var chain []int
	for cur := body; cur != -1; cur = m.Bodies[cur].Parent {
		if cur < 0 || cur >= len(m.Bodies) {
			return nil, fmt.Errorf("model: body %d: parent index %d out of range", body, cur)
		}
		if len(chain) > len(m.Bodies) {
			return nil, fmt.Errorf("model: body %d: parent chain does not terminate", body)
		}
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// QposDim is the number of generalized position coordinates of the joint.
func (j *Joint) QposDim() int {
	switch j.Type {
	case Free:
		return 7
	case Ball:
		return 4
	default:
		return 1
	}
}

// IsLimited reports whether the joint range is enforced.
func (j *Joint) IsLimited(autoLimits bool) bool {
	return j.Limited.Resolve(j.Range != nil, autoLimits)
}

// NQ is the length of a full qpos vector.
func (m *Model) NQ() int {
	n := 0
	for i := range m.Joints {
		n += m.Joints[i].QposDim()
	}
	return n
}

// QposOffsets returns the index of each joint's first coordinate in qpos.
func (m *Model) QposOffsets() []int {
	off := make([]int, len(m.Joints))
	n := 0
	for i := range m.Joints {
		off[i] = n
		n += m.Joints[i].QposDim()
	}
	return off
}

// Clone returns a deep copy sharing no slices, maps or pointers with m.
func (m *Model) Clone() (*Model, error) {
	out := &Model{}
	if err := copier.CopyWithOption(out, m, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("model: clone: %w", err)
	}
	return out, nil
}
