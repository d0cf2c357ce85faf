package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/robodesc/internal/kinematics"
	"github.com/san-kum/robodesc/internal/model"
)

type ExportData struct {
	Model     string         `json:"model"`
	Timestep  float64        `json:"timestep"`
	Gravity   [3]float64     `json:"gravity"`
	NQ        int            `json:"nq"`
	TotalMass float64        `json:"total_mass"`
	Bodies    []BodyExport   `json:"bodies"`
	Joints    []JointRow     `json:"joints"`
	Geoms     []GeomExport   `json:"geoms"`
	Actuators []ActuatorRow  `json:"actuators"`
	Keyframes []KeyframeRow  `json:"keyframes,omitempty"`
	Assets    map[string]int `json:"assets"`
}

type BodyExport struct {
	Name     string     `json:"name"`
	Parent   string     `json:"parent,omitempty"`
	Depth    int        `json:"depth"`
	Pos      [3]float64 `json:"pos"`
	Quat     [4]float64 `json:"quat"`
	WorldPos [3]float64 `json:"world_pos"`
	Mass     float64    `json:"mass"`
	Mocap    bool       `json:"mocap,omitempty"`
}

type GeomExport struct {
	Name     string    `json:"name,omitempty"`
	Body     string    `json:"body"`
	Type     string    `json:"type"`
	Size     []float64 `json:"size,omitempty"`
	Mesh     string    `json:"mesh,omitempty"`
	Material string    `json:"material,omitempty"`
}

type ActuatorRow struct {
	Name      string      `json:"name,omitempty"`
	Kind      string      `json:"kind"`
	Joint     string      `json:"joint"`
	Gear      float64     `json:"gear"`
	CtrlRange *[2]float64 `json:"ctrlrange,omitempty"`
}

type KeyframeRow struct {
	Name string    `json:"name,omitempty"`
	Time float64   `json:"time"`
	Qpos []float64 `json:"qpos,omitempty"`
	Ctrl []float64 `json:"ctrl,omitempty"`
}

// Export flattens the entity tables of m into a JSON-friendly value.
func Export(m *model.Model) ExportData {
	poses := kinematics.WorldPoses(m)
	depth := kinematics.Depth(m)
	data := ExportData{
		Model:     m.Name,
		Timestep:  m.Option.Timestep,
		Gravity:   m.Option.Gravity,
		NQ:        m.NQ(),
		TotalMass: kinematics.TotalMass(m),
		Bodies:    make([]BodyExport, len(m.Bodies)),
		Joints:    JointRows(m),
		Geoms:     make([]GeomExport, len(m.Geoms)),
		Actuators: make([]ActuatorRow, len(m.Actuators)),
		Assets: map[string]int{
			"meshes":    len(m.Meshes),
			"textures":  len(m.Textures),
			"materials": len(m.Materials),
		},
	}
	for i := range m.Bodies {
		b := &m.Bodies[i]
		q := b.Pose.Quat
		data.Bodies[i] = BodyExport{
			Name:     b.Name,
			Depth:    depth[i],
			Pos:      b.Pose.Pos,
			Quat:     [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
			WorldPos: poses[i].Pos,
			Mass:     kinematics.BodyMass(m, i),
			Mocap:    b.Mocap,
		}
		if b.Parent >= 0 && b.Parent < len(m.Bodies) {
			data.Bodies[i].Parent = m.Bodies[b.Parent].Name
		}
	}
	for i := range m.Geoms {
		g := &m.Geoms[i]
		data.Geoms[i] = GeomExport{
			Name:     g.Name,
			Body:     m.Bodies[g.Body].Name,
			Type:     string(g.Type),
			Size:     g.Size,
			Mesh:     g.Mesh,
			Material: g.Material,
		}
	}
	for i := range m.Actuators {
		a := &m.Actuators[i]
		data.Actuators[i] = ActuatorRow{
			Name:      a.Name,
			Kind:      string(a.Kind),
			Joint:     a.Joint,
			Gear:      a.Gear,
			CtrlRange: a.CtrlRange,
		}
	}
	for _, k := range m.Keyframes {
		data.Keyframes = append(data.Keyframes, KeyframeRow{Name: k.Name, Time: k.Time, Qpos: k.Qpos, Ctrl: k.Ctrl})
	}
	return data
}

func ExportJSON(w io.Writer, m *model.Model) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Export(m))
}
