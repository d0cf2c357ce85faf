package report

import (
	"github.com/san-kum/robodesc/internal/assets"
	"github.com/san-kum/robodesc/internal/kinematics"
	"github.com/san-kum/robodesc/internal/model"
)

// Summarize records model statistics under the model/, mass/, assets/ and
// actuators/ tags. files may be nil when assets were not resolved.
func Summarize(l *Logger, m *model.Model, files map[string]assets.Asset) {
	l.Record("model/name", m.Name)
	l.Record("model/bodies", len(m.Bodies))
	l.Record("model/joints", len(m.Joints))
	l.Record("model/geoms", len(m.Geoms))
	l.Record("model/sites", len(m.Sites))
	l.Record("model/nq", m.NQ())
	l.Record("model/classes", len(m.Defaults))
	depth := 0
	for _, d := range kinematics.Depth(m) {
		depth = max(depth, d)
	}
	l.Record("model/depth", depth)

	l.Record("mass/total", kinematics.TotalMass(m))
	com := kinematics.CenterOfMass(m)
	l.Record("mass/com_x", com[0])
	l.Record("mass/com_y", com[1])
	l.Record("mass/com_z", com[2])
	for i := 1; i < len(m.Bodies); i++ {
		l.RecordMean("mass/body_mean", kinematics.BodyMass(m, i))
	}

	l.Record("assets/meshes", len(m.Meshes))
	l.Record("assets/textures", len(m.Textures))
	l.Record("assets/materials", len(m.Materials))
	if files != nil {
		var size int64
		for _, a := range files {
			size += a.Size
		}
		l.Record("assets/files", len(files))
		l.Record("assets/bytes", size)
	}

	l.Record("actuators/count", len(m.Actuators))
	limited := 0
	byKind := map[model.ActuatorKind]int{}
	for i := range m.Actuators {
		a := &m.Actuators[i]
		byKind[a.Kind]++
		if a.CtrlLimited.Resolve(a.CtrlRange != nil, m.Compiler.AutoLimits) {
			limited++
		}
	}
	for kind, n := range byKind {
		l.Record("actuators/"+string(kind), n)
	}
	l.Record("actuators/ctrl_limited", limited)
}
