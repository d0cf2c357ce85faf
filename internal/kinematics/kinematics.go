// Package kinematics evaluates a model at its reference configuration, where
// every joint sits at zero and each body is placed by its own pose.
package kinematics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
)

// WorldPoses returns the world frame of every body. Bodies unreachable from
// the world keep the identity pose.
func WorldPoses(m *model.Model) []spatial.Pose {
	poses := make([]spatial.Pose, len(m.Bodies))
	for i := range poses {
		poses[i] = spatial.Identity()
	}
	if len(m.Bodies) == 0 {
		return poses
	}
	visited := make([]bool, len(m.Bodies))
	visited[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, ch := range m.Bodies[id].Children {
			if ch <= 0 || ch >= len(m.Bodies) || visited[ch] {
				continue
			}
			visited[ch] = true
			poses[ch] = poses[id].Compose(m.Bodies[ch].Pose)
			queue = append(queue, ch)
		}
	}
	return poses
}

// BodyMass is the inertial mass of a body, or the sum of its explicit geom
// masses when it has no inertial element.
func BodyMass(m *model.Model, body int) float64 {
	b := &m.Bodies[body]
	if b.Inertial != nil {
		return b.Inertial.Mass
	}
	var mass float64
	for _, g := range b.Geoms {
		if gm := m.Geoms[g].Mass; gm != nil {
			mass += *gm
		}
	}
	return mass
}

// SubtreeMass returns, per body, the mass of the body and all descendants.
func SubtreeMass(m *model.Model) []float64 {
	out := make([]float64, len(m.Bodies))
	for i := range m.Bodies {
		out[i] = BodyMass(m, i)
	}
	// Children follow their parents in the arena.
	for i := len(m.Bodies) - 1; i > 0; i-- {
		if p := m.Bodies[i].Parent; p >= 0 && p < i {
			out[p] += out[i]
		}
	}
	return out
}

func TotalMass(m *model.Model) float64 {
	if len(m.Bodies) == 0 {
		return 0
	}
	return SubtreeMass(m)[0]
}

// CenterOfMass returns the mass-weighted center of all bodies in the world
// frame, or the origin for a massless model.
func CenterOfMass(m *model.Model) mgl64.Vec3 {
	poses := WorldPoses(m)
	var (
		sum   mgl64.Vec3
		total float64
	)
	for i := range m.Bodies {
		b := &m.Bodies[i]
		if b.Inertial != nil {
			if b.Inertial.Mass > 0 {
				sum = sum.Add(poses[i].Apply(b.Inertial.Pose.Pos).Mul(b.Inertial.Mass))
				total += b.Inertial.Mass
			}
			continue
		}
		for _, g := range b.Geoms {
			geom := &m.Geoms[g]
			if geom.Mass == nil || *geom.Mass <= 0 {
				continue
			}
			sum = sum.Add(poses[i].Apply(geom.Pose.Pos).Mul(*geom.Mass))
			total += *geom.Mass
		}
	}
	if total == 0 {
		return mgl64.Vec3{}
	}
	return sum.Mul(1 / total)
}

// Depth returns the number of edges between each body and the world.
func Depth(m *model.Model) []int {
	out := make([]int, len(m.Bodies))
	for i := 1; i < len(m.Bodies); i++ {
		if p := m.Bodies[i].Parent; p >= 0 && p < i {
			out[i] = out[p] + 1
		}
	}
	return out
}

// Chain returns the bodies from the world down to body, or nil when the
// parent links are broken.
func Chain(m *model.Model, body int) []int {
	if body < 0 || body >= len(m.Bodies) {
		return nil
	}
	path, err := m.Path(body)
	if err != nil {
		return nil
	}
	return path
}

// SitePoses returns the world frame of every site.
func SitePoses(m *model.Model, bodies []spatial.Pose) []spatial.Pose {
	out := make([]spatial.Pose, len(m.Sites))
	for i := range m.Sites {
		s := &m.Sites[i]
		out[i] = bodies[s.Body].Compose(s.Pose)
	}
	return out
}
