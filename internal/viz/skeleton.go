package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/robodesc/internal/kinematics"
	"github.com/san-kum/robodesc/internal/model"
)

// Camera is an orthographic orbit view. At zero yaw and pitch the screen
// shows the x-z plane with z up.
type Camera struct {
	Yaw, Pitch float64
	Zoom       float64
}

func NewCamera() *Camera {
	return &Camera{Yaw: math.Pi / 6, Pitch: math.Pi / 8, Zoom: 1}
}

func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw += dyaw
	c.Pitch = mgl64.Clamp(c.Pitch+dpitch, -math.Pi/2, math.Pi/2)
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(10, c.Zoom*1.25) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.1, c.Zoom/1.25) }

// View maps a world point to screen coordinates: x right, y up.
func (c *Camera) View(p mgl64.Vec3) mgl64.Vec2 {
	r := mgl64.HomogRotate3DX(c.Pitch).Mul4(mgl64.HomogRotate3DZ(-c.Yaw))
	v := r.Mul4x1(p.Vec4(1))
	return mgl64.Vec2{v[0], v[2]}
}

// RenderSkeleton draws a segment from each body frame to its parent's and
// marks the highlighted body. The view is centred on the bodies and scaled
// to fit the canvas.
func RenderSkeleton(m *model.Model, cam *Camera, w, h, highlight int) string {
	c := NewCanvas(w, h)
	if len(m.Bodies) == 0 {
		return c.String()
	}
	poses := kinematics.WorldPoses(m)
	pts := make([]mgl64.Vec2, len(poses))
	lo := mgl64.Vec2{math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for i := range poses {
		pts[i] = cam.View(poses[i].Pos)
		for k := 0; k < 2; k++ {
			lo[k] = math.Min(lo[k], pts[i][k])
			hi[k] = math.Max(hi[k], pts[i][k])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	extent := math.Max(hi[0]-lo[0], hi[1]-lo[1])
	if extent == 0 {
		extent = 1
	}
	margin := 2.0
	scale := math.Min(float64(c.DotsWide())-2*margin, float64(c.DotsHigh())-2*margin) / extent * cam.Zoom

	screen := func(p mgl64.Vec2) (int, int) {
		d := p.Sub(center).Mul(scale)
		return int(math.Round(float64(c.DotsWide())/2 + d[0])), int(math.Round(float64(c.DotsHigh())/2 - d[1]))
	}
	for i := 1; i < len(m.Bodies); i++ {
		p := m.Bodies[i].Parent
		if p < 0 || p >= len(pts) {
			continue
		}
		x0, y0 := screen(pts[p])
		x1, y1 := screen(pts[i])
		c.DrawLine(x0, y0, x1, y1)
	}
	if highlight >= 0 && highlight < len(pts) {
		c.Mark(screen(pts[highlight]))
	}
	return c.String()
}
