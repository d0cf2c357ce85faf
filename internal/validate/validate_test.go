package validate_test

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
	"github.com/san-kum/robodesc/internal/validate"
)

func geom(body int, typ model.GeomType, size ...float64) model.Geom {
	return model.Geom{
		Body:        body,
		Class:       model.MainClass,
		Type:        typ,
		Size:        size,
		RGBA:        mgl64.Vec4{0.5, 0.5, 0.5, 1},
		Contype:     1,
		Conaffinity: 1,
		Condim:      3,
		Friction:    mgl64.Vec3{1, 0.005, 0.0001},
		Pose:        spatial.Identity(),
	}
}

func hinge(body int, name string, lo, hi float64) model.Joint {
	return model.Joint{Name: name, Class: model.MainClass, Body: body, Type: model.Hinge, Axis: mgl64.Vec3{0, 0, 1}, Range: &[2]float64{lo, hi}}
}

// twoLink is a valid model: base -> link with one hinge each, an actuator
// on the first joint and a home keyframe.
func twoLink() *model.Model {
	m := model.New("two_link")
	diag := mgl64.Vec3{0.1, 0.1, 0.05}
	base := m.AddBody(0, model.Body{Name: "base", Pose: spatial.Identity(), Inertial: &model.Inertial{Pose: spatial.Identity(), Mass: 1, Diag: &diag}})
	link := m.AddBody(base, model.Body{Name: "link", Pose: spatial.Pose{Pos: mgl64.Vec3{0, 0, 0.5}, Quat: mgl64.QuatIdent()}, Inertial: &model.Inertial{Pose: spatial.Identity(), Mass: 0.5, Diag: &diag}})
	m.AddJoint(hinge(base, "shoulder", -1.5, 1.5))
	m.AddJoint(hinge(link, "elbow", -2, 2))
	m.AddGeom(geom(0, model.Plane, 0, 0, 0.05))
	m.AddGeom(geom(base, model.Capsule, 0.05, 0.25))
	m.AddGeom(geom(link, model.Box, 0.05, 0.05, 0.2))
	m.Actuators = []model.Actuator{{Name: "shoulder_motor", Class: model.MainClass, Kind: model.Motor, Joint: "shoulder", Gear: 1, CtrlRange: &[2]float64{-1, 1}}}
	m.Keyframes = []model.Keyframe{{Name: "home", Qpos: []float64{0, 0.5}, Ctrl: []float64{0}}}
	return m
}

func kinds(issues []validate.Issue) []error {
	out := make([]error, len(issues))
	for i := range issues {
		out[i] = issues[i].Kind
	}
	return out
}

var _ = Describe("Model", func() {
	var m *model.Model

	BeforeEach(func() {
		m = twoLink()
	})

	run := func() *validate.Report {
		return validate.Model(m, validate.Options{Logger: specLogger()})
	}

	It("accepts a well formed model", func() {
		r := run()
		Expect(r.Issues).To(BeEmpty())
		Expect(r.Err()).NotTo(HaveOccurred())
	})

	Describe("tree", func() {
		It("reports a parent cycle", func() {
			m.Bodies[1].Parent = 2
			m.Bodies[2].Parent = 1
			r := run()
			Expect(r.HasErrors()).To(BeTrue())
			Expect(r.Err()).To(MatchError(model.ErrTreeCycle))
		})

		It("reports a parent index out of range", func() {
			m.Bodies[2].Parent = 7
			Expect(run().Err()).To(MatchError(model.ErrTreeCycle))
		})

		It("reports a child edge that disagrees with the parent", func() {
			m.Bodies[0].Children = append(m.Bodies[0].Children, 2)
			Expect(run().Err()).To(MatchError(model.ErrTreeCycle))
		})

		It("reports an element owned by the wrong body", func() {
			m.Joints[1].Body = 1
			Expect(run().Err()).To(MatchError(model.ErrMalformed))
		})
	})

	Describe("names", func() {
		It("rejects duplicate body names", func() {
			m.Bodies[2].Name = "base"
			Expect(run().Err()).To(MatchError(model.ErrDuplicateName))
		})

		It("allows repeated empty names", func() {
			m.Geoms[1].Name = ""
			m.Geoms[2].Name = ""
			Expect(run().Issues).To(BeEmpty())
		})

		It("keeps kinds separate", func() {
			m.Joints[1].Name = "link"
			m.Actuators[0].Name = "link"
			Expect(run().Issues).To(BeEmpty())
		})

		It("still flags a clash within one kind", func() {
			m.Joints[1].Name = "shoulder"
			Expect(kinds(run().Issues)).To(ConsistOf(model.ErrDuplicateName))
		})
	})

	Describe("joints", func() {
		DescribeTable("rejects",
			func(mutate func(*model.Joint), want error) {
				mutate(&m.Joints[0])
				Expect(run().Err()).To(MatchError(want))
			},
			Entry("an inverted range", func(j *model.Joint) { j.Range = &[2]float64{1, -1} }, model.ErrOutOfRange),
			Entry("an empty range", func(j *model.Joint) { j.Range = &[2]float64{1, 1} }, model.ErrOutOfRange),
			Entry("limited without range", func(j *model.Joint) { j.Range = nil; j.Limited = model.LimitedTrue }, model.ErrMalformed),
			Entry("a zero axis", func(j *model.Joint) { j.Axis = mgl64.Vec3{} }, model.ErrOutOfRange),
			Entry("negative damping", func(j *model.Joint) { j.Damping = -1 }, model.ErrOutOfRange),
			Entry("negative armature", func(j *model.Joint) { j.Armature = -0.1 }, model.ErrOutOfRange),
			Entry("a NaN parameter", func(j *model.Joint) { j.Stiffness = math.NaN() }, model.ErrOutOfRange),
		)

		It("rejects a joint on the world body", func() {
			m.AddJoint(hinge(0, "bad", -1, 1))
			Expect(run().Err()).To(MatchError(model.ErrMalformed))
		})

		It("allows free joints only on children of the world", func() {
			m.Joints[0] = model.Joint{Name: "shoulder", Body: 1, Type: model.Free, Axis: mgl64.Vec3{0, 0, 1}}
			m.Keyframes = nil
			Expect(run().Issues).To(BeEmpty())

			m.Joints[1] = model.Joint{Name: "elbow", Body: 2, Type: model.Free, Axis: mgl64.Vec3{0, 0, 1}}
			Expect(run().Err()).To(MatchError(model.ErrMalformed))
		})

		It("warns about a range on a free joint", func() {
			m.Joints[0] = model.Joint{Name: "shoulder", Body: 1, Type: model.Free, Axis: mgl64.Vec3{0, 0, 1}, Range: &[2]float64{-1, 1}}
			m.Keyframes = nil
			r := run()
			Expect(r.HasErrors()).To(BeFalse())
			Expect(r.Warnings()).To(HaveLen(1))
		})
	})

	Describe("inertia", func() {
		It("rejects negative mass", func() {
			m.Bodies[1].Inertial.Mass = -1
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})

		It("rejects moments violating the triangle inequality", func() {
			bad := mgl64.Vec3{1, 1, 3}
			m.Bodies[1].Inertial.Diag = &bad
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})

		It("checks the principal moments of a full inertia", func() {
			m.Bodies[2].Inertial.Diag = nil
			m.Bodies[2].Inertial.Full = &[6]float64{2, 2, 2, 0.5, 0, 0}
			Expect(run().Issues).To(BeEmpty())

			m.Bodies[2].Inertial.Full = &[6]float64{1, 1, 1, 2, 0, 0}
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})

		It("warns about a movable body with zero mass", func() {
			m.Bodies[2].Inertial.Mass = 0
			r := run()
			Expect(r.HasErrors()).To(BeFalse())
			Expect(kinds(r.Warnings())).To(ConsistOf(model.ErrOutOfRange))
		})

		It("rejects a zero quaternion", func() {
			m.Bodies[2].Pose.Quat = mgl64.Quat{}
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})
	})

	Describe("geoms", func() {
		DescribeTable("rejects",
			func(mutate func(*model.Geom), want error) {
				mutate(&m.Geoms[2])
				Expect(run().Err()).To(MatchError(want))
			},
			Entry("a missing mesh", func(g *model.Geom) { g.Type = model.MeshGeom; g.Mesh = "gone" }, model.ErrDanglingRef),
			Entry("a missing material", func(g *model.Geom) { g.Material = "gone" }, model.ErrDanglingRef),
			Entry("too few sizes", func(g *model.Geom) { g.Size = []float64{0.1} }, model.ErrMalformed),
			Entry("a zero size", func(g *model.Geom) { g.Size = []float64{0.1, 0, 0.1} }, model.ErrOutOfRange),
			Entry("condim 2", func(g *model.Geom) { g.Condim = 2 }, model.ErrOutOfRange),
			Entry("negative contype", func(g *model.Geom) { g.Contype = -1 }, model.ErrOutOfRange),
			Entry("a height field", func(g *model.Geom) { g.Type = model.HField }, model.ErrMalformed),
		)

		It("resolves meshes and materials", func() {
			m.Meshes = []model.Mesh{{Name: "link", File: "link.stl", Scale: mgl64.Vec3{1, 1, 1}}}
			m.Textures = []model.Texture{{Name: "wood", Type: "2d", File: "wood.png", Builtin: "none"}}
			m.Materials = []model.Material{{Name: "wood", Texture: "wood", RGBA: mgl64.Vec4{1, 1, 1, 1}}}
			m.Geoms[2].Type = model.MeshGeom
			m.Geoms[2].Mesh = "link"
			m.Geoms[2].Material = "wood"
			Expect(run().Issues).To(BeEmpty())

			m.Materials[0].Texture = "stone"
			Expect(run().Err()).To(MatchError(model.ErrDanglingRef))
		})

		It("warns about colors outside the unit range", func() {
			m.Geoms[1].RGBA = mgl64.Vec4{2, 0, 0, 1}
			r := run()
			Expect(r.Err()).NotTo(HaveOccurred())
			Expect(r.Warnings()).To(HaveLen(1))
		})
	})

	Describe("actuators", func() {
		It("rejects an unknown joint", func() {
			m.Actuators[0].Joint = "wrist"
			Expect(run().Err()).To(MatchError(model.ErrDanglingRef))
		})

		It("rejects two actuators on one joint", func() {
			a := m.Actuators[0]
			a.Name = "second"
			m.Actuators = append(m.Actuators, a)
			m.Keyframes[0].Ctrl = []float64{0, 0}
			Expect(run().Err()).To(MatchError(model.ErrDuplicateName))
		})

		It("rejects ctrllimited without ctrlrange", func() {
			m.Actuators[0].CtrlRange = nil
			m.Actuators[0].CtrlLimited = model.LimitedTrue
			Expect(run().Err()).To(MatchError(model.ErrMalformed))
		})

		It("rejects negative position gains", func() {
			m.Actuators[0].Kind = model.Position
			m.Actuators[0].Kp = -5
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})
	})

	Describe("excludes", func() {
		It("needs two distinct existing bodies", func() {
			m.Excludes = []model.Exclude{{Body1: "base", Body2: "link"}}
			Expect(run().Issues).To(BeEmpty())

			m.Excludes = []model.Exclude{{Body1: "base", Body2: "base"}}
			Expect(run().Err()).To(MatchError(model.ErrMalformed))

			m.Excludes = []model.Exclude{{Body1: "base", Body2: "ghost"}}
			Expect(run().Err()).To(MatchError(model.ErrDanglingRef))
		})
	})

	Describe("keyframes", func() {
		It("checks the qpos length", func() {
			m.Keyframes[0].Qpos = []float64{0}
			Expect(run().Err()).To(MatchError(model.ErrMalformed))
		})

		It("checks limited joint positions", func() {
			m.Keyframes[0].Qpos = []float64{0, 3}
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})

		It("ignores positions of unlimited joints", func() {
			m.Joints[1].Limited = model.LimitedFalse
			m.Keyframes[0].Qpos = []float64{0, 3}
			Expect(run().Issues).To(BeEmpty())
		})

		It("checks ctrl against the actuators", func() {
			m.Keyframes[0].Ctrl = []float64{0, 1}
			Expect(run().Err()).To(MatchError(model.ErrMalformed))

			m.Keyframes[0].Ctrl = []float64{2}
			Expect(run().Err()).To(MatchError(model.ErrOutOfRange))
		})
	})

	Describe("strict mode", func() {
		It("promotes warnings to errors", func() {
			m.Actuators[0].Gear = 0
			Expect(validate.Model(m, validate.Options{Logger: specLogger()}).Err()).NotTo(HaveOccurred())

			err := validate.Model(m, validate.Options{Strict: true, Logger: specLogger()}).Err()
			var verr *validate.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Issues).To(HaveLen(1))
			Expect(verr.Issues[0].Severity).To(Equal(validate.Error))
		})
	})

	It("reports every problem at once", func() {
		m.Joints[0].Damping = -1
		m.Geoms[1].Condim = 5
		m.Option.Timestep = 0
		r := run()
		Expect(kinds(r.Errors())).To(ConsistOf(model.ErrOutOfRange, model.ErrOutOfRange, model.ErrOutOfRange))
		Expect(r.Err().Error()).To(ContainSubstring("3 errors"))
	})
})
