// Package spatial holds the rigid-transform and inertia math used to
// normalize and check robot descriptions.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrZeroAxis    = errors.New("spatial: zero-length axis")
	ErrZeroQuat    = errors.New("spatial: zero quaternion")
	ErrEulerSeq    = errors.New("spatial: invalid euler sequence")
	ErrBadInertia  = errors.New("spatial: inertia is not physical")
	ErrNotFinite   = errors.New("spatial: non-finite value")
	ErrEigenFailed = errors.New("spatial: eigen decomposition failed")
)

// Pose is a rigid transform: rotate by Quat, then translate by Pos.
type Pose struct {
	Pos  mgl64.Vec3
	Quat mgl64.Quat
}

func Identity() Pose {
	return Pose{Quat: mgl64.QuatIdent()}
}

// Compose returns the pose of child, given relative to p, in p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Pos:  p.Pos.Add(p.Quat.Rotate(child.Pos)),
		Quat: p.Quat.Mul(child.Quat).Normalize(),
	}
}

// Apply maps a point from p's frame into its parent frame.
func (p Pose) Apply(v mgl64.Vec3) mgl64.Vec3 {
	return p.Pos.Add(p.Quat.Rotate(v))
}

func (p Pose) Inverse() Pose {
	inv := p.Quat.Inverse()
	return Pose{Pos: inv.Rotate(p.Pos).Mul(-1), Quat: inv}
}

// NormalizeQuat scales q to unit length. A zero quaternion is reported
// instead of being replaced by the identity.
func NormalizeQuat(q mgl64.Quat) (mgl64.Quat, error) {
	if !finite(q.W, q.V[0], q.V[1], q.V[2]) {
		return q, ErrNotFinite
	}
	if q.Len() == 0 {
		return q, ErrZeroQuat
	}
	return q.Normalize(), nil
}

// AxisAngleToQuat rotates by angle radians about axis.
func AxisAngleToQuat(axis mgl64.Vec3, angle float64) (mgl64.Quat, error) {
	n, err := unit(axis)
	if err != nil {
		return mgl64.Quat{}, err
	}
	return mgl64.QuatRotate(angle, n), nil
}

// ZAxisToQuat returns the minimal rotation taking +Z onto z.
func ZAxisToQuat(z mgl64.Vec3) (mgl64.Quat, error) {
	n, err := unit(z)
	if err != nil {
		return mgl64.Quat{}, err
	}
	return mgl64.QuatBetweenVectors(mgl64.Vec3{0, 0, 1}, n).Normalize(), nil
}

// XYAxesToQuat returns the rotation whose frame has x along x and y along
// the part of y orthogonal to x.
func XYAxesToQuat(x, y mgl64.Vec3) (mgl64.Quat, error) {
	xn, err := unit(x)
	if err != nil {
		return mgl64.Quat{}, err
	}
	yn, err := unit(y.Sub(xn.Mul(xn.Dot(y))))
	if err != nil {
		return mgl64.Quat{}, err
	}
	z := xn.Cross(yn)
	return mgl64.Mat4ToQuat(mgl64.Mat3FromCols(xn, yn, z).Mat4()).Normalize(), nil
}

// EulerToQuat composes three elementary rotations named by seq. A lower case
// axis rotates about the moving frame, an upper case one about the fixed
// frame; the two may be mixed.
func EulerToQuat(seq string, angles mgl64.Vec3) (mgl64.Quat, error) {
	if len(seq) != 3 {
		return mgl64.Quat{}, fmt.Errorf("%w: %q", ErrEulerSeq, seq)
	}
	q := mgl64.QuatIdent()
	for i := 0; i < 3; i++ {
		var axis mgl64.Vec3
		switch seq[i] {
		case 'x', 'X':
			axis = mgl64.Vec3{1, 0, 0}
		case 'y', 'Y':
			axis = mgl64.Vec3{0, 1, 0}
		case 'z', 'Z':
			axis = mgl64.Vec3{0, 0, 1}
		default:
			return mgl64.Quat{}, fmt.Errorf("%w: %q", ErrEulerSeq, seq)
		}
		r := mgl64.QuatRotate(angles[i], axis)
		if seq[i] >= 'a' {
			q = q.Mul(r)
		} else {
			q = r.Mul(q)
		}
	}
	return q.Normalize(), nil
}

// ValidEulerSeq reports whether seq names three axes.
func ValidEulerSeq(seq string) bool {
	_, err := EulerToQuat(seq, mgl64.Vec3{})
	return err == nil
}

func unit(v mgl64.Vec3) (mgl64.Vec3, error) {
	if !finite(v[0], v[1], v[2]) {
		return v, ErrNotFinite
	}
	l := v.Len()
	if l == 0 {
		return v, ErrZeroAxis
	}
	return v.Mul(1 / l), nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Finite reports whether every value is a real number.
func Finite(vs ...float64) bool {
	return finite(vs...)
}
