package spatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

const inertiaTol = 1e-9

// FullInertia builds the symmetric tensor from its six independent entries
// in ixx, iyy, izz, ixy, ixz, iyz order.
func FullInertia(ixx, iyy, izz, ixy, ixz, iyz float64) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{ixx, ixy, ixz},
		mgl64.Vec3{ixy, iyy, iyz},
		mgl64.Vec3{ixz, iyz, izz},
	)
}

// PrincipalMoments returns the eigenvalues of a symmetric inertia tensor in
// ascending order.
func PrincipalMoments(full mgl64.Mat3) (mgl64.Vec3, error) {
	data := make([]float64, 0, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := full.At(r, c)
			if !finite(v) {
				return mgl64.Vec3{}, ErrNotFinite
			}
			data = append(data, v)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(3, data), false); !ok {
		return mgl64.Vec3{}, ErrEigenFailed
	}
	vals := es.Values(nil)
	sort.Float64s(vals)
	return mgl64.Vec3{vals[0], vals[1], vals[2]}, nil
}

// CheckInertia rejects principal moments that no rigid body can have:
// negative ones, or ones violating A+B >= C.
func CheckInertia(moments mgl64.Vec3) error {
	if !finite(moments[0], moments[1], moments[2]) {
		return ErrNotFinite
	}
	m := []float64{moments[0], moments[1], moments[2]}
	sort.Float64s(m)
	scale := math.Max(math.Abs(m[2]), 1)
	if m[0] < -inertiaTol*scale {
		return fmt.Errorf("%w: negative principal moment %g", ErrBadInertia, m[0])
	}
	if m[0]+m[1] < m[2]-inertiaTol*scale {
		return fmt.Errorf("%w: moments %g, %g, %g violate the triangle inequality", ErrBadInertia, m[0], m[1], m[2])
	}
	return nil
}

// CheckFullInertia is PrincipalMoments followed by CheckInertia.
func CheckFullInertia(full [6]float64) error {
	moments, err := PrincipalMoments(FullInertia(full[0], full[1], full[2], full[3], full[4], full[5]))
	if err != nil {
		return err
	}
	return CheckInertia(moments)
}
