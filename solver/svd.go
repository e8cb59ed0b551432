package solver

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// svd3 computes the full singular value decomposition m = U·diag(sigma)·Vᵗ
// with 3x3 orthogonal factors and nonnegative singular values in descending
// order.
func svd3(m mgl64.Mat3) (u mgl64.Mat3, sigma mgl64.Vec3, v mgl64.Mat3) {
	a := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			a.Set(r, c, m.At(r, c))
		}
	}

	var dec mat.SVD
	if ok := dec.Factorize(a, mat.SVDFull); !ok {
		// Only reachable with non-finite input, which the singular value
		// clamp rules out for deformation gradients.
		panic("solver: 3x3 SVD failed to converge")
	}

	var ud, vd mat.Dense
	dec.UTo(&ud)
	dec.VTo(&vd)
	vals := dec.Values(nil)

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			u.Set(r, c, ud.At(r, c))
			v.Set(r, c, vd.At(r, c))
		}
	}
	sigma = mgl64.Vec3{vals[0], vals[1], vals[2]}
	return u, sigma, v
}

// polarRot returns the rotation factor R = U·Vᵗ of the polar decomposition
// of m.
func polarRot(m mgl64.Mat3) mgl64.Mat3 {
	u, _, v := svd3(m)
	return u.Mul3(v.Transpose())
}

// polarDecompose factors m = R·S into a rotation R and a symmetric stretch
// S = V·diag(sigma)·Vᵗ.
func polarDecompose(m mgl64.Mat3) (r, s mgl64.Mat3) {
	u, sigma, v := svd3(m)
	r = u.Mul3(v.Transpose())
	s = v.Mul3(mgl64.Diag3(sigma)).Mul3(v.Transpose())
	return r, s
}

// frobeniusDot is the Frobenius inner product ⟨a, b⟩ of two 3x3 matrices.
func frobeniusDot(a, b mgl64.Mat3) float64 {
	var sum float64
	for i := 0; i < 9; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
