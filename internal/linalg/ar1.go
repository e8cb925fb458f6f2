// Package linalg provides the dense-matrix primitives the fitting engine
// builds on: AR(1) correlation structure, block-diagonal assembly, and the
// small set of gonum/mat helpers the rest of the packages share.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// AR1Matrix returns the k x k correlation matrix with Corr(i,j) = rho^|i-j|,
// the first-order autoregressive structure used for the per-block residual
// correlation. A block of size 1 yields the degenerate 1x1 identity.
func AR1Matrix(k int, rho float64) *mat.SymDense {
	r := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			d := i - j
			if d < 0 {
				d = -d
			}
			r.SetSym(i, j, math.Pow(rho, float64(d)))
		}
	}
	return r
}

// AR1Inverse returns the closed-form (tridiagonal) inverse of AR1Matrix(k, rho).
// For k == 1 the inverse of the identity is the identity.
func AR1Inverse(k int, rho float64) *mat.SymDense {
	inv := mat.NewSymDense(k, nil)
	if k == 1 {
		inv.SetSym(0, 0, 1)
		return inv
	}
	denom := 1 - rho*rho
	off := -rho / denom
	for i := 0; i < k; i++ {
		diag := (1 + rho*rho) / denom
		if i == 0 || i == k-1 {
			diag = 1 / denom
		}
		inv.SetSym(i, i, diag)
		if i+1 < k {
			inv.SetSym(i, i+1, off)
		}
	}
	return inv
}

// AR1LogDet returns log|AR1Matrix(k, rho)| = (k-1)*log(1-rho^2), the standard
// closed form for the AR(1) correlation determinant.
func AR1LogDet(k int, rho float64) float64 {
	if k <= 1 {
		return 0
	}
	return float64(k-1) * math.Log(1-rho*rho)
}

// OuterReciprocal returns the symmetric matrix whose (i,j) entry is
// 1/(sigma[i]*sigma[j]) — the elementwise inverse of the rank-1 outer
// product sigma ⊗ sigma used for ResidualBlock's varCovFullCorr.
func OuterReciprocal(sigma []float64) *mat.SymDense {
	k := len(sigma)
	out := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			out.SetSym(i, j, 1/(sigma[i]*sigma[j]))
		}
	}
	return out
}

// HadamardSym returns the elementwise (Hadamard) product of two symmetric
// matrices of equal dimension.
func HadamardSym(a, b *mat.SymDense) *mat.SymDense {
	n := a.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, a.At(i, j)*b.At(i, j))
		}
	}
	return out
}

// LogSumOfLogSigma returns 2*sum(log(sigma[i])), the contribution of a rank-1
// outer-product variance factor to a block's log-determinant.
func LogSumOfLogSigma(sigma []float64) float64 {
	s := 0.0
	for _, v := range sigma {
		s += math.Log(v)
	}
	return 2 * s
}

// BlockDiagonal assembles a block-diagonal *mat.SymDense from a list of
// per-block symmetric covariance matrices, in the order given. This backs
// the global residual covariance when the simulator supplies per-ResultSet
// variance.
func BlockDiagonal(blocks []*mat.SymDense) *mat.SymDense {
	total := 0
	for _, b := range blocks {
		total += b.SymmetricDim()
	}
	out := mat.NewSymDense(total, nil)
	offset := 0
	for _, b := range blocks {
		n := b.SymmetricDim()
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				out.SetSym(offset+i, offset+j, b.At(i, j))
			}
		}
		offset += n
	}
	return out
}

// QuadForm returns x^T M x for a vector x and symmetric matrix M.
func QuadForm(m *mat.SymDense, x []float64) float64 {
	v := mat.NewVecDense(len(x), x)
	var mv mat.VecDense
	mv.MulVec(m, v)
	return mat.Dot(v, &mv)
}
