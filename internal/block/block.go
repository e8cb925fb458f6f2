// Package block implements the data-block wrapper: one covariance
// block per (initialAge, outputType) bucket, with the AR(1)-over-outer-
// product residual covariance, its cached inverse and log-determinant, and
// the per-block marginal log-likelihood evaluator.
package block

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"metamodelfit/internal/linalg"
)

// ResidualBlock is the per-(initialAge, outputType) covariance wrapper.
// It holds no reference back to the owning model:
// the current parameter vector and growth prediction are passed in by the
// caller on every call.
type ResidualBlock struct {
	AgeYr               []float64
	TimeSinceBeginning  []float64
	VecY                []float64
	NbPlots             int
	InitialAge          int

	// fixedVariance holds the simulator-supplied per-observation estimator
	// variance, or nil when sigma2_res must be estimated.
	fixedVariance []float64

	// cache, valid only for the parameter vector last passed to UpdateCovMat.
	vInv       *mat.SymDense
	lnConstant float64
}

// Size returns the number of repeated measurements in this block.
func (b *ResidualBlock) Size() int { return len(b.VecY) }

// VarianceEstimated reports whether this block's residual variance must be
// supplied by a free parameter (sigma2_res) rather than the simulator.
func (b *ResidualBlock) VarianceEstimated() bool { return b.fixedVariance == nil }

// New builds a ResidualBlock. fixedVariance is the simulator's
// per-observation estimator variance for this block, or nil if unavailable.
func New(ageYr, timeSinceBeginning, vecY []float64, nbPlots, initialAge int, fixedVariance []float64) *ResidualBlock {
	return &ResidualBlock{
		AgeYr:              ageYr,
		TimeSinceBeginning: timeSinceBeginning,
		VecY:               vecY,
		NbPlots:            nbPlots,
		InitialAge:         initialAge,
		fixedVariance:      fixedVariance,
	}
}

// UpdateCovMat recomputes the block's cached inverse covariance and
// log-normalizing-constant for the current (rho, sigma2_res) values.
// sigma2Res is ignored when this block's variance is simulator-supplied.
func (b *ResidualBlock) UpdateCovMat(rho, sigma2Res float64) {
	k := b.Size()
	sigma := make([]float64, k)
	if b.fixedVariance != nil {
		for i, v := range b.fixedVariance {
			sigma[i] = math.Sqrt(v)
		}
	} else {
		s := math.Sqrt(sigma2Res / float64(b.NbPlots))
		for i := range sigma {
			sigma[i] = s
		}
	}

	rInv := linalg.AR1Inverse(k, rho)
	recip := linalg.OuterReciprocal(sigma)
	vInv := linalg.HadamardSym(recip, rInv)

	logDetV := linalg.LogSumOfLogSigma(sigma) + linalg.AR1LogDet(k, rho)
	lnConstant := -0.5*float64(k)*math.Log(2*math.Pi) - 0.5*logDetV

	b.vInv = vInv
	b.lnConstant = lnConstant
}

// LnConstant returns the cached log-normalizing constant from the last
// UpdateCovMat call.
func (b *ResidualBlock) LnConstant() float64 { return b.lnConstant }

// LogLikelihood returns lnConstant - 0.5*(y-mu)^T Vinv (y-mu) for the
// supplied per-observation mean vector mu (already reflecting the current
// fixed effects, random effect, and regeneration lag). UpdateCovMat must
// have been called first for the current parameter vector.
func (b *ResidualBlock) LogLikelihood(mu []float64) (float64, error) {
	resid := make([]float64, len(mu))
	for i := range resid {
		resid[i] = b.VecY[i] - mu[i]
	}
	quad := linalg.QuadForm(b.vInv, resid)
	if quad < 0 {
		return 0, ErrNegativeQuadraticForm
	}
	return b.lnConstant - 0.5*quad, nil
}
