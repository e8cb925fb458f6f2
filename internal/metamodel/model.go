// Package metamodel implements the model coordinator: one growth
// model instance per candidate form, the Metropolis-Hastings fit loop
// wired against it, LPML-based ranking across concurrently-fit
// candidates, and the prediction surface (point, variance, Monte Carlo)
// exposed once a winner is chosen.
package metamodel

import (
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"metamodelfit/internal/block"
	"metamodelfit/internal/dataset"
	"metamodelfit/internal/growth"
	"metamodelfit/internal/prior"
	"metamodelfit/internal/sampler"
	"metamodelfit/internal/schema"
)

// Model is one candidate growth form wired against one hierarchical
// dataset: its schema, prior handler, and residual blocks, plus (after a
// successful fit) its point estimate, parameter covariance, and LPML.
//
// Model owns its blocks as values and passes the current parameter
// vector into their operations explicitly — blocks hold no back-pointer to
// the Model.
type Model struct {
	variant growth.Variant
	schema  *schema.Schema
	prior   *prior.Handler
	blocks  []*block.ResidualBlock

	mu                      sync.RWMutex
	finalParameterEstimates []float64
	parameterCovariance     *mat.SymDense
	lpml                    float64
	hasConverged            bool
	acceptanceRate          float64
	thinnedSample           [][]float64
}

// NewModel builds one candidate's Model from the hierarchical data and a
// parameter configuration (nil for the form's defaults).
func NewModel(form growth.Form, data *dataset.HierarchicalData, configs []schema.ParamConfig) (*Model, error) {
	variant, ok := growth.Lookup(form)
	if !ok {
		return nil, ErrUnknownModelForm
	}

	varianceEstimated := data.AnyVarianceEstimated()
	s, err := schema.Build(variant.Defaults(), configs, variant.Mixed(), varianceEstimated, data.RegLagActive(), len(data.Blocks))
	if err != nil {
		return nil, err
	}

	blocks := make([]*block.ResidualBlock, len(data.Blocks))
	for i, db := range data.Blocks {
		y := make([]float64, db.Size())
		for j, idx := range db.RowIndices {
			y[j] = data.Observations[idx].Estimate
		}
		blocks[i] = block.New(db.AgeYr, db.TimeSinceBeginning, y, db.NbPlots, db.InitialAge, data.BlockVariance[i])
	}

	return &Model{
		variant: variant,
		schema:  s,
		prior:   prior.New(s),
		blocks:  blocks,
	}, nil
}

// Schema exposes the candidate's parameter schema, e.g. for diagnostics.
func (m *Model) Schema() *schema.Schema { return m.schema }

// Variant exposes the candidate's growth-model form.
func (m *Model) Variant() growth.Variant { return m.variant }

// LogLikelihood evaluates the total and per-block marginal log-likelihood
// at parms, recomputing each block's covariance and applying the
// regeneration lag (if active) and random effect (if mixed).
func (m *Model) LogLikelihood(parms []float64) (float64, []float64, error) {
	rho := parms[m.schema.RhoIndex()]
	sigma2Res := 0.0
	if idx := m.schema.SigmaResIndex(); idx >= 0 {
		sigma2Res = parms[idx]
	}
	regLag := 0.0
	if idx := m.schema.RegLagIndex(); idx >= 0 {
		regLag = parms[idx]
	}

	fixedIdx := m.schema.FixedEffectIndices()
	fixed := make([]float64, len(fixedIdx))
	for i, idx := range fixedIdx {
		fixed[i] = parms[idx]
	}

	total := 0.0
	perBlock := make([]float64, len(m.blocks))

	for i, b := range m.blocks {
		b.UpdateCovMat(rho, sigma2Res)

		u := 0.0
		if m.schema.Mixed() {
			u = parms[m.schema.RandomEffectIndex(i)]
		}

		mu := make([]float64, b.Size())
		for j, age := range b.AgeYr {
			effAge := age - regLag
			if effAge <= 0 {
				mu[j] = 0
				continue
			}
			mu[j] = m.variant.Predict(effAge, u, fixed)
		}

		ll, err := b.LogLikelihood(mu)
		if err != nil {
			return 0, nil, err
		}
		perBlock[i] = ll
		total += ll
	}

	return total, perBlock, nil
}

// LogPrior evaluates log p(parms) via the candidate's prior handler.
func (m *Model) LogPrior(parms []float64) float64 { return m.prior.LogDensity(parms) }

// StartingValues returns the schema's default starting parameter vector.
func (m *Model) StartingValues() []float64 { return m.schema.StartingValues() }

// Fit drives the Metropolis-Hastings sampler against this candidate's
// likelihood and prior, then commits the result if the chain converged.
func (m *Model) Fit(cfg sampler.Config, rng *rand.Rand, log zerolog.Logger) error {
	res, err := sampler.Run(m.schema, cfg, m.schema.StartingValues(), m.LogLikelihood, m.LogPrior, rng, log)
	if err != nil {
		return err
	}
	if !res.HasConverged {
		return nil
	}
	m.commit(res.FinalParameterEstimates, res.ParameterCovariance, res.LogPseudoMarginalLik, res.AcceptanceRate, res.ThinnedSample)
	return nil
}

// commit publishes a converged fit result. It is called once, from the
// single worker goroutine that owns this Model during Fit, before the
// Model is handed to any other goroutine — the lock here guards the
// publish itself so the happens-before relationship is explicit rather
// than relying on goroutine-exit ordering.
func (m *Model) commit(finalParameterEstimates []float64, cov *mat.SymDense, lpml float64, acceptanceRate float64, thinned [][]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalParameterEstimates = finalParameterEstimates
	m.parameterCovariance = cov
	m.lpml = lpml
	m.hasConverged = true
	m.acceptanceRate = acceptanceRate
	m.thinnedSample = thinned
}

// HasConverged reports whether this candidate's chain converged.
func (m *Model) HasConverged() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasConverged
}

// LPML returns the log pseudo-marginal likelihood, or NaN if unconverged.
func (m *Model) LPML() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return math.NaN()
	}
	return m.lpml
}

// AcceptanceRate returns the fitted chain's overall acceptance rate.
func (m *Model) AcceptanceRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.acceptanceRate
}

// FinalParameterEstimates returns a copy of the posterior mean vector.
func (m *Model) FinalParameterEstimates() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.finalParameterEstimates...)
}

func (m *Model) effectiveAge(age float64) (float64, bool) {
	regLag := 0.0
	if idx := m.schema.RegLagIndex(); idx >= 0 {
		regLag = m.finalParameterEstimates[idx]
	}
	eff := age - regLag
	return eff, eff > 0
}

func (m *Model) fixedEstimates() []float64 {
	out := make([]float64, len(m.schema.FixedEffectIndices()))
	for i, idx := range m.schema.FixedEffectIndices() {
		out[i] = m.finalParameterEstimates[idx]
	}
	return out
}

// Predict returns the deterministic point estimate at u=0, with the
// regeneration lag applied if active. Returns 0 if the effective age is
// at most 0.
func (m *Model) Predict(age, _ float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return 0, ErrNotFitted
	}
	return m.predictLocked(age), nil
}

// predictLocked is Predict's body; the caller holds mu and has checked
// hasConverged.
func (m *Model) predictLocked(age float64) float64 {
	eff, ok := m.effectiveAge(age)
	if !ok {
		return 0
	}
	return m.variant.Predict(eff, 0, m.fixedEstimates())
}

// PredictionVariance returns g^T Sigma_fixed g at the effective age, plus
// (dmu/db1)^2 * sigma_u^2 when includeRandomEffect is set on a mixed
// model. The public call is atomic from the caller's perspective: the
// read lock here serializes against a concurrent commit and keeps the
// gradient/submatrix computation from observing a torn parameterCovariance.
func (m *Model) PredictionVariance(age, _ float64, includeRandomEffect bool) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return 0, ErrNotFitted
	}
	return m.predictionVarianceLocked(age, includeRandomEffect), nil
}

// predictionVarianceLocked is PredictionVariance's body; the caller holds
// mu and has checked hasConverged.
func (m *Model) predictionVarianceLocked(age float64, includeRandomEffect bool) float64 {
	eff, ok := m.effectiveAge(age)
	if !ok {
		return 0
	}

	fixedIdx := m.schema.FixedEffectIndices()
	g := m.variant.Gradient(eff, 0, m.fixedEstimates())

	sigma := submatrix(m.parameterCovariance, fixedIdx)
	variance := quadForm(sigma, g)

	if includeRandomEffect && m.schema.Mixed() {
		sigmaU := m.finalParameterEstimates[m.schema.SigmaUIndex()]
		gb1 := g[m.variant.InterceptGradientIndex()]
		variance += gb1 * gb1 * sigmaU * sigmaU
	}
	return variance
}

// MonteCarloRow is one row of a Monte-Carlo prediction table.
type MonteCarloRow struct {
	RealizationID int
	SubjectID     int
	AgeYr         float64
	Pred          float64
}

// randSource adapts a *rand.Rand to the golang.org/x/exp/rand.Source
// interface expected by gonum/stat/distmv, without altering the
// underlying random stream driving the rest of the package.
type randSource struct {
	r *rand.Rand
}

func (s randSource) Uint64() uint64   { return s.r.Uint64() }
func (s randSource) Seed(seed uint64) { s.r.Seed(int64(seed)) }

var _ exprand.Source = randSource{}

// MonteCarloPredictions draws nbRealizations fixed-effects vectors from
// N(finalParameterEstimates, parameterCovariance) over the fixed-effects
// subspace, and nbSubjects per-subject random effects from N(0, sigma_u^2)
// when mixed, producing one row per (realization, subject, age).
// nbRealizations <= 0 and/or nbSubjects <= 0 degenerate to a single,
// non-random pass (the point estimate / u=0) rather than zero rows —
// the "zero variability" boundary case.
func (m *Model) MonteCarloPredictions(ages []float64, _ float64, nbSubjects, nbRealizations int, rng *rand.Rand) ([]MonteCarloRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return nil, ErrNotFitted
	}

	fixedIdx := m.schema.FixedEffectIndices()
	mean := make([]float64, len(fixedIdx))
	for i, idx := range fixedIdx {
		mean[i] = m.finalParameterEstimates[idx]
	}
	sigma := submatrix(m.parameterCovariance, fixedIdx)

	drawRealization := func() []float64 { return mean }
	if nbRealizations > 0 {
		if dist, ok := distmv.NewNormal(mean, sigma, randSource{rng}); ok {
			drawRealization = func() []float64 { return dist.Rand(nil) }
		}
	}

	sigmaU := 0.0
	if m.schema.Mixed() {
		sigmaU = m.finalParameterEstimates[m.schema.SigmaUIndex()]
	}
	drawSubject := func() float64 { return 0 }
	if nbSubjects > 0 && m.schema.Mixed() {
		drawSubject = func() float64 { return rng.NormFloat64() * sigmaU }
	}

	effR, effS := nbRealizations, nbSubjects
	if effR <= 0 {
		effR = 1
	}
	if effS <= 0 {
		effS = 1
	}

	regLag := 0.0
	if idx := m.schema.RegLagIndex(); idx >= 0 {
		regLag = m.finalParameterEstimates[idx]
	}

	rows := make([]MonteCarloRow, 0, effR*effS*len(ages))
	for r := 0; r < effR; r++ {
		parms := drawRealization()
		for subj := 0; subj < effS; subj++ {
			u := drawSubject()
			for _, age := range ages {
				eff := age - regLag
				pred := 0.0
				if eff > 0 {
					pred = m.variant.Predict(eff, u, parms)
				}
				rows = append(rows, MonteCarloRow{RealizationID: r, SubjectID: subj, AgeYr: age, Pred: pred})
			}
		}
	}
	return rows, nil
}

func submatrix(full *mat.SymDense, idx []int) *mat.SymDense {
	n := len(idx)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, full.At(idx[i], idx[j]))
		}
	}
	return out
}

func quadForm(m *mat.SymDense, g []float64) float64 {
	v := mat.NewVecDense(len(g), g)
	var mv mat.VecDense
	mv.MulVec(m, v)
	return mat.Dot(v, &mv)
}
