package metamodel

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"metamodelfit/internal/growth"
	"metamodelfit/internal/prior"
	"metamodelfit/internal/schema"
)

// ParameterState is one parameter's saved fit state: its posterior-mean
// estimate plus the starting value and uniform-prior bounds the schema was
// built with, enough to rebuild an identical schema on load.
type ParameterState struct {
	Name     string
	Estimate float64
	Start    float64
	Lower    float64
	Upper    float64
}

// FittedParameters returns the per-parameter state of a converged fit, in
// schema order.
func (m *Model) FittedParameters() ([]ParameterState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return nil, ErrNotFitted
	}

	start := m.schema.StartingValues()
	out := make([]ParameterState, m.schema.Len())
	for i, name := range m.schema.Names() {
		lower, upper := m.schema.Bounds(i)
		out[i] = ParameterState{
			Name:     name,
			Estimate: m.finalParameterEstimates[i],
			Start:    start[i],
			Lower:    lower,
			Upper:    upper,
		}
	}
	return out, nil
}

// ParameterCovariance returns a copy of the posterior sample covariance.
func (m *Model) ParameterCovariance() (*mat.SymDense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return nil, ErrNotFitted
	}
	n := m.parameterCovariance.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(m.parameterCovariance)
	return out, nil
}

// ThinnedSample returns a deep copy of the kept MCMC sample, or nil if the
// model was restored from a light snapshot.
func (m *Model) ThinnedSample() ([][]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasConverged {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(m.thinnedSample))
	for i, row := range m.thinnedSample {
		out[i] = append([]float64(nil), row...)
	}
	return out, nil
}

// Restore rebuilds a fitted, prediction-only Model from saved state: the
// form name, the per-parameter state in schema order, the posterior
// covariance, and the fit diagnostics. thinned may be nil (a light
// snapshot). The restored model carries no data blocks, so it serves the
// prediction surface but cannot be refit.
func Restore(form growth.Form, params []ParameterState, cov *mat.SymDense, lpml, acceptanceRate float64, thinned [][]float64) (*Model, error) {
	variant, ok := growth.Lookup(form)
	if !ok {
		return nil, ErrUnknownModelForm
	}

	effects := make(map[string]bool, len(variant.EffectList()))
	for _, name := range variant.EffectList() {
		effects[name] = true
	}

	var defaults []growth.StartingValue
	var configs []schema.ParamConfig
	varianceEstimated, regLagActive := false, false
	nbBlocks := 0

	for _, p := range params {
		switch {
		case effects[p.Name]:
			defaults = append(defaults, growth.StartingValue{Name: p.Name, Start: p.Start, Lower: p.Lower, Upper: p.Upper})
		case strings.HasPrefix(p.Name, "u_"):
			nbBlocks++
		default:
			switch p.Name {
			case schema.NameSigmaRes:
				varianceEstimated = true
			case schema.NameRegLag:
				regLagActive = true
			case schema.NameRho, schema.NameSigmaU:
			default:
				return nil, errors.Errorf("metamodel: restore: unknown parameter %q", p.Name)
			}
			configs = append(configs, schema.ParamConfig{
				Parameter:     p.Name,
				StartingValue: p.Start,
				Distribution:  schema.Distribution,
				DistParms:     []float64{p.Lower, p.Upper},
			})
		}
	}

	s, err := schema.Build(defaults, configs, variant.Mixed(), varianceEstimated, regLagActive, nbBlocks)
	if err != nil {
		return nil, errors.Wrap(err, "metamodel: restore: rebuild schema")
	}
	if s.Len() != len(params) {
		return nil, errors.Errorf("metamodel: restore: schema length %d != saved %d", s.Len(), len(params))
	}

	estimates := make([]float64, len(params))
	for _, p := range params {
		idx := s.Index(p.Name)
		if idx < 0 {
			return nil, errors.Errorf("metamodel: restore: parameter %q missing from rebuilt schema", p.Name)
		}
		estimates[idx] = p.Estimate
	}

	if cov == nil || cov.SymmetricDim() != len(params) {
		return nil, errors.New("metamodel: restore: covariance dimension mismatch")
	}

	m := &Model{
		variant: variant,
		schema:  s,
		prior:   prior.New(s),
	}
	m.commit(estimates, cov, lpml, acceptanceRate, thinned)
	return m, nil
}
