// Package schema implements the parameter schema: turning a growth
// form's fixed-effect list plus the caller's optional overrides into one
// ordered, named parameter vector with a stable name->index map, starting
// values, and the per-index sampler-proposal-variance rule.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"metamodelfit/internal/growth"
)

// Distribution is the only prior-distribution kind recognized at schema
// build time.
const Distribution = "Uniform"

// ParamConfig is one entry of the caller-supplied parameter
// configuration: a starting value and a Uniform prior's [lower, upper].
type ParamConfig struct {
	Parameter     string    `json:"Parameter"`
	StartingValue float64   `json:"StartingValue"`
	Distribution  string    `json:"Distribution"`
	DistParms     []float64 `json:"DistParms"`
}

// ParseConfigJSON decodes the JSON-string encoding of a []ParamConfig,
// accepted as an alternative to a literal slice.
func ParseConfigJSON(raw string) ([]ParamConfig, error) {
	var out []ParamConfig
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.Wrap(err, "schema: decode param config json")
	}
	return out, nil
}

// kind classifies a parameter index for samplerVariance and for the prior
// handler's density rule.
type kind int

const (
	kindFixedEffect kind = iota
	kindRho
	kindSigmaU
	kindSigmaRes
	kindRegLag
	kindRandomEffect
)

// Reserved parameter names, stable across every model form.
const (
	NameRho       = "rho"
	NameSigmaU    = "sigma_u"
	NameSigmaRes  = "sigma2_res"
	NameRegLag    = "regLag"
	randomEffectPrefix = "u_"
)

// Schema is the ordered, named parameter vector: fixed
// effects, then rho, then (optionally) sigma_u, sigma2_res, regLag, then
// one random-effect draw per block.
type Schema struct {
	names  []string
	index  map[string]int
	kinds  []kind
	start  []float64
	lower  []float64
	upper  []float64

	mixed             bool
	varianceEstimated bool
	regLagActive      bool
	nbBlocks          int

	rhoIndex      int
	sigmaUIndex   int
	sigmaResIndex int
	regLagIndex   int
}

// Build assembles a Schema from a growth form's default fixed-effect
// schema, the caller's overrides, and the mixed/variance/regLag flags
// the hierarchical data and candidate model form determine.
func Build(effectDefaults []growth.StartingValue, configs []ParamConfig, mixed, varianceEstimated, regLagActive bool, nbBlocks int) (*Schema, error) {
	byName := make(map[string]ParamConfig, len(configs))
	for _, c := range configs {
		byName[c.Parameter] = c
	}

	s := &Schema{
		index:             make(map[string]int),
		mixed:             mixed,
		varianceEstimated: varianceEstimated,
		regLagActive:      regLagActive,
		nbBlocks:          nbBlocks,
		rhoIndex:          -1,
		sigmaUIndex:       -1,
		sigmaResIndex:     -1,
		regLagIndex:       -1,
	}

	add := func(name string, k kind, def growth.StartingValue) error {
		start, lower, upper := def.Start, def.Lower, def.Upper
		if cfg, ok := byName[name]; ok {
			if cfg.Distribution != Distribution {
				return errors.Wrapf(ErrUnsupportedDistribution, "parameter %q: %q", name, cfg.Distribution)
			}
			if len(cfg.DistParms) != 2 {
				return errors.Wrapf(ErrMissingDistParms, "parameter %q", name)
			}
			start, lower, upper = cfg.StartingValue, cfg.DistParms[0], cfg.DistParms[1]
			delete(byName, name)
		}
		s.index[name] = len(s.names)
		s.names = append(s.names, name)
		s.kinds = append(s.kinds, k)
		s.start = append(s.start, start)
		s.lower = append(s.lower, lower)
		s.upper = append(s.upper, upper)
		return nil
	}

	for _, def := range effectDefaults {
		if err := add(def.Name, kindFixedEffect, def); err != nil {
			return nil, err
		}
	}

	if err := add(NameRho, kindRho, growth.StartingValue{Start: 0.5, Lower: 0.01, Upper: 0.99}); err != nil {
		return nil, err
	}
	s.rhoIndex = s.index[NameRho]

	if mixed {
		if err := add(NameSigmaU, kindSigmaU, growth.StartingValue{Start: 10, Lower: 1e-6, Upper: 200}); err != nil {
			return nil, err
		}
		s.sigmaUIndex = s.index[NameSigmaU]
	}

	if varianceEstimated {
		if err := add(NameSigmaRes, kindSigmaRes, growth.StartingValue{Start: 50, Lower: 1e-6, Upper: 10000}); err != nil {
			return nil, err
		}
		s.sigmaResIndex = s.index[NameSigmaRes]
	}

	if regLagActive {
		if err := add(NameRegLag, kindRegLag, growth.StartingValue{Start: 5, Lower: 0, Upper: 10}); err != nil {
			return nil, err
		}
		s.regLagIndex = s.index[NameRegLag]
	}

	if mixed {
		for i := 0; i < nbBlocks; i++ {
			name := fmt.Sprintf("%s%d", randomEffectPrefix, i+1)
			s.index[name] = len(s.names)
			s.names = append(s.names, name)
			s.kinds = append(s.kinds, kindRandomEffect)
			s.start = append(s.start, 0)
			s.lower = append(s.lower, 0)
			s.upper = append(s.upper, 0)
		}
	}

	if len(byName) > 0 {
		for name := range byName {
			return nil, errors.Wrapf(ErrUnknownParameter, "parameter %q", name)
		}
	}

	return s, nil
}

// Len returns the total number of parameters, including random effects.
func (s *Schema) Len() int { return len(s.names) }

// Names returns the ordered parameter names.
func (s *Schema) Names() []string { return s.names }

// Index returns the index of a named parameter, or -1 if absent.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// StartingValues returns a fresh copy of the starting-value vector.
func (s *Schema) StartingValues() []float64 {
	out := make([]float64, len(s.start))
	copy(out, s.start)
	return out
}

// Bounds returns the [lower, upper] pair backing a Uniform prior for index i.
func (s *Schema) Bounds(i int) (float64, float64) { return s.lower[i], s.upper[i] }

// NbFixedEffects returns the count of fixed-effect (b1..bk) parameters.
func (s *Schema) NbFixedEffects() int {
	n := 0
	for _, k := range s.kinds {
		if k == kindFixedEffect {
			n++
		}
	}
	return n
}

// FixedEffectIndices returns the indices of the fixed-effect parameters,
// in schema order — always a contiguous prefix [0, NbFixedEffects()).
func (s *Schema) FixedEffectIndices() []int {
	out := make([]int, 0, s.NbFixedEffects())
	for i, k := range s.kinds {
		if k == kindFixedEffect {
			out = append(out, i)
		}
	}
	return out
}

// RhoIndex returns the index of rho, always present.
func (s *Schema) RhoIndex() int { return s.rhoIndex }

// SigmaUIndex returns the index of sigma_u, or -1 if this schema isn't mixed.
func (s *Schema) SigmaUIndex() int { return s.sigmaUIndex }

// SigmaResIndex returns the index of sigma2_res, or -1 if the simulator
// supplies variance directly.
func (s *Schema) SigmaResIndex() int { return s.sigmaResIndex }

// RegLagIndex returns the index of regLag, or -1 if it's inactive.
func (s *Schema) RegLagIndex() int { return s.regLagIndex }

// RandomEffectIndex returns the parameter index of block b's random-effect
// draw u_b (0-based b), or -1 if this schema isn't mixed.
func (s *Schema) RandomEffectIndex(block int) int {
	if !s.mixed {
		return -1
	}
	name := fmt.Sprintf("%s%d", randomEffectPrefix, block+1)
	return s.Index(name)
}

// Mixed reports whether this schema carries per-block random effects.
func (s *Schema) Mixed() bool { return s.mixed }

// VarianceEstimated reports whether sigma2_res is a free parameter.
func (s *Schema) VarianceEstimated() bool { return s.varianceEstimated }

// RegLagActive reports whether regLag is present.
func (s *Schema) RegLagActive() bool { return s.regLagActive }

// SamplerVariance is the per-index Metropolis proposal variance:
// (parms[i]*coefVar)^2 for fixed effects, rho, and pure scalar nuisances;
// (sigma_u*coefVar)^2 for random-effect slots; (10*coefVar)^2 for regLag
// (a bound-based rule: 10 is the upper bound of regLag's prior).
func (s *Schema) SamplerVariance(parms []float64, coefVar float64) []float64 {
	out := make([]float64, len(parms))
	for i, k := range s.kinds {
		switch k {
		case kindRegLag:
			v := 10 * coefVar
			out[i] = v * v
		case kindRandomEffect:
			sigmaU := parms[s.sigmaUIndex]
			v := sigmaU * coefVar
			out[i] = v * v
		default:
			v := parms[i] * coefVar
			out[i] = v * v
		}
	}
	return out
}
