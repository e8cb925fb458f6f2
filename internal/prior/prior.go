// Package prior implements the prior handler: one continuous
// distribution per fixed parameter, plus the hierarchical random-effect
// prior (a block's u_i is N(0, sigma_u^2), with sigma_u itself a free
// parameter carrying its own Uniform hyper-prior).
package prior

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"metamodelfit/internal/schema"
)

// Handler evaluates log p(parms) as the sum of each parameter's component
// log-density.
type Handler struct {
	s *schema.Schema
}

// New builds a Handler from a Schema's bounds. It is a standalone
// constructor rather than a Schema method to avoid a schema<->prior
// import cycle — the Schema already carries the bounds the Handler
// would otherwise be re-fed.
func New(s *schema.Schema) *Handler {
	return &Handler{s: s}
}

// LogDensity returns log p(parms): a Uniform log-density term for every
// fixed effect, rho, sigma_u, sigma2_res, and regLag index, plus an
// N(0, sigma_u^2) term for every random-effect slot when the schema is
// mixed.
func (h *Handler) LogDensity(parms []float64) float64 {
	total := 0.0
	sigmaUIdx := h.s.SigmaUIndex()

	for i, name := range h.s.Names() {
		if sigmaUIdx >= 0 && isRandomEffectName(name) {
			sigmaU := parms[sigmaUIdx]
			if sigmaU <= 0 {
				return math.Inf(-1)
			}
			n := distuv.Normal{Mu: 0, Sigma: sigmaU}
			total += n.LogProb(parms[i])
			continue
		}
		lower, upper := h.s.Bounds(i)
		if upper <= lower {
			continue
		}
		if parms[i] < lower || parms[i] > upper {
			return math.Inf(-1)
		}
		total += -math.Log(upper - lower)
	}
	return total
}

func isRandomEffectName(name string) bool {
	return len(name) > 2 && name[0] == 'u' && name[1] == '_'
}
