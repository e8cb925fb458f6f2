package block

import "errors"

// ErrNegativeQuadraticForm indicates a numerical breakdown in block
// log-likelihood: the quadratic form (y-mu)^T V^-1 (y-mu) came out
// negative, which the covariance invariant forbids. Fatal to the current
// MCMC step; the caller must treat it as chain non-convergence, not
// propagate it across the fit boundary.
var ErrNegativeQuadraticForm = errors.New("block: negative quadratic form")
