package metamodel

import "errors"

var (
	// ErrUnknownModelForm is returned when a candidate names a model form
	// outside growth's eight recognized identifiers.
	ErrUnknownModelForm = errors.New("metamodel: unknown model form")

	// ErrNoCandidateConverged is returned by Fit when every candidate's
	// MCMC chain failed to converge.
	ErrNoCandidateConverged = errors.New("metamodel: no candidate converged")

	// ErrNotFitted is returned by the prediction surface when called before
	// a successful Fit.
	ErrNotFitted = errors.New("metamodel: not fitted")
)
