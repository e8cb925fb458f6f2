package schema

import "errors"

var (
	// ErrUnsupportedDistribution is returned when a ParamConfig names a
	// distribution other than "Uniform", the only kind currently
	// recognized.
	ErrUnsupportedDistribution = errors.New("schema: unsupported distribution")

	// ErrUnknownParameter is returned when a ParamConfig names a parameter
	// that isn't one of the model's fixed effects or reserved scalars.
	ErrUnknownParameter = errors.New("schema: unknown parameter")

	// ErrMissingDistParms is returned when a Uniform ParamConfig doesn't
	// carry exactly [lower, upper].
	ErrMissingDistParms = errors.New("schema: uniform distribution requires [lower, upper]")
)
