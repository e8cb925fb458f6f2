// Sentinel error set for the dataset package, in the style of
// katalvlaran-lvlath/matrix/errors.go: one errors.go per package, plain
// errors.New sentinels, matched with errors.Is at call sites.
package dataset

import "errors"

var (
	// ErrUnknownOutputType is returned when the requested output type is
	// not present in any ResultSet added so far.
	ErrUnknownOutputType = errors.New("dataset: unknown output type")

	// ErrIncompatibleResultSet is returned when a ResultSet added to a
	// stratum group disagrees with the simulator metadata (simulator,
	// realization count, or climate scenario) of the ResultSets already
	// present.
	ErrIncompatibleResultSet = errors.New("dataset: incompatible result set")

	// ErrDuplicateInitialAge is returned when two ResultSets share the same
	// initial age within one stratum group.
	ErrDuplicateInitialAge = errors.New("dataset: duplicate initial age")
)
