package pipeline

import "errors"

var (
	// errNoSurvivors marks the degenerate empty survivor set. Callers that
	// only wanted the filter outcome treat it as a signal, not a fault.
	errNoSurvivors = errors.New("empty survivor set")
	errBadMethod   = errors.New("unsupported selection method")
)

// IsNoSurvivors reports whether the run aborted because nothing passed the
// survivor filter.
func IsNoSurvivors(err error) bool {
	return errors.Is(err, errNoSurvivors)
}
