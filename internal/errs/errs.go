// Package errs defines the error taxonomy shared across the pipeline and
// serving layers. Callers classify failures with errors.Is against these
// sentinels; the HTTP layer maps them to status codes.
package errs

import "errors"

var (
	// ErrConfiguration marks an unfittable setup: unknown feature names,
	// constant columns, infeasible selection sizes. Fatal to the run.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidInput marks malformed caller data: non-binary targets,
	// length mismatches, unparseable payloads. Maps to a client 4xx.
	ErrInvalidInput = errors.New("invalid input")

	// ErrArtifactUnavailable marks a missing or corrupt persisted
	// transformer or model. Fatal at serving startup.
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrNotFound marks a by-ID lookup miss. A defined empty result,
	// never a server fault.
	ErrNotFound = errors.New("not found")
)
