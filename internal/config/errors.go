package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Errors about a single job (depth, pages, patterns) come from the model and
// linkfilter packages and are wrapped with the offending start URL.
var (
	// ErrNoStartURL is returned when no start URL is given.
	ErrNoStartURL = errors.New("no start URL specified")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one report
	// format is selected.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown and --digest")

	// ErrInvalidMaxTime is returned when the overall deadline is negative.
	// Use 0 for no deadline.
	ErrInvalidMaxTime = errors.New("invalid max time: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
