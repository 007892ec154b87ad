package catalog

import "errors"

// Error taxonomy for the pipeline. Callers classify with errors.Is.
var (
	// ErrSourceUnavailable signals transport or authentication failure.
	// Fatal to the run.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceMalformed signals a response that cannot be parsed as the
	// expected shape. Fatal to the current page only.
	ErrSourceMalformed = errors.New("source response malformed")

	// ErrNormalization signals a record missing mandatory identity fields.
	// The record is skipped and counted; the run continues.
	ErrNormalization = errors.New("record failed normalization")

	// ErrBelowThreshold signals a guardrail trip: actual coverage fell
	// under the configured ratio. The batch is not committed.
	ErrBelowThreshold = errors.New("coverage below threshold")

	// ErrLoadConstraint signals a uniqueness violation the upsert logic
	// should have absorbed. Fatal for the record, not the batch.
	ErrLoadConstraint = errors.New("load violated unique constraint")
)
