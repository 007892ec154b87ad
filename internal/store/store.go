// Package store declares the persistence interfaces for the catalog and the
// audit ledger.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunStatus mirrors the etl_run status column.
type RunStatus string

// Run statuses persisted in etl_run.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// AuditRun models one row of the append-only etl_run ledger.
type AuditRun struct {
	// ID is the auto-incrementing run id.
	ID int64 `json:"run_id"`
	// SourceSystem names the provider this run pulled from.
	SourceSystem string `json:"source_system"`
	// StartedAt is set by Begin.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is nil while the run is live (or was never finalized).
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// RecordsRead counts raw records pulled from the source.
	RecordsRead int `json:"records_read"`
	// RecordsLoaded counts records committed to the store.
	RecordsLoaded int `json:"records_loaded"`
	// Status is running until Finish sets a terminal value.
	Status RunStatus `json:"status"`
	// Notes carries free-text provenance (abort reasons, skip tallies).
	Notes *string `json:"notes,omitempty"`
}

// AuditLedger records one row per pipeline invocation. Rows are never
// deleted; a crash leaves the row at status running for an external
// staleness check to find.
type AuditLedger interface {
	// Begin inserts a running row and returns its run id.
	Begin(ctx context.Context, sourceSystem string, startedAt time.Time) (int64, error)
	// Finish finalizes the run exactly once. Finalizing a run that is not
	// running is an error.
	Finish(ctx context.Context, runID int64, finishedAt time.Time, recordsRead, recordsLoaded int, status RunStatus, notes string) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID int64) (AuditRun, error)
	// ListRuns returns runs newest-first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]AuditRun, error)
}

// CatalogStore performs natural-key upserts. Each call is a single atomic
// insert-or-update against the key's unique constraint, so concurrent runs
// for the same source cannot produce duplicate rows.
type CatalogStore interface {
	// UpsertPublisher resolves-or-creates a publisher by unique name.
	UpsertPublisher(ctx context.Context, name string) (int64, error)
	// UpsertSeries resolves-or-creates a series by its natural key:
	// (source_system, source_key) when the source key is present, else
	// (title, start_year, publisher).
	UpsertSeries(ctx context.Context, key catalog.SeriesKey, publisherID *int64) (int64, error)
	// UpsertCreator resolves-or-creates a creator by case-insensitive name,
	// preserving the first-seen display casing.
	UpsertCreator(ctx context.Context, name string) (int64, error)
	// UpsertIssue resolves-or-creates an issue by (series_id, issue_number).
	// Non-null incoming fields override stored nulls; a stored non-null
	// field is never overwritten with null.
	UpsertIssue(ctx context.Context, seriesID int64, fields catalog.IssueFields) (int64, error)
	// UpsertCredit inserts the (issue, creator, role) triple if absent.
	UpsertCredit(ctx context.Context, credit catalog.Credit) error
}

// SeriesCount is one row of the top-series aggregate.
type SeriesCount struct {
	Title      string `json:"title"`
	IssueCount int64  `json:"issue_count"`
}

// CoverRef points at an issue with a recorded cover image URL.
type CoverRef struct {
	IssueID  int64
	SeriesID int64
	URL      string
}

// QualityStore runs read-only diagnostics over the loaded catalog.
type QualityStore interface {
	// ScanAnomalies surfaces null/orphan/duplicate counts for operator
	// review. It never mutates the store.
	ScanAnomalies(ctx context.Context) (catalog.AnomalyReport, error)
	// TopSeries returns the n series with the most issues.
	TopSeries(ctx context.Context, n int) ([]SeriesCount, error)
	// IssueCovers lists issues that have a cover URL recorded.
	IssueCovers(ctx context.Context, limit int) ([]CoverRef, error)
}
