// Package catalog defines core types shared across the ETL subsystems.
package catalog

import (
	"strings"
	"time"
)

// RawRecord is one provider record as received, before any typing.
// Nothing downstream of the Normalizer sees this shape.
type RawRecord map[string]any

// RawBatch is one page of provider records plus the provider-reported total,
// which the quality gate uses as its coverage baseline.
type RawBatch struct {
	Records []RawRecord
	Offset  int
	// Total is the provider-reported total result count, or 0 when unknown.
	Total int
}

// Publisher is a comic publisher, unique by name.
type Publisher struct {
	ID   int64
	Name string
}

// SeriesKey is the natural key used for series upsert matching.
// (SourceSystem, SourceKey) is authoritative when SourceKey is present;
// otherwise (Title, StartYear, publisher) is used.
type SeriesKey struct {
	Title        string
	StartYear    *int
	Volume       *int
	SourceKey    *string
	SourceSystem string
}

// Series is a comic series row.
type Series struct {
	ID           int64
	Title        string
	PublisherID  *int64
	StartYear    *int
	Volume       *int
	SourceKey    *string
	SourceSystem string
}

// Issue is one issue of a series, unique by (SeriesID, IssueNumber).
type Issue struct {
	ID            int64
	SeriesID      int64
	IssueNumber   string
	Title         *string
	CoverDate     *time.Time
	PriceCents    *int
	ISBN          *string
	UPC           *string
	Description   *string
	CoverImageURL *string
}

// Creator is a creative contributor, unique by case-insensitive name.
type Creator struct {
	ID int64
	// Name preserves the casing of the first-seen variant.
	Name string
}

// CreatorKey normalizes a raw creator name into its identity form.
func CreatorKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Credit links a creator to an issue in one role.
type Credit struct {
	IssueID   int64
	CreatorID int64
	Role      string
}

// IssueFields carries the normalized attributes of one issue, pre-load.
type IssueFields struct {
	IssueNumber   string
	Title         *string
	CoverDate     *time.Time
	PriceCents    *int
	ISBN          *string
	UPC           *string
	Description   *string
	CoverImageURL *string
}

// CreditRef names a creative contribution before creator ids exist.
type CreditRef struct {
	CreatorName string
	Role        string
}

// NormalizedRecord is the strictly-typed output of the Normalizer for one
// provider record: the series it belongs to, the issue attributes, and the
// credit list.
type NormalizedRecord struct {
	PublisherName string
	Series        SeriesKey
	Issue         IssueFields
	Credits       []CreditRef
}

// LoadResult reports per-batch loader outcomes.
type LoadResult struct {
	RecordsLoaded int
	// ConstraintFailures counts records rejected by the store despite the
	// upsert logic; they are record-fatal, not batch-fatal.
	ConstraintFailures int
}

// AnomalyReport is the post-load diagnostic scan output.
type AnomalyReport struct {
	TotalIssues       int64 `json:"total_issues"`
	NullCoverDates    int64 `json:"null_cover_dates"`
	OrphanIssues      int64 `json:"orphan_issues"`
	DuplicateCreators int64 `json:"duplicate_creators"`
}
