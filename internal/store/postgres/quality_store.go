package postgres

import (
	"context"
	"fmt"

	"github.com/comixlabs/catalog-etl/internal/catalog"
	"github.com/comixlabs/catalog-etl/internal/store"
)

// ScanAnomalies runs the read-only post-load diagnostics. Orphan issues and
// duplicate creators should both be impossible given the loader's FK ordering
// and the creator identity index; non-zero counts point at an upstream bug.
func (s *Store) ScanAnomalies(ctx context.Context) (catalog.AnomalyReport, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM issue) AS total_issues,
			(SELECT COUNT(*) FROM issue WHERE cover_date IS NULL) AS null_cover_dates,
			(SELECT COUNT(*) FROM issue i LEFT JOIN series s ON i.series_id = s.series_id
				WHERE s.series_id IS NULL) AS orphan_issues,
			(SELECT COUNT(*) FROM (
				SELECT lower(name) FROM creator GROUP BY lower(name) HAVING COUNT(*) > 1
			) d) AS duplicate_creators`

	var report catalog.AnomalyReport
	err := s.db.QueryRow(ctx, query).Scan(
		&report.TotalIssues,
		&report.NullCoverDates,
		&report.OrphanIssues,
		&report.DuplicateCreators,
	)
	if err != nil {
		return catalog.AnomalyReport{}, fmt.Errorf("scan anomalies: %w", err)
	}
	return report, nil
}

// TopSeries returns the n series with the most issues.
func (s *Store) TopSeries(ctx context.Context, n int) ([]store.SeriesCount, error) {
	if n <= 0 {
		n = 10
	}
	query := `
		SELECT s.title, COUNT(*) AS issue_count
		FROM issue i
		JOIN series s ON i.series_id = s.series_id
		GROUP BY s.title
		ORDER BY issue_count DESC, s.title
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("top series: %w", err)
	}
	defer rows.Close()

	var counts []store.SeriesCount
	for rows.Next() {
		var sc store.SeriesCount
		if err := rows.Scan(&sc.Title, &sc.IssueCount); err != nil {
			return nil, fmt.Errorf("scan series count: %w", err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series counts: %w", err)
	}
	return counts, nil
}

// IssueCovers lists issues with a recorded cover image URL.
func (s *Store) IssueCovers(ctx context.Context, limit int) ([]store.CoverRef, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT issue_id, series_id, cover_image_url
		FROM issue
		WHERE cover_image_url IS NOT NULL
		ORDER BY issue_id
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("issue covers: %w", err)
	}
	defer rows.Close()

	var refs []store.CoverRef
	for rows.Next() {
		var ref store.CoverRef
		if err := rows.Scan(&ref.IssueID, &ref.SeriesID, &ref.URL); err != nil {
			return nil, fmt.Errorf("scan cover ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cover refs: %w", err)
	}
	return refs, nil
}
