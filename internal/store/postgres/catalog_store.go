package postgres

import (
	"context"
	"fmt"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// Every upsert below is a single INSERT ... ON CONFLICT against the natural
// key's unique index, not a check-then-insert pair, so concurrent runs for
// the same source cannot race into duplicate rows.

// UpsertPublisher resolves-or-creates a publisher by unique name.
func (s *Store) UpsertPublisher(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO publisher (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = publisher.name
		RETURNING publisher_id`

	var id int64
	if err := s.db.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert publisher: %w", mapConstraintErr(err))
	}
	return id, nil
}

// UpsertSeries resolves-or-creates a series. The (source_system, source_key)
// pair is the authoritative identity when a source key is present; otherwise
// (title, start_year, publisher) is used. The publisher link is only ever
// filled in, never cleared.
func (s *Store) UpsertSeries(ctx context.Context, key catalog.SeriesKey, publisherID *int64) (int64, error) {
	var query string
	if key.SourceKey != nil {
		query = `
			INSERT INTO series (title, publisher_id, start_year, volume, source_key, source_system)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_system, source_key) WHERE source_key IS NOT NULL DO UPDATE SET
				title = EXCLUDED.title,
				publisher_id = COALESCE(series.publisher_id, EXCLUDED.publisher_id),
				start_year = COALESCE(EXCLUDED.start_year, series.start_year),
				volume = COALESCE(EXCLUDED.volume, series.volume)
			RETURNING series_id`
	} else {
		query = `
			INSERT INTO series (title, publisher_id, start_year, volume, source_key, source_system)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (title, start_year, publisher_id) WHERE source_key IS NULL DO UPDATE SET
				volume = COALESCE(EXCLUDED.volume, series.volume)
			RETURNING series_id`
	}

	var id int64
	err := s.db.QueryRow(ctx, query,
		key.Title,
		publisherID,
		key.StartYear,
		key.Volume,
		key.SourceKey,
		key.SourceSystem,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert series: %w", mapConstraintErr(err))
	}
	return id, nil
}

// UpsertCreator resolves-or-creates a creator by case-insensitive name.
// On conflict the stored row keeps its first-seen display casing.
func (s *Store) UpsertCreator(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO creator (name)
		VALUES ($1)
		ON CONFLICT (lower(name)) DO UPDATE SET name = creator.name
		RETURNING creator_id`

	var id int64
	if err := s.db.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert creator: %w", mapConstraintErr(err))
	}
	return id, nil
}

// UpsertIssue resolves-or-creates an issue by (series_id, issue_number).
// COALESCE keeps the second write's non-null fields while never letting a
// null overwrite a previously stored value.
func (s *Store) UpsertIssue(ctx context.Context, seriesID int64, fields catalog.IssueFields) (int64, error) {
	query := `
		INSERT INTO issue (series_id, issue_number, title, cover_date, price_cents, isbn, upc, description, cover_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (series_id, issue_number) DO UPDATE SET
			title = COALESCE(EXCLUDED.title, issue.title),
			cover_date = COALESCE(EXCLUDED.cover_date, issue.cover_date),
			price_cents = COALESCE(EXCLUDED.price_cents, issue.price_cents),
			isbn = COALESCE(EXCLUDED.isbn, issue.isbn),
			upc = COALESCE(EXCLUDED.upc, issue.upc),
			description = COALESCE(EXCLUDED.description, issue.description),
			cover_image_url = COALESCE(EXCLUDED.cover_image_url, issue.cover_image_url)
		RETURNING issue_id`

	var id int64
	err := s.db.QueryRow(ctx, query,
		seriesID,
		fields.IssueNumber,
		fields.Title,
		fields.CoverDate,
		fields.PriceCents,
		fields.ISBN,
		fields.UPC,
		fields.Description,
		fields.CoverImageURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert issue: %w", mapConstraintErr(err))
	}
	return id, nil
}

// UpsertCredit inserts the (issue, creator, role) triple; duplicates from the
// source collapse into the existing row.
func (s *Store) UpsertCredit(ctx context.Context, credit catalog.Credit) error {
	query := `
		INSERT INTO issue_creator (issue_id, creator_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (issue_id, creator_id, role) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, credit.IssueID, credit.CreatorID, credit.Role); err != nil {
		return fmt.Errorf("upsert credit: %w", mapConstraintErr(err))
	}
	return nil
}
