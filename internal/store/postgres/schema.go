package postgres

import (
	"context"
	"fmt"
)

// schemaStatements create the relational schema. Every statement is
// idempotent so initdb can run repeatedly.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS publisher (
		publisher_id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS series (
		series_id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		publisher_id BIGINT REFERENCES publisher(publisher_id),
		start_year INT,
		volume INT,
		source_key TEXT,
		source_system TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS series_source_identity
		ON series (source_system, source_key) WHERE source_key IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS series_natural_identity
		ON series (title, start_year, publisher_id) WHERE source_key IS NULL`,
	`CREATE TABLE IF NOT EXISTS creator (
		creator_id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS creator_name_identity
		ON creator (lower(name))`,
	`CREATE TABLE IF NOT EXISTS issue (
		issue_id BIGSERIAL PRIMARY KEY,
		series_id BIGINT NOT NULL REFERENCES series(series_id),
		issue_number TEXT NOT NULL,
		title TEXT,
		cover_date DATE,
		price_cents INT CHECK (price_cents >= 0),
		isbn TEXT,
		upc TEXT,
		description TEXT,
		cover_image_url TEXT,
		UNIQUE (series_id, issue_number)
	)`,
	`CREATE TABLE IF NOT EXISTS issue_creator (
		issue_id BIGINT NOT NULL REFERENCES issue(issue_id) ON DELETE CASCADE,
		creator_id BIGINT NOT NULL REFERENCES creator(creator_id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		PRIMARY KEY (issue_id, creator_id, role)
	)`,
	`CREATE TABLE IF NOT EXISTS etl_run (
		run_id BIGSERIAL PRIMARY KEY,
		source_system TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		records_read INT NOT NULL DEFAULT 0,
		records_loaded INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		notes TEXT
	)`,
}

// InitSchema creates the schema if absent.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
