package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// Loader writes normalized records in foreign-key dependency order:
// Publisher → Series → Creator → Issue → Credit. Loading the same batch
// twice yields no duplicate rows and no attribute drift.
type Loader struct {
	catalog CatalogStore
	logger  *zap.Logger
}

// NewLoader builds a Loader over a CatalogStore.
func NewLoader(cs CatalogStore, logger *zap.Logger) *Loader {
	return &Loader{catalog: cs, logger: logger}
}

// Load upserts a batch of normalized records. Constraint violations are
// record-fatal and tallied; any other store error aborts the batch.
func (l *Loader) Load(ctx context.Context, records []catalog.NormalizedRecord) (catalog.LoadResult, error) {
	var result catalog.LoadResult

	// Ids resolved once per batch; repeated names are common within a pull.
	publisherIDs := make(map[string]int64)
	creatorIDs := make(map[string]int64)

	for _, rec := range records {
		if err := l.loadOne(ctx, rec, publisherIDs, creatorIDs); err != nil {
			if errors.Is(err, catalog.ErrLoadConstraint) {
				result.ConstraintFailures++
				l.logger.Warn("record rejected by store constraint",
					zap.String("series", rec.Series.Title),
					zap.String("issue", rec.Issue.IssueNumber),
					zap.Error(err))
				continue
			}
			return result, err
		}
		result.RecordsLoaded++
	}
	return result, nil
}

func (l *Loader) loadOne(
	ctx context.Context,
	rec catalog.NormalizedRecord,
	publisherIDs map[string]int64,
	creatorIDs map[string]int64,
) error {
	var publisherID *int64
	if rec.PublisherName != "" {
		id, ok := publisherIDs[rec.PublisherName]
		if !ok {
			var err error
			id, err = l.catalog.UpsertPublisher(ctx, rec.PublisherName)
			if err != nil {
				return err
			}
			publisherIDs[rec.PublisherName] = id
		}
		publisherID = &id
	}

	seriesID, err := l.catalog.UpsertSeries(ctx, rec.Series, publisherID)
	if err != nil {
		return err
	}

	for _, credit := range rec.Credits {
		key := catalog.CreatorKey(credit.CreatorName)
		if _, ok := creatorIDs[key]; ok {
			continue
		}
		creatorID, err := l.catalog.UpsertCreator(ctx, credit.CreatorName)
		if err != nil {
			return err
		}
		creatorIDs[key] = creatorID
	}

	issueID, err := l.catalog.UpsertIssue(ctx, seriesID, rec.Issue)
	if err != nil {
		return err
	}

	for _, credit := range rec.Credits {
		if err := l.catalog.UpsertCredit(ctx, catalog.Credit{
			IssueID:   issueID,
			CreatorID: creatorIDs[catalog.CreatorKey(credit.CreatorName)],
			Role:      credit.Role,
		}); err != nil {
			return err
		}
	}
	return nil
}
