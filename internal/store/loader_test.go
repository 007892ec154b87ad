package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// fakeCatalog records upsert calls and simulates natural-key resolution.
type fakeCatalog struct {
	calls []string

	publishers map[string]int64
	series     map[string]int64
	creators   map[string]int64
	issues     map[string]int64
	credits    map[string]struct{}

	failIssueNumber string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		publishers: map[string]int64{},
		series:     map[string]int64{},
		creators:   map[string]int64{},
		issues:     map[string]int64{},
		credits:    map[string]struct{}{},
	}
}

func (f *fakeCatalog) UpsertPublisher(_ context.Context, name string) (int64, error) {
	f.calls = append(f.calls, "publisher:"+name)
	if id, ok := f.publishers[name]; ok {
		return id, nil
	}
	id := int64(len(f.publishers) + 1)
	f.publishers[name] = id
	return id, nil
}

func (f *fakeCatalog) UpsertSeries(_ context.Context, key catalog.SeriesKey, _ *int64) (int64, error) {
	nk := key.SourceSystem
	if key.SourceKey != nil {
		nk += "|" + *key.SourceKey
	} else {
		nk += "|" + key.Title
	}
	f.calls = append(f.calls, "series:"+nk)
	if id, ok := f.series[nk]; ok {
		return id, nil
	}
	id := int64(len(f.series) + 100)
	f.series[nk] = id
	return id, nil
}

func (f *fakeCatalog) UpsertCreator(_ context.Context, name string) (int64, error) {
	key := catalog.CreatorKey(name)
	f.calls = append(f.calls, "creator:"+key)
	if id, ok := f.creators[key]; ok {
		return id, nil
	}
	id := int64(len(f.creators) + 200)
	f.creators[key] = id
	return id, nil
}

func (f *fakeCatalog) UpsertIssue(_ context.Context, seriesID int64, fields catalog.IssueFields) (int64, error) {
	if fields.IssueNumber == f.failIssueNumber && f.failIssueNumber != "" {
		return 0, fmt.Errorf("%w: synthetic collision", catalog.ErrLoadConstraint)
	}
	nk := fmt.Sprintf("%d#%s", seriesID, fields.IssueNumber)
	f.calls = append(f.calls, "issue:"+nk)
	if id, ok := f.issues[nk]; ok {
		return id, nil
	}
	id := int64(len(f.issues) + 300)
	f.issues[nk] = id
	return id, nil
}

func (f *fakeCatalog) UpsertCredit(_ context.Context, c catalog.Credit) error {
	nk := fmt.Sprintf("%d/%d/%s", c.IssueID, c.CreatorID, c.Role)
	f.calls = append(f.calls, "credit:"+nk)
	f.credits[nk] = struct{}{}
	return nil
}

func sampleRecord(issueNumber string, credits ...catalog.CreditRef) catalog.NormalizedRecord {
	key := "2258"
	return catalog.NormalizedRecord{
		PublisherName: "Marvel",
		Series:        catalog.SeriesKey{Title: "Uncanny X-Men", SourceKey: &key, SourceSystem: "marvel"},
		Issue:         catalog.IssueFields{IssueNumber: issueNumber},
		Credits:       credits,
	}
}

func TestLoadRespectsDependencyOrder(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	loader := NewLoader(fake, zap.NewNop())

	rec := sampleRecord("266", catalog.CreditRef{CreatorName: "Chris Claremont", Role: "writer"})
	result, err := loader.Load(context.Background(), []catalog.NormalizedRecord{rec})
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordsLoaded)

	require.Equal(t, []string{
		"publisher:Marvel",
		"series:marvel|2258",
		"creator:chris claremont",
		"issue:100#266",
		"credit:300/200/writer",
	}, fake.calls)
}

func TestLoadTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	loader := NewLoader(fake, zap.NewNop())

	batch := []catalog.NormalizedRecord{
		sampleRecord("1", catalog.CreditRef{CreatorName: "Stan Lee", Role: "writer"}),
		sampleRecord("2", catalog.CreditRef{CreatorName: "stan lee", Role: "writer"}),
	}

	for i := 0; i < 2; i++ {
		result, err := loader.Load(context.Background(), batch)
		require.NoError(t, err)
		require.Equal(t, 2, result.RecordsLoaded)
	}

	require.Len(t, fake.issues, 2)
	require.Len(t, fake.series, 1)
	require.Len(t, fake.creators, 1, "case-insensitive creators resolve to one row")
	require.Len(t, fake.credits, 2)
}

func TestLoadConstraintFailureIsRecordFatalOnly(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	fake.failIssueNumber = "13"
	loader := NewLoader(fake, zap.NewNop())

	batch := []catalog.NormalizedRecord{
		sampleRecord("12"),
		sampleRecord("13"),
		sampleRecord("14"),
	}

	result, err := loader.Load(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 2, result.RecordsLoaded)
	require.Equal(t, 1, result.ConstraintFailures)
}
