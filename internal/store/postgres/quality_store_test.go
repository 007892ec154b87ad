package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestScanAnomaliesReportsOrphans(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{
			"total_issues", "null_cover_dates", "orphan_issues", "duplicate_creators",
		}).AddRow(int64(130), int64(4), int64(1), int64(0)))

	report, err := s.ScanAnomalies(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(130), report.TotalIssues)
	require.Equal(t, int64(4), report.NullCoverDates)
	require.Equal(t, int64(1), report.OrphanIssues)
	require.Equal(t, int64(0), report.DuplicateCreators)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopSeriesOrdersByCount(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("GROUP BY s.title").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"title", "issue_count"}).
			AddRow("Uncanny X-Men", int64(280)).
			AddRow("Daredevil", int64(190)))

	counts, err := s.TopSeries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, "Uncanny X-Men", counts[0].Title)
	require.Equal(t, int64(280), counts[0].IssueCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueCoversListsRecordedURLs(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("WHERE cover_image_url IS NOT NULL").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"issue_id", "series_id", "cover_image_url"}).
			AddRow(int64(101), int64(42), "https://i.annihil.us/abc/portrait_xlarge.jpg"))

	refs, err := s.IssueCovers(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, int64(101), refs[0].IssueID)
	require.NoError(t, mock.ExpectationsWereMet())
}
