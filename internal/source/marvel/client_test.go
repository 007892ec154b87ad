package marvel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/archive"
	"github.com/comixlabs/catalog-etl/internal/catalog"
	"github.com/comixlabs/catalog-etl/internal/source"
)

func newTestClient(t *testing.T, baseURL string, archiver archive.Provider) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    baseURL,
		PublicKey:  "pub",
		PrivateKey: "priv",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}, archiver, zap.NewNop())
	require.NoError(t, err)
	return c
}

// comicsPage renders a Marvel-shaped /comics envelope with n stub results.
func comicsPage(n, total int) string {
	results := make([]string, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, fmt.Sprintf(`{"id":%d,"issueNumber":%d,"title":"Stub #%d"}`, i+1, i+1, i+1))
	}
	return fmt.Sprintf(`{"data":{"total":%d,"results":[%s]}}`, total, strings.Join(results, ","))
}

func TestFetchTerminatesOnShortPage(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	pageSizes := []int{50, 50, 30}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/comics", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("ts"))
		require.Equal(t, "pub", r.URL.Query().Get("apikey"))
		require.NotEmpty(t, r.URL.Query().Get("hash"))

		page := requests.Add(1) - 1
		require.Less(t, int(page), len(pageSizes), "unexpected fourth request")

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		require.Equal(t, int(page)*50, offset)

		fmt.Fprint(w, comicsPage(pageSizes[page], 130))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	batches := c.Fetch(source.Query{SeriesKey: "2258", PageSize: 50})

	read := 0
	for {
		batch, err := batches.Next(context.Background())
		if errors.Is(err, source.ErrEndOfData) {
			break
		}
		require.NoError(t, err)
		read += len(batch.Records)
		require.Equal(t, 130, batch.Total)
	}

	require.Equal(t, 130, read)
	require.Equal(t, int64(3), requests.Load())
}

func TestFetchStopsAtMaxItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		fmt.Fprint(w, comicsPage(limit, 1000))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	batches := c.Fetch(source.Query{SeriesKey: "1", PageSize: 40, MaxItems: 100})

	read := 0
	for {
		batch, err := batches.Next(context.Background())
		if errors.Is(err, source.ErrEndOfData) {
			break
		}
		require.NoError(t, err)
		read += len(batch.Records)
	}
	require.Equal(t, 100, read)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, comicsPage(2, 2))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	batch, err := c.Fetch(source.Query{SeriesKey: "1", PageSize: 50}).Next(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	require.Equal(t, int64(2), attempts.Load())
}

func TestFetchAuthFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Fetch(source.Query{SeriesKey: "1", PageSize: 50}).Next(context.Background())
	require.ErrorIs(t, err, catalog.ErrSourceUnavailable)
	require.Equal(t, int64(1), attempts.Load())
}

func TestFetchMalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Fetch(source.Query{SeriesKey: "1", PageSize: 50}).Next(context.Background())
	require.ErrorIs(t, err, catalog.ErrSourceMalformed)
}

func TestFetchArchivesRawPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, comicsPage(3, 3))
	}))
	defer srv.Close()

	mem := archive.NewMemory()
	c := newTestClient(t, srv.URL, mem)
	batches := c.Fetch(source.Query{SeriesKey: "77", PageSize: 50})
	for {
		if _, err := batches.Next(context.Background()); errors.Is(err, source.ErrEndOfData) {
			break
		} else {
			require.NoError(t, err)
		}
	}

	_, ok := mem.Object("marvel/series-77/offset-00000000.json")
	require.True(t, ok)
	require.Equal(t, 1, mem.Len())
}

func TestResolveSeriesParsesResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/series", r.URL.Path)
		require.Equal(t, "Uncanny X-Men", r.URL.Query().Get("titleStartsWith"))
		fmt.Fprint(w, `{"data":{"total":1,"results":[{"id":2258,"title":"Uncanny X-Men (1981 - 2011)","startYear":1981}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	refs, err := c.ResolveSeries(context.Background(), "Uncanny X-Men", 5)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "2258", refs[0].Key)
	require.Equal(t, "Uncanny X-Men (1981 - 2011)", refs[0].Title)
	require.NotNil(t, refs[0].StartYear)
	require.Equal(t, 1981, *refs[0].StartYear)
}
