// Package marvel implements the source.Client extraction boundary against
// the Marvel catalog API.
package marvel

import (
	"context"
	"crypto/md5" //nolint:gosec // provider-mandated request signing, not security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/archive"
	"github.com/comixlabs/catalog-etl/internal/catalog"
	"github.com/comixlabs/catalog-etl/internal/metrics"
	"github.com/comixlabs/catalog-etl/internal/source"
)

// SourceSystem is the provenance label recorded for every Marvel run.
const SourceSystem = "marvel"

// Config holds credentials and request knobs for the Marvel API.
type Config struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the Marvel gateway. It implements source.Client.
type Client struct {
	cfg      Config
	http     *http.Client
	policy   *source.ExponentialRetryPolicy
	archiver archive.Provider
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a Client. The archiver receives every raw page payload so runs
// can be replayed offline; pass archive.NoOp to discard them.
func New(cfg Config, archiver archive.Provider, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("marvel.base_url is required")
	}
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("marvel.public_key and marvel.private_key are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if archiver == nil {
		archiver = &archive.NoOp{}
	}
	metrics.Init()
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		policy:   source.NewExponentialRetryPolicy(cfg.MaxRetries),
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// envelope is the outer shape of every Marvel gateway response.
type envelope struct {
	Data struct {
		Total   int               `json:"total"`
		Results []json.RawMessage `json:"results"`
	} `json:"data"`
}

// ResolveSeries searches /series by title prefix.
func (c *Client) ResolveSeries(ctx context.Context, titleFilter string, limit int) ([]source.SeriesRef, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("titleStartsWith", titleFilter)
	params.Set("limit", strconv.Itoa(limit))

	env, _, err := c.get(ctx, "/series", params)
	if err != nil {
		return nil, err
	}

	refs := make([]source.SeriesRef, 0, len(env.Data.Results))
	for _, raw := range env.Data.Results {
		var s struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			StartYear *int   `json:"startYear"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: series result: %v", catalog.ErrSourceMalformed, err)
		}
		if s.ID == 0 {
			return nil, fmt.Errorf("%w: series result missing id", catalog.ErrSourceMalformed)
		}
		refs = append(refs, source.SeriesRef{
			Key:       strconv.FormatInt(s.ID, 10),
			Title:     s.Title,
			StartYear: s.StartYear,
		})
	}
	return refs, nil
}

// Fetch starts a fresh comic pull for one provider series from offset 0.
func (c *Client) Fetch(query source.Query) source.Batches {
	return &comicBatches{client: c, query: query}
}

// comicBatches pages /comics with an offset cursor. The sequence ends when a
// page comes back shorter than the requested size or MaxItems is reached.
type comicBatches struct {
	client *Client
	query  source.Query
	offset int
	read   int
	done   bool
}

func (b *comicBatches) Next(ctx context.Context) (catalog.RawBatch, error) {
	if b.done {
		return catalog.RawBatch{}, source.ErrEndOfData
	}

	limit := b.query.PageSize
	if b.query.MaxItems > 0 && b.read+limit > b.query.MaxItems {
		limit = b.query.MaxItems - b.read
	}
	if limit <= 0 {
		b.done = true
		return catalog.RawBatch{}, source.ErrEndOfData
	}

	params := url.Values{}
	params.Set("series", b.query.SeriesKey)
	params.Set("orderBy", "issueNumber")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(b.offset))

	env, body, err := b.client.get(ctx, "/comics", params)
	if err != nil {
		b.done = true
		return catalog.RawBatch{}, err
	}
	b.client.archivePage(ctx, b.query.SeriesKey, b.offset, body)

	records := make([]catalog.RawRecord, 0, len(env.Data.Results))
	for _, raw := range env.Data.Results {
		var rec catalog.RawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			b.done = true
			return catalog.RawBatch{}, fmt.Errorf("%w: comic result: %v", catalog.ErrSourceMalformed, err)
		}
		records = append(records, rec)
	}

	batch := catalog.RawBatch{
		Records: records,
		Offset:  b.offset,
		Total:   env.Data.Total,
	}
	b.offset += len(records)
	b.read += len(records)

	if len(records) < limit {
		b.done = true
	}
	if b.query.MaxItems > 0 && b.read >= b.query.MaxItems {
		b.done = true
	}
	if len(records) == 0 {
		return catalog.RawBatch{}, source.ErrEndOfData
	}
	return batch, nil
}

// get performs a signed GET with retry on 5xx and transport timeouts.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*envelope, []byte, error) {
	endpoint := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; ; attempt++ {
		env, body, err := c.getOnce(ctx, path, endpoint, params)
		if err == nil {
			return env, body, nil
		}
		lastErr = err
		if !c.policy.ShouldRetry(err, attempt) {
			break
		}
		c.logger.Warn("provider request failed; retrying",
			zap.String("endpoint", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("%w: %v", catalog.ErrSourceUnavailable, ctx.Err())
		case <-time.After(c.policy.Backoff(attempt)):
		}
	}
	return nil, nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, path, endpoint string, params url.Values) (*envelope, []byte, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	for k, v := range c.authParams() {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %v", catalog.ErrSourceUnavailable, err)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveSourceRequest(path, 0, time.Since(start))
		return nil, nil, fmt.Errorf("%w: %v", catalog.ErrSourceUnavailable, err)
	}
	metrics.ObserveSourceRequest(path, resp.StatusCode, time.Since(start))
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", catalog.ErrSourceUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, nil, source.Retryable(
			fmt.Errorf("%w: provider returned %d", catalog.ErrSourceUnavailable, resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nil, fmt.Errorf("%w: authentication rejected (%d)", catalog.ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, nil, fmt.Errorf("%w: unexpected status %d", catalog.ErrSourceUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", catalog.ErrSourceMalformed, err)
	}
	return &env, body, nil
}

// authParams produces the ts/apikey/hash triple the gateway requires:
// hash = md5(ts + privateKey + publicKey).
func (c *Client) authParams() map[string]string {
	ts := strconv.FormatInt(c.now().UnixNano(), 10)
	sum := md5.Sum([]byte(ts + c.cfg.PrivateKey + c.cfg.PublicKey)) //nolint:gosec // see above
	return map[string]string{
		"ts":     ts,
		"apikey": c.cfg.PublicKey,
		"hash":   hex.EncodeToString(sum[:]),
	}
}

// archivePage stores a raw page payload for offline replay. Failures are
// logged, never fatal: the archive is a diagnostic aid, not a dependency.
func (c *Client) archivePage(ctx context.Context, seriesKey string, offset int, body []byte) {
	key := fmt.Sprintf("%s/series-%s/offset-%08d.json", SourceSystem, seriesKey, offset)
	if err := c.archiver.Put(ctx, key, body); err != nil {
		c.logger.Warn("failed to archive raw page", zap.String("key", key), zap.Error(err))
	}
}
