// Package covers downloads issue cover images recorded during ingest into
// the archive store.
package covers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/archive"
	"github.com/comixlabs/catalog-etl/internal/store"
)

// Lister yields the issues whose cover URLs should be fetched.
type Lister interface {
	IssueCovers(ctx context.Context, limit int) ([]store.CoverRef, error)
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Report tallies one covers pass.
type Report struct {
	Requested  int `json:"requested"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
}

// Fetcher pulls cover images over HTTP and stores the bytes in the archive.
type Fetcher struct {
	lister        Lister
	archiver      archive.Provider
	baseCollector *colly.Collector
	cfg           Config
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(lister Lister, archiver archive.Provider, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		lister:        lister,
		archiver:      archiver,
		baseCollector: c,
		cfg:           cfg,
		logger:        logger,
	}
}

// FetchAll downloads up to limit covers. Individual download failures are
// tallied, not fatal; the pass keeps going.
func (f *Fetcher) FetchAll(ctx context.Context, limit int) (Report, error) {
	refs, err := f.lister.IssueCovers(ctx, limit)
	if err != nil {
		return Report{}, fmt.Errorf("list covers: %w", err)
	}

	report := Report{Requested: len(refs)}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("covers pass canceled: %w", err)
		}
		if err := f.fetchOne(ctx, ref); err != nil {
			report.Failed++
			f.logger.Warn("cover download failed",
				zap.Int64("issue_id", ref.IssueID),
				zap.String("url", ref.URL),
				zap.Error(err))
			continue
		}
		report.Downloaded++
	}
	f.logger.Info("covers pass finished",
		zap.Int("requested", report.Requested),
		zap.Int("downloaded", report.Downloaded),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, ref store.CoverRef) error {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(ref.URL); err != nil {
		return fmt.Errorf("visit: %w", err)
	}
	if fetchErr != nil {
		return fmt.Errorf("response: %w", fetchErr)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	return f.archiver.Put(ctx, coverKey(ref), body)
}

// coverKey names the archived object: covers/series-<id>/issue-<id><ext>.
func coverKey(ref store.CoverRef) string {
	ext := strings.ToLower(path.Ext(ref.URL))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return fmt.Sprintf("covers/series-%d/issue-%d%s", ref.SeriesID, ref.IssueID, ext)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
