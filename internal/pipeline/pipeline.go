// Package pipeline orchestrates one extract-normalize-load run and owns the
// audit ledger writes around it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/catalog"
	"github.com/comixlabs/catalog-etl/internal/clock"
	"github.com/comixlabs/catalog-etl/internal/metrics"
	"github.com/comixlabs/catalog-etl/internal/normalize"
	"github.com/comixlabs/catalog-etl/internal/publish"
	"github.com/comixlabs/catalog-etl/internal/quality"
	"github.com/comixlabs/catalog-etl/internal/source"
	"github.com/comixlabs/catalog-etl/internal/store"
)

// State names the orchestrator's position in a run.
type State string

// Run states in transition order.
const (
	StateIdle             State = "idle"
	StateExtracting       State = "extracting"
	StateNormalizing      State = "normalizing"
	StateQualityCheckPre  State = "quality_check_pre"
	StateLoading          State = "loading"
	StateQualityCheckPost State = "quality_check_post"
	StateFinalized        State = "finalized"
)

// Loader commits normalized records. Satisfied by store.Loader.
type Loader interface {
	Load(ctx context.Context, records []catalog.NormalizedRecord) (catalog.LoadResult, error)
}

// Pipeline wires the run components together. One Pipeline value can serve
// many sequential runs; each Run call gets its own audit row.
type Pipeline struct {
	source       source.Client
	normalizer   *normalize.Normalizer
	loader       Loader
	gate         *quality.Gate
	ledger       store.AuditLedger
	quality      store.QualityStore
	events       publish.Publisher
	eventTopic   string
	clock        clock.Clock
	logger       *zap.Logger
	sourceSystem string
	pageSize     int
}

// Options carries the pipeline dependencies.
type Options struct {
	Source       source.Client
	Normalizer   *normalize.Normalizer
	Loader       Loader
	Gate         *quality.Gate
	Ledger       store.AuditLedger
	Quality      store.QualityStore
	Events       publish.Publisher
	EventTopic   string
	Clock        clock.Clock
	Logger       *zap.Logger
	SourceSystem string
	PageSize     int
}

// New builds a Pipeline. Events and Quality may be nil; the run then skips
// event publishing and the post-load scan respectively.
func New(opts Options) *Pipeline {
	if opts.Events == nil {
		opts.Events = publish.NoOp{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	metrics.Init()
	return &Pipeline{
		source:       opts.Source,
		normalizer:   opts.Normalizer,
		loader:       opts.Loader,
		gate:         opts.Gate,
		ledger:       opts.Ledger,
		quality:      opts.Quality,
		events:       opts.Events,
		eventTopic:   opts.EventTopic,
		clock:        opts.Clock,
		logger:       opts.Logger,
		sourceSystem: opts.SourceSystem,
		pageSize:     opts.PageSize,
	}
}

// Result summarizes one finished run.
type Result struct {
	RunID           int64                  `json:"run_id"`
	InvocationID    string                 `json:"invocation_id"`
	SourceSystem    string                 `json:"source_system"`
	SeriesTitle     string                 `json:"series_title"`
	Status          store.RunStatus        `json:"status"`
	RecordsRead     int                    `json:"records_read"`
	RecordsSkipped  int                    `json:"records_skipped"`
	RecordsLoaded   int                    `json:"records_loaded"`
	ConstraintFails int                    `json:"constraint_failures"`
	Notes           string                 `json:"notes,omitempty"`
	Anomalies       *catalog.AnomalyReport `json:"anomalies,omitempty"`
}

// Run executes one pipeline invocation for a single title filter: resolve
// the provider series, pull its pages, normalize, gate, load, scan. The
// audit row is finalized on every exit path; the returned error is non-nil
// only for runs that end failed.
func (p *Pipeline) Run(ctx context.Context, titleFilter string, maxItems int) (res Result, runErr error) {
	res = Result{
		InvocationID: uuid.NewString(),
		SourceSystem: p.sourceSystem,
		Status:       store.RunFailed,
	}
	logger := p.logger.With(
		zap.String("invocation_id", res.InvocationID),
		zap.String("title_filter", titleFilter),
	)

	runID, err := p.ledger.Begin(ctx, p.sourceSystem, p.clock.Now())
	if err != nil {
		res.Notes = "audit begin failed"
		return res, fmt.Errorf("begin audit run: %w", err)
	}
	res.RunID = runID
	logger = logger.With(zap.Int64("run_id", runID))
	logger.Info("run started")

	var notes []string
	defer func() {
		if len(notes) > 0 {
			res.Notes = strings.Join(notes, "; ")
		}
		if err := p.ledger.Finish(ctx, runID, p.clock.Now(),
			res.RecordsRead, res.RecordsLoaded, res.Status, res.Notes); err != nil {
			logger.Error("audit finish failed", zap.Error(err))
		}
		metrics.ObserveRun(string(res.Status))
		p.publishResult(ctx, logger, res)
		logger.Info("run finished",
			zap.String("status", string(res.Status)),
			zap.Int("records_read", res.RecordsRead),
			zap.Int("records_loaded", res.RecordsLoaded),
			zap.Int("records_skipped", res.RecordsSkipped))
	}()

	ref, err := p.resolveOne(ctx, titleFilter)
	if err != nil {
		notes = append(notes, err.Error())
		return res, err
	}
	res.SeriesTitle = ref.Title
	fallback := catalog.SeriesKey{
		Title:        ref.Title,
		StartYear:    ref.StartYear,
		SourceKey:    &ref.Key,
		SourceSystem: p.sourceSystem,
	}

	step := func(s State) {
		logger.Debug("state transition", zap.String("state", string(s)))
	}

	step(StateExtracting)
	raw, expected, extractErr := p.extract(ctx, logger, ref.Key, maxItems)
	res.RecordsRead = len(raw)
	metrics.ObserveRecordsRead(ref.Title, len(raw))
	if extractErr != nil {
		if errors.Is(extractErr, catalog.ErrSourceMalformed) {
			// Page-fatal only; keep what was read and note the short pull.
			notes = append(notes, extractErr.Error())
		} else {
			notes = append(notes, extractErr.Error())
			return res, extractErr
		}
	}

	step(StateNormalizing)
	normalized := make([]catalog.NormalizedRecord, 0, len(raw))
	for _, rec := range raw {
		nr, err := p.normalizer.Normalize(rec, fallback)
		if err != nil {
			res.RecordsSkipped++
			logger.Debug("record skipped", zap.Error(err))
			continue
		}
		normalized = append(normalized, nr)
	}
	metrics.ObserveRecordsSkipped(ref.Title, res.RecordsSkipped)
	if res.RecordsSkipped > 0 {
		notes = append(notes, fmt.Sprintf("%d records skipped during normalization", res.RecordsSkipped))
	}

	step(StateQualityCheckPre)
	if maxItems > 0 && maxItems < expected {
		expected = maxItems
	}
	if err := p.gate.CheckCoverage(expected, len(normalized)); err != nil {
		res.Status = store.RunPartial
		notes = append(notes, err.Error())
		logger.Warn("coverage gate tripped; load aborted", zap.Error(err))
		return res, nil
	}

	step(StateLoading)
	loadRes, err := p.loader.Load(ctx, normalized)
	res.RecordsLoaded = loadRes.RecordsLoaded
	res.ConstraintFails = loadRes.ConstraintFailures
	metrics.ObserveRecordsLoaded(ref.Title, loadRes.RecordsLoaded)
	if err != nil {
		notes = append(notes, err.Error())
		return res, fmt.Errorf("load: %w", err)
	}
	if loadRes.ConstraintFailures > 0 {
		notes = append(notes, fmt.Sprintf("%d records rejected by store constraints", loadRes.ConstraintFailures))
	}

	step(StateQualityCheckPost)
	if p.quality != nil {
		report, err := p.quality.ScanAnomalies(ctx)
		if err != nil {
			// Diagnostic only; a scan failure never changes the load outcome.
			logger.Warn("anomaly scan failed", zap.Error(err))
			notes = append(notes, "anomaly scan failed")
		} else {
			res.Anomalies = &report
		}
	}

	res.Status = p.finalStatus(&res, extractErr)
	return res, nil
}

// finalStatus applies the terminal-status policy: clean runs succeed, runs
// that committed anything despite skips or rejects are partial, runs that
// attempted records and committed none fail.
func (p *Pipeline) finalStatus(res *Result, extractErr error) store.RunStatus {
	clean := res.RecordsSkipped == 0 && res.ConstraintFails == 0 && extractErr == nil
	switch {
	case clean:
		return store.RunSuccess
	case res.RecordsLoaded > 0:
		return store.RunPartial
	case res.RecordsRead == 0:
		// Nothing attempted and nothing committed; a short source is not
		// a failure on its own.
		return store.RunPartial
	default:
		return store.RunFailed
	}
}

// resolveOne picks the first provider series matching the title filter.
func (p *Pipeline) resolveOne(ctx context.Context, titleFilter string) (source.SeriesRef, error) {
	refs, err := p.source.ResolveSeries(ctx, titleFilter, 1)
	if err != nil {
		return source.SeriesRef{}, fmt.Errorf("resolve series %q: %w", titleFilter, err)
	}
	if len(refs) == 0 {
		return source.SeriesRef{}, fmt.Errorf("resolve series %q: %w: no match", titleFilter, catalog.ErrSourceUnavailable)
	}
	return refs[0], nil
}

// extract drains the batch sequence. It returns the records read so far
// alongside any terminal error, so a malformed page still yields its
// predecessors.
func (p *Pipeline) extract(ctx context.Context, logger *zap.Logger, seriesKey string, maxItems int) ([]catalog.RawRecord, int, error) {
	batches := p.source.Fetch(source.Query{
		SeriesKey: seriesKey,
		PageSize:  p.pageSize,
		MaxItems:  maxItems,
	})

	var records []catalog.RawRecord
	expected := 0
	for {
		batch, err := batches.Next(ctx)
		if errors.Is(err, source.ErrEndOfData) {
			return records, expected, nil
		}
		if err != nil {
			return records, expected, err
		}
		if batch.Total > expected {
			expected = batch.Total
		}
		records = append(records, batch.Records...)
		logger.Debug("page read",
			zap.Int("offset", batch.Offset),
			zap.Int("page_records", len(batch.Records)),
			zap.Int("total", batch.Total))
	}
}

func (p *Pipeline) publishResult(ctx context.Context, logger *zap.Logger, res Result) {
	if p.eventTopic == "" {
		return
	}
	if _, err := p.events.Publish(ctx, p.eventTopic, res); err != nil {
		logger.Warn("run event publish failed", zap.Error(err))
	}
}
