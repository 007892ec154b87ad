// Package source defines the extraction boundary: a paginated, authenticated
// provider client yielding lazy, finite, non-restartable batch sequences.
package source

import (
	"context"
	"errors"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// ErrEndOfData terminates a batch sequence. It is not a failure.
var ErrEndOfData = errors.New("end of data")

// Query describes one extraction pull against a provider series.
type Query struct {
	// SeriesKey is the provider-side series identifier to page comics for.
	SeriesKey string
	// PageSize is the requested batch size per page.
	PageSize int
	// MaxItems caps cumulative records read; 0 means no cap.
	MaxItems int
}

// SeriesRef is a provider series hit returned by ResolveSeries.
type SeriesRef struct {
	Key       string
	Title     string
	StartYear *int
}

// Batches is a lazy sequence of raw record pages. It is finite and not
// restartable: a fresh pull must go back through Client.Fetch. Callers
// needing replay must cache batches explicitly.
type Batches interface {
	// Next returns the next page, or ErrEndOfData once the provider signals
	// end-of-data (short page) or MaxItems is reached.
	Next(ctx context.Context) (catalog.RawBatch, error)
}

// Client is the provider extraction interface.
type Client interface {
	// ResolveSeries returns up to limit provider series matching the title
	// filter.
	ResolveSeries(ctx context.Context, titleFilter string, limit int) ([]SeriesRef, error)

	// Fetch starts a fresh paginated pull from offset 0. Re-invoking Fetch
	// may observe different data if the upstream source changed; no
	// checkpoint state is kept.
	Fetch(query Query) Batches
}
