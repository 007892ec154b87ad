// Package quality holds the pre-load coverage gate and the post-load
// anomaly scan glue. The gate decides whether a run's normalized output
// is complete enough to commit; the scan is delegated to the store.
package quality

import (
	"fmt"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// Gate evaluates normalized-record coverage against a configured floor.
type Gate struct {
	minRatio float64
}

// NewGate builds a gate with the given minimum coverage ratio. A ratio
// of 0 disables the check entirely.
func NewGate(minRatio float64) *Gate {
	return &Gate{minRatio: minRatio}
}

// CheckCoverage compares the count of normalized records against the
// count the source reported. When the source total is unknown (zero)
// the gate passes unconditionally; an unknown denominator is not a
// quality failure.
func (g *Gate) CheckCoverage(expected, actual int) error {
	if g.minRatio <= 0 || expected <= 0 {
		return nil
	}
	ratio := float64(actual) / float64(expected)
	if ratio < g.minRatio {
		return fmt.Errorf("coverage %.3f below minimum %.3f (%d of %d records): %w",
			ratio, g.minRatio, actual, expected, catalog.ErrBelowThreshold)
	}
	return nil
}

// MinRatio reports the configured floor.
func (g *Gate) MinRatio() float64 {
	return g.minRatio
}
