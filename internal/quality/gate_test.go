package quality

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

func TestCheckCoverage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		minRatio float64
		expected int
		actual   int
		wantErr  bool
	}{
		{name: "exactly at floor", minRatio: 0.8, expected: 100, actual: 80, wantErr: false},
		{name: "above floor", minRatio: 0.8, expected: 100, actual: 95, wantErr: false},
		{name: "below floor", minRatio: 0.8, expected: 100, actual: 79, wantErr: true},
		{name: "unknown total passes", minRatio: 0.8, expected: 0, actual: 0, wantErr: false},
		{name: "disabled gate passes", minRatio: 0, expected: 100, actual: 1, wantErr: false},
		{name: "all records lost", minRatio: 0.8, expected: 50, actual: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewGate(tt.minRatio).CheckCoverage(tt.expected, tt.actual)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, catalog.ErrBelowThreshold))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCheckCoverageErrorCarriesRatio(t *testing.T) {
	t.Parallel()

	err := NewGate(0.8).CheckCoverage(100, 50)
	require.Error(t, err)
	require.Contains(t, err.Error(), "0.500")
	require.Contains(t, err.Error(), "50 of 100")
}
