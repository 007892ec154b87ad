package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/comixlabs/catalog-etl/internal/store"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	handlerTimeout  = 3 * time.Second
)

// RunHandler exposes read-only audit ledger and quality endpoints.
type RunHandler struct {
	ledger  store.AuditLedger
	quality store.QualityStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the ledger, quality store, and logger.
func NewRunHandler(ledger store.AuditLedger, qs store.QualityStore, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		ledger:  ledger,
		quality: qs,
		timeout: handlerTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /api/runs?status=&limit=&offset=. It returns a JSON
// object {"runs": [...]} on success, 400 for invalid filters, 503 when the
// ledger is unavailable, or 500 if the ledger call fails. Runs still at
// status running are visible here, which is how stale rows from crashed
// invocations get found.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "audit ledger unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	var status *store.RunStatus
	if statusParam != "" {
		statusVal, parseErr := parseStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}
	runs, err := h.ledger.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.AuditRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /api/runs/{run_id}. It returns {"run": {...}} on
// success, 400 for malformed IDs, 404 when the ledger reports
// store.ErrNotFound, or 500 otherwise.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "audit ledger unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.ledger.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// Quality handles GET /api/quality: the read-only anomaly scan.
func (h *RunHandler) Quality(w http.ResponseWriter, r *http.Request) {
	if h.quality == nil {
		writeError(w, http.StatusServiceUnavailable, "quality store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.quality.ScanAnomalies(ctx)
	if err != nil {
		h.logger.Error("anomaly scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to scan anomalies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": report})
}

func parseRunID(r *http.Request) (int64, error) {
	runIDStr := chi.URLParam(r, "run_id")
	if runIDStr == "" {
		return 0, errors.New("run_id is required")
	}
	runID, err := strconv.ParseInt(runIDStr, 10, 64)
	if err != nil || runID <= 0 {
		return 0, errors.New("invalid run_id")
	}
	return runID, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "success":
		return store.RunSuccess, nil
	case "partial":
		return store.RunPartial, nil
	case "failed", "failure", "error":
		return store.RunFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}
