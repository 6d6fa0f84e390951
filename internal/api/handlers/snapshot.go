package handlers

import (
	"net/http"

	"github.com/wonny/debtview/internal/snapshot"
	"github.com/wonny/debtview/pkg/logger"
)

// SnapshotHandler serves the latest snapshot and producer status
// ⭐ SSOT: 스냅샷 조회 API는 이 구조체에서만
type SnapshotHandler struct {
	reader    snapshot.Reader
	watchlist []string
	logger    *logger.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(reader snapshot.Reader, watchlist []string, log *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		reader:    reader,
		watchlist: watchlist,
		logger:    log,
	}
}

// GetSnapshot returns the full latest snapshot
// GET /api/snapshot
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reader.Latest()
	if err != nil {
		respondNotReady(w)
		return
	}
	respondJSON(w, http.StatusOK, snapshot.NewView(snap, snap.Quotes))
}

// GetStatus returns the producer status
// GET /api/snapshot/status
func (h *SnapshotHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, status := h.reader.Current()

	resp := map[string]interface{}{
		"status": status,
	}
	if snap != nil {
		resp["snapshot_id"] = snap.ID.String()
		resp["captured_at"] = snap.CapturedAt
		resp["rows"] = len(snap.Quotes)
		resp["stats"] = snap.Stats
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetQuotes returns filtered quotes from the latest snapshot
// GET /api/quotes?series=GS,TB&symbol=718GS2033&nonzero=true&watchlist=true
func (h *SnapshotHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.reader.Latest()
	if err != nil {
		respondNotReady(w)
		return
	}

	respondJSON(w, http.StatusOK, snapshot.NewView(snap, filter.Apply(snap.Quotes)))
}

func (h *SnapshotHandler) parseFilter(r *http.Request) (snapshot.Filter, error) {
	nonzero, err := queryBool(r, "nonzero")
	if err != nil {
		return snapshot.Filter{}, errBadParam("nonzero")
	}
	watch, err := queryBool(r, "watchlist")
	if err != nil {
		return snapshot.Filter{}, errBadParam("watchlist")
	}

	symbols := queryList(r, "symbol")
	if watch {
		symbols = append(symbols, h.watchlist...)
	}

	return snapshot.Filter{
		Series:  set(queryList(r, "series"), true),
		Symbols: set(symbols, false),
		NonZero: nonzero,
	}, nil
}

type errBadParam string

func (e errBadParam) Error() string {
	return "invalid '" + string(e) + "' parameter (expected true or false)"
}
