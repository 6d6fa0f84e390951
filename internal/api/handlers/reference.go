package handlers

import (
	"net/http"

	"github.com/wonny/debtview/internal/reference"
	"github.com/wonny/debtview/pkg/logger"
)

// TableSource exposes the current reference table. *reference.Provider satisfies it.
type TableSource interface {
	Table() *reference.Table
}

// ReferenceHandler serves the reference table used for enrichment
type ReferenceHandler struct {
	tables TableSource
	logger *logger.Logger
}

// NewReferenceHandler creates a new reference handler
func NewReferenceHandler(tables TableSource, log *logger.Logger) *ReferenceHandler {
	return &ReferenceHandler{tables: tables, logger: log}
}

// GetReferences returns every instrument and the rows that were excluded
// GET /api/references
func (h *ReferenceHandler) GetReferences(w http.ResponseWriter, r *http.Request) {
	table := h.tables.Table()
	if table == nil {
		respondNotReady(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"settlement_date": table.SettlementDate().Format("2006-01-02"),
		"built_at":        table.BuiltAt(),
		"count":           table.Len(),
		"instruments":     table.All(),
		"rejected":        table.Rejected(),
	})
}

// GetReference returns one instrument
// GET /api/references/{symbol}
func (h *ReferenceHandler) GetReference(w http.ResponseWriter, r *http.Request) {
	table := h.tables.Table()
	if table == nil {
		respondNotReady(w)
		return
	}

	symbol := muxVar(r, "symbol")
	inst, ok := table.Lookup(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown symbol: "+symbol)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}
