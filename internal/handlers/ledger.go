package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// LedgerHandler exposes read access to the audit ledger
type LedgerHandler struct {
	ledgerService *services.LedgerService
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// GetChain returns a page of the chain, newest first
func (h *LedgerHandler) GetChain(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 50)
	blocks, err := h.ledgerService.GetChain(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read chain")
		http.Error(w, "Failed to read chain", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// GetStats returns chain statistics
func (h *LedgerHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledgerService.GetStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute ledger stats")
		http.Error(w, "Failed to compute ledger stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Verify runs the integrity check and reports the result
func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	valid, err := h.ledgerService.IsChainValid(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to verify chain")
		http.Error(w, "Failed to verify chain", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// GetAuditTrail returns the blocks mentioning a user
func (h *LedgerHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	trail, err := h.ledgerService.GetAuditTrail(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read audit trail")
		http.Error(w, "Failed to read audit trail", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

// GetBlocksByType returns blocks carrying one event type
func (h *LedgerHandler) GetBlocksByType(w http.ResponseWriter, r *http.Request) {
	eventType := models.EventType(chi.URLParam(r, "type"))
	blocks, err := h.ledgerService.GetBlocksByType(r.Context(), eventType)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read blocks by type")
		http.Error(w, "Failed to read blocks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func paging(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
