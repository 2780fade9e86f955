package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuditHandler exposes the audit log store queries
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GetAuditTrail returns the entries mentioning a subject
func (h *AuditHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uuid.Parse(chi.URLParam(r, "subjectId"))
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return
	}

	entries, err := h.auditService.GetAuditTrail(r.Context(), subjectID, parseFilters(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read audit trail")
		http.Error(w, "Failed to read audit trail", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetSystemAudit returns entries across all subjects
func (h *AuditHandler) GetSystemAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditService.GetSystemAudit(r.Context(), parseFilters(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read system audit")
		http.Error(w, "Failed to read system audit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetSecurityAlerts returns security-relevant entries
func (h *AuditHandler) GetSecurityAlerts(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditService.GetSecurityAlerts(r.Context(), parseFilters(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read security alerts")
		http.Error(w, "Failed to read security alerts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetActivityStats returns counts grouped by time bucket and action
func (h *AuditHandler) GetActivityStats(w http.ResponseWriter, r *http.Request) {
	groupBy := services.GroupBy(r.URL.Query().Get("group_by"))
	switch groupBy {
	case services.GroupByDay, services.GroupByWeek, services.GroupByMonth:
	case "":
		groupBy = services.GroupByDay
	default:
		http.Error(w, "group_by must be day, week or month", http.StatusBadRequest)
		return
	}

	stats, err := h.auditService.GetActivityStats(r.Context(), parseFilters(r), groupBy)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute activity stats")
		http.Error(w, "Failed to compute activity stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseFilters(r *http.Request) models.AuditFilters {
	q := r.URL.Query()
	filters := models.AuditFilters{
		Severity: models.AuditSeverity(q.Get("severity")),
		Status:   models.AuditStatus(q.Get("status")),
	}
	if v, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = v
	}
	if v, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = v
	}
	if actions := q.Get("actions"); actions != "" {
		for _, a := range strings.Split(actions, ",") {
			filters.Actions = append(filters.Actions, models.AuditAction(strings.TrimSpace(a)))
		}
	}
	filters.Limit, filters.Offset = paging(r, 100)
	return filters
}
