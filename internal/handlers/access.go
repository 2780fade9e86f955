package handlers

import (
	"net/http"

	"github.com/Gowri7989009215/ehrb/internal/middleware"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/services"
	"github.com/google/uuid"
)

// AccessHandler exposes the access-decision facade
type AccessHandler struct {
	accessService *services.AccessService
	auditService  *services.AuditService
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(accessService *services.AccessService, auditService *services.AuditService) *AccessHandler {
	return &AccessHandler{accessService: accessService, auditService: auditService}
}

// Check answers an access question. The decision itself is always a 200;
// deny is a result, not an error. Denials are reported to the audit log
// store here (the facade does not log on its own).
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// The acting doctor comes from the actor_id parameter, falling back to
	// the authenticated actor header.
	actorID, err := uuid.Parse(q.Get("actor_id"))
	if err != nil {
		var ok bool
		if actorID, ok = middleware.RequireActor(r.Context()); !ok {
			http.Error(w, "Invalid actor_id", http.StatusBadRequest)
			return
		}
	}
	subjectID, err := uuid.Parse(q.Get("subject_id"))
	if err != nil {
		http.Error(w, "Invalid subject_id", http.StatusBadRequest)
		return
	}
	action := models.AccessAction(q.Get("action"))
	category := q.Get("category")

	decision := h.accessService.CheckAccess(r.Context(), actorID, subjectID, action, category)

	actor, _ := middleware.GetActor(r.Context())
	opts := services.LogOptions{
		TargetID:     subjectID.String(),
		TargetModel:  "Patient",
		ResourceType: "record",
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Metadata: map[string]interface{}{
			"action":   string(action),
			"category": category,
			"reason":   decision.Reason,
		},
	}
	if decision.Allowed {
		opts.Severity = models.SeverityLow
		h.auditService.LogActivity(r.Context(), &actorID, models.AuditAccessChecked,
			"Access check allowed", opts)
	} else {
		opts.Severity = models.SeverityHigh
		opts.Status = models.AuditStatusWarning
		h.auditService.LogActivity(r.Context(), &actorID, models.AuditUnauthorizedAccess,
			"Access check denied", opts)
	}

	writeJSON(w, http.StatusOK, decision)
}
