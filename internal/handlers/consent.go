package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConsentHandler exposes the consent policy engine over HTTP
type ConsentHandler struct {
	consentService *services.ConsentService
}

// NewConsentHandler creates a new consent handler
func NewConsentHandler(consentService *services.ConsentService) *ConsentHandler {
	return &ConsentHandler{consentService: consentService}
}

type consentRequest struct {
	PatientID uuid.UUID            `json:"patient_id"`
	DoctorID  uuid.UUID            `json:"doctor_id"`
	Params    models.ConsentParams `json:"params"`
}

type revokeRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Reason    string    `json:"reason"`
}

type extendRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Days      int       `json:"days"`
}

// RequestAccess opens a consent request from a doctor
func (h *ConsentHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	consent, err := h.consentService.RequestAccess(r.Context(), req.DoctorID, req.PatientID, req.Params)
	if err != nil {
		writeConsentError(w, err, "Failed to request access")
		return
	}
	writeJSON(w, http.StatusCreated, consent)
}

// Grant approves or updates a consent
func (h *ConsentHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	consent, err := h.consentService.Grant(r.Context(), req.PatientID, req.DoctorID, req.Params)
	if err != nil {
		writeConsentError(w, err, "Failed to grant consent")
		return
	}
	writeJSON(w, http.StatusOK, consent)
}

// Revoke revokes a pending or granted consent
func (h *ConsentHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	consent, err := h.consentService.Revoke(r.Context(), req.PatientID, req.DoctorID, req.Reason)
	if err != nil {
		writeConsentError(w, err, "Failed to revoke consent")
		return
	}
	writeJSON(w, http.StatusOK, consent)
}

// Extend pushes a consent's validity forward
func (h *ConsentHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	consent, err := h.consentService.Extend(r.Context(), req.PatientID, req.DoctorID, req.Days)
	if err != nil {
		writeConsentError(w, err, "Failed to extend consent")
		return
	}
	writeJSON(w, http.StatusOK, consent)
}

// GetConsent retrieves one consent by ID
func (h *ConsentHandler) GetConsent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid consent ID", http.StatusBadRequest)
		return
	}

	consent, err := h.consentService.GetConsentByID(r.Context(), id)
	if err != nil {
		writeConsentError(w, err, "Failed to get consent")
		return
	}
	writeJSON(w, http.StatusOK, consent)
}

// ListForPatient lists a patient's consent relationships
func (h *ConsentHandler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}

	consents, err := h.consentService.ListForPatient(r.Context(), patientID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list consents")
		http.Error(w, "Failed to list consents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, consents)
}

// ListForDoctor lists a doctor's consent relationships
func (h *ConsentHandler) ListForDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	consents, err := h.consentService.ListForDoctor(r.Context(), doctorID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list consents")
		http.Error(w, "Failed to list consents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, consents)
}

func writeConsentError(w http.ResponseWriter, err error, msg string) {
	switch {
	case models.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrConsentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrDuplicateRequest):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
