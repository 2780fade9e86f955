package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/cache"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConsentService is the consent policy engine. It owns the lifecycle of the
// unique (patient, doctor) consent relationship and answers fail-closed
// access questions against it.
//
// Mutations on the same pair serialize through a per-pair mutex; the unique
// database index backs this up across processes. Reads take no lock.
type ConsentService struct {
	repo      *repository.ConsentRepository
	auditSvc  *AuditService
	ledger    *LedgerService
	cache     cache.Cache
	pairLocks sync.Map // pair key -> *sync.Mutex
}

// NewConsentService creates a new consent service. auditSvc and ledger may
// be nil in contexts that only evaluate policy.
func NewConsentService(repo *repository.ConsentRepository, auditSvc *AuditService, ledger *LedgerService, c cache.Cache) *ConsentService {
	return &ConsentService{repo: repo, auditSvc: auditSvc, ledger: ledger, cache: c}
}

func pairKey(patientID, doctorID uuid.UUID) string {
	return patientID.String() + ":" + doctorID.String()
}

// lockPair serializes mutations for one (patient, doctor) pair
func (s *ConsentService) lockPair(patientID, doctorID uuid.UUID) func() {
	v, _ := s.pairLocks.LoadOrStore(pairKey(patientID, doctorID), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// invalidateDecisions drops cached facade decisions for a pair after any
// mutation
func (s *ConsentService) invalidateDecisions(ctx context.Context, patientID, doctorID uuid.UUID) {
	if s.cache == nil {
		return
	}
	pattern := cache.DecisionKey(doctorID.String(), patientID.String(), "", "") + "*"
	if err := s.cache.Clear(ctx, pattern); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate decision cache")
	}
}

func validateParams(params models.ConsentParams, now time.Time) error {
	if params.ValidUntil.IsZero() {
		return models.NewValidationError("valid_until", "is required")
	}
	if !params.ValidUntil.After(now) {
		return models.NewValidationError("valid_until", "must be after the current time")
	}
	for _, c := range params.AllowedCategories {
		if !models.IsKnownCategory(models.RecordCategory(c)) {
			return models.NewValidationError("allowed_categories", "unknown category "+c)
		}
	}
	return nil
}

// applyParams copies caller-supplied consent parameters onto the record
func applyParams(consent *models.ConsentGrant, params models.ConsentParams) {
	if params.ConsentType != "" {
		consent.ConsentType = params.ConsentType
	}
	if params.Permissions != nil {
		consent.Permissions = *params.Permissions
	}
	if params.AllowedCategories != nil {
		consent.AllowedCategories = models.StringList(params.AllowedCategories)
	}
	if params.SpecificRecords != nil {
		consent.SpecificRecords = models.StringList(params.SpecificRecords)
	}
	if !params.ValidUntil.IsZero() {
		consent.ValidUntil = params.ValidUntil
	}
	if params.RequestMessage != "" {
		consent.RequestMessage = params.RequestMessage
	}
}

// RequestAccess opens (or reopens) a consent request from a doctor to a
// patient. Fails with models.ErrDuplicateRequest while an equivalent
// request is pending or a granted consent is still valid. A revoked or
// expired relationship is reused: the same row returns to pending.
func (s *ConsentService) RequestAccess(ctx context.Context, doctorID, patientID uuid.UUID, params models.ConsentParams) (*models.ConsentGrant, error) {
	now := time.Now().UTC()
	if err := validateParams(params, now); err != nil {
		return nil, err
	}

	unlock := s.lockPair(patientID, doctorID)
	defer unlock()

	consent, err := s.repo.GetByPair(ctx, patientID, doctorID)
	switch {
	case errors.Is(err, models.ErrConsentNotFound):
		consent = &models.ConsentGrant{
			PatientID:   patientID,
			DoctorID:    doctorID,
			Status:      models.ConsentStatusPending,
			ConsentType: models.ConsentTypeFullAccess,
			Permissions: models.Permissions{CanView: true},
			ValidFrom:   now,
			IsActive:    true,
		}
		applyParams(consent, params)
		if err := s.repo.Create(ctx, consent); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if consent.Status == models.ConsentStatusPending {
			return nil, models.ErrDuplicateRequest
		}
		if consent.IsValidAt(now) {
			return nil, models.ErrDuplicateRequest
		}
		// Reuse the unique row: back to pending, fresh validity window.
		consent.Status = models.ConsentStatusPending
		consent.ValidFrom = now
		consent.GrantedAt = nil
		consent.RevokedAt = nil
		consent.RevokeReason = ""
		consent.IsActive = true
		applyParams(consent, params)
		if err := s.repo.Update(ctx, consent); err != nil {
			return nil, err
		}
	}

	s.invalidateDecisions(ctx, patientID, doctorID)
	s.audit(ctx, &doctorID, models.AuditConsentRequested, consent,
		fmt.Sprintf("Doctor %s requested access to patient %s records", doctorID, patientID), "")
	s.ledgerConsent(ctx, consent, models.ConsentEventRequested)
	return consent, nil
}

// Grant transitions the pair's consent to granted, creating the record when
// the patient grants directly without a prior request. Re-granting an
// already granted consent updates it in place.
func (s *ConsentService) Grant(ctx context.Context, patientID, doctorID uuid.UUID, params models.ConsentParams) (*models.ConsentGrant, error) {
	now := time.Now().UTC()
	if err := validateParams(params, now); err != nil {
		return nil, err
	}

	unlock := s.lockPair(patientID, doctorID)
	defer unlock()

	consent, err := s.repo.GetByPair(ctx, patientID, doctorID)
	isNew := errors.Is(err, models.ErrConsentNotFound)
	if err != nil && !isNew {
		return nil, err
	}

	if isNew {
		consent = &models.ConsentGrant{
			PatientID:   patientID,
			DoctorID:    doctorID,
			ConsentType: models.ConsentTypeFullAccess,
			Permissions: models.Permissions{CanView: true},
			ValidFrom:   now,
		}
	} else if consent.Status == models.ConsentStatusRevoked || !consent.IsActive {
		// Granting over a revoked relationship opens a fresh window.
		consent.ValidFrom = now
		consent.RevokedAt = nil
		consent.RevokeReason = ""
	}

	consent.Status = models.ConsentStatusGranted
	consent.GrantedAt = &now
	consent.IsActive = true
	applyParams(consent, params)

	if isNew {
		err = s.repo.Create(ctx, consent)
	} else {
		err = s.repo.Update(ctx, consent)
	}
	if err != nil {
		return nil, err
	}

	s.invalidateDecisions(ctx, patientID, doctorID)
	s.audit(ctx, &patientID, models.AuditConsentGranted, consent,
		fmt.Sprintf("Patient %s granted %s access to doctor %s", patientID, consent.ConsentType, doctorID), "")
	s.ledgerConsent(ctx, consent, models.ConsentEventGranted)
	return consent, nil
}

// Revoke transitions a pending or granted consent to revoked. Returns
// models.ErrConsentNotFound when no active record exists; an already
// revoked record is never silently reactivated.
func (s *ConsentService) Revoke(ctx context.Context, patientID, doctorID uuid.UUID, reason string) (*models.ConsentGrant, error) {
	unlock := s.lockPair(patientID, doctorID)
	defer unlock()

	consent, err := s.repo.GetByPair(ctx, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	if consent.Status != models.ConsentStatusPending && consent.Status != models.ConsentStatusGranted {
		return nil, models.ErrConsentNotFound
	}

	now := time.Now().UTC()
	consent.Status = models.ConsentStatusRevoked
	consent.RevokedAt = &now
	consent.RevokeReason = reason
	if err := s.repo.Update(ctx, consent); err != nil {
		return nil, err
	}

	s.invalidateDecisions(ctx, patientID, doctorID)
	s.audit(ctx, &patientID, models.AuditConsentRevoked, consent,
		fmt.Sprintf("Patient %s revoked doctor %s access: %s", patientID, doctorID, reason), "")
	s.ledgerConsent(ctx, consent, models.ConsentEventRevoked)
	return consent, nil
}

// Extend pushes the consent's validity forward by the given number of days
// without touching its status.
func (s *ConsentService) Extend(ctx context.Context, patientID, doctorID uuid.UUID, days int) (*models.ConsentGrant, error) {
	if days <= 0 {
		return nil, models.NewValidationError("days", "must be positive")
	}

	unlock := s.lockPair(patientID, doctorID)
	defer unlock()

	consent, err := s.repo.GetByPair(ctx, patientID, doctorID)
	if err != nil {
		return nil, err
	}

	consent.ValidUntil = consent.ValidUntil.AddDate(0, 0, days)
	if err := s.repo.Update(ctx, consent); err != nil {
		return nil, err
	}

	s.invalidateDecisions(ctx, patientID, doctorID)
	s.audit(ctx, &patientID, models.AuditConsentExtended, consent,
		fmt.Sprintf("Consent for doctor %s extended by %d days", doctorID, days), "")
	return consent, nil
}

// HasAccess answers whether the doctor may perform the action against the
// patient's records right now. Fail-closed: no record, invalid record,
// missing permission flag and unrecognized actions all deny; so does any
// lookup error.
func (s *ConsentService) HasAccess(ctx context.Context, doctorID, patientID uuid.UUID, action models.AccessAction) bool {
	consent, err := s.repo.GetByPair(ctx, patientID, doctorID)
	if err != nil {
		if !errors.Is(err, models.ErrConsentNotFound) {
			log.Error().Err(err).Msg("Consent lookup failed, denying access")
		}
		return false
	}
	if !consent.IsValidAt(time.Now().UTC()) {
		return false
	}
	return consent.Permissions.Allows(action)
}

// ResolveCategoryFilter computes the category restriction a consent imposes
// on a read. For limited-access consents the result is the intersection of
// the allowed set with the requested category; requesting a category
// outside the allowed set yields an empty set, which is a deny. Full-access
// imposes no restriction. Specific-records consents restrict by record ID
// instead; the category filter does not apply.
func (s *ConsentService) ResolveCategoryFilter(consent *models.ConsentGrant, requestedCategory string) CategoryFilter {
	switch consent.ConsentType {
	case models.ConsentTypeLimitedAccess:
		if len(consent.AllowedCategories) == 0 {
			return CategoryFilter{Unrestricted: true}
		}
		if requestedCategory == "" {
			return CategoryFilter{Categories: consent.AllowedCategories}
		}
		if consent.AllowedCategories.Contains(requestedCategory) {
			return CategoryFilter{Categories: models.StringList{requestedCategory}}
		}
		return CategoryFilter{Categories: models.StringList{}}
	case models.ConsentTypeSpecificRecords:
		return CategoryFilter{RecordIDs: consent.SpecificRecords}
	default:
		return CategoryFilter{Unrestricted: true}
	}
}

// CategoryFilter is the scope restriction resolved from a consent. An empty
// non-nil Categories set means nothing is reachable.
type CategoryFilter struct {
	Unrestricted bool              `json:"unrestricted"`
	Categories   models.StringList `json:"categories,omitempty"`
	RecordIDs    models.StringList `json:"record_ids,omitempty"`
}

// Denies reports whether the filter leaves nothing accessible
func (f CategoryFilter) Denies() bool {
	return !f.Unrestricted && f.Categories != nil && len(f.Categories) == 0
}

// RecordAccess appends an entry to the consent's access history. History is
// purely descriptive; no validation ever rejects it.
func (s *ConsentService) RecordAccess(ctx context.Context, consent *models.ConsentGrant, action models.AccessAction, recordID string, actor models.ActorContext) {
	event := &models.AccessEvent{
		ConsentID: consent.ID,
		Action:    action,
		RecordID:  recordID,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	}
	if err := s.repo.CreateAccessEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("consent_id", consent.ID.String()).Msg("Failed to record access event")
	}
}

// GetConsent returns the consent record for a pair
func (s *ConsentService) GetConsent(ctx context.Context, patientID, doctorID uuid.UUID) (*models.ConsentGrant, error) {
	return s.repo.GetByPair(ctx, patientID, doctorID)
}

// GetConsentByID returns a consent record by its ID
func (s *ConsentService) GetConsentByID(ctx context.Context, id uuid.UUID) (*models.ConsentGrant, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForPatient returns every consent relationship owned by the patient
func (s *ConsentService) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.ConsentGrant, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// ListForDoctor returns every consent relationship held by the doctor
func (s *ConsentService) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.ConsentGrant, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

// GetAccessHistory returns the consent's access history, newest first
func (s *ConsentService) GetAccessHistory(ctx context.Context, consentID uuid.UUID, limit, offset int) ([]models.AccessEvent, error) {
	return s.repo.ListAccessEvents(ctx, consentID, limit, offset)
}

// audit writes a best-effort log entry for a consent mutation
func (s *ConsentService) audit(ctx context.Context, actorID *uuid.UUID, action models.AuditAction, consent *models.ConsentGrant, description, blockHash string) {
	if s.auditSvc == nil {
		return
	}
	s.auditSvc.LogActivity(ctx, actorID, action, description, LogOptions{
		TargetID:       consent.ID.String(),
		TargetModel:    "ConsentGrant",
		ResourceType:   "consent",
		Severity:       models.SeverityMedium,
		BlockchainHash: blockHash,
	})
}

// ledgerConsent records the consent mutation on the tamper-evident chain
func (s *ConsentService) ledgerConsent(ctx context.Context, consent *models.ConsentGrant, action string) {
	if s.ledger == nil {
		return
	}
	var validUntil *time.Time
	if action != models.ConsentEventRevoked {
		v := consent.ValidUntil
		validUntil = &v
	}
	if _, err := s.ledger.RecordConsent(ctx, consent.PatientID.String(), consent.DoctorID.String(), action, validUntil); err != nil {
		log.Error().Err(err).Str("consent_id", consent.ID.String()).Msg("Failed to record consent event on ledger")
	}
}
