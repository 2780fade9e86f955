package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConsentRepository handles consent grant database operations
type ConsentRepository struct{}

// NewConsentRepository creates a new consent repository
func NewConsentRepository() *ConsentRepository {
	return &ConsentRepository{}
}

// Create creates a new consent grant. The unique index on
// (patient_id, doctor_id) rejects a second row for the same pair.
func (r *ConsentRepository) Create(ctx context.Context, consent *models.ConsentGrant) error {
	if err := database.DB.WithContext(ctx).Create(consent).Error; err != nil {
		return fmt.Errorf("failed to create consent: %w", err)
	}
	return nil
}

// Update persists all fields of an existing consent grant
func (r *ConsentRepository) Update(ctx context.Context, consent *models.ConsentGrant) error {
	if err := database.DB.WithContext(ctx).Save(consent).Error; err != nil {
		return fmt.Errorf("failed to update consent: %w", err)
	}
	return nil
}

// GetByPair retrieves the unique consent grant for a (patient, doctor) pair.
// Returns models.ErrConsentNotFound when no row exists.
func (r *ConsentRepository) GetByPair(ctx context.Context, patientID, doctorID uuid.UUID) (*models.ConsentGrant, error) {
	var consent models.ConsentGrant
	err := database.DB.WithContext(ctx).
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID).
		First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}
	return &consent, nil
}

// GetByID retrieves a consent grant by its ID
func (r *ConsentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ConsentGrant, error) {
	var consent models.ConsentGrant
	err := database.DB.WithContext(ctx).Where("id = ?", id).First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}
	return &consent, nil
}

// ListByPatient retrieves all consent grants where the patient is the owner
func (r *ConsentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.ConsentGrant, error) {
	var consents []models.ConsentGrant
	if err := database.DB.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("updated_at DESC").
		Find(&consents).Error; err != nil {
		return nil, fmt.Errorf("failed to list consents by patient: %w", err)
	}
	return consents, nil
}

// ListByDoctor retrieves all consent grants held by a doctor
func (r *ConsentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.ConsentGrant, error) {
	var consents []models.ConsentGrant
	if err := database.DB.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("updated_at DESC").
		Find(&consents).Error; err != nil {
		return nil, fmt.Errorf("failed to list consents by doctor: %w", err)
	}
	return consents, nil
}

// CreateAccessEvent appends one entry to a consent's access history
func (r *ConsentRepository) CreateAccessEvent(ctx context.Context, event *models.AccessEvent) error {
	if err := database.DB.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create access event: %w", err)
	}
	return nil
}

// ListAccessEvents retrieves the access history of a consent, newest first
func (r *ConsentRepository) ListAccessEvents(ctx context.Context, consentID uuid.UUID, limit, offset int) ([]models.AccessEvent, error) {
	var events []models.AccessEvent
	query := database.DB.WithContext(ctx).
		Where("consent_id = ?", consentID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list access events: %w", err)
	}
	return events, nil
}
