package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository handles audit log database operations
type AuditRepository struct{}

// NewAuditRepository creates a new audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if err := database.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func applyFilters(query *gorm.DB, filters models.AuditFilters) *gorm.DB {
	if !filters.From.IsZero() {
		query = query.Where("created_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		query = query.Where("created_at < ?", filters.To)
	}
	if len(filters.Actions) > 0 {
		query = query.Where("action IN ?", filters.Actions)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	return query
}

func applyPaging(query *gorm.DB, filters models.AuditFilters) *gorm.DB {
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

// GetBySubject retrieves entries where the subject is either the actor or
// the target, newest first
func (r *AuditRepository) GetBySubject(ctx context.Context, subjectID uuid.UUID, filters models.AuditFilters) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	query := database.DB.WithContext(ctx).
		Where("actor_id = ? OR target_id = ?", subjectID, subjectID.String())
	query = applyFilters(query, filters)
	query = applyPaging(query.Order("created_at DESC"), filters)
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	return entries, nil
}

// GetSystem retrieves entries across all subjects, newest first
func (r *AuditRepository) GetSystem(ctx context.Context, filters models.AuditFilters) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	query := applyFilters(database.DB.WithContext(ctx).Model(&models.AuditLog{}), filters)
	query = applyPaging(query.Order("created_at DESC"), filters)
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get system audit: %w", err)
	}
	return entries, nil
}

// GetSecurityAlerts retrieves entries matching a security-relevant action
// or a high/critical severity within the window
func (r *AuditRepository) GetSecurityAlerts(ctx context.Context, from, to time.Time, filters models.AuditFilters) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	query := database.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Where("action IN ? OR severity IN ?",
			models.SecurityActions,
			[]models.AuditSeverity{models.SeverityHigh, models.SeverityCritical})
	query = applyPaging(query.Order("created_at DESC"), filters)
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get security alerts: %w", err)
	}
	return entries, nil
}

// ActivityRow is the projection used for activity aggregation
type ActivityRow struct {
	Action    models.AuditAction
	CreatedAt time.Time
}

// GetActivityRows retrieves the (action, timestamp) projection of entries in
// a window; bucketing happens in the service so the SQL stays portable.
func (r *AuditRepository) GetActivityRows(ctx context.Context, from, to time.Time, filters models.AuditFilters) ([]ActivityRow, error) {
	var rows []ActivityRow
	query := database.DB.WithContext(ctx).Model(&models.AuditLog{}).
		Select("action", "created_at").
		Where("created_at >= ? AND created_at < ?", from, to)
	if len(filters.Actions) > 0 {
		query = query.Where("action IN ?", filters.Actions)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get activity rows: %w", err)
	}
	return rows, nil
}
