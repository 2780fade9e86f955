package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/metrics"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// defaultAuditWindow bounds alert and stats queries when the caller gives
// no explicit range.
const defaultAuditWindow = 30 * 24 * time.Hour

// GroupBy selects the time bucket for activity stats
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

// LogOptions carries the optional fields of an audit log entry
type LogOptions struct {
	TargetID       string
	TargetModel    string
	ResourceType   string
	Severity       models.AuditSeverity
	Status         models.AuditStatus
	Metadata       map[string]interface{}
	BlockchainHash string
	IPAddress      string
	UserAgent      string
}

// ActivityBucket is one time bucket of the activity stats
type ActivityBucket struct {
	Bucket  string                       `json:"bucket"`
	Total   int64                        `json:"total"`
	Actions map[models.AuditAction]int64 `json:"actions"`
}

// AuditService is the best-effort structured log store, distinct from the
// ledger. Writes never propagate failure to the caller.
type AuditService struct {
	repo *repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo *repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// LogActivity builds and persists one audit entry. It never returns an
// error: a persistence failure is logged and counted, and nil is returned,
// leaving the primary operation that triggered the log unaffected.
func (s *AuditService) LogActivity(ctx context.Context, actorID *uuid.UUID, action models.AuditAction, description string, opts LogOptions) *models.AuditLog {
	entry := &models.AuditLog{
		ActorID:        actorID,
		Action:         action,
		TargetID:       opts.TargetID,
		TargetModel:    opts.TargetModel,
		ResourceType:   opts.ResourceType,
		Description:    description,
		Severity:       opts.Severity,
		Status:         opts.Status,
		BlockchainHash: opts.BlockchainHash,
		IPAddress:      opts.IPAddress,
		UserAgent:      opts.UserAgent,
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityLow
	}
	if entry.Status == "" {
		entry.Status = models.AuditStatusSuccess
	}
	if len(opts.Metadata) > 0 {
		raw, err := json.Marshal(opts.Metadata)
		if err != nil {
			log.Warn().Err(err).Str("action", string(action)).Msg("Dropping unserializable audit metadata")
		} else {
			entry.Metadata = raw
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		log.Error().Err(err).Str("action", string(action)).Msg("Audit log write failed")
		return nil
	}
	return entry
}

// GetAuditTrail returns the entries where the subject appears as actor or
// target, newest first
func (s *AuditService) GetAuditTrail(ctx context.Context, subjectID uuid.UUID, filters models.AuditFilters) ([]models.AuditLog, error) {
	return s.repo.GetBySubject(ctx, subjectID, filters)
}

// GetSystemAudit returns entries across all subjects
func (s *AuditService) GetSystemAudit(ctx context.Context, filters models.AuditFilters) ([]models.AuditLog, error) {
	return s.repo.GetSystem(ctx, filters)
}

// GetSecurityAlerts returns security-relevant entries: a security action or
// a high/critical severity, within the filter window (default 30 days).
func (s *AuditService) GetSecurityAlerts(ctx context.Context, filters models.AuditFilters) ([]models.AuditLog, error) {
	from, to := auditWindow(filters)
	return s.repo.GetSecurityAlerts(ctx, from, to, filters)
}

// GetActivityStats counts entries grouped by time bucket and action within
// the filter window (default 30 days).
func (s *AuditService) GetActivityStats(ctx context.Context, filters models.AuditFilters, groupBy GroupBy) ([]ActivityBucket, error) {
	from, to := auditWindow(filters)
	rows, err := s.repo.GetActivityRows(ctx, from, to, filters)
	if err != nil {
		return nil, err
	}

	byBucket := make(map[string]*ActivityBucket)
	for _, row := range rows {
		key := bucketKey(row.CreatedAt, groupBy)
		b, ok := byBucket[key]
		if !ok {
			b = &ActivityBucket{Bucket: key, Actions: make(map[models.AuditAction]int64)}
			byBucket[key] = b
		}
		b.Total++
		b.Actions[row.Action]++
	}

	buckets := make([]ActivityBucket, 0, len(byBucket))
	for _, b := range byBucket {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Bucket < buckets[j].Bucket })
	return buckets, nil
}

func auditWindow(filters models.AuditFilters) (time.Time, time.Time) {
	to := filters.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from := filters.From
	if from.IsZero() {
		from = to.Add(-defaultAuditWindow)
	}
	return from, to
}

func bucketKey(t time.Time, groupBy GroupBy) string {
	t = t.UTC()
	switch groupBy {
	case GroupByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case GroupByMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
