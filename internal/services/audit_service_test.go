package services

import (
	"context"
	"testing"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditService(t *testing.T) *AuditService {
	t.Helper()
	setupTestDB(t)
	return NewAuditService(repository.NewAuditRepository())
}

func TestLogActivityPersistsEntry(t *testing.T) {
	svc := newAuditService(t)
	ctx := context.Background()
	actor := uuid.New()

	entry := svc.LogActivity(ctx, &actor, models.AuditConsentGranted, "consent granted", LogOptions{
		TargetID:     "consent-1",
		TargetModel:  "ConsentGrant",
		ResourceType: "consent",
		Severity:     models.SeverityMedium,
		Metadata:     map[string]interface{}{"consent_type": "full-access"},
	})
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditStatusSuccess, entry.Status)
	assert.NotEqual(t, uuid.Nil, entry.ID)

	trail, err := svc.GetAuditTrail(ctx, actor, models.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Contains(t, string(trail[0].Metadata), "full-access")
}

func TestLogActivityNeverFailsTheCaller(t *testing.T) {
	svc := newAuditService(t)
	ctx := context.Background()

	// Break persistence entirely.
	require.NoError(t, database.DB.Migrator().DropTable(&models.AuditLog{}))

	actor := uuid.New()
	entry := svc.LogActivity(ctx, &actor, models.AuditConsentGranted, "should be swallowed", LogOptions{})
	assert.Nil(t, entry, "a failed write returns nil, nothing more")
}

func TestGrantSucceedsWhenAuditWriteFails(t *testing.T) {
	db := setupTestDB(t)
	auditSvc := NewAuditService(repository.NewAuditRepository())
	consentSvc := NewConsentService(repository.NewConsentRepository(), auditSvc, nil, nil)

	// Audit writes fail from here on; the consent operation must not care.
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	consent, err := consentSvc.Grant(context.Background(), uuid.New(), uuid.New(), models.ConsentParams{
		ValidUntil: in30Days(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentStatusGranted, consent.Status)
}

func TestGetAuditTrailMatchesActorOrTarget(t *testing.T) {
	svc := newAuditService(t)
	ctx := context.Background()
	subject, other := uuid.New(), uuid.New()

	svc.LogActivity(ctx, &subject, models.AuditRecordViewed, "subject acted", LogOptions{TargetID: other.String()})
	svc.LogActivity(ctx, &other, models.AuditRecordViewed, "subject was target", LogOptions{TargetID: subject.String()})
	svc.LogActivity(ctx, &other, models.AuditRecordViewed, "unrelated", LogOptions{TargetID: "someone-else"})

	trail, err := svc.GetAuditTrail(ctx, subject, models.AuditFilters{})
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestGetSystemAuditFilters(t *testing.T) {
	svc := newAuditService(t)
	ctx := context.Background()
	actor := uuid.New()

	svc.LogActivity(ctx, &actor, models.AuditConsentGranted, "a", LogOptions{Severity: models.SeverityMedium})
	svc.LogActivity(ctx, &actor, models.AuditConsentRevoked, "b", LogOptions{Severity: models.SeverityHigh})
	svc.LogActivity(ctx, nil, models.AuditFailedLogin, "c", LogOptions{Severity: models.SeverityHigh, Status: models.AuditStatusFailure})

	entries, err := svc.GetSystemAudit(ctx, models.AuditFilters{Severity: models.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = svc.GetSystemAudit(ctx, models.AuditFilters{
		Actions: []models.AuditAction{models.AuditConsentGranted},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = svc.GetSystemAudit(ctx, models.AuditFilters{Status: models.AuditStatusFailure})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetSecurityAlerts(t *testing.T) {
	svc := newAuditService(t)
	ctx := context.Background()
	actor := uuid.New()

	// Security action with low severity: matched by action.
	svc.LogActivity(ctx, &actor, models.AuditFailedLogin, "bad password", LogOptions{Severity: models.SeverityLow})
	// Benign action with critical severity: matched by severity.
	svc.LogActivity(ctx, &actor, models.AuditConsentRevoked, "bulk revoke", LogOptions{Severity: models.SeverityCritical})
	// Benign and low: not an alert.
	svc.LogActivity(ctx, &actor, models.AuditRecordViewed, "routine", LogOptions{Severity: models.SeverityLow})

	alerts, err := svc.GetSecurityAlerts(ctx, models.AuditFilters{})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestGetActivityStatsBuckets(t *testing.T) {
	svc := newAuditService(t)
	ctx := context.Background()
	actor := uuid.New()

	svc.LogActivity(ctx, &actor, models.AuditRecordViewed, "one", LogOptions{})
	svc.LogActivity(ctx, &actor, models.AuditRecordViewed, "two", LogOptions{})
	svc.LogActivity(ctx, &actor, models.AuditConsentGranted, "three", LogOptions{})

	buckets, err := svc.GetActivityStats(ctx, models.AuditFilters{}, GroupByDay)
	require.NoError(t, err)
	require.Len(t, buckets, 1, "all writes land in today's bucket")
	assert.Equal(t, int64(3), buckets[0].Total)
	assert.Equal(t, int64(2), buckets[0].Actions[models.AuditRecordViewed])
	assert.Equal(t, int64(1), buckets[0].Actions[models.AuditConsentGranted])
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), buckets[0].Bucket)
}

func TestBucketKey(t *testing.T) {
	ts := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC) // a Monday
	assert.Equal(t, "2026-03-09", bucketKey(ts, GroupByDay))
	assert.Equal(t, "2026-03", bucketKey(ts, GroupByMonth))
	assert.Equal(t, "2026-W11", bucketKey(ts, GroupByWeek))
}
