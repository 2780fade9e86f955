package services

import (
	"context"
	"testing"

	"github.com/Gowri7989009215/ehrb/internal/cache"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccessService(t *testing.T) (*AccessService, *ConsentService) {
	t.Helper()
	setupTestDB(t)
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	consents := NewConsentService(repository.NewConsentRepository(), nil, nil, c)
	return NewAccessService(consents, c), consents
}

func TestCheckAccessDeniesWithoutRelationship(t *testing.T) {
	access, _ := newAccessService(t)

	d := access.CheckAccess(context.Background(), uuid.New(), uuid.New(), models.ActionView, "")
	assert.False(t, d.Allowed)
	assert.Equal(t, "no consent relationship", d.Reason)
}

func TestCheckAccessAllowsGrantedConsent(t *testing.T) {
	access, consents := newAccessService(t)
	ctx := context.Background()
	patient, doctor := uuid.New(), uuid.New()

	_, err := consents.Grant(ctx, patient, doctor, models.ConsentParams{ValidUntil: in30Days()})
	require.NoError(t, err)

	d := access.CheckAccess(ctx, doctor, patient, models.ActionView, "")
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Filter)
	assert.True(t, d.Filter.Unrestricted)
}

func TestCheckAccessDeniesMissingPermission(t *testing.T) {
	access, consents := newAccessService(t)
	ctx := context.Background()
	patient, doctor := uuid.New(), uuid.New()

	_, err := consents.Grant(ctx, patient, doctor, models.ConsentParams{
		ValidUntil:  in30Days(),
		Permissions: &models.Permissions{CanView: true},
	})
	require.NoError(t, err)

	assert.True(t, access.CheckAccess(ctx, doctor, patient, models.ActionView, "").Allowed)
	d := access.CheckAccess(ctx, doctor, patient, models.ActionDownload, "")
	assert.False(t, d.Allowed)
	assert.Equal(t, "permission not granted: download", d.Reason)
}

func TestCheckAccessDeniesUncoveredCategory(t *testing.T) {
	access, consents := newAccessService(t)
	ctx := context.Background()
	patient, doctor := uuid.New(), uuid.New()

	_, err := consents.Grant(ctx, patient, doctor, models.ConsentParams{
		ValidUntil:        in30Days(),
		ConsentType:       models.ConsentTypeLimitedAccess,
		AllowedCategories: []string{string(models.CategoryCardiology)},
	})
	require.NoError(t, err)

	assert.True(t, access.CheckAccess(ctx, doctor, patient, models.ActionView, string(models.CategoryCardiology)).Allowed)
	d := access.CheckAccess(ctx, doctor, patient, models.ActionView, string(models.CategoryRadiology))
	assert.False(t, d.Allowed)
	assert.Equal(t, "category not covered by consent", d.Reason)
}

func TestRevokeInvalidatesCachedDecision(t *testing.T) {
	access, consents := newAccessService(t)
	ctx := context.Background()
	patient, doctor := uuid.New(), uuid.New()

	_, err := consents.Grant(ctx, patient, doctor, models.ConsentParams{ValidUntil: in30Days()})
	require.NoError(t, err)

	// Prime the decision cache.
	require.True(t, access.CheckAccess(ctx, doctor, patient, models.ActionView, "").Allowed)

	_, err = consents.Revoke(ctx, patient, doctor, "changed my mind")
	require.NoError(t, err)

	d := access.CheckAccess(ctx, doctor, patient, models.ActionView, "")
	assert.False(t, d.Allowed, "revocation must take effect immediately, not after the cache TTL")
	assert.Equal(t, "consent not valid: revoked", d.Reason)
}

func TestCheckAccessServesCachedDecision(t *testing.T) {
	access, consents := newAccessService(t)
	ctx := context.Background()
	patient, doctor := uuid.New(), uuid.New()

	_, err := consents.Grant(ctx, patient, doctor, models.ConsentParams{ValidUntil: in30Days()})
	require.NoError(t, err)

	first := access.CheckAccess(ctx, doctor, patient, models.ActionView, "")
	require.True(t, first.Allowed)

	key := cache.DecisionKey(doctor.String(), patient.String(), string(models.ActionView), "")
	_, err = access.cache.Get(ctx, key)
	require.NoError(t, err, "decision should be cached after the first check")

	second := access.CheckAccess(ctx, doctor, patient, models.ActionView, "")
	assert.Equal(t, first.Allowed, second.Allowed)
	assert.Equal(t, first.Reason, second.Reason)
}
