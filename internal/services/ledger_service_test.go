package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/Gowri7989009215/ehrb/pkg/hashchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerService(t *testing.T, difficulty int) *LedgerService {
	t.Helper()
	setupTestDB(t)
	svc := NewLedgerService(repository.NewLedgerRepository(), difficulty)
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func TestInitCreatesGenesisOnce(t *testing.T) {
	svc := newLedgerService(t, 1)
	ctx := context.Background()

	chain, err := svc.GetChain(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, uint64(0), chain[0].Index)
	assert.Equal(t, hashchain.GenesisPreviousHash, chain[0].PreviousHash)
	assert.Equal(t, models.EventGenesis, chain[0].EventType)

	// Re-init against the same store must not mint a second genesis.
	again := NewLedgerService(repository.NewLedgerRepository(), 1)
	require.NoError(t, again.Init(ctx))
	stats, err := again.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalBlocks)
}

func TestAddBlockMinesAndLinks(t *testing.T) {
	svc := newLedgerService(t, 2)
	ctx := context.Background()

	block, err := svc.RecordConsent(ctx, "patient-1", "doctor-1", models.ConsentEventGranted, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Index)
	assert.True(t, hashchain.MeetsDifficulty(block.Hash, 2))

	valid, err := svc.IsChainValid(ctx)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestConcurrentAppendsStayLinked(t *testing.T) {
	svc := newLedgerService(t, 1)
	ctx := context.Background()

	const appends = 10
	var wg sync.WaitGroup
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordAccess(ctx, "doctor-1", "patient-1", "VIEWED", "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	blocks, err := svc.GetChain(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, blocks, appends+1)

	// GetChain is newest first; every block must link to its predecessor.
	for i := 0; i < len(blocks)-1; i++ {
		assert.Equal(t, blocks[i+1].Hash, blocks[i].PreviousHash,
			"block %d must link to block %d", blocks[i].Index, blocks[i+1].Index)
	}

	valid, err := svc.IsChainValid(ctx)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTamperingInvalidatesChain(t *testing.T) {
	svc := newLedgerService(t, 1)
	ctx := context.Background()

	_, err := svc.RecordConsent(ctx, "patient-1", "doctor-1", models.ConsentEventGranted, nil)
	require.NoError(t, err)
	_, err = svc.RecordConsent(ctx, "patient-1", "doctor-1", models.ConsentEventRevoked, nil)
	require.NoError(t, err)

	valid, err := svc.IsChainValid(ctx)
	require.NoError(t, err)
	require.True(t, valid)

	// Rewrite a stored payload behind the service's back, without
	// recomputing the hash.
	err = database.DB.Model(&models.LedgerBlock{}).
		Where("idx = ?", 1).
		Update("payload", []byte(`{"type":"CONSENT","action":"GRANTED","patient_id":"intruder","doctor_id":"doctor-1"}`)).Error
	require.NoError(t, err)

	valid, err = svc.IsChainValid(ctx)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTypedRecordersAndTrail(t *testing.T) {
	svc := newLedgerService(t, 1)
	ctx := context.Background()
	until := time.Now().UTC().AddDate(0, 0, 30)

	_, err := svc.RecordConsent(ctx, "patient-1", "doctor-1", models.ConsentEventGranted, &until)
	require.NoError(t, err)
	_, err = svc.RecordUpload(ctx, "rec-1", "patient-1", "doctor-2", "filehash")
	require.NoError(t, err)
	_, err = svc.RecordAccess(ctx, "doctor-1", "patient-2", "VIEWED", "rec-2")
	require.NoError(t, err)
	_, err = svc.RecordVerification(ctx, "doctor-2", "admin-1", "APPROVED")
	require.NoError(t, err)

	// patient-1 appears in the consent and upload events only.
	trail, err := svc.GetAuditTrail(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	// Newest first.
	assert.True(t, trail[0].TimestampMs >= trail[1].TimestampMs)

	// doctor-2 appears as uploader and as verification subject.
	trail, err = svc.GetAuditTrail(ctx, "doctor-2")
	require.NoError(t, err)
	assert.Len(t, trail, 2)

	trail, err = svc.GetAuditTrail(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestGetBlocksByTypeAndStats(t *testing.T) {
	svc := newLedgerService(t, 1)
	ctx := context.Background()

	_, err := svc.RecordConsent(ctx, "p", "d", models.ConsentEventRequested, nil)
	require.NoError(t, err)
	_, err = svc.RecordConsent(ctx, "p", "d", models.ConsentEventGranted, nil)
	require.NoError(t, err)
	_, err = svc.RecordAccess(ctx, "d", "p", "VIEWED", "")
	require.NoError(t, err)

	consents, err := svc.GetBlocksByType(ctx, models.EventConsent)
	require.NoError(t, err)
	assert.Len(t, consents, 2)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalBlocks)
	assert.True(t, stats.IsValid)
	assert.Equal(t, int64(2), stats.BlocksByType[models.EventConsent])
	assert.Equal(t, int64(1), stats.BlocksByType[models.EventAccess])
	assert.Equal(t, int64(1), stats.BlocksByType[models.EventGenesis])
	assert.Equal(t, uint64(3), stats.LatestIndex)
}
