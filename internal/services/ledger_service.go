package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/metrics"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/Gowri7989009215/ehrb/pkg/hashchain"
	"github.com/rs/zerolog/log"
)

// LedgerService owns the audit ledger. Appends run the proof-of-work search
// inline and are globally serialized: the mutex covers the whole
// mine-and-persist path so concurrent callers can never interleave nonce
// search state or claim the same previous hash. Reads run concurrently.
type LedgerService struct {
	repo       *repository.LedgerRepository
	difficulty int

	mu   sync.Mutex
	tail *models.LedgerBlock
}

// NewLedgerService creates a ledger service mining at the given difficulty
func NewLedgerService(repo *repository.LedgerRepository, difficulty int) *LedgerService {
	return &LedgerService{repo: repo, difficulty: difficulty}
}

// Init loads the chain tail, creating the genesis block on an empty chain
func (s *LedgerService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail, err := s.repo.Tail(ctx)
	if err != nil {
		return err
	}
	if tail != nil {
		s.tail = tail
		return nil
	}

	payload, err := models.EventPayload{Type: models.EventGenesis, Action: "GENESIS"}.Marshal()
	if err != nil {
		return err
	}
	genesis := hashchain.NewGenesis(payload, time.Now().UTC())
	block := &models.LedgerBlock{
		Index:        genesis.Index,
		TimestampMs:  genesis.TimestampMs,
		EventType:    models.EventGenesis,
		Payload:      payload,
		PreviousHash: genesis.PreviousHash,
		Nonce:        genesis.Nonce,
		Hash:         genesis.Hash,
	}
	if err := s.repo.Append(ctx, block); err != nil {
		return fmt.Errorf("failed to persist genesis block: %w", err)
	}
	s.tail = block
	log.Info().Str("hash", block.Hash).Msg("Ledger genesis block created")
	return nil
}

// AddBlock mines and appends a block carrying the payload. Blocks the
// caller for the duration of the nonce search.
func (s *LedgerService) AddBlock(ctx context.Context, payload models.EventPayload) (*models.LedgerBlock, error) {
	raw, err := payload.Marshal()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tail == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}

	prev := &hashchain.Block{
		Index: s.tail.Index,
		Hash:  s.tail.Hash,
	}

	start := time.Now()
	mined := hashchain.Mine(prev, raw, s.difficulty, time.Now().UTC())
	metrics.PowDuration.Observe(time.Since(start).Seconds())

	block := &models.LedgerBlock{
		Index:        mined.Index,
		TimestampMs:  mined.TimestampMs,
		EventType:    payload.Type,
		Payload:      raw,
		PreviousHash: mined.PreviousHash,
		Nonce:        mined.Nonce,
		Hash:         mined.Hash,
	}
	if err := s.repo.Append(ctx, block); err != nil {
		return nil, err
	}
	s.tail = block

	metrics.LedgerAppends.WithLabelValues(string(payload.Type)).Inc()
	log.Debug().
		Uint64("index", block.Index).
		Str("type", string(payload.Type)).
		Uint64("nonce", block.Nonce).
		Msg("Ledger block appended")
	return block, nil
}

// RecordConsent appends a CONSENT event block
func (s *LedgerService) RecordConsent(ctx context.Context, patientID, doctorID, action string, validUntil *time.Time) (*models.LedgerBlock, error) {
	return s.AddBlock(ctx, models.EventPayload{
		Type:       models.EventConsent,
		Action:     action,
		PatientID:  patientID,
		DoctorID:   doctorID,
		ValidUntil: validUntil,
	})
}

// RecordUpload appends an UPLOAD event block
func (s *LedgerService) RecordUpload(ctx context.Context, recordID, patientID, uploaderID, fileHash string) (*models.LedgerBlock, error) {
	return s.AddBlock(ctx, models.EventPayload{
		Type:       models.EventUpload,
		Action:     "UPLOADED",
		RecordID:   recordID,
		PatientID:  patientID,
		UploaderID: uploaderID,
		FileHash:   fileHash,
	})
}

// RecordAccess appends an ACCESS event block
func (s *LedgerService) RecordAccess(ctx context.Context, actorID, targetID, action, recordID string) (*models.LedgerBlock, error) {
	return s.AddBlock(ctx, models.EventPayload{
		Type:     models.EventAccess,
		Action:   action,
		ActorID:  actorID,
		TargetID: targetID,
		RecordID: recordID,
	})
}

// RecordVerification appends a VERIFICATION event block
func (s *LedgerService) RecordVerification(ctx context.Context, userID, verifierID, action string) (*models.LedgerBlock, error) {
	return s.AddBlock(ctx, models.EventPayload{
		Type:       models.EventVerification,
		Action:     action,
		UserID:     userID,
		VerifierID: verifierID,
	})
}

// IsChainValid recomputes every block hash and checks chain linkage. It is
// a read-only diagnostic; an invalid chain is reported, never repaired.
func (s *LedgerService) IsChainValid(ctx context.Context) (bool, error) {
	blocks, err := s.repo.All(ctx)
	if err != nil {
		return false, err
	}
	chain := make([]*hashchain.Block, len(blocks))
	for i := range blocks {
		chain[i] = &hashchain.Block{
			Index:        blocks[i].Index,
			TimestampMs:  blocks[i].TimestampMs,
			Payload:      blocks[i].Payload,
			PreviousHash: blocks[i].PreviousHash,
			Nonce:        blocks[i].Nonce,
			Hash:         blocks[i].Hash,
		}
	}
	if err := hashchain.VerifyChain(chain); err != nil {
		log.Warn().Err(err).Msg("Ledger integrity check failed")
		return false, nil
	}
	return true, nil
}

// GetAuditTrail returns every block whose payload identifies userID, newest
// first. A linear scan over the chain, like the chain itself: no index is
// kept by subject.
func (s *LedgerService) GetAuditTrail(ctx context.Context, userID string) ([]models.LedgerBlock, error) {
	blocks, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	var trail []models.LedgerBlock
	for _, b := range blocks {
		payload, err := b.DecodePayload()
		if err != nil {
			return nil, err
		}
		for _, id := range payload.Identities() {
			if id == userID {
				trail = append(trail, b)
				break
			}
		}
	}
	sort.Slice(trail, func(i, j int) bool {
		return trail[i].TimestampMs > trail[j].TimestampMs
	})
	return trail, nil
}

// GetBlocksByType returns blocks carrying the given event type
func (s *LedgerService) GetBlocksByType(ctx context.Context, eventType models.EventType) ([]models.LedgerBlock, error) {
	return s.repo.ByType(ctx, eventType)
}

// GetChain returns a page of the chain, newest first
func (s *LedgerService) GetChain(ctx context.Context, limit, offset int) ([]models.LedgerBlock, error) {
	return s.repo.Page(ctx, limit, offset)
}

// GetStats summarizes the chain
func (s *LedgerService) GetStats(ctx context.Context) (*models.LedgerStats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	valid, err := s.IsChainValid(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.LedgerStats{
		TotalBlocks:  total,
		IsValid:      valid,
		BlocksByType: byType,
	}

	s.mu.Lock()
	if s.tail != nil {
		stats.LatestHash = s.tail.Hash
		stats.LatestIndex = s.tail.Index
		at := s.tail.Timestamp()
		stats.LatestWriteAt = &at
	}
	s.mu.Unlock()

	return stats, nil
}
