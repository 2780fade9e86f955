package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"gorm.io/gorm"
)

// LedgerRepository handles ledger block database operations. Blocks are
// append-only; the repository exposes no update or delete.
type LedgerRepository struct{}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Append persists a newly mined block
func (r *LedgerRepository) Append(ctx context.Context, block *models.LedgerBlock) error {
	if err := database.DB.WithContext(ctx).Create(block).Error; err != nil {
		return fmt.Errorf("failed to append ledger block: %w", err)
	}
	return nil
}

// Tail retrieves the block with the highest index, or nil on an empty chain
func (r *LedgerRepository) Tail(ctx context.Context) (*models.LedgerBlock, error) {
	var block models.LedgerBlock
	err := database.DB.WithContext(ctx).Order("idx DESC").First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain tail: %w", err)
	}
	return &block, nil
}

// All retrieves the full chain ordered by index ascending
func (r *LedgerRepository) All(ctx context.Context) ([]models.LedgerBlock, error) {
	var blocks []models.LedgerBlock
	if err := database.DB.WithContext(ctx).Order("idx ASC").Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return blocks, nil
}

// Page retrieves a slice of the chain ordered by index descending
func (r *LedgerRepository) Page(ctx context.Context, limit, offset int) ([]models.LedgerBlock, error) {
	var blocks []models.LedgerBlock
	query := database.DB.WithContext(ctx).Order("idx DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to page chain: %w", err)
	}
	return blocks, nil
}

// ByType retrieves all blocks carrying the given event type, newest first
func (r *LedgerRepository) ByType(ctx context.Context, eventType models.EventType) ([]models.LedgerBlock, error) {
	var blocks []models.LedgerBlock
	if err := database.DB.WithContext(ctx).
		Where("event_type = ?", eventType).
		Order("timestamp_ms DESC").
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to get blocks by type: %w", err)
	}
	return blocks, nil
}

// Count returns the chain length
func (r *LedgerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := database.DB.WithContext(ctx).Model(&models.LedgerBlock{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return count, nil
}

// CountByType returns block counts grouped by event type
func (r *LedgerRepository) CountByType(ctx context.Context) (map[models.EventType]int64, error) {
	type row struct {
		EventType models.EventType
		Total     int64
	}
	var rows []row
	if err := database.DB.WithContext(ctx).Model(&models.LedgerBlock{}).
		Select("event_type", "count(*) as total").
		Group("event_type").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count blocks by type: %w", err)
	}
	counts := make(map[models.EventType]int64, len(rows))
	for _, r := range rows {
		counts[r.EventType] = r.Total
	}
	return counts, nil
}
