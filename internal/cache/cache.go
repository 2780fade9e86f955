package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the cache interface used for access-decision caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, pattern string) error
	Close() error
}

// DecisionKey builds the cache key for a facade decision. Empty trailing
// parts are omitted so a truncated key plus "*" works as a Clear pattern
// covering every decision for a (doctor, patient) pair.
func DecisionKey(doctorID, patientID, action, category string) string {
	parts := []string{"decision", doctorID, patientID}
	if action != "" {
		parts = append(parts, action)
		if category != "" {
			parts = append(parts, category)
		}
	}
	return strings.Join(parts, ":")
}
