package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/cache"
	"github.com/Gowri7989009215/ehrb/internal/metrics"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// decisionTTL bounds how long a cached decision can outlive the consent
// state it was computed from.
const decisionTTL = 30 * time.Second

// Decision is the facade's answer to an access question. Deny is a result,
// not an error.
type Decision struct {
	Allowed bool            `json:"allowed"`
	Reason  string          `json:"reason"`
	Filter  *CategoryFilter `json:"filter,omitempty"`
}

// AccessService is the fail-closed gate in front of every record read or
// write. It combines the consent lookup with the permission check and
// category scoping; every uncertain path denies. The facade itself writes
// no audit entries: callers choose what to record.
type AccessService struct {
	consents *ConsentService
	cache    cache.Cache
}

// NewAccessService creates the access-decision facade
func NewAccessService(consents *ConsentService, c cache.Cache) *AccessService {
	return &AccessService{consents: consents, cache: c}
}

// CheckAccess decides whether the actor may perform the action against the
// subject's records, optionally narrowed to one record category.
func (s *AccessService) CheckAccess(ctx context.Context, actorID, subjectID uuid.UUID, action models.AccessAction, category string) Decision {
	key := cache.DecisionKey(actorID.String(), subjectID.String(), string(action), category)
	if d, ok := s.cachedDecision(ctx, key); ok {
		metrics.AccessDecisions.WithLabelValues(outcome(d.Allowed)).Inc()
		return d
	}

	d := s.decide(ctx, actorID, subjectID, action, category)
	s.storeDecision(ctx, key, d)
	metrics.AccessDecisions.WithLabelValues(outcome(d.Allowed)).Inc()
	return d
}

func (s *AccessService) decide(ctx context.Context, actorID, subjectID uuid.UUID, action models.AccessAction, category string) Decision {
	consent, err := s.consents.GetConsent(ctx, subjectID, actorID)
	if err != nil {
		if !errors.Is(err, models.ErrConsentNotFound) {
			log.Error().Err(err).Msg("Consent lookup failed, denying")
			return Decision{Allowed: false, Reason: "consent lookup failed"}
		}
		return Decision{Allowed: false, Reason: "no consent relationship"}
	}

	now := time.Now().UTC()
	if !consent.IsValidAt(now) {
		return Decision{Allowed: false, Reason: "consent not valid: " + string(consent.EffectiveStatus(now))}
	}
	if !consent.Permissions.Allows(action) {
		return Decision{Allowed: false, Reason: "permission not granted: " + string(action)}
	}

	filter := s.consents.ResolveCategoryFilter(consent, category)
	if filter.Denies() {
		return Decision{Allowed: false, Reason: "category not covered by consent", Filter: &filter}
	}
	return Decision{Allowed: true, Reason: "consent valid", Filter: &filter}
}

func (s *AccessService) cachedDecision(ctx context.Context, key string) (Decision, bool) {
	if s.cache == nil {
		return Decision{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("Decision cache read failed")
		}
		return Decision{}, false
	}
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return Decision{}, false
	}
	return d, true
}

func (s *AccessService) storeDecision(ctx context.Context, key string, d Decision) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, decisionTTL); err != nil {
		log.Warn().Err(err).Msg("Decision cache write failed")
	}
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
