package models

import "github.com/google/uuid"

// ActorContext carries request metadata about who performed an action,
// captured by the HTTP layer and threaded into audit writes.
type ActorContext struct {
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
}
