package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the discriminant tag of a ledger block payload
type EventType string

const (
	EventGenesis      EventType = "GENESIS"
	EventConsent      EventType = "CONSENT"
	EventUpload       EventType = "UPLOAD"
	EventAccess       EventType = "ACCESS"
	EventVerification EventType = "VERIFICATION"
)

// Consent event actions
const (
	ConsentEventRequested = "REQUESTED"
	ConsentEventGranted   = "GRANTED"
	ConsentEventRevoked   = "REVOKED"
)

// EventPayload is the typed content of a ledger block. Exactly the fields
// belonging to the event's Type are set; the rest stay empty and are
// omitted from the canonical JSON.
type EventPayload struct {
	Type   EventType `json:"type"`
	Action string    `json:"action,omitempty"`

	PatientID  string `json:"patient_id,omitempty"`
	DoctorID   string `json:"doctor_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	UploaderID string `json:"uploader_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	VerifierID string `json:"verifier_id,omitempty"`

	RecordID   string     `json:"record_id,omitempty"`
	FileHash   string     `json:"file_hash,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Marshal renders the canonical JSON encoding used for hashing and storage
func (p EventPayload) Marshal() (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return b, nil
}

// Identities returns the payload fields that identify participants; a block
// belongs to a user's audit trail when any of them matches the user's ID.
func (p EventPayload) Identities() []string {
	ids := make([]string, 0, 7)
	for _, id := range []string{
		p.PatientID, p.DoctorID, p.ActorID, p.TargetID,
		p.UploaderID, p.UserID, p.VerifierID,
	} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// LedgerBlock is the persisted form of one hash-chain block. Rows are
// append-only; nothing ever updates or deletes them.
type LedgerBlock struct {
	Index uint64 `gorm:"primaryKey;autoIncrement:false;column:idx" json:"index"`

	// TimestampMs is the block creation instant in unix milliseconds. It is
	// part of the hash input, so it is stored as an integer to survive
	// database round-trips bit-for-bit.
	TimestampMs int64 `gorm:"not null;index" json:"timestamp_ms"`

	EventType EventType       `gorm:"type:varchar(20);not null;index" json:"event_type"`
	Payload   json.RawMessage `gorm:"type:text;not null" json:"payload"`

	PreviousHash string `gorm:"type:varchar(64);not null" json:"previous_hash"`
	Nonce        uint64 `gorm:"not null" json:"nonce"`
	Hash         string `gorm:"type:varchar(64);not null;uniqueIndex" json:"hash"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (LedgerBlock) TableName() string {
	return "ledger_blocks"
}

// Timestamp returns the block instant as a time.Time
func (b *LedgerBlock) Timestamp() time.Time {
	return time.UnixMilli(b.TimestampMs).UTC()
}

// DecodePayload unmarshals the stored payload
func (b *LedgerBlock) DecodePayload() (EventPayload, error) {
	var p EventPayload
	if err := json.Unmarshal(b.Payload, &p); err != nil {
		return EventPayload{}, fmt.Errorf("failed to decode block %d payload: %w", b.Index, err)
	}
	return p, nil
}

// LedgerStats summarizes the chain for operators
type LedgerStats struct {
	TotalBlocks   int64               `json:"total_blocks"`
	IsValid       bool                `json:"is_valid"`
	BlocksByType  map[EventType]int64 `json:"blocks_by_type"`
	LatestHash    string              `json:"latest_hash,omitempty"`
	LatestIndex   uint64              `json:"latest_index"`
	LatestWriteAt *time.Time          `json:"latest_write_at,omitempty"`
}
