package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction is the closed set of actions the audit log store records
type AuditAction string

const (
	AuditConsentRequested   AuditAction = "CONSENT_REQUESTED"
	AuditConsentGranted     AuditAction = "CONSENT_GRANTED"
	AuditConsentRevoked     AuditAction = "CONSENT_REVOKED"
	AuditConsentExtended    AuditAction = "CONSENT_EXTENDED"
	AuditRecordViewed       AuditAction = "RECORD_VIEWED"
	AuditRecordDownloaded   AuditAction = "RECORD_DOWNLOADED"
	AuditRecordUpdated      AuditAction = "RECORD_UPDATED"
	AuditRecordUploaded     AuditAction = "RECORD_UPLOADED"
	AuditRecordShared       AuditAction = "RECORD_SHARED"
	AuditAccessChecked      AuditAction = "ACCESS_CHECKED"
	AuditUnauthorizedAccess AuditAction = "UNAUTHORIZED_ACCESS"
	AuditFailedLogin        AuditAction = "FAILED_LOGIN"
	AuditSuspiciousActivity AuditAction = "SUSPICIOUS_ACTIVITY"
	AuditUserVerified       AuditAction = "USER_VERIFIED"
)

// AuditSeverity classifies how sensitive an audited action is
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditStatus is the outcome of the audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusWarning AuditStatus = "warning"
)

// AuditLog represents one structured, queryable audit log entry. It is
// independent of the ledger; BlockchainHash optionally links an entry to
// the ledger block recording the same event.
type AuditLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// ActorID is nil for system-generated events.
	ActorID *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`

	Action       AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`
	TargetID     string      `gorm:"type:varchar(255);index" json:"target_id,omitempty"`
	TargetModel  string      `gorm:"type:varchar(50)" json:"target_model,omitempty"`
	ResourceType string      `gorm:"type:varchar(50);index" json:"resource_type,omitempty"`
	Description  string      `gorm:"type:text" json:"description"`

	Metadata json.RawMessage `gorm:"type:text" json:"metadata,omitempty"`

	Severity AuditSeverity `gorm:"type:varchar(20);not null;index;default:low" json:"severity"`
	Status   AuditStatus   `gorm:"type:varchar(20);not null;index;default:success" json:"status"`

	// BlockchainHash links this entry to a ledger block, when one was written.
	BlockchainHash string `gorm:"type:varchar(64)" json:"blockchain_hash,omitempty"`

	IPAddress string `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate hook
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// SecurityActions are the actions the alerts query always matches,
// regardless of severity.
var SecurityActions = []AuditAction{
	AuditUnauthorizedAccess,
	AuditFailedLogin,
	AuditSuspiciousActivity,
}

// AuditFilters narrows audit log queries. Zero values mean "no filter".
type AuditFilters struct {
	From     time.Time
	To       time.Time
	Actions  []AuditAction
	Severity AuditSeverity
	Status   AuditStatus
	Limit    int
	Offset   int
}
