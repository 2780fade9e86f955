package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConsentStatus represents the lifecycle state of a consent relationship
type ConsentStatus string

const (
	ConsentStatusPending ConsentStatus = "pending"
	ConsentStatusGranted ConsentStatus = "granted"
	ConsentStatusRevoked ConsentStatus = "revoked"
	ConsentStatusExpired ConsentStatus = "expired"
)

// ConsentType represents the scope model of a consent
type ConsentType string

const (
	ConsentTypeFullAccess      ConsentType = "full-access"
	ConsentTypeLimitedAccess   ConsentType = "limited-access"
	ConsentTypeEmergencyOnly   ConsentType = "emergency-only"
	ConsentTypeSpecificRecords ConsentType = "specific-records"
)

// AccessAction is an action a doctor can perform against a patient's records
type AccessAction string

const (
	ActionView     AccessAction = "view"
	ActionDownload AccessAction = "download"
	ActionUpdate   AccessAction = "update"
	ActionShare    AccessAction = "share"
)

// Permissions holds the four independent capability flags of a consent
type Permissions struct {
	CanView     bool `gorm:"default:true" json:"can_view"`
	CanDownload bool `gorm:"default:false" json:"can_download"`
	CanUpdate   bool `gorm:"default:false" json:"can_update"`
	CanShare    bool `gorm:"default:false" json:"can_share"`
}

// Allows maps an access action to its permission flag. Unknown actions deny.
func (p Permissions) Allows(action AccessAction) bool {
	switch action {
	case ActionView:
		return p.CanView
	case ActionDownload:
		return p.CanDownload
	case ActionUpdate:
		return p.CanUpdate
	case ActionShare:
		return p.CanShare
	default:
		return false
	}
}

// ConsentGrant is the unique consent relationship between one patient and one
// doctor. At most one row exists per (patient_id, doctor_id) pair; request,
// grant and revoke all mutate the same row, preserving history for audit.
type ConsentGrant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_consents_pair" json:"patient_id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_consents_pair" json:"doctor_id"`

	Status      ConsentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ConsentType ConsentType   `gorm:"type:varchar(30);not null" json:"consent_type"`

	Permissions Permissions `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`

	// AllowedCategories is meaningful only for limited-access consents.
	AllowedCategories StringList `gorm:"type:text" json:"allowed_categories"`
	// SpecificRecords is meaningful only for specific-records consents.
	SpecificRecords StringList `gorm:"type:text" json:"specific_records"`

	RequestMessage string `gorm:"type:text" json:"request_message,omitempty"`
	RevokeReason   string `gorm:"type:text" json:"revoke_reason,omitempty"`

	ValidFrom  time.Time  `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time  `gorm:"not null;index" json:"valid_until"`
	GrantedAt  *time.Time `json:"granted_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	AccessHistory []AccessEvent `gorm:"foreignKey:ConsentID" json:"access_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (ConsentGrant) TableName() string {
	return "consent_grants"
}

// BeforeCreate hook
func (c *ConsentGrant) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsValidAt reports whether the consent authorizes access at the given
// instant. Expiry is derived here, never materialized by a background job.
func (c *ConsentGrant) IsValidAt(now time.Time) bool {
	if !c.IsActive || c.Status != ConsentStatusGranted {
		return false
	}
	return !now.Before(c.ValidFrom) && now.Before(c.ValidUntil)
}

// EffectiveStatus is the read-time view of the status: a granted consent
// whose validity window has passed reads as expired without any write.
func (c *ConsentGrant) EffectiveStatus(now time.Time) ConsentStatus {
	if c.Status == ConsentStatusGranted && !now.Before(c.ValidUntil) {
		return ConsentStatusExpired
	}
	return c.Status
}

// AccessEvent is one append-only entry in a consent's access history
type AccessEvent struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ConsentID uuid.UUID    `gorm:"type:uuid;not null;index" json:"consent_id"`
	Action    AccessAction `gorm:"type:varchar(20);not null" json:"action"`
	RecordID  string       `gorm:"type:varchar(255)" json:"record_id,omitempty"`
	IPAddress string       `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent string       `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt time.Time    `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AccessEvent) TableName() string {
	return "consent_access_events"
}

// BeforeCreate hook
func (e *AccessEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ConsentParams carries the caller-supplied fields for request and grant
// operations. Zero values mean "keep the existing value" on re-grant.
type ConsentParams struct {
	ConsentType       ConsentType  `json:"consent_type"`
	Permissions       *Permissions `json:"permissions,omitempty"`
	AllowedCategories []string     `json:"allowed_categories,omitempty"`
	SpecificRecords   []string     `json:"specific_records,omitempty"`
	RequestMessage    string       `json:"request_message,omitempty"`
	ValidUntil        time.Time    `json:"valid_until"`
}
