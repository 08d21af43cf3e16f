// Package domain defines the persistence models for quota accounting, user
// profiles, and generated-reply history. These types are mapped with GORM and
// form the core data layer of the review-reply backend.
package domain

import (
	"time"
)

// QuotaRecord is the per-identity daily usage counter.
//
// Fields:
//   - Identity: verified or claimed subject id; primary key.
//   - DailyCount: admitted, non-exempt requests since LastReset's day.
//   - LastReset: server-assigned timestamp (UTC) of the last reset or increment.
//
// A record whose LastReset falls on an earlier day than "now" in the quota
// time zone is logically zero until the next reset is applied.
type QuotaRecord struct {
	Identity   string    `json:"identity"    gorm:"type:varchar(128);primaryKey"`
	DailyCount int       `json:"daily_count" gorm:"not null;default:0;check:daily_count >= 0"`
	LastReset  time.Time `json:"last_reset"  gorm:"not null;index"`
}

// TableName returns the database table name for QuotaRecord.
func (QuotaRecord) TableName() string { return "quotas" }

// Profile is the user-profile row consulted by the privilege check.
// IsExempt is maintained by external administration.
type Profile struct {
	ID        string    `json:"id"        gorm:"type:varchar(128);primaryKey"`
	IsExempt  bool      `json:"is_exempt" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "users" }

// HistoryItem is one successful generation saved for its owner.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owning identity; indexed together with CreatedAt for newest-first paging.
//   - OriginalReview / BusinessType / Tone: request parameters.
//   - GeneratedReply: the text returned to the caller.
type HistoryItem struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(128);not null;index:idx_user_history,priority:1"`
	OriginalReview string    `json:"original_review" gorm:"type:text;not null"`
	BusinessType   string    `json:"business_type"   gorm:"type:varchar(255);not null"`
	Tone           string    `json:"tone"            gorm:"type:varchar(32);not null;default:'Professional'"`
	GeneratedReply string    `json:"generated_reply" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_user_history,priority:2"`
}

// TableName returns the database table name for HistoryItem.
func (HistoryItem) TableName() string { return "history" }
