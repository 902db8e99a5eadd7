package models

import "time"

const (
	PointsReasonReferralReferrer = "referral_referrer"
	PointsReasonReferralReferee  = "referral_referee"
)

// PointsEntry is one append-only credit on a user's points ledger. The
// balance on UserSettings is the running sum maintained alongside inserts.
type PointsEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Points    int64     `gorm:"not null" json:"points"`
	Reason    string    `gorm:"type:varchar(50);not null" json:"reason"`
	SourceID  uint      `gorm:"not null;default:0" json:"source_id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
