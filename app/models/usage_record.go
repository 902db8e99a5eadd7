package models

import "time"

const (
	UsageTypeMentorChat    = "mentor_chat"
	UsageTypeQuizAttempt   = "quiz_attempt"
	UsageTypeVideoDownload = "video_download"
)

// UsageTypes lists every metered feature.
func UsageTypes() []string {
	return []string{UsageTypeMentorChat, UsageTypeQuizAttempt, UsageTypeVideoDownload}
}

// UsageRecord counts metered actions per user, type and calendar day.
// Rows are increment-only; old days become inert without cleanup.
type UsageRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index:ux_usage_records_user_type_date,unique,priority:1" json:"user_id"`
	UsageType  string    `gorm:"type:varchar(50);not null;index:ux_usage_records_user_type_date,unique,priority:2" json:"usage_type"`
	UsageDate  string    `gorm:"type:varchar(10);not null;index:ux_usage_records_user_type_date,unique,priority:3" json:"usage_date"`
	UsageCount int       `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UsageDay formats a timestamp as the day key used by UsageRecord.UsageDate.
func UsageDay(t time.Time) string {
	return t.Format("2006-01-02")
}
