package models

import "time"

// Job statuses.
const (
	JobStatusActive          = "active"
	JobStatusPendingApproval = "pending_approval"
	JobStatusProcessing      = "processing"
	JobStatusCompleted       = "completed"
	JobStatusFailed          = "failed"
)

// JobRecord is a durable record of one downstream result, keyed by an
// opaque generated job ID. Deletes are soft: the row is retained with
// DeletedAt set so a record can be restored.
type JobRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"size:32;not null;uniqueIndex"`
	UserID      string `gorm:"size:64;not null;index"`
	UserName    string `gorm:"size:128"`
	ChannelID   string `gorm:"size:64;index"`
	Title       string `gorm:"size:256"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:32;default:active;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time `gorm:"index"`
}
