package models

import "time"

// QueueDocument holds one whole-document JSON blob, keyed by name. The
// fairness queue persists its per-user state here so pending requests
// survive process restarts.
type QueueDocument struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:64;not null;uniqueIndex"`
	Document  string `gorm:"type:text"`
	UpdatedAt time.Time
}
