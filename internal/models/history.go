package models

import (
	"time"
)

// HistoryEntry is the append-only audit trail. Rows are never updated or
// deleted; insertion order (RecordedAt) is the only ordering guarantee.
type HistoryEntry struct {
	ID         uint      `gorm:"primaryKey"`
	SubjectID  int64     `gorm:"not null;index"`
	Action     string    `gorm:"size:100;not null"`
	Detail     string    `gorm:"size:512"`
	RecordedAt time.Time `gorm:"autoCreateTime;index"`
}
