package models

// Subscription statuses. A status is terminal for its activation cycle;
// a renewal rewrites the row through the store's upsert instead of
// transitioning back.
const (
	StatusActive  = "ACTIVE"
	StatusExpired = "EXPIRED"
	StatusRevoked = "REVOKED"
)

// SubscriptionRecord holds the current cycle of one subject's subscription.
// Timestamps are stored as text in the canonical encoding so rows migrated
// from the legacy nickname convention stay readable (see internal/dates).
type SubscriptionRecord struct {
	SubjectID      int64   `gorm:"primaryKey;autoIncrement:false"`
	DisplayName    string  `gorm:"size:255;not null"`
	ExpiresAt      string  `gorm:"size:32;not null;index"`
	PlanLabel      string  `gorm:"size:100;not null"`
	ActivatedAt    string  `gorm:"size:32;not null"`
	Status         string  `gorm:"size:20;not null"`
	LastNotifiedAt *string `gorm:"size:32"`
}
