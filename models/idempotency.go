package models

import (
	"time"
)

// IdempotencyRecord maps a deduplication key to the first-recorded outcome.
// The unique index on Key is the compare-and-set: later writers conflict and
// read back the first writer's outcome. Rows are retained past the gateway's
// documented retry window and pruned by the scheduler sweep.
type IdempotencyRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:255" json:"key"`
	Outcome   string    `json:"outcome"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
