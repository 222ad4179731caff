package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment order status constants
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusFailed    = "FAILED"
	OrderStatusExpired   = "EXPIRED"
)

// PaymentOrder is a gateway checkout intent for one contract obligation.
// At most one order may sit in CREATED or COMPLETED per obligation; the
// idempotency ledger enforces that across retries.
type PaymentOrder struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ContractID        uuid.UUID `gorm:"type:uuid;index" json:"contract_id"`
	ObligationOrdinal int       `json:"obligation_ordinal"`
	RazorpayOrderID   string    `gorm:"uniqueIndex" json:"razorpay_order_id"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
