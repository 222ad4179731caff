package models

import (
	"time"
)

type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrderID           uint       `gorm:"index" json:"order_id"`
	RazorpayOrderID   string     `gorm:"index" json:"razorpay_order_id"`
	RazorpayPaymentID string     `gorm:"index" json:"razorpay_payment_id"`
	Signature         string     `json:"-"`
	Amount            float64    `json:"amount"`
	Method            string     `json:"method,omitempty"`
	Status            string     `json:"status"` // captured, failed
	CapturedAt        *time.Time `json:"captured_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	ErrorCode         string     `json:"error_code,omitempty"`
	ErrorDescription  string     `json:"error_description,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Payment record status constants
const (
	PaymentRecordCaptured = "captured"
	PaymentRecordFailed   = "failed"
)
