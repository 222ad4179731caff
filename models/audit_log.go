package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event type constants
const (
	AuditContractCreated   = "CONTRACT_CREATED"
	AuditContractSigned    = "CONTRACT_SIGNED"
	AuditContractCancelled = "CONTRACT_CANCELLED"
	AuditContractDefaulted = "CONTRACT_DEFAULTED"
	AuditPaymentCompleted  = "PAYMENT_COMPLETED"
	AuditPaymentFailed     = "PAYMENT_FAILED"
	AuditMandateCreated    = "MANDATE_CREATED"
	AuditMandateActivated  = "MANDATE_ACTIVATED"
	AuditMandateRevoked    = "MANDATE_REVOKED"
)

// AuditLog is an append-only, hash-chained record of contract and payment
// events. EntryHash covers the previous entry's hash, so rewriting history
// breaks the chain. EntryHash and PrevHash are write-once.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventType  string    `json:"event_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;index" json:"entity_id"`
	EntityType string    `json:"entity_type"`
	ActorID    uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	Metadata   string    `json:"metadata"`
	PrevHash   string    `gorm:"size:64" json:"prev_hash"`
	EntryHash  string    `gorm:"size:64;uniqueIndex" json:"entry_hash"`
	CreatedAt  time.Time `json:"created_at"`
}
