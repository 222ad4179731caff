package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mandate type constants
const (
	MandateTypeENACH      = "ENACH"
	MandateTypeUPIAutopay = "UPI_AUTOPAY"
)

// Mandate status constants
const (
	MandateStatusCreated              = "CREATED"
	MandateStatusPendingAuthorization = "PENDING_AUTHORIZATION"
	MandateStatusActive               = "ACTIVE"
	MandateStatusPaused               = "PAUSED"
	MandateStatusRevoked              = "REVOKED"
	MandateStatusExpired              = "EXPIRED"
)

// Mandate is a standing autopay authorization letting the gateway collect
// recurring installments without the payer re-authenticating each time.
// One mandate per contract.
type Mandate struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID        uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"contract_id"`
	MandateType       string     `gorm:"size:50" json:"mandate_type"`
	GatewayMandateID  string     `gorm:"size:100;index" json:"gateway_mandate_id"`
	MaxAmount         float64    `json:"max_amount"`
	Frequency         string     `gorm:"size:20" json:"frequency,omitempty"`
	BankAccountNumber string     `gorm:"size:20" json:"-"`
	BankIfsc          string     `gorm:"size:11" json:"bank_ifsc,omitempty"`
	BankAccountHolder string     `gorm:"size:255" json:"bank_account_holder,omitempty"`
	UpiID             string     `gorm:"size:100" json:"upi_id,omitempty"`
	AuthorizationURL  string     `gorm:"size:500" json:"authorization_url,omitempty"`
	AuthorizedAt      *time.Time `json:"authorized_at,omitempty"`
	Status            string     `gorm:"size:20" json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (m *Mandate) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MandateRequest carries the payer-supplied instrument details validated
// before a mandate is registered with the gateway.
type MandateRequest struct {
	MandateType       string `json:"mandate_type" binding:"required"`
	BankAccountNumber string `json:"bank_account_number"`
	BankIfsc          string `json:"bank_ifsc"`
	BankAccountHolder string `json:"bank_account_holder"`
	UpiID             string `json:"upi_id"`
}

// Validate checks the instrument fields required for the mandate type.
func (r MandateRequest) Validate() error {
	switch r.MandateType {
	case MandateTypeENACH:
		if r.BankAccountNumber == "" || r.BankIfsc == "" || r.BankAccountHolder == "" {
			return fmt.Errorf("bank account number, IFSC and account holder are required for %s mandates", MandateTypeENACH)
		}
	case MandateTypeUPIAutopay:
		if r.UpiID == "" {
			return fmt.Errorf("upi_id is required for %s mandates", MandateTypeUPIAutopay)
		}
	default:
		return fmt.Errorf("mandate type must be %s or %s", MandateTypeENACH, MandateTypeUPIAutopay)
	}
	return nil
}

// IsOpen reports whether the mandate still stands; a revoked or expired
// mandate does not block registering a new one.
func (m *Mandate) IsOpen() bool {
	return m.Status != MandateStatusRevoked && m.Status != MandateStatusExpired
}
