package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contract lifecycle status constants
const (
	ContractStatusDraft        = "DRAFT"
	ContractStatusPendingESign = "PENDING_ESIGN"
	ContractStatusSigned       = "SIGNED"
	ContractStatusActive       = "ACTIVE"
	ContractStatusCompleted    = "COMPLETED"
	ContractStatusDefaulted    = "DEFAULTED"
	ContractStatusCancelled    = "CANCELLED"
)

// Payment status constants (money collected against the contract)
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPartial  = "PARTIAL"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// Payment type constants
const (
	PaymentTypeOneTime = "ONE_TIME"
	PaymentTypeEMI     = "EMI"
)

// Payment frequency constants (EMI only)
const (
	FrequencyWeekly    = "WEEKLY"
	FrequencyMonthly   = "MONTHLY"
	FrequencyQuarterly = "QUARTERLY"
)

// Terms bounds
const (
	MaxPrincipalAmount = 10000000.0
	MaxInterestRate    = 60.0
)

type Contract struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID        uuid.UUID  `gorm:"type:uuid;index" json:"merchant_id"`
	Merchant          Merchant   `json:"-" gorm:"foreignKey:MerchantID"`
	PayerID           uuid.UUID  `gorm:"type:uuid;index" json:"payer_id"`
	Payer             Payer      `json:"-" gorm:"foreignKey:PayerID"`
	PrincipalAmount   float64    `json:"principal_amount"`
	InterestRate      float64    `json:"interest_rate"`
	PaymentType       string     `json:"payment_type"`
	PaymentFrequency  string     `json:"payment_frequency,omitempty"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	EMIAmount         float64    `json:"emi_amount,omitempty"`
	Status            string     `gorm:"index" json:"status"`
	PaymentStatus     string     `json:"payment_status"`
	PdfURL            string     `json:"pdf_url,omitempty"`
	Sha256Hash        string     `json:"sha256_hash,omitempty"`
	ESignDocumentID   *string    `gorm:"uniqueIndex" json:"esign_document_id,omitempty"`
	SignedPdfURL      string     `json:"signed_pdf_url,omitempty"`
	SignedAt          *time.Time `json:"signed_at,omitempty"`
	AuditAnchorHash   string     `json:"audit_anchor_hash,omitempty"`
	TotalPaidAmount   float64    `json:"total_paid_amount"`
	LastPaymentAt     *time.Time `json:"last_payment_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ContractEvent identifies a state machine trigger.
type ContractEvent string

const (
	EventESignInitiated   ContractEvent = "ESIGN_INITIATED"
	EventESignCompleted   ContractEvent = "ESIGN_COMPLETED"
	EventESignDeclined    ContractEvent = "ESIGN_DECLINED"
	EventFirstInstallment ContractEvent = "FIRST_INSTALLMENT_COLLECTED"
	EventPaidInFull       ContractEvent = "PAID_IN_FULL"
	EventGraceExpired     ContractEvent = "GRACE_WINDOW_EXPIRED"
	EventAdminCancel      ContractEvent = "ADMIN_CANCEL"
)

// contractTransitions is the full transition table. Any (status, event) pair
// not present here is an illegal transition.
var contractTransitions = map[string]map[ContractEvent]string{
	ContractStatusDraft: {
		EventESignInitiated: ContractStatusPendingESign,
		EventAdminCancel:    ContractStatusCancelled,
	},
	ContractStatusPendingESign: {
		EventESignCompleted: ContractStatusSigned,
		EventESignDeclined:  ContractStatusCancelled,
		EventAdminCancel:    ContractStatusCancelled,
	},
	ContractStatusSigned: {
		EventFirstInstallment: ContractStatusActive,
		EventPaidInFull:       ContractStatusCompleted,
	},
	ContractStatusActive: {
		EventPaidInFull:   ContractStatusCompleted,
		EventGraceExpired: ContractStatusDefaulted,
	},
}

// eventTargets maps each event to its single destination status.
var eventTargets = map[ContractEvent]string{
	EventESignInitiated:   ContractStatusPendingESign,
	EventESignCompleted:   ContractStatusSigned,
	EventESignDeclined:    ContractStatusCancelled,
	EventFirstInstallment: ContractStatusActive,
	EventPaidInFull:       ContractStatusCompleted,
	EventGraceExpired:     ContractStatusDefaulted,
	EventAdminCancel:      ContractStatusCancelled,
}

// NextContractStatus resolves the transition table for (from, event).
// Returns ("", false) when no rule matches.
func NextContractStatus(from string, event ContractEvent) (string, bool) {
	rules, ok := contractTransitions[from]
	if !ok {
		return "", false
	}
	to, ok := rules[event]
	return to, ok
}

// EventTarget returns the destination status for an event regardless of the
// source state. Used to recognize idempotent re-delivery: a contract already
// sitting at the target is a no-op, not an error.
func EventTarget(event ContractEvent) (string, bool) {
	to, ok := eventTargets[event]
	return to, ok
}

// IsTerminalStatus reports whether no further transitions are possible.
func IsTerminalStatus(status string) bool {
	return status == ContractStatusCompleted ||
		status == ContractStatusCancelled ||
		status == ContractStatusDefaulted
}

// ContractTerms carries the caller-supplied fields validated before a DRAFT
// contract is persisted.
type ContractTerms struct {
	PrincipalAmount  float64
	InterestRate     float64
	PaymentType      string
	PaymentFrequency string
	StartDate        time.Time
	EndDate          time.Time
}

// Validate checks the terms bounds. Nothing is persisted when it fails.
func (t ContractTerms) Validate() error {
	if t.PrincipalAmount <= 0 || t.PrincipalAmount > MaxPrincipalAmount {
		return fmt.Errorf("principal amount must be between 0 and %.0f", MaxPrincipalAmount)
	}
	if t.InterestRate < 0 || t.InterestRate > MaxInterestRate {
		return fmt.Errorf("interest rate must be between 0 and %.0f", MaxInterestRate)
	}
	if t.PaymentType != PaymentTypeOneTime && t.PaymentType != PaymentTypeEMI {
		return fmt.Errorf("payment type must be %s or %s", PaymentTypeOneTime, PaymentTypeEMI)
	}
	if t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("end date must not be before start date")
	}
	if t.PaymentType == PaymentTypeEMI {
		switch t.PaymentFrequency {
		case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		default:
			return fmt.Errorf("payment frequency is required for EMI contracts")
		}
		if installmentPeriods(t.StartDate, t.EndDate, t.PaymentFrequency) < 1 {
			return fmt.Errorf("contract term too short for at least one %s installment", t.PaymentFrequency)
		}
	}
	return nil
}

// installmentPeriods counts whole billing periods between start and end.
func installmentPeriods(start, end time.Time, frequency string) int {
	count := 0
	cursor := start
	for {
		switch frequency {
		case FrequencyWeekly:
			cursor = cursor.AddDate(0, 0, 7)
		case FrequencyQuarterly:
			cursor = cursor.AddDate(0, 3, 0)
		default:
			cursor = cursor.AddDate(0, 1, 0)
		}
		if cursor.After(end) {
			return count
		}
		count++
	}
}

// InstallmentCount returns the number of obligations on the contract:
// 1 for ONE_TIME, the whole-period count for EMI.
func (c *Contract) InstallmentCount() int {
	if c.PaymentType == PaymentTypeOneTime {
		return 1
	}
	return installmentPeriods(c.StartDate, c.EndDate, c.PaymentFrequency)
}

// InstallmentAmount derives the per-installment amount: principal divided by
// the installment count, rounded to two places. The rounding remainder is
// folded into the final installment by ObligationAmount.
func (c *Contract) InstallmentAmount() float64 {
	n := c.InstallmentCount()
	if n <= 0 {
		return 0
	}
	return math.Round(c.PrincipalAmount/float64(n)*100) / 100
}

// ObligationAmount returns the amount due for the obligation at the given
// zero-based ordinal.
func (c *Contract) ObligationAmount(ordinal int) (float64, error) {
	n := c.InstallmentCount()
	if ordinal < 0 || ordinal >= n {
		return 0, fmt.Errorf("obligation %d out of range, contract has %d", ordinal, n)
	}
	if c.PaymentType == PaymentTypeOneTime {
		return c.PrincipalAmount, nil
	}
	emi := c.InstallmentAmount()
	if ordinal == n-1 {
		last := c.PrincipalAmount - emi*float64(n-1)
		return math.Round(last*100) / 100, nil
	}
	return emi, nil
}

// ObligationDueDate returns when the obligation at the given zero-based
// ordinal falls due. ONE_TIME obligations are due at the end date.
func (c *Contract) ObligationDueDate(ordinal int) time.Time {
	if c.PaymentType == PaymentTypeOneTime {
		return c.EndDate
	}
	due := c.StartDate
	for i := 0; i <= ordinal; i++ {
		switch c.PaymentFrequency {
		case FrequencyWeekly:
			due = due.AddDate(0, 0, 7)
		case FrequencyQuarterly:
			due = due.AddDate(0, 3, 0)
		default:
			due = due.AddDate(0, 1, 0)
		}
	}
	return due
}

// ObligationKey derives the deduplication key for order creation against the
// obligation at the given ordinal.
func (c *Contract) ObligationKey(ordinal int) string {
	return fmt.Sprintf("order:%s:%d", c.ID, ordinal)
}
