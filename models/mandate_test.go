package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMandateRequestValidate(t *testing.T) {
	t.Run("valid eNACH request", func(t *testing.T) {
		req := MandateRequest{
			MandateType:       MandateTypeENACH,
			BankAccountNumber: "0011223344556",
			BankIfsc:          "HDFC0001234",
			BankAccountHolder: "Asha Payer",
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("valid UPI autopay request", func(t *testing.T) {
		req := MandateRequest{
			MandateType: MandateTypeUPIAutopay,
			UpiID:       "asha@okhdfcbank",
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("eNACH missing bank details", func(t *testing.T) {
		req := MandateRequest{
			MandateType: MandateTypeENACH,
			BankIfsc:    "HDFC0001234",
		}
		assert.Error(t, req.Validate())
	})

	t.Run("UPI autopay missing upi id", func(t *testing.T) {
		req := MandateRequest{MandateType: MandateTypeUPIAutopay}
		assert.Error(t, req.Validate())
	})

	t.Run("unknown mandate type", func(t *testing.T) {
		req := MandateRequest{MandateType: "CARD"}
		assert.Error(t, req.Validate())
	})
}

func TestMandateIsOpen(t *testing.T) {
	open := []string{
		MandateStatusCreated,
		MandateStatusPendingAuthorization,
		MandateStatusActive,
		MandateStatusPaused,
	}
	for _, status := range open {
		assert.True(t, (&Mandate{Status: status}).IsOpen(), status)
	}

	closed := []string{MandateStatusRevoked, MandateStatusExpired}
	for _, status := range closed {
		assert.False(t, (&Mandate{Status: status}).IsOpen(), status)
	}
}
