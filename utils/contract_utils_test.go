package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/legalpay/legalpay/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedContract(t *testing.T, db *gorm.DB, paymentType, frequency string, principal float64, status string) *models.Contract {
	t.Helper()

	merchant := models.Merchant{
		BusinessName: "Acme Legal",
		Email:        fmt.Sprintf("merchant-%s@example.com", uuid.NewString()),
		Password:     "x",
	}
	require.NoError(t, db.Create(&merchant).Error)

	payer := models.Payer{
		FullName: "Asha Payer",
		Email:    fmt.Sprintf("payer-%s@example.com", uuid.NewString()),
		Password: "x",
	}
	require.NoError(t, db.Create(&payer).Error)

	contract := models.Contract{
		MerchantID:       merchant.ID,
		PayerID:          payer.ID,
		PrincipalAmount:  principal,
		PaymentType:      paymentType,
		PaymentFrequency: frequency,
		StartDate:        time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC),
		Status:           status,
		PaymentStatus:    models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(&contract).Error)
	return &contract
}

func seedOrder(t *testing.T, db *gorm.DB, contract *models.Contract, ordinal int) *models.PaymentOrder {
	t.Helper()

	amount, err := contract.ObligationAmount(ordinal)
	require.NoError(t, err)

	order := models.PaymentOrder{
		ContractID:        contract.ID,
		ObligationOrdinal: ordinal,
		RazorpayOrderID:   "order_" + uuid.NewString(),
		Amount:            amount,
		Currency:          "INR",
		Status:            models.OrderStatusCreated,
	}
	require.NoError(t, db.Create(&order).Error)
	return &order
}

func TestApplyContractTransitionLifecycle(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeOneTime, "", 100000, models.ContractStatusDraft)

	updated, err := ApplyContractTransition(db, contract.ID, models.EventESignInitiated, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusPendingESign, updated.Status)

	// Re-delivery of the same event is a no-op success.
	updated, err = ApplyContractTransition(db, contract.ID, models.EventESignInitiated, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusPendingESign, updated.Status)

	// An event without a table rule leaves the contract untouched.
	_, err = ApplyContractTransition(db, contract.ID, models.EventGraceExpired, nil)
	require.ErrorIs(t, err, ErrIllegalTransition)

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractStatusPendingESign, reloaded.Status)
}

func TestApplyVerifiedPaymentSettlesOneTime(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeOneTime, "", 100000, models.ContractStatusSigned)
	order := seedOrder(t, db, contract, 0)

	result, err := ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_full", "sig", "upi", time.Hour)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, models.OrderStatusCompleted, result.Order.Status)
	assert.Equal(t, models.ContractStatusCompleted, result.Contract.Status)
	assert.Equal(t, models.PaymentStatusPaid, result.Contract.PaymentStatus)
	assert.InDelta(t, 100000, result.Contract.TotalPaidAmount, 0.001)
}

func TestApplyVerifiedPaymentDuplicateDelivery(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeOneTime, "", 100000, models.ContractStatusSigned)
	order := seedOrder(t, db, contract, 0)

	_, err := ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_dup", "sig", "upi", time.Hour)
	require.NoError(t, err)

	result, err := ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_dup", "sig", "upi", time.Hour)
	require.NoError(t, err)
	assert.True(t, result.Replayed)

	var paymentCount int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), paymentCount)

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.InDelta(t, 100000, reloaded.TotalPaidAmount, 0.001)
}

func TestApplyVerifiedPaymentConflictingPayment(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeOneTime, "", 100000, models.ContractStatusSigned)
	order := seedOrder(t, db, contract, 0)

	_, err := ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_first", "sig", "upi", time.Hour)
	require.NoError(t, err)

	_, err = ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_second", "sig", "upi", time.Hour)
	require.ErrorIs(t, err, ErrConflictingPayment)
}

func TestApplyVerifiedPaymentRetriesAfterTransientFailure(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeOneTime, "", 100000, models.ContractStatusSigned)
	order := seedOrder(t, db, contract, 0)

	// Fail the first Payment insert the way a dropped connection would,
	// mid-transaction, after the ledger row was written.
	remaining := 1
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("failPaymentInsertOnce", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.Payment); ok && remaining > 0 {
			remaining--
			tx.AddError(errors.New("connection reset by peer"))
		}
	}))
	t.Cleanup(func() {
		require.NoError(t, db.Callback().Create().Remove("failPaymentInsertOnce"))
	})

	_, err := ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_retry", "sig", "upi", time.Hour)
	require.Error(t, err)

	// The failed attempt must leave no ledger row behind; otherwise the
	// gateway's retry would short-circuit as a replay and the payment would
	// never be counted.
	var ledgerCount int64
	require.NoError(t, db.Model(&models.IdempotencyRecord{}).
		Where("key = ?", "payment:"+order.RazorpayOrderID).Count(&ledgerCount).Error)
	assert.Equal(t, int64(0), ledgerCount)

	var midOrder models.PaymentOrder
	require.NoError(t, db.First(&midOrder, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCreated, midOrder.Status)

	// The gateway redelivers the identical callback; it must settle.
	result, err := ApplyVerifiedPayment(db, order.RazorpayOrderID, "pay_retry", "sig", "upi", time.Hour)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, models.OrderStatusCompleted, result.Order.Status)
	assert.Equal(t, models.ContractStatusCompleted, result.Contract.Status)
	assert.InDelta(t, 100000, result.Contract.TotalPaidAmount, 0.001)

	var paymentCount int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), paymentCount)
}

func TestApplyVerifiedPaymentEMIAccumulates(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeEMI, models.FrequencyMonthly, 1200, models.ContractStatusSigned)
	require.Equal(t, 12, contract.InstallmentCount())

	first := seedOrder(t, db, contract, 0)
	result, err := ApplyVerifiedPayment(db, first.RazorpayOrderID, "pay_emi_0", "sig", "upi", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusActive, result.Contract.Status)
	assert.Equal(t, models.PaymentStatusPartial, result.Contract.PaymentStatus)
	assert.InDelta(t, 100, result.Contract.TotalPaidAmount, 0.001)

	for ordinal := 1; ordinal < 12; ordinal++ {
		order := seedOrder(t, db, contract, ordinal)
		result, err = ApplyVerifiedPayment(db, order.RazorpayOrderID, fmt.Sprintf("pay_emi_%d", ordinal), "sig", "upi", time.Hour)
		require.NoError(t, err)
	}

	assert.Equal(t, models.ContractStatusCompleted, result.Contract.Status)
	assert.Equal(t, models.PaymentStatusPaid, result.Contract.PaymentStatus)
	assert.InDelta(t, 1200, result.Contract.TotalPaidAmount, 0.001)
}

func TestMarkOrderFailed(t *testing.T) {
	db := SetupTestDB(t)
	contract := seedContract(t, db, models.PaymentTypeOneTime, "", 100000, models.ContractStatusSigned)
	order := seedOrder(t, db, contract, 0)

	require.NoError(t, MarkOrderFailed(db, order.RazorpayOrderID, "BAD_GATEWAY", "issuer declined"))

	var reloadedOrder models.PaymentOrder
	require.NoError(t, db.First(&reloadedOrder, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusFailed, reloadedOrder.Status)

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractStatusSigned, reloaded.Status)
	assert.Equal(t, models.PaymentStatusFailed, reloaded.PaymentStatus)
	assert.Zero(t, reloaded.TotalPaidAmount)

	// Re-delivery of the failure is a no-op.
	require.NoError(t, MarkOrderFailed(db, order.RazorpayOrderID, "BAD_GATEWAY", "issuer declined"))
	var failedPayments int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&failedPayments).Error)
	assert.Equal(t, int64(1), failedPayments)
}
