package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/legalpay/legalpay/models"
	"gorm.io/gorm"
)

// ApplyContractTransition advances a contract through the state machine with
// an optimistic check: the UPDATE is guarded by the status the caller
// observed, so concurrent attempts serialize on the row. A contract already
// at the event's target is a no-op success (webhook re-delivery is routine);
// anything else without a table rule is ErrIllegalTransition and leaves the
// contract untouched. extra columns are written together with the status.
func ApplyContractTransition(db *gorm.DB, contractID uuid.UUID, event models.ContractEvent, extra map[string]interface{}) (*models.Contract, error) {
	target, ok := models.EventTarget(event)
	if !ok {
		return nil, fmt.Errorf("unknown contract event: %s", event)
	}

	for attempt := 0; attempt < 2; attempt++ {
		var contract models.Contract
		if err := db.Where("id = ?", contractID).First(&contract).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFoundError("Contract not found", err)
			}
			return nil, err
		}

		if contract.Status == target {
			// Already advanced, idempotent re-delivery.
			return &contract, nil
		}

		if _, ok := models.NextContractStatus(contract.Status, event); !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, event, contract.Status)
		}

		updates := map[string]interface{}{"status": target}
		for k, v := range extra {
			updates[k] = v
		}

		res := db.Model(&models.Contract{}).
			Where("id = ? AND status = ?", contractID, contract.Status).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			LogInfo("Contract %s transitioned %s -> %s on %s", contractID, contract.Status, target, event)
			if err := db.Where("id = ?", contractID).First(&contract).Error; err != nil {
				return nil, err
			}
			return &contract, nil
		}
		// Lost the race, re-read and re-evaluate once.
	}

	var contract models.Contract
	if err := db.Where("id = ?", contractID).First(&contract).Error; err != nil {
		return nil, err
	}
	if contract.Status == target {
		return &contract, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, event, contract.Status)
}

// VerifiedPaymentResult reports what ApplyVerifiedPayment did.
type VerifiedPaymentResult struct {
	Contract *models.Contract
	Order    *models.PaymentOrder
	Payment  *models.Payment
	Replayed bool
}

// ApplyVerifiedPayment records a signature-verified successful payment
// against its order and advances the owning contract. The caller has already
// verified the signature; this function owns the idempotence and the state
// changes. The ledger CAS on (order, payment) and the order/payment/contract
// writes commit in one transaction, so a failed attempt leaves no ledger row
// behind and the gateway's retry of the identical callback applies the
// payment instead of short-circuiting. Duplicate delivery never
// double-counts; a different payment id against an already-settled order is
// ErrConflictingPayment.
func ApplyVerifiedPayment(db *gorm.DB, razorpayOrderID, razorpayPaymentID, signature, method string, retention time.Duration) (*VerifiedPaymentResult, error) {
	var order models.PaymentOrder
	if err := db.Where("razorpay_order_id = ?", razorpayOrderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("Payment order not found", err)
		}
		return nil, err
	}

	if order.Status == models.OrderStatusCompleted {
		// Order settled earlier (the ledger row may have expired since).
		// Same payment id is a replay, anything else conflicts.
		var prior models.Payment
		if err := db.Where("order_id = ? AND status = ?", order.ID, models.PaymentRecordCaptured).First(&prior).Error; err == nil {
			if prior.RazorpayPaymentID == razorpayPaymentID {
				return replayedResult(db, &order)
			}
			return nil, fmt.Errorf("%w: order %s already settled by %s", ErrConflictingPayment, razorpayOrderID, prior.RazorpayPaymentID)
		}
	}
	if order.Status != models.OrderStatusCreated {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidContractState, razorpayOrderID, order.Status)
	}

	var contract models.Contract
	if err := db.Where("id = ?", order.ContractID).First(&contract).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	payment := models.Payment{
		OrderID:           order.ID,
		RazorpayOrderID:   razorpayOrderID,
		RazorpayPaymentID: razorpayPaymentID,
		Signature:         signature,
		Amount:            order.Amount,
		Method:            method,
		Status:            models.PaymentRecordCaptured,
		CapturedAt:        &now,
	}

	ledgerKey := fmt.Sprintf("payment:%s", razorpayOrderID)
	replayed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		recorded, wasNew, err := RecordIfAbsent(tx, ledgerKey, razorpayPaymentID, retention)
		if err != nil {
			return err
		}
		if !wasNew && recorded != razorpayPaymentID {
			return fmt.Errorf("%w: order %s already settled by %s", ErrConflictingPayment, razorpayOrderID, recorded)
		}

		res := tx.Model(&models.PaymentOrder{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusCreated).
			Update("status", models.OrderStatusCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if !wasNew {
				// A prior delivery with the same payment id already settled
				// the order; identical callback re-delivered.
				replayed = true
				return nil
			}
			return fmt.Errorf("%w: order %s advanced concurrently", ErrInvalidContractState, razorpayOrderID)
		}
		// Reaching here with !wasNew means the ledger row exists but the
		// order never left CREATED: an earlier attempt died between the two.
		// Apply the payment now; the ledger stays as recorded.

		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Contract{}).
			Where("id = ?", contract.ID).
			Updates(map[string]interface{}{
				"total_paid_amount": gorm.Expr("total_paid_amount + ?", order.Amount),
				"last_payment_at":   now,
			}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		if err := db.Where("id = ?", order.ID).First(&order).Error; err != nil {
			return nil, err
		}
		return replayedResult(db, &order)
	}
	order.Status = models.OrderStatusCompleted

	if err := db.Where("id = ?", contract.ID).First(&contract).Error; err != nil {
		return nil, err
	}

	updated, err := settleContractAfterPayment(db, &contract)
	if err != nil {
		return nil, err
	}

	return &VerifiedPaymentResult{Contract: updated, Order: &order, Payment: &payment}, nil
}

// settleContractAfterPayment decides the lifecycle and payment-status effect
// of the collection that just landed.
func settleContractAfterPayment(db *gorm.DB, contract *models.Contract) (*models.Contract, error) {
	var completed int64
	if err := db.Model(&models.PaymentOrder{}).
		Where("contract_id = ? AND status = ?", contract.ID, models.OrderStatusCompleted).
		Count(&completed).Error; err != nil {
		return nil, err
	}

	fullyPaid := contract.TotalPaidAmount >= contract.PrincipalAmount-0.005 ||
		int(completed) >= contract.InstallmentCount()

	if fullyPaid {
		updated, err := ApplyContractTransition(db, contract.ID, models.EventPaidInFull,
			map[string]interface{}{"payment_status": models.PaymentStatusPaid})
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	if contract.Status == models.ContractStatusSigned {
		updated, err := ApplyContractTransition(db, contract.ID, models.EventFirstInstallment,
			map[string]interface{}{"payment_status": models.PaymentStatusPartial})
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	if err := db.Model(&models.Contract{}).
		Where("id = ?", contract.ID).
		Update("payment_status", models.PaymentStatusPartial).Error; err != nil {
		return nil, err
	}
	contract.PaymentStatus = models.PaymentStatusPartial
	return contract, nil
}

func replayedResult(db *gorm.DB, order *models.PaymentOrder) (*VerifiedPaymentResult, error) {
	var contract models.Contract
	if err := db.Where("id = ?", order.ContractID).First(&contract).Error; err != nil {
		return nil, err
	}
	var payment models.Payment
	if err := db.Where("order_id = ? AND status = ?", order.ID, models.PaymentRecordCaptured).First(&payment).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &VerifiedPaymentResult{Contract: &contract, Order: order, Payment: &payment, Replayed: true}, nil
}

// MarkOrderFailed records a gateway-reported payment failure with a valid
// signature. The order becomes FAILED and the payer may retry; the contract
// lifecycle and totalPaidAmount are untouched.
func MarkOrderFailed(db *gorm.DB, razorpayOrderID, errorCode, errorDescription string) error {
	var order models.PaymentOrder
	if err := db.Where("razorpay_order_id = ?", razorpayOrderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("Payment order not found", err)
		}
		return err
	}

	res := db.Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusCreated).
		Update("status", models.OrderStatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already settled or already failed; nothing to record.
		return nil
	}

	now := time.Now()
	payment := models.Payment{
		OrderID:          order.ID,
		RazorpayOrderID:  razorpayOrderID,
		Amount:           order.Amount,
		Status:           models.PaymentRecordFailed,
		FailedAt:         &now,
		ErrorCode:        errorCode,
		ErrorDescription: errorDescription,
	}
	if err := db.Create(&payment).Error; err != nil {
		return err
	}

	// A contract with no money collected yet surfaces the failure in its
	// payment status; partial collections stay PARTIAL.
	if err := db.Model(&models.Contract{}).
		Where("id = ? AND total_paid_amount = 0", order.ContractID).
		Update("payment_status", models.PaymentStatusFailed).Error; err != nil {
		return err
	}
	return nil
}
