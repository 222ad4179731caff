package controllers

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
	razorpay "github.com/razorpay/razorpay-go"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// orderGroup collapses concurrent order-creation calls for the same
// obligation into a single gateway request within this process. The
// idempotency ledger covers the cross-process case.
var orderGroup singleflight.Group

func idempotencyRetention() time.Duration {
	hours := 72
	if v := os.Getenv("IDEMPOTENCY_RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	return time.Duration(hours) * time.Hour
}

// CreatePaymentOrder creates (or returns) the gateway order for the
// contract's next unpaid obligation. Calling it twice for the same
// obligation yields the same order; a new order is only minted when the
// previous one failed or expired.
func CreatePaymentOrder(c *gin.Context) {
	utils.LogInfo("CreatePaymentOrder called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	if contract.Status != models.ContractStatusSigned && contract.Status != models.ContractStatusActive {
		utils.LogError("Order creation rejected for contract %s in state %s", contract.ID, contract.Status)
		utils.Conflict(c, "Contract is not accepting payments", gin.H{"status": contract.Status})
		return
	}

	db := config.DB
	var completed int64
	if err := db.Model(&models.PaymentOrder{}).
		Where("contract_id = ? AND status = ?", contract.ID, models.OrderStatusCompleted).
		Count(&completed).Error; err != nil {
		utils.LogError("Failed to count settled orders for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to create payment order", nil)
		return
	}

	ordinal := int(completed)
	if ordinal >= contract.InstallmentCount() {
		utils.LogError("All obligations already settled for contract %s", contract.ID)
		utils.Conflict(c, "All obligations for this contract are already settled", nil)
		return
	}

	key := contract.ObligationKey(ordinal)
	v, err, _ := orderGroup.Do(key, func() (interface{}, error) {
		return ensureObligationOrder(db, contract, ordinal)
	})
	if err != nil {
		if errors.Is(err, utils.ErrProviderUnavailable) {
			utils.LogError("Gateway unavailable creating order for contract %s: %v", contract.ID, err)
			utils.ServiceUnavailable(c, "Payment gateway is unavailable, please retry", nil)
			return
		}
		if errors.Is(err, utils.ErrDuplicateObligation) {
			utils.Conflict(c, "This obligation is already settled", nil)
			return
		}
		utils.LogError("Failed to create payment order for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to create payment order", nil)
		return
	}
	order := v.(*models.PaymentOrder)

	utils.Success(c, "Payment order ready", gin.H{
		"order":              order,
		"razorpay_key":       os.Getenv("RAZORPAY_KEY"),
		"obligation_ordinal": order.ObligationOrdinal,
		"due_date":           contract.ObligationDueDate(order.ObligationOrdinal),
	})
}

// ensureObligationOrder returns the single authoritative gateway order for
// the obligation, creating one if none exists. The ledger row under the
// obligation key holds the winning gateway order id; FAILED and EXPIRED
// orders are superseded by a fresh one through a guarded ledger swap.
func ensureObligationOrder(db *gorm.DB, contract *models.Contract, ordinal int) (*models.PaymentOrder, error) {
	key := contract.ObligationKey(ordinal)
	amount, err := contract.ObligationAmount(ordinal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDuplicateObligation, err)
	}
	retention := idempotencyRetention()

	var existing models.IdempotencyRecord
	err = db.Where("key = ?", key).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		order, herr := orderForLedgerOutcome(db, existing.Outcome)
		if herr != nil {
			return nil, herr
		}
		switch order.Status {
		case models.OrderStatusCreated:
			utils.LogInfo("Reusing open order %s for obligation %s", order.RazorpayOrderID, key)
			return order, nil
		case models.OrderStatusCompleted:
			return nil, fmt.Errorf("%w: obligation %s", utils.ErrDuplicateObligation, key)
		}

		// Prior order failed or expired; mint a replacement and swap the
		// ledger entry. Losing the swap means someone else already did.
		replacement, herr := mintGatewayOrder(db, contract, ordinal, amount, key)
		if herr != nil {
			return nil, herr
		}
		swapped, herr := utils.ReplaceRecord(db, key, existing.Outcome, replacement.RazorpayOrderID, retention)
		if herr != nil {
			return nil, herr
		}
		if !swapped {
			expireOrder(db, replacement)
			return resolveLedgerWinner(db, key)
		}
		return replacement, nil
	}

	order, err := mintGatewayOrder(db, contract, ordinal, amount, key)
	if err != nil {
		return nil, err
	}
	recorded, wasNew, err := utils.RecordIfAbsent(db, key, order.RazorpayOrderID, retention)
	if err != nil {
		return nil, err
	}
	if !wasNew && recorded != order.RazorpayOrderID {
		expireOrder(db, order)
		return orderForLedgerOutcome(db, recorded)
	}
	return order, nil
}

func orderForLedgerOutcome(db *gorm.DB, razorpayOrderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := db.Where("razorpay_order_id = ?", razorpayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func resolveLedgerWinner(db *gorm.DB, key string) (*models.PaymentOrder, error) {
	var record models.IdempotencyRecord
	if err := db.Where("key = ?", key).First(&record).Error; err != nil {
		return nil, err
	}
	return orderForLedgerOutcome(db, record.Outcome)
}

func expireOrder(db *gorm.DB, order *models.PaymentOrder) {
	if err := db.Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusCreated).
		Update("status", models.OrderStatusExpired).Error; err != nil {
		utils.LogError("Failed to expire superseded order %s: %v", order.RazorpayOrderID, err)
	}
}

// mintGatewayOrder creates the order at the gateway and persists the local
// row in CREATED state.
func mintGatewayOrder(db *gorm.DB, contract *models.Contract, ordinal int, amount float64, receipt string) (*models.PaymentOrder, error) {
	client := razorpay.NewClient(os.Getenv("RAZORPAY_KEY"), os.Getenv("RAZORPAY_SECRET"))
	data := map[string]interface{}{
		"amount":   int(math.Round(amount * 100)),
		"currency": "INR",
		"receipt":  receipt,
		"notes": map[string]interface{}{
			"contract_id": contract.ID.String(),
			"ordinal":     ordinal,
		},
	}

	body, err := client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrProviderUnavailable, err)
	}
	razorpayOrderID, ok := body["id"].(string)
	if !ok || razorpayOrderID == "" {
		return nil, fmt.Errorf("%w: gateway response missing order id", utils.ErrProviderUnavailable)
	}

	order := models.PaymentOrder{
		ContractID:        contract.ID,
		ObligationOrdinal: ordinal,
		RazorpayOrderID:   razorpayOrderID,
		Amount:            amount,
		Currency:          "INR",
		Status:            models.OrderStatusCreated,
	}
	if err := db.Create(&order).Error; err != nil {
		return nil, err
	}
	utils.LogInfo("Created gateway order %s for contract %s obligation %d, amount %.2f",
		razorpayOrderID, contract.ID, ordinal, amount)
	return &order, nil
}

// VerifyPayment handles the checkout callback from the payer's browser. The
// signature covers "orderId|paymentId" under the key secret; an invalid
// signature is rejected outright with no state change.
func VerifyPayment(c *gin.Context) {
	utils.LogInfo("VerifyPayment called")

	var req struct {
		RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
		RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
		RazorpaySignature string `json:"razorpay_signature" binding:"required"`
		Method            string `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid payment verification request: %v", err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	if !utils.VerifyCheckoutSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature, os.Getenv("RAZORPAY_SECRET")) {
		utils.LogError("%v for order %s, payment %s, possible tamper",
			utils.ErrSignatureInvalid, req.RazorpayOrderID, req.RazorpayPaymentID)
		utils.BadRequest(c, "Payment verification failed", nil)
		return
	}

	result, err := utils.ApplyVerifiedPayment(config.DB, req.RazorpayOrderID, req.RazorpayPaymentID,
		req.RazorpaySignature, req.Method, idempotencyRetention())
	if err != nil {
		respondPaymentError(c, req.RazorpayOrderID, err)
		return
	}

	if !result.Replayed {
		recordPaymentSideEffects(result)
	}

	utils.Success(c, "Payment verified", gin.H{
		"contract": result.Contract,
		"order":    result.Order,
		"payment":  result.Payment,
		"replayed": result.Replayed,
	})
}

func respondPaymentError(c *gin.Context, razorpayOrderID string, err error) {
	utils.LogError("Payment application failed for order %s: %v", razorpayOrderID, err)
	switch {
	case errors.Is(err, utils.ErrConflictingPayment):
		utils.Conflict(c, "Order already settled by a different payment", nil)
	case errors.Is(err, utils.ErrInvalidContractState):
		utils.Conflict(c, "Order is not open for payment", nil)
	default:
		if appErr := utils.GetAppError(err); appErr != nil && appErr.Code == 404 {
			utils.NotFound(c, "Payment order not found")
			return
		}
		utils.InternalServerError(c, "Failed to record payment", nil)
	}
}

// recordPaymentSideEffects emits the audit entry and the payer receipt for a
// freshly captured payment. Best effort, never blocks the response.
func recordPaymentSideEffects(result *utils.VerifiedPaymentResult) {
	db := config.DB
	contract := result.Contract

	utils.RecordAuditEventAsync(db, models.AuditPaymentCompleted, contract.ID, "Contract", contract.PayerID, map[string]interface{}{
		"razorpayOrderId":   result.Order.RazorpayOrderID,
		"razorpayPaymentId": result.Payment.RazorpayPaymentID,
		"amount":            result.Order.Amount,
		"totalPaidAmount":   contract.TotalPaidAmount,
		"paymentStatus":     contract.PaymentStatus,
	})

	go func() {
		var payer models.Payer
		if err := db.First(&payer, "id = ?", contract.PayerID).Error; err != nil {
			return
		}
		if err := utils.SendPaymentReceiptEmail(payer.Email, contract.ID.String(), result.Order.Amount, contract.TotalPaidAmount); err != nil {
			utils.LogError("Failed to send receipt for contract %s: %v", contract.ID, err)
		}
	}()
}
