package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
)

type razorpayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Method           string `json:"method"`
				ErrorCode        string `json:"error_code"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Token struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"token"`
	} `json:"payload"`
}

// RazorpayWebhook processes gateway event notifications. The signature is an
// HMAC of the raw body under the webhook secret; a bad signature is logged
// and dropped with a 200 so callers cannot distinguish it from success.
// Re-delivery of a processed event is a no-op.
func RazorpayWebhook(c *gin.Context) {
	utils.LogInfo("RazorpayWebhook called")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.LogError("Failed to read webhook body: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if !utils.VerifySignature(body, signature, os.Getenv("RAZORPAY_WEBHOOK_SECRET")) {
		utils.LogError("Razorpay webhook dropped: %v", utils.ErrSignatureInvalid)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	var event razorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		utils.LogError("Malformed Razorpay webhook payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	entity := event.Payload.Payment.Entity
	switch event.Event {
	case "payment.captured":
		handlePaymentCaptured(signature, entity.OrderID, entity.ID, entity.Method)
	case "payment.failed":
		handlePaymentFailed(entity.OrderID, entity.ErrorCode, entity.ErrorDescription)
	case "token.confirmed":
		activateMandate(config.DB, event.Payload.Token.Entity.ID)
	case "token.rejected", "token.cancelled":
		revokeMandate(config.DB, event.Payload.Token.Entity.ID, event.Event)
	default:
		utils.LogInfo("Ignoring Razorpay webhook event %s", event.Event)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handlePaymentCaptured(signature, razorpayOrderID, razorpayPaymentID, method string) {
	if razorpayOrderID == "" || razorpayPaymentID == "" {
		utils.LogError("payment.captured event missing order or payment id")
		return
	}

	result, err := utils.ApplyVerifiedPayment(config.DB, razorpayOrderID, razorpayPaymentID,
		signature, method, idempotencyRetention())
	if err != nil {
		// Webhook-path failures are absorbed; the gateway will retry
		// transient ones and the ledger makes retries safe.
		if errors.Is(err, utils.ErrConflictingPayment) {
			utils.LogError("Conflicting payment %s for order %s", razorpayPaymentID, razorpayOrderID)
		} else {
			utils.LogError("Failed to apply captured payment %s for order %s: %v", razorpayPaymentID, razorpayOrderID, err)
		}
		return
	}
	if result.Replayed {
		utils.LogInfo("Replayed payment.captured for order %s, no state change", razorpayOrderID)
		return
	}
	utils.LogInfo("Captured payment %s for order %s, contract %s now %s",
		razorpayPaymentID, razorpayOrderID, result.Contract.ID, result.Contract.Status)

	recordPaymentSideEffects(result)
}

func handlePaymentFailed(razorpayOrderID, errorCode, errorDescription string) {
	if razorpayOrderID == "" {
		utils.LogError("payment.failed event missing order id")
		return
	}

	if err := utils.MarkOrderFailed(config.DB, razorpayOrderID, errorCode, errorDescription); err != nil {
		utils.LogError("Failed to mark order %s failed: %v", razorpayOrderID, err)
		return
	}
	utils.LogInfo("Order %s marked failed: %s", razorpayOrderID, errorCode)

	var order models.PaymentOrder
	if err := config.DB.Where("razorpay_order_id = ?", razorpayOrderID).First(&order).Error; err != nil {
		return
	}
	var contract models.Contract
	if err := config.DB.Where("id = ?", order.ContractID).First(&contract).Error; err != nil {
		return
	}
	utils.RecordAuditEventAsync(config.DB, models.AuditPaymentFailed, contract.ID, "Contract", contract.PayerID, map[string]interface{}{
		"razorpayOrderId": razorpayOrderID,
		"errorCode":       errorCode,
		"description":     errorDescription,
	})
}
