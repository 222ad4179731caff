package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
	"gorm.io/gorm"
)

// InitiateESign sends the contract document for electronic signature and
// moves the contract from DRAFT to PENDING_ESIGN
func InitiateESign(c *gin.Context) {
	utils.LogInfo("InitiateESign called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	if contract.Status != models.ContractStatusDraft {
		utils.LogError("eSign initiation rejected for contract %s in state %s", contract.ID, contract.Status)
		utils.Conflict(c, "Contract can only be sent for signing from DRAFT", gin.H{"status": contract.Status})
		return
	}
	if contract.Sha256Hash == "" {
		utils.LogError("Contract %s has no document hash", contract.ID)
		utils.Conflict(c, "Contract document is not ready for signing", nil)
		return
	}

	db := config.DB
	var payer models.Payer
	if err := db.First(&payer, "id = ?", contract.PayerID).Error; err != nil {
		utils.LogError("Payer not found for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to initiate signing", nil)
		return
	}

	client := utils.NewESignClient()
	result, err := client.Initiate(c.Request.Context(), contract.ID.String(), payer.FullName, payer.Email, contract.Sha256Hash)
	if err != nil {
		if errors.Is(err, utils.ErrProviderUnavailable) {
			// Contract stays in DRAFT; the merchant can retry.
			utils.LogError("eSign provider unavailable for contract %s: %v", contract.ID, err)
			utils.ServiceUnavailable(c, "Signing provider is unavailable, please retry", nil)
			return
		}
		utils.LogError("eSign initiation failed for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to initiate signing", err.Error())
		return
	}

	updated, err := utils.ApplyContractTransition(db, contract.ID, models.EventESignInitiated, map[string]interface{}{
		"e_sign_document_id": result.DocumentID,
	})
	if err != nil {
		utils.LogError("Failed to transition contract %s after eSign initiation: %v", contract.ID, err)
		utils.Conflict(c, "Contract state changed during signing initiation", nil)
		return
	}

	utils.Success(c, "Signing initiated", gin.H{
		"contract":    updated,
		"document_id": result.DocumentID,
		"signing_url": result.SigningURL,
	})
}

type esignWebhookPayload struct {
	DocumentID   string `json:"document_id"`
	Event        string `json:"event"`
	SignedPdfURL string `json:"signed_pdf_url"`
	SignedAt     string `json:"signed_at"`
}

// ESignWebhook receives signing outcome callbacks from the eSign provider.
// Failures here are absorbed: the response is always 200 so the provider
// cannot probe internal state through status codes, and re-delivery of a
// processed event is a no-op.
func ESignWebhook(c *gin.Context) {
	utils.LogInfo("ESignWebhook called")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.LogError("Failed to read eSign webhook body: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	signature := c.GetHeader("X-ESign-Signature")
	if !utils.VerifySignature(body, signature, os.Getenv("ESIGN_WEBHOOK_SECRET")) {
		utils.LogError("eSign webhook dropped: %v", utils.ErrSignatureInvalid)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	var payload esignWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.DocumentID == "" {
		utils.LogError("Malformed eSign webhook payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	db := config.DB
	var contract models.Contract
	if err := db.Where("e_sign_document_id = ?", payload.DocumentID).First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.LogError("eSign webhook for unknown document: %s", payload.DocumentID)
		} else {
			utils.LogError("eSign webhook lookup failed for document %s: %v", payload.DocumentID, err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	switch payload.Event {
	case "document.signed":
		handleDocumentSigned(db, &contract, &payload)
	case "document.declined", "document.expired":
		handleDocumentDeclined(db, &contract, payload.Event)
	default:
		utils.LogInfo("Ignoring eSign webhook event %s for contract %s", payload.Event, contract.ID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleDocumentSigned(db *gorm.DB, contract *models.Contract, payload *esignWebhookPayload) {
	signedAt := time.Now()
	if t, err := time.Parse(time.RFC3339, payload.SignedAt); err == nil {
		signedAt = t
	}

	updated, err := utils.ApplyContractTransition(db, contract.ID, models.EventESignCompleted, map[string]interface{}{
		"signed_pdf_url": payload.SignedPdfURL,
		"signed_at":      signedAt,
	})
	if err != nil {
		utils.LogError("Failed to mark contract %s signed: %v", contract.ID, err)
		return
	}
	utils.LogInfo("Contract %s signed via document %s", contract.ID, payload.DocumentID)

	utils.RecordAuditEventAsync(db, models.AuditContractSigned, contract.ID, "Contract", contract.PayerID, map[string]interface{}{
		"documentId": payload.DocumentID,
		"signedAt":   signedAt,
		"status":     updated.Status,
	})

	go func() {
		var merchant models.Merchant
		var payer models.Payer
		if err := db.First(&merchant, "id = ?", contract.MerchantID).Error; err == nil {
			if err := utils.SendContractSignedEmail(merchant.Email, contract.ID.String(), contract.PrincipalAmount); err != nil {
				utils.LogError("Failed to send signed email to merchant %s: %v", merchant.ID, err)
			}
		}
		if err := db.First(&payer, "id = ?", contract.PayerID).Error; err == nil {
			if err := utils.SendContractSignedEmail(payer.Email, contract.ID.String(), contract.PrincipalAmount); err != nil {
				utils.LogError("Failed to send signed email to payer %s: %v", payer.ID, err)
			}
		}
	}()
}

func handleDocumentDeclined(db *gorm.DB, contract *models.Contract, event string) {
	updated, err := utils.ApplyContractTransition(db, contract.ID, models.EventESignDeclined, nil)
	if err != nil {
		utils.LogError("Failed to cancel contract %s after %s: %v", contract.ID, event, err)
		return
	}
	utils.LogInfo("Contract %s cancelled after %s", contract.ID, event)

	utils.RecordAuditEventAsync(db, models.AuditContractCancelled, contract.ID, "Contract", contract.PayerID, map[string]interface{}{
		"reason": event,
		"status": updated.Status,
	})
}
