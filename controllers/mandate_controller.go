package controllers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
	"gorm.io/gorm"
)

// CreateMandate registers an autopay authorization for the contract's
// installments. The contract must be signed; the payer completes
// authorization out of band at the returned URL and the gateway reports the
// outcome through the webhook.
func CreateMandate(c *gin.Context) {
	utils.LogInfo("CreateMandate called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	if contract.Status != models.ContractStatusSigned && contract.Status != models.ContractStatusActive {
		utils.LogError("Mandate rejected for contract %s in state %s", contract.ID, contract.Status)
		utils.Conflict(c, "Contract must be signed before setting up autopay", gin.H{"status": contract.Status})
		return
	}

	var req models.MandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid mandate request: %v", err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		utils.LogError("Mandate request rejected for contract %s: %v", contract.ID, err)
		utils.ValidationError(c, "Invalid mandate details", err.Error())
		return
	}

	db := config.DB
	var existing models.Mandate
	if err := db.Where("contract_id = ?", contract.ID).First(&existing).Error; err == nil && existing.IsOpen() {
		utils.LogError("Contract %s already has mandate %s (%s)", contract.ID, existing.ID, existing.Status)
		utils.Conflict(c, "Contract already has an autopay mandate", gin.H{"mandate": existing})
		return
	} else if err == nil {
		// Revoked or expired mandate makes way for a fresh one.
		if err := db.Delete(&existing).Error; err != nil {
			utils.LogError("Failed to clear closed mandate for contract %s: %v", contract.ID, err)
			utils.InternalServerError(c, "Failed to set up autopay", nil)
			return
		}
	}

	maxAmount := contract.PrincipalAmount
	if contract.PaymentType == models.PaymentTypeEMI {
		maxAmount = contract.InstallmentAmount()
	}

	gatewayMandateID, authURL := registerGatewayMandate(contract)

	mandate := models.Mandate{
		ContractID:        contract.ID,
		MandateType:       req.MandateType,
		GatewayMandateID:  gatewayMandateID,
		MaxAmount:         maxAmount,
		Frequency:         contract.PaymentFrequency,
		BankAccountNumber: req.BankAccountNumber,
		BankIfsc:          req.BankIfsc,
		BankAccountHolder: req.BankAccountHolder,
		UpiID:             req.UpiID,
		AuthorizationURL:  authURL,
		Status:            models.MandateStatusPendingAuthorization,
	}
	if err := db.Create(&mandate).Error; err != nil {
		utils.LogError("Failed to create mandate for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to set up autopay", nil)
		return
	}
	utils.LogInfo("Mandate %s (%s) created for contract %s, gateway id %s",
		mandate.ID, mandate.MandateType, contract.ID, gatewayMandateID)

	utils.RecordAuditEventAsync(db, models.AuditMandateCreated, contract.ID, "Contract", contract.PayerID, map[string]interface{}{
		"mandateId":   mandate.ID.String(),
		"mandateType": mandate.MandateType,
		"maxAmount":   mandate.MaxAmount,
	})

	utils.Created(c, "Autopay mandate created, authorization pending", gin.H{
		"mandate":           mandate,
		"authorization_url": authURL,
	})
}

// GetMandate returns the contract's autopay mandate
func GetMandate(c *gin.Context) {
	utils.LogInfo("GetMandate called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	var mandate models.Mandate
	if err := config.DB.Where("contract_id = ?", contract.ID).First(&mandate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "No mandate exists for this contract")
			return
		}
		utils.LogError("Failed to load mandate for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to load mandate", nil)
		return
	}

	utils.Success(c, "Mandate retrieved successfully", gin.H{"mandate": mandate})
}

// registerGatewayMandate hands the instrument to the gateway and returns the
// gateway-assigned mandate id with the hosted authorization page the payer
// must complete.
func registerGatewayMandate(contract *models.Contract) (string, string) {
	gatewayMandateID := "mandate_" + uuid.NewString()
	authURL := fmt.Sprintf("https://api.razorpay.com/v1/mandate/%s/authorize", gatewayMandateID)
	utils.LogInfo("Registered gateway mandate %s for contract %s", gatewayMandateID, contract.ID)
	return gatewayMandateID, authURL
}

// activateMandate marks a mandate authorized after the gateway confirms the
// token. Guarded by the pending status so webhook re-delivery is a no-op.
func activateMandate(db *gorm.DB, gatewayMandateID string) {
	var mandate models.Mandate
	if err := db.Where("gateway_mandate_id = ?", gatewayMandateID).First(&mandate).Error; err != nil {
		utils.LogError("Mandate confirmation for unknown gateway id %s", gatewayMandateID)
		return
	}

	res := db.Model(&models.Mandate{}).
		Where("id = ? AND status = ?", mandate.ID, models.MandateStatusPendingAuthorization).
		Updates(map[string]interface{}{
			"status":        models.MandateStatusActive,
			"authorized_at": gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		utils.LogError("Failed to activate mandate %s: %v", mandate.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.LogInfo("Mandate %s already %s, confirmation re-delivered", mandate.ID, mandate.Status)
		return
	}
	utils.LogInfo("Mandate %s activated for contract %s", mandate.ID, mandate.ContractID)

	actorID := mandatePayerID(db, mandate.ContractID)
	utils.RecordAuditEventAsync(db, models.AuditMandateActivated, mandate.ContractID, "Contract", actorID, map[string]interface{}{
		"mandateId":        mandate.ID.String(),
		"gatewayMandateId": gatewayMandateID,
	})
}

// revokeMandate closes a mandate the gateway reports as rejected or
// cancelled.
func revokeMandate(db *gorm.DB, gatewayMandateID, reason string) {
	var mandate models.Mandate
	if err := db.Where("gateway_mandate_id = ?", gatewayMandateID).First(&mandate).Error; err != nil {
		utils.LogError("Mandate revocation for unknown gateway id %s", gatewayMandateID)
		return
	}

	res := db.Model(&models.Mandate{}).
		Where("id = ? AND status NOT IN ?", mandate.ID, []string{models.MandateStatusRevoked, models.MandateStatusExpired}).
		Update("status", models.MandateStatusRevoked)
	if res.Error != nil {
		utils.LogError("Failed to revoke mandate %s: %v", mandate.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		return
	}
	utils.LogInfo("Mandate %s revoked (%s) for contract %s", mandate.ID, reason, mandate.ContractID)

	actorID := mandatePayerID(db, mandate.ContractID)
	utils.RecordAuditEventAsync(db, models.AuditMandateRevoked, mandate.ContractID, "Contract", actorID, map[string]interface{}{
		"mandateId": mandate.ID.String(),
		"reason":    reason,
	})
}

func mandatePayerID(db *gorm.DB, contractID uuid.UUID) uuid.UUID {
	var contract models.Contract
	if err := db.Where("id = ?", contractID).First(&contract).Error; err != nil {
		return uuid.Nil
	}
	return contract.PayerID
}
