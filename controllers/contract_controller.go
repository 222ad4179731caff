package controllers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
)

// CreateContract creates a new contract in DRAFT state
func CreateContract(c *gin.Context) {
	utils.LogInfo("CreateContract called")
	merchantVal, exists := c.Get("merchant")
	if !exists {
		utils.LogError("Merchant not found in context")
		utils.Unauthorized(c, "Merchant not found")
		return
	}
	merchant := merchantVal.(models.Merchant)

	var req struct {
		PayerID          string  `json:"payer_id" binding:"required"`
		PrincipalAmount  float64 `json:"principal_amount" binding:"required"`
		InterestRate     float64 `json:"interest_rate"`
		PaymentType      string  `json:"payment_type" binding:"required"`
		PaymentFrequency string  `json:"payment_frequency"`
		StartDate        string  `json:"start_date" binding:"required"`
		EndDate          string  `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid contract creation request: %v", err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		utils.LogError("Invalid payer ID: %s", req.PayerID)
		utils.BadRequest(c, "Invalid payer ID", nil)
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		utils.LogError("Invalid start date: %s", req.StartDate)
		utils.ValidationError(c, "Invalid contract terms", "start_date must be YYYY-MM-DD")
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		utils.LogError("Invalid end date: %s", req.EndDate)
		utils.ValidationError(c, "Invalid contract terms", "end_date must be YYYY-MM-DD")
		return
	}

	terms := models.ContractTerms{
		PrincipalAmount:  req.PrincipalAmount,
		InterestRate:     req.InterestRate,
		PaymentType:      req.PaymentType,
		PaymentFrequency: req.PaymentFrequency,
		StartDate:        startDate,
		EndDate:          endDate,
	}
	// Nothing is persisted for rejected terms.
	if err := terms.Validate(); err != nil {
		utils.LogError("Contract terms rejected for merchant %s: %v", merchant.ID, err)
		utils.ValidationError(c, "Invalid contract terms", err.Error())
		return
	}

	db := config.DB
	var payer models.Payer
	if err := db.First(&payer, "id = ?", payerID).Error; err != nil {
		utils.LogError("Payer not found: %s", payerID)
		utils.NotFound(c, "Payer not found")
		return
	}

	contract := models.Contract{
		MerchantID:       merchant.ID,
		PayerID:          payer.ID,
		PrincipalAmount:  terms.PrincipalAmount,
		InterestRate:     terms.InterestRate,
		PaymentType:      terms.PaymentType,
		PaymentFrequency: terms.PaymentFrequency,
		StartDate:        terms.StartDate,
		EndDate:          terms.EndDate,
		Status:           models.ContractStatusDraft,
		PaymentStatus:    models.PaymentStatusPending,
	}
	if contract.PaymentType == models.PaymentTypeEMI {
		contract.EMIAmount = contract.InstallmentAmount()
	}

	if err := db.Create(&contract).Error; err != nil {
		utils.LogError("Failed to create contract for merchant %s: %v", merchant.ID, err)
		utils.InternalServerError(c, "Failed to create contract", err.Error())
		return
	}
	utils.LogInfo("Created %s contract %s for merchant %s, payer %s",
		contract.PaymentType, contract.ID, merchant.ID, payer.ID)

	// Render the contract document once to pin its hash before signing.
	pdfBytes, err := GenerateContractPDF(&contract, &merchant, &payer)
	if err != nil {
		utils.LogError("Failed to generate contract PDF for %s: %v", contract.ID, err)
	} else {
		sum := sha256.Sum256(pdfBytes)
		contract.Sha256Hash = hex.EncodeToString(sum[:])
		contract.PdfURL = fmt.Sprintf("/v1/contracts/%s/pdf", contract.ID)
		if err := db.Model(&contract).Updates(map[string]interface{}{
			"sha256_hash": contract.Sha256Hash,
			"pdf_url":     contract.PdfURL,
		}).Error; err != nil {
			utils.LogError("Failed to store document hash for contract %s: %v", contract.ID, err)
		}
	}

	utils.RecordAuditEventAsync(db, models.AuditContractCreated, contract.ID, "Contract", merchant.ID, map[string]interface{}{
		"merchantId":  merchant.ID.String(),
		"payerId":     payer.ID.String(),
		"amount":      contract.PrincipalAmount,
		"paymentType": contract.PaymentType,
		"status":      contract.Status,
	})

	utils.Created(c, "Contract created successfully", gin.H{"contract": contract})
}

// GetContract returns a single contract visible to the requesting party
func GetContract(c *gin.Context) {
	utils.LogInfo("GetContract called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	utils.Success(c, "Contract retrieved successfully", gin.H{
		"contract":          contract,
		"installment_count": contract.InstallmentCount(),
	})
}

// ListContracts lists contracts for the authenticated merchant or payer
func ListContracts(c *gin.Context) {
	utils.LogInfo("ListContracts called")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	db := config.DB
	query := db.Model(&models.Contract{})
	if merchantVal, exists := c.Get("merchant"); exists {
		query = query.Where("merchant_id = ?", merchantVal.(models.Merchant).ID)
	} else if payerVal, exists := c.Get("payer"); exists {
		query = query.Where("payer_id = ?", payerVal.(models.Payer).ID)
	} else {
		utils.Unauthorized(c, "Account not found")
		return
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.LogError("Failed to count contracts: %v", err)
		utils.InternalServerError(c, "Failed to list contracts", err.Error())
		return
	}

	var contracts []models.Contract
	if err := query.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&contracts).Error; err != nil {
		utils.LogError("Failed to list contracts: %v", err)
		utils.InternalServerError(c, "Failed to list contracts", err.Error())
		return
	}

	utils.SuccessWithPagination(c, "Contracts retrieved successfully", contracts, total, page, perPage)
}

// CancelContract cancels a contract administratively. Only permitted before
// signing; the transition table rejects anything at or past SIGNED.
func CancelContract(c *gin.Context) {
	utils.LogInfo("CancelContract called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	updated, err := utils.ApplyContractTransition(config.DB, contract.ID, models.EventAdminCancel, nil)
	if err != nil {
		if errors.Is(err, utils.ErrIllegalTransition) {
			utils.LogError("Cancel rejected for contract %s in state %s", contract.ID, contract.Status)
			utils.Conflict(c, "Contract can only be cancelled before signing", nil)
			return
		}
		utils.LogError("Failed to cancel contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to cancel contract", err.Error())
		return
	}
	utils.LogInfo("Contract %s cancelled", contract.ID)

	utils.RecordAuditEventAsync(config.DB, models.AuditContractCancelled, contract.ID, "Contract", contract.MerchantID, map[string]interface{}{
		"status": updated.Status,
	})

	utils.Success(c, "Contract cancelled", gin.H{"contract": updated})
}

// ListContractPayments returns payment history for a contract
func ListContractPayments(c *gin.Context) {
	utils.LogInfo("ListContractPayments called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	db := config.DB
	var orders []models.PaymentOrder
	if err := db.Where("contract_id = ?", contract.ID).Order("created_at ASC").Find(&orders).Error; err != nil {
		utils.LogError("Failed to list orders for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to list payments", err.Error())
		return
	}

	orderIDs := make([]uint, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}
	var payments []models.Payment
	if len(orderIDs) > 0 {
		if err := db.Where("order_id IN ?", orderIDs).Order("created_at ASC").Find(&payments).Error; err != nil {
			utils.LogError("Failed to list payments for contract %s: %v", contract.ID, err)
			utils.InternalServerError(c, "Failed to list payments", err.Error())
			return
		}
	}

	utils.Success(c, "Payments retrieved successfully", gin.H{
		"orders":            orders,
		"payments":          payments,
		"total_paid_amount": contract.TotalPaidAmount,
		"payment_status":    contract.PaymentStatus,
	})
}

// loadContractForParty fetches the contract in the :id param and checks the
// requesting merchant or payer is a party to it. Writes the error response
// itself and returns ok=false on failure.
func loadContractForParty(c *gin.Context) (*models.Contract, bool) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.LogError("Invalid contract ID: %s", c.Param("id"))
		utils.BadRequest(c, "Invalid contract ID", nil)
		return nil, false
	}

	var contract models.Contract
	if err := config.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		utils.LogError("Contract not found: %s", contractID)
		utils.NotFound(c, "Contract not found")
		return nil, false
	}

	if merchantVal, exists := c.Get("merchant"); exists {
		if merchantVal.(models.Merchant).ID == contract.MerchantID {
			return &contract, true
		}
	}
	if payerVal, exists := c.Get("payer"); exists {
		if payerVal.(models.Payer).ID == contract.PayerID {
			return &contract, true
		}
	}

	utils.LogError("Access denied to contract %s", contractID)
	utils.Forbidden(c, "You are not a party to this contract")
	return nil, false
}
