package controllers

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
	"gorm.io/gorm"
)

func gracePeriod() time.Duration {
	days := 7
	if v := os.Getenv("GRACE_PERIOD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

// SweepContracts is invoked periodically by the external scheduler. It
// defaults ACTIVE contracts whose next installment stayed unpaid past the
// grace window and prunes expired idempotency ledger rows. The sweep is safe
// to run concurrently: each default goes through the guarded transition, so
// overlapping runs cannot double-default a contract.
func SweepContracts(c *gin.Context) {
	utils.LogInfo("SweepContracts called")

	db := config.DB
	now := time.Now()
	grace := gracePeriod()

	var active []models.Contract
	if err := db.Where("status = ?", models.ContractStatusActive).Find(&active).Error; err != nil {
		utils.LogError("Failed to load active contracts: %v", err)
		utils.InternalServerError(c, "Sweep failed", nil)
		return
	}

	defaulted := 0
	for i := range active {
		contract := &active[i]
		if sweepContract(db, contract, now, grace) {
			defaulted++
		}
	}

	pruned, err := utils.PruneExpiredRecords(db)
	if err != nil {
		utils.LogError("Failed to prune idempotency records: %v", err)
	}

	utils.LogInfo("Sweep finished: %d contracts checked, %d defaulted, %d ledger rows pruned",
		len(active), defaulted, pruned)
	utils.Success(c, "Sweep completed", gin.H{
		"checked":   len(active),
		"defaulted": defaulted,
		"pruned":    pruned,
	})
}

// sweepContract defaults a single contract if its next obligation is overdue
// past the grace window. Returns true when the contract was defaulted.
func sweepContract(db *gorm.DB, contract *models.Contract, now time.Time, grace time.Duration) bool {
	var completed int64
	if err := db.Model(&models.PaymentOrder{}).
		Where("contract_id = ? AND status = ?", contract.ID, models.OrderStatusCompleted).
		Count(&completed).Error; err != nil {
		utils.LogError("Sweep: failed to count settled orders for contract %s: %v", contract.ID, err)
		return false
	}

	ordinal := int(completed)
	if ordinal >= contract.InstallmentCount() {
		// Fully collected; the payment path settles it, nothing to default.
		return false
	}

	dueDate := contract.ObligationDueDate(ordinal)
	if !now.After(dueDate.Add(grace)) {
		return false
	}

	_, err := utils.ApplyContractTransition(db, contract.ID, models.EventGraceExpired, nil)
	if err != nil {
		if errors.Is(err, utils.ErrIllegalTransition) {
			// Contract moved on between the query and the transition.
			return false
		}
		utils.LogError("Sweep: failed to default contract %s: %v", contract.ID, err)
		return false
	}
	utils.LogInfo("Contract %s defaulted: obligation %d due %s unpaid past grace window",
		contract.ID, ordinal, dueDate.Format("2006-01-02"))

	utils.RecordAuditEventAsync(db, models.AuditContractDefaulted, contract.ID, "Contract", contract.MerchantID, map[string]interface{}{
		"obligationOrdinal": ordinal,
		"dueDate":           dueDate,
		"totalPaidAmount":   contract.TotalPaidAmount,
	})

	go func(contractID string, payerID uuid.UUID) {
		var payer models.Payer
		if err := db.First(&payer, "id = ?", payerID).Error; err != nil {
			return
		}
		if err := utils.SendContractDefaultedEmail(payer.Email, contractID); err != nil {
			utils.LogError("Failed to send default notice for contract %s: %v", contractID, err)
		}
	}(contract.ID.String(), contract.PayerID)

	return true
}
