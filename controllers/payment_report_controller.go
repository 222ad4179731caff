package controllers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
	"github.com/tealeg/xlsx"
)

// DownloadCollectionsReport exports the merchant's captured payments for the
// requested period as an Excel workbook
func DownloadCollectionsReport(c *gin.Context) {
	utils.LogInfo("DownloadCollectionsReport called")

	merchantVal, exists := c.Get("merchant")
	if !exists {
		utils.Unauthorized(c, "Merchant not found")
		return
	}
	merchant := merchantVal.(models.Merchant)

	now := time.Now()
	var since time.Time
	period := c.DefaultQuery("period", "month")
	switch period {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "year":
		since = now.AddDate(-1, 0, 0)
	default:
		utils.BadRequest(c, "Invalid period, use day, week, month or year", nil)
		return
	}

	db := config.DB
	var contracts []models.Contract
	if err := db.Where("merchant_id = ?", merchant.ID).Find(&contracts).Error; err != nil {
		utils.LogError("Failed to load contracts for merchant %s: %v", merchant.ID, err)
		utils.InternalServerError(c, "Failed to generate report", nil)
		return
	}
	contractByID := make(map[uuid.UUID]models.Contract, len(contracts))
	contractIDs := make([]uuid.UUID, 0, len(contracts))
	for _, ct := range contracts {
		contractByID[ct.ID] = ct
		contractIDs = append(contractIDs, ct.ID)
	}

	var orders []models.PaymentOrder
	if len(contractIDs) > 0 {
		if err := db.Where("contract_id IN ?", contractIDs).Find(&orders).Error; err != nil {
			utils.LogError("Failed to load orders for merchant %s: %v", merchant.ID, err)
			utils.InternalServerError(c, "Failed to generate report", nil)
			return
		}
	}
	orderByID := make(map[uint]models.PaymentOrder, len(orders))
	orderIDs := make([]uint, 0, len(orders))
	for _, o := range orders {
		orderByID[o.ID] = o
		orderIDs = append(orderIDs, o.ID)
	}

	var payments []models.Payment
	if len(orderIDs) > 0 {
		if err := db.Where("order_id IN ? AND status = ? AND captured_at >= ?",
			orderIDs, models.PaymentRecordCaptured, since).
			Order("captured_at ASC").
			Find(&payments).Error; err != nil {
			utils.LogError("Failed to load payments for merchant %s: %v", merchant.ID, err)
			utils.InternalServerError(c, "Failed to generate report", nil)
			return
		}
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Collections")
	if err != nil {
		utils.LogError("Failed to create report sheet: %v", err)
		utils.InternalServerError(c, "Failed to generate report", nil)
		return
	}

	header := sheet.AddRow()
	for _, title := range []string{"Captured At", "Contract ID", "Payer ID", "Order ID", "Payment ID", "Installment", "Method", "Amount (INR)"} {
		cell := header.AddCell()
		cell.Value = title
	}

	var total float64
	for _, p := range payments {
		order := orderByID[p.OrderID]
		contract := contractByID[order.ContractID]

		row := sheet.AddRow()
		capturedAt := ""
		if p.CapturedAt != nil {
			capturedAt = p.CapturedAt.Format("2006-01-02 15:04:05")
		}
		row.AddCell().Value = capturedAt
		row.AddCell().Value = contract.ID.String()
		row.AddCell().Value = contract.PayerID.String()
		row.AddCell().Value = p.RazorpayOrderID
		row.AddCell().Value = p.RazorpayPaymentID
		row.AddCell().Value = fmt.Sprintf("%d of %d", order.ObligationOrdinal+1, contract.InstallmentCount())
		row.AddCell().Value = p.Method
		row.AddCell().SetFloat(p.Amount)
		total += p.Amount
	}

	sheet.AddRow()
	summary := sheet.AddRow()
	summary.AddCell().Value = "Total Collected"
	for i := 0; i < 6; i++ {
		summary.AddCell()
	}
	summary.AddCell().SetFloat(total)

	utils.LogInfo("Collections report for merchant %s: %d payments, total %.2f", merchant.ID, len(payments), total)

	filename := fmt.Sprintf("collections-%s-%s.xlsx", period, now.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.Writer); err != nil {
		utils.LogError("Failed to write report: %v", err)
	}
}
