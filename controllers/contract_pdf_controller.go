package controllers

import (
	"bytes"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
)

// GenerateContractPDF renders the contract agreement document. The bytes are
// hashed at creation time and the hash is what gets signed, so rendering must
// stay deterministic for a given contract.
func GenerateContractPDF(contract *models.Contract, merchant *models.Merchant, payer *models.Payer) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(contract.CreatedAt)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(190, 10, "LegalPay Payment Agreement")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(190, 6, fmt.Sprintf("Contract ID: %s", contract.ID))
	pdf.Ln(6)
	pdf.Cell(190, 6, fmt.Sprintf("Date: %s", contract.CreatedAt.Format("02 Jan 2006")))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, "Parties")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(190, 6, fmt.Sprintf("Merchant: %s (%s)", merchant.BusinessName, merchant.Email))
	pdf.Ln(6)
	pdf.Cell(190, 6, fmt.Sprintf("Payer: %s (%s)", payer.FullName, payer.Email))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, "Payment Terms")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)

	rows := [][2]string{
		{"Principal Amount", fmt.Sprintf("INR %.2f", contract.PrincipalAmount)},
		{"Interest Rate", fmt.Sprintf("%.2f%% p.a.", contract.InterestRate)},
		{"Payment Type", contract.PaymentType},
		{"Start Date", contract.StartDate.Format("02 Jan 2006")},
		{"End Date", contract.EndDate.Format("02 Jan 2006")},
	}
	if contract.PaymentType == models.PaymentTypeEMI {
		rows = append(rows,
			[2]string{"Payment Frequency", contract.PaymentFrequency},
			[2]string{"Installments", fmt.Sprintf("%d", contract.InstallmentCount())},
			[2]string{"Installment Amount", fmt.Sprintf("INR %.2f", contract.InstallmentAmount())},
		)
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(60, 7, row[0])
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(130, 7, row[1])
		pdf.Ln(7)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, "Terms and Conditions")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(190, 5, "The payer agrees to remit the amounts above according to the schedule stated. "+
		"Installments become due at the start of each period. An installment not received within the "+
		"grace period after its due date constitutes a default under this agreement. This document is "+
		"executed electronically; the SHA-256 fingerprint of this file is recorded at creation and "+
		"bound to the electronic signature.", "", "L", false)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(95, 6, "_______________________")
	pdf.Cell(95, 6, "_______________________")
	pdf.Ln(6)
	pdf.Cell(95, 6, "Merchant Signature")
	pdf.Cell(95, 6, "Payer Signature")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render contract PDF: %v", err)
	}
	return buf.Bytes(), nil
}

// DownloadContractPDF streams the contract agreement document to a party
func DownloadContractPDF(c *gin.Context) {
	utils.LogInfo("DownloadContractPDF called")

	contract, ok := loadContractForParty(c)
	if !ok {
		return
	}

	db := config.DB
	var merchant models.Merchant
	var payer models.Payer
	if err := db.First(&merchant, "id = ?", contract.MerchantID).Error; err != nil {
		utils.LogError("Merchant not found for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to generate document", nil)
		return
	}
	if err := db.First(&payer, "id = ?", contract.PayerID).Error; err != nil {
		utils.LogError("Payer not found for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to generate document", nil)
		return
	}

	pdfBytes, err := GenerateContractPDF(contract, &merchant, &payer)
	if err != nil {
		utils.LogError("Failed to generate PDF for contract %s: %v", contract.ID, err)
		utils.InternalServerError(c, "Failed to generate document", nil)
		return
	}

	filename := fmt.Sprintf("contract-%s.pdf", contract.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Type", "application/pdf")
	c.Data(200, "application/pdf", pdfBytes)
}
