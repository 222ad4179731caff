package utils

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// EmailConfig holds email configuration
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func emailConfigFromEnv() EmailConfig {
	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		port = p
	}
	return EmailConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

// SendEmail sends an HTML email using SMTP
func SendEmail(to, subject, body string) error {
	config := emailConfigFromEnv()

	m := gomail.NewMessage()
	m.SetHeader("From", config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}

// SendContractSignedEmail notifies both parties that the contract was signed
func SendContractSignedEmail(to, contractID string, principal float64) error {
	subject := "Your LegalPay Contract Has Been Signed"
	body := fmt.Sprintf(`
		<h2>Contract Signed</h2>
		<p>Contract <strong>%s</strong> has been electronically signed by all parties.</p>
		<p>Principal amount: <strong>₹%.2f</strong></p>
		<p>You can view the signed contract any time from your LegalPay dashboard:</p>
		<p><a href="%s/contracts/%s">View Contract</a></p>
	`, contractID, principal, os.Getenv("FRONTEND_URL"), contractID)

	return SendEmail(to, subject, body)
}

// SendPaymentReceiptEmail confirms a captured payment to the payer
func SendPaymentReceiptEmail(to, contractID string, amount, totalPaid float64) error {
	subject := "Payment Received - LegalPay"
	body := fmt.Sprintf(`
		<h2>Payment Received</h2>
		<p>We received your payment of <strong>₹%.2f</strong> towards contract <strong>%s</strong>.</p>
		<p>Total paid to date: <strong>₹%.2f</strong></p>
		<p>Thank you for paying on time.</p>
	`, amount, contractID, totalPaid)

	return SendEmail(to, subject, body)
}

// SendContractDefaultedEmail warns the payer that the contract was marked
// defaulted after the grace window lapsed
func SendContractDefaultedEmail(to, contractID string) error {
	subject := "Action Required: Contract Marked as Defaulted"
	body := fmt.Sprintf(`
		<h2>Contract Defaulted</h2>
		<p>Contract <strong>%s</strong> has been marked as defaulted because a scheduled
		installment was not received within the grace period.</p>
		<p>Please contact the merchant to resolve the outstanding amount.</p>
	`, contractID)

	return SendEmail(to, subject, body)
}
