package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string

	RazorpayKey           string
	RazorpaySecret        string
	RazorpayWebhookSecret string

	ESignBaseURL       string
	ESignAPIKey        string
	ESignWebhookSecret string

	SchedulerToken string

	// IdempotencyRetentionHours must exceed the gateway's documented
	// webhook retry window.
	IdempotencyRetentionHours int
	GracePeriodDays           int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		return nil, fmt.Errorf("error loading .env file: %v", err)
	}

	config := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Port:       os.Getenv("PORT"),
		Env:        os.Getenv("ENV"),

		RazorpayKey:           os.Getenv("RAZORPAY_KEY"),
		RazorpaySecret:        os.Getenv("RAZORPAY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		ESignBaseURL:       os.Getenv("ESIGN_BASE_URL"),
		ESignAPIKey:        os.Getenv("ESIGN_API_KEY"),
		ESignWebhookSecret: os.Getenv("ESIGN_WEBHOOK_SECRET"),

		SchedulerToken: os.Getenv("SCHEDULER_TOKEN"),

		IdempotencyRetentionHours: envInt("IDEMPOTENCY_RETENTION_HOURS", 72),
		GracePeriodDays:           envInt("GRACE_PERIOD_DAYS", 7),
	}

	return config, nil
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
