package utils

import (
	"context"
	"testing"

	"github.com/legalpay/legalpay/models"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB spins up a fresh Postgres container with the full schema and
// returns the connection. The container is terminated when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("legalpay_test"),
		tcpostgres.WithUsername("legalpay"),
		tcpostgres.WithPassword("legalpay"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to postgres: %s", err)
	}

	if err := db.AutoMigrate(
		&models.Merchant{},
		&models.Payer{},
		&models.Contract{},
		&models.Mandate{},
		&models.PaymentOrder{},
		&models.Payment{},
		&models.IdempotencyRecord{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %s", err)
	}

	return db
}
