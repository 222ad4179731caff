package utils

import (
	"time"

	"github.com/legalpay/legalpay/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordIfAbsent atomically records outcome under key. The unique index on
// the key column makes this a compare-and-set: the first writer wins and
// later writers observe the first-recorded outcome. Returns the outcome now
// held for the key and whether this call was the writer.
func RecordIfAbsent(db *gorm.DB, key, outcome string, retention time.Duration) (string, bool, error) {
	record := models.IdempotencyRecord{
		Key:       key,
		Outcome:   outcome,
		ExpiresAt: time.Now().Add(retention),
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&record)
	if res.Error != nil {
		return "", false, res.Error
	}
	if res.RowsAffected > 0 {
		return outcome, true, nil
	}

	// Lost the race, read back the first writer's outcome.
	var existing models.IdempotencyRecord
	if err := db.Where("key = ?", key).First(&existing).Error; err != nil {
		return "", false, err
	}
	return existing.Outcome, false, nil
}

// ReplaceRecord swaps the outcome held for key, guarded by the previous
// outcome. Used when a failed order is superseded by a fresh one for the
// same obligation; concurrent replacements collapse to a single winner.
func ReplaceRecord(db *gorm.DB, key, oldOutcome, newOutcome string, retention time.Duration) (bool, error) {
	res := db.Model(&models.IdempotencyRecord{}).
		Where("key = ? AND outcome = ?", key, oldOutcome).
		Updates(map[string]interface{}{
			"outcome":    newOutcome,
			"expires_at": time.Now().Add(retention),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PruneExpiredRecords deletes ledger rows past their retention window.
func PruneExpiredRecords(db *gorm.DB) (int64, error) {
	res := db.Where("expires_at < ?", time.Now()).Delete(&models.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
