package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/legalpay/legalpay/models"
	"gorm.io/gorm"
)

// RecordAuditEvent appends a hash-chained audit entry. Each entry's hash
// covers the previous entry's hash, so history cannot be rewritten without
// breaking the chain. Returns the new entry's hash, used as the contract's
// immutable audit anchor.
func RecordAuditEvent(db *gorm.DB, eventType string, entityID uuid.UUID, entityType string, actorID uuid.UUID, metadata map[string]interface{}) (string, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	var prev models.AuditLog
	prevHash := ""
	if err := db.Order("id DESC").First(&prev).Error; err == nil {
		prevHash = prev.EntryHash
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	material := fmt.Sprintf("%s|%s|%s|%s|%s|%s", prevHash, eventType, entityID, entityType, actorID, metadataJSON)
	sum := sha256.Sum256([]byte(material))
	entryHash := hex.EncodeToString(sum[:])

	entry := models.AuditLog{
		EventType:  eventType,
		EntityID:   entityID,
		EntityType: entityType,
		ActorID:    actorID,
		Metadata:   string(metadataJSON),
		PrevHash:   prevHash,
		EntryHash:  entryHash,
	}
	if err := db.Create(&entry).Error; err != nil {
		return "", err
	}
	return entryHash, nil
}

// RecordAuditEventAsync logs the event without blocking the caller. Audit
// anchoring is best effort; a failure is logged and never fails the
// operation that triggered it.
func RecordAuditEventAsync(db *gorm.DB, eventType string, entityID uuid.UUID, entityType string, actorID uuid.UUID, metadata map[string]interface{}) {
	go func() {
		hash, err := RecordAuditEvent(db, eventType, entityID, entityType, actorID, metadata)
		if err != nil {
			LogError("Audit logging failed for %s %s: %v", entityType, entityID, err)
			return
		}
		if entityType == "Contract" {
			if err := db.Model(&models.Contract{}).
				Where("id = ? AND audit_anchor_hash = ''", entityID).
				Update("audit_anchor_hash", hash).Error; err != nil {
				LogError("Failed to anchor audit hash on contract %s: %v", entityID, err)
			}
		}
	}()
}
