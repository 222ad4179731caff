package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Payer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `gorm:"uniqueIndex" json:"email"`
	Phone      string    `json:"phone"`
	Password   string    `json:"-"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Payer) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
