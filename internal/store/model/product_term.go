package model

import (
	"time"

	"github.com/google/uuid"
)

// ProductTerm is a known product name fed to summary generation.
type ProductTerm struct {
	ID          uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	Term        string    `gorm:"not null;uniqueIndex"`
	Description *string
	Category    *string
	CreatedAt   time.Time `gorm:"not null"`
}

type ProductTermList []ProductTerm
