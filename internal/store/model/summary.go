package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	VerificationPending       = "pending"
	VerificationHumanVerified = "HUMAN_VERIFIED"
)

type Summary struct {
	ID                 uuid.UUID            `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	RecordID           string               `gorm:"not null;type:VARCHAR(255);index"`
	Content            string               `gorm:"type:TEXT"`
	Format             string               `gorm:"type:VARCHAR(32)"`
	ProductMentions    *JSONField[[]string] `gorm:"column:product_mentions"`
	MarketTrends       *JSONField[[]string] `gorm:"column:market_trends"`
	IsCasual           bool                 `gorm:"not null;default:false"`
	VerificationStatus string               `gorm:"not null;type:VARCHAR(32)"`
	CreatedAt          time.Time            `gorm:"not null"`
}

type SummaryList []Summary

func (s Summary) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}
