package model

import (
	"encoding/json"
	"time"
)

// RecordKind selects the upload and processing policy of a record.
type RecordKind string

const (
	KindTranscription RecordKind = "transcription"
	KindDocument      RecordKind = "document"
)

func (k RecordKind) Valid() bool {
	return k == KindTranscription || k == KindDocument
}

// Collection is the plural name used in api paths.
func (k RecordKind) Collection() string {
	switch k {
	case KindTranscription:
		return "transcriptions"
	case KindDocument:
		return "documents"
	}
	return string(k)
}

func KindFromCollection(name string) (RecordKind, bool) {
	switch name {
	case "transcriptions":
		return KindTranscription, true
	case "documents":
		return KindDocument, true
	}
	return "", false
}

// Record is a file moving through upload and processing.
type Record struct {
	ID           string                 `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	Kind         RecordKind             `gorm:"not null;type:VARCHAR(32);index:records_kind_created_idx,priority:1"`
	Filename     string                 `gorm:"not null"`
	ObjectKey    string                 `gorm:"type:TEXT"`
	Locator      string                 `gorm:"type:TEXT"`
	FileSize     int64                  `gorm:"not null"`
	MimeType     string                 `gorm:"not null;type:VARCHAR(255)"`
	Notes        string                 `gorm:"type:TEXT"`
	Status       RecordStatus           `gorm:"not null;type:VARCHAR(32);index"`
	Content      string                 `gorm:"type:TEXT"`
	EnrichedData *JSONField[Enrichment] `gorm:"column:enriched_data"`
	Version      int64                  `gorm:"not null;default:1"`
	CreatedAt    time.Time              `gorm:"not null;index:records_kind_created_idx,priority:2"`
	UpdatedAt    time.Time              `gorm:"not null"`
}

type RecordList []Record

// Enrichment never returns nil.
func (r Record) Enrichment() Enrichment {
	if r.EnrichedData == nil || r.EnrichedData.Data == nil {
		return Enrichment{}
	}
	return r.EnrichedData.Data
}

func (r Record) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}
