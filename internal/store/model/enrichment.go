package model

import (
	"encoding/json"
	"maps"
	"time"
)

// Well known enrichment keys.
const (
	EnrichTranscriptFileID       = "transcriptFileId"
	EnrichOpenAIFileID           = "openaiFileId"
	EnrichVectorStoreID          = "vectorStoreId"
	EnrichKnowledgeCollection    = "knowledgeCollection"
	EnrichKnowledgeChunks        = "knowledgeChunks"
	EnrichLastError              = "lastError"
	EnrichUploadStrategy         = "uploadStrategy"
	EnrichUploadConfirmedAt      = "uploadConfirmedAt"
	EnrichStoredSize             = "storedSize"
	EnrichDetectedMimeType       = "detectedMimeType"
	EnrichPageCount              = "pageCount"
	EnrichProcessedAt            = "processedAt"
	EnrichRetryCount             = "retryCount"
	EnrichRetriedAt              = "retriedAt"
	EnrichLatestSummaryID        = "latestSummaryId"
	EnrichMarketTrends           = "marketTrends"
	EnrichKnowledgeSummaryID     = "knowledgeSummaryId"
	EnrichKnowledgeSummaryChunks = "knowledgeSummaryChunks"
	EnrichmentSchemaVersionKey   = "schemaVersion"
)

const EnrichmentSchemaVersion = 1

// Enrichment holds processor produced metadata for a record.
// It is merge-only: writers add or replace keys, they never drop keys written by someone else.
type Enrichment map[string]any

// Merge returns a new Enrichment with the keys of other layered over e.
func (e Enrichment) Merge(other Enrichment) Enrichment {
	merged := make(Enrichment, len(e)+len(other)+1)
	maps.Copy(merged, e)
	maps.Copy(merged, other)
	merged[EnrichmentSchemaVersionKey] = EnrichmentSchemaVersion
	return merged
}

func (e Enrichment) String(key string) string {
	v, ok := e[key].(string)
	if !ok {
		return ""
	}
	return v
}

func (e Enrichment) Int(key string) int {
	switch v := e[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		i, _ := v.Int64()
		return int(i)
	default:
		return 0
	}
}

// ErrorDetail is the failure description stored under EnrichLastError.
type ErrorDetail struct {
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Code    string    `json:"code"`
	At      time.Time `json:"at"`
}

func (d ErrorDetail) AsEnrichment() Enrichment {
	return Enrichment{
		EnrichLastError: map[string]any{
			"message": d.Message,
			"detail":  d.Detail,
			"code":    d.Code,
			"at":      d.At.UTC().Format(time.RFC3339),
		},
	}
}

// LastError decodes the stored failure, if any.
func (e Enrichment) LastError() *ErrorDetail {
	raw, ok := e[EnrichLastError]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var d ErrorDetail
	if err := json.Unmarshal(b, &d); err != nil {
		return nil
	}
	return &d
}
