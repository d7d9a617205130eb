package service

import (
	"context"

	"github.com/kubev2v/meeting-intelligence/internal/events"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"go.uber.org/zap"
)

// Publisher receives record lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, kind string, event events.RecordEvent) error
}

// publish never fails the operation that triggered it.
func publish(ctx context.Context, p Publisher, kind string, record *model.Record) {
	if p == nil || record == nil {
		return
	}
	enrichment := record.Enrichment()
	event := events.RecordEvent{
		RecordID: record.ID,
		Kind:     string(record.Kind),
		Status:   string(record.Status),
		Filename: record.Filename,
		Strategy: enrichment.String(model.EnrichUploadStrategy),
	}
	if record.Status == model.StatusFailed {
		if last := enrichment.LastError(); last != nil {
			event.ErrorCode = last.Code
		}
	}
	if err := p.Publish(ctx, kind, event); err != nil {
		zap.S().Named("lifecycle").Warnw("failed to publish record event", "record_id", record.ID, "type", kind, "error", err)
	}
}
