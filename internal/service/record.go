package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kubev2v/meeting-intelligence/internal/events"
	"github.com/kubev2v/meeting-intelligence/internal/storage"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
)

// IndexRemover drops the knowledge entries of a deleted record.
type IndexRemover interface {
	Remove(ctx context.Context, recordID string) error
}

type RecordFilter struct {
	Status model.RecordStatus
	Limit  int
	Offset int
}

type RecordService struct {
	store     store.Store
	gateway   storage.Gateway
	index     IndexRemover
	publisher Publisher
	logger    *log.StructuredLogger
}

func NewRecordService(store store.Store, gateway storage.Gateway, index IndexRemover) *RecordService {
	return &RecordService{
		store:   store,
		gateway: gateway,
		index:   index,
		logger:  log.NewDebugLogger("record_service"),
	}
}

// WithPublisher emits a deleted event for every removed record.
func (rs *RecordService) WithPublisher(p Publisher) *RecordService {
	rs.publisher = p
	return rs
}

// List returns records of a kind, newest first.
func (rs *RecordService) List(ctx context.Context, kind model.RecordKind, filter RecordFilter) (model.RecordList, error) {
	tracer := rs.logger.WithContext(ctx).Operation("list_records").
		WithString("kind", string(kind)).
		WithString("status", string(filter.Status)).
		WithInt("limit", filter.Limit).
		WithInt("offset", filter.Offset).
		Build()

	storeFilter := store.NewRecordQueryFilter().ByKind(kind)
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, NewErrValidation("unknown status %q", filter.Status)
		}
		storeFilter = storeFilter.ByStatus(filter.Status)
	}
	opts := store.NewRecordQueryOptions()
	if filter.Limit > 0 {
		opts = opts.WithLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts = opts.WithOffset(filter.Offset)
	}

	records, err := rs.store.Record().List(ctx, storeFilter, opts)
	if err != nil {
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	tracer.Success().WithInt("count", len(records)).Log()
	return records, nil
}

func (rs *RecordService) Get(ctx context.Context, kind model.RecordKind, id string) (*model.Record, error) {
	return getRecord(ctx, rs.store, kind, id)
}

// Delete removes the record, its object and its knowledge entries. Records being processed cannot be deleted.
func (rs *RecordService) Delete(ctx context.Context, kind model.RecordKind, id string) error {
	tracer := rs.logger.WithContext(ctx).Operation("delete_record").
		WithString("kind", string(kind)).
		WithString("record_id", id).
		Build()

	record, err := getRecord(ctx, rs.store, kind, id)
	if err != nil {
		tracer.Error(err).Log()
		return err
	}
	if record.Status == model.StatusProcessing {
		return NewErrInvalidTransition(id, string(record.Status), "delete")
	}

	if err := rs.store.Record().Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrRecordNotFound(string(kind), id)
		}
		tracer.Error(err).Log()
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	tracer.Step("record_deleted").Log()

	// the record is gone, leftovers are only logged
	cleanupCtx := context.WithoutCancel(ctx)
	if record.ObjectKey != "" {
		if err := rs.gateway.RemoveObject(cleanupCtx, record.ObjectKey); err != nil {
			tracer.Warn(err).WithString("object_key", record.ObjectKey).Log()
		}
	}
	if rs.index != nil && kind == model.KindTranscription {
		if err := rs.index.Remove(cleanupCtx, id); err != nil {
			tracer.Warn(err).Log()
		}
	}

	publish(cleanupCtx, rs.publisher, events.RecordDeletedKind, record)
	tracer.Success().Log()
	return nil
}
