package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/meeting-intelligence/internal/events"
	"github.com/kubev2v/meeting-intelligence/internal/storage"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
	"github.com/kubev2v/meeting-intelligence/pkg/metrics"
)

// UploadResult is returned by every upload flow. Presigned is set only for client-direct uploads.
type UploadResult struct {
	Record    *model.Record
	Strategy  Strategy
	Presigned *PresignedCredentials
}

type PresignedCredentials struct {
	UploadEndpoint string
	FormFields     map[string]string
	ExpirySeconds  int64
	ConfirmURL     string
}

// RegisterForm describes bytes already written to the object store by the client.
type RegisterForm struct {
	Filename string
	Locator  string
	FileSize int64
	MimeType string
	Notes    string
}

type UploadService struct {
	store        store.Store
	gateway      storage.Gateway
	policy       UploadPolicy
	baseURL      string
	fetchTimeout time.Duration
	publisher    Publisher
	logger       *log.StructuredLogger
}

func NewUploadService(store store.Store, gateway storage.Gateway, policy UploadPolicy, baseURL string, fetchTimeout time.Duration) *UploadService {
	return &UploadService{
		store:        store,
		gateway:      gateway,
		policy:       policy,
		baseURL:      strings.TrimRight(baseURL, "/"),
		fetchTimeout: fetchTimeout,
		logger:       log.NewDebugLogger("upload_service"),
	}
}

// WithPublisher emits an uploaded event for every record that reaches pending.
func (u *UploadService) WithPublisher(p Publisher) *UploadService {
	u.publisher = p
	return u
}

// Upload routes the file and runs the chosen flow. body may be nil when the client only declares metadata.
func (u *UploadService) Upload(ctx context.Context, kind model.RecordKind, meta FileMeta, body io.Reader) (*UploadResult, error) {
	tracer := u.logger.WithContext(ctx).Operation("upload").
		WithString("kind", string(kind)).
		WithString("filename", meta.Filename).
		WithInt64("size", meta.Size).
		WithString("mime_type", meta.MimeType).
		Build()

	strategy, err := Route(u.policy, kind, meta, body != nil)
	if err != nil {
		tracer.Error(err).Log()
		metrics.IncreaseUploadsTotalMetric(string(kind), "rejected", "rejected")
		return nil, err
	}
	tracer.Step("routed").WithString("strategy", string(strategy)).Log()

	var result *UploadResult
	switch strategy {
	case StrategyInline:
		result, err = u.storeThroughServer(ctx, kind, meta, strategy, func() (io.Reader, int64, error) {
			data, err := io.ReadAll(io.LimitReader(body, u.policy.InlineThreshold+1))
			if err != nil {
				return nil, 0, err
			}
			if int64(len(data)) != meta.Size {
				return nil, 0, NewErrValidation("received %d bytes, declared %d", len(data), meta.Size)
			}
			return bytes.NewReader(data), int64(len(data)), nil
		}, nil)
	case StrategyServerMediated:
		sized := &declaredSizeReader{r: body, declared: meta.Size, remaining: meta.Size}
		result, err = u.storeThroughServer(ctx, kind, meta, strategy, func() (io.Reader, int64, error) {
			return sized, meta.Size, nil
		}, sized.verify)
	default:
		result, err = u.presign(ctx, kind, meta)
	}

	if err != nil {
		tracer.Error(err).WithString("strategy", string(strategy)).Log()
		metrics.IncreaseUploadsTotalMetric(string(kind), string(strategy), "failed")
		return nil, err
	}

	metrics.IncreaseUploadsTotalMetric(string(kind), string(strategy), "success")
	if strategy != StrategyPresigned {
		publish(ctx, u.publisher, events.RecordUploadedKind, result.Record)
	}
	tracer.Success().WithString("record_id", result.Record.ID).WithString("strategy", string(strategy)).Log()
	return result, nil
}

// Presign always hands out client-direct credentials.
func (u *UploadService) Presign(ctx context.Context, kind model.RecordKind, meta FileMeta) (*UploadResult, error) {
	tracer := u.logger.WithContext(ctx).Operation("presign").
		WithString("kind", string(kind)).
		WithString("filename", meta.Filename).
		WithInt64("size", meta.Size).
		Build()

	if _, err := Route(u.policy, kind, meta, false); err != nil {
		tracer.Error(err).Log()
		metrics.IncreaseUploadsTotalMetric(string(kind), "rejected", "rejected")
		return nil, err
	}

	result, err := u.presign(ctx, kind, meta)
	if err != nil {
		tracer.Error(err).Log()
		metrics.IncreaseUploadsTotalMetric(string(kind), string(StrategyPresigned), "failed")
		return nil, err
	}

	metrics.IncreaseUploadsTotalMetric(string(kind), string(StrategyPresigned), "success")
	tracer.Success().WithString("record_id", result.Record.ID).Log()
	return result, nil
}

// Register records a file the client already stored in the configured object store.
func (u *UploadService) Register(ctx context.Context, kind model.RecordKind, form RegisterForm) (*model.Record, error) {
	tracer := u.logger.WithContext(ctx).Operation("register").
		WithString("kind", string(kind)).
		WithString("locator", form.Locator).
		Build()

	meta := FileMeta{Filename: form.Filename, Size: form.FileSize, MimeType: form.MimeType, Notes: form.Notes}
	if _, err := Route(u.policy, kind, meta, false); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	key, err := u.keyFromLocator(form.Locator)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	info, err := u.statObject(ctx, key)
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, NewErrValidation("no object is stored at %s", form.Locator)
		}
		return nil, err
	}
	if info.Size != form.FileSize {
		return nil, NewErrValidation("object at %s has %d bytes, declared %d", form.Locator, info.Size, form.FileSize)
	}
	tracer.Step("object_found").WithInt64("stored_size", info.Size).Log()

	var record *model.Record
	err = u.store.WithinTransaction(ctx, func(ctx context.Context) error {
		owners, err := u.store.Record().List(ctx, store.NewRecordQueryFilter().ByObjectKey(key), store.NewRecordQueryOptions().WithLimit(1))
		if err != nil {
			return fmt.Errorf("failed to look up records of object %s: %w", key, err)
		}
		if len(owners) > 0 {
			return NewErrObjectInUse(key, owners[0].ID)
		}

		record, err = u.store.Record().Create(ctx, model.Record{
			ID:        uuid.NewString(),
			Kind:      kind,
			Filename:  form.Filename,
			ObjectKey: key,
			Locator:   form.Locator,
			FileSize:  form.FileSize,
			MimeType:  NormalizeMimeType(form.MimeType),
			Notes:     form.Notes,
			Status:    model.StatusPending,
			EnrichedData: model.MakeJSONField(model.Enrichment{
				model.EnrichUploadStrategy: "registered",
				model.EnrichStoredSize:     info.Size,
			}.Merge(nil)),
		})
		if err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}
		return nil
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	publish(ctx, u.publisher, events.RecordUploadedKind, record)
	tracer.Success().WithString("record_id", record.ID).Log()
	return record, nil
}

// ConfirmUpload checks that a presigned upload reached the store.
func (u *UploadService) ConfirmUpload(ctx context.Context, kind model.RecordKind, id string) (*model.Record, error) {
	tracer := u.logger.WithContext(ctx).Operation("confirm_upload").
		WithString("kind", string(kind)).
		WithString("record_id", id).
		Build()

	record, err := getRecord(ctx, u.store, kind, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	if record.Status != model.StatusPending {
		return nil, NewErrInvalidTransition(id, string(record.Status), "confirm upload of")
	}
	if record.ObjectKey == "" {
		return nil, NewErrUploadIncomplete(id)
	}

	info, err := u.statObject(ctx, record.ObjectKey)
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, NewErrUploadIncomplete(id)
		}
		return nil, err
	}
	if info.Size != record.FileSize {
		tracer.Step("size_mismatch").WithInt64("stored_size", info.Size).Log()
		return nil, NewErrUploadSizeMismatch(id, info.Size, record.FileSize)
	}

	updated, err := u.store.Record().Update(ctx, id, store.RecordUpdate{
		ExpectStatus: []model.RecordStatus{model.StatusPending},
		Enrichment: model.Enrichment{
			model.EnrichUploadConfirmedAt: time.Now().UTC().Format(time.RFC3339),
			model.EnrichStoredSize:        info.Size,
		},
	})
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, store.ErrStatusConflict) && updated != nil {
			return nil, NewErrInvalidTransition(id, string(updated.Status), "confirm upload of")
		}
		return nil, fmt.Errorf("failed to confirm upload: %w", err)
	}

	publish(ctx, u.publisher, events.RecordUploadedKind, updated)
	tracer.Success().WithInt64("stored_size", info.Size).Log()
	return updated, nil
}

// storeThroughServer creates the record as uploading, writes the bytes and moves it to pending.
// verify, when set, runs after the write and rejects bodies that did not match the declared size.
// Any failure after the record exists removes it again.
func (u *UploadService) storeThroughServer(ctx context.Context, kind model.RecordKind, meta FileMeta, strategy Strategy, open func() (io.Reader, int64, error), verify func() error) (*UploadResult, error) {
	id := uuid.NewString()
	key := ObjectKey(kind, id, meta.Filename)
	mimeType := NormalizeMimeType(meta.MimeType)

	record, err := u.store.Record().Create(ctx, model.Record{
		ID:        id,
		Kind:      kind,
		Filename:  meta.Filename,
		ObjectKey: key,
		Locator:   u.gateway.PublicLocator(key),
		FileSize:  meta.Size,
		MimeType:  mimeType,
		Notes:     meta.Notes,
		Status:    model.StatusUploading,
		EnrichedData: model.MakeJSONField(model.Enrichment{
			model.EnrichUploadStrategy: string(strategy),
		}.Merge(nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	stored := false
	fail := func(cause error) (*UploadResult, error) {
		u.compensate(ctx, record, stored)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, cause
	}

	body, size, err := open()
	if err != nil {
		var verr *ErrValidation
		if errors.As(err, &verr) {
			return fail(err)
		}
		return fail(NewErrStorageWrite(key, err))
	}

	locator, err := u.gateway.PutObject(ctx, key, body, size, mimeType)
	stored = err == nil
	if verify != nil {
		if verr := verify(); verr != nil {
			return fail(verr)
		}
	}
	if err != nil {
		return fail(NewErrStorageWrite(key, err))
	}

	status := model.StatusPending
	record, err = u.store.Record().Update(ctx, id, store.RecordUpdate{
		Status:       &status,
		Locator:      &locator,
		ExpectStatus: []model.RecordStatus{model.StatusUploading},
		Enrichment: model.Enrichment{
			model.EnrichStoredSize: size,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("failed to finish upload of record %s: %w", id, err))
	}

	return &UploadResult{Record: record, Strategy: strategy}, nil
}

func (u *UploadService) presign(ctx context.Context, kind model.RecordKind, meta FileMeta) (*UploadResult, error) {
	id := uuid.NewString()
	key := ObjectKey(kind, id, meta.Filename)
	mimeType := NormalizeMimeType(meta.MimeType)

	record, err := u.store.Record().Create(ctx, model.Record{
		ID:        id,
		Kind:      kind,
		Filename:  meta.Filename,
		ObjectKey: key,
		Locator:   u.gateway.PublicLocator(key),
		FileSize:  meta.Size,
		MimeType:  mimeType,
		Notes:     meta.Notes,
		Status:    model.StatusPending,
		EnrichedData: model.MakeJSONField(model.Enrichment{
			model.EnrichUploadStrategy: string(StrategyPresigned),
		}.Merge(nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	creds, err := u.gateway.CreatePresignedUpload(ctx, key, mimeType, meta.Size)
	if err != nil {
		u.compensate(ctx, record, false)
		return nil, NewErrStorageWrite(key, err)
	}

	return &UploadResult{
		Record:   record,
		Strategy: StrategyPresigned,
		Presigned: &PresignedCredentials{
			UploadEndpoint: creds.UploadEndpoint,
			FormFields:     creds.FormFields,
			ExpirySeconds:  int64(creds.Expiry / time.Second),
			ConfirmURL:     fmt.Sprintf("%s/api/v1/%s/%s/confirm", u.baseURL, kind.Collection(), id),
		},
	}, nil
}

// compensate deletes a record whose upload did not complete. It must run even when the caller went away.
func (u *UploadService) compensate(ctx context.Context, record *model.Record, removeObject bool) {
	cleanupCtx := context.WithoutCancel(ctx)
	tracer := u.logger.WithContext(cleanupCtx).Operation("compensate_upload").
		WithString("record_id", record.ID).
		WithString("object_key", record.ObjectKey).
		Build()

	if err := u.store.Record().Delete(cleanupCtx, record.ID); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		tracer.Error(err).Log()
	}
	if removeObject {
		if err := u.gateway.RemoveObject(cleanupCtx, record.ObjectKey); err != nil {
			tracer.Error(err).Log()
		}
	}
	tracer.Success().Log()
}

func (u *UploadService) statObject(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	statCtx, cancel := context.WithTimeout(ctx, u.fetchTimeout)
	defer cancel()
	info, err := u.gateway.StatObject(statCtx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return info, nil
}

// keyFromLocator maps a public locator back to its object key.
func (u *UploadService) keyFromLocator(locator string) (string, error) {
	if _, err := url.ParseRequestURI(locator); err != nil {
		return "", NewErrValidation("locator %q is not a valid url", locator)
	}
	prefix := u.gateway.PublicLocator("")
	if !strings.HasPrefix(locator, prefix) || len(locator) == len(prefix) {
		return "", NewErrValidation("locator %q does not point at the configured object store", locator)
	}
	key, err := url.PathUnescape(strings.TrimPrefix(locator, prefix))
	if err != nil {
		return "", NewErrValidation("locator %q is not a valid url", locator)
	}
	return key, nil
}

func getRecord(ctx context.Context, s store.Store, kind model.RecordKind, id string) (*model.Record, error) {
	record, err := s.Record().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrRecordNotFound(string(kind), id)
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	if record.Kind != kind {
		return nil, NewErrRecordNotFound(string(kind), id)
	}
	return record, nil
}

// declaredSizeReader hands out at most the declared number of bytes and remembers a body that ended early.
type declaredSizeReader struct {
	r         io.Reader
	declared  int64
	remaining int64
	err       error
}

func (d *declaredSizeReader) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > d.remaining {
		p = p[:d.remaining]
	}
	n, err := d.r.Read(p)
	d.remaining -= int64(n)
	if errors.Is(err, io.EOF) && d.remaining > 0 {
		d.err = NewErrValidation("received %d bytes, declared %d", d.declared-d.remaining, d.declared)
		return n, d.err
	}
	return n, err
}

// verify fails when the body was shorter than declared or still has bytes after the declared size.
func (d *declaredSizeReader) verify() error {
	if d.err != nil {
		return d.err
	}
	if d.remaining > 0 {
		return nil
	}
	var extra [1]byte
	if n, _ := io.ReadFull(d.r, extra[:]); n > 0 {
		return NewErrValidation("received more than the declared %d bytes", d.declared)
	}
	return nil
}
