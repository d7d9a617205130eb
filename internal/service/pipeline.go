package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kubev2v/meeting-intelligence/internal/events"
	"github.com/kubev2v/meeting-intelligence/internal/processor"
	"github.com/kubev2v/meeting-intelligence/internal/storage"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
	"github.com/kubev2v/meeting-intelligence/pkg/metrics"
	"github.com/thoas/go-funk"
)

const (
	sniffLength = 3072

	errorCodeTimeout          = "timeout"
	errorCodeProvider         = "provider_error"
	errorCodeInvalidMediaType = "invalid_media_type"
	errorCodeSourceMissing    = "source_unavailable"
	errorCodeCancelled        = "cancelled"
	errorCodeResultNotStored  = "result_not_stored"
	errorCodeAbandoned        = "abandoned"
)

var (
	errResultNotStored = errors.New("processing result could not be stored")
	errAbandoned       = errors.New("processing did not finish within twice the kind timeout")
)

// KindProcessing binds a processor and its time budget to a record kind.
type KindProcessing struct {
	Processor processor.Processor
	Timeout   time.Duration
}

type ProcessResult struct {
	Record *model.Record
	// Cached is true when the record was already processed and no processor ran.
	Cached bool
}

type Pipeline struct {
	store     store.Store
	fetcher   storage.Fetcher
	kinds     map[model.RecordKind]KindProcessing
	publisher Publisher
	logger    *log.StructuredLogger
}

func NewPipeline(store store.Store, fetcher storage.Fetcher, kinds map[model.RecordKind]KindProcessing) *Pipeline {
	return &Pipeline{
		store:   store,
		fetcher: fetcher,
		kinds:   kinds,
		logger:  log.NewDebugLogger("processing_pipeline"),
	}
}

// WithPublisher emits processed and failed events.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// Process runs the processor of the record kind at most once per record.
func (p *Pipeline) Process(ctx context.Context, kind model.RecordKind, id string) (*ProcessResult, error) {
	tracer := p.logger.WithContext(ctx).Operation("process").
		WithString("kind", string(kind)).
		WithString("record_id", id).
		Build()

	kp, ok := p.kinds[kind]
	if !ok {
		return nil, NewErrValidation("no processor configured for %s", kind)
	}

	record, err := getRecord(ctx, p.store, kind, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	switch record.Status {
	case model.StatusProcessed:
		tracer.Success().WithBool("cached", true).Log()
		return &ProcessResult{Record: record, Cached: true}, nil
	case model.StatusProcessing:
		return nil, NewErrAlreadyInProgress(id)
	case model.StatusUploading, model.StatusFailed:
		return nil, NewErrInvalidTransition(id, string(record.Status), "process")
	}

	record, err = p.store.Record().TransitionStatus(ctx, id, []model.RecordStatus{model.StatusPending}, model.StatusProcessing)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			tracer.Step("lost_processing_claim").Log()
			return nil, NewErrAlreadyInProgress(id)
		}
		tracer.Error(err).Log()
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrRecordNotFound(string(kind), id)
		}
		return nil, fmt.Errorf("failed to claim record %s: %w", id, err)
	}
	tracer.Step("claimed").Log()

	start := time.Now()
	artifact, detected, err := p.run(ctx, kp, record)
	if err == nil && strings.TrimSpace(artifact.Content) == "" {
		err = NewErrProcessingProvider(id, store.ErrEmptyArtifact)
	}
	if err != nil {
		serr := p.recordFailure(ctx, record, err)
		metrics.ObserveProcessing(string(kind), "failed", time.Since(start))
		tracer.Error(serr).Log()
		return nil, serr
	}

	enrichment := model.Enrichment{
		model.EnrichDetectedMimeType: detected,
		model.EnrichProcessedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range artifact.Metadata {
		enrichment[k] = v
	}

	processed := model.StatusProcessed
	updated, err := p.store.Record().Update(context.WithoutCancel(ctx), id, store.RecordUpdate{
		Status:       &processed,
		Content:      &artifact.Content,
		Enrichment:   enrichment,
		ExpectStatus: []model.RecordStatus{model.StatusProcessing},
	})
	if err != nil {
		tracer.Error(err).Log()
		// the record must not stay in processing
		_ = p.recordFailure(ctx, record, fmt.Errorf("%w: %v", errResultNotStored, err))
		metrics.ObserveProcessing(string(kind), "failed", time.Since(start))
		return nil, fmt.Errorf("failed to store result of record %s: %w", id, err)
	}
	record = updated

	metrics.ObserveProcessing(string(kind), "processed", time.Since(start))
	publish(ctx, p.publisher, events.RecordProcessedKind, record)
	tracer.Success().WithInt("content_length", len(artifact.Content)).Log()
	return &ProcessResult{Record: record}, nil
}

// Retry moves a failed record back to pending. Its last error is kept.
// A record stuck in processing for more than twice its kind timeout is failed first and then retried.
func (p *Pipeline) Retry(ctx context.Context, kind model.RecordKind, id string) (*model.Record, error) {
	tracer := p.logger.WithContext(ctx).Operation("retry").
		WithString("kind", string(kind)).
		WithString("record_id", id).
		Build()

	record, err := getRecord(ctx, p.store, kind, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	if record.Status == model.StatusProcessing && p.abandoned(kind, record) {
		tracer.Step("abandoned").WithString("updated_at", record.UpdatedAt.Format(time.RFC3339)).Log()
		// a conflict means the attempt finished meanwhile, the reload below sees its outcome
		if err := p.markFailed(ctx, record, errAbandoned, errorCodeAbandoned, errAbandoned.Error()); err != nil && !errors.Is(err, store.ErrStatusConflict) {
			tracer.Error(err).Log()
			return nil, fmt.Errorf("failed to release record %s: %w", id, err)
		}
		if record, err = getRecord(ctx, p.store, kind, id); err != nil {
			return nil, err
		}
	}
	if record.Status != model.StatusFailed {
		return nil, NewErrInvalidTransition(id, string(record.Status), "retry")
	}

	pending := model.StatusPending
	record, err = p.store.Record().Update(ctx, id, store.RecordUpdate{
		Status:       &pending,
		ExpectStatus: []model.RecordStatus{model.StatusFailed},
		Enrichment: model.Enrichment{
			model.EnrichRetryCount: record.Enrichment().Int(model.EnrichRetryCount) + 1,
			model.EnrichRetriedAt:  time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, NewErrInvalidTransition(id, string(record.Status), "retry")
		}
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to retry record %s: %w", id, err)
	}

	tracer.Success().WithInt("retry_count", record.Enrichment().Int(model.EnrichRetryCount)).Log()
	return record, nil
}

// abandoned reports whether a processing record outlived any attempt that could still finish it.
func (p *Pipeline) abandoned(kind model.RecordKind, record *model.Record) bool {
	kp, ok := p.kinds[kind]
	if !ok || kp.Timeout <= 0 {
		return false
	}
	return time.Since(record.UpdatedAt) > 2*kp.Timeout
}

// run fetches the object, checks what it really is and calls the processor, all under the kind timeout.
func (p *Pipeline) run(ctx context.Context, kp KindProcessing, record *model.Record) (*processor.Artifact, string, error) {
	if kp.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, kp.Timeout)
		defer cancel()
	}

	source, info, err := p.fetch(ctx, record)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = source.Close()
		_ = os.Remove(source.Name())
	}()

	detected, err := p.validateMedia(record, info, source)
	if err != nil {
		return nil, "", err
	}

	artifact, err := kp.Processor.Process(ctx, processor.Input{
		RecordID: record.ID,
		Kind:     string(record.Kind),
		Filename: record.Filename,
		MimeType: record.MimeType,
		Size:     info.Size,
		Source:   source,
	})
	if err != nil {
		return nil, detected, err
	}
	if artifact == nil {
		artifact = &processor.Artifact{}
	}
	return artifact, detected, nil
}

// fetch spools the object to a temporary file so every processing step can rewind it.
func (p *Pipeline) fetch(ctx context.Context, record *model.Record) (*os.File, *storage.ObjectInfo, error) {
	if record.ObjectKey == "" {
		return nil, nil, fmt.Errorf("%w: record has no object key", storage.ErrObjectNotFound)
	}
	body, info, err := p.fetcher.GetObject(ctx, record.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	f, err := os.CreateTemp("", "meeting-*")
	if err != nil {
		return nil, nil, err
	}
	n, err := io.Copy(f, body)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, nil, err
	}
	info.Size = n
	return f, info, nil
}

// validateMedia compares the sniffed type with the declared and stored ones.
func (p *Pipeline) validateMedia(record *model.Record, info *storage.ObjectInfo, source io.ReadSeeker) (string, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(source, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := source.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return "", NewErrInvalidMediaType(record.ID, "stored object is empty")
	}

	detected := mimetype.Detect(head[:n])
	detectedType := NormalizeMimeType(detected.String())
	declared := NormalizeMimeType(record.MimeType)

	if !MimeTypeAllowed(record.Kind, detectedType) {
		return detectedType, NewErrInvalidMediaType(record.ID, fmt.Sprintf("declared %s but content is %s", declared, detectedType))
	}
	if !MimeTypeAllowed(record.Kind, declared) {
		return detectedType, NewErrInvalidMediaType(record.ID, fmt.Sprintf("declared type %s is not accepted", declared))
	}
	if !sameMediaType(detected, declared) {
		return detectedType, NewErrInvalidMediaType(record.ID, fmt.Sprintf("declared %s but content is %s", declared, detectedType))
	}
	stored := NormalizeMimeType(info.ContentType)
	if stored != "" && stored != "application/octet-stream" && !sameMediaType(detected, stored) {
		return detectedType, NewErrInvalidMediaType(record.ID, fmt.Sprintf("object stored as %s but content is %s", stored, detectedType))
	}
	return detectedType, nil
}

// containerFamilies group types sharing a container that sniffing the header cannot tell apart.
var containerFamilies = [][]string{
	{"video/mp4", "audio/mp4", "audio/x-m4a", "audio/m4a", "video/x-m4v"},
	{"video/webm", "audio/webm"},
	{"application/ogg", "audio/ogg", "video/ogg"},
	{"video/quicktime", "video/mp4"},
}

// sameMediaType accepts the detected type, its aliases and its ancestors, then falls back to container families.
func sameMediaType(detected *mimetype.MIME, mimeType string) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(mimeType) {
			return true
		}
	}
	for _, family := range containerFamilies {
		if funk.ContainsString(family, mimeType) && funk.ContainsString(family, NormalizeMimeType(detected.String())) {
			return true
		}
	}
	return false
}

// recordFailure marks the record failed and returns the error to report to the caller.
func (p *Pipeline) recordFailure(ctx context.Context, record *model.Record, cause error) error {
	serr, code, detail := classifyProcessingError(record.ID, cause)
	if err := p.markFailed(ctx, record, serr, code, detail); err != nil {
		p.logger.WithContext(ctx).Operation("record_failure").
			WithString("record_id", record.ID).
			Build().
			Error(err).Log()
	}
	return serr
}

// markFailed moves a processing record to failed. It runs on a context that survives the caller.
func (p *Pipeline) markFailed(ctx context.Context, record *model.Record, serr error, code, detail string) error {
	failed := model.StatusFailed
	updated, err := p.store.Record().Update(context.WithoutCancel(ctx), record.ID, store.RecordUpdate{
		Status:       &failed,
		ExpectStatus: []model.RecordStatus{model.StatusProcessing},
		Enrichment: model.ErrorDetail{
			Message: serr.Error(),
			Detail:  detail,
			Code:    code,
			At:      time.Now().UTC(),
		}.AsEnrichment(),
	})
	if err != nil {
		return err
	}
	publish(context.WithoutCancel(ctx), p.publisher, events.RecordFailedKind, updated)
	return nil
}

func classifyProcessingError(id string, cause error) (error, string, string) {
	var (
		timeout  *ErrProcessingTimeout
		provider *ErrProcessingProvider
		media    *ErrInvalidMediaType
	)
	switch {
	case errors.Is(cause, errResultNotStored):
		return cause, errorCodeResultNotStored, cause.Error()
	case errors.As(cause, &media):
		return media, errorCodeInvalidMediaType, media.Detail
	case errors.As(cause, &timeout):
		return timeout, errorCodeTimeout, timeout.Detail
	case errors.As(cause, &provider):
		return provider, errorCodeProvider, provider.Detail
	case errors.Is(cause, context.DeadlineExceeded):
		serr := NewErrProcessingTimeout(id, cause)
		return serr, errorCodeTimeout, serr.Detail
	case errors.Is(cause, context.Canceled):
		return cause, errorCodeCancelled, "processing was cancelled before it finished"
	case errors.Is(cause, processor.ErrMalformedPDF):
		serr := NewErrInvalidMediaType(id, cause.Error())
		return serr, errorCodeInvalidMediaType, serr.Detail
	case errors.Is(cause, storage.ErrObjectNotFound):
		serr := NewErrProcessingProvider(id, cause)
		return serr, errorCodeSourceMissing, serr.Detail
	default:
		serr := NewErrProcessingProvider(id, cause)
		return serr, errorCodeProvider, serr.Detail
	}
}
