package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/meeting-intelligence/internal/processor/openai"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
	"github.com/thoas/go-funk"
)

const (
	SummaryFormatFormal = "formal"
	SummaryFormatCasual = "casual"
)

var summaryFormats = []string{SummaryFormatFormal, SummaryFormatCasual}

type Summarizer interface {
	Summarize(ctx context.Context, transcript, format string, productTerms []string) (*openai.Analysis, error)
}

// SummaryIndexer makes summaries searchable next to their transcript.
type SummaryIndexer interface {
	AddSummary(ctx context.Context, recordID, summaryID, filename, text string) (int, error)
}

// SummaryForm is a summary written or corrected by a person.
type SummaryForm struct {
	Content         string
	Format          string
	ProductMentions []string
	MarketTrends    []string
	IsCasual        bool
}

type SummaryService struct {
	store      store.Store
	summarizer Summarizer
	indexer    SummaryIndexer
	timeout    time.Duration
	logger     *log.StructuredLogger
}

func NewSummaryService(store store.Store, summarizer Summarizer, timeout time.Duration) *SummaryService {
	return &SummaryService{
		store:      store,
		summarizer: summarizer,
		timeout:    timeout,
		logger:     log.NewDebugLogger("summary_service"),
	}
}

func (ss *SummaryService) WithIndexer(indexer SummaryIndexer) *SummaryService {
	ss.indexer = indexer
	return ss
}

// Generate asks the summary model about a processed transcription and stores the answer.
func (ss *SummaryService) Generate(ctx context.Context, recordID, format string) (*model.Summary, error) {
	tracer := ss.logger.WithContext(ctx).Operation("generate_summary").
		WithString("record_id", recordID).
		WithString("format", format).
		Build()

	if format == "" {
		format = SummaryFormatFormal
	}
	if !funk.ContainsString(summaryFormats, format) {
		return nil, NewErrValidation("unknown summary format %q", format)
	}

	record, err := getRecord(ctx, ss.store, model.KindTranscription, recordID)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	if record.Status != model.StatusProcessed {
		return nil, NewErrInvalidTransition(recordID, string(record.Status), "summarize")
	}

	terms, err := ss.store.ProductTerm().List(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to list product terms: %w", err)
	}
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		names = append(names, t.Term)
	}
	tracer.Step("product_terms_loaded").WithInt("count", len(names)).Log()

	summarizeCtx := ctx
	if ss.timeout > 0 {
		var cancel context.CancelFunc
		summarizeCtx, cancel = context.WithTimeout(ctx, ss.timeout)
		defer cancel()
	}
	analysis, err := ss.summarizer.Summarize(summarizeCtx, record.Content, format, names)
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewErrProcessingTimeout(recordID, err)
		}
		return nil, NewErrProcessingProvider(recordID, err)
	}

	summary, err := ss.save(ctx, model.Summary{
		RecordID:           recordID,
		Content:            analysis.Summary,
		Format:             format,
		ProductMentions:    model.MakeJSONField(nonNil(analysis.ProductMentions)),
		MarketTrends:       model.MakeJSONField(nonNil(analysis.MarketTrends)),
		IsCasual:           analysis.IsCasual,
		VerificationStatus: model.VerificationPending,
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	ss.index(ctx, record, summary)

	tracer.Success().WithUUID("summary_id", summary.ID).Log()
	return summary, nil
}

// Save stores a human verified summary.
func (ss *SummaryService) Save(ctx context.Context, recordID string, form SummaryForm) (*model.Summary, error) {
	tracer := ss.logger.WithContext(ctx).Operation("save_summary").
		WithString("record_id", recordID).
		Build()

	if strings.TrimSpace(form.Content) == "" {
		return nil, NewErrValidation("summary content is required")
	}
	if form.Format == "" {
		form.Format = SummaryFormatFormal
	}
	if !funk.ContainsString(summaryFormats, form.Format) {
		return nil, NewErrValidation("unknown summary format %q", form.Format)
	}
	record, err := getRecord(ctx, ss.store, model.KindTranscription, recordID)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	summary, err := ss.save(ctx, model.Summary{
		RecordID:           recordID,
		Content:            form.Content,
		Format:             form.Format,
		ProductMentions:    model.MakeJSONField(nonNil(form.ProductMentions)),
		MarketTrends:       model.MakeJSONField(nonNil(form.MarketTrends)),
		IsCasual:           form.IsCasual,
		VerificationStatus: model.VerificationHumanVerified,
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	ss.index(ctx, record, summary)

	tracer.Success().WithUUID("summary_id", summary.ID).Log()
	return summary, nil
}

func (ss *SummaryService) List(ctx context.Context, recordID string) (model.SummaryList, error) {
	if _, err := getRecord(ctx, ss.store, model.KindTranscription, recordID); err != nil {
		return nil, err
	}
	summaries, err := ss.store.Summary().ListByRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

// save creates the summary and points the record at it in one transaction.
func (ss *SummaryService) save(ctx context.Context, summary model.Summary) (*model.Summary, error) {
	summary.ID = uuid.New()

	var created *model.Summary
	err := ss.store.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = ss.store.Summary().Create(ctx, summary)
		if err != nil {
			return fmt.Errorf("failed to create summary: %w", err)
		}

		if _, err := ss.store.Record().Update(ctx, summary.RecordID, store.RecordUpdate{
			Enrichment: model.Enrichment{
				model.EnrichLatestSummaryID: created.ID.String(),
				model.EnrichMarketTrends:    summary.MarketTrends.Data,
			},
		}); err != nil {
			return fmt.Errorf("failed to link summary to record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// index adds the summary to the knowledge index. The summary stays saved when indexing fails.
func (ss *SummaryService) index(ctx context.Context, record *model.Record, summary *model.Summary) {
	if ss.indexer == nil {
		return
	}
	tracer := ss.logger.WithContext(ctx).Operation("index_summary").
		WithString("record_id", record.ID).
		WithUUID("summary_id", summary.ID).
		Build()

	chunks, err := ss.indexer.AddSummary(ctx, record.ID, summary.ID.String(), record.Filename, summary.Content)
	if err != nil {
		tracer.Warn(err).Log()
		return
	}
	if _, err := ss.store.Record().Update(ctx, record.ID, store.RecordUpdate{
		Enrichment: model.Enrichment{
			model.EnrichKnowledgeSummaryID:     summary.ID.String(),
			model.EnrichKnowledgeSummaryChunks: chunks,
		},
	}); err != nil {
		tracer.Warn(err).Log()
		return
	}
	tracer.Success().WithInt("chunks", chunks).Log()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
