package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kubev2v/meeting-intelligence/internal/knowledge"
	"github.com/kubev2v/meeting-intelligence/internal/processor/openai"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
)

const (
	// only the latest turns of a conversation are sent to the chat model
	maxChatTurns     = 20
	defaultChatHits  = 5
	maxKnowledgeList = 500
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Hit, error)
}

// Responder answers a conversation using knowledge excerpts.
type Responder interface {
	Reply(ctx context.Context, turns []openai.Turn, excerpts []string) (string, error)
}

// KnowledgeEntry is a processed record that is part of the knowledge base.
type KnowledgeEntry struct {
	RecordID      string
	Kind          model.RecordKind
	Filename      string
	Chunks        int
	VectorStoreID string
	OpenAIFileID  string
	SummaryID     string
	SummaryChunks int
	UpdatedAt     time.Time
}

// ChatAnswer is the reply of the chat model and the excerpts it was given.
type ChatAnswer struct {
	Answer  string
	Sources []knowledge.Hit
}

type KnowledgeService struct {
	store     store.Store
	searcher  Searcher
	responder Responder
	timeout   time.Duration
	logger    *log.StructuredLogger
}

func NewKnowledgeService(s store.Store, searcher Searcher) *KnowledgeService {
	return &KnowledgeService{store: s, searcher: searcher, logger: log.NewDebugLogger("knowledge_service")}
}

func (ks *KnowledgeService) WithResponder(responder Responder, timeout time.Duration) *KnowledgeService {
	ks.responder = responder
	ks.timeout = timeout
	return ks
}

func (ks *KnowledgeService) Search(ctx context.Context, query string, limit int) ([]knowledge.Hit, error) {
	tracer := ks.logger.WithContext(ctx).Operation("search_knowledge").
		WithInt("limit", limit).
		Build()

	if strings.TrimSpace(query) == "" {
		return nil, NewErrValidation("query is required")
	}
	if limit < 0 {
		return nil, NewErrValidation("limit must not be negative")
	}

	hits, err := ks.searcher.Search(ctx, query, limit)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithInt("hits", len(hits)).Log()
	return hits, nil
}

// List returns the processed records whose content reached the knowledge base, newest first.
func (ks *KnowledgeService) List(ctx context.Context) ([]KnowledgeEntry, error) {
	records, err := ks.store.Record().List(ctx,
		store.NewRecordQueryFilter().ByStatus(model.StatusProcessed),
		store.NewRecordQueryOptions().WithLimit(maxKnowledgeList))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	entries := make([]KnowledgeEntry, 0, len(records))
	for _, r := range records {
		e := r.Enrichment()
		entry := KnowledgeEntry{
			RecordID:      r.ID,
			Kind:          r.Kind,
			Filename:      r.Filename,
			Chunks:        e.Int(model.EnrichKnowledgeChunks),
			VectorStoreID: e.String(model.EnrichVectorStoreID),
			OpenAIFileID:  e.String(model.EnrichOpenAIFileID),
			SummaryID:     e.String(model.EnrichKnowledgeSummaryID),
			SummaryChunks: e.Int(model.EnrichKnowledgeSummaryChunks),
			UpdatedAt:     r.UpdatedAt,
		}
		if entry.Chunks == 0 && entry.VectorStoreID == "" && entry.SummaryChunks == 0 {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Chat searches the index with the last user message and asks the chat model to answer the conversation.
func (ks *KnowledgeService) Chat(ctx context.Context, turns []openai.Turn, limit int) (*ChatAnswer, error) {
	tracer := ks.logger.WithContext(ctx).Operation("knowledge_chat").
		WithInt("turns", len(turns)).
		Build()

	if ks.responder == nil {
		return nil, errors.New("knowledge chat is not configured")
	}
	question, err := validateTurns(turns)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, NewErrValidation("limit must not be negative")
	}
	if limit == 0 {
		limit = defaultChatHits
	}
	if len(turns) > maxChatTurns {
		turns = turns[len(turns)-maxChatTurns:]
	}

	hits, err := ks.searcher.Search(ctx, question, limit)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	excerpts := make([]string, 0, len(hits))
	for _, h := range hits {
		excerpts = append(excerpts, fmt.Sprintf("%s (%s): %s", h.Filename, h.Source, h.Content))
	}
	tracer.Step("excerpts_found").WithInt("hits", len(hits)).Log()

	replyCtx := ctx
	if ks.timeout > 0 {
		var cancel context.CancelFunc
		replyCtx, cancel = context.WithTimeout(ctx, ks.timeout)
		defer cancel()
	}
	answer, err := ks.responder.Reply(replyCtx, turns, excerpts)
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewErrChatTimeout(err)
		}
		return nil, NewErrChatProvider(err)
	}

	tracer.Success().Log()
	return &ChatAnswer{Answer: answer, Sources: hits}, nil
}

// validateTurns returns the question the conversation ends with.
func validateTurns(turns []openai.Turn) (string, error) {
	if len(turns) == 0 {
		return "", NewErrValidation("at least one message is required")
	}
	for i, t := range turns {
		if t.Role != openai.RoleUser && t.Role != openai.RoleAssistant {
			return "", NewErrValidation("message %d has unknown role %q", i, t.Role)
		}
		if strings.TrimSpace(t.Content) == "" {
			return "", NewErrValidation("message %d is empty", i)
		}
	}
	last := turns[len(turns)-1]
	if last.Role != openai.RoleUser {
		return "", NewErrValidation("the last message must come from the user")
	}
	return last.Content, nil
}
