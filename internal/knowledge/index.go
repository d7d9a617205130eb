package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kubev2v/meeting-intelligence/internal/processor"
	chromem "github.com/philippgille/chromem-go"
)

const (
	MetadataCollection = "knowledgeCollection"
	MetadataChunks     = "knowledgeChunks"

	SourceTranscript = "transcript"
	SourceSummary    = "summary"

	defaultChunkSize = 1000
	defaultLimit     = 5
	maxLimit         = 50
)

type Config struct {
	PersistPath string
	Collection  string
	ChunkSize   int
}

// Hit is one search result.
type Hit struct {
	RecordID   string
	Source     string
	SummaryID  string
	Filename   string
	Chunk      int
	Content    string
	Similarity float32
}

// Index stores transcript and summary chunks in a chromem collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	chunkSize  int
}

func NewIndex(cfg Config, embed chromem.EmbeddingFunc) (*Index, error) {
	if cfg.Collection == "" {
		cfg.Collection = "transcripts"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent knowledge db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create knowledge collection: %w", err)
	}

	return &Index{db: db, collection: collection, name: cfg.Collection, chunkSize: cfg.ChunkSize}, nil
}

// Add replaces the transcript chunks of a record and returns how many were stored.
func (i *Index) Add(ctx context.Context, recordID, filename, text string) (int, error) {
	return i.replace(ctx, recordID, SourceTranscript, recordID, map[string]string{"filename": filename}, text)
}

// AddSummary replaces the summary chunks of a record with the given summary.
func (i *Index) AddSummary(ctx context.Context, recordID, summaryID, filename, text string) (int, error) {
	return i.replace(ctx, recordID, SourceSummary, recordID+"-summary", map[string]string{
		"filename":  filename,
		"summaryId": summaryID,
	}, text)
}

func (i *Index) replace(ctx context.Context, recordID, source, idPrefix string, metadata map[string]string, text string) (int, error) {
	if err := i.collection.Delete(ctx, map[string]string{"recordId": recordID, "source": source}, nil); err != nil {
		return 0, fmt.Errorf("remove %s of record %s from index: %w", source, recordID, err)
	}

	chunks := Chunk(text, i.chunkSize)
	docs := make([]chromem.Document, 0, len(chunks))
	for n, c := range chunks {
		meta := map[string]string{
			"recordId": recordID,
			"source":   source,
			"chunk":    fmt.Sprint(n),
		}
		for k, v := range metadata {
			meta[k] = v
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s-%d", idPrefix, n),
			Content:  c,
			Metadata: meta,
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := i.collection.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("index %s of record %s: %w", source, recordID, err)
	}
	return len(docs), nil
}

// Remove drops every chunk of a record.
func (i *Index) Remove(ctx context.Context, recordID string) error {
	if err := i.collection.Delete(ctx, map[string]string{"recordId": recordID}, nil); err != nil {
		return fmt.Errorf("remove record %s from index: %w", recordID, err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	// chromem refuses nResults larger than the collection
	if count := i.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return []Hit{}, nil
	}

	results, err := i.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		var chunk int
		_, _ = fmt.Sscan(r.Metadata["chunk"], &chunk)
		hits = append(hits, Hit{
			RecordID:   r.Metadata["recordId"],
			Source:     r.Metadata["source"],
			SummaryID:  r.Metadata["summaryId"],
			Filename:   r.Metadata["filename"],
			Chunk:      chunk,
			Content:    r.Content,
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}

func (i *Index) Count() int {
	return i.collection.Count()
}

// Indexer is a processing step adding the transcript produced by the previous step.
func (i *Index) Indexer() processor.Processor {
	return processor.Func(func(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
		n, err := i.Add(ctx, in.RecordID, in.Filename, in.Text)
		if err != nil {
			return nil, err
		}
		return &processor.Artifact{Metadata: map[string]any{
			MetadataCollection: i.name,
			MetadataChunks:     n,
		}}, nil
	})
}

// Chunk splits text on whitespace into pieces of at most size runes. Words longer than size are cut.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	words := strings.FieldsFunc(text, unicode.IsSpace)

	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}
	for _, w := range words {
		r := []rune(w)
		for len(r) > size {
			flush()
			chunks = append(chunks, string(r[:size]))
			r = r[size:]
		}
		if len(current) > 0 && len(current)+1+len(r) > size {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, r...)
	}
	flush()
	return chunks
}
