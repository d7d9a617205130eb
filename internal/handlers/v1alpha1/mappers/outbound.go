package mappers

import (
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/knowledge"
	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
)

func RecordToApi(r model.Record) api.Record {
	enrichment := r.Enrichment()
	if enrichment == nil {
		enrichment = model.Enrichment{}
	}
	return api.Record{
		Id:           r.ID,
		Filename:     r.Filename,
		Locator:      r.Locator,
		FileSize:     r.FileSize,
		MimeType:     r.MimeType,
		Notes:        r.Notes,
		Status:       api.RecordStatus(r.Status),
		Content:      r.Content,
		EnrichedData: enrichment,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func RecordListToApi(records model.RecordList) api.RecordList {
	list := make(api.RecordList, 0, len(records))
	for _, r := range records {
		list = append(list, RecordToApi(r))
	}
	return list
}

func UploadResultToApi(result *service.UploadResult) api.UploadReply {
	reply := api.UploadReply{
		Id:       result.Record.ID,
		Strategy: string(result.Strategy),
		Status:   api.RecordStatus(result.Record.Status),
		Locator:  result.Record.Locator,
	}
	if p := result.Presigned; p != nil {
		reply.UploadEndpoint = p.UploadEndpoint
		reply.FormFields = p.FormFields
		reply.ExpirySeconds = p.ExpirySeconds
		reply.ConfirmUrl = p.ConfirmURL
	}
	return reply
}

// ProcessResultToApi keeps resultSummary short; the full content stays on the record.
func ProcessResultToApi(result *service.ProcessResult) api.ProcessReply {
	return api.ProcessReply{
		Id:            result.Record.ID,
		Status:        api.RecordStatus(result.Record.Status),
		ResultSummary: truncate(result.Record.Content, resultSummaryLength),
		Cached:        result.Cached,
	}
}

const resultSummaryLength = 500

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func SummaryToApi(s model.Summary) api.Summary {
	out := api.Summary{
		Id:                 s.ID.String(),
		TranscriptionId:    s.RecordID,
		Content:            s.Content,
		Format:             s.Format,
		ProductMentions:    []string{},
		MarketTrends:       []string{},
		IsCasual:           s.IsCasual,
		VerificationStatus: s.VerificationStatus,
		CreatedAt:          s.CreatedAt,
	}
	if s.ProductMentions != nil && s.ProductMentions.Data != nil {
		out.ProductMentions = s.ProductMentions.Data
	}
	if s.MarketTrends != nil && s.MarketTrends.Data != nil {
		out.MarketTrends = s.MarketTrends.Data
	}
	return out
}

func SummaryListToApi(summaries model.SummaryList) api.SummaryList {
	list := make(api.SummaryList, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, SummaryToApi(s))
	}
	return list
}

func ProductTermToApi(t model.ProductTerm) api.ProductTerm {
	return api.ProductTerm{
		Id:          t.ID.String(),
		Term:        t.Term,
		Description: t.Description,
		Category:    t.Category,
		CreatedAt:   t.CreatedAt,
	}
}

func ProductTermListToApi(terms model.ProductTermList) api.ProductTermList {
	list := make(api.ProductTermList, 0, len(terms))
	for _, t := range terms {
		list = append(list, ProductTermToApi(t))
	}
	return list
}

func SearchHitsToApi(query string, hits []knowledge.Hit) api.SearchReply {
	return api.SearchReply{Query: query, Hits: searchHitsToApi(hits)}
}

func searchHitsToApi(hits []knowledge.Hit) []api.SearchHit {
	out := make([]api.SearchHit, 0, len(hits))
	for _, h := range hits {
		source := h.Source
		if source == "" {
			source = knowledge.SourceTranscript
		}
		out = append(out, api.SearchHit{
			TranscriptionId: h.RecordID,
			Source:          source,
			SummaryId:       h.SummaryID,
			Filename:        h.Filename,
			Chunk:           h.Chunk,
			Content:         h.Content,
			Similarity:      h.Similarity,
		})
	}
	return out
}

func KnowledgeListToApi(entries []service.KnowledgeEntry) api.KnowledgeList {
	list := make(api.KnowledgeList, 0, len(entries))
	for _, e := range entries {
		list = append(list, api.KnowledgeEntry{
			RecordId:      e.RecordID,
			Kind:          string(e.Kind),
			Filename:      e.Filename,
			Chunks:        e.Chunks,
			VectorStoreId: e.VectorStoreID,
			OpenaiFileId:  e.OpenAIFileID,
			SummaryId:     e.SummaryID,
			SummaryChunks: e.SummaryChunks,
			UpdatedAt:     e.UpdatedAt,
		})
	}
	return list
}

func ChatAnswerToApi(answer service.ChatAnswer) api.ChatReply {
	return api.ChatReply{Answer: answer.Answer, Sources: searchHitsToApi(answer.Sources)}
}
