package mappers

import (
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/processor/openai"
	"github.com/kubev2v/meeting-intelligence/internal/service"
)

func RegisterFormApi(r api.RecordCreate) service.RegisterForm {
	return service.RegisterForm{
		Filename: r.Filename,
		Locator:  r.Locator,
		FileSize: r.FileSize,
		MimeType: r.MimeType,
		Notes:    r.Notes,
	}
}

func FileMetaApi(r api.PresignRequest) service.FileMeta {
	return service.FileMeta{
		Filename: r.Filename,
		Size:     r.FileSize,
		MimeType: r.MimeType,
		Notes:    r.Notes,
	}
}

func SummaryFormApi(d api.SummaryData) service.SummaryForm {
	return service.SummaryForm{
		Content:         d.Content,
		Format:          d.Format,
		ProductMentions: d.ProductMentions,
		MarketTrends:    d.MarketTrends,
		IsCasual:        d.IsCasual,
	}
}

func ProductTermFormApi(t api.ProductTermCreate) service.ProductTermForm {
	return service.ProductTermForm{
		Term:        t.Term,
		Description: t.Description,
		Category:    t.Category,
	}
}

func ChatTurnsApi(messages []api.ChatMessage) []openai.Turn {
	turns := make([]openai.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, openai.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
