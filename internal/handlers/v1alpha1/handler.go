package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
)

const maxJSONBody = 1 << 20

type ServiceHandler struct {
	uploads   *service.UploadService
	records   *service.RecordService
	pipeline  *service.Pipeline
	summaries *service.SummaryService
	terms     *service.ProductTermService
	knowledge *service.KnowledgeService
}

func NewServiceHandler(
	uploads *service.UploadService,
	records *service.RecordService,
	pipeline *service.Pipeline,
	summaries *service.SummaryService,
	terms *service.ProductTermService,
	knowledge *service.KnowledgeService,
) *ServiceHandler {
	return &ServiceHandler{
		uploads:   uploads,
		records:   records,
		pipeline:  pipeline,
		summaries: summaries,
		terms:     terms,
		knowledge: knowledge,
	}
}

// Routes mounts the whole api under /api/v1.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		for _, kind := range []model.RecordKind{model.KindTranscription, model.KindDocument} {
			r.Route("/"+kind.Collection(), func(r chi.Router) {
				h.recordRoutes(r, kind)
			})
		}

		r.Route("/product-terms", func(r chi.Router) {
			r.Get("/", h.ListProductTerms)
			r.Post("/", h.CreateProductTerm)
			r.Delete("/{id}", h.DeleteProductTerm)
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", h.ListKnowledge)
			r.Get("/search", h.SearchKnowledge)
			r.Post("/chat", h.ChatKnowledge)
		})
	})
}

func (h *ServiceHandler) recordRoutes(r chi.Router, kind model.RecordKind) {
	r.Get("/", h.ListRecords(kind))
	r.Post("/", h.CreateRecord(kind))
	r.Post("/upload", h.UploadRecord(kind))
	r.Post("/presigned-url", h.PresignUpload(kind))

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetRecord(kind))
		r.Delete("/", h.DeleteRecord(kind))
		r.Post("/confirm", h.ConfirmUpload(kind))
		r.Post("/process", h.ProcessRecord(kind))
		r.Post("/retry", h.RetryRecord(kind))

		if kind == model.KindTranscription {
			r.Post("/summary", h.CreateSummary)
			r.Get("/summaries", h.ListSummaries)
		}
	})
}

func limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
}
