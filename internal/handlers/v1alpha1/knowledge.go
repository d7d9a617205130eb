package v1alpha1

import (
	"net/http"

	"github.com/go-chi/render"
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/validator"
	"github.com/kubev2v/meeting-intelligence/pkg/version"
)

// (GET /api/v1/knowledge/search)
func (h *ServiceHandler) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	query, err := stringParam(r, "q")
	if err != nil {
		renderError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 0, -1)
	if err != nil {
		renderError(w, r, err)
		return
	}

	hits, err := h.knowledge.Search(r.Context(), query, limit)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.SearchHitsToApi(query, hits))
}

// (GET /api/v1/knowledge)
func (h *ServiceHandler) ListKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := h.knowledge.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, mappers.KnowledgeListToApi(entries))
}

// (POST /api/v1/knowledge/chat)
func (h *ServiceHandler) ChatKnowledge(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	var form api.ChatRequest
	if err := render.DecodeJSON(r.Body, &form); err != nil {
		renderError(w, r, decodeError(err))
		return
	}

	if err := validator.NewValidator().Struct(form); err != nil {
		renderValidation(w, r, err)
		return
	}

	answer, err := h.knowledge.Chat(r.Context(), mappers.ChatTurnsApi(form.Messages), form.Limit)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, mappers.ChatAnswerToApi(*answer))
}

// (GET /api/v1/health)
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	_ = render.Render(w, r, api.Health{
		Status:      "ok",
		VersionName: info.GitVersion,
		GitCommit:   info.GitCommit,
	})
}
