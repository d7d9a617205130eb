package v1alpha1

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/validator"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
)

// CreateSummary generates a summary, or stores a reviewed one when summaryData is sent.
//
// (POST /api/v1/transcriptions/{id}/summary)
func (h *ServiceHandler) CreateSummary(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	var req api.SummaryRequest
	// an empty body generates a formal summary
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		renderError(w, r, decodeError(err))
		return
	}
	if err := validator.NewValidator().Struct(req); err != nil {
		renderValidation(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	var (
		summary *model.Summary
		err     error
	)
	if req.SummaryData != nil {
		summary, err = h.summaries.Save(r.Context(), id, mappers.SummaryFormApi(*req.SummaryData))
	} else {
		summary, err = h.summaries.Generate(r.Context(), id, req.Format)
	}
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, mappers.SummaryToApi(*summary))
}

// (GET /api/v1/transcriptions/{id}/summaries)
func (h *ServiceHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.summaries.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, mappers.SummaryListToApi(summaries))
}
