package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/validator"
	"github.com/kubev2v/meeting-intelligence/internal/service"
)

// (GET /api/v1/product-terms)
func (h *ServiceHandler) ListProductTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := h.terms.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, mappers.ProductTermListToApi(terms))
}

// (POST /api/v1/product-terms)
func (h *ServiceHandler) CreateProductTerm(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	var form api.ProductTermCreate
	if err := render.DecodeJSON(r.Body, &form); err != nil {
		renderError(w, r, decodeError(err))
		return
	}

	v := validator.NewValidator(validator.NewProductTermValidationRules()...)
	if err := v.Struct(form); err != nil {
		renderValidation(w, r, err)
		return
	}

	term, err := h.terms.Create(r.Context(), mappers.ProductTermFormApi(form))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, mappers.ProductTermToApi(*term))
}

// (DELETE /api/v1/product-terms/{id})
func (h *ServiceHandler) DeleteProductTerm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, service.NewErrProductTermNotFound(chi.URLParam(r, "id")))
		return
	}
	if err := h.terms.Delete(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}
