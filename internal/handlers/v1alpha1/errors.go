package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/validator"
	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/pkg/requestid"
	"go.uber.org/zap"
)

// errorResponse maps service errors to their http status. Unknown errors are 500 and their message is not exposed.
func errorResponse(err error) *api.Error {
	var (
		validation  *service.ErrValidation
		unsupported *service.ErrUnsupportedMediaType
		tooLarge    *service.ErrPayloadTooLarge
		storage     *service.ErrStorageWrite
		notFound    *service.ErrResourceNotFound
		inProgress  *service.ErrAlreadyInProgress
		transition  *service.ErrInvalidTransition
		incomplete  *service.ErrUploadIncomplete
		duplicate   *service.ErrDuplicateTerm
		inUse       *service.ErrObjectInUse
		timeout     *service.ErrProcessingTimeout
		provider    *service.ErrProcessingProvider
		media       *service.ErrInvalidMediaType
		maxBytes    *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validation):
		return &api.Error{HTTPStatusCode: http.StatusBadRequest, Error: err.Error()}
	case errors.As(err, &maxBytes):
		return &api.Error{HTTPStatusCode: http.StatusRequestEntityTooLarge, Error: err.Error()}
	case errors.As(err, &unsupported):
		return &api.Error{HTTPStatusCode: http.StatusUnsupportedMediaType, Error: err.Error()}
	case errors.As(err, &tooLarge):
		return &api.Error{HTTPStatusCode: http.StatusRequestEntityTooLarge, Error: err.Error()}
	case errors.As(err, &storage):
		return &api.Error{HTTPStatusCode: http.StatusBadGateway, Error: err.Error()}
	case errors.As(err, &notFound):
		return &api.Error{HTTPStatusCode: http.StatusNotFound, Error: err.Error()}
	case errors.As(err, &inProgress), errors.As(err, &transition), errors.As(err, &incomplete), errors.As(err, &duplicate),
		errors.As(err, &inUse):
		return &api.Error{HTTPStatusCode: http.StatusConflict, Error: err.Error()}
	case errors.As(err, &timeout):
		return &api.Error{HTTPStatusCode: http.StatusGatewayTimeout, Error: err.Error(), Details: detail(timeout.Detail)}
	case errors.As(err, &provider):
		return &api.Error{HTTPStatusCode: http.StatusBadGateway, Error: err.Error(), Details: detail(provider.Detail)}
	case errors.As(err, &media):
		return &api.Error{HTTPStatusCode: http.StatusUnprocessableEntity, Error: err.Error(), Details: detail(media.Detail)}
	default:
		return &api.Error{HTTPStatusCode: http.StatusInternalServerError, Error: "internal server error"}
	}
}

func detail(s string) any {
	if s == "" {
		return nil
	}
	return map[string]string{"detail": s}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse(err)
	if resp.HTTPStatusCode >= http.StatusInternalServerError {
		zap.S().Named("handlers").Errorw("request failed",
			"request_id", requestid.FromContext(r.Context()),
			"path", r.URL.Path,
			"status", resp.HTTPStatusCode,
			"error", err)
	}
	_ = render.Render(w, r, resp)
}

func renderValidation(w http.ResponseWriter, r *http.Request, err error) {
	_ = render.Render(w, r, &api.Error{
		HTTPStatusCode: http.StatusBadRequest,
		Error:          "invalid request",
		Details:        fieldDetails(err),
	})
}

func fieldDetails(err error) any {
	fields := validator.FieldErrors(err)
	if len(fields) == 0 {
		return map[string]string{"detail": err.Error()}
	}
	return fields
}
