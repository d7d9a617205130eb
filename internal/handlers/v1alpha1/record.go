package v1alpha1

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	api "github.com/kubev2v/meeting-intelligence/api/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/meeting-intelligence/internal/handlers/validator"
	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/oapi-codegen/runtime"
)

const (
	maxFieldLength = 64 * 1024
	defaultLimit   = 100
	maxLimit       = 1000
)

// (GET /api/v1/{kind})
func (h *ServiceHandler) ListRecords(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := stringParam(r, "status")
		if err != nil {
			renderError(w, r, err)
			return
		}
		filter := service.RecordFilter{Status: model.RecordStatus(status)}
		if filter.Limit, err = intParam(r, "limit", defaultLimit, maxLimit); err != nil {
			renderError(w, r, err)
			return
		}
		if filter.Offset, err = intParam(r, "offset", 0, -1); err != nil {
			renderError(w, r, err)
			return
		}

		records, err := h.records.List(r.Context(), kind, filter)
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, mappers.RecordListToApi(records))
	}
}

// (POST /api/v1/{kind})
func (h *ServiceHandler) CreateRecord(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limitBody(w, r)
		var form api.RecordCreate
		if err := render.DecodeJSON(r.Body, &form); err != nil {
			renderError(w, r, decodeError(err))
			return
		}

		v := validator.NewValidator(validator.NewRecordValidationRules()...)
		if err := v.Struct(form); err != nil {
			renderValidation(w, r, err)
			return
		}

		record, err := h.uploads.Register(r.Context(), kind, mappers.RegisterFormApi(form))
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		_ = render.Render(w, r, api.RecordCreated{Id: record.ID, Locator: record.Locator})
	}
}

// (GET /api/v1/{kind}/{id})
func (h *ServiceHandler) GetRecord(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := h.records.Get(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, err)
			return
		}
		_ = render.Render(w, r, mappers.RecordToApi(*record))
	}
}

// (DELETE /api/v1/{kind}/{id})
func (h *ServiceHandler) DeleteRecord(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.records.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
			renderError(w, r, err)
			return
		}
		render.NoContent(w, r)
	}
}

// UploadRecord streams a multipart body. Metadata parts (fileSize, notes, mimeType) must come before the file part
// so the router can decide before any byte of the file is read.
//
// (POST /api/v1/{kind}/upload)
func (h *ServiceHandler) UploadRecord(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			renderError(w, r, service.NewErrValidation("expected a multipart/form-data body: %v", err))
			return
		}

		var meta service.FileMeta
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				renderError(w, r, service.NewErrValidation("multipart body has no file part"))
				return
			}
			if err != nil {
				renderError(w, r, service.NewErrValidation("malformed multipart body: %v", err))
				return
			}

			switch part.FormName() {
			case "file":
				meta.Filename = part.FileName()
				if meta.MimeType == "" {
					meta.MimeType = part.Header.Get("Content-Type")
				}
				result, err := h.uploads.Upload(r.Context(), kind, meta, part)
				_ = part.Close()
				if err != nil {
					renderError(w, r, err)
					return
				}
				render.Status(r, http.StatusCreated)
				_ = render.Render(w, r, mappers.UploadResultToApi(result))
				return
			case "fileSize":
				value, err := readField(part)
				if err != nil {
					renderError(w, r, err)
					return
				}
				if meta.Size, err = strconv.ParseInt(value, 10, 64); err != nil {
					renderError(w, r, service.NewErrValidation("fileSize must be an integer"))
					return
				}
			case "notes":
				if meta.Notes, err = readField(part); err != nil {
					renderError(w, r, err)
					return
				}
			case "mimeType":
				if meta.MimeType, err = readField(part); err != nil {
					renderError(w, r, err)
					return
				}
			default:
				_, _ = io.Copy(io.Discard, io.LimitReader(part, maxFieldLength))
			}
			_ = part.Close()
		}
	}
}

// (POST /api/v1/{kind}/presigned-url)
func (h *ServiceHandler) PresignUpload(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limitBody(w, r)
		var form api.PresignRequest
		if err := render.DecodeJSON(r.Body, &form); err != nil {
			renderError(w, r, decodeError(err))
			return
		}

		v := validator.NewValidator(validator.NewRecordValidationRules()...)
		if err := v.Struct(form); err != nil {
			renderValidation(w, r, err)
			return
		}

		result, err := h.uploads.Presign(r.Context(), kind, mappers.FileMetaApi(form))
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		_ = render.Render(w, r, mappers.UploadResultToApi(result))
	}
}

// (POST /api/v1/{kind}/{id}/confirm)
func (h *ServiceHandler) ConfirmUpload(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := h.uploads.ConfirmUpload(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, err)
			return
		}
		_ = render.Render(w, r, mappers.RecordToApi(*record))
	}
}

// (POST /api/v1/{kind}/{id}/process)
func (h *ServiceHandler) ProcessRecord(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.pipeline.Process(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, err)
			return
		}
		_ = render.Render(w, r, mappers.ProcessResultToApi(result))
	}
}

// (POST /api/v1/{kind}/{id}/retry)
func (h *ServiceHandler) RetryRecord(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := h.pipeline.Retry(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, err)
			return
		}
		_ = render.Render(w, r, mappers.RecordToApi(*record))
	}
}

func readField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldLength+1))
	if err != nil {
		return "", service.NewErrValidation("failed to read form field: %v", err)
	}
	if len(data) > maxFieldLength {
		return "", service.NewErrValidation("form field exceeds %d bytes", maxFieldLength)
	}
	return strings.TrimSpace(string(data)), nil
}

// intParam reads a non-negative integer query parameter. max < 0 means unbounded.
func intParam(r *http.Request, name string, def, max int) (int, error) {
	n := def
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &n); err != nil {
		return 0, service.NewErrValidation("%s must be a non-negative integer", name)
	}
	if n < 0 {
		return 0, service.NewErrValidation("%s must be a non-negative integer", name)
	}
	if max >= 0 && n > max {
		n = max
	}
	return n, nil
}

func stringParam(r *http.Request, name string) (string, error) {
	var value string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &value); err != nil {
		return "", service.NewErrValidation("invalid %s parameter: %v", name, err)
	}
	return value, nil
}

func decodeError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return service.NewErrValidation("invalid json body: %v", err)
}
