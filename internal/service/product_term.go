package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
)

type ProductTermForm struct {
	Term        string
	Description *string
	Category    *string
}

type ProductTermService struct {
	store  store.Store
	logger *log.StructuredLogger
}

func NewProductTermService(store store.Store) *ProductTermService {
	return &ProductTermService{
		store:  store,
		logger: log.NewDebugLogger("product_term_service"),
	}
}

// List returns the terms ordered alphabetically.
func (ps *ProductTermService) List(ctx context.Context) (model.ProductTermList, error) {
	terms, err := ps.store.ProductTerm().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list product terms: %w", err)
	}
	return terms, nil
}

func (ps *ProductTermService) Create(ctx context.Context, form ProductTermForm) (*model.ProductTerm, error) {
	tracer := ps.logger.WithContext(ctx).Operation("create_product_term").
		WithString("term", form.Term).
		Build()

	term := strings.TrimSpace(form.Term)
	if term == "" {
		return nil, NewErrValidation("term is required")
	}

	existing, err := ps.store.ProductTerm().List(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to list product terms: %w", err)
	}
	for _, t := range existing {
		if strings.EqualFold(t.Term, term) {
			return nil, NewErrDuplicateTerm(term)
		}
	}

	created, err := ps.store.ProductTerm().Create(ctx, model.ProductTerm{
		Term:        term,
		Description: form.Description,
		Category:    form.Category,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicateTerm(term)
		}
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to create product term: %w", err)
	}

	tracer.Success().WithUUID("term_id", created.ID).Log()
	return created, nil
}

func (ps *ProductTermService) Delete(ctx context.Context, id uuid.UUID) error {
	tracer := ps.logger.WithContext(ctx).Operation("delete_product_term").
		WithUUID("term_id", id).
		Build()

	if err := ps.store.ProductTerm().Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrProductTermNotFound(id.String())
		}
		tracer.Error(err).Log()
		return fmt.Errorf("failed to delete product term: %w", err)
	}

	tracer.Success().Log()
	return nil
}
