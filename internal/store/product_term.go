package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"gorm.io/gorm"
)

type ProductTerm interface {
	List(ctx context.Context) (model.ProductTermList, error)
	Create(ctx context.Context, term model.ProductTerm) (*model.ProductTerm, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProductTermStore struct {
	db *gorm.DB
}

// Make sure we conform to ProductTerm interface
var _ ProductTerm = (*ProductTermStore)(nil)

func NewProductTermStore(db *gorm.DB) ProductTerm {
	return &ProductTermStore{db: db}
}

func (p *ProductTermStore) List(ctx context.Context) (model.ProductTermList, error) {
	var terms model.ProductTermList
	if err := getDB(ctx, p.db).Order("term ASC").Find(&terms).Error; err != nil {
		return nil, err
	}
	return terms, nil
}

func (p *ProductTermStore) Create(ctx context.Context, term model.ProductTerm) (*model.ProductTerm, error) {
	if term.ID == uuid.Nil {
		term.ID = uuid.New()
	}
	if term.CreatedAt.IsZero() {
		term.CreatedAt = time.Now().UTC()
	}
	if err := getDB(ctx, p.db).Create(&term).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &term, nil
}

func (p *ProductTermStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := getDB(ctx, p.db).Delete(&model.ProductTerm{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
