package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"gorm.io/gorm"
)

type Summary interface {
	ListByRecord(ctx context.Context, recordID string) (model.SummaryList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Summary, error)
	Create(ctx context.Context, summary model.Summary) (*model.Summary, error)
}

type SummaryStore struct {
	db *gorm.DB
}

// Make sure we conform to Summary interface
var _ Summary = (*SummaryStore)(nil)

func NewSummaryStore(db *gorm.DB) Summary {
	return &SummaryStore{db: db}
}

func (s *SummaryStore) ListByRecord(ctx context.Context, recordID string) (model.SummaryList, error) {
	var summaries model.SummaryList
	result := getDB(ctx, s.db).Where("record_id = ?", recordID).Order("created_at DESC").Find(&summaries)
	if result.Error != nil {
		return nil, result.Error
	}
	return summaries, nil
}

func (s *SummaryStore) Get(ctx context.Context, id uuid.UUID) (*model.Summary, error) {
	var summary model.Summary
	result := getDB(ctx, s.db).First(&summary, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &summary, nil
}

func (s *SummaryStore) Create(ctx context.Context, summary model.Summary) (*model.Summary, error) {
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	if summary.ProductMentions == nil {
		summary.ProductMentions = model.MakeJSONField([]string{})
	}
	if summary.MarketTrends == nil {
		summary.MarketTrends = model.MakeJSONField([]string{})
	}
	if err := getDB(ctx, s.db).Create(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &summary, nil
}
