package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"gorm.io/gorm"
)

// maxUpdateAttempts bounds the optimistic read-merge-write loop of Update.
const maxUpdateAttempts = 5

// RecordUpdate describes a partial update. Nil fields are left untouched and
// Enrichment is merged into the stored enrichment, never replacing it.
type RecordUpdate struct {
	Status     *model.RecordStatus
	Content    *string
	Locator    *string
	Enrichment model.Enrichment
	// ExpectStatus, when set, aborts the update with ErrStatusConflict unless
	// the record currently is in one of these statuses.
	ExpectStatus []model.RecordStatus
}

type Record interface {
	List(ctx context.Context, filter *RecordQueryFilter, opts *RecordQueryOptions) (model.RecordList, error)
	Get(ctx context.Context, id string) (*model.Record, error)
	Create(ctx context.Context, record model.Record) (*model.Record, error)
	Update(ctx context.Context, id string, update RecordUpdate) (*model.Record, error)
	TransitionStatus(ctx context.Context, id string, from []model.RecordStatus, to model.RecordStatus) (*model.Record, error)
	Delete(ctx context.Context, id string) error
}

type RecordStore struct {
	db *gorm.DB
}

// Make sure we conform to Record interface
var _ Record = (*RecordStore)(nil)

func NewRecordStore(db *gorm.DB) Record {
	return &RecordStore{db: db}
}

func (r *RecordStore) List(ctx context.Context, filter *RecordQueryFilter, opts *RecordQueryOptions) (model.RecordList, error) {
	var records model.RecordList
	tx := getDB(ctx, r.db).Model(&records).Order("created_at DESC").Order("id DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *RecordStore) Get(ctx context.Context, id string) (*model.Record, error) {
	var record model.Record
	result := getDB(ctx, r.db).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

func (r *RecordStore) Create(ctx context.Context, record model.Record) (*model.Record, error) {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt
	record.Version = 1
	if record.EnrichedData == nil {
		record.EnrichedData = model.MakeJSONField(model.Enrichment{}.Merge(nil))
	}
	if !record.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, record.Status)
	}
	if record.Status == model.StatusProcessed && record.Content == "" {
		return nil, ErrEmptyArtifact
	}

	result := getDB(ctx, r.db).Create(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &record, nil
}

// Update applies a partial update with a read-merge-write guarded by the row
// version. A concurrent writer makes the conditional update miss and the loop
// merges again on top of the fresh row.
func (r *RecordStore) Update(ctx context.Context, id string, update RecordUpdate) (*model.Record, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if len(update.ExpectStatus) > 0 && !slices.Contains(update.ExpectStatus, current.Status) {
			return current, fmt.Errorf("%w: record %s is %s", ErrStatusConflict, id, current.Status)
		}

		values := map[string]any{
			"version":    current.Version + 1,
			"updated_at": time.Now().UTC(),
		}

		content := current.Content
		if update.Content != nil {
			content = *update.Content
			values["content"] = content
		}
		if update.Locator != nil {
			values["locator"] = *update.Locator
		}
		if update.Status != nil {
			next := *update.Status
			if !model.CanTransition(current.Status, next) {
				return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
			}
			if next == model.StatusProcessed && content == "" {
				return current, ErrEmptyArtifact
			}
			values["status"] = next
		}
		if len(update.Enrichment) > 0 {
			values["enriched_data"] = model.MakeJSONField(current.Enrichment().Merge(update.Enrichment))
		}

		result := getDB(ctx, r.db).Model(&model.Record{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(values)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			return r.Get(ctx, id)
		}
	}
	return nil, ErrConcurrentUpdate
}

// TransitionStatus moves the record to `to` only if its current status is one of `from`.
// When the condition does not hold the current record is returned with ErrStatusConflict.
func (r *RecordStore) TransitionStatus(ctx context.Context, id string, from []model.RecordStatus, to model.RecordStatus) (*model.Record, error) {
	for _, f := range from {
		if !model.CanTransition(f, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f, to)
		}
	}

	tx := getDB(ctx, r.db).Model(&model.Record{}).Where("id = ? AND status IN ?", id, from)
	if to == model.StatusProcessed {
		tx = tx.Where("content <> ''")
	}
	result := tx.Updates(map[string]any{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return nil, result.Error
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		if to == model.StatusProcessed && slices.Contains(from, current.Status) {
			return current, ErrEmptyArtifact
		}
		return current, fmt.Errorf("%w: record %s is %s", ErrStatusConflict, id, current.Status)
	}
	return current, nil
}

func (r *RecordStore) Delete(ctx context.Context, id string) error {
	db := getDB(ctx, r.db)
	if err := db.Where("record_id = ?", id).Delete(&model.Summary{}).Error; err != nil {
		return err
	}
	result := db.Unscoped().Delete(&model.Record{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
