package store

import (
	"context"

	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Record() Record
	Summary() Summary
	ProductTerm() ProductTerm
	InitialMigration(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db          *gorm.DB
	record      Record
	summary     Summary
	productTerm ProductTerm
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		record:      NewRecordStore(db),
		summary:     NewSummaryStore(db),
		productTerm: NewProductTermStore(db),
		db:          db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithinTransaction(ctx, s.db, fn)
}

func (s *DataStore) Record() Record {
	return s.record
}

func (s *DataStore) Summary() Summary {
	return s.summary
}

func (s *DataStore) ProductTerm() ProductTerm {
	return s.productTerm
}

// InitialMigration creates the schema from the models. Deployments with a
// migrations folder use goose instead (see pkg/migrations).
func (s *DataStore) InitialMigration(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&model.Record{}, &model.Summary{}, &model.ProductTerm{})
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
