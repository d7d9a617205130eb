package store

import (
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type RecordQueryFilter BaseQuerier

func NewRecordQueryFilter() *RecordQueryFilter {
	return &RecordQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *RecordQueryFilter) ByKind(kind model.RecordKind) *RecordQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("kind = ?", kind)
	})
	return f
}

func (f *RecordQueryFilter) ByStatus(statuses ...model.RecordStatus) *RecordQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return f
}

func (f *RecordQueryFilter) ByObjectKey(key string) *RecordQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("object_key = ?", key)
	})
	return f
}

func (f *RecordQueryFilter) ByID(id string) *RecordQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", id)
	})
	return f
}

type RecordQueryOptions BaseQuerier

func NewRecordQueryOptions() *RecordQueryOptions {
	return &RecordQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *RecordQueryOptions) WithLimit(limit int) *RecordQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

func (o *RecordQueryOptions) WithOffset(offset int) *RecordQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}
