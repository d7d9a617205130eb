package service

import (
	"fmt"
)

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

type ErrUnsupportedMediaType struct {
	error
}

func NewErrUnsupportedMediaType(kind, mimeType string) *ErrUnsupportedMediaType {
	return &ErrUnsupportedMediaType{fmt.Errorf("media type %q is not accepted for %s uploads", mimeType, kind)}
}

type ErrPayloadTooLarge struct {
	error
}

func NewErrPayloadTooLarge(size, limit int64) *ErrPayloadTooLarge {
	return &ErrPayloadTooLarge{fmt.Errorf("file size %d exceeds the maximum of %d bytes", size, limit)}
}

type ErrStorageWrite struct {
	error
}

func NewErrStorageWrite(key string, cause error) *ErrStorageWrite {
	return &ErrStorageWrite{fmt.Errorf("failed to store object %s: %w", key, cause)}
}

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrRecordNotFound(kind, id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, kind)
}

func NewErrProductTermNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "product term")
}

type ErrAlreadyInProgress struct {
	error
}

func NewErrAlreadyInProgress(id string) *ErrAlreadyInProgress {
	return &ErrAlreadyInProgress{fmt.Errorf("record %s is already being processed", id)}
}

type ErrInvalidTransition struct {
	error
}

func NewErrInvalidTransition(id, status, action string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("cannot %s record %s while it is %s", action, id, status)}
}

type ErrUploadIncomplete struct {
	error
}

func NewErrUploadIncomplete(id string) *ErrUploadIncomplete {
	return &ErrUploadIncomplete{fmt.Errorf("no object was uploaded for record %s", id)}
}

func NewErrUploadSizeMismatch(id string, stored, declared int64) *ErrUploadIncomplete {
	return &ErrUploadIncomplete{fmt.Errorf("object of record %s has %d bytes, declared %d", id, stored, declared)}
}

type ErrObjectInUse struct {
	error
}

func NewErrObjectInUse(key, recordID string) *ErrObjectInUse {
	return &ErrObjectInUse{fmt.Errorf("object %s already belongs to record %s", key, recordID)}
}

type ErrDuplicateTerm struct {
	error
}

func NewErrDuplicateTerm(term string) *ErrDuplicateTerm {
	return &ErrDuplicateTerm{fmt.Errorf("product term %q already exists", term)}
}

// Processing failures. Detail carries the underlying cause and is stored on the record.

type ErrProcessingTimeout struct {
	error
	Detail string
}

func NewErrProcessingTimeout(id string, cause error) *ErrProcessingTimeout {
	return &ErrProcessingTimeout{fmt.Errorf("processing of record %s timed out", id), cause.Error()}
}

type ErrProcessingProvider struct {
	error
	Detail string
}

func NewErrProcessingProvider(id string, cause error) *ErrProcessingProvider {
	return &ErrProcessingProvider{fmt.Errorf("processing of record %s failed", id), cause.Error()}
}

type ErrInvalidMediaType struct {
	error
	Detail string
}

func NewErrInvalidMediaType(id string, detail string) *ErrInvalidMediaType {
	return &ErrInvalidMediaType{fmt.Errorf("content of record %s does not match its declared media type", id), detail}
}

func NewErrChatTimeout(cause error) *ErrProcessingTimeout {
	return &ErrProcessingTimeout{fmt.Errorf("knowledge chat timed out"), cause.Error()}
}

func NewErrChatProvider(cause error) *ErrProcessingProvider {
	return &ErrProcessingProvider{fmt.Errorf("knowledge chat failed"), cause.Error()}
}
