package service

import (
	"mime"
	"strings"

	"github.com/kubev2v/meeting-intelligence/internal/config"
	"github.com/kubev2v/meeting-intelligence/internal/storage"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/thoas/go-funk"
)

type Strategy string

const (
	StrategyInline         Strategy = "inline"
	StrategyServerMediated Strategy = "server-mediated"
	StrategyPresigned      Strategy = "presigned"
)

const (
	LargeFilePresigned = "presigned"
	LargeFileServer    = "server"
)

// UploadPolicy holds the size limits the router decides on.
type UploadPolicy struct {
	InlineThreshold   int64
	MaxFileSize       int64
	LargeFileStrategy string
}

func NewUploadPolicy(cfg config.Upload) UploadPolicy {
	return UploadPolicy{
		InlineThreshold:   cfg.InlineThreshold,
		MaxFileSize:       cfg.MaxFileSize,
		LargeFileStrategy: cfg.LargeFileStrategy,
	}
}

// FileMeta is what a client declares about a file before sending it.
type FileMeta struct {
	Filename string
	Size     int64
	MimeType string
	Notes    string
}

var allowedMimeTypes = map[model.RecordKind][]string{
	model.KindTranscription: {"audio/*", "video/*"},
	model.KindDocument:      {"application/pdf"},
}

// NormalizeMimeType lowercases the type and drops parameters.
func NormalizeMimeType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}

// MimeTypeAllowed reports whether kind accepts mimeType. Allow lists may use major/* wildcards.
func MimeTypeAllowed(kind model.RecordKind, mimeType string) bool {
	allowed, ok := allowedMimeTypes[kind]
	if !ok {
		return false
	}
	mt := NormalizeMimeType(mimeType)
	if mt == "" {
		return false
	}
	major, _, _ := strings.Cut(mt, "/")
	return funk.ContainsString(allowed, mt) || funk.ContainsString(allowed, major+"/*")
}

// Route decides how bytes reach storage. Rejections happen before any I/O.
func Route(policy UploadPolicy, kind model.RecordKind, meta FileMeta, hasBytes bool) (Strategy, error) {
	if !kind.Valid() {
		return "", NewErrValidation("unknown record kind %q", kind)
	}
	if strings.TrimSpace(meta.Filename) == "" {
		return "", NewErrValidation("filename is required")
	}
	if meta.Size <= 0 {
		return "", NewErrValidation("file size must be positive")
	}
	if !MimeTypeAllowed(kind, meta.MimeType) {
		return "", NewErrUnsupportedMediaType(string(kind), meta.MimeType)
	}
	if meta.Size > policy.MaxFileSize {
		return "", NewErrPayloadTooLarge(meta.Size, policy.MaxFileSize)
	}

	switch {
	case meta.Size > policy.InlineThreshold && hasBytes && policy.LargeFileStrategy == LargeFileServer:
		return StrategyServerMediated, nil
	case meta.Size > policy.InlineThreshold:
		return StrategyPresigned, nil
	case hasBytes:
		return StrategyInline, nil
	default:
		return StrategyPresigned, nil
	}
}

// ObjectKey returns the storage key of a record.
func ObjectKey(kind model.RecordKind, id, filename string) string {
	if kind == model.KindDocument {
		return storage.DocumentKey(id, filename)
	}
	return storage.TranscriptionKey(id, filename)
}
