package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// PresignedUpload carries the credentials a client needs to POST bytes directly to the store.
type PresignedUpload struct {
	UploadEndpoint string
	FormFields     map[string]string
	Expiry         time.Duration
}

// Gateway writes objects and hands out upload credentials.
type Gateway interface {
	// PutObject stores body under key. A negative size streams until EOF.
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// CreatePresignedUpload returns POST policy credentials bounded to maxBytes.
	CreatePresignedUpload(ctx context.Context, key, contentType string, maxBytes int64) (*PresignedUpload, error)
	// PublicLocator is deterministic and does not require the object to exist.
	PublicLocator(key string) string
	StatObject(ctx context.Context, key string) (*ObjectInfo, error)
	RemoveObject(ctx context.Context, key string) error
}

// Fetcher reads objects back for processing.
type Fetcher interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
}

// TranscriptionKey returns uploads/{id}-{name}.
func TranscriptionKey(id, filename string) string {
	return fmt.Sprintf("uploads/%s-%s", id, cleanName(filename))
}

// DocumentKey returns pdfs/{id}.{ext}, defaulting the extension to pdf.
func DocumentKey(id, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(cleanName(filename))), ".")
	if ext == "" {
		ext = "pdf"
	}
	return fmt.Sprintf("pdfs/%s.%s", id, ext)
}

func cleanName(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
