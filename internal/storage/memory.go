package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemoryGateway keeps objects in memory. It is used for local runs and tests.
type MemoryGateway struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]memoryObject

	// PutErr, when set, fails every PutObject call.
	PutErr error
}

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

var (
	_ Gateway = (*MemoryGateway)(nil)
	_ Fetcher = (*MemoryGateway)(nil)
)

func NewMemoryGateway(baseURL string) *MemoryGateway {
	return &MemoryGateway{baseURL: baseURL, objects: map[string]memoryObject{}}
}

func (m *MemoryGateway) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if m.PutErr != nil {
		return "", errors.Wrapf(m.PutErr, "failed to put object %s", key)
	}

	var r io.Reader = body
	if size >= 0 {
		r = io.LimitReader(body, size)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, "failed to put object %s", key)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("failed to put object %s: expected %d bytes, read %d", key, size, len(data))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType, modified: time.Now().UTC()}
	return m.PublicLocator(key), nil
}

func (m *MemoryGateway) CreatePresignedUpload(_ context.Context, key, contentType string, maxBytes int64) (*PresignedUpload, error) {
	return &PresignedUpload{
		UploadEndpoint: m.baseURL,
		FormFields: map[string]string{
			"key":            key,
			"Content-Type":   contentType,
			"content-length": fmt.Sprintf("1,%d", maxBytes),
		},
		Expiry: time.Hour,
	}, nil
}

func (m *MemoryGateway) PublicLocator(key string) string {
	return m.baseURL + "/" + key
}

func (m *MemoryGateway) StatObject(_ context.Context, key string) (*ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return obj.info(key), nil
}

func (m *MemoryGateway) GetObject(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info(key), nil
}

func (m *MemoryGateway) RemoveObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Has reports whether key is stored.
func (m *MemoryGateway) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Seed stores data directly, bypassing PutErr.
func (m *MemoryGateway) Seed(key string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType, modified: time.Now().UTC()}
}

func (o memoryObject) info(key string) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		LastModified: o.modified,
	}
}
