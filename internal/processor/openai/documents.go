package openai

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/kubev2v/meeting-intelligence/internal/processor"
	sdk "github.com/openai/openai-go"
)

const (
	MetadataOpenAIFileID  = "openaiFileId"
	MetadataVectorStoreID = "vectorStoreId"

	defaultVectorStoreName = "meeting-intelligence"
)

// DocumentUploader uploads a file to the files api and attaches it to a vector store.
// When no vector store id is configured one is created on first use.
type DocumentUploader struct {
	client *Client

	mu            sync.Mutex
	vectorStoreID string
}

func NewDocumentUploader(client *Client, vectorStoreID string) *DocumentUploader {
	return &DocumentUploader{client: client, vectorStoreID: vectorStoreID}
}

func (d *DocumentUploader) Process(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
	if in.Source == nil {
		return nil, fmt.Errorf("no document to upload")
	}

	fileID, storeID, err := d.attach(ctx, in.Filename, in.MimeType, in.Source)
	if err != nil {
		return nil, err
	}

	return &processor.Artifact{
		Content: fileID,
		Metadata: map[string]any{
			MetadataOpenAIFileID:  fileID,
			MetadataVectorStoreID: storeID,
		},
	}, nil
}

// attach uploads the content as an assistants file and adds it to the vector store.
func (d *DocumentUploader) attach(ctx context.Context, filename, contentType string, content io.Reader) (string, string, error) {
	file, err := d.client.api.Files.New(ctx, sdk.FileNewParams{
		File:    sdk.File(content, filepath.Base(filename), contentTypeOrDefault(contentType)),
		Purpose: sdk.FilePurposeAssistants,
	})
	if err != nil {
		return "", "", providerError(err)
	}
	if file.ID == "" {
		return "", "", fmt.Errorf("files api returned no id")
	}

	storeID, err := d.ensureVectorStore(ctx)
	if err != nil {
		return "", "", err
	}

	if _, err := d.client.api.VectorStores.Files.New(ctx, storeID, sdk.VectorStoreFileNewParams{FileID: file.ID}); err != nil {
		return "", "", providerError(err)
	}
	return file.ID, storeID, nil
}

func (d *DocumentUploader) ensureVectorStore(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vectorStoreID != "" {
		return d.vectorStoreID, nil
	}

	store, err := d.client.api.VectorStores.New(ctx, sdk.VectorStoreNewParams{Name: sdk.String(defaultVectorStoreName)})
	if err != nil {
		return "", providerError(err)
	}
	if store.ID == "" {
		return "", fmt.Errorf("vector store api returned no id")
	}
	d.vectorStoreID = store.ID
	return store.ID, nil
}
