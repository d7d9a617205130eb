package processor

import (
	"context"
	"fmt"
	"io"
	"maps"
)

// Input is what a processing step receives. Source is rewound before every step.
type Input struct {
	RecordID string
	Kind     string
	Filename string
	MimeType string
	Size     int64
	Source   io.ReadSeeker
	// Text is the content produced by the previous step of a Chain.
	Text string
}

// Artifact is the result of a step. Metadata is merged into the record enrichment.
type Artifact struct {
	Content  string
	Metadata map[string]any
}

type Processor interface {
	Process(ctx context.Context, in Input) (*Artifact, error)
}

type Func func(ctx context.Context, in Input) (*Artifact, error)

func (f Func) Process(ctx context.Context, in Input) (*Artifact, error) {
	return f(ctx, in)
}

// Chain runs steps in order. A step returning empty content keeps the previous content,
// metadata of all steps is merged with later steps winning.
type Chain []Processor

func (c Chain) Process(ctx context.Context, in Input) (*Artifact, error) {
	result := &Artifact{Metadata: map[string]any{}}
	for i, step := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if in.Source != nil {
			if _, err := in.Source.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("failed to rewind source for step %d: %w", i, err)
			}
		}

		artifact, err := step.Process(ctx, in)
		if err != nil {
			return nil, err
		}
		if artifact == nil {
			continue
		}
		if artifact.Content != "" {
			result.Content = artifact.Content
			in.Text = artifact.Content
		}
		maps.Copy(result.Metadata, artifact.Metadata)
	}
	return result, nil
}

// ProviderError is returned when an external provider answers with a non 2xx status.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned http %d: %s", e.Provider, e.StatusCode, e.Body)
}
