package openai

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kubev2v/meeting-intelligence/internal/processor"
	sdk "github.com/openai/openai-go"
)

const MetadataTranscriptionModel = "transcriptionModel"

// Transcriber sends audio to the audio transcription endpoint.
// language, prompt and temperature map onto the typed request fields; any other
// param is passed through as an extra form field without interpretation.
type Transcriber struct {
	client *Client
	model  string
	params map[string]string
}

func NewTranscriber(client *Client, model string, params map[string]string) *Transcriber {
	return &Transcriber{client: client, model: model, params: params}
}

func (t *Transcriber) Process(ctx context.Context, in processor.Input) (*processor.Artifact, error) {
	if in.Source == nil {
		return nil, fmt.Errorf("no audio to transcribe")
	}

	params, err := t.newParams(in)
	if err != nil {
		return nil, err
	}

	transcription, err := t.client.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, providerError(err)
	}

	return &processor.Artifact{
		Content:  strings.TrimSpace(transcription.Text),
		Metadata: map[string]any{MetadataTranscriptionModel: t.model},
	}, nil
}

func (t *Transcriber) newParams(in processor.Input) (sdk.AudioTranscriptionNewParams, error) {
	params := sdk.AudioTranscriptionNewParams{
		File:  sdk.File(in.Source, filepath.Base(in.Filename), contentTypeOrDefault(in.MimeType)),
		Model: sdk.AudioModel(t.model),
	}

	extra := map[string]any{}
	for k, v := range t.params {
		switch k {
		case "language":
			params.Language = sdk.String(v)
		case "prompt":
			params.Prompt = sdk.String(v)
		case "temperature":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return params, fmt.Errorf("transcription temperature %q: %w", v, err)
			}
			params.Temperature = sdk.Float(f)
		case "response_format", "model", "file":
			// the response is always decoded as json
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		params.SetExtraFields(extra)
	}
	return params, nil
}
