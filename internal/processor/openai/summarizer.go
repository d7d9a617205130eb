package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
)

const summarySystemPrompt = "You are an AI that analyzes meeting transcriptions to extract summaries and market trends. Respond only with valid JSON."

// Analysis is the structured answer of the summary model.
type Analysis struct {
	Summary         string   `json:"summary"`
	MarketTrends    []string `json:"marketTrends"`
	ProductMentions []string `json:"productMentions"`
	IsCasual        bool     `json:"isCasual"`
}

type Summarizer struct {
	client *Client
	model  string
}

func NewSummarizer(client *Client, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

// Summarize asks the chat model for a summary in the given format ("formal" or "casual").
func (s *Summarizer) Summarize(ctx context.Context, transcript, format string, productTerms []string) (*Analysis, error) {
	content, err := s.client.complete(ctx, s.model, []sdk.ChatCompletionMessageParamUnion{
		sdk.SystemMessage(summarySystemPrompt),
		sdk.UserMessage(buildPrompt(transcript, format, productTerms)),
	}, true)
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("generated summary is not valid json: %w", err)
	}
	if analysis.Summary == "" {
		return nil, fmt.Errorf("generated summary is empty")
	}
	return &analysis, nil
}

func buildPrompt(transcript, format string, productTerms []string) string {
	if format == "" {
		format = "formal"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following meeting transcription and:\n")
	fmt.Fprintf(&b, "1. Create a concise %s summary of the key points (max 250 words)\n", format)
	fmt.Fprintf(&b, "2. Identify 3-5 market trends mentioned\n")
	if len(productTerms) > 0 {
		fmt.Fprintf(&b, "3. Detect any product names mentioned, especially these known products if they appear: %s\n", strings.Join(productTerms, ", "))
	} else {
		fmt.Fprintf(&b, "3. Detect any product names mentioned\n")
	}
	fmt.Fprintf(&b, "4. Determine if this is a casual conversation or a formal meeting\n\n")
	fmt.Fprintf(&b, "Format your response as JSON with the following structure:\n")
	fmt.Fprintf(&b, `{"summary": "...", "marketTrends": ["..."], "productMentions": ["..."], "isCasual": false}`)
	fmt.Fprintf(&b, "\n\nHere is the transcription:\n%s", transcript)
	return b.String()
}
