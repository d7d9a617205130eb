package openai

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	knowledgeSystemPrompt = "You answer questions about recorded meetings and uploaded documents. Use the provided excerpts when they are relevant and say so when they do not contain the answer."
)

// Turn is one message of a knowledge conversation.
type Turn struct {
	Role    string
	Content string
}

// Assistant answers knowledge questions with chat completions grounded on index excerpts.
type Assistant struct {
	client *Client
	model  string
}

func NewAssistant(client *Client, model string) *Assistant {
	return &Assistant{client: client, model: model}
}

func (a *Assistant) Reply(ctx context.Context, turns []Turn, excerpts []string) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("no message to answer")
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(turns)+2)
	messages = append(messages, sdk.SystemMessage(knowledgeSystemPrompt))
	if len(excerpts) > 0 {
		messages = append(messages, sdk.SystemMessage(buildExcerpts(excerpts)))
	}
	for _, t := range turns {
		if t.Role == RoleAssistant {
			messages = append(messages, sdk.AssistantMessage(t.Content))
			continue
		}
		messages = append(messages, sdk.UserMessage(t.Content))
	}

	return a.client.complete(ctx, a.model, messages, false)
}

func buildExcerpts(excerpts []string) string {
	var b strings.Builder
	b.WriteString("Relevant excerpts:\n")
	for i, e := range excerpts {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, e)
	}
	return b.String()
}

// complete runs a chat completion and returns the content of the first choice.
func (c *Client) complete(ctx context.Context, model string, messages []sdk.ChatCompletionMessageParamUnion, jsonObject bool) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: messages,
	}
	if jsonObject {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", providerError(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat completion returned no content")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
