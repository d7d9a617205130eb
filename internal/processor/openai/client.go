package openai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kubev2v/meeting-intelligence/internal/processor"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	providerName = "openai"
	// error bodies are truncated before they end up in record enrichment
	maxErrorBody = 2048
)

type ClientOpts func(o *clientOptions)

type clientOptions struct {
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

// Client wraps the openai-go client shared by every processor of this package.
// Timeouts come from the request context.
type Client struct {
	api sdk.Client
}

func NewClient(apiKey string, opts ...ClientOpts) *Client {
	o := clientOptions{maxRetries: 2}
	for _, fn := range opts {
		fn(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(o.baseURL, "/")+"/"))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	return &Client{api: sdk.NewClient(reqOpts...)}
}

func WithBaseURL(baseURL string) ClientOpts {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithMaxRetries bounds the retries the sdk does on 408, 409, 429 and 5xx answers.
func WithMaxRetries(n int) ClientOpts {
	return func(o *clientOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOpts {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// providerError turns api errors into processor.ProviderError so the pipeline can classify them.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	body := apiErr.Message
	if body == "" {
		body = apiErr.Error()
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &processor.ProviderError{Provider: providerName, StatusCode: apiErr.StatusCode, Body: body}
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
