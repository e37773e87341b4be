package localai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/w-h-a/gateway/upstream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	requestTimeout = 120 * time.Second
	probeTimeout   = 5 * time.Second

	defaultTemperature = 0.7
	defaultMaxTokens   = 512
)

type localAI struct {
	options upstream.Options
	client  *openai.Client
	http    *http.Client
	probe   *http.Client
}

func (l *localAI) Chat(ctx context.Context, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
	rsp, err := l.client.CreateChatCompletion(ctx, l.completionRequest(req, false))
	if err != nil {
		return nil, l.mapErr(err)
	}

	if len(rsp.Choices) == 0 {
		return nil, &upstream.Error{Kind: upstream.Unknown, Message: "no response from model server"}
	}

	model := rsp.Model
	if len(model) == 0 {
		model = l.options.Model
	}

	return &upstream.ChatResponse{
		Message: rsp.Choices[0].Message.Content,
		Model:   model,
		Usage: &upstream.Usage{
			PromptTokens:     rsp.Usage.PromptTokens,
			CompletionTokens: rsp.Usage.CompletionTokens,
			TotalTokens:      rsp.Usage.TotalTokens,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ChatStream opens a streaming completion and hands back the raw
// event-stream as a sequence of chunks. The SSE leg is hand-rolled rather
// than routed through go-openai because a malformed line from the server
// must be dropped, not surfaced as a stream-ending error.
func (l *localAI) ChatStream(ctx context.Context, req upstream.ChatRequest) (upstream.Stream, error) {
	payload := map[string]any{
		"model":       l.options.Model,
		"messages":    l.buildMessages(req),
		"temperature": temperatureOrDefault(req.Temperature),
		"max_tokens":  maxTokensOrDefault(req.MaxTokens),
		"stream":      true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.options.Location+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	rsp, err := l.http.Do(httpReq)
	if err != nil {
		return nil, l.mapErr(err)
	}

	if rsp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(rsp.Body)
		rsp.Body.Close()
		return nil, upstream.FromStatus(rsp.StatusCode, l.options.Model, strings.TrimSpace(string(detail)))
	}

	return &chatStream{body: rsp.Body, reader: bufio.NewReader(rsp.Body)}, nil
}

func (l *localAI) Embed(ctx context.Context, text string) (*upstream.Embedding, error) {
	rsp, err := l.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(l.options.EmbeddingModel),
	})
	if err != nil {
		return nil, l.mapErr(err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, &upstream.Error{Kind: upstream.Unknown, Message: "no embedding returned from model server"}
	}

	model := string(rsp.Model)
	if len(model) == 0 {
		model = l.options.EmbeddingModel
	}

	return &upstream.Embedding{
		Embedding: rsp.Data[0].Embedding,
		Model:     model,
		Usage: &upstream.Usage{
			PromptTokens: rsp.Usage.PromptTokens,
			TotalTokens:  rsp.Usage.TotalTokens,
		},
	}, nil
}

func (l *localAI) Models(ctx context.Context) ([]string, error) {
	rsp, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, l.mapErr(err)
	}

	ids := make([]string, 0, len(rsp.Models))
	for _, model := range rsp.Models {
		ids = append(ids, model.ID)
	}

	return ids, nil
}

// Check probes the server's readiness endpoint with a short timeout. Any
// failure means not ready; it never returns an error.
func (l *localAI) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.options.Location+"/readyz", nil)
	if err != nil {
		return false
	}

	rsp, err := l.probe.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "model server health check failed", "error", err)
		return false
	}
	defer rsp.Body.Close()

	return rsp.StatusCode == http.StatusOK
}

func (l *localAI) completionRequest(req upstream.ChatRequest, stream bool) openai.ChatCompletionRequest {
	messages := l.buildMessages(req)

	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       l.options.Model,
		Messages:    converted,
		Temperature: temperatureOrDefault(req.Temperature),
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		Stream:      stream,
	}
}

func (l *localAI) buildMessages(req upstream.ChatRequest) []upstream.Message {
	messages := make([]upstream.Message, 0, len(req.Context)+1)

	messages = append(messages, req.Context...)

	messages = append(messages, upstream.Message{
		Role:      "user",
		Content:   req.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	return messages
}

func (l *localAI) mapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return upstream.FromStatus(apiErr.HTTPStatusCode, l.options.Model, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return upstream.FromStatus(reqErr.HTTPStatusCode, l.options.Model, reqErr.Error())
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &upstream.Error{Kind: upstream.Connection, Message: "unable to connect to the model server; check that it is running"}
	}

	return &upstream.Error{Kind: upstream.Unknown, Message: fmt.Sprintf("model server error: %v", err)}
}

func temperatureOrDefault(t float32) float32 {
	if t == 0 {
		return defaultTemperature
	}
	return t
}

func maxTokensOrDefault(n int) int {
	if n == 0 {
		return defaultMaxTokens
	}
	return n
}

func NewUpstream(opts ...upstream.Option) upstream.Upstream {
	options := upstream.NewOptions(opts...)

	httpClient := options.Client
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	config := openai.DefaultConfig("")
	config.BaseURL = options.Location + "/v1"
	config.HTTPClient = httpClient

	return &localAI{
		options: options,
		client:  openai.NewClientWithConfig(config),
		http:    httpClient,
		probe: &http.Client{
			Timeout:   probeTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}
