package chat

import (
	"context"
	"strings"

	"github.com/w-h-a/gateway/internal/service"
	"github.com/w-h-a/gateway/upstream"
)

const maxMessageLength = 10000

// Request is the inbound chat payload. Context carries prior turns the
// caller wants replayed ahead of the new message.
type Request struct {
	Message     string             `json:"message"`
	Stream      bool               `json:"stream,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Context     []upstream.Message `json:"context,omitempty"`
}

type Service struct {
	upstream upstream.Upstream
	model    string
}

// Validate runs before any upstream call.
func (s *Service) Validate(req Request) error {
	if len(strings.TrimSpace(req.Message)) == 0 {
		return service.Invalid("message is required and must be a non-empty string")
	}

	if len(req.Message) > maxMessageLength {
		return service.Invalid("message too long (max 10,000 characters)")
	}

	return nil
}

func (s *Service) Respond(ctx context.Context, req Request) (*upstream.ChatResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	return s.upstream.Chat(ctx, upstream.ChatRequest{
		Message:     req.Message,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Context:     req.Context,
	})
}

func (s *Service) Stream(ctx context.Context, req Request) (upstream.Stream, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	return s.upstream.ChatStream(ctx, upstream.ChatRequest{
		Message:     req.Message,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Context:     req.Context,
	})
}

func (s *Service) Models(ctx context.Context) ([]string, error) {
	return s.upstream.Models(ctx)
}

// Model reports the configured completion model identifier.
func (s *Service) Model() string {
	return s.model
}

func New(u upstream.Upstream, model string) *Service {
	if u == nil {
		panic("upstream is required")
	}

	return &Service{
		upstream: u,
		model:    model,
	}
}
